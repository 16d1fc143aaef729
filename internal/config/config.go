// Package config loads the daemon/skill configuration from yaml with
// environment overrides.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"umbot/go-core/pkg/models"
)

// Config is the effective runtime configuration, immutable after load.
type Config struct {
	Server    ServerConfig
	Skill     SkillConfig
	Platforms PlatformConfig
	Storage   StorageConfig
}

type ServerConfig struct {
	Addr           string
	WebhookToken   string
	RateLimitRPS   float64
	RateLimitBurst int
	RateLimitTTL   time.Duration
}

type SkillConfig struct {
	Name              string
	UseAuthorizedUser bool
	EmptyRequestText  string
	DefaultSounds     bool
	WelcomeTexts      []string
	HelpTexts         []string
	Intents           []models.IntentRule
}

type PlatformConfig struct {
	VKConfirmationCode string
	VKSecret           string
	ViberSenderName    string
}

type StorageConfig struct {
	DataDir string
}

// DefaultConfig returns the baseline every load starts from.
func DefaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Addr:           "127.0.0.1:8080",
			RateLimitRPS:   5,
			RateLimitBurst: 10,
			RateLimitTTL:   10 * time.Minute,
		},
		Skill: SkillConfig{
			Name:             "skill",
			EmptyRequestText: "Извините, я не расслышала. Повторите, пожалуйста.",
			WelcomeTexts:     []string{"Привет! Чем могу помочь?"},
			HelpTexts:        []string{"Просто скажите, что вы хотите сделать."},
		},
	}
}

type FileConfig struct {
	Server struct {
		Addr           string   `yaml:"addr"`
		WebhookToken   string   `yaml:"webhookToken"`
		RateLimitRPS   *float64 `yaml:"rateLimitRps"`
		RateLimitBurst *int     `yaml:"rateLimitBurst"`
	} `yaml:"server"`
	Skill struct {
		Name              string              `yaml:"name"`
		UseAuthorizedUser *bool               `yaml:"useAuthorizedUser"`
		EmptyRequestText  string              `yaml:"emptyRequestText"`
		DefaultSounds     *bool               `yaml:"defaultSounds"`
		WelcomeTexts      []string            `yaml:"welcomeTexts"`
		HelpTexts         []string            `yaml:"helpTexts"`
		Intents           []models.IntentRule `yaml:"intents"`
	} `yaml:"skill"`
	Platforms struct {
		VKConfirmationCode string `yaml:"vkConfirmationCode"`
		VKSecret           string `yaml:"vkSecret"`
		ViberSenderName    string `yaml:"viberSenderName"`
	} `yaml:"platforms"`
	Storage struct {
		DataDir string `yaml:"dataDir"`
	} `yaml:"storage"`
}

// LoadFromPath reads the first readable candidate config and applies env
// overrides on top. A missing or unreadable file falls back to defaults.
func LoadFromPath(configPath string) Config {
	cfg := DefaultConfig()

	candidates := make([]string, 0, 2)
	if configPath != "" {
		candidates = append(candidates, configPath)
	} else {
		candidates = append(candidates,
			"configs/umbot.yaml",
			"umbot.yaml",
		)
	}

	for _, path := range candidates {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var parsed FileConfig
		if err := yaml.Unmarshal(data, &parsed); err != nil {
			continue
		}
		merged := cfg
		Merge(&merged, parsed)
		ApplyEnvOverrides(&merged)
		return merged
	}

	ApplyEnvOverrides(&cfg)
	return cfg
}

func Merge(dst *Config, src FileConfig) {
	if src.Server.Addr != "" {
		dst.Server.Addr = src.Server.Addr
	}
	if src.Server.WebhookToken != "" {
		dst.Server.WebhookToken = src.Server.WebhookToken
	}
	if src.Server.RateLimitRPS != nil {
		dst.Server.RateLimitRPS = *src.Server.RateLimitRPS
	}
	if src.Server.RateLimitBurst != nil {
		dst.Server.RateLimitBurst = *src.Server.RateLimitBurst
	}
	if src.Skill.Name != "" {
		dst.Skill.Name = src.Skill.Name
	}
	if src.Skill.UseAuthorizedUser != nil {
		dst.Skill.UseAuthorizedUser = *src.Skill.UseAuthorizedUser
	}
	if src.Skill.EmptyRequestText != "" {
		dst.Skill.EmptyRequestText = src.Skill.EmptyRequestText
	}
	if src.Skill.DefaultSounds != nil {
		dst.Skill.DefaultSounds = *src.Skill.DefaultSounds
	}
	if len(src.Skill.WelcomeTexts) > 0 {
		dst.Skill.WelcomeTexts = src.Skill.WelcomeTexts
	}
	if len(src.Skill.HelpTexts) > 0 {
		dst.Skill.HelpTexts = src.Skill.HelpTexts
	}
	if len(src.Skill.Intents) > 0 {
		dst.Skill.Intents = src.Skill.Intents
	}
	if src.Platforms.VKConfirmationCode != "" {
		dst.Platforms.VKConfirmationCode = src.Platforms.VKConfirmationCode
	}
	if src.Platforms.VKSecret != "" {
		dst.Platforms.VKSecret = src.Platforms.VKSecret
	}
	if src.Platforms.ViberSenderName != "" {
		dst.Platforms.ViberSenderName = src.Platforms.ViberSenderName
	}
	if src.Storage.DataDir != "" {
		dst.Storage.DataDir = src.Storage.DataDir
	}
}

func ApplyEnvOverrides(cfg *Config) {
	if addr := strings.TrimSpace(os.Getenv("UMBOT_ADDR")); addr != "" {
		cfg.Server.Addr = addr
	}
	if token := strings.TrimSpace(os.Getenv("UMBOT_WEBHOOK_TOKEN")); token != "" {
		cfg.Server.WebhookToken = token
	}
	if raw := strings.TrimSpace(os.Getenv("UMBOT_RATE_LIMIT_RPS")); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			cfg.Server.RateLimitRPS = v
		}
	}
	if dataDir := strings.TrimSpace(os.Getenv("UMBOT_DATA_DIR")); dataDir != "" {
		cfg.Storage.DataDir = dataDir
	}
	if code := strings.TrimSpace(os.Getenv("UMBOT_VK_CONFIRMATION")); code != "" {
		cfg.Platforms.VKConfirmationCode = code
	}
	if secret := strings.TrimSpace(os.Getenv("UMBOT_VK_SECRET")); secret != "" {
		cfg.Platforms.VKSecret = secret
	}
	if raw := strings.TrimSpace(os.Getenv("UMBOT_USE_AUTHORIZED_USER")); raw != "" {
		if v, err := strconv.ParseBool(raw); err == nil {
			cfg.Skill.UseAuthorizedUser = v
		}
	}
}
