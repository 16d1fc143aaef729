package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"umbot/go-core/internal/api"
	"umbot/go-core/internal/config"
	"umbot/go-core/internal/platform/privacylog"
	"umbot/go-core/internal/platform/ratelimiter"
	"umbot/go-core/internal/storage"
	"umbot/go-core/pkg/adapters"
	"umbot/go-core/pkg/adapters/alisa"
	"umbot/go-core/pkg/adapters/custom"
	"umbot/go-core/pkg/adapters/marusia"
	"umbot/go-core/pkg/adapters/smartapp"
	"umbot/go-core/pkg/adapters/telegram"
	"umbot/go-core/pkg/adapters/viber"
	"umbot/go-core/pkg/adapters/vk"
	"umbot/go-core/pkg/bot"
	"umbot/go-core/pkg/intents"
	"umbot/go-core/pkg/models"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	addr := flag.String("addr", "", "webhook listen address (overrides config)")
	configPath := flag.String("config", "", "path to umbot.yaml (optional)")
	dataDir := flag.String("data-dir", "", "directory for persisted user state (optional)")
	flag.Parse()
	if *showVersion {
		fmt.Printf("botd version=%s commit=%s build_date=%s\n", version, commit, buildDate)
		return
	}

	logger := slog.New(privacylog.WrapHandler(slog.NewJSONHandler(os.Stderr, nil)))
	slog.SetDefault(logger)

	cfg := config.LoadFromPath(*configPath)
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *dataDir != "" {
		cfg.Storage.DataDir = *dataDir
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var store bot.Storage
	if cfg.Storage.DataDir != "" {
		fileStore, err := storage.NewFileStore(cfg.Storage.DataDir)
		if err != nil {
			log.Fatalf("botd failed to open state storage: %v", err)
		}
		store = fileStore
	} else {
		store = storage.NewMemoryStore()
	}

	b := bot.New(bot.Config{
		Rules: intents.MergeRules(builtinRules, cfg.Skill.Intents),
		Defaults: intents.DefaultTexts{
			Welcome: cfg.Skill.WelcomeTexts,
			Help:    cfg.Skill.HelpTexts,
		},
		EmptyRequestText: cfg.Skill.EmptyRequestText,
		DefaultSounds:    cfg.Skill.DefaultSounds,
	}, bot.WithStorage(store), bot.WithLogger(logger))

	platformAdapters := []adapters.Adapter{
		alisa.New(alisa.Options{UseAuthorizedUser: cfg.Skill.UseAuthorizedUser}),
		marusia.New(),
		smartapp.New(),
		telegram.New(),
		viber.New(viber.Options{SenderName: cfg.Platforms.ViberSenderName}),
		vk.New(vk.Options{
			ConfirmationCode: cfg.Platforms.VKConfirmationCode,
			Secret:           cfg.Platforms.VKSecret,
		}),
		custom.New(custom.Options{}),
	}

	limiter := ratelimiter.New(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst, cfg.Server.RateLimitTTL)
	srv := api.New(cfg.Server.Addr, b, demoHandler, platformAdapters, api.Options{
		WebhookToken: cfg.Server.WebhookToken,
		Limiter:      limiter,
		Logger:       logger,
	})

	logger.Info("botd starting", "addr", cfg.Server.Addr, "skill", cfg.Skill.Name)
	if err := srv.Run(ctx); err != nil {
		log.Fatalf("botd failed: %v", err)
	}
	logger.Info("botd stopped")
}

// builtinRules ship with the binary and stay ahead of any config-file
// intents during resolution.
var builtinRules = []models.IntentRule{
	{Name: models.IntentHelp, Triggers: []string{"помощь", "помоги", "что ты умеешь", "help"}},
	{Name: "repeat", Triggers: []string{"повтори", "ещё раз", "repeat"}},
}

// demoHandler keeps the binary useful standalone: it echoes anything the
// built-in intents did not already answer.
func demoHandler(result models.MatchResult, turn *models.Turn) {
	if result.Intent == "repeat" {
		turn.Text = "Повторяю: " + turn.OriginalCommand
		return
	}
	if result.Matched || turn.Text != "" {
		return
	}
	if turn.OriginalCommand == "" {
		turn.Text = "Я вас слушаю."
		return
	}
	turn.Text = "Вы сказали: " + turn.OriginalCommand
}
