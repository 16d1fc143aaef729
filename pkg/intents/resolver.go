// Package intents resolves free-form user text into named application
// commands over an ordered rule list.
package intents

import (
	"math/rand"

	"umbot/go-core/pkg/matching"
	"umbot/go-core/pkg/models"
)

// Resolve scans rules in configured order and returns the first whose
// triggers match the turn's command. Earlier rules win ties by design.
// A first-session turn (MessageID == 0) that matches nothing resolves to
// the reserved welcome intent; any other miss is a no-match verdict that
// the orchestrator hands to application code.
func Resolve(turn *models.Turn, rules []models.IntentRule) models.MatchResult {
	if turn == nil {
		return models.NoMatch()
	}
	for _, rule := range rules {
		if rule.Name == "" {
			continue
		}
		if matching.ContainsAny(rule.Triggers, turn.Command, rule.IsPattern) {
			return models.MatchedIntent(rule.Name)
		}
	}
	if turn.MessageID == 0 {
		return models.MatchedIntent(models.IntentWelcome)
	}
	return models.NoMatch()
}

// MergeRules concatenates code-registered rules with configured ones.
// Code rules keep their registration order and win name collisions, so a
// config file can add intents but never shadow compiled-in behavior.
func MergeRules(code, configured []models.IntentRule) []models.IntentRule {
	merged := make([]models.IntentRule, 0, len(code)+len(configured))
	taken := make(map[string]struct{}, len(code))
	for _, rule := range code {
		rule = models.NormalizeIntentRule(rule)
		if rule.Name == "" {
			continue
		}
		merged = append(merged, rule)
		taken[rule.Name] = struct{}{}
	}
	for _, rule := range configured {
		rule = models.NormalizeIntentRule(rule)
		if rule.Name == "" {
			continue
		}
		if _, dup := taken[rule.Name]; dup {
			continue
		}
		merged = append(merged, rule)
		taken[rule.Name] = struct{}{}
	}
	return merged
}

// DefaultTexts holds canned replies for the built-in intents, list-valued
// to allow random variation.
type DefaultTexts struct {
	Welcome []string `yaml:"welcome"`
	Help    []string `yaml:"help"`
}

// ApplyDefaults seeds turn.Text for the welcome/help intents before the
// application callback runs, so the callback may still override it.
func ApplyDefaults(turn *models.Turn, result models.MatchResult, texts DefaultTexts) {
	if turn == nil || !result.Matched {
		return
	}
	switch result.Intent {
	case models.IntentWelcome:
		turn.Text = pick(texts.Welcome)
	case models.IntentHelp:
		turn.Text = pick(texts.Help)
	}
}

func pick(options []string) string {
	switch len(options) {
	case 0:
		return ""
	case 1:
		return options[0]
	default:
		return options[rand.Intn(len(options))]
	}
}
