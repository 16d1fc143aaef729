package models

import "strings"

// IntentRule maps configured trigger phrases (or regex fragments when
// IsPattern is set) to a named application command. Rules are immutable
// after startup and safely shared by concurrent turns. Order matters:
// the first matching rule wins.
type IntentRule struct {
	Name      string   `json:"name" yaml:"name"`
	Triggers  []string `json:"triggers" yaml:"triggers"`
	IsPattern bool     `json:"is_pattern" yaml:"isPattern"`
}

// NormalizeIntentRule trims the rule name and drops empty triggers.
func NormalizeIntentRule(rule IntentRule) IntentRule {
	rule.Name = strings.TrimSpace(rule.Name)
	triggers := make([]string, 0, len(rule.Triggers))
	for _, trigger := range rule.Triggers {
		if strings.TrimSpace(trigger) == "" {
			continue
		}
		triggers = append(triggers, trigger)
	}
	rule.Triggers = triggers
	return rule
}

// MatchResult is the intent resolver's verdict for one turn.
type MatchResult struct {
	Matched bool
	Intent  string
}

// NoMatch is the zero verdict: let application code decide.
func NoMatch() MatchResult { return MatchResult{} }

// MatchedIntent wraps a resolved intent name.
func MatchedIntent(name string) MatchResult {
	return MatchResult{Matched: true, Intent: name}
}

// SimilarityResult reports the best candidate of a similarity scan.
// Percent is always populated; zero means no candidate came close.
type SimilarityResult struct {
	Status  bool
	Percent int
	Text    string
	Index   int
}
