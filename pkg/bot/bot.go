// Package bot orchestrates one conversational turn: normalize, resolve,
// dispatch to application code, render.
package bot

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"umbot/go-core/pkg/adapters"
	"umbot/go-core/pkg/intents"
	"umbot/go-core/pkg/models"
)

// Handler is the application callback: the sole business-logic mutation
// point. Intent is empty when no rule matched.
type Handler func(result models.MatchResult, turn *models.Turn)

// Storage is the external state collaborator used for platforms without
// native session state.
type Storage interface {
	Load(userID string) (json.RawMessage, error)
	Save(userID string, state json.RawMessage) error
}

// ErrStateNotFound is returned by Storage.Load for unknown users.
var ErrStateNotFound = errors.New("state not found")

// SoundProvider augments the spoken reply with playback tokens. It may
// perform network I/O (audio upload) and must honor the context.
type SoundProvider interface {
	Augment(ctx context.Context, turn *models.Turn) error
}

// Config is the immutable per-bot configuration, shared by concurrent
// turns without locking.
type Config struct {
	Rules    []models.IntentRule
	Defaults intents.DefaultTexts

	// EmptyRequestText is the best-effort reply for unparseable payloads.
	EmptyRequestText string

	// DefaultSounds triggers sound augmentation even when the callback
	// declared no sounds explicitly.
	DefaultSounds bool
}

type Bot struct {
	cfg     Config
	storage Storage
	sounds  SoundProvider
	logger  *slog.Logger
}

// Option configures optional collaborators.
type Option func(*Bot)

func WithStorage(s Storage) Option { return func(b *Bot) { b.storage = s } }

func WithSounds(s SoundProvider) Option { return func(b *Bot) { b.sounds = s } }

func WithLogger(l *slog.Logger) Option { return func(b *Bot) { b.logger = l } }

func New(cfg Config, opts ...Option) *Bot {
	normalized := make([]models.IntentRule, 0, len(cfg.Rules))
	for _, rule := range cfg.Rules {
		rule = models.NormalizeIntentRule(rule)
		if rule.Name == "" {
			continue
		}
		normalized = append(normalized, rule)
	}
	cfg.Rules = normalized
	b := &Bot{cfg: cfg, logger: slog.Default()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Result is the outcome of one handled turn.
type Result struct {
	Payload []byte
	Turn    *models.Turn
}

// HandleTurn runs the full turn state machine and always produces a
// payload when one can be rendered, even past the deadline. Errors cross
// this boundary only when neither the normal nor the fallback path could
// render.
func (b *Bot) HandleTurn(ctx context.Context, adapter adapters.Adapter, raw []byte, callback Handler) (Result, error) {
	turn, err := adapter.Normalize(raw)
	if err != nil {
		var parseErr *adapters.ParseError
		if errors.As(err, &parseErr) {
			return b.renderFallback(adapter, parseErr)
		}
		return Result{}, err
	}

	// Health-check turns bypass resolution and application code entirely.
	if turn.Pong {
		payload, err := adapter.Render(turn)
		return Result{Payload: payload, Turn: turn}, err
	}

	b.loadState(adapter, turn)
	extractPrevIntent(turn)

	result := intents.Resolve(turn, b.cfg.Rules)
	turn.Intent = result.Intent
	intents.ApplyDefaults(turn, result, b.cfg.Defaults)

	if callback != nil {
		callback(result, turn)
	}

	if adapter.Speaks() {
		if turn.TTS == "" {
			turn.TTS = turn.Text
		}
		b.augmentSounds(ctx, turn)
	}

	embedLastIntent(turn)
	b.saveState(adapter, turn)

	payload, err := adapter.Render(turn)
	if err != nil {
		return Result{Turn: turn}, err
	}
	for _, soft := range turn.SoftErrors {
		b.logger.Warn("turn soft error", "platform", turn.Platform, "error", soft)
	}
	return Result{Payload: payload, Turn: turn}, nil
}

// renderFallback answers a malformed payload with a generic reply rather
// than surfacing the parse failure to the platform.
func (b *Bot) renderFallback(adapter adapters.Adapter, parseErr *adapters.ParseError) (Result, error) {
	turn := models.NewTurn(adapter.Platform())
	turn.ParseFailed = true
	turn.Text = b.cfg.EmptyRequestText
	turn.AddSoftError(parseErr.Error())
	if adapter.Speaks() {
		turn.TTS = turn.Text
	}
	payload, err := adapter.Render(turn)
	if err != nil {
		return Result{Turn: turn}, errors.Join(parseErr, err)
	}
	b.logger.Warn("unparseable request", "platform", adapter.Platform(), "reason", parseErr.Reason)
	return Result{Payload: payload, Turn: turn}, nil
}

func (b *Bot) loadState(adapter adapters.Adapter, turn *models.Turn) {
	if b.storage == nil || adapter.LocalStorageCapable() || turn.UserID == "" {
		return
	}
	state, err := b.storage.Load(turn.UserID)
	switch {
	case errors.Is(err, ErrStateNotFound):
	case err != nil:
		turn.AddSoftError("state load failed: " + err.Error())
	default:
		turn.State = state
	}
}

func (b *Bot) saveState(adapter adapters.Adapter, turn *models.Turn) {
	if b.storage == nil || adapter.LocalStorageCapable() || turn.UserID == "" || len(turn.State) == 0 {
		return
	}
	if err := b.storage.Save(turn.UserID, turn.State); err != nil {
		turn.AddSoftError("state save failed: " + err.Error())
	}
}

// lastIntentKey is the reserved field the orchestrator keeps inside the
// state document to carry the resolved intent across turns.
const lastIntentKey = "last_intent"

// extractPrevIntent lifts the reserved intent field out of the state
// document into turn.PrevIntent, so the application callback sees both the
// current and the previous intent while its own state stays clean.
func extractPrevIntent(turn *models.Turn) {
	if len(turn.State) == 0 {
		return
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(turn.State, &doc); err != nil {
		return
	}
	raw, ok := doc[lastIntentKey]
	if !ok {
		return
	}
	var name string
	if err := json.Unmarshal(raw, &name); err == nil {
		turn.PrevIntent = name
	}
	delete(doc, lastIntentKey)
	if cleaned, err := json.Marshal(doc); err == nil {
		turn.State = cleaned
	}
}

// embedLastIntent records the resolved intent inside the state document
// before it is persisted or rendered back onto the wire. Non-object state
// is left untouched.
func embedLastIntent(turn *models.Turn) {
	if turn.Intent == "" {
		return
	}
	doc := map[string]json.RawMessage{}
	if len(turn.State) > 0 {
		if err := json.Unmarshal(turn.State, &doc); err != nil {
			return
		}
	}
	name, err := json.Marshal(turn.Intent)
	if err != nil {
		return
	}
	doc[lastIntentKey] = name
	if updated, err := json.Marshal(doc); err == nil {
		turn.State = updated
	}
}

func (b *Bot) augmentSounds(ctx context.Context, turn *models.Turn) {
	if b.sounds == nil {
		return
	}
	if len(turn.Sounds) == 0 && !b.cfg.DefaultSounds {
		return
	}
	if err := b.sounds.Augment(ctx, turn); err != nil {
		turn.AddSoftError("sound augmentation failed: " + err.Error())
	}
}
