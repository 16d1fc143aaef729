package models

import (
	"encoding/json"
	"strings"
	"time"
)

// Platform identifiers understood by the core. Custom channels register
// their own identifier through the custom adapter.
const (
	PlatformAlisa    = "alisa"
	PlatformMarusia  = "marusia"
	PlatformSmartApp = "smartapp"
	PlatformTelegram = "telegram"
	PlatformViber    = "viber"
	PlatformVK       = "vk"
	PlatformCustom   = "custom"
)

// Reserved intent names with built-in default behavior.
const (
	IntentWelcome = "welcome"
	IntentHelp    = "help"
)

// Turn is the canonical in-memory record of one request/response cycle.
// It is created by an adapter's Normalize, mutated by the resolver and the
// application callback, consumed by Render and then discarded. A Turn is
// never shared between requests.
type Turn struct {
	Platform string

	// Command is the normalized (lowercased, trimmed) utterance;
	// OriginalCommand preserves the raw text verbatim for similarity
	// scoring and logging. Both may be empty for non-text triggers.
	Command         string
	OriginalCommand string

	// Text is what the user reads, TTS is what the assistant pronounces.
	// TTS defaults to Text at render time on speaking platforms.
	Text string
	TTS  string

	UserID    string
	SessionID string
	// MessageID counts turns within a session; zero marks session start.
	MessageID int64

	IsFirstTurn   bool
	EndSession    bool
	RequiresAuth  bool
	AuthSucceeded bool
	AccessToken   string

	// State is the opaque persisted user state; StateNamespace is the wire
	// field the adapter chose during Normalize to embed it under.
	State          json.RawMessage
	StateNamespace string

	ScreenAvailable bool

	Intent     string
	PrevIntent string

	Buttons []Button
	Cards   []Card
	Sounds  []Sound

	// Pong marks a platform health-check turn: render immediately with a
	// fixed reply, skipping intent resolution and the application callback.
	Pong bool

	StartedAt time.Time

	// SoftErrors collects non-fatal diagnostics (deadline overruns and the
	// like) for external logging. They never abort the response.
	SoftErrors []string

	// DeadlineExceeded and ParseFailed classify the turn for
	// observability; both are soft conditions.
	DeadlineExceeded bool
	ParseFailed      bool
}

// NewTurn seeds a turn record for the given platform at now.
func NewTurn(platform string) *Turn {
	return &Turn{Platform: platform, StartedAt: time.Now()}
}

// SetCommand stores the raw utterance and its normalized form.
func (t *Turn) SetCommand(raw string) {
	t.OriginalCommand = raw
	t.Command = NormalizeCommand(raw)
}

// AddSoftError records a non-fatal diagnostic on the turn.
func (t *Turn) AddSoftError(msg string) {
	msg = strings.TrimSpace(msg)
	if msg == "" {
		return
	}
	t.SoftErrors = append(t.SoftErrors, msg)
}

// Elapsed reports wall time since the turn started.
func (t *Turn) Elapsed(now time.Time) time.Duration {
	if t.StartedAt.IsZero() {
		return 0
	}
	return now.Sub(t.StartedAt)
}

// NormalizeCommand lowercases and trims an utterance the way every adapter
// must before intent matching.
func NormalizeCommand(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// Button is a platform-agnostic pressable element. Adapters translate it
// into suggestion chips, inline keyboards or carousel actions.
type Button struct {
	Title   string          `json:"title"`
	URL     string          `json:"url,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Hide    bool            `json:"hide,omitempty"`
}

// Card is a rich media element for screen-capable surfaces.
type Card struct {
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	ImageID     string   `json:"image_id,omitempty"`
	ImageURL    string   `json:"image_url,omitempty"`
	Buttons     []Button `json:"buttons,omitempty"`
}

// Sound references audio to be mixed into the spoken reply. Token is the
// platform-specific playback handle obtained by the Sound collaborator.
type Sound struct {
	Key   string `json:"key"`
	Token string `json:"token,omitempty"`
}
