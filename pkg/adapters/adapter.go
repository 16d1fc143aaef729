// Package adapters defines the per-platform normalize/render contract and
// the helpers every platform variant shares.
package adapters

import (
	"fmt"
	"time"

	"umbot/go-core/pkg/models"
)

// Adapter is one platform's two-phase wire state machine. Normalize turns a
// raw webhook payload into a canonical turn; Render turns the mutated turn
// back into the platform payload. Implementations are stateless and safe
// for concurrent turns.
type Adapter interface {
	Platform() string

	// Normalize fails with *ParseError when the payload lacks the
	// platform's minimum envelope.
	Normalize(raw []byte) (*models.Turn, error)

	// Render never fails on deadline overrun; it records the overrun on
	// the turn and returns the payload anyway.
	Render(turn *models.Turn) ([]byte, error)

	// ResponseDeadline is the platform's reply-time budget, checked at
	// render time against the turn start.
	ResponseDeadline() time.Duration

	// Speaks reports whether the platform pronounces replies (TTS).
	Speaks() bool

	// LocalStorageCapable reports whether the platform carries user state
	// natively in the wire payload. When false, the orchestrator goes
	// through the external storage collaborator instead.
	LocalStorageCapable() bool
}

// ParseError marks a malformed or incomplete inbound payload.
type ParseError struct {
	Platform string
	Reason   string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: cannot parse request: %s", e.Platform, e.Reason)
}

// NewParseError builds a ParseError for the given platform.
func NewParseError(platform, reason string) *ParseError {
	return &ParseError{Platform: platform, Reason: reason}
}

// Ping/pong health-check constants shared by the voice-assistant variants.
const (
	PingCommand = "ping"
	PongReply   = "pong"
)

const ellipsis = "…"

// Resize caps text at max runes, appending an ellipsis only when the text
// was actually cut. Zero or negative max leaves the text untouched.
func Resize(text string, max int) string {
	if max <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	if max == 1 {
		return ellipsis
	}
	return string(runes[:max-1]) + ellipsis
}

// CheckDeadline records a soft error on the turn when the elapsed turn time
// exceeded the adapter's budget. The response is still rendered.
func CheckDeadline(turn *models.Turn, budget time.Duration, now time.Time) bool {
	if turn == nil || budget <= 0 {
		return false
	}
	elapsed := turn.Elapsed(now)
	if elapsed <= budget {
		return false
	}
	turn.DeadlineExceeded = true
	turn.AddSoftError(fmt.Sprintf("%s: response deadline exceeded: %v > %v", turn.Platform, elapsed.Round(time.Millisecond), budget))
	return true
}
