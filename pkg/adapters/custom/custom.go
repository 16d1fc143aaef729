// Package custom implements a generic JSON adapter for user-defined
// channels that have no platform-dictated wire format.
package custom

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"umbot/go-core/pkg/adapters"
	"umbot/go-core/pkg/models"
)

const defaultDeadline = 5 * time.Second

// Options shapes the generic channel.
type Options struct {
	// Platform overrides the reported platform identifier.
	Platform string
	// MaxTextLen caps the reply text; zero disables the cap.
	MaxTextLen int
	// Deadline overrides the reply-time budget.
	Deadline time.Duration
	// Speaks enables the tts field in replies.
	Speaks bool
}

type Adapter struct {
	opts Options
}

func New(opts Options) *Adapter {
	if opts.Platform == "" {
		opts.Platform = models.PlatformCustom
	}
	if opts.Deadline <= 0 {
		opts.Deadline = defaultDeadline
	}
	return &Adapter{opts: opts}
}

func (a *Adapter) Platform() string                { return a.opts.Platform }
func (a *Adapter) ResponseDeadline() time.Duration { return a.opts.Deadline }
func (a *Adapter) Speaks() bool                    { return a.opts.Speaks }
func (a *Adapter) LocalStorageCapable() bool       { return true }

type request struct {
	UserID    string          `json:"user_id"`
	SessionID string          `json:"session_id"`
	MessageID int64           `json:"message_id"`
	Command   string          `json:"command"`
	Screen    bool            `json:"screen"`
	State     json.RawMessage `json:"state"`
}

func (a *Adapter) Normalize(raw []byte) (*models.Turn, error) {
	var req request
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, adapters.NewParseError(a.opts.Platform, err.Error())
	}
	if req.UserID == "" {
		return nil, adapters.NewParseError(a.opts.Platform, "user_id is required")
	}

	turn := models.NewTurn(a.opts.Platform)
	turn.UserID = req.UserID
	turn.SessionID = req.SessionID
	if turn.SessionID == "" {
		turn.SessionID = uuid.NewString()
	}
	turn.MessageID = req.MessageID
	turn.IsFirstTurn = req.MessageID == 0
	turn.ScreenAvailable = req.Screen
	turn.SetCommand(req.Command)
	turn.State = req.State
	turn.StateNamespace = "state"
	return turn, nil
}

type response struct {
	Text       string          `json:"text"`
	TTS        string          `json:"tts,omitempty"`
	Buttons    []models.Button `json:"buttons,omitempty"`
	State      json.RawMessage `json:"state,omitempty"`
	SessionID  string          `json:"session_id,omitempty"`
	EndSession bool            `json:"end_session,omitempty"`
}

func (a *Adapter) Render(turn *models.Turn) ([]byte, error) {
	adapters.CheckDeadline(turn, a.opts.Deadline, time.Now())

	out := response{
		Text:       adapters.Resize(turn.Text, a.opts.MaxTextLen),
		State:      turn.State,
		SessionID:  turn.SessionID,
		EndSession: turn.EndSession,
	}
	if a.opts.Speaks {
		out.TTS = adapters.Resize(turn.TTS, a.opts.MaxTextLen)
	}
	if turn.ScreenAvailable {
		out.Buttons = turn.Buttons
	}
	return json.Marshal(out)
}
