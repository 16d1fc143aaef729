// Package vk implements the VK Callback API adapter. The confirmation
// handshake is answered with the configured code; message replies render a
// messages.send body for the outbound client.
package vk

import (
	"encoding/json"
	"strconv"
	"time"

	"umbot/go-core/pkg/adapters"
	"umbot/go-core/pkg/models"
)

const (
	maxTextLen = 4096
	deadline   = 5 * time.Second
)

// Inbound event types.
const (
	EventConfirmation = "confirmation"
	EventMessageNew   = "message_new"
)

// Options carries the community-specific callback settings.
type Options struct {
	// ConfirmationCode is echoed back on the confirmation handshake.
	ConfirmationCode string
	// Secret, when set, must match the callback's secret field.
	Secret string
}

type Adapter struct {
	opts Options
}

func New(opts Options) *Adapter { return &Adapter{opts: opts} }

func (a *Adapter) Platform() string                { return models.PlatformVK }
func (a *Adapter) ResponseDeadline() time.Duration { return deadline }
func (a *Adapter) Speaks() bool                    { return false }
func (a *Adapter) LocalStorageCapable() bool       { return false }

type callback struct {
	Type    string `json:"type"`
	GroupID int64  `json:"group_id"`
	Secret  string `json:"secret"`
	Object  *struct {
		Message *struct {
			ID      int64           `json:"id"`
			Date    int64           `json:"date"`
			PeerID  int64           `json:"peer_id"`
			FromID  int64           `json:"from_id"`
			Text    string          `json:"text"`
			Payload json.RawMessage `json:"payload"`
		} `json:"message"`
	} `json:"object"`
}

func (a *Adapter) Normalize(raw []byte) (*models.Turn, error) {
	var cb callback
	if err := json.Unmarshal(raw, &cb); err != nil {
		return nil, adapters.NewParseError(models.PlatformVK, err.Error())
	}
	if a.opts.Secret != "" && cb.Secret != a.opts.Secret {
		return nil, adapters.NewParseError(models.PlatformVK, "callback secret mismatch")
	}

	turn := models.NewTurn(models.PlatformVK)
	turn.ScreenAvailable = true

	switch cb.Type {
	case EventConfirmation:
		// Community handshake: reply with the confirmation code verbatim.
		turn.Pong = true
		turn.Text = a.opts.ConfirmationCode
		return turn, nil
	case EventMessageNew:
		if cb.Object == nil || cb.Object.Message == nil {
			return nil, adapters.NewParseError(models.PlatformVK, "message_new without object.message")
		}
		msg := cb.Object.Message
		turn.UserID = strconv.FormatInt(msg.FromID, 10)
		turn.SessionID = strconv.FormatInt(msg.PeerID, 10)
		turn.MessageID = msg.ID
		turn.SetCommand(msg.Text)
		if len(msg.Payload) > 0 && turn.Command == "" {
			turn.Command = models.NormalizeCommand(string(msg.Payload))
			turn.OriginalCommand = string(msg.Payload)
		}
		return turn, nil
	default:
		return nil, adapters.NewParseError(models.PlatformVK, "unsupported event "+cb.Type)
	}
}

type sendMessage struct {
	UserID         int64           `json:"user_id"`
	RandomID       int64           `json:"random_id"`
	Message        string          `json:"message"`
	Keyboard       json.RawMessage `json:"keyboard,omitempty"`
	DontParseLinks int             `json:"dont_parse_links,omitempty"`
}

func (a *Adapter) Render(turn *models.Turn) ([]byte, error) {
	adapters.CheckDeadline(turn, deadline, time.Now())

	// The handshake answer is the bare code, not JSON.
	if turn.Pong {
		return []byte(turn.Text), nil
	}

	userID, _ := strconv.ParseInt(turn.UserID, 10, 64)
	out := sendMessage{
		UserID:   userID,
		RandomID: turn.MessageID,
		Message:  adapters.Resize(turn.Text, maxTextLen),
	}
	if turn.ScreenAvailable && len(turn.Buttons) > 0 {
		out.Keyboard = buildKeyboard(turn.Buttons)
	}
	return json.Marshal(out)
}

func buildKeyboard(buttons []models.Button) json.RawMessage {
	type action struct {
		Type    string `json:"type"`
		Label   string `json:"label,omitempty"`
		Link    string `json:"link,omitempty"`
		Payload string `json:"payload,omitempty"`
	}
	type kbButton struct {
		Action action `json:"action"`
		Color  string `json:"color,omitempty"`
	}
	kb := struct {
		OneTime bool         `json:"one_time"`
		Buttons [][]kbButton `json:"buttons"`
	}{OneTime: true}
	for _, b := range buttons {
		act := action{Type: "text", Label: b.Title}
		if b.URL != "" {
			act = action{Type: "open_link", Label: b.Title, Link: b.URL}
		}
		if len(b.Payload) > 0 {
			act.Payload = string(b.Payload)
		}
		kb.Buttons = append(kb.Buttons, []kbButton{{Action: act, Color: "primary"}})
	}
	payload, err := json.Marshal(kb)
	if err != nil {
		return nil
	}
	return payload
}
