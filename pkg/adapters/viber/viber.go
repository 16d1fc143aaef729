// Package viber implements the Viber REST API webhook adapter. Render
// produces a send_message body for the outbound client; the set-webhook
// echo event is answered inline.
package viber

import (
	"encoding/json"
	"time"

	"umbot/go-core/pkg/adapters"
	"umbot/go-core/pkg/models"
)

const (
	maxTextLen    = 7000
	deadline      = 5 * time.Second
	minAPIVersion = 1
)

// Inbound event types.
const (
	EventMessage             = "message"
	EventConversationStarted = "conversation_started"
	EventSubscribed          = "subscribed"
	EventWebhook             = "webhook"
)

// Options configures the sender identity embedded in replies.
type Options struct {
	SenderName   string
	SenderAvatar string
}

type Adapter struct {
	opts Options
}

func New(opts Options) *Adapter { return &Adapter{opts: opts} }

func (a *Adapter) Platform() string                { return models.PlatformViber }
func (a *Adapter) ResponseDeadline() time.Duration { return deadline }
func (a *Adapter) Speaks() bool                    { return false }
func (a *Adapter) LocalStorageCapable() bool       { return false }

type callback struct {
	Event        string `json:"event"`
	Timestamp    int64  `json:"timestamp"`
	MessageToken int64  `json:"message_token"`
	Sender       *struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"sender"`
	User *struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"user"`
	Message *struct {
		Type         string `json:"type"`
		Text         string `json:"text"`
		TrackingData string `json:"tracking_data"`
	} `json:"message"`
}

func (a *Adapter) Normalize(raw []byte) (*models.Turn, error) {
	var cb callback
	if err := json.Unmarshal(raw, &cb); err != nil {
		return nil, adapters.NewParseError(models.PlatformViber, err.Error())
	}

	turn := models.NewTurn(models.PlatformViber)
	turn.ScreenAvailable = true

	switch cb.Event {
	case EventWebhook:
		// Set-webhook validation ping: answer status ok immediately.
		turn.Pong = true
		return turn, nil
	case EventConversationStarted, EventSubscribed:
		if cb.User == nil || cb.User.ID == "" {
			return nil, adapters.NewParseError(models.PlatformViber, cb.Event+" without user")
		}
		turn.UserID = cb.User.ID
		turn.SessionID = cb.User.ID
		turn.MessageID = 0
		turn.IsFirstTurn = true
		return turn, nil
	case EventMessage:
		if cb.Sender == nil || cb.Sender.ID == "" || cb.Message == nil {
			return nil, adapters.NewParseError(models.PlatformViber, "message event without sender or message")
		}
		turn.UserID = cb.Sender.ID
		turn.SessionID = cb.Sender.ID
		turn.MessageID = cb.MessageToken
		turn.SetCommand(cb.Message.Text)
		if cb.Message.TrackingData != "" {
			turn.State = json.RawMessage(cb.Message.TrackingData)
		}
		return turn, nil
	default:
		return nil, adapters.NewParseError(models.PlatformViber, "unsupported event "+cb.Event)
	}
}

type webhookAck struct {
	Status        int    `json:"status"`
	StatusMessage string `json:"status_message"`
}

type sendMessage struct {
	Receiver      string          `json:"receiver"`
	MinAPIVersion int             `json:"min_api_version"`
	Sender        sender          `json:"sender"`
	Type          string          `json:"type"`
	Text          string          `json:"text"`
	TrackingData  string          `json:"tracking_data,omitempty"`
	Keyboard      json.RawMessage `json:"keyboard,omitempty"`
}

type sender struct {
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}

func (a *Adapter) Render(turn *models.Turn) ([]byte, error) {
	adapters.CheckDeadline(turn, deadline, time.Now())

	if turn.Pong {
		return json.Marshal(webhookAck{Status: 0, StatusMessage: "ok"})
	}

	out := sendMessage{
		Receiver:      turn.UserID,
		MinAPIVersion: minAPIVersion,
		Sender:        sender{Name: a.opts.SenderName, Avatar: a.opts.SenderAvatar},
		Type:          "text",
		Text:          adapters.Resize(turn.Text, maxTextLen),
	}
	if len(turn.State) > 0 {
		out.TrackingData = string(turn.State)
	}
	if turn.ScreenAvailable && len(turn.Buttons) > 0 {
		out.Keyboard = buildKeyboard(turn.Buttons)
	}
	return json.Marshal(out)
}

func buildKeyboard(buttons []models.Button) json.RawMessage {
	type kbButton struct {
		ActionType string `json:"ActionType"`
		ActionBody string `json:"ActionBody"`
		Text       string `json:"Text"`
	}
	kb := struct {
		Type    string     `json:"Type"`
		Buttons []kbButton `json:"Buttons"`
	}{Type: "keyboard"}
	for _, b := range buttons {
		btn := kbButton{ActionType: "reply", ActionBody: b.Title, Text: b.Title}
		if b.URL != "" {
			btn.ActionType = "open-url"
			btn.ActionBody = b.URL
		}
		kb.Buttons = append(kb.Buttons, btn)
	}
	payload, err := json.Marshal(kb)
	if err != nil {
		return nil
	}
	return payload
}
