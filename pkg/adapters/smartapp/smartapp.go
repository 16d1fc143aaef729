// Package smartapp implements the Sber SmartApp webhook adapter with its
// messageName-tagged envelope.
package smartapp

import (
	"encoding/json"
	"time"

	"umbot/go-core/pkg/adapters"
	"umbot/go-core/pkg/models"
)

const (
	maxBubbleLen    = 250
	maxPronounceLen = 1024
	deadline        = 2800 * time.Millisecond
)

// Inbound message names.
const (
	MessageToSkill = "MESSAGE_TO_SKILL"
	ServerAction   = "SERVER_ACTION"
	RunApp         = "RUN_APP"
	CloseApp       = "CLOSE_APP"
)

const answerToUser = "ANSWER_TO_USER"

type Adapter struct{}

func New() *Adapter { return &Adapter{} }

func (a *Adapter) Platform() string                { return models.PlatformSmartApp }
func (a *Adapter) ResponseDeadline() time.Duration { return deadline }
func (a *Adapter) Speaks() bool                    { return true }
func (a *Adapter) LocalStorageCapable() bool       { return false }

type request struct {
	MessageName string `json:"messageName"`
	MessageID   int64  `json:"messageId"`
	SessionID   string `json:"sessionId"`
	UUID        *struct {
		UserChannel string `json:"userChannel"`
		Sub         string `json:"sub"`
		UserID      string `json:"userId"`
	} `json:"uuid"`
	Payload *struct {
		Message *struct {
			OriginalText   string `json:"original_text"`
			NormalizedText string `json:"normalized_text"`
		} `json:"message"`
		ServerAction *struct {
			ActionID   string          `json:"action_id"`
			Parameters json.RawMessage `json:"parameters"`
		} `json:"server_action"`
		Device *struct {
			Capabilities struct {
				Screen struct {
					Available bool `json:"available"`
				} `json:"screen"`
			} `json:"capabilities"`
		} `json:"device"`
		NewSession bool `json:"new_session"`
	} `json:"payload"`
}

func (a *Adapter) Normalize(raw []byte) (*models.Turn, error) {
	var req request
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, adapters.NewParseError(models.PlatformSmartApp, err.Error())
	}
	if req.MessageName == "" || req.UUID == nil || req.Payload == nil {
		return nil, adapters.NewParseError(models.PlatformSmartApp, "missing messageName, uuid or payload")
	}

	turn := models.NewTurn(models.PlatformSmartApp)
	turn.SessionID = req.SessionID
	turn.MessageID = req.MessageID
	// sub is the channel-stable identifier; userId is device-scoped.
	if req.UUID.Sub != "" {
		turn.UserID = req.UUID.Sub
	} else {
		turn.UserID = req.UUID.UserID
	}
	if req.Payload.Device != nil {
		turn.ScreenAvailable = req.Payload.Device.Capabilities.Screen.Available
	}

	switch req.MessageName {
	case MessageToSkill:
		if req.Payload.Message == nil {
			return nil, adapters.NewParseError(models.PlatformSmartApp, "MESSAGE_TO_SKILL without message")
		}
		turn.SetCommand(req.Payload.Message.OriginalText)
		if turn.Command == "" {
			turn.Command = models.NormalizeCommand(req.Payload.Message.NormalizedText)
		}
		turn.IsFirstTurn = req.Payload.NewSession
	case ServerAction:
		if req.Payload.ServerAction != nil {
			turn.Command = models.NormalizeCommand(req.Payload.ServerAction.ActionID)
		}
	case RunApp:
		turn.IsFirstTurn = true
		turn.MessageID = 0
	case CloseApp:
		turn.EndSession = true
	default:
		return nil, adapters.NewParseError(models.PlatformSmartApp, "unsupported messageName "+req.MessageName)
	}

	if turn.Command == adapters.PingCommand {
		turn.Pong = true
		turn.Text = adapters.PongReply
	}
	return turn, nil
}

type response struct {
	MessageName string       `json:"messageName"`
	MessageID   int64        `json:"messageId"`
	SessionID   string       `json:"sessionId"`
	UUID        *userUUID    `json:"uuid,omitempty"`
	Payload     answerMapper `json:"payload"`
}

type userUUID struct {
	UserChannel string `json:"userChannel,omitempty"`
	Sub         string `json:"sub,omitempty"`
	UserID      string `json:"userId,omitempty"`
}

type answerMapper struct {
	PronounceText     string       `json:"pronounceText,omitempty"`
	PronounceTextType string       `json:"pronounceTextType,omitempty"`
	Items             []answerItem `json:"items,omitempty"`
	Suggestions       *suggestions `json:"suggestions,omitempty"`
	AutoListening     bool         `json:"auto_listening"`
	Finished          bool         `json:"finished"`
}

type answerItem struct {
	Bubble *bubble         `json:"bubble,omitempty"`
	Card   json.RawMessage `json:"card,omitempty"`
}

type bubble struct {
	Text string `json:"text"`
}

type suggestions struct {
	Buttons []suggestButton `json:"buttons"`
}

type suggestButton struct {
	Title  string        `json:"title"`
	Action suggestAction `json:"action"`
}

type suggestAction struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

func (a *Adapter) Render(turn *models.Turn) ([]byte, error) {
	adapters.CheckDeadline(turn, deadline, time.Now())

	payload := answerMapper{
		PronounceText:     adapters.Resize(turn.TTS, maxPronounceLen),
		PronounceTextType: "application/text",
		Finished:          turn.EndSession,
	}
	if turn.Text != "" {
		payload.Items = append(payload.Items, answerItem{Bubble: &bubble{Text: adapters.Resize(turn.Text, maxBubbleLen)}})
	}
	if turn.ScreenAvailable {
		for _, c := range turn.Cards {
			if card := renderCard(c); card != nil {
				payload.Items = append(payload.Items, answerItem{Card: card})
			}
		}
		if len(turn.Buttons) > 0 {
			s := &suggestions{}
			for _, b := range turn.Buttons {
				s.Buttons = append(s.Buttons, suggestButton{
					Title:  b.Title,
					Action: suggestAction{Type: "text", Text: b.Title},
				})
			}
			payload.Suggestions = s
		}
	}

	resp := response{
		MessageName: answerToUser,
		MessageID:   turn.MessageID,
		SessionID:   turn.SessionID,
		Payload:     payload,
	}
	if turn.UserID != "" {
		resp.UUID = &userUUID{Sub: turn.UserID}
	}
	return json.Marshal(resp)
}

func renderCard(c models.Card) json.RawMessage {
	payload, err := json.Marshal(map[string]any{
		"type": "list_card",
		"cells": []map[string]any{{
			"type": "text_cell_view",
			"content": map[string]any{
				"text":     adapters.Resize(c.Title, maxBubbleLen),
				"typeface": "body1",
			},
		}},
	})
	if err != nil {
		return nil
	}
	return payload
}
