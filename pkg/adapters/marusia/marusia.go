// Package marusia implements the VK Marusia webhook adapter. The envelope
// mirrors the Yandex family but has no application-level state and no
// account linking.
package marusia

import (
	"encoding/json"
	"time"

	"umbot/go-core/pkg/adapters"
	"umbot/go-core/pkg/models"
)

const (
	maxTextLen = 1024
	deadline   = 2800 * time.Millisecond
	version    = "1.0"
)

// State namespaces, in selection priority order.
const (
	NamespaceUser    = "user_state_update"
	NamespaceSession = "session_state"
)

type Adapter struct{}

func New() *Adapter { return &Adapter{} }

func (a *Adapter) Platform() string                { return models.PlatformMarusia }
func (a *Adapter) ResponseDeadline() time.Duration { return deadline }
func (a *Adapter) Speaks() bool                    { return true }
func (a *Adapter) LocalStorageCapable() bool       { return true }

type request struct {
	Meta struct {
		Interfaces map[string]json.RawMessage `json:"interfaces"`
	} `json:"meta"`
	Session *struct {
		New       bool   `json:"new"`
		MessageID int64  `json:"message_id"`
		SessionID string `json:"session_id"`
		UserID    string `json:"user_id"`
		User      *struct {
			UserID string `json:"user_id"`
		} `json:"user"`
		Application *struct {
			ApplicationID string `json:"application_id"`
		} `json:"application"`
	} `json:"session"`
	Request *struct {
		Command           string          `json:"command"`
		OriginalUtterance string          `json:"original_utterance"`
		Type              string          `json:"type"`
		Payload           json.RawMessage `json:"payload"`
	} `json:"request"`
	State *struct {
		Session json.RawMessage `json:"session"`
		User    json.RawMessage `json:"user"`
	} `json:"state"`
	Version string `json:"version"`
}

func (a *Adapter) Normalize(raw []byte) (*models.Turn, error) {
	var req request
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, adapters.NewParseError(models.PlatformMarusia, err.Error())
	}
	if req.Session == nil || req.Request == nil {
		return nil, adapters.NewParseError(models.PlatformMarusia, "missing session or request block")
	}

	turn := models.NewTurn(models.PlatformMarusia)
	turn.SessionID = req.Session.SessionID
	turn.MessageID = req.Session.MessageID
	turn.IsFirstTurn = req.Session.New || req.Session.MessageID == 0
	switch {
	case req.Session.User != nil && req.Session.User.UserID != "":
		turn.UserID = req.Session.User.UserID
	case req.Session.Application != nil && req.Session.Application.ApplicationID != "":
		turn.UserID = req.Session.Application.ApplicationID
	default:
		turn.UserID = req.Session.UserID
	}

	turn.SetCommand(req.Request.OriginalUtterance)
	if turn.Command == "" {
		turn.Command = models.NormalizeCommand(req.Request.Command)
	}
	_, turn.ScreenAvailable = req.Meta.Interfaces["screen"]

	turn.StateNamespace = NamespaceSession
	if req.State != nil {
		if req.State.User != nil {
			turn.StateNamespace = NamespaceUser
			turn.State = req.State.User
		} else {
			turn.State = req.State.Session
		}
	}

	if turn.Command == adapters.PingCommand {
		turn.Pong = true
		turn.Text = adapters.PongReply
	}
	return turn, nil
}

type responseBody struct {
	Text       string   `json:"text"`
	TTS        string   `json:"tts,omitempty"`
	Buttons    []button `json:"buttons,omitempty"`
	EndSession bool     `json:"end_session"`
}

type button struct {
	Title   string          `json:"title"`
	URL     string          `json:"url,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type response struct {
	Response        responseBody    `json:"response"`
	SessionState    json.RawMessage `json:"session_state,omitempty"`
	UserStateUpdate json.RawMessage `json:"user_state_update,omitempty"`
	Version         string          `json:"version"`
}

func (a *Adapter) Render(turn *models.Turn) ([]byte, error) {
	adapters.CheckDeadline(turn, deadline, time.Now())

	body := responseBody{
		Text:       adapters.Resize(turn.Text, maxTextLen),
		TTS:        adapters.Resize(turn.TTS, maxTextLen),
		EndSession: turn.EndSession,
	}
	if turn.ScreenAvailable {
		for _, b := range turn.Buttons {
			body.Buttons = append(body.Buttons, button{Title: b.Title, URL: b.URL, Payload: b.Payload})
		}
	}

	resp := response{Response: body, Version: version}
	state := turn.State
	if len(state) == 0 {
		state = json.RawMessage(`{}`)
	}
	if turn.StateNamespace == NamespaceUser {
		resp.UserStateUpdate = state
	} else {
		resp.SessionState = state
	}
	return json.Marshal(resp)
}
