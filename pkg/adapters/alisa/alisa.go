// Package alisa implements the Yandex Dialogs webhook adapter.
// Envelope reference: https://yandex.ru/dev/dialogs/alice/doc/request.html
package alisa

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
	NamespaceUser        = "user_state_update"
	NamespaceApplication = "application_state"
	NamespaceSession     = "session_state"
)

// Options configures platform-specific behavior.
type Options struct {
	// UseAuthorizedUser prefers the authorized Yandex account id over the
	// application id when resolving the turn's user id.
	UseAuthorizedUser bool
}

type Adapter struct {
	opts Options
}

func New(opts Options) *Adapter { return &Adapter{opts: opts} }

func (a *Adapter) Platform() string                { return models.PlatformAlisa }
func (a *Adapter) ResponseDeadline() time.Duration { return deadline }
func (a *Adapter) Speaks() bool                    { return true }
func (a *Adapter) LocalStorageCapable() bool       { return true }

type request struct {
	Meta struct {
		Locale     string                     `json:"locale"`
		Timezone   string                     `json:"timezone"`
		Interfaces map[string]json.RawMessage `json:"interfaces"`
	} `json:"meta"`
	Session *struct {
		New       bool   `json:"new"`
		MessageID int64  `json:"message_id"`
		SessionID string `json:"session_id"`
		SkillID   string `json:"skill_id"`
		UserID    string `json:"user_id"`
		User      *struct {
			UserID      string `json:"user_id"`
			AccessToken string `json:"access_token"`
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
		Session     json.RawMessage `json:"session"`
		User        json.RawMessage `json:"user"`
		Application json.RawMessage `json:"application"`
	} `json:"state"`
	AccountLinkingComplete *struct{} `json:"account_linking_complete_event"`
	Version                string    `json:"version"`
}

func (a *Adapter) Normalize(raw []byte) (*models.Turn, error) {
	var req request
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, adapters.NewParseError(models.PlatformAlisa, err.Error())
	}

	turn := models.NewTurn(models.PlatformAlisa)

	// Account-linking completion arrives as a bare event: mark auth done
	// and let the application greet the freshly linked user.
	if req.AccountLinkingComplete != nil {
		turn.AuthSucceeded = true
		if req.Session != nil {
			fillSession(turn, &req, a.opts)
		}
		return turn, nil
	}

	if req.Session == nil || req.Request == nil {
		return nil, adapters.NewParseError(models.PlatformAlisa, "missing session or request block")
	}

	fillSession(turn, &req, a.opts)
	turn.SetCommand(req.Request.OriginalUtterance)
	if turn.Command == "" {
		turn.Command = models.NormalizeCommand(req.Request.Command)
	}
	_, turn.ScreenAvailable = req.Meta.Interfaces["screen"]

	if req.State != nil {
		switch {
		case req.State.User != nil:
			turn.StateNamespace = NamespaceUser
			turn.State = req.State.User
		case req.State.Application != nil:
			turn.StateNamespace = NamespaceApplication
			turn.State = req.State.Application
		default:
			turn.StateNamespace = NamespaceSession
			turn.State = req.State.Session
		}
	} else {
		turn.StateNamespace = NamespaceSession
	}

	if turn.Command == adapters.PingCommand {
		turn.Pong = true
		turn.Text = adapters.PongReply
	}
	return turn, nil
}

func fillSession(turn *models.Turn, req *request, opts Options) {
	s := req.Session
	turn.SessionID = s.SessionID
	turn.MessageID = s.MessageID
	turn.IsFirstTurn = s.New || s.MessageID == 0
	if s.User != nil {
		turn.AccessToken = s.User.AccessToken
	}
	switch {
	case opts.UseAuthorizedUser && s.User != nil && s.User.UserID != "":
		turn.UserID = s.User.UserID
	case s.Application != nil && s.Application.ApplicationID != "":
		turn.UserID = s.Application.ApplicationID
	default:
		turn.UserID = s.UserID
	}
}

type responseBody struct {
	Text       string          `json:"text"`
	TTS        string          `json:"tts,omitempty"`
	Buttons    []button        `json:"buttons,omitempty"`
	Card       json.RawMessage `json:"card,omitempty"`
	EndSession bool            `json:"end_session"`
}

type button struct {
	Title   string          `json:"title"`
	URL     string          `json:"url,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Hide    bool            `json:"hide"`
}

type response struct {
	Response            *responseBody   `json:"response,omitempty"`
	SessionState        json.RawMessage `json:"session_state,omitempty"`
	UserStateUpdate     json.RawMessage `json:"user_state_update,omitempty"`
	ApplicationState    json.RawMessage `json:"application_state,omitempty"`
	StartAccountLinking *struct{}       `json:"start_account_linking,omitempty"`
	Version             string          `json:"version"`
}

func (a *Adapter) Render(turn *models.Turn) ([]byte, error) {
	adapters.CheckDeadline(turn, deadline, time.Now())

	// Application asked for auth and the user carries no token yet:
	// answer with the account-linking directive instead of a reply.
	if turn.RequiresAuth && turn.AccessToken == "" && !turn.AuthSucceeded {
		return json.Marshal(response{StartAccountLinking: &struct{}{}, Version: version})
	}

	body := &responseBody{
		Text:       adapters.Resize(turn.Text, maxTextLen),
		TTS:        adapters.Resize(turn.TTS, maxTextLen),
		EndSession: turn.EndSession,
	}
	if turn.ScreenAvailable {
		body.Buttons = renderButtons(turn.Buttons)
		body.Card = renderCard(turn.Cards)
	}

	resp := response{Response: body, Version: version}
	switch turn.StateNamespace {
	case NamespaceUser:
		resp.UserStateUpdate = stateOrEmpty(turn.State)
	case NamespaceApplication:
		resp.ApplicationState = stateOrEmpty(turn.State)
	default:
		resp.SessionState = stateOrEmpty(turn.State)
	}
	return json.Marshal(resp)
}

func renderButtons(in []models.Button) []button {
	if len(in) == 0 {
		return nil
	}
	out := make([]button, 0, len(in))
	for _, b := range in {
		out = append(out, button{Title: b.Title, URL: b.URL, Payload: b.Payload, Hide: b.Hide})
	}
	return out
}

// renderCard maps the first configured card onto Alisa's BigImage shape.
func renderCard(cards []models.Card) json.RawMessage {
	if len(cards) == 0 {
		return nil
	}
	c := cards[0]
	payload, err := json.Marshal(map[string]any{
		"type":        "BigImage",
		"image_id":    c.ImageID,
		"title":       adapters.Resize(c.Title, 128),
		"description": adapters.Resize(c.Description, 256),
	})
	if err != nil {
		return nil
	}
	return payload
}

func stateOrEmpty(state json.RawMessage) json.RawMessage {
	if len(state) == 0 {
		return json.RawMessage(`{}`)
	}
	return state
}
