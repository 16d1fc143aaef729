// Package telegram implements the Telegram Bot API webhook adapter. Render
// produces a sendMessage body suitable for the webhook-reply shortcut or an
// outbound send client.
package telegram

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

const startCommand = "/start"

type Adapter struct{}

func New() *Adapter { return &Adapter{} }

func (a *Adapter) Platform() string                { return models.PlatformTelegram }
func (a *Adapter) ResponseDeadline() time.Duration { return deadline }
func (a *Adapter) Speaks() bool                    { return false }
func (a *Adapter) LocalStorageCapable() bool       { return false }

type update struct {
	UpdateID int64    `json:"update_id"`
	Message  *message `json:"message"`
	Callback *struct {
		ID      string   `json:"id"`
		From    *user    `json:"from"`
		Message *message `json:"message"`
		Data    string   `json:"data"`
	} `json:"callback_query"`
}

type message struct {
	MessageID int64 `json:"message_id"`
	From      *user `json:"from"`
	Chat      *struct {
		ID   int64  `json:"id"`
		Type string `json:"type"`
	} `json:"chat"`
	Date int64  `json:"date"`
	Text string `json:"text"`
}

type user struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
}

func (a *Adapter) Normalize(raw []byte) (*models.Turn, error) {
	var upd update
	if err := json.Unmarshal(raw, &upd); err != nil {
		return nil, adapters.NewParseError(models.PlatformTelegram, err.Error())
	}

	turn := models.NewTurn(models.PlatformTelegram)
	// Chats always have a screen.
	turn.ScreenAvailable = true

	switch {
	case upd.Callback != nil:
		msg := upd.Callback.Message
		if upd.Callback.From == nil || msg == nil || msg.Chat == nil {
			return nil, adapters.NewParseError(models.PlatformTelegram, "callback_query without from or message")
		}
		turn.UserID = strconv.FormatInt(upd.Callback.From.ID, 10)
		turn.SessionID = strconv.FormatInt(msg.Chat.ID, 10)
		turn.MessageID = msg.MessageID
		// Button payload, not free text: Command stays payload-derived.
		turn.Command = models.NormalizeCommand(upd.Callback.Data)
		turn.OriginalCommand = upd.Callback.Data
	case upd.Message != nil:
		msg := upd.Message
		if msg.From == nil || msg.Chat == nil {
			return nil, adapters.NewParseError(models.PlatformTelegram, "message without from or chat")
		}
		turn.UserID = strconv.FormatInt(msg.From.ID, 10)
		turn.SessionID = strconv.FormatInt(msg.Chat.ID, 10)
		turn.MessageID = msg.MessageID
		turn.SetCommand(msg.Text)
		// Telegram has no session counter; /start is the session opener.
		if turn.Command == startCommand {
			turn.MessageID = 0
			turn.IsFirstTurn = true
			turn.Command = ""
		}
	default:
		return nil, adapters.NewParseError(models.PlatformTelegram, "update carries no message or callback_query")
	}
	return turn, nil
}

type sendMessage struct {
	Method      string       `json:"method"`
	ChatID      string       `json:"chat_id"`
	Text        string       `json:"text"`
	ReplyMarkup *replyMarkup `json:"reply_markup,omitempty"`
}

type replyMarkup struct {
	InlineKeyboard [][]inlineButton `json:"inline_keyboard,omitempty"`
	Keyboard       [][]keyButton    `json:"keyboard,omitempty"`
	ResizeKeyboard bool             `json:"resize_keyboard,omitempty"`
	OneTime        bool             `json:"one_time_keyboard,omitempty"`
}

type inlineButton struct {
	Text         string `json:"text"`
	URL          string `json:"url,omitempty"`
	CallbackData string `json:"callback_data,omitempty"`
}

type keyButton struct {
	Text string `json:"text"`
}

func (a *Adapter) Render(turn *models.Turn) ([]byte, error) {
	adapters.CheckDeadline(turn, deadline, time.Now())

	out := sendMessage{
		Method: "sendMessage",
		ChatID: turn.SessionID,
		Text:   adapters.Resize(turn.Text, maxTextLen),
	}
	if turn.ScreenAvailable && len(turn.Buttons) > 0 {
		out.ReplyMarkup = buildMarkup(turn.Buttons)
	}
	return json.Marshal(out)
}

// buildMarkup uses an inline keyboard when any button carries a URL or
// payload, otherwise a one-time reply keyboard.
func buildMarkup(buttons []models.Button) *replyMarkup {
	inline := false
	for _, b := range buttons {
		if b.URL != "" || len(b.Payload) > 0 {
			inline = true
			break
		}
	}
	markup := &replyMarkup{}
	if inline {
		for _, b := range buttons {
			btn := inlineButton{Text: b.Title, URL: b.URL}
			if len(b.Payload) > 0 {
				btn.CallbackData = string(b.Payload)
			}
			markup.InlineKeyboard = append(markup.InlineKeyboard, []inlineButton{btn})
		}
		return markup
	}
	markup.ResizeKeyboard = true
	markup.OneTime = true
	for _, b := range buttons {
		markup.Keyboard = append(markup.Keyboard, []keyButton{{Text: b.Title}})
	}
	return markup
}
