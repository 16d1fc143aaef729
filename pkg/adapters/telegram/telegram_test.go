package telegram

import (
	"encoding/json"
	"strings"
	"testing"

	"umbot/go-core/pkg/adapters"
	"umbot/go-core/pkg/models"
)

func TestNormalizeMessage(t *testing.T) {
	raw := []byte(`{
		"update_id": 100,
		"message": {
			"message_id": 55,
			"from": {"id": 42, "username": "ivan"},
			"chat": {"id": -1001, "type": "group"},
			"text": "Закажи пиццу"
		}
	}`)
	turn, err := New().Normalize(raw)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if turn.UserID != "42" || turn.SessionID != "-1001" || turn.MessageID != 55 {
		t.Fatalf("unexpected ids %+v", turn)
	}
	if turn.Command != "закажи пиццу" {
		t.Fatalf("unexpected command %q", turn.Command)
	}
	if !turn.ScreenAvailable {
		t.Fatal("chats always have a screen")
	}
}

func TestNormalizeStartOpensSession(t *testing.T) {
	raw := []byte(`{
		"message": {
			"message_id": 1,
			"from": {"id": 42},
			"chat": {"id": 42, "type": "private"},
			"text": "/start"
		}
	}`)
	turn, err := New().Normalize(raw)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if !turn.IsFirstTurn || turn.MessageID != 0 || turn.Command != "" {
		t.Fatalf("/start must reset the session, got %+v", turn)
	}
}

func TestNormalizeCallbackQuery(t *testing.T) {
	raw := []byte(`{
		"callback_query": {
			"id": "cb1",
			"from": {"id": 42},
			"message": {"message_id": 7, "chat": {"id": 42, "type": "private"}},
			"data": "repeat"
		}
	}`)
	turn, err := New().Normalize(raw)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if turn.Command != "repeat" || turn.MessageID != 7 {
		t.Fatalf("unexpected callback turn %+v", turn)
	}
}

func TestNormalizeRejectsEmptyUpdate(t *testing.T) {
	if _, err := New().Normalize([]byte(`{"update_id":1}`)); err == nil {
		t.Fatal("update without message must fail")
	}
	if _, err := New().Normalize([]byte(`{"message":{"message_id":1,"text":"hi"}}`)); err == nil {
		t.Fatal("message without chat must fail")
	}
}

func TestRenderSendMessage(t *testing.T) {
	turn := models.NewTurn(models.PlatformTelegram)
	turn.SessionID = "-1001"
	turn.Text = strings.Repeat("г", 5000)
	turn.ScreenAvailable = true
	turn.Buttons = []models.Button{{Title: "Да"}, {Title: "Нет"}}

	raw, err := New().Render(turn)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	var out struct {
		Method      string `json:"method"`
		ChatID      string `json:"chat_id"`
		Text        string `json:"text"`
		ReplyMarkup *struct {
			Keyboard [][]struct {
				Text string `json:"text"`
			} `json:"keyboard"`
			OneTime bool `json:"one_time_keyboard"`
		} `json:"reply_markup"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Method != "sendMessage" || out.ChatID != "-1001" {
		t.Fatalf("unexpected envelope %+v", out)
	}
	if n := len([]rune(out.Text)); n != 4096 {
		t.Fatalf("text cap is 4096 runes, got %d", n)
	}
	if out.ReplyMarkup == nil || len(out.ReplyMarkup.Keyboard) != 2 || !out.ReplyMarkup.OneTime {
		t.Fatalf("expected one-time reply keyboard, got %+v", out.ReplyMarkup)
	}
}

func TestRenderInlineKeyboardForPayloadButtons(t *testing.T) {
	turn := models.NewTurn(models.PlatformTelegram)
	turn.SessionID = "42"
	turn.Text = "выбирайте"
	turn.ScreenAvailable = true
	turn.Buttons = []models.Button{
		{Title: "Повторить", Payload: json.RawMessage(`"repeat"`)},
		{Title: "Сайт", URL: "https://example.com"},
	}

	raw, err := New().Render(turn)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(string(raw), "inline_keyboard") {
		t.Fatalf("payload buttons need an inline keyboard, got %s", raw)
	}
	if strings.Contains(string(raw), `"keyboard"`) {
		t.Fatalf("reply keyboard must be absent, got %s", raw)
	}
}

func TestAdapterContract(t *testing.T) {
	var a adapters.Adapter = New()
	if a.Platform() != models.PlatformTelegram || a.Speaks() || a.LocalStorageCapable() {
		t.Fatalf("unexpected contract: %s speaks=%v local=%v", a.Platform(), a.Speaks(), a.LocalStorageCapable())
	}
}
