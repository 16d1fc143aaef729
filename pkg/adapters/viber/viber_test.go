package viber

import (
	"encoding/json"
	"strings"
	"testing"

	"umbot/go-core/pkg/models"
)

func TestNormalizeMessageEvent(t *testing.T) {
	raw := []byte(`{
		"event": "message",
		"timestamp": 1700000000,
		"message_token": 987,
		"sender": {"id": "viber-user-1", "name": "Иван"},
		"message": {"type": "text", "text": "Привет", "tracking_data": "{\"step\":3}"}
	}`)
	turn, err := New(Options{}).Normalize(raw)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if turn.UserID != "viber-user-1" || turn.SessionID != "viber-user-1" || turn.MessageID != 987 {
		t.Fatalf("unexpected ids %+v", turn)
	}
	if turn.Command != "привет" {
		t.Fatalf("unexpected command %q", turn.Command)
	}
	if !strings.Contains(string(turn.State), `"step":3`) {
		t.Fatalf("tracking_data must become state, got %s", turn.State)
	}
}

func TestNormalizeConversationStarted(t *testing.T) {
	raw := []byte(`{"event": "conversation_started", "user": {"id": "viber-user-2"}}`)
	turn, err := New(Options{}).Normalize(raw)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if !turn.IsFirstTurn || turn.MessageID != 0 || turn.UserID != "viber-user-2" {
		t.Fatalf("conversation_started opens the session, got %+v", turn)
	}
}

func TestWebhookEventAnswersStatusOK(t *testing.T) {
	turn, err := New(Options{}).Normalize([]byte(`{"event": "webhook", "timestamp": 1}`))
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if !turn.Pong {
		t.Fatal("webhook echo must short-circuit")
	}

	raw, err := New(Options{}).Render(turn)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	var ack struct {
		Status        int    `json:"status"`
		StatusMessage string `json:"status_message"`
	}
	if err := json.Unmarshal(raw, &ack); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ack.Status != 0 || ack.StatusMessage != "ok" {
		t.Fatalf("unexpected ack %+v", ack)
	}
}

func TestNormalizeRejects(t *testing.T) {
	if _, err := New(Options{}).Normalize([]byte(`{"event":"delivered"}`)); err == nil {
		t.Fatal("unsupported event must fail")
	}
	if _, err := New(Options{}).Normalize([]byte(`{"event":"message"}`)); err == nil {
		t.Fatal("message event without sender must fail")
	}
	if _, err := New(Options{}).Normalize([]byte(`{"event":"subscribed"}`)); err == nil {
		t.Fatal("subscribed without user must fail")
	}
}

func TestRenderSendMessage(t *testing.T) {
	turn := models.NewTurn(models.PlatformViber)
	turn.UserID = "viber-user-1"
	turn.Text = strings.Repeat("д", 8000)
	turn.State = json.RawMessage(`{"step":4}`)
	turn.ScreenAvailable = true
	turn.Buttons = []models.Button{
		{Title: "Ещё"},
		{Title: "Сайт", URL: "https://example.com"},
	}

	raw, err := New(Options{SenderName: "Бот"}).Render(turn)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	var out struct {
		Receiver     string `json:"receiver"`
		Sender       struct {
			Name string `json:"name"`
		} `json:"sender"`
		Text         string `json:"text"`
		TrackingData string `json:"tracking_data"`
		Keyboard     *struct {
			Buttons []struct {
				ActionType string `json:"ActionType"`
				ActionBody string `json:"ActionBody"`
			} `json:"Buttons"`
		} `json:"keyboard"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Receiver != "viber-user-1" || out.Sender.Name != "Бот" {
		t.Fatalf("unexpected envelope %+v", out)
	}
	if n := len([]rune(out.Text)); n != 7000 {
		t.Fatalf("text cap is 7000 runes, got %d", n)
	}
	if out.TrackingData != `{"step":4}` {
		t.Fatalf("state must round-trip via tracking_data, got %q", out.TrackingData)
	}
	if out.Keyboard == nil || len(out.Keyboard.Buttons) != 2 {
		t.Fatalf("unexpected keyboard %+v", out.Keyboard)
	}
	if out.Keyboard.Buttons[0].ActionType != "reply" || out.Keyboard.Buttons[1].ActionType != "open-url" {
		t.Fatalf("unexpected action types %+v", out.Keyboard.Buttons)
	}
	if out.Keyboard.Buttons[1].ActionBody != "https://example.com" {
		t.Fatalf("url button must carry the url, got %+v", out.Keyboard.Buttons[1])
	}
}
