package smartapp

import (
	"encoding/json"
	"strings"
	"testing"

	"umbot/go-core/pkg/adapters"
	"umbot/go-core/pkg/models"
)

func messageToSkill(text string) []byte {
	return []byte(`{
		"messageName": "MESSAGE_TO_SKILL",
		"messageId": 12,
		"sessionId": "sess-s",
		"uuid": {"userChannel": "B2C", "sub": "sub-1", "userId": "device-1"},
		"payload": {
			"message": {"original_text": "` + text + `", "normalized_text": "` + text + `"},
			"device": {"capabilities": {"screen": {"available": true}}},
			"new_session": false
		}
	}`)
}

func TestNormalizeMessageToSkill(t *testing.T) {
	turn, err := New().Normalize(messageToSkill("Включи свет"))
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if turn.Command != "включи свет" || turn.OriginalCommand != "Включи свет" {
		t.Fatalf("unexpected command %q / %q", turn.Command, turn.OriginalCommand)
	}
	if turn.UserID != "sub-1" {
		t.Fatalf("sub must win over device userId, got %q", turn.UserID)
	}
	if turn.MessageID != 12 || turn.SessionID != "sess-s" || !turn.ScreenAvailable {
		t.Fatalf("unexpected session fields %+v", turn)
	}
}

func TestNormalizeServerAction(t *testing.T) {
	raw := []byte(`{
		"messageName": "SERVER_ACTION",
		"messageId": 3,
		"sessionId": "sess-s",
		"uuid": {"userId": "device-1"},
		"payload": {"server_action": {"action_id": "REPEAT"}}
	}`)
	turn, err := New().Normalize(raw)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if turn.Command != "repeat" {
		t.Fatalf("action id becomes the command, got %q", turn.Command)
	}
	if turn.UserID != "device-1" {
		t.Fatalf("device id is the fallback, got %q", turn.UserID)
	}
}

func TestNormalizeRunAndCloseApp(t *testing.T) {
	raw := []byte(`{"messageName":"RUN_APP","messageId":9,"sessionId":"s","uuid":{"sub":"u"},"payload":{}}`)
	turn, err := New().Normalize(raw)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if !turn.IsFirstTurn || turn.MessageID != 0 {
		t.Fatalf("RUN_APP opens a fresh session, got %+v", turn)
	}

	raw = []byte(`{"messageName":"CLOSE_APP","messageId":9,"sessionId":"s","uuid":{"sub":"u"},"payload":{}}`)
	turn, err = New().Normalize(raw)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if !turn.EndSession {
		t.Fatal("CLOSE_APP must end the session")
	}
}

func TestNormalizeRejects(t *testing.T) {
	if _, err := New().Normalize([]byte(`{"messageName":"WHO_KNOWS","uuid":{},"payload":{}}`)); err == nil {
		t.Fatal("unknown messageName must fail")
	}
	if _, err := New().Normalize([]byte(`{"messageName":"MESSAGE_TO_SKILL","uuid":{},"payload":{}}`)); err == nil {
		t.Fatal("MESSAGE_TO_SKILL without message must fail")
	}
	if _, err := New().Normalize([]byte(`{}`)); err == nil {
		t.Fatal("empty envelope must fail")
	}
}

func TestNormalizePing(t *testing.T) {
	turn, err := New().Normalize(messageToSkill("ping"))
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if !turn.Pong || turn.Text != adapters.PongReply {
		t.Fatalf("expected pong, got %+v", turn)
	}
}

func TestRenderAnswerToUser(t *testing.T) {
	turn := models.NewTurn(models.PlatformSmartApp)
	turn.MessageID = 12
	turn.SessionID = "sess-s"
	turn.UserID = "sub-1"
	turn.Text = strings.Repeat("в", 300)
	turn.TTS = "короткая озвучка"
	turn.ScreenAvailable = true
	turn.Buttons = []models.Button{{Title: "Повторить"}}

	raw, err := New().Render(turn)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	var resp struct {
		MessageName string `json:"messageName"`
		MessageID   int64  `json:"messageId"`
		SessionID   string `json:"sessionId"`
		Payload     struct {
			PronounceText string `json:"pronounceText"`
			Items         []struct {
				Bubble *struct {
					Text string `json:"text"`
				} `json:"bubble"`
			} `json:"items"`
			Suggestions *struct {
				Buttons []struct {
					Title string `json:"title"`
				} `json:"buttons"`
			} `json:"suggestions"`
			Finished bool `json:"finished"`
		} `json:"payload"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.MessageName != "ANSWER_TO_USER" || resp.MessageID != 12 || resp.SessionID != "sess-s" {
		t.Fatalf("unexpected envelope %+v", resp)
	}
	if len(resp.Payload.Items) != 1 || resp.Payload.Items[0].Bubble == nil {
		t.Fatalf("expected one bubble, got %+v", resp.Payload.Items)
	}
	if n := len([]rune(resp.Payload.Items[0].Bubble.Text)); n != 250 {
		t.Fatalf("bubble cap is 250 runes, got %d", n)
	}
	if resp.Payload.PronounceText != "короткая озвучка" {
		t.Fatalf("unexpected pronounce %q", resp.Payload.PronounceText)
	}
	if resp.Payload.Suggestions == nil || resp.Payload.Suggestions.Buttons[0].Title != "Повторить" {
		t.Fatalf("unexpected suggestions %+v", resp.Payload.Suggestions)
	}
}

func TestRenderWithoutScreenDropsSuggestions(t *testing.T) {
	turn := models.NewTurn(models.PlatformSmartApp)
	turn.Text = "ответ"
	turn.Buttons = []models.Button{{Title: "Ещё"}}
	turn.Cards = []models.Card{{Title: "Карточка"}}

	raw, err := New().Render(turn)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if strings.Contains(string(raw), "suggestions") || strings.Contains(string(raw), "card") {
		t.Fatalf("no rich UI without screen, got %s", raw)
	}
}
