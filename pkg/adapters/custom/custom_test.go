package custom

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"umbot/go-core/pkg/models"
)

func TestNormalizeGeneratesSessionID(t *testing.T) {
	a := New(Options{})
	turn, err := a.Normalize([]byte(`{"user_id": "u1", "command": "Привет"}`))
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if turn.SessionID == "" {
		t.Fatal("missing session_id must be generated")
	}
	if !turn.IsFirstTurn {
		t.Fatal("message_id zero means a fresh session")
	}
	if turn.Command != "привет" || turn.OriginalCommand != "Привет" {
		t.Fatalf("unexpected command %q / %q", turn.Command, turn.OriginalCommand)
	}

	other, err := a.Normalize([]byte(`{"user_id": "u1", "command": "Привет"}`))
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if other.SessionID == turn.SessionID {
		t.Fatal("generated session ids must differ")
	}
}

func TestNormalizeKeepsProvidedFields(t *testing.T) {
	raw := []byte(`{"user_id": "u1", "session_id": "s1", "message_id": 8, "command": "дальше", "screen": true, "state": {"step": 1}}`)
	turn, err := New(Options{}).Normalize(raw)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if turn.SessionID != "s1" || turn.MessageID != 8 || turn.IsFirstTurn {
		t.Fatalf("unexpected session fields %+v", turn)
	}
	if !turn.ScreenAvailable || !strings.Contains(string(turn.State), "step") {
		t.Fatalf("unexpected screen/state %+v", turn)
	}
	if turn.StateNamespace != "state" {
		t.Fatalf("unexpected namespace %q", turn.StateNamespace)
	}
}

func TestNormalizeRequiresUserID(t *testing.T) {
	if _, err := New(Options{}).Normalize([]byte(`{"command": "привет"}`)); err == nil {
		t.Fatal("missing user_id must fail")
	}
	if _, err := New(Options{}).Normalize([]byte(`not json`)); err == nil {
		t.Fatal("invalid json must fail")
	}
}

func TestRenderRespectsOptions(t *testing.T) {
	turn := models.NewTurn(models.PlatformCustom)
	turn.SessionID = "s1"
	turn.Text = strings.Repeat("ж", 200)
	turn.TTS = "озвучка"
	turn.State = json.RawMessage(`{"step":2}`)

	raw, err := New(Options{MaxTextLen: 100, Speaks: true}).Render(turn)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	var out struct {
		Text      string          `json:"text"`
		TTS       string          `json:"tts"`
		State     json.RawMessage `json:"state"`
		SessionID string          `json:"session_id"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if n := len([]rune(out.Text)); n != 100 {
		t.Fatalf("configured cap is 100 runes, got %d", n)
	}
	if out.TTS != "озвучка" || out.SessionID != "s1" {
		t.Fatalf("unexpected response %+v", out)
	}
	if string(out.State) != `{"step":2}` {
		t.Fatalf("state must round-trip, got %s", out.State)
	}
}

func TestRenderMuteChannelOmitsTTS(t *testing.T) {
	turn := models.NewTurn(models.PlatformCustom)
	turn.Text = "ответ"
	turn.TTS = "не должно уйти"

	raw, err := New(Options{}).Render(turn)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if strings.Contains(string(raw), "tts") {
		t.Fatalf("mute channel must not emit tts, got %s", raw)
	}
}

func TestOptionsDefaults(t *testing.T) {
	a := New(Options{})
	if a.Platform() != models.PlatformCustom {
		t.Fatalf("unexpected platform %q", a.Platform())
	}
	if a.ResponseDeadline() != 5*time.Second {
		t.Fatalf("unexpected deadline %v", a.ResponseDeadline())
	}
	if !a.LocalStorageCapable() {
		t.Fatal("generic channel keeps state on the wire")
	}

	named := New(Options{Platform: "alexa", Deadline: time.Second})
	if named.Platform() != "alexa" || named.ResponseDeadline() != time.Second {
		t.Fatalf("options must override defaults: %q %v", named.Platform(), named.ResponseDeadline())
	}
}
