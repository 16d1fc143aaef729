package storage

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"umbot/go-core/internal/testutil/fsperm"
	"umbot/go-core/pkg/bot"
)

func TestFileStoreRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "state")
	store, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	fsperm.AssertStateDirPrivate(t, dir)

	if _, err := store.Load("user-1"); !errors.Is(err, bot.ErrStateNotFound) {
		t.Fatalf("expected ErrStateNotFound, got %v", err)
	}

	state := json.RawMessage(`{"count":3}`)
	if err := store.Save("user-1", state); err != nil {
		t.Fatalf("save: %v", err)
	}
	fsperm.AssertStateFilePrivate(t, filepath.Join(dir, hex.EncodeToString([]byte("user-1"))+".json"))
	got, err := store.Load("user-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if string(got) != `{"count":3}` {
		t.Fatalf("unexpected state %s", got)
	}
}

func TestFileStoreSanitizesUserID(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	// Path-looking ids must stay inside the store directory.
	if err := store.Save("../escape", json.RawMessage(`{}`)); err != nil {
		t.Fatalf("save: %v", err)
	}
	if _, err := store.Load("../escape"); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := store.Save("  ", nil); err == nil {
		t.Fatal("empty user id must fail")
	}
}

func TestMemoryStoreIsolatesCallers(t *testing.T) {
	store := NewMemoryStore()
	state := json.RawMessage(`{"a":1}`)
	if err := store.Save("u", state); err != nil {
		t.Fatalf("save: %v", err)
	}
	state[2] = 'x' // mutate caller copy after save

	got, err := store.Load("u")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if string(got) != `{"a":1}` {
		t.Fatalf("stored state must be isolated, got %s", got)
	}
	got[2] = 'y'
	again, _ := store.Load("u")
	if string(again) != `{"a":1}` {
		t.Fatalf("loaded state must be a copy, got %s", again)
	}
}
