// Package storage persists per-user state for platforms without native
// session state in the wire payload.
package storage

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"umbot/go-core/pkg/bot"
)

// FileStore keeps one JSON document per user under dir.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

func NewFileStore(dir string) (*FileStore, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, errors.New("storage dir is required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) Load(userID string) (json.RawMessage, error) {
	path, err := s.path(userID)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, bot.ErrStateNotFound
	}
	if err != nil {
		return nil, err
	}
	if !json.Valid(data) {
		return nil, errors.New("corrupt state file for user")
	}
	return data, nil
}

func (s *FileStore) Save(userID string, state json.RawMessage) error {
	path, err := s.path(userID)
	if err != nil {
		return err
	}
	if len(state) == 0 {
		state = json.RawMessage(`{}`)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, state, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// path hex-encodes the user id so platform identifiers can never traverse
// out of the store directory.
func (s *FileStore) path(userID string) (string, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return "", errors.New("user id is required")
	}
	return filepath.Join(s.dir, hex.EncodeToString([]byte(userID))+".json"), nil
}

// MemoryStore is the in-process store used in tests and as the default
// wiring when no data dir is configured.
type MemoryStore struct {
	mu     sync.RWMutex
	states map[string]json.RawMessage
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string]json.RawMessage)}
}

func (s *MemoryStore) Load(userID string) (json.RawMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.states[userID]
	if !ok {
		return nil, bot.ErrStateNotFound
	}
	out := make(json.RawMessage, len(state))
	copy(out, state)
	return out, nil
}

func (s *MemoryStore) Save(userID string, state json.RawMessage) error {
	if strings.TrimSpace(userID) == "" {
		return errors.New("user id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := make(json.RawMessage, len(state))
	copy(stored, state)
	s.states[userID] = stored
	return nil
}
