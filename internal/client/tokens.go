package client

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// TokenStore persists player tokens per pin so a restarted client can reclaim its identity.
// Load returns "" when nothing is stored.
type TokenStore interface {
	Load(pin string) (string, error)
	Save(pin, token string) error
}

// FileTokenStore keeps one file per pin under Dir.
type FileTokenStore struct {
	Dir string
}

func (s FileTokenStore) path(pin string) string {
	return filepath.Join(s.Dir, "player_token_"+pin)
}

func (s FileTokenStore) Load(pin string) (string, error) {
	data, err := os.ReadFile(s.path(pin))
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read token: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

func (s FileTokenStore) Save(pin, token string) error {
	if err := os.MkdirAll(s.Dir, 0o700); err != nil {
		return fmt.Errorf("create token dir: %w", err)
	}
	tmp := s.path(pin) + ".tmp"
	if err := os.WriteFile(tmp, []byte(token), 0o600); err != nil {
		return fmt.Errorf("write token: %w", err)
	}
	return os.Rename(tmp, s.path(pin))
}

// MemoryTokenStore keeps tokens for the life of the process.
type MemoryTokenStore struct {
	mu     sync.Mutex
	tokens map[string]string
}

func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{tokens: make(map[string]string)}
}

func (s *MemoryTokenStore) Load(pin string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokens[pin], nil
}

func (s *MemoryTokenStore) Save(pin, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens[pin] = token
	return nil
}
