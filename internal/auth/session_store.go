package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/chatlog-dashboard/internal/models"
)

// SessionStore persists the current session between runs
type SessionStore interface {
	Load() (*models.Session, error)
	Save(session *models.Session) error
	Clear() error
}

// FileSessionStore keeps the session as a JSON file readable only by the owner
type FileSessionStore struct {
	path string
}

// NewFileSessionStore creates a store backed by path
func NewFileSessionStore(path string) *FileSessionStore {
	return &FileSessionStore{path: path}
}

// Load returns the stored session, or nil when none was saved
func (f *FileSessionStore) Load() (*models.Session, error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	var session models.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to parse session file: %w", err)
	}
	if session.AccessToken == "" {
		return nil, nil
	}

	return &session, nil
}

// Save writes the session to disk
func (f *FileSessionStore) Save(session *models.Session) error {
	if session == nil {
		return f.Clear()
	}

	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	if err := os.WriteFile(f.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	return nil
}

// Clear removes the stored session
func (f *FileSessionStore) Clear() error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove session file: %w", err)
	}
	return nil
}

// MemorySessionStore keeps the session in memory only
type MemorySessionStore struct {
	mu      sync.Mutex
	session *models.Session
}

// NewMemorySessionStore creates an empty in-memory store
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{}
}

func (m *MemorySessionStore) Load() (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return nil, nil
	}
	session := *m.session
	return &session, nil
}

func (m *MemorySessionStore) Save(session *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if session == nil {
		m.session = nil
		return nil
	}
	stored := *session
	m.session = &stored
	return nil
}

func (m *MemorySessionStore) Clear() error {
	return m.Save(nil)
}
