package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/agio-digital/session-keys-backend/internal/session/domain"
	"github.com/agio-digital/session-keys-backend/internal/storekey"
)

// FileStore persists sessions as one flat JSON object keyed by storage key,
// rewriting the whole table on every mutation. A mutex serializes writers in
// this process; the format is not safe for concurrent writers across
// processes, which is acceptable for single-instance deployments only.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore returns a file-backed session store writing to path. The file
// is created on first mutation; a missing file reads as an empty table.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) load() (map[string]*domain.Session, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return make(map[string]*domain.Session), nil
		}
		return nil, fmt.Errorf("session file read: %w", err)
	}
	table := make(map[string]*domain.Session)
	if len(data) > 0 {
		if err := json.Unmarshal(data, &table); err != nil {
			return nil, fmt.Errorf("session file decode: %w", err)
		}
	}
	return table, nil
}

func (s *FileStore) flush(table map[string]*domain.Session) error {
	data, err := json.MarshalIndent(table, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("session file write: %w", err)
	}
	return os.Rename(tmp, s.path)
}

// Save writes the whole table back with s stored at key.
func (s *FileStore) Save(ctx context.Context, key string, sess *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	table, err := s.load()
	if err != nil {
		return err
	}
	table[key] = sess
	return s.flush(table)
}

// Get returns the session at key, or nil if absent.
func (s *FileStore) Get(ctx context.Context, key string) (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	table, err := s.load()
	if err != nil {
		return nil, err
	}
	return table[key], nil
}

// GetAll returns all sessions belonging to userID.
func (s *FileStore) GetAll(ctx context.Context, userID string) ([]*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	table, err := s.load()
	if err != nil {
		return nil, err
	}
	var out []*domain.Session
	for key, sess := range table {
		if storekey.Matches(key, userID) {
			out = append(out, sess)
		}
	}
	return out, nil
}

// Revoke marks the session at key revoked. Absent key is a no-op.
func (s *FileStore) Revoke(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	table, err := s.load()
	if err != nil {
		return err
	}
	sess, ok := table[key]
	if !ok {
		return nil
	}
	sess.Revoked = true
	return s.flush(table)
}

// Delete removes the session at key. Absent key is a no-op.
func (s *FileStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	table, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := table[key]; !ok {
		return nil
	}
	delete(table, key)
	return s.flush(table)
}
