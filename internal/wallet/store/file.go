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

	"github.com/agio-digital/session-keys-backend/internal/storekey"
	"github.com/agio-digital/session-keys-backend/internal/wallet/domain"
)

// FileStore persists wallets as one flat JSON object keyed by storage key,
// rewritten whole on every mutation. Same single-writer limitation as the
// session file store.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore returns a file-backed wallet store writing to path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) load() (map[string]*domain.Wallet, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return make(map[string]*domain.Wallet), nil
		}
		return nil, fmt.Errorf("wallet file read: %w", err)
	}
	table := make(map[string]*domain.Wallet)
	if len(data) > 0 {
		if err := json.Unmarshal(data, &table); err != nil {
			return nil, fmt.Errorf("wallet file decode: %w", err)
		}
	}
	return table, nil
}

func (s *FileStore) flush(table map[string]*domain.Wallet) error {
	data, err := json.MarshalIndent(table, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("wallet file write: %w", err)
	}
	return os.Rename(tmp, s.path)
}

// Save writes the whole table back with w stored at key.
func (s *FileStore) Save(ctx context.Context, key string, w *domain.Wallet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	table, err := s.load()
	if err != nil {
		return err
	}
	table[key] = w
	return s.flush(table)
}

// Get returns the wallet at key, or nil if absent.
func (s *FileStore) Get(ctx context.Context, key string) (*domain.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	table, err := s.load()
	if err != nil {
		return nil, err
	}
	return table[key], nil
}

// GetAll returns all wallets belonging to userID.
func (s *FileStore) GetAll(ctx context.Context, userID string) ([]*domain.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	table, err := s.load()
	if err != nil {
		return nil, err
	}
	var out []*domain.Wallet
	for key, w := range table {
		if storekey.Matches(key, userID) {
			out = append(out, w)
		}
	}
	return out, nil
}

// Delete removes the wallet at key. Absent key is a no-op.
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
