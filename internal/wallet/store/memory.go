package store

import (
	"context"
	"sync"

	"github.com/agio-digital/session-keys-backend/internal/storekey"
	"github.com/agio-digital/session-keys-backend/internal/wallet/domain"
)

// MemoryStore is an in-process Store implementation.
type MemoryStore struct {
	mu sync.RWMutex
	m  map[string]*domain.Wallet
}

// NewMemoryStore returns an empty in-memory wallet store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{m: make(map[string]*domain.Wallet)}
}

// Save stores a copy of w at key, replacing any existing record.
func (s *MemoryStore) Save(ctx context.Context, key string, w *domain.Wallet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *w
	s.m[key] = &cp
	return nil
}

// Get returns a copy of the wallet at key, or nil if absent.
func (s *MemoryStore) Get(ctx context.Context, key string) (*domain.Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.m[key]
	if !ok {
		return nil, nil
	}
	cp := *w
	return &cp, nil
}

// GetAll returns all wallets belonging to userID.
func (s *MemoryStore) GetAll(ctx context.Context, userID string) ([]*domain.Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Wallet
	for key, w := range s.m {
		if storekey.Matches(key, userID) {
			cp := *w
			out = append(out, &cp)
		}
	}
	return out, nil
}

// Delete removes the wallet at key. Absent key is a no-op.
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, key)
	return nil
}
