package store

import (
	"context"
	"sync"

	"github.com/agio-digital/session-keys-backend/internal/session/domain"
	"github.com/agio-digital/session-keys-backend/internal/storekey"
)

// MemoryStore is an in-process Store implementation. Each instance owns its
// own map; construct one per deployment instead of sharing package state.
type MemoryStore struct {
	mu sync.RWMutex
	m  map[string]*domain.Session
}

// NewMemoryStore returns an empty in-memory session store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{m: make(map[string]*domain.Session)}
}

// Save stores a copy of s at key, replacing any existing record.
func (s *MemoryStore) Save(ctx context.Context, key string, sess *domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *sess
	s.m[key] = &cp
	return nil
}

// Get returns a copy of the session at key, or nil if absent.
func (s *MemoryStore) Get(ctx context.Context, key string) (*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.m[key]
	if !ok {
		return nil, nil
	}
	cp := *sess
	return &cp, nil
}

// GetAll returns all sessions belonging to userID.
func (s *MemoryStore) GetAll(ctx context.Context, userID string) ([]*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Session
	for key, sess := range s.m {
		if storekey.Matches(key, userID) {
			cp := *sess
			out = append(out, &cp)
		}
	}
	return out, nil
}

// Revoke marks the session at key revoked. Absent key is a no-op.
func (s *MemoryStore) Revoke(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.m[key]; ok {
		sess.Revoked = true
	}
	return nil
}

// Delete removes the session at key. Absent key is a no-op.
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, key)
	return nil
}
