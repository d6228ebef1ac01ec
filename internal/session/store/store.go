// Package store defines persistence for sessions and its reference
// implementations. Keys are the composite storage keys from the storekey
// package; stores never build keys themselves.
package store

import (
	"context"

	"github.com/agio-digital/session-keys-backend/internal/session/domain"
)

// Store defines persistence for sessions.
//
// Contract: Get on an absent key returns (nil, nil), never an error. GetAll
// returns every session whose key belongs to the user, in no particular order.
// Revoke on an absent key is a silent no-op. Save writes the whole record and
// replaces any session already stored at the key.
type Store interface {
	Save(ctx context.Context, key string, s *domain.Session) error
	Get(ctx context.Context, key string) (*domain.Session, error)
	GetAll(ctx context.Context, userID string) ([]*domain.Session, error)
	Revoke(ctx context.Context, key string) error
	Delete(ctx context.Context, key string) error
}
