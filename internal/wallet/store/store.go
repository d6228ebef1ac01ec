// Package store defines persistence for wallets and its reference
// implementations, mirroring the session store contract.
package store

import (
	"context"

	"github.com/agio-digital/session-keys-backend/internal/wallet/domain"
)

// Store defines persistence for wallets.
//
// Contract: Get on an absent key returns (nil, nil), never an error. GetAll
// returns every wallet whose key belongs to the user, in no particular order;
// callers sort.
type Store interface {
	Save(ctx context.Context, key string, w *domain.Wallet) error
	Get(ctx context.Context, key string) (*domain.Wallet, error)
	GetAll(ctx context.Context, userID string) ([]*domain.Wallet, error)
	Delete(ctx context.Context, key string) error
}
