package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/agio-digital/session-keys-backend/internal/storekey"
	"github.com/agio-digital/session-keys-backend/internal/wallet/domain"
)

// PostgresStore persists wallets in a wallets table, one row per storage key.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore returns a wallet store backed by the given database.
// The wallets table must exist (see internal/db/migrations).
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Save upserts the wallet at key.
func (s *PostgresStore) Save(ctx context.Context, key string, w *domain.Wallet) error {
	userID, _ := storekey.Parse(key)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO wallets (storage_key, user_id, address, wallet_index, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (storage_key) DO UPDATE SET
			address = EXCLUDED.address,
			wallet_index = EXCLUDED.wallet_index,
			created_at = EXCLUDED.created_at`,
		key, userID, w.Address, w.WalletIndex, w.CreatedAt,
	)
	return err
}

// Get returns the wallet at key, or nil if no row exists.
func (s *PostgresStore) Get(ctx context.Context, key string) (*domain.Wallet, error) {
	var w domain.Wallet
	err := s.db.QueryRowContext(ctx, `
		SELECT address, wallet_index, created_at FROM wallets WHERE storage_key = $1`,
		key).Scan(&w.Address, &w.WalletIndex, &w.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &w, nil
}

// GetAll returns all wallets belonging to userID.
func (s *PostgresStore) GetAll(ctx context.Context, userID string) ([]*domain.Wallet, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT address, wallet_index, created_at FROM wallets WHERE user_id = $1`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Wallet
	for rows.Next() {
		var w domain.Wallet
		if err := rows.Scan(&w.Address, &w.WalletIndex, &w.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &w)
	}
	return out, rows.Err()
}

// Delete removes the wallet at key. Deleting no rows is not an error.
func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM wallets WHERE storage_key = $1`, key)
	return err
}
