package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/agio-digital/session-keys-backend/internal/session/domain"
	"github.com/agio-digital/session-keys-backend/internal/storekey"
)

// PostgresStore persists sessions in a sessions table, one row per storage
// key. Save upserts so a new grant at the same key supersedes the old one.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore returns a session store backed by the given database.
// The sessions table must exist (see internal/db/migrations).
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Save upserts the session at key.
func (s *PostgresStore) Save(ctx context.Context, key string, sess *domain.Session) error {
	perms, err := json.Marshal(sess.Permissions)
	if err != nil {
		return fmt.Errorf("encode permissions: %w", err)
	}
	userID, _ := storekey.Parse(key)
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (
			storage_key, user_id, session_id, session_key, session_key_address,
			account_address, authorization_signature, permissions_context,
			permissions, expires_at, revoked, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (storage_key) DO UPDATE SET
			session_id = EXCLUDED.session_id,
			session_key = EXCLUDED.session_key,
			session_key_address = EXCLUDED.session_key_address,
			account_address = EXCLUDED.account_address,
			authorization_signature = EXCLUDED.authorization_signature,
			permissions_context = EXCLUDED.permissions_context,
			permissions = EXCLUDED.permissions,
			expires_at = EXCLUDED.expires_at,
			revoked = EXCLUDED.revoked,
			created_at = EXCLUDED.created_at`,
		key, userID, sess.ID, sess.SessionKey, sess.SessionKeyAddress,
		sess.AccountAddress, sess.AuthorizationSignature, sess.PermissionsContext,
		perms, sess.ExpiresAt, sess.Revoked, sess.CreatedAt,
	)
	return err
}

// Get returns the session at key, or nil if no row exists.
// It returns an error only for database failures, not for missing rows.
func (s *PostgresStore) Get(ctx context.Context, key string) (*domain.Session, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT session_id, session_key, session_key_address, account_address,
			authorization_signature, permissions_context, permissions,
			expires_at, revoked, created_at
		FROM sessions WHERE storage_key = $1`, key)
	sess, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return sess, nil
}

// GetAll returns all sessions belonging to userID.
func (s *PostgresStore) GetAll(ctx context.Context, userID string) ([]*domain.Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, session_key, session_key_address, account_address,
			authorization_signature, permissions_context, permissions,
			expires_at, revoked, created_at
		FROM sessions WHERE user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*domain.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// Revoke marks the session at key revoked. Updating no rows is not an error.
func (s *PostgresStore) Revoke(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET revoked = TRUE WHERE storage_key = $1`, key)
	return err
}

// Delete removes the session at key. Deleting no rows is not an error.
func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM sessions WHERE storage_key = $1`, key)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*domain.Session, error) {
	var sess domain.Session
	var perms []byte
	err := row.Scan(
		&sess.ID, &sess.SessionKey, &sess.SessionKeyAddress, &sess.AccountAddress,
		&sess.AuthorizationSignature, &sess.PermissionsContext, &perms,
		&sess.ExpiresAt, &sess.Revoked, &sess.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(perms) > 0 {
		if err := json.Unmarshal(perms, &sess.Permissions); err != nil {
			return nil, fmt.Errorf("decode permissions: %w", err)
		}
	}
	return &sess, nil
}
