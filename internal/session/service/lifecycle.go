// Package service implements the session lifecycle: creation with the
// one-time address-consistency check, validation, revocation, and deletion.
package service

import (
	"context"
	"encoding/hex"
	"errors"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agio-digital/session-keys-backend/internal/audit"
	"github.com/agio-digital/session-keys-backend/internal/chain"
	"github.com/agio-digital/session-keys-backend/internal/events"
	"github.com/agio-digital/session-keys-backend/internal/permctx"
	"github.com/agio-digital/session-keys-backend/internal/session/domain"
	"github.com/agio-digital/session-keys-backend/internal/session/store"
	"github.com/agio-digital/session-keys-backend/internal/storekey"
)

// Sentinel errors for session creation; the transport maps them to statuses.
var (
	// ErrAddressMismatch is returned when the supplied session key address
	// does not match the address derived from the session key.
	ErrAddressMismatch = errors.New("session key address does not match session key")
	// ErrContextMismatch is returned when the permissions context does not
	// embed the draft's session id.
	ErrContextMismatch = errors.New("permissions context does not match session id")
	// ErrExpiryInPast is returned when the resolved expiry is already behind
	// the clock at creation time.
	ErrExpiryInPast = errors.New("session expiry is in the past")
)

// Draft carries what the authorization flow produced for a new session.
type Draft struct {
	// ID is the session id; derived from PermissionsContext when empty.
	ID string
	// SessionKey is the ephemeral private key, hex encoded.
	SessionKey string
	// SessionKeyAddress, when set, is checked once against the address
	// derived from SessionKey; when empty it is derived and filled in.
	SessionKeyAddress      string
	AccountAddress         string
	AuthorizationSignature string
	PermissionsContext     string
	Permissions            []domain.Permission
	// ExpiresAt wins over ExpiryHours when set.
	ExpiresAt time.Time
	// ExpiryHours requests a lifetime in hours; nil means the default,
	// zero means never expires.
	ExpiryHours *int
}

// Lifecycle manages sessions over a Store.
type Lifecycle struct {
	sessions    store.Store
	auditLogger audit.AuditLogger
	producer    events.Producer
	logger      *zap.Logger
	nowF        func() time.Time
}

// NewLifecycle returns a Lifecycle with the given dependencies. auditLogger
// and producer may be nil.
func NewLifecycle(sessions store.Store, auditLogger audit.AuditLogger, producer events.Producer, logger *zap.Logger) *Lifecycle {
	return &Lifecycle{
		sessions:    sessions,
		auditLogger: auditLogger,
		producer:    producer,
		logger:      logger,
		nowF:        func() time.Time { return time.Now().UTC() },
	}
}

// CreateSession validates the draft, fills in derived fields, and persists a
// complete session record at (userID, walletIndex), superseding any session
// already stored there.
func (l *Lifecycle) CreateSession(ctx context.Context, userID string, draft Draft, walletIndex int) (*domain.Session, error) {
	derived, err := chain.DeriveAddress(draft.SessionKey)
	if err != nil {
		return nil, err
	}
	keyAddress := derived.Hex()
	if draft.SessionKeyAddress != "" {
		if common.HexToAddress(draft.SessionKeyAddress) != derived {
			return nil, ErrAddressMismatch
		}
		keyAddress = common.HexToAddress(draft.SessionKeyAddress).Hex()
	}

	id := draft.ID
	if draft.PermissionsContext != "" {
		embedded, err := permctx.SessionID(draft.PermissionsContext)
		if err != nil {
			return nil, err
		}
		if id == "" {
			id = embedded
		} else if id != embedded {
			return nil, ErrContextMismatch
		}
	}
	if id == "" {
		u := uuid.New()
		id = hex.EncodeToString(u[:])
	}

	now := l.nowF()
	expiresAt := domain.CalculateExpiry(domain.ExpiryOptions{
		ExpiresAt:   draft.ExpiresAt,
		ExpiryHours: draft.ExpiryHours,
	}, now)
	if !expiresAt.After(now) {
		return nil, ErrExpiryInPast
	}

	session := &domain.Session{
		ID:                     id,
		SessionKey:             draft.SessionKey,
		SessionKeyAddress:      keyAddress,
		AccountAddress:         common.HexToAddress(draft.AccountAddress).Hex(),
		AuthorizationSignature: draft.AuthorizationSignature,
		PermissionsContext:     draft.PermissionsContext,
		Permissions:            draft.Permissions,
		ExpiresAt:              expiresAt,
		Revoked:                false,
		CreatedAt:              now,
	}
	key := storekey.Build(userID, walletIndex)
	if err := l.sessions.Save(ctx, key, session); err != nil {
		return nil, err
	}

	if l.auditLogger != nil {
		l.auditLogger.LogEvent(ctx, userID, "create", "session", walletIndex, session.ID)
	}
	l.emit(ctx, events.TypeSessionCreated, userID, walletIndex, map[string]string{
		"session_id": session.ID,
		"expires_at": session.ExpiresAt.Format(time.RFC3339),
	})
	return session, nil
}

// GetSession returns the session at (userID, walletIndex), or nil when none
// is stored.
func (l *Lifecycle) GetSession(ctx context.Context, userID string, walletIndex int) (*domain.Session, error) {
	return l.sessions.Get(ctx, storekey.Build(userID, walletIndex))
}

// ListSessions returns every session the user holds, across all wallets.
func (l *Lifecycle) ListSessions(ctx context.Context, userID string) ([]*domain.Session, error) {
	return l.sessions.GetAll(ctx, userID)
}

// Validate checks the session against the clock; see domain.Validate.
func (l *Lifecycle) Validate(s *domain.Session) domain.ValidationResult {
	return domain.Validate(s, l.nowF())
}

// Revoke marks the session at (userID, walletIndex) revoked. Revoking an
// absent session is a silent no-op, never an error.
func (l *Lifecycle) Revoke(ctx context.Context, userID string, walletIndex int) error {
	key := storekey.Build(userID, walletIndex)
	existing, err := l.sessions.Get(ctx, key)
	if err != nil {
		return err
	}
	if existing == nil {
		return nil
	}
	if err := l.sessions.Revoke(ctx, key); err != nil {
		return err
	}
	if l.auditLogger != nil {
		l.auditLogger.LogEvent(ctx, userID, "revoke", "session", walletIndex, existing.ID)
	}
	l.emit(ctx, events.TypeSessionRevoked, userID, walletIndex, map[string]string{
		"session_id": existing.ID,
	})
	return nil
}

// DeleteSession removes the session at (userID, walletIndex).
func (l *Lifecycle) DeleteSession(ctx context.Context, userID string, walletIndex int) error {
	return l.sessions.Delete(ctx, storekey.Build(userID, walletIndex))
}

func (l *Lifecycle) emit(ctx context.Context, eventType, userID string, walletIndex int, metadata map[string]string) {
	if l.producer == nil {
		return
	}
	err := l.producer.Emit(ctx, events.Event{
		ID:          uuid.New().String(),
		Type:        eventType,
		UserID:      userID,
		WalletIndex: walletIndex,
		Metadata:    metadata,
		At:          l.nowF(),
	})
	if err != nil && l.logger != nil {
		l.logger.Warn("event emit failed", zap.String("type", eventType), zap.Error(err))
	}
}
