// Package audit records a best-effort trail of session and wallet operations.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agio-digital/session-keys-backend/internal/audit/domain"
	auditrepo "github.com/agio-digital/session-keys-backend/internal/audit/repository"
)

// AuditLogger writes a single audit event with explicit action/resource.
// LogEvent is best-effort: failures are logged and do not affect the caller.
type AuditLogger interface {
	LogEvent(ctx context.Context, userID, action, resource string, walletIndex int, metadata string)
}

// Logger implements AuditLogger using the audit repository.
type Logger struct {
	repo   auditrepo.Repository
	logger *zap.Logger
}

// NewLogger returns an AuditLogger that persists to repo. repo may be nil;
// then LogEvent does nothing.
func NewLogger(repo auditrepo.Repository, logger *zap.Logger) *Logger {
	return &Logger{repo: repo, logger: logger}
}

// LogEvent writes one audit log entry. Errors are logged and not returned.
func (l *Logger) LogEvent(ctx context.Context, userID, action, resource string, walletIndex int, metadata string) {
	if l == nil || l.repo == nil {
		return
	}
	entry := &domain.AuditLog{
		ID:          uuid.New().String(),
		UserID:      userID,
		Action:      action,
		Resource:    resource,
		WalletIndex: walletIndex,
		Metadata:    metadata,
		CreatedAt:   time.Now().UTC(),
	}
	if err := l.repo.Create(ctx, entry); err != nil && l.logger != nil {
		l.logger.Warn("audit log failed",
			zap.String("action", action),
			zap.String("resource", resource),
			zap.Error(err))
	}
}
