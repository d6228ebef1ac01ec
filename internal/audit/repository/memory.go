package repository

import (
	"context"
	"sync"

	"github.com/agio-digital/session-keys-backend/internal/audit/domain"
)

// MemoryRepository keeps audit logs in memory; used by the non-postgres
// store backends and by tests.
type MemoryRepository struct {
	mu      sync.Mutex
	entries []*domain.AuditLog
}

// NewMemoryRepository returns an empty in-memory audit repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

// Create appends one audit log entry.
func (r *MemoryRepository) Create(ctx context.Context, a *domain.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *a
	r.entries = append(r.entries, &cp)
	return nil
}

// ListByUser returns audit logs for the user, newest first.
func (r *MemoryRepository) ListByUser(ctx context.Context, userID string, limit, offset int32) ([]*domain.AuditLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []*domain.AuditLog
	for i := len(r.entries) - 1; i >= 0; i-- {
		if r.entries[i].UserID == userID {
			cp := *r.entries[i]
			matched = append(matched, &cp)
		}
	}
	if int(offset) >= len(matched) {
		return nil, nil
	}
	matched = matched[offset:]
	if limit > 0 && int(limit) < len(matched) {
		matched = matched[:limit]
	}
	return matched, nil
}
