package repository

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/agio-digital/session-keys-backend/internal/audit/domain"
)

func seedRepository(t *testing.T) *MemoryRepository {
	t.Helper()
	repo := NewMemoryRepository()
	base := time.Now().UTC()
	for i := 0; i < 5; i++ {
		err := repo.Create(context.Background(), &domain.AuditLog{
			ID:        strconv.Itoa(i),
			UserID:    "alice",
			Action:    "create",
			Resource:  "session",
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
	}
	err := repo.Create(context.Background(), &domain.AuditLog{
		ID:       "bob-0",
		UserID:   "bob",
		Action:   "link",
		Resource: "wallet",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return repo
}

func TestListByUserNewestFirst(t *testing.T) {
	repo := seedRepository(t)

	entries, err := repo.ListByUser(context.Background(), "alice", 0, 0)
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(entries) != 5 {
		t.Fatalf("got %d entries, want 5", len(entries))
	}
	for i, e := range entries {
		if want := strconv.Itoa(4 - i); e.ID != want {
			t.Errorf("entries[%d].ID = %s, want %s (newest first)", i, e.ID, want)
		}
		if e.UserID != "alice" {
			t.Errorf("entries[%d] belongs to %s", i, e.UserID)
		}
	}
}

func TestListByUserPagination(t *testing.T) {
	repo := seedRepository(t)

	entries, err := repo.ListByUser(context.Background(), "alice", 2, 1)
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(entries) != 2 || entries[0].ID != "3" || entries[1].ID != "2" {
		t.Fatalf("page = %+v, want ids [3 2]", entries)
	}

	entries, err = repo.ListByUser(context.Background(), "alice", 10, 99)
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("offset past the end returned %d entries, want 0", len(entries))
	}
}

func TestListByUserUnknownUser(t *testing.T) {
	repo := seedRepository(t)

	entries, err := repo.ListByUser(context.Background(), "carol", 0, 0)
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("got %d entries for a user with none", len(entries))
	}
}
