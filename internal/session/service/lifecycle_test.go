package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/agio-digital/session-keys-backend/internal/events"
	"github.com/agio-digital/session-keys-backend/internal/permctx"
	"github.com/agio-digital/session-keys-backend/internal/session/domain"
	"github.com/agio-digital/session-keys-backend/internal/session/store"
)

// Key/address pair used across chain tests.
const (
	testSessionKey = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"
	testKeyAddress = "0x2c7536E3605D9C16a7a3D7b1898e529396a65c23"

	testAccount = "0x627306090abaB3A6e1400e9345bC60c78a8BEf57"
)

type recordingProducer struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingProducer) Emit(_ context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return nil
}

func (p *recordingProducer) Close() error { return nil }

func (p *recordingProducer) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

func newLifecycle(t *testing.T) (*Lifecycle, *recordingProducer) {
	t.Helper()
	producer := &recordingProducer{}
	l := NewLifecycle(store.NewMemoryStore(), nil, producer, nil)
	return l, producer
}

func TestCreateSessionDerivesAddress(t *testing.T) {
	l, producer := newLifecycle(t)

	created, err := l.CreateSession(context.Background(), "alice", Draft{
		SessionKey:     testSessionKey,
		AccountAddress: testAccount,
	}, 0)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if created.SessionKeyAddress != testKeyAddress {
		t.Errorf("derived address = %s, want %s", created.SessionKeyAddress, testKeyAddress)
	}
	if created.ID == "" {
		t.Error("expected a generated session id")
	}
	if created.Revoked {
		t.Error("new session must not be revoked")
	}

	stored, err := l.GetSession(context.Background(), "alice", 0)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if stored == nil || stored.ID != created.ID {
		t.Fatalf("stored session = %+v, want id %s", stored, created.ID)
	}

	got := producer.types()
	if len(got) != 1 || got[0] != events.TypeSessionCreated {
		t.Errorf("emitted events = %v, want [%s]", got, events.TypeSessionCreated)
	}
}

func TestCreateSessionAddressMismatch(t *testing.T) {
	l, _ := newLifecycle(t)

	_, err := l.CreateSession(context.Background(), "alice", Draft{
		SessionKey:        testSessionKey,
		SessionKeyAddress: testAccount, // not the key's address
		AccountAddress:    testAccount,
	}, 0)
	if !errors.Is(err, ErrAddressMismatch) {
		t.Fatalf("err = %v, want ErrAddressMismatch", err)
	}
}

func TestCreateSessionIDFromContext(t *testing.T) {
	l, _ := newLifecycle(t)

	sessionID := "00112233445566778899aabbccddeeff"
	permCtx, err := permctx.Encode(1, sessionID, "deadbeef")
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	created, err := l.CreateSession(context.Background(), "alice", Draft{
		SessionKey:         testSessionKey,
		AccountAddress:     testAccount,
		PermissionsContext: permCtx,
	}, 2)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if created.ID != sessionID {
		t.Errorf("session id = %s, want %s (from permissions context)", created.ID, sessionID)
	}

	// A draft id that disagrees with the embedded id is rejected.
	_, err = l.CreateSession(context.Background(), "alice", Draft{
		ID:                 "ffeeddccbbaa99887766554433221100",
		SessionKey:         testSessionKey,
		AccountAddress:     testAccount,
		PermissionsContext: permCtx,
	}, 2)
	if !errors.Is(err, ErrContextMismatch) {
		t.Fatalf("err = %v, want ErrContextMismatch", err)
	}
}

func TestCreateSessionExpiryInPast(t *testing.T) {
	l, _ := newLifecycle(t)

	_, err := l.CreateSession(context.Background(), "alice", Draft{
		SessionKey:     testSessionKey,
		AccountAddress: testAccount,
		ExpiresAt:      time.Now().UTC().Add(-time.Minute),
	}, 0)
	if !errors.Is(err, ErrExpiryInPast) {
		t.Fatalf("err = %v, want ErrExpiryInPast", err)
	}
}

func TestCreateSessionNeverExpires(t *testing.T) {
	l, _ := newLifecycle(t)

	zero := 0
	created, err := l.CreateSession(context.Background(), "alice", Draft{
		SessionKey:     testSessionKey,
		AccountAddress: testAccount,
		ExpiryHours:    &zero,
	}, 0)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if !created.ExpiresAt.Equal(domain.NeverExpires) {
		t.Errorf("expiresAt = %v, want the never-expires sentinel", created.ExpiresAt)
	}
}

func TestRevokeIsIdempotent(t *testing.T) {
	l, producer := newLifecycle(t)

	// Revoking a session that does not exist is a silent no-op.
	if err := l.Revoke(context.Background(), "alice", 0); err != nil {
		t.Fatalf("Revoke absent: %v", err)
	}
	if got := producer.types(); len(got) != 0 {
		t.Fatalf("no-op revoke emitted %v", got)
	}

	_, err := l.CreateSession(context.Background(), "alice", Draft{
		SessionKey:     testSessionKey,
		AccountAddress: testAccount,
	}, 0)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if err := l.Revoke(context.Background(), "alice", 0); err != nil {
		t.Fatalf("Revoke: %v", err)
	}
	if err := l.Revoke(context.Background(), "alice", 0); err != nil {
		t.Fatalf("Revoke twice: %v", err)
	}

	stored, err := l.GetSession(context.Background(), "alice", 0)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if stored == nil || !stored.Revoked {
		t.Fatalf("session after revoke = %+v, want revoked", stored)
	}
	if result := l.Validate(stored); result.Valid || result.Reason != domain.ReasonRevoked {
		t.Errorf("validation = %+v, want invalid/revoked", result)
	}
}

func TestRevokeOneWalletLeavesOthers(t *testing.T) {
	l, _ := newLifecycle(t)
	ctx := context.Background()

	for _, idx := range []int{0, 1} {
		_, err := l.CreateSession(ctx, "alice", Draft{
			SessionKey:     testSessionKey,
			AccountAddress: testAccount,
		}, idx)
		if err != nil {
			t.Fatalf("CreateSession index %d: %v", idx, err)
		}
	}

	if err := l.Revoke(ctx, "alice", 0); err != nil {
		t.Fatalf("Revoke: %v", err)
	}

	first, _ := l.GetSession(ctx, "alice", 0)
	second, _ := l.GetSession(ctx, "alice", 1)
	if first == nil || !first.Revoked {
		t.Error("wallet 0 session should be revoked")
	}
	if second == nil || second.Revoked {
		t.Error("wallet 1 session should be untouched")
	}
}
