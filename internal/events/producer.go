// Package events emits session-key lifecycle events (e.g. to Kafka).
// Emission is best-effort everywhere: callers log and ignore errors, and a nil
// Producer is always safe to call.
package events

import (
	"context"
	"time"
)

// Event types emitted by the services.
const (
	TypeSessionCreated       = "session_created"
	TypeSessionRevoked       = "session_revoked"
	TypeWalletLinked         = "wallet_linked"
	TypeTransactionSubmitted = "transaction_submitted"
	TypeTransactionConfirmed = "transaction_confirmed"
)

// Event is one lifecycle event.
type Event struct {
	ID          string            `json:"id"`
	Type        string            `json:"type"`
	UserID      string            `json:"user_id"`
	WalletIndex int               `json:"wallet_index"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	At          time.Time         `json:"at"`
}

// Producer emits lifecycle events.
type Producer interface {
	// Emit sends a single event. Implementations may block briefly; returns
	// an error only on write failure, which callers typically log and ignore.
	Emit(ctx context.Context, event Event) error
	// Close releases resources (e.g. the Kafka writer). Safe to call twice.
	Close() error
}
