// Package engine evaluates whether an outgoing call falls inside the scopes an
// owner granted to a session key. This is a pre-flight check only: the chain
// enforces the grant authoritatively, the evaluator just rejects obviously
// out-of-scope calls before any prepare/sign/submit work happens.
package engine

import (
	"context"

	"github.com/agio-digital/session-keys-backend/internal/session/domain"
)

// CallInput is the flattened view of a call handed to the evaluator.
type CallInput struct {
	// To is the canonicalized target address.
	To string
	// Value is the call value in wei, as a decimal string.
	Value string
	// Selector is the 4-byte function selector (hex, 0x-prefixed), empty for
	// plain transfers.
	Selector string
	// DataLen is the calldata length in bytes.
	DataLen int
}

// Decision is the evaluator's verdict on one call.
type Decision struct {
	Allowed bool
}

// Evaluator decides whether a call is inside the session's granted scopes.
type Evaluator interface {
	EvaluateCall(ctx context.Context, permissions []domain.Permission, call CallInput) (Decision, error)
}
