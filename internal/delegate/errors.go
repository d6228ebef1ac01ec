package delegate

import (
	"errors"
	"fmt"

	"github.com/agio-digital/session-keys-backend/internal/session/domain"
)

// ErrMissingAuthorizationContext is returned when the stored session carries
// no permissions context; without it the infrastructure cannot attribute the
// call to a grant.
var ErrMissingAuthorizationContext = errors.New("session has no authorization context")

// ErrInvalidCall is returned when the requested call cannot be parsed (bad
// address, unparseable value or calldata).
var ErrInvalidCall = errors.New("invalid call")

// SessionInvalidError reports that the stored session failed validation.
type SessionInvalidError struct {
	Reason domain.InvalidReason
}

func (e *SessionInvalidError) Error() string {
	return fmt.Sprintf("session invalid: %s", e.Reason)
}

// ScopeDeniedError reports that the pre-flight scope check rejected the call
// before any chain interaction.
type ScopeDeniedError struct {
	To       string
	Selector string
}

func (e *ScopeDeniedError) Error() string {
	if e.Selector != "" {
		return fmt.Sprintf("call to %s (selector %s) is outside the session's granted scopes", e.To, e.Selector)
	}
	return fmt.Sprintf("call to %s is outside the session's granted scopes", e.To)
}

// PreparationError wraps a failure while preparing the call bundle.
type PreparationError struct {
	Cause error
}

func (e *PreparationError) Error() string {
	return fmt.Sprintf("prepare calls: %v", e.Cause)
}

func (e *PreparationError) Unwrap() error { return e.Cause }

// SigningError wraps a failure while loading the session key or signing the
// prepared digest.
type SigningError struct {
	Cause error
}

func (e *SigningError) Error() string {
	return fmt.Sprintf("sign calls: %v", e.Cause)
}

func (e *SigningError) Unwrap() error { return e.Cause }

// SubmissionError wraps a failure while handing the signed bundle to the
// infrastructure.
type SubmissionError struct {
	Cause error
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("submit calls: %v", e.Cause)
}

func (e *SubmissionError) Unwrap() error { return e.Cause }
