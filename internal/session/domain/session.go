// Package domain holds the session-key entities and the pure validation and
// expiry rules that everything else builds on.
package domain

import (
	"strconv"
	"time"
)

// Session is a scope-limited delegation of signing authority: an ephemeral
// key the backend may use to transact on behalf of a smart account until the
// session expires or is revoked.
type Session struct {
	// ID is an opaque session identifier (hex of the 16-byte id embedded in
	// the permissions context).
	ID string `json:"sessionId"`
	// SessionKey is the ephemeral secp256k1 private key, hex encoded.
	SessionKey string `json:"sessionKey"`
	// SessionKeyAddress is the address derived from SessionKey. Verified once
	// at creation and never re-derived afterwards.
	SessionKeyAddress string `json:"sessionKeyAddress"`
	// AccountAddress is the smart account the session transacts for.
	AccountAddress string `json:"accountAddress"`
	// AuthorizationSignature is the owner's signature over the grant.
	AuthorizationSignature string `json:"authorizationSignature"`
	// PermissionsContext is the opaque grant blob presented unmodified at
	// transaction time as proof of delegation.
	PermissionsContext string `json:"permissionsContext"`
	// Permissions is the ordered list of scopes the owner granted.
	Permissions []Permission `json:"permissions"`
	ExpiresAt   time.Time    `json:"expiresAt"`
	Revoked     bool         `json:"revoked"`
	CreatedAt   time.Time    `json:"createdAt"`
}

// PermissionType enumerates the scope kinds an owner can grant.
type PermissionType string

const (
	PermissionRoot           PermissionType = "root"
	PermissionNativeTransfer PermissionType = "native-transfer"
	PermissionTokenTransfer  PermissionType = "token-transfer"
	PermissionContractCall   PermissionType = "contract-call"
)

// Permission is one scope descriptor attached to a session grant. Amount
// ceilings are decimal wei strings so arbitrary-precision values survive JSON.
type Permission struct {
	Type PermissionType `json:"type"`
	// MaxAmount caps the value for native-transfer and token-transfer scopes.
	MaxAmount string `json:"maxAmount,omitempty"`
	// Token is the ERC-20 contract for token-transfer scopes.
	Token string `json:"token,omitempty"`
	// Address is the callable contract for contract-call scopes.
	Address string `json:"address,omitempty"`
	// AllowedFunctions optionally restricts contract-call scopes to the given
	// 4-byte selectors (hex). Empty means any function on Address.
	AllowedFunctions []string `json:"allowedFunctions,omitempty"`
}

// InvalidReason says why a session failed validation. Callers act differently
// on each (recreate vs refuse vs provision), so the reasons are never
// collapsed into a generic failure.
type InvalidReason string

const (
	ReasonNotFound InvalidReason = "not_found"
	ReasonRevoked  InvalidReason = "revoked"
	ReasonExpired  InvalidReason = "expired"
)

// ValidationResult is the outcome of validating a session.
type ValidationResult struct {
	Valid  bool
	Reason InvalidReason // empty when Valid
}

// Validate checks a session against the clock. Reason precedence is
// not_found > revoked > expired. A nil session is not_found.
func Validate(s *Session, now time.Time) ValidationResult {
	switch {
	case s == nil:
		return ValidationResult{Reason: ReasonNotFound}
	case s.Revoked:
		return ValidationResult{Reason: ReasonRevoked}
	case !now.Before(s.ExpiresAt):
		return ValidationResult{Reason: ReasonExpired}
	}
	return ValidationResult{Valid: true}
}

// NeverExpires is the "no expiry" sentinel: the largest instant a 32-bit
// unsigned seconds counter can hold. Grants carry expiry as a 32-bit
// on-chain timestamp, so the sentinel must survive the round trip through
// the grant encoding.
var NeverExpires = time.Unix(1<<32-1, 0).UTC()

// DefaultExpiryHours is applied when a grant requests no explicit expiry.
const DefaultExpiryHours = 24

// ExpiryOptions selects how CalculateExpiry derives a session deadline.
type ExpiryOptions struct {
	// ExpiresAt, when set, wins over everything else and is returned as-is.
	ExpiresAt time.Time
	// ExpiryHours is the requested lifetime; nil means the default, zero
	// means the session never expires.
	ExpiryHours *int
}

// CalculateExpiry resolves the expiry instant for a new session.
func CalculateExpiry(opts ExpiryOptions, now time.Time) time.Time {
	if !opts.ExpiresAt.IsZero() {
		return opts.ExpiresAt
	}
	hours := DefaultExpiryHours
	if opts.ExpiryHours != nil {
		hours = *opts.ExpiryHours
	}
	if hours == 0 {
		return NeverExpires
	}
	return now.Add(time.Duration(hours) * time.Hour)
}

// FormatExpiry renders a deadline for humans: "Expired", "Never", or the
// remaining time in its coarsest sensible unit ("1y", "3mo", "7d", "24h", "15m").
func FormatExpiry(expiresAt, now time.Time) string {
	if !expiresAt.After(now) {
		return "Expired"
	}
	if d := expiresAt.Sub(NeverExpires); d >= -time.Second && d <= time.Second {
		return "Never"
	}
	remaining := expiresAt.Sub(now)
	days := int(remaining.Hours() / 24)
	switch {
	case days > 365:
		return strconv.Itoa(days/365) + "y"
	case days > 30:
		return strconv.Itoa(days/30) + "mo"
	case days > 0:
		return strconv.Itoa(days) + "d"
	case int(remaining.Hours()) > 0:
		return strconv.Itoa(int(remaining.Hours())) + "h"
	default:
		return strconv.Itoa(int(remaining.Minutes())) + "m"
	}
}
