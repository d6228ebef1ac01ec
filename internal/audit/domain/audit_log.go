package domain

import "time"

// AuditLog records one operation against a user's sessions or wallets.
type AuditLog struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	Action      string    `json:"action"`   // e.g. "create", "revoke", "send"
	Resource    string    `json:"resource"` // e.g. "session", "wallet", "transaction"
	WalletIndex int       `json:"walletIndex"`
	Metadata    string    `json:"metadata,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}
