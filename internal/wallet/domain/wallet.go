// Package domain defines the wallet entity: one externally-provisioned smart
// account address owned by a user, discriminated by wallet index.
package domain

import "time"

// Wallet records a smart account address for a user. Index 0 is the default
// wallet; higher indices are additional independently-addressed accounts.
// Wallets are written whole at creation and never field-patched.
type Wallet struct {
	Address     string    `json:"address"`
	WalletIndex int       `json:"walletIndex"`
	CreatedAt   time.Time `json:"createdAt"`
}
