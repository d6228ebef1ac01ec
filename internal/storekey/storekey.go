// Package storekey builds and parses the composite keys under which sessions
// and wallets are stored. A user's default wallet (index 0) is addressed by the
// bare user id so records written before multi-wallet support remain readable;
// every other index is addressed as "{userID}:{index}". This is the only place
// that rule lives; stores must never concatenate keys themselves.
package storekey

import (
	"fmt"
	"strconv"
	"strings"
)

// DefaultWalletIndex is the index of a user's default wallet.
const DefaultWalletIndex = 0

// Build returns the storage key for (userID, walletIndex).
// Index 0 (or negative, treated as "absent") collapses to the bare user id.
func Build(userID string, walletIndex int) string {
	if walletIndex <= DefaultWalletIndex {
		return userID
	}
	return fmt.Sprintf("%s:%d", userID, walletIndex)
}

// Parse splits a storage key back into (userID, walletIndex). It is the exact
// inverse of Build: a key without a numeric suffix maps to index 0.
func Parse(key string) (userID string, walletIndex int) {
	i := strings.LastIndex(key, ":")
	if i < 0 {
		return key, DefaultWalletIndex
	}
	n, err := strconv.Atoi(key[i+1:])
	if err != nil || n < 0 {
		// Not a wallet suffix; the whole key is the user id.
		return key, DefaultWalletIndex
	}
	return key[:i], n
}

// Matches reports whether key belongs to userID, i.e. it is the bare user id
// or carries a ":{index}" suffix for that user.
func Matches(key, userID string) bool {
	if key == userID {
		return true
	}
	return strings.HasPrefix(key, userID+":")
}
