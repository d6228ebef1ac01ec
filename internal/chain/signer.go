// Package chain holds the two external capabilities the core depends on: a
// signer derived from an ephemeral session key, and the smart-account
// infrastructure that prepares, accepts, and confirms delegated call bundles.
package chain

import (
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Signer signs prepared bundles with an ephemeral session key.
type Signer struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// NewSigner parses a hex-encoded secp256k1 private key (0x prefix optional)
// and returns a signer for it.
func NewSigner(hexKey string) (*Signer, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("session key: %w", err)
	}
	return &Signer{key: key, address: crypto.PubkeyToAddress(key.PublicKey)}, nil
}

// Address returns the address derived from the session key.
func (s *Signer) Address() common.Address {
	return s.address
}

// SignHash signs a 32-byte digest and returns a 65-byte [R || S || V]
// signature with V in the 27/28 convention expected on-chain.
func (s *Signer) SignHash(hash common.Hash) ([]byte, error) {
	sig, err := crypto.Sign(hash.Bytes(), s.key)
	if err != nil {
		return nil, err
	}
	sig[64] += 27
	return sig, nil
}

// DeriveAddress returns the address for a hex-encoded private key without
// retaining the key. Used by session creation for the one-time
// address-consistency check.
func DeriveAddress(hexKey string) (common.Address, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return common.Address{}, fmt.Errorf("session key: %w", err)
	}
	return crypto.PubkeyToAddress(key.PublicKey), nil
}
