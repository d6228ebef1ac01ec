package chain

import (
	"context"
	"encoding/json"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Call is one call inside a delegated bundle.
type Call struct {
	To    common.Address `json:"to"`
	Value *hexutil.Big   `json:"value"`
	Data  hexutil.Bytes  `json:"data"`
}

// PreparedCalls is the outcome of preparing a bundle: an opaque context the
// infrastructure echoes back at submission time, and the digest the session
// key must sign.
type PreparedCalls struct {
	Context       json.RawMessage `json:"context"`
	SignatureHash common.Hash     `json:"signatureHash"`
}

// Receipt describes one executed call bundle.
type Receipt struct {
	TransactionHash common.Hash `json:"transactionHash"`
	Success         bool        `json:"success"`
	BlockNumber     uint64      `json:"blockNumber"`
}

// CallsStatus is the polled state of a submitted bundle.
type CallsStatus struct {
	// Pending is true until the bundle lands on-chain.
	Pending  bool      `json:"pending"`
	Receipts []Receipt `json:"receipts"`
}

// AccountClient is the contract the core requires from the smart-account
// infrastructure. Its internal behavior (bundling, fee sponsorship, per-account
// ordering) is outside this module; only these four operations matter here.
type AccountClient interface {
	// PrepareCalls builds an unsigned bundle for the given account and calls,
	// carrying scope (the permissions context) as proof of delegation.
	PrepareCalls(ctx context.Context, from common.Address, calls []Call, scope string) (*PreparedCalls, error)
	// SubmitCalls hands the signed bundle to the infrastructure and returns a
	// submission identifier. Acceptance here completes a delegated send.
	SubmitCalls(ctx context.Context, prepared *PreparedCalls, signature []byte, scope string) (string, error)
	// GetCallsStatus reports the execution state for a submission identifier.
	GetCallsStatus(ctx context.Context, submissionID string) (*CallsStatus, error)
	// ProvisionAccount asks the infrastructure to provision a smart account,
	// optionally guided by a creation hint (e.g. an owner key). The core only
	// records the returned address.
	ProvisionAccount(ctx context.Context, creationHint string) (common.Address, error)
}
