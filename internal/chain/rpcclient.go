package chain

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
)

// RPCClient implements AccountClient against a JSON-RPC endpoint exposing the
// wallet_prepareCalls / wallet_sendPreparedCalls / wallet_getCallsStatus
// surface (EIP-5792 style bundler with permissions capability).
type RPCClient struct {
	rpc *rpc.Client
}

// Dial connects to the account infrastructure at url.
func Dial(ctx context.Context, url string) (*RPCClient, error) {
	c, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("account infrastructure dial: %w", err)
	}
	return &RPCClient{rpc: c}, nil
}

// NewRPCClient wraps an existing rpc connection; useful for tests.
func NewRPCClient(c *rpc.Client) *RPCClient {
	return &RPCClient{rpc: c}
}

// Close releases the underlying connection.
func (c *RPCClient) Close() {
	c.rpc.Close()
}

type permissionsCapability struct {
	Context string `json:"context"`
}

type callCapabilities struct {
	Permissions *permissionsCapability `json:"permissions,omitempty"`
}

type prepareCallsParams struct {
	From         common.Address   `json:"from"`
	Calls        []Call           `json:"calls"`
	Capabilities callCapabilities `json:"capabilities"`
}

type prepareCallsResult struct {
	Context          json.RawMessage `json:"context"`
	SignatureRequest struct {
		Hash common.Hash `json:"hash"`
	} `json:"signatureRequest"`
}

// PrepareCalls asks the infrastructure to build an unsigned bundle.
func (c *RPCClient) PrepareCalls(ctx context.Context, from common.Address, calls []Call, scope string) (*PreparedCalls, error) {
	params := prepareCallsParams{
		From:  from,
		Calls: calls,
		Capabilities: callCapabilities{
			Permissions: &permissionsCapability{Context: scope},
		},
	}
	var res prepareCallsResult
	if err := c.rpc.CallContext(ctx, &res, "wallet_prepareCalls", params); err != nil {
		return nil, err
	}
	return &PreparedCalls{
		Context:       res.Context,
		SignatureHash: res.SignatureRequest.Hash,
	}, nil
}

type sendPreparedCallsParams struct {
	Context      json.RawMessage  `json:"context"`
	Signature    hexutil.Bytes    `json:"signature"`
	Capabilities callCapabilities `json:"capabilities"`
}

// SubmitCalls submits the signed bundle and returns its submission id.
func (c *RPCClient) SubmitCalls(ctx context.Context, prepared *PreparedCalls, signature []byte, scope string) (string, error) {
	params := sendPreparedCallsParams{
		Context:   prepared.Context,
		Signature: signature,
		Capabilities: callCapabilities{
			Permissions: &permissionsCapability{Context: scope},
		},
	}
	var id string
	if err := c.rpc.CallContext(ctx, &id, "wallet_sendPreparedCalls", params); err != nil {
		return "", err
	}
	return id, nil
}

type callsStatusResult struct {
	Status   string `json:"status"`
	Receipts []struct {
		TransactionHash common.Hash    `json:"transactionHash"`
		Status          hexutil.Uint64 `json:"status"`
		BlockNumber     hexutil.Uint64 `json:"blockNumber"`
	} `json:"receipts"`
}

// GetCallsStatus reports the execution state for a submission id.
func (c *RPCClient) GetCallsStatus(ctx context.Context, submissionID string) (*CallsStatus, error) {
	var res callsStatusResult
	if err := c.rpc.CallContext(ctx, &res, "wallet_getCallsStatus", submissionID); err != nil {
		return nil, err
	}
	status := &CallsStatus{Pending: res.Status == "PENDING" || res.Status == ""}
	for _, r := range res.Receipts {
		status.Receipts = append(status.Receipts, Receipt{
			TransactionHash: r.TransactionHash,
			Success:         r.Status == 1,
			BlockNumber:     uint64(r.BlockNumber),
		})
	}
	return status, nil
}

type provisionAccountParams struct {
	CreationHint string `json:"creationHint,omitempty"`
}

// ProvisionAccount asks the infrastructure to provision a smart account.
func (c *RPCClient) ProvisionAccount(ctx context.Context, creationHint string) (common.Address, error) {
	var addr common.Address
	if err := c.rpc.CallContext(ctx, &addr, "wallet_provisionAccount", provisionAccountParams{CreationHint: creationHint}); err != nil {
		return common.Address{}, err
	}
	return addr, nil
}
