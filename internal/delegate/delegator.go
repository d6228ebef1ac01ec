// Package delegate executes transactions on behalf of a user's smart account
// using a stored session key: load and validate the session, prepare the call
// bundle, sign its digest with the session key, submit, then wait briefly for
// confirmation.
//
// Everything up to and including submission is fatal on failure. The
// confirmation wait is best-effort: once the infrastructure accepted the
// bundle the send has succeeded, and a timeout only degrades the result from
// Confirmed to Submitted.
package delegate

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agio-digital/session-keys-backend/internal/audit"
	"github.com/agio-digital/session-keys-backend/internal/chain"
	"github.com/agio-digital/session-keys-backend/internal/events"
	"github.com/agio-digital/session-keys-backend/internal/policy/engine"
	"github.com/agio-digital/session-keys-backend/internal/session/domain"
	"github.com/agio-digital/session-keys-backend/internal/storekey"
)

// Status of a delegated send.
type Status string

const (
	// StatusSubmitted means the infrastructure accepted the bundle but no
	// receipt arrived within the confirmation window.
	StatusSubmitted Status = "submitted"
	// StatusConfirmed means a receipt arrived within the window.
	StatusConfirmed Status = "confirmed"
)

// Call is a single requested call, as the transport receives it. Value is a
// wei amount, decimal or 0x-hex; empty means zero. Data is hex calldata,
// empty for plain transfers.
type Call struct {
	To    string `json:"to"`
	Value string `json:"value,omitempty"`
	Data  string `json:"data,omitempty"`
}

// SendResult is the outcome of a successful delegated send. TransactionHash
// holds the submission identifier until a receipt upgrades it to the on-chain
// transaction hash.
type SendResult struct {
	TransactionHash string `json:"transactionHash"`
	Status          Status `json:"status"`
}

// SessionSource is the slice of the session store the delegator needs.
type SessionSource interface {
	Get(ctx context.Context, key string) (*domain.Session, error)
}

// Defaults for the confirmation window.
const (
	DefaultConfirmTimeout      = 30 * time.Second
	DefaultConfirmPollInterval = 2 * time.Second
)

// TransactionDelegator sends calls on behalf of smart accounts using stored
// session keys.
type TransactionDelegator struct {
	sessions    SessionSource
	account     chain.AccountClient
	evaluator   engine.Evaluator
	auditLogger audit.AuditLogger
	producer    events.Producer
	logger      *zap.Logger

	confirmTimeout time.Duration
	pollInterval   time.Duration
	nowF           func() time.Time
}

// Option configures a TransactionDelegator.
type Option func(*TransactionDelegator)

// WithConfirmWindow bounds the confirmation wait. A non-positive timeout or
// interval keeps the default.
func WithConfirmWindow(timeout, interval time.Duration) Option {
	return func(d *TransactionDelegator) {
		if timeout > 0 {
			d.confirmTimeout = timeout
		}
		if interval > 0 {
			d.pollInterval = interval
		}
	}
}

// WithEvaluator enables the pre-flight scope check. A nil evaluator leaves
// the check off; the chain still enforces the grant either way.
func WithEvaluator(evaluator engine.Evaluator) Option {
	return func(d *TransactionDelegator) { d.evaluator = evaluator }
}

// NewTransactionDelegator returns a delegator. auditLogger and producer may
// be nil.
func NewTransactionDelegator(sessions SessionSource, account chain.AccountClient, auditLogger audit.AuditLogger, producer events.Producer, logger *zap.Logger, opts ...Option) *TransactionDelegator {
	d := &TransactionDelegator{
		sessions:       sessions,
		account:        account,
		auditLogger:    auditLogger,
		producer:       producer,
		logger:         logger,
		confirmTimeout: DefaultConfirmTimeout,
		pollInterval:   DefaultConfirmPollInterval,
		nowF:           func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// SendTransaction executes one call on behalf of (userID, walletIndex) using
// the stored session. The call value defaults to zero and the calldata to
// empty.
func (d *TransactionDelegator) SendTransaction(ctx context.Context, userID string, call Call, walletIndex int) (*SendResult, error) {
	session, err := d.sessions.Get(ctx, storekey.Build(userID, walletIndex))
	if err != nil {
		return nil, err
	}
	if result := domain.Validate(session, d.nowF()); !result.Valid {
		return nil, &SessionInvalidError{Reason: result.Reason}
	}
	if session.PermissionsContext == "" {
		return nil, ErrMissingAuthorizationContext
	}

	to, value, data, err := parseCall(call)
	if err != nil {
		return nil, err
	}

	if d.evaluator != nil {
		input := engine.CallInput{
			To:       to.Hex(),
			Value:    value.String(),
			Selector: selectorOf(data),
			DataLen:  len(data),
		}
		decision, err := d.evaluator.EvaluateCall(ctx, session.Permissions, input)
		if err != nil {
			return nil, fmt.Errorf("scope check: %w", err)
		}
		if !decision.Allowed {
			return nil, &ScopeDeniedError{To: input.To, Selector: input.Selector}
		}
	}

	signer, err := chain.NewSigner(session.SessionKey)
	if err != nil {
		return nil, &SigningError{Cause: err}
	}

	from := common.HexToAddress(session.AccountAddress)
	calls := []chain.Call{{
		To:    to,
		Value: (*hexutil.Big)(value),
		Data:  data,
	}}
	prepared, err := d.account.PrepareCalls(ctx, from, calls, session.PermissionsContext)
	if err != nil {
		return nil, &PreparationError{Cause: err}
	}

	signature, err := signer.SignHash(prepared.SignatureHash)
	if err != nil {
		return nil, &SigningError{Cause: err}
	}

	submissionID, err := d.account.SubmitCalls(ctx, prepared, signature, session.PermissionsContext)
	if err != nil {
		return nil, &SubmissionError{Cause: err}
	}

	if d.auditLogger != nil {
		d.auditLogger.LogEvent(ctx, userID, "send", "transaction", walletIndex, submissionID)
	}
	d.emit(ctx, events.TypeTransactionSubmitted, userID, walletIndex, map[string]string{
		"submission_id": submissionID,
		"to":            to.Hex(),
	})

	if receipt := d.awaitReceipt(ctx, submissionID); receipt != nil {
		d.emit(ctx, events.TypeTransactionConfirmed, userID, walletIndex, map[string]string{
			"submission_id":    submissionID,
			"transaction_hash": receipt.TransactionHash.Hex(),
		})
		return &SendResult{
			TransactionHash: receipt.TransactionHash.Hex(),
			Status:          StatusConfirmed,
		}, nil
	}
	return &SendResult{TransactionHash: submissionID, Status: StatusSubmitted}, nil
}

// awaitReceipt polls for a receipt until the confirmation window closes.
// Every failure path returns nil; submission already succeeded.
func (d *TransactionDelegator) awaitReceipt(ctx context.Context, submissionID string) *chain.Receipt {
	waitCtx, cancel := context.WithTimeout(ctx, d.confirmTimeout)
	defer cancel()

	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	for {
		status, err := d.account.GetCallsStatus(waitCtx, submissionID)
		switch {
		case err != nil:
			if d.logger != nil {
				d.logger.Warn("confirmation poll failed",
					zap.String("submission_id", submissionID), zap.Error(err))
			}
		case !status.Pending && len(status.Receipts) > 0:
			return &status.Receipts[0]
		}

		select {
		case <-waitCtx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func parseCall(call Call) (common.Address, *big.Int, []byte, error) {
	if !common.IsHexAddress(call.To) {
		return common.Address{}, nil, nil, fmt.Errorf("%w: bad to address %q", ErrInvalidCall, call.To)
	}
	to := common.HexToAddress(call.To)

	// Decimal by default; only an explicit 0x prefix switches to hex, so a
	// leading zero never flips the base under the caller.
	value := new(big.Int)
	if call.Value != "" {
		digits, base := call.Value, 10
		if strings.HasPrefix(call.Value, "0x") || strings.HasPrefix(call.Value, "0X") {
			digits, base = call.Value[2:], 16
		}
		parsed, ok := value.SetString(digits, base)
		if !ok || parsed.Sign() < 0 {
			return common.Address{}, nil, nil, fmt.Errorf("%w: bad value %q", ErrInvalidCall, call.Value)
		}
	}

	var data []byte
	if call.Data != "" {
		decoded, err := hex.DecodeString(strings.TrimPrefix(call.Data, "0x"))
		if err != nil {
			return common.Address{}, nil, nil, fmt.Errorf("%w: bad calldata: %v", ErrInvalidCall, err)
		}
		data = decoded
	}
	return to, value, data, nil
}

func selectorOf(data []byte) string {
	if len(data) < 4 {
		return ""
	}
	return "0x" + hex.EncodeToString(data[:4])
}

func (d *TransactionDelegator) emit(ctx context.Context, eventType, userID string, walletIndex int, metadata map[string]string) {
	if d.producer == nil {
		return
	}
	err := d.producer.Emit(ctx, events.Event{
		ID:          uuid.New().String(),
		Type:        eventType,
		UserID:      userID,
		WalletIndex: walletIndex,
		Metadata:    metadata,
		At:          d.nowF(),
	})
	if err != nil && d.logger != nil {
		d.logger.Warn("event emit failed", zap.String("type", eventType), zap.Error(err))
	}
}
