package delegate

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/agio-digital/session-keys-backend/internal/chain"
	"github.com/agio-digital/session-keys-backend/internal/policy/engine"
	"github.com/agio-digital/session-keys-backend/internal/session/domain"
	"github.com/agio-digital/session-keys-backend/internal/session/store"
	"github.com/agio-digital/session-keys-backend/internal/storekey"
)

const (
	testSessionKey = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"
	testAccount    = "0x627306090abaB3A6e1400e9345bC60c78a8BEf57"
	testRecipient  = "0xf17f52151EbEF6C7334FAD080c5704D77216b732"
	testPermCtx    = "0x0100112233445566778899aabbccddeeffdeadbeef"
)

type fakeAccountClient struct {
	mu sync.Mutex

	prepareErr error
	submitErr  error
	statusErr  error
	receipt    *chain.Receipt

	prepareCalls int
	submitCalls  int
	statusCalls  int
}

func (f *fakeAccountClient) PrepareCalls(_ context.Context, _ common.Address, _ []chain.Call, _ string) (*chain.PreparedCalls, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prepareCalls++
	if f.prepareErr != nil {
		return nil, f.prepareErr
	}
	return &chain.PreparedCalls{SignatureHash: common.HexToHash("0x01")}, nil
}

func (f *fakeAccountClient) SubmitCalls(_ context.Context, _ *chain.PreparedCalls, _ []byte, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitCalls++
	if f.submitErr != nil {
		return "", f.submitErr
	}
	return "submission-1", nil
}

func (f *fakeAccountClient) GetCallsStatus(_ context.Context, _ string) (*chain.CallsStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusCalls++
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	if f.receipt != nil {
		return &chain.CallsStatus{Receipts: []chain.Receipt{*f.receipt}}, nil
	}
	return &chain.CallsStatus{Pending: true}, nil
}

func (f *fakeAccountClient) ProvisionAccount(_ context.Context, _ string) (common.Address, error) {
	return common.HexToAddress(testAccount), nil
}

type allowAll struct{}

func (allowAll) EvaluateCall(_ context.Context, _ []domain.Permission, _ engine.CallInput) (engine.Decision, error) {
	return engine.Decision{Allowed: true}, nil
}

type denyAll struct{}

func (denyAll) EvaluateCall(_ context.Context, _ []domain.Permission, _ engine.CallInput) (engine.Decision, error) {
	return engine.Decision{}, nil
}

func storedSession(t *testing.T, mutate func(*domain.Session)) store.Store {
	t.Helper()
	s := &domain.Session{
		ID:                 "00112233445566778899aabbccddeeff",
		SessionKey:         testSessionKey,
		AccountAddress:     testAccount,
		PermissionsContext: testPermCtx,
		Permissions:        []domain.Permission{{Type: domain.PermissionRoot}},
		ExpiresAt:          time.Now().UTC().Add(time.Hour),
		CreatedAt:          time.Now().UTC(),
	}
	if mutate != nil {
		mutate(s)
	}
	sessions := store.NewMemoryStore()
	if err := sessions.Save(context.Background(), storekey.Build("alice", 0), s); err != nil {
		t.Fatalf("Save: %v", err)
	}
	return sessions
}

func newDelegator(sessions SessionSource, account chain.AccountClient, opts ...Option) *TransactionDelegator {
	opts = append([]Option{WithConfirmWindow(60*time.Millisecond, 10*time.Millisecond)}, opts...)
	return NewTransactionDelegator(sessions, account, nil, nil, nil, opts...)
}

func TestSendTransactionConfirmed(t *testing.T) {
	account := &fakeAccountClient{receipt: &chain.Receipt{
		TransactionHash: common.HexToHash("0xabc123"),
		Success:         true,
		BlockNumber:     12,
	}}
	d := newDelegator(storedSession(t, nil), account)

	result, err := d.SendTransaction(context.Background(), "alice", Call{
		To:    testRecipient,
		Value: "1000000000000000000",
	}, 0)
	if err != nil {
		t.Fatalf("SendTransaction: %v", err)
	}
	if result.Status != StatusConfirmed {
		t.Errorf("status = %s, want %s", result.Status, StatusConfirmed)
	}
	if want := common.HexToHash("0xabc123").Hex(); result.TransactionHash != want {
		t.Errorf("hash = %s, want %s", result.TransactionHash, want)
	}
	if account.prepareCalls != 1 || account.submitCalls != 1 {
		t.Errorf("prepare/submit counts = %d/%d, want 1/1", account.prepareCalls, account.submitCalls)
	}
}

func TestSendTransactionExpiredSessionFailsBeforePrepare(t *testing.T) {
	account := &fakeAccountClient{}
	d := newDelegator(storedSession(t, func(s *domain.Session) {
		s.ExpiresAt = time.Now().UTC().Add(-time.Minute)
	}), account)

	_, err := d.SendTransaction(context.Background(), "alice", Call{To: testRecipient}, 0)
	var invalid *SessionInvalidError
	if !errors.As(err, &invalid) || invalid.Reason != domain.ReasonExpired {
		t.Fatalf("err = %v, want SessionInvalidError{expired}", err)
	}
	if account.prepareCalls != 0 {
		t.Errorf("prepare was called %d times for an expired session", account.prepareCalls)
	}
}

func TestSendTransactionUnknownSession(t *testing.T) {
	d := newDelegator(store.NewMemoryStore(), &fakeAccountClient{})

	_, err := d.SendTransaction(context.Background(), "alice", Call{To: testRecipient}, 0)
	var invalid *SessionInvalidError
	if !errors.As(err, &invalid) || invalid.Reason != domain.ReasonNotFound {
		t.Fatalf("err = %v, want SessionInvalidError{not_found}", err)
	}
}

func TestSendTransactionMissingContext(t *testing.T) {
	d := newDelegator(storedSession(t, func(s *domain.Session) {
		s.PermissionsContext = ""
	}), &fakeAccountClient{})

	_, err := d.SendTransaction(context.Background(), "alice", Call{To: testRecipient}, 0)
	if !errors.Is(err, ErrMissingAuthorizationContext) {
		t.Fatalf("err = %v, want ErrMissingAuthorizationContext", err)
	}
}

func TestSendTransactionPrepareFailureIsFatal(t *testing.T) {
	cause := errors.New("bundler unavailable")
	d := newDelegator(storedSession(t, nil), &fakeAccountClient{prepareErr: cause})

	_, err := d.SendTransaction(context.Background(), "alice", Call{To: testRecipient}, 0)
	var prep *PreparationError
	if !errors.As(err, &prep) {
		t.Fatalf("err = %v, want PreparationError", err)
	}
	if !errors.Is(err, cause) {
		t.Errorf("PreparationError does not wrap its cause: %v", err)
	}
}

func TestSendTransactionSubmitFailureIsFatal(t *testing.T) {
	d := newDelegator(storedSession(t, nil), &fakeAccountClient{submitErr: errors.New("rejected")})

	_, err := d.SendTransaction(context.Background(), "alice", Call{To: testRecipient}, 0)
	var sub *SubmissionError
	if !errors.As(err, &sub) {
		t.Fatalf("err = %v, want SubmissionError", err)
	}
}

func TestSendTransactionConfirmationFailureStillSucceeds(t *testing.T) {
	account := &fakeAccountClient{statusErr: errors.New("status endpoint down")}
	d := newDelegator(storedSession(t, nil), account)

	result, err := d.SendTransaction(context.Background(), "alice", Call{To: testRecipient}, 0)
	if err != nil {
		t.Fatalf("SendTransaction: %v", err)
	}
	if result.Status != StatusSubmitted {
		t.Errorf("status = %s, want %s", result.Status, StatusSubmitted)
	}
	if result.TransactionHash != "submission-1" {
		t.Errorf("hash = %s, want the submission id", result.TransactionHash)
	}
}

func TestSendTransactionConfirmationTimeout(t *testing.T) {
	account := &fakeAccountClient{} // always pending
	d := newDelegator(storedSession(t, nil), account)

	result, err := d.SendTransaction(context.Background(), "alice", Call{To: testRecipient}, 0)
	if err != nil {
		t.Fatalf("SendTransaction: %v", err)
	}
	if result.Status != StatusSubmitted || result.TransactionHash != "submission-1" {
		t.Errorf("result = %+v, want submitted/submission-1", result)
	}
	if account.statusCalls == 0 {
		t.Error("status was never polled")
	}
}

func TestSendTransactionScopeDenied(t *testing.T) {
	account := &fakeAccountClient{}
	d := newDelegator(storedSession(t, nil), account, WithEvaluator(denyAll{}))

	_, err := d.SendTransaction(context.Background(), "alice", Call{
		To:   testRecipient,
		Data: "0xa9059cbb0000",
	}, 0)
	var denied *ScopeDeniedError
	if !errors.As(err, &denied) {
		t.Fatalf("err = %v, want ScopeDeniedError", err)
	}
	if denied.Selector != "0xa9059cbb" {
		t.Errorf("selector = %s, want 0xa9059cbb", denied.Selector)
	}
	if account.prepareCalls != 0 {
		t.Error("prepare was called for a denied call")
	}
}

func TestSendTransactionAllowedByEvaluator(t *testing.T) {
	d := newDelegator(storedSession(t, nil), &fakeAccountClient{}, WithEvaluator(allowAll{}))

	if _, err := d.SendTransaction(context.Background(), "alice", Call{To: testRecipient}, 0); err != nil {
		t.Fatalf("SendTransaction: %v", err)
	}
}

func TestParseCallValueBases(t *testing.T) {
	cases := []struct {
		value string
		want  string
		bad   bool
	}{
		{value: "", want: "0"},
		{value: "1000000000000000000", want: "1000000000000000000"},
		// A leading zero is still decimal, never octal.
		{value: "010", want: "10"},
		{value: "0x10", want: "16"},
		{value: "0X10", want: "16"},
		{value: "0b111", bad: true},
		{value: "0o17", bad: true},
		{value: "-5", bad: true},
		{value: "lots", bad: true},
	}
	for _, tc := range cases {
		_, got, _, err := parseCall(Call{To: testRecipient, Value: tc.value})
		if tc.bad {
			if !errors.Is(err, ErrInvalidCall) {
				t.Errorf("value %q: err = %v, want ErrInvalidCall", tc.value, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("value %q: %v", tc.value, err)
			continue
		}
		if got.String() != tc.want {
			t.Errorf("value %q parsed as %s, want %s", tc.value, got, tc.want)
		}
	}
}

func TestSendTransactionRejectsBadCall(t *testing.T) {
	d := newDelegator(storedSession(t, nil), &fakeAccountClient{})

	cases := []Call{
		{To: "nope"},
		{To: testRecipient, Value: "-5"},
		{To: testRecipient, Value: "lots"},
		{To: testRecipient, Data: "0xzz"},
	}
	for _, call := range cases {
		if _, err := d.SendTransaction(context.Background(), "alice", call, 0); !errors.Is(err, ErrInvalidCall) {
			t.Errorf("call %+v: err = %v, want ErrInvalidCall", call, err)
		}
	}
}
