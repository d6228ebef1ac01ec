// Package service implements the wallet directory: the per-user mapping of
// wallet indexes to smart account addresses.
package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/agio-digital/session-keys-backend/internal/audit"
	"github.com/agio-digital/session-keys-backend/internal/events"
	"github.com/agio-digital/session-keys-backend/internal/storekey"
	"github.com/agio-digital/session-keys-backend/internal/wallet/domain"
	"github.com/agio-digital/session-keys-backend/internal/wallet/store"
)

// ErrInvalidAddress is returned when the supplied address is not a valid hex
// address.
var ErrInvalidAddress = errors.New("invalid wallet address")

// Directory manages the user -> wallet mapping over a Store.
type Directory struct {
	wallets     store.Store
	auditLogger audit.AuditLogger
	producer    events.Producer
	logger      *zap.Logger
}

// NewDirectory returns a Directory. auditLogger and producer may be nil.
func NewDirectory(wallets store.Store, auditLogger audit.AuditLogger, producer events.Producer, logger *zap.Logger) *Directory {
	return &Directory{
		wallets:     wallets,
		auditLogger: auditLogger,
		producer:    producer,
		logger:      logger,
	}
}

// SaveWallet records the smart account address at (userID, walletIndex),
// overwriting any address already there. The stored address is canonicalized
// to its checksummed form.
func (d *Directory) SaveWallet(ctx context.Context, userID, address string, walletIndex int) (*domain.Wallet, error) {
	if !common.IsHexAddress(address) {
		return nil, ErrInvalidAddress
	}
	w := &domain.Wallet{
		Address:     common.HexToAddress(address).Hex(),
		WalletIndex: walletIndex,
		CreatedAt:   time.Now().UTC(),
	}
	if err := d.wallets.Save(ctx, storekey.Build(userID, walletIndex), w); err != nil {
		return nil, err
	}
	if d.auditLogger != nil {
		d.auditLogger.LogEvent(ctx, userID, "link", "wallet", walletIndex, w.Address)
	}
	d.emit(ctx, userID, walletIndex, w.Address)
	return w, nil
}

// GetWallet returns the wallet at (userID, walletIndex), or nil when none is
// stored.
func (d *Directory) GetWallet(ctx context.Context, userID string, walletIndex int) (*domain.Wallet, error) {
	return d.wallets.Get(ctx, storekey.Build(userID, walletIndex))
}

// ListWallets returns the user's wallets sorted by index ascending.
func (d *Directory) ListWallets(ctx context.Context, userID string) ([]*domain.Wallet, error) {
	wallets, err := d.wallets.GetAll(ctx, userID)
	if err != nil {
		return nil, err
	}
	sort.Slice(wallets, func(i, j int) bool {
		return wallets[i].WalletIndex < wallets[j].WalletIndex
	})
	return wallets, nil
}

// NextIndex returns one past the highest index the user holds, or zero for a
// user with no wallets. Gaps are not refilled.
func (d *Directory) NextIndex(ctx context.Context, userID string) (int, error) {
	wallets, err := d.wallets.GetAll(ctx, userID)
	if err != nil {
		return 0, err
	}
	next := 0
	for _, w := range wallets {
		if w.WalletIndex >= next {
			next = w.WalletIndex + 1
		}
	}
	return next, nil
}

// DeleteWallet removes the wallet at (userID, walletIndex).
func (d *Directory) DeleteWallet(ctx context.Context, userID string, walletIndex int) error {
	return d.wallets.Delete(ctx, storekey.Build(userID, walletIndex))
}

func (d *Directory) emit(ctx context.Context, userID string, walletIndex int, address string) {
	if d.producer == nil {
		return
	}
	err := d.producer.Emit(ctx, events.Event{
		ID:          uuid.New().String(),
		Type:        events.TypeWalletLinked,
		UserID:      userID,
		WalletIndex: walletIndex,
		Metadata:    map[string]string{"address": address},
		At:          time.Now().UTC(),
	})
	if err != nil && d.logger != nil {
		d.logger.Warn("event emit failed", zap.String("type", events.TypeWalletLinked), zap.Error(err))
	}
}
