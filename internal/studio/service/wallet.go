package service

import (
	"context"
	"errors"
	"time"

	"github.com/aussiebroadwan/minivisionary/internal/studio/domain"
	"github.com/aussiebroadwan/minivisionary/internal/studio/metrics"
	"github.com/aussiebroadwan/minivisionary/internal/studio/store"
	"github.com/aussiebroadwan/minivisionary/pkg/idx"
)

// DefaultReceiptLimit is how many receipts a wallet lists.
const DefaultReceiptLimit = 10

// WalletService moves credits. Every balance change writes a ledger event in
// the same transaction.
type WalletService struct {
	Store        store.Store
	Metrics      *metrics.Metrics
	ReceiptLimit int
}

// Wallet is a balance plus the latest purchase receipts.
type Wallet struct {
	Credits   int
	UpdatedAt time.Time
	Receipts  []domain.CreditEvent
}

// Spend debits amount or fails with ErrInsufficientCredits without writing.
func (s *WalletService) Spend(ctx context.Context, userID string, amount int, note string) (domain.CreditEvent, error) {
	if amount <= 0 {
		return domain.CreditEvent{}, ErrInvalidInput
	}
	return s.apply(ctx, domain.CreditEvent{UserID: userID, Kind: domain.CreditSpend, Amount: -amount, Note: note})
}

func (s *WalletService) Grant(ctx context.Context, userID string, amount int, note string) (domain.CreditEvent, error) {
	if amount <= 0 {
		return domain.CreditEvent{}, ErrInvalidInput
	}
	return s.apply(ctx, domain.CreditEvent{UserID: userID, Kind: domain.CreditGrant, Amount: amount, Note: note})
}

// Refund returns credits taken by an earlier spend.
func (s *WalletService) Refund(ctx context.Context, userID string, amount int, note string) (domain.CreditEvent, error) {
	if amount <= 0 {
		return domain.CreditEvent{}, ErrInvalidInput
	}
	return s.apply(ctx, domain.CreditEvent{UserID: userID, Kind: domain.CreditRefund, Amount: amount, Note: note})
}

func (s *WalletService) Wallet(ctx context.Context, userID string) (Wallet, error) {
	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return Wallet{}, ErrNotFound
		}
		return Wallet{}, err
	}

	limit := s.ReceiptLimit
	if limit <= 0 {
		limit = DefaultReceiptLimit
	}
	receipts, err := s.Store.Ledger().ListByUser(ctx, userID, domain.CreditPurchase, limit)
	if err != nil {
		return Wallet{}, err
	}

	return Wallet{Credits: user.Credits, UpdatedAt: user.UpdatedAt, Receipts: receipts}, nil
}

// Receipt returns one of the user's purchases.
func (s *WalletService) Receipt(ctx context.Context, userID, id string) (domain.CreditEvent, error) {
	e, err := s.Store.Ledger().Get(ctx, userID, id)
	if errors.Is(err, store.ErrNotFound) || (err == nil && e.Kind != domain.CreditPurchase) {
		return domain.CreditEvent{}, ErrNotFound
	}
	return e, err
}

func (s *WalletService) apply(ctx context.Context, e domain.CreditEvent) (domain.CreditEvent, error) {
	var out domain.CreditEvent
	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		out, err = applyCredits(ctx, tx, e)
		return err
	})
	if err != nil {
		return domain.CreditEvent{}, err
	}
	s.record(out)
	return out, nil
}

func (s *WalletService) record(e domain.CreditEvent) {
	if s == nil {
		return
	}
	s.Metrics.CreditsMoved(string(e.Kind), e.Amount)
}

// applyCredits adjusts the balance and appends the ledger event inside tx.
func applyCredits(ctx context.Context, tx store.Tx, e domain.CreditEvent) (domain.CreditEvent, error) {
	balance, err := tx.Users().AdjustCredits(ctx, e.UserID, e.Amount)
	switch {
	case errors.Is(err, store.ErrNegativeBalance):
		return domain.CreditEvent{}, ErrInsufficientCredits
	case errors.Is(err, store.ErrNotFound):
		return domain.CreditEvent{}, ErrNotFound
	case err != nil:
		return domain.CreditEvent{}, err
	}

	e.ID = idx.New().String()
	e.BalanceAfter = balance
	e.CreatedAt = time.Now().UTC()
	if err := tx.Ledger().Append(ctx, e); err != nil {
		return domain.CreditEvent{}, err
	}
	return e, nil
}
