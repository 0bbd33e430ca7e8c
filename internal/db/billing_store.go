package db

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"creditstore/internal/types"
)

// BillingStore groups the write paths that must be atomic: a credit purchase
// and its credit grant either both land or neither does. It composes the
// row-level repositories over a single pgx transaction; callers outside
// reconciliation keep using the repositories directly.
type BillingStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewBillingStore creates a BillingStore over the given pool.
func NewBillingStore(pool *pgxpool.Pool, logger *slog.Logger) *BillingStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &BillingStore{pool: pool, logger: logger}
}

// withTx runs fn inside a transaction, rolling back on error or panic.
func (s *BillingStore) withTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to begin transaction", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to commit transaction", err)
	}
	return nil
}

// ApplyCreditPurchase records a completed credit purchase, grants the credits
// and writes the associated invoice in one transaction. applied=false means
// the payment intent was already processed: the whole unit becomes a no-op
// and no credits move a second time.
func (s *BillingStore) ApplyCreditPurchase(ctx context.Context, purchase *types.CreditPurchase, invoice *types.Invoice) (bool, error) {
	applied := false
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		created, err := NewCreditPurchaseRepository(tx).Insert(ctx, purchase)
		if err != nil {
			return err
		}
		if !created {
			return nil
		}

		if err := NewUserRepository(tx).AddCredits(ctx, purchase.UserID, purchase.Credits); err != nil {
			return err
		}

		if invoice != nil {
			invoice.CreditPurchaseID = &purchase.ID
			if err := NewInvoiceRepository(tx).Upsert(ctx, invoice); err != nil {
				return err
			}
		}

		applied = true
		return nil
	})
	return applied, err
}

// CreateSubscription records a new subscription and, when the checkout
// produced one, its first invoice, atomically. created=false means the Stripe
// subscription was already tracked and nothing was written.
func (s *BillingStore) CreateSubscription(ctx context.Context, sub *types.UserSubscription, invoice *types.Invoice) (bool, error) {
	created := false
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		inserted, err := NewSubscriptionRepository(tx).Insert(ctx, sub)
		if err != nil {
			return err
		}
		if !inserted {
			return nil
		}

		if invoice != nil {
			invoice.UserSubscriptionID = &sub.ID
			if err := NewInvoiceRepository(tx).Upsert(ctx, invoice); err != nil {
				return err
			}
		}

		created = true
		return nil
	})
	return created, err
}
