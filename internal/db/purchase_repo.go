package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"creditstore/internal/types"
)

// CreditPurchaseRepository provides data access for credit purchase records.
// Rows are append-only: a purchase is written exactly once during webhook
// reconciliation and never mutated afterwards.
type CreditPurchaseRepository struct {
	db DBTX
}

// NewCreditPurchaseRepository creates a new CreditPurchaseRepository backed by
// the given database connection (pool or transaction).
func NewCreditPurchaseRepository(db DBTX) *CreditPurchaseRepository {
	return &CreditPurchaseRepository{db: db}
}

const purchaseColumns = `cp.id, cp.user_id, cp.plan_id, cp.quantity, cp.credits,
	cp.total_amount, cp.stripe_payment_intent_id, cp.created_at`

func scanPurchase(row pgx.Row) (*types.CreditPurchase, error) {
	var p types.CreditPurchase
	err := row.Scan(
		&p.ID,
		&p.UserID,
		&p.PlanID,
		&p.Quantity,
		&p.Credits,
		&p.TotalAmount,
		&p.StripePaymentIntentID,
		&p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Insert records a completed credit purchase. The unique constraint on
// stripe_payment_intent_id is the idempotency guard: a replayed event is
// swallowed by ON CONFLICT DO NOTHING and Insert reports created=false so the
// caller skips every downstream effect (credit grant, invoice write).
func (r *CreditPurchaseRepository) Insert(ctx context.Context, p *types.CreditPurchase) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`INSERT INTO credit_purchases
		     (id, user_id, plan_id, quantity, credits, total_amount, stripe_payment_intent_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (stripe_payment_intent_id) DO NOTHING`,
		p.ID,
		p.UserID,
		p.PlanID,
		p.Quantity,
		p.Credits,
		p.TotalAmount,
		p.StripePaymentIntentID,
	)
	if err != nil {
		return false, types.NewAppError(types.ErrCodeInternalDB, "failed to insert credit purchase", err)
	}
	return tag.RowsAffected() > 0, nil
}

// GetByStripePaymentIntentID retrieves a purchase by its Stripe payment intent
// reference. Returns (nil, nil) when no purchase matches so callers can
// distinguish absence from a query failure.
func (r *CreditPurchaseRepository) GetByStripePaymentIntentID(ctx context.Context, paymentIntentID string) (*types.CreditPurchase, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+purchaseColumns+`
		 FROM credit_purchases cp
		 WHERE cp.stripe_payment_intent_id = $1`,
		paymentIntentID,
	)

	p, err := scanPurchase(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve credit purchase", err)
	}
	return p, nil
}
