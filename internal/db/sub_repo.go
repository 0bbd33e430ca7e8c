package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"creditstore/internal/types"
)

// SubscriptionRepository provides data access for user subscription records.
//
// Key invariants:
//   - Insert is idempotent on stripe_subscription_id: a replayed creation
//     event is a no-op, never a duplicate row.
//   - UpdateStatusByStripeID reports whether a local record was touched so the
//     reconciler can log and skip events for untracked subscriptions.
type SubscriptionRepository struct {
	db DBTX
}

// NewSubscriptionRepository creates a new SubscriptionRepository backed by the
// given database connection (pool or transaction).
func NewSubscriptionRepository(db DBTX) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

const subscriptionColumns = `s.id, s.user_id, s.plan_id, s.stripe_subscription_id,
	s.status, s.start_date, s.end_date, s.created_at, s.updated_at`

func scanSubscription(row pgx.Row) (*types.UserSubscription, error) {
	var s types.UserSubscription
	err := row.Scan(
		&s.ID,
		&s.UserID,
		&s.PlanID,
		&s.StripeSubscriptionID,
		&s.Status,
		&s.StartDate,
		&s.EndDate,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// Insert records a new subscription. The unique constraint on
// stripe_subscription_id absorbs replayed creation events; created=false
// means the subscription was already tracked.
func (r *SubscriptionRepository) Insert(ctx context.Context, s *types.UserSubscription) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`INSERT INTO user_subscriptions
		     (id, user_id, plan_id, stripe_subscription_id, status, start_date, end_date)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (stripe_subscription_id) DO NOTHING`,
		s.ID,
		s.UserID,
		s.PlanID,
		s.StripeSubscriptionID,
		s.Status,
		s.StartDate,
		s.EndDate,
	)
	if err != nil {
		return false, types.NewAppError(types.ErrCodeInternalDB, "failed to insert subscription", err)
	}
	return tag.RowsAffected() > 0, nil
}

// GetByStripeSubscriptionID retrieves a subscription by its Stripe reference.
// Returns (nil, nil) when the subscription is not tracked locally.
func (r *SubscriptionRepository) GetByStripeSubscriptionID(ctx context.Context, stripeSubID string) (*types.UserSubscription, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+subscriptionColumns+`
		 FROM user_subscriptions s
		 WHERE s.stripe_subscription_id = $1`,
		stripeSubID,
	)

	s, err := scanSubscription(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve subscription", err)
	}
	return s, nil
}

// UpdateStatusByStripeID sets the status (and optionally the end date) of the
// subscription identified by its Stripe reference. updated=false signals an
// event for a subscription this service never tracked; the caller decides
// whether that is worth logging.
func (r *SubscriptionRepository) UpdateStatusByStripeID(ctx context.Context, stripeSubID string, status types.SubscriptionStatus, endDate *time.Time) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE user_subscriptions
		 SET status = $1,
		     end_date = COALESCE($2, end_date),
		     updated_at = NOW()
		 WHERE stripe_subscription_id = $3`,
		status,
		endDate,
		stripeSubID,
	)
	if err != nil {
		return false, types.NewAppError(types.ErrCodeInternalDB, "failed to update subscription status", err)
	}
	return tag.RowsAffected() > 0, nil
}

// HasBlocking reports whether the user already holds a subscription to the
// plan in a state that must block a second checkout (ACTIVE, TRIALING or
// PAST_DUE).
func (r *SubscriptionRepository) HasBlocking(ctx context.Context, userID string, planID string) (bool, error) {
	blocking := make([]string, len(types.ActiveSubscriptionStatuses))
	for i, s := range types.ActiveSubscriptionStatuses {
		blocking[i] = string(s)
	}

	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (
		     SELECT 1 FROM user_subscriptions
		     WHERE user_id = $1 AND plan_id = $2 AND status = ANY($3)
		 )`,
		userID,
		planID,
		blocking,
	).Scan(&exists)
	if err != nil {
		return false, types.NewAppError(types.ErrCodeInternalDB, "failed to check existing subscriptions", err)
	}
	return exists, nil
}

// ListByUser returns all subscriptions held by the user, newest first.
func (r *SubscriptionRepository) ListByUser(ctx context.Context, userID string) ([]*types.UserSubscription, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+subscriptionColumns+`
		 FROM user_subscriptions s
		 WHERE s.user_id = $1
		 ORDER BY s.created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list subscriptions", err)
	}
	defer rows.Close()

	var subs []*types.UserSubscription
	for rows.Next() {
		s, err := scanSubscription(rows)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan subscription", err)
		}
		subs = append(subs, s)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to iterate subscriptions", err)
	}
	return subs, nil
}
