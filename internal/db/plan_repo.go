package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"creditstore/internal/types"
)

// PlanRepository provides data access for the plans catalog. Plan IDs are the
// Stripe product IDs, so a webhook carrying a productId in its metadata can be
// resolved without an extra mapping table.
type PlanRepository struct {
	db DBTX
}

// NewPlanRepository creates a new PlanRepository backed by the given database
// connection (pool or transaction).
func NewPlanRepository(db DBTX) *PlanRepository {
	return &PlanRepository{db: db}
}

const planColumns = `p.id, p.name, p.description, p.price, p.currency, p.interval,
	p.stripe_price_id, p.active, p.created_at`

func scanPlan(row pgx.Row) (*types.Plan, error) {
	var p types.Plan
	err := row.Scan(
		&p.ID,
		&p.Name,
		&p.Description,
		&p.Price,
		&p.Currency,
		&p.Interval,
		&p.StripePriceID,
		&p.Active,
		&p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetByID retrieves a plan by its ID (the Stripe product ID).
// Returns ErrCodeNotFoundPlan if absent.
func (r *PlanRepository) GetByID(ctx context.Context, id string) (*types.Plan, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+planColumns+` FROM plans p WHERE p.id = $1`,
		id,
	)

	p, err := scanPlan(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundPlan, "plan not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve plan", err)
	}
	return p, nil
}

// ListActive returns all active catalog entries ordered by price.
func (r *PlanRepository) ListActive(ctx context.Context) ([]*types.Plan, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+planColumns+` FROM plans p WHERE p.active ORDER BY p.price ASC`,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to list plans", err)
	}
	defer rows.Close()

	var plans []*types.Plan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to scan plan", err)
		}
		plans = append(plans, p)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to iterate plans", err)
	}
	return plans, nil
}

// Upsert inserts or refreshes a catalog entry. Used by the seed tool after
// creating the product and price in Stripe, so re-running the seed converges
// instead of failing on duplicates.
func (r *PlanRepository) Upsert(ctx context.Context, plan *types.Plan) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO plans (id, name, description, price, currency, interval, stripe_price_id, active)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (id) DO UPDATE SET
		     name = EXCLUDED.name,
		     description = EXCLUDED.description,
		     price = EXCLUDED.price,
		     currency = EXCLUDED.currency,
		     interval = EXCLUDED.interval,
		     stripe_price_id = EXCLUDED.stripe_price_id,
		     active = EXCLUDED.active`,
		plan.ID,
		plan.Name,
		plan.Description,
		plan.Price,
		plan.Currency,
		plan.Interval,
		plan.StripePriceID,
		plan.Active,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to upsert plan", err)
	}
	return nil
}
