package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"creditstore/internal/types"
)

// InvoiceRepository provides data access for invoice records.
//
// Key invariants:
//   - Upsert enforces monotonic status transitions with an in-query rank
//     guard: a terminal invoice (PAID, VOID) is never downgraded by a late or
//     out-of-order webhook.
//   - All read paths are user-scoped through the owning purchase or
//     subscription; an invoice is never visible to a user who does not own it.
type InvoiceRepository struct {
	db DBTX
}

// NewInvoiceRepository creates a new InvoiceRepository backed by the given
// database connection (pool or transaction).
func NewInvoiceRepository(db DBTX) *InvoiceRepository {
	return &InvoiceRepository{db: db}
}

const invoiceColumns = `i.id, i.credit_purchase_id, i.user_subscription_id,
	i.stripe_invoice_id, i.total_amount, i.status, i.pdf_url, i.due_date,
	i.paid_at, i.created_at, i.updated_at`

// statusRankSQL ranks invoice statuses for the monotonic transition guard.
// PAID and VOID share the top rank so voiding a paid invoice is allowed while
// reverting either to PENDING, OPEN or FAILED is not.
const statusRankSQL = `CASE %s
	WHEN 'PAID' THEN 3
	WHEN 'VOID' THEN 3
	WHEN 'FAILED' THEN 2
	WHEN 'OPEN' THEN 1
	ELSE 0 END`

func scanInvoice(row pgx.Row) (*types.Invoice, error) {
	var inv types.Invoice
	var stripeInvoiceID *string
	err := row.Scan(
		&inv.ID,
		&inv.CreditPurchaseID,
		&inv.UserSubscriptionID,
		&stripeInvoiceID,
		&inv.TotalAmount,
		&inv.Status,
		&inv.PDFURL,
		&inv.DueDate,
		&inv.PaidAt,
		&inv.CreatedAt,
		&inv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if stripeInvoiceID != nil {
		inv.StripeInvoiceID = *stripeInvoiceID
	}
	return &inv, nil
}

// Upsert creates or refreshes the local mirror of a Stripe invoice, keyed on
// stripe_invoice_id. The conflict branch only fires when the incoming status
// ranks at least as high as the stored one, so replayed or out-of-order
// events cannot walk a terminal invoice backwards. Fields Stripe omits on a
// given event (pdf_url, due_date, paid_at) keep their stored values.
//
// Invoices without a Stripe reference (payment-mode sessions) are plain
// inserts; they can never conflict and are written at most once because the
// owning purchase insert is itself idempotent.
func (r *InvoiceRepository) Upsert(ctx context.Context, inv *types.Invoice) error {
	oldRank := fmt.Sprintf(statusRankSQL, "invoices.status")
	newRank := fmt.Sprintf(statusRankSQL, "EXCLUDED.status")

	_, err := r.db.Exec(ctx,
		`INSERT INTO invoices
		     (id, credit_purchase_id, user_subscription_id, stripe_invoice_id,
		      total_amount, status, pdf_url, due_date, paid_at)
		 VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8, $9)
		 ON CONFLICT (stripe_invoice_id) DO UPDATE SET
		     status = EXCLUDED.status,
		     total_amount = EXCLUDED.total_amount,
		     pdf_url = CASE WHEN EXCLUDED.pdf_url <> '' THEN EXCLUDED.pdf_url ELSE invoices.pdf_url END,
		     due_date = COALESCE(EXCLUDED.due_date, invoices.due_date),
		     paid_at = COALESCE(EXCLUDED.paid_at, invoices.paid_at),
		     credit_purchase_id = COALESCE(invoices.credit_purchase_id, EXCLUDED.credit_purchase_id),
		     user_subscription_id = COALESCE(invoices.user_subscription_id, EXCLUDED.user_subscription_id),
		     updated_at = NOW()
		 WHERE (`+oldRank+`) <= (`+newRank+`)`,
		inv.ID,
		inv.CreditPurchaseID,
		inv.UserSubscriptionID,
		inv.StripeInvoiceID,
		inv.TotalAmount,
		inv.Status,
		inv.PDFURL,
		inv.DueDate,
		inv.PaidAt,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to upsert invoice", err)
	}
	return nil
}

// invoiceOwnerJoin scopes invoice queries to the owning user through either
// parent record.
const invoiceOwnerJoin = `FROM invoices i
	 LEFT JOIN credit_purchases cp ON cp.id = i.credit_purchase_id
	 LEFT JOIN user_subscriptions us ON us.id = i.user_subscription_id`

// ListByUser returns one page of the user's invoices (newest first) together
// with the unfiltered-by-page total for pagination metadata. Filters on
// status and creation date range are optional.
func (r *InvoiceRepository) ListByUser(ctx context.Context, userID string, q types.InvoiceListQuery) ([]*types.Invoice, int, error) {
	where := []string{`COALESCE(cp.user_id, us.user_id) = $1`}
	args := []any{userID}

	if q.Status != nil {
		args = append(args, *q.Status)
		where = append(where, fmt.Sprintf(`i.status = $%d`, len(args)))
	}
	if q.DateFrom != nil {
		args = append(args, *q.DateFrom)
		where = append(where, fmt.Sprintf(`i.created_at >= $%d`, len(args)))
	}
	if q.DateTo != nil {
		args = append(args, *q.DateTo)
		where = append(where, fmt.Sprintf(`i.created_at <= $%d`, len(args)))
	}
	whereClause := ` WHERE ` + strings.Join(where, ` AND `)

	var total int
	err := r.db.QueryRow(ctx,
		`SELECT COUNT(*) `+invoiceOwnerJoin+whereClause,
		args...,
	).Scan(&total)
	if err != nil {
		return nil, 0, types.NewAppError(types.ErrCodeInternalDB, "failed to count invoices", err)
	}

	args = append(args, q.Limit, q.Offset())
	rows, err := r.db.Query(ctx,
		`SELECT `+invoiceColumns+` `+invoiceOwnerJoin+whereClause+
			fmt.Sprintf(` ORDER BY i.created_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args)),
		args...,
	)
	if err != nil {
		return nil, 0, types.NewAppError(types.ErrCodeInternalDB, "failed to list invoices", err)
	}
	defer rows.Close()

	var invoices []*types.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, 0, types.NewAppError(types.ErrCodeInternalDB, "failed to scan invoice", err)
		}
		invoices = append(invoices, inv)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, types.NewAppError(types.ErrCodeInternalDB, "failed to iterate invoices", err)
	}
	return invoices, total, nil
}

// GetForUser retrieves one invoice by its local ID, scoped to the owning
// user. Returns ErrCodeNotFoundInvoice when the invoice does not exist or
// belongs to someone else; the two cases are deliberately indistinguishable.
func (r *InvoiceRepository) GetForUser(ctx context.Context, id string, userID string) (*types.Invoice, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+invoiceColumns+` `+invoiceOwnerJoin+`
		 WHERE i.id = $1 AND COALESCE(cp.user_id, us.user_id) = $2`,
		id,
		userID,
	)

	inv, err := scanInvoice(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundInvoice, "invoice not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve invoice", err)
	}
	return inv, nil
}

// GetByStripeIDForUser retrieves one invoice by its Stripe reference, scoped
// to the owning user.
func (r *InvoiceRepository) GetByStripeIDForUser(ctx context.Context, stripeInvoiceID string, userID string) (*types.Invoice, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+invoiceColumns+` `+invoiceOwnerJoin+`
		 WHERE i.stripe_invoice_id = $1 AND COALESCE(cp.user_id, us.user_id) = $2`,
		stripeInvoiceID,
		userID,
	)

	inv, err := scanInvoice(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, types.NewAppError(types.ErrCodeNotFoundInvoice, "invoice not found", nil)
		}
		return nil, types.NewAppError(types.ErrCodeInternalDB, "failed to retrieve invoice", err)
	}
	return inv, nil
}

// UpdatePDFURL caches the hosted PDF location resolved from Stripe so the
// next download request skips the upstream call.
func (r *InvoiceRepository) UpdatePDFURL(ctx context.Context, id string, pdfURL string) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE invoices SET pdf_url = $1, updated_at = NOW() WHERE id = $2`,
		pdfURL,
		id,
	)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalDB, "failed to update invoice pdf url", err)
	}
	if tag.RowsAffected() == 0 {
		return types.NewAppError(types.ErrCodeNotFoundInvoice, "invoice not found", nil)
	}
	return nil
}
