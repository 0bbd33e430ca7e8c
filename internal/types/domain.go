// Package types defines the domain entities, enums, and error taxonomy shared
// across the creditstore service. Entities mirror the persisted schema; all
// monetary amounts are in the minor currency unit (cents).
package types

import "time"

// PaymentMode selects between a one-time credit purchase and a recurring
// subscription at checkout time.
type PaymentMode string

const (
	PaymentModeCredit       PaymentMode = "credit-purchase"
	PaymentModeSubscription PaymentMode = "subscription"
)

// Valid reports whether the payment mode is one of the accepted values.
func (m PaymentMode) Valid() bool {
	return m == PaymentModeCredit || m == PaymentModeSubscription
}

// SubscriptionStatus enumerates the lifecycle states of a local subscription
// record. Values are stored as-is in the database.
type SubscriptionStatus string

const (
	SubStatusActive   SubscriptionStatus = "ACTIVE"
	SubStatusInactive SubscriptionStatus = "INACTIVE"
	SubStatusPastDue  SubscriptionStatus = "PAST_DUE"
	SubStatusCanceled SubscriptionStatus = "CANCELED"
	SubStatusUnpaid   SubscriptionStatus = "UNPAID"
	SubStatusTrialing SubscriptionStatus = "TRIALING"
)

// ActiveSubscriptionStatuses are the states that block a second concurrent
// subscription checkout for the same (user, plan) pair.
var ActiveSubscriptionStatuses = []SubscriptionStatus{
	SubStatusActive,
	SubStatusTrialing,
	SubStatusPastDue,
}

// InvoiceStatus enumerates the local invoice lifecycle states.
type InvoiceStatus string

const (
	InvoiceStatusPending  InvoiceStatus = "PENDING"
	InvoiceStatusOpen     InvoiceStatus = "OPEN"
	InvoiceStatusPaid     InvoiceStatus = "PAID"
	InvoiceStatusVoid     InvoiceStatus = "VOID"
	InvoiceStatusFailed   InvoiceStatus = "FAILED"
	InvoiceStatusExpired  InvoiceStatus = "EXPIRED"
	InvoiceStatusCanceled InvoiceStatus = "CANCELED"
	InvoiceStatusUnpaid   InvoiceStatus = "UNPAID"
)

// Valid reports whether the invoice status is part of the local vocabulary.
// Used when validating the status filter on invoice list queries.
func (s InvoiceStatus) Valid() bool {
	switch s {
	case InvoiceStatusPending, InvoiceStatusOpen, InvoiceStatusPaid,
		InvoiceStatusVoid, InvoiceStatusFailed, InvoiceStatusExpired,
		InvoiceStatusCanceled, InvoiceStatusUnpaid:
		return true
	}
	return false
}

// User is a storefront identity holding a prepaid credit balance.
// Users are created externally (seed tooling); the service mutates only the
// credit balance and the Stripe customer mapping.
type User struct {
	ID               string     `json:"id"`
	Email            string     `json:"email"`
	Name             string     `json:"name"`
	Credits          int64      `json:"credits"`
	StripeCustomerID string     `json:"stripe_customer_id,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        *time.Time `json:"updated_at,omitempty"`
}

// Plan is a purchasable catalog entry mapping to a Stripe product/price pair.
// The ID is the Stripe product ID. Plans are immutable once referenced by a
// purchase.
type Plan struct {
	ID            string    `json:"id"` // Stripe product ID
	Name          string    `json:"name"`
	Description   string    `json:"description,omitempty"`
	Price         int64     `json:"price"` // unit amount, minor currency unit
	Currency      string    `json:"currency"`
	Interval      string    `json:"interval,omitempty"` // "month"/"year"; empty for one-time
	StripePriceID string    `json:"stripe_price_id"`
	Active        bool      `json:"active"`
	CreatedAt     time.Time `json:"created_at"`
}

// Recurring reports whether the plan bills on an interval.
func (p *Plan) Recurring() bool {
	return p.Interval != ""
}

// CreditPurchase records a completed one-time credit transaction. The Stripe
// payment intent reference is unique and serves as the idempotency key for
// webhook reconciliation: replaying the same completion event must not create
// a second row. Rows are never mutated after creation.
type CreditPurchase struct {
	ID                    string    `json:"id"`
	UserID                string    `json:"user_id"`
	PlanID                string    `json:"plan_id"`
	Quantity              int64     `json:"quantity"`
	Credits               int64     `json:"credits"` // credit delta applied to the user
	TotalAmount           int64     `json:"total_amount"`
	StripePaymentIntentID string    `json:"stripe_payment_intent_id"`
	CreatedAt             time.Time `json:"created_at"`
}

// UserSubscription links a user to a recurring plan. The Stripe subscription
// reference is unique; status is mutated only by subscription lifecycle
// events.
type UserSubscription struct {
	ID                   string             `json:"id"`
	UserID               string             `json:"user_id"`
	PlanID               string             `json:"plan_id"`
	StripeSubscriptionID string             `json:"stripe_subscription_id"`
	Status               SubscriptionStatus `json:"status"`
	StartDate            time.Time          `json:"start_date"`
	EndDate              *time.Time         `json:"end_date,omitempty"`
	CreatedAt            time.Time          `json:"created_at"`
	UpdatedAt            *time.Time         `json:"updated_at,omitempty"`
}

// Invoice mirrors a Stripe invoice for either a credit purchase or a
// subscription (exactly one of the two references is set). Status transitions
// are monotonic: a PAID or VOID invoice never reverts to an earlier state.
type Invoice struct {
	ID                 string        `json:"id"`
	CreditPurchaseID   *string       `json:"credit_purchase_id,omitempty"`
	UserSubscriptionID *string       `json:"user_subscription_id,omitempty"`
	StripeInvoiceID    string        `json:"stripe_invoice_id"`
	TotalAmount        int64         `json:"total_amount"`
	Status             InvoiceStatus `json:"status"`
	PDFURL             string        `json:"pdf_url,omitempty"`
	DueDate            *time.Time    `json:"due_date,omitempty"`
	PaidAt             *time.Time    `json:"paid_at,omitempty"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          *time.Time    `json:"updated_at,omitempty"`
}

// CheckoutSession is the result of a successful checkout orchestration: the
// hosted page the user is redirected to.
type CheckoutSession struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
}

// SubscriptionDetails is the provider-side view of a subscription, retrieved
// when reconciling a completed subscription checkout.
type SubscriptionDetails struct {
	ID               string
	Status           string // raw Stripe status vocabulary
	StartDate        time.Time
	CurrentPeriodEnd time.Time
}

// InvoiceDetails is the provider-side view of an invoice, used for enrichment
// and for resolving PDF references on download.
type InvoiceDetails struct {
	ID         string     `json:"id"`
	Status     string     `json:"status"`
	AmountDue  int64      `json:"amount_due"`
	AmountPaid int64      `json:"amount_paid"`
	PDFURL     string     `json:"invoice_pdf,omitempty"`
	DueDate    *time.Time `json:"due_date,omitempty"`
}
