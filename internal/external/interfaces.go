package external

import (
	"context"

	"creditstore/internal/types"
)

// BillingProvider abstracts interactions with the payment provider (Stripe).
// Implementations translate between domain types and vendor-specific APIs.
type BillingProvider interface {
	// EnsureCustomer retrieves or creates a Stripe customer for the given
	// user. Returns the Stripe customer ID. Uses email lookup first so a
	// user whose local mapping was lost does not get a duplicate customer.
	EnsureCustomer(ctx context.Context, user *types.User) (string, error)

	// CreateCheckoutSession generates a hosted Checkout Session for either a
	// one-time payment or a subscription.
	CreateCheckoutSession(ctx context.Context, params CheckoutSessionParams) (*types.CheckoutSession, error)

	// CreatePortalSession generates a Stripe Billing Portal URL for
	// self-serve billing management.
	CreatePortalSession(ctx context.Context, customerID string, returnURL string) (string, error)

	// GetSubscription retrieves a subscription by its Stripe ID.
	GetSubscription(ctx context.Context, subscriptionID string) (*types.SubscriptionDetails, error)

	// GetInvoice retrieves an invoice by its Stripe ID.
	GetInvoice(ctx context.Context, invoiceID string) (*types.InvoiceDetails, error)
}

// WebhookVerifier abstracts Stripe webhook signature checking.
type WebhookVerifier interface {
	// Verify validates a webhook payload against the provided signature
	// header and signing secret. Returns nil on success, an error on failure.
	Verify(payload []byte, header string, secret string) error
}

// CheckoutSessionParams carries everything needed to open a hosted checkout.
// Metadata is echoed back verbatim on the completion webhook and carries the
// correlation keys (userId, productId, quantity and friends).
type CheckoutSessionParams struct {
	CustomerID string
	Mode       string // "payment" or "subscription"
	PriceID    string
	Quantity   int64
	SuccessURL string
	CancelURL  string
	Metadata   map[string]string
}

// Stripe event type constants prevent magic strings in webhook handlers.
const (
	EventCheckoutCompleted = "checkout.session.completed"
	EventSubCreated        = "customer.subscription.created"
	EventSubUpdated        = "customer.subscription.updated"
	EventSubDeleted        = "customer.subscription.deleted"
	EventInvoicePaid       = "invoice.payment_succeeded"
)
