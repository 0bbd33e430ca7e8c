package billing

import "encoding/json"

// Event is the envelope of a Stripe webhook event. Only the fields the
// reconciler needs are decoded; everything else stays raw.
type Event struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

// Metadata keys written at checkout time and read back on the completion
// webhook. The vocabulary is part of the contract with the hosted checkout.
const (
	MetaUserID       = "userId"
	MetaProductID    = "productId"
	MetaCustomerID   = "customerId"
	MetaQuantity     = "quantity"
	MetaUnitPrice    = "unitPrice"
	MetaCredits      = "creditsBought"
	MetaPurchaseType = "type"
)

// Purchase type metadata values.
const (
	PurchaseTypeCredit       = "credit_purchase"
	PurchaseTypeSubscription = "subscription_purchase"
)

// CheckoutSessionEvent is the data.object of checkout.session.completed.
type CheckoutSessionEvent struct {
	ID            string            `json:"id"`
	Mode          string            `json:"mode"`
	Customer      string            `json:"customer"`
	PaymentIntent string            `json:"payment_intent"`
	Subscription  string            `json:"subscription"`
	Invoice       string            `json:"invoice"`
	AmountTotal   int64             `json:"amount_total"`
	Metadata      map[string]string `json:"metadata"`
}

// SubscriptionEvent is the data.object of customer.subscription.* events.
type SubscriptionEvent struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	CanceledAt int64  `json:"canceled_at"`
	EndedAt    int64  `json:"ended_at"`
}

// InvoiceEvent is the data.object of invoice.payment_succeeded.
type InvoiceEvent struct {
	ID                string `json:"id"`
	Status            string `json:"status"`
	Subscription      string `json:"subscription"`
	AmountDue         int64  `json:"amount_due"`
	AmountPaid        int64  `json:"amount_paid"`
	InvoicePDF        string `json:"invoice_pdf"`
	DueDate           int64  `json:"due_date"`
	StatusTransitions struct {
		PaidAt int64 `json:"paid_at"`
	} `json:"status_transitions"`
}
