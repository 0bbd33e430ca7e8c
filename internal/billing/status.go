// Package billing contains the domain logic of the storefront: checkout
// orchestration, webhook reconciliation, and invoice access. It depends on
// repository and provider interfaces, never on concrete implementations.
package billing

import "creditstore/internal/types"

// MapSubscriptionStatus translates Stripe's subscription status vocabulary to
// the local one. Unknown values collapse to INACTIVE rather than failing:
// a new provider state must never wedge the webhook pipeline.
func MapSubscriptionStatus(raw string) types.SubscriptionStatus {
	switch raw {
	case "active":
		return types.SubStatusActive
	case "past_due":
		return types.SubStatusPastDue
	case "canceled":
		return types.SubStatusCanceled
	case "unpaid":
		return types.SubStatusUnpaid
	case "trialing":
		return types.SubStatusTrialing
	default:
		return types.SubStatusInactive
	}
}

// MapInvoiceStatus translates Stripe's invoice status vocabulary to the local
// one. Unknown values collapse to PENDING.
func MapInvoiceStatus(raw string) types.InvoiceStatus {
	switch raw {
	case "draft":
		return types.InvoiceStatusPending
	case "open":
		return types.InvoiceStatusOpen
	case "paid":
		return types.InvoiceStatusPaid
	case "uncollectible":
		return types.InvoiceStatusFailed
	case "void":
		return types.InvoiceStatusVoid
	default:
		return types.InvoiceStatusPending
	}
}

// InvoiceStatusRank orders invoice statuses for monotonic transition checks.
// PAID and VOID share the top rank: voiding a paid invoice is legal, walking
// either back to PENDING, OPEN or FAILED is not. The database upsert enforces
// the same ordering in SQL.
func InvoiceStatusRank(s types.InvoiceStatus) int {
	switch s {
	case types.InvoiceStatusPaid, types.InvoiceStatusVoid:
		return 3
	case types.InvoiceStatusFailed:
		return 2
	case types.InvoiceStatusOpen:
		return 1
	default:
		return 0
	}
}
