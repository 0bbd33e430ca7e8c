package billing

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"creditstore/internal/types"
)

func TestMapSubscriptionStatus(t *testing.T) {
	tests := []struct {
		raw  string
		want types.SubscriptionStatus
	}{
		{"active", types.SubStatusActive},
		{"past_due", types.SubStatusPastDue},
		{"canceled", types.SubStatusCanceled},
		{"unpaid", types.SubStatusUnpaid},
		{"trialing", types.SubStatusTrialing},
		{"incomplete", types.SubStatusInactive},
		{"incomplete_expired", types.SubStatusInactive},
		{"paused", types.SubStatusInactive},
		{"", types.SubStatusInactive},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, MapSubscriptionStatus(tt.raw))
		})
	}
}

func TestMapInvoiceStatus(t *testing.T) {
	tests := []struct {
		raw  string
		want types.InvoiceStatus
	}{
		{"draft", types.InvoiceStatusPending},
		{"open", types.InvoiceStatusOpen},
		{"paid", types.InvoiceStatusPaid},
		{"uncollectible", types.InvoiceStatusFailed},
		{"void", types.InvoiceStatusVoid},
		{"something_new", types.InvoiceStatusPending},
		{"", types.InvoiceStatusPending},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, MapInvoiceStatus(tt.raw))
		})
	}
}

func TestInvoiceStatusRank_Monotonicity(t *testing.T) {
	// Terminal states never rank below any other state.
	terminal := []types.InvoiceStatus{types.InvoiceStatusPaid, types.InvoiceStatusVoid}
	others := []types.InvoiceStatus{
		types.InvoiceStatusPending,
		types.InvoiceStatusOpen,
		types.InvoiceStatusFailed,
	}

	for _, term := range terminal {
		for _, other := range others {
			assert.Greater(t, InvoiceStatusRank(term), InvoiceStatusRank(other),
				"%s must outrank %s", term, other)
		}
	}

	// PAID and VOID are interchangeable so voiding a paid invoice is allowed.
	assert.Equal(t,
		InvoiceStatusRank(types.InvoiceStatusPaid),
		InvoiceStatusRank(types.InvoiceStatusVoid),
	)

	// The escalation ladder below terminal states.
	assert.Greater(t, InvoiceStatusRank(types.InvoiceStatusFailed), InvoiceStatusRank(types.InvoiceStatusOpen))
	assert.Greater(t, InvoiceStatusRank(types.InvoiceStatusOpen), InvoiceStatusRank(types.InvoiceStatusPending))
}
