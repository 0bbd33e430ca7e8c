package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"creditstore/internal/billing"
	"creditstore/internal/types"
)

// ---------------------------------------------------------------------------
// Mock Implementations
// ---------------------------------------------------------------------------

type mockCheckoutService struct {
	requests   []billing.CheckoutRequest
	session    *types.CheckoutSession
	sessionErr error
	portalURL  string
	portalErr  error
}

func (m *mockCheckoutService) StartCheckout(ctx context.Context, req billing.CheckoutRequest) (*types.CheckoutSession, error) {
	m.requests = append(m.requests, req)
	return m.session, m.sessionErr
}

func (m *mockCheckoutService) PortalSession(ctx context.Context, userID string) (string, error) {
	return m.portalURL, m.portalErr
}

// ---------------------------------------------------------------------------
// Test Helpers
// ---------------------------------------------------------------------------

func postCheckoutForm(h *CheckoutHandler, form url.Values, withActor bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/checkout-sessions", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if withActor {
		ctx := types.WithActor(req.Context(), types.Actor{UserID: "user_1", Email: "demo@example.com"})
		req = req.WithContext(ctx)
	}
	rec := httptest.NewRecorder()
	h.HandleCreateSession(rec, req)
	return rec
}

// ---------------------------------------------------------------------------
// HandleCreateSession
// ---------------------------------------------------------------------------

func TestCreateSession_RedirectsToHostedCheckout(t *testing.T) {
	svc := &mockCheckoutService{
		session: &types.CheckoutSession{SessionID: "cs_1", URL: "https://checkout.stripe.com/cs_1"},
	}
	h := NewCheckoutHandler(svc, nil)

	rec := postCheckoutForm(h, url.Values{
		"productId":   {"prod_credits"},
		"paymentMode": {"credit-purchase"},
		"quantity":    {"3"},
	}, true)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "https://checkout.stripe.com/cs_1", rec.Header().Get("Location"))

	require.Len(t, svc.requests, 1)
	req := svc.requests[0]
	assert.Equal(t, "user_1", req.UserID)
	assert.Equal(t, "prod_credits", req.ProductID)
	assert.Equal(t, int64(3), req.Quantity)
	assert.Equal(t, types.PaymentModeCredit, req.Mode)
}

func TestCreateSession_QuantityDefaultsToOne(t *testing.T) {
	svc := &mockCheckoutService{
		session: &types.CheckoutSession{SessionID: "cs_1", URL: "https://checkout.stripe.com/cs_1"},
	}
	h := NewCheckoutHandler(svc, nil)

	rec := postCheckoutForm(h, url.Values{
		"productId":   {"prod_credits"},
		"paymentMode": {"credit-purchase"},
	}, true)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	require.Len(t, svc.requests, 1)
	assert.Equal(t, int64(1), svc.requests[0].Quantity)
}

func TestCreateSession_MissingProductID(t *testing.T) {
	svc := &mockCheckoutService{}
	h := NewCheckoutHandler(svc, nil)

	rec := postCheckoutForm(h, url.Values{
		"paymentMode": {"credit-purchase"},
	}, true)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	resp := decodeErrorResponse(t, rec)
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
	assert.Equal(t, "productId", resp.Error.Details["field"])
	assert.Empty(t, svc.requests)
}

func TestCreateSession_InvalidPaymentMode(t *testing.T) {
	for _, mode := range []string{"", "payment", "SUBSCRIPTION", "credit"} {
		t.Run("mode="+mode, func(t *testing.T) {
			svc := &mockCheckoutService{}
			h := NewCheckoutHandler(svc, nil)

			rec := postCheckoutForm(h, url.Values{
				"productId":   {"prod_credits"},
				"paymentMode": {mode},
			}, true)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			resp := decodeErrorResponse(t, rec)
			assert.Equal(t, "VALIDATION_INVALID_PAYMENT_MODE", resp.Error.Code)
			assert.Empty(t, svc.requests)
		})
	}
}

func TestCreateSession_InvalidQuantity(t *testing.T) {
	for _, quantity := range []string{"0", "-1", "1.5", "three"} {
		t.Run("quantity="+quantity, func(t *testing.T) {
			svc := &mockCheckoutService{}
			h := NewCheckoutHandler(svc, nil)

			rec := postCheckoutForm(h, url.Values{
				"productId":   {"prod_credits"},
				"paymentMode": {"credit-purchase"},
				"quantity":    {quantity},
			}, true)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			resp := decodeErrorResponse(t, rec)
			assert.Equal(t, "VALIDATION_INVALID_QUANTITY", resp.Error.Code)
			assert.Empty(t, svc.requests)
		})
	}
}

func TestCreateSession_SubscriptionConflictPassesThrough(t *testing.T) {
	svc := &mockCheckoutService{
		sessionErr: types.NewAppError(
			types.ErrCodeSubscriptionExists,
			"an active subscription to this plan already exists",
			nil,
		),
	}
	h := NewCheckoutHandler(svc, nil)

	rec := postCheckoutForm(h, url.Values{
		"productId":   {"prod_monthly"},
		"paymentMode": {"subscription"},
	}, true)

	assert.Equal(t, http.StatusConflict, rec.Code)
	resp := decodeErrorResponse(t, rec)
	assert.Equal(t, "SUBSCRIPTION_EXISTS", resp.Error.Code)
}

func TestCreateSession_NoActorInContext(t *testing.T) {
	svc := &mockCheckoutService{}
	h := NewCheckoutHandler(svc, nil)

	rec := postCheckoutForm(h, url.Values{
		"productId":   {"prod_credits"},
		"paymentMode": {"credit-purchase"},
	}, false)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, svc.requests)
}

// ---------------------------------------------------------------------------
// HandlePortalSession
// ---------------------------------------------------------------------------

func TestPortalSession_Redirects(t *testing.T) {
	svc := &mockCheckoutService{portalURL: "https://billing.stripe.com/session/xyz"}
	h := NewCheckoutHandler(svc, nil)

	req := httptest.NewRequest(http.MethodPost, "/portal-session", nil)
	req = req.WithContext(types.WithActor(req.Context(), types.Actor{UserID: "user_1"}))
	rec := httptest.NewRecorder()
	h.HandlePortalSession(rec, req)

	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "https://billing.stripe.com/session/xyz", rec.Header().Get("Location"))
}

func TestPortalSession_ProviderFailure(t *testing.T) {
	svc := &mockCheckoutService{
		portalErr: types.NewAppError(types.ErrCodeStripeUnavailable, "stripe down", nil),
	}
	h := NewCheckoutHandler(svc, nil)

	req := httptest.NewRequest(http.MethodPost, "/portal-session", nil)
	req = req.WithContext(types.WithActor(req.Context(), types.Actor{UserID: "user_1"}))
	rec := httptest.NewRecorder()
	h.HandlePortalSession(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	var resp struct {
		Success bool `json:"success"`
		Error   struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "STRIPE_UNAVAILABLE", resp.Error.Code)
}
