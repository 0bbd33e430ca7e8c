package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"creditstore/internal/billing"
	"creditstore/internal/core"
	"creditstore/internal/types"
)

// CheckoutOrchestrator is the checkout surface consumed by the handler.
type CheckoutOrchestrator interface {
	StartCheckout(ctx context.Context, req billing.CheckoutRequest) (*types.CheckoutSession, error)
	PortalSession(ctx context.Context, userID string) (string, error)
}

// CheckoutHandler serves the storefront checkout endpoints. Both endpoints
// answer with a 303 redirect to a Stripe-hosted page, mirroring how the
// storefront submits plain HTML forms.
type CheckoutHandler struct {
	service CheckoutOrchestrator
	logger  *slog.Logger
}

// NewCheckoutHandler creates a CheckoutHandler.
func NewCheckoutHandler(service CheckoutOrchestrator, logger *slog.Logger) *CheckoutHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CheckoutHandler{service: service, logger: logger}
}

// RegisterRoutes mounts the checkout endpoints under /v1.
func (h *CheckoutHandler) RegisterRoutes(r chi.Router) {
	r.Post("/checkout-sessions", h.HandleCreateSession)
	r.Post("/portal-session", h.HandlePortalSession)
}

// HandleCreateSession starts a checkout from a form-encoded body:
//
//	productId   required
//	paymentMode required, "credit-purchase" or "subscription"
//	quantity    optional, integer >= 1, defaults to 1
//
// On success it redirects (303) to the hosted checkout URL.
func (h *CheckoutHandler) HandleCreateSession(w http.ResponseWriter, r *http.Request) {
	form, err := core.ParseForm(w, r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	productID := form.Get("productId")
	if productID == "" {
		core.Error(w, r, types.NewAppErrorWithDetails(
			types.ErrCodeValidation,
			"productId is required",
			nil,
			map[string]any{"field": "productId"},
		))
		return
	}

	mode := types.PaymentMode(form.Get("paymentMode"))
	if !mode.Valid() {
		core.Error(w, r, types.NewAppErrorWithDetails(
			types.ErrCodeValidationMode,
			"paymentMode must be credit-purchase or subscription",
			nil,
			map[string]any{"field": "paymentMode", "value": form.Get("paymentMode")},
		))
		return
	}

	quantity := int64(1)
	if raw := form.Get("quantity"); raw != "" {
		quantity, err = strconv.ParseInt(raw, 10, 64)
		if err != nil || quantity < 1 {
			core.Error(w, r, types.NewAppErrorWithDetails(
				types.ErrCodeValidationQuantity,
				"quantity must be an integer greater than or equal to 1",
				nil,
				map[string]any{"field": "quantity", "value": raw},
			))
			return
		}
	}

	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeNotFoundUser, "no user in request context", nil))
		return
	}

	session, err := h.service.StartCheckout(r.Context(), billing.CheckoutRequest{
		UserID:    actor.UserID,
		ProductID: productID,
		Quantity:  quantity,
		Mode:      mode,
	})
	if err != nil {
		core.Error(w, r, err)
		return
	}

	http.Redirect(w, r, session.URL, http.StatusSeeOther)
}

// HandlePortalSession redirects (303) to a Stripe billing portal session for
// the current user.
func (h *CheckoutHandler) HandlePortalSession(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeNotFoundUser, "no user in request context", nil))
		return
	}

	portalURL, err := h.service.PortalSession(r.Context(), actor.UserID)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	http.Redirect(w, r, portalURL, http.StatusSeeOther)
}
