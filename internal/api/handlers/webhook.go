// Package handlers contains the HTTP handler implementations for the
// creditstore API.
//
// The webhook handler is NOT behind the demo-user middleware -- it is called
// directly by Stripe. Security is provided by verifying the Stripe-Signature
// header using HMAC-SHA256 before a single byte of the payload is parsed.
package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"creditstore/internal/billing"
	"creditstore/internal/core"
	"creditstore/internal/external"
	"creditstore/internal/types"
)

// maxWebhookBodySize is the maximum allowed size of a Stripe webhook payload.
// Stripe payloads are small; the limit protects against abuse.
const maxWebhookBodySize = 64 * 1024

// WebhookReconciler is the subset of the reconciler the webhook handler
// dispatches into.
type WebhookReconciler interface {
	HandleCheckoutCompleted(ctx context.Context, session *billing.CheckoutSessionEvent) error
	HandleSubscriptionUpdated(ctx context.Context, event *billing.SubscriptionEvent) error
	HandleSubscriptionDeleted(ctx context.Context, event *billing.SubscriptionEvent) error
	HandleInvoicePaymentSucceeded(ctx context.Context, event *billing.InvoiceEvent) error
}

// StripeWebhookHandler handles asynchronous events from Stripe.
type StripeWebhookHandler struct {
	verifier   external.WebhookVerifier
	reconciler WebhookReconciler
	secret     string
	logger     *slog.Logger
}

// NewStripeWebhookHandler creates a StripeWebhookHandler.
func NewStripeWebhookHandler(
	verifier external.WebhookVerifier,
	reconciler WebhookReconciler,
	secret string,
	logger *slog.Logger,
) *StripeWebhookHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &StripeWebhookHandler{
		verifier:   verifier,
		reconciler: reconciler,
		secret:     secret,
		logger:     logger,
	}
}

// RegisterRoutes mounts the Stripe webhook endpoint. This is separate from
// the v1 handlers because webhook routes are public (no demo-user context).
func (h *StripeWebhookHandler) RegisterRoutes(r chi.Router) {
	r.Post("/webhooks/stripe", h.Handle)
}

// webhookAck is the body Stripe receives on every accepted delivery.
type webhookAck struct {
	Received bool `json:"received"`
}

// Handle processes incoming Stripe webhook events.
//
//  1. Reads the raw body with a size limit.
//  2. Verifies the Stripe-Signature header; failure is a 400, nothing is
//     dispatched.
//  3. Parses the event envelope and routes by type.
//  4. Returns {received:true} 200 even when reconciliation fails: the
//     failure is logged, and acknowledging receipt prevents redelivery
//     storms for errors a retry cannot fix.
func (h *StripeWebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBodySize)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.WarnContext(r.Context(), "failed to read webhook body", "error", err)
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidation,
			"failed to read request body",
			err,
		))
		return
	}

	sigHeader := r.Header.Get("Stripe-Signature")
	if err := h.verifier.Verify(payload, sigHeader, h.secret); err != nil {
		h.logger.WarnContext(r.Context(), "webhook signature verification failed", "error", err)
		core.Error(w, r, types.NewAppError(
			types.ErrCodeWebhookSignature,
			"webhook signature verification failed",
			err,
		))
		return
	}

	var event billing.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to parse webhook event JSON", "error", err)
		core.Error(w, r, types.NewAppError(
			types.ErrCodeValidation,
			"invalid webhook event JSON",
			err,
		))
		return
	}

	h.logger.InfoContext(r.Context(), "processing stripe webhook event",
		"event_id", event.ID,
		"event_type", event.Type,
	)

	if err := h.routeEvent(r.Context(), &event); err != nil {
		h.logger.ErrorContext(r.Context(), "webhook event processing failed",
			"event_id", event.ID,
			"event_type", event.Type,
			"error", err,
		)
		// Acknowledge anyway; the error is logged for investigation.
	}

	core.JSON(w, r, http.StatusOK, webhookAck{Received: true})
}

// routeEvent dispatches the webhook event by type. Unrecognized types are
// logged and ignored.
func (h *StripeWebhookHandler) routeEvent(ctx context.Context, event *billing.Event) error {
	switch event.Type {
	case external.EventCheckoutCompleted:
		var session billing.CheckoutSessionEvent
		if err := json.Unmarshal(event.Data.Object, &session); err != nil {
			return types.NewAppError(types.ErrCodeValidation, "malformed checkout session object", err)
		}
		return h.reconciler.HandleCheckoutCompleted(ctx, &session)

	case external.EventSubCreated, external.EventSubUpdated:
		var sub billing.SubscriptionEvent
		if err := json.Unmarshal(event.Data.Object, &sub); err != nil {
			return types.NewAppError(types.ErrCodeValidation, "malformed subscription object", err)
		}
		return h.reconciler.HandleSubscriptionUpdated(ctx, &sub)

	case external.EventSubDeleted:
		var sub billing.SubscriptionEvent
		if err := json.Unmarshal(event.Data.Object, &sub); err != nil {
			return types.NewAppError(types.ErrCodeValidation, "malformed subscription object", err)
		}
		return h.reconciler.HandleSubscriptionDeleted(ctx, &sub)

	case external.EventInvoicePaid:
		var inv billing.InvoiceEvent
		if err := json.Unmarshal(event.Data.Object, &inv); err != nil {
			return types.NewAppError(types.ErrCodeValidation, "malformed invoice object", err)
		}
		return h.reconciler.HandleInvoicePaymentSucceeded(ctx, &inv)

	default:
		h.logger.InfoContext(ctx, "ignoring unhandled webhook event type",
			"event_type", event.Type,
		)
		return nil
	}
}
