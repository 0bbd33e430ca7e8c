package billing

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"creditstore/internal/types"
)

// ReconcilerStore is the transactional write surface the reconciler needs.
// Both units report whether anything was actually written so replayed events
// degrade to logged no-ops.
type ReconcilerStore interface {
	ApplyCreditPurchase(ctx context.Context, purchase *types.CreditPurchase, invoice *types.Invoice) (bool, error)
	CreateSubscription(ctx context.Context, sub *types.UserSubscription, invoice *types.Invoice) (bool, error)
}

// SubscriptionSyncer is the subscription row access used outside the
// transactional units.
type SubscriptionSyncer interface {
	GetByStripeSubscriptionID(ctx context.Context, stripeSubID string) (*types.UserSubscription, error)
	UpdateStatusByStripeID(ctx context.Context, stripeSubID string, status types.SubscriptionStatus, endDate *time.Time) (bool, error)
}

// InvoiceSyncer mirrors provider invoices into local rows.
type InvoiceSyncer interface {
	Upsert(ctx context.Context, inv *types.Invoice) error
}

// SubscriptionFetcher retrieves provider-side subscription state. Satisfied
// by external.BillingProvider.
type SubscriptionFetcher interface {
	GetSubscription(ctx context.Context, subscriptionID string) (*types.SubscriptionDetails, error)
}

// Reconciler converts verified webhook events into local state. Every path is
// idempotent: the provider redelivers events at least once, so each handler
// either keys its writes on a unique provider reference or applies a
// monotonic update.
//
// Provider round trips (fetching subscription details) happen before any
// transaction opens; no local transaction ever spans a network call.
type Reconciler struct {
	store    ReconcilerStore
	subs     SubscriptionSyncer
	invoices InvoiceSyncer
	plans    PlanReader
	provider SubscriptionFetcher
	logger   *slog.Logger
}

// NewReconciler wires a Reconciler.
func NewReconciler(
	store ReconcilerStore,
	subs SubscriptionSyncer,
	invoices InvoiceSyncer,
	plans PlanReader,
	provider SubscriptionFetcher,
	logger *slog.Logger,
) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		store:    store,
		subs:     subs,
		invoices: invoices,
		plans:    plans,
		provider: provider,
		logger:   logger,
	}
}

// HandleCheckoutCompleted dispatches a completed checkout session by its
// purchase type metadata. Sessions without a recognized type are logged and
// ignored; they belong to some other integration.
func (r *Reconciler) HandleCheckoutCompleted(ctx context.Context, session *CheckoutSessionEvent) error {
	switch session.Metadata[MetaPurchaseType] {
	case PurchaseTypeCredit:
		return r.applyCreditPurchase(ctx, session)
	case PurchaseTypeSubscription:
		return r.applySubscriptionPurchase(ctx, session)
	default:
		r.logger.InfoContext(ctx, "checkout session without purchase type metadata ignored",
			"session_id", session.ID,
			"metadata_type", session.Metadata[MetaPurchaseType],
		)
		return nil
	}
}

// applyCreditPurchase records a one-time credit purchase and grants the
// credits. The grant is recomputed from the plan price and quantity; the
// creditsBought metadata is advisory and a mismatch is only logged.
func (r *Reconciler) applyCreditPurchase(ctx context.Context, session *CheckoutSessionEvent) error {
	userID := session.Metadata[MetaUserID]
	productID := session.Metadata[MetaProductID]
	if userID == "" || productID == "" {
		return types.NewAppError(
			types.ErrCodeInternalUnexpected,
			fmt.Sprintf("checkout session %s is missing correlation metadata", session.ID),
			nil,
		)
	}
	if session.PaymentIntent == "" {
		return types.NewAppError(
			types.ErrCodeInternalUnexpected,
			fmt.Sprintf("checkout session %s has no payment intent to key idempotency on", session.ID),
			nil,
		)
	}

	quantity, err := strconv.ParseInt(session.Metadata[MetaQuantity], 10, 64)
	if err != nil || quantity < 1 {
		return types.NewAppError(
			types.ErrCodeInternalUnexpected,
			fmt.Sprintf("checkout session %s carries an invalid quantity %q", session.ID, session.Metadata[MetaQuantity]),
			err,
		)
	}

	plan, err := r.plans.GetByID(ctx, productID)
	if err != nil {
		return err
	}

	credits := plan.Price * quantity
	if claimed, parseErr := strconv.ParseInt(session.Metadata[MetaCredits], 10, 64); parseErr == nil && claimed != credits {
		r.logger.WarnContext(ctx, "creditsBought metadata disagrees with recomputed grant",
			"session_id", session.ID,
			"claimed", claimed,
			"computed", credits,
		)
	}

	purchase := &types.CreditPurchase{
		ID:                    uuid.NewString(),
		UserID:                userID,
		PlanID:                plan.ID,
		Quantity:              quantity,
		Credits:               credits,
		TotalAmount:           session.AmountTotal,
		StripePaymentIntentID: session.PaymentIntent,
	}

	now := time.Now().UTC()
	invoice := &types.Invoice{
		ID:              uuid.NewString(),
		StripeInvoiceID: session.Invoice,
		TotalAmount:     session.AmountTotal,
		Status:          types.InvoiceStatusPaid,
		PaidAt:          &now,
	}

	applied, err := r.store.ApplyCreditPurchase(ctx, purchase, invoice)
	if err != nil {
		return err
	}
	if !applied {
		r.logger.InfoContext(ctx, "credit purchase already processed, event replay ignored",
			"session_id", session.ID,
			"payment_intent", session.PaymentIntent,
		)
		return nil
	}

	r.logger.InfoContext(ctx, "credit purchase applied",
		"user_id", userID,
		"plan_id", plan.ID,
		"credits", credits,
		"payment_intent", session.PaymentIntent,
	)
	return nil
}

// applySubscriptionPurchase records a new subscription from a completed
// subscription checkout. Current provider-side state is fetched first so the
// local row starts from truth rather than from event-ordering luck.
func (r *Reconciler) applySubscriptionPurchase(ctx context.Context, session *CheckoutSessionEvent) error {
	userID := session.Metadata[MetaUserID]
	productID := session.Metadata[MetaProductID]
	if userID == "" || productID == "" {
		return types.NewAppError(
			types.ErrCodeInternalUnexpected,
			fmt.Sprintf("checkout session %s is missing correlation metadata", session.ID),
			nil,
		)
	}
	if session.Subscription == "" {
		return types.NewAppError(
			types.ErrCodeInternalUnexpected,
			fmt.Sprintf("subscription checkout session %s carries no subscription reference", session.ID),
			nil,
		)
	}

	plan, err := r.plans.GetByID(ctx, productID)
	if err != nil {
		return err
	}

	details, err := r.provider.GetSubscription(ctx, session.Subscription)
	if err != nil {
		return err
	}

	startDate := details.StartDate
	if startDate.IsZero() {
		startDate = time.Now().UTC()
	}

	sub := &types.UserSubscription{
		ID:                   uuid.NewString(),
		UserID:               userID,
		PlanID:               plan.ID,
		StripeSubscriptionID: session.Subscription,
		Status:               MapSubscriptionStatus(details.Status),
		StartDate:            startDate,
	}
	if !details.CurrentPeriodEnd.IsZero() {
		end := details.CurrentPeriodEnd
		sub.EndDate = &end
	}

	var invoice *types.Invoice
	if session.Invoice != "" {
		now := time.Now().UTC()
		invoice = &types.Invoice{
			ID:              uuid.NewString(),
			StripeInvoiceID: session.Invoice,
			TotalAmount:     session.AmountTotal,
			Status:          types.InvoiceStatusPaid,
			PaidAt:          &now,
		}
	}

	created, err := r.store.CreateSubscription(ctx, sub, invoice)
	if err != nil {
		return err
	}
	if !created {
		r.logger.InfoContext(ctx, "subscription already tracked, event replay ignored",
			"session_id", session.ID,
			"stripe_subscription_id", session.Subscription,
		)
		return nil
	}

	r.logger.InfoContext(ctx, "subscription created",
		"user_id", userID,
		"plan_id", plan.ID,
		"stripe_subscription_id", session.Subscription,
		"status", sub.Status,
	)
	return nil
}

// HandleSubscriptionUpdated syncs a lifecycle change onto the local record.
// Events for subscriptions this service never tracked are logged and skipped.
func (r *Reconciler) HandleSubscriptionUpdated(ctx context.Context, event *SubscriptionEvent) error {
	status := MapSubscriptionStatus(event.Status)

	var endDate *time.Time
	if event.EndedAt > 0 {
		t := time.Unix(event.EndedAt, 0).UTC()
		endDate = &t
	} else if event.CanceledAt > 0 {
		t := time.Unix(event.CanceledAt, 0).UTC()
		endDate = &t
	}

	updated, err := r.subs.UpdateStatusByStripeID(ctx, event.ID, status, endDate)
	if err != nil {
		return err
	}
	if !updated {
		r.logger.WarnContext(ctx, "update event for untracked subscription skipped",
			"stripe_subscription_id", event.ID,
			"status", event.Status,
		)
		return nil
	}

	r.logger.InfoContext(ctx, "subscription status synced",
		"stripe_subscription_id", event.ID,
		"status", status,
	)
	return nil
}

// HandleSubscriptionDeleted marks the local record CANCELED regardless of the
// provider's final status value.
func (r *Reconciler) HandleSubscriptionDeleted(ctx context.Context, event *SubscriptionEvent) error {
	endedAt := time.Now().UTC()
	if event.EndedAt > 0 {
		endedAt = time.Unix(event.EndedAt, 0).UTC()
	}

	updated, err := r.subs.UpdateStatusByStripeID(ctx, event.ID, types.SubStatusCanceled, &endedAt)
	if err != nil {
		return err
	}
	if !updated {
		r.logger.WarnContext(ctx, "delete event for untracked subscription skipped",
			"stripe_subscription_id", event.ID,
		)
		return nil
	}

	r.logger.InfoContext(ctx, "subscription canceled",
		"stripe_subscription_id", event.ID,
	)
	return nil
}

// HandleInvoicePaymentSucceeded mirrors a paid provider invoice locally,
// linking it to the owning subscription when that subscription is tracked.
// Renewal invoices for untracked subscriptions are still recorded; the link
// converges later via the upsert's COALESCE if the subscription appears.
func (r *Reconciler) HandleInvoicePaymentSucceeded(ctx context.Context, event *InvoiceEvent) error {
	if event.ID == "" {
		return types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"invoice event without an invoice id",
			nil,
		)
	}

	var subscriptionRowID *string
	if event.Subscription != "" {
		sub, err := r.subs.GetByStripeSubscriptionID(ctx, event.Subscription)
		if err != nil {
			return err
		}
		if sub != nil {
			subscriptionRowID = &sub.ID
		} else {
			r.logger.WarnContext(ctx, "paid invoice references untracked subscription",
				"stripe_invoice_id", event.ID,
				"stripe_subscription_id", event.Subscription,
			)
		}
	}

	invoice := &types.Invoice{
		ID:                 uuid.NewString(),
		UserSubscriptionID: subscriptionRowID,
		StripeInvoiceID:    event.ID,
		TotalAmount:        event.AmountPaid,
		Status:             MapInvoiceStatus(event.Status),
		PDFURL:             event.InvoicePDF,
	}
	if event.DueDate > 0 {
		due := time.Unix(event.DueDate, 0).UTC()
		invoice.DueDate = &due
	}
	if event.StatusTransitions.PaidAt > 0 {
		paid := time.Unix(event.StatusTransitions.PaidAt, 0).UTC()
		invoice.PaidAt = &paid
	}

	if err := r.invoices.Upsert(ctx, invoice); err != nil {
		return err
	}

	r.logger.InfoContext(ctx, "invoice payment recorded",
		"stripe_invoice_id", event.ID,
		"amount_paid", event.AmountPaid,
	)
	return nil
}
