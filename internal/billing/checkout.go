package billing

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"creditstore/internal/external"
	"creditstore/internal/types"
)

// UserReader is the slice of user data access the checkout flow needs.
type UserReader interface {
	GetByID(ctx context.Context, id string) (*types.User, error)
}

// PlanReader is the slice of catalog access shared by checkout and
// reconciliation.
type PlanReader interface {
	GetByID(ctx context.Context, id string) (*types.Plan, error)
}

// SubscriptionChecker guards against double subscription checkouts.
type SubscriptionChecker interface {
	HasBlocking(ctx context.Context, userID string, planID string) (bool, error)
}

// CheckoutService orchestrates hosted checkout sessions. It owns the
// guard rails that run before any money is involved: plan resolution,
// duplicate-subscription blocking, and customer resolution. The session
// metadata it writes is the only correlation state; nothing is persisted
// locally until the completion webhook arrives.
type CheckoutService struct {
	users         UserReader
	plans         PlanReader
	subs          SubscriptionChecker
	provider      external.BillingProvider
	storefrontURL string
	logger        *slog.Logger
}

// NewCheckoutService wires a CheckoutService.
func NewCheckoutService(
	users UserReader,
	plans PlanReader,
	subs SubscriptionChecker,
	provider external.BillingProvider,
	storefrontURL string,
	logger *slog.Logger,
) *CheckoutService {
	if logger == nil {
		logger = slog.Default()
	}
	return &CheckoutService{
		users:         users,
		plans:         plans,
		subs:          subs,
		provider:      provider,
		storefrontURL: storefrontURL,
		logger:        logger,
	}
}

// CheckoutRequest is a validated checkout intent. Quantity is already known
// to be >= 1 and Mode to be one of the accepted values by the time it
// reaches the service.
type CheckoutRequest struct {
	UserID    string
	ProductID string
	Quantity  int64
	Mode      types.PaymentMode
}

// StartCheckout resolves the user, plan and Stripe customer, then opens a
// hosted checkout session and returns its redirect URL.
//
// For subscription mode the quantity is pinned to 1 and the request is
// rejected with SUBSCRIPTION_EXISTS when the user already holds the plan in
// a blocking state (ACTIVE, TRIALING or PAST_DUE).
func (s *CheckoutService) StartCheckout(ctx context.Context, req CheckoutRequest) (*types.CheckoutSession, error) {
	user, err := s.users.GetByID(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	plan, err := s.plans.GetByID(ctx, req.ProductID)
	if err != nil {
		return nil, err
	}
	// Deactivated plans stay resolvable for reconciliation but cannot be
	// purchased. Indistinguishable from a missing plan to the caller.
	if !plan.Active {
		return nil, types.NewAppError(
			types.ErrCodeNotFoundPlan,
			fmt.Sprintf("plan %s is not available for purchase", plan.ID),
			nil,
		)
	}

	mode := "payment"
	purchaseType := PurchaseTypeCredit
	quantity := req.Quantity

	if req.Mode == types.PaymentModeSubscription {
		if !plan.Recurring() {
			return nil, types.NewAppError(
				types.ErrCodeValidationMode,
				fmt.Sprintf("plan %s has no recurring price and cannot be subscribed to", plan.ID),
				nil,
			)
		}

		blocked, err := s.subs.HasBlocking(ctx, user.ID, plan.ID)
		if err != nil {
			return nil, err
		}
		if blocked {
			return nil, types.NewAppError(
				types.ErrCodeSubscriptionExists,
				"an active subscription to this plan already exists",
				nil,
			)
		}

		mode = "subscription"
		purchaseType = PurchaseTypeSubscription
		quantity = 1
	}

	customerID, err := s.provider.EnsureCustomer(ctx, user)
	if err != nil {
		return nil, err
	}

	session, err := s.provider.CreateCheckoutSession(ctx, external.CheckoutSessionParams{
		CustomerID: customerID,
		Mode:       mode,
		PriceID:    plan.StripePriceID,
		Quantity:   quantity,
		SuccessURL: s.storefrontURL + "/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:  s.storefrontURL + "/?canceled=true",
		Metadata:   buildSessionMetadata(user, plan, customerID, quantity, purchaseType),
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "checkout session created",
		"user_id", user.ID,
		"plan_id", plan.ID,
		"mode", mode,
		"session_id", session.SessionID,
	)

	return session, nil
}

// PortalSession opens a Stripe billing portal session for the user and
// returns its URL. The portal returns to the storefront root.
func (s *CheckoutService) PortalSession(ctx context.Context, userID string) (string, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return "", err
	}

	customerID, err := s.provider.EnsureCustomer(ctx, user)
	if err != nil {
		return "", err
	}

	return s.provider.CreatePortalSession(ctx, customerID, s.storefrontURL)
}

// buildSessionMetadata assembles the correlation metadata echoed back on the
// completion webhook. creditsBought is advisory only: the reconciler
// recomputes the grant from the plan price and quantity and merely logs a
// mismatch.
func buildSessionMetadata(user *types.User, plan *types.Plan, customerID string, quantity int64, purchaseType string) map[string]string {
	return map[string]string{
		MetaUserID:       user.ID,
		MetaProductID:    plan.ID,
		MetaCustomerID:   customerID,
		MetaQuantity:     strconv.FormatInt(quantity, 10),
		MetaUnitPrice:    strconv.FormatInt(plan.Price, 10),
		MetaCredits:      strconv.FormatInt(plan.Price*quantity, 10),
		MetaPurchaseType: purchaseType,
	}
}
