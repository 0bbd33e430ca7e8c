package external

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"creditstore/internal/types"

	stripe "github.com/stripe/stripe-go/v82"
)

// stripeAPIBase is the default Stripe API base URL.
// Overridable in tests via StripeClientConfig.BaseURL.
const stripeAPIBase = "https://api.stripe.com"

// UserBillingLookup provides the minimal data access needed by StripeClient
// to persist a newly resolved Stripe customer mapping. This avoids pulling in
// the full UserRepository interface.
type UserBillingLookup interface {
	UpdateStripeCustomerID(ctx context.Context, userID string, customerID string) error
}

// StripeClientConfig holds the configuration for creating a StripeClient.
type StripeClientConfig struct {
	SecretKey string
	BaseURL   string // Override for testing; defaults to stripeAPIBase
	Logger    *slog.Logger
}

// StripeClient implements BillingProvider by making direct HTTP calls to the
// Stripe REST API through BaseClient. This routes all requests through the
// resilience infrastructure (circuit breaker, retries, error mapping) and
// makes testing with httptest straightforward.
type StripeClient struct {
	base       *BaseClient
	secretKey  string
	baseURL    string
	userLookup UserBillingLookup
	logger     *slog.Logger
}

// NewStripeClient creates a new StripeClient. The httpClient timeout bounds
// each attempt; retries are handled by BaseClient.
func NewStripeClient(
	httpClient *http.Client,
	userLookup UserBillingLookup,
	cfg StripeClientConfig,
) *StripeClient {
	base := NewBaseClient(
		httpClient,
		"stripe",
		RetryPolicy{
			MaxRetries: 2,
			MinWait:    500 * time.Millisecond,
			MaxWait:    5 * time.Second,
		},
		"creditstore/1.0",
	)

	return NewStripeClientWithBase(base, userLookup, cfg)
}

// NewStripeClientWithBase creates a StripeClient with a pre-configured
// BaseClient. This is useful for testing when you want to control the
// BaseClient configuration.
func NewStripeClientWithBase(
	base *BaseClient,
	userLookup UserBillingLookup,
	cfg StripeClientConfig,
) *StripeClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = stripeAPIBase
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &StripeClient{
		base:       base,
		secretKey:  cfg.SecretKey,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		userLookup: userLookup,
		logger:     logger,
	}
}

// ---------------------------------------------------------------------------
// BillingProvider Implementation
// ---------------------------------------------------------------------------

// EnsureCustomer retrieves or creates a Stripe customer for the given user:
//  1. If the user already carries a customer mapping, return it.
//  2. Otherwise list customers by email; adopt an existing match.
//  3. Otherwise create a new customer tagged with the user ID.
//  4. Persist the mapping locally (failure to persist is logged, not fatal;
//     the email lookup re-converges on the next checkout).
func (s *StripeClient) EnsureCustomer(ctx context.Context, user *types.User) (string, error) {
	if user.StripeCustomerID != "" {
		return user.StripeCustomerID, nil
	}

	// Step 2: look for an existing customer by email.
	params := url.Values{}
	params.Set("email", user.Email)
	params.Set("limit", "1")

	listResp, err := s.doGet(ctx, "/v1/customers", params)
	if err != nil {
		return "", s.wrapStripeError("EnsureCustomer.list", err)
	}
	defer listResp.Body.Close()

	if listResp.StatusCode != http.StatusOK {
		return "", s.handleErrorResponse(listResp, "EnsureCustomer.list")
	}

	var listResult stripeCustomerList
	if err := json.NewDecoder(listResp.Body).Decode(&listResult); err != nil {
		return "", types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to decode Stripe customer list response",
			err,
		)
	}

	if len(listResult.Data) > 0 {
		customerID := listResult.Data[0].ID
		s.persistCustomerID(ctx, user.ID, customerID)
		return customerID, nil
	}

	// Step 3: create a new customer.
	createParams := url.Values{}
	createParams.Set("email", user.Email)
	if user.Name != "" {
		createParams.Set("name", user.Name)
	}
	createParams.Set("metadata[userId]", user.ID)

	createResp, err := s.doPost(ctx, "/v1/customers", createParams)
	if err != nil {
		return "", s.wrapStripeError("EnsureCustomer.create", err)
	}
	defer createResp.Body.Close()

	if createResp.StatusCode != http.StatusOK {
		return "", s.handleErrorResponse(createResp, "EnsureCustomer.create")
	}

	var customer stripeCustomer
	if err := json.NewDecoder(createResp.Body).Decode(&customer); err != nil {
		return "", types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to decode Stripe customer creation response",
			err,
		)
	}

	s.persistCustomerID(ctx, user.ID, customer.ID)
	return customer.ID, nil
}

func (s *StripeClient) persistCustomerID(ctx context.Context, userID string, customerID string) {
	if err := s.userLookup.UpdateStripeCustomerID(ctx, userID, customerID); err != nil {
		s.logger.WarnContext(ctx, "failed to persist stripe_customer_id",
			"user_id", userID,
			"customer_id", customerID,
			"error", err,
		)
	}
}

// CreateCheckoutSession opens a hosted Checkout Session.
func (s *StripeClient) CreateCheckoutSession(ctx context.Context, p CheckoutSessionParams) (*types.CheckoutSession, error) {
	params := url.Values{}
	params.Set("customer", p.CustomerID)
	params.Set("mode", p.Mode)
	params.Set("success_url", p.SuccessURL)
	params.Set("cancel_url", p.CancelURL)
	params.Set("line_items[0][price]", p.PriceID)
	params.Set("line_items[0][quantity]", strconv.FormatInt(p.Quantity, 10))
	for k, v := range p.Metadata {
		params.Set(fmt.Sprintf("metadata[%s]", k), v)
	}

	resp, err := s.doPost(ctx, "/v1/checkout/sessions", params)
	if err != nil {
		return nil, s.wrapStripeError("CreateCheckoutSession", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, s.handleErrorResponse(resp, "CreateCheckoutSession")
	}

	var session stripeCheckoutSession
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return nil, types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to decode Stripe checkout session response",
			err,
		)
	}

	return &types.CheckoutSession{SessionID: session.ID, URL: session.URL}, nil
}

// CreatePortalSession generates a Stripe Billing Portal URL.
func (s *StripeClient) CreatePortalSession(ctx context.Context, customerID string, returnURL string) (string, error) {
	params := url.Values{}
	params.Set("customer", customerID)
	params.Set("return_url", returnURL)

	resp, err := s.doPost(ctx, "/v1/billing_portal/sessions", params)
	if err != nil {
		return "", s.wrapStripeError("CreatePortalSession", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", s.handleErrorResponse(resp, "CreatePortalSession")
	}

	var session stripePortalSession
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return "", types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to decode Stripe portal session response",
			err,
		)
	}

	return session.URL, nil
}

// GetSubscription retrieves a subscription by its Stripe ID.
func (s *StripeClient) GetSubscription(ctx context.Context, subscriptionID string) (*types.SubscriptionDetails, error) {
	resp, err := s.doGet(ctx, "/v1/subscriptions/"+url.PathEscape(subscriptionID), nil)
	if err != nil {
		return nil, s.wrapStripeError("GetSubscription", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, s.handleErrorResponse(resp, "GetSubscription")
	}

	var sub stripeSubscription
	if err := json.NewDecoder(resp.Body).Decode(&sub); err != nil {
		return nil, types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to decode Stripe subscription response",
			err,
		)
	}

	return mapStripeSubscription(&sub), nil
}

// GetInvoice retrieves an invoice by its Stripe ID.
func (s *StripeClient) GetInvoice(ctx context.Context, invoiceID string) (*types.InvoiceDetails, error) {
	resp, err := s.doGet(ctx, "/v1/invoices/"+url.PathEscape(invoiceID), nil)
	if err != nil {
		return nil, s.wrapStripeError("GetInvoice", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, s.handleErrorResponse(resp, "GetInvoice")
	}

	var inv stripeInvoice
	if err := json.NewDecoder(resp.Body).Decode(&inv); err != nil {
		return nil, types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to decode Stripe invoice response",
			err,
		)
	}

	return mapStripeInvoice(&inv), nil
}

// ---------------------------------------------------------------------------
// Catalog provisioning (seed tooling)
// ---------------------------------------------------------------------------

// CreateProduct creates a Stripe product and returns its ID.
func (s *StripeClient) CreateProduct(ctx context.Context, name string, description string) (string, error) {
	params := url.Values{}
	params.Set("name", name)
	if description != "" {
		params.Set("description", description)
	}

	resp, err := s.doPost(ctx, "/v1/products", params)
	if err != nil {
		return "", s.wrapStripeError("CreateProduct", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", s.handleErrorResponse(resp, "CreateProduct")
	}

	var product stripeProduct
	if err := json.NewDecoder(resp.Body).Decode(&product); err != nil {
		return "", types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to decode Stripe product response",
			err,
		)
	}

	return product.ID, nil
}

// CreatePrice creates a price for a product. A non-empty interval ("month",
// "year") makes it a recurring price.
func (s *StripeClient) CreatePrice(ctx context.Context, productID string, unitAmount int64, currency string, interval string) (string, error) {
	params := url.Values{}
	params.Set("product", productID)
	params.Set("unit_amount", strconv.FormatInt(unitAmount, 10))
	params.Set("currency", currency)
	if interval != "" {
		params.Set("recurring[interval]", interval)
	}

	resp, err := s.doPost(ctx, "/v1/prices", params)
	if err != nil {
		return "", s.wrapStripeError("CreatePrice", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", s.handleErrorResponse(resp, "CreatePrice")
	}

	var price stripePrice
	if err := json.NewDecoder(resp.Body).Decode(&price); err != nil {
		return "", types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to decode Stripe price response",
			err,
		)
	}

	return price.ID, nil
}

// ---------------------------------------------------------------------------
// HTTP Helpers
// ---------------------------------------------------------------------------

// doGet performs an authenticated GET request to the Stripe API.
func (s *StripeClient) doGet(ctx context.Context, path string, params url.Values) (*http.Response, error) {
	reqURL := s.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	s.setAuthHeaders(req)

	return s.base.Do(req)
}

// doPost performs an authenticated POST request to the Stripe API with
// form-encoded body.
func (s *StripeClient) doPost(ctx context.Context, path string, params url.Values) (*http.Response, error) {
	reqURL := s.baseURL + path
	body := params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, strings.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	s.setAuthHeaders(req)

	return s.base.Do(req)
}

// setAuthHeaders sets the Stripe API authentication and version headers.
func (s *StripeClient) setAuthHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+s.secretKey)
	req.Header.Set("Stripe-Version", stripe.APIVersion)
}

// ---------------------------------------------------------------------------
// Error Handling
// ---------------------------------------------------------------------------

// stripeErrorResponse represents the JSON error body returned by the Stripe API.
type stripeErrorResponse struct {
	Error stripeErrorBody `json:"error"`
}

type stripeErrorBody struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Param   string `json:"param"`
	DocURL  string `json:"doc_url"`
}

// handleErrorResponse reads a Stripe error response and maps it to a
// types.AppError.
func (s *StripeClient) handleErrorResponse(resp *http.Response, operation string) error {
	body, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return types.NewAppError(
			types.ErrCodeStripe,
			fmt.Sprintf("%s: Stripe returned status %d and response body was unreadable", operation, resp.StatusCode),
			readErr,
		)
	}

	var stripeErr stripeErrorResponse
	if jsonErr := json.Unmarshal(body, &stripeErr); jsonErr != nil {
		return types.NewAppError(
			types.ErrCodeStripe,
			fmt.Sprintf("%s: Stripe returned status %d with non-JSON body", operation, resp.StatusCode),
			jsonErr,
		)
	}

	return s.mapStripeError(operation, resp.StatusCode, &stripeErr.Error)
}

// mapStripeError translates a Stripe error into a types.AppError.
func (s *StripeClient) mapStripeError(operation string, statusCode int, stripeErr *stripeErrorBody) error {
	switch {
	case statusCode == http.StatusTooManyRequests:
		return types.NewAppError(
			types.ErrCodeStripeRateLimited,
			fmt.Sprintf("%s: Stripe rate limit exceeded", operation),
			nil,
		)
	case statusCode >= 500:
		return types.NewAppError(
			types.ErrCodeStripeUnavailable,
			fmt.Sprintf("%s: Stripe server error: %s", operation, stripeErr.Message),
			nil,
		)
	default:
		return types.NewAppErrorWithDetails(
			types.ErrCodeStripe,
			fmt.Sprintf("%s: Stripe error (%d): %s", operation, statusCode, stripeErr.Message),
			nil,
			map[string]any{
				"stripe_code": stripeErr.Code,
				"stripe_type": stripeErr.Type,
			},
		)
	}
}

// wrapStripeError wraps a BaseClient transport error with context.
func (s *StripeClient) wrapStripeError(operation string, err error) error {
	// AppErrors from BaseClient (circuit breaker, retries exhausted) already
	// carry the right code.
	if _, ok := err.(*types.AppError); ok {
		return err
	}
	return types.NewAppError(
		types.ErrCodeStripe,
		fmt.Sprintf("%s: Stripe request failed: %v", operation, err),
		err,
	)
}

// ---------------------------------------------------------------------------
// Stripe Response Types (for JSON deserialization)
// ---------------------------------------------------------------------------

type stripeCustomer struct {
	ID       string            `json:"id"`
	Email    string            `json:"email"`
	Metadata map[string]string `json:"metadata"`
}

type stripeCustomerList struct {
	Data    []stripeCustomer `json:"data"`
	HasMore bool             `json:"has_more"`
}

type stripeCheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type stripePortalSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type stripeProduct struct {
	ID string `json:"id"`
}

type stripePrice struct {
	ID string `json:"id"`
}

type stripeInvoice struct {
	ID         string `json:"id"`
	Status     string `json:"status"`
	AmountDue  int64  `json:"amount_due"`
	AmountPaid int64  `json:"amount_paid"`
	InvoicePDF string `json:"invoice_pdf"`
	DueDate    int64  `json:"due_date"`
}

type stripeSubscription struct {
	ID               string `json:"id"`
	Status           string `json:"status"`
	StartDate        int64  `json:"start_date"`
	CurrentPeriodEnd int64  `json:"current_period_end"`
}

// ---------------------------------------------------------------------------
// Mapping Functions
// ---------------------------------------------------------------------------

// mapStripeInvoice converts a Stripe invoice to the provider-side view.
func mapStripeInvoice(si *stripeInvoice) *types.InvoiceDetails {
	details := &types.InvoiceDetails{
		ID:         si.ID,
		Status:     si.Status,
		AmountDue:  si.AmountDue,
		AmountPaid: si.AmountPaid,
		PDFURL:     si.InvoicePDF,
	}
	if si.DueDate > 0 {
		due := time.Unix(si.DueDate, 0).UTC()
		details.DueDate = &due
	}
	return details
}

// mapStripeSubscription converts a Stripe subscription to the provider-side
// view. Status stays in Stripe's vocabulary; the reconciler owns the mapping
// to local states.
func mapStripeSubscription(sub *stripeSubscription) *types.SubscriptionDetails {
	details := &types.SubscriptionDetails{
		ID:     sub.ID,
		Status: sub.Status,
	}
	if sub.StartDate > 0 {
		details.StartDate = time.Unix(sub.StartDate, 0).UTC()
	}
	if sub.CurrentPeriodEnd > 0 {
		details.CurrentPeriodEnd = time.Unix(sub.CurrentPeriodEnd, 0).UTC()
	}
	return details
}

// ---------------------------------------------------------------------------
// Webhook Verification
// ---------------------------------------------------------------------------

// StripeVerifier implements WebhookVerifier using stripe-go's webhook
// signature verification. This provides HMAC-SHA256 signature checking
// with timestamp tolerance.
type StripeVerifier struct{}

// Verify validates a Stripe webhook payload against the signature header
// and signing secret.
func (v *StripeVerifier) Verify(payload []byte, header string, secret string) error {
	return stripe.ValidatePayload(payload, header, secret)
}
