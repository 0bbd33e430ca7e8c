package types

import (
	"fmt"
	"net/http"
)

// ErrorCode is a typed string for categorizing application errors.
// The vocabulary is stable and forms part of the public API contract;
// handlers MUST use these constants instead of hardcoded strings.
type ErrorCode string

const (
	// Validation (400)
	ErrCodeValidation         ErrorCode = "VALIDATION_ERROR"
	ErrCodeValidationQuantity ErrorCode = "VALIDATION_INVALID_QUANTITY"
	ErrCodeValidationMode     ErrorCode = "VALIDATION_INVALID_PAYMENT_MODE"

	// Webhook authentication (400). A bad signature is a client error to the
	// caller, never a reason to dispatch the event.
	ErrCodeWebhookSignature ErrorCode = "WEBHOOK_SIGNATURE_INVALID"

	// Not Found (404)
	ErrCodeNotFoundPlan    ErrorCode = "PLAN_NOT_FOUND"
	ErrCodeNotFoundUser    ErrorCode = "USER_NOT_FOUND"
	ErrCodeNotFoundInvoice ErrorCode = "INVOICE_NOT_FOUND"

	// Conflict (409)
	ErrCodeSubscriptionExists ErrorCode = "SUBSCRIPTION_EXISTS"
	ErrCodeConflictDuplicate  ErrorCode = "DUPLICATE_RECORD"

	// Internal/Upstream (500/502)
	ErrCodeInternalDB         ErrorCode = "INTERNAL_DATABASE_ERROR"
	ErrCodeInternalUnexpected ErrorCode = "INTERNAL_UNEXPECTED_ERROR"
	ErrCodeStripe             ErrorCode = "STRIPE_ERROR"
	ErrCodeStripeRateLimited  ErrorCode = "STRIPE_RATE_LIMITED"
	ErrCodeStripeUnavailable  ErrorCode = "STRIPE_UNAVAILABLE"
)

// HTTPStatus maps an ErrorCode to its corresponding HTTP status code.
// Returns 500 for unrecognized error codes as a safe default.
func (c ErrorCode) HTTPStatus() int {
	switch c {
	case ErrCodeValidation, ErrCodeValidationQuantity, ErrCodeValidationMode,
		ErrCodeWebhookSignature:
		return http.StatusBadRequest // 400
	case ErrCodeNotFoundPlan, ErrCodeNotFoundUser, ErrCodeNotFoundInvoice:
		return http.StatusNotFound // 404
	case ErrCodeSubscriptionExists, ErrCodeConflictDuplicate:
		return http.StatusConflict // 409
	case ErrCodeStripeRateLimited:
		return http.StatusTooManyRequests // 429
	case ErrCodeStripe, ErrCodeStripeUnavailable:
		return http.StatusBadGateway // 502
	case ErrCodeInternalDB, ErrCodeInternalUnexpected:
		return http.StatusInternalServerError // 500
	default:
		return http.StatusInternalServerError // 500
	}
}

// AppError is the standard application error type used throughout the service.
// All domain and handler errors should be expressed as AppError to enable
// consistent error formatting, HTTP status mapping, and error chain support.
type AppError struct {
	Code    ErrorCode      `json:"code"`
	Message string         `json:"message"`
	Err     error          `json:"-"`
	Details map[string]any `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *AppError) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the HTTP status code corresponding to this error's code.
func (e *AppError) HTTPStatus() int {
	return e.Code.HTTPStatus()
}

// NewAppError creates a new AppError with the given code, message, and optional
// underlying error. This is the standard constructor for domain errors.
func NewAppError(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewAppErrorWithDetails creates a new AppError with the given code, message,
// underlying error, and structured details.
func NewAppErrorWithDetails(code ErrorCode, message string, err error, details map[string]any) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
		Details: details,
	}
}
