package core

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"creditstore/internal/types"
)

// maxFormBodySize is the maximum allowed size of a form-encoded request body.
const maxFormBodySize = 64 * 1024 // 64 KB

// APIResponse is the standard envelope for all successful API responses.
type APIResponse struct {
	Success bool                `json:"success"`
	Data    interface{}         `json:"data,omitempty"`
	Meta    *types.ResponseMeta `json:"meta,omitempty"`
}

// APIErrorResponse is the standard envelope for all error API responses.
type APIErrorResponse struct {
	Success bool        `json:"success"`
	Error   ErrorDetail `json:"error"`
}

// ErrorDetail contains the structured error information returned to clients.
type ErrorDetail struct {
	Code      string         `json:"code"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
}

// JSON writes a JSON response with the given status code and data.
// If marshalling fails, it falls back to a 500 error response.
func JSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	body, err := json.Marshal(data)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		fallback := APIErrorResponse{
			Success: false,
			Error: ErrorDetail{
				Code:      string(types.ErrCodeInternalUnexpected),
				Message:   "failed to marshal response",
				RequestID: types.GetRequestID(r.Context()),
			},
		}
		// Best-effort write; if this also fails, there is nothing more we can do.
		_ = json.NewEncoder(w).Encode(fallback)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// OK writes a 200 success envelope around data.
func OK(w http.ResponseWriter, r *http.Request, data interface{}) {
	JSON(w, r, http.StatusOK, APIResponse{Success: true, Data: data})
}

// Error writes an error response to the client. It inspects the error chain:
//   - If the error is (or wraps) a *types.AppError, it uses its Code to determine
//     the HTTP status and writes a structured APIErrorResponse.
//   - If the error is a generic (non-AppError) error, it returns a 500 Internal
//     Server Error with the code INTERNAL_UNEXPECTED_ERROR.
//
// Internal error details (wrapped errors) are never exposed to the client.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	requestID := types.GetRequestID(r.Context())

	var appErr *types.AppError
	if errors.As(err, &appErr) {
		resp := APIErrorResponse{
			Success: false,
			Error: ErrorDetail{
				Code:      string(appErr.Code),
				Message:   appErr.Message,
				Details:   appErr.Details,
				RequestID: requestID,
			},
		}
		JSON(w, r, appErr.HTTPStatus(), resp)
		return
	}

	resp := APIErrorResponse{
		Success: false,
		Error: ErrorDetail{
			Code:      string(types.ErrCodeInternalUnexpected),
			Message:   "an unexpected error occurred",
			RequestID: requestID,
		},
	}
	JSON(w, r, http.StatusInternalServerError, resp)
}

// ParseForm reads and parses a form-encoded request body, enforcing a 64 KB
// size limit. It returns a *types.AppError with code VALIDATION_ERROR on
// malformed input.
func ParseForm(w http.ResponseWriter, r *http.Request) (url.Values, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBodySize)
	if err := r.ParseForm(); err != nil {
		return nil, types.NewAppError(
			types.ErrCodeValidation,
			"malformed form data in request body",
			err,
		)
	}
	return r.PostForm, nil
}

// FormInt parses an optional integer form field. Returns (nil, nil) when the
// field is absent and an AppError when the value is not an integer.
func FormInt(values url.Values, field string) (*int64, error) {
	raw := values.Get(field)
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, types.NewAppErrorWithDetails(
			types.ErrCodeValidation,
			field+" must be an integer",
			err,
			map[string]any{"field": field, "value": raw},
		)
	}
	return &n, nil
}
