package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"creditstore/internal/types"
)

func TestOK_WrapsDataInEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	OK(rec, req, map[string]string{"id": "user_1"})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp struct {
		Success bool              `json:"success"`
		Data    map[string]string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "user_1", resp.Data["id"])
}

func TestError_AppErrorMapsStatusAndCode(t *testing.T) {
	tests := []struct {
		code       types.ErrorCode
		wantStatus int
	}{
		{types.ErrCodeValidation, http.StatusBadRequest},
		{types.ErrCodeWebhookSignature, http.StatusBadRequest},
		{types.ErrCodeNotFoundPlan, http.StatusNotFound},
		{types.ErrCodeSubscriptionExists, http.StatusConflict},
		{types.ErrCodeStripeRateLimited, http.StatusTooManyRequests},
		{types.ErrCodeStripeUnavailable, http.StatusBadGateway},
		{types.ErrCodeInternalDB, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/", nil)

			Error(rec, req, types.NewAppError(tt.code, "boom", nil))

			assert.Equal(t, tt.wantStatus, rec.Code)

			var resp APIErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.False(t, resp.Success)
			assert.Equal(t, string(tt.code), resp.Error.Code)
		})
	}
}

func TestError_WrappedAppErrorIsUnwrapped(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	inner := types.NewAppError(types.ErrCodeNotFoundInvoice, "invoice not found", nil)
	Error(rec, req, fmt.Errorf("looking up invoice: %w", inner))

	assert.Equal(t, http.StatusNotFound, rec.Code)

	var resp APIErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "INVOICE_NOT_FOUND", resp.Error.Code)
}

func TestError_GenericErrorHidesDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	Error(rec, req, errors.New("pq: password authentication failed"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	var resp APIErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "INTERNAL_UNEXPECTED_ERROR", resp.Error.Code)
	assert.NotContains(t, rec.Body.String(), "password")
}

func TestError_IncludesRequestID(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(types.WithRequestID(req.Context(), "req_42"))

	Error(rec, req, types.NewAppError(types.ErrCodeValidation, "bad input", nil))

	var resp APIErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "req_42", resp.Error.RequestID)
}

func TestParseForm_RejectsOversizedBody(t *testing.T) {
	body := strings.NewReader("productId=" + strings.Repeat("a", maxFormBodySize+1))
	req := httptest.NewRequest(http.MethodPost, "/", body)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()

	_, err := ParseForm(rec, req)
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeValidation, appErr.Code)
}

func TestFormInt(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("quantity=3&bad=x"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()

	form, err := ParseForm(rec, req)
	require.NoError(t, err)

	n, err := FormInt(form, "quantity")
	require.NoError(t, err)
	require.NotNil(t, n)
	assert.Equal(t, int64(3), *n)

	n, err = FormInt(form, "absent")
	require.NoError(t, err)
	assert.Nil(t, n)

	_, err = FormInt(form, "bad")
	require.Error(t, err)
}
