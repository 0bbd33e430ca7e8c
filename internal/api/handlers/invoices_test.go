package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"creditstore/internal/billing"
	"creditstore/internal/types"
)

// ---------------------------------------------------------------------------
// Mock Implementations
// ---------------------------------------------------------------------------

type mockInvoiceService struct {
	views       []*billing.InvoiceView
	pageInfo    types.PageInfo
	listErr     error
	listQueries []types.InvoiceListQuery
	invoice     *types.Invoice
	getErr      error
	downloadURL string
	downloadErr error
}

func (m *mockInvoiceService) List(ctx context.Context, userID string, q types.InvoiceListQuery) ([]*billing.InvoiceView, types.PageInfo, error) {
	m.listQueries = append(m.listQueries, q)
	if m.listErr != nil {
		return nil, types.PageInfo{}, m.listErr
	}
	return m.views, m.pageInfo, nil
}

func (m *mockInvoiceService) Get(ctx context.Context, userID string, invoiceID string) (*types.Invoice, error) {
	return m.invoice, m.getErr
}

func (m *mockInvoiceService) GetByStripeID(ctx context.Context, userID string, stripeInvoiceID string) (*types.Invoice, error) {
	return m.invoice, m.getErr
}

func (m *mockInvoiceService) DownloadURL(ctx context.Context, userID string, invoiceID string) (string, error) {
	return m.downloadURL, m.downloadErr
}

// ---------------------------------------------------------------------------
// Test Helpers
// ---------------------------------------------------------------------------

// newInvoiceRouter mounts the handler behind a router that injects the demo
// actor, the same shape the v1 route group has in production.
func newInvoiceRouter(svc *mockInvoiceService) http.Handler {
	h := NewInvoiceHandler(svc, nil)
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := types.WithActor(req.Context(), types.Actor{UserID: "user_1"})
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	h.RegisterRoutes(r)
	return r
}

func getInvoices(router http.Handler, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

// ---------------------------------------------------------------------------
// HandleList
// ---------------------------------------------------------------------------

func TestInvoiceListHandler_DefaultsAndEnvelope(t *testing.T) {
	svc := &mockInvoiceService{
		views: []*billing.InvoiceView{
			{Invoice: &types.Invoice{ID: "inv_1", Status: types.InvoiceStatusPaid}},
		},
		pageInfo: types.NewPageInfo(1, 10, 1),
	}
	router := newInvoiceRouter(svc)

	rec := getInvoices(router, "/invoices")
	assert.Equal(t, http.StatusOK, rec.Code)

	require.Len(t, svc.listQueries, 1)
	assert.Equal(t, 1, svc.listQueries[0].Page)
	assert.Equal(t, 10, svc.listQueries[0].Limit)
	assert.Nil(t, svc.listQueries[0].Status)

	var resp struct {
		Success bool `json:"success"`
		Data    []struct {
			ID string `json:"id"`
		} `json:"data"`
		Meta struct {
			Pagination types.PageInfo `json:"pagination"`
		} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "inv_1", resp.Data[0].ID)
	assert.Equal(t, 1, resp.Meta.Pagination.TotalCount)
}

func TestInvoiceListHandler_ParsesFilters(t *testing.T) {
	svc := &mockInvoiceService{pageInfo: types.NewPageInfo(2, 25, 60)}
	router := newInvoiceRouter(svc)

	rec := getInvoices(router, "/invoices?page=2&limit=25&status=PAID&dateFrom=2026-01-01&dateTo=2026-06-30T23:59:59Z")
	assert.Equal(t, http.StatusOK, rec.Code)

	require.Len(t, svc.listQueries, 1)
	q := svc.listQueries[0]
	assert.Equal(t, 2, q.Page)
	assert.Equal(t, 25, q.Limit)
	require.NotNil(t, q.Status)
	assert.Equal(t, types.InvoiceStatusPaid, *q.Status)
	require.NotNil(t, q.DateFrom)
	assert.Equal(t, "2026-01-01", q.DateFrom.Format("2006-01-02"))
	require.NotNil(t, q.DateTo)
}

func TestInvoiceListHandler_RejectsBadQueries(t *testing.T) {
	tests := []struct {
		name string
		path string
	}{
		{"zero page", "/invoices?page=0"},
		{"negative page", "/invoices?page=-1"},
		{"non-numeric page", "/invoices?page=abc"},
		{"zero limit", "/invoices?limit=0"},
		{"limit above cap", "/invoices?limit=101"},
		{"unknown status", "/invoices?status=SHINY"},
		{"malformed date", "/invoices?dateFrom=yesterday"},
		{"inverted range", "/invoices?dateFrom=2026-06-01&dateTo=2026-01-01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockInvoiceService{}
			router := newInvoiceRouter(svc)

			rec := getInvoices(router, tt.path)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			resp := decodeErrorResponse(t, rec)
			assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
			assert.Empty(t, svc.listQueries)
		})
	}
}

// ---------------------------------------------------------------------------
// HandleGet / HandleGetByStripeID
// ---------------------------------------------------------------------------

func TestInvoiceGetHandler(t *testing.T) {
	svc := &mockInvoiceService{
		invoice: &types.Invoice{ID: "inv_1", StripeInvoiceID: "in_1", Status: types.InvoiceStatusPaid},
	}
	router := newInvoiceRouter(svc)

	rec := getInvoices(router, "/invoices/inv_1")
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Success bool          `json:"success"`
		Data    types.Invoice `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "inv_1", resp.Data.ID)
}

func TestInvoiceGetHandler_NotFound(t *testing.T) {
	svc := &mockInvoiceService{
		getErr: types.NewAppError(types.ErrCodeNotFoundInvoice, "invoice not found", nil),
	}
	router := newInvoiceRouter(svc)

	rec := getInvoices(router, "/invoices/inv_missing")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	resp := decodeErrorResponse(t, rec)
	assert.Equal(t, "INVOICE_NOT_FOUND", resp.Error.Code)
}

func TestInvoiceGetByStripeIDHandler(t *testing.T) {
	svc := &mockInvoiceService{
		invoice: &types.Invoice{ID: "inv_1", StripeInvoiceID: "in_1"},
	}
	router := newInvoiceRouter(svc)

	rec := getInvoices(router, "/invoices/stripe/in_1")
	assert.Equal(t, http.StatusOK, rec.Code)
}

// ---------------------------------------------------------------------------
// HandleDownload
// ---------------------------------------------------------------------------

func TestInvoiceDownloadHandler_Redirects(t *testing.T) {
	svc := &mockInvoiceService{downloadURL: "https://files.stripe.com/in_1.pdf"}
	router := newInvoiceRouter(svc)

	rec := getInvoices(router, "/invoices/inv_1/download")
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "https://files.stripe.com/in_1.pdf", rec.Header().Get("Location"))
}

func TestInvoiceDownloadHandler_NoDocument(t *testing.T) {
	svc := &mockInvoiceService{
		downloadErr: types.NewAppError(types.ErrCodeNotFoundInvoice, "invoice has no downloadable document", nil),
	}
	router := newInvoiceRouter(svc)

	rec := getInvoices(router, "/invoices/inv_1/download")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
