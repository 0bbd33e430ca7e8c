package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"creditstore/internal/billing"
	"creditstore/internal/core"
	"creditstore/internal/types"
)

// Invoice list query defaults and bounds.
const (
	defaultInvoicePage  = 1
	defaultInvoiceLimit = 10
	maxInvoiceLimit     = 100
)

// InvoiceReader is the invoice surface consumed by the handler.
type InvoiceReader interface {
	List(ctx context.Context, userID string, q types.InvoiceListQuery) ([]*billing.InvoiceView, types.PageInfo, error)
	Get(ctx context.Context, userID string, invoiceID string) (*types.Invoice, error)
	GetByStripeID(ctx context.Context, userID string, stripeInvoiceID string) (*types.Invoice, error)
	DownloadURL(ctx context.Context, userID string, invoiceID string) (string, error)
}

// InvoiceHandler serves the user-facing invoice read endpoints.
type InvoiceHandler struct {
	service InvoiceReader
	logger  *slog.Logger
}

// NewInvoiceHandler creates an InvoiceHandler.
func NewInvoiceHandler(service InvoiceReader, logger *slog.Logger) *InvoiceHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &InvoiceHandler{service: service, logger: logger}
}

// RegisterRoutes mounts the invoice endpoints under /v1.
func (h *InvoiceHandler) RegisterRoutes(r chi.Router) {
	r.Route("/invoices", func(r chi.Router) {
		r.Get("/", h.HandleList)
		r.Get("/stripe/{stripeInvoiceID}", h.HandleGetByStripeID)
		r.Get("/{invoiceID}", h.HandleGet)
		r.Get("/{invoiceID}/download", h.HandleDownload)
	})
}

// HandleList returns one page of the current user's invoices.
//
// Query parameters: page (>= 1), limit (1..100), status, dateFrom, dateTo.
// Dates accept RFC 3339 or plain YYYY-MM-DD.
func (h *InvoiceHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeNotFoundUser, "no user in request context", nil))
		return
	}

	q, err := parseInvoiceListQuery(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	views, pageInfo, err := h.service.List(r.Context(), actor.UserID, q)
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, core.APIResponse{
		Success: true,
		Data:    views,
		Meta:    &types.ResponseMeta{Pagination: &pageInfo},
	})
}

// HandleGet returns a single invoice by its local ID.
func (h *InvoiceHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeNotFoundUser, "no user in request context", nil))
		return
	}

	inv, err := h.service.Get(r.Context(), actor.UserID, chi.URLParam(r, "invoiceID"))
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.OK(w, r, inv)
}

// HandleGetByStripeID returns a single invoice by its Stripe reference.
func (h *InvoiceHandler) HandleGetByStripeID(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeNotFoundUser, "no user in request context", nil))
		return
	}

	inv, err := h.service.GetByStripeID(r.Context(), actor.UserID, chi.URLParam(r, "stripeInvoiceID"))
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.OK(w, r, inv)
}

// HandleDownload redirects (303) to the invoice's hosted PDF.
func (h *InvoiceHandler) HandleDownload(w http.ResponseWriter, r *http.Request) {
	actor, ok := types.GetActor(r.Context())
	if !ok {
		core.Error(w, r, types.NewAppError(types.ErrCodeNotFoundUser, "no user in request context", nil))
		return
	}

	pdfURL, err := h.service.DownloadURL(r.Context(), actor.UserID, chi.URLParam(r, "invoiceID"))
	if err != nil {
		core.Error(w, r, err)
		return
	}

	http.Redirect(w, r, pdfURL, http.StatusSeeOther)
}

// parseInvoiceListQuery validates and defaults the list query parameters.
func parseInvoiceListQuery(r *http.Request) (types.InvoiceListQuery, error) {
	q := types.InvoiceListQuery{
		Page:  defaultInvoicePage,
		Limit: defaultInvoiceLimit,
	}

	if raw := r.URL.Query().Get("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil || page < 1 {
			return q, types.NewAppErrorWithDetails(
				types.ErrCodeValidation,
				"page must be an integer greater than or equal to 1",
				nil,
				map[string]any{"field": "page", "value": raw},
			)
		}
		q.Page = page
	}

	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > maxInvoiceLimit {
			return q, types.NewAppErrorWithDetails(
				types.ErrCodeValidation,
				"limit must be an integer between 1 and 100",
				nil,
				map[string]any{"field": "limit", "value": raw},
			)
		}
		q.Limit = limit
	}

	if raw := r.URL.Query().Get("status"); raw != "" {
		status := types.InvoiceStatus(raw)
		if !status.Valid() {
			return q, types.NewAppErrorWithDetails(
				types.ErrCodeValidation,
				"status is not a recognized invoice status",
				nil,
				map[string]any{"field": "status", "value": raw},
			)
		}
		q.Status = &status
	}

	for _, field := range []string{"dateFrom", "dateTo"} {
		raw := r.URL.Query().Get(field)
		if raw == "" {
			continue
		}
		t, err := parseDateParam(raw)
		if err != nil {
			return q, types.NewAppErrorWithDetails(
				types.ErrCodeValidation,
				field+" must be an RFC 3339 timestamp or YYYY-MM-DD date",
				err,
				map[string]any{"field": field, "value": raw},
			)
		}
		if field == "dateFrom" {
			q.DateFrom = &t
		} else {
			q.DateTo = &t
		}
	}

	if q.DateFrom != nil && q.DateTo != nil && q.DateTo.Before(*q.DateFrom) {
		return q, types.NewAppError(
			types.ErrCodeValidation,
			"dateTo must not be earlier than dateFrom",
			nil,
		)
	}

	return q, nil
}

// parseDateParam accepts RFC 3339 timestamps and bare dates.
func parseDateParam(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
