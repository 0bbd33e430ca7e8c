package billing

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"creditstore/internal/types"
)

// enrichConcurrency caps parallel provider lookups during list enrichment.
const enrichConcurrency = 4

// InvoiceStoreReader is the invoice row access the read paths need.
type InvoiceStoreReader interface {
	ListByUser(ctx context.Context, userID string, q types.InvoiceListQuery) ([]*types.Invoice, int, error)
	GetForUser(ctx context.Context, id string, userID string) (*types.Invoice, error)
	GetByStripeIDForUser(ctx context.Context, stripeInvoiceID string, userID string) (*types.Invoice, error)
	UpdatePDFURL(ctx context.Context, id string, pdfURL string) error
}

// InvoiceFetcher retrieves provider-side invoice state. Satisfied by
// external.BillingProvider.
type InvoiceFetcher interface {
	GetInvoice(ctx context.Context, invoiceID string) (*types.InvoiceDetails, error)
}

// InvoiceView is a local invoice optionally enriched with live provider
// state.
type InvoiceView struct {
	*types.Invoice
	Provider *types.InvoiceDetails `json:"provider,omitempty"`
}

// InvoiceService serves the user-facing invoice read paths: paginated
// listing with live enrichment, single lookups, and PDF resolution with
// write-back caching.
type InvoiceService struct {
	store    InvoiceStoreReader
	provider InvoiceFetcher
	logger   *slog.Logger
}

// NewInvoiceService wires an InvoiceService.
func NewInvoiceService(store InvoiceStoreReader, provider InvoiceFetcher, logger *slog.Logger) *InvoiceService {
	if logger == nil {
		logger = slog.Default()
	}
	return &InvoiceService{store: store, provider: provider, logger: logger}
}

// List returns one page of the user's invoices enriched with provider state.
// Enrichment runs concurrently and is best-effort: a provider hiccup on one
// invoice leaves that view unenriched instead of failing the page.
func (s *InvoiceService) List(ctx context.Context, userID string, q types.InvoiceListQuery) ([]*InvoiceView, types.PageInfo, error) {
	invoices, total, err := s.store.ListByUser(ctx, userID, q)
	if err != nil {
		return nil, types.PageInfo{}, err
	}

	views := make([]*InvoiceView, len(invoices))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(enrichConcurrency)

	for i, inv := range invoices {
		views[i] = &InvoiceView{Invoice: inv}
		if inv.StripeInvoiceID == "" {
			continue
		}

		view := views[i]
		g.Go(func() error {
			details, err := s.provider.GetInvoice(gctx, view.StripeInvoiceID)
			if err != nil {
				s.logger.WarnContext(gctx, "invoice enrichment failed",
					"stripe_invoice_id", view.StripeInvoiceID,
					"error", err,
				)
				return nil
			}
			view.Provider = details
			return nil
		})
	}

	// Workers only return nil; Wait is for completion, not error collection.
	_ = g.Wait()

	return views, types.NewPageInfo(q.Page, q.Limit, total), nil
}

// Get returns a single invoice by local ID, scoped to the user.
func (s *InvoiceService) Get(ctx context.Context, userID string, invoiceID string) (*types.Invoice, error) {
	return s.store.GetForUser(ctx, invoiceID, userID)
}

// GetByStripeID returns a single invoice by its provider reference, scoped
// to the user.
func (s *InvoiceService) GetByStripeID(ctx context.Context, userID string, stripeInvoiceID string) (*types.Invoice, error) {
	return s.store.GetByStripeIDForUser(ctx, stripeInvoiceID, userID)
}

// DownloadURL resolves the hosted PDF for an invoice. The first resolution
// fetches from the provider and caches the URL on the row; later calls are
// served locally.
func (s *InvoiceService) DownloadURL(ctx context.Context, userID string, invoiceID string) (string, error) {
	inv, err := s.store.GetForUser(ctx, invoiceID, userID)
	if err != nil {
		return "", err
	}

	if inv.PDFURL != "" {
		return inv.PDFURL, nil
	}

	if inv.StripeInvoiceID == "" {
		return "", types.NewAppError(
			types.ErrCodeNotFoundInvoice,
			"invoice has no downloadable document",
			nil,
		)
	}

	details, err := s.provider.GetInvoice(ctx, inv.StripeInvoiceID)
	if err != nil {
		return "", err
	}
	if details.PDFURL == "" {
		return "", types.NewAppError(
			types.ErrCodeNotFoundInvoice,
			"invoice has no downloadable document",
			nil,
		)
	}

	if err := s.store.UpdatePDFURL(ctx, inv.ID, details.PDFURL); err != nil {
		s.logger.WarnContext(ctx, "failed to cache invoice pdf url",
			"invoice_id", inv.ID,
			"error", err,
		)
	}

	return details.PDFURL, nil
}
