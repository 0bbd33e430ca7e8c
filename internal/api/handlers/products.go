package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"creditstore/internal/core"
	"creditstore/internal/types"
)

// PlanLister is the catalog surface consumed by the handler.
type PlanLister interface {
	ListActive(ctx context.Context) ([]*types.Plan, error)
}

// ProductHandler serves the plan catalog.
type ProductHandler struct {
	plans  PlanLister
	logger *slog.Logger
}

// NewProductHandler creates a ProductHandler.
func NewProductHandler(plans PlanLister, logger *slog.Logger) *ProductHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProductHandler{plans: plans, logger: logger}
}

// RegisterRoutes mounts the catalog endpoints under /v1.
func (h *ProductHandler) RegisterRoutes(r chi.Router) {
	r.Get("/products", h.HandleList)
}

// HandleList returns all active plans.
func (h *ProductHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	plans, err := h.plans.ListActive(r.Context())
	if err != nil {
		core.Error(w, r, err)
		return
	}

	core.OK(w, r, plans)
}
