// Package core provides the API chassis for the creditstore service.
// It creates a chi router and enforces cross-cutting concerns -- logging,
// panic recovery, request correlation, and error handling -- before requests
// reach domain-specific handlers.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"creditstore/internal/config"
)

// Server encapsulates the shared dependencies for the HTTP API, allowing for
// easy injection during testing and distinct configuration for different
// environments.
type Server struct {
	Config    *config.Config
	Logger    *slog.Logger
	Validator *Validator

	// V1RouteRegistrars are invoked when mounting /v1 routes. They are
	// populated by the application entry point; this indirection avoids
	// import cycles between core and handler packages.
	V1RouteRegistrars []func(chi.Router)

	// PublicRouteRegistrars mount routes outside the /v1 namespace (webhooks).
	PublicRouteRegistrars []func(chi.Router)

	router *chi.Mux
	closer func() error
}

// NewServer initializes dependencies, sets up the router, and prepares the
// server for route mounting. The caller is responsible for mounting routes
// (via MountRoutes) after construction; this separation allows tests to
// customize route registration.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}

	return &Server{
		Config:    cfg,
		Logger:    logger,
		Validator: NewValidator(logger),
		router:    chi.NewRouter(),
	}, nil
}

// Handler returns the http.Handler interface for the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router returns the underlying chi.Mux for route registration.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// OnShutdown registers a cleanup function (e.g., closing the database pool)
// invoked during Shutdown.
func (s *Server) OnShutdown(fn func() error) {
	s.closer = fn
}

// Shutdown performs a graceful termination of server resources.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Logger.Info("server shutdown initiated")

	if s.closer != nil {
		if err := s.closer(); err != nil {
			s.Logger.Error("error closing server resources", "error", err)
			return fmt.Errorf("closing server resources: %w", err)
		}
	}

	s.Logger.Info("server shutdown complete")
	return nil
}
