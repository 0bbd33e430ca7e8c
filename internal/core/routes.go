package core

import (
	"github.com/go-chi/chi/v5"
)

// defaultRedactedHeaders lists header names whose values are masked in request
// logs to prevent accidental leakage of credentials or signatures.
var defaultRedactedHeaders = []string{
	"Authorization",
	"Cookie",
	"Stripe-Signature",
}

// MountRoutes defines the top-level routing hierarchy.
// It registers the global middleware chain, the /v1 API group, the public
// webhook routes, and the health check.
func (s *Server) MountRoutes() {
	s.registerGlobalMiddleware()

	s.router.Route("/v1", s.mountV1)

	// Public routes outside /v1 (webhook endpoints carry their own
	// signature-based authentication).
	for _, register := range s.PublicRouteRegistrars {
		register(s.router)
	}

	s.router.Get("/health", s.HandleHealth)
}

// registerGlobalMiddleware applies middleware in strict order.
//
// Ordering Rationale:
//  1. Recoverer       - Catches panics; outermost to catch all failures.
//  2. ContextTimeout  - Sets a soft deadline on every request.
//  3. RequestID       - Generates/propagates correlation ID for tracing.
//  4. RequestLogger   - Structured logging (redacted headers).
func (s *Server) registerGlobalMiddleware() {
	s.router.Use(s.Recoverer)
	s.router.Use(ContextTimeoutMiddleware(s.Config.Server.RequestTimeout))
	s.router.Use(RequestIDMiddleware)
	s.router.Use(RequestLogger(s.Logger, defaultRedactedHeaders))
}

// mountV1 registers all v1 endpoints via the registrars populated by main.
func (s *Server) mountV1(r chi.Router) {
	for _, register := range s.V1RouteRegistrars {
		register(r)
	}
}
