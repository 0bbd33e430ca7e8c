// Package main is the entry point for the creditstore API server.
//
// It loads configuration, connects to Postgres and applies embedded schema
// migrations, wires the Stripe client and domain services, builds the HTTP
// server with the core chassis (middleware, routing, health checks), and
// starts listening for requests.
//
// Graceful shutdown is handled via OS signal interception (SIGINT, SIGTERM).
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"creditstore/internal/api/handlers"
	"creditstore/internal/billing"
	"creditstore/internal/config"
	"creditstore/internal/core"
	"creditstore/internal/db"
	"creditstore/internal/external"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run encapsulates the startup lifecycle so that main() can cleanly exit on error.
func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := newLogger(cfg.LogLevel)
	logger.Info("creditstore API starting",
		"environment", cfg.Environment,
		"port", cfg.Server.Port,
	)

	// Schema first, pool second: a process that cannot migrate must not serve.
	if err := db.Migrate(cfg.Database); err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}

	// Repositories over the shared pool.
	userRepo := db.NewUserRepository(pool)
	planRepo := db.NewPlanRepository(pool)
	subRepo := db.NewSubscriptionRepository(pool)
	invoiceRepo := db.NewInvoiceRepository(pool)
	store := db.NewBillingStore(pool, logger)

	// Stripe client with per-attempt timeout; retries live in the base client.
	stripeClient := external.NewStripeClient(
		&http.Client{Timeout: cfg.Billing.StripeTimeout},
		userRepo,
		external.StripeClientConfig{
			SecretKey: cfg.Billing.StripeSecretKey.Unmask(),
			Logger:    logger,
		},
	)

	// Domain services.
	checkoutSvc := billing.NewCheckoutService(
		userRepo, planRepo, subRepo, stripeClient, cfg.Server.StorefrontURL, logger)
	reconciler := billing.NewReconciler(
		store, subRepo, invoiceRepo, planRepo, stripeClient, logger)
	invoiceSvc := billing.NewInvoiceService(invoiceRepo, stripeClient, logger)

	// HTTP chassis.
	srv, err := core.NewServer(cfg, logger)
	if err != nil {
		pool.Close()
		return fmt.Errorf("creating server: %w", err)
	}
	srv.OnShutdown(func() error {
		pool.Close()
		return nil
	})

	checkoutHandler := handlers.NewCheckoutHandler(checkoutSvc, logger)
	invoiceHandler := handlers.NewInvoiceHandler(invoiceSvc, logger)
	userHandler := handlers.NewUserHandler(userRepo, logger)
	productHandler := handlers.NewProductHandler(planRepo, logger)
	webhookHandler := handlers.NewStripeWebhookHandler(
		&external.StripeVerifier{},
		reconciler,
		cfg.Billing.StripeWebhookSecret.Unmask(),
		logger,
	)

	// All /v1 routes operate as the configured demo user.
	srv.V1RouteRegistrars = append(srv.V1RouteRegistrars,
		func(r chi.Router) {
			r.Use(core.DemoUserMiddleware(cfg.Demo.UserID, cfg.Demo.Email))
		},
		checkoutHandler.RegisterRoutes,
		invoiceHandler.RegisterRoutes,
		userHandler.RegisterRoutes,
		productHandler.RegisterRoutes,
	)
	srv.PublicRouteRegistrars = append(srv.PublicRouteRegistrars,
		webhookHandler.RegisterRoutes,
	)

	srv.MountRoutes()

	return runHTTPServer(srv, cfg, logger)
}

// runHTTPServer starts the server in standard HTTP mode with graceful shutdown.
func runHTTPServer(srv *core.Server, cfg *config.Config, logger *slog.Logger) error {
	addr := ":" + cfg.Server.Port

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serverErr := make(chan error, 1)

	go func() {
		logger.Info("HTTP server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("initiating graceful shutdown")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server resource shutdown error", "error", err)
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("server stopped cleanly")
	return nil
}

// newLogger creates a structured slog.Logger for the given log level.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	return slog.New(handler)
}
