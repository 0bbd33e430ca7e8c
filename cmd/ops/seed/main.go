// Package main implements the seed CLI tool for the creditstore service.
//
// It provisions the demo catalog: for each built-in plan it creates a Stripe
// product and price, then upserts the corresponding plans row. It also
// creates the demo user configured through DEMO_USER_ID/DEMO_USER_EMAIL.
// The tool is idempotent at the database level (plan upserts, duplicate demo
// user tolerated); re-running it against the same Stripe account does create
// fresh products, so point it at a test-mode key.
//
// Usage:
//
//	go run ./cmd/ops/seed
//	go run ./cmd/ops/seed --skip-stripe
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"creditstore/internal/config"
	"creditstore/internal/db"
	"creditstore/internal/external"
	"creditstore/internal/types"
)

// seedPlan describes one catalog entry to provision.
type seedPlan struct {
	Name        string
	Description string
	Price       int64 // minor currency unit
	Currency    string
	Interval    string // empty for one-time credit packs
}

// seedPlans is the demo catalog. One one-time credit pack per tier plus a
// monthly subscription.
var seedPlans = []seedPlan{
	{Name: "Starter Pack", Description: "Small one-time credit top-up", Price: 500, Currency: "eur"},
	{Name: "Builder Pack", Description: "Medium one-time credit top-up", Price: 2000, Currency: "eur"},
	{Name: "Studio Pack", Description: "Large one-time credit top-up", Price: 5000, Currency: "eur"},
	{Name: "Pro Monthly", Description: "Monthly subscription with recurring credits", Price: 1500, Currency: "eur", Interval: "month"},
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	skipStripe := flag.Bool("skip-stripe", false, "upsert database rows only; requires plans to already carry Stripe IDs")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if err := db.Migrate(cfg.Database); err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := db.NewPool(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	userRepo := db.NewUserRepository(pool)
	planRepo := db.NewPlanRepository(pool)

	stripeClient := external.NewStripeClient(
		&http.Client{Timeout: cfg.Billing.StripeTimeout},
		userRepo,
		external.StripeClientConfig{
			SecretKey: cfg.Billing.StripeSecretKey.Unmask(),
			Logger:    logger,
		},
	)

	if !*skipStripe {
		if err := seedCatalog(ctx, logger, stripeClient, planRepo); err != nil {
			return err
		}
	}

	if err := seedDemoUser(ctx, logger, userRepo, cfg.Demo); err != nil {
		return err
	}

	logger.Info("seed complete")
	return nil
}

// seedCatalog provisions each plan in Stripe and mirrors it locally.
func seedCatalog(ctx context.Context, logger *slog.Logger, stripeClient *external.StripeClient, planRepo *db.PlanRepository) error {
	for _, sp := range seedPlans {
		productID, err := stripeClient.CreateProduct(ctx, sp.Name, sp.Description)
		if err != nil {
			return fmt.Errorf("creating product %q: %w", sp.Name, err)
		}

		priceID, err := stripeClient.CreatePrice(ctx, productID, sp.Price, sp.Currency, sp.Interval)
		if err != nil {
			return fmt.Errorf("creating price for %q: %w", sp.Name, err)
		}

		plan := &types.Plan{
			ID:            productID,
			Name:          sp.Name,
			Description:   sp.Description,
			Price:         sp.Price,
			Currency:      sp.Currency,
			Interval:      sp.Interval,
			StripePriceID: priceID,
			Active:        true,
		}
		if err := planRepo.Upsert(ctx, plan); err != nil {
			return fmt.Errorf("upserting plan %q: %w", sp.Name, err)
		}

		logger.Info("plan provisioned",
			"name", sp.Name,
			"product_id", productID,
			"price_id", priceID,
			"recurring", plan.Recurring(),
		)
	}
	return nil
}

// seedDemoUser inserts the configured demo user if it does not exist yet.
func seedDemoUser(ctx context.Context, logger *slog.Logger, userRepo *db.UserRepository, demo config.DemoUserConfig) error {
	user := &types.User{
		ID:    demo.UserID,
		Email: demo.Email,
		Name:  "Demo User",
	}

	err := userRepo.Create(ctx, user)
	if err != nil {
		var appErr *types.AppError
		if errors.As(err, &appErr) && appErr.Code == types.ErrCodeConflictDuplicate {
			logger.Info("demo user already exists", "user_id", demo.UserID)
			return nil
		}
		return fmt.Errorf("creating demo user: %w", err)
	}

	logger.Info("demo user created", "user_id", demo.UserID, "email", demo.Email)
	return nil
}
