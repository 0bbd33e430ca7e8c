// Package config defines the global configuration structure for the
// creditstore service. Configuration is loaded once at process initialization
// and is immutable thereafter. It follows 12-Factor App principles by strictly
// separating code from configuration.
//
// Values are resolved via a priority chain:
//
//	OS Environment (Highest) -> Dotenv File (Lowest)
//
// Any missing required value or invalid format causes the application to fail
// immediately on startup (fail fast).
package config

import (
	"time"

	"creditstore/internal/types"
)

// SecretString is an alias for types.SecretString, the redacted secret type
// used throughout configuration to prevent accidental logging of sensitive
// values.
type SecretString = types.SecretString

// Config is the top-level configuration struct for the creditstore service.
// It is populated once during process initialization and never modified.
// Sub-components receive only the specific config subsets they require.
type Config struct {
	// System Metadata
	Environment string `envconfig:"APP_ENV" default:"local" validate:"required,oneof=local dev staging prod"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	// Domain Configurations
	Server   ServerConfig
	Database DatabaseConfig
	Billing  BillingConfig
	Demo     DemoUserConfig
}

// ServerConfig holds HTTP server and public URL configuration.
type ServerConfig struct {
	Port           string        `envconfig:"PORT" default:"8080"`
	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"29s"`
	// Public storefront URL for checkout redirects (no trailing slash).
	StorefrontURL string `envconfig:"STOREFRONT_URL" validate:"required,url"`
}

// DatabaseConfig holds database connection and pool tuning parameters.
type DatabaseConfig struct {
	URL SecretString `envconfig:"DATABASE_URL" validate:"required,url"`

	// Tuning Parameters
	MaxConns        int           `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns        int           `envconfig:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime time.Duration `envconfig:"DB_MAX_CONN_LIFETIME" default:"30m"`
	AcquireTimeout  time.Duration `envconfig:"DB_ACQUIRE_TIMEOUT" default:"2s"`
}

// BillingConfig holds Stripe integration credentials and tuning.
type BillingConfig struct {
	StripeSecretKey     SecretString  `envconfig:"STRIPE_SECRET_KEY" validate:"required"`
	StripeWebhookSecret SecretString  `envconfig:"STRIPE_WEBHOOK_SECRET" validate:"required"`
	StripeTimeout       time.Duration `envconfig:"STRIPE_TIMEOUT" default:"20s"`
}

// DemoUserConfig identifies the stand-in storefront user. There is no real
// authentication system; every request operates as this user.
type DemoUserConfig struct {
	UserID string `envconfig:"DEMO_USER_ID" validate:"required"`
	Email  string `envconfig:"DEMO_USER_EMAIL" validate:"required,email"`
}

// ConfigErrorType categorizes configuration loading failures to aid debugging.
type ConfigErrorType string

const (
	// ErrValidation indicates the configuration failed struct validation rules.
	ErrValidation ConfigErrorType = "VALIDATION_FAILED"
	// ErrParsing indicates a failure when parsing environment variable values
	// into their target types.
	ErrParsing ConfigErrorType = "PARSING_FAILED"
)
