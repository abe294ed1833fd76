// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the onboarding service configuration.
type Config struct {
	// ListenAddr is the HTTP listen address for onboardd.
	ListenAddr string

	// BackendURL is the base URL of the CMS backend.
	BackendURL string

	// DatabaseURL is the postgres connection string for the local
	// checkout/provisioning repository. Optional; when empty the service
	// runs without persistence.
	DatabaseURL string

	// StripeSecretKey authorizes server-side Stripe calls.
	StripeSecretKey string

	// StripePublishableKey is exposed to clients for the checkout redirect.
	StripePublishableKey string

	// JWTSecret verifies CMS-issued bearer tokens (HS256).
	JWTSecret string

	// PublicOrigin is the web client origin the payment provider
	// redirects back to after checkout.
	PublicOrigin string

	// PlansFile overrides the built-in challenge plan table.
	PlansFile string

	// SessionFile is where the auth session (token + user) is persisted.
	SessionFile string

	// RequestTimeout bounds outbound backend calls.
	RequestTimeout time.Duration

	// MarketPollInterval is the market data polling cadence.
	MarketPollInterval time.Duration

	// Environment is development, staging, or production.
	Environment string
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		ListenAddr:           envOr("LISTEN_ADDR", ":8090"),
		BackendURL:           os.Getenv("BACKEND_URL"),
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		StripeSecretKey:      os.Getenv("STRIPE_SECRET_KEY"),
		StripePublishableKey: os.Getenv("STRIPE_PUBLISHABLE_KEY"),
		JWTSecret:            os.Getenv("JWT_SECRET"),
		PublicOrigin:         envOr("PUBLIC_ORIGIN", "http://localhost:3000"),
		PlansFile:            os.Getenv("CHALLENGE_PLANS_FILE"),
		SessionFile:          envOr("SESSION_FILE", ".onboarding-session.json"),
		RequestTimeout:       envDuration("REQUEST_TIMEOUT", 30*time.Second),
		MarketPollInterval:   envDuration("MARKET_POLL_INTERVAL", 45*time.Second),
		Environment:          envOr("ENVIRONMENT", "development"),
	}

	if cfg.BackendURL == "" {
		return nil, fmt.Errorf("BACKEND_URL is required")
	}
	if cfg.Environment == "production" {
		if cfg.JWTSecret == "" {
			return nil, fmt.Errorf("JWT_SECRET is required in production")
		}
		if cfg.StripeSecretKey == "" {
			return nil, fmt.Errorf("STRIPE_SECRET_KEY is required in production")
		}
	}

	return cfg, nil
}

// IsDevelopment reports whether the service runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
