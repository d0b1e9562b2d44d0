// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Port     string
	Env      string // "development", "staging", "production"
	LogLevel string

	// Database
	DatabaseURL string // PostgreSQL connection string (optional, uses in-memory if not set)

	// Payment gateway
	StripeSecretKey    string // Stripe secret key; empty means the fake in-memory gateway
	CheckoutSuccessURL string // Where the gateway sends the browser after payment
	CheckoutCancelURL  string // Where the gateway sends the browser on abandon
	Currency           string // ISO 4217, lowercase

	// Identity provider
	IdentityServiceURL   string // Admin API base URL; empty means the in-memory identity store
	IdentityServiceToken string

	// Security
	AdminSecret  string // X-Admin-Secret for administrative endpoints
	RateLimitRPM int

	// Observability
	OTLPEndpoint string // OTLP gRPC endpoint; empty disables tracing
}

// Defaults
const (
	DefaultPort       = "8080"
	DefaultEnv        = "development"
	DefaultLogLevel   = "info"
	DefaultCurrency   = "usd"
	DefaultSuccessURL = "http://localhost:3000/billing/return"
	DefaultCancelURL  = "http://localhost:3000/billing/cancelled"
	DefaultRateLimit  = 60
)

// Load reads configuration from environment variables.
// It loads a .env file if present (for local development).
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:                 getEnv("PORT", DefaultPort),
		Env:                  getEnv("ENV", DefaultEnv),
		LogLevel:             getEnv("LOG_LEVEL", DefaultLogLevel),
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		StripeSecretKey:      os.Getenv("STRIPE_SECRET_KEY"),
		CheckoutSuccessURL:   getEnv("CHECKOUT_SUCCESS_URL", DefaultSuccessURL),
		CheckoutCancelURL:    getEnv("CHECKOUT_CANCEL_URL", DefaultCancelURL),
		Currency:             strings.ToLower(getEnv("CURRENCY", DefaultCurrency)),
		IdentityServiceURL:   os.Getenv("IDENTITY_SERVICE_URL"),
		IdentityServiceToken: os.Getenv("IDENTITY_SERVICE_TOKEN"),
		AdminSecret:          os.Getenv("ADMIN_SECRET"),
		RateLimitRPM:         getEnvInt("RATE_LIMIT_RPM", DefaultRateLimit),
		OTLPEndpoint:         os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that required configuration is present.
// Development mode is deliberately permissive: everything falls back to
// in-memory fakes so the service runs with an empty environment.
func (c *Config) Validate() error {
	if c.IsProduction() {
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required in production")
		}
		if c.StripeSecretKey == "" {
			return fmt.Errorf("STRIPE_SECRET_KEY is required in production")
		}
		if c.AdminSecret == "" {
			return fmt.Errorf("ADMIN_SECRET is required in production")
		}
	}
	if c.IdentityServiceURL != "" && c.IdentityServiceToken == "" {
		return fmt.Errorf("IDENTITY_SERVICE_TOKEN is required when IDENTITY_SERVICE_URL is set")
	}
	if len(c.Currency) != 3 {
		return fmt.Errorf("CURRENCY must be a 3-letter ISO code, got %q", c.Currency)
	}
	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}
