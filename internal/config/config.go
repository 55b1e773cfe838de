// Package config provides application configuration management.
// Configuration is loaded from environment variables following 12-factor principles.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config holds all application configuration.
// All fields are populated from environment variables.
type Config struct {
	// Application settings
	AppEnv  string `env:"APP_ENV" envDefault:"development"`
	AppPort int    `env:"APP_PORT" envDefault:"8080"`

	// Catalog store (PostgreSQL)
	DatabaseURL string `env:"DATABASE_URL,required"`

	// Cache (Redis)
	RedisURL      string `env:"REDIS_URL,required"`
	RedisPoolSize int    `env:"REDIS_POOL_SIZE" envDefault:"10"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Server timeouts
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Rate limiting for outbound-fetching endpoints (scrape, test-proxy, breach check)
	RateLimitEnabled bool `env:"RATE_LIMIT_ENABLED" envDefault:"true"`
	RateLimitRPS     int  `env:"RATE_LIMIT_RPS" envDefault:"2"`
	RateLimitBurst   int  `env:"RATE_LIMIT_BURST" envDefault:"10"`

	// CORS configuration
	// Comma-separated list of allowed origins (e.g., "https://example.com,https://app.example.com")
	CORSAllowedOrigins string `env:"CORS_ALLOWED_ORIGINS" envDefault:""`

	// Request body size limit in bytes (default 1MB)
	MaxRequestBodySize int64 `env:"MAX_REQUEST_BODY_SIZE" envDefault:"1048576"`

	// Payment processor (Stripe)
	StripeSecretKey  string `env:"STRIPE_SECRET_KEY"`
	PaymentCurrency  string `env:"PAYMENT_CURRENCY" envDefault:"inr"`
	PaymentMinAmount int64  `env:"PAYMENT_MIN_AMOUNT" envDefault:"5000"`

	// Identity provider (Firebase Auth)
	FirebaseProjectID       string `env:"FIREBASE_PROJECT_ID"`
	FirebaseCredentialsFile string `env:"GOOGLE_APPLICATION_CREDENTIALS"`
	FirebaseCredentialsB64  string `env:"FIREBASE_SERVICE_ACCOUNT_JSON_BASE64"`

	// Documentation scraper
	ScrapeTimeout  time.Duration `env:"SCRAPE_TIMEOUT" envDefault:"10s"`
	ScrapeCacheTTL time.Duration `env:"SCRAPE_CACHE_TTL" envDefault:"1h"`

	// Outbound requests (scraper, endpoint tester)
	// Comma-separated extra ports allowed besides 80 and 443.
	OutboundAllowedPorts string `env:"OUTBOUND_ALLOWED_PORTS" envDefault:""`

	// Breach check upstream
	PwnedAPIBaseURL string `env:"PWNED_API_BASE_URL" envDefault:"https://api.pwnedpasswords.com"`

	// Redis stream receiving settlement events
	EventsStream string `env:"EVENTS_STREAM" envDefault:"marketplace:events"`

	// Sales projection consumer on EventsStream
	SalesConsumerEnabled bool `env:"SALES_CONSUMER_ENABLED" envDefault:"true"`
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// PaymentsEnabled reports whether a processor key is configured.
func (c *Config) PaymentsEnabled() bool {
	return c.StripeSecretKey != ""
}

// IdentityEnabled reports whether token verification can be configured.
func (c *Config) IdentityEnabled() bool {
	return c.FirebaseProjectID != ""
}

// GetCORSAllowedOrigins parses the comma-separated origins string into a slice.
func (c *Config) GetCORSAllowedOrigins() []string {
	return splitList(c.CORSAllowedOrigins)
}

// GetOutboundAllowedPorts parses OUTBOUND_ALLOWED_PORTS.
// Invalid entries are skipped.
func (c *Config) GetOutboundAllowedPorts() []int {
	var ports []int
	for _, p := range splitList(c.OutboundAllowedPorts) {
		n, err := strconv.Atoi(p)
		if err != nil || n <= 0 || n > 65535 {
			continue
		}
		ports = append(ports, n)
	}
	return ports
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))

	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

// Load parses environment variables and returns a Config.
// A .env file in the working directory is loaded first when present;
// variables already set in the environment take precedence.
// Returns an error if required variables are missing.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}
