// Package config handles application configuration from environment variables
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Server settings
	Port     string
	Env      string // "development", "staging", "production"
	LogLevel string

	// Storage
	DatabaseURL string // PostgreSQL connection string (optional, uses in-memory if not set)
	RedisAddr   string // Redis address for the reservation lease store (optional, uses in-memory if not set)
	RedisDB     int

	// Stripe
	StripeAPIKey        string
	StripeWebhookSecret string
	Currency            string // ISO currency code for payment links
	CheckoutRedirectURL string // buyers land here after paying

	// Reservations
	LeaseTTL      time.Duration // how long a payment link stays valid
	SweepInterval time.Duration // how often expired leases are reaped

	// Negotiation
	DefaultFloorRatio float64 // floor price fallback as a fraction of listed price

	// Conversation service (outbound buyer notifications)
	ConversationURL string

	// Security
	RateLimitRPM int
	AdminSecret  string
}

const (
	DefaultPort          = "8080"
	DefaultEnv           = "development"
	DefaultLogLevel      = "info"
	DefaultCurrency      = "myr"
	DefaultLeaseTTL      = 72 * time.Hour
	DefaultSweepInterval = time.Hour
	DefaultFloorRatio    = 0.70
	DefaultRateLimit     = 60
)

// Load reads configuration from environment variables
// It loads .env file if present (for local development)
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not present)
	_ = godotenv.Load()

	cfg := &Config{
		Port:                getEnv("PORT", DefaultPort),
		Env:                 getEnv("ENV", DefaultEnv),
		LogLevel:            getEnv("LOG_LEVEL", DefaultLogLevel),
		DatabaseURL:         os.Getenv("DATABASE_URL"), // Optional, uses in-memory if not set
		RedisAddr:           os.Getenv("REDIS_ADDR"),   // Optional, uses in-memory if not set
		RedisDB:             int(getEnvInt64("REDIS_DB", 0)),
		StripeAPIKey:        os.Getenv("STRIPE_API_KEY"),
		StripeWebhookSecret: os.Getenv("STRIPE_WEBHOOK_SECRET"),
		Currency:            getEnv("CURRENCY", DefaultCurrency),
		CheckoutRedirectURL: getEnv("CHECKOUT_REDIRECT_URL", "https://negolah.my/?payment=success"),
		LeaseTTL:            getEnvDuration("LEASE_TTL", DefaultLeaseTTL),
		SweepInterval:       getEnvDuration("SWEEP_INTERVAL", DefaultSweepInterval),
		DefaultFloorRatio:   getEnvFloat("DEFAULT_FLOOR_RATIO", DefaultFloorRatio),
		ConversationURL:     os.Getenv("CONVERSATION_URL"),
		RateLimitRPM:        int(getEnvInt64("RATE_LIMIT_RPM", DefaultRateLimit)),
		AdminSecret:         os.Getenv("ADMIN_SECRET"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that all required configuration is present
func (c *Config) Validate() error {
	if c.StripeAPIKey == "" {
		return fmt.Errorf("STRIPE_API_KEY is required")
	}
	if c.StripeWebhookSecret == "" {
		return fmt.Errorf("STRIPE_WEBHOOK_SECRET is required")
	}
	if c.LeaseTTL <= 0 {
		return fmt.Errorf("LEASE_TTL must be positive")
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL must be positive")
	}
	if c.DefaultFloorRatio <= 0 || c.DefaultFloorRatio > 1 {
		return fmt.Errorf("DEFAULT_FLOOR_RATIO must be in (0, 1]")
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

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
