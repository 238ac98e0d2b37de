package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test helper to set env vars and clean up after
func setEnv(t *testing.T, key, value string) {
	t.Helper()
	old := os.Getenv(key)
	os.Setenv(key, value)
	t.Cleanup(func() {
		if old == "" {
			os.Unsetenv(key)
		} else {
			os.Setenv(key, old)
		}
	})
}

func TestLoad_WithValidConfig(t *testing.T) {
	setEnv(t, "STRIPE_API_KEY", "sk_test_123")
	setEnv(t, "STRIPE_WEBHOOK_SECRET", "whsec_123")
	setEnv(t, "PORT", "9090")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, DefaultCurrency, cfg.Currency)
	assert.Equal(t, DefaultLeaseTTL, cfg.LeaseTTL)
	assert.Equal(t, DefaultSweepInterval, cfg.SweepInterval)
	assert.Equal(t, DefaultFloorRatio, cfg.DefaultFloorRatio)
}

func TestLoad_MissingStripeKey(t *testing.T) {
	setEnv(t, "STRIPE_API_KEY", "")
	setEnv(t, "STRIPE_WEBHOOK_SECRET", "whsec_123")

	_, err := Load()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "STRIPE_API_KEY is required")
}

func TestLoad_MissingWebhookSecret(t *testing.T) {
	setEnv(t, "STRIPE_API_KEY", "sk_test_123")
	setEnv(t, "STRIPE_WEBHOOK_SECRET", "")

	_, err := Load()
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "STRIPE_WEBHOOK_SECRET is required")
}

func TestLoad_CustomLeaseTTL(t *testing.T) {
	setEnv(t, "STRIPE_API_KEY", "sk_test_123")
	setEnv(t, "STRIPE_WEBHOOK_SECRET", "whsec_123")
	setEnv(t, "LEASE_TTL", "24h")
	setEnv(t, "SWEEP_INTERVAL", "10m")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, cfg.LeaseTTL)
	assert.Equal(t, 10*time.Minute, cfg.SweepInterval)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr string
	}{
		{
			name: "valid config",
			config: Config{
				StripeAPIKey:        "sk_test_123",
				StripeWebhookSecret: "whsec_123",
				LeaseTTL:            DefaultLeaseTTL,
				SweepInterval:       DefaultSweepInterval,
				DefaultFloorRatio:   0.7,
			},
			wantErr: "",
		},
		{
			name: "zero lease TTL",
			config: Config{
				StripeAPIKey:        "sk_test_123",
				StripeWebhookSecret: "whsec_123",
				SweepInterval:       DefaultSweepInterval,
				DefaultFloorRatio:   0.7,
			},
			wantErr: "LEASE_TTL must be positive",
		},
		{
			name: "bad floor ratio",
			config: Config{
				StripeAPIKey:        "sk_test_123",
				StripeWebhookSecret: "whsec_123",
				LeaseTTL:            DefaultLeaseTTL,
				SweepInterval:       DefaultSweepInterval,
				DefaultFloorRatio:   1.5,
			},
			wantErr: "DEFAULT_FLOOR_RATIO",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestIsDevelopment(t *testing.T) {
	cfg := &Config{Env: "development"}
	assert.True(t, cfg.IsDevelopment())
	assert.False(t, cfg.IsProduction())
}
