package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMemoryDriver(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("GATEWAY_WEBHOOK_SECRET", "whsec")
	t.Setenv("RETRY_ATTEMPTS", "2")
	t.Setenv("RETRY_BASE_DELAY", "5ms")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, StoreMemory, cfg.StoreDriver)
	assert.Equal(t, "ADMIN", cfg.AdminRole)
	assert.Equal(t, GatewaySandbox, cfg.Gateway.Mode)
	assert.Equal(t, uint64(2), cfg.Retry.Attempts)
	assert.Equal(t, 5*time.Millisecond, cfg.Retry.BaseDelay)
}

func TestLoadReportsEveryMissingVar(t *testing.T) {
	t.Setenv("STORE_DRIVER", "mysql")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("GATEWAY_WEBHOOK_SECRET", "")
	t.Setenv("DB_USER", "")
	t.Setenv("DB_HOST", "")
	t.Setenv("DB_PORT", "")
	t.Setenv("DB_NAME", "")

	_, err := Load()
	require.Error(t, err)
	for _, key := range []string{"JWT_SECRET", "GATEWAY_WEBHOOK_SECRET", "DB_USER", "DB_HOST", "DB_PORT", "DB_NAME"} {
		assert.Contains(t, err.Error(), key)
	}
}

func TestLoadRejectsHTTPGatewayWithoutURL(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("GATEWAY_WEBHOOK_SECRET", "whsec")
	t.Setenv("GATEWAY_MODE", "http")
	t.Setenv("GATEWAY_BASE_URL", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GATEWAY_BASE_URL")
}

func TestRateLimitClamps(t *testing.T) {
	t.Setenv("RATE_LIMIT_CAPACITY", "0")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "2s")
	t.Setenv("RATE_LIMIT_TTL", "1s")

	c := LoadRateLimitConfig()
	assert.Equal(t, 1, c.Capacity)
	assert.Equal(t, 10*time.Second, c.TTL)
}

func TestRetryBackoffIsBounded(t *testing.T) {
	b := RetryConfig{Attempts: 2, BaseDelay: time.Millisecond}.Backoff()
	_, stop := b.Next()
	assert.False(t, stop)
	_, stop = b.Next()
	assert.False(t, stop)
	_, stop = b.Next()
	assert.True(t, stop)
}
