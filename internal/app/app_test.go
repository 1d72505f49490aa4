package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/tour-booking-engine/internal/config"
)

func memoryConfig(t *testing.T) config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"id":1,"title":"Bromo","base_price":1000,"max_participants":3}]`), 0o644))
	return config.Config{
		Env:         "test",
		Port:        "0",
		StoreDriver: config.StoreMemory,
		JWTSecret:   "s",
		AdminRole:   "ADMIN",
		BcryptCost:  4,
		CatalogFile: path,
		Retry:       config.RetryConfig{Attempts: 1, BaseDelay: time.Millisecond},
		Gateway:     config.GatewayConfig{Mode: config.GatewaySandbox, CheckoutURL: "http://localhost/checkout", WebhookSecret: "w"},
	}
}

func TestNewWithMemoryStore(t *testing.T) {
	a, err := New(context.Background(), memoryConfig(t), zap.NewNop())
	require.NoError(t, err)
	defer a.Close()

	rec := httptest.NewRecorder()
	a.echo.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	a.echo.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/tours/1/availability?date=2025-12-01", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"remaining":3`)
}

func TestNewFailsOnMissingCatalog(t *testing.T) {
	cfg := memoryConfig(t)
	cfg.CatalogFile = filepath.Join(t.TempDir(), "missing.json")
	_, err := New(context.Background(), cfg, zap.NewNop())
	require.Error(t, err)
}

func TestRunStopsOnCancel(t *testing.T) {
	a, err := New(context.Background(), memoryConfig(t), zap.NewNop())
	require.NoError(t, err)
	defer a.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestNewLogger(t *testing.T) {
	for _, env := range []string{"production", "dev"} {
		l, err := NewLogger(env)
		require.NoError(t, err)
		require.NotNil(t, l)
	}
}
