package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/estatevest/platform/internal/app"
	"github.com/estatevest/platform/internal/cache"
)

func testConfig(t *testing.T) *app.Config {
	t.Helper()

	cfg := &app.Config{}
	cfg.Database.Driver = "sqlite"
	cfg.Database.Path = filepath.Join(t.TempDir(), "estatevest.sqlite")
	cfg.Auth.JWT.Secret = "bootstrap-secret"
	cfg.Auth.JWT.TTL = time.Hour
	cfg.Server.RateLimit.Requests = 100
	cfg.Server.RateLimit.Window = time.Minute
	cfg.Notifications.Realtime.Enabled = true
	cfg.Monitoring.Prometheus.Enabled = true
	cfg.Monitoring.Prometheus.Endpoint = "/metrics"
	return cfg
}

func TestBootstrapRuntimeWithDatabaseStore(t *testing.T) {
	cfg := testConfig(t)

	stack, err := bootstrapRuntime(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { stack.Shutdown(context.Background(), zap.NewNop()) })

	require.NotNil(t, stack.Hub)
	require.Nil(t, stack.Relay)
	require.Nil(t, stack.Redis)
	require.IsType(t, &cache.DatabaseStore{}, stack.RateStore)
	require.False(t, stack.Cleaner.Enabled())

	rec := httptest.NewRecorder()
	stack.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	require.NoError(t, stack.Cleaner.RunOnce(context.Background()))
}

func TestBootstrapRuntimeWithRedis(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := testConfig(t)
	cfg.Cache.Redis.Enabled = true
	cfg.Cache.Redis.Address = mr.Addr()
	cfg.Cache.Redis.Timeout = time.Second
	cfg.Notifications.Realtime.RelayChannel = "estatevest:test"
	cfg.Maintenance.Schedule = "@every 1h"

	stack, err := bootstrapRuntime(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { stack.Shutdown(context.Background(), zap.NewNop()) })

	require.NotNil(t, stack.Redis)
	require.NotNil(t, stack.Relay)
	require.IsType(t, &cache.RedisStore{}, stack.RateStore)
	require.True(t, stack.Cleaner.Enabled())
}

func TestBootstrapRuntimeRedisFallback(t *testing.T) {
	cfg := testConfig(t)
	cfg.Cache.Redis.Enabled = true
	cfg.Cache.Redis.Address = "127.0.0.1:1"
	cfg.Cache.Redis.Timeout = 200 * time.Millisecond
	cfg.Server.RateLimit.Store = "memory"

	stack, err := bootstrapRuntime(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { stack.Shutdown(context.Background(), zap.NewNop()) })

	require.Nil(t, stack.Redis)
	require.Nil(t, stack.Relay)
	require.IsType(t, &cache.MemoryStore{}, stack.RateStore)
}

func TestBootstrapRuntimeRejectsBadTimezone(t *testing.T) {
	cfg := testConfig(t)
	cfg.Notifications.AnalyticsTimezone = "Nowhere/Land"

	_, err := bootstrapRuntime(context.Background(), cfg, zap.NewNop())
	require.Error(t, err)
}

func TestLoadApplicationConfigMissingPath(t *testing.T) {
	_, err := loadApplicationConfig(filepath.Join(t.TempDir(), "missing"))
	require.ErrorContains(t, err, "does not exist")

	cfg, err := loadApplicationConfig(t.TempDir())
	require.NoError(t, err)
	require.Equal(t, 8000, cfg.Server.Port)
}
