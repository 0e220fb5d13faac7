package observability

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx/fxtest"
	"go.uber.org/zap"

	"github.com/Additional-Code/erpsync/internal/config"
)

func testConfig(metricsExporter string, metrics bool) config.Config {
	return config.Config{Observability: config.Observability{
		ServiceName:     "erpsync-test",
		ServiceVersion:  "1.2.3",
		Environment:     "test",
		EnableMetrics:   metrics,
		MetricsExporter: metricsExporter,
		PrometheusPath:  "/metrics",
	}}
}

func TestNewManager_PrometheusServesSyncCounters(t *testing.T) {
	lc := fxtest.NewLifecycle(t)
	mgr, err := NewManager(lc, testConfig("prometheus", true), zap.NewNop())
	require.NoError(t, err)
	lc.RequireStart()
	defer lc.RequireStop()

	require.True(t, mgr.MetricsEnabled())
	assert.False(t, mgr.TracingEnabled())
	require.NotNil(t, mgr.Registry())

	counter, err := mgr.meterProvider.Meter("test").Int64Counter("erpsync.sync.orders")
	require.NoError(t, err)
	counter.Add(context.Background(), 2)

	rec := httptest.NewRecorder()
	mgr.MetricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, string(body), "erpsync_sync_orders_total")
	assert.Contains(t, string(body), "go_goroutines")
}

func TestNewManager_MetricsDisabled(t *testing.T) {
	lc := fxtest.NewLifecycle(t)
	mgr, err := NewManager(lc, testConfig("prometheus", false), zap.NewNop())
	require.NoError(t, err)

	assert.False(t, mgr.MetricsEnabled())
	assert.Nil(t, mgr.MetricsHandler())
	assert.Nil(t, mgr.Registry())
	assert.Equal(t, "/metrics", mgr.PrometheusPath())
}

func TestNewManager_UnknownExporterDisablesMetrics(t *testing.T) {
	lc := fxtest.NewLifecycle(t)
	mgr, err := NewManager(lc, testConfig("statsd", true), zap.NewNop())
	require.NoError(t, err)
	assert.False(t, mgr.MetricsEnabled())
}
