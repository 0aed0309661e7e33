package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestMetrics(t *testing.T) (AppMetrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	metrics, err := NewAppMetricsWithMeter(context.Background(), provider.Meter("test"))
	require.NoError(t, err)
	return metrics, reader
}

func sumOf(t *testing.T, reader *sdkmetric.ManualReader, name string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, "%s is not an int64 sum", name)
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
		}
	}
	return total
}

func TestUpdatesMetrics_Counters(t *testing.T) {
	metrics, reader := newTestMetrics(t)
	updates := metrics.UpdatesMetrics()

	updates.CountCheck("stable", true, time.Millisecond)
	updates.CountCheck("stable", false, time.Millisecond)
	updates.CountReport("installed")
	updates.CountSkippedManifest()
	updates.CountPublished("beta")
	updates.CountCacheHit()
	updates.CountCacheMiss()
	updates.CountCacheMiss()

	assert.Equal(t, int64(2), sumOf(t, reader, "updates.check.counter"))
	assert.Equal(t, int64(1), sumOf(t, reader, "updates.report.counter"))
	assert.Equal(t, int64(1), sumOf(t, reader, "updates.resolve.skipped.manifests"))
	assert.Equal(t, int64(1), sumOf(t, reader, "updates.manifest.published.counter"))
	assert.Equal(t, int64(1), sumOf(t, reader, "updates.manifest.cache.hits"))
	assert.Equal(t, int64(2), sumOf(t, reader, "updates.manifest.cache.misses"))
}

func TestHTTPMiddleware_RecordsRequests(t *testing.T) {
	metrics, reader := newTestMetrics(t)

	router := mux.NewRouter()
	router.Use(metrics.HTTPMiddleware().Handler)
	router.HandleFunc("/api/updates/history", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}).Methods("GET")

	req := httptest.NewRequest(http.MethodGet, "/api/updates/history?deviceId=abc", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, int64(1), sumOf(t, reader, httpRequestCounter))
	assert.Equal(t, int64(1), sumOf(t, reader, httpResponseCounter))
}
