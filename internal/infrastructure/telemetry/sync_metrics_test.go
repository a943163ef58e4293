package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func newTestSyncMetrics(t *testing.T) (*SyncMetrics, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	sm, err := NewSyncMetrics(provider.Meter("test"), nil)
	require.NoError(t, err)
	return sm, reader
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) metricdata.ResourceMetrics {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	return rm
}

func counterValue(t *testing.T, rm metricdata.ResourceMetrics, name string) (int64, bool) {
	t.Helper()
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, "metric %s is not an int64 sum", name)
			var total int64
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
			return total, true
		}
	}
	return 0, false
}

func histogramCount(t *testing.T, rm metricdata.ResourceMetrics, name string) uint64 {
	t.Helper()
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			if m.Name != name {
				continue
			}
			hist, ok := m.Data.(metricdata.Histogram[float64])
			require.True(t, ok, "metric %s is not a float64 histogram", name)
			var count uint64
			for _, dp := range hist.DataPoints {
				count += dp.Count
			}
			return count
		}
	}
	return 0
}

func TestNewSyncMetrics_RequiresMeter(t *testing.T) {
	_, err := NewSyncMetrics(nil, nil)
	assert.ErrorIs(t, err, ErrMeterNil)
}

func TestSyncMetrics_RecordSuccess(t *testing.T) {
	sm, reader := newTestSyncMetrics(t)

	sm.RecordSync(context.Background(), "etsy", 12, 3*time.Second, false, nil)

	rm := collect(t, reader)
	runs, _ := counterValue(t, rm, "marketplace_sync_runs_total")
	orders, _ := counterValue(t, rm, "marketplace_orders_synced_total")
	assert.Equal(t, int64(1), runs)
	assert.Equal(t, int64(12), orders)
	assert.Equal(t, uint64(1), histogramCount(t, rm, "marketplace_sync_duration_seconds"))

	errs, found := counterValue(t, rm, "marketplace_sync_errors_total")
	if found {
		assert.Zero(t, errs)
	}
}

func TestSyncMetrics_RecordError(t *testing.T) {
	sm, reader := newTestSyncMetrics(t)

	sm.RecordSync(context.Background(), "amazon", 0, time.Second, false, assert.AnError)

	rm := collect(t, reader)
	runs, _ := counterValue(t, rm, "marketplace_sync_runs_total")
	errs, _ := counterValue(t, rm, "marketplace_sync_errors_total")
	assert.Equal(t, int64(1), runs)
	assert.Equal(t, int64(1), errs)
	// A failed run records neither orders nor a duration.
	orders, found := counterValue(t, rm, "marketplace_orders_synced_total")
	if found {
		assert.Zero(t, orders)
	}
	assert.Zero(t, histogramCount(t, rm, "marketplace_sync_duration_seconds"))
}

func TestSyncMetrics_RecordCacheHit(t *testing.T) {
	sm, reader := newTestSyncMetrics(t)

	sm.RecordSync(context.Background(), "shopify", 5, 0, true, nil)

	rm := collect(t, reader)
	hits, _ := counterValue(t, rm, "marketplace_sync_cache_hits_total")
	orders, _ := counterValue(t, rm, "marketplace_orders_synced_total")
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(5), orders)
}
