package telemetry

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// ErrMeterNil is returned when a metrics component is built without a meter.
var ErrMeterNil = errors.New("telemetry: meter is required")

// SyncMetrics tracks marketplace order synchronization activity.
type SyncMetrics struct {
	meter  metric.Meter
	logger *zap.Logger

	syncRunsTotal     metric.Int64Counter
	ordersSyncedTotal metric.Int64Counter
	syncErrorsTotal   metric.Int64Counter
	cacheHitsTotal    metric.Int64Counter
	syncDuration      metric.Float64Histogram
}

// NewSyncMetrics creates sync metrics on the given meter.
func NewSyncMetrics(meter metric.Meter, logger *zap.Logger) (*SyncMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	sm := &SyncMetrics{meter: meter, logger: logger}

	var err error
	sm.syncRunsTotal, err = meter.Int64Counter(
		"marketplace_sync_runs_total",
		metric.WithDescription("Total number of sync runs"),
		metric.WithUnit("{runs}"),
	)
	if err != nil {
		return nil, err
	}
	sm.ordersSyncedTotal, err = meter.Int64Counter(
		"marketplace_orders_synced_total",
		metric.WithDescription("Total number of orders imported from marketplaces"),
		metric.WithUnit("{orders}"),
	)
	if err != nil {
		return nil, err
	}
	sm.syncErrorsTotal, err = meter.Int64Counter(
		"marketplace_sync_errors_total",
		metric.WithDescription("Total number of failed sync runs"),
		metric.WithUnit("{errors}"),
	)
	if err != nil {
		return nil, err
	}
	sm.cacheHitsTotal, err = meter.Int64Counter(
		"marketplace_sync_cache_hits_total",
		metric.WithDescription("Sync requests served from the order list cache"),
		metric.WithUnit("{hits}"),
	)
	if err != nil {
		return nil, err
	}
	sm.syncDuration, err = meter.Float64Histogram(
		"marketplace_sync_duration_seconds",
		metric.WithDescription("Duration of sync runs"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return sm, nil
}

// RecordSync records the outcome of one sync run.
func (m *SyncMetrics) RecordSync(ctx context.Context, platform string, orders int, elapsed time.Duration, fromCache bool, err error) {
	attrs := metric.WithAttributes(attribute.String("platform", platform))

	m.syncRunsTotal.Add(ctx, 1, attrs)
	if err != nil {
		m.syncErrorsTotal.Add(ctx, 1, attrs)
		return
	}
	if fromCache {
		m.cacheHitsTotal.Add(ctx, 1, attrs)
	}
	m.ordersSyncedTotal.Add(ctx, int64(orders), attrs)
	m.syncDuration.Record(ctx, elapsed.Seconds(), attrs)
}
