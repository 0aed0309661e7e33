package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// StoreMetrics represents all metrics related to the Store
type StoreMetrics struct {
	queryDurationMs metric.Int64Histogram
	queryErrors     metric.Int64Counter
	ctx             context.Context
}

// NewStoreMetrics creates an instance of StoreMetrics
func NewStoreMetrics(ctx context.Context, meter metric.Meter) (*StoreMetrics, error) {
	queryDurationMs, err := meter.Int64Histogram("updates.store.query.duration.ms",
		metric.WithUnit("milliseconds"))
	if err != nil {
		return nil, err
	}

	queryErrors, err := meter.Int64Counter("updates.store.query.errors", metric.WithUnit("1"))
	if err != nil {
		return nil, err
	}

	return &StoreMetrics{
		queryDurationMs: queryDurationMs,
		queryErrors:     queryErrors,
		ctx:             ctx,
	}, nil
}

// CountQueryDuration records how long a store operation took
func (metrics *StoreMetrics) CountQueryDuration(operation string, duration time.Duration) {
	metrics.queryDurationMs.Record(metrics.ctx, duration.Milliseconds(),
		metric.WithAttributes(attribute.String("operation", operation)))
}

// CountQueryError counts a failed store operation
func (metrics *StoreMetrics) CountQueryError(operation string) {
	metrics.queryErrors.Add(metrics.ctx, 1, metric.WithAttributes(attribute.String("operation", operation)))
}
