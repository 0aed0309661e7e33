package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// UpdatesMetrics represents all metrics related to update checks, publishing and client reports
type UpdatesMetrics struct {
	checks               metric.Int64Counter
	resolveDurationMicro metric.Int64Histogram
	skippedManifests     metric.Int64Counter
	published            metric.Int64Counter
	reports              metric.Int64Counter
	cacheHits            metric.Int64Counter
	cacheMisses          metric.Int64Counter
	ctx                  context.Context
}

// NewUpdatesMetrics creates an instance of UpdatesMetrics
func NewUpdatesMetrics(ctx context.Context, meter metric.Meter) (*UpdatesMetrics, error) {
	checks, err := meter.Int64Counter("updates.check.counter", metric.WithUnit("1"),
		metric.WithDescription("Number of update checks, labeled by channel and whether an update was offered"))
	if err != nil {
		return nil, err
	}

	resolveDurationMicro, err := meter.Int64Histogram("updates.resolve.duration.micro",
		metric.WithUnit("microseconds"))
	if err != nil {
		return nil, err
	}

	skippedManifests, err := meter.Int64Counter("updates.resolve.skipped.manifests", metric.WithUnit("1"),
		metric.WithDescription("Number of stored manifests skipped because they could not be evaluated"))
	if err != nil {
		return nil, err
	}

	published, err := meter.Int64Counter("updates.manifest.published.counter", metric.WithUnit("1"))
	if err != nil {
		return nil, err
	}

	reports, err := meter.Int64Counter("updates.report.counter", metric.WithUnit("1"),
		metric.WithDescription("Number of client lifecycle reports, labeled by status"))
	if err != nil {
		return nil, err
	}

	cacheHits, err := meter.Int64Counter("updates.manifest.cache.hits", metric.WithUnit("1"))
	if err != nil {
		return nil, err
	}

	cacheMisses, err := meter.Int64Counter("updates.manifest.cache.misses", metric.WithUnit("1"))
	if err != nil {
		return nil, err
	}

	return &UpdatesMetrics{
		checks:               checks,
		resolveDurationMicro: resolveDurationMicro,
		skippedManifests:     skippedManifests,
		published:            published,
		reports:              reports,
		cacheHits:            cacheHits,
		cacheMisses:          cacheMisses,
		ctx:                  ctx,
	}, nil
}

// CountCheck counts a resolved update check
func (metrics *UpdatesMetrics) CountCheck(channel string, offered bool, duration time.Duration) {
	metrics.checks.Add(metrics.ctx, 1, metric.WithAttributes(
		attribute.String("channel", channel),
		attribute.Bool("offered", offered),
	))
	metrics.resolveDurationMicro.Record(metrics.ctx, duration.Microseconds())
}

// CountSkippedManifest counts a stored manifest that failed evaluation
func (metrics *UpdatesMetrics) CountSkippedManifest() {
	metrics.skippedManifests.Add(metrics.ctx, 1)
}

// CountPublished counts an accepted manifest
func (metrics *UpdatesMetrics) CountPublished(channel string) {
	metrics.published.Add(metrics.ctx, 1, metric.WithAttributes(attribute.String("channel", channel)))
}

// CountReport counts a client report by status
func (metrics *UpdatesMetrics) CountReport(status string) {
	metrics.reports.Add(metrics.ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

// CountCacheHit counts a manifest lookup served from cache
func (metrics *UpdatesMetrics) CountCacheHit() {
	metrics.cacheHits.Add(metrics.ctx, 1)
}

// CountCacheMiss counts a manifest lookup that went to the store
func (metrics *UpdatesMetrics) CountCacheMiss() {
	metrics.cacheMisses.Add(metrics.ctx, 1)
}
