package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/placefinder/placefinder/internal/telemetry"

// Cache lookup outcomes recorded as the cache.result attribute.
const (
	CacheHit  = "hit"
	CacheMiss = "miss"
)

// ProviderMetrics records calls made to upstream providers and the caches in
// front of them. A nil *ProviderMetrics is valid and records nothing.
type ProviderMetrics struct {
	duration metric.Float64Histogram
	calls    metric.Int64Counter
	lookups  metric.Int64Counter
}

// NewProviderMetrics creates the provider instruments on the global meter, so
// call it after Init.
func NewProviderMetrics() (*ProviderMetrics, error) {
	meter := otel.Meter(meterName)
	m := &ProviderMetrics{}
	var err error

	if m.duration, err = meter.Float64Histogram("provider.request.duration",
		metric.WithDescription("Duration of upstream provider requests"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	if m.calls, err = meter.Int64Counter("provider.request.total",
		metric.WithDescription("Upstream provider requests by outcome"),
		metric.WithUnit("{request}"),
	); err != nil {
		return nil, err
	}
	if m.lookups, err = meter.Int64Counter("provider.cache.lookups",
		metric.WithDescription("Provider cache lookups by result"),
		metric.WithUnit("{lookup}"),
	); err != nil {
		return nil, err
	}
	return m, nil
}

func operationAttrs(provider, operation string, extra ...attribute.KeyValue) metric.MeasurementOption {
	attrs := append([]attribute.KeyValue{
		attribute.String("provider.name", provider),
		attribute.String("provider.operation", operation),
	}, extra...)
	return metric.WithAttributes(attrs...)
}

// RecordRequest records one provider call. A cancelled ctx is still recorded.
func (m *ProviderMetrics) RecordRequest(ctx context.Context, provider, operation string, duration time.Duration, err error) {
	if m == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	opt := operationAttrs(provider, operation, attribute.Bool("error", err != nil))
	m.duration.Record(ctx, duration.Seconds(), opt)
	m.calls.Add(ctx, 1, opt)
}

// RecordCacheHit records a lookup answered from the cache.
func (m *ProviderMetrics) RecordCacheHit(ctx context.Context, provider, operation string) {
	m.recordLookup(ctx, provider, operation, CacheHit)
}

// RecordCacheMiss records a lookup that went to the provider.
func (m *ProviderMetrics) RecordCacheMiss(ctx context.Context, provider, operation string) {
	m.recordLookup(ctx, provider, operation, CacheMiss)
}

func (m *ProviderMetrics) recordLookup(ctx context.Context, provider, operation, result string) {
	if m == nil {
		return
	}
	m.lookups.Add(context.WithoutCancel(ctx), 1,
		operationAttrs(provider, operation, attribute.String("cache.result", result)))
}
