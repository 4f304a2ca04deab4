package observe

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Lookup results recorded by Metrics.RecordLookup.
const (
	LookupHit    = "hit"
	LookupMiss   = "miss"
	LookupBypass = "bypass"
)

// Metrics records cache and execution metrics.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: must return quickly.
// - Errors: implementations must not panic.
type Metrics interface {
	// RecordLookup counts a result cache lookup by outcome.
	RecordLookup(ctx context.Context, meta OperationMeta, result string)

	// RecordStore counts a result written to the cache.
	RecordStore(ctx context.Context, meta OperationMeta)

	// RecordPurge counts a purge of an index key and the cache keys it evicted.
	RecordPurge(ctx context.Context, indexKind string, keys int)

	// RecordExecution records an operation execution with duration and error status.
	RecordExecution(ctx context.Context, meta OperationMeta, duration time.Duration, err error)
}

type metricsImpl struct {
	lookups      metric.Int64Counter
	stores       metric.Int64Counter
	purges       metric.Int64Counter
	purgedKeys   metric.Int64Counter
	execErrors   metric.Int64Counter
	durationHist metric.Float64Histogram
}

// NewMetrics creates the querycache instruments on meter.
func NewMetrics(meter metric.Meter) (Metrics, error) {
	lookups, err := meter.Int64Counter(
		"querycache.lookup.total",
		metric.WithDescription("Result cache lookups by outcome"),
		metric.WithUnit("{lookup}"),
	)
	if err != nil {
		return nil, err
	}

	stores, err := meter.Int64Counter(
		"querycache.store.total",
		metric.WithDescription("Results written to the cache"),
		metric.WithUnit("{entry}"),
	)
	if err != nil {
		return nil, err
	}

	purges, err := meter.Int64Counter(
		"querycache.purge.total",
		metric.WithDescription("Index keys purged"),
		metric.WithUnit("{purge}"),
	)
	if err != nil {
		return nil, err
	}

	purgedKeys, err := meter.Int64Counter(
		"querycache.purge.keys",
		metric.WithDescription("Cache keys evicted by purges"),
		metric.WithUnit("{key}"),
	)
	if err != nil {
		return nil, err
	}

	execErrors, err := meter.Int64Counter(
		"querycache.execute.errors",
		metric.WithDescription("Operation executions that returned an error"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	durationHist, err := meter.Float64Histogram(
		"querycache.execute.duration_ms",
		metric.WithDescription("Operation execution duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &metricsImpl{
		lookups:      lookups,
		stores:       stores,
		purges:       purges,
		purgedKeys:   purgedKeys,
		execErrors:   execErrors,
		durationHist: durationHist,
	}, nil
}

func (m *metricsImpl) RecordLookup(ctx context.Context, meta OperationMeta, result string) {
	attrs := []attribute.KeyValue{attribute.String("result", result)}
	if meta.Type != "" {
		attrs = append(attrs, attribute.String("graphql.operation.type", meta.Type))
	}
	m.lookups.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *metricsImpl) RecordStore(ctx context.Context, meta OperationMeta) {
	m.stores.Add(ctx, 1, metric.WithAttributes(operationAttrs(meta)...))
}

func (m *metricsImpl) RecordPurge(ctx context.Context, indexKind string, keys int) {
	opt := metric.WithAttributes(attribute.String("index", indexKind))
	m.purges.Add(ctx, 1, opt)
	m.purgedKeys.Add(ctx, int64(keys), opt)
}

func (m *metricsImpl) RecordExecution(ctx context.Context, meta OperationMeta, duration time.Duration, err error) {
	opt := metric.WithAttributes(operationAttrs(meta)...)
	if err != nil {
		m.execErrors.Add(ctx, 1, opt)
	}
	m.durationHist.Record(ctx, float64(duration.Milliseconds()), opt)
}

// operationAttrs keeps metric cardinality bounded: cache keys and query ids
// are left to spans and logs.
func operationAttrs(meta OperationMeta) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 2)
	if meta.Type != "" {
		attrs = append(attrs, attribute.String("graphql.operation.type", meta.Type))
	}
	if meta.Name != "" {
		attrs = append(attrs, attribute.String("graphql.operation.name", meta.Name))
	}
	return attrs
}

// NopMetrics returns a Metrics that records nothing.
func NopMetrics() Metrics {
	return noopMetrics{}
}

type noopMetrics struct{}

func (noopMetrics) RecordLookup(context.Context, OperationMeta, string)                  {}
func (noopMetrics) RecordStore(context.Context, OperationMeta)                           {}
func (noopMetrics) RecordPurge(context.Context, string, int)                             {}
func (noopMetrics) RecordExecution(context.Context, OperationMeta, time.Duration, error) {}
