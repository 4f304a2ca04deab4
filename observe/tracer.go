package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// SpanPrefix prefixes every span name started by Tracer.
const SpanPrefix = "querycache."

// OperationMeta describes the GraphQL operation being served.
type OperationMeta struct {
	Name     string // operation name, empty for anonymous operations
	Type     string // query|mutation|subscription
	QueryID  string // persisted document id, if the request used one
	CacheKey string // result cache key, once derived
}

// SpanName returns the span name for a pipeline phase.
func SpanName(phase string) string {
	return SpanPrefix + phase
}

func (m OperationMeta) attributes() []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 4)
	if m.Name != "" {
		attrs = append(attrs, attribute.String("graphql.operation.name", m.Name))
	}
	if m.Type != "" {
		attrs = append(attrs, attribute.String("graphql.operation.type", m.Type))
	}
	if m.QueryID != "" {
		attrs = append(attrs, attribute.String("querycache.query_id", m.QueryID))
	}
	if m.CacheKey != "" {
		attrs = append(attrs, attribute.String("querycache.key", m.CacheKey))
	}
	return attrs
}

// Tracer wraps OpenTelemetry tracing with one span per pipeline phase.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: EndSpan must be best-effort and must not panic.
type Tracer interface {
	// StartSpan starts an internal span named SpanName(phase).
	StartSpan(ctx context.Context, phase string, meta OperationMeta) (context.Context, trace.Span)

	// EndSpan ends the span, recording any error.
	EndSpan(span trace.Span, err error)
}

type tracerImpl struct {
	tracer trace.Tracer
}

// NewTracer wraps an OpenTelemetry tracer.
func NewTracer(t trace.Tracer) Tracer {
	return &tracerImpl{tracer: t}
}

func (t *tracerImpl) StartSpan(ctx context.Context, phase string, meta OperationMeta) (context.Context, trace.Span) {
	attrs := append(meta.attributes(), attribute.Bool("querycache.error", false))
	return t.tracer.Start(ctx, SpanName(phase),
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

func (t *tracerImpl) EndSpan(span trace.Span, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.Bool("querycache.error", true))
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// NopTracer returns a tracer whose spans record nothing.
func NopTracer() Tracer {
	return &tracerImpl{tracer: tracenoop.NewTracerProvider().Tracer("noop")}
}
