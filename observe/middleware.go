package observe

import (
	"context"
	"time"
)

// ExecuteFunc executes one GraphQL operation.
type ExecuteFunc func(ctx context.Context, op OperationMeta) (any, error)

// Middleware wraps operation execution with tracing, metrics and logging.
//
// Contract:
//   - Concurrency: Wrap() returns a thread-safe ExecuteFunc.
//   - Context: Propagates context through tracing spans.
//   - Errors: Errors from the wrapped function are recorded and propagated unchanged.
type Middleware struct {
	tracer  Tracer
	metrics Metrics
	logger  Logger
}

// NewMiddleware creates a new Middleware. Nil components are replaced by no-ops.
func NewMiddleware(tracer Tracer, metrics Metrics, logger Logger) *Middleware {
	if tracer == nil {
		tracer = NopTracer()
	}
	if metrics == nil {
		metrics = NopMetrics()
	}
	if logger == nil {
		logger = NopLogger()
	}
	return &Middleware{
		tracer:  tracer,
		metrics: metrics,
		logger:  logger,
	}
}

// Tracer returns the middleware's tracer.
func (m *Middleware) Tracer() Tracer { return m.tracer }

// Metrics returns the middleware's metrics.
func (m *Middleware) Metrics() Metrics { return m.metrics }

// Logger returns the middleware's logger.
func (m *Middleware) Logger() Logger { return m.logger }

// Wrap wraps fn with an "execute" span, execution metrics and a log line.
func (m *Middleware) Wrap(fn ExecuteFunc) ExecuteFunc {
	return func(ctx context.Context, op OperationMeta) (any, error) {
		ctx, span := m.tracer.StartSpan(ctx, "execute", op)
		start := time.Now()

		result, err := fn(ctx, op)

		duration := time.Since(start)
		m.tracer.EndSpan(span, err)
		m.metrics.RecordExecution(ctx, op, duration, err)

		log := m.logger.With(op)
		fields := []Field{F("duration_ms", float64(duration.Milliseconds()))}
		if err != nil {
			fields = append(fields, F("error", err))
			log.Error(ctx, "operation execution failed", fields...)
		} else {
			log.Debug(ctx, "operation executed", fields...)
		}

		return result, err
	}
}

// MiddlewareFromObserver creates a Middleware from an Observer.
func MiddlewareFromObserver(obs Observer) (*Middleware, error) {
	if obs == nil {
		return nil, ErrNilObserver
	}

	metrics, err := NewMetrics(obs.Meter())
	if err != nil {
		return nil, err
	}

	return NewMiddleware(NewTracer(obs.Tracer()), metrics, obs.Logger()), nil
}
