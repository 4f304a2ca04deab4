package observe

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/jonwraymond/querycache/observe/exporters"
)

// Config selects the telemetry backends. Disabled subsystems fall back to
// no-ops and skip validation.
type Config struct {
	ServiceName string
	Version     string
	Tracing     TracingConfig
	Metrics     MetricsConfig
	Logging     LoggingConfig
}

// TracingConfig configures span export.
type TracingConfig struct {
	Enabled   bool
	Exporter  string  // otlp|jaeger|stdout|none
	SamplePct float64 // 0.0-1.0
}

// MetricsConfig configures metric export.
type MetricsConfig struct {
	Enabled  bool
	Exporter string // otlp|prometheus|stdout|none
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	Enabled bool
	Level   string // debug|info|warn|error
}

// Validate checks that every enabled subsystem names a known backend.
func (c *Config) Validate() error {
	if c.ServiceName == "" {
		return ErrMissingServiceName
	}

	var errs []error
	if c.Tracing.Enabled {
		if !slices.Contains(ValidTracingExporters, c.Tracing.Exporter) {
			errs = append(errs, fmt.Errorf("%w: %q", ErrInvalidTracingExporter, c.Tracing.Exporter))
		}
		if c.Tracing.SamplePct < MinSamplePct || c.Tracing.SamplePct > MaxSamplePct {
			errs = append(errs, fmt.Errorf("%w: got %g", ErrInvalidSamplePct, c.Tracing.SamplePct))
		}
	}
	if c.Metrics.Enabled && !slices.Contains(ValidMetricsExporters, c.Metrics.Exporter) {
		errs = append(errs, fmt.Errorf("%w: %q", ErrInvalidMetricsExporter, c.Metrics.Exporter))
	}
	if c.Logging.Enabled && !slices.Contains(ValidLogLevels, c.Logging.Level) {
		errs = append(errs, fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.Logging.Level))
	}
	return errors.Join(errs...)
}

// Observer owns the telemetry providers for one process.
type Observer interface {
	Tracer() trace.Tracer
	Meter() metric.Meter
	Logger() Logger
	Shutdown(ctx context.Context) error
}

// Logger is a leveled structured logger. Implementations are safe for
// concurrent use and never panic.
type Logger interface {
	Info(ctx context.Context, msg string, fields ...Field)
	Warn(ctx context.Context, msg string, fields ...Field)
	Error(ctx context.Context, msg string, fields ...Field)
	Debug(ctx context.Context, msg string, fields ...Field)

	// With returns a logger that stamps every entry with meta.
	With(meta OperationMeta) Logger
}

// Field represents a structured log field.
type Field struct {
	Key   string
	Value any
}

// F builds a Field.
func F(key string, value any) Field {
	return Field{Key: key, Value: value}
}

type observer struct {
	tracer    trace.Tracer
	meter     metric.Meter
	logger    Logger
	shutdowns []func(context.Context) error
}

// NewObserver builds the providers named by cfg and installs enabled ones as
// the global otel providers.
func NewObserver(ctx context.Context, cfg Config) (Observer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		semconv.ServiceName(cfg.ServiceName),
		semconv.ServiceVersion(cfg.Version),
	))
	if err != nil {
		return nil, fmt.Errorf("observe: resource: %w", err)
	}

	obs := &observer{
		tracer: tracenoop.NewTracerProvider().Tracer(cfg.ServiceName),
		meter:  noop.NewMeterProvider().Meter(cfg.ServiceName),
		logger: NopLogger(),
	}

	if cfg.Tracing.Enabled {
		exporter, err := exporters.NewTracingExporter(ctx, cfg.Tracing.Exporter)
		if err != nil {
			return nil, fmt.Errorf("observe: tracing: %w", err)
		}
		opts := []sdktrace.TracerProviderOption{
			sdktrace.WithResource(res),
			sdktrace.WithSampler(sdktrace.ParentBased(sampler(cfg.Tracing.SamplePct))),
		}
		if exporter != nil {
			opts = append(opts, sdktrace.WithBatcher(exporter))
		}
		tp := sdktrace.NewTracerProvider(opts...)
		otel.SetTracerProvider(tp)
		obs.tracer = tp.Tracer(cfg.ServiceName)
		obs.shutdowns = append(obs.shutdowns, tp.Shutdown)
	}

	if cfg.Metrics.Enabled {
		reader, err := exporters.NewMetricsReader(ctx, cfg.Metrics.Exporter)
		if err != nil {
			_ = obs.Shutdown(ctx)
			return nil, fmt.Errorf("observe: metrics: %w", err)
		}
		opts := []sdkmetric.Option{sdkmetric.WithResource(res)}
		if reader != nil {
			opts = append(opts, sdkmetric.WithReader(reader))
		}
		mp := sdkmetric.NewMeterProvider(opts...)
		otel.SetMeterProvider(mp)
		obs.meter = mp.Meter(cfg.ServiceName)
		obs.shutdowns = append(obs.shutdowns, mp.Shutdown)
	}

	if cfg.Logging.Enabled {
		obs.logger = NewLogger(cfg.Logging.Level)
	}
	return obs, nil
}

func sampler(pct float64) sdktrace.Sampler {
	switch {
	case pct >= MaxSamplePct:
		return sdktrace.AlwaysSample()
	case pct <= MinSamplePct:
		return sdktrace.NeverSample()
	default:
		return sdktrace.TraceIDRatioBased(pct)
	}
}

func (o *observer) Tracer() trace.Tracer { return o.tracer }
func (o *observer) Meter() metric.Meter  { return o.meter }
func (o *observer) Logger() Logger       { return o.logger }

// Shutdown flushes and stops the providers. Calling it again is a no-op.
func (o *observer) Shutdown(ctx context.Context) error {
	var errs []error
	for _, shutdown := range o.shutdowns {
		errs = append(errs, shutdown(ctx))
	}
	o.shutdowns = nil
	return errors.Join(errs...)
}

// NopLogger returns a logger that discards everything.
func NopLogger() Logger {
	return noopLogger{}
}

type noopLogger struct{}

func (noopLogger) Info(context.Context, string, ...Field)  {}
func (noopLogger) Warn(context.Context, string, ...Field)  {}
func (noopLogger) Error(context.Context, string, ...Field) {}
func (noopLogger) Debug(context.Context, string, ...Field) {}
func (l noopLogger) With(OperationMeta) Logger             { return l }
