// Package exporters builds the OpenTelemetry trace exporters and metric
// readers selected by observe.Config.
package exporters

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

var (
	// ErrUnknownExporter indicates an exporter name with no factory.
	ErrUnknownExporter = errors.New("exporters: unknown exporter")

	// ErrEndpointNotConfigured indicates the collector endpoint variable is unset.
	ErrEndpointNotConfigured = errors.New("exporters: endpoint not configured")
)

// Writer receives stdout exporter output. Tests swap it out.
var Writer io.Writer = os.Stdout

// endpoint returns the first non-empty environment variable of names.
func endpoint(names ...string) (string, error) {
	for _, name := range names {
		if v := os.Getenv(name); v != "" {
			return v, nil
		}
	}
	return "", fmt.Errorf("%w: set %s", ErrEndpointNotConfigured, names[0])
}

// NewTracingExporter creates a span exporter: stdout|otlp|jaeger|none.
// Jaeger is reached over OTLP.
func NewTracingExporter(ctx context.Context, name string) (sdktrace.SpanExporter, error) {
	switch name {
	case "stdout":
		return stdouttrace.New(stdouttrace.WithWriter(Writer))
	case "otlp":
		if _, err := endpoint("OTEL_EXPORTER_OTLP_ENDPOINT", "OTEL_EXPORTER_OTLP_TRACES_ENDPOINT"); err != nil {
			return nil, err
		}
		return otlptracegrpc.New(ctx)
	case "jaeger":
		ep, err := endpoint("OTEL_EXPORTER_JAEGER_ENDPOINT")
		if err != nil {
			return nil, err
		}
		return otlptracegrpc.New(ctx, otlptracegrpc.WithEndpointURL(ep))
	case "none", "":
		return stdouttrace.New(stdouttrace.WithWriter(io.Discard))
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownExporter, name)
	}
}

// NewMetricsReader creates a metric reader: stdout|otlp|prometheus|none.
func NewMetricsReader(ctx context.Context, name string) (sdkmetric.Reader, error) {
	switch name {
	case "stdout":
		return periodic(stdoutmetric.New(stdoutmetric.WithWriter(Writer)))
	case "otlp":
		if _, err := endpoint("OTEL_EXPORTER_OTLP_ENDPOINT", "OTEL_EXPORTER_OTLP_METRICS_ENDPOINT"); err != nil {
			return nil, err
		}
		return periodic(otlpmetricgrpc.New(ctx))
	case "prometheus":
		exp, err := prometheus.New()
		if err != nil {
			return nil, fmt.Errorf("exporters: prometheus: %w", err)
		}
		return exp, nil
	case "none", "":
		return periodic(stdoutmetric.New(stdoutmetric.WithWriter(io.Discard)))
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownExporter, name)
	}
}

func periodic(exp sdkmetric.Exporter, err error) (sdkmetric.Reader, error) {
	if err != nil {
		return nil, fmt.Errorf("exporters: metrics exporter: %w", err)
	}
	return sdkmetric.NewPeriodicReader(exp), nil
}
