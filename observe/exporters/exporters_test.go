package exporters

import (
	"context"
	"errors"
	"io"
	"testing"
)

func TestNewTracingExporter(t *testing.T) {
	Writer = io.Discard
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	t.Setenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT", "")
	t.Setenv("OTEL_EXPORTER_JAEGER_ENDPOINT", "")

	tests := []struct {
		name    string
		wantErr error
	}{
		{name: "stdout"},
		{name: "none"},
		{name: ""},
		{name: "otlp", wantErr: ErrEndpointNotConfigured},
		{name: "jaeger", wantErr: ErrEndpointNotConfigured},
		{name: "zipkin", wantErr: ErrUnknownExporter},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exp, err := NewTracingExporter(context.Background(), tt.name)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("NewTracingExporter(%q) error = %v, want %v", tt.name, err, tt.wantErr)
			}
			if tt.wantErr == nil {
				if exp == nil {
					t.Fatal("NewTracingExporter() returned nil exporter")
				}
				_ = exp.Shutdown(context.Background())
			}
		})
	}
}

func TestNewTracingExporter_OTLPWithEndpoint(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "http://localhost:4317")

	exp, err := NewTracingExporter(context.Background(), "otlp")
	if err != nil {
		t.Fatalf("NewTracingExporter() error = %v", err)
	}
	_ = exp.Shutdown(context.Background())
}

func TestNewMetricsReader(t *testing.T) {
	Writer = io.Discard
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	t.Setenv("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT", "")

	tests := []struct {
		name    string
		wantErr error
	}{
		{name: "stdout"},
		{name: "none"},
		{name: "prometheus"},
		{name: "otlp", wantErr: ErrEndpointNotConfigured},
		{name: "statsd", wantErr: ErrUnknownExporter},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader, err := NewMetricsReader(context.Background(), tt.name)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("NewMetricsReader(%q) error = %v, want %v", tt.name, err, tt.wantErr)
			}
			if tt.wantErr == nil && reader == nil {
				t.Fatal("NewMetricsReader() returned nil reader")
			}
		})
	}
}
