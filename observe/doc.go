// Package observe provides logging, metrics and tracing for the query cache.
//
// It is a pure instrumentation library: no execution, no transport, no I/O
// beyond exporter setup. The query pipeline, result cache and collection
// index accept its Logger, Metrics and Tracer and fall back to no-ops when
// none are supplied.
package observe
