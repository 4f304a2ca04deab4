// Package health reports whether the cache's storage backends are usable.
//
// A Checker returns a Result with one of three statuses. Degraded means the
// query path still works but the cache is not helping, for example while a
// backend's circuit breaker is open and reads fall through to misses.
//
//	agg := health.NewAggregator(health.AggregatorConfig{Timeout: 2 * time.Second})
//	agg.Register("cache", cache.NewBackendChecker("redis", backend))
//	report := agg.Report(ctx)
//
// Handler serves the report as JSON for readiness checks.
package health
