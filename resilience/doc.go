// Package resilience guards calls to cache storage backends.
//
// A remote backend (Redis, JetStream) that slows down or fails must cost the
// query path as little as possible: reads degrade to misses and writes are
// dropped. The package provides the pieces that make that cheap:
//
//   - CircuitBreaker stops calling a backend after repeated failures and
//     tries it again once ResetTimeout has passed.
//   - Retry re-runs an operation with exponential backoff.
//     JetStream compare-and-swap loops use it with a RetryIf that only matches
//     revision conflicts.
//   - ExecuteWithTimeout bounds a single call.
//
// Executor composes them. NewStorageExecutor builds the composition used by
// the cache backends:
//
//	exec := resilience.NewStorageExecutor(resilience.StorageConfig{
//	    Timeout:      200 * time.Millisecond,
//	    MaxFailures:  5,
//	    ResetTimeout: 10 * time.Second,
//	})
//
//	value, err := resilience.Call(ctx, exec, func(ctx context.Context) ([]byte, error) {
//	    return client.Get(ctx, key).Bytes()
//	})
package resilience
