package resilience

import (
	"context"
	"errors"
	"time"
)

// StorageConfig tunes the executor wrapped around a cache backend.
type StorageConfig struct {
	// Timeout bounds each backend call.
	// Default: 250ms
	Timeout time.Duration

	// MaxFailures opens the circuit after this many consecutive failures.
	// Default: 5
	MaxFailures int

	// ResetTimeout is how long the circuit stays open before a trial call.
	// Default: 10s
	ResetTimeout time.Duration

	// Attempts is the number of tries per call, including the first.
	// Default: 1 (no retry)
	Attempts int

	// IsExpected reports errors that are part of the backend's contract,
	// such as "key not found". They are returned unchanged and never trip
	// the breaker or trigger a retry.
	IsExpected func(err error) bool

	// OnStateChange is called when the breaker changes state.
	OnStateChange func(from, to State)
}

// NewStorageExecutor builds the executor used around backend calls.
func NewStorageExecutor(config StorageConfig) *Executor {
	if config.Timeout <= 0 {
		config.Timeout = 250 * time.Millisecond
	}
	if config.MaxFailures <= 0 {
		config.MaxFailures = 5
	}
	if config.ResetTimeout <= 0 {
		config.ResetTimeout = 10 * time.Second
	}
	if config.Attempts <= 0 {
		config.Attempts = 1
	}
	isExpected := config.IsExpected
	if isExpected == nil {
		isExpected = func(error) bool { return false }
	}

	isFailure := func(err error) bool {
		if err == nil || isExpected(err) {
			return false
		}
		// The caller went away; the backend did nothing wrong.
		return !errors.Is(err, context.Canceled)
	}

	opts := []ExecutorOption{
		WithCircuitBreaker(NewCircuitBreaker(CircuitBreakerConfig{
			MaxFailures:   config.MaxFailures,
			ResetTimeout:  config.ResetTimeout,
			IsFailure:     isFailure,
			OnStateChange: config.OnStateChange,
		})),
		WithTimeout(config.Timeout),
	}
	if config.Attempts > 1 {
		opts = append(opts, WithRetry(NewRetry(RetryConfig{
			MaxAttempts:  config.Attempts,
			InitialDelay: 10 * time.Millisecond,
			MaxDelay:     config.Timeout,
			Jitter:       true,
			RetryIf: func(err error) bool {
				return isFailure(err) && !errors.Is(err, ErrCircuitOpen)
			},
		})))
	}
	return NewExecutor(opts...)
}
