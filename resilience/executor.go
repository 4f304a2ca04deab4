package resilience

import (
	"context"
	"time"
)

// Executor composes circuit breaking, retry and timeout.
type Executor struct {
	circuitBreaker *CircuitBreaker
	retry          *Retry
	timeout        time.Duration
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// NewExecutor creates a new resilience executor.
func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// WithCircuitBreaker adds a circuit breaker to the executor.
func WithCircuitBreaker(cb *CircuitBreaker) ExecutorOption {
	return func(e *Executor) {
		e.circuitBreaker = cb
	}
}

// WithRetry adds retry logic to the executor.
func WithRetry(r *Retry) ExecutorOption {
	return func(e *Executor) {
		e.retry = r
	}
}

// WithTimeout bounds each attempt to timeout.
func WithTimeout(timeout time.Duration) ExecutorOption {
	return func(e *Executor) {
		e.timeout = timeout
	}
}

// CircuitBreaker returns the executor's breaker, or nil.
func (e *Executor) CircuitBreaker() *CircuitBreaker {
	return e.circuitBreaker
}

// Execute runs op through the configured patterns. The breaker is outermost,
// so a retried operation counts as one failure; the timeout applies to each
// attempt.
func (e *Executor) Execute(ctx context.Context, op func(context.Context) error) error {
	execute := op

	if e.timeout > 0 {
		inner := execute
		execute = func(ctx context.Context) error {
			return ExecuteWithTimeout(ctx, e.timeout, inner)
		}
	}

	if e.retry != nil {
		inner := execute
		execute = func(ctx context.Context) error {
			return e.retry.Execute(ctx, inner)
		}
	}

	if e.circuitBreaker != nil {
		inner := execute
		execute = func(ctx context.Context) error {
			return e.circuitBreaker.Execute(ctx, inner)
		}
	}

	return execute(ctx)
}

// Call runs op through e and returns its value. A nil executor calls op directly.
func Call[T any](ctx context.Context, e *Executor, op func(context.Context) (T, error)) (T, error) {
	if e == nil {
		return op(ctx)
	}

	var result T
	err := e.Execute(ctx, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		result = v
		return nil
	})
	return result, err
}
