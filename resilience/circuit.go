package resilience

import (
	"context"
	"sync"
	"time"
)

// State is a circuit breaker state.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	}
	return "unknown"
}

// CircuitBreakerConfig configures a CircuitBreaker.
type CircuitBreakerConfig struct {
	// MaxFailures is the number of consecutive failures that opens the
	// circuit. Default: 5
	MaxFailures int

	// ResetTimeout is how long the circuit stays open before a single
	// trial call is let through. Default: 30s
	ResetTimeout time.Duration

	// IsFailure reports whether err counts against the backend.
	// Default: any non-nil error.
	IsFailure func(err error) bool

	// OnStateChange is called with the lock held; it must not call back
	// into the breaker.
	OnStateChange func(from, to State)
}

// CircuitBreaker stops calling a failing backend until ResetTimeout has
// passed, then lets one trial call through. A successful trial closes the
// circuit; a failed one re-opens it.
type CircuitBreaker struct {
	cfg CircuitBreakerConfig
	now func() time.Time

	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	inTrial  bool
}

// NewCircuitBreaker creates a closed circuit breaker.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	if cfg.IsFailure == nil {
		cfg.IsFailure = func(err error) bool { return err != nil }
	}
	return &CircuitBreaker{cfg: cfg, now: time.Now}
}

// Execute runs op unless the circuit is open, in which case it returns
// ErrCircuitOpen without calling op.
func (cb *CircuitBreaker) Execute(ctx context.Context, op func(context.Context) error) error {
	if err := cb.admit(); err != nil {
		return err
	}
	err := op(ctx)
	cb.record(cb.cfg.IsFailure(err))
	return err
}

// State returns the current state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.stateLocked()
}

// Failures returns the current run of consecutive failures.
func (cb *CircuitBreaker) Failures() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failures
}

// Reset closes the circuit and clears the failure count.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failures = 0
	cb.inTrial = false
	cb.transition(StateClosed)
}

func (cb *CircuitBreaker) admit() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.stateLocked() {
	case StateOpen:
		return ErrCircuitOpen
	case StateHalfOpen:
		if cb.inTrial {
			return ErrCircuitOpen
		}
		cb.inTrial = true
	}
	return nil
}

func (cb *CircuitBreaker) record(failed bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateHalfOpen {
		cb.inTrial = false
		if failed {
			cb.trip()
		} else {
			cb.failures = 0
			cb.transition(StateClosed)
		}
		return
	}

	if !failed {
		cb.failures = 0
		return
	}
	cb.failures++
	if cb.state == StateClosed && cb.failures >= cb.cfg.MaxFailures {
		cb.trip()
	}
}

func (cb *CircuitBreaker) trip() {
	cb.openedAt = cb.now()
	cb.transition(StateOpen)
}

func (cb *CircuitBreaker) stateLocked() State {
	if cb.state == StateOpen && cb.now().Sub(cb.openedAt) >= cb.cfg.ResetTimeout {
		cb.inTrial = false
		cb.transition(StateHalfOpen)
	}
	return cb.state
}

func (cb *CircuitBreaker) transition(to State) {
	from := cb.state
	cb.state = to
	if from != to && cb.cfg.OnStateChange != nil {
		cb.cfg.OnStateChange(from, to)
	}
}
