package resilience

import (
	"context"
	"math/rand/v2"
	"time"
)

// RetryConfig configures a Retry.
type RetryConfig struct {
	// MaxAttempts counts the first call. Default: 3
	MaxAttempts int

	// InitialDelay is the wait before the second attempt; it doubles on
	// each further attempt up to MaxDelay. Defaults: 10ms and 1s.
	InitialDelay time.Duration
	MaxDelay     time.Duration

	// Jitter adds up to a quarter of the delay at random.
	Jitter bool

	// RetryIf reports whether err is worth another attempt.
	// Default: any non-nil error.
	RetryIf func(err error) bool

	OnRetry func(attempt int, err error, delay time.Duration)
}

// Retry re-runs an operation with exponential backoff.
type Retry struct {
	cfg RetryConfig
}

// NewRetry creates a Retry.
func NewRetry(cfg RetryConfig) *Retry {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = 10 * time.Millisecond
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = time.Second
	}
	if cfg.RetryIf == nil {
		cfg.RetryIf = func(err error) bool { return err != nil }
	}
	return &Retry{cfg: cfg}
}

// Execute calls op until it succeeds, returns an error RetryIf rejects, or
// MaxAttempts is reached. The last error is returned.
func (r *Retry) Execute(ctx context.Context, op func(context.Context) error) error {
	var err error
	for attempt := 1; ; attempt++ {
		if err = op(ctx); err == nil || !r.cfg.RetryIf(err) || attempt >= r.cfg.MaxAttempts {
			return err
		}

		delay := r.Delay(attempt)
		if r.cfg.OnRetry != nil {
			r.cfg.OnRetry(attempt, err, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Delay returns the wait after the given failed attempt, jitter included.
func (r *Retry) Delay(attempt int) time.Duration {
	delay := r.cfg.InitialDelay
	for i := 1; i < attempt && delay < r.cfg.MaxDelay; i++ {
		delay *= 2
	}
	delay = min(delay, r.cfg.MaxDelay)
	if r.cfg.Jitter && delay >= 4 {
		// #nosec G404 -- timing variance only.
		delay += time.Duration(rand.Int64N(int64(delay / 4)))
	}
	return delay
}
