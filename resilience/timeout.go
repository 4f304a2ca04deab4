package resilience

import (
	"context"
	"errors"
	"time"
)

// ExecuteWithTimeout runs op with a deadline of d. If op does not return in
// time it is abandoned and ErrTimeout is returned; op keeps running until it
// notices its context is done. A non-positive d calls op directly.
func ExecuteWithTimeout(ctx context.Context, d time.Duration, op func(context.Context) error) error {
	if d <= 0 {
		return op(ctx)
	}

	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- op(ctx) }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ErrTimeout
		}
		return ctx.Err()
	}
}
