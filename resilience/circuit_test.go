package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errDown = errors.New("backend down")

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(cfg CircuitBreakerConfig) (*CircuitBreaker, *fakeClock) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	cb := NewCircuitBreaker(cfg)
	cb.now = clock.now
	return cb, clock
}

func fail(context.Context) error    { return errDown }
func succeed(context.Context) error { return nil }

func TestCircuitBreaker_Defaults(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{})
	if cb.cfg.MaxFailures != 5 {
		t.Errorf("MaxFailures = %d, want 5", cb.cfg.MaxFailures)
	}
	if cb.cfg.ResetTimeout != 30*time.Second {
		t.Errorf("ResetTimeout = %v, want 30s", cb.cfg.ResetTimeout)
	}
	if cb.State() != StateClosed {
		t.Errorf("State() = %v, want closed", cb.State())
	}
}

func TestCircuitBreaker_Opens(t *testing.T) {
	cb, _ := newTestBreaker(CircuitBreakerConfig{MaxFailures: 3, ResetTimeout: time.Minute})

	for i := 0; i < 3; i++ {
		if err := cb.Execute(context.Background(), fail); !errors.Is(err, errDown) {
			t.Fatalf("Execute() error = %v, want %v", err, errDown)
		}
	}
	if cb.State() != StateOpen {
		t.Fatalf("State() = %v, want open", cb.State())
	}

	called := false
	err := cb.Execute(context.Background(), func(context.Context) error {
		called = true
		return nil
	})
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("Execute() error = %v, want %v", err, ErrCircuitOpen)
	}
	if called {
		t.Error("open circuit called the operation")
	}
}

func TestCircuitBreaker_SuccessResetsRun(t *testing.T) {
	cb, _ := newTestBreaker(CircuitBreakerConfig{MaxFailures: 2})

	_ = cb.Execute(context.Background(), fail)
	_ = cb.Execute(context.Background(), succeed)
	if got := cb.Failures(); got != 0 {
		t.Errorf("Failures() = %d, want 0", got)
	}
	_ = cb.Execute(context.Background(), fail)
	if cb.State() != StateClosed {
		t.Errorf("State() = %v, want closed", cb.State())
	}
}

func TestCircuitBreaker_HalfOpenTrial(t *testing.T) {
	tests := []struct {
		name  string
		trial func(context.Context) error
		want  State
	}{
		{"trial succeeds", succeed, StateClosed},
		{"trial fails", fail, StateOpen},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cb, clock := newTestBreaker(CircuitBreakerConfig{MaxFailures: 1, ResetTimeout: 10 * time.Second})
			_ = cb.Execute(context.Background(), fail)

			clock.advance(9 * time.Second)
			if cb.State() != StateOpen {
				t.Fatalf("State() = %v before reset timeout, want open", cb.State())
			}
			clock.advance(time.Second)
			if cb.State() != StateHalfOpen {
				t.Fatalf("State() = %v after reset timeout, want half-open", cb.State())
			}

			_ = cb.Execute(context.Background(), tt.trial)
			if got := cb.State(); got != tt.want {
				t.Errorf("State() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCircuitBreaker_SingleTrial(t *testing.T) {
	cb, clock := newTestBreaker(CircuitBreakerConfig{MaxFailures: 1, ResetTimeout: time.Second})
	_ = cb.Execute(context.Background(), fail)
	clock.advance(time.Second)

	release := make(chan struct{})
	started := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- cb.Execute(context.Background(), func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	if err := cb.Execute(context.Background(), succeed); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("second trial error = %v, want %v", err, ErrCircuitOpen)
	}
	close(release)
	if err := <-done; err != nil {
		t.Errorf("trial error = %v", err)
	}
	if cb.State() != StateClosed {
		t.Errorf("State() = %v, want closed", cb.State())
	}
}

func TestCircuitBreaker_IsFailure(t *testing.T) {
	errMiss := errors.New("miss")
	cb, _ := newTestBreaker(CircuitBreakerConfig{
		MaxFailures: 1,
		IsFailure:   func(err error) bool { return err != nil && !errors.Is(err, errMiss) },
	})

	if err := cb.Execute(context.Background(), func(context.Context) error { return errMiss }); !errors.Is(err, errMiss) {
		t.Errorf("Execute() error = %v, want %v", err, errMiss)
	}
	if cb.State() != StateClosed {
		t.Errorf("State() = %v, want closed", cb.State())
	}
}

func TestCircuitBreaker_OnStateChangeAndReset(t *testing.T) {
	var changes []string
	cb, clock := newTestBreaker(CircuitBreakerConfig{
		MaxFailures:  1,
		ResetTimeout: time.Second,
		OnStateChange: func(from, to State) {
			changes = append(changes, from.String()+">"+to.String())
		},
	})

	_ = cb.Execute(context.Background(), fail)
	clock.advance(time.Second)
	_ = cb.Execute(context.Background(), succeed)
	_ = cb.Execute(context.Background(), fail)
	cb.Reset()
	cb.Reset()

	want := []string{"closed>open", "open>half-open", "half-open>closed", "closed>open", "open>closed"}
	if len(changes) != len(want) {
		t.Fatalf("changes = %v, want %v", changes, want)
	}
	for i := range want {
		if changes[i] != want[i] {
			t.Errorf("changes[%d] = %q, want %q", i, changes[i], want[i])
		}
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		s    State
		want string
	}{
		{StateClosed, "closed"},
		{StateOpen, "open"},
		{StateHalfOpen, "half-open"},
		{State(42), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.s, got, tt.want)
		}
	}
}
