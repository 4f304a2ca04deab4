package health

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// AggregatorConfig configures an Aggregator.
type AggregatorConfig struct {
	// Timeout bounds each check. Default: 5s
	Timeout time.Duration
}

// Aggregator runs registered checkers concurrently.
type Aggregator struct {
	timeout time.Duration

	mu       sync.RWMutex
	checkers map[string]Checker
	order    []string
}

// Report is the combined outcome of every registered check.
type Report struct {
	Status Status            `json:"status"`
	Checks map[string]Result `json:"checks"`
}

// NewAggregator creates an empty aggregator.
func NewAggregator(cfg AggregatorConfig) *Aggregator {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	return &Aggregator{timeout: cfg.Timeout, checkers: make(map[string]Checker)}
}

// Register adds or replaces the checker under name.
func (a *Aggregator) Register(name string, c Checker) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.checkers[name]; !ok {
		a.order = append(a.order, name)
	}
	a.checkers[name] = c
}

// Names returns checker names in registration order.
func (a *Aggregator) Names() []string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]string(nil), a.order...)
}

// Check runs the checker registered under name.
func (a *Aggregator) Check(ctx context.Context, name string) (Result, error) {
	a.mu.RLock()
	c, ok := a.checkers[name]
	a.mu.RUnlock()
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrCheckerNotFound, name)
	}
	return a.run(ctx, c), nil
}

// Report runs every checker and returns the worst status. An aggregator with
// no checkers is healthy.
func (a *Aggregator) Report(ctx context.Context) Report {
	a.mu.RLock()
	names := append([]string(nil), a.order...)
	checkers := make([]Checker, len(names))
	for i, n := range names {
		checkers[i] = a.checkers[n]
	}
	a.mu.RUnlock()

	results := make([]Result, len(checkers))
	var g errgroup.Group
	for i, c := range checkers {
		g.Go(func() error {
			results[i] = a.run(ctx, c)
			return nil
		})
	}
	_ = g.Wait()

	report := Report{Status: StatusHealthy, Checks: make(map[string]Result, len(names))}
	for i, n := range names {
		report.Checks[n] = results[i]
		report.Status = max(report.Status, results[i].Status)
	}
	return report
}

func (a *Aggregator) run(ctx context.Context, c Checker) Result {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	start := time.Now()
	done := make(chan Result, 1)
	go func() { done <- c.Check(ctx) }()

	select {
	case r := <-done:
		if r.Duration == 0 {
			r.Duration = time.Since(start)
		}
		return r
	case <-ctx.Done():
		return Unhealthy("check timed out", ErrCheckTimeout).WithDuration(time.Since(start))
	}
}

// Checker returns the aggregator as a single Checker named "aggregate".
func (a *Aggregator) Checker() Checker {
	return NewCheckerFunc("aggregate", func(ctx context.Context) Result {
		report := a.Report(ctx)
		return Result{
			Status:    report.Status,
			Message:   fmt.Sprintf("%d checks", len(report.Checks)),
			Timestamp: time.Now(),
		}
	})
}
