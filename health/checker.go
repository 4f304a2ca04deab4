package health

import (
	"context"
	"time"
)

// Status is the health of a component. Larger is worse.
type Status int

const (
	StatusHealthy Status = iota
	StatusDegraded
	StatusUnhealthy
)

func (s Status) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusDegraded:
		return "degraded"
	case StatusUnhealthy:
		return "unhealthy"
	}
	return "unknown"
}

// MarshalText encodes the status by name.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Result is the outcome of one check.
type Result struct {
	Status    Status         `json:"status"`
	Message   string         `json:"message,omitempty"`
	Details   map[string]any `json:"details,omitempty"`
	Duration  time.Duration  `json:"duration_ns"`
	Timestamp time.Time      `json:"timestamp"`
	Error     error          `json:"-"`
}

// Healthy returns a healthy result.
func Healthy(message string) Result {
	return Result{Status: StatusHealthy, Message: message, Timestamp: time.Now()}
}

// Degraded returns a degraded result.
func Degraded(message string) Result {
	return Result{Status: StatusDegraded, Message: message, Timestamp: time.Now()}
}

// Unhealthy returns an unhealthy result caused by err.
func Unhealthy(message string, err error) Result {
	return Result{Status: StatusUnhealthy, Message: message, Error: err, Timestamp: time.Now()}
}

// WithDetails returns r with details set.
func (r Result) WithDetails(details map[string]any) Result {
	r.Details = details
	return r
}

// WithDuration returns r with the check duration set.
func (r Result) WithDuration(d time.Duration) Result {
	r.Duration = d
	return r
}

// Checker checks one component.
type Checker interface {
	Name() string
	Check(ctx context.Context) Result
}

// PingChecker is a Checker whose component can be pinged directly.
type PingChecker interface {
	Checker
	Ping(ctx context.Context) error
}

// CheckerFunc adapts a function to a Checker.
type CheckerFunc struct {
	name string
	fn   func(context.Context) Result
}

// NewCheckerFunc creates a named CheckerFunc.
func NewCheckerFunc(name string, fn func(context.Context) Result) *CheckerFunc {
	return &CheckerFunc{name: name, fn: fn}
}

func (f *CheckerFunc) Name() string { return f.name }

func (f *CheckerFunc) Check(ctx context.Context) Result { return f.fn(ctx) }

var _ Checker = (*CheckerFunc)(nil)
