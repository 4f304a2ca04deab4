package cache

import (
	"context"
	"time"

	"github.com/jonwraymond/querycache/health"
	"github.com/jonwraymond/querycache/resilience"
)

// BackendChecker reports the health of a Backend. Backends that are not
// Pingers are always healthy.
type BackendChecker struct {
	name    string
	backend Backend
}

// NewBackendChecker creates a checker registered under name.
func NewBackendChecker(name string, backend Backend) *BackendChecker {
	return &BackendChecker{name: name, backend: backend}
}

// Name returns the checker name.
func (c *BackendChecker) Name() string { return c.name }

// Ping pings the backend if it supports it.
func (c *BackendChecker) Ping(ctx context.Context) error {
	if p, ok := c.backend.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Check pings the backend. A reachable backend behind an open circuit is
// degraded.
func (c *BackendChecker) Check(ctx context.Context) health.Result {
	start := time.Now()
	if err := c.Ping(ctx); err != nil {
		return health.Unhealthy("cache backend unreachable", err).WithDuration(time.Since(start))
	}

	if rb, ok := c.backend.(*ResilientBackend); ok {
		state := rb.State()
		if state != resilience.StateClosed {
			return health.Degraded("cache circuit " + state.String()).
				WithDetails(map[string]any{"circuit": state.String()}).
				WithDuration(time.Since(start))
		}
	}
	return health.Healthy("cache backend reachable").WithDuration(time.Since(start))
}

var _ health.PingChecker = (*BackendChecker)(nil)
