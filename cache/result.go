package cache

import (
	"context"
	"errors"
	"time"

	"github.com/jonwraymond/querycache/observe"
)

// ResultCache stores serialized execution results by cache key. It is
// identity-agnostic: viewer sensitivity lives in the key.
//
// Storage failures degrade to misses. They are logged and never returned.
type ResultCache struct {
	backend Backend
	policy  Policy
	logger  observe.Logger
}

// ResultCacheOption configures a ResultCache.
type ResultCacheOption func(*ResultCache)

// WithPolicy sets the TTL policy. The default is DefaultPolicy().
func WithPolicy(p Policy) ResultCacheOption {
	return func(c *ResultCache) { c.policy = p }
}

// WithLogger sets the logger for degraded-storage warnings.
func WithLogger(l observe.Logger) ResultCacheOption {
	return func(c *ResultCache) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewResultCache creates a ResultCache over backend.
func NewResultCache(backend Backend, opts ...ResultCacheOption) (*ResultCache, error) {
	if backend == nil {
		return nil, ErrNilBackend
	}
	c := &ResultCache{
		backend: backend,
		policy:  DefaultPolicy(),
		logger:  observe.NopLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Backend returns the underlying storage.
func (c *ResultCache) Backend() Backend { return c.backend }

// Policy returns the TTL policy.
func (c *ResultCache) Policy() Policy { return c.policy }

// Get returns the cached value for key.
func (c *ResultCache) Get(ctx context.Context, key string) ([]byte, bool) {
	if ValidateKey(key) != nil {
		return nil, false
	}
	value, err := c.backend.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			c.logger.Warn(ctx, "result cache read failed", observe.F("cache_key", key), observe.F("error", err))
		}
		return nil, false
	}
	return value, true
}

// Set stores value under key when no fresh value is already present. A ttl
// of zero uses the policy default. It reports whether a write happened.
func (c *ResultCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) bool {
	if !c.policy.ShouldCache() || ValidateKey(key) != nil {
		return false
	}
	if _, err := c.backend.Get(ctx, key); err == nil {
		return false
	}
	if err := c.backend.Set(ctx, key, value, c.policy.EffectiveTTL(ttl)); err != nil {
		c.logger.Warn(ctx, "result cache write failed", observe.F("cache_key", key), observe.F("error", err))
		return false
	}
	return true
}

// Delete removes key and reports whether it was present.
func (c *ResultCache) Delete(ctx context.Context, key string) bool {
	if ValidateKey(key) != nil {
		return false
	}
	ok, err := c.backend.Delete(ctx, key)
	if err != nil {
		c.logger.Warn(ctx, "result cache delete failed", observe.F("cache_key", key), observe.F("error", err))
		return false
	}
	return ok
}

// PurgeAll removes every entry. The bool is false when the backend failed.
func (c *ResultCache) PurgeAll(ctx context.Context) (int, bool) {
	n, err := c.backend.PurgeAll(ctx)
	if err != nil {
		c.logger.Warn(ctx, "result cache purge failed", observe.F("error", err))
		return 0, false
	}
	c.logger.Info(ctx, "result cache purged", observe.F("entries", n))
	return n, true
}
