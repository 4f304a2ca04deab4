package cache

import (
	"math"
	"time"
)

// Policy configures result TTLs.
type Policy struct {
	// DefaultTTL is used when a Set does not specify one.
	// If zero, caching is disabled.
	DefaultTTL time.Duration

	// MaxTTL clamps explicit TTLs. If zero, no maximum is enforced.
	MaxTTL time.Duration
}

// DefaultPolicy returns a 10 minute default TTL capped at 24 hours.
func DefaultPolicy() Policy {
	return Policy{
		DefaultTTL: 10 * time.Minute,
		MaxTTL:     24 * time.Hour,
	}
}

// NoCachePolicy returns a policy that disables caching entirely.
func NoCachePolicy() Policy {
	return Policy{}
}

// ShouldCache returns true if caching is enabled by this policy.
func (p Policy) ShouldCache() bool {
	return p.DefaultTTL > 0
}

// EffectiveTTL returns the TTL to use, applying defaults and clamping.
func (p Policy) EffectiveTTL(override time.Duration) time.Duration {
	ttl := override
	if ttl <= 0 {
		ttl = p.DefaultTTL
	}
	if p.MaxTTL > 0 && ttl > p.MaxTTL {
		ttl = p.MaxTTL
	}
	return ttl
}

// MaxAge converts a max-age setting in seconds to a header value. Fractions
// are truncated; negative, NaN and infinite settings are rejected.
func MaxAge(seconds float64) (int, bool) {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
		return 0, false
	}
	return int(math.Trunc(seconds)), true
}

// ResolveMaxAge picks the Access-Control-Max-Age value for a response. A
// non-negative per-document override wins over the global setting.
func ResolveMaxAge(override *int, global float64) (int, bool) {
	if override != nil && *override >= 0 {
		return *override, true
	}
	return MaxAge(global)
}
