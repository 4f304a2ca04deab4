package cache

import "errors"

// Sentinel errors for cache operations.
var (
	ErrNilBackend = errors.New("cache: backend is nil")
	ErrInvalidKey = errors.New("cache: key is invalid")
	ErrKeyTooLong = errors.New("cache: key exceeds max length")

	// ErrNotFound is returned by Backend.Get on a miss or an expired entry.
	ErrNotFound = errors.New("cache: not found")

	// ErrUnavailable wraps backend transport failures.
	ErrUnavailable = errors.New("cache: backend unavailable")
)
