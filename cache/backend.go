package cache

import (
	"context"
	"strings"
	"time"
)

// MaxKeyLength is the maximum allowed length for a cache key.
const MaxKeyLength = 512

// Backend is the storage abstraction behind ResultCache and the collection index.
//
// Contract:
//   - Concurrency: implementations must be safe for concurrent use.
//   - Context: methods should honor cancellation/deadlines.
//   - Errors: Get returns ErrNotFound on a miss or an expired entry. Delete of
//     a missing key is not an error and reports false.
//   - TTL: ttl <= 0 stores the value without expiry.
//   - Sets: AddToSet is an atomic append-unique; Members returns members in
//     first-insertion order and an empty slice for a missing set.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) (bool, error)

	// PurgeAll removes every entry owned by the backend and returns how many
	// were removed.
	PurgeAll(ctx context.Context) (int, error)

	// AddToSet adds members to the set at key and returns how many were new.
	AddToSet(ctx context.Context, key string, members ...string) (int, error)
	Members(ctx context.Context, key string) ([]string, error)
}

// Pinger is implemented by backends that can report reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ValidateKey checks if a key is valid for caching.
func ValidateKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return ErrInvalidKey
	}
	if len(key) > MaxKeyLength {
		return ErrKeyTooLong
	}
	if strings.ContainsAny(key, "\n\r") {
		return ErrInvalidKey
	}
	return nil
}
