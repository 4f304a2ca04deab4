package invalidation

import "errors"

var (
	ErrNilIndex       = errors.New("invalidation: index is nil")
	ErrNilResultCache = errors.New("invalidation: result cache is nil")

	// ErrEntityNotFound is returned by Entities lookups for missing entities.
	ErrEntityNotFound = errors.New("invalidation: entity not found")
)
