package document

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when an id, hash or alias resolves to nothing.
	ErrNotFound = errors.New("document: not found")

	// ErrConflict is returned when a hash or alias is owned by another document.
	ErrConflict = errors.New("document: conflict")

	// ErrInvalidGrant is returned when parsing an unknown grant value.
	ErrInvalidGrant = errors.New("document: invalid grant")

	// ErrEmptyQuery is returned when a document is created without content.
	ErrEmptyQuery = errors.New("document: query is empty")
)

// ConflictError names the identifier that collided and the document that
// already owns it.
type ConflictError struct {
	// Key is the alias or content hash that collided.
	Key string
	// ExistingID is the id of the document that owns Key.
	ExistingID string
	// Reason is a short human-readable explanation.
	Reason string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("document: %q %s (document %s)", e.Key, e.Reason, e.ExistingID)
}

// Is reports whether target is ErrConflict.
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

func conflict(key, existingID, reason string) error {
	return &ConflictError{Key: key, ExistingID: existingID, Reason: reason}
}
