package collection

import "errors"

var (
	ErrNilBackend     = errors.New("collection: backend is nil")
	ErrNilResultCache = errors.New("collection: result cache is nil")
	ErrInvalidID      = errors.New("collection: invalid global id")
	ErrInvalidKey     = errors.New("collection: invalid index key")
)
