package config

import "errors"

var (
	// ErrInvalid wraps every validation failure.
	ErrInvalid = errors.New("config: invalid settings")

	// ErrUnknownBackend is returned for an unsupported cache.backend.
	ErrUnknownBackend = errors.New("config: unknown cache backend")
)
