package secret

import "errors"

var (
	// ErrMissingEnv is returned when ${VAR} names an unset variable.
	ErrMissingEnv = errors.New("secret: missing environment variable")

	// ErrUnknownProvider is returned for a secretref naming no registered provider.
	ErrUnknownProvider = errors.New("secret: unknown provider")

	// ErrEmptySecret is returned in strict mode when a provider resolves to "".
	ErrEmptySecret = errors.New("secret: empty value")

	// ErrInvalidRef is returned for a malformed reference.
	ErrInvalidRef = errors.New("secret: invalid reference")
)
