package health

import "errors"

var (
	ErrCheckTimeout    = errors.New("health: check timeout")
	ErrCheckerNotFound = errors.New("health: checker not found")
)
