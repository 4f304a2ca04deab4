package canonical

import (
	"errors"
	"fmt"
)

// ErrSyntax is matched by every SyntaxError via errors.Is.
var ErrSyntax = errors.New("canonical: syntax error")

// SyntaxError reports query text that does not parse.
type SyntaxError struct {
	Message string
	Line    int
	Column  int
}

func (e *SyntaxError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("canonical: syntax error at %d:%d: %s", e.Line, e.Column, e.Message)
	}
	return "canonical: syntax error: " + e.Message
}

// Is reports whether target is ErrSyntax.
func (e *SyntaxError) Is(target error) bool {
	return target == ErrSyntax
}
