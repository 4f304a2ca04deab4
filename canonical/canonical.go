package canonical

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
	"github.com/vektah/gqlparser/v2/parser"
)

// HashLength is the length of a hex-encoded Hash result.
const HashLength = sha256.Size * 2

// Parse parses query text into a query document.
// Empty documents are rejected.
func Parse(query string) (*ast.QueryDocument, error) {
	doc, err := parser.ParseQuery(&ast.Source{Name: "query", Input: query})
	if err != nil {
		return nil, toSyntaxError(err)
	}
	if len(doc.Operations) == 0 && len(doc.Fragments) == 0 {
		return nil, &SyntaxError{Message: "document contains no definitions"}
	}
	return doc, nil
}

// Normalize parses query and prints it in canonical form.
func Normalize(query string) (string, error) {
	doc, err := Parse(query)
	if err != nil {
		return "", err
	}
	return Print(doc), nil
}

// Hash returns the hex-encoded SHA-256 digest of s.
func Hash(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// NormalizeAndHash normalizes query and returns the normalized text and its hash.
func NormalizeAndHash(query string) (normalized, hash string, err error) {
	normalized, err = Normalize(query)
	if err != nil {
		return "", "", err
	}
	return normalized, Hash(normalized), nil
}

// IsHash reports whether s has the shape of a Hash result.
func IsHash(s string) bool {
	if len(s) != HashLength {
		return false
	}
	return strings.IndexFunc(s, func(r rune) bool {
		return !(r >= '0' && r <= '9' || r >= 'a' && r <= 'f')
	}) < 0
}

func toSyntaxError(err error) error {
	var gqlErr *gqlerror.Error
	if errors.As(err, &gqlErr) {
		se := &SyntaxError{Message: gqlErr.Message}
		if len(gqlErr.Locations) > 0 {
			se.Line = gqlErr.Locations[0].Line
			se.Column = gqlErr.Locations[0].Column
		}
		return se
	}
	return &SyntaxError{Message: err.Error()}
}
