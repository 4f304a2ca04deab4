package document

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// Grant is the access decision attached to a document.
type Grant string

const (
	// GrantUseDefault defers to the global grant mode.
	GrantUseDefault Grant = ""
	GrantAllow      Grant = "allow"
	GrantDeny       Grant = "deny"
)

// ParseGrant parses "allow", "deny", or "" / "default".
func ParseGrant(s string) (Grant, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "default", "use_default":
		return GrantUseDefault, nil
	case "allow":
		return GrantAllow, nil
	case "deny":
		return GrantDeny, nil
	default:
		return GrantUseDefault, fmt.Errorf("%w: %q", ErrInvalidGrant, s)
	}
}

func (g Grant) String() string {
	if g == GrantUseDefault {
		return "default"
	}
	return string(g)
}

// QueryDocument is a persisted GraphQL query.
type QueryDocument struct {
	// ID is assigned on creation and never changes.
	ID string `json:"id"`

	// Hash is the content hash of Content. It changes when Content does.
	Hash string `json:"hash"`

	// Content is the normalized query text.
	Content string `json:"content"`

	Title string `json:"title,omitempty"`

	// Aliases are explicit alternative ids. They never include Hash.
	Aliases []string `json:"aliases,omitempty"`

	Grant Grant `json:"grant,omitempty"`

	// MaxAge overrides the global Access-Control-Max-Age when set.
	MaxAge *int `json:"max_age,omitempty"`

	// SkipGC exempts the document from garbage collection.
	SkipGC bool `json:"skip_gc,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasAlias reports whether alias is one of d's explicit aliases.
func (d QueryDocument) HasAlias(alias string) bool {
	return slices.Contains(d.Aliases, alias)
}

// Keys returns every identifier d resolves under: its hash then its aliases.
func (d QueryDocument) Keys() []string {
	return append([]string{d.Hash}, d.Aliases...)
}

// Clone returns a deep copy of d.
func (d QueryDocument) Clone() QueryDocument {
	out := d
	out.Aliases = slices.Clone(d.Aliases)
	if d.MaxAge != nil {
		v := *d.MaxAge
		out.MaxAge = &v
	}
	return out
}

// normalizeAliases trims, dedupes and drops empty aliases and the document's
// own hash, keeping first-seen order.
func normalizeAliases(aliases []string, hash string) []string {
	out := make([]string, 0, len(aliases))
	for _, a := range aliases {
		a = strings.TrimSpace(a)
		if a == "" || a == hash || slices.Contains(out, a) {
			continue
		}
		out = append(out, a)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
