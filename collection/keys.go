package collection

import (
	"fmt"
	"strings"
)

// Index key kinds.
const (
	KindNode    = "node"
	KindList    = "list"
	KindSkipped = "skipped"
	KindURL     = "url"
)

// GlobalID identifies an entity by type prefix and raw id.
type GlobalID struct {
	Type string
	ID   string
}

// NewGlobalID builds a GlobalID. The type prefix is lowercased.
func NewGlobalID(typePrefix, rawID string) GlobalID {
	return GlobalID{Type: strings.ToLower(strings.TrimSpace(typePrefix)), ID: strings.TrimSpace(rawID)}
}

// ParseGlobalID parses "type:id".
func ParseGlobalID(s string) (GlobalID, error) {
	typ, id, ok := strings.Cut(s, ":")
	if !ok {
		return GlobalID{}, fmt.Errorf("%w: %q", ErrInvalidID, s)
	}
	g := NewGlobalID(typ, id)
	if !g.Valid() {
		return GlobalID{}, fmt.Errorf("%w: %q", ErrInvalidID, s)
	}
	return g, nil
}

// Valid reports whether both parts are non-empty and the type has no colon.
func (g GlobalID) Valid() bool {
	return g.Type != "" && g.ID != "" && !strings.Contains(g.Type, ":")
}

func (g GlobalID) String() string {
	return g.Type + ":" + g.ID
}

// NodeKey returns the index key for an entity.
func NodeKey(g GlobalID) string { return KindNode + ":" + g.String() }

// ListKey returns the index key for connections of typeName.
func ListKey(typeName string) string { return KindList + ":" + strings.ToLower(typeName) }

// SkippedKey returns the type-level fallback key used when node keys of
// typeName were truncated.
func SkippedKey(typeName string) string { return KindSkipped + ":" + strings.ToLower(typeName) }

// URLKey returns the index key holding the URLs that produced cacheKey.
func URLKey(cacheKey string) string { return KindURL + ":" + cacheKey }

// Kind returns the kind prefix of an index key, or "" if it has none.
func Kind(indexKey string) string {
	kind, _, ok := strings.Cut(indexKey, ":")
	if !ok {
		return ""
	}
	switch kind {
	case KindNode, KindList, KindSkipped, KindURL:
		return kind
	default:
		return ""
	}
}
