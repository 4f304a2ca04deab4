package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/jonwraymond/querycache/auth"
	"github.com/jonwraymond/querycache/canonical"
)

// KeyRequest holds the request parameters a cache key is derived from.
type KeyRequest struct {
	// QueryID names a persisted document. It takes precedence over Query.
	QueryID       string
	Query         string
	Variables     map[string]any
	OperationName string
}

// DocumentResolver returns the normalized content of a persisted document.
type DocumentResolver interface {
	Get(ctx context.Context, idOrAlias string) (string, error)
}

// Keyer derives cache keys.
//
// Contract:
//   - Determinism: the same effective query, variables, operation and viewer
//     produce the same key regardless of query formatting or map ordering.
//   - Absence: ok is false when there is no query content to key on. Callers
//     bypass the cache in that case.
//   - Concurrency: implementations must be safe for concurrent use.
type Keyer interface {
	Key(ctx context.Context, req KeyRequest) (key string, ok bool, err error)
}

// KeyBuilder is the default Keyer. Keys are SHA-256 hex digests over the
// canonical JSON of {operation, query, variables, viewer}; the viewer comes
// from the auth identity in ctx.
type KeyBuilder struct {
	docs DocumentResolver
}

// NewKeyBuilder creates a KeyBuilder. docs may be nil when persisted
// documents are not in use; requests carrying only a QueryID are then absent.
func NewKeyBuilder(docs DocumentResolver) *KeyBuilder {
	return &KeyBuilder{docs: docs}
}

// Key derives the cache key for req. Errors from the document resolver and
// canonical.ErrSyntax are returned unchanged.
func (b *KeyBuilder) Key(ctx context.Context, req KeyRequest) (string, bool, error) {
	query, err := b.content(ctx, req)
	if err != nil || query == "" {
		return "", false, err
	}

	variables := req.Variables
	if variables == nil {
		variables = map[string]any{}
	}
	payload, err := canonicalize(map[string]any{
		"query":     query,
		"variables": variables,
		"operation": req.OperationName,
		"viewer":    auth.ViewerID(ctx),
	})
	if err != nil {
		return "", false, fmt.Errorf("cache: failed to canonicalize key: %w", err)
	}

	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:]), true, nil
}

func (b *KeyBuilder) content(ctx context.Context, req KeyRequest) (string, error) {
	if req.QueryID != "" && b.docs != nil {
		return b.docs.Get(ctx, req.QueryID)
	}
	if req.Query == "" {
		return "", nil
	}
	return canonical.Normalize(req.Query)
}

// canonicalize produces a deterministic JSON representation of v. Maps are
// written with sorted keys at every depth.
func canonicalize(v any) ([]byte, error) {
	switch val := v.(type) {
	case nil:
		return []byte("null"), nil
	case map[string]any:
		return canonicalizeMap(val)
	case []any:
		return canonicalizeSlice(val)
	case json.RawMessage:
		var decoded any
		if err := json.Unmarshal(val, &decoded); err != nil {
			return nil, err
		}
		return canonicalize(decoded)
	default:
		// Typed maps and structs round-trip through the generic form so
		// nested maps are sorted too.
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		if len(raw) > 0 && (raw[0] == '{' || raw[0] == '[') {
			var decoded any
			if err := json.Unmarshal(raw, &decoded); err != nil {
				return nil, err
			}
			return canonicalize(decoded)
		}
		return raw, nil
	}
}

func canonicalizeMap(m map[string]any) ([]byte, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := []byte("{")
	for i, k := range keys {
		if i > 0 {
			result = append(result, ',')
		}
		keyBytes, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		result = append(result, keyBytes...)
		result = append(result, ':')

		valBytes, err := canonicalize(m[k])
		if err != nil {
			return nil, err
		}
		result = append(result, valBytes...)
	}
	return append(result, '}'), nil
}

func canonicalizeSlice(s []any) ([]byte, error) {
	result := []byte("[")
	for i, v := range s {
		if i > 0 {
			result = append(result, ',')
		}
		valBytes, err := canonicalize(v)
		if err != nil {
			return nil, err
		}
		result = append(result, valBytes...)
	}
	return append(result, ']'), nil
}

var _ Keyer = (*KeyBuilder)(nil)
