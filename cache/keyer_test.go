package cache

import (
	"context"
	"errors"
	"testing"

	"github.com/jonwraymond/querycache/auth"
	"github.com/jonwraymond/querycache/canonical"
)

type staticDocs map[string]string

var errNoDocument = errors.New("no document")

func (d staticDocs) Get(_ context.Context, id string) (string, error) {
	content, ok := d[id]
	if !ok {
		return "", errNoDocument
	}
	return content, nil
}

func mustKey(t *testing.T, b *KeyBuilder, ctx context.Context, req KeyRequest) string {
	t.Helper()
	key, ok, err := b.Key(ctx, req)
	if err != nil {
		t.Fatalf("Key() error = %v", err)
	}
	if !ok {
		t.Fatal("Key() ok = false, want true")
	}
	return key
}

func TestKeyBuilder_Deterministic(t *testing.T) {
	b := NewKeyBuilder(nil)
	ctx := context.Background()

	k1 := mustKey(t, b, ctx, KeyRequest{Query: "{ posts { nodes { title } } }"})
	k2 := mustKey(t, b, ctx, KeyRequest{Query: "{ posts { nodes { title } } }"})
	if k1 != k2 {
		t.Errorf("same request produced %q and %q", k1, k2)
	}
	if len(k1) != 64 {
		t.Errorf("len(key) = %d, want 64", len(k1))
	}
}

func TestKeyBuilder_IgnoresFormatting(t *testing.T) {
	b := NewKeyBuilder(nil)
	ctx := context.Background()

	k1 := mustKey(t, b, ctx, KeyRequest{Query: "{ posts { nodes { title } } }"})
	k2 := mustKey(t, b, ctx, KeyRequest{Query: "# list\n{\n  posts {\n nodes { title }\n }\n}"})
	if k1 != k2 {
		t.Errorf("formatting changed the key: %q vs %q", k1, k2)
	}
}

func TestKeyBuilder_VariableOrder(t *testing.T) {
	b := NewKeyBuilder(nil)
	ctx := context.Background()
	query := "query Q($where: In, $first: Int) { posts(first: $first, where: $where) { nodes { id } } }"

	k1 := mustKey(t, b, ctx, KeyRequest{
		Query: query,
		Variables: map[string]any{
			"first": 10,
			"where": map[string]any{"status": "PUBLISH", "author": 1, "tags": []any{map[string]any{"b": 2, "a": 1}}},
		},
	})
	k2 := mustKey(t, b, ctx, KeyRequest{
		Query: query,
		Variables: map[string]any{
			"where": map[string]any{"tags": []any{map[string]any{"a": 1, "b": 2}}, "author": 1, "status": "PUBLISH"},
			"first": 10,
		},
	})
	if k1 != k2 {
		t.Errorf("variable order changed the key: %q vs %q", k1, k2)
	}
}

func TestKeyBuilder_Distinguishes(t *testing.T) {
	b := NewKeyBuilder(nil)
	ctx := context.Background()
	base := KeyRequest{
		Query:         "query A { a } query B { b }",
		Variables:     map[string]any{"x": 1},
		OperationName: "A",
	}
	baseKey := mustKey(t, b, ctx, base)

	tests := []struct {
		name string
		ctx  context.Context
		req  KeyRequest
	}{
		{"operation", ctx, KeyRequest{Query: base.Query, Variables: base.Variables, OperationName: "B"}},
		{"variables", ctx, KeyRequest{Query: base.Query, Variables: map[string]any{"x": 2}, OperationName: "A"}},
		{"query", ctx, KeyRequest{Query: "query A { a } query B { c }", Variables: base.Variables, OperationName: "A"}},
		{"viewer", auth.WithIdentity(ctx, &auth.Identity{Principal: "42", Method: auth.AuthMethodJWT}), base},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := mustKey(t, b, tt.ctx, tt.req); got == baseKey {
				t.Errorf("changing %s kept key %q", tt.name, got)
			}
		})
	}
}

func TestKeyBuilder_NilAndEmptyVariablesMatch(t *testing.T) {
	b := NewKeyBuilder(nil)
	ctx := context.Background()

	k1 := mustKey(t, b, ctx, KeyRequest{Query: "{ a }"})
	k2 := mustKey(t, b, ctx, KeyRequest{Query: "{ a }", Variables: map[string]any{}})
	if k1 != k2 {
		t.Errorf("nil and empty variables differ: %q vs %q", k1, k2)
	}
}

func TestKeyBuilder_AnonymousIdentityMatchesNone(t *testing.T) {
	b := NewKeyBuilder(nil)
	ctx := context.Background()

	k1 := mustKey(t, b, ctx, KeyRequest{Query: "{ a }"})
	k2 := mustKey(t, b, auth.WithIdentity(ctx, auth.AnonymousIdentity()), KeyRequest{Query: "{ a }"})
	if k1 != k2 {
		t.Errorf("anonymous identity changed the key: %q vs %q", k1, k2)
	}
}

func TestKeyBuilder_PersistedDocument(t *testing.T) {
	normalized, hash, err := canonical.NormalizeAndHash("{ posts { nodes { id } } }")
	if err != nil {
		t.Fatal(err)
	}
	b := NewKeyBuilder(staticDocs{hash: normalized, "my-alias": normalized})
	ctx := context.Background()

	byID := mustKey(t, b, ctx, KeyRequest{QueryID: hash})
	byAlias := mustKey(t, b, ctx, KeyRequest{QueryID: "my-alias"})
	byText := mustKey(t, b, ctx, KeyRequest{Query: "{posts{nodes{id}}}"})
	if byID != byAlias || byID != byText {
		t.Errorf("keys differ: id=%q alias=%q text=%q", byID, byAlias, byText)
	}

	if _, _, err := b.Key(ctx, KeyRequest{QueryID: "missing"}); !errors.Is(err, errNoDocument) {
		t.Errorf("Key(unknown id) error = %v, want resolver error", err)
	}
}

func TestKeyBuilder_Absent(t *testing.T) {
	ctx := context.Background()

	key, ok, err := NewKeyBuilder(nil).Key(ctx, KeyRequest{})
	if err != nil || ok || key != "" {
		t.Errorf("Key(empty) = %q, %v, %v; want absent", key, ok, err)
	}

	key, ok, err = NewKeyBuilder(nil).Key(ctx, KeyRequest{QueryID: "abc"})
	if err != nil || ok {
		t.Errorf("Key(id without store) = %q, %v, %v; want absent", key, ok, err)
	}

	_, ok, err = NewKeyBuilder(staticDocs{"empty": ""}).Key(ctx, KeyRequest{QueryID: "empty"})
	if err != nil || ok {
		t.Errorf("Key(empty document) = %v, %v; want absent", ok, err)
	}
}

func TestKeyBuilder_SyntaxError(t *testing.T) {
	_, ok, err := NewKeyBuilder(nil).Key(context.Background(), KeyRequest{Query: "{ posts {"})
	if ok || !errors.Is(err, canonical.ErrSyntax) {
		t.Errorf("Key(bad query) = %v, %v; want ErrSyntax", ok, err)
	}
}

func TestCanonicalize(t *testing.T) {
	type point struct {
		Y int `json:"y"`
		X int `json:"x"`
	}

	tests := []struct {
		name  string
		input any
		want  string
	}{
		{"nil", nil, "null"},
		{"scalar", 3, "3"},
		{"string", "s", `"s"`},
		{"sorted map", map[string]any{"b": 1, "a": 2}, `{"a":2,"b":1}`},
		{"nested", map[string]any{"z": []any{map[string]any{"d": 1, "c": 2}}}, `{"z":[{"c":2,"d":1}]}`},
		{"struct", point{Y: 1, X: 2}, `{"x":2,"y":1}`},
		{"typed map", map[string]int{"b": 1, "a": 2}, `{"a":2,"b":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := canonicalize(tt.input)
			if err != nil {
				t.Fatalf("canonicalize() error = %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("canonicalize() = %s, want %s", got, tt.want)
			}
		})
	}
}
