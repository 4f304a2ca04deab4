package collection

import (
	"errors"
	"testing"
)

func TestGlobalID(t *testing.T) {
	g := NewGlobalID(" Post ", "42")
	if got := g.String(); got != "post:42" {
		t.Errorf("String() = %q, want post:42", got)
	}
	if got := NodeKey(g); got != "node:post:42" {
		t.Errorf("NodeKey() = %q, want node:post:42", got)
	}
	if !g.Valid() {
		t.Error("Valid() = false")
	}

	for _, bad := range []GlobalID{NewGlobalID("", "1"), NewGlobalID("post", "")} {
		if bad.Valid() {
			t.Errorf("%+v.Valid() = true", bad)
		}
	}
}

func TestParseGlobalID(t *testing.T) {
	g, err := ParseGlobalID("term:7")
	if err != nil || g != (GlobalID{Type: "term", ID: "7"}) {
		t.Errorf("ParseGlobalID(term:7) = %+v, %v", g, err)
	}

	g, err = ParseGlobalID("nav_menu_item:12:extra")
	if err != nil || g.ID != "12:extra" {
		t.Errorf("ParseGlobalID(nav_menu_item:12:extra) = %+v, %v", g, err)
	}

	for _, bad := range []string{"", "post", ":1", "post:"} {
		if _, err := ParseGlobalID(bad); !errors.Is(err, ErrInvalidID) {
			t.Errorf("ParseGlobalID(%q) error = %v, want %v", bad, err, ErrInvalidID)
		}
	}
}

func TestKeyHelpers(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{ListKey("Post"), "list:post"},
		{SkippedKey("user"), "skipped:user"},
		{URLKey("abc"), "url:abc"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("key = %q, want %q", tt.got, tt.want)
		}
	}
}

func TestKind(t *testing.T) {
	tests := map[string]string{
		"node:post:1":  KindNode,
		"list:post":    KindList,
		"skipped:term": KindSkipped,
		"url:abc":      KindURL,
		"other:x":      "",
		"plain":        "",
	}
	for key, want := range tests {
		if got := Kind(key); got != want {
			t.Errorf("Kind(%q) = %q, want %q", key, got, want)
		}
	}
}
