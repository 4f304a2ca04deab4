package document

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"
)

func mustPut(t *testing.T, r *MemoryRepository, doc QueryDocument) {
	t.Helper()
	if err := r.Put(context.Background(), doc); err != nil {
		t.Fatalf("Put(%s) error = %v", doc.ID, err)
	}
}

func TestMemoryRepository_Indexes(t *testing.T) {
	r := NewMemoryRepository()
	ctx := context.Background()

	doc := QueryDocument{ID: "1", Hash: "h1", Content: "{ a }", Aliases: []string{"x", "y"}}
	mustPut(t, r, doc)

	for _, key := range []string{"x", "y"} {
		got, err := r.ByAlias(ctx, key)
		if err != nil || got.ID != "1" {
			t.Errorf("ByAlias(%q) = %q, %v, want 1", key, got.ID, err)
		}
	}
	if got, err := r.ByHash(ctx, "h1"); err != nil || got.ID != "1" {
		t.Errorf("ByHash(h1) = %q, %v, want 1", got.ID, err)
	}

	// Replacing drops stale index entries.
	doc.Hash = "h2"
	doc.Aliases = []string{"y"}
	mustPut(t, r, doc)

	if _, err := r.ByHash(ctx, "h1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("ByHash(h1) error = %v, want %v", err, ErrNotFound)
	}
	if _, err := r.ByAlias(ctx, "x"); !errors.Is(err, ErrNotFound) {
		t.Errorf("ByAlias(x) error = %v, want %v", err, ErrNotFound)
	}
	if _, err := r.ByAlias(ctx, "y"); err != nil {
		t.Errorf("ByAlias(y) error = %v", err)
	}
}

func TestMemoryRepository_PutConflicts(t *testing.T) {
	r := NewMemoryRepository()
	ctx := context.Background()
	mustPut(t, r, QueryDocument{ID: "1", Hash: "h1", Aliases: []string{"a"}})

	tests := []struct {
		name string
		doc  QueryDocument
	}{
		{"same hash", QueryDocument{ID: "2", Hash: "h1"}},
		{"same alias", QueryDocument{ID: "2", Hash: "h2", Aliases: []string{"a"}}},
		{"alias equals hash", QueryDocument{ID: "2", Hash: "h2", Aliases: []string{"h1"}}},
		{"hash equals alias", QueryDocument{ID: "2", Hash: "a"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := r.Put(ctx, tt.doc); !errors.Is(err, ErrConflict) {
				t.Errorf("Put() error = %v, want %v", err, ErrConflict)
			}
		})
	}
}

func TestMemoryRepository_ReturnsCopies(t *testing.T) {
	r := NewMemoryRepository()
	ctx := context.Background()
	maxAge := 5
	mustPut(t, r, QueryDocument{ID: "1", Hash: "h", Aliases: []string{"a"}, MaxAge: &maxAge})

	got, err := r.ByID(ctx, "1")
	if err != nil {
		t.Fatalf("ByID() error = %v", err)
	}
	got.Aliases[0] = "mutated"
	*got.MaxAge = 99

	again, err := r.ByID(ctx, "1")
	if err != nil {
		t.Fatalf("ByID() error = %v", err)
	}
	if !slices.Equal(again.Aliases, []string{"a"}) || *again.MaxAge != 5 {
		t.Errorf("stored document changed through a returned copy: %v %d", again.Aliases, *again.MaxAge)
	}
}

func TestMemoryRepository_ListAndDelete(t *testing.T) {
	r := NewMemoryRepository()
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	mustPut(t, r, QueryDocument{ID: "b", Hash: "hb", CreatedAt: base.Add(time.Hour)})
	mustPut(t, r, QueryDocument{ID: "a", Hash: "ha", CreatedAt: base})

	docs, err := r.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(docs) != 2 || docs[0].ID != "a" || docs[1].ID != "b" {
		t.Errorf("List() = %+v, want a then b", docs)
	}

	if err := r.Delete(ctx, "a"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := r.Delete(ctx, "a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete() error = %v, want %v", err, ErrNotFound)
	}
	if _, err := r.ByHash(ctx, "ha"); !errors.Is(err, ErrNotFound) {
		t.Errorf("ByHash(ha) error = %v, want %v", err, ErrNotFound)
	}
}
