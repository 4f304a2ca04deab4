package document

import (
	"context"
	"sort"
	"sync"
)

// Repository stores documents and indexes them by hash and alias.
//
// Contract:
//   - Concurrency: implementations must be safe for concurrent use.
//   - Errors: lookups return ErrNotFound. Put returns a ConflictError when
//     the document's hash or an alias is already indexed for another id.
//   - Put replaces the stored document with the same ID, including its index
//     entries.
type Repository interface {
	ByID(ctx context.Context, id string) (QueryDocument, error)
	ByHash(ctx context.Context, hash string) (QueryDocument, error)
	ByAlias(ctx context.Context, alias string) (QueryDocument, error)
	Put(ctx context.Context, doc QueryDocument) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]QueryDocument, error)
}

// MemoryRepository is an in-process Repository.
type MemoryRepository struct {
	mu      sync.RWMutex
	docs    map[string]QueryDocument
	hashes  map[string]string // hash -> id
	aliases map[string]string // alias -> id
}

// NewMemoryRepository creates an empty repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		docs:    make(map[string]QueryDocument),
		hashes:  make(map[string]string),
		aliases: make(map[string]string),
	}
}

func (r *MemoryRepository) ByID(_ context.Context, id string) (QueryDocument, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	doc, ok := r.docs[id]
	if !ok {
		return QueryDocument{}, ErrNotFound
	}
	return doc.Clone(), nil
}

func (r *MemoryRepository) ByHash(ctx context.Context, hash string) (QueryDocument, error) {
	return r.byIndex(ctx, r.hashes, hash)
}

func (r *MemoryRepository) ByAlias(ctx context.Context, alias string) (QueryDocument, error) {
	return r.byIndex(ctx, r.aliases, alias)
}

func (r *MemoryRepository) byIndex(_ context.Context, index map[string]string, key string) (QueryDocument, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := index[key]
	if !ok {
		return QueryDocument{}, ErrNotFound
	}
	return r.docs[id].Clone(), nil
}

// Put stores doc, replacing any document with the same ID.
func (r *MemoryRepository) Put(_ context.Context, doc QueryDocument) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, key := range doc.Keys() {
		if owner, ok := r.hashes[key]; ok && owner != doc.ID {
			return conflict(key, owner, "is the content hash of another query")
		}
		if owner, ok := r.aliases[key]; ok && owner != doc.ID {
			return conflict(key, owner, "is already associated with another query")
		}
	}

	r.unindexLocked(doc.ID)
	doc = doc.Clone()
	r.docs[doc.ID] = doc
	r.hashes[doc.Hash] = doc.ID
	for _, a := range doc.Aliases {
		r.aliases[a] = doc.ID
	}
	return nil
}

// Delete removes the document with id.
func (r *MemoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.docs[id]; !ok {
		return ErrNotFound
	}
	r.unindexLocked(id)
	delete(r.docs, id)
	return nil
}

// List returns all documents ordered by creation time.
func (r *MemoryRepository) List(_ context.Context) ([]QueryDocument, error) {
	r.mu.RLock()
	out := make([]QueryDocument, 0, len(r.docs))
	for _, doc := range r.docs {
		out = append(out, doc.Clone())
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *MemoryRepository) unindexLocked(id string) {
	prev, ok := r.docs[id]
	if !ok {
		return
	}
	if r.hashes[prev.Hash] == id {
		delete(r.hashes, prev.Hash)
	}
	for _, a := range prev.Aliases {
		if r.aliases[a] == id {
			delete(r.aliases, a)
		}
	}
}

var _ Repository = (*MemoryRepository)(nil)
