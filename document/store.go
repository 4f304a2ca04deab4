package document

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jonwraymond/querycache/canonical"
	"github.com/jonwraymond/querycache/observe"
)

// Store is the document service. Writes are serialized so that the
// uniqueness checks and the write that follows them see the same state.
type Store struct {
	repo   Repository
	logger observe.Logger
	now    func() time.Time
	newID  func() string

	mu sync.Mutex
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithLogger sets the store logger.
func WithLogger(l observe.Logger) StoreOption {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock sets the time source for CreatedAt and UpdatedAt.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore creates a Store over repo. A nil repo gets a MemoryRepository.
func NewStore(repo Repository, opts ...StoreOption) *Store {
	if repo == nil {
		repo = NewMemoryRepository()
	}
	s := &Store{
		repo:   repo,
		logger: observe.NopLogger(),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Lookup resolves idOrAlias to a document. Content hashes are checked before
// aliases.
func (s *Store) Lookup(ctx context.Context, idOrAlias string) (QueryDocument, error) {
	idOrAlias = strings.TrimSpace(idOrAlias)
	if idOrAlias == "" {
		return QueryDocument{}, ErrNotFound
	}
	doc, err := s.repo.ByHash(ctx, idOrAlias)
	if errors.Is(err, ErrNotFound) {
		doc, err = s.repo.ByAlias(ctx, idOrAlias)
	}
	return doc, err
}

// Get returns the normalized content stored under idOrAlias.
func (s *Store) Get(ctx context.Context, idOrAlias string) (string, error) {
	doc, err := s.Lookup(ctx, idOrAlias)
	if err != nil {
		return "", err
	}
	return doc.Content, nil
}

// ByID returns the document with the given stable id.
func (s *Store) ByID(ctx context.Context, id string) (QueryDocument, error) {
	return s.repo.ByID(ctx, id)
}

// Save normalizes query and stores it, registering idOrAlias as an alias when
// it differs from the content hash. It returns the content hash.
//
// Save fails with a ConflictError when idOrAlias already names a document
// with different content, or when the content hash is registered as an
// alias of another document.
func (s *Store) Save(ctx context.Context, idOrAlias, query string) (string, error) {
	normalized, hash, err := canonical.NormalizeAndHash(query)
	if err != nil {
		return "", err
	}
	idOrAlias = strings.TrimSpace(idOrAlias)

	s.mu.Lock()
	defer s.mu.Unlock()

	if idOrAlias != "" {
		existing, err := s.Lookup(ctx, idOrAlias)
		switch {
		case err == nil && existing.Hash != hash:
			return "", conflict(idOrAlias, existing.ID, "is already associated with another query")
		case err != nil && !errors.Is(err, ErrNotFound):
			return "", err
		}
	}

	if owner, err := s.repo.ByAlias(ctx, hash); err == nil {
		return "", conflict(hash, owner.ID, "is already associated with another query")
	}

	doc, err := s.repo.ByHash(ctx, hash)
	switch {
	case err == nil:
		if doc.Content != normalized {
			return "", conflict(hash, doc.ID, "has different stored content")
		}
		if idOrAlias == "" || idOrAlias == hash || doc.HasAlias(idOrAlias) {
			return hash, nil
		}
		doc.Aliases = append(doc.Aliases, idOrAlias)
		doc.UpdatedAt = s.now()
		if err := s.repo.Put(ctx, doc); err != nil {
			return "", fmt.Errorf("document: save alias %q: %w", idOrAlias, err)
		}
		s.logger.Debug(ctx, "document alias added", observe.F("document_id", doc.ID), observe.F("alias", idOrAlias))
		return hash, nil
	case !errors.Is(err, ErrNotFound):
		return "", err
	}

	now := s.now()
	doc = QueryDocument{
		ID:        s.newID(),
		Hash:      hash,
		Content:   normalized,
		Aliases:   normalizeAliases([]string{idOrAlias}, hash),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Put(ctx, doc); err != nil {
		return "", fmt.Errorf("document: save %s: %w", hash, err)
	}
	s.logger.Debug(ctx, "document saved", observe.F("document_id", doc.ID), observe.F("hash", hash))
	return hash, nil
}

// CreateInput describes a document created through administration.
type CreateInput struct {
	Query   string
	Title   string
	Aliases []string
	Grant   Grant
	MaxAge  *int
	SkipGC  bool
}

// Create stores a new document. It fails with a ConflictError when the
// content or any alias already belongs to another document.
func (s *Store) Create(ctx context.Context, in CreateInput) (QueryDocument, error) {
	if strings.TrimSpace(in.Query) == "" {
		return QueryDocument{}, ErrEmptyQuery
	}
	normalized, hash, err := canonical.NormalizeAndHash(in.Query)
	if err != nil {
		return QueryDocument{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	doc := QueryDocument{
		ID:        s.newID(),
		Hash:      hash,
		Content:   normalized,
		Title:     in.Title,
		Aliases:   normalizeAliases(in.Aliases, hash),
		Grant:     in.Grant,
		MaxAge:    nonNegative(in.MaxAge),
		SkipGC:    in.SkipGC,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.checkKeys(ctx, doc); err != nil {
		return QueryDocument{}, err
	}
	if err := s.repo.Put(ctx, doc); err != nil {
		return QueryDocument{}, fmt.Errorf("document: create: %w", err)
	}
	s.logger.Info(ctx, "document created", observe.F("document_id", doc.ID), observe.F("hash", hash))
	return doc.Clone(), nil
}

// Changes lists the fields an Update modifies. Nil fields are unchanged.
type Changes struct {
	Query   *string
	Title   *string
	Aliases *[]string
	Grant   *Grant
	MaxAge  *int
	// ClearMaxAge removes the max-age override. It takes precedence over MaxAge.
	ClearMaxAge bool
	SkipGC      *bool
}

// Update applies changes to the document with id. When the content changes
// the previous hash stops resolving unless it is listed in Aliases.
//
// On any failure the stored document is left as it was before the call.
func (s *Store) Update(ctx context.Context, id string, changes Changes) (QueryDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prior, err := s.repo.ByID(ctx, id)
	if err != nil {
		return QueryDocument{}, err
	}

	next := prior.Clone()
	if changes.Query != nil {
		normalized, hash, err := canonical.NormalizeAndHash(*changes.Query)
		if err != nil {
			return prior, err
		}
		next.Content, next.Hash = normalized, hash
	}
	if changes.Title != nil {
		next.Title = *changes.Title
	}
	if changes.Aliases != nil {
		next.Aliases = *changes.Aliases
	}
	next.Aliases = normalizeAliases(next.Aliases, next.Hash)
	if changes.Grant != nil {
		next.Grant = *changes.Grant
	}
	switch {
	case changes.ClearMaxAge:
		next.MaxAge = nil
	case changes.MaxAge != nil:
		next.MaxAge = nonNegative(changes.MaxAge)
	}
	if changes.SkipGC != nil {
		next.SkipGC = *changes.SkipGC
	}
	next.UpdatedAt = s.now()

	if err := s.checkKeys(ctx, next); err != nil {
		return prior, err
	}
	if err := s.repo.Put(ctx, next); err != nil {
		if rerr := s.repo.Put(ctx, prior); rerr != nil {
			s.logger.Error(ctx, "document revert failed", observe.F("document_id", id), observe.F("error", rerr))
		}
		return prior, fmt.Errorf("document: update %s: %w", id, err)
	}

	fields := []observe.Field{observe.F("document_id", id)}
	if next.Hash != prior.Hash {
		fields = append(fields, observe.F("previous_hash", prior.Hash), observe.F("hash", next.Hash))
	}
	s.logger.Info(ctx, "document updated", fields...)
	return next.Clone(), nil
}

// Delete removes the document with id.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info(ctx, "document deleted", observe.F("document_id", id))
	return nil
}

// List returns every document ordered by creation time.
func (s *Store) List(ctx context.Context) ([]QueryDocument, error) {
	return s.repo.List(ctx)
}

// checkKeys verifies that none of doc's hash or aliases resolve to another
// document.
func (s *Store) checkKeys(ctx context.Context, doc QueryDocument) error {
	for _, key := range doc.Keys() {
		owner, err := s.Lookup(ctx, key)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		if owner.ID == doc.ID {
			continue
		}
		if key == doc.Hash {
			return conflict(key, owner.ID, "is already associated with another query")
		}
		return conflict(key, owner.ID, "is already in use by another document")
	}
	return nil
}

func nonNegative(v *int) *int {
	if v == nil || *v < 0 {
		return nil
	}
	out := *v
	return &out
}
