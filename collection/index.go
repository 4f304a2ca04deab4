package collection

import (
	"context"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jonwraymond/querycache/cache"
	"github.com/jonwraymond/querycache/observe"
)

// PurgeEvent is delivered to OnPurge listeners before cache entries are
// removed.
type PurgeEvent struct {
	ID string
	// Key is the purged index key.
	Key string
	// Members are the cache keys held by Key.
	Members []string
	// URLs are the GET URLs recorded for Members.
	URLs []string
	At   time.Time
}

// PurgeListener receives purge events.
type PurgeListener func(ctx context.Context, ev PurgeEvent)

// Completion describes a finished request to be indexed.
type Completion struct {
	CacheKey string
	// Method and URL record the request URL under url:{CacheKey} for GETs.
	Method string
	URL    string
	// Keys are the index keys the request depends on, as returned by
	// Recorder.HeaderKeys or Recorder.Keys.
	Keys []string
}

// Index is the reverse index from entities, lists and URLs to cache keys.
type Index struct {
	backend cache.Backend
	results *cache.ResultCache
	logger  observe.Logger
	metrics observe.Metrics
	now     func() time.Time

	mu        sync.RWMutex
	listeners []PurgeListener
}

// IndexOption configures an Index.
type IndexOption func(*Index)

// WithLogger sets the index logger.
func WithLogger(l observe.Logger) IndexOption {
	return func(ix *Index) {
		if l != nil {
			ix.logger = l
		}
	}
}

// WithMetrics sets the purge metrics recorder.
func WithMetrics(m observe.Metrics) IndexOption {
	return func(ix *Index) {
		if m != nil {
			ix.metrics = m
		}
	}
}

// NewIndex creates an Index storing sets in backend and evicting from results.
func NewIndex(backend cache.Backend, results *cache.ResultCache, opts ...IndexOption) (*Index, error) {
	if backend == nil {
		return nil, ErrNilBackend
	}
	if results == nil {
		return nil, ErrNilResultCache
	}
	ix := &Index{
		backend: backend,
		results: results,
		logger:  observe.NopLogger(),
		metrics: observe.NopMetrics(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix, nil
}

// OnPurge registers fn. Listeners run synchronously in registration order.
func (ix *Index) OnPurge(fn PurgeListener) {
	if fn == nil {
		return
	}
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.listeners = append(ix.listeners, fn)
}

// OnRequestComplete appends c.CacheKey to every index set in c.Keys and, for
// GET requests with a URL, appends the URL to url:{CacheKey}.
func (ix *Index) OnRequestComplete(ctx context.Context, c Completion) error {
	if cache.ValidateKey(c.CacheKey) != nil {
		return fmt.Errorf("%w: cache key %q", ErrInvalidKey, c.CacheKey)
	}

	var firstErr error
	recorded := 0
	for _, key := range dedupe(c.Keys) {
		if _, err := ix.backend.AddToSet(ctx, key, c.CacheKey); err != nil {
			ix.logger.Warn(ctx, "collection record failed", observe.F("index_key", key), observe.F("error", err))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		recorded++
	}

	if c.URL != "" && (c.Method == "" || c.Method == http.MethodGet) {
		if _, err := ix.backend.AddToSet(ctx, URLKey(c.CacheKey), c.URL); err != nil {
			ix.logger.Warn(ctx, "collection url record failed", observe.F("cache_key", c.CacheKey), observe.F("error", err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	ix.logger.Debug(ctx, "collection recorded", observe.F("cache_key", c.CacheKey), observe.F("index_keys", recorded))
	return firstErr
}

// Retrieve returns the members of an index set, or an empty slice.
func (ix *Index) Retrieve(ctx context.Context, indexKey string) ([]string, error) {
	if indexKey == "" {
		return nil, ErrInvalidKey
	}
	return ix.backend.Members(ctx, indexKey)
}

// Purge notifies listeners about indexKey and evicts every cache key it
// holds. It returns how many cache entries were actually removed, so a
// repeated purge returns 0. The index set itself is kept. URL sets hold
// URLs rather than cache keys and only notify.
func (ix *Index) Purge(ctx context.Context, indexKey string) (int, error) {
	members, err := ix.Retrieve(ctx, indexKey)
	if err != nil {
		ix.logger.Warn(ctx, "collection retrieve failed", observe.F("index_key", indexKey), observe.F("error", err))
		return 0, err
	}
	if len(members) == 0 {
		return 0, nil
	}

	ev := PurgeEvent{
		ID:      uuid.NewString(),
		Key:     indexKey,
		Members: members,
		At:      ix.now(),
	}
	if Kind(indexKey) == KindURL {
		ev.Members, ev.URLs = nil, members
		ix.emit(ctx, ev)
		return 0, nil
	}
	ev.URLs = ix.urlsFor(ctx, members)
	ix.emit(ctx, ev)

	deleted := 0
	for _, key := range members {
		if ix.results.Delete(ctx, key) {
			deleted++
		}
	}

	ix.metrics.RecordPurge(ctx, Kind(indexKey), deleted)
	ix.logger.Info(ctx, "collection purged",
		observe.F("index_key", indexKey),
		observe.F("members", len(members)),
		observe.F("deleted", deleted),
	)
	return deleted, nil
}

// PurgeNodes purges node:{type}:{id} and the type's skipped key.
func (ix *Index) PurgeNodes(ctx context.Context, typePrefix, rawID string) (int, error) {
	g := NewGlobalID(typePrefix, rawID)
	if !g.Valid() {
		return 0, fmt.Errorf("%w: %q %q", ErrInvalidID, typePrefix, rawID)
	}

	total := 0
	for _, key := range []string{NodeKey(g), SkippedKey(g.Type)} {
		n, err := ix.Purge(ctx, key)
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

// PurgeList purges list:{typeName}.
func (ix *Index) PurgeList(ctx context.Context, typeName string) (int, error) {
	return ix.Purge(ctx, ListKey(typeName))
}

// Forget deletes the index set itself.
func (ix *Index) Forget(ctx context.Context, indexKey string) (bool, error) {
	if indexKey == "" {
		return false, ErrInvalidKey
	}
	return ix.backend.Delete(ctx, indexKey)
}

func (ix *Index) urlsFor(ctx context.Context, cacheKeys []string) []string {
	var urls []string
	for _, key := range cacheKeys {
		members, err := ix.backend.Members(ctx, URLKey(key))
		if err != nil {
			continue
		}
		for _, u := range members {
			if !slices.Contains(urls, u) {
				urls = append(urls, u)
			}
		}
	}
	return urls
}

func (ix *Index) emit(ctx context.Context, ev PurgeEvent) {
	ix.mu.RLock()
	listeners := slices.Clone(ix.listeners)
	ix.mu.RUnlock()

	for _, fn := range listeners {
		fn(ctx, ev)
	}
}

func dedupe(keys []string) []string {
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if k != "" && !slices.Contains(out, k) {
			out = append(out, k)
		}
	}
	return out
}
