package cache

import (
	"context"
	"strings"
	"sync"
	"time"
)

// MemoryBackend is an in-process Backend. Expired entries are removed lazily
// on read.
type MemoryBackend struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	sets    map[string]*memberSet
	now     func() time.Time
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time // zero means no expiry
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

type memberSet struct {
	order []string
	seen  map[string]struct{}
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		entries: make(map[string]memoryEntry),
		sets:    make(map[string]*memberSet),
		now:     time.Now,
	}
}

// Get returns the value stored at key.
func (b *MemoryBackend) Get(_ context.Context, key string) ([]byte, error) {
	b.mu.RLock()
	entry, ok := b.entries[key]
	b.mu.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}
	if entry.expired(b.now()) {
		b.mu.Lock()
		if current, ok := b.entries[key]; ok && current.expired(b.now()) {
			delete(b.entries, key)
		}
		b.mu.Unlock()
		return nil, ErrNotFound
	}

	out := make([]byte, len(entry.value))
	copy(out, entry.value)
	return out, nil
}

// Set stores value at key.
func (b *MemoryBackend) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	entry := memoryEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		entry.expiresAt = b.now().Add(ttl)
	}

	b.mu.Lock()
	b.entries[key] = entry
	b.mu.Unlock()
	return nil
}

// Delete removes the value or set stored at key.
func (b *MemoryBackend) Delete(_ context.Context, key string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	entry, hadEntry := b.entries[key]
	_, hadSet := b.sets[key]
	delete(b.entries, key)
	delete(b.sets, key)

	return (hadEntry && !entry.expired(b.now())) || hadSet, nil
}

// PurgeAll removes all values and sets.
func (b *MemoryBackend) PurgeAll(_ context.Context) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	n := len(b.entries) + len(b.sets)
	b.entries = make(map[string]memoryEntry)
	b.sets = make(map[string]*memberSet)
	return n, nil
}

// AddToSet appends members not already present in the set at key.
func (b *MemoryBackend) AddToSet(_ context.Context, key string, members ...string) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	set, ok := b.sets[key]
	if !ok {
		set = &memberSet{seen: make(map[string]struct{})}
		b.sets[key] = set
	}

	added := 0
	for _, m := range members {
		if _, dup := set.seen[m]; dup {
			continue
		}
		set.seen[m] = struct{}{}
		set.order = append(set.order, m)
		added++
	}
	return added, nil
}

// Members returns the set at key in insertion order.
func (b *MemoryBackend) Members(_ context.Context, key string) ([]string, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	set, ok := b.sets[key]
	if !ok {
		return []string{}, nil
	}
	return append([]string(nil), set.order...), nil
}

// Len returns the number of live values and sets whose key has prefix.
func (b *MemoryBackend) Len(prefix string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	now := b.now()
	n := 0
	for k, e := range b.entries {
		if strings.HasPrefix(k, prefix) && !e.expired(now) {
			n++
		}
	}
	for k := range b.sets {
		if strings.HasPrefix(k, prefix) {
			n++
		}
	}
	return n
}

// Ping always succeeds.
func (b *MemoryBackend) Ping(context.Context) error { return nil }

var (
	_ Backend = (*MemoryBackend)(nil)
	_ Pinger  = (*MemoryBackend)(nil)
)
