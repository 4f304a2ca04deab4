package cache

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/jonwraymond/querycache/resilience"
)

// JetStreamConfig configures a JetStreamBackend.
type JetStreamConfig struct {
	// KeyPrefix is the first subject token of every key. It must only use
	// characters valid in a KV key and must not contain '.'.
	// Default: "gql_cache"
	KeyPrefix string

	// CASAttempts bounds compare-and-swap retries for AddToSet.
	// Default: 10
	CASAttempts int
}

// BucketConfig describes the KV bucket created by OpenBucket.
type BucketConfig struct {
	Bucket string
	// TTL is the bucket-wide maximum age. Per-entry TTLs shorter than it are
	// enforced on read.
	TTL time.Duration
}

// OpenBucket creates or updates the KV bucket used by a JetStreamBackend.
func OpenBucket(ctx context.Context, js jetstream.JetStream, cfg BucketConfig) (jetstream.KeyValue, error) {
	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      cfg.Bucket,
		Description: "GraphQL result cache and invalidation index",
		History:     1,
		TTL:         cfg.TTL,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: jetstream bucket %s: %w", ErrUnavailable, cfg.Bucket, err)
	}
	return kv, nil
}

// JetStreamBackend stores entries in a NATS JetStream KV bucket. Keys are
// base64url-encoded under the prefix token, values carry their own expiry,
// and sets are JSON arrays updated by revision-checked compare-and-swap.
type JetStreamBackend struct {
	kv     jetstream.KeyValue
	prefix string
	cas    *resilience.Retry
	now    func() time.Time
}

// kvRecord is the stored form of both values and sets.
type kvRecord struct {
	Value     []byte   `json:"v,omitempty"`
	Members   []string `json:"m,omitempty"`
	ExpiresAt int64    `json:"exp,omitempty"` // unix nanoseconds, zero for no expiry
}

// NewJetStreamBackend wraps an open KV bucket.
func NewJetStreamBackend(kv jetstream.KeyValue, cfg JetStreamConfig) *JetStreamBackend {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "gql_cache"
	}
	if cfg.CASAttempts <= 0 {
		cfg.CASAttempts = 10
	}
	return &JetStreamBackend{
		kv:     kv,
		prefix: cfg.KeyPrefix,
		cas: resilience.NewRetry(resilience.RetryConfig{
			MaxAttempts:  cfg.CASAttempts,
			InitialDelay: 5 * time.Millisecond,
			MaxDelay:     200 * time.Millisecond,
			Jitter:       true,
			RetryIf: func(err error) bool {
				return errors.Is(err, jetstream.ErrKeyExists)
			},
		}),
		now: time.Now,
	}
}

func (b *JetStreamBackend) kvKey(key string) string {
	return b.prefix + "." + base64.RawURLEncoding.EncodeToString([]byte(key))
}

func (b *JetStreamBackend) load(ctx context.Context, key string) (kvRecord, uint64, error) {
	entry, err := b.kv.Get(ctx, b.kvKey(key))
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return kvRecord{}, 0, ErrNotFound
	}
	if err != nil {
		return kvRecord{}, 0, fmt.Errorf("%w: jetstream get: %w", ErrUnavailable, err)
	}

	var rec kvRecord
	if err := json.Unmarshal(entry.Value(), &rec); err != nil {
		return kvRecord{}, 0, fmt.Errorf("cache: decode %s: %w", key, err)
	}
	if rec.ExpiresAt != 0 && b.now().UnixNano() >= rec.ExpiresAt {
		_ = b.kv.Delete(ctx, b.kvKey(key), jetstream.LastRevision(entry.Revision()))
		return kvRecord{}, 0, ErrNotFound
	}
	return rec, entry.Revision(), nil
}

// Get returns the value stored at key.
func (b *JetStreamBackend) Get(ctx context.Context, key string) ([]byte, error) {
	rec, _, err := b.load(ctx, key)
	if err != nil {
		return nil, err
	}
	return rec.Value, nil
}

// Set stores value at key.
func (b *JetStreamBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	rec := kvRecord{Value: value}
	if ttl > 0 {
		rec.ExpiresAt = b.now().Add(ttl).UnixNano()
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("cache: encode %s: %w", key, err)
	}
	if _, err := b.kv.Put(ctx, b.kvKey(key), data); err != nil {
		return fmt.Errorf("%w: jetstream put: %w", ErrUnavailable, err)
	}
	return nil
}

// Delete removes key.
func (b *JetStreamBackend) Delete(ctx context.Context, key string) (bool, error) {
	if _, _, err := b.load(ctx, key); err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if err := b.kv.Delete(ctx, b.kvKey(key)); err != nil {
		return false, fmt.Errorf("%w: jetstream delete: %w", ErrUnavailable, err)
	}
	return true, nil
}

// PurgeAll purges every key under the prefix token.
func (b *JetStreamBackend) PurgeAll(ctx context.Context) (int, error) {
	lister, err := b.kv.ListKeysFiltered(ctx, b.prefix+".*")
	if err != nil {
		if errors.Is(err, jetstream.ErrNoKeysFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: jetstream list: %w", ErrUnavailable, err)
	}
	defer func() { _ = lister.Stop() }()

	var keys []string
	for k := range lister.Keys() {
		keys = append(keys, k)
	}

	purged := 0
	for _, k := range keys {
		if err := b.kv.Purge(ctx, k); err != nil {
			return purged, fmt.Errorf("%w: jetstream purge: %w", ErrUnavailable, err)
		}
		purged++
	}
	return purged, nil
}

// AddToSet appends new members with a create-or-update loop that retries on
// revision conflicts.
func (b *JetStreamBackend) AddToSet(ctx context.Context, key string, members ...string) (int, error) {
	if len(members) == 0 {
		return 0, nil
	}

	var added int
	err := b.cas.Execute(ctx, func(ctx context.Context) error {
		rec, rev, err := b.load(ctx, key)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}

		seen := make(map[string]struct{}, len(rec.Members)+len(members))
		for _, m := range rec.Members {
			seen[m] = struct{}{}
		}
		added = 0
		for _, m := range members {
			if _, dup := seen[m]; dup {
				continue
			}
			seen[m] = struct{}{}
			rec.Members = append(rec.Members, m)
			added++
		}
		if added == 0 {
			return nil
		}

		data, err := json.Marshal(kvRecord{Members: rec.Members})
		if err != nil {
			return fmt.Errorf("cache: encode set %s: %w", key, err)
		}
		if rev == 0 {
			_, err = b.kv.Create(ctx, b.kvKey(key), data)
		} else {
			_, err = b.kv.Update(ctx, b.kvKey(key), data, rev)
		}
		return err
	})
	if err != nil {
		if errors.Is(err, ErrUnavailable) {
			return 0, err
		}
		return 0, fmt.Errorf("%w: jetstream set update: %w", ErrUnavailable, err)
	}
	return added, nil
}

// Members returns the set at key.
func (b *JetStreamBackend) Members(ctx context.Context, key string) ([]string, error) {
	rec, _, err := b.load(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	if rec.Members == nil {
		return []string{}, nil
	}
	return rec.Members, nil
}

// Ping reads the bucket status.
func (b *JetStreamBackend) Ping(ctx context.Context) error {
	if _, err := b.kv.Status(ctx); err != nil {
		return fmt.Errorf("%w: jetstream status: %w", ErrUnavailable, err)
	}
	return nil
}

var (
	_ Backend = (*JetStreamBackend)(nil)
	_ Pinger  = (*JetStreamBackend)(nil)
)
