package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig configures a RedisBackend.
type RedisConfig struct {
	Addr     string // host:port
	Password string
	DB       int

	// KeyPrefix namespaces every key written by the backend.
	// Default: "gql_cache_"
	KeyPrefix string

	// ScanCount is the COUNT hint for SCAN during PurgeAll.
	// Default: 100
	ScanCount int64
}

// DefaultKeyPrefix namespaces backend keys when no prefix is configured.
const DefaultKeyPrefix = "gql_cache_"

// RedisBackend stores values as Redis strings with native TTLs and sets as
// sorted sets scored by insertion time, so ZADD NX gives an atomic
// append-unique and ZRANGE returns first-insertion order.
type RedisBackend struct {
	client    redis.UniversalClient
	prefix    string
	scanCount int64
}

// NewRedisClient connects to Redis and verifies the connection.
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("%w: redis address is required", ErrUnavailable)
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: redis ping: %v", ErrUnavailable, err)
	}
	return client, nil
}

// NewRedisBackend wraps an existing client.
func NewRedisBackend(client redis.UniversalClient, cfg RedisConfig) *RedisBackend {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = DefaultKeyPrefix
	}
	if cfg.ScanCount <= 0 {
		cfg.ScanCount = 100
	}
	return &RedisBackend{
		client:    client,
		prefix:    cfg.KeyPrefix,
		scanCount: cfg.ScanCount,
	}
}

func (b *RedisBackend) fullKey(key string) string {
	return b.prefix + key
}

// Get returns the value stored at key.
func (b *RedisBackend) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := b.client.Get(ctx, b.fullKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: redis get: %w", ErrUnavailable, err)
	}
	return data, nil
}

// Set stores value at key. A non-positive ttl stores without expiry.
func (b *RedisBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := b.client.Set(ctx, b.fullKey(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("%w: redis set: %w", ErrUnavailable, err)
	}
	return nil
}

// Delete removes key.
func (b *RedisBackend) Delete(ctx context.Context, key string) (bool, error) {
	n, err := b.client.Del(ctx, b.fullKey(key)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: redis del: %w", ErrUnavailable, err)
	}
	return n > 0, nil
}

// PurgeAll deletes every key under the backend prefix using SCAN and DEL.
func (b *RedisBackend) PurgeAll(ctx context.Context) (int, error) {
	pattern := b.prefix + "*"

	var cursor uint64
	var total int64
	for {
		keys, next, err := b.client.Scan(ctx, cursor, pattern, b.scanCount).Result()
		if err != nil {
			return int(total), fmt.Errorf("%w: redis scan: %w", ErrUnavailable, err)
		}
		if len(keys) > 0 {
			n, err := b.client.Del(ctx, keys...).Result()
			if err != nil {
				return int(total), fmt.Errorf("%w: redis del: %w", ErrUnavailable, err)
			}
			total += n
		}
		cursor = next
		if cursor == 0 {
			return int(total), nil
		}
	}
}

// AddToSet adds members to the sorted set at key with ZADD NX.
func (b *RedisBackend) AddToSet(ctx context.Context, key string, members ...string) (int, error) {
	if len(members) == 0 {
		return 0, nil
	}

	base := float64(time.Now().UnixMicro())
	seen := make(map[string]struct{}, len(members))
	zs := make([]redis.Z, 0, len(members))
	for _, m := range members {
		if _, dup := seen[m]; dup {
			continue
		}
		seen[m] = struct{}{}
		zs = append(zs, redis.Z{Score: base + float64(len(zs)), Member: m})
	}

	n, err := b.client.ZAddNX(ctx, b.fullKey(key), zs...).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: redis zadd: %w", ErrUnavailable, err)
	}
	return int(n), nil
}

// Members returns the set at key ordered by first insertion.
func (b *RedisBackend) Members(ctx context.Context, key string) ([]string, error) {
	members, err := b.client.ZRange(ctx, b.fullKey(key), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: redis zrange: %w", ErrUnavailable, err)
	}
	if members == nil {
		members = []string{}
	}
	return members, nil
}

// Ping checks the connection.
func (b *RedisBackend) Ping(ctx context.Context) error {
	if err := b.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: redis ping: %w", ErrUnavailable, err)
	}
	return nil
}

var (
	_ Backend = (*RedisBackend)(nil)
	_ Pinger  = (*RedisBackend)(nil)
)
