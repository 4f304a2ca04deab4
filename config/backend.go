package config

import (
	"context"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/jonwraymond/querycache/cache"
	"github.com/jonwraymond/querycache/health"
)

// Backend is an opened cache backend and the connection behind it.
type Backend struct {
	*cache.ResilientBackend
	name  string
	close func() error
}

// Checker returns a health checker for the backend, named after it.
func (b *Backend) Checker() health.Checker {
	return cache.NewBackendChecker(b.name, b.ResilientBackend)
}

// Close releases the backend's connection.
func (b *Backend) Close() error {
	if b.close == nil {
		return nil
	}
	return b.close()
}

// OpenBackend connects the backend named by cache.backend and wraps it in a
// circuit breaker configured from storage.
func OpenBackend(ctx context.Context, s *Settings) (*Backend, error) {
	var (
		inner   cache.Backend
		closeFn func() error
	)

	switch s.Cache.Backend {
	case BackendMemory:
		inner = cache.NewMemoryBackend()

	case BackendRedis:
		cfg := s.RedisConfig()
		client, err := cache.NewRedisClient(ctx, cfg)
		if err != nil {
			return nil, err
		}
		inner, closeFn = cache.NewRedisBackend(client, cfg), client.Close

	case BackendJetStream:
		natsOpts := []nats.Option{nats.Name("querycache")}
		if s.JetStream.Token != "" {
			natsOpts = append(natsOpts, nats.Token(s.JetStream.Token))
		}
		nc, err := nats.Connect(s.JetStream.URL, natsOpts...)
		if err != nil {
			return nil, fmt.Errorf("%w: nats connect: %v", cache.ErrUnavailable, err)
		}
		js, err := jetstream.New(nc)
		if err != nil {
			nc.Close()
			return nil, fmt.Errorf("%w: jetstream: %v", cache.ErrUnavailable, err)
		}
		kv, err := cache.OpenBucket(ctx, js, s.BucketConfig())
		if err != nil {
			nc.Close()
			return nil, err
		}
		inner = cache.NewJetStreamBackend(kv, s.JetStreamConfig())
		closeFn = func() error { return nc.Drain() }

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, s.Cache.Backend)
	}

	rb, err := cache.NewResilientBackend(inner, s.StorageConfig())
	if err != nil {
		if closeFn != nil {
			_ = closeFn()
		}
		return nil, err
	}
	return &Backend{ResilientBackend: rb, name: s.Cache.Backend, close: closeFn}, nil
}
