package cache

import (
	"context"
	"errors"
	"time"

	"github.com/jonwraymond/querycache/resilience"
)

// ResilientBackend runs every call of an inner Backend through a resilience
// executor. ErrNotFound is part of the Backend contract and never counts as
// a failure.
type ResilientBackend struct {
	inner Backend
	exec  *resilience.Executor
}

// NewResilientBackend wraps inner. Zero fields of cfg take the storage
// executor defaults; IsExpected is always extended with ErrNotFound.
func NewResilientBackend(inner Backend, cfg resilience.StorageConfig) (*ResilientBackend, error) {
	if inner == nil {
		return nil, ErrNilBackend
	}
	expected := cfg.IsExpected
	cfg.IsExpected = func(err error) bool {
		if errors.Is(err, ErrNotFound) {
			return true
		}
		return expected != nil && expected(err)
	}
	return &ResilientBackend{inner: inner, exec: resilience.NewStorageExecutor(cfg)}, nil
}

// State reports the circuit breaker state.
func (b *ResilientBackend) State() resilience.State {
	return b.exec.CircuitBreaker().State()
}

func (b *ResilientBackend) Get(ctx context.Context, key string) ([]byte, error) {
	return resilience.Call(ctx, b.exec, func(ctx context.Context) ([]byte, error) {
		return b.inner.Get(ctx, key)
	})
}

func (b *ResilientBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return b.exec.Execute(ctx, func(ctx context.Context) error {
		return b.inner.Set(ctx, key, value, ttl)
	})
}

func (b *ResilientBackend) Delete(ctx context.Context, key string) (bool, error) {
	return resilience.Call(ctx, b.exec, func(ctx context.Context) (bool, error) {
		return b.inner.Delete(ctx, key)
	})
}

func (b *ResilientBackend) PurgeAll(ctx context.Context) (int, error) {
	return resilience.Call(ctx, b.exec, b.inner.PurgeAll)
}

func (b *ResilientBackend) AddToSet(ctx context.Context, key string, members ...string) (int, error) {
	return resilience.Call(ctx, b.exec, func(ctx context.Context) (int, error) {
		return b.inner.AddToSet(ctx, key, members...)
	})
}

func (b *ResilientBackend) Members(ctx context.Context, key string) ([]string, error) {
	return resilience.Call(ctx, b.exec, func(ctx context.Context) ([]string, error) {
		return b.inner.Members(ctx, key)
	})
}

// Ping delegates to the inner backend when it is a Pinger. It bypasses the
// breaker so health checks can observe recovery.
func (b *ResilientBackend) Ping(ctx context.Context) error {
	if p, ok := b.inner.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

var (
	_ Backend = (*ResilientBackend)(nil)
	_ Pinger  = (*ResilientBackend)(nil)
)
