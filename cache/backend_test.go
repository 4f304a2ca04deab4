package cache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

// runBackendContract exercises the behavior every Backend must share.
func runBackendContract(t *testing.T, newBackend func(t *testing.T) Backend) {
	t.Helper()

	t.Run("get set delete", func(t *testing.T) {
		b := newBackend(t)
		ctx := context.Background()

		if _, err := b.Get(ctx, "missing"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("Get(missing) error = %v, want ErrNotFound", err)
		}

		if err := b.Set(ctx, "k", []byte("v1"), time.Minute); err != nil {
			t.Fatalf("Set() error = %v", err)
		}
		got, err := b.Get(ctx, "k")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if !bytes.Equal(got, []byte("v1")) {
			t.Errorf("Get() = %q, want %q", got, "v1")
		}

		if err := b.Set(ctx, "k", []byte("v2"), 0); err != nil {
			t.Fatalf("Set() overwrite error = %v", err)
		}
		got, _ = b.Get(ctx, "k")
		if !bytes.Equal(got, []byte("v2")) {
			t.Errorf("Get() after overwrite = %q, want %q", got, "v2")
		}

		deleted, err := b.Delete(ctx, "k")
		if err != nil || !deleted {
			t.Fatalf("Delete() = %v, %v; want true, nil", deleted, err)
		}
		deleted, err = b.Delete(ctx, "k")
		if err != nil || deleted {
			t.Errorf("second Delete() = %v, %v; want false, nil", deleted, err)
		}
		if _, err := b.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
			t.Errorf("Get() after Delete error = %v, want ErrNotFound", err)
		}
	})

	t.Run("sets keep insertion order without duplicates", func(t *testing.T) {
		b := newBackend(t)
		ctx := context.Background()

		members, err := b.Members(ctx, "node:post:1")
		if err != nil {
			t.Fatalf("Members(missing) error = %v", err)
		}
		if members == nil || len(members) != 0 {
			t.Errorf("Members(missing) = %#v, want empty slice", members)
		}

		added, err := b.AddToSet(ctx, "node:post:1", "k1", "k2", "k1")
		if err != nil {
			t.Fatalf("AddToSet() error = %v", err)
		}
		if added != 2 {
			t.Errorf("AddToSet() = %d, want 2", added)
		}
		added, _ = b.AddToSet(ctx, "node:post:1", "k2", "k3")
		if added != 1 {
			t.Errorf("AddToSet() second = %d, want 1", added)
		}

		members, _ = b.Members(ctx, "node:post:1")
		want := []string{"k1", "k2", "k3"}
		if fmt.Sprint(members) != fmt.Sprint(want) {
			t.Errorf("Members() = %v, want %v", members, want)
		}

		deleted, _ := b.Delete(ctx, "node:post:1")
		if !deleted {
			t.Error("Delete(set) = false, want true")
		}
		members, _ = b.Members(ctx, "node:post:1")
		if len(members) != 0 {
			t.Errorf("Members() after Delete = %v, want empty", members)
		}
	})

	t.Run("purge all", func(t *testing.T) {
		b := newBackend(t)
		ctx := context.Background()

		_ = b.Set(ctx, "a", []byte("1"), 0)
		_ = b.Set(ctx, "b", []byte("2"), time.Minute)
		_, _ = b.AddToSet(ctx, "list:post", "a")

		n, err := b.PurgeAll(ctx)
		if err != nil {
			t.Fatalf("PurgeAll() error = %v", err)
		}
		if n != 3 {
			t.Errorf("PurgeAll() = %d, want 3", n)
		}
		if _, err := b.Get(ctx, "a"); !errors.Is(err, ErrNotFound) {
			t.Errorf("Get() after PurgeAll error = %v, want ErrNotFound", err)
		}
		n, _ = b.PurgeAll(ctx)
		if n != 0 {
			t.Errorf("PurgeAll() on empty = %d, want 0", n)
		}
	})

	t.Run("concurrent set adds", func(t *testing.T) {
		b := newBackend(t)
		ctx := context.Background()

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, _ = b.AddToSet(ctx, "url:k", fmt.Sprintf("m%d", i), "shared")
			}(i)
		}
		wg.Wait()

		members, err := b.Members(ctx, "url:k")
		if err != nil {
			t.Fatalf("Members() error = %v", err)
		}
		if len(members) != 9 {
			t.Errorf("len(Members()) = %d, want 9 (%v)", len(members), members)
		}
	})
}
