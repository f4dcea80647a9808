package cache

import (
	"context"
	"testing"
	"time"
)

func TestMemoryCacheSetGetDelete(t *testing.T) {
	cache := NewMemoryCache(time.Minute)
	ctx := context.Background()

	if err := cache.Set(ctx, " k ", "v", 0); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	value, found, err := cache.Get(ctx, "k")
	if err != nil || !found || value != "v" {
		t.Fatalf("Get() = %q, %v, %v", value, found, err)
	}
	if err := cache.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, found, _ := cache.Get(ctx, "k"); found {
		t.Fatalf("Get() expected miss after delete")
	}
}

func TestMemoryCacheExpires(t *testing.T) {
	cache := NewMemoryCache(time.Minute)
	ctx := context.Background()

	if err := cache.Set(ctx, "k", "v", 20*time.Millisecond); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	time.Sleep(40 * time.Millisecond)
	if _, found, _ := cache.Get(ctx, "k"); found {
		t.Fatalf("Get() expected expired entry to miss")
	}
}

func TestMemoryCacheRejectsEmptyKey(t *testing.T) {
	cache := NewMemoryCache(0)
	if err := cache.Set(context.Background(), "  ", "v", 0); err == nil {
		t.Fatalf("Set() expected error for empty key")
	}
}
