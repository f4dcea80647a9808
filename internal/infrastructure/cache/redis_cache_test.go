package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"sitepresence/internal/bootstrap/config"
)

// Runs only against a live server: SP_TEST_REDIS_ADDR=127.0.0.1:6379.
func TestRedisCacheSetGetDelete(t *testing.T) {
	addr := os.Getenv("SP_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("SP_TEST_REDIS_ADDR not set")
	}

	client := NewRedisClient(config.RedisConfig{Addr: addr})
	t.Cleanup(func() { _ = client.Close() })
	cache := NewRedisCache(client)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	key := "test:" + t.Name()
	if err := cache.Set(ctx, key, "v", time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	value, found, err := cache.Get(ctx, key)
	if err != nil || !found || value != "v" {
		t.Fatalf("Get() = %q, %v, %v", value, found, err)
	}
	if err := cache.Delete(ctx, key); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, found, err := cache.Get(ctx, key); err != nil || found {
		t.Fatalf("Get() after delete = found %v, err %v", found, err)
	}
}
