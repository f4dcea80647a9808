package geocode

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cacheinfra "sitepresence/internal/infrastructure/cache"
)

type stubGeocoder struct {
	calls   atomic.Int32
	address string
	err     error
	release chan struct{}
}

func (s *stubGeocoder) ReverseGeocode(ctx context.Context, _ float64, _ float64) (string, error) {
	s.calls.Add(1)
	if s.release != nil {
		<-s.release
	}
	return s.address, s.err
}

func TestResolveSuccessIsCached(t *testing.T) {
	geocoder := &stubGeocoder{address: "Jl. Sudirman"}
	cache := cacheinfra.NewMemoryCache(time.Minute)
	resolver := NewResolver(geocoder, cache, Options{CacheTTL: time.Hour})

	first := resolver.Resolve(context.Background(), -6.2000001, 106.8)
	require.False(t, first.Fallback)
	assert.Equal(t, "Jl. Sudirman", first.Address)
	assert.False(t, first.ResolvedAt.IsZero())

	second := resolver.Resolve(context.Background(), -6.2000002, 106.8)
	assert.Equal(t, "Jl. Sudirman", second.Address)
	assert.Equal(t, int32(1), geocoder.calls.Load(), "nearby coordinates should hit the cache")
}

func TestResolveFallsBackOnFailure(t *testing.T) {
	resolver := NewResolver(&stubGeocoder{err: errors.New("offline")}, nil, Options{})

	got := resolver.Resolve(context.Background(), -6.2, 106.8)
	assert.True(t, got.Fallback)
	assert.Equal(t, "-6.200000, 106.800000", got.Address)
}

func TestResolveFallbackIsDeterministic(t *testing.T) {
	assert.Equal(t, FallbackAddress(1.5, -2.25), FallbackAddress(1.5, -2.25))
	assert.Equal(t, "1.500000, -2.250000", FallbackAddress(1.5, -2.25))
}

func TestResolveWithoutGeocoder(t *testing.T) {
	resolver := NewResolver(nil, nil, Options{})
	got := resolver.Resolve(context.Background(), 10, 20)
	assert.True(t, got.Fallback)
	assert.Equal(t, "10.000000, 20.000000", got.Address)
}

func TestResolveRejectsInvalidCoordinates(t *testing.T) {
	geocoder := &stubGeocoder{address: "x"}
	resolver := NewResolver(geocoder, nil, Options{})

	got := resolver.Resolve(context.Background(), math.NaN(), 200)
	assert.True(t, got.Fallback)
	assert.Equal(t, int32(0), geocoder.calls.Load())
}

func TestResolveCoalescesConcurrentLookups(t *testing.T) {
	geocoder := &stubGeocoder{address: "Jl. Sudirman", release: make(chan struct{})}
	resolver := NewResolver(geocoder, nil, Options{})

	var wg sync.WaitGroup
	results := make([]AddressResult, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = resolver.Resolve(context.Background(), 1, 2)
		}(i)
	}

	require.Eventually(t, func() bool { return geocoder.calls.Load() == 1 }, time.Second, time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	close(geocoder.release)
	wg.Wait()

	assert.Equal(t, int32(1), geocoder.calls.Load())
	for _, res := range results {
		assert.Equal(t, "Jl. Sudirman", res.Address)
	}
}

func TestResolveCancelledCallerGetsFallback(t *testing.T) {
	geocoder := &stubGeocoder{address: "late", release: make(chan struct{})}
	defer close(geocoder.release)
	resolver := NewResolver(geocoder, nil, Options{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan AddressResult, 1)
	go func() { done <- resolver.Resolve(ctx, 3, 4) }()

	require.Eventually(t, func() bool { return geocoder.calls.Load() == 1 }, time.Second, time.Millisecond)
	cancel()

	select {
	case got := <-done:
		assert.True(t, got.Fallback)
	case <-time.After(time.Second):
		t.Fatal("Resolve() did not return after cancel")
	}
}

func TestCloseWaitsForRunningLookup(t *testing.T) {
	geocoder := &stubGeocoder{address: "late", release: make(chan struct{})}
	cache := cacheinfra.NewMemoryCache(time.Minute)
	resolver := NewResolver(geocoder, cache, Options{CacheTTL: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	go resolver.Resolve(ctx, 3, 4)
	require.Eventually(t, func() bool { return geocoder.calls.Load() == 1 }, time.Second, time.Millisecond)
	cancel()

	closed := make(chan struct{})
	go func() {
		resolver.Close()
		close(closed)
	}()
	select {
	case <-closed:
		t.Fatal("Close() returned while a lookup was running")
	case <-time.After(50 * time.Millisecond):
	}

	close(geocoder.release)
	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("Close() did not return after the lookup finished")
	}
	value, found, err := cache.Get(context.Background(), cacheKey(3, 4))
	require.NoError(t, err)
	assert.True(t, found, "the finished lookup is written before Close returns")
	assert.Equal(t, "late", value)

	got := resolver.Resolve(context.Background(), 5, 6)
	assert.True(t, got.Fallback)
	assert.Equal(t, int32(1), geocoder.calls.Load(), "no lookup starts after Close")
}
