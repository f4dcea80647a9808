package geocode

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"sitepresence/internal/bootstrap/logging"
	"sitepresence/internal/errs"
	"sitepresence/internal/observability/metrics"
	"sitepresence/internal/ports"
)

// AddressResult is the outcome of a lookup. Fallback is set when Address was
// built from the coordinates instead of coming from the geocoder.
type AddressResult struct {
	Address    string
	Fallback   bool
	ResolvedAt time.Time
}

type Options struct {
	CacheTTL time.Duration
	Metrics  *metrics.AttendanceMetrics
	Now      func() time.Time
}

// Resolver turns coordinates into a display address and never fails: any
// lookup error degrades to FallbackAddress.
type Resolver struct {
	geocoder ports.ReverseGeocoder
	cache    ports.Cache
	cacheTTL time.Duration
	metrics  *metrics.AttendanceMetrics
	now      func() time.Time
	group    singleflight.Group

	mu       sync.Mutex
	closed   bool
	inflight sync.WaitGroup
}

var errResolverClosed = errors.New("resolver is closed")

// NewResolver accepts a nil geocoder (lookups disabled) and a nil cache.
func NewResolver(geocoder ports.ReverseGeocoder, cache ports.Cache, opts Options) *Resolver {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Resolver{
		geocoder: geocoder,
		cache:    cache,
		cacheTTL: opts.CacheTTL,
		metrics:  opts.Metrics,
		now:      now,
	}
}

// FallbackAddress is the deterministic address used when no lookup succeeds.
func FallbackAddress(latitude float64, longitude float64) string {
	return fmt.Sprintf("%.6f, %.6f", latitude, longitude)
}

// cacheKey rounds to 5 decimals (about 1 m), close enough to share an address.
func cacheKey(latitude float64, longitude float64) string {
	return fmt.Sprintf("geocode:%.5f,%.5f", latitude, longitude)
}

func (r *Resolver) Resolve(ctx context.Context, latitude float64, longitude float64) AddressResult {
	if ctx == nil {
		ctx = context.Background()
	}
	logCtx := logging.WithAttrs(ctx,
		slog.String("component", "usecase.geocode"),
		slog.Float64("lat", latitude),
		slog.Float64("lon", longitude),
	)

	if !validCoordinates(latitude, longitude) {
		logging.Warn(logCtx, "invalid coordinates, using fallback address")
		return r.fallback(latitude, longitude)
	}

	key := cacheKey(latitude, longitude)
	if r.cache != nil {
		value, found, err := r.cache.Get(ctx, key)
		switch {
		case err != nil:
			logging.Warn(logCtx, "geocode cache read failed", slog.Any("err", errs.Loggable(err)))
		case found && value != "":
			r.metrics.RecordGeocode("cache_hit", 0)
			return AddressResult{Address: value, ResolvedAt: r.now().UTC()}
		}
	}

	if r.geocoder == nil {
		return r.fallback(latitude, longitude)
	}

	// The lookup outlives any single caller so that a caller superseded by a
	// newer request does not fail the callers sharing its flight.
	ch := r.group.DoChan(key, func() (any, error) {
		if !r.track() {
			return "", errResolverClosed
		}
		defer r.inflight.Done()

		lookupCtx := context.WithoutCancel(ctx)
		started := r.now()
		address, err := r.geocoder.ReverseGeocode(lookupCtx, latitude, longitude)
		elapsed := r.now().Sub(started).Seconds()
		if err != nil {
			r.metrics.RecordGeocode("fallback", elapsed)
			return "", err
		}
		r.metrics.RecordGeocode("resolved", elapsed)

		if r.cache != nil {
			if err := r.cache.Set(lookupCtx, key, address, r.cacheTTL); err != nil {
				logging.Warn(logCtx, "geocode cache write failed", slog.Any("err", errs.Loggable(err)))
			}
		}
		return address, nil
	})

	select {
	case <-ctx.Done():
		return r.fallback(latitude, longitude)
	case res := <-ch:
		if res.Err != nil {
			logging.Warn(logCtx, "reverse geocode failed, using fallback address", slog.Any("err", errs.Loggable(res.Err)))
			return r.fallback(latitude, longitude)
		}
		return AddressResult{Address: res.Val.(string), ResolvedAt: r.now().UTC()}
	}
}

func (r *Resolver) track() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return false
	}
	r.inflight.Add(1)
	return true
}

// Close refuses new lookups and waits for the ones already running, including
// their cache writes. Later calls to Resolve return the fallback address.
func (r *Resolver) Close() {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	r.inflight.Wait()
}

func (r *Resolver) fallback(latitude float64, longitude float64) AddressResult {
	return AddressResult{
		Address:    FallbackAddress(latitude, longitude),
		Fallback:   true,
		ResolvedAt: r.now().UTC(),
	}
}

func validCoordinates(latitude float64, longitude float64) bool {
	if math.IsNaN(latitude) || math.IsNaN(longitude) {
		return false
	}
	return latitude >= -90 && latitude <= 90 && longitude >= -180 && longitude <= 180
}
