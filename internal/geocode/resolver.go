// Package geocode resolves Canadian postal codes to coordinates through an
// external geocoder, cache first.
//
// Resolution failures are not errors for callers: Resolve reports ok=false
// and the search degrades to unranked results.
package geocode

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/mohammed-shakir/bikeshop-proximity/internal/core/model"
	"github.com/mohammed-shakir/bikeshop-proximity/internal/core/observability"
	"github.com/mohammed-shakir/bikeshop-proximity/internal/logger"
	"github.com/mohammed-shakir/bikeshop-proximity/internal/postal"
)

const DefaultTimeout = 5 * time.Second

// Cache is keyed by normalized postal code. Errors are treated as a miss.
type Cache interface {
	Get(ctx context.Context, key string) (model.Coordinate, bool, error)
	Put(ctx context.Context, key string, v model.Coordinate) error
}

type Option func(*Resolver)

// WithTimeout bounds each outbound geocoder call.
func WithTimeout(d time.Duration) Option {
	return func(r *Resolver) {
		if d > 0 {
			r.timeout = d
		}
	}
}

type Resolver struct {
	log      *slog.Logger
	geocoder Geocoder
	cache    Cache
	timeout  time.Duration
	flight   singleflight.Group
}

func NewResolver(log *slog.Logger, g Geocoder, c Cache, opts ...Option) *Resolver {
	if log == nil {
		log = slog.Default()
	}
	r := &Resolver{
		log:      log,
		geocoder: g,
		cache:    c,
		timeout:  DefaultTimeout,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Resolve returns the coordinate of postalCode. Concurrent misses for the
// same code share one geocoder call.
func (r *Resolver) Resolve(ctx context.Context, postalCode string) (model.Coordinate, bool) {
	code := postal.Normalize(postalCode)
	ctx = logger.WithComponent(logger.WithPostalCode(ctx, code), "geocode")

	if !postal.IsValid(code) {
		r.log.DebugContext(ctx, "skip geocode for malformed postal code")
		return model.Coordinate{}, false
	}

	c, ok, err := r.cache.Get(ctx, code)
	switch {
	case err != nil:
		observability.IncGeocodeCacheError()
		r.log.WarnContext(ctx, "geocode cache read failed", "err", err)
	case ok:
		observability.IncGeocodeCacheHit()
		r.log.DebugContext(logger.WithCacheOutcome(ctx, "hit"), "geocode cache hit")
		return c, true
	default:
		observability.IncGeocodeCacheMiss()
	}

	ctx = logger.WithCacheOutcome(ctx, "miss")
	ch := r.flight.DoChan(code, func() (any, error) {
		// detached so one canceled caller does not fail the others
		return r.lookup(context.WithoutCancel(ctx), code)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return model.Coordinate{}, false
		}
		coord, _ := res.Val.(model.Coordinate)
		return coord, true
	case <-ctx.Done():
		r.log.WarnContext(ctx, "geocode abandoned", "err", ctx.Err())
		return model.Coordinate{}, false
	}
}

func (r *Resolver) lookup(ctx context.Context, code string) (model.Coordinate, error) {
	lctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	c, err := r.geocoder.Geocode(lctx, postal.Format(code))
	dur := time.Since(start)
	if err != nil {
		switch {
		case errors.Is(err, ErrNoMatch):
			observability.IncGeocodeRequest("no_match")
			r.log.WarnContext(ctx, "no geocode result for postal code", "duration", dur)
		case errors.Is(err, ErrUpstreamStatus):
			observability.IncGeocodeRequest("bad_status")
			r.log.ErrorContext(ctx, "geocoder request failed", "err", err, "duration", dur)
		default:
			observability.IncGeocodeRequest("error")
			r.log.ErrorContext(ctx, "geocoding error", "err", err, "duration", dur)
		}
		return model.Coordinate{}, err
	}

	observability.IncGeocodeRequest("ok")
	if err := r.cache.Put(ctx, code, c); err != nil {
		r.log.WarnContext(ctx, "geocode cache write failed", "err", err)
	}
	r.log.DebugContext(ctx, "geocode resolved", "coord", c.String(), "duration", dur)
	return c, nil
}
