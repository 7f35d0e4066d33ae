// Package search orchestrates proximity search: candidate listing, postal
// code validation, geocoding and distance ranking.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mohammed-shakir/bikeshop-proximity/internal/core/model"
	"github.com/mohammed-shakir/bikeshop-proximity/internal/core/observability"
	"github.com/mohammed-shakir/bikeshop-proximity/internal/logger"
	"github.com/mohammed-shakir/bikeshop-proximity/internal/postal"
	"github.com/mohammed-shakir/bikeshop-proximity/internal/rank"
	"github.com/mohammed-shakir/bikeshop-proximity/internal/searchevents"
)

const InvalidPostalCodeMessage = "Code postal invalide. Format attendu: A1A1A1"

// ValidationError is the only error Search returns for bad input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

type ShopLister interface {
	ListShops(ctx context.Context, service model.ServiceFilter) ([]model.Shop, error)
}

type Resolver interface {
	Resolve(ctx context.Context, postalCode string) (model.Coordinate, bool)
}

type Option func(*Service)

func WithDefaultMaxDistance(km float64) Option {
	return func(s *Service) {
		if km > 0 {
			s.defaultMaxKm = km
		}
	}
}

func WithEvents(sink searchevents.Sink) Option {
	return func(s *Service) {
		if sink != nil {
			s.events = sink
		}
	}
}

type Service struct {
	log          *slog.Logger
	shops        ShopLister
	resolver     Resolver
	defaultMaxKm float64
	events       searchevents.Sink
}

func NewService(log *slog.Logger, shops ShopLister, resolver Resolver, opts ...Option) *Service {
	if log == nil {
		log = slog.Default()
	}
	s := &Service{
		log:          log,
		shops:        shops,
		resolver:     resolver,
		defaultMaxKm: rank.DefaultMaxDistanceKm,
		events:       searchevents.Discard{},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Search lists shops for q.Service and, when a postal code is given, keeps
// only those within q.MaxDistanceKm ordered by distance. If the postal code
// cannot be geocoded every candidate is returned unranked.
func (s *Service) Search(ctx context.Context, q model.SearchQuery) (model.SearchResult, error) {
	ctx = logger.WithComponent(ctx, "search")

	candidates, err := s.shops.ListShops(ctx, q.Service)
	if err != nil {
		observability.ObserveSearch("error", -1)
		return model.SearchResult{}, fmt.Errorf("list shops: %w", err)
	}

	maxKm := q.MaxDistanceKm
	if maxKm <= 0 {
		maxKm = s.defaultMaxKm
	}

	if strings.TrimSpace(q.PostalCode) == "" {
		return s.done(ctx, q, "", maxKm, model.Unranked(candidates)), nil
	}

	code := postal.Normalize(q.PostalCode)
	ctx = logger.WithPostalCode(ctx, code)
	if !postal.IsValid(code) {
		observability.ObserveSearch("invalid", -1)
		s.log.DebugContext(ctx, "rejected postal code", "raw", q.PostalCode)
		return model.SearchResult{}, &ValidationError{Field: "postalCode", Message: InvalidPostalCodeMessage}
	}

	origin, ok := s.resolver.Resolve(ctx, code)
	if !ok {
		s.log.InfoContext(ctx, "postal code unresolved, returning unranked shops", "candidates", len(candidates))
		return s.done(ctx, q, code, maxKm, model.Unranked(candidates)), nil
	}

	ranked := rank.FilterAndRank(candidates, origin.Lat, origin.Lon, maxKm)
	return s.done(ctx, q, code, maxKm, model.SearchResult{Ranked: true, Shops: ranked}), nil
}

func (s *Service) done(ctx context.Context, q model.SearchQuery, code string, maxKm float64, res model.SearchResult) model.SearchResult {
	outcome := "unranked"
	if res.Ranked {
		outcome = "ranked"
	}
	observability.ObserveSearch(outcome, len(res.Shops))
	s.log.DebugContext(ctx, "search done", "outcome", outcome, "results", len(res.Shops), "max_km", maxKm)

	ev := searchevents.Event{
		PostalCode: code,
		Service:    string(q.Service),
		Outcome:    outcome,
		Results:    len(res.Shops),
	}
	if code != "" {
		ev.MaxDistanceKm = maxKm
	}
	s.events.Publish(ev)
	return res
}
