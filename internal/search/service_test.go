package search

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/mohammed-shakir/bikeshop-proximity/internal/cache"
	"github.com/mohammed-shakir/bikeshop-proximity/internal/core/model"
	"github.com/mohammed-shakir/bikeshop-proximity/internal/geocode"
	"github.com/mohammed-shakir/bikeshop-proximity/internal/searchevents"
	"github.com/mohammed-shakir/bikeshop-proximity/internal/shops"
)

func strp(s string) *string { return &s }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// geocoder double answering for H2J 2J9 (Plateau Mont-Royal)
type gcDouble struct {
	calls  int64
	status int
}

func (g *gcDouble) handler(w http.ResponseWriter, r *http.Request) {
	atomic.AddInt64(&g.calls, 1)
	if g.status != 0 {
		http.Error(w, "upstream failure", g.status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if r.URL.Query().Get("postalcode") != "H2J 2J9" {
		_, _ = io.WriteString(w, `[]`)
		return
	}
	_, _ = io.WriteString(w, `[{"lat":"45.5236","lon":"-73.5830"}]`)
}

type recordingSink struct {
	mu     sync.Mutex
	events []searchevents.Event
}

func (r *recordingSink) Publish(ev searchevents.Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func fixtureShops() []model.Shop {
	return []model.Shop{
		{Name: "A", Repair: true, Lat: strp("45.52"), Lon: strp("-73.58")},
		{Name: "B", Repair: true, Lat: strp("45.40"), Lon: strp("-73.20")},
		{Name: "C", Rental: true, Lat: strp("45.53"), Lon: strp("-73.59")},
		{Name: "D", Repair: true},
	}
}

func newService(t *testing.T, g *gcDouble, sink searchevents.Sink) *Service {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(g.handler))
	t.Cleanup(srv.Close)

	n, err := geocode.NewNominatim(srv.Client(), srv.URL, "test-agent")
	if err != nil {
		t.Fatalf("NewNominatim: %v", err)
	}
	res := geocode.NewResolver(quietLogger(), n, cache.NewMemory())
	return NewService(quietLogger(), shops.NewMemory(fixtureShops()...), res, WithEvents(sink))
}

func TestSearch_RanksWithinRadius(t *testing.T) {
	g := &gcDouble{}
	s := newService(t, g, nil)

	res, err := s.Search(context.Background(), model.SearchQuery{
		Service:       model.ServiceRepair,
		PostalCode:    "H2J 2J9",
		MaxDistanceKm: 15,
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if !res.Ranked {
		t.Fatal("expected ranked result")
	}
	if len(res.Shops) != 1 || res.Shops[0].Name != "A" {
		t.Fatalf("shops=%+v want only A", res.Shops)
	}
	d := res.Shops[0].Distance
	if d == nil || *d > 15 || *d < 0 {
		t.Fatalf("distance=%v", d)
	}
}

func TestSearch_AllServicesSortedAscending(t *testing.T) {
	s := newService(t, &gcDouble{}, nil)

	res, err := s.Search(context.Background(), model.SearchQuery{PostalCode: "h2j2j9"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(res.Shops) != 2 {
		t.Fatalf("len=%d want 2 (A, C)", len(res.Shops))
	}
	if *res.Shops[0].Distance > *res.Shops[1].Distance {
		t.Fatalf("not ascending: %v, %v", *res.Shops[0].Distance, *res.Shops[1].Distance)
	}
}

func TestSearch_EmptyPostalCodeReturnsAllUnranked(t *testing.T) {
	g := &gcDouble{}
	s := newService(t, g, nil)

	for _, pc := range []string{"", "   "} {
		res, err := s.Search(context.Background(), model.SearchQuery{Service: model.ServiceRepair, PostalCode: pc})
		if err != nil {
			t.Fatalf("Search(%q): %v", pc, err)
		}
		if res.Ranked {
			t.Fatal("expected unranked")
		}
		want := []string{"A", "B", "D"}
		if len(res.Shops) != len(want) {
			t.Fatalf("len=%d want %d", len(res.Shops), len(want))
		}
		for i, w := range want {
			if res.Shops[i].Name != w || res.Shops[i].Distance != nil {
				t.Fatalf("pos %d=%+v want %s with nil distance", i, res.Shops[i], w)
			}
		}
	}
	if n := atomic.LoadInt64(&g.calls); n != 0 {
		t.Fatalf("geocoder calls=%d want 0", n)
	}
}

func TestSearch_InvalidPostalCodeIsValidationError(t *testing.T) {
	g := &gcDouble{}
	s := newService(t, g, nil)

	for _, pc := range []string{"ZZZZZZ", "12345", "H2J 2J"} {
		_, err := s.Search(context.Background(), model.SearchQuery{PostalCode: pc})
		var ve *ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("Search(%q) err=%v want ValidationError", pc, err)
		}
		if ve.Message != "Code postal invalide. Format attendu: A1A1A1" || ve.Field != "postalCode" {
			t.Fatalf("unexpected validation error %+v", ve)
		}
	}
	if n := atomic.LoadInt64(&g.calls); n != 0 {
		t.Fatalf("geocoder calls=%d want 0", n)
	}
}

func TestSearch_GeocoderFailureDegradesToUnranked(t *testing.T) {
	g := &gcDouble{status: http.StatusInternalServerError}
	s := newService(t, g, nil)

	res, err := s.Search(context.Background(), model.SearchQuery{Service: model.ServiceRepair, PostalCode: "H2J 2J9"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if res.Ranked {
		t.Fatal("expected unranked")
	}
	if len(res.Shops) != 3 {
		t.Fatalf("len=%d want all 3 repair shops", len(res.Shops))
	}
	for _, r := range res.Shops {
		if r.Distance != nil {
			t.Fatalf("%s distance=%v want nil", r.Name, *r.Distance)
		}
	}
}

func TestSearch_NoGeocodeMatchDegradesToUnranked(t *testing.T) {
	s := newService(t, &gcDouble{}, nil)

	res, err := s.Search(context.Background(), model.SearchQuery{PostalCode: "K1A 0B1"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if res.Ranked || len(res.Shops) != 4 {
		t.Fatalf("ranked=%v len=%d", res.Ranked, len(res.Shops))
	}
}

func TestSearch_SecondSearchUsesCache(t *testing.T) {
	g := &gcDouble{}
	s := newService(t, g, nil)
	ctx := context.Background()

	for range 3 {
		if _, err := s.Search(ctx, model.SearchQuery{PostalCode: "H2J 2J9"}); err != nil {
			t.Fatalf("Search: %v", err)
		}
	}
	if n := atomic.LoadInt64(&g.calls); n != 1 {
		t.Fatalf("geocoder calls=%d want 1", n)
	}
}

type failingStore struct{}

func (failingStore) ListShops(context.Context, model.ServiceFilter) ([]model.Shop, error) {
	return nil, errors.New("db down")
}

type fixedResolver struct {
	c  model.Coordinate
	ok bool
}

func (f fixedResolver) Resolve(context.Context, string) (model.Coordinate, bool) { return f.c, f.ok }

func TestSearch_StoreFailureIsReturned(t *testing.T) {
	s := NewService(quietLogger(), failingStore{}, fixedResolver{})
	_, err := s.Search(context.Background(), model.SearchQuery{})
	if err == nil {
		t.Fatal("expected error")
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		t.Fatal("store failure must not look like a validation error")
	}
}

func TestSearch_DefaultMaxDistanceOption(t *testing.T) {
	res := fixedResolver{c: model.Coordinate{Lat: 45.5236, Lon: -73.5830}, ok: true}
	s := NewService(quietLogger(), shops.NewMemory(fixtureShops()...), res, WithDefaultMaxDistance(50))

	got, err := s.Search(context.Background(), model.SearchQuery{Service: model.ServiceRepair, PostalCode: "H2J2J9"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got.Shops) != 2 || got.Shops[0].Name != "A" || got.Shops[1].Name != "B" {
		t.Fatalf("shops=%+v want A then B within 50km", got.Shops)
	}
}

func TestSearch_PublishesEvents(t *testing.T) {
	sink := &recordingSink{}
	s := newService(t, &gcDouble{}, sink)
	ctx := context.Background()

	_, _ = s.Search(ctx, model.SearchQuery{Service: model.ServiceRepair, PostalCode: "h2j 2j9"})
	_, _ = s.Search(ctx, model.SearchQuery{})
	_, _ = s.Search(ctx, model.SearchQuery{PostalCode: "bad"})

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.events) != 2 {
		t.Fatalf("events=%d want 2 (invalid input is not published)", len(sink.events))
	}
	first := sink.events[0]
	if first.Outcome != "ranked" || first.PostalCode != "H2J2J9" || first.Service != "repair" || first.Results != 1 || first.MaxDistanceKm != 15 {
		t.Fatalf("first event=%+v", first)
	}
	if sink.events[1].Outcome != "unranked" || sink.events[1].Results != 4 {
		t.Fatalf("second event=%+v", sink.events[1])
	}
}
