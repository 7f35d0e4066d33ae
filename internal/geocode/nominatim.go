package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mohammed-shakir/bikeshop-proximity/internal/core/model"
	"github.com/mohammed-shakir/bikeshop-proximity/internal/core/observability"
)

var (
	// ErrNoMatch means the geocoder answered but found nothing.
	ErrNoMatch = errors.New("geocode: no match")
	// ErrUpstreamStatus wraps non-2xx geocoder answers.
	ErrUpstreamStatus = errors.New("geocode: upstream status")
)

// Geocoder looks up a formatted postal code ("A1A 1A1").
type Geocoder interface {
	Geocode(ctx context.Context, formattedPostalCode string) (model.Coordinate, error)
}

type nominatimPlace struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

// Nominatim calls an OpenStreetMap Nominatim compatible /search endpoint.
type Nominatim struct {
	client    *http.Client
	searchURL *url.URL
	userAgent string
	startNow  func() time.Time // for tests
}

func NewNominatim(client *http.Client, baseURL, userAgent string) (*Nominatim, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/") + "/search")
	if err != nil {
		return nil, fmt.Errorf("parse nominatim url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("nominatim url %q must be absolute", baseURL)
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &Nominatim{
		client:    client,
		searchURL: u,
		userAgent: userAgent,
		startNow:  time.Now,
	}, nil
}

func (n *Nominatim) Geocode(ctx context.Context, formatted string) (model.Coordinate, error) {
	params := url.Values{}
	params.Set("postalcode", formatted)
	params.Set("country", "Canada")
	params.Set("format", "json")
	params.Set("limit", "1")

	u := *n.searchURL
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return model.Coordinate{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if n.userAgent != "" {
		req.Header.Set("User-Agent", n.userAgent)
	}

	start := n.startNow()
	resp, err := n.client.Do(req)
	observability.ObserveUpstreamLatency("nominatim", time.Since(start).Seconds())
	if err != nil {
		return model.Coordinate{}, fmt.Errorf("do request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<10))
		return model.Coordinate{}, fmt.Errorf("%w %d: %s", ErrUpstreamStatus, resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var places []nominatimPlace
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&places); err != nil {
		return model.Coordinate{}, fmt.Errorf("decode response: %w", err)
	}
	if len(places) == 0 {
		return model.Coordinate{}, ErrNoMatch
	}

	lat, err := strconv.ParseFloat(strings.TrimSpace(places[0].Lat), 64)
	if err != nil {
		return model.Coordinate{}, fmt.Errorf("parse lat %q: %w", places[0].Lat, err)
	}
	lon, err := strconv.ParseFloat(strings.TrimSpace(places[0].Lon), 64)
	if err != nil {
		return model.Coordinate{}, fmt.Errorf("parse lon %q: %w", places[0].Lon, err)
	}
	c := model.Coordinate{Lat: lat, Lon: lon}
	if !c.Valid() {
		return model.Coordinate{}, fmt.Errorf("coordinate out of range: %s", c)
	}
	return c, nil
}
