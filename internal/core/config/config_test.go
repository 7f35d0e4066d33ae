package config

import (
	"reflect"
	"testing"
	"time"
)

func TestFromEnv_Defaults(t *testing.T) {
	cfg := FromEnv()

	if cfg.Addr != ":8090" {
		t.Fatalf("Addr=%q", cfg.Addr)
	}
	if cfg.MaxDistanceKm != 15 {
		t.Fatalf("MaxDistanceKm=%v want 15", cfg.MaxDistanceKm)
	}
	if cfg.Geocode.UserAgent != DefaultUserAgent {
		t.Fatalf("UserAgent=%q", cfg.Geocode.UserAgent)
	}
	if cfg.Geocode.Timeout != 5*time.Second {
		t.Fatalf("Timeout=%v", cfg.Geocode.Timeout)
	}
	if cfg.Geocode.Cache != "memory" || cfg.ShopStore != "memory" {
		t.Fatalf("cache=%q store=%q", cfg.Geocode.Cache, cfg.ShopStore)
	}
	if cfg.SearchEvents.Enabled {
		t.Fatal("search events must default to disabled")
	}
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("NOMINATIM_URL", "http://geo.local/")
	t.Setenv("GEOCODE_TIMEOUT", "2s")
	t.Setenv("GEOCODE_CACHE", "LRU")
	t.Setenv("GEOCODE_CACHE_SIZE", "-3")
	t.Setenv("SEARCH_MAX_DISTANCE_KM", "7.5")
	t.Setenv("SEARCH_EVENTS_ENABLED", "yes")
	t.Setenv("KAFKA_BROKERS", " a:9092, ,b:9092 ")

	cfg := FromEnv()
	if cfg.Geocode.URL != "http://geo.local" {
		t.Fatalf("URL=%q want trailing slash trimmed", cfg.Geocode.URL)
	}
	if cfg.Geocode.Timeout != 2*time.Second {
		t.Fatalf("Timeout=%v", cfg.Geocode.Timeout)
	}
	if cfg.Geocode.Cache != "lru" {
		t.Fatalf("Cache=%q", cfg.Geocode.Cache)
	}
	if cfg.Geocode.CacheSize != 4096 {
		t.Fatalf("CacheSize=%d want fallback 4096", cfg.Geocode.CacheSize)
	}
	if cfg.MaxDistanceKm != 7.5 {
		t.Fatalf("MaxDistanceKm=%v", cfg.MaxDistanceKm)
	}
	if !cfg.SearchEvents.Enabled {
		t.Fatal("expected search events enabled")
	}
	if !reflect.DeepEqual(cfg.SearchEvents.Brokers, []string{"a:9092", "b:9092"}) {
		t.Fatalf("Brokers=%v", cfg.SearchEvents.Brokers)
	}
}

func TestFromEnv_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("SEARCH_MAX_DISTANCE_KM", "-1")
	t.Setenv("GEOCODE_TIMEOUT", "soon")
	t.Setenv("METRICS_ENABLED", "maybe")

	cfg := FromEnv()
	if cfg.MaxDistanceKm != 15 {
		t.Fatalf("MaxDistanceKm=%v want 15", cfg.MaxDistanceKm)
	}
	if cfg.Geocode.Timeout != 5*time.Second {
		t.Fatalf("Timeout=%v want default", cfg.Geocode.Timeout)
	}
	if cfg.MetricsEnabled {
		t.Fatal("unparseable bool must fall back to false")
	}
}
