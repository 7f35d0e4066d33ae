// Package config loads service configuration from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

const DefaultUserAgent = "VeloMontreal/1.0 (contact@velomontreal.ca)"

type GeocodeCfg struct {
	URL       string
	UserAgent string
	Timeout   time.Duration
	Cache     string // memory, lru or redis
	CacheSize int
}

type SearchEventsCfg struct {
	Enabled   bool
	Brokers   []string
	Topic     string
	QueueSize int
}

type Config struct {
	Addr           string
	LogLevel       string
	Geocode        GeocodeCfg
	RedisAddr      string
	CacheOpTimeout time.Duration
	MaxDistanceKm  float64
	ShopStore      string
	ShopsCSV       string
	DatabaseURL    string
	SearchEvents   SearchEventsCfg
	MetricsEnabled bool
	MetricsAddr    string
	MetricsPath    string
}

func FromEnv() Config {
	maxKm := getfloat("SEARCH_MAX_DISTANCE_KM", 15)
	if maxKm <= 0 {
		maxKm = 15
	}

	cacheSize := getint("GEOCODE_CACHE_SIZE", 4096)
	if cacheSize <= 0 {
		cacheSize = 4096
	}

	return Config{
		Addr:     getenv("ADDR", ":8090"),
		LogLevel: getenv("LOG_LEVEL", "info"),
		Geocode: GeocodeCfg{
			URL:       strings.TrimRight(getenv("NOMINATIM_URL", "https://nominatim.openstreetmap.org"), "/"),
			UserAgent: getenv("GEOCODE_USER_AGENT", DefaultUserAgent),
			Timeout:   getduration("GEOCODE_TIMEOUT", 5*time.Second),
			Cache:     strings.ToLower(getenv("GEOCODE_CACHE", "memory")),
			CacheSize: cacheSize,
		},
		RedisAddr:      getenv("REDIS_ADDR", "localhost:6379"),
		CacheOpTimeout: getduration("CACHE_OP_TIMEOUT", 250*time.Millisecond),
		MaxDistanceKm:  maxKm,
		ShopStore:      strings.ToLower(getenv("SHOP_STORE", "memory")),
		ShopsCSV:       getenv("SHOPS_CSV", "public/data/commerces.csv"),
		DatabaseURL:    getenv("DATABASE_URL", ""),
		SearchEvents: SearchEventsCfg{
			Enabled:   getbool("SEARCH_EVENTS_ENABLED", false),
			Brokers:   splitList(getenv("KAFKA_BROKERS", "localhost:9092")),
			Topic:     getenv("KAFKA_TOPIC", "shop-search-events"),
			QueueSize: getint("SEARCH_EVENTS_QUEUE", 1024),
		},
		MetricsEnabled: getbool("METRICS_ENABLED", false),
		MetricsAddr:    getenv("METRICS_ADDR", ":9090"),
		MetricsPath:    getenv("METRICS_PATH", "/metrics"),
	}
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v := os.Getenv(k); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

// parse "a:9092, b:9092" into a list, dropping empties
func splitList(s string) []string {
	var out []string
	for p := range strings.SplitSeq(s, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
