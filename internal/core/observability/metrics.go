package observability

import (
	"errors"
	"strconv"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var cacheBackendLabel atomic.Value

func init() {
	cacheBackendLabel.Store("memory")
}

// SetCacheBackend sets the label attached to geocode cache metrics.
func SetCacheBackend(s string) {
	if s == "" {
		s = "memory"
	}
	cacheBackendLabel.Store(s)
}

func getCacheBackend() string {
	if v := cacheBackendLabel.Load(); v != nil {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return "memory"
}

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~20s
		},
		[]string{"method", "route", "status"},
	)

	upstreamLatencySeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_latency_seconds",
			Help:    "Latency of upstream calls in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		},
		[]string{"upstream"},
	)

	buildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_build_info",
			Help: "Build information for the binary.",
		},
		[]string{"version"},
	)

	geocodeCacheResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geocode_cache_results_total",
			Help: "Geocode cache lookups by outcome.",
		},
		[]string{"outcome", "backend"},
	)

	geocodeRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "geocode_requests_total",
			Help: "Outbound geocoder calls by outcome.",
		},
		[]string{"outcome"},
	)

	searchResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "proximity_search_total",
			Help: "Proximity searches by outcome.",
		},
		[]string{"outcome"},
	)

	searchResultSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "proximity_search_result_size",
			Help:    "Number of shops returned per search.",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50, 100, 200},
		},
	)

	cacheOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_op_total",
			Help: "Redis cache operations by op and result.",
		},
		[]string{"op", "result"},
	)

	redisOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "redis_operation_duration_seconds",
			Help:    "Duration of redis operations in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
		},
		[]string{"op"},
	)
)

func collectors() []prometheus.Collector {
	return []prometheus.Collector{
		httpRequestsTotal,
		httpRequestDurationSeconds,
		upstreamLatencySeconds,
		geocodeCacheResults,
		geocodeRequests,
		searchResults,
		searchResultSize,
		cacheOps,
		redisOpDuration,
	}
}

// Init also exposes the service collectors on reg (e.g. the dedicated
// metrics listener registry). Collectors stay on the default registry.
// app_build_info is left out, the provider registry carries its own.
func Init(reg prometheus.Registerer, enabled bool) {
	if !enabled || reg == nil {
		return
	}
	for _, c := range collectors() {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			panic(err)
		}
	}
}

func ObserveHTTP(method, route string, status int, durationSeconds float64) {
	st := strconv.Itoa(status)
	httpRequestsTotal.WithLabelValues(method, route, st).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route, st).Observe(durationSeconds)
}

func ObserveUpstreamLatency(upstream string, durationSeconds float64) {
	upstreamLatencySeconds.WithLabelValues(upstream).Observe(durationSeconds)
}

func IncGeocodeCacheHit() {
	geocodeCacheResults.WithLabelValues("hit", getCacheBackend()).Inc()
}

func IncGeocodeCacheMiss() {
	geocodeCacheResults.WithLabelValues("miss", getCacheBackend()).Inc()
}

func IncGeocodeCacheError() {
	geocodeCacheResults.WithLabelValues("error", getCacheBackend()).Inc()
}

// IncGeocodeRequest outcome is one of ok, no_match, bad_status, error.
func IncGeocodeRequest(outcome string) {
	geocodeRequests.WithLabelValues(outcome).Inc()
}

// ObserveSearch outcome is one of ranked, unranked, invalid, error.
func ObserveSearch(outcome string, results int) {
	searchResults.WithLabelValues(outcome).Inc()
	if results >= 0 {
		searchResultSize.Observe(float64(results))
	}
}

func ObserveCacheOp(op string, err error, durationSeconds float64) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	cacheOps.WithLabelValues(op, result).Inc()
	redisOpDuration.WithLabelValues(op).Observe(durationSeconds)
}

func ExposeBuildInfo(version string) {
	if version == "" {
		version = "dev"
	}
	buildInfo.WithLabelValues(version).Set(1)
}
