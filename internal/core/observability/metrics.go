// Package observability holds the Prometheus collectors shared by the cache,
// the remote cache transport and the invalidation runner.
package observability

import (
	"errors"
	"strconv"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

var cacheLabel atomic.Value

func init() {
	cacheLabel.Store("default")
	_ = Init(prometheus.DefaultRegisterer)
}

// SetCacheName labels cache metrics with the local cache namespace.
func SetCacheName(s string) {
	if s == "" {
		s = "default"
	}
	cacheLabel.Store(s)
}

func getCacheName() string {
	if v := cacheLabel.Load(); v != nil {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return "default"
}

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	cacheOpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cache_op_duration_seconds",
			Help:    "Latency of Redis operations issued by the tile cache.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
		},
		[]string{"op", "result"},
	)

	cacheResults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_results_total",
			Help: "Key lookups by outcome.",
		},
		[]string{"outcome", "cache"},
	)

	tileLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tile_lookups_total",
			Help: "Tile reads by source (hot, local, remote) and status (found, empty, not_found).",
		},
		[]string{"source", "status", "cache"},
	)

	blobBytes = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "poi_blob_bytes",
			Help:    "Size of encoded POI records.",
			Buckets: prometheus.ExponentialBuckets(16, 2, 12),
		},
	)

	remoteDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "remote_cache_request_duration_seconds",
			Help:    "Round trip of remote cache requests.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		},
		[]string{"mode", "result"},
	)

	invalidationMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "invalidation_messages_total",
			Help: "Invalidation events by selector (ids, tiles, bbox) and result (ok, error, rejected).",
		},
		[]string{"selector", "result"},
	)

	invalidationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "invalidation_processing_seconds",
			Help:    "Time from decoding an invalidation event to the cache eviction.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
		},
		[]string{"selector"},
	)

	invalidationLag = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "invalidation_lag_seconds",
			Help: "Age of the last consumed invalidation event.",
		},
	)

	tileInvalidations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tile_invalidations_total",
			Help: "Tile ids handled by invalidation: deleted, skipped as replays, or failed.",
		},
		[]string{"result"},
	)

	kafkaErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_consumer_errors_total",
			Help: "Kafka consumer errors by kind.",
		},
		[]string{"kind"},
	)

	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "poicache_build_info",
			Help: "Build information for the binary.",
		},
		[]string{"version"},
	)
)

func collectors() []prometheus.Collector {
	return []prometheus.Collector{
		httpRequestsTotal, cacheOpDuration, cacheResults, tileLookups, blobBytes,
		remoteDuration, invalidationMessages, invalidationSeconds, invalidationLag,
		tileInvalidations, kafkaErrors, buildInfo,
	}
}

// Init registers every collector with reg. Collectors already present are
// skipped, so Init may be called for the default registry and a custom one.
func Init(reg prometheus.Registerer) error {
	if reg == nil {
		return nil
	}
	for _, c := range collectors() {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	return nil
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func ObserveHTTP(method, route string, status int) {
	httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}

func ObserveCacheOp(op string, err error, seconds float64) {
	cacheOpDuration.WithLabelValues(op, result(err)).Observe(seconds)
}

func AddCacheHits(n int) {
	cacheResults.WithLabelValues("hit", getCacheName()).Add(float64(n))
}

func AddCacheMisses(n int) {
	cacheResults.WithLabelValues("miss", getCacheName()).Add(float64(n))
}

func IncTileLookup(source, status string) {
	tileLookups.WithLabelValues(source, status, getCacheName()).Inc()
}

func ObserveBlobSize(n int) { blobBytes.Observe(float64(n)) }

func ObserveRemote(mode string, err error, seconds float64) {
	remoteDuration.WithLabelValues(mode, result(err)).Observe(seconds)
}

// ObserveInvalidation records one processed event of the given selector kind.
func ObserveInvalidation(selector string, err error, seconds float64) {
	invalidationMessages.WithLabelValues(selector, result(err)).Inc()
	invalidationSeconds.WithLabelValues(selector).Observe(seconds)
}

// RejectInvalidation counts an event that was dropped without reaching a cache.
func RejectInvalidation(selector string) {
	invalidationMessages.WithLabelValues(selector, "rejected").Inc()
}

func AddTileInvalidations(result string, n int) {
	if n > 0 {
		tileInvalidations.WithLabelValues(result).Add(float64(n))
	}
}

func SetInvalidationLag(seconds float64) { invalidationLag.Set(seconds) }

func IncKafkaConsumerError(kind string) { kafkaErrors.WithLabelValues(kind).Inc() }

func ExposeBuildInfo(version string) {
	if version == "" {
		version = "dev"
	}
	buildInfo.WithLabelValues(version).Set(1)
}
