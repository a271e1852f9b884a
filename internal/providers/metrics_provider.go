package providers

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"moriportal/internal/storage"
	"moriportal/internal/structures"
	"strconv"
	"time"
)

type MetricsProviderInterface interface {
	IncRequestsTotal(endpoint string, status int)
	ObserveRequestDuration(endpoint string, duration time.Duration)
	IncCacheHits()
	IncCacheMisses()
	IncToggles(kind string, on bool)
	IncViews()
	IncStoreErrors(operation string)
	ObservePersistenceDuration(duration time.Duration)
}

type MetricsProvider struct {
	requestsTotal       *prometheus.CounterVec
	requestDuration     *prometheus.HistogramVec
	cacheHits           prometheus.Counter
	cacheMisses         prometheus.Counter
	togglesTotal        *prometheus.CounterVec
	viewsTotal          prometheus.Counter
	storeErrors         *prometheus.CounterVec
	persistenceDuration prometheus.Histogram
}

func (m *MetricsProvider) IncRequestsTotal(endpoint string, status int) {
	m.requestsTotal.WithLabelValues(endpoint, httpStatusBucket(status)).Inc()
}

func (m *MetricsProvider) ObserveRequestDuration(endpoint string, duration time.Duration) {
	m.requestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

func (m *MetricsProvider) IncCacheHits() {
	m.cacheHits.Inc()
}

func (m *MetricsProvider) IncCacheMisses() {
	m.cacheMisses.Inc()
}

func (m *MetricsProvider) IncToggles(kind string, on bool) {
	m.togglesTotal.WithLabelValues(kind, strconv.FormatBool(on)).Inc()
}

func (m *MetricsProvider) IncViews() {
	m.viewsTotal.Inc()
}

func (m *MetricsProvider) IncStoreErrors(operation string) {
	m.storeErrors.WithLabelValues(operation).Inc()
}

func (m *MetricsProvider) ObservePersistenceDuration(duration time.Duration) {
	m.persistenceDuration.Observe(duration.Seconds())
}

func httpStatusBucket(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}

func NewMetricsProvider(conf *structures.Config, store storage.Store) MetricsProviderInterface {
	if !conf.Metrics.Enabled {
		return &noopMetrics{}
	}

	m := &MetricsProvider{
		requestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "mori_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"endpoint", "status"}),

		requestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mori_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),

		cacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mori_cache_hits_total",
			Help: "Total number of cache hits",
		}),

		cacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mori_cache_misses_total",
			Help: "Total number of cache misses",
		}),

		togglesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "mori_toggles_total",
			Help: "Total number of like/collect toggles by resulting state",
		}, []string{"kind", "on"}),

		viewsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "mori_views_total",
			Help: "Total number of recorded article views",
		}),

		storeErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "mori_store_errors_total",
			Help: "Total number of failed store operations",
		}, []string{"operation"}),

		persistenceDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "mori_persistence_duration_seconds",
			Help:    "Duration of snapshot persistence in seconds",
			Buckets: prometheus.DefBuckets,
		}),
	}

	if snap, ok := store.(storage.Snapshotter); ok {
		promauto.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "mori_store_keys",
			Help: "Current number of keys held by the in-memory store",
		}, func() float64 {
			return float64(snap.Len())
		})
	}

	return m
}

// noopMetrics is a no-op implementation for when metrics are disabled.
type noopMetrics struct{}

func (n *noopMetrics) IncRequestsTotal(_ string, _ int)                 {}
func (n *noopMetrics) ObserveRequestDuration(_ string, _ time.Duration) {}
func (n *noopMetrics) IncCacheHits()                                    {}
func (n *noopMetrics) IncCacheMisses()                                  {}
func (n *noopMetrics) IncToggles(_ string, _ bool)                      {}
func (n *noopMetrics) IncViews()                                        {}
func (n *noopMetrics) IncStoreErrors(_ string)                          {}
func (n *noopMetrics) ObservePersistenceDuration(_ time.Duration)       {}
