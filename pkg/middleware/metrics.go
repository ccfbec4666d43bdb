package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/philjs-dev/philjs/pkg/isr"
)

// MetricsConfig configures the Prometheus metrics middleware.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "philjs").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for request duration.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures the Prometheus metrics middleware.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "philjs",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// metrics holds the Prometheus metrics for the ISR pipeline.
type metrics struct {
	requestsTotal      *prometheus.CounterVec
	requestDuration    *prometheus.HistogramVec
	cacheEventsTotal   *prometheus.CounterVec
	revalidationsTotal *prometheus.CounterVec
	tagInvalidations   prometheus.Counter
	queueDepth         prometheus.Gauge
}

// globalMetrics is the singleton metrics instance.
// Created on first call to Prometheus().
var (
	globalMetrics   *metrics
	globalMetricsMu sync.Mutex
)

func initMetrics(config MetricsConfig) *metrics {
	factory := promauto.With(config.Registry)

	return &metrics{
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "requests_total",
			Help:        "Total HTTP requests by status code and cache outcome",
			ConstLabels: config.ConstLabels,
		}, []string{"status", "cache"}),

		requestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "request_duration_seconds",
			Help:        "Request duration in seconds by cache outcome",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"cache"}),

		cacheEventsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "cache_events_total",
			Help:        "Cache lifecycle events by type",
			ConstLabels: config.ConstLabels,
		}, []string{"type"}),

		revalidationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "revalidations_total",
			Help:        "Completed revalidations by result",
			ConstLabels: config.ConstLabels,
		}, []string{"result"}),

		tagInvalidations: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "tag_invalidations_total",
			Help:        "Total tag invalidations",
			ConstLabels: config.ConstLabels,
		}),

		queueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "revalidation_queue_depth",
			Help:        "Pending revalidation requests",
			ConstLabels: config.ConstLabels,
		}),
	}
}

// Prometheus creates middleware that records request metrics.
//
// Metrics collected:
//   - philjs_requests_total: Counter of requests by status code and cache outcome
//   - philjs_request_duration_seconds: Histogram of request duration by cache outcome
//   - philjs_cache_events_total: Counter of cache lifecycle events (via EventSink)
//   - philjs_revalidations_total: Counter of revalidation outcomes (via EventSink)
//   - philjs_tag_invalidations_total: Counter of tag invalidations (via EventSink)
//   - philjs_revalidation_queue_depth: Gauge of pending revalidations
//
// Example:
//
//	r := chi.NewRouter()
//	r.Use(middleware.Prometheus(middleware.WithNamespace("myapp")))
//	r.Handle("/metrics", promhttp.Handler())
func Prometheus(opts ...MetricsOption) func(http.Handler) http.Handler {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}

	globalMetricsMu.Lock()
	if globalMetrics == nil {
		globalMetrics = initMetrics(config)
	}
	m := globalMetrics
	globalMetricsMu.Unlock()

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sw := newStatusWriter(w)
			start := time.Now()

			next.ServeHTTP(sw, r)

			cache := sw.cacheStatus()
			if cache == "" {
				cache = "none"
			}
			m.requestDuration.WithLabelValues(cache).Observe(time.Since(start).Seconds())
			m.requestsTotal.WithLabelValues(strconv.Itoa(sw.status), cache).Inc()
		})
	}
}

// EventSinkMetrics returns an isr.EventSink that feeds the revalidation and
// cache counters. Wire it into the revalidator, tag manager, and ISR
// handler after installing the Prometheus middleware.
func EventSinkMetrics() isr.EventSink {
	return func(ev isr.Event) {
		globalMetricsMu.Lock()
		m := globalMetrics
		globalMetricsMu.Unlock()
		if m == nil {
			return
		}
		m.cacheEventsTotal.WithLabelValues(string(ev.Type)).Inc()
		switch ev.Type {
		case isr.EventRevalidateSuccess:
			m.revalidationsTotal.WithLabelValues("success").Inc()
		case isr.EventRevalidateError:
			m.revalidationsTotal.WithLabelValues("error").Inc()
		case isr.EventTagInvalidate:
			m.tagInvalidations.Inc()
		}
	}
}

// RecordQueueDepth records the current revalidation queue depth.
// Call it periodically with Revalidator.QueueLen().
func RecordQueueDepth(n int) {
	globalMetricsMu.Lock()
	m := globalMetrics
	globalMetricsMu.Unlock()
	if m != nil {
		m.queueDepth.Set(float64(n))
	}
}

// Collector exposes the metrics for use in custom registrations and tests.
type Collector struct {
	requestsTotal      *prometheus.CounterVec
	requestDuration    *prometheus.HistogramVec
	cacheEventsTotal   *prometheus.CounterVec
	revalidationsTotal *prometheus.CounterVec
	tagInvalidations   prometheus.Counter
	queueDepth         prometheus.Gauge
}

// GetMetrics returns the global metrics collector.
// Returns nil if Prometheus middleware has not been initialized.
func GetMetrics() *Collector {
	globalMetricsMu.Lock()
	defer globalMetricsMu.Unlock()
	if globalMetrics == nil {
		return nil
	}
	return &Collector{
		requestsTotal:      globalMetrics.requestsTotal,
		requestDuration:    globalMetrics.requestDuration,
		cacheEventsTotal:   globalMetrics.cacheEventsTotal,
		revalidationsTotal: globalMetrics.revalidationsTotal,
		tagInvalidations:   globalMetrics.tagInvalidations,
		queueDepth:         globalMetrics.queueDepth,
	}
}
