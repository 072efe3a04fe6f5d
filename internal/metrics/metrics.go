package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for filter fetches.
const (
	OutcomeLoaded     = "loaded"
	OutcomeEmpty      = "empty"
	OutcomeError      = "error"
	OutcomeSuperseded = "superseded"
	OutcomeCanceled   = "canceled"
)

// Metrics owns every collector exported by the moneyviz binaries. Each
// instance has its own registry so tests can build as many as they need.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests       *prometheus.CounterVec
	httpDuration       *prometheus.HistogramVec
	fetches            *prometheus.CounterVec
	fetchDuration      *prometheus.HistogramVec
	activeSessions     prometheus.Gauge
	seriesCache        *prometheus.CounterVec
	cacheSwept         *prometheus.CounterVec
	rateLimited        prometheus.Counter
	importedRecords    *prometheus.CounterVec
	importNotification *prometheus.CounterVec
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		httpRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "moneyviz_http_requests_total",
				Help: "Total number of HTTP requests served",
			},
			[]string{"method", "route", "status"},
		),
		httpDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "moneyviz_http_request_duration_milliseconds",
				Help:    "HTTP request duration in milliseconds",
				Buckets: prometheus.ExponentialBuckets(1, 2, 12),
			},
			[]string{"route"},
		),
		fetches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "moneyviz_filter_fetches_total",
				Help: "Backend fetches issued by filter clients, by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		fetchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "moneyviz_filter_fetch_duration_milliseconds",
				Help:    "Backend fetch duration in milliseconds",
				Buckets: prometheus.ExponentialBuckets(1, 2, 12),
			},
			[]string{"kind"},
		),
		activeSessions: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "moneyviz_active_sessions",
				Help: "Current number of live filter sessions",
			},
		),
		seriesCache: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "moneyviz_series_cache_lookups_total",
				Help: "Series cache lookups by result",
			},
			[]string{"result"},
		),
		cacheSwept: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "moneyviz_cache_expired_total",
				Help: "Expired cache entries removed by the sweeper",
			},
			[]string{"cache"},
		),
		rateLimited: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "moneyviz_rate_limited_total",
				Help: "Requests rejected by the rate limiter",
			},
		),
		importedRecords: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "moneyviz_imported_records_total",
				Help: "Statement rows processed by the importer",
			},
			[]string{"result"},
		),
		importNotification: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "moneyviz_import_notifications_total",
				Help: "Import-completed messages handled by the API",
			},
			[]string{"status"},
		),
	}
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// WriteTextfile writes the registry in the node_exporter textfile format.
// Short-lived commands such as the importer use it instead of serving
// /metrics.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}

// Registry returns the underlying registry, mostly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) RecordHTTPRequest(method, route string, status int, d time.Duration) {
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(route).Observe(float64(d.Milliseconds()))
}

func (m *Metrics) RecordFetch(kind, outcome string, d time.Duration) {
	m.fetches.WithLabelValues(kind, outcome).Inc()
	m.fetchDuration.WithLabelValues(kind).Observe(float64(d.Milliseconds()))
}

func (m *Metrics) SetActiveSessions(n int) {
	m.activeSessions.Set(float64(n))
}

func (m *Metrics) RecordSeriesCache(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.seriesCache.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordCacheSweep(cache string, removed int) {
	m.cacheSwept.WithLabelValues(cache).Add(float64(removed))
}

func (m *Metrics) RecordRateLimited() {
	m.rateLimited.Inc()
}

func (m *Metrics) RecordImport(inserted, skipped int) {
	m.importedRecords.WithLabelValues("inserted").Add(float64(inserted))
	m.importedRecords.WithLabelValues("skipped").Add(float64(skipped))
}

func (m *Metrics) RecordImportNotification(status string) {
	m.importNotification.WithLabelValues(status).Inc()
}
