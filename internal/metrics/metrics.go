package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors exported by the service.
type Metrics struct {
	// HTTP
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Trending
	TrendingDuration prometheus.Histogram
	TrendingCache    *prometheus.CounterVec

	// Engagement
	EngagementTotal *prometheus.CounterVec
	EventsPublished *prometheus.CounterVec
	EventsDropped   prometheus.Counter
	LiveListeners   prometheus.Gauge

	// Retention
	VideosPurged prometheus.Counter

	gatherer prometheus.Gatherer
}

// New registers the service collectors on reg. Passing nil uses a fresh
// registry, which keeps tests independent of the global default.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Metrics{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cinevault_http_requests_total",
				Help: "Total number of HTTP requests served",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cinevault_http_request_duration_seconds",
				Help:    "Time taken to serve HTTP requests",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		TrendingDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "cinevault_trending_compute_duration_seconds",
				Help:    "Time taken to compute the trending ranking",
				Buckets: prometheus.DefBuckets,
			},
		),
		TrendingCache: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cinevault_trending_cache_total",
				Help: "Trending cache lookups by result",
			},
			[]string{"result"},
		),
		EngagementTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cinevault_engagement_total",
				Help: "Engagement toggles applied, by kind",
			},
			[]string{"kind"},
		),
		EventsPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cinevault_events_published_total",
				Help: "Engagement events handed to publishers, by sink and status",
			},
			[]string{"sink", "status"},
		),
		EventsDropped: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "cinevault_events_dropped_total",
				Help: "Engagement events dropped because the dispatch queue was full",
			},
		),
		LiveListeners: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "cinevault_live_listeners",
				Help: "Open websocket listeners",
			},
		),
		VideosPurged: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "cinevault_videos_purged_total",
				Help: "Trashed videos permanently deleted by the retention sweep",
			},
		),
		gatherer: reg,
	}
}

// Handler exposes the registered collectors in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
