package report

import (
	"net/http"
	"time"

	"github.com/cyverse/lazyload-common/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusExporter implements MetricsExporter, publishes load events as Prometheus metrics
type PrometheusExporter struct {
	registry *prometheus.Registry

	Requests     prometheus.Counter
	CacheHits    prometheus.Counter
	Loads        *prometheus.CounterVec
	Failures     prometheus.Counter
	LoadDuration *prometheus.HistogramVec
}

// NewPrometheusExporter creates a new PrometheusExporter with its own registry
func NewPrometheusExporter(namespace string) *PrometheusExporter {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &PrometheusExporter{
		registry: registry,

		Requests: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Total number of resolved load requests",
		}),
		CacheHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of requests served from cache",
		}),
		Loads: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loads_total",
			Help:      "Total number of successful loads by priority",
		}, []string{"priority"}),
		Failures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "load_failures_total",
			Help:      "Total number of loads failed after all retries",
		}),
		LoadDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "load_duration_seconds",
			Help:      "Load duration in seconds by priority",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"priority"}),
	}
}

// Registry returns the registry holding the metrics
func (exporter *PrometheusExporter) Registry() *prometheus.Registry {
	return exporter.registry
}

// Handler returns an HTTP handler serving the metrics
func (exporter *PrometheusExporter) Handler() http.Handler {
	return promhttp.HandlerFor(exporter.registry, promhttp.HandlerOpts{})
}

// Release releases resources
func (exporter *PrometheusExporter) Release() {}

// ExportHit records a cache hit
func (exporter *PrometheusExporter) ExportHit() {
	exporter.Requests.Inc()
	exporter.CacheHits.Inc()
}

// ExportLoad records a successful load
func (exporter *PrometheusExporter) ExportLoad(duration time.Duration, priority types.Priority) {
	label := priority.OrDefault().String()

	exporter.Requests.Inc()
	exporter.Loads.WithLabelValues(label).Inc()
	exporter.LoadDuration.WithLabelValues(label).Observe(duration.Seconds())
}

// ExportFailure records a failed load
func (exporter *PrometheusExporter) ExportFailure() {
	exporter.Requests.Inc()
	exporter.Failures.Inc()
}
