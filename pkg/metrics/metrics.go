// Package metrics exposes Prometheus collectors for the resolvers and the proxy.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ytaudio"

// Outcome labels.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
	OutcomeEmpty = "empty"
	OutcomeBot   = "bot_blocked"
)

// Metrics groups every collector the service records into.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	extractions        *prometheus.CounterVec
	extractionDuration prometheus.Histogram
	strategies         *prometheus.CounterVec
	searches           *prometheus.CounterVec
	proxyRequests      *prometheus.CounterVec
	proxyBytes         prometheus.Counter
	httpRequests       *prometheus.CounterVec
	httpDuration       *prometheus.HistogramVec
}

// New creates the collectors on a fresh registry that also carries the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		extractions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extraction_attempts_total",
			Help:      "Extraction engine invocations by outcome.",
		}, []string{"outcome"}),
		extractionDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "extraction_duration_seconds",
			Help:      "Wall time of a single extraction engine invocation.",
			Buckets:   []float64{0.5, 1, 2, 4, 8, 16, 32},
		}),
		strategies: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stream_strategy_results_total",
			Help:      "Stream resolution strategy attempts by strategy and outcome.",
		}, []string{"strategy", "outcome"}),
		searches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_results_total",
			Help:      "Search resolutions by answering source and outcome.",
		}, []string{"source", "outcome"}),
		proxyRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "proxy_requests_total",
			Help:      "Proxied upstream fetches by handler type and outcome.",
		}, []string{"type", "outcome"}),
		proxyBytes: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "proxy_bytes_total",
			Help:      "Bytes streamed to clients through the proxy.",
		}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method and status code.",
		}, []string{"method", "code"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Time to serve HTTP requests.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Gatherer exposes the underlying registry, mostly for tests.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// ObserveExtraction records one extraction engine run.
func (m *Metrics) ObserveExtraction(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.extractions.WithLabelValues(outcome).Inc()
	m.extractionDuration.Observe(d.Seconds())
}

// ObserveStrategy records one stream strategy attempt.
func (m *Metrics) ObserveStrategy(strategy, outcome string) {
	if m == nil {
		return
	}
	m.strategies.WithLabelValues(strategy, outcome).Inc()
}

// ObserveSearch records which source answered a search.
func (m *Metrics) ObserveSearch(source, outcome string) {
	if m == nil {
		return
	}
	m.searches.WithLabelValues(source, outcome).Inc()
}

// ObserveProxy records one proxied fetch.
func (m *Metrics) ObserveProxy(handlerType, outcome string) {
	if m == nil {
		return
	}
	m.proxyRequests.WithLabelValues(handlerType, outcome).Inc()
}

// AddProxyBytes counts bytes copied to a client.
func (m *Metrics) AddProxyBytes(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.proxyBytes.Add(float64(n))
}

// ObserveHTTP records a served HTTP request.
func (m *Metrics) ObserveHTTP(method string, code int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, statusText(code)).Inc()
	m.httpDuration.WithLabelValues(method).Observe(d.Seconds())
}

func statusText(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	case code >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
