package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pbs"

// NewRegistry returns a registry with the Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return registry
}

func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// routes are the only values the path label takes besides "other".
var routes = []string{
	"/healthz",
	"/readyz",
	"/metrics",
	"/openapi.yaml",
	"/v1/retrieve",
	"/v1/analyze",
	"/v1/index/rebuild",
	"/v1/index/status",
}

const otherRoute = "other"

// HTTPServerMetrics instruments the API with promhttp handlers curried by
// route, so label cardinality is fixed at construction.
type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge
	rejectedTotal   *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string, registry *prometheus.Registry) *HTTPServerMetrics {
	serviceLabel := prometheus.Labels{"service": service}
	m := &HTTPServerMetrics{
		registry: registry,
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "http",
			Name:        "requests_total",
			Help:        "Total HTTP requests processed.",
			ConstLabels: serviceLabel,
		}, []string{"path", "method", "code"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "http",
			Name:        "request_duration_seconds",
			Help:        "HTTP request duration in seconds.",
			ConstLabels: serviceLabel,
			Buckets:     prometheus.DefBuckets,
		}, []string{"path", "method"}),
		requestInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "http",
			Name:        "in_flight_requests",
			Help:        "Number of in-flight HTTP requests.",
			ConstLabels: serviceLabel,
		}),
		rejectedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "http",
			Name:        "rejected_total",
			Help:        "Requests rejected before reaching a handler, by reason.",
			ConstLabels: serviceLabel,
		}, []string{"reason"}),
	}
	registry.MustRegister(m.requestTotal, m.requestDuration, m.requestInFlight, m.rejectedTotal)
	return m
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return Handler(m.registry)
}

// Middleware counts and times every request under its route label.
func (m *HTTPServerMetrics) Middleware(next http.Handler) http.Handler {
	byRoute := make(map[string]http.Handler, len(routes)+1)
	for _, route := range append(routes, otherRoute) {
		byRoute[route] = m.instrument(route, next)
	}
	return promhttp.InstrumentHandlerInFlight(m.requestInFlight, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h, ok := byRoute[r.URL.Path]
		if !ok {
			h = byRoute[otherRoute]
		}
		h.ServeHTTP(w, r)
	}))
}

func (m *HTTPServerMetrics) instrument(route string, next http.Handler) http.Handler {
	label := prometheus.Labels{"path": route}
	return promhttp.InstrumentHandlerDuration(
		m.requestDuration.MustCurryWith(label),
		promhttp.InstrumentHandlerCounter(m.requestTotal.MustCurryWith(label), next),
	)
}

// RecordRejected counts a request turned away by rate limiting,
// backpressure or validation.
func (m *HTTPServerMetrics) RecordRejected(reason string) {
	m.rejectedTotal.WithLabelValues(reason).Inc()
}
