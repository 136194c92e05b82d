package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/pbs-retrieval/internal/core/domain"
)

// RetrievalMetrics records per-call retrieval measurements.
type RetrievalMetrics struct {
	service string

	requestsTotal    *prometheus.CounterVec
	stageDuration    *prometheus.HistogramVec
	backendOutcomes  *prometheus.CounterVec
	passagesReturned *prometheus.HistogramVec
	filterFacets     *prometheus.CounterVec
}

func NewRetrievalMetrics(service string, registry prometheus.Registerer) *RetrievalMetrics {
	requestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "retrieval",
			Name:      "requests_total",
			Help:      "Total retrieval calls by result status.",
		},
		[]string{"service", "status"},
	)
	stageDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "retrieval",
			Name:      "stage_duration_seconds",
			Help:      "Duration of each retrieval stage in seconds.",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"service", "stage"},
	)
	backendOutcomes := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "retrieval",
			Name:      "backend_outcomes_total",
			Help:      "Outcome of each retrieval backend per call.",
		},
		[]string{"service", "backend", "outcome"},
	)
	passagesReturned := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "retrieval",
			Name:      "passages_returned",
			Help:      "Distribution of passages returned per call.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13, 21},
		},
		[]string{"service"},
	)
	filterFacets := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "retrieval",
			Name:      "filter_facets_total",
			Help:      "Metadata facets used to filter retrieval calls.",
		},
		[]string{"service", "facet"},
	)

	registry.MustRegister(requestsTotal, stageDuration, backendOutcomes, passagesReturned, filterFacets)

	return &RetrievalMetrics{
		service:          service,
		requestsTotal:    requestsTotal,
		stageDuration:    stageDuration,
		backendOutcomes:  backendOutcomes,
		passagesReturned: passagesReturned,
		filterFacets:     filterFacets,
	}
}

func (m *RetrievalMetrics) ObserveRetrieval(result *domain.RetrievalResult, timings domain.StageTimings) {
	if result == nil {
		return
	}
	m.requestsTotal.WithLabelValues(m.service, string(result.Status)).Inc()

	for stage, d := range map[string]float64{
		"analyze": timings.Analyze.Seconds(),
		"vector":  timings.Vector.Seconds(),
		"lexical": timings.Lexical.Seconds(),
		"fusion":  timings.Fusion.Seconds(),
		"rerank":  timings.Rerank.Seconds(),
		"total":   timings.Total.Seconds(),
	} {
		m.stageDuration.WithLabelValues(m.service, stage).Observe(d)
	}

	m.observeOutcome("vector", result.Backends.Vector)
	m.observeOutcome("lexical", result.Backends.Lexical)
	m.observeOutcome("rerank", result.Backends.Rerank)

	m.passagesReturned.WithLabelValues(m.service).Observe(float64(len(result.Passages)))

	for _, facet := range result.Filter.Facets() {
		m.filterFacets.WithLabelValues(m.service, facet).Inc()
	}
}

func (m *RetrievalMetrics) observeOutcome(backend string, outcome domain.BackendOutcome) {
	if outcome == "" {
		return
	}
	m.backendOutcomes.WithLabelValues(m.service, backend, string(outcome)).Inc()
}
