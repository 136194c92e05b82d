package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// IndexMetrics tracks keyword index builds.
type IndexMetrics struct {
	service string

	buildTotal       *prometheus.CounterVec
	buildDuration    *prometheus.HistogramVec
	indexedPassages  prometheus.Gauge
	lastBuildSuccess prometheus.Gauge
}

func NewIndexMetrics(service string, registry prometheus.Registerer) *IndexMetrics {
	buildTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "keyword_index",
			Name:      "build_total",
			Help:      "Total keyword index builds by status.",
		},
		[]string{"service", "status"},
	)
	buildDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "keyword_index",
			Name:      "build_duration_seconds",
			Help:      "Keyword index build duration in seconds by status.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"service", "status"},
	)
	indexedPassages := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "keyword_index",
			Name:        "passages",
			Help:        "Number of passages in the serving keyword index.",
			ConstLabels: prometheus.Labels{"service": service},
		},
	)
	lastBuildSuccess := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "keyword_index",
			Name:        "last_success_timestamp_seconds",
			Help:        "Unix time of the last successful keyword index build.",
			ConstLabels: prometheus.Labels{"service": service},
		},
	)

	registry.MustRegister(buildTotal, buildDuration, indexedPassages, lastBuildSuccess)

	return &IndexMetrics{
		service:          service,
		buildTotal:       buildTotal,
		buildDuration:    buildDuration,
		indexedPassages:  indexedPassages,
		lastBuildSuccess: lastBuildSuccess,
	}
}

// ObserveIndexBuild records a build. An empty corpus counts as "empty" and
// leaves the passage gauge untouched, since the previous index keeps serving.
func (m *IndexMetrics) ObserveIndexBuild(passages int, duration time.Duration, err error) {
	status := "success"
	switch {
	case err != nil:
		status = "error"
	case passages == 0:
		status = "empty"
	}

	m.buildTotal.WithLabelValues(m.service, status).Inc()
	m.buildDuration.WithLabelValues(m.service, status).Observe(duration.Seconds())
	if status == "success" {
		m.indexedPassages.Set(float64(passages))
		m.lastBuildSuccess.SetToCurrentTime()
	}
}

// NewEmbeddingCacheCounter registers the embedding cache hit/miss counter.
func NewEmbeddingCacheCounter(registry prometheus.Registerer) *prometheus.CounterVec {
	counter := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "embedding_cache",
			Name:      "requests_total",
			Help:      "Query embedding cache lookups by result.",
		},
		[]string{"result"},
	)
	registry.MustRegister(counter)
	return counter
}
