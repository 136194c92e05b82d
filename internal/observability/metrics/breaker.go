package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sony/gobreaker/v2"
)

// BreakerMetrics exports circuit breaker state per remote operation:
// 0 closed, 1 half-open, 2 open.
type BreakerMetrics struct {
	service     string
	state       *prometheus.GaugeVec
	transitions *prometheus.CounterVec
}

func NewBreakerMetrics(service string, registry prometheus.Registerer) *BreakerMetrics {
	state := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "circuit_breaker",
			Name:      "state",
			Help:      "Circuit breaker state by operation (0 closed, 1 half-open, 2 open).",
		},
		[]string{"service", "operation"},
	)
	transitions := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "circuit_breaker",
			Name:      "transitions_total",
			Help:      "Circuit breaker transitions by operation and target state.",
		},
		[]string{"service", "operation", "to"},
	)
	registry.MustRegister(state, transitions)
	return &BreakerMetrics{service: service, state: state, transitions: transitions}
}

// ObserveState matches resilience.StateObserver.
func (m *BreakerMetrics) ObserveState(operation string, _, to gobreaker.State) {
	m.state.WithLabelValues(m.service, operation).Set(breakerStateValue(to))
	m.transitions.WithLabelValues(m.service, operation, to.String()).Inc()
}

func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
