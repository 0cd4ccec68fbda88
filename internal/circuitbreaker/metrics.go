package circuitbreaker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	breakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "draftline_circuit_breaker_state",
			Help: "Current breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	breakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "draftline_circuit_breaker_requests_total",
			Help: "Requests through each breaker by state and result",
		},
		[]string{"name", "state", "result"},
	)

	breakerStateChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "draftline_circuit_breaker_state_changes_total",
			Help: "Breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)
)

func setStateGauge(name string, s State) {
	breakerState.WithLabelValues(name).Set(float64(s))
}

func recordRequest(name string, s State, success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	breakerRequests.WithLabelValues(name, s.String(), result).Inc()
}

func recordStateChange(name string, from, to State) {
	breakerStateChanges.WithLabelValues(name, from.String(), to.String()).Inc()
}
