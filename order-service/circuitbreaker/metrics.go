package circuitbreaker

import "github.com/prometheus/client_golang/prometheus"

var (
	breakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Current circuit breaker state (0=closed, 1=open, 2=half-open)",
		},
		[]string{"name"},
	)

	breakerCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_calls_total",
			Help: "Total number of calls through a circuit breaker by result",
		},
		[]string{"name", "result"},
	)
)

func init() {
	prometheus.MustRegister(breakerState)
	prometheus.MustRegister(breakerCalls)
}

func recordState(name string, s State) {
	breakerState.WithLabelValues(name).Set(float64(s))
}

func recordCall(name, result string) {
	breakerCalls.WithLabelValues(name, result).Inc()
}
