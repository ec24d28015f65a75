package saga

import "github.com/prometheus/client_golang/prometheus"

var (
	ordersPlacedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "orders_placed_total",
			Help: "Total number of order placements by outcome",
		},
		[]string{"outcome"},
	)

	sagaCompensationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "saga_compensations_total",
			Help: "Total number of stock compensations by result",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(ordersPlacedTotal)
	prometheus.MustRegister(sagaCompensationsTotal)
}
