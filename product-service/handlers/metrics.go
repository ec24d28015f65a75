package handlers

import "github.com/prometheus/client_golang/prometheus"

var stockUpdatesTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "stock_updates_total",
		Help: "Total number of stock update requests",
	},
	[]string{"operation", "result"},
)

func init() {
	prometheus.MustRegister(stockUpdatesTotal)
}
