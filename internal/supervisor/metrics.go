package supervisor

import "github.com/prometheus/client_golang/prometheus"

var (
	backendUp = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "animatic",
			Subsystem: "backend",
			Name:      "up",
			Help:      "1 while the supervised backend is healthy",
		},
	)

	backendStartsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "animatic",
			Subsystem: "backend",
			Name:      "starts_total",
			Help:      "Backend start attempts by outcome",
		},
		[]string{"outcome"},
	)

	backendUnexpectedExits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "animatic",
			Subsystem: "backend",
			Name:      "unexpected_exits_total",
			Help:      "Backend exits not requested by the supervisor",
		},
	)
)

func init() {
	prometheus.MustRegister(backendUp, backendStartsTotal, backendUnexpectedExits)
}
