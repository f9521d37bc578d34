package renderstream

import "github.com/prometheus/client_golang/prometheus"

var renderStreamsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "animatic",
		Subsystem: "render",
		Name:      "streams_total",
		Help:      "Completed render streams by outcome",
	},
	[]string{"outcome"},
)

func init() {
	prometheus.MustRegister(renderStreamsTotal)
}
