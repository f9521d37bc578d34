package storyboard

import "github.com/prometheus/client_golang/prometheus"

var thumbnailJobsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "animatic",
		Subsystem: "storyboard",
		Name:      "thumbnail_jobs_total",
		Help:      "Finished thumbnail generations by outcome",
	},
	[]string{"outcome"},
)

func init() {
	prometheus.MustRegister(thumbnailJobsTotal)
}
