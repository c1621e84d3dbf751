package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "videoworker"

var (
	JobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_total",
			Help:      "Total number of jobs handled, labeled by workflow variant and outcome.",
		},
		[]string{"workflow", "outcome"},
	)

	StageDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Time spent in each pipeline stage (seconds).",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60, 120, 300, 600, 1800},
		},
		[]string{"stage"},
	)

	ConnectAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connect_attempts_total",
			Help:      "Total number of engine connection attempts, labeled by stage.",
		},
		[]string{"stage"},
	)

	JobsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "jobs_in_flight",
			Help:      "Number of jobs currently running.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		JobsTotal,
		StageDurationSeconds,
		ConnectAttemptsTotal,
		JobsInFlight,
	)
}
