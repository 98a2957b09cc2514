package dispatch

import "github.com/prometheus/client_golang/prometheus"

// Failure propagation paths, used as metric label values.
const (
	pathHandled  = "handled"  // routed to the ErrorHandler
	pathSurfaced = "surfaced" // became the handle's failure
)

var (
	dispatchedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_calls_total",
			Help: "Total number of calls accepted for asynchronous execution.",
		},
		[]string{"contract"},
	)

	taskFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dispatch_task_failures_total",
			Help: "Total number of asynchronous call failures by propagation path.",
		},
		[]string{"path"},
	)

	runningTasks = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "dispatch_running_tasks",
			Help: "Number of dispatched tasks currently executing on pool workers.",
		},
	)
)

func init() {
	prometheus.MustRegister(dispatchedTotal)
	prometheus.MustRegister(taskFailuresTotal)
	prometheus.MustRegister(runningTasks)

	// Pre-initialize label combinations so they appear in /metrics
	// before the first dispatch.
	taskFailuresTotal.WithLabelValues(pathHandled)
	taskFailuresTotal.WithLabelValues(pathSurfaced)
}
