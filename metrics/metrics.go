// Package metrics registers the process-wide Prometheus collectors the
// ingress /metrics endpoint serves. Collectors are package-level and
// registered in init rather than threading a registry handle through
// every package.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// JobsProcessed counts completed+failed job outcomes by table and
	// terminal status.
	JobsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loyaltyledger_jobs_processed_total",
			Help: "Job processing outcomes by table and terminal status.",
		},
		[]string{"table", "status"},
	)

	// JobsRescheduled counts retryable failures that were rescheduled
	// rather than finalized.
	JobsRescheduled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loyaltyledger_jobs_rescheduled_total",
			Help: "Job processing attempts that ended in a backoff reschedule.",
		},
		[]string{"table"},
	)

	// NotificationDeliveryAttempts counts outbox delivery attempts by
	// outcome.
	NotificationDeliveryAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "loyaltyledger_notification_delivery_attempts_total",
			Help: "Outbox webhook delivery attempts by outcome.",
		},
		[]string{"outcome"},
	)

	// SettlementRunDuration observes how long one settlement pass took.
	SettlementRunDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name: "loyaltyledger_settlement_run_duration_seconds",
			Help: "Wall time of one settlement reporter run.",
		},
	)
)

func init() {
	prometheus.MustRegister(JobsProcessed)
	prometheus.MustRegister(JobsRescheduled)
	prometheus.MustRegister(NotificationDeliveryAttempts)
	prometheus.MustRegister(SettlementRunDuration)
}
