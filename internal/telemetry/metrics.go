package telemetry

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once

	JobsSubmitted     = prometheus.NewCounter(prometheus.CounterOpts{Name: "provisioning_jobs_submitted_total", Help: "Bulk CSV jobs accepted by the gateway"})
	JobsCompleted     = prometheus.NewCounter(prometheus.CounterOpts{Name: "provisioning_jobs_completed_total", Help: "Bulk CSV jobs that reached COMPLETED"})
	JobsFailed        = prometheus.NewCounter(prometheus.CounterOpts{Name: "provisioning_jobs_failed_total", Help: "Bulk CSV jobs that reached FAILED"})
	RowsAccepted      = prometheus.NewCounter(prometheus.CounterOpts{Name: "provisioning_rows_accepted_total", Help: "CSV rows accepted for downstream processing"})
	RowsRejected      = prometheus.NewCounter(prometheus.CounterOpts{Name: "provisioning_rows_rejected_total", Help: "CSV rows rejected during ingestion"})
	UsersProvisioned  = prometheus.NewCounter(prometheus.CounterOpts{Name: "provisioning_users_created_total", Help: "Users created by the provisioning consumer"})
	DuplicatesSkipped = prometheus.NewCounter(prometheus.CounterOpts{Name: "provisioning_duplicates_skipped_total", Help: "Row messages dropped because the email already exists"})
	AssignmentsMade   = prometheus.NewCounter(prometheus.CounterOpts{Name: "provisioning_assignments_created_total", Help: "Account assignments created"})
	AccountsMissing   = prometheus.NewCounter(prometheus.CounterOpts{Name: "provisioning_accounts_missing_total", Help: "Referenced accounts that did not exist"})
	RateLimitRejects  = prometheus.NewCounter(prometheus.CounterOpts{Name: "provisioning_rate_limit_rejects_total", Help: "Submissions rejected by the rate limiter"})
	QueueDepthGauge   = prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: "provisioning_queue_depth", Help: "Pending messages per queue"}, []string{"queue"})
)

// Handler exposes the /metrics HTTP handler with a singleton registry.
func Handler() http.Handler {
	once.Do(func() {
		prometheus.MustRegister(
			JobsSubmitted,
			JobsCompleted,
			JobsFailed,
			RowsAccepted,
			RowsRejected,
			UsersProvisioned,
			DuplicatesSkipped,
			AssignmentsMade,
			AccountsMissing,
			RateLimitRejects,
			QueueDepthGauge,
		)
	})
	return promhttp.Handler()
}
