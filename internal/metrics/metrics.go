package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Queue job outcomes: success, retry, dropped, unhandled.
	JobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dailyplan_jobs_total",
			Help: "Sync jobs processed by type and outcome",
		},
		[]string{"type", "result"},
	)

	// Failure reasons reported by the provider classifiers.
	JobFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dailyplan_job_failures_total",
			Help: "Failed job attempts by provider and classified reason",
		},
		[]string{"provider", "reason"},
	)

	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dailyplan_job_duration_seconds",
			Help:    "Sync job handler duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
		},
		[]string{"type"},
	)

	CalendarSyncEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dailyplan_calendar_sync_events_total",
			Help: "Calendar events reconciled by kind",
		},
		[]string{"kind"}, // kind: created, updated, deleted
	)

	WebhookNotifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dailyplan_webhook_notifications_total",
			Help: "Calendar push notifications by result",
		},
		[]string{"result"},
	)

	PlanCommits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dailyplan_plan_commits_total",
			Help: "Plan commits by outcome",
		},
		[]string{"status"}, // status: success, failed
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dailyplan_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"method", "path", "status"},
	)
)

func RecordJob(jobType, result string, duration time.Duration) {
	JobsTotal.WithLabelValues(jobType, result).Inc()
	if duration > 0 {
		JobDuration.WithLabelValues(jobType).Observe(duration.Seconds())
	}
}

func RecordJobFailure(provider, reason string) {
	JobFailures.WithLabelValues(provider, reason).Inc()
}

// RecordSyncEvents adds the counts of one incremental sync.
func RecordSyncEvents(created, updated, deleted int) {
	CalendarSyncEvents.WithLabelValues("created").Add(float64(created))
	CalendarSyncEvents.WithLabelValues("updated").Add(float64(updated))
	CalendarSyncEvents.WithLabelValues("deleted").Add(float64(deleted))
}

func IncrementWebhook(result string) {
	WebhookNotifications.WithLabelValues(result).Inc()
}

func IncrementPlanCommit(status string) {
	PlanCommits.WithLabelValues(status).Inc()
}

func RecordHTTPRequestDuration(method, path string, status int, duration time.Duration) {
	HTTPRequestDuration.WithLabelValues(method, path, strconv.Itoa(status)).Observe(duration.Seconds())
}
