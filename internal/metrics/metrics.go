// Package metrics exposes Prometheus counters for the two periodic jobs.
// The collectors register on the default registry; the admin web server
// serves them on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SchedulerTicks counts completed reminder scans.
	SchedulerTicks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "remindbot_scheduler_ticks_total",
		Help: "Number of completed reminder scheduler ticks.",
	})

	// NotificationsSent counts reminder messages delivered, by policy.
	NotificationsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "remindbot_notifications_sent_total",
		Help: "Number of reminder notifications delivered.",
	}, []string{"policy"})

	// NotificationErrors counts delivery failures.
	NotificationErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "remindbot_notification_errors_total",
		Help: "Number of reminder notifications that failed to deliver.",
	})

	// EventsExpired counts events auto-deleted after their time passed.
	EventsExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "remindbot_events_expired_total",
		Help: "Number of events deleted because their time had passed.",
	})

	// ContestsIngested counts contest events auto-registered.
	ContestsIngested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "remindbot_contests_ingested_total",
		Help: "Number of contest events inserted by the ingester.",
	})

	// ContestFetchErrors counts failed contest page fetch/parse runs.
	ContestFetchErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "remindbot_contest_fetch_errors_total",
		Help: "Number of contest ingestion runs skipped due to fetch or parse failure.",
	})
)
