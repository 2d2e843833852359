package observability

import "github.com/prometheus/client_golang/prometheus"

// Domain counters. HTTP metrics live in the middleware package.
var (
	// StorePersistFailures counts writes to the persistence gateway that
	// failed after the in-memory mutation was applied.
	StorePersistFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_persist_failures_total",
			Help: "Persistence gateway writes that failed, by collection.",
		},
		[]string{"collection"},
	)

	// NotificationsScheduled counts deadline reminders accepted by the scheduler.
	NotificationsScheduled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_scheduled_total",
			Help: "Deadline notifications scheduled, by outcome.",
		},
		[]string{"outcome"},
	)

	// NotificationsDelivered counts reminders handed to the sink.
	NotificationsDelivered = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "notifications_delivered_total",
			Help: "Deadline notifications delivered to the sink.",
		},
	)

	// SpecialistReplies counts automatic specialist replies appended to chats.
	SpecialistReplies = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "specialist_replies_total",
			Help: "Specialist replies appended to chats.",
		},
	)
)

func init() {
	prometheus.MustRegister(StorePersistFailures, NotificationsScheduled, NotificationsDelivered, SpecialistReplies)
}
