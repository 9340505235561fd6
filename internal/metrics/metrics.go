package metrics

import "github.com/prometheus/client_golang/prometheus"

// Prometheus metrics for the dispatch core.
var (
	RiskAssessmentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "risk_assessments_total",
			Help: "Total number of risk assessments by resulting action",
		},
		[]string{"action"},
	)

	RateLimitExceededTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rate_limit_exceeded_total",
			Help: "Total number of requests that exceeded the per-IP rate limit",
		},
	)

	LinkageLookupFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "linkage_lookup_failures_total",
			Help: "Total number of device-linkage lookups that failed or timed out",
		},
	)

	OrderTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_transitions_total",
			Help: "Total number of committed order status transitions by target status",
		},
		[]string{"to"},
	)

	TransitionConflictsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "order_transition_conflicts_total",
			Help: "Total number of transitions lost to the optimistic lock",
		},
	)

	NotificationsDeliveredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_delivered_total",
			Help: "Total number of notification events delivered to handlers",
		},
		[]string{"role"},
	)

	NotificationHandlerFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "notification_handler_failures_total",
			Help: "Total number of notification handlers that panicked during delivery",
		},
	)

	AuditEventsDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "audit_events_dropped_total",
			Help: "Total number of audit records dropped because the queue was full",
		},
	)

	AuditWriteFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "audit_write_failures_total",
			Help: "Total number of audit records that failed to persist",
		},
	)
)

// Register registers all dispatch-core metrics with the default registry.
func Register() {
	prometheus.MustRegister(RiskAssessmentsTotal)
	prometheus.MustRegister(RateLimitExceededTotal)
	prometheus.MustRegister(LinkageLookupFailuresTotal)
	prometheus.MustRegister(OrderTransitionsTotal)
	prometheus.MustRegister(TransitionConflictsTotal)
	prometheus.MustRegister(NotificationsDeliveredTotal)
	prometheus.MustRegister(NotificationHandlerFailuresTotal)
	prometheus.MustRegister(AuditEventsDroppedTotal)
	prometheus.MustRegister(AuditWriteFailuresTotal)
}
