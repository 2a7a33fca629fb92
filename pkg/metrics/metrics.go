// Package metrics provides Prometheus metrics for the Fern service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EventsProcessed tracks inbound Instagram events by type and outcome
	EventsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "events",
			Name:      "processed_total",
			Help:      "Total number of inbound events processed by type and status",
		},
		[]string{"type", "status"},
	)

	// EventProcessingDuration tracks end-to-end event handling duration
	EventProcessingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fern",
			Subsystem: "events",
			Name:      "processing_duration_seconds",
			Help:      "Duration of inbound event handling in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"type"},
	)

	// AutomationMatches tracks keyword matches by listener type
	AutomationMatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "automations",
			Name:      "matches_total",
			Help:      "Total number of automations matched by listener type",
		},
		[]string{"listener_type"},
	)

	// Dispatches tracks reply dispatches by channel and outcome
	Dispatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "dispatch",
			Name:      "messages_total",
			Help:      "Total number of reply dispatches by channel and status",
		},
		[]string{"channel", "status"},
	)

	// TokenExchanges tracks authorization code exchanges
	TokenExchanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "tokens",
			Name:      "exchanges_total",
			Help:      "Total number of authorization code exchanges",
		},
		[]string{"status"},
	)

	// TokenRefreshes tracks token refresh operations
	TokenRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "tokens",
			Name:      "refreshes_total",
			Help:      "Total number of token refresh operations",
		},
		[]string{"status"},
	)

	// MediaFetches tracks media listing calls, including expired-token retries
	MediaFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "media",
			Name:      "fetches_total",
			Help:      "Total number of media fetches by status",
		},
		[]string{"status"},
	)

	// QueueJobsProcessed tracks jobs processed from the queue
	QueueJobsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "queue",
			Name:      "jobs_processed_total",
			Help:      "Total number of jobs processed from the queue",
		},
		[]string{"status"},
	)

	// QueueJobsInFlight tracks jobs currently being processed
	QueueJobsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "fern",
			Subsystem: "queue",
			Name:      "jobs_in_flight",
			Help:      "Number of jobs currently being processed",
		},
	)

	// DLQJobsTotal tracks jobs sent to the dead letter queue
	DLQJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "dlq",
			Name:      "jobs_total",
			Help:      "Total number of jobs sent to dead letter queue",
		},
		[]string{"reason"},
	)

	// SchedulerRefreshesScheduled tracks proactive token refreshes kicked off
	SchedulerRefreshesScheduled = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "scheduler",
			Name:      "refreshes_scheduled_total",
			Help:      "Total number of proactive token refreshes scheduled",
		},
	)

	// RateLimitHits tracks rate limit hits
	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "ratelimit",
			Name:      "hits_total",
			Help:      "Total number of rate limit hits",
		},
		[]string{"account_id"},
	)

	// KafkaMessagesPublished tracks Kafka messages published
	KafkaMessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "kafka",
			Name:      "messages_published_total",
			Help:      "Total number of messages published to Kafka",
		},
		[]string{"topic", "status"},
	)

	// KafkaPublishDuration tracks Kafka publish duration
	KafkaPublishDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "fern",
			Subsystem: "kafka",
			Name:      "publish_duration_seconds",
			Help:      "Duration of Kafka publish operations in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
		},
	)
)

// RecordEvent records an inbound event processing metric
func RecordEvent(eventType, status string, durationSeconds float64) {
	EventsProcessed.WithLabelValues(eventType, status).Inc()
	EventProcessingDuration.WithLabelValues(eventType).Observe(durationSeconds)
}

// RecordDispatch records a reply dispatch metric
func RecordDispatch(channel, status string) {
	Dispatches.WithLabelValues(channel, status).Inc()
}

// RecordQueueJob records a queue job processing metric
func RecordQueueJob(status string) {
	QueueJobsProcessed.WithLabelValues(status).Inc()
}

// RecordDLQJob records a dead letter queue job
func RecordDLQJob(reason string) {
	DLQJobsTotal.WithLabelValues(reason).Inc()
}

// RecordKafkaPublish records a Kafka publish operation
func RecordKafkaPublish(topic, status string, durationSeconds float64) {
	KafkaMessagesPublished.WithLabelValues(topic, status).Inc()
	KafkaPublishDuration.Observe(durationSeconds)
}
