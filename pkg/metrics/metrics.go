// Package metrics provides Prometheus metrics for the Fern service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AssistantRunsTotal tracks assistant message runs by outcome
	AssistantRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "assistant",
			Name:      "runs_total",
			Help:      "Total number of assistant runs by outcome",
		},
		[]string{"workspace_id", "outcome"},
	)

	// AssistantRunDuration tracks assistant run duration in seconds
	AssistantRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fern",
			Subsystem: "assistant",
			Name:      "run_duration_seconds",
			Help:      "Duration of assistant runs in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"workspace_id"},
	)

	// LLMRequestsTotal tracks upstream model requests
	LLMRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "llm",
			Name:      "requests_total",
			Help:      "Total number of upstream model requests",
		},
		[]string{"model", "status"},
	)

	// LLMRequestDuration tracks upstream model request duration
	LLMRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fern",
			Subsystem: "llm",
			Name:      "request_duration_seconds",
			Help:      "Duration of upstream model requests in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"model"},
	)

	// ICUsChargedTotal tracks Intelligence Cost Units charged to workspaces
	ICUsChargedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "billing",
			Name:      "icus_charged_total",
			Help:      "Total Intelligence Cost Units charged",
		},
		[]string{"workspace_id", "action"},
	)

	// UsageRejectionsTotal tracks requests rejected by the usage meter
	UsageRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "billing",
			Name:      "usage_rejections_total",
			Help:      "Total requests rejected because the workspace hit its usage limit",
		},
		[]string{"workspace_id"},
	)

	// RateLimitHits tracks rate limit hits
	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "ratelimit",
			Name:      "hits_total",
			Help:      "Total number of rate limit hits",
		},
		[]string{"workspace_id", "limit_name"},
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

	// StripeWebhooksTotal tracks processed Stripe webhook events
	StripeWebhooksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "fern",
			Subsystem: "stripe",
			Name:      "webhooks_total",
			Help:      "Total number of Stripe webhook events by type and status",
		},
		[]string{"event_type", "status"},
	)

	// DatabaseQueryDuration tracks database query duration
	DatabaseQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "fern",
			Subsystem: "database",
			Name:      "query_duration_seconds",
			Help:      "Duration of database queries in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"operation"},
	)
)

// RecordAssistantRun records an assistant run metric
func RecordAssistantRun(workspaceID, outcome string, durationSeconds float64) {
	AssistantRunsTotal.WithLabelValues(workspaceID, outcome).Inc()
	AssistantRunDuration.WithLabelValues(workspaceID).Observe(durationSeconds)
}

// RecordLLMRequest records an upstream model request metric
func RecordLLMRequest(model, status string, durationSeconds float64) {
	LLMRequestsTotal.WithLabelValues(model, status).Inc()
	LLMRequestDuration.WithLabelValues(model).Observe(durationSeconds)
}

// RecordICUCharge records Intelligence Cost Units charged for an action
func RecordICUCharge(workspaceID, action string, icus float64) {
	ICUsChargedTotal.WithLabelValues(workspaceID, action).Add(icus)
}

// RecordKafkaPublish records a Kafka publish operation
func RecordKafkaPublish(topic, status string, durationSeconds float64) {
	KafkaMessagesPublished.WithLabelValues(topic, status).Inc()
	KafkaPublishDuration.Observe(durationSeconds)
}
