// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// InboundMessagesTotal tracks webhook ingestion outcomes.
	InboundMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inbox_inbound_messages_total",
			Help: "Inbound provider messages by channel and result",
		},
		[]string{"channel", "result"},
	)

	// IngestDuration tracks end-to-end ingestion latency.
	IngestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "inbox_ingest_duration_seconds",
			Help:    "Inbound message ingestion duration",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
	)

	// ResolutionRetriesTotal counts find-or-create retries caused by lost races.
	ResolutionRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "inbox_resolution_retries_total",
			Help: "Entity resolution retries after a uniqueness conflict",
		},
	)

	// ConversationsOpenedTotal tracks conversations created.
	ConversationsOpenedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inbox_conversations_opened_total",
			Help: "Conversations opened by source",
		},
		[]string{"source"},
	)

	// AuthzDecisionsTotal tracks authorization outcomes.
	AuthzDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inbox_authz_decisions_total",
			Help: "Authorization decisions by action and result",
		},
		[]string{"action", "result"},
	)

	// EventsPublishedTotal tracks inbox event publishing.
	EventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inbox_events_published_total",
			Help: "Inbox events published by type and result",
		},
		[]string{"type", "result"},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordInbound records the outcome of one ingestion.
func RecordInbound(channel, result string, duration float64) {
	InboundMessagesTotal.WithLabelValues(channel, result).Inc()
	IngestDuration.Observe(duration)
}

// RecordAuthz records an authorization decision.
func RecordAuthz(action string, allowed bool) {
	result := "deny"
	if allowed {
		result = "allow"
	}
	AuthzDecisionsTotal.WithLabelValues(action, result).Inc()
}
