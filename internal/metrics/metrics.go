package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Inbound webhook metrics
	WebhooksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "issuemirror_webhooks_total",
			Help: "Total number of webhook deliveries received",
		},
		[]string{"object_kind", "outcome"},
	)

	// Reconciliation metrics
	ReconciliationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "issuemirror_reconciliations_total",
			Help: "Total number of reconciliation attempts by action and outcome",
		},
		[]string{"action", "outcome"},
	)

	ReconcileDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "issuemirror_reconcile_duration_seconds",
			Help:    "End-to-end duration of one reconciliation in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	LookupFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "issuemirror_lookup_failures_total",
			Help: "Lookups that failed and were treated as not found",
		},
	)

	LockWaitDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "issuemirror_lock_wait_seconds",
			Help:    "Time spent waiting for the per-issue lock",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Notion API metrics
	NotionRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "issuemirror_notion_request_duration_seconds",
			Help:    "Duration of Notion API calls in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "status"},
	)

	// Rate limiting metrics
	RateLimitHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "issuemirror_rate_limit_hits_total",
			Help: "Total number of webhook deliveries rejected by the rate limiter",
		},
	)

	// Dead letter metrics
	DeadLettersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "issuemirror_dead_letters_total",
			Help: "Failed reconciliations handed to the dead letter queue",
		},
		[]string{"result"},
	)
)
