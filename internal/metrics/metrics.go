// Package metrics holds the Prometheus collectors. Everything is
// registered on the default registry and served via /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	MessagesProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "radar_messages_processed_total",
		Help: "Chat messages run through the pipeline, by outcome.",
	}, []string{"outcome"}) // filtered, extracted, empty, failed

	ExtractionRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "radar_extraction_requests_total",
		Help: "Oracle calls, by backend and outcome.",
	}, []string{"backend", "outcome"}) // ok, error, unparseable

	ParseFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "radar_parse_failures_total",
		Help: "Oracle responses no parse strategy could salvage.",
	})

	ExtractionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "radar_extraction_duration_seconds",
		Help:    "Oracle round-trip latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"backend"})

	TermineReconciled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "radar_termine_reconciled_total",
		Help: "Reconciler decisions, by action.",
	}, []string{"action"}) // created, updated, cancelled, duplicate, discarded

	CalendarSyncs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "radar_calendar_syncs_total",
		Help: "Calendar operations, by status.",
	}, []string{"status"}) // auto, suggested, skipped, deleted, failed

	FeedbackRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "radar_feedback_recorded_total",
		Help: "User feedback on termine, by action.",
	}, []string{"action"})
)
