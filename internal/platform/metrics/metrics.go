// Package metrics declares the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AICallsTotal tracks completion calls per provider, operation and outcome
	AICallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smartnotes_ai_calls_total",
			Help: "Total number of AI completion calls",
		},
		[]string{"provider", "operation", "outcome"},
	)

	// AIRetriesTotal tracks retries per operation and triggering error type
	AIRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smartnotes_ai_retries_total",
			Help: "Total number of AI call retries",
		},
		[]string{"operation", "error_type"},
	)

	// AIFailuresTotal tracks operations that failed after all attempts
	AIFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smartnotes_ai_failures_total",
			Help: "Total number of AI operations that failed after retries",
		},
		[]string{"operation", "error_type", "severity"},
	)

	// AILatency tracks the wall time of a whole retried operation
	AILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "smartnotes_ai_operation_seconds",
			Help:    "AI operation latency in seconds, retries included",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// RegenerationsTotal tracks regeneration reservations by result
	RegenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smartnotes_regenerations_total",
			Help: "Total number of regeneration reservations",
		},
		[]string{"result"},
	)

	// HTTPRequestsTotal tracks API requests per route and status
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smartnotes_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	// HTTPLatency tracks API request latency
	HTTPLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "smartnotes_http_request_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// QueueDepth tracks pending background AI jobs
	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "smartnotes_ai_queue_depth",
			Help: "Number of queued background AI generation jobs",
		},
	)

	// JobRunsTotal tracks scheduled maintenance runs per job and outcome
	JobRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smartnotes_job_runs_total",
			Help: "Total number of scheduled job runs",
		},
		[]string{"job", "outcome"},
	)

	// PrunedRowsTotal tracks rows removed by housekeeping per table
	PrunedRowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "smartnotes_pruned_rows_total",
			Help: "Total number of rows deleted by housekeeping",
		},
		[]string{"table"},
	)
)
