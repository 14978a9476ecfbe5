// Telemetria - Behavioral Telemetry Analytics and Session Replay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telemetria

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus Metrics Integration for Production Observability
// This package provides instrumentation for:
// - Ingest endpoint throughput and batch sizing
// - Queue publish/consume lifecycle (NATS JetStream)
// - Per-event-type processing outcomes
// - Database query performance (DuckDB)
// - API endpoint latency and throughput

var (
	// Ingest Metrics
	IngestBatchesReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ingest_batches_received_total",
			Help: "Total number of telemetry batches accepted for enqueue",
		},
	)

	IngestBatchesRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_batches_rejected_total",
			Help: "Total number of telemetry batches rejected before enqueue",
		},
		[]string{"reason"}, // "validation", "too_large", "enqueue_timeout", "rate_limit"
	)

	IngestBatchSize = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ingest_batch_size_events",
			Help:    "Number of events per accepted batch",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
	)

	IngestBatchBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ingest_batch_size_bytes",
			Help:    "Wire size of accepted batches in bytes",
			Buckets: prometheus.ExponentialBuckets(256, 4, 10), // 256B .. ~64MB
		},
	)

	// Queue Metrics (NATS JetStream)
	QueueMessagesPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "queue_messages_published_total",
			Help: "Total number of batch messages published to the queue",
		},
	)

	QueuePublishErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "queue_publish_errors_total",
			Help: "Total number of failed queue publish attempts",
		},
	)

	QueueMessagesConsumed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "queue_messages_consumed_total",
			Help: "Total number of batch messages consumed from the queue",
		},
	)

	QueueMessagesProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "queue_messages_processed_total",
			Help: "Total number of batch messages successfully processed",
		},
	)

	QueueMessagesPoisoned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "queue_messages_poisoned_total",
			Help: "Total number of batch messages routed to the poison topic after retry exhaustion",
		},
	)

	QueueProcessingDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "queue_processing_duration_seconds",
			Help:    "Duration of batch message processing in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Worker Metrics
	EventsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_processed_total",
			Help: "Total number of events processed, by type and outcome",
		},
		[]string{"event_type", "outcome"}, // outcome: "stored", "duplicate", "failed", "unknown_type"
	)

	// Database Metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "duckdb_query_duration_seconds",
			Help:    "Duration of DuckDB queries in seconds",
			Buckets: prometheus.DefBuckets, // 0.005s, 0.01s, 0.025s, 0.05s, 0.1s, 0.25s, 0.5s, 1s, 2.5s, 5s, 10s
		},
		[]string{"operation", "table"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckdb_query_errors_total",
			Help: "Total number of DuckDB query errors",
		},
		[]string{"operation", "table"},
	)

	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Dead Letter Metrics
	DLQEntriesAdded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dlq_entries_added_total",
			Help: "Total number of exhausted batches persisted to the dead letter store",
		},
	)

	// System Metrics
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_info",
			Help: "Application version and build information",
		},
		[]string{"version", "go_version"},
	)

	AppUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "app_uptime_seconds",
			Help: "Application uptime in seconds",
		},
	)
)

// RecordDBQuery records a database query metric
func RecordDBQuery(operation, table string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
	if err != nil {
		DBQueryErrors.WithLabelValues(operation, table).Inc()
	}
}

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordIngest records an accepted batch
func RecordIngest(eventCount, byteSize int) {
	IngestBatchesReceived.Inc()
	IngestBatchSize.Observe(float64(eventCount))
	IngestBatchBytes.Observe(float64(byteSize))
}

// RecordIngestRejection records a batch rejected before enqueue
func RecordIngestRejection(reason string) {
	IngestBatchesRejected.WithLabelValues(reason).Inc()
}

// RecordQueuePublish records a queue publish attempt
func RecordQueuePublish(err error) {
	if err != nil {
		QueuePublishErrors.Inc()
		return
	}
	QueueMessagesPublished.Inc()
}

// RecordBatchProcessed records a fully processed batch message
func RecordBatchProcessed(duration time.Duration) {
	QueueMessagesProcessed.Inc()
	QueueProcessingDuration.Observe(duration.Seconds())
}

// RecordEvent records a single event processing outcome
func RecordEvent(eventType, outcome string) {
	EventsProcessed.WithLabelValues(eventType, outcome).Inc()
}

// TrackActiveRequest tracks active API requests
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}
