// Observa - Enterprise Logging and Observability Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/observa

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Pipeline Metrics
	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "observa_queue_depth",
			Help: "Current number of records waiting for the worker",
		},
	)

	QueueCapacity = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "observa_queue_capacity",
			Help: "Configured capacity of the record queue",
		},
	)

	RecordsEnqueued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "observa_records_enqueued_total",
			Help: "Total number of records accepted onto the queue",
		},
		[]string{"channel", "level"},
	)

	RecordsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "observa_records_dropped_total",
			Help: "Total number of records dropped because the queue was full",
		},
		[]string{"channel"},
	)

	RecordsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "observa_records_rejected_total",
			Help: "Total number of records rejected after shutdown began",
		},
		[]string{"channel"},
	)

	RecordsFiltered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "observa_records_filtered_total",
			Help: "Total number of records removed by level filtering or sampling",
		},
		[]string{"channel", "reason"}, // reason: "level", "sampled"
	)

	RecordsLostAtShutdown = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "observa_records_lost_at_shutdown_total",
			Help: "Total number of queued records abandoned when shutdown timed out",
		},
	)

	// Sink Metrics
	SinkWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "observa_sink_writes_total",
			Help: "Total number of records written to channel files",
		},
		[]string{"stream"},
	)

	SinkErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "observa_sink_errors_total",
			Help: "Total number of failed channel file writes",
		},
		[]string{"stream"},
	)

	SinkRotations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "observa_sink_rotations_total",
			Help: "Total number of time-based file rotations",
		},
		[]string{"stream"},
	)

	// SIEM Delivery Metrics
	SIEMBatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "observa_siem_batches_total",
			Help: "Total number of SIEM batches by final outcome",
		},
		[]string{"adapter", "result"}, // result: "success", "failure", "rejected", "spooled", "dropped"
	)

	SIEMRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "observa_siem_records_total",
			Help: "Total number of records by SIEM delivery outcome",
		},
		[]string{"adapter", "result"},
	)

	SIEMAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "observa_siem_attempts_total",
			Help: "Total number of SIEM delivery attempts including retries",
		},
		[]string{"adapter", "result"}, // result: "success", "failure"
	)

	SIEMSendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "observa_siem_send_duration_seconds",
			Help:    "Duration of SIEM batch deliveries including retries",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"adapter"},
	)

	SIEMBatchSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "observa_siem_batch_size",
			Help:    "Number of records per SIEM batch",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"adapter"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "observa_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "observa_circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerConsecutiveFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "observa_circuit_breaker_consecutive_failures",
			Help: "Current number of consecutive failures",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "observa_circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// Overflow Spool Metrics
	SpoolDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "observa_spool_batches",
			Help: "Current number of batches held while a breaker is open",
		},
		[]string{"adapter", "policy"},
	)

	SpoolReplayed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "observa_spool_replayed_total",
			Help: "Total number of held batches handed back for delivery",
		},
		[]string{"adapter"},
	)

	SpoolEvicted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "observa_spool_evicted_total",
			Help: "Total number of held batches evicted by the overflow limit",
		},
		[]string{"adapter"},
	)

	// Alert Metrics
	AlertsFired = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "observa_alerts_fired_total",
			Help: "Total number of threshold alerts written to the security channel",
		},
		[]string{"alert"}, // "error_rate", "queue_utilization", "dropped_records"
	)

	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "observa_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "observa_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "observa_api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "observa_api_rate_limit_hits_total",
			Help: "Total number of rate limit rejections",
		},
		[]string{"endpoint"},
	)

	APIIngestedRecords = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "observa_api_ingested_records_total",
			Help: "Total number of records received through POST /v1/logs",
		},
		[]string{"channel"},
	)

	// Configuration Metrics
	ConfigReloads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "observa_config_reloads_total",
			Help: "Total number of profile reloads",
		},
		[]string{"result"}, // "success", "failure"
	)

	// Application Info
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "observa_info",
			Help: "Application information",
		},
		[]string{"version", "go_version", "environment"},
	)
)

// RecordEnqueued counts an accepted record.
func RecordEnqueued(channel, level string) {
	RecordsEnqueued.WithLabelValues(channel, level).Inc()
}

// RecordDropped counts a record dropped on a full queue.
func RecordDropped(channel string) {
	RecordsDropped.WithLabelValues(channel).Inc()
}

// RecordRejected counts a record emitted after shutdown began.
func RecordRejected(channel string) {
	RecordsRejected.WithLabelValues(channel).Inc()
}

// RecordFiltered counts a record removed before masking.
func RecordFiltered(channel, reason string) {
	RecordsFiltered.WithLabelValues(channel, reason).Inc()
}

// UpdateQueue sets the queue gauges.
func UpdateQueue(depth, capacity int) {
	QueueDepth.Set(float64(depth))
	QueueCapacity.Set(float64(capacity))
}

// RecordSinkWrite records the outcome of one file write.
func RecordSinkWrite(stream string, err error) {
	if err != nil {
		SinkErrors.WithLabelValues(stream).Inc()
		return
	}
	SinkWrites.WithLabelValues(stream).Inc()
}

// RecordSIEMAttempt records one delivery attempt.
func RecordSIEMAttempt(adapter string, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	SIEMAttempts.WithLabelValues(adapter, result).Inc()
}

// RecordSIEMBatch records the final outcome of a batch.
func RecordSIEMBatch(adapter, result string, size int, duration time.Duration) {
	SIEMBatches.WithLabelValues(adapter, result).Inc()
	SIEMRecords.WithLabelValues(adapter, result).Add(float64(size))
	if result == "success" || result == "failure" {
		SIEMSendDuration.WithLabelValues(adapter).Observe(duration.Seconds())
		SIEMBatchSize.WithLabelValues(adapter).Observe(float64(size))
	}
}

// BreakerStateValue maps a breaker state name to the gauge value.
func BreakerStateValue(state string) float64 {
	switch state {
	case "half-open", "HALF_OPEN":
		return 1
	case "open", "OPEN":
		return 2
	default:
		return 0
	}
}

// RecordBreakerTransition updates the state gauge and transition counter.
func RecordBreakerTransition(name, from, to string) {
	CircuitBreakerState.WithLabelValues(name).Set(BreakerStateValue(to))
	CircuitBreakerTransitions.WithLabelValues(name, from, to).Inc()
}

// RecordAPIRequest records API request metrics.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest increments or decrements active request counter.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordConfigReload counts a reload attempt.
func RecordConfigReload(err error) {
	if err != nil {
		ConfigReloads.WithLabelValues("failure").Inc()
		return
	}
	ConfigReloads.WithLabelValues("success").Inc()
}

// StatusLabel formats an HTTP status code as a label value.
func StatusLabel(code int) string {
	return strconv.Itoa(code)
}
