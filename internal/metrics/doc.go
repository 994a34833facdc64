// Observa - Enterprise Logging and Observability Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/observa

/*
Package metrics provides Prometheus metrics for the logging pipeline.

All collectors are registered on the default registry through promauto and
exposed at GET /metrics by the ingest API:

	curl http://localhost:8740/metrics

# Available Metrics

Pipeline:
  - observa_queue_depth, observa_queue_capacity (gauges)
  - observa_records_enqueued_total{channel,level}
  - observa_records_dropped_total{channel}: queue full
  - observa_records_rejected_total{channel}: emitted after shutdown began
  - observa_records_filtered_total{channel,reason}: level filter or sampling
  - observa_records_lost_at_shutdown_total

Sinks:
  - observa_sink_writes_total{stream}, observa_sink_errors_total{stream}
  - observa_sink_rotations_total{stream}: midnight rotations

SIEM delivery:
  - observa_siem_batches_total{adapter,result}
  - observa_siem_records_total{adapter,result}
  - observa_siem_attempts_total{adapter,result}
  - observa_siem_send_duration_seconds{adapter} (histogram)
  - observa_siem_batch_size{adapter} (histogram)

Circuit breakers (one per adapter):
  - observa_circuit_breaker_state{name}: 0=closed, 1=half-open, 2=open
  - observa_circuit_breaker_requests_total{name,result}
  - observa_circuit_breaker_consecutive_failures{name}
  - observa_circuit_breaker_state_transitions_total{name,from_state,to_state}

Overflow:
  - observa_spool_batches{adapter,policy}
  - observa_spool_replayed_total{adapter}, observa_spool_evicted_total{adapter}

Alerts, API and configuration:
  - observa_alerts_fired_total{alert}
  - observa_api_requests_total, observa_api_request_duration_seconds,
    observa_api_active_requests, observa_api_rate_limit_hits_total,
    observa_api_ingested_records_total
  - observa_config_reloads_total{result}
  - observa_info{version,go_version,environment}

# Example Queries

Drop rate per channel:

	rate(observa_records_dropped_total[5m])

Adapters with an open breaker:

	observa_circuit_breaker_state == 2
*/
package metrics
