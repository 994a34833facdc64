// Observa - Enterprise Logging and Observability Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/observa

// Package siem exports formatted, masked records to SIEM backends.
//
// # Adapters
//
// Every backend implements Adapter. NewAdapter selects one by provider name:
//
//   - elasticsearch: _bulk NDJSON with content-derived document IDs,
//     "Authorization: ApiKey" authentication
//   - datadog: HTTP log intake v2, DD-API-KEY header
//   - splunk: HTTP Event Collector, "Authorization: Splunk" token
//   - cloudwatch: PutLogEvents through aws-sdk-go-v2
//   - nats: one NDJSON message per batch on a core NATS subject
//
// HTTP responses of 408, 429 and 5xx are retryable; other 4xx responses are
// wrapped with backoff.Permanent so the Deliverer stops early.
//
// # Delivery
//
// The Dispatcher keeps one batch per adapter, sent when it reaches
// batch_size or when it is older than flush_interval. Each send consults
// the adapter's CircuitBreaker first:
//
//	CLOSED ──threshold consecutive failures──▶ OPEN
//	OPEN ──cool-down elapsed──▶ HALF_OPEN (one probe admitted)
//	HALF_OPEN ──probe succeeds──▶ CLOSED
//	HALF_OPEN ──probe fails──▶ OPEN
//
// While OPEN no network call is made. The batch goes to the overflow
// policy: dropped, held in memory (buffer) or written to the Badger spool
// (spool). A diagnostic is logged at most every 30s per adapter. Held
// batches are replayed on Tick once the breaker admits requests.
//
// Admitted batches go through a Deliverer: exponential backoff
// (cenkalti/backoff/v4), max_attempts attempts, each bounded by timeout.
// Every failed attempt is logged at WARNING, the final failure at ERROR,
// and the outcome is reported to the breaker once per batch.
//
// The Dispatcher is owned by the logger's worker goroutine. Only
// BreakerStates and SpoolDepths may be called concurrently.
package siem
