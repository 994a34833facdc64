// Observa - Enterprise Logging and Observability Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/observa

// Package logging holds the two pieces every other Observa package leans on:
// the diagnostic (fallback) logger and correlation-context propagation.
//
// # Diagnostic Logger
//
// The diagnostic logger is a process-global zerolog.Logger writing to stderr.
// It is the "always available" stream: sink write failures, SIEM retry
// attempts, circuit breaker transitions, dropped records and records lost at
// shutdown are reported here. It is never used for the records producers
// emit; those travel through the enterprise pipeline.
//
//	logging.Init(logging.Config{Level: "info", Format: "json"})
//	logging.Warn().Str("adapter", "splunk").Err(err).Msg("SIEM send attempt failed")
//
// High-frequency diagnostics go through Throttle so a failing disk or an
// open circuit does not amplify into a log storm:
//
//	logging.Throttle("sink.application", 30*time.Second).Do(func() {
//	    logging.Error().Err(err).Msg("application sink write failed")
//	})
//
// # Correlation Context
//
// A Correlation (correlation_id, request_id, trace_id, user_context) travels
// inside context.Context. Setters return a derived context, so goroutines
// started with that context inherit the values while sibling units of work
// that derived their own context never see each other's IDs.
//
//	ctx := logging.BeginUnit(context.Background(), map[string]any{"suite": "checkout"})
//	defer func() { ctx = logging.Clear(ctx) }()
//
//	go worker(ctx) // inherits the same correlation
//
// Ctx(ctx) returns a diagnostic logger enriched with the active correlation.
//
// # slog Adapter
//
// SlogHandler lets libraries that speak log/slog (suture via sutureslog)
// write through zerolog, carrying correlation fields from the context.
package logging
