// Observa - Enterprise Logging and Observability Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/observa

/*
Package api provides the HTTP ingest API.

Remote producers submit records over HTTP; each one is emitted through the
enterprise logger with the request's correlation, so it is masked, queued
and routed exactly like a record emitted in-process.

Routes:

	POST /v1/logs   submit up to 1000 records (bearer token, gzip accepted)
	GET  /v1/stats  queue and delivery counters
	GET  /health    healthy, degraded (a SIEM breaker is open) or 503
	GET  /metrics   Prometheus exposition

Request body:

	{"records": [
	    {"level": "ERROR", "message": "payment failed", "fields": {"order": 7}},
	    {"channel": "audit", "event_type": "user.login", "status": "success"},
	    {"channel": "performance", "operation": "db.query", "duration_ms": 12.5}
	]}

A request is validated as a whole; either every record is emitted and the
response is 202 with the accepted count, or none is and the response is a
4xx error envelope.

Usage Example:

	router := api.NewRouter(logger, cfg.Service)
	srv := &http.Server{Addr: cfg.Service.ListenAddr, Handler: router.Handler()}
*/
package api
