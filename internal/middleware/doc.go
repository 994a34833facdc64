// Observa - Enterprise Logging and Observability Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/observa

/*
Package middleware provides HTTP middleware for the ingest API.

Key Components:

  - Correlation: X-Correlation-ID, X-Request-ID and traceparent propagation
    into the request context
  - PrometheusMetrics: request count, duration and in-flight gauge
  - RequestTiming: one performance-channel record per request
  - Decompress: gzip request bodies

All middleware uses the http.HandlerFunc shape; the api package adapts it to
chi's r.Use.

Middleware Stack:

	Correlation(           // Layer 1: identifiers for every record
	    PrometheusMetrics( // Layer 2: metrics
	        RequestTiming(log)(
	            Decompress( // Layer 4: body decoding
	                handler,
	            ),
	        ),
	    ),
	)
*/
package middleware
