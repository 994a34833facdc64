// Observa - Enterprise Logging and Observability Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/observa

package middleware

import (
	"context"
	"net/http"
	"time"
)

// PerformanceEmitter receives one performance record per request.
// *enterprise.Logger implements it.
type PerformanceEmitter interface {
	Performance(ctx context.Context, operation string, duration time.Duration, details map[string]any)
}

// RequestTiming emits a performance record for every request, named
// "http <METHOD> <route pattern>". Place it inside Correlation so the record
// carries the request's identifiers.
func RequestTiming(emitter PerformanceEmitter) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapper := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

			next(wrapper, r)

			emitter.Performance(r.Context(), "http "+r.Method+" "+routePattern(r), time.Since(start), map[string]any{
				"status":        wrapper.statusCode,
				"response_size": wrapper.bytes,
				"remote_addr":   r.RemoteAddr,
			})
		}
	}
}
