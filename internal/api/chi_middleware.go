// Observa - Enterprise Logging and Observability Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/observa

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"

	"github.com/tomtom215/observa/internal/metrics"
	"github.com/tomtom215/observa/internal/validation"
)

// chiMiddleware adapts http.HandlerFunc middleware to Chi's func(http.Handler) http.Handler.
func chiMiddleware(mw func(http.HandlerFunc) http.HandlerFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return mw(next.ServeHTTP)
	}
}

// rateLimitByIP limits each client IP to perMinute requests. A zero budget
// disables limiting.
func rateLimitByIP(perMinute int, endpoint string) func(http.Handler) http.Handler {
	if perMinute <= 0 {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	return httprate.Limit(
		perMinute,
		time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			metrics.APIRateLimitHits.WithLabelValues(endpoint).Inc()
			respondError(w, r, http.StatusTooManyRequests, &validation.APIError{
				Code:    CodeRateLimited,
				Message: "rate limit exceeded",
				Details: map[string]any{"limit_per_minute": perMinute},
			}, nil)
		}),
	)
}
