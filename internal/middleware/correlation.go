// Observa - Enterprise Logging and Observability Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/observa

package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/tomtom215/observa/internal/logging"
)

// Propagation headers.
const (
	HeaderCorrelationID = "X-Correlation-ID"
	HeaderRequestID     = "X-Request-ID"
	HeaderTraceparent   = "traceparent"
)

// Correlation establishes the correlation for a request. Incoming
// X-Correlation-ID, X-Request-ID and W3C traceparent headers are honoured;
// missing identifiers are generated. The identifiers are echoed on the
// response and stored in the request context for every record the handler
// emits.
func Correlation(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := logging.Correlation{
			CorrelationID: headerID(r, HeaderCorrelationID),
			RequestID:     headerID(r, HeaderRequestID),
		}
		if traceID, ok := ParseTraceparent(r.Header.Get(HeaderTraceparent)); ok {
			c.TraceID = traceID
		}

		if c.CorrelationID == "" {
			c.CorrelationID = logging.GenerateCorrelationID()
		}
		if c.RequestID == "" {
			c.RequestID = logging.GenerateRequestID()
		}
		if c.TraceID == "" {
			c.TraceID = logging.GenerateTraceID()
		}

		h := w.Header()
		h.Set(HeaderCorrelationID, c.CorrelationID)
		h.Set(HeaderRequestID, c.RequestID)
		h.Set(HeaderTraceparent, FormatTraceparent(c.TraceID))

		ctx := logging.ContextWithCorrelation(r.Context(), c)
		next(w, r.WithContext(ctx))
	}
}

// headerID returns a trimmed header value, ignoring values too long to be
// an identifier.
func headerID(r *http.Request, name string) string {
	v := strings.TrimSpace(r.Header.Get(name))
	if len(v) > 128 {
		return ""
	}
	return v
}

// ParseTraceparent extracts the trace-id from a version 00 traceparent
// header ("00-<32 hex>-<16 hex>-<2 hex>"). An all-zero trace-id is invalid.
func ParseTraceparent(h string) (string, bool) {
	parts := strings.Split(strings.TrimSpace(h), "-")
	if len(parts) != 4 || parts[0] != "00" {
		return "", false
	}
	traceID, spanID, flags := parts[1], parts[2], parts[3]
	if len(traceID) != 32 || len(spanID) != 16 || len(flags) != 2 {
		return "", false
	}
	if !isLowerHex(traceID) || !isLowerHex(spanID) || !isLowerHex(flags) {
		return "", false
	}
	if strings.Trim(traceID, "0") == "" {
		return "", false
	}
	return traceID, true
}

// FormatTraceparent builds a sampled traceparent for traceID with a fresh
// span id.
func FormatTraceparent(traceID string) string {
	span := strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
	return "00-" + traceID + "-" + span + "-01"
}

func isLowerHex(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
