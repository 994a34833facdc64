// Observa - Enterprise Logging and Observability Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/observa

package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/observa/internal/logging"
	"github.com/tomtom215/observa/internal/validation"
)

// Response is the envelope of every API response.
type Response struct {
	Status   string               `json:"status"`
	Data     any                  `json:"data"`
	Metadata Metadata             `json:"metadata"`
	Error    *validation.APIError `json:"error,omitempty"`
}

// Metadata accompanies every response.
type Metadata struct {
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}

// Error codes.
const (
	CodeValidation   = "VALIDATION_ERROR"
	CodeBadRequest   = "BAD_REQUEST"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeTooLarge     = "PAYLOAD_TOO_LARGE"
	CodeUnavailable  = "SERVICE_UNAVAILABLE"
	CodeRateLimited  = "RATE_LIMITED"
)

func respondJSON(w http.ResponseWriter, r *http.Request, status int, resp *Response) {
	resp.Metadata = Metadata{
		Timestamp: time.Now().UTC(),
		RequestID: logging.RequestIDFromContext(r.Context()),
	}

	data, err := json.Marshal(resp)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("Failed to write JSON response")
	}
}

func respondData(w http.ResponseWriter, r *http.Request, status int, data any) {
	respondJSON(w, r, status, &Response{Status: "success", Data: data})
}

func respondError(w http.ResponseWriter, r *http.Request, status int, apiErr *validation.APIError, err error) {
	if err != nil {
		logging.Ctx(r.Context()).Warn().
			Str("code", apiErr.Code).
			Str("error", sanitizeLogValue(err.Error())).
			Msg("API error")
	}
	respondJSON(w, r, status, &Response{Status: "error", Error: apiErr})
}

// sanitizeLogValue strips line breaks so client input cannot forge
// diagnostic lines.
func sanitizeLogValue(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")
	if len(s) > 512 {
		s = s[:512]
	}
	return s
}
