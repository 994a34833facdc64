// Observa - Enterprise Logging and Observability Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/observa

package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/observa/internal/enterprise"
	"github.com/tomtom215/observa/internal/metrics"
	"github.com/tomtom215/observa/internal/record"
	"github.com/tomtom215/observa/internal/validation"
)

// MaxRecordsPerRequest caps one POST /v1/logs body.
const MaxRecordsPerRequest = 1000

// maxBodyBytes caps the decoded request body.
const maxBodyBytes = 8 << 20

// Logger is the part of *enterprise.Logger the API uses.
type Logger interface {
	Debug(ctx context.Context, msg string, fields ...any)
	Info(ctx context.Context, msg string, fields ...any)
	Warning(ctx context.Context, msg string, fields ...any)
	Error(ctx context.Context, msg string, fields ...any)
	Critical(ctx context.Context, msg string, fields ...any)
	Audit(ctx context.Context, eventType string, details map[string]any, status string)
	Security(ctx context.Context, eventType string, details map[string]any, severity string)
	Performance(ctx context.Context, operation string, duration time.Duration, details map[string]any)
	Stats() enterprise.Stats
}

var _ Logger = (*enterprise.Logger)(nil)

// IngestRequest is the body of POST /v1/logs.
type IngestRequest struct {
	Records []IngestRecord `json:"records" validate:"required,min=1,max=1000,dive"`
}

// IngestRecord is one record submitted by a remote producer. Channel
// defaults to application and level to INFO.
type IngestRecord struct {
	Level   string         `json:"level" validate:"omitempty,loglevel"`
	Channel string         `json:"channel" validate:"omitempty,channel"`
	Message string         `json:"message" validate:"max=65536"`
	Fields  map[string]any `json:"fields"`

	// Audit and security.
	EventType string `json:"event_type" validate:"max=256"`
	Status    string `json:"status" validate:"max=64"`
	Severity  string `json:"severity" validate:"omitempty,oneof=low medium high critical LOW MEDIUM HIGH CRITICAL"`

	// Performance.
	Operation  string  `json:"operation" validate:"max=256"`
	DurationMS float64 `json:"duration_ms" validate:"gte=0"`
}

// IngestResult is returned for an accepted request.
type IngestResult struct {
	Accepted int `json:"accepted"`
}

// check applies the per-channel requirements the tags cannot express.
func (r *IngestRecord) check() error {
	ch := r.channel()
	switch ch {
	case record.ChannelAudit, record.ChannelSecurity:
		if r.EventType == "" {
			return errors.New("event_type is required for " + string(ch) + " records")
		}
	case record.ChannelPerformance:
		if r.Operation == "" {
			return errors.New("operation is required for performance records")
		}
	default:
		if r.Message == "" {
			return errors.New("message is required for application records")
		}
	}
	return nil
}

func (r *IngestRecord) channel() record.Channel {
	if r.Channel == "" {
		return record.ChannelApplication
	}
	ch, err := record.ParseChannel(r.Channel)
	if err != nil {
		return record.ChannelApplication
	}
	return ch
}

// Ingest handles POST /v1/logs. Records are validated as a whole before
// any is emitted, so a request is either fully accepted or rejected.
func (h *Handler) Ingest(w http.ResponseWriter, r *http.Request) {
	if h.logger.Stats().ShuttingDown {
		respondError(w, r, http.StatusServiceUnavailable,
			&validation.APIError{Code: CodeUnavailable, Message: "logger is shutting down"}, nil)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, r, http.StatusRequestEntityTooLarge,
				&validation.APIError{Code: CodeTooLarge, Message: "request body too large"}, err)
			return
		}
		respondError(w, r, http.StatusBadRequest,
			&validation.APIError{Code: CodeBadRequest, Message: "invalid JSON body"}, err)
		return
	}

	if len(req.Records) > MaxRecordsPerRequest {
		respondError(w, r, http.StatusRequestEntityTooLarge, &validation.APIError{
			Code:    CodeTooLarge,
			Message: "too many records in one request",
			Details: map[string]any{"max_records": MaxRecordsPerRequest},
		}, nil)
		return
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		respondError(w, r, http.StatusBadRequest, verr.ToAPIError(), verr)
		return
	}
	for i := range req.Records {
		if err := req.Records[i].check(); err != nil {
			respondError(w, r, http.StatusBadRequest, &validation.APIError{
				Code:    CodeValidation,
				Message: err.Error(),
				Details: map[string]any{"index": i},
			}, nil)
			return
		}
	}

	ctx := r.Context()
	for i := range req.Records {
		h.emit(ctx, &req.Records[i])
	}

	respondData(w, r, http.StatusAccepted, IngestResult{Accepted: len(req.Records)})
}

func (h *Handler) emit(ctx context.Context, rec *IngestRecord) {
	ch := rec.channel()
	metrics.APIIngestedRecords.WithLabelValues(string(ch)).Inc()

	switch ch {
	case record.ChannelAudit:
		status := rec.Status
		if status == "" {
			status = "unknown"
		}
		h.logger.Audit(ctx, rec.EventType, rec.Fields, status)
	case record.ChannelSecurity:
		h.logger.Security(ctx, rec.EventType, rec.Fields, rec.Severity)
	case record.ChannelPerformance:
		d := time.Duration(rec.DurationMS * float64(time.Millisecond))
		h.logger.Performance(ctx, rec.Operation, d, rec.Fields)
	default:
		fields := fieldsOf(rec.Fields)
		switch level(rec.Level) {
		case record.LevelDebug:
			h.logger.Debug(ctx, rec.Message, fields...)
		case record.LevelWarning:
			h.logger.Warning(ctx, rec.Message, fields...)
		case record.LevelError:
			h.logger.Error(ctx, rec.Message, fields...)
		case record.LevelCritical:
			h.logger.Critical(ctx, rec.Message, fields...)
		default:
			h.logger.Info(ctx, rec.Message, fields...)
		}
	}
}

func level(s string) record.Level {
	if strings.TrimSpace(s) == "" {
		return record.LevelInfo
	}
	l, err := record.ParseLevel(s)
	if err != nil {
		return record.LevelInfo
	}
	return l
}

// fieldsOf converts submitted fields to emit arguments in stable key order.
func fieldsOf(m map[string]any) []any {
	fs := record.FieldsFromMap(m)
	out := make([]any, len(fs))
	for i, f := range fs {
		out[i] = f
	}
	return out
}
