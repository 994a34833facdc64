// Observa - Enterprise Logging and Observability Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/observa

package logging

import (
	"context"
	"maps"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Correlation is the set of identifiers attached to every record emitted
// during one logical unit of work (a test, a request, a session).
//
// Values are immutable once stored in a context; setters copy.
type Correlation struct {
	CorrelationID string
	RequestID     string
	TraceID       string
	UserContext   map[string]any
}

// IsZero reports whether no identifier and no user context is set.
func (c Correlation) IsZero() bool {
	return c.CorrelationID == "" && c.RequestID == "" && c.TraceID == "" && len(c.UserContext) == 0
}

type correlationKey struct{}

// GenerateCorrelationID creates a new correlation ID (UUID v4).
func GenerateCorrelationID() string {
	return uuid.NewString()
}

// GenerateRequestID creates a new request ID (UUID v4).
func GenerateRequestID() string {
	return uuid.NewString()
}

// GenerateTraceID creates a 32-character lowercase hex trace ID, the shape
// W3C traceparent headers carry.
func GenerateTraceID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// FromContext returns the active correlation. ok is false when none was
// established or it was cleared.
func FromContext(ctx context.Context) (Correlation, bool) {
	if ctx == nil {
		return Correlation{}, false
	}
	c, ok := ctx.Value(correlationKey{}).(Correlation)
	if !ok || c.IsZero() {
		return Correlation{}, false
	}
	return c, true
}

func current(ctx context.Context) Correlation {
	c, _ := FromContext(ctx)
	return c
}

// ContextWithCorrelation stores c as the active correlation. The user
// context map is copied.
func ContextWithCorrelation(ctx context.Context, c Correlation) context.Context {
	c.UserContext = maps.Clone(c.UserContext)
	return context.WithValue(ctx, correlationKey{}, c)
}

// BeginUnit establishes a complete correlation for a new unit of work: fresh
// correlation, request and trace IDs plus the given user context.
//
//	ctx := logging.BeginUnit(ctx, map[string]any{"test": t.Name()})
func BeginUnit(ctx context.Context, userContext map[string]any) context.Context {
	return ContextWithCorrelation(ctx, Correlation{
		CorrelationID: GenerateCorrelationID(),
		RequestID:     GenerateRequestID(),
		TraceID:       GenerateTraceID(),
		UserContext:   userContext,
	})
}

// Clear returns a context in which no correlation is active. Call it at the
// outermost boundary, after every deferred cleanup that may still log.
func Clear(ctx context.Context) context.Context {
	return context.WithValue(ctx, correlationKey{}, Correlation{})
}

// ContextWithCorrelationID returns a context whose correlation ID is id.
func ContextWithCorrelationID(ctx context.Context, id string) context.Context {
	c := current(ctx)
	c.CorrelationID = id
	return ContextWithCorrelation(ctx, c)
}

// ContextWithNewCorrelationID returns a context with a newly generated correlation ID.
func ContextWithNewCorrelationID(ctx context.Context) context.Context {
	return ContextWithCorrelationID(ctx, GenerateCorrelationID())
}

// CorrelationIDFromContext returns the correlation ID, or "" if none.
func CorrelationIDFromContext(ctx context.Context) string {
	return current(ctx).CorrelationID
}

// ContextWithRequestID returns a context whose request ID is id.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	c := current(ctx)
	c.RequestID = id
	return ContextWithCorrelation(ctx, c)
}

// RequestIDFromContext returns the request ID, or "" if none.
func RequestIDFromContext(ctx context.Context) string {
	return current(ctx).RequestID
}

// ContextWithTraceID returns a context whose trace ID is id.
func ContextWithTraceID(ctx context.Context, id string) context.Context {
	c := current(ctx)
	c.TraceID = id
	return ContextWithCorrelation(ctx, c)
}

// TraceIDFromContext returns the trace ID, or "" if none.
func TraceIDFromContext(ctx context.Context) string {
	return current(ctx).TraceID
}

// ContextWithUserContext returns a context carrying a copy of user.
func ContextWithUserContext(ctx context.Context, user map[string]any) context.Context {
	c := current(ctx)
	c.UserContext = user
	return ContextWithCorrelation(ctx, c)
}

// UserContextFromContext returns a copy of the user context, or nil.
func UserContextFromContext(ctx context.Context) map[string]any {
	return maps.Clone(current(ctx).UserContext)
}

// Ctx returns the diagnostic logger with the active correlation fields added.
//
//	logging.Ctx(ctx).Warn().Err(err).Msg("adapter send failed")
func Ctx(ctx context.Context) *zerolog.Logger {
	l := CtxWith(ctx).Logger()
	return &l
}

// CtxWith returns a logger context builder pre-populated with correlation fields.
func CtxWith(ctx context.Context) zerolog.Context {
	lc := With()
	c, ok := FromContext(ctx)
	if !ok {
		return lc
	}
	if c.CorrelationID != "" {
		lc = lc.Str("correlation_id", c.CorrelationID)
	}
	if c.RequestID != "" {
		lc = lc.Str("request_id", c.RequestID)
	}
	if c.TraceID != "" {
		lc = lc.Str("trace_id", c.TraceID)
	}
	return lc
}

type taskNameKey struct{}

// ContextWithTaskName names the goroutine or task doing the work. Records
// emitted with this context report it as thread_name.
func ContextWithTaskName(ctx context.Context, name string) context.Context {
	return context.WithValue(ctx, taskNameKey{}, name)
}

// TaskNameFromContext returns the task name, or "" if none.
func TaskNameFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	name, _ := ctx.Value(taskNameKey{}).(string)
	return name
}
