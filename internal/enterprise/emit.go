// Observa - Enterprise Logging and Observability Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/observa

package enterprise

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/tomtom215/observa/internal/logging"
	"github.com/tomtom215/observa/internal/metrics"
	"github.com/tomtom215/observa/internal/record"
)

// exc carries an error and the stack captured where Exc was called.
type exc struct {
	ex *record.Exception
}

// Exc attaches err to a record as exception info, with the stack of the
// calling goroutine:
//
//	log.Error(ctx, "payment failed", "order", id, enterprise.Exc(err))
func Exc(err error) any {
	if err == nil {
		return nil
	}
	return exc{ex: record.NewException(err, record.CaptureStack(1))}
}

// Debug emits an application record at DEBUG.
func (l *Logger) Debug(ctx context.Context, msg string, fields ...any) {
	l.log(ctx, record.LevelDebug, record.ChannelApplication, msg, fields, nil)
}

// Info emits an application record at INFO.
func (l *Logger) Info(ctx context.Context, msg string, fields ...any) {
	l.log(ctx, record.LevelInfo, record.ChannelApplication, msg, fields, nil)
}

// Warning emits an application record at WARNING.
func (l *Logger) Warning(ctx context.Context, msg string, fields ...any) {
	l.log(ctx, record.LevelWarning, record.ChannelApplication, msg, fields, nil)
}

// Error emits an application record at ERROR.
func (l *Logger) Error(ctx context.Context, msg string, fields ...any) {
	l.log(ctx, record.LevelError, record.ChannelApplication, msg, fields, nil)
}

// Critical emits an application record at CRITICAL.
func (l *Logger) Critical(ctx context.Context, msg string, fields ...any) {
	l.log(ctx, record.LevelCritical, record.ChannelApplication, msg, fields, nil)
}

// Audit emits an audit trail record. Audit records are never filtered or
// sampled.
func (l *Logger) Audit(ctx context.Context, eventType string, details map[string]any, status string) {
	fields := []any{
		record.F("event_type", eventType),
		record.F("status", status),
		record.F("details", details),
	}
	l.log(ctx, record.LevelInfo, record.ChannelAudit, "Audit: "+eventType, fields, nil)
}

// Security emits a security event. severity low, medium, high and critical
// map to INFO, WARNING, ERROR and CRITICAL; anything else is WARNING.
func (l *Logger) Security(ctx context.Context, eventType string, details map[string]any, severity string) {
	fields := []any{
		record.F("event_type", eventType),
		record.F("severity", strings.ToLower(severity)),
		record.F("details", details),
	}
	l.log(ctx, SecurityLevel(severity), record.ChannelSecurity, "Security: "+eventType, fields, nil)
}

// Performance emits a timing record with execution_time_ms set.
func (l *Logger) Performance(ctx context.Context, operation string, duration time.Duration, details map[string]any) {
	fields := []any{
		record.F("operation", operation),
		record.F("details", details),
	}
	l.log(ctx, record.LevelInfo, record.ChannelPerformance, "Performance: "+operation, fields, &duration)
}

// SecurityLevel maps a security severity name to a record level.
func SecurityLevel(severity string) record.Level {
	switch strings.ToLower(severity) {
	case "low":
		return record.LevelInfo
	case "medium":
		return record.LevelWarning
	case "high":
		return record.LevelError
	case "critical":
		return record.LevelCritical
	default:
		return record.LevelWarning
	}
}

// log is the shared emit path. It must be called directly by the exported
// emit methods so the caller frame resolves to the producer.
func (l *Logger) log(ctx context.Context, level record.Level, ch record.Channel, msg string, fields []any, exec *time.Duration) {
	if l.isClosing() {
		l.reject(ch)
		return
	}
	if reason, ok := l.admit(level, ch); !ok {
		l.filtered.Add(1)
		metrics.RecordFiltered(string(ch), reason)
		return
	}

	caller := record.CallerAt(2)
	e := l.build(ctx, level, ch, msg, fields, exec, caller)
	l.enqueue(e)
}

func (l *Logger) isClosing() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.closing
}

// admit applies the level filter and sampling. Compliance channels always
// pass.
func (l *Logger) admit(level record.Level, ch record.Channel) (string, bool) {
	if ch.Compliance() {
		return "", true
	}
	s := l.settings.Load()
	if level < s.level {
		return "level", false
	}
	if level < record.LevelWarning && s.sampling < 1 && rand.Float64() >= s.sampling {
		return "sampled", false
	}
	return "", true
}

// build turns the call into a masked Entry. A panic while masking or
// formatting yields a stringified fallback entry.
func (l *Logger) build(ctx context.Context, level record.Level, ch record.Channel, msg string, fields []any, exec *time.Duration, caller record.Caller) (e *record.Entry) {
	r := &record.Record{
		Time:          l.now(),
		Level:         level,
		Channel:       ch,
		Message:       msg,
		Caller:        caller,
		GoroutineID:   record.GoroutineID(),
		TaskName:      logging.TaskNameFromContext(ctx),
		ExecutionTime: exec,
	}
	if c, ok := logging.FromContext(ctx); ok {
		r.Correlation = c
	}

	defer func() {
		if p := recover(); p != nil {
			l.emitFailure.Do(func() {
				logging.Error().
					Str("panic", fmt.Sprint(p)).
					Str("channel", string(ch)).
					Strs("stack", record.CaptureStack(2)).
					Msg("record masking or formatting panicked, emitting stringified fallback")
			})
			e = l.fallback(r, fields, p)
		}
	}()

	args, ex := splitException(fields)
	r.Message = l.masker.MaskString(msg)
	r.Fields = l.masker.MaskFields(record.FieldsFromPairs(args...))
	if ex != nil {
		masked := *ex
		masked.Message = l.masker.MaskString(ex.Message)
		r.Exception = &masked
	}
	if len(r.Correlation.UserContext) > 0 {
		r.Correlation.UserContext = l.masker.MaskMap(r.Correlation.UserContext)
	}
	return l.formatter.Format(r)
}

// fallback renders a record whose fields could not be processed. Every
// value is stringified and masked as a plain string.
func (l *Logger) fallback(r *record.Record, fields []any, p any) *record.Entry {
	out := &record.Record{
		Time:          r.Time,
		Level:         r.Level,
		Channel:       r.Channel,
		Message:       l.masker.MaskString(r.Message),
		Caller:        r.Caller,
		GoroutineID:   r.GoroutineID,
		TaskName:      r.TaskName,
		ExecutionTime: r.ExecutionTime,
		Correlation:   r.Correlation,
		Fields: record.Fields{
			record.F("fields", l.masker.MaskString(fmt.Sprintf("%+v", fields))),
			record.F("format_error", fmt.Sprint(p)),
		},
	}
	out.Correlation.UserContext = nil
	return l.formatter.Format(out)
}

func splitException(fields []any) ([]any, *record.Exception) {
	var ex *record.Exception
	args := fields[:0:0]
	for _, f := range fields {
		switch v := f.(type) {
		case exc:
			ex = v.ex
		case nil:
			// Exc(nil)
		default:
			args = append(args, f)
		}
	}
	return args, ex
}

// enqueue hands e to the worker without blocking. The read lock keeps the
// send ordered against Shutdown.
func (l *Logger) enqueue(e *record.Entry) {
	l.mu.RLock()
	if l.closing {
		l.mu.RUnlock()
		l.reject(e.Channel)
		return
	}
	select {
	case l.queue <- e:
		l.mu.RUnlock()
		l.enqueued.Add(1)
		metrics.RecordEnqueued(string(e.Channel), e.Level)
	default:
		l.mu.RUnlock()
		l.dropped.Add(1)
		metrics.RecordDropped(string(e.Channel))
	}
}

func (l *Logger) reject(ch record.Channel) {
	n := l.rejected.Add(1)
	metrics.RecordRejected(string(ch))
	l.rejectNotice.Do(func() {
		logging.Warn().
			Str("channel", string(ch)).
			Uint64("rejected_total", n).
			Msg("Record emitted after shutdown began, rejected")
	})
}
