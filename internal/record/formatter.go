// Observa - Enterprise Logging and Observability Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/observa

package record

import (
	"encoding"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/observa/internal/logging"
)

// Entry is the flat structured form of a record. Every key is always
// present in the JSON encoding; nullable keys encode as null.
type Entry struct {
	EventID         string         `json:"event_id"`
	Timestamp       string         `json:"timestamp"`
	TimestampMS     int64          `json:"timestamp_ms"`
	Level           string         `json:"level"`
	Severity        int            `json:"severity"`
	Channel         Channel        `json:"channel"`
	Logger          string         `json:"logger"`
	Module          string         `json:"module"`
	Function        string         `json:"function"`
	File            string         `json:"file"`
	Line            int            `json:"line"`
	ThreadID        int64          `json:"thread_id"`
	ThreadName      string         `json:"thread_name"`
	Message         string         `json:"message"`
	Environment     string         `json:"environment"`
	Hostname        string         `json:"hostname"`
	ProcessID       int            `json:"process_id"`
	CorrelationID   *string        `json:"correlation_id"`
	RequestID       *string        `json:"request_id"`
	TraceID         *string        `json:"trace_id"`
	UserContext     map[string]any `json:"user_context"`
	Exception       *Exception     `json:"exception"`
	Extra           Fields         `json:"extra"`
	ExecutionTimeMS *float64       `json:"execution_time_ms"`
}

// LevelValue parses the entry's level name back into a Level.
func (e *Entry) LevelValue() Level {
	l, err := ParseLevel(e.Level)
	if err != nil {
		return LevelInfo
	}
	return l
}

// Formatter turns Records into Entries. It is safe for concurrent use.
type Formatter struct {
	environment string
	hostname    string
	pid         int
}

// NewFormatter creates a formatter stamping every entry with the given
// environment name and the local hostname and process id.
func NewFormatter(environment string) *Formatter {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return &Formatter{environment: environment, hostname: host, pid: os.Getpid()}
}

// Format converts r into an Entry. Extra values that cannot be represented
// in JSON (functions, channels, complex numbers) are stringified.
func (f *Formatter) Format(r *Record) *Entry {
	ts := r.Time.UTC()
	e := &Entry{
		EventID:     uuid.NewString(),
		Timestamp:   ts.Format("2006-01-02T15:04:05.000Z07:00"),
		TimestampMS: ts.UnixMilli(),
		Level:       r.Level.String(),
		Severity:    r.Level.Severity(),
		Channel:     r.Channel,
		Logger:      "observa." + string(r.Channel),
		Module:      r.Caller.Module,
		Function:    r.Caller.Function,
		File:        r.Caller.File,
		Line:        r.Caller.Line,
		ThreadID:    r.GoroutineID,
		ThreadName:  r.TaskName,
		Message:     r.Message,
		Environment: f.environment,
		Hostname:    f.hostname,
		ProcessID:   f.pid,
		Exception:   r.Exception,
		Extra:       normalizeFields(r.Fields),
	}
	if e.ThreadName == "" {
		e.ThreadName = "goroutine-" + strconv.FormatInt(r.GoroutineID, 10)
	}
	applyCorrelation(e, r.Correlation)
	if r.ExecutionTime != nil {
		ms := float64(r.ExecutionTime.Microseconds()) / 1000.0
		e.ExecutionTimeMS = &ms
	}
	return e
}

func applyCorrelation(e *Entry, c logging.Correlation) {
	if c.CorrelationID != "" {
		e.CorrelationID = &c.CorrelationID
	}
	if c.RequestID != "" {
		e.RequestID = &c.RequestID
	}
	if c.TraceID != "" {
		e.TraceID = &c.TraceID
	}
	if len(c.UserContext) > 0 {
		e.UserContext = normalizeMap(c.UserContext)
	}
}

func normalizeFields(fs Fields) Fields {
	if len(fs) == 0 {
		return Fields{}
	}
	out := make(Fields, len(fs))
	for i, f := range fs {
		out[i] = Field{Key: f.Key, Value: normalize(f.Value)}
	}
	return out
}

func normalizeMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = normalize(v)
	}
	return out
}

// normalize makes v safe for JSON encoding without changing values that
// already encode cleanly.
func normalize(v any) any {
	switch t := v.(type) {
	case nil, string, bool, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64, float32, float64:
		return v
	case json.Marshaler, encoding.TextMarshaler:
		return v
	case error:
		return t.Error()
	case time.Duration:
		return t.String()
	case map[string]any:
		return normalizeMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalize(e)
		}
		return out
	case Fields:
		return normalizeFields(t)
	}

	switch reflect.ValueOf(v).Kind() {
	case reflect.Func, reflect.Chan, reflect.Complex64, reflect.Complex128, reflect.UnsafePointer:
		return fmt.Sprintf("%v", v)
	default:
		return v
	}
}

// Text renders e as one human-readable line:
//
//	2026-10-19T08:15:02.117Z INFO     [3f2a...] pkg.Func:42 - message | key=value
func (f *Formatter) Text(e *Entry) string {
	var b strings.Builder
	b.WriteString(e.Timestamp)
	b.WriteByte(' ')
	fmt.Fprintf(&b, "%-8s ", e.Level)
	if e.CorrelationID != nil {
		b.WriteString("[" + *e.CorrelationID + "] ")
	} else {
		b.WriteString("[-] ")
	}
	fn := e.Function
	if i := strings.LastIndex(e.Module, "/"); i >= 0 {
		fn = e.Module[i+1:] + "." + fn
	}
	fmt.Fprintf(&b, "%s:%d - %s", fn, e.Line, e.Message)
	if len(e.Extra) > 0 {
		b.WriteString(" |")
		for _, fld := range e.Extra {
			fmt.Fprintf(&b, " %s=%v", fld.Key, fld.Value)
		}
	}
	if e.ExecutionTimeMS != nil {
		fmt.Fprintf(&b, " (%.3fms)", *e.ExecutionTimeMS)
	}
	if e.Exception != nil {
		fmt.Fprintf(&b, "\n  %s: %s", e.Exception.Type, e.Exception.Message)
		for _, frame := range e.Exception.Stack {
			b.WriteString("\n    at " + frame)
		}
	}
	return b.String()
}

var encodeFailure sync.Once

// Encode serializes e as a single JSON line (without trailing newline).
// If an extra value still cannot be encoded, every extra value is
// stringified, a "format_error" field is added, and the failure is reported
// once to the diagnostic stream. Encode never loses the record.
func Encode(e *Entry) []byte {
	b, err := json.Marshal(e)
	if err == nil {
		return b
	}

	encodeFailure.Do(func() {
		logging.Error().Err(err).
			Str("channel", string(e.Channel)).
			Msg("record encoding failed, falling back to stringified extra fields")
	})

	fallback := *e
	fallback.Extra = make(Fields, 0, len(e.Extra)+1)
	for _, fld := range e.Extra {
		fallback.Extra = append(fallback.Extra, Field{Key: fld.Key, Value: fmt.Sprintf("%+v", fld.Value)})
	}
	fallback.Extra = append(fallback.Extra, Field{Key: "format_error", Value: err.Error()})
	if fallback.UserContext != nil {
		uc := make(map[string]any, len(fallback.UserContext))
		for k, v := range fallback.UserContext {
			uc[k] = fmt.Sprintf("%+v", v)
		}
		fallback.UserContext = uc
	}
	b, err = json.Marshal(&fallback)
	if err != nil {
		return []byte(fmt.Sprintf(`{"message":%q,"format_error":%q}`, e.Message, err.Error()))
	}
	return b
}
