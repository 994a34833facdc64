// Observa - Enterprise Logging and Observability Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/observa

package record

import (
	"bytes"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/tomtom215/observa/internal/logging"
)

// Record is the producer-side view of one log call. It is built by the
// emitting goroutine and turned into an Entry before it is queued.
type Record struct {
	Time        time.Time
	Level       Level
	Channel     Channel
	Message     string
	Caller      Caller
	GoroutineID int64
	TaskName    string
	Fields      Fields
	Exception   *Exception

	// ExecutionTime is set for performance records.
	ExecutionTime *time.Duration

	Correlation logging.Correlation
}

// Caller is the source location of a log call.
type Caller struct {
	Module   string
	Function string
	File     string
	Line     int
}

// Exception describes an error attached to a record.
type Exception struct {
	Type    string   `json:"type"`
	Message string   `json:"message"`
	Stack   []string `json:"stack"`
}

// CallerAt resolves the caller skip frames above CallerAt itself.
// Module is the Go package path, Function the remaining qualified name.
func CallerAt(skip int) Caller {
	pc, file, line, ok := runtime.Caller(skip + 1)
	if !ok {
		return Caller{Module: "unknown", Function: "unknown", File: "unknown"}
	}
	c := Caller{File: file, Line: line}
	if fn := runtime.FuncForPC(pc); fn != nil {
		c.Module, c.Function = splitFuncName(fn.Name())
	}
	return c
}

// splitFuncName splits "github.com/x/y/pkg.(*T).Method" into
// "github.com/x/y/pkg" and "(*T).Method".
func splitFuncName(name string) (module, function string) {
	slash := strings.LastIndex(name, "/")
	dot := strings.Index(name[slash+1:], ".")
	if dot < 0 {
		return name, ""
	}
	dot += slash + 1
	return name[:dot], name[dot+1:]
}

// CaptureStack returns "function file:line" frames starting skip frames
// above CaptureStack, at most 64 deep.
func CaptureStack(skip int) []string {
	pcs := make([]uintptr, 64)
	n := runtime.Callers(skip+2, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	out := make([]string, 0, n)
	for {
		f, more := frames.Next()
		out = append(out, fmt.Sprintf("%s %s:%d", f.Function, f.File, f.Line))
		if !more {
			break
		}
	}
	return out
}

// NewException builds an Exception from err. The reported type is the
// innermost wrapped error's type; the message is the full chain.
func NewException(err error, stack []string) *Exception {
	if err == nil {
		return nil
	}
	inner := err
	for {
		next := errors.Unwrap(inner)
		if next == nil {
			break
		}
		inner = next
	}
	return &Exception{
		Type:    fmt.Sprintf("%T", inner),
		Message: err.Error(),
		Stack:   stack,
	}
}

var goroutinePrefix = []byte("goroutine ")

// GoroutineID returns the current goroutine's numeric id, or 0 if it cannot
// be determined.
func GoroutineID() int64 {
	var buf [64]byte
	b := buf[:runtime.Stack(buf[:], false)]
	b = bytes.TrimPrefix(b, goroutinePrefix)
	if i := bytes.IndexByte(b, ' '); i > 0 {
		b = b[:i]
	}
	id, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return 0
	}
	return id
}
