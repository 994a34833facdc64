// Observa - Enterprise Logging and Observability Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/observa

package instrument

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/observa/internal/enterprise"
	"github.com/tomtom215/observa/internal/logging"
)

// Emitter is the part of *enterprise.Logger the wrappers use.
type Emitter interface {
	Debug(ctx context.Context, msg string, fields ...any)
	Info(ctx context.Context, msg string, fields ...any)
	Warning(ctx context.Context, msg string, fields ...any)
	Error(ctx context.Context, msg string, fields ...any)
	Critical(ctx context.Context, msg string, fields ...any)
	Performance(ctx context.Context, operation string, duration time.Duration, details map[string]any)
}

var _ Emitter = (*enterprise.Logger)(nil)

// Call runs fn and logs its start, outcome and duration. A panic in fn is
// logged at CRITICAL and re-raised.
func Call(ctx context.Context, log Emitter, name string, fn func(context.Context) error) error {
	_, err := CallValue(ctx, log, name, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// CallValue is Call for functions returning a value.
func CallValue[T any](ctx context.Context, log Emitter, name string, fn func(context.Context) (T, error)) (T, error) {
	log.Debug(ctx, "Calling "+name, "function", name)
	start := time.Now()

	defer func() {
		if p := recover(); p != nil {
			log.Critical(ctx, name+" panicked",
				"function", name,
				"panic", fmt.Sprint(p),
				"duration_ms", msSince(start),
				enterprise.Exc(fmt.Errorf("panic: %v", p)),
			)
			panic(p)
		}
	}()

	v, err := fn(ctx)
	elapsed := time.Since(start)
	if err != nil {
		log.Error(ctx, name+" failed",
			"function", name,
			"duration_ms", float64(elapsed.Microseconds())/1000,
			enterprise.Exc(err),
		)
		return v, err
	}

	log.Performance(ctx, name, elapsed, map[string]any{"status": "success"})
	log.Debug(ctx, name+" completed", "function", name)
	return v, nil
}

// Async runs fn in a new goroutine under Call. The goroutine inherits ctx,
// and with it the active correlation, and is named name for thread_name.
// The returned channel receives fn's error and is then closed.
func Async(ctx context.Context, log Emitter, name string, fn func(context.Context) error) <-chan error {
	out := make(chan error, 1)
	child := logging.ContextWithTaskName(ctx, name)
	go func() {
		defer close(out)
		out <- Call(child, log, name, fn)
	}()
	return out
}

// StateTransition logs an entity moving between states.
func StateTransition(ctx context.Context, log Emitter, entity, from, to string, fields ...any) {
	args := append([]any{"entity", entity, "from_state", from, "to_state", to}, fields...)
	log.Info(ctx, fmt.Sprintf("State transition: %s %s -> %s", entity, from, to), args...)
}

func msSince(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000
}
