// Observa - Enterprise Logging and Observability Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/observa

package siem

import (
	"errors"
	"sync"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/observa/internal/logging"
	"github.com/tomtom215/observa/internal/metrics"
)

// errDeliveryFailed is the outcome reported to gobreaker for a failed send.
var errDeliveryFailed = errors.New("siem: delivery failed")

// Breaker states as reported by State and Logger.BreakerStates.
const (
	StateClosed   = "CLOSED"
	StateOpen     = "OPEN"
	StateHalfOpen = "HALF_OPEN"
)

// CircuitBreaker guards one adapter. It trips after Threshold consecutive
// failures, rejects every request for Cooldown, then admits exactly one
// probe. A successful probe closes it, a failed probe reopens it.
//
// DETERMINISM NOTE: the cool-down runs on real time (sony/gobreaker).
// Tests use short cool-downs and wait them out.
type CircuitBreaker struct {
	name string
	cb   *gobreaker.TwoStepCircuitBreaker[struct{}]

	// pending holds the completion callbacks of admitted requests, oldest
	// first. Record* completes the oldest one.
	mu      sync.Mutex
	pending []func(error)
}

// NewCircuitBreaker creates a closed breaker.
func NewCircuitBreaker(name string, threshold int, cooldown time.Duration) *CircuitBreaker {
	if threshold < 1 {
		threshold = 1
	}

	metrics.CircuitBreakerState.WithLabelValues(name).Set(0)
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(name).Set(0)

	b := &CircuitBreaker{name: name}
	b.cb = gobreaker.NewTwoStepCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     cooldown,

		ReadyToTrip: func(counts gobreaker.Counts) bool {
			trip := counts.ConsecutiveFailures >= uint32(threshold)
			if trip {
				logging.Warn().
					Str("adapter", name).
					Uint32("consecutive_failures", counts.ConsecutiveFailures).
					Msg("[CIRCUIT BREAKER] Opening circuit")
			}
			return trip
		},

		OnStateChange: func(name string, from, to gobreaker.State) {
			fromStr := stateToString(from)
			toStr := stateToString(to)

			logging.Info().Str("adapter", name).Str("from", fromStr).Str("to", toStr).Msg("[CIRCUIT BREAKER] State transition")
			metrics.RecordBreakerTransition(name, fromStr, toStr)

			if to == gobreaker.StateClosed {
				metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(name).Set(0)
			}
		},
	})
	return b
}

// Name returns the adapter name the breaker guards.
func (b *CircuitBreaker) Name() string {
	return b.name
}

// State returns CLOSED, OPEN or HALF_OPEN. An OPEN breaker whose cool-down
// has elapsed reports HALF_OPEN.
func (b *CircuitBreaker) State() string {
	return stateToString(b.cb.State())
}

// AllowRequest reports whether a delivery attempt may proceed. In HALF_OPEN
// only the first caller is admitted. Every admitted request must be
// followed by RecordSuccess or RecordFailure.
func (b *CircuitBreaker) AllowRequest() bool {
	done, err := b.cb.Allow()
	if err != nil {
		metrics.CircuitBreakerRequests.WithLabelValues(b.name, "rejected").Inc()
		return false
	}
	b.mu.Lock()
	b.pending = append(b.pending, done)
	b.mu.Unlock()
	return true
}

// RecordSuccess completes the oldest admitted request as a success.
func (b *CircuitBreaker) RecordSuccess() {
	b.complete(nil)
	metrics.CircuitBreakerRequests.WithLabelValues(b.name, "success").Inc()
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(b.name).Set(0)
}

// RecordFailure completes the oldest admitted request as a failure.
func (b *CircuitBreaker) RecordFailure() {
	b.complete(errDeliveryFailed)
	metrics.CircuitBreakerRequests.WithLabelValues(b.name, "failure").Inc()
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(b.name).Set(float64(b.cb.Counts().ConsecutiveFailures))
}

// complete reports an outcome. Without an admitted request it first asks
// for one, so outcomes observed outside AllowRequest still count; when the
// breaker rejects that request the outcome is discarded.
func (b *CircuitBreaker) complete(outcome error) {
	b.mu.Lock()
	var done func(error)
	if len(b.pending) > 0 {
		done = b.pending[0]
		b.pending = b.pending[1:]
	}
	b.mu.Unlock()

	if done == nil {
		var err error
		done, err = b.cb.Allow()
		if err != nil {
			return
		}
	}
	done(outcome)
}

// stateToString converts a gobreaker state to the reported name.
func stateToString(state gobreaker.State) string {
	switch state {
	case gobreaker.StateClosed:
		return StateClosed
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	case gobreaker.StateOpen:
		return StateOpen
	default:
		return "UNKNOWN"
	}
}
