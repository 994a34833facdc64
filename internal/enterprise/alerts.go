// Observa - Enterprise Logging and Observability Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/observa

package enterprise

import (
	"time"

	"github.com/tomtom215/observa/internal/config"
	"github.com/tomtom215/observa/internal/record"
)

// Alert names, also used as metric labels.
const (
	AlertErrorRate        = "error_rate"
	AlertQueueUtilization = "queue_utilization"
	AlertDroppedRecords   = "dropped_records"
)

type alert struct {
	name      string
	value     float64
	threshold float64
}

// alertState tracks threshold breaches. An alert fires once when its
// condition becomes true and re-arms when it clears. Owned by the worker.
type alertState struct {
	thresholds config.AlertThresholds

	windowStart time.Time
	errors      int

	active map[string]bool
}

func newAlertState(t config.AlertThresholds) *alertState {
	return &alertState{thresholds: t, active: make(map[string]bool, 3)}
}

// observe counts application errors in the current one-minute window.
func (s *alertState) observe(e *record.Entry, now time.Time) {
	if e.Channel != record.ChannelApplication || e.LevelValue() < record.LevelError {
		return
	}
	s.roll(now)
	s.errors++
}

func (s *alertState) roll(now time.Time) {
	if s.windowStart.IsZero() || now.Sub(s.windowStart) >= time.Minute {
		s.windowStart = now
		s.errors = 0
	}
}

// evaluate returns the alerts whose breach started since the last call.
func (s *alertState) evaluate(now time.Time, depth, capacity int, droppedDelta uint64) []alert {
	var fired []alert
	check := func(name string, enabled bool, value, threshold float64) {
		breached := enabled && value >= threshold
		if breached && !s.active[name] {
			fired = append(fired, alert{name: name, value: value, threshold: threshold})
		}
		s.active[name] = breached
	}

	s.roll(now)
	t := s.thresholds
	check(AlertErrorRate, t.ErrorsPerMinute > 0, float64(s.errors), float64(t.ErrorsPerMinute))

	utilization := 0.0
	if capacity > 0 {
		utilization = float64(depth) * 100 / float64(capacity)
	}
	check(AlertQueueUtilization, t.QueueUtilization > 0, utilization, t.QueueUtilization)

	check(AlertDroppedRecords, t.DroppedPerInterval > 0, float64(droppedDelta), float64(t.DroppedPerInterval))
	return fired
}
