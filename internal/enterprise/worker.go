// Observa - Enterprise Logging and Observability Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/observa

package enterprise

import (
	"time"

	"github.com/tomtom215/observa/internal/logging"
	"github.com/tomtom215/observa/internal/metrics"
	"github.com/tomtom215/observa/internal/record"
)

// run is the worker loop. It is the only goroutine touching the sinks and
// the dispatcher.
func (l *Logger) run() {
	defer close(l.done)

	ticker := time.NewTicker(l.tick)
	defer ticker.Stop()

	for {
		select {
		case e := <-l.queue:
			l.write(e)
		case <-ticker.C:
			l.housekeep()
		case <-l.stop:
			l.drain()
			return
		}
	}
}

// write delivers one entry to its channel sink and the SIEM dispatcher.
// Sink failures are reported by the sink set and never stop the dispatcher.
func (l *Logger) write(e *record.Entry) {
	_ = l.sinks.Write(e)
	l.written.Add(1)
	l.alerts.observe(e, l.now())
	l.dispatch.Add(l.abort, e)
}

// housekeep runs on every tick: due SIEM batches and replays, the drop
// report, queue gauges and alert evaluation.
func (l *Logger) housekeep() {
	l.dispatch.Tick(l.abort)

	dropped := l.dropped.Load()
	delta := dropped - l.reportedDrops
	l.reportedDrops = dropped
	if delta > 0 {
		logging.Warn().
			Uint64("dropped", delta).
			Uint64("dropped_total", dropped).
			Int("queue_capacity", cap(l.queue)).
			Msg("Log queue full, records dropped")
	}

	depth := len(l.queue)
	metrics.UpdateQueue(depth, cap(l.queue))

	for _, a := range l.alerts.evaluate(l.now(), depth, cap(l.queue), delta) {
		l.fire(a)
	}
}

// fire writes an alert record straight to the security sink, bypassing the
// queue, and mirrors it on the diagnostic stream.
func (l *Logger) fire(a alert) {
	metrics.AlertsFired.WithLabelValues(a.name).Inc()
	logging.Warn().
		Str("alert", a.name).
		Float64("value", a.value).
		Float64("threshold", a.threshold).
		Msg("Alert threshold exceeded")

	r := &record.Record{
		Time:    l.now(),
		Level:   record.LevelError,
		Channel: record.ChannelSecurity,
		Message: "Security: alert.threshold_exceeded",
		Caller:  record.CallerAt(0),
		Fields: record.Fields{
			record.F("event_type", "alert.threshold_exceeded"),
			record.F("alert", a.name),
			record.F("value", a.value),
			record.F("threshold", a.threshold),
		},
		GoroutineID: record.GoroutineID(),
		TaskName:    "observa-worker",
	}
	_ = l.sinks.Write(l.formatter.Format(r))
}

// drain empties the queue after Shutdown closed stop. New records can no
// longer arrive. If the shutdown deadline passes, the rest is counted as
// lost.
func (l *Logger) drain() {
	drained := 0
	for {
		if l.abort.Err() != nil {
			l.reportLost()
			break
		}
		select {
		case e := <-l.queue:
			l.write(e)
			drained++
			continue
		default:
		}
		break
	}

	if l.abort.Err() == nil {
		l.dispatch.Flush(l.abort)
	}
	l.housekeepFinal()

	if err := l.dispatch.Close(); err != nil {
		logging.Error().Err(err).Msg("Failed to close SIEM adapters")
	}
	if err := l.sinks.Close(); err != nil {
		logging.Error().Err(err).Msg("Failed to close log sinks")
	}
	metrics.UpdateQueue(0, cap(l.queue))

	logging.Info().
		Int("drained", drained).
		Uint64("written", l.written.Load()).
		Uint64("dropped", l.dropped.Load()).
		Uint64("lost", l.lost.Load()).
		Msg("Enterprise logger stopped")
}

// housekeepFinal reports drops not yet reported by a tick.
func (l *Logger) housekeepFinal() {
	dropped := l.dropped.Load()
	if delta := dropped - l.reportedDrops; delta > 0 {
		l.reportedDrops = dropped
		logging.Warn().
			Uint64("dropped", delta).
			Uint64("dropped_total", dropped).
			Msg("Log queue full, records dropped")
	}
}

func (l *Logger) reportLost() {
	var n uint64
	for {
		select {
		case <-l.queue:
			n++
			continue
		default:
		}
		break
	}
	if n == 0 {
		return
	}
	l.lost.Add(n)
	metrics.RecordsLostAtShutdown.Add(float64(n))
	logging.Error().Uint64("lost", n).Msg("Records lost at shutdown")
}
