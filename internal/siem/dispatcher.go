// Observa - Enterprise Logging and Observability Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/observa

package siem

import (
	"context"
	"errors"
	"time"

	"golang.org/x/time/rate"

	"github.com/tomtom215/observa/internal/config"
	"github.com/tomtom215/observa/internal/logging"
	"github.com/tomtom215/observa/internal/metrics"
	"github.com/tomtom215/observa/internal/record"
	"github.com/tomtom215/observa/internal/wal"
)

// openNoticeInterval throttles the "breaker open" diagnostic per adapter.
const openNoticeInterval = 30 * time.Second

// maxReplayPerTick bounds how many spooled batches one Tick replays.
const maxReplayPerTick = 10

// Route binds an adapter to its settings and, for the buffer and spool
// overflow policies, the spool holding undelivered batches.
type Route struct {
	Adapter  Adapter
	Settings config.SIEMSettings
	Spool    wal.Spool
}

// Dispatcher batches entries per adapter and delivers them through a
// breaker and a Deliverer. It is driven by a single goroutine: Add, Tick,
// Flush and Close must not be called concurrently. BreakerStates and
// SpoolDepths may be called from any goroutine.
type Dispatcher struct {
	routes []*route
	now    func() time.Time
}

type route struct {
	adapter   Adapter
	settings  config.SIEMSettings
	breaker   *CircuitBreaker
	deliverer *Deliverer
	spool     wal.Spool

	batch   []*record.Entry
	firstAt time.Time

	openNotice *rate.Sometimes
}

// BuildRoute creates the adapter selected by s and the spool its overflow
// policy needs. The spool policy requires store; without one it falls back
// to an in-memory buffer.
func BuildRoute(ctx context.Context, s config.SIEMSettings, environment string, store *wal.Store) (Route, error) {
	a, err := NewAdapter(ctx, s, environment)
	if err != nil {
		return Route{}, err
	}
	r := Route{Adapter: a, Settings: s}

	switch s.OverflowPolicy {
	case config.OverflowBuffer:
		r.Spool = wal.NewMemorySpool()
	case config.OverflowSpool:
		if store == nil {
			logging.Warn().Str("adapter", a.Name()).Msg("No spool store configured, buffering overflow in memory")
			r.Spool = wal.NewMemorySpool()
			break
		}
		sp, err := store.Spool(a.Name())
		if err != nil {
			_ = a.Close()
			return Route{}, err
		}
		r.Spool = sp
	}
	return r, nil
}

// NewDispatcher creates one breaker and deliverer per route.
func NewDispatcher(routes ...Route) *Dispatcher {
	d := &Dispatcher{now: time.Now}
	for _, r := range routes {
		s := r.Settings
		name := r.Adapter.Name()
		d.routes = append(d.routes, &route{
			adapter:    r.Adapter,
			settings:   s,
			breaker:    NewCircuitBreaker(name, s.BreakerThreshold, s.BreakerCooldown),
			deliverer:  NewDeliverer(r.Adapter, s.MaxAttempts, s.Timeout),
			spool:      r.Spool,
			openNotice: &rate.Sometimes{Interval: openNoticeInterval},
		})
	}
	return d
}

// Len returns the number of routes.
func (d *Dispatcher) Len() int {
	return len(d.routes)
}

// Add queues e for every adapter, sending a batch as soon as it is full.
func (d *Dispatcher) Add(ctx context.Context, e *record.Entry) {
	for _, r := range d.routes {
		if len(r.batch) == 0 {
			r.firstAt = d.now()
		}
		r.batch = append(r.batch, e)
		if len(r.batch) >= r.batchSize() {
			r.flush(ctx)
		}
	}
}

// Tick replays spooled batches whose breaker admits requests, then sends
// batches older than their flush interval.
func (d *Dispatcher) Tick(ctx context.Context) {
	now := d.now()
	for _, r := range d.routes {
		r.replay(ctx)
		if len(r.batch) > 0 && now.Sub(r.firstAt) >= r.settings.FlushInterval {
			r.flush(ctx)
		}
		r.updateSpoolMetric()
	}
}

// Flush sends every pending batch regardless of age.
func (d *Dispatcher) Flush(ctx context.Context) {
	for _, r := range d.routes {
		if len(r.batch) > 0 {
			r.flush(ctx)
		}
		r.updateSpoolMetric()
	}
}

// BreakerStates returns the breaker state per adapter.
func (d *Dispatcher) BreakerStates() map[string]string {
	out := make(map[string]string, len(d.routes))
	for _, r := range d.routes {
		out[r.adapter.Name()] = r.breaker.State()
	}
	return out
}

// SpoolDepths returns the number of held batches per adapter that has a
// spool.
func (d *Dispatcher) SpoolDepths() map[string]int {
	out := make(map[string]int, len(d.routes))
	for _, r := range d.routes {
		if r.spool != nil {
			out[r.adapter.Name()] = r.spool.Len()
		}
	}
	return out
}

// Close closes every spool and adapter. Batches held by an in-memory
// spool are reported as lost.
func (d *Dispatcher) Close() error {
	var errs []error
	for _, r := range d.routes {
		if r.spool != nil {
			if _, ok := r.spool.(*wal.MemorySpool); ok {
				if n := r.spool.Len(); n > 0 {
					logging.Warn().Str("adapter", r.adapter.Name()).Int("batches", n).Msg("Buffered SIEM batches lost at shutdown")
				}
			}
			if err := r.spool.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		if err := r.adapter.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *route) batchSize() int {
	if r.settings.BatchSize < 1 {
		return 1
	}
	return r.settings.BatchSize
}

func (r *route) flush(ctx context.Context) {
	batch := r.batch
	r.batch = nil
	r.send(ctx, batch)
}

// send delivers batch if the breaker admits it and hands it to the
// overflow policy otherwise. It reports whether the batch was delivered.
func (r *route) send(ctx context.Context, batch []*record.Entry) bool {
	name := r.adapter.Name()

	if !r.breaker.AllowRequest() {
		r.openNotice.Do(func() {
			logging.Warn().
				Str("adapter", name).
				Str("state", r.breaker.State()).
				Str("overflow_policy", r.policy()).
				Msg("SIEM circuit breaker open, skipping delivery")
		})
		metrics.RecordSIEMBatch(name, "rejected", len(batch), 0)
		r.overflow(batch)
		return false
	}

	start := time.Now()
	err := r.deliverer.Deliver(ctx, batch)
	if err != nil {
		r.breaker.RecordFailure()
		metrics.RecordSIEMBatch(name, "failure", len(batch), time.Since(start))
		r.overflow(batch)
		return false
	}
	r.breaker.RecordSuccess()
	metrics.RecordSIEMBatch(name, "success", len(batch), time.Since(start))
	return true
}

func (r *route) policy() string {
	if r.spool == nil {
		return config.OverflowDrop
	}
	return r.settings.OverflowPolicy
}

// overflow keeps an undelivered batch in the spool, evicting the oldest
// batch at the limit, or drops it when there is no spool.
func (r *route) overflow(batch []*record.Entry) {
	name := r.adapter.Name()
	if r.spool == nil {
		metrics.RecordSIEMBatch(name, "dropped", len(batch), 0)
		return
	}

	limit := r.settings.OverflowLimit
	for limit > 0 && r.spool.Len() >= limit {
		evicted, err := r.spool.Pop()
		if err != nil {
			break
		}
		metrics.SpoolEvicted.WithLabelValues(name).Inc()
		metrics.RecordSIEMBatch(name, "dropped", len(evicted), 0)
	}

	if err := r.spool.Push(batch); err != nil {
		logging.Error().Err(err).Str("adapter", name).Int("batch_size", len(batch)).Msg("Failed to spool SIEM batch, dropping")
		metrics.RecordSIEMBatch(name, "dropped", len(batch), 0)
		return
	}
	metrics.RecordSIEMBatch(name, "spooled", len(batch), 0)
	r.updateSpoolMetric()
}

// replay resends spooled batches oldest first while the breaker admits
// them. A batch that fails again goes back to the spool and replay stops.
func (r *route) replay(ctx context.Context) {
	if r.spool == nil {
		return
	}
	for i := 0; i < maxReplayPerTick && r.spool.Len() > 0; i++ {
		if r.breaker.State() == StateOpen {
			return
		}
		batch, err := r.spool.Pop()
		if err != nil {
			if !errors.Is(err, wal.ErrEmpty) {
				logging.Warn().Err(err).Str("adapter", r.adapter.Name()).Msg("Failed to read spooled SIEM batch")
			}
			return
		}
		if !r.send(ctx, batch) {
			return
		}
		metrics.SpoolReplayed.WithLabelValues(r.adapter.Name()).Inc()
	}
}

func (r *route) updateSpoolMetric() {
	if r.spool == nil {
		return
	}
	metrics.SpoolDepth.WithLabelValues(r.adapter.Name(), r.policy()).Set(float64(r.spool.Len()))
}
