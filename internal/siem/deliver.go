// Observa - Enterprise Logging and Observability Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/observa

package siem

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/tomtom215/observa/internal/logging"
	"github.com/tomtom215/observa/internal/metrics"
	"github.com/tomtom215/observa/internal/record"
)

// Deliverer sends a batch through one adapter with exponential backoff.
type Deliverer struct {
	adapter     Adapter
	maxAttempts int
	timeout     time.Duration

	initialInterval time.Duration
	maxInterval     time.Duration
}

// NewDeliverer creates a deliverer making at most maxAttempts attempts,
// each bounded by timeout.
func NewDeliverer(a Adapter, maxAttempts int, timeout time.Duration) *Deliverer {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Deliverer{
		adapter:         a,
		maxAttempts:     maxAttempts,
		timeout:         timeout,
		initialInterval: 500 * time.Millisecond,
		maxInterval:     10 * time.Second,
	}
}

// Deliver sends batch, retrying transient failures. Each attempt gets its
// own timeout that does not inherit ctx's cancellation; ctx only stops the
// waits between attempts. Every failed attempt is logged at WARNING and a
// final failure at ERROR with the stack.
func (d *Deliverer) Deliver(ctx context.Context, batch []*record.Entry) error {
	name := d.adapter.Name()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = d.initialInterval
	b.MaxInterval = d.maxInterval
	b.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(d.maxAttempts-1)), ctx)

	attempt := 0
	operation := func() error {
		attempt++
		err := d.attempt(ctx, batch)
		metrics.RecordSIEMAttempt(name, err)
		if err != nil {
			logging.Warn().
				Err(err).
				Str("adapter", name).
				Int("attempt", attempt).
				Int("max_attempts", d.maxAttempts).
				Int("batch_size", len(batch)).
				Msg("SIEM delivery attempt failed")
		}
		return err
	}

	err := backoff.Retry(operation, policy)
	if err != nil {
		logging.Error().
			Err(err).
			Str("adapter", name).
			Int("attempts", attempt).
			Int("batch_size", len(batch)).
			Strs("stack", record.CaptureStack(1)).
			Msg("SIEM delivery failed")
		return fmt.Errorf("%s: delivery failed after %d attempts: %w", name, attempt, err)
	}
	return nil
}

// attempt runs one Send with the per-attempt timeout. A panicking adapter
// is reported as a permanent failure.
func (d *Deliverer) attempt(ctx context.Context, batch []*record.Entry) (err error) {
	actx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = backoff.Permanent(fmt.Errorf("%s: adapter panic: %v", d.adapter.Name(), r))
		}
	}()
	return d.adapter.Send(actx, batch)
}
