// Observa - Enterprise Logging and Observability Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/observa

package main

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

// fakeSpool records whether Close ran while the writer was still active.
type fakeSpool struct {
	writing      atomic.Bool
	closed       atomic.Bool
	closedDuring atomic.Bool
	err          error
}

func (f *fakeSpool) Close() error {
	if f.writing.Load() {
		f.closedDuring.Store(true)
	}
	f.closed.Store(true)
	return f.err
}

func TestCloseSpool_WaitsForWorker(t *testing.T) {
	t.Parallel()

	store := &fakeSpool{}
	store.writing.Store(true)
	done := make(chan struct{})
	go func() {
		time.Sleep(50 * time.Millisecond)
		store.writing.Store(false)
		close(done)
	}()

	if err := closeSpool(store, done, time.Second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !store.closed.Load() {
		t.Error("expected spool closed after the worker exited")
	}
	if store.closedDuring.Load() {
		t.Error("expected spool not closed while the worker was writing")
	}
}

func TestCloseSpool_WorkerStillRunning(t *testing.T) {
	t.Parallel()

	store := &fakeSpool{}
	store.writing.Store(true)
	done := make(chan struct{})
	defer close(done)

	start := time.Now()
	err := closeSpool(store, done, 30*time.Millisecond)
	if !errors.Is(err, errSpoolBusy) {
		t.Errorf("expected errSpoolBusy, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("expected close to give up after the wait bound, took %v", elapsed)
	}
	if store.closed.Load() {
		t.Error("expected spool left open while the worker runs")
	}
}

func TestCloseSpool_NoWorker(t *testing.T) {
	t.Parallel()

	store := &fakeSpool{err: errors.New("disk gone")}
	err := closeSpool(store, closedChan(), time.Second)
	if err == nil || !store.closed.Load() {
		t.Fatalf("expected close to run and report its error, got %v", err)
	}
	if errors.Is(err, errSpoolBusy) {
		t.Errorf("expected the close error, got %v", err)
	}
}
