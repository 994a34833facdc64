// Observa - Enterprise Logging and Observability Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/observa

package siem

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/tomtom215/observa/internal/config"
	"github.com/tomtom215/observa/internal/record"
	"github.com/tomtom215/observa/internal/wal"
)

func routeSettings(batchSize int, policy string) config.SIEMSettings {
	s := config.DefaultEnvironment(config.EnvTesting).SIEM
	s.Enabled = true
	s.BatchSize = batchSize
	s.FlushInterval = time.Second
	s.MaxAttempts = 1
	s.BreakerThreshold = 2
	s.BreakerCooldown = 80 * time.Millisecond
	s.OverflowPolicy = policy
	s.OverflowLimit = 3
	return s
}

func entry(msg string) *record.Entry {
	return &record.Entry{Level: "INFO", Channel: record.ChannelApplication, Message: msg, Extra: record.Fields{}}
}

// manualClock is advanced by tests.
type manualClock struct{ t time.Time }

func (c *manualClock) Now() time.Time { return c.t }

func TestDispatcher_BatchesBySize(t *testing.T) {
	t.Parallel()

	a := &fakeAdapter{name: breakerName("size")}
	d := NewDispatcher(Route{Adapter: a, Settings: routeSettings(3, config.OverflowDrop)})
	ctx := context.Background()

	d.Add(ctx, entry("1"))
	d.Add(ctx, entry("2"))
	if a.callCount() != 0 {
		t.Fatalf("expected no send before batch is full, got %d", a.callCount())
	}
	d.Add(ctx, entry("3"))
	if a.callCount() != 1 {
		t.Fatalf("expected one send for a full batch, got %d", a.callCount())
	}
	got := a.deliveredMessages()
	if len(got) != 3 || got[0] != "1" || got[2] != "3" {
		t.Errorf("expected batch in enqueue order, got %v", got)
	}
}

func TestDispatcher_FlushInterval(t *testing.T) {
	t.Parallel()

	clock := &manualClock{t: time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)}
	a := &fakeAdapter{name: breakerName("interval")}
	d := NewDispatcher(Route{Adapter: a, Settings: routeSettings(100, config.OverflowDrop)})
	d.now = clock.Now
	ctx := context.Background()

	d.Add(ctx, entry("a"))
	clock.t = clock.t.Add(500 * time.Millisecond)
	d.Tick(ctx)
	if a.callCount() != 0 {
		t.Fatalf("expected no send before the flush interval, got %d", a.callCount())
	}

	clock.t = clock.t.Add(600 * time.Millisecond)
	d.Tick(ctx)
	if a.callCount() != 1 {
		t.Fatalf("expected send after the flush interval, got %d", a.callCount())
	}

	d.Tick(ctx)
	if a.callCount() != 1 {
		t.Errorf("expected no send for an empty batch, got %d", a.callCount())
	}
}

func TestDispatcher_Flush(t *testing.T) {
	t.Parallel()

	a := &fakeAdapter{name: breakerName("flush")}
	b := &fakeAdapter{name: breakerName("flush")}
	d := NewDispatcher(
		Route{Adapter: a, Settings: routeSettings(100, config.OverflowDrop)},
		Route{Adapter: b, Settings: routeSettings(100, config.OverflowDrop)},
	)
	d.Add(context.Background(), entry("x"))
	d.Flush(context.Background())

	if len(a.deliveredMessages()) != 1 || len(b.deliveredMessages()) != 1 {
		t.Errorf("expected both adapters to receive the entry")
	}
}

func TestDispatcher_OpenBreakerSkipsNetwork(t *testing.T) {
	t.Parallel()

	a := &fakeAdapter{name: breakerName("open"), failures: -1}
	d := NewDispatcher(Route{Adapter: a, Settings: routeSettings(1, config.OverflowDrop)})
	ctx := context.Background()

	d.Add(ctx, entry("1"))
	d.Add(ctx, entry("2"))
	if d.BreakerStates()[a.name] != StateOpen {
		t.Fatalf("expected OPEN after threshold failures, got %v", d.BreakerStates())
	}

	calls := a.callCount()
	for i := 0; i < 5; i++ {
		d.Add(ctx, entry("skipped"))
	}
	if a.callCount() != calls {
		t.Errorf("expected no sends while OPEN, got %d more", a.callCount()-calls)
	}
}

func TestDispatcher_BufferAndReplay(t *testing.T) {
	t.Parallel()

	a := &fakeAdapter{name: breakerName("buffer"), failures: -1}
	spool := wal.NewMemorySpool()
	d := NewDispatcher(Route{Adapter: a, Settings: routeSettings(1, config.OverflowBuffer), Spool: spool})
	ctx := context.Background()

	d.Add(ctx, entry("1"))
	d.Add(ctx, entry("2"))
	d.Add(ctx, entry("3"))
	if spool.Len() != 3 {
		t.Fatalf("expected 3 held batches, got %d", spool.Len())
	}

	// The limit evicts the oldest batch.
	d.Add(ctx, entry("4"))
	if spool.Len() != 3 {
		t.Fatalf("expected spool capped at 3, got %d", spool.Len())
	}
	if depth := d.SpoolDepths()[a.name]; depth != 3 {
		t.Errorf("expected SpoolDepths 3, got %d", depth)
	}

	a.setFailures(0)
	time.Sleep(120 * time.Millisecond)
	d.Tick(ctx)

	if spool.Len() != 0 {
		t.Fatalf("expected spool drained after recovery, got %d", spool.Len())
	}
	got := a.deliveredMessages()
	want := []string{"2", "3", "4"}
	if len(got) != len(want) {
		t.Fatalf("expected replayed %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("expected replay order %v, got %v", want, got)
			break
		}
	}
	if d.BreakerStates()[a.name] != StateClosed {
		t.Errorf("expected CLOSED after successful replay, got %s", d.BreakerStates()[a.name])
	}
}

func TestDispatcher_ReplayStopsOnFailure(t *testing.T) {
	t.Parallel()

	a := &fakeAdapter{name: breakerName("refail"), failures: -1}
	spool := wal.NewMemorySpool()
	d := NewDispatcher(Route{Adapter: a, Settings: routeSettings(1, config.OverflowBuffer), Spool: spool})
	ctx := context.Background()

	d.Add(ctx, entry("1"))
	d.Add(ctx, entry("2"))
	time.Sleep(120 * time.Millisecond)

	calls := a.callCount()
	d.Tick(ctx)
	if a.callCount() != calls+1 {
		t.Errorf("expected exactly one probe, got %d sends", a.callCount()-calls)
	}
	if spool.Len() != 2 {
		t.Errorf("expected the failed probe batch back in the spool, got %d", spool.Len())
	}
	if d.BreakerStates()[a.name] != StateOpen {
		t.Errorf("expected OPEN after failed probe, got %s", d.BreakerStates()[a.name])
	}
}

func TestDispatcher_BadgerSpoolRoute(t *testing.T) {
	t.Parallel()

	cfg := wal.DefaultConfig(filepath.Join(t.TempDir(), "spool"))
	cfg.SyncWrites = false
	store, err := wal.Open(cfg)
	if err != nil {
		t.Fatalf("wal.Open failed: %v", err)
	}
	defer store.Close()

	name := breakerName("durable")
	sp, err := store.Spool(name)
	if err != nil {
		t.Fatalf("Spool failed: %v", err)
	}
	a := &fakeAdapter{name: name, failures: -1}
	d := NewDispatcher(Route{Adapter: a, Settings: routeSettings(1, config.OverflowSpool), Spool: sp})
	ctx := context.Background()

	d.Add(ctx, entry("persisted"))
	if sp.Len() != 1 {
		t.Fatalf("expected batch in durable spool, got %d", sp.Len())
	}

	a.setFailures(0)
	d.Tick(ctx)
	if got := a.deliveredMessages(); len(got) != 1 || got[0] != "persisted" {
		t.Errorf("expected replay of spooled batch, got %v", got)
	}
}

func TestDispatcher_Close(t *testing.T) {
	t.Parallel()

	a := &fakeAdapter{name: breakerName("close"), failures: -1}
	spool := wal.NewMemorySpool()
	d := NewDispatcher(Route{Adapter: a, Settings: routeSettings(1, config.OverflowBuffer), Spool: spool})
	d.Add(context.Background(), entry("lost"))

	if err := d.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !a.closed {
		t.Error("expected adapter closed")
	}
	if err := spool.Push(nil); !errors.Is(err, wal.ErrClosed) {
		t.Errorf("expected spool closed, got %v", err)
	}
}

func TestBuildRoute(t *testing.T) {
	t.Parallel()

	s := settings(ProviderSplunk, "http://127.0.0.1:1")

	s.OverflowPolicy = config.OverflowDrop
	r, err := BuildRoute(context.Background(), s, "testing", nil)
	if err != nil {
		t.Fatalf("BuildRoute failed: %v", err)
	}
	if r.Spool != nil {
		t.Error("expected no spool for drop policy")
	}

	s.OverflowPolicy = config.OverflowBuffer
	r, _ = BuildRoute(context.Background(), s, "testing", nil)
	if _, ok := r.Spool.(*wal.MemorySpool); !ok {
		t.Errorf("expected memory spool for buffer policy, got %T", r.Spool)
	}

	s.OverflowPolicy = config.OverflowSpool
	r, _ = BuildRoute(context.Background(), s, "testing", nil)
	if _, ok := r.Spool.(*wal.MemorySpool); !ok {
		t.Errorf("expected memory fallback without a store, got %T", r.Spool)
	}

	s.Provider = "graylog"
	if _, err := BuildRoute(context.Background(), s, "testing", nil); !errors.Is(err, ErrUnknownProvider) {
		t.Errorf("expected ErrUnknownProvider, got %v", err)
	}
}
