// Observa - Enterprise Logging and Observability Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/observa

package supervisor

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"
)

// mockService runs until canceled, optionally failing its first starts.
type mockService struct {
	name       string
	startCount atomic.Int32
	failFirst  int32
}

var _ suture.Service = (*mockService)(nil)

func (m *mockService) Serve(ctx context.Context) error {
	if n := m.startCount.Add(1); n <= m.failFirst {
		return errors.New("simulated failure")
	}
	<-ctx.Done()
	return ctx.Err()
}

func (m *mockService) String() string { return m.name }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestSupervisorTreeConstruction(t *testing.T) {
	t.Run("applies default values for zero config", func(t *testing.T) {
		tree, err := NewSupervisorTree(quietLogger(), TreeConfig{})
		if err != nil {
			t.Fatalf("failed to create tree: %v", err)
		}
		if tree.Root() == nil {
			t.Fatal("root supervisor should not be nil")
		}
		if tree.config != DefaultTreeConfig() {
			t.Errorf("expected defaults %+v, got %+v", DefaultTreeConfig(), tree.config)
		}
	})

	t.Run("keeps explicit values", func(t *testing.T) {
		tree, _ := NewSupervisorTree(quietLogger(), TreeConfig{ShutdownTimeout: 3 * time.Second})
		if tree.config.ShutdownTimeout != 3*time.Second {
			t.Errorf("expected ShutdownTimeout 3s, got %v", tree.config.ShutdownTimeout)
		}
	})
}

func TestSupervisorTreeLifecycle(t *testing.T) {
	tree, err := NewSupervisorTree(quietLogger(), TreeConfig{
		FailureBackoff:  100 * time.Millisecond,
		ShutdownTimeout: time.Second,
	})
	if err != nil {
		t.Fatalf("failed to create tree: %v", err)
	}

	pipeline := &mockService{name: "mock-pipeline"}
	api := &mockService{name: "mock-api"}
	tree.AddPipelineService(pipeline)
	tree.AddAPIService(api)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := tree.ServeBackground(ctx)

	time.Sleep(100 * time.Millisecond)
	if pipeline.startCount.Load() < 1 || api.startCount.Load() < 1 {
		t.Errorf("expected both layers started, got pipeline=%d api=%d",
			pipeline.startCount.Load(), api.startCount.Load())
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("unexpected error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("tree did not shut down in time")
	}

	report, err := tree.UnstoppedServiceReport()
	if err != nil {
		t.Fatalf("unexpected report error: %v", err)
	}
	if len(report) != 0 {
		t.Errorf("expected every service stopped, got %v", report)
	}
}

func TestSupervisorTreeFailureIsolation(t *testing.T) {
	tree, _ := NewSupervisorTree(quietLogger(), TreeConfig{
		FailureThreshold: 10,
		FailureBackoff:   10 * time.Millisecond,
		ShutdownTimeout:  time.Second,
	})

	failing := &mockService{name: "failing", failFirst: 2}
	stable := &mockService{name: "stable"}
	tree.AddAPIService(failing)
	tree.AddPipelineService(stable)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	errCh := tree.ServeBackground(ctx)
	time.Sleep(200 * time.Millisecond)

	if failing.startCount.Load() < 3 {
		t.Errorf("expected at least 3 starts for failing service, got %d", failing.startCount.Load())
	}
	if stable.startCount.Load() != 1 {
		t.Errorf("expected the other layer untouched, got %d starts", stable.startCount.Load())
	}

	cancel()
	<-errCh
}
