// Observa - Enterprise Logging and Observability Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/observa

package enterprise

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/observa/internal/config"
	"github.com/tomtom215/observa/internal/logging"
	"github.com/tomtom215/observa/internal/masking"
	"github.com/tomtom215/observa/internal/record"
	"github.com/tomtom215/observa/internal/siem"
	"github.com/tomtom215/observa/internal/sink"
)

func testConfig(dir string, queueSize int) *config.EnvironmentConfig {
	cfg := config.DefaultEnvironment(config.EnvTesting)
	cfg.LogDir = dir
	cfg.QueueSize = queueSize
	cfg.Console = false
	cfg.Alerts = config.AlertThresholds{}
	return cfg
}

func newTestLogger(t *testing.T, cfg *config.EnvironmentConfig, opts ...Option) *Logger {
	t.Helper()
	l, err := New(context.Background(), cfg, opts...)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return l
}

func shutdown(t *testing.T, l *Logger) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := l.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
}

// readJSONLines decodes every line of a JSON stream. A missing file has no
// lines.
func readJSONLines(t *testing.T, path string) []map[string]any {
	t.Helper()
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()

	var out []map[string]any
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		var m map[string]any
		if err := json.Unmarshal(sc.Bytes(), &m); err != nil {
			t.Fatalf("decode line in %s: %v", path, err)
		}
		out = append(out, m)
	}
	if err := sc.Err(); err != nil {
		t.Fatalf("scan %s: %v", path, err)
	}
	return out
}

func extra(m map[string]any) map[string]any {
	x, _ := m["extra"].(map[string]any)
	return x
}

// TestLogger_ConcurrentProducers enqueues 10,000 records from 8 producers
// and checks every record reached its channel file in per-producer order.
func TestLogger_ConcurrentProducers(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	l := newTestLogger(t, testConfig(dir, 50000))

	const producers = 8
	const perProducer = 1250

	var g errgroup.Group
	for p := 0; p < producers; p++ {
		g.Go(func() error {
			ctx := logging.ContextWithTaskName(context.Background(), fmt.Sprintf("producer-%d", p))
			for i := 0; i < perProducer; i++ {
				if i%10 == 0 {
					l.Audit(ctx, "record.created", map[string]any{"producer": p, "seq": i}, "success")
					continue
				}
				l.Info(ctx, "record", "producer", p, "seq", i)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
	shutdown(t, l)

	app := readJSONLines(t, filepath.Join(dir, sink.ApplicationJSON))
	audit := readJSONLines(t, filepath.Join(dir, sink.Audit))
	if total := len(app) + len(audit); total != producers*perProducer {
		t.Fatalf("expected %d records across channels, got %d (application %d, audit %d)",
			producers*perProducer, total, len(app), len(audit))
	}
	if l.DroppedCount() != 0 {
		t.Errorf("expected no drops, got %d", l.DroppedCount())
	}

	checkOrder := func(name string, lines []map[string]any, fields func(map[string]any) map[string]any) {
		last := make(map[float64]float64)
		for _, line := range lines {
			f := fields(line)
			p, _ := f["producer"].(float64)
			seq, _ := f["seq"].(float64)
			if prev, ok := last[p]; ok && seq <= prev {
				t.Errorf("%s: producer %v out of order: seq %v after %v", name, p, seq, prev)
				return
			}
			last[p] = seq
		}
	}
	checkOrder("application", app, extra)
	checkOrder("audit", audit, func(m map[string]any) map[string]any {
		d, _ := extra(m)["details"].(map[string]any)
		return d
	})

	if name, _ := app[0]["thread_name"].(string); !strings.HasPrefix(name, "producer-") {
		t.Errorf("expected thread_name from the task name, got %q", name)
	}
}

// TestLogger_QueueOverflow fills a queue of 10 with no worker running.
func TestLogger_QueueOverflow(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	l, err := newLogger(context.Background(), testConfig(dir, 10))
	if err != nil {
		t.Fatalf("newLogger failed: %v", err)
	}

	for i := 0; i < 15; i++ {
		l.Info(context.Background(), "overflow", "seq", i)
	}

	if l.DroppedCount() != 5 {
		t.Errorf("expected 5 dropped, got %d", l.DroppedCount())
	}
	stats := l.Stats()
	if stats.Enqueued != 10 || stats.QueueDepth != 10 || stats.QueueCapacity != 10 {
		t.Errorf("expected 10 enqueued in a full queue of 10, got %+v", stats)
	}

	l.start()
	shutdown(t, l)

	lines := readJSONLines(t, filepath.Join(dir, sink.ApplicationJSON))
	if len(lines) != 10 {
		t.Fatalf("expected 10 written records, got %d", len(lines))
	}
	for i, line := range lines {
		if seq := extra(line)["seq"]; seq != float64(i) {
			t.Errorf("expected the first 10 records to survive, line %d has seq %v", i, seq)
		}
	}
}

func TestLogger_QueueOverflow_PropertyBased(t *testing.T) {
	base := t.TempDir()
	var run atomic.Int64

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 25
	properties := gopter.NewProperties(parameters)

	properties.Property("drops exactly the excess over capacity", prop.ForAll(
		func(capacity, excess int) bool {
			dir := filepath.Join(base, fmt.Sprint(run.Add(1)))
			l, err := newLogger(context.Background(), testConfig(dir, capacity))
			if err != nil {
				return false
			}
			for i := 0; i < capacity+excess; i++ {
				l.Debug(context.Background(), "fill")
			}
			ok := l.DroppedCount() == uint64(excess) && len(l.queue) == capacity

			l.start()
			if err := l.Shutdown(context.Background()); err != nil {
				return false
			}
			return ok && l.Stats().Written == uint64(capacity)
		},
		gen.IntRange(1, 40),
		gen.IntRange(0, 40),
	))

	properties.TestingRun(t)
}

// TestLogger_CorrelationIsolation runs two units of work concurrently, each
// emitting from several goroutines.
func TestLogger_CorrelationIsolation(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	l := newTestLogger(t, testConfig(dir, 10000))

	units := map[string]string{}
	var mu sync.Mutex
	var g errgroup.Group
	for _, unit := range []string{"unit-a", "unit-b"} {
		g.Go(func() error {
			ctx := logging.BeginUnit(context.Background(), map[string]any{"unit": unit})
			mu.Lock()
			units[unit] = logging.CorrelationIDFromContext(ctx)
			mu.Unlock()

			var workers errgroup.Group
			for w := 0; w < 4; w++ {
				workers.Go(func() error {
					for i := 0; i < 25; i++ {
						l.Info(ctx, "step", "unit", unit, "worker", w)
					}
					return nil
				})
			}
			return workers.Wait()
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatal(err)
	}
	shutdown(t, l)

	if units["unit-a"] == units["unit-b"] {
		t.Fatal("expected distinct correlation IDs per unit")
	}
	lines := readJSONLines(t, filepath.Join(dir, sink.ApplicationJSON))
	if len(lines) != 200 {
		t.Fatalf("expected 200 records, got %d", len(lines))
	}
	for _, line := range lines {
		unit, _ := extra(line)["unit"].(string)
		if got := line["correlation_id"]; got != units[unit] {
			t.Fatalf("record from %s carries correlation %v, want %s", unit, got, units[unit])
		}
		uc, _ := line["user_context"].(map[string]any)
		if uc["unit"] != unit {
			t.Errorf("expected user_context of %s, got %v", unit, uc)
		}
	}
}

func TestLogger_NoCorrelation(t *testing.T) {
	t.Parallel()

	l, err := newLogger(context.Background(), testConfig(t.TempDir(), 10))
	if err != nil {
		t.Fatalf("newLogger failed: %v", err)
	}
	l.Info(context.Background(), "plain")
	e := <-l.queue

	if e.CorrelationID != nil || e.RequestID != nil || e.TraceID != nil {
		t.Errorf("expected null correlation fields, got %v %v %v", e.CorrelationID, e.RequestID, e.TraceID)
	}

	cleared := logging.Clear(logging.BeginUnit(context.Background(), nil))
	l.Info(cleared, "after clear")
	e = <-l.queue
	if e.CorrelationID != nil {
		t.Errorf("expected no correlation after Clear, got %s", *e.CorrelationID)
	}
}

func TestLogger_MasksBeforeEnqueue(t *testing.T) {
	t.Parallel()

	l, err := newLogger(context.Background(), testConfig(t.TempDir(), 10))
	if err != nil {
		t.Fatalf("newLogger failed: %v", err)
	}
	ctx := context.Background()

	user := map[string]any{"password": "p@ss", "email": "john.doe@example.com"}
	l.Info(ctx, "login by john.doe@example.com", "user", user, "api_key", "abc123")
	e := <-l.queue

	if strings.Contains(e.Message, "john.doe@example.com") {
		t.Errorf("expected message masked, got %q", e.Message)
	}
	if v, _ := e.Extra.Get("api_key"); v != masking.Marker {
		t.Errorf("expected api_key masked, got %v", v)
	}
	u, _ := e.Extra.Get("user")
	um, _ := u.(map[string]any)
	if um["password"] != masking.Marker {
		t.Errorf("expected nested password masked, got %v", um["password"])
	}
	if um["email"] != "j***@e*****.com" {
		t.Errorf("expected email j***@e*****.com, got %v", um["email"])
	}
	if user["password"] != "p@ss" {
		t.Error("expected caller's map to be left unchanged")
	}

	l.Audit(ctx, "user.update", map[string]any{"token": "t0k3n", "field": "name"}, "success")
	e = <-l.queue
	d, _ := e.Extra.Get("details")
	dm, _ := d.(map[string]any)
	if dm["token"] != masking.Marker || dm["field"] != "name" {
		t.Errorf("expected audit details masked, got %v", dm)
	}
}

func TestLogger_FilterAndCompliance(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t.TempDir(), 100)
	cfg.Level = "ERROR"
	l, err := newLogger(context.Background(), cfg)
	if err != nil {
		t.Fatalf("newLogger failed: %v", err)
	}
	ctx := context.Background()

	l.Info(ctx, "filtered")
	l.Performance(ctx, "query", time.Millisecond, nil)
	l.Audit(ctx, "login", nil, "success")
	l.Security(ctx, "probe", nil, "low")
	l.Error(ctx, "kept")

	if got := len(l.queue); got != 3 {
		t.Fatalf("expected 3 queued records, got %d", got)
	}
	if l.Stats().Filtered != 2 {
		t.Errorf("expected 2 filtered, got %d", l.Stats().Filtered)
	}
	want := []record.Channel{record.ChannelAudit, record.ChannelSecurity, record.ChannelApplication}
	for i, ch := range want {
		if e := <-l.queue; e.Channel != ch {
			t.Errorf("record %d: expected channel %s, got %s", i, ch, e.Channel)
		}
	}

	zero := testConfig(t.TempDir(), 100)
	zero.SamplingRate = 0
	l.Reconfigure(zero)
	l.Debug(ctx, "sampled out")
	l.Warning(ctx, "never sampled")
	l.Audit(ctx, "login", nil, "success")
	if got := len(l.queue); got != 2 {
		t.Errorf("expected WARNING and audit to bypass sampling, got %d queued", got)
	}
}

func TestLogger_Reconfigure(t *testing.T) {
	t.Parallel()

	cfg := testConfig(t.TempDir(), 10)
	l, err := newLogger(context.Background(), cfg)
	if err != nil {
		t.Fatalf("newLogger failed: %v", err)
	}

	next := cfg.Clone()
	next.Level = "WARNING"
	l.Reconfigure(next)
	l.Reconfigure(nil)

	l.Info(context.Background(), "below")
	l.Warning(context.Background(), "at")
	if got := len(l.queue); got != 1 {
		t.Errorf("expected only WARNING after reconfigure, got %d", got)
	}
}

func TestSecurityLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		severity string
		want     record.Level
	}{
		{"low", record.LevelInfo},
		{"medium", record.LevelWarning},
		{"HIGH", record.LevelError},
		{"critical", record.LevelCritical},
		{"unknown", record.LevelWarning},
	}
	for _, tt := range tests {
		t.Run(tt.severity, func(t *testing.T) {
			t.Parallel()
			if got := SecurityLevel(tt.severity); got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestLogger_PerformanceAndException(t *testing.T) {
	t.Parallel()

	l, err := newLogger(context.Background(), testConfig(t.TempDir(), 10))
	if err != nil {
		t.Fatalf("newLogger failed: %v", err)
	}
	ctx := context.Background()

	l.Performance(ctx, "db.query", 12500*time.Microsecond, map[string]any{"rows": 3})
	e := <-l.queue
	if e.ExecutionTimeMS == nil || *e.ExecutionTimeMS != 12.5 {
		t.Errorf("expected execution_time_ms 12.5, got %v", e.ExecutionTimeMS)
	}
	if op, _ := e.Extra.Get("operation"); op != "db.query" {
		t.Errorf("expected operation field, got %v", op)
	}

	l.Error(ctx, "charge failed", "order", 7, Exc(fmt.Errorf("gateway: %w", errors.New("password=hunter2"))))
	e = <-l.queue
	if e.Exception == nil {
		t.Fatal("expected exception info")
	}
	if e.Exception.Type != "*errors.errorString" {
		t.Errorf("expected innermost error type, got %s", e.Exception.Type)
	}
	if strings.Contains(e.Exception.Message, "hunter2") {
		t.Errorf("expected exception message masked, got %q", e.Exception.Message)
	}
	if len(e.Exception.Stack) == 0 || !strings.Contains(e.Exception.Stack[0], "TestLogger_PerformanceAndException") {
		t.Errorf("expected stack captured at the call site, got %v", e.Exception.Stack)
	}
	if !strings.HasPrefix(e.Function, "TestLogger_PerformanceAndException") {
		t.Errorf("expected caller function to be the test, got %s", e.Function)
	}
	if _, ok := e.Extra.Get("order"); !ok || len(e.Extra) != 1 {
		t.Errorf("expected only the order field, got %v", e.Extra)
	}

	l.Error(ctx, "no error", Exc(nil))
	if e = <-l.queue; e.Exception != nil || len(e.Extra) != 0 {
		t.Errorf("expected Exc(nil) to be ignored, got %+v %v", e.Exception, e.Extra)
	}
}

func TestLogger_RejectedAfterShutdown(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	l := newTestLogger(t, testConfig(dir, 10))
	l.Info(context.Background(), "before")
	shutdown(t, l)

	l.Info(context.Background(), "after")
	l.Audit(context.Background(), "late", nil, "success")

	stats := l.Stats()
	if stats.Rejected != 2 {
		t.Errorf("expected 2 rejected, got %d", stats.Rejected)
	}
	if !stats.ShuttingDown {
		t.Error("expected ShuttingDown")
	}
	if err := l.Shutdown(context.Background()); !errors.Is(err, ErrShutdown) {
		t.Errorf("expected ErrShutdown on second call, got %v", err)
	}
	if got := len(readJSONLines(t, filepath.Join(dir, sink.ApplicationJSON))); got != 1 {
		t.Errorf("expected only the record emitted before shutdown, got %d", got)
	}
}

// stubAdapter records what it is sent; it fails every send when down.
type stubAdapter struct {
	name string
	down bool

	mu   sync.Mutex
	sent []string
}

func (a *stubAdapter) Name() string { return a.name }

func (a *stubAdapter) Send(_ context.Context, batch []*record.Entry) error {
	if a.down {
		return errors.New("connection refused")
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, e := range batch {
		a.sent = append(a.sent, e.Message)
	}
	return nil
}

func (a *stubAdapter) Close() error { return nil }

func (a *stubAdapter) messages() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.sent...)
}

var adapterSeq atomic.Int64

func stubRoute(a *stubAdapter, batchSize int) siem.Route {
	a.name = fmt.Sprintf("%s-%d", a.name, adapterSeq.Add(1))
	s := config.DefaultEnvironment(config.EnvTesting).SIEM
	s.Enabled = true
	s.BatchSize = batchSize
	s.MaxAttempts = 1
	s.BreakerThreshold = 2
	s.OverflowPolicy = config.OverflowDrop
	return siem.Route{Adapter: a, Settings: s}
}

func TestLogger_ShutdownFlushesSIEM(t *testing.T) {
	t.Parallel()

	a := &stubAdapter{name: "stub"}
	l := newTestLogger(t, testConfig(t.TempDir(), 100), WithRoutes(stubRoute(a, 100)))

	for i := 0; i < 5; i++ {
		l.Info(context.Background(), fmt.Sprintf("m%d", i))
	}
	shutdown(t, l)

	got := a.messages()
	if len(got) != 5 || got[0] != "m0" || got[4] != "m4" {
		t.Errorf("expected the partial batch flushed in order at shutdown, got %v", got)
	}
}

func TestLogger_SIEMFailureDoesNotAffectSinks(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	down := &stubAdapter{name: "down", down: true}
	up := &stubAdapter{name: "up"}
	l := newTestLogger(t, testConfig(dir, 100), WithRoutes(stubRoute(down, 1), stubRoute(up, 1)))

	for i := 0; i < 4; i++ {
		l.Warning(context.Background(), "disk almost full")
	}
	shutdown(t, l)

	if got := len(readJSONLines(t, filepath.Join(dir, sink.ApplicationJSON))); got != 4 {
		t.Errorf("expected 4 records in the sink, got %d", got)
	}
	if got := len(up.messages()); got != 4 {
		t.Errorf("expected the healthy adapter to receive 4 records, got %d", got)
	}
	if state := l.BreakerStates()[down.name]; state != siem.StateOpen {
		t.Errorf("expected the failing adapter's breaker OPEN, got %s", state)
	}
	if state := l.BreakerStates()[up.name]; state != siem.StateClosed {
		t.Errorf("expected the healthy adapter's breaker CLOSED, got %s", state)
	}

	warnings, err := os.ReadFile(filepath.Join(dir, sink.Warnings))
	if err != nil {
		t.Fatalf("read warnings: %v", err)
	}
	if n := strings.Count(string(warnings), "disk almost full"); n != 4 {
		t.Errorf("expected 4 lines in the warnings stream, got %d", n)
	}
}

func TestLogger_DropAlert(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	cfg := testConfig(dir, 1)
	cfg.Alerts = config.AlertThresholds{DroppedPerInterval: 1}
	l, err := newLogger(context.Background(), cfg, WithTickInterval(10*time.Millisecond))
	if err != nil {
		t.Fatalf("newLogger failed: %v", err)
	}

	for i := 0; i < 3; i++ {
		l.Info(context.Background(), "burst")
	}
	l.start()
	time.Sleep(100 * time.Millisecond)
	shutdown(t, l)

	var found bool
	for _, line := range readJSONLines(t, filepath.Join(dir, sink.Security)) {
		x := extra(line)
		if x["event_type"] == "alert.threshold_exceeded" && x["alert"] == AlertDroppedRecords {
			found = true
			if x["value"] != float64(2) {
				t.Errorf("expected 2 dropped in the interval, got %v", x["value"])
			}
		}
	}
	if !found {
		t.Error("expected a dropped_records alert in the security stream")
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	t.Parallel()

	if _, err := New(context.Background(), nil); err == nil {
		t.Error("expected error for nil config")
	}

	cfg := testConfig(t.TempDir(), 10)
	cfg.SamplingRate = 2
	if _, err := New(context.Background(), cfg); err == nil {
		t.Error("expected validation error for sampling rate 2")
	}

	cfg = testConfig(t.TempDir(), 10)
	cfg.SIEM.Enabled = true
	cfg.SIEM.Provider = "splunk"
	cfg.SIEM.Endpoint = "ftp://siem.example.com"
	if _, err := New(context.Background(), cfg); err == nil {
		t.Error("expected validation error for the endpoint scheme")
	}
}

func TestInstallExitHook_Remove(t *testing.T) {
	t.Parallel()

	l, err := newLogger(context.Background(), testConfig(t.TempDir(), 10))
	if err != nil {
		t.Fatalf("newLogger failed: %v", err)
	}
	remove := InstallExitHook(l)
	remove()
	remove()
}
