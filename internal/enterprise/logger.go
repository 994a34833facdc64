// Observa - Enterprise Logging and Observability Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/observa

package enterprise

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/tomtom215/observa/internal/config"
	"github.com/tomtom215/observa/internal/logging"
	"github.com/tomtom215/observa/internal/masking"
	"github.com/tomtom215/observa/internal/metrics"
	"github.com/tomtom215/observa/internal/record"
	"github.com/tomtom215/observa/internal/siem"
	"github.com/tomtom215/observa/internal/sink"
	"github.com/tomtom215/observa/internal/wal"
)

// ErrShutdown is returned by Shutdown when the logger was already shut down.
var ErrShutdown = errors.New("enterprise: logger is shut down")

// maxTick bounds the worker's housekeeping interval.
const maxTick = time.Second

// Logger is the enterprise logging facade. Producers call the emit methods
// from any goroutine; a single worker goroutine owns every sink and SIEM
// adapter.
type Logger struct {
	env       config.Environment
	formatter *record.Formatter
	masker    *masking.Masker
	sinks     *sink.Set
	dispatch  *siem.Dispatcher
	alerts    *alertState
	now       func() time.Time

	settings atomic.Pointer[filterSettings]

	// mu orders producers against Shutdown: emitters hold the read lock
	// while they check closing and send.
	mu      sync.RWMutex
	closing bool

	queue           chan *record.Entry
	stop            chan struct{}
	done            chan struct{}
	abort           context.Context
	cancelAbort     context.CancelFunc
	tick            time.Duration
	shutdownTimeout time.Duration
	startOnce       sync.Once
	shutdownOnce    sync.Once
	shutdownErr     error

	enqueued atomic.Uint64
	written  atomic.Uint64
	dropped  atomic.Uint64
	rejected atomic.Uint64
	filtered atomic.Uint64
	lost     atomic.Uint64

	// reportedDrops is owned by the worker.
	reportedDrops uint64

	rejectNotice *rate.Sometimes
	emitFailure  sync.Once
}

// filterSettings is the part of the profile Reconfigure may change.
type filterSettings struct {
	level    record.Level
	sampling float64
}

type options struct {
	console io.Writer
	store   *wal.Store
	routes  []siem.Route
	now     func() time.Time
	tick    time.Duration
}

// Option configures New.
type Option func(*options)

// WithConsole sets the writer used when the profile enables console
// output. Defaults to os.Stdout.
func WithConsole(w io.Writer) Option {
	return func(o *options) { o.console = w }
}

// WithSpoolStore supplies the Badger store backing the spool overflow
// policy. Without one the spool policy buffers in memory.
func WithSpoolStore(s *wal.Store) Option {
	return func(o *options) { o.store = s }
}

// WithRoutes replaces the SIEM routes built from the profile.
func WithRoutes(routes ...siem.Route) Option {
	return func(o *options) { o.routes = routes }
}

// WithClock sets the clock stamped on records.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithTickInterval sets the worker's housekeeping interval.
func WithTickInterval(d time.Duration) Option {
	return func(o *options) { o.tick = d }
}

// New builds a logger for cfg and starts its worker.
func New(ctx context.Context, cfg *config.EnvironmentConfig, opts ...Option) (*Logger, error) {
	l, err := newLogger(ctx, cfg, opts...)
	if err != nil {
		return nil, err
	}
	l.start()
	return l, nil
}

// newLogger builds a logger without starting the worker.
func newLogger(ctx context.Context, cfg *config.EnvironmentConfig, opts ...Option) (*Logger, error) {
	if cfg == nil {
		return nil, errors.New("enterprise: nil environment config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("enterprise: %w", err)
	}

	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	formatter := record.NewFormatter(cfg.Name.String())

	var console io.Writer
	if cfg.Console {
		console = o.console
		if console == nil {
			console = os.Stdout
		}
	}
	sinks, err := sink.Open(sink.Options{
		Dir:       cfg.LogDir,
		Retention: cfg.Retention,
		JSON:      cfg.JSON,
		Console:   console,
		Formatter: formatter,
	})
	if err != nil {
		return nil, fmt.Errorf("enterprise: %w", err)
	}

	routes := o.routes
	if routes == nil && cfg.SIEM.Enabled {
		r, err := siem.BuildRoute(ctx, cfg.SIEM, cfg.Name.String(), o.store)
		if err != nil {
			_ = sinks.Close()
			return nil, fmt.Errorf("enterprise: %w", err)
		}
		routes = []siem.Route{r}
	}

	tick := o.tick
	if tick <= 0 {
		tick = maxTick
		if cfg.SIEM.Enabled && cfg.SIEM.FlushInterval < tick {
			tick = cfg.SIEM.FlushInterval
		}
	}

	abort, cancel := context.WithCancel(context.Background())
	l := &Logger{
		env:       cfg.Name,
		formatter: formatter,
		masker: masking.New(
			masking.WithExtraKeys(cfg.Masking.ExtraKeys...),
			masking.WithMaxDepth(cfg.Masking.MaxDepth),
		),
		sinks:           sinks,
		dispatch:        siem.NewDispatcher(routes...),
		alerts:          newAlertState(cfg.Alerts),
		now:             o.now,
		queue:           make(chan *record.Entry, cfg.QueueSize),
		stop:            make(chan struct{}),
		done:            make(chan struct{}),
		abort:           abort,
		cancelAbort:     cancel,
		tick:            tick,
		shutdownTimeout: cfg.ShutdownTimeout,
		rejectNotice:    &rate.Sometimes{Interval: 10 * time.Second},
	}
	l.settings.Store(&filterSettings{level: cfg.LevelValue(), sampling: cfg.SamplingRate})
	metrics.UpdateQueue(0, cap(l.queue))

	logging.Info().
		Str("environment", cfg.Name.String()).
		Str("level", cfg.LevelValue().String()).
		Int("queue_size", cfg.QueueSize).
		Int("siem_adapters", l.dispatch.Len()).
		Str("log_dir", cfg.LogDir).
		Msg("Enterprise logger initialized")
	return l, nil
}

func (l *Logger) start() {
	l.startOnce.Do(func() {
		go l.run()
	})
}

// Environment returns the profile the logger was built from.
func (l *Logger) Environment() config.Environment {
	return l.env
}

// Reconfigure applies the level and sampling rate of cfg. Sinks and SIEM
// adapters are fixed for the life of the logger.
func (l *Logger) Reconfigure(cfg *config.EnvironmentConfig) {
	if cfg == nil {
		return
	}
	next := &filterSettings{level: cfg.LevelValue(), sampling: cfg.SamplingRate}
	prev := l.settings.Swap(next)
	if *prev != *next {
		logging.Info().
			Str("level", next.level.String()).
			Float64("sampling_rate", next.sampling).
			Msg("Enterprise logger reconfigured")
	}
}

// DroppedCount returns the number of records dropped on a full queue.
func (l *Logger) DroppedCount() uint64 {
	return l.dropped.Load()
}

// BreakerStates returns the circuit breaker state per SIEM adapter.
func (l *Logger) BreakerStates() map[string]string {
	return l.dispatch.BreakerStates()
}

// Stats is a point-in-time view of the logger's counters.
type Stats struct {
	Environment    string            `json:"environment"`
	QueueDepth     int               `json:"queue_depth"`
	QueueCapacity  int               `json:"queue_capacity"`
	Enqueued       uint64            `json:"enqueued"`
	Written        uint64            `json:"written"`
	Dropped        uint64            `json:"dropped"`
	Rejected       uint64            `json:"rejected"`
	Filtered       uint64            `json:"filtered"`
	LostAtShutdown uint64            `json:"lost_at_shutdown"`
	ShuttingDown   bool              `json:"shutting_down"`
	Breakers       map[string]string `json:"breakers"`
	SpoolDepths    map[string]int    `json:"spool_depths"`
}

// Stats returns the current counters.
func (l *Logger) Stats() Stats {
	l.mu.RLock()
	closing := l.closing
	l.mu.RUnlock()

	return Stats{
		Environment:    l.env.String(),
		QueueDepth:     len(l.queue),
		QueueCapacity:  cap(l.queue),
		Enqueued:       l.enqueued.Load(),
		Written:        l.written.Load(),
		Dropped:        l.dropped.Load(),
		Rejected:       l.rejected.Load(),
		Filtered:       l.filtered.Load(),
		LostAtShutdown: l.lost.Load(),
		ShuttingDown:   closing,
		Breakers:       l.dispatch.BreakerStates(),
		SpoolDepths:    l.dispatch.SpoolDepths(),
	}
}

// Shutdown stops accepting records, drains the queue into the sinks,
// flushes the SIEM adapters and closes everything. It is bounded by ctx's
// deadline, or the profile's shutdown timeout when ctx has none; records
// still queued at the deadline are reported lost. Later calls return
// ErrShutdown.
func (l *Logger) Shutdown(ctx context.Context) error {
	err := ErrShutdown
	l.shutdownOnce.Do(func() {
		l.shutdownErr = l.shutdown(ctx)
		err = l.shutdownErr
	})
	return err
}

func (l *Logger) shutdown(ctx context.Context) error {
	if _, ok := ctx.Deadline(); !ok && l.shutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.shutdownTimeout)
		defer cancel()
	}

	l.mu.Lock()
	l.closing = true
	l.mu.Unlock()

	pending := len(l.queue)
	logging.Info().Int("pending", pending).Msg("Enterprise logger shutting down")

	l.start()
	close(l.stop)

	select {
	case <-l.done:
		return nil
	case <-ctx.Done():
		l.cancelAbort()
		logging.Error().
			Int("remaining", len(l.queue)).
			Msg("Shutdown deadline exceeded, remaining records will be reported lost")
		return fmt.Errorf("enterprise: shutdown: %w", ctx.Err())
	}
}

// Done is closed once the worker has drained and closed every output.
func (l *Logger) Done() <-chan struct{} {
	return l.done
}
