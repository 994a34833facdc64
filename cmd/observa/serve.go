// Observa - Enterprise Logging and Observability Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/observa

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/tomtom215/observa/internal/api"
	"github.com/tomtom215/observa/internal/config"
	"github.com/tomtom215/observa/internal/enterprise"
	"github.com/tomtom215/observa/internal/logging"
	"github.com/tomtom215/observa/internal/metrics"
	"github.com/tomtom215/observa/internal/supervisor"
	"github.com/tomtom215/observa/internal/supervisor/services"
	"github.com/tomtom215/observa/internal/wal"
)

// serve runs until SIGINT or SIGTERM. Shutdown order: the supervisor tree
// (API server and watchers) stops first so nothing emits into a draining
// queue, then the logger drains and flushes, then the spool closes.
func serve(ctx context.Context, cmd *cli.Command) error {
	mgr, err := config.NewManager(cmd.String("config"))
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	svc := mgr.Service()
	active := mgr.Active()

	logging.Init(svc.Diagnostics.LoggingConfig())
	metrics.AppInfo.WithLabelValues(version, runtime.Version(), active.Name.String()).Set(1)

	logging.Info().
		Str("version", version).
		Str("environment", active.Name.String()).
		Str("config_file", mgr.File()).
		Str("log_dir", active.LogDir).
		Bool("siem_enabled", active.SIEM.Enabled).
		Msg("Starting observa")

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openSpool(svc, active)
	if err != nil {
		return err
	}
	// The worker is the spool's only writer; until it exists there is
	// nothing to wait for.
	workerDone := closedChan()
	if store != nil {
		defer func() {
			if err := closeSpool(store, workerDone, spoolCloseWait); err != nil {
				logging.Error().Err(err).Msg("Error closing spool")
			}
		}()
	}

	logger, err := enterprise.New(ctx, active, enterprise.WithSpoolStore(store))
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	workerDone = logger.Done()

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: svc.ShutdownTimeout,
	})
	if err != nil {
		return fmt.Errorf("create supervisor tree: %w", err)
	}

	tree.AddPipelineService(services.NewConfigReloadService(mgr, logger, svc.ReloadInterval))
	if store != nil {
		tree.AddPipelineService(services.NewSpoolGCService(store, 0))
	}
	if svc.ListenAddr != "" {
		if svc.IngestToken == "" {
			logging.Warn().Str("addr", svc.ListenAddr).Msg("Ingest API has no token configured; POST /v1/logs is unauthenticated")
		}
		server := &http.Server{
			Addr:              svc.ListenAddr,
			Handler:           api.NewRouter(logger, svc).Handler(),
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
		}
		tree.AddAPIService(services.NewHTTPServerService(server, svc.ShutdownTimeout))
	}

	logger.Audit(ctx, "service.start", map[string]any{
		"version":     version,
		"config_file": mgr.File(),
	}, "success")

	errCh := tree.ServeBackground(ctx)
	select {
	case <-ctx.Done():
		logging.Info().Msg("Shutdown signal received")
		if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree stopped with error")
		}
	case err := <-errCh:
		logging.Error().Err(err).Msg("Supervisor tree stopped unexpectedly")
	}

	if report, err := tree.UnstoppedServiceReport(); err == nil && len(report) > 0 {
		for _, u := range report {
			logging.Warn().Str("service", u.Name).Msg("Service did not stop within the shutdown timeout")
		}
	}

	logger.Audit(context.WithoutCancel(ctx), "service.stop", map[string]any{"version": version}, "success")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), active.ShutdownTimeout)
	defer cancel()
	if err := logger.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("logger shutdown: %w", err)
	}

	stats := logger.Stats()
	logging.Info().
		Uint64("written", stats.Written).
		Uint64("dropped", stats.Dropped).
		Uint64("lost_at_shutdown", stats.LostAtShutdown).
		Msg("observa stopped")
	return nil
}

// spoolCloseWait bounds how long the spool close waits for the worker
// after a shutdown that hit its deadline.
const spoolCloseWait = 5 * time.Second

var errSpoolBusy = errors.New("spool still in use by the logger worker, left open")

func closedChan() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

// closeSpool closes store once workerDone is closed. If the worker is still
// running after wait the store is left open and errSpoolBusy is returned.
func closeSpool(store io.Closer, workerDone <-chan struct{}, wait time.Duration) error {
	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-workerDone:
	case <-timer.C:
		return errSpoolBusy
	}
	if err := store.Close(); err != nil {
		return fmt.Errorf("close spool: %w", err)
	}
	return nil
}

// openSpool opens the Badger store when the active profile spools SIEM
// overflow to disk.
func openSpool(svc config.ServiceConfig, active *config.EnvironmentConfig) (*wal.Store, error) {
	if !active.SIEM.Enabled || active.SIEM.OverflowPolicy != config.OverflowSpool {
		return nil, nil
	}

	cfg := wal.DefaultConfig(svc.SpoolDir)
	if active.SIEM.SpoolTTL > 0 {
		cfg.EntryTTL = active.SIEM.SpoolTTL
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("spool: %w", err)
	}

	logging.Info().Str("path", cfg.Path).Dur("ttl", cfg.EntryTTL).Msg("Opening overflow spool")
	store, err := wal.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open spool: %w", err)
	}
	return store, nil
}
