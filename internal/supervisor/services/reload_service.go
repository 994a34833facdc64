// Observa - Enterprise Logging and Observability Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/observa

package services

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/observa/internal/config"
	"github.com/tomtom215/observa/internal/logging"
	"github.com/tomtom215/observa/internal/metrics"
)

// ConfigSource is satisfied by *config.Manager.
type ConfigSource interface {
	File() string
	Changed() bool
	Reload() error
	Active() *config.EnvironmentConfig
}

// Reconfigurer is satisfied by *enterprise.Logger.
type Reconfigurer interface {
	Reconfigure(cfg *config.EnvironmentConfig)
	Audit(ctx context.Context, eventType string, details map[string]any, status string)
}

// ConfigReloadService re-reads the profile file on SIGHUP, on Trigger, or
// when the file's mtime changes, and applies the active profile's level
// and sampling rate to the logger. A failed reload keeps the running
// configuration.
type ConfigReloadService struct {
	source   ConfigSource
	logger   Reconfigurer
	interval time.Duration
	trigger  chan struct{}
	name     string
}

// NewConfigReloadService creates the service. A zero interval disables
// mtime polling.
func NewConfigReloadService(source ConfigSource, logger Reconfigurer, interval time.Duration) *ConfigReloadService {
	return &ConfigReloadService{
		source:   source,
		logger:   logger,
		interval: interval,
		trigger:  make(chan struct{}, 1),
		name:     "config-reload",
	}
}

// Trigger requests a reload. Requests made while one is pending coalesce.
func (s *ConfigReloadService) Trigger() {
	select {
	case s.trigger <- struct{}{}:
	default:
	}
}

// Serve implements suture.Service.
func (s *ConfigReloadService) Serve(ctx context.Context) error {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	var poll <-chan time.Time
	if s.interval > 0 && s.source.File() != "" {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		poll = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-hup:
			s.reload(ctx, "signal")
		case <-s.trigger:
			s.reload(ctx, "trigger")
		case <-poll:
			if s.source.Changed() {
				s.reload(ctx, "file_changed")
			}
		}
	}
}

func (s *ConfigReloadService) reload(ctx context.Context, reason string) {
	err := s.source.Reload()
	metrics.RecordConfigReload(err)

	details := map[string]any{
		"reason": reason,
		"file":   s.source.File(),
	}
	if err != nil {
		logging.Error().Err(err).Str("reason", reason).Msg("Configuration reload failed, keeping current settings")
		details["error"] = err.Error()
		s.logger.Audit(ctx, "config.reload", details, "failure")
		return
	}

	active := s.source.Active()
	s.logger.Reconfigure(active)

	details["log_level"] = active.Level
	details["sampling_rate"] = active.SamplingRate
	s.logger.Audit(ctx, "config.reload", details, "success")
	logging.Info().
		Str("reason", reason).
		Str("level", active.Level).
		Float64("sampling_rate", active.SamplingRate).
		Msg("Configuration reloaded")
}

// String implements fmt.Stringer.
func (s *ConfigReloadService) String() string {
	return s.name
}
