// Observa - Enterprise Logging and Observability Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/observa

package enterprise

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/tomtom215/observa/internal/config"
	"github.com/tomtom215/observa/internal/logging"
)

// Default returns the process-wide logger, built on first use from the
// active profile of the default configuration sources. The exit hook is
// installed with it. Prefer passing a *Logger built by New to components.
var Default = sync.OnceValues(func() (*Logger, error) {
	m, err := config.NewManager("")
	if err != nil {
		return nil, err
	}
	l, err := New(context.Background(), m.Active())
	if err != nil {
		return nil, err
	}
	InstallExitHook(l)
	return l, nil
})

// InstallExitHook shuts l down when the process receives SIGINT or SIGTERM
// and then exits with status 128+signal. The returned function removes the
// hook.
func InstallExitHook(l *Logger) (remove func()) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	quit := make(chan struct{})

	go func() {
		select {
		case sig := <-sigs:
			signal.Stop(sigs)
			logging.Info().Str("signal", sig.String()).Msg("Signal received, shutting down enterprise logger")
			if err := l.Shutdown(context.Background()); err != nil {
				logging.Error().Err(err).Msg("Enterprise logger shutdown incomplete")
			}
			code := 1
			if s, ok := sig.(syscall.Signal); ok {
				code = 128 + int(s)
			}
			os.Exit(code)
		case <-quit:
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			signal.Stop(sigs)
			close(quit)
		})
	}
}
