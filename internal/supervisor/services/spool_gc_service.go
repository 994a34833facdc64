// Observa - Enterprise Logging and Observability Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/observa

package services

import (
	"context"
	"time"

	"github.com/tomtom215/observa/internal/logging"
)

// GarbageCollector is satisfied by *wal.Store.
type GarbageCollector interface {
	RunGC() error
}

// SpoolGCService periodically reclaims value-log space in the Badger
// overflow spool. Replayed batches are deleted from the spool, but Badger
// only frees their space on value-log GC.
type SpoolGCService struct {
	store    GarbageCollector
	interval time.Duration
	name     string
}

// NewSpoolGCService creates the service. Non-positive intervals default to
// 5 minutes.
func NewSpoolGCService(store GarbageCollector, interval time.Duration) *SpoolGCService {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &SpoolGCService{
		store:    store,
		interval: interval,
		name:     "spool-gc",
	}
}

// Serve implements suture.Service. GC errors are logged and retried on the
// next tick; a closed store ends the loop only with ctx.
func (s *SpoolGCService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.store.RunGC(); err != nil {
				logging.Warn().Err(err).Msg("Spool garbage collection failed")
				continue
			}
			logging.Debug().Msg("Spool garbage collection completed")
		}
	}
}

// String implements fmt.Stringer.
func (s *SpoolGCService) String() string {
	return s.name
}
