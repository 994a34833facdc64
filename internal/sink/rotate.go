// Observa - Enterprise Logging and Observability Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/observa

package sink

import (
	"fmt"
	"path/filepath"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/tomtom215/observa/internal/config"
	"github.com/tomtom215/observa/internal/metrics"
)

// rotatingFile is a lumberjack file that also rotates when the UTC day
// changes.
type rotatingFile struct {
	name string
	lj   *lumberjack.Logger
	day  string
	now  func() time.Time
}

func newRotatingFile(dir, name string, p config.RetentionPolicy, now func() time.Time) *rotatingFile {
	return &rotatingFile{
		name: name,
		lj: &lumberjack.Logger{
			Filename:   filepath.Join(dir, name),
			MaxSize:    p.MaxSizeMB,
			MaxAge:     p.Days,
			MaxBackups: p.Backups,
			LocalTime:  false,
			Compress:   p.Compress,
		},
		day: dayOf(now()),
		now: now,
	}
}

func dayOf(t time.Time) string {
	return t.UTC().Format(time.DateOnly)
}

// writeLine appends line and a newline, rotating first if the day rolled
// over since the last write.
func (f *rotatingFile) writeLine(line []byte) error {
	if today := dayOf(f.now()); today != f.day {
		f.day = today
		if err := f.lj.Rotate(); err != nil {
			return fmt.Errorf("rotate %s: %w", f.name, err)
		}
		metrics.SinkRotations.WithLabelValues(f.name).Inc()
	}

	buf := make([]byte, 0, len(line)+1)
	buf = append(buf, line...)
	buf = append(buf, '\n')
	if _, err := f.lj.Write(buf); err != nil {
		return fmt.Errorf("write %s: %w", f.name, err)
	}
	return nil
}

func (f *rotatingFile) rotate() error {
	f.day = dayOf(f.now())
	return f.lj.Rotate()
}

func (f *rotatingFile) close() error {
	return f.lj.Close()
}
