// Observa - Enterprise Logging and Observability Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/observa

package sink

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"golang.org/x/time/rate"

	"github.com/tomtom215/observa/internal/config"
	"github.com/tomtom215/observa/internal/logging"
	"github.com/tomtom215/observa/internal/metrics"
	"github.com/tomtom215/observa/internal/record"
)

// Stream file names.
const (
	ApplicationText = "application.log"
	ApplicationJSON = "application.json"
	Warnings        = "warnings.log"
	Audit           = "audit.log"
	Security        = "security.log"
	Performance     = "performance.log"
)

// Options configures a Set.
type Options struct {
	Dir       string
	Retention config.RetentionConfig

	// JSON enables application.json.
	JSON bool

	// Console, when set, also receives application records as text.
	Console io.Writer

	// Formatter renders text lines. Defaults to a formatter with an empty
	// environment, which Text does not use.
	Formatter *record.Formatter

	// Now is the clock used for midnight rotation. Defaults to time.Now.
	Now func() time.Time
}

// Set owns every channel file of one logger.
type Set struct {
	formatter *record.Formatter
	console   io.Writer
	files     map[string]*rotatingFile
	failures  *rate.Sometimes
}

// Open creates the log directory and the stream files.
func Open(opts Options) (*Set, error) {
	if opts.Dir == "" {
		return nil, errors.New("sink: log directory is required")
	}
	if err := os.MkdirAll(opts.Dir, 0o750); err != nil {
		return nil, fmt.Errorf("sink: create log directory: %w", err)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Formatter == nil {
		opts.Formatter = record.NewFormatter("")
	}

	r := opts.Retention
	streams := map[string]config.RetentionPolicy{
		ApplicationText: r.Application,
		Warnings:        r.Application,
		Audit:           r.Audit,
		Security:        r.Security,
		Performance:     r.Performance,
	}
	if opts.JSON {
		streams[ApplicationJSON] = r.Application
	}

	s := &Set{
		formatter: opts.Formatter,
		console:   opts.Console,
		files:     make(map[string]*rotatingFile, len(streams)),
		failures:  logging.Throttle("sink.write", 10*time.Second),
	}
	for name, policy := range streams {
		s.files[name] = newRotatingFile(opts.Dir, name, policy, opts.Now)
	}
	return s, nil
}

// Write routes e to its channel's streams. A failing stream does not stop
// the others; the joined error is also reported to the diagnostic stream
// at a throttled rate.
func (s *Set) Write(e *record.Entry) error {
	var errs []error
	write := func(stream string, line []byte) {
		f, ok := s.files[stream]
		if !ok {
			return
		}
		err := f.writeLine(line)
		metrics.RecordSinkWrite(stream, err)
		if err != nil {
			errs = append(errs, err)
		}
	}

	switch e.Channel {
	case record.ChannelAudit:
		write(Audit, record.Encode(e))
	case record.ChannelSecurity:
		write(Security, record.Encode(e))
	case record.ChannelPerformance:
		write(Performance, record.Encode(e))
	default:
		text := []byte(s.formatter.Text(e))
		write(ApplicationText, text)
		write(ApplicationJSON, record.Encode(e))
		if e.LevelValue() >= record.LevelWarning {
			write(Warnings, text)
		}
		if s.console != nil {
			if _, err := s.console.Write(append(text, '\n')); err != nil {
				errs = append(errs, fmt.Errorf("write console: %w", err))
			}
		}
	}

	err := errors.Join(errs...)
	if err != nil {
		s.failures.Do(func() {
			logging.Error().Err(err).Str("channel", string(e.Channel)).Msg("channel sink write failed")
		})
	}
	return err
}

// Rotate forces rotation of every stream.
func (s *Set) Rotate() error {
	var errs []error
	for _, f := range s.files {
		if err := f.rotate(); err != nil {
			errs = append(errs, fmt.Errorf("rotate %s: %w", f.name, err))
		}
	}
	return errors.Join(errs...)
}

// Streams lists the open stream names.
func (s *Set) Streams() []string {
	out := make([]string, 0, len(s.files))
	for name := range s.files {
		out = append(out, name)
	}
	return out
}

// Close closes every stream.
func (s *Set) Close() error {
	var errs []error
	for _, f := range s.files {
		if err := f.close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", f.name, err))
		}
	}
	return errors.Join(errs...)
}
