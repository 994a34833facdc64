// Observa - Enterprise Logging and Observability Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/observa

package wal

import (
	"time"
)

// Config holds the Badger settings of the durable spool.
type Config struct {
	// Path is the directory where BadgerDB stores its files.
	// Should be on a durable filesystem (not tmpfs).
	Path string

	// InMemory keeps the database in memory. Used by tests.
	InMemory bool

	// SyncWrites forces fsync after every write.
	SyncWrites bool

	// EntryTTL expires spooled batches that were never replayed.
	// 0 keeps them until replayed.
	EntryTTL time.Duration

	// BadgerDB tuning options
	MemTableSize     int64
	ValueLogFileSize int64
	NumCompactors    int

	// Compression enables Snappy compression. Batches are JSON and
	// compress well.
	Compression bool

	// GCRatio is the ratio for value log garbage collection.
	GCRatio float64

	// CloseTimeout bounds Close.
	CloseTimeout time.Duration
}

// DefaultConfig returns the spool defaults for path.
func DefaultConfig(path string) Config {
	return Config{
		Path:             path,
		SyncWrites:       true,
		EntryTTL:         24 * time.Hour,
		MemTableSize:     16 * 1024 * 1024,
		ValueLogFileSize: 64 * 1024 * 1024,
		NumCompactors:    2,
		Compression:      true,
		GCRatio:          0.5,
		CloseTimeout:     30 * time.Second,
	}
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Path == "" && !c.InMemory {
		return &ConfigError{Field: "Path", Message: "spool path is required"}
	}
	if c.EntryTTL < 0 {
		return &ConfigError{Field: "EntryTTL", Message: "must not be negative"}
	}
	if c.MemTableSize < 1024*1024 { // 1MB minimum
		return &ConfigError{Field: "MemTableSize", Message: "must be at least 1MB"}
	}
	if c.ValueLogFileSize < 1024*1024 {
		return &ConfigError{Field: "ValueLogFileSize", Message: "must be at least 1MB"}
	}
	if c.NumCompactors < 2 {
		return &ConfigError{Field: "NumCompactors", Message: "must be at least 2 (BadgerDB requirement)"}
	}
	if c.GCRatio <= 0 || c.GCRatio >= 1 {
		return &ConfigError{Field: "GCRatio", Message: "must be between 0 and 1"}
	}
	return nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "spool config error: " + e.Field + ": " + e.Message
}
