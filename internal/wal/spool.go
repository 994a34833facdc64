// Observa - Enterprise Logging and Observability Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/observa

package wal

import (
	"errors"
	"sync"

	"github.com/tomtom215/observa/internal/record"
)

// Errors
var (
	// ErrClosed is returned by operations on a closed spool or store.
	ErrClosed = errors.New("spool is closed")

	// ErrEmpty is returned by Pop when nothing is spooled.
	ErrEmpty = errors.New("spool is empty")
)

// Spool holds SIEM batches that could not be delivered, oldest first.
// Implementations are safe for concurrent use.
type Spool interface {
	// Push appends a batch.
	Push(batch []*record.Entry) error

	// Pop removes and returns the oldest batch, or ErrEmpty.
	Pop() ([]*record.Entry, error)

	// Len returns the number of batches held.
	Len() int

	// Close releases the spool. Batches held in memory are discarded.
	Close() error
}

// MemorySpool is the in-process spool used by the buffer overflow policy.
// Its contents do not survive a restart.
type MemorySpool struct {
	mu      sync.Mutex
	batches [][]*record.Entry
	closed  bool
}

// NewMemorySpool creates an empty in-memory spool.
func NewMemorySpool() *MemorySpool {
	return &MemorySpool{}
}

// Push appends a batch.
func (s *MemorySpool) Push(batch []*record.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.batches = append(s.batches, batch)
	return nil
}

// Pop removes the oldest batch.
func (s *MemorySpool) Pop() ([]*record.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	if len(s.batches) == 0 {
		return nil, ErrEmpty
	}
	b := s.batches[0]
	s.batches[0] = nil
	s.batches = s.batches[1:]
	return b, nil
}

// Len returns the number of batches held.
func (s *MemorySpool) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.batches)
}

// Close discards the held batches.
func (s *MemorySpool) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.batches = nil
	return nil
}
