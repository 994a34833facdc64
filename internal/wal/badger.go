// Observa - Enterprise Logging and Observability Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/observa

package wal

import (
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/goccy/go-json"

	"github.com/tomtom215/observa/internal/logging"
	"github.com/tomtom215/observa/internal/record"
)

const prefixPending = "pending:"

// Store is a BadgerDB database shared by the durable spools of every
// adapter. Keys are pending:<adapter>:<seq> with a zero-padded sequence,
// so key order is push order.
type Store struct {
	db     *badger.DB
	config Config

	mu     sync.RWMutex
	closed bool
}

// Open opens (or creates) the spool database.
func Open(cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid spool config: %w", err)
	}

	opts := badger.DefaultOptions(cfg.Path)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.SyncWrites = cfg.SyncWrites
	opts.MemTableSize = cfg.MemTableSize
	opts.ValueLogFileSize = cfg.ValueLogFileSize
	opts.NumCompactors = cfg.NumCompactors
	if cfg.Compression {
		opts.Compression = options.Snappy
	}

	// Reduce logging verbosity
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}

	logging.Info().
		Str("path", cfg.Path).
		Bool("in_memory", cfg.InMemory).
		Dur("entry_ttl", cfg.EntryTTL).
		Msg("Spool opened")

	return &Store{db: db, config: cfg}, nil
}

// spoolEntry is the stored form of one batch.
type spoolEntry struct {
	CreatedAt time.Time       `json:"created_at"`
	Records   []*record.Entry `json:"records"`
}

// Spool returns the durable spool for adapter, resuming after any batches
// left by a previous run.
func (s *Store) Spool(adapter string) (*BadgerSpool, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	prefix := []byte(prefixPending + adapter + ":")
	var next uint64

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Reverse = true
		it := txn.NewIterator(opts)
		defer it.Close()

		it.Seek(append(append([]byte{}, prefix...), 0xFF))
		if !it.ValidForPrefix(prefix) {
			return nil
		}
		seq, err := strconv.ParseUint(string(it.Item().Key()[len(prefix):]), 10, 64)
		if err != nil {
			return fmt.Errorf("parse spool key %q: %w", it.Item().Key(), err)
		}
		next = seq + 1
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan spool %s: %w", adapter, err)
	}

	return &BadgerSpool{store: s, adapter: adapter, prefix: prefix, next: next}, nil
}

// RunGC reclaims value log space until Badger reports nothing to rewrite.
func (s *Store) RunGC() error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if s.config.InMemory {
		return nil
	}
	for {
		err := s.db.RunValueLogGC(s.config.GCRatio)
		if errors.Is(err, badger.ErrNoRewrite) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("run GC: %w", err)
		}
	}
}

// Close closes the database, giving up after CloseTimeout.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	timeout := s.config.CloseTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	s.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		done <- s.db.Close()
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("close BadgerDB: %w", err)
		}
		logging.Info().Msg("Spool closed")
		return nil
	case <-time.After(timeout):
		logging.Warn().Dur("timeout", timeout).Msg("BadgerDB close timed out")
		return fmt.Errorf("badgerdb close timeout after %v", timeout)
	}
}

func (s *Store) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

// BadgerSpool is the durable spool of one adapter.
type BadgerSpool struct {
	store   *Store
	adapter string
	prefix  []byte

	mu   sync.Mutex
	next uint64
}

func (b *BadgerSpool) key(seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", b.prefix, seq))
}

// Push stores batch with the configured TTL.
func (b *BadgerSpool) Push(batch []*record.Entry) error {
	if err := b.store.checkOpen(); err != nil {
		return err
	}
	data, err := json.Marshal(spoolEntry{CreatedAt: time.Now().UTC(), Records: batch})
	if err != nil {
		return fmt.Errorf("marshal batch: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	key := b.key(b.next)
	err = b.store.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry(key, data)
		if ttl := b.store.config.EntryTTL; ttl > 0 {
			e = e.WithTTL(ttl)
		}
		return txn.SetEntry(e)
	})
	if err != nil {
		return fmt.Errorf("write to BadgerDB: %w", err)
	}
	b.next++
	return nil
}

// Pop removes the oldest unexpired batch. A batch that cannot be decoded
// is deleted and reported as an error.
func (b *BadgerSpool) Pop() ([]*record.Entry, error) {
	if err := b.store.checkOpen(); err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	var entry spoolEntry
	var decodeErr error
	err := b.store.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = b.prefix
		it := txn.NewIterator(opts)

		it.Seek(b.prefix)
		if !it.ValidForPrefix(b.prefix) {
			it.Close()
			return ErrEmpty
		}
		item := it.Item()
		key := item.KeyCopy(nil)
		decodeErr = item.Value(func(val []byte) error {
			return json.Unmarshal(val, &entry)
		})
		it.Close()

		return txn.Delete(key)
	})
	if err != nil {
		if errors.Is(err, ErrEmpty) {
			return nil, ErrEmpty
		}
		return nil, fmt.Errorf("pop from BadgerDB: %w", err)
	}
	if decodeErr != nil {
		logging.Warn().Err(decodeErr).Str("adapter", b.adapter).Msg("Spool dropped undecodable batch")
		return nil, fmt.Errorf("unmarshal batch: %w", decodeErr)
	}
	return entry.Records, nil
}

// Len counts the unexpired batches.
func (b *BadgerSpool) Len() int {
	if b.store.checkOpen() != nil {
		return 0
	}
	n := 0
	_ = b.store.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = b.prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(b.prefix); it.ValidForPrefix(b.prefix); it.Next() {
			n++
		}
		return nil
	})
	return n
}

// Close is a no-op; batches stay in the store for the next run.
func (b *BadgerSpool) Close() error {
	return nil
}
