// Observa - Enterprise Logging and Observability Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/observa

// Package wal holds SIEM batches that could not be delivered while an
// adapter's circuit breaker was open or after delivery retries ran out.
//
// Two Spool implementations back the overflow policies:
//
//   - MemorySpool: in-process FIFO for the "buffer" policy. Contents are
//     lost on restart.
//   - BadgerSpool: durable FIFO for the "spool" policy, one per adapter,
//     sharing a single BadgerDB Store. Keys are pending:<adapter>:<seq>
//     and expire after Config.EntryTTL.
//
// The dispatcher bounds the number of batches per spool and replays them
// when the adapter's breaker admits requests again:
//
//	store, err := wal.Open(wal.DefaultConfig("/var/lib/observa/spool"))
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	spool, err := store.Spool("elasticsearch")
//	if err != nil {
//	    return err
//	}
//	_ = spool.Push(batch)
//
// Batches pushed by a previous process are resumed by Store.Spool.
package wal
