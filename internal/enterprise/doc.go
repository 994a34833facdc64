// Observa - Enterprise Logging and Observability Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/observa

/*
Package enterprise is the logging facade applications call.

A Logger owns a bounded queue, one worker goroutine, the channel file sinks
and the SIEM dispatcher:

	producer ─► filter ─► mask ─► format ─► queue ─► worker ─┬─► channel sinks
	                                          (drop if full)  └─► SIEM dispatcher

Emit calls never block. When the queue is full the record is dropped and
counted; the worker reports the drop delta on its next tick. Audit and
security records bypass the level filter and sampling.

Masking and formatting happen in the calling goroutine, so no unmasked copy
of a record is ever queued. Correlation identifiers come from the context:

	ctx = logging.BeginUnit(ctx, map[string]any{"suite": "checkout"})
	log.Info(ctx, "order placed", "order_id", id)
	log.Audit(ctx, "order.create", map[string]any{"order_id": id}, "success")
	log.Error(ctx, "charge failed", enterprise.Exc(err))

Shutdown stops accepting records, drains the queue, flushes the SIEM
adapters and closes the sinks. It is bounded by its context; whatever is
still queued at the deadline is reported as lost at shutdown.

Default returns a process-wide Logger built lazily from the default
configuration sources; New is preferred where a Logger can be injected.
*/
package enterprise
