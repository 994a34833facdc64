// Observa - Enterprise Logging and Observability Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/observa

// Package sink writes formatted entries to per-channel rotating files.
//
// Files under the log directory:
//
//	application.log   human-readable text, every application record
//	application.json  JSON lines, every application record (when enabled)
//	warnings.log      human-readable text, application records at WARNING+
//	audit.log         JSON lines
//	security.log      JSON lines
//	performance.log   JSON lines
//
// Files rotate on size through lumberjack and at UTC midnight. Old files
// are removed after the channel's retention period. A Set is used by a
// single writer goroutine; it is not safe for concurrent Write calls.
package sink
