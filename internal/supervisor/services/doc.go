// Observa - Enterprise Logging and Observability Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/observa

/*
Package services provides suture.Service wrappers for the observa binary.

Each wrapper translates a component's lifecycle into suture's
Serve(ctx) error and identifies itself through fmt.Stringer:

  - HTTPServerService: the ingest API; ListenAndServe with graceful drain
  - ConfigReloadService: SIGHUP and mtime-poll reload of the profile file,
    applied through Logger.Reconfigure
  - SpoolGCService: periodic Badger value-log GC of the overflow spool

The wrappers depend on small interfaces (HTTPServer, ConfigSource,
Reconfigurer, GarbageCollector) rather than concrete types, so tests use
in-package fakes.
*/
package services
