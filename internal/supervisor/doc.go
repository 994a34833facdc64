// Observa - Enterprise Logging and Observability Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/observa

/*
Package supervisor provides process supervision for the observa binary
using suture v4.

# Overview

	RootSupervisor ("observa")
	├── PipelineSupervisor ("pipeline-layer")
	│   ├── ConfigReloadService
	│   └── SpoolGCService (spool overflow policy only)
	└── APISupervisor ("api-layer")
	    └── HTTPServerService (when service.listen_addr is set)

A crash of the ingest server restarts only the server; the reload watcher
and the logger keep running. The logger's queue worker is deliberately
outside the tree: it is started by enterprise.New and stopped by
Logger.Shutdown, which main calls after the tree has stopped so that no
supervised producer can emit into a draining queue.

Supervisor events (restarts, backoff, timeouts) are logged through
sutureslog into the zerolog diagnostics stream via logging.NewSlogLogger.

# Usage Example

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.TreeConfig{
	    ShutdownTimeout: svc.ShutdownTimeout,
	})
	if err != nil {
	    return err
	}
	tree.AddPipelineService(services.NewConfigReloadService(mgr, logger, svc.ReloadInterval))
	tree.AddAPIService(services.NewHTTPServerService(server, svc.ShutdownTimeout))

	errCh := tree.ServeBackground(ctx)
	<-ctx.Done()
	<-errCh
*/
package supervisor
