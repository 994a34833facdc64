// Observa - Enterprise Logging and Observability Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/observa

package main

import (
	"context"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/tomtom215/observa/internal/config"
	"github.com/tomtom215/observa/internal/logging"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	configFlag := &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Load profiles from `FILE` (default: observa.yaml in the working directory or /etc/observa)",
		Sources: cli.EnvVars(config.ConfigPathEnvVars...),
	}

	cmd := &cli.Command{
		Name:           "observa",
		Usage:          "Enterprise logging and observability core",
		Version:        version,
		DefaultCommand: "serve",
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the logging pipeline, the ingest API and the reload watcher until SIGINT or SIGTERM",
				Flags:  []cli.Flag{configFlag},
				Action: serve,
			},
			{
				Name:  "check-config",
				Usage: "Validate the profile file and print the resolved active profile with secrets masked",
				Flags: []cli.Flag{
					configFlag,
					&cli.StringFlag{
						Name:    "env",
						Aliases: []string{"e"},
						Usage:   "Print profile `NAME` instead of the active one",
					},
				},
				Action: checkConfig,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		logging.Error().Err(err).Msg("observa failed")
		os.Exit(1)
	}
}
