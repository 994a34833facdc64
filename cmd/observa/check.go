// Observa - Enterprise Logging and Observability Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/observa

package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-json"
	"github.com/urfave/cli/v3"

	"github.com/tomtom215/observa/internal/config"
	"github.com/tomtom215/observa/internal/masking"
)

func checkConfig(_ context.Context, cmd *cli.Command) error {
	mgr, err := config.NewManager(cmd.String("config"))
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	env := mgr.ActiveEnvironment()
	if name := cmd.String("env"); name != "" {
		env = config.Environment(name)
	}
	profile, err := mgr.Resolve(env)
	if err != nil {
		return err
	}
	return printProfile(os.Stdout, mgr.File(), mgr.Service(), profile)
}

// printProfile writes the resolved configuration as indented JSON. Keys
// the masker treats as sensitive (tokens, API keys) are redacted.
func printProfile(w io.Writer, file string, svc config.ServiceConfig, profile *config.EnvironmentConfig) error {
	raw, err := json.Marshal(map[string]any{
		"config_file": file,
		"environment": profile.Name.String(),
		"service":     svc,
		"profile":     profile,
	})
	if err != nil {
		return err
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return err
	}

	out, err := json.MarshalIndent(masking.New().MaskMap(doc), "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}
