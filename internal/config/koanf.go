// Observa - Enterprise Logging and Observability Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/observa

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where the profile file is searched in
// order of priority. The first file found is used.
var DefaultConfigPaths = []string{
	"observa.yaml",
	"config/observa.yaml",
	"/etc/observa/observa.yaml",
}

// ConfigPathEnvVars override the profile file path, first set wins.
var ConfigPathEnvVars = []string{"CONFIG_PATH", "OBSERVA_CONFIG"}

// EnvPrefix is the prefix of every override variable.
const EnvPrefix = "OBSERVA_"

// serviceDefaults is the structs-provider view of the non-profile keys.
type serviceDefaults struct {
	Active  Environment   `koanf:"active"`
	Service ServiceConfig `koanf:"service"`
}

// Load layers defaults, the profile file and OBSERVA_* variables, then
// validates the result. path may be empty to search DefaultConfigPaths.
// It returns the resolved file path, empty when no file was used.
func Load(path string) (*Config, string, error) {
	k := koanf.New(".")

	// Layer 1: built-in defaults
	defaults := defaultConfig()
	if err := k.Load(structs.Provider(serviceDefaults{Active: defaults.Active, Service: defaults.Service}, "koanf"), nil); err != nil {
		return nil, "", fmt.Errorf("failed to load defaults: %w", err)
	}
	for _, e := range Environments() {
		sub := koanf.New(".")
		if err := sub.Load(structs.Provider(defaults.Environments[string(e)], "koanf"), nil); err != nil {
			return nil, "", fmt.Errorf("failed to load %s defaults: %w", e, err)
		}
		if err := k.MergeAt(sub, "environments."+string(e)); err != nil {
			return nil, "", fmt.Errorf("failed to merge %s defaults: %w", e, err)
		}
	}

	// Layer 2: profile file (optional)
	configPath, err := findConfigFile(path)
	if err != nil {
		return nil, "", err
	}
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, "", fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		if err := checkProfileKeys(k); err != nil {
			return nil, "", fmt.Errorf("config file %s: %w", configPath, err)
		}
	}

	// The active profile decides where profile overrides land.
	active, fromEnv, err := activeFromEnv()
	if err != nil {
		return nil, "", err
	}
	if !fromEnv {
		active, err = ParseEnvironment(k.String("active"))
		if err != nil {
			return nil, "", fmt.Errorf("active: %w", err)
		}
	}

	// Layer 3: environment variables (highest priority)
	if err := k.Load(env.Provider(EnvPrefix, ".", envTransformFunc(active)), nil); err != nil {
		return nil, "", fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k, active); err != nil {
		return nil, "", fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, "", fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	cfg.Active = active
	for name, e := range cfg.Environments {
		e.Name = Environment(name)
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, configPath, nil
}

// findConfigFile resolves the profile file. An explicit path or a path from
// CONFIG_PATH/OBSERVA_CONFIG must exist; the default paths are optional.
func findConfigFile(path string) (string, error) {
	if path == "" {
		for _, key := range ConfigPathEnvVars {
			if v := os.Getenv(key); v != "" {
				path = v
				break
			}
		}
	}
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return "", fmt.Errorf("config file %s: %w", path, err)
		}
		return path, nil
	}

	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", nil
}

// checkProfileKeys rejects profile names other than the canonical four,
// which would otherwise unmarshal into a profile nobody resolves.
func checkProfileKeys(k *koanf.Koanf) error {
	for _, name := range k.MapKeys("environments") {
		env, err := ParseEnvironment(name)
		if err != nil {
			return err
		}
		if string(env) != name {
			return fmt.Errorf("%w: profile key %q must be spelled %q", ErrUnknownEnvironment, name, env)
		}
	}
	return nil
}

// sliceConfigPaths are profile keys parsed from comma-separated env values.
var sliceConfigPaths = []string{
	"masking.extra_keys",
}

// processSliceFields converts comma-separated string values to slices for
// known slice fields of the active profile.
func processSliceFields(k *koanf.Koanf, active Environment) error {
	for _, rel := range sliceConfigPaths {
		path := "environments." + string(active) + "." + rel
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// profileEnvMappings maps OBSERVA_<KEY> (lowercased, prefix removed) to a
// path inside the active profile.
var profileEnvMappings = map[string]string{
	"level":                "level",
	"console":              "console",
	"json":                 "json",
	"sampling_rate":        "sampling_rate",
	"log_dir":              "log_dir",
	"queue_size":           "queue_size",
	"shutdown_timeout":     "shutdown_timeout",
	"mask_extra_keys":      "masking.extra_keys",
	"mask_max_depth":       "masking.max_depth",
	"siem_enabled":         "siem.enabled",
	"siem_provider":        "siem.provider",
	"siem_endpoint":        "siem.endpoint",
	"siem_api_key":         "siem.api_key",
	"siem_token":           "siem.token",
	"siem_index":           "siem.index",
	"siem_source":          "siem.source",
	"siem_region":          "siem.region",
	"siem_log_group":       "siem.log_group",
	"siem_log_stream":      "siem.log_stream",
	"siem_subject":         "siem.subject",
	"siem_batch_size":      "siem.batch_size",
	"siem_timeout":         "siem.timeout",
	"siem_max_attempts":    "siem.max_attempts",
	"siem_overflow_policy": "siem.overflow_policy",
}

// serviceEnvMappings maps OBSERVA_<KEY> to an absolute path.
var serviceEnvMappings = map[string]string{
	"listen_addr":              "service.listen_addr",
	"ingest_token":             "service.ingest_token",
	"rate_limit":               "service.rate_limit",
	"spool_dir":                "service.spool_dir",
	"reload_interval":          "service.reload_interval",
	"service_shutdown_timeout": "service.shutdown_timeout",
	"diag_level":               "service.diagnostics.level",
	"diag_format":              "service.diagnostics.format",
	"diag_caller":              "service.diagnostics.caller",
}

// envTransformFunc maps OBSERVA_* variables to koanf paths. Unmapped
// variables (including OBSERVA_ENV and OBSERVA_CONFIG) are skipped.
func envTransformFunc(active Environment) func(string) string {
	return func(key string) string {
		key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))

		if mapped, ok := serviceEnvMappings[key]; ok {
			return mapped
		}
		if mapped, ok := profileEnvMappings[key]; ok {
			return "environments." + string(active) + "." + mapped
		}
		return ""
	}
}
