// Observa - Enterprise Logging and Observability Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/observa

package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/observa/internal/record"
)

func TestParseEnvironment(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Environment
		wantErr bool
	}{
		{"production", EnvProduction, false},
		{"PRODUCTION", EnvProduction, false},
		{"  Staging ", EnvStaging, false},
		{"dev", EnvDevelopment, false},
		{"TEST", EnvTesting, false},
		{"prod", EnvProduction, false},
		{"qa", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		got, err := ParseEnvironment(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrUnknownEnvironment) {
				t.Errorf("ParseEnvironment(%q): expected ErrUnknownEnvironment, got %v", tt.in, err)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ParseEnvironment(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}
}

func TestResolve_SameProfileForAnySpelling(t *testing.T) {
	t.Parallel()

	m, err := NewManagerFromConfig(&Config{})
	if err != nil {
		t.Fatalf("NewManagerFromConfig: %v", err)
	}

	upper, err := m.Resolve("PRODUCTION")
	if err != nil {
		t.Fatalf("Resolve(PRODUCTION): %v", err)
	}
	typed, err := m.Resolve(EnvProduction)
	if err != nil {
		t.Fatalf("Resolve(EnvProduction): %v", err)
	}
	lower, err := m.Resolve("production")
	if err != nil {
		t.Fatalf("Resolve(production): %v", err)
	}
	if upper != typed || typed != lower {
		t.Errorf("expected identical profile pointers, got %p %p %p", upper, typed, lower)
	}
	if lower.Name != EnvProduction {
		t.Errorf("expected Name production, got %q", lower.Name)
	}
}

func TestResolve_Unknown(t *testing.T) {
	t.Parallel()

	m, err := NewManagerFromConfig(&Config{})
	if err != nil {
		t.Fatalf("NewManagerFromConfig: %v", err)
	}
	if _, err := m.Resolve("qa"); !errors.Is(err, ErrUnknownEnvironment) {
		t.Errorf("expected ErrUnknownEnvironment, got %v", err)
	}
}

func TestResolve_ConcurrentReaders(t *testing.T) {
	t.Parallel()

	m, err := NewManagerFromConfig(&Config{})
	if err != nil {
		t.Fatalf("NewManagerFromConfig: %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				cfg, err := m.Resolve(EnvStaging)
				if err != nil {
					t.Errorf("Resolve: %v", err)
					return
				}
				// Either the default or the replacement, never a mix.
				if cfg.SamplingRate != 1.0 && cfg.SamplingRate != 0.25 {
					t.Errorf("unexpected sampling rate %v", cfg.SamplingRate)
					return
				}
			}
		}()
	}

	next := DefaultEnvironment(EnvStaging)
	next.SamplingRate = 0.25
	if err := m.Replace(EnvStaging, next); err != nil {
		t.Errorf("Replace: %v", err)
	}
	wg.Wait()
}

func TestNewManagerFromConfig_PartialService(t *testing.T) {
	t.Parallel()

	m, err := NewManagerFromConfig(&Config{
		Active:  "Staging",
		Service: ServiceConfig{Diagnostics: DiagnosticsConfig{Level: "debug"}},
	})
	if err != nil {
		t.Fatalf("NewManagerFromConfig: %v", err)
	}

	svc := m.Service()
	if svc.ShutdownTimeout != 30*time.Second {
		t.Errorf("expected default shutdown timeout 30s, got %v", svc.ShutdownTimeout)
	}
	if svc.Diagnostics.Level != "debug" {
		t.Errorf("expected configured level debug, got %q", svc.Diagnostics.Level)
	}
	if svc.Diagnostics.Format != "json" {
		t.Errorf("expected default format json, got %q", svc.Diagnostics.Format)
	}
	if svc.SpoolDir != "spool" {
		t.Errorf("expected default spool dir, got %q", svc.SpoolDir)
	}
	if svc.ListenAddr != "" || svc.RateLimit != 0 || svc.ReloadInterval != 0 {
		t.Errorf("expected disabling zero values to survive, got %+v", svc)
	}
	if m.Active().Name != EnvStaging {
		t.Errorf("expected active staging, got %q", m.Active().Name)
	}
}

func TestNewManagerFromConfig_RejectsBadService(t *testing.T) {
	t.Parallel()

	_, err := NewManagerFromConfig(&Config{
		Service: ServiceConfig{Diagnostics: DiagnosticsConfig{Format: "xml"}},
	})
	if err == nil {
		t.Error("expected an invalid diagnostics format to be rejected")
	}
}

func TestDefaultEnvironment(t *testing.T) {
	t.Parallel()

	for _, env := range Environments() {
		cfg := DefaultEnvironment(env)
		if err := cfg.Validate(); err != nil {
			t.Errorf("default %s profile invalid: %v", env, err)
		}
	}

	prod := DefaultEnvironment(EnvProduction)
	if prod.Retention.For(record.ChannelAudit).Days != 365 {
		t.Errorf("expected audit retention 365 days, got %d", prod.Retention.Audit.Days)
	}
	if prod.Retention.For(record.ChannelApplication) != prod.Retention.Application {
		t.Error("expected application policy for the application channel")
	}
	if prod.SIEM.OverflowPolicy != OverflowSpool {
		t.Errorf("expected spool overflow in production, got %s", prod.SIEM.OverflowPolicy)
	}
	if prod.SIEM.Timeout != 10*time.Second || prod.SIEM.MaxAttempts != 3 {
		t.Errorf("unexpected delivery defaults %v/%d", prod.SIEM.Timeout, prod.SIEM.MaxAttempts)
	}

	dev := DefaultEnvironment(EnvDevelopment)
	if dev.LevelValue() != record.LevelDebug || !dev.Console {
		t.Errorf("unexpected development defaults: level %s console %v", dev.Level, dev.Console)
	}
}

func TestEnvironmentConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*EnvironmentConfig)
		want   string
	}{
		{"sampling above one", func(c *EnvironmentConfig) { c.SamplingRate = 1.5 }, "sampling_rate"},
		{"bad level", func(c *EnvironmentConfig) { c.Level = "LOUD" }, "level"},
		{"no log dir", func(c *EnvironmentConfig) { c.LogDir = "" }, "log_dir"},
		{"siem without provider", func(c *EnvironmentConfig) { c.SIEM.Enabled = true }, "siem.provider"},
		{"unknown provider", func(c *EnvironmentConfig) {
			c.SIEM.Enabled = true
			c.SIEM.Provider = "graylog"
		}, "siem.provider"},
		{"elasticsearch without endpoint", func(c *EnvironmentConfig) {
			c.SIEM.Enabled = true
			c.SIEM.Provider = "elasticsearch"
		}, "siem.endpoint"},
		{"cloudwatch without group", func(c *EnvironmentConfig) {
			c.SIEM.Enabled = true
			c.SIEM.Provider = "cloudwatch"
		}, "siem.log_group"},
		{"nats over http", func(c *EnvironmentConfig) {
			c.SIEM.Enabled = true
			c.SIEM.Provider = "nats"
			c.SIEM.Subject = "logs"
			c.SIEM.Endpoint = "http://nats:4222"
		}, "nats://"},
		{"bad overflow", func(c *EnvironmentConfig) { c.SIEM.OverflowPolicy = "block" }, "siem.overflow_policy"},
		{"zero batch", func(c *EnvironmentConfig) { c.SIEM.BatchSize = 0 }, "siem.batch_size"},
		{"queue utilization", func(c *EnvironmentConfig) { c.Alerts.QueueUtilization = 120 }, "alerts.queue_utilization_percent"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := DefaultEnvironment(EnvStaging)
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error mentioning %q, got %v", tt.want, err)
			}
		})
	}
}

func TestEnvironmentConfig_ValidProviders(t *testing.T) {
	t.Parallel()

	tests := []SIEMSettings{
		{Provider: "elasticsearch", Endpoint: "https://es:9200"},
		{Provider: "datadog", Endpoint: "https://http-intake.logs.datadoghq.eu"},
		{Provider: "datadog"},
		{Provider: "splunk", Endpoint: "https://splunk:8088"},
		{Provider: "cloudwatch", LogGroup: "/observa/tests", Region: "eu-west-1"},
		{Provider: "nats", Endpoint: "nats://nats:4222", Subject: "observa.logs"},
	}

	for _, s := range tests {
		cfg := DefaultEnvironment(EnvProduction)
		s.Enabled = true
		merged := cfg.SIEM
		merged.Enabled = s.Enabled
		merged.Provider = s.Provider
		merged.Endpoint = s.Endpoint
		merged.LogGroup = s.LogGroup
		merged.Region = s.Region
		merged.Subject = s.Subject
		cfg.SIEM = merged
		if err := cfg.Validate(); err != nil {
			t.Errorf("provider %s: unexpected error %v", s.Provider, err)
		}
	}
}

// clearEnv isolates Load from the process environment and the working
// directory.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, kv := range os.Environ() {
		key, _, _ := strings.Cut(kv, "=")
		if strings.HasPrefix(key, EnvPrefix) {
			t.Setenv(key, "")
			os.Unsetenv(key)
		}
	}
	t.Setenv(EnvVarActiveAlias, "")
	for _, key := range ConfigPathEnvVars {
		t.Setenv(key, "")
	}
	t.Chdir(t.TempDir())
}

func writeFile(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "observa.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_DefaultsOnly(t *testing.T) {
	clearEnv(t)

	cfg, path, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if path != "" {
		t.Errorf("expected no config file, got %s", path)
	}
	if cfg.Active != EnvDevelopment {
		t.Errorf("expected development active, got %s", cfg.Active)
	}
	if len(cfg.Environments) != 4 {
		t.Fatalf("expected 4 profiles, got %d", len(cfg.Environments))
	}
	prod := cfg.Environments["production"]
	if prod.Name != EnvProduction || prod.SamplingRate != 0.5 {
		t.Errorf("unexpected production profile %+v", prod)
	}
	if prod.SIEM.BreakerCooldown != 60*time.Second {
		t.Errorf("expected 60s cool-down, got %v", prod.SIEM.BreakerCooldown)
	}
	if cfg.Service.ListenAddr != "127.0.0.1:8740" {
		t.Errorf("unexpected listen addr %s", cfg.Service.ListenAddr)
	}
}

const stagingFile = `
active: production
service:
  listen_addr: ":9000"
environments:
  staging:
    level: warning
    sampling_rate: 0.25
    retention:
      audit:
        days: 400
    siem:
      enabled: true
      provider: splunk
      endpoint: https://splunk.internal:8088
      flush_interval: 2s
`

func TestLoad_FileAndEnvLayers(t *testing.T) {
	clearEnv(t)
	path := writeFile(t, t.TempDir(), stagingFile)

	t.Setenv(EnvVarActive, "Staging")
	t.Setenv("OBSERVA_SIEM_TOKEN", "hec-token")
	t.Setenv("OBSERVA_MASK_EXTRA_KEYS", "badge, pin ,")
	t.Setenv("OBSERVA_RATE_LIMIT", "42")
	t.Setenv("OBSERVA_UNRELATED", "ignored")

	cfg, used, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if used != path {
		t.Errorf("expected %s, got %s", path, used)
	}
	if cfg.Active != EnvStaging {
		t.Errorf("expected OBSERVA_ENV to win over file, got %s", cfg.Active)
	}

	st := cfg.Environments["staging"]
	if st.Level != "warning" || st.LevelValue() != record.LevelWarning {
		t.Errorf("expected file level, got %s", st.Level)
	}
	if st.SamplingRate != 0.25 {
		t.Errorf("expected sampling 0.25, got %v", st.SamplingRate)
	}
	if st.Retention.Audit.Days != 400 || st.Retention.Audit.MaxSizeMB != 50 {
		t.Errorf("expected file days merged over default size, got %+v", st.Retention.Audit)
	}
	if st.SIEM.Token != "hec-token" || st.SIEM.FlushInterval != 2*time.Second {
		t.Errorf("unexpected siem settings %+v", st.SIEM)
	}
	if st.SIEM.MaxAttempts != 3 {
		t.Errorf("expected default attempts kept, got %d", st.SIEM.MaxAttempts)
	}
	if len(st.Masking.ExtraKeys) != 2 || st.Masking.ExtraKeys[1] != "pin" {
		t.Errorf("unexpected extra keys %v", st.Masking.ExtraKeys)
	}
	if cfg.Environments["production"].SIEM.Token != "" {
		t.Error("expected env overrides to touch only the active profile")
	}
	if cfg.Service.ListenAddr != ":9000" || cfg.Service.RateLimit != 42 {
		t.Errorf("unexpected service settings %+v", cfg.Service)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		env  map[string]string
		want error
		text string
	}{
		{"unknown profile", "environments:\n  qa:\n    level: INFO\n", nil, ErrUnknownEnvironment, ""},
		{"alias profile key", "environments:\n  prod:\n    level: INFO\n", nil, ErrUnknownEnvironment, ""},
		{"unknown active", "active: qa\n", nil, ErrUnknownEnvironment, ""},
		{"unknown OBSERVA_ENV", "", map[string]string{EnvVarActive: "qa"}, ErrUnknownEnvironment, ""},
		{"bad sampling", "environments:\n  development:\n    sampling_rate: 2\n", nil, nil, "sampling_rate"},
		{"malformed yaml", "environments: [\n", nil, nil, "failed to load config file"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := writeFile(t, t.TempDir(), tt.body)

			_, _, err := Load(path)
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
			if tt.text != "" && !strings.Contains(err.Error(), tt.text) {
				t.Errorf("expected error mentioning %q, got %v", tt.text, err)
			}
		})
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	clearEnv(t)

	if _, _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected ErrNotExist, got %v", err)
	}
}

func TestManager_ReloadAndReplace(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := writeFile(t, dir, "active: testing\n")

	m, err := NewManager(path)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if m.ActiveEnvironment() != EnvTesting || m.File() != path {
		t.Fatalf("unexpected manager state %s %s", m.ActiveEnvironment(), m.File())
	}
	before := m.Active()
	if m.Changed() {
		t.Error("expected unchanged file right after load")
	}

	// Replace: invalid input keeps the current profile.
	bad := before.Clone()
	bad.SamplingRate = -1
	if err := m.Replace(EnvTesting, bad); err == nil {
		t.Fatal("expected Replace to reject an invalid profile")
	}
	if m.Active() != before {
		t.Error("expected failed Replace to keep the current profile")
	}

	next := before.Clone()
	next.Level = "ERROR"
	if err := m.Replace("TESTING", next); err != nil {
		t.Fatalf("Replace: %v", err)
	}
	replaced := m.Active()
	if replaced == before || replaced == next || replaced.Level != "ERROR" {
		t.Errorf("expected a fresh copy with level ERROR, got %+v", replaced)
	}
	if before.Level != "DEBUG" {
		t.Error("expected the previous snapshot to stay untouched")
	}

	// Reload picks up file edits; the active profile stays fixed.
	body := "active: production\nenvironments:\n  testing:\n    level: CRITICAL\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	future := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(path, future, future); err != nil {
		t.Fatalf("chtimes: %v", err)
	}
	if !m.Changed() {
		t.Error("expected Changed after rewrite")
	}
	if err := m.Reload(); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	if m.ActiveEnvironment() != EnvTesting || m.Active().Level != "CRITICAL" {
		t.Errorf("unexpected state after reload: %s %s", m.ActiveEnvironment(), m.Active().Level)
	}
	if m.Changed() {
		t.Error("expected Changed to reset after reload")
	}

	// A broken file leaves the snapshot in place.
	if err := os.WriteFile(path, []byte("environments: [\n"), 0o600); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	if err := m.Reload(); err == nil {
		t.Error("expected reload error for malformed file")
	}
	if m.Active().Level != "CRITICAL" {
		t.Error("expected failed reload to keep the snapshot")
	}
}

func TestDiagnosticsConfig_LoggingConfig(t *testing.T) {
	t.Parallel()

	lc := DiagnosticsConfig{Level: "debug", Format: "console", Caller: true}.LoggingConfig()
	if lc.Level != "debug" || lc.Format != "console" || !lc.Caller || lc.Output == nil {
		t.Errorf("unexpected logging config %+v", lc)
	}
}
