// Observa - Enterprise Logging and Observability Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/observa

package config

import (
	"time"

	"github.com/tomtom215/observa/internal/logging"
	"github.com/tomtom215/observa/internal/record"
)

// Overflow policies applied to SIEM batches while a breaker is open.
const (
	OverflowDrop   = "drop"
	OverflowBuffer = "buffer"
	OverflowSpool  = "spool"
)

// Config is the whole profile file after layering.
type Config struct {
	// Active is the profile used when OBSERVA_ENV and TEST_ENV are unset.
	Active Environment `koanf:"active"`

	Service ServiceConfig `koanf:"service"`

	Environments map[string]*EnvironmentConfig `koanf:"environments"`
}

// ServiceConfig holds settings shared by every profile.
type ServiceConfig struct {
	// ListenAddr is the ingest API address. Empty disables the API.
	ListenAddr string `koanf:"listen_addr" validate:"omitempty,hostname_port"`

	// IngestToken is the shared bearer token for POST /v1/logs. Empty
	// disables authentication.
	IngestToken string `koanf:"ingest_token"`

	// RateLimit is the per-IP request budget per minute. 0 disables it.
	RateLimit int `koanf:"rate_limit" validate:"min=0"`

	// SpoolDir holds the Badger overflow spool.
	SpoolDir string `koanf:"spool_dir"`

	// ReloadInterval is how often the profile file's mtime is checked.
	// 0 disables polling; SIGHUP still reloads.
	ReloadInterval time.Duration `koanf:"reload_interval" validate:"min=0"`

	// ShutdownTimeout bounds the supervisor tree and the API server.
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`

	Diagnostics DiagnosticsConfig `koanf:"diagnostics"`
}

// DiagnosticsConfig configures the stderr fallback stream.
type DiagnosticsConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn warning error critical disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// LoggingConfig converts to the diagnostic logger's configuration.
func (d DiagnosticsConfig) LoggingConfig() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = d.Level
	cfg.Format = d.Format
	cfg.Caller = d.Caller
	return cfg
}

// EnvironmentConfig is one resolved profile. Values handed out by the
// Manager are shared; callers must not modify them.
type EnvironmentConfig struct {
	// Name is set by the loader from the profile key.
	Name Environment `koanf:"-"`

	Level        string  `koanf:"level" validate:"required,loglevel"`
	Console      bool    `koanf:"console"`
	JSON         bool    `koanf:"json"`
	SamplingRate float64 `koanf:"sampling_rate" validate:"gte=0,lte=1"`

	LogDir          string        `koanf:"log_dir" validate:"required"`
	QueueSize       int           `koanf:"queue_size" validate:"min=1,max=10000000"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`

	Masking   MaskingConfig   `koanf:"masking"`
	Retention RetentionConfig `koanf:"retention"`
	SIEM      SIEMSettings    `koanf:"siem"`
	Alerts    AlertThresholds `koanf:"alerts"`
}

// LevelValue returns the parsed minimum level. Validation guarantees it
// parses; an invalid value falls back to INFO.
func (c *EnvironmentConfig) LevelValue() record.Level {
	l, err := record.ParseLevel(c.Level)
	if err != nil {
		return record.LevelInfo
	}
	return l
}

// Clone returns a deep copy, for callers that derive a modified profile
// to pass to Manager.Replace.
func (c *EnvironmentConfig) Clone() *EnvironmentConfig {
	out := *c
	out.Masking.ExtraKeys = append([]string(nil), c.Masking.ExtraKeys...)
	return &out
}

// MaskingConfig extends the default masker.
type MaskingConfig struct {
	ExtraKeys []string `koanf:"extra_keys"`
	MaxDepth  int      `koanf:"max_depth" validate:"min=1,max=64"`
}

// RetentionPolicy controls rotation for one channel's files.
type RetentionPolicy struct {
	Days      int  `koanf:"days" validate:"min=0,max=3650"`
	MaxSizeMB int  `koanf:"max_size_mb" validate:"min=1,max=102400"`
	Backups   int  `koanf:"backups" validate:"min=0,max=10000"`
	Compress  bool `koanf:"compress"`
}

// RetentionConfig holds one policy per channel. The warnings stream uses
// the application policy.
type RetentionConfig struct {
	Application RetentionPolicy `koanf:"application"`
	Audit       RetentionPolicy `koanf:"audit"`
	Security    RetentionPolicy `koanf:"security"`
	Performance RetentionPolicy `koanf:"performance"`
}

// For returns the policy for ch.
func (r RetentionConfig) For(ch record.Channel) RetentionPolicy {
	switch ch {
	case record.ChannelAudit:
		return r.Audit
	case record.ChannelSecurity:
		return r.Security
	case record.ChannelPerformance:
		return r.Performance
	default:
		return r.Application
	}
}

// SIEMSettings configures export to one SIEM backend.
type SIEMSettings struct {
	Enabled  bool   `koanf:"enabled"`
	Provider string `koanf:"provider" validate:"required_if=Enabled true,omitempty,oneof=elasticsearch datadog splunk cloudwatch nats"`

	// Endpoint is the base URL for HTTP providers or the server URL for nats.
	// CloudWatch uses the SDK's resolver when it is empty.
	Endpoint string `koanf:"endpoint" validate:"required_if=Provider elasticsearch,required_if=Provider splunk,required_if=Provider nats,omitempty,url"`

	// Credentials. APIKey is used by elasticsearch and datadog, Token by
	// splunk and nats.
	APIKey string `koanf:"api_key"`
	Token  string `koanf:"token"`

	// Index is the elasticsearch index or splunk index.
	Index string `koanf:"index"`
	// Source is the datadog ddsource or splunk sourcetype.
	Source string `koanf:"source"`

	Region    string `koanf:"region"`
	LogGroup  string `koanf:"log_group" validate:"required_if=Provider cloudwatch"`
	LogStream string `koanf:"log_stream"`

	Subject string `koanf:"subject" validate:"required_if=Provider nats"`

	BatchSize     int           `koanf:"batch_size" validate:"min=1,max=10000"`
	FlushInterval time.Duration `koanf:"flush_interval" validate:"gt=0"`

	// Timeout bounds a single delivery attempt.
	Timeout     time.Duration `koanf:"timeout" validate:"gt=0"`
	MaxAttempts int           `koanf:"max_attempts" validate:"min=1,max=20"`

	BreakerThreshold int           `koanf:"breaker_threshold" validate:"min=1"`
	BreakerCooldown  time.Duration `koanf:"breaker_cooldown" validate:"gt=0"`

	OverflowPolicy string `koanf:"overflow_policy" validate:"oneof=drop buffer spool"`
	// OverflowLimit caps the batches held by the buffer and spool policies.
	OverflowLimit int           `koanf:"overflow_limit" validate:"min=1"`
	SpoolTTL      time.Duration `koanf:"spool_ttl" validate:"min=0"`
}

// AlertThresholds trigger alert.threshold_exceeded records. A zero value
// disables the corresponding check.
type AlertThresholds struct {
	ErrorsPerMinute    int     `koanf:"errors_per_minute" validate:"min=0"`
	QueueUtilization   float64 `koanf:"queue_utilization_percent" validate:"gte=0,lte=100"`
	DroppedPerInterval int     `koanf:"dropped_per_interval" validate:"min=0"`
}

func defaultSIEM() SIEMSettings {
	return SIEMSettings{
		Enabled:          false,
		BatchSize:        100,
		FlushInterval:    5 * time.Second,
		Timeout:          10 * time.Second,
		MaxAttempts:      3,
		BreakerThreshold: 5,
		BreakerCooldown:  60 * time.Second,
		OverflowPolicy:   OverflowDrop,
		OverflowLimit:    1000,
		SpoolTTL:         24 * time.Hour,
		LogStream:        "observa",
		Subject:          "",
	}
}

func retention(days, sizeMB, backups int, compress bool) RetentionPolicy {
	return RetentionPolicy{Days: days, MaxSizeMB: sizeMB, Backups: backups, Compress: compress}
}

// DefaultEnvironment returns the built-in profile for env.
func DefaultEnvironment(env Environment) *EnvironmentConfig {
	cfg := &EnvironmentConfig{
		Name:            env,
		Level:           "INFO",
		Console:         false,
		JSON:            true,
		SamplingRate:    1.0,
		LogDir:          "logs",
		QueueSize:       50000,
		ShutdownTimeout: 10 * time.Second,
		Masking:         MaskingConfig{MaxDepth: 10},
		SIEM:            defaultSIEM(),
		Alerts: AlertThresholds{
			ErrorsPerMinute:    100,
			QueueUtilization:   80,
			DroppedPerInterval: 1,
		},
	}

	switch env {
	case EnvDevelopment:
		cfg.Level = "DEBUG"
		cfg.Console = true
		cfg.QueueSize = 10000
		cfg.Retention = RetentionConfig{
			Application: retention(7, 10, 3, false),
			Audit:       retention(30, 10, 3, false),
			Security:    retention(30, 10, 3, false),
			Performance: retention(7, 10, 3, false),
		}
		cfg.Alerts.ErrorsPerMinute = 0
	case EnvTesting:
		cfg.Level = "DEBUG"
		cfg.QueueSize = 10000
		cfg.Retention = RetentionConfig{
			Application: retention(3, 20, 5, false),
			Audit:       retention(30, 20, 5, false),
			Security:    retention(30, 20, 5, false),
			Performance: retention(3, 20, 5, false),
		}
		cfg.Alerts.ErrorsPerMinute = 0
	case EnvStaging:
		cfg.Retention = RetentionConfig{
			Application: retention(30, 50, 10, true),
			Audit:       retention(365, 50, 20, true),
			Security:    retention(180, 50, 20, true),
			Performance: retention(14, 50, 10, true),
		}
		cfg.SIEM.OverflowPolicy = OverflowBuffer
	case EnvProduction:
		cfg.SamplingRate = 0.5
		cfg.ShutdownTimeout = 30 * time.Second
		cfg.Retention = RetentionConfig{
			Application: retention(90, 100, 30, true),
			Audit:       retention(365, 100, 50, true),
			Security:    retention(365, 100, 50, true),
			Performance: retention(30, 100, 10, true),
		}
		cfg.SIEM.OverflowPolicy = OverflowSpool
		cfg.Alerts.ErrorsPerMinute = 50
	}
	return cfg
}

// defaultConfig returns the built-in layer: every profile plus service
// defaults.
func defaultConfig() *Config {
	envs := make(map[string]*EnvironmentConfig, len(Environments()))
	for _, env := range Environments() {
		envs[string(env)] = DefaultEnvironment(env)
	}
	return &Config{
		Active: EnvDevelopment,
		Service: ServiceConfig{
			ListenAddr:      "127.0.0.1:8740",
			RateLimit:       600,
			SpoolDir:        "spool",
			ReloadInterval:  30 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			Diagnostics: DiagnosticsConfig{
				Level:  "info",
				Format: "json",
			},
		},
		Environments: envs,
	}
}
