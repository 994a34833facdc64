// Observa - Enterprise Logging and Observability Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/observa

package config

import (
	"fmt"
	"maps"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// snapshot is an immutable view of the loaded configuration.
type snapshot struct {
	cfg     *Config
	file    string
	modTime time.Time
}

// Manager resolves profiles from a loaded Config. Readers are lock-free;
// Reload and Replace publish a new snapshot atomically.
type Manager struct {
	path   string
	active Environment

	snap atomic.Pointer[snapshot]

	// writeMu serializes Reload and Replace.
	writeMu sync.Mutex
}

// NewManager loads the profile file (path may be empty to search the
// default locations) and resolves the active environment once.
func NewManager(path string) (*Manager, error) {
	cfg, file, err := Load(path)
	if err != nil {
		return nil, err
	}
	m := &Manager{path: file, active: cfg.Active}
	m.snap.Store(&snapshot{cfg: cfg, file: file, modTime: modTime(file)})
	return m, nil
}

// NewManagerFromConfig wraps an already built Config. Missing profiles and
// unset service fields are filled from the built-in defaults before
// validation. Reload is a no-op for managers built this way.
func NewManagerFromConfig(cfg *Config) (*Manager, error) {
	c := *cfg
	if c.Active == "" {
		c.Active = EnvDevelopment
	}
	c.Service = c.Service.withDefaults(defaultConfig().Service)
	active, err := ParseEnvironment(string(c.Active))
	if err != nil {
		return nil, err
	}
	c.Active = active

	envs := make(map[string]*EnvironmentConfig, len(Environments()))
	for _, env := range Environments() {
		e, ok := cfg.Environments[string(env)]
		if !ok || e == nil {
			e = DefaultEnvironment(env)
		} else {
			e = e.Clone()
		}
		e.Name = env
		envs[string(env)] = e
	}
	c.Environments = envs

	if err := c.Validate(); err != nil {
		return nil, err
	}

	m := &Manager{active: active}
	m.snap.Store(&snapshot{cfg: &c})
	return m, nil
}

// withDefaults fills fields that have no usable zero value. ListenAddr,
// RateLimit and ReloadInterval keep their zero value since it disables the
// feature.
func (s ServiceConfig) withDefaults(d ServiceConfig) ServiceConfig {
	if s.SpoolDir == "" {
		s.SpoolDir = d.SpoolDir
	}
	if s.ShutdownTimeout == 0 {
		s.ShutdownTimeout = d.ShutdownTimeout
	}
	if s.Diagnostics.Level == "" {
		s.Diagnostics.Level = d.Diagnostics.Level
	}
	if s.Diagnostics.Format == "" {
		s.Diagnostics.Format = d.Diagnostics.Format
	}
	return s
}

// Resolve returns the profile for env. Any spelling of a profile name,
// typed or untyped, yields the same pointer until the next Reload or
// Replace.
func (m *Manager) Resolve(env Environment) (*EnvironmentConfig, error) {
	e, err := ParseEnvironment(string(env))
	if err != nil {
		return nil, err
	}
	cfg, ok := m.snap.Load().cfg.Environments[string(e)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEnvironment, e)
	}
	return cfg, nil
}

// Active returns the profile selected at startup.
func (m *Manager) Active() *EnvironmentConfig {
	return m.snap.Load().cfg.Environments[string(m.active)]
}

// ActiveEnvironment returns the profile name selected at startup.
func (m *Manager) ActiveEnvironment() Environment {
	return m.active
}

// Service returns the shared service settings.
func (m *Manager) Service() ServiceConfig {
	return m.snap.Load().cfg.Service
}

// File returns the profile file in use, empty when running on defaults.
func (m *Manager) File() string {
	return m.path
}

// Changed reports whether the profile file was modified since the last
// successful load.
func (m *Manager) Changed() bool {
	if m.path == "" {
		return false
	}
	return !modTime(m.path).Equal(m.snap.Load().modTime)
}

// Reload re-reads the profile file and the environment. On error the
// current snapshot stays in place. The active environment does not change.
func (m *Manager) Reload() error {
	if m.path == "" {
		return nil
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	cfg, file, err := Load(m.path)
	if err != nil {
		return err
	}
	cfg.Active = m.active
	m.snap.Store(&snapshot{cfg: cfg, file: file, modTime: modTime(file)})
	return nil
}

// Replace installs cfg as the profile for env. The value is copied and
// validated; readers see either the old or the new profile, never a mix.
func (m *Manager) Replace(env Environment, cfg *EnvironmentConfig) error {
	e, err := ParseEnvironment(string(env))
	if err != nil {
		return err
	}
	next := cfg.Clone()
	next.Name = e
	if err := next.Validate(); err != nil {
		return err
	}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	cur := m.snap.Load()
	c := *cur.cfg
	c.Environments = maps.Clone(cur.cfg.Environments)
	c.Environments[string(e)] = next
	m.snap.Store(&snapshot{cfg: &c, file: cur.file, modTime: cur.modTime})
	return nil
}

func modTime(path string) time.Time {
	if path == "" {
		return time.Time{}
	}
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}
