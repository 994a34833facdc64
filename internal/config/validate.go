// Observa - Enterprise Logging and Observability Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/observa

package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/tomtom215/observa/internal/validation"
)

// Validate checks the service settings and every profile. All four
// profiles must be present.
func (c *Config) Validate() error {
	if _, err := ParseEnvironment(string(c.Active)); err != nil {
		return fmt.Errorf("active: %w", err)
	}
	if verr := validation.ValidateStruct(&c.Service); verr != nil {
		return fmt.Errorf("service: %w", verr)
	}
	for _, env := range Environments() {
		e, ok := c.Environments[string(env)]
		if !ok || e == nil {
			return fmt.Errorf("environment %s: profile missing", env)
		}
		if err := e.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks one profile.
func (c *EnvironmentConfig) Validate() error {
	if verr := validation.ValidateStruct(c); verr != nil {
		return fmt.Errorf("environment %s: %w", c.Name, verr)
	}
	if err := c.validateSIEMEndpoint(); err != nil {
		return fmt.Errorf("environment %s: %w", c.Name, err)
	}
	return nil
}

// validateSIEMEndpoint checks the endpoint scheme against the provider.
func (c *EnvironmentConfig) validateSIEMEndpoint() error {
	s := c.SIEM
	if !s.Enabled || s.Endpoint == "" {
		return nil
	}
	u, err := url.Parse(s.Endpoint)
	if err != nil {
		return fmt.Errorf("siem.endpoint: %w", err)
	}
	scheme := strings.ToLower(u.Scheme)
	switch s.Provider {
	case "nats":
		if scheme != "nats" && scheme != "tls" {
			return fmt.Errorf("siem.endpoint must use nats:// or tls:// for provider nats, got %q", u.Scheme)
		}
	default:
		if scheme != "http" && scheme != "https" {
			return fmt.Errorf("siem.endpoint must use http:// or https:// for provider %s, got %q", s.Provider, u.Scheme)
		}
	}
	return nil
}
