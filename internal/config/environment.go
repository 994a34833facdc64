// Observa - Enterprise Logging and Observability Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/observa

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// Environment names a configuration profile.
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvTesting     Environment = "testing"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "production"
)

// ErrUnknownEnvironment is returned for names that match no profile.
var ErrUnknownEnvironment = errors.New("unknown environment")

// Environments returns every profile in promotion order.
func Environments() []Environment {
	return []Environment{EnvDevelopment, EnvTesting, EnvStaging, EnvProduction}
}

var environmentAliases = map[string]Environment{
	"dev":   EnvDevelopment,
	"test":  EnvTesting,
	"stage": EnvStaging,
	"prod":  EnvProduction,
}

// ParseEnvironment normalizes a profile name. Matching is case-insensitive
// and accepts the short forms dev, test, stage and prod.
func ParseEnvironment(name string) (Environment, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for _, env := range Environments() {
		if n == string(env) {
			return env, nil
		}
	}
	if env, ok := environmentAliases[n]; ok {
		return env, nil
	}
	return "", fmt.Errorf("%w: %q (expected one of development, testing, staging, production)", ErrUnknownEnvironment, name)
}

// String returns the canonical profile name.
func (e Environment) String() string {
	return string(e)
}

// EnvVarActive and EnvVarActiveAlias select the active profile.
const (
	EnvVarActive      = "OBSERVA_ENV"
	EnvVarActiveAlias = "TEST_ENV"
)

// activeFromEnv returns the profile named by OBSERVA_ENV or TEST_ENV. The
// boolean is false when neither is set.
func activeFromEnv() (Environment, bool, error) {
	for _, key := range []string{EnvVarActive, EnvVarActiveAlias} {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			env, err := ParseEnvironment(v)
			if err != nil {
				return "", true, fmt.Errorf("%s: %w", key, err)
			}
			return env, true, nil
		}
	}
	return "", false, nil
}
