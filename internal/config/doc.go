// Observa - Enterprise Logging and Observability Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/observa

/*
Package config resolves environment profiles to concrete logger settings.

There are four profiles: development, testing, staging and production. Each
one is an EnvironmentConfig holding the level, output flags, sampling rate,
per-channel retention, SIEM delivery settings and alert thresholds. Service
settings (listen address, ingest token, spool directory) sit beside the
profiles and are shared by all of them.

# Sources

Values are layered with koanf, later sources winning:

 1. Built-in per-environment defaults
 2. The profile file (YAML), if one is found
 3. OBSERVA_* environment variables, applied to the active profile

The profile file is located through CONFIG_PATH or OBSERVA_CONFIG, then
./observa.yaml, ./config/observa.yaml and /etc/observa/observa.yaml.

	active: staging
	service:
	  listen_addr: ":8740"
	environments:
	  staging:
	    level: INFO
	    siem:
	      enabled: true
	      provider: elasticsearch
	      endpoint: https://es.internal:9200
	      index: observa-staging

# Environment Variables

The active profile comes from OBSERVA_ENV, then TEST_ENV, then the file's
"active" key, and is read once when the Manager is built.

Profile overrides (applied to the active profile only):
  - OBSERVA_LEVEL, OBSERVA_CONSOLE, OBSERVA_JSON, OBSERVA_SAMPLING_RATE
  - OBSERVA_LOG_DIR, OBSERVA_QUEUE_SIZE, OBSERVA_SHUTDOWN_TIMEOUT
  - OBSERVA_SIEM_ENABLED, OBSERVA_SIEM_PROVIDER, OBSERVA_SIEM_ENDPOINT
  - OBSERVA_SIEM_API_KEY, OBSERVA_SIEM_TOKEN, OBSERVA_SIEM_INDEX
  - OBSERVA_SIEM_REGION, OBSERVA_SIEM_LOG_GROUP, OBSERVA_SIEM_LOG_STREAM
  - OBSERVA_SIEM_SUBJECT, OBSERVA_SIEM_OVERFLOW_POLICY

Service overrides:
  - OBSERVA_LISTEN_ADDR, OBSERVA_INGEST_TOKEN, OBSERVA_RATE_LIMIT
  - OBSERVA_SPOOL_DIR, OBSERVA_RELOAD_INTERVAL
  - OBSERVA_DIAG_LEVEL, OBSERVA_DIAG_FORMAT

# Resolution

Manager.Resolve accepts a typed Environment or any spelling of its name and
returns the same *EnvironmentConfig for all of them. Unknown names fail with
ErrUnknownEnvironment. Returned configs are shared and must be treated as
read-only; Reload and Replace swap a whole snapshot atomically so readers
never observe a partial update.
*/
package config
