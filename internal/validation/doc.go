// Observa - Enterprise Logging and Observability Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/observa

// Package validation provides struct validation using go-playground/validator v10.
//
// A thread-safe singleton validator is shared by the configuration loader
// and the ingest API. Besides the built-in tags it registers:
//
//   - loglevel: DEBUG, INFO, WARNING, ERROR, CRITICAL (any case)
//   - channel: application, audit, security, performance
//
// Field names in messages use the koanf or json tag, so a configuration
// error reads "siem.batch_size must be at least 1" rather than naming the
// Go field.
//
// # Example
//
//	type IngestRecord struct {
//	    Level   string `json:"level" validate:"omitempty,loglevel"`
//	    Channel string `json:"channel" validate:"omitempty,channel"`
//	    Message string `json:"message" validate:"required,max=65536"`
//	}
//
//	if verr := validation.ValidateStruct(&rec); verr != nil {
//	    apiErr := verr.ToAPIError()
//	    ...
//	}
package validation
