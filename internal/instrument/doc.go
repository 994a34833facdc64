// Observa - Enterprise Logging and Observability Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/observa

// Package instrument wraps operations with logging calls made through the
// enterprise emit API: function calls, goroutines, state transitions and
// retried operations.
//
//	err := instrument.Call(ctx, log, "checkout.submit", func(ctx context.Context) error {
//		return page.Submit(ctx)
//	})
package instrument
