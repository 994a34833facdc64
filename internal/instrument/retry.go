// Observa - Enterprise Logging and Observability Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/observa

package instrument

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/tomtom215/observa/internal/enterprise"
)

// RetryPolicy controls Retry.
type RetryPolicy struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultRetryPolicy returns 3 attempts starting at 500ms.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     10 * time.Second,
	}
}

// Retry runs fn until it succeeds, returns a backoff.Permanent error, ctx
// is done or the policy's attempts are used up. Every failed attempt is
// logged at WARNING and the final failure at ERROR.
func Retry(ctx context.Context, log Emitter, name string, policy RetryPolicy, fn func(context.Context) error) error {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}

	eb := backoff.NewExponentialBackOff()
	if policy.InitialInterval > 0 {
		eb.InitialInterval = policy.InitialInterval
	}
	if policy.MaxInterval > 0 {
		eb.MaxInterval = policy.MaxInterval
	}
	eb.MaxElapsedTime = 0
	b := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(policy.MaxAttempts-1)), ctx)

	attempt := 0
	start := time.Now()
	err := backoff.Retry(func() error {
		attempt++
		err := fn(ctx)
		if err != nil {
			log.Warning(ctx, fmt.Sprintf("%s attempt %d/%d failed", name, attempt, policy.MaxAttempts),
				"operation", name,
				"attempt", attempt,
				"max_attempts", policy.MaxAttempts,
				"error", err.Error(),
			)
		}
		return err
	}, b)

	if err != nil {
		log.Error(ctx, fmt.Sprintf("%s failed after %d attempts", name, attempt),
			"operation", name,
			"attempts", attempt,
			"duration_ms", msSince(start),
			enterprise.Exc(err),
		)
		return fmt.Errorf("%s: failed after %d attempts: %w", name, attempt, err)
	}
	if attempt > 1 {
		log.Info(ctx, fmt.Sprintf("%s succeeded after %d attempts", name, attempt),
			"operation", name,
			"attempts", attempt,
		)
	}
	return nil
}
