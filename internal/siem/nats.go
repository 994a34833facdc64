// Observa - Enterprise Logging and Observability Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/observa

package siem

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/tomtom215/observa/internal/config"
	"github.com/tomtom215/observa/internal/logging"
	"github.com/tomtom215/observa/internal/record"
)

// NATS publishes each batch as one NDJSON message on a core NATS subject.
// Send flushes the connection so a successful return means the server
// received the message.
type NATS struct {
	nc      *nats.Conn
	subject string
	timeout time.Duration
}

// defaultNATSFlushTimeout bounds the flush when neither the caller's
// context nor the settings carry a deadline.
const defaultNATSFlushTimeout = 10 * time.Second

// NewNATS connects to s.Endpoint. The connection retries in the
// background, so a server that is down at startup does not fail
// construction; sends fail until it is reachable.
func NewNATS(s config.SIEMSettings) (*NATS, error) {
	opts := []nats.Option{
		nats.Name("observa-siem"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logging.Warn().Err(err).Str("adapter", ProviderNATS).Msg("NATS disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logging.Info().Str("adapter", ProviderNATS).Str("url", nc.ConnectedUrlRedacted()).Msg("NATS reconnected")
		}),
	}
	if s.Token != "" {
		opts = append(opts, nats.Token(s.Token))
	}

	nc, err := nats.Connect(s.Endpoint, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = defaultNATSFlushTimeout
	}
	return &NATS{nc: nc, subject: s.Subject, timeout: timeout}, nil
}

// Name returns "nats".
func (a *NATS) Name() string { return ProviderNATS }

// Send publishes the batch and waits for the server to acknowledge the
// flush. Without a deadline on ctx the wait is bounded by the settings'
// Timeout.
func (a *NATS) Send(ctx context.Context, batch []*record.Entry) error {
	if len(batch) == 0 {
		return nil
	}
	if !a.nc.IsConnected() {
		return fmt.Errorf("nats: not connected (%s)", a.nc.Status())
	}

	var buf bytes.Buffer
	for _, e := range batch {
		buf.Write(record.Encode(e))
		buf.WriteByte('\n')
	}

	msg := nats.NewMsg(a.subject)
	msg.Data = buf.Bytes()
	msg.Header.Set("Content-Type", "application/x-ndjson")
	msg.Header.Set("Observa-Batch-Size", fmt.Sprint(len(batch)))

	if err := a.nc.PublishMsg(msg); err != nil {
		return fmt.Errorf("nats: publish: %w", err)
	}
	// FlushWithContext rejects a context without a deadline.
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}
	if err := a.nc.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("nats: flush: %w", err)
	}
	return nil
}

// Close drains pending publishes and closes the connection.
func (a *NATS) Close() error {
	if err := a.nc.Drain(); err != nil {
		a.nc.Close()
		return fmt.Errorf("nats: drain: %w", err)
	}
	return nil
}
