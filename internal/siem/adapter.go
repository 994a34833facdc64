// Observa - Enterprise Logging and Observability Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/observa

package siem

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/tomtom215/observa/internal/config"
	"github.com/tomtom215/observa/internal/record"
)

// Adapter delivers batches of formatted, masked records to one backend.
// Send must be safe to retry with the same batch and must return errors
// rather than panic on network failures. Permanent failures are wrapped
// with backoff.Permanent.
type Adapter interface {
	Name() string
	Send(ctx context.Context, batch []*record.Entry) error
	Close() error
}

// ErrUnknownProvider is returned by NewAdapter for an unsupported provider.
var ErrUnknownProvider = errors.New("unknown SIEM provider")

// Provider names.
const (
	ProviderElasticsearch = "elasticsearch"
	ProviderDatadog       = "datadog"
	ProviderSplunk        = "splunk"
	ProviderCloudWatch    = "cloudwatch"
	ProviderNATS          = "nats"
)

// maxResponseBody caps how much of a response body is read.
const maxResponseBody = 1 << 20

// NewAdapter builds the adapter selected by s.Provider.
func NewAdapter(ctx context.Context, s config.SIEMSettings, environment string) (Adapter, error) {
	switch strings.ToLower(s.Provider) {
	case ProviderElasticsearch:
		return NewElasticsearch(s, nil), nil
	case ProviderDatadog:
		return NewDatadog(s, environment, nil), nil
	case ProviderSplunk:
		return NewSplunk(s, nil), nil
	case ProviderCloudWatch:
		return NewCloudWatch(ctx, s)
	case ProviderNATS:
		return NewNATS(s)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, s.Provider)
	}
}

// StatusError is a non-2xx response from an HTTP backend.
type StatusError struct {
	Adapter string
	Code    int
	Body    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned %d: %s", e.Adapter, e.Code, e.Body)
}

// Transient reports whether the request may succeed on retry.
func (e *StatusError) Transient() bool {
	return isTransientStatus(e.Code)
}

// isTransientStatus treats timeouts, throttling and server errors as
// retryable. Other 4xx responses will not change on retry.
func isTransientStatus(code int) bool {
	switch {
	case code == http.StatusRequestTimeout, code == http.StatusTooManyRequests:
		return true
	case code >= 500:
		return true
	default:
		return false
	}
}

// statusError builds the error for a non-2xx status, permanent when
// retrying cannot help.
func statusError(adapter string, code int, body []byte) error {
	b := strings.TrimSpace(string(body))
	if len(b) > 4096 {
		b = b[:4096]
	}
	serr := &StatusError{Adapter: adapter, Code: code, Body: b}
	if !serr.Transient() {
		return backoff.Permanent(serr)
	}
	return serr
}

// httpSender is the shared POST path of the HTTP adapters.
type httpSender struct {
	name   string
	client *http.Client
}

func newHTTPSender(name string, client *http.Client, timeout time.Duration) httpSender {
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return httpSender{name: name, client: client}
}

// post sends body and returns the response body of a 2xx response.
func (h httpSender) post(ctx context.Context, url, contentType string, body []byte, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("%s: create request: %w", h.name, err))
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("User-Agent", "Observa/1.0")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: send: %w", h.name, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		respBody = []byte("(failed to read response)")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, statusError(h.name, resp.StatusCode, respBody)
	}
	return respBody, nil
}

func (h httpSender) Close() error {
	h.client.CloseIdleConnections()
	return nil
}

// endpointURL appends path to base unless base already ends with it.
func endpointURL(base, path string) string {
	base = strings.TrimRight(base, "/")
	if strings.HasSuffix(base, path) {
		return base
	}
	return base + path
}
