// Observa - Enterprise Logging and Observability Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/observa

package siem

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"github.com/cenkalti/backoff/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/observa/internal/config"
	"github.com/tomtom215/observa/internal/record"
)

// Splunk posts batches to the HTTP Event Collector.
type Splunk struct {
	httpSender
	url        string
	token      string
	index      string
	sourcetype string
}

// NewSplunk creates the adapter. client may be nil.
func NewSplunk(s config.SIEMSettings, client *http.Client) *Splunk {
	sourcetype := s.Source
	if sourcetype == "" {
		sourcetype = "_json"
	}
	return &Splunk{
		httpSender: newHTTPSender(ProviderSplunk, client, s.Timeout),
		url:        endpointURL(s.Endpoint, "/services/collector/event"),
		token:      s.Token,
		index:      s.Index,
		sourcetype: sourcetype,
	}
}

// Name returns "splunk".
func (a *Splunk) Name() string { return ProviderSplunk }

type hecEvent struct {
	Time       float64       `json:"time"`
	Host       string        `json:"host,omitempty"`
	Source     string        `json:"source"`
	Sourcetype string        `json:"sourcetype"`
	Index      string        `json:"index,omitempty"`
	Event      *record.Entry `json:"event"`
}

// Send posts the batch as concatenated HEC event objects.
func (a *Splunk) Send(ctx context.Context, batch []*record.Entry) error {
	if len(batch) == 0 {
		return nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, e := range batch {
		ev := hecEvent{
			Time:       float64(e.TimestampMS) / 1000,
			Host:       e.Hostname,
			Source:     "observa:" + string(e.Channel),
			Sourcetype: a.sourcetype,
			Index:      a.index,
			Event:      e,
		}
		if err := enc.Encode(ev); err != nil {
			return backoff.Permanent(fmt.Errorf("splunk: encode event: %w", err))
		}
	}

	_, err := a.post(ctx, a.url, "application/json", buf.Bytes(), map[string]string{"Authorization": "Splunk " + a.token})
	return err
}
