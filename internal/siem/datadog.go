// Observa - Enterprise Logging and Observability Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/observa

package siem

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/cenkalti/backoff/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/observa/internal/config"
	"github.com/tomtom215/observa/internal/record"
)

const defaultDatadogEndpoint = "https://http-intake.logs.datadoghq.com"

// Datadog posts batches to the HTTP log intake (v2).
type Datadog struct {
	httpSender
	url         string
	apiKey      string
	source      string
	environment string
}

// NewDatadog creates the adapter. client may be nil.
func NewDatadog(s config.SIEMSettings, environment string, client *http.Client) *Datadog {
	endpoint := s.Endpoint
	if endpoint == "" {
		endpoint = defaultDatadogEndpoint
	}
	source := s.Source
	if source == "" {
		source = "observa"
	}
	return &Datadog{
		httpSender:  newHTTPSender(ProviderDatadog, client, s.Timeout),
		url:         endpointURL(endpoint, "/api/v2/logs"),
		apiKey:      s.APIKey,
		source:      source,
		environment: environment,
	}
}

// Name returns "datadog".
func (a *Datadog) Name() string { return ProviderDatadog }

type datadogLog struct {
	Source   string `json:"ddsource"`
	Service  string `json:"service"`
	Hostname string `json:"hostname"`
	Status   string `json:"status"`
	Tags     string `json:"ddtags"`
	Message  string `json:"message"`
}

// Send posts the batch as a JSON array. Each message is the full encoded
// record so intake pipelines can parse every field.
func (a *Datadog) Send(ctx context.Context, batch []*record.Entry) error {
	if len(batch) == 0 {
		return nil
	}

	logs := make([]datadogLog, 0, len(batch))
	for _, e := range batch {
		tags := []string{"channel:" + string(e.Channel)}
		if a.environment != "" {
			tags = append(tags, "env:"+a.environment)
		}
		logs = append(logs, datadogLog{
			Source:   a.source,
			Service:  "observa",
			Hostname: e.Hostname,
			Status:   strings.ToLower(e.Level),
			Tags:     strings.Join(tags, ","),
			Message:  string(record.Encode(e)),
		})
	}

	body, err := json.Marshal(logs)
	if err != nil {
		return backoff.Permanent(fmt.Errorf("datadog: encode batch: %w", err))
	}

	_, err = a.post(ctx, a.url, "application/json", body, map[string]string{"DD-API-KEY": a.apiKey})
	return err
}
