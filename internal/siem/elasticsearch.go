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
	"github.com/google/uuid"

	"github.com/tomtom215/observa/internal/config"
	"github.com/tomtom215/observa/internal/record"
)

const defaultESIndex = "observa-logs"

// Elasticsearch indexes batches through the _bulk API. Each document is
// created under its entry's event ID, so a retried batch does not duplicate
// documents that were already indexed while identical records emitted
// separately stay distinct.
type Elasticsearch struct {
	httpSender
	url    string
	index  string
	apiKey string
}

// NewElasticsearch creates the adapter. client may be nil.
func NewElasticsearch(s config.SIEMSettings, client *http.Client) *Elasticsearch {
	index := s.Index
	if index == "" {
		index = defaultESIndex
	}
	return &Elasticsearch{
		httpSender: newHTTPSender(ProviderElasticsearch, client, s.Timeout),
		url:        endpointURL(s.Endpoint, "/_bulk"),
		index:      index,
		apiKey:     s.APIKey,
	}
}

// Name returns "elasticsearch".
func (a *Elasticsearch) Name() string { return ProviderElasticsearch }

type bulkAction struct {
	Create bulkMeta `json:"create"`
}

type bulkMeta struct {
	Index string `json:"_index"`
	ID    string `json:"_id"`
}

type bulkResponse struct {
	Errors bool `json:"errors"`
	Items  []map[string]struct {
		Status int             `json:"status"`
		Error  json.RawMessage `json:"error"`
	} `json:"items"`
}

// Send posts the batch as NDJSON.
func (a *Elasticsearch) Send(ctx context.Context, batch []*record.Entry) error {
	if len(batch) == 0 {
		return nil
	}

	var buf bytes.Buffer
	for _, e := range batch {
		if e.EventID == "" {
			e.EventID = uuid.NewString()
		}
		doc := record.Encode(e)
		action, err := json.Marshal(bulkAction{Create: bulkMeta{Index: a.index, ID: e.EventID}})
		if err != nil {
			return backoff.Permanent(fmt.Errorf("elasticsearch: encode action: %w", err))
		}
		buf.Write(action)
		buf.WriteByte('\n')
		buf.Write(doc)
		buf.WriteByte('\n')
	}

	headers := map[string]string{}
	if a.apiKey != "" {
		headers["Authorization"] = "ApiKey " + a.apiKey
	}

	body, err := a.post(ctx, a.url, "application/x-ndjson", buf.Bytes(), headers)
	if err != nil {
		return err
	}
	return bulkItemsError(body)
}

// bulkItemsError inspects per-item results of a 200 bulk response.
// Conflicts mean a document with the same event ID, and so the same entry
// from an earlier attempt, already exists; they count as delivered.
func bulkItemsError(body []byte) error {
	var resp bulkResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("elasticsearch: decode bulk response: %w", err)
	}
	if !resp.Errors {
		return nil
	}

	failed, transient := 0, false
	var first string
	for _, item := range resp.Items {
		for _, res := range item {
			if res.Status < 300 || res.Status == http.StatusConflict {
				continue
			}
			failed++
			if isTransientStatus(res.Status) {
				transient = true
			}
			if first == "" {
				first = fmt.Sprintf("status %d: %s", res.Status, string(res.Error))
			}
		}
	}
	if failed == 0 {
		return nil
	}

	err := fmt.Errorf("elasticsearch: %d of %d documents rejected, first %s", failed, len(resp.Items), first)
	if !transient {
		return backoff.Permanent(err)
	}
	return err
}
