// Observa - Enterprise Logging and Observability Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/observa

package metrics

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordSinkWrite(t *testing.T) {
	writes := testutil.ToFloat64(SinkWrites.WithLabelValues("test_stream"))
	failures := testutil.ToFloat64(SinkErrors.WithLabelValues("test_stream"))

	RecordSinkWrite("test_stream", nil)
	RecordSinkWrite("test_stream", nil)
	RecordSinkWrite("test_stream", errors.New("disk full"))

	if got := testutil.ToFloat64(SinkWrites.WithLabelValues("test_stream")) - writes; got != 2 {
		t.Errorf("expected 2 writes, got %v", got)
	}
	if got := testutil.ToFloat64(SinkErrors.WithLabelValues("test_stream")) - failures; got != 1 {
		t.Errorf("expected 1 error, got %v", got)
	}
}

func TestRecordSIEMBatch(t *testing.T) {
	tests := []struct {
		name   string
		result string
		size   int
	}{
		{"success", "success", 10},
		{"failure", "failure", 5},
		{"spooled", "spooled", 7},
		{"dropped", "dropped", 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adapter := "batch_" + tt.name
			RecordSIEMBatch(adapter, tt.result, tt.size, 20*time.Millisecond)

			if got := testutil.ToFloat64(SIEMBatches.WithLabelValues(adapter, tt.result)); got != 1 {
				t.Errorf("expected 1 batch, got %v", got)
			}
			if got := testutil.ToFloat64(SIEMRecords.WithLabelValues(adapter, tt.result)); got != float64(tt.size) {
				t.Errorf("expected %d records, got %v", tt.size, got)
			}
		})
	}
}

func TestRecordSIEMAttempt(t *testing.T) {
	RecordSIEMAttempt("attempts", nil)
	RecordSIEMAttempt("attempts", errors.New("503"))
	RecordSIEMAttempt("attempts", errors.New("503"))

	if got := testutil.ToFloat64(SIEMAttempts.WithLabelValues("attempts", "failure")); got != 2 {
		t.Errorf("expected 2 failed attempts, got %v", got)
	}
	if got := testutil.ToFloat64(SIEMAttempts.WithLabelValues("attempts", "success")); got != 1 {
		t.Errorf("expected 1 successful attempt, got %v", got)
	}
}

func TestBreakerStateValue(t *testing.T) {
	tests := []struct {
		state string
		want  float64
	}{
		{"closed", 0},
		{"CLOSED", 0},
		{"half-open", 1},
		{"HALF_OPEN", 1},
		{"open", 2},
		{"OPEN", 2},
		{"unknown", 0},
	}
	for _, tt := range tests {
		if got := BreakerStateValue(tt.state); got != tt.want {
			t.Errorf("BreakerStateValue(%q) = %v, want %v", tt.state, got, tt.want)
		}
	}
}

func TestRecordBreakerTransition(t *testing.T) {
	RecordBreakerTransition("transition_test", "CLOSED", "OPEN")

	if got := testutil.ToFloat64(CircuitBreakerState.WithLabelValues("transition_test")); got != 2 {
		t.Errorf("expected open state gauge 2, got %v", got)
	}
	if got := testutil.ToFloat64(CircuitBreakerTransitions.WithLabelValues("transition_test", "CLOSED", "OPEN")); got != 1 {
		t.Errorf("expected 1 transition, got %v", got)
	}
}

func TestUpdateQueue(t *testing.T) {
	UpdateQueue(12, 100)

	if got := testutil.ToFloat64(QueueDepth); got != 12 {
		t.Errorf("expected depth 12, got %v", got)
	}
	if got := testutil.ToFloat64(QueueCapacity); got != 100 {
		t.Errorf("expected capacity 100, got %v", got)
	}
}

func TestPipelineCounters(t *testing.T) {
	RecordEnqueued("pipeline_test", "INFO")
	RecordDropped("pipeline_test")
	RecordRejected("pipeline_test")
	RecordFiltered("pipeline_test", "sampled")

	checks := []struct {
		name string
		c    prometheus.Collector
	}{
		{"enqueued", RecordsEnqueued.WithLabelValues("pipeline_test", "INFO")},
		{"dropped", RecordsDropped.WithLabelValues("pipeline_test")},
		{"rejected", RecordsRejected.WithLabelValues("pipeline_test")},
		{"filtered", RecordsFiltered.WithLabelValues("pipeline_test", "sampled")},
	}
	for _, c := range checks {
		if got := testutil.ToFloat64(c.c); got != 1 {
			t.Errorf("%s: expected 1, got %v", c.name, got)
		}
	}
}

func TestRecordAPIRequest(t *testing.T) {
	RecordAPIRequest("POST", "/v1/logs", StatusLabel(202), 5*time.Millisecond)

	if got := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("POST", "/v1/logs", "202")); got < 1 {
		t.Errorf("expected request counted, got %v", got)
	}
}

func TestTrackActiveRequest_RequestLifecycle(t *testing.T) {
	before := testutil.ToFloat64(APIActiveRequests)

	TrackActiveRequest(true)
	TrackActiveRequest(true)
	TrackActiveRequest(false)

	if got := testutil.ToFloat64(APIActiveRequests) - before; got != 1 {
		t.Errorf("expected 1 active request, got %v", got)
	}
	TrackActiveRequest(false)
}

func TestRecordConfigReload(t *testing.T) {
	ok := testutil.ToFloat64(ConfigReloads.WithLabelValues("success"))
	bad := testutil.ToFloat64(ConfigReloads.WithLabelValues("failure"))

	RecordConfigReload(nil)
	RecordConfigReload(errors.New("bad yaml"))

	if testutil.ToFloat64(ConfigReloads.WithLabelValues("success"))-ok != 1 {
		t.Error("expected one successful reload")
	}
	if testutil.ToFloat64(ConfigReloads.WithLabelValues("failure"))-bad != 1 {
		t.Error("expected one failed reload")
	}
}

func TestConcurrentMetricRecording(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				RecordEnqueued("concurrent_test", "DEBUG")
				RecordSIEMAttempt("concurrent_test", nil)
			}
		}()
	}
	wg.Wait()

	if got := testutil.ToFloat64(RecordsEnqueued.WithLabelValues("concurrent_test", "DEBUG")); got != 1000 {
		t.Errorf("expected 1000 enqueued, got %v", got)
	}
}

func TestMetricGathering(t *testing.T) {
	RecordAPIRequest("GET", "/health", "200", time.Millisecond)

	problems, err := testutil.GatherAndLint(prometheus.DefaultGatherer)
	if err != nil {
		t.Logf("Lint errors (may be expected): %v", err)
	}
	for _, p := range problems {
		t.Logf("Metric lint problem in %s: %s", p.Metric, p.Text)
	}
}
