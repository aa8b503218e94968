package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/scttfrdmn/coldfetch/pkg/errors"
	"github.com/scttfrdmn/coldfetch/pkg/types"
)

func newTestCollector(t *testing.T) *Collector {
	t.Helper()
	collector, err := NewCollector(&Config{
		Enabled:   true,
		Path:      "/metrics",
		Namespace: "coldfetch",
		Subsystem: "test",
	}, nil)
	if err != nil {
		t.Fatalf("NewCollector() error = %v, want nil", err)
	}
	return collector
}

func jobEvents(jobID string, result *types.JobResult) []types.Event {
	return []types.Event{
		{Type: types.EventJobStarted, JobID: jobID},
		{Type: types.EventRestored, JobID: jobID, Key: "a.log"},
		{Type: types.EventDownloaded, JobID: jobID, Key: "b.log"},
		{Type: types.EventSkipped, JobID: jobID, Key: "c.log"},
		{Type: types.EventProgress, JobID: jobID, Current: 3, Total: 4},
		{Type: types.EventError, JobID: jobID, Key: "d.log",
			Err: errors.NewError(errors.ErrCodeAccessDenied, "denied")},
		{Type: types.EventJobCompleted, JobID: jobID, Result: result},
	}
}

func TestNewCollector(t *testing.T) {
	t.Parallel()

	t.Run("with valid config", func(t *testing.T) {
		config := &Config{Enabled: true, Namespace: "coldfetch"}
		collector, err := NewCollector(config, nil)
		if err != nil {
			t.Fatalf("NewCollector() error = %v, want nil", err)
		}
		if collector.config != config {
			t.Error("collector.config does not match input config")
		}
		if collector.registry == nil {
			t.Error("collector.registry is nil")
		}
		if config.Path != "/metrics" {
			t.Errorf("config.Path = %q, want /metrics", config.Path)
		}
	})

	t.Run("with nil config uses defaults", func(t *testing.T) {
		collector, err := NewCollector(nil, nil)
		if err != nil {
			t.Fatalf("NewCollector(nil) error = %v, want nil", err)
		}
		if !collector.config.Enabled {
			t.Error("default config should be enabled")
		}
		if collector.config.Port != 9102 {
			t.Errorf("default port = %d, want 9102", collector.config.Port)
		}
		if collector.config.Namespace != "coldfetch" {
			t.Errorf("default namespace = %q, want coldfetch", collector.config.Namespace)
		}
	})

	t.Run("disabled collector ignores events", func(t *testing.T) {
		collector, err := NewCollector(&Config{Enabled: false}, nil)
		if err != nil {
			t.Fatalf("NewCollector() error = %v, want nil", err)
		}
		result := &types.JobResult{}
		for _, event := range jobEvents("job-1", result) {
			collector.Emit(event)
		}
		collector.RecordRetry("head", 1, nil)
		if got := collector.GetSummary(); got != (Summary{}) {
			t.Errorf("GetSummary() = %+v, want zero", got)
		}
		if err := collector.Start(context.Background()); err != nil {
			t.Errorf("Start() on disabled collector error = %v", err)
		}
		if addr := collector.Addr(); addr != "" {
			t.Errorf("Addr() = %q, want empty", addr)
		}
	})
}

func TestCollectorEmit(t *testing.T) {
	t.Parallel()

	collector := newTestCollector(t)
	started := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	result := &types.JobResult{
		Requested:   4,
		Restored:    1,
		Downloaded:  1,
		Skipped:     1,
		Failed:      []types.Failure{{Key: "d.log"}},
		StartedAt:   started,
		CompletedAt: started.Add(2 * time.Second),
	}
	for _, event := range jobEvents("job-1", result) {
		collector.Emit(event)
	}

	for action, want := range map[string]float64{
		"restored":   1,
		"downloaded": 1,
		"skipped":    1,
		"failed":     1,
	} {
		if got := testutil.ToFloat64(collector.objectCounter.WithLabelValues(action)); got != want {
			t.Errorf("objects_total{action=%q} = %v, want %v", action, got, want)
		}
	}

	if got := testutil.ToFloat64(collector.jobCounter.WithLabelValues(StatusPartial)); got != 1 {
		t.Errorf("jobs_total{status=%q} = %v, want 1", StatusPartial, got)
	}
	if got := testutil.ToFloat64(collector.jobsInProgress); got != 0 {
		t.Errorf("jobs_in_progress = %v, want 0", got)
	}
	if got := testutil.ToFloat64(collector.errorCounter.WithLabelValues(string(errors.ErrCodeAccessDenied))); got != 1 {
		t.Errorf("errors_total{code=ACCESS_DENIED} = %v, want 1", got)
	}
	if got := testutil.CollectAndCount(collector.jobDuration); got != 1 {
		t.Errorf("job_duration_seconds series = %d, want 1", got)
	}

	summary := collector.GetSummary()
	want := Summary{Jobs: 1, Restored: 1, Downloaded: 1, Skipped: 1, Failed: 1}
	if summary != want {
		t.Errorf("GetSummary() = %+v, want %+v", summary, want)
	}
}

func TestCollectorJobStatus(t *testing.T) {
	t.Parallel()

	collector := newTestCollector(t)
	abortErr := errors.NewError(errors.ErrCodeBucketNotFound, "no such bucket")

	collector.Emit(types.Event{Type: types.EventJobStarted, JobID: "ok"})
	collector.Emit(types.Event{Type: types.EventJobCompleted, JobID: "ok", Result: &types.JobResult{}})

	collector.Emit(types.Event{Type: types.EventJobStarted, JobID: "bad"})
	collector.Emit(types.Event{Type: types.EventError, JobID: "bad", Err: abortErr})
	collector.Emit(types.Event{Type: types.EventJobAborted, JobID: "bad", Err: abortErr,
		Result: &types.JobResult{Aborted: abortErr}})

	if got := testutil.ToFloat64(collector.jobCounter.WithLabelValues(StatusCompleted)); got != 1 {
		t.Errorf("completed jobs = %v, want 1", got)
	}
	if got := testutil.ToFloat64(collector.jobCounter.WithLabelValues(StatusAborted)); got != 1 {
		t.Errorf("aborted jobs = %v, want 1", got)
	}

	// A job-level error has no key and is not an object failure.
	summary := collector.GetSummary()
	if summary.Failed != 0 {
		t.Errorf("summary.Failed = %d, want 0", summary.Failed)
	}
	if summary.Jobs != 2 || summary.Aborted != 1 {
		t.Errorf("summary jobs/aborted = %d/%d, want 2/1", summary.Jobs, summary.Aborted)
	}

	collector.ResetSummary()
	if got := collector.GetSummary(); got != (Summary{}) {
		t.Errorf("GetSummary() after reset = %+v, want zero", got)
	}
}

func TestCollectorRecordRetry(t *testing.T) {
	t.Parallel()

	collector := newTestCollector(t)
	collector.RecordRetry("head", 1, errors.NewError(errors.ErrCodeSlowDown, "slow down"))
	collector.RecordRetry("head", 2, errors.NewError(errors.ErrCodeSlowDown, "slow down"))
	collector.RecordRetry("list", 1, nil)

	if got := testutil.ToFloat64(collector.retryCounter.WithLabelValues("head")); got != 2 {
		t.Errorf("backend_retries_total{operation=head} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(collector.retryCounter.WithLabelValues("list")); got != 1 {
		t.Errorf("backend_retries_total{operation=list} = %v, want 1", got)
	}
	if got := collector.GetSummary().Retries; got != 3 {
		t.Errorf("summary.Retries = %d, want 3", got)
	}
}

func TestCollectorHandler(t *testing.T) {
	t.Parallel()

	collector := newTestCollector(t)
	collector.Emit(types.Event{Type: types.EventSkipped, Key: "old.log"})

	server := httptest.NewServer(collector.Handler())
	defer server.Close()

	tests := []struct {
		path     string
		contains string
	}{
		{"/metrics", `coldfetch_test_objects_total{action="skipped"} 1`},
		{"/health", `"status":"healthy"`},
		{"/debug/jobs", "Skipped"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, err := http.Get(server.URL + tt.path)
			if err != nil {
				t.Fatalf("GET %s error = %v", tt.path, err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				t.Fatalf("GET %s status = %d, want 200", tt.path, resp.StatusCode)
			}
			body, err := io.ReadAll(resp.Body)
			if err != nil {
				t.Fatalf("reading body: %v", err)
			}
			if !strings.Contains(string(body), tt.contains) {
				t.Errorf("GET %s body does not contain %q:\n%s", tt.path, tt.contains, body)
			}
		})
	}
}

func TestCollectorStartStop(t *testing.T) {
	t.Parallel()

	collector := newTestCollector(t)
	collector.config.Port = 0

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := collector.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	addr := collector.Addr()
	if addr == "" {
		t.Fatal("Addr() is empty after Start")
	}

	resp, err := http.Get("http://" + addr + "/health")
	if err != nil {
		t.Fatalf("GET /health error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("GET /health status = %d, want 200", resp.StatusCode)
	}

	if err := collector.Stop(ctx); err != nil {
		t.Errorf("Stop() error = %v", err)
	}
	if addr := collector.Addr(); addr != "" {
		t.Errorf("Addr() after Stop = %q, want empty", addr)
	}
	// Stopping twice is harmless
	if err := collector.Stop(ctx); err != nil {
		t.Errorf("second Stop() error = %v", err)
	}
}
