/*
Package metrics exports retrieval activity as Prometheus metrics.

# Overview

Collector implements types.EventSink. Attach it to an orchestrator next to
any other sink and it counts what flows through the event stream:

	┌──────────────┐   events   ┌─────────────┐
	│ Orchestrator │ ─────────▶ │  Collector  │
	└──────┬───────┘            └──────┬──────┘
	       │ OnRetry                   │
	       └──────────────────────────▶│
	                            ┌──────▼──────────┐
	                            │ /metrics        │
	                            │ /health         │
	                            │ /debug/jobs     │
	                            └─────────────────┘

# Metrics

With the default namespace the exported series are:

	coldfetch_objects_total{action}          restored, downloaded, skipped, failed
	coldfetch_jobs_total{status}             completed, completed_with_failures, aborted
	coldfetch_job_duration_seconds           histogram of job wall time
	coldfetch_jobs_in_progress               gauge
	coldfetch_backend_retries_total{operation}
	coldfetch_errors_total{code}             error codes from pkg/errors

# Usage

	collector, err := metrics.NewCollector(&metrics.Config{
		Enabled:   true,
		Port:      9102,
		Namespace: "coldfetch",
	}, logger)
	if err != nil {
		return err
	}
	if err := collector.Start(ctx); err != nil {
		return err
	}
	defer collector.Stop(context.Background())

	orch := retrieval.New(store, types.MultiSink(renderer, collector), retrieval.Options{
		OnRetry: collector.RecordRetry,
	})

A disabled collector accepts events and drops them, so callers do not need
to branch on configuration.
*/
package metrics
