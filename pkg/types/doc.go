/*
Package types provides the core interfaces, data structures, and type definitions for coldfetch.

This package is the contract between the retrieval engine, the storage backends that serve it,
and the presentation layers that consume its events.

# Architecture Overview

	┌─────────────────────────────────────────────┐
	│         CLI / presentation layer            │
	│        (cmd/coldfetch, internal/ui)         │
	└─────────────────────────────────────────────┘
	          │ RetrievalRequest        ▲ Event / JobResult
	┌─────────────────────────────────────────────┐
	│            Retrieval orchestrator           │
	│            (internal/retrieval)             │
	└─────────────────────────────────────────────┘
	                      │ ObjectStore
	┌─────────────────────────────────────────────┐
	│        S3 store (internal/storage/s3)       │
	└─────────────────────────────────────────────┘

# Core Interfaces

ObjectStore:
The four backend operations the engine consumes: a paginated listing, a metadata lookup,
a restore initiation and a body stream. Implementations translate backend faults into
coded errors from pkg/errors so the retry policy can tell transient faults from permanent ones.

EventSink:
Receives the live event stream of a job. Sinks must be safe for concurrent use when
several jobs are dispatched at once.

# Data Structures

RetrievalRequest:
One row of work: a raw location identifier, a retention window in days and a restore speed.
The location stays unparsed so that a malformed identifier fails only its own request.

TierSpeed:
Expedited, Standard or Bulk. ParseTierSpeed is the only way user input becomes a TierSpeed;
unknown strings are rejected, never defaulted.

StorageClass:
Standard or Archived. Archived objects must be restored before their body can be read.

JobResult:
Counters per action plus every failure with its key, and the abort cause when the job
never reached its objects.
*/
package types
