package types

import (
	"context"
	"io"
	"sync"
	"time"
)

// ObjectStore defines the backend operations consumed by the retrieval engine
type ObjectStore interface {
	// ListObjectsPage returns one page of objects under prefix. An empty
	// token requests the first page; an empty NextToken ends the listing.
	ListObjectsPage(ctx context.Context, container, prefix, token string) (ObjectPage, error)

	// HeadObject resolves the authoritative metadata of one object
	HeadObject(ctx context.Context, container, key string) (ObjectMetadata, error)

	// RestoreObject initiates a restore of an archived object for days at tier
	RestoreObject(ctx context.Context, container, key string, days int, tier TierSpeed) error

	// GetObject opens the body of an object; the caller closes it
	GetObject(ctx context.Context, container, key string) (io.ReadCloser, error)
}

// EventType identifies the kind of event in a job's stream
type EventType int

const (
	EventProgress EventType = iota
	EventRestored
	EventDownloaded
	EventSkipped
	EventError
	EventJobStarted
	EventJobCompleted
	EventJobAborted
)

// String returns string representation of the event type
func (t EventType) String() string {
	switch t {
	case EventProgress:
		return "progress"
	case EventRestored:
		return "restored"
	case EventDownloaded:
		return "downloaded"
	case EventSkipped:
		return "skipped"
	case EventError:
		return "error"
	case EventJobStarted:
		return "job_started"
	case EventJobCompleted:
		return "job_completed"
	case EventJobAborted:
		return "job_aborted"
	default:
		return "unknown"
	}
}

// Event is one entry of the live job stream
type Event struct {
	Type   EventType
	JobID  string
	Key    string
	Detail string

	// Current and Total are set on progress events
	Current int
	Total   int
	Err     error
	Time    time.Time

	// Result is set on job completion and abort events
	Result *JobResult
}

// EventSink consumes job events
type EventSink interface {
	Emit(Event)
}

// EventSinkFunc adapts a function to an EventSink
type EventSinkFunc func(Event)

// Emit calls f(e)
func (f EventSinkFunc) Emit(e Event) {
	f(e)
}

// DiscardSink drops every event
var DiscardSink EventSink = EventSinkFunc(func(Event) {})

// MultiSink fans an event out to several sinks in order
func MultiSink(sinks ...EventSink) EventSink {
	return EventSinkFunc(func(e Event) {
		for _, s := range sinks {
			if s != nil {
				s.Emit(e)
			}
		}
	})
}

// EventRecorder stores every event it receives; safe for concurrent use
type EventRecorder struct {
	mu     sync.Mutex
	events []Event
}

// Emit appends the event
func (r *EventRecorder) Emit(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns a copy of the recorded events
func (r *EventRecorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// OfType returns the recorded events of type t
func (r *EventRecorder) OfType(t EventType) []Event {
	var out []Event
	for _, e := range r.Events() {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}
