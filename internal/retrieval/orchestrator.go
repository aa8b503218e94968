package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/scttfrdmn/coldfetch/pkg/errors"
	"github.com/scttfrdmn/coldfetch/pkg/retry"
	"github.com/scttfrdmn/coldfetch/pkg/types"
)

// Options configures an Orchestrator
type Options struct {
	// Destination is the directory downloaded objects are written to
	Destination string

	// RestoreDays is how long restored copies stay readable (default 1)
	RestoreDays int

	// TwoPassListing counts the objects in a first listing pass before
	// listing again for processing. The second listing is drained before any
	// object is touched, so the progress total is known either way; the
	// count pass keeps the request pattern of the original tool and only
	// reports when the listing changed between passes.
	TwoPassListing bool

	// Retry is the policy applied to every backend call
	Retry retry.Config

	// IsArchived decides which storage classes need a restore
	IsArchived func(storageClass string) bool

	// OnRetry observes backend retries, e.g. for metrics
	OnRetry RetryObserver

	Logger   *slog.Logger
	Now      func() time.Time
	NewJobID func() string
}

// Orchestrator runs retrieval jobs. It holds no per-job state, so Run may be
// called from several goroutines at once.
type Orchestrator struct {
	enumerator *Enumerator
	classifier *Classifier
	restorer   *Restorer
	downloader *Downloader
	sink       types.EventSink
	opts       Options
	logger     *slog.Logger
}

// New creates an orchestrator over store, publishing events to sink
func New(store types.ObjectStore, sink types.EventSink, opts Options) *Orchestrator {
	if opts.Logger == nil {
		opts.Logger = discardLogger()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewJobID == nil {
		opts.NewJobID = uuid.NewString
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = retry.DefaultConfig()
	}
	if sink == nil {
		sink = types.DiscardSink
	}

	logger := opts.Logger.With("component", component)
	return &Orchestrator{
		enumerator: NewEnumerator(store, newRetryer(opts.Retry, OpList, logger, opts.OnRetry), logger),
		classifier: NewClassifier(store, newRetryer(opts.Retry, OpHead, logger, opts.OnRetry), logger, opts.IsArchived),
		restorer:   NewRestorer(store, newRetryer(opts.Retry, OpRestore, logger, opts.OnRetry), logger, opts.RestoreDays),
		downloader: NewDownloader(store, newRetryer(opts.Retry, OpDownload, logger, opts.OnRetry), logger),
		sink:       sink,
		opts:       opts,
		logger:     logger,
	}
}

// Run executes one retrieval request. The returned result is either
// completed, possibly with per-object failures, or aborted when the request
// could not be parsed or its prefix could not be listed.
func (o *Orchestrator) Run(ctx context.Context, req types.RetrievalRequest) types.JobResult {
	result, logger := o.start(req)

	if err := req.Validate(); err != nil {
		return o.abort(logger, result, err)
	}

	location, err := ParseLocation(req.Location)
	if err != nil {
		return o.abort(logger, result, err)
	}
	result.Location = location

	records, err := o.enumerate(ctx, logger, location)
	if err != nil {
		return o.abort(logger, result, err)
	}
	result.Requested = len(records)
	logger.Info("Enumerated objects", "total", result.Requested, "retention_days", req.RetentionDays)

	for i, record := range records {
		outcome := o.process(ctx, location, req, result.StartedAt, record)
		result.Record(outcome)
		o.emitOutcome(logger, result.JobID, req, outcome)
		o.emit(types.Event{
			Type:    types.EventProgress,
			JobID:   result.JobID,
			Key:     record.Key,
			Current: i + 1,
			Total:   result.Requested,
		})
	}

	result.CompletedAt = o.opts.Now()
	logger.Info("Retrieval completed",
		"requested", result.Requested,
		"restored", result.Restored,
		"downloaded", result.Downloaded,
		"skipped", result.Skipped,
		"failed", len(result.Failed),
		"duration", result.Duration())
	o.emit(types.Event{
		Type:   types.EventJobCompleted,
		JobID:  result.JobID,
		Detail: location.String(),
		Result: &result,
	})
	return result
}

// Reject reports req as an aborted job without touching the backend. It is
// for requests the caller could not build, such as a manifest row with an
// unknown tier, so they still show up in the event stream and the results.
func (o *Orchestrator) Reject(req types.RetrievalRequest, err error) types.JobResult {
	result, logger := o.start(req)
	return o.abort(logger, result, err)
}

func (o *Orchestrator) start(req types.RetrievalRequest) (types.JobResult, *slog.Logger) {
	result := types.JobResult{
		JobID:     o.opts.NewJobID(),
		Request:   req,
		StartedAt: o.opts.Now(),
	}
	o.emit(types.Event{Type: types.EventJobStarted, JobID: result.JobID, Detail: req.Location})
	return result, o.logger.With("job_id", result.JobID, "location", req.Location)
}

// RunBatch runs each request in order. An aborted request does not stop the
// ones after it.
func (o *Orchestrator) RunBatch(ctx context.Context, reqs []types.RetrievalRequest) []types.JobResult {
	results := make([]types.JobResult, 0, len(reqs))
	for _, req := range reqs {
		results = append(results, o.Run(ctx, req))
	}
	return results
}

func (o *Orchestrator) enumerate(ctx context.Context, logger *slog.Logger, location types.Location) ([]types.ObjectRecord, error) {
	if !o.opts.TwoPassListing {
		return o.enumerator.List(ctx, location.Container, location.Prefix)
	}

	counted, err := o.enumerator.Count(ctx, location.Container, location.Prefix)
	if err != nil {
		return nil, err
	}
	records, err := o.enumerator.List(ctx, location.Container, location.Prefix)
	if err != nil {
		return nil, err
	}
	if counted != len(records) {
		logger.Warn("Listing changed between passes", "counted", counted, "listed", len(records))
	}
	return records, nil
}

// process moves one object through filter, classification and action.
func (o *Orchestrator) process(ctx context.Context, location types.Location, req types.RetrievalRequest, now time.Time, record types.ObjectRecord) types.Outcome {
	if err := ctx.Err(); err != nil {
		return failed(record.Key, backendFault("process", record.Key, err))
	}

	if IsFolderMarker(record.Key) {
		return types.Outcome{Key: record.Key, Action: types.ActionSkipped, Reason: "folder marker"}
	}
	if !Qualifies(record, req.RetentionDays, now) {
		return types.Outcome{Key: record.Key, Action: types.ActionSkipped,
			Reason: fmt.Sprintf("older than %d days", req.RetentionDays)}
	}

	class, err := o.classifier.Classify(ctx, location.Container, record.Key)
	if err != nil {
		return failed(record.Key, err)
	}

	if class == types.StorageClassArchived {
		if err := o.restorer.Restore(ctx, location.Container, record.Key, req.Tier); err != nil {
			return failed(record.Key, err)
		}
		return types.Outcome{Key: record.Key, Action: types.ActionRestored}
	}

	path, err := o.downloader.Download(ctx, location.Container, record.Key, o.opts.Destination)
	if err != nil {
		return failed(record.Key, err)
	}
	return types.Outcome{Key: record.Key, Action: types.ActionDownloaded, Path: path}
}

func (o *Orchestrator) emitOutcome(logger *slog.Logger, jobID string, req types.RetrievalRequest, outcome types.Outcome) {
	event := types.Event{JobID: jobID, Key: outcome.Key}

	switch outcome.Action {
	case types.ActionRestored:
		event.Type = types.EventRestored
		event.Detail = fmt.Sprintf("initiated restore with tier %s", req.Tier)
	case types.ActionDownloaded:
		event.Type = types.EventDownloaded
		event.Detail = outcome.Path
	case types.ActionSkipped:
		event.Type = types.EventSkipped
		event.Detail = outcome.Reason
	case types.ActionFailed:
		event.Type = types.EventError
		event.Err = outcome.Err
		event.Detail = outcome.Err.Error()
		logger.Error("Object retrieval failed", "key", outcome.Key, "error", outcome.Err)
	}

	o.emit(event)
}

func (o *Orchestrator) abort(logger *slog.Logger, result types.JobResult, err error) types.JobResult {
	result.Aborted = err
	result.CompletedAt = o.opts.Now()
	logger.Error("Retrieval aborted", "error", err)

	o.emit(types.Event{
		Type:   types.EventError,
		JobID:  result.JobID,
		Detail: result.Request.Location,
		Err:    err,
	})
	o.emit(types.Event{
		Type:   types.EventJobAborted,
		JobID:  result.JobID,
		Detail: result.Request.Location,
		Err:    err,
		Result: &result,
	})
	return result
}

func (o *Orchestrator) emit(event types.Event) {
	if event.Time.IsZero() {
		event.Time = o.opts.Now()
	}
	o.sink.Emit(event)
}

func failed(key string, err error) types.Outcome {
	if err == nil {
		err = errors.NewError(errors.ErrCodeUnknownError, "object failed without an error")
	}
	return types.Outcome{Key: key, Action: types.ActionFailed, Err: err}
}
