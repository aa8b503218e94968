package retrieval

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scttfrdmn/coldfetch/internal/retrieval/retrievaltest"
	cferrors "github.com/scttfrdmn/coldfetch/pkg/errors"
	"github.com/scttfrdmn/coldfetch/pkg/types"
)

func newTestOrchestrator(t *testing.T, store types.ObjectStore, sink types.EventSink) *Orchestrator {
	t.Helper()
	ids := 0
	var mu sync.Mutex
	return New(store, sink, Options{
		Destination: t.TempDir(),
		Retry:       fastRetry(),
		Now:         func() time.Time { return testNow },
		NewJobID: func() string {
			mu.Lock()
			defer mu.Unlock()
			ids++
			return fmt.Sprintf("job-%d", ids)
		},
	})
}

func logsScenario() *retrievaltest.Store {
	store := retrievaltest.NewStore()
	putObjects(store, "bucket",
		retrievaltest.Object{Key: "logs/old.log", Body: []byte("old"), LastModified: daysAgo(10), StorageClass: "STANDARD"},
		retrievaltest.Object{Key: "logs/recent.log", Body: []byte("recent"), LastModified: daysAgo(1), StorageClass: "STANDARD"},
		retrievaltest.Object{Key: "logs/today.log", Body: []byte("today"), LastModified: testNow, StorageClass: "GLACIER"},
	)
	return store
}

func TestOrchestrator_RunLogsScenario(t *testing.T) {
	store := logsScenario()
	recorder := &types.EventRecorder{}
	o := newTestOrchestrator(t, store, recorder)

	result := o.Run(context.Background(), types.RetrievalRequest{
		Location:      "s3://bucket/logs",
		RetentionDays: 7,
		Tier:          types.TierBulk,
	})

	require.False(t, result.IsAborted(), "aborted: %v", result.Aborted)
	assert.Equal(t, "job-1", result.JobID)
	assert.Equal(t, types.Location{Container: "bucket", Prefix: "logs"}, result.Location)
	assert.Equal(t, 3, result.Requested)
	assert.Equal(t, 1, result.Restored)
	assert.Equal(t, 1, result.Downloaded)
	assert.Equal(t, 1, result.Skipped)
	assert.Empty(t, result.Failed)

	restores := store.Restores()
	require.Len(t, restores, 1)
	assert.Equal(t, "logs/today.log", restores[0].Key)
	assert.Equal(t, types.TierBulk, restores[0].Tier)
	assert.Equal(t, DefaultRestoreDays, restores[0].Days)

	downloaded := recorder.OfType(types.EventDownloaded)
	require.Len(t, downloaded, 1)
	data, err := os.ReadFile(downloaded[0].Detail)
	require.NoError(t, err)
	assert.Equal(t, "recent", string(data))
	assert.Equal(t, "recent.log", filepath.Base(downloaded[0].Detail))

	restored := recorder.OfType(types.EventRestored)
	require.Len(t, restored, 1)
	assert.Equal(t, "initiated restore with tier Bulk", restored[0].Detail)

	// Skipped objects never reach the metadata lookup.
	assert.Equal(t, 2, store.Calls(retrievaltest.OpHead))
}

func TestOrchestrator_EventOrder(t *testing.T) {
	recorder := &types.EventRecorder{}
	o := newTestOrchestrator(t, logsScenario(), recorder)

	o.Run(context.Background(), types.RetrievalRequest{Location: "s3://bucket/logs", RetentionDays: 7, Tier: types.TierStandard})

	events := recorder.Events()
	require.NotEmpty(t, events)
	assert.Equal(t, types.EventJobStarted, events[0].Type)
	last := events[len(events)-1]
	assert.Equal(t, types.EventJobCompleted, last.Type)
	require.NotNil(t, last.Result)
	assert.Equal(t, 3, last.Result.Requested)

	progress := recorder.OfType(types.EventProgress)
	require.Len(t, progress, 3)
	for i, e := range progress {
		assert.Equal(t, i+1, e.Current)
		assert.Equal(t, 3, e.Total)
		assert.Equal(t, "job-1", e.JobID)
	}
}

func TestOrchestrator_ArchivedIsNeverDownloaded(t *testing.T) {
	store := retrievaltest.NewStore()
	putObjects(store, "bucket",
		retrievaltest.Object{Key: "a", LastModified: testNow, StorageClass: "GLACIER"},
		retrievaltest.Object{Key: "b", LastModified: testNow, StorageClass: "DEEP_ARCHIVE"},
		retrievaltest.Object{Key: "c", LastModified: testNow, StorageClass: "GLACIER_IR"},
	)
	o := newTestOrchestrator(t, store, nil)

	result := o.Run(context.Background(), types.RetrievalRequest{Location: "s3://bucket", RetentionDays: 1, Tier: types.TierExpedited})

	assert.Equal(t, 2, result.Restored)
	assert.Equal(t, 1, result.Downloaded)
	assert.Empty(t, result.Failed)
	assert.Equal(t, 1, store.Calls(retrievaltest.OpGet), "only the instant-retrieval object is fetched")
}

func TestOrchestrator_ListingFailureAborts(t *testing.T) {
	store := logsScenario()
	store.Fail(retrievaltest.OpList, "logs", -1, cferrors.NewError(cferrors.ErrCodeConnectionTimeout, "timeout"))
	recorder := &types.EventRecorder{}
	o := newTestOrchestrator(t, store, recorder)

	result := o.Run(context.Background(), types.RetrievalRequest{Location: "s3://bucket/logs", RetentionDays: 7, Tier: types.TierBulk})

	require.True(t, result.IsAborted())
	assert.True(t, cferrors.HasCode(result.Aborted, cferrors.ErrCodeBackendUnavailable))
	assert.Zero(t, result.Requested)
	assert.Zero(t, result.Processed())
	assert.Empty(t, result.Failed)
	assert.Equal(t, 3, store.Calls(retrievaltest.OpList))
	assert.Zero(t, store.Calls(retrievaltest.OpHead))

	assert.Len(t, recorder.OfType(types.EventJobAborted), 1)
	assert.Empty(t, recorder.OfType(types.EventJobCompleted))
	assert.Empty(t, recorder.OfType(types.EventProgress))
}

func TestOrchestrator_SecondPageFailureAbortsWithoutOutcomes(t *testing.T) {
	store := logsScenario()
	store.PageSize = 1
	store.FailPage("1", -1, cferrors.NewError(cferrors.ErrCodeNetworkError, "reset"))
	recorder := &types.EventRecorder{}
	o := newTestOrchestrator(t, store, recorder)

	result := o.Run(context.Background(), types.RetrievalRequest{Location: "s3://bucket/logs", RetentionDays: 7, Tier: types.TierBulk})

	require.True(t, result.IsAborted())
	assert.True(t, cferrors.HasCode(result.Aborted, cferrors.ErrCodeBackendUnavailable))
	assert.Zero(t, result.Requested)
	assert.Zero(t, result.Processed())
	assert.Zero(t, store.Calls(retrievaltest.OpHead))
	assert.Zero(t, store.Calls(retrievaltest.OpGet))
	assert.Empty(t, recorder.OfType(types.EventProgress))
	assert.Len(t, recorder.OfType(types.EventJobAborted), 1)
}

func TestOrchestrator_InvalidRequestAborts(t *testing.T) {
	o := newTestOrchestrator(t, retrievaltest.NewStore(), nil)

	tests := []struct {
		name string
		req  types.RetrievalRequest
		code cferrors.ErrorCode
	}{
		{"no bucket", types.RetrievalRequest{Location: "logs/only", RetentionDays: 1, Tier: types.TierBulk}, cferrors.ErrCodeInvalidLocation},
		{"bad tier", types.RetrievalRequest{Location: "s3://bucket", RetentionDays: 1}, cferrors.ErrCodeInvalidTier},
		{"negative days", types.RetrievalRequest{Location: "s3://bucket", RetentionDays: -1, Tier: types.TierBulk}, cferrors.ErrCodeInvalidRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := o.Run(context.Background(), tt.req)
			require.True(t, result.IsAborted())
			assert.True(t, cferrors.HasCode(result.Aborted, tt.code), "got %v", result.Aborted)
		})
	}
}

func TestOrchestrator_Reject(t *testing.T) {
	store := logsScenario()
	recorder := &types.EventRecorder{}
	o := newTestOrchestrator(t, store, recorder)

	req := types.RetrievalRequest{Location: "s3://bucket/logs", RetentionDays: 7}
	tierErr := cferrors.NewError(cferrors.ErrCodeInvalidTier, `unknown restore tier "Fast"`)

	result := o.Reject(req, tierErr)

	require.True(t, result.IsAborted())
	assert.True(t, cferrors.HasCode(result.Aborted, cferrors.ErrCodeInvalidTier))
	assert.Equal(t, req, result.Request)
	assert.Equal(t, "job-1", result.JobID)
	assert.Zero(t, result.Requested)
	assert.Zero(t, store.Calls(retrievaltest.OpList), "a rejected job never reaches the backend")

	events := recorder.Events()
	require.Len(t, events, 3)
	assert.Equal(t, types.EventJobStarted, events[0].Type)
	assert.Equal(t, types.EventError, events[1].Type)
	assert.Equal(t, types.EventJobAborted, events[2].Type)
}

func TestOrchestrator_ObjectFailureDoesNotStopJob(t *testing.T) {
	store := logsScenario()
	store.Fail(retrievaltest.OpHead, "logs/recent.log", -1, cferrors.NewError(cferrors.ErrCodeAccessDenied, "denied"))
	recorder := &types.EventRecorder{}
	o := newTestOrchestrator(t, store, recorder)

	result := o.Run(context.Background(), types.RetrievalRequest{Location: "s3://bucket/logs", RetentionDays: 7, Tier: types.TierBulk})

	require.False(t, result.IsAborted())
	assert.Equal(t, 1, result.Restored)
	assert.Equal(t, 1, result.Skipped)
	assert.Zero(t, result.Downloaded)
	require.Len(t, result.Failed, 1)
	assert.Equal(t, "logs/recent.log", result.Failed[0].Key)
	assert.True(t, cferrors.HasCode(result.Failed[0].Err, cferrors.ErrCodeBackendUnavailable))
	assert.True(t, cferrors.HasCode(result.Failed[0].Err, cferrors.ErrCodeAccessDenied))

	errs := recorder.OfType(types.EventError)
	require.Len(t, errs, 1)
	assert.Equal(t, "logs/recent.log", errs[0].Key)
}

func TestOrchestrator_OutcomesSumToRequested(t *testing.T) {
	store := retrievaltest.NewStore()
	store.PageSize = 3
	classes := []string{"STANDARD", "GLACIER", "STANDARD_IA", "DEEP_ARCHIVE"}
	for i := 0; i < 20; i++ {
		putObjects(store, "bucket", retrievaltest.Object{
			Key:          fmt.Sprintf("data/%02d.bin", i),
			Body:         []byte{byte(i)},
			LastModified: daysAgo(i),
			StorageClass: classes[i%len(classes)],
		})
	}
	store.Fail(retrievaltest.OpRestore, "data/05.bin", -1, cferrors.NewError(cferrors.ErrCodeInvalidObjectState, "busy"))
	store.Fail(retrievaltest.OpGet, "data/02.bin", -1, cferrors.NewError(cferrors.ErrCodeNetworkError, "reset"))

	o := newTestOrchestrator(t, store, nil)
	result := o.Run(context.Background(), types.RetrievalRequest{Location: "s3://bucket/data/", RetentionDays: 9, Tier: types.TierStandard})

	require.False(t, result.IsAborted())
	assert.Equal(t, 20, result.Requested)
	assert.Equal(t, result.Requested, result.Processed())
	assert.Equal(t, 10, result.Skipped)
	assert.Len(t, result.Failed, 2)
}

func TestOrchestrator_TwoPassListing(t *testing.T) {
	store := logsScenario()
	o := New(store, nil, Options{
		Destination:    t.TempDir(),
		TwoPassListing: true,
		Retry:          fastRetry(),
		Now:            func() time.Time { return testNow },
	})

	result := o.Run(context.Background(), types.RetrievalRequest{Location: "s3://bucket/logs", RetentionDays: 7, Tier: types.TierBulk})
	require.False(t, result.IsAborted())
	assert.Equal(t, 3, result.Requested)
	assert.Equal(t, 2, store.Calls(retrievaltest.OpList))
	assert.NotEmpty(t, result.JobID)
}

// growingStore adds an object once the first full listing has finished
type growingStore struct {
	*retrievaltest.Store
	listings int
}

func (g *growingStore) ListObjectsPage(ctx context.Context, container, prefix, token string) (types.ObjectPage, error) {
	if token == "" {
		g.listings++
		if g.listings == 2 {
			g.Put(container, retrievaltest.Object{Key: prefix + "/late.log", Body: []byte("late"), LastModified: testNow})
		}
	}
	return g.Store.ListObjectsPage(ctx, container, prefix, token)
}

func TestOrchestrator_TwoPassListingReportsChangedListing(t *testing.T) {
	var logs bytes.Buffer
	store := &growingStore{Store: logsScenario()}
	recorder := &types.EventRecorder{}
	o := New(store, recorder, Options{
		Destination:    t.TempDir(),
		TwoPassListing: true,
		Retry:          fastRetry(),
		Logger:         slog.New(slog.NewTextHandler(&logs, nil)),
		Now:            func() time.Time { return testNow },
	})

	result := o.Run(context.Background(), types.RetrievalRequest{Location: "s3://bucket/logs", RetentionDays: 7, Tier: types.TierBulk})

	require.False(t, result.IsAborted())
	assert.Equal(t, 4, result.Requested, "the second listing is the one processed")
	assert.Equal(t, result.Requested, result.Processed())
	assert.Contains(t, logs.String(), "Listing changed between passes")
	for _, e := range recorder.OfType(types.EventProgress) {
		assert.Equal(t, 4, e.Total)
	}
}

func TestOrchestrator_CanceledContext(t *testing.T) {
	o := newTestOrchestrator(t, logsScenario(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := o.Run(ctx, types.RetrievalRequest{Location: "s3://bucket/logs", RetentionDays: 7, Tier: types.TierBulk})
	require.True(t, result.IsAborted())
	assert.True(t, cferrors.HasCode(result.Aborted, cferrors.ErrCodeOperationCanceled))
}

func TestOrchestrator_CancelMidJobFailsRemainingObjects(t *testing.T) {
	store := logsScenario()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sink := types.EventSinkFunc(func(e types.Event) {
		if e.Type == types.EventProgress && e.Current == 1 {
			cancel()
		}
	})
	o := newTestOrchestrator(t, store, sink)

	result := o.Run(ctx, types.RetrievalRequest{Location: "s3://bucket/logs", RetentionDays: 30, Tier: types.TierBulk})
	require.False(t, result.IsAborted())
	assert.Equal(t, 3, result.Processed())
	require.Len(t, result.Failed, 2)
	for _, f := range result.Failed {
		assert.True(t, cferrors.HasCode(f.Err, cferrors.ErrCodeOperationCanceled))
	}
}

func TestOrchestrator_RunBatchContinuesAfterAbort(t *testing.T) {
	store := logsScenario()
	o := newTestOrchestrator(t, store, nil)

	results := o.RunBatch(context.Background(), []types.RetrievalRequest{
		{Location: "not-a-location", RetentionDays: 7, Tier: types.TierBulk},
		{Location: "s3://missing/logs", RetentionDays: 7, Tier: types.TierBulk},
		{Location: "s3://bucket/logs", RetentionDays: 7, Tier: types.TierBulk},
	})

	require.Len(t, results, 3)
	assert.True(t, results[0].IsAborted())
	assert.True(t, results[1].IsAborted())
	assert.False(t, results[2].IsAborted())
	assert.Equal(t, 3, results[2].Requested)
	assert.Equal(t, []string{"job-1", "job-2", "job-3"},
		[]string{results[0].JobID, results[1].JobID, results[2].JobID})
}

func TestOrchestrator_FolderMarkersAreSkipped(t *testing.T) {
	store := logsScenario()
	putObjects(store, "bucket",
		retrievaltest.Object{Key: "logs/", LastModified: testNow, StorageClass: "STANDARD"},
		retrievaltest.Object{Key: "logs/archive/", LastModified: testNow, StorageClass: "GLACIER"},
	)
	recorder := &types.EventRecorder{}
	o := newTestOrchestrator(t, store, recorder)

	result := o.Run(context.Background(), types.RetrievalRequest{Location: "s3://bucket/logs", RetentionDays: 7, Tier: types.TierBulk})

	require.False(t, result.IsAborted())
	assert.Equal(t, 5, result.Requested)
	assert.Equal(t, 3, result.Skipped)
	assert.Equal(t, 1, result.Downloaded)
	assert.Equal(t, 1, result.Restored)
	assert.Empty(t, result.Failed)
	assert.Len(t, store.Restores(), 1, "a folder marker in an archive class is not restored")

	var details []string
	for _, e := range recorder.OfType(types.EventSkipped) {
		details = append(details, e.Detail)
	}
	assert.Contains(t, details, "folder marker")
	assert.Contains(t, details, "older than 7 days")

	inspections, err := o.Inspect(context.Background(), types.RetrievalRequest{Location: "s3://bucket/logs", RetentionDays: 7, Tier: types.TierBulk})
	require.NoError(t, err)
	for _, in := range inspections {
		if IsFolderMarker(in.Record.Key) {
			assert.False(t, in.Qualifies, in.Record.Key)
		}
	}
}

func TestOrchestrator_Inspect(t *testing.T) {
	store := logsScenario()
	o := newTestOrchestrator(t, store, nil)

	inspections, err := o.Inspect(context.Background(), types.RetrievalRequest{Location: "s3://bucket/logs", RetentionDays: 7, Tier: types.TierBulk})
	require.NoError(t, err)
	require.Len(t, inspections, 3)

	byKey := make(map[string]Inspection)
	for _, in := range inspections {
		byKey[in.Record.Key] = in
	}
	assert.False(t, byKey["logs/old.log"].Qualifies)
	assert.True(t, byKey["logs/recent.log"].Qualifies)
	assert.Equal(t, types.StorageClassStandard, byKey["logs/recent.log"].Class)
	assert.Equal(t, types.StorageClassArchived, byKey["logs/today.log"].Class)

	assert.Empty(t, store.Restores())
	assert.Zero(t, store.Calls(retrievaltest.OpGet))
}
