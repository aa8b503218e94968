package retrieval

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scttfrdmn/coldfetch/internal/retrieval/retrievaltest"
	"github.com/scttfrdmn/coldfetch/pkg/types"
)

func TestDispatchConcurrent_PreservesOrder(t *testing.T) {
	store := retrievaltest.NewStore()
	var reqs []types.RetrievalRequest
	for i := 0; i < 6; i++ {
		container := fmt.Sprintf("bucket-%d", i)
		for j := 0; j <= i; j++ {
			store.Put(container, retrievaltest.Object{Key: fmt.Sprintf("k%d", j), Body: []byte("x"), LastModified: testNow})
		}
		reqs = append(reqs, types.RetrievalRequest{Location: "s3://" + container, RetentionDays: 1, Tier: types.TierBulk})
	}
	reqs = append(reqs, types.RetrievalRequest{Location: "s3://absent", RetentionDays: 1, Tier: types.TierBulk})

	o := newTestOrchestrator(t, store, &types.EventRecorder{})
	results := DispatchConcurrent(context.Background(), o, reqs, 4)

	require.Len(t, results, len(reqs))
	for i := 0; i < 6; i++ {
		assert.Equal(t, fmt.Sprintf("bucket-%d", i), results[i].Location.Container)
		assert.Equal(t, i+1, results[i].Requested)
		assert.False(t, results[i].IsAborted())
	}
	assert.True(t, results[6].IsAborted())
}

func TestDispatchConcurrent_SingleWorkerAndEmpty(t *testing.T) {
	o := newTestOrchestrator(t, logsScenario(), nil)

	assert.Empty(t, DispatchConcurrent(context.Background(), o, nil, 4))

	results := DispatchConcurrent(context.Background(), o, []types.RetrievalRequest{
		{Location: "s3://bucket/logs", RetentionDays: 7, Tier: types.TierBulk},
	}, 0)
	require.Len(t, results, 1)
	assert.Equal(t, 3, results[0].Requested)
}
