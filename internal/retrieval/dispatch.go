package retrieval

import (
	"context"

	"github.com/sourcegraph/conc/pool"

	"github.com/scttfrdmn/coldfetch/pkg/types"
)

// DispatchConcurrent runs the requests on up to workers goroutines. Results
// are returned in request order regardless of completion order, and an
// aborted request never affects its siblings.
func DispatchConcurrent(ctx context.Context, o *Orchestrator, reqs []types.RetrievalRequest, workers int) []types.JobResult {
	results := make([]types.JobResult, len(reqs))
	if len(reqs) == 0 {
		return results
	}
	if workers <= 1 {
		return o.RunBatch(ctx, reqs)
	}

	p := pool.New().WithMaxGoroutines(min(workers, len(reqs)))
	for i, req := range reqs {
		p.Go(func() {
			results[i] = o.Run(ctx, req)
		})
	}
	p.Wait()
	return results
}
