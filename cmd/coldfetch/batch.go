package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/scttfrdmn/coldfetch/internal/manifest"
	"github.com/scttfrdmn/coldfetch/internal/retrieval"
	"github.com/scttfrdmn/coldfetch/internal/ui"
	"github.com/scttfrdmn/coldfetch/pkg/types"
)

func (a *app) batchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch <manifest.csv|manifest.yaml>",
		Short: "Retrieve every location listed in a manifest",
		Long: `Run one retrieval job per manifest row.

CSV manifests need the header columns "S3 URL" and "Number of days" and may
carry a "Tier" column. YAML manifests are a list of {url, days, tier}
entries. Rows without a tier use --tier or the configured default tier.

A row with an unknown tier or a bad number of days, or whose location cannot
be listed, is reported as aborted; the remaining rows still run.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, cleanup, err := a.openSession(cmd.Context())
			if err != nil {
				return err
			}
			defer cleanup()

			tier, err := a.cfg.DefaultTierSpeed()
			if err != nil {
				return err
			}
			rows, err := manifest.Load(args[0], tier)
			if err != nil {
				return err
			}
			if len(rows) == 0 {
				fmt.Fprintln(a.out, "Manifest has no rows; nothing to do.")
				return nil
			}

			reqs := manifest.Requests(rows)
			a.logger.Info("Starting batch",
				"manifest", args[0],
				"jobs", len(reqs),
				"rejected", len(rows)-len(reqs),
				"parallel", a.cfg.Retrieval.ParallelJobs)

			results := runRows(cmd.Context(), sess.orch, rows, a.cfg.Retrieval.ParallelJobs)

			fmt.Fprintln(a.out)
			if err := ui.PrintJobTable(a.out, sess.styles, results); err != nil {
				return err
			}
			fmt.Fprintln(a.out, ui.BatchSummary(results))
			return incomplete(results)
		},
	}

	cmd.Flags().Int("parallel", 0, "number of jobs run at once")
	_ = a.v.BindPFlag(keyParallelJobs, cmd.Flags().Lookup("parallel"))
	return cmd
}

// runRows runs the clean rows concurrently and reports the rejected ones as
// aborted jobs. Results follow manifest order.
func runRows(ctx context.Context, orch *retrieval.Orchestrator, rows []manifest.Row, workers int) []types.JobResult {
	results := make([]types.JobResult, len(rows))
	var pending []int
	for i, row := range rows {
		if row.Err != nil {
			results[i] = orch.Reject(row.Request, row.Err)
			continue
		}
		pending = append(pending, i)
	}

	done := retrieval.DispatchConcurrent(ctx, orch, manifest.Requests(rows), workers)
	for j, i := range pending {
		results[i] = done[j]
	}
	return results
}

// incompleteError reports jobs that aborted or left objects unprocessed
type incompleteError struct {
	total   int
	aborted int
	partial int
}

func (e *incompleteError) Error() string {
	return fmt.Sprintf("%d of %d jobs incomplete (%d aborted, %d with failed objects)",
		e.aborted+e.partial, e.total, e.aborted, e.partial)
}

// incomplete returns an error when any job did not finish cleanly, so the
// process exits non-zero.
func incomplete(results []types.JobResult) error {
	e := &incompleteError{total: len(results)}
	for _, r := range results {
		switch {
		case r.IsAborted():
			e.aborted++
		case len(r.Failed) > 0:
			e.partial++
		}
	}
	if e.aborted+e.partial == 0 {
		return nil
	}
	return e
}
