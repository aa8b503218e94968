package ui

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/scttfrdmn/coldfetch/pkg/errors"
	"github.com/scttfrdmn/coldfetch/pkg/types"
)

// Outcome markers
const (
	markStart    = "▶"
	markRestore  = "⟳"
	markDownload = "↓"
	markSkip     = "·"
	markFail     = "✗"
	markDone     = "✓"
)

// Renderer prints the event stream of one or more jobs as human-readable
// lines. It implements types.EventSink and serializes writes, so jobs run
// concurrently do not interleave within a line.
type Renderer struct {
	mu      sync.Mutex
	w       io.Writer
	styles  Styles
	verbose bool
}

// NewRenderer creates a renderer writing to w. Skipped objects and progress
// counters are only printed when verbose is set.
func NewRenderer(w io.Writer, styles Styles, verbose bool) *Renderer {
	return &Renderer{w: w, styles: styles, verbose: verbose}
}

// Emit implements types.EventSink
func (r *Renderer) Emit(e types.Event) {
	line := r.format(e)
	if line == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	_, _ = fmt.Fprintln(r.w, line)
}

func (r *Renderer) format(e types.Event) string {
	s := r.styles
	job := s.Muted.Render("[" + shortID(e.JobID) + "]")

	switch e.Type {
	case types.EventJobStarted:
		return fmt.Sprintf("%s %s %s", job, s.Header.Render(markStart), s.Key.Render(e.Detail))
	case types.EventRestored:
		return fmt.Sprintf("%s %s %s %s", job, s.Restored.Render(markRestore+" restore "), s.Key.Render(e.Key), s.Muted.Render(e.Detail))
	case types.EventDownloaded:
		return fmt.Sprintf("%s %s %s %s %s", job, s.Downloaded.Render(markDownload+" download"), s.Key.Render(e.Key), s.Muted.Render("->"), s.Path.Render(e.Detail))
	case types.EventSkipped:
		if !r.verbose {
			return ""
		}
		return fmt.Sprintf("%s %s %s %s", job, s.Skipped.Render(markSkip+" skip    "), s.Key.Render(e.Key), s.Muted.Render(e.Detail))
	case types.EventProgress:
		if !r.verbose {
			return ""
		}
		return fmt.Sprintf("%s %s", job, s.Muted.Render(fmt.Sprintf("%d/%d", e.Current, e.Total)))
	case types.EventError:
		target := e.Key
		if target == "" {
			target = e.Detail
		}
		return fmt.Sprintf("%s %s %s %s", job, s.Failed.Render(markFail+" "+string(errorCode(e.Err))), s.Key.Render(target), s.Muted.Render(errorMessage(e.Err)))
	case types.EventJobCompleted:
		return fmt.Sprintf("%s %s %s", job, s.Header.Render(markDone), Summary(e.Result))
	case types.EventJobAborted:
		return fmt.Sprintf("%s %s %s", job, s.Failed.Render(markFail+" aborted"), s.Key.Render(e.Detail))
	}
	return ""
}

// Summary renders the counters of a finished job on one line
func Summary(r *types.JobResult) string {
	if r == nil {
		return ""
	}
	if r.IsAborted() {
		return fmt.Sprintf("aborted after %s: %v", r.Duration().Round(time.Millisecond), r.Aborted)
	}
	return fmt.Sprintf("requested=%d restored=%d downloaded=%d skipped=%d failed=%d in %s",
		r.Requested, r.Restored, r.Downloaded, r.Skipped, len(r.Failed), r.Duration().Round(time.Millisecond))
}

// BatchSummary renders one line covering every job of a batch
func BatchSummary(results []types.JobResult) string {
	var clean, partial, aborted, restored, downloaded, skipped, failed int
	for _, r := range results {
		switch {
		case r.IsAborted():
			aborted++
		case len(r.Failed) > 0:
			partial++
		default:
			clean++
		}
		restored += r.Restored
		downloaded += r.Downloaded
		skipped += r.Skipped
		failed += len(r.Failed)
	}

	if aborted+partial == 0 && len(results) > 0 {
		return fmt.Sprintf("All %d jobs completed: %d restores initiated, %d objects downloaded, %d skipped.",
			len(results), restored, downloaded, skipped)
	}
	return fmt.Sprintf("%d jobs: %d completed, %d with failed objects, %d aborted (%d restored, %d downloaded, %d skipped, %d failed).",
		len(results), clean, partial, aborted, restored, downloaded, skipped, failed)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func errorCode(err error) errors.ErrorCode {
	if err == nil {
		return errors.ErrCodeUnknownError
	}
	return errors.CodeOf(err)
}

func errorMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
