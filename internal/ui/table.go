package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/scttfrdmn/coldfetch/internal/retrieval"
	"github.com/scttfrdmn/coldfetch/internal/storage/s3"
	"github.com/scttfrdmn/coldfetch/pkg/types"
	"github.com/scttfrdmn/coldfetch/pkg/utils"
)

// maxColumnWidth caps a column so long keys do not blow up the table
const maxColumnWidth = 48

type cell struct {
	text  string
	style lipgloss.Style
}

// table is a box-drawn table whose column widths fit the widest cell
type table struct {
	styles  Styles
	headers []string
	rows    [][]cell
}

func (t *table) add(row ...cell) {
	t.rows = append(t.rows, row)
}

func (t *table) widths() []int {
	widths := make([]int, len(t.headers))
	for i, h := range t.headers {
		widths[i] = runewidth.StringWidth(h)
	}
	for _, row := range t.rows {
		for i, c := range row {
			widths[i] = max(widths[i], runewidth.StringWidth(c.text))
		}
	}
	for i := range widths {
		widths[i] = min(widths[i], maxColumnWidth)
	}
	return widths
}

func (t *table) border(sb *strings.Builder, widths []int, left, mid, right string) {
	sb.WriteString(t.styles.Border.Render(left))
	for i, w := range widths {
		sb.WriteString(t.styles.Border.Render(strings.Repeat(horizontal, w+2)))
		if i < len(widths)-1 {
			sb.WriteString(t.styles.Border.Render(mid))
		}
	}
	sb.WriteString(t.styles.Border.Render(right))
	sb.WriteString("\n")
}

func (t *table) render(w io.Writer) error {
	widths := t.widths()
	var sb strings.Builder

	t.border(&sb, widths, topLeft, topT, topRight)

	// Header row
	sb.WriteString(t.styles.Border.Render(vertical))
	for i, h := range t.headers {
		sb.WriteString(t.styles.Header.Render(" " + padRight(h, widths[i]) + " "))
		sb.WriteString(t.styles.Border.Render(vertical))
	}
	sb.WriteString("\n")

	t.border(&sb, widths, leftT, cross, rightT)

	// Data rows
	for _, row := range t.rows {
		sb.WriteString(t.styles.Border.Render(vertical))
		for i, c := range row {
			sb.WriteString(c.style.Render(" " + padRight(c.text, widths[i]) + " "))
			sb.WriteString(t.styles.Border.Render(vertical))
		}
		sb.WriteString("\n")
	}

	t.border(&sb, widths, bottomLeft, bottomT, bottomRight)

	_, err := io.WriteString(w, sb.String())
	return err
}

// PrintJobTable writes one row per job with its outcome counters
func PrintJobTable(w io.Writer, styles Styles, results []types.JobResult) error {
	t := &table{
		styles:  styles,
		headers: []string{"Location", "Requested", "Restored", "Downloaded", "Skipped", "Failed", "Status"},
	}

	for _, r := range results {
		location := r.Request.Location
		if r.Location.Container != "" {
			location = r.Location.String()
		}

		status := cell{"ok", styles.Downloaded}
		switch {
		case r.IsAborted():
			status = cell{"aborted: " + string(errorCode(r.Aborted)), styles.Failed}
		case len(r.Failed) > 0:
			status = cell{"partial", styles.Restored}
		}

		t.add(
			cell{location, styles.Key},
			cell{fmt.Sprint(r.Requested), styles.Path},
			cell{fmt.Sprint(r.Restored), styles.Restored},
			cell{fmt.Sprint(r.Downloaded), styles.Downloaded},
			cell{fmt.Sprint(r.Skipped), styles.Skipped},
			cell{fmt.Sprint(len(r.Failed)), failedStyle(styles, len(r.Failed))},
			status,
		)
	}
	return t.render(w)
}

// PrintInspectionTable writes the dry-run plan for one request: what would
// happen to each object and, for archived objects, how long a restore at
// tier usually takes.
func PrintInspectionTable(w io.Writer, styles Styles, inspections []retrieval.Inspection, tier types.TierSpeed) error {
	t := &table{
		styles:  styles,
		headers: []string{"Key", "Size", "Last Modified", "Class", "Action", "Restore ETA"},
	}

	for _, in := range inspections {
		class := in.Record.StorageClassHint
		action := cell{"download", styles.Downloaded}
		eta := ""

		switch {
		case !in.Qualifies:
			action = cell{"skip", styles.Skipped}
		case in.Err != nil:
			action = cell{"error: " + string(errorCode(in.Err)), styles.Failed}
		default:
			class = s3.NormalizeStorageClass(in.Metadata.StorageClass)
			if in.Class == types.StorageClassArchived {
				action = cell{"restore", styles.Restored}
				eta = s3.EstimatedRestoreTime(class, tier)
				if in.Metadata.RestoreStatus != "" {
					eta = in.Metadata.RestoreStatus
				}
			}
		}

		t.add(
			cell{in.Record.Key, styles.Key},
			cell{utils.FormatBytes(in.Record.Size), styles.Path},
			cell{in.Record.LastModified.UTC().Format("2006-01-02 15:04"), styles.Path},
			cell{class, styles.Muted},
			action,
			cell{eta, styles.Muted},
		)
	}
	return t.render(w)
}

func failedStyle(styles Styles, failed int) lipgloss.Style {
	if failed > 0 {
		return styles.Failed
	}
	return styles.Path
}
