package importer

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Report is the terminal summary of one import job. Built exactly once when
// the job completes; immutable afterwards.
type Report struct {
	Filename       string    `json:"filename"`
	ImportedAt     time.Time `json:"importedAt"`
	DurationMillis int64     `json:"durationMillis"`
	TotalRows      int       `json:"totalRows"`
	ImportedCount  int       `json:"importedCount"`
	UpdatedCount   int       `json:"updatedCount"`
	SkippedCount   int       `json:"skippedCount"`
	Issues         []Issue   `json:"issues"`
}

// Tally accumulates counts while a job runs. The worker owns exactly one
// Tally per job and feeds it into BuildReport at the end.
type Tally struct {
	TotalRows int
	Imported  int
	Updated   int
	Issues    []Issue
}

// AddIssues appends issues to the tally.
func (t *Tally) AddIssues(issues ...Issue) {
	t.Issues = append(t.Issues, issues...)
}

// BuildReport assembles the final report from a tally.
//
// The skipped count is recomputed as total - imported - updated rather than
// summed from the mapper and the write layer separately, so a row that is
// both mapper-skipped and never attempted cannot be counted twice.
func BuildReport(filename string, startedAt time.Time, tally Tally) Report {
	skipped := tally.TotalRows - tally.Imported - tally.Updated
	if skipped < 0 {
		skipped = 0
	}

	issues := make([]Issue, len(tally.Issues))
	copy(issues, tally.Issues)
	sort.SliceStable(issues, func(i, j int) bool {
		return issues[i].RowNumber < issues[j].RowNumber
	})

	now := time.Now()
	return Report{
		Filename:       filename,
		ImportedAt:     now,
		DurationMillis: now.Sub(startedAt).Milliseconds(),
		TotalRows:      tally.TotalRows,
		ImportedCount:  tally.Imported,
		UpdatedCount:   tally.Updated,
		SkippedCount:   skipped,
		Issues:         issues,
	}
}

// RenderText renders the report as plain text suitable for clipboard copy
// or file download. Section order is fixed: header, counts, issues grouped
// by row.
func (r Report) RenderText() string {
	var b strings.Builder

	fmt.Fprintf(&b, "Import report: %s\n", r.Filename)
	fmt.Fprintf(&b, "Imported at:   %s\n", r.ImportedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "Duration:      %dms\n", r.DurationMillis)
	b.WriteString("\n")

	fmt.Fprintf(&b, "  total rows:  %d\n", r.TotalRows)
	fmt.Fprintf(&b, "  imported:    %d\n", r.ImportedCount)
	fmt.Fprintf(&b, "  updated:     %d\n", r.UpdatedCount)
	fmt.Fprintf(&b, "  skipped:     %d\n", r.SkippedCount)
	b.WriteString("\n")

	if len(r.Issues) == 0 {
		b.WriteString("No issues.\n")
		return b.String()
	}

	b.WriteString("Issues:\n")
	lastRow := -1
	for _, issue := range r.Issues {
		if issue.RowNumber != lastRow {
			fmt.Fprintf(&b, "  row %d:\n", issue.RowNumber)
			lastRow = issue.RowNumber
		}
		if issue.Field != "" {
			fmt.Fprintf(&b, "    [%s] %s: %s\n", issue.Level, issue.Field, issue.Message)
		} else {
			fmt.Fprintf(&b, "    [%s] %s\n", issue.Level, issue.Message)
		}
	}

	return b.String()
}
