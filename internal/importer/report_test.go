package importer

import (
	"strings"
	"testing"
	"time"
)

func TestBuildReport_Reconciliation(t *testing.T) {
	tally := Tally{TotalRows: 10, Imported: 6, Updated: 2}
	report := BuildReport("data.csv", time.Now(), tally)

	if report.SkippedCount != 2 {
		t.Errorf("skipped = %d, want 2 (total - imported - updated)", report.SkippedCount)
	}
	if got := report.ImportedCount + report.UpdatedCount + report.SkippedCount; got != report.TotalRows {
		t.Errorf("counts sum to %d, want %d", got, report.TotalRows)
	}
}

func TestBuildReport_SkippedNeverNegative(t *testing.T) {
	// Inconsistent tallies must not produce a negative skipped count.
	tally := Tally{TotalRows: 3, Imported: 3, Updated: 1}
	report := BuildReport("data.csv", time.Now(), tally)

	if report.SkippedCount != 0 {
		t.Errorf("skipped = %d, want 0", report.SkippedCount)
	}
}

func TestBuildReport_IssuesSortedByRow(t *testing.T) {
	tally := Tally{TotalRows: 5}
	tally.AddIssues(
		Issue{RowNumber: 4, Level: LevelError, Message: "late"},
		Issue{RowNumber: 1, Level: LevelWarning, Message: "early"},
		Issue{RowNumber: 4, Level: LevelWarning, Message: "late second"},
	)

	report := BuildReport("data.csv", time.Now(), tally)

	if len(report.Issues) != 3 {
		t.Fatalf("issues = %d, want 3", len(report.Issues))
	}
	if report.Issues[0].RowNumber != 1 {
		t.Errorf("first issue row = %d, want 1", report.Issues[0].RowNumber)
	}
	// Stable sort keeps same-row issues in insertion order.
	if report.Issues[1].Message != "late" || report.Issues[2].Message != "late second" {
		t.Errorf("same-row issue order not preserved: %v", report.Issues)
	}
}

func TestRenderText(t *testing.T) {
	tally := Tally{TotalRows: 4, Imported: 2, Updated: 1}
	tally.AddIssues(
		Issue{RowNumber: 3, Level: LevelError, Field: "name", Message: "required field \"name\" is empty"},
		Issue{RowNumber: 3, Level: LevelWarning, Message: "something else"},
	)

	text := BuildReport("customers.csv", time.Now(), tally).RenderText()

	for _, want := range []string{
		"Import report: customers.csv",
		"total rows:  4",
		"imported:    2",
		"updated:     1",
		"skipped:     1",
		"row 3:",
		"[error] name:",
		"[warning]",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("RenderText() missing %q:\n%s", want, text)
		}
	}
	// The row header appears once even with two issues on the row.
	if strings.Count(text, "row 3:") != 1 {
		t.Errorf("row header should appear once:\n%s", text)
	}
}

func TestRenderText_NoIssues(t *testing.T) {
	text := BuildReport("ok.csv", time.Now(), Tally{TotalRows: 1, Imported: 1}).RenderText()
	if !strings.Contains(text, "No issues.") {
		t.Errorf("RenderText() should state that there are no issues:\n%s", text)
	}
}
