package job

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/fieldserve/fieldserve/internal/importer"
	_ "github.com/fieldserve/fieldserve/internal/importer/kinds"
	"github.com/fieldserve/fieldserve/internal/store"
)

// testConfig keeps retries fast and retention short for tests.
func testConfig() Config {
	return Config{
		Workers:       1,
		BatchSize:     100,
		RetryAttempts: 2,
		RetryBackoff:  time.Millisecond,
		JobTimeout:    time.Minute,
		Retention:     time.Minute,
	}.withDefaults()
}

// runJob drives one job through a fresh runner and returns every snapshot
// published for it, in order.
func runJob(t *testing.T, cfg Config, mem *store.MemoryStore, jb *Job) []Snapshot {
	t.Helper()

	pub := NewPublisher(cfg.Retention)
	r := newRunner(cfg, mem, pub)

	pub.Publish(Snapshot{JobID: jb.ID, Timestamp: time.Now(), Status: Status{State: StateQueued}})
	ch, err := pub.Subscribe(jb.ID)
	if err != nil {
		t.Fatalf("Subscribe() error = %v", err)
	}

	r.Run(context.Background(), jb)

	var snaps []Snapshot
	for s := range ch {
		snaps = append(snaps, s)
	}
	if len(snaps) == 0 || !snaps[len(snaps)-1].Status.Terminal() {
		t.Fatalf("job did not reach a terminal state: %+v", snaps)
	}
	return snaps
}

func customerJob(id string, rows int) *Job {
	var b strings.Builder
	b.WriteString("name;city;postalCode\n")
	for i := 0; i < rows; i++ {
		fmt.Fprintf(&b, "Customer %d;Berlin;%05d\n", i, i)
	}
	return &Job{
		ID:          id,
		Kind:        importer.KindCustomer,
		Filename:    "customers.csv",
		Payload:     []byte(b.String()),
		SubmittedAt: time.Now(),
	}
}

func terminal(snaps []Snapshot) Status {
	return snaps[len(snaps)-1].Status
}

func TestRunImport_Completes(t *testing.T) {
	mem := store.NewMemoryStore()
	snaps := runJob(t, testConfig(), mem, customerJob("j1", 3))

	final := terminal(snaps)
	if final.State != StateCompleted {
		t.Fatalf("state = %s, want completed (error: %s)", final.State, final.Error)
	}
	report := final.Report
	if report == nil {
		t.Fatal("completed snapshot must carry the report")
	}
	if report.TotalRows != 3 || report.ImportedCount != 3 || report.UpdatedCount != 0 || report.SkippedCount != 0 {
		t.Errorf("report = %+v, want 3 imported", report)
	}
	if got := mem.Count(importer.KindCustomer); got != 3 {
		t.Errorf("stored customers = %d, want 3", got)
	}
}

func TestRunImport_SkipsInvalidRows(t *testing.T) {
	mem := store.NewMemoryStore()
	jb := &Job{
		ID:       "j1",
		Kind:     importer.KindCustomer,
		Filename: "customers.csv",
		Payload:  []byte("name;city\nAcme;Berlin\n;Hamburg\nBolt;Munich\n"),
	}

	final := terminal(runJob(t, testConfig(), mem, jb))
	if final.State != StateCompleted {
		t.Fatalf("state = %s, want completed (row problems never fail the job)", final.State)
	}

	report := final.Report
	if report.ImportedCount != 2 || report.SkippedCount != 1 {
		t.Errorf("report = %+v, want imported 2, skipped 1", report)
	}
	if len(report.Issues) != 1 {
		t.Fatalf("issues = %v, want exactly 1", report.Issues)
	}
	issue := report.Issues[0]
	if issue.RowNumber != 2 || issue.Field != "name" || issue.Level != importer.LevelError {
		t.Errorf("issue = %+v, want error on field name, row 2", issue)
	}
}

func TestRunImport_Idempotent(t *testing.T) {
	mem := store.NewMemoryStore()
	cfg := testConfig()

	first := terminal(runJob(t, cfg, mem, customerJob("j1", 5))).Report
	second := terminal(runJob(t, cfg, mem, customerJob("j2", 5))).Report

	if first.ImportedCount != 5 || first.UpdatedCount != 0 {
		t.Fatalf("first run report = %+v, want 5 imported", first)
	}
	if second.ImportedCount != 0 {
		t.Errorf("second run imported = %d, want 0", second.ImportedCount)
	}
	if second.UpdatedCount != first.ImportedCount {
		t.Errorf("second run updated = %d, want %d", second.UpdatedCount, first.ImportedCount)
	}
	if got := mem.Count(importer.KindCustomer); got != 5 {
		t.Errorf("stored customers = %d, want 5 (no duplicates)", got)
	}
}

func TestRunImport_BatchProgressSnapshots(t *testing.T) {
	mem := store.NewMemoryStore()
	snaps := runJob(t, testConfig(), mem, customerJob("j1", 250))

	var importing []Status
	for _, s := range snaps {
		if s.Status.State == StateImporting {
			importing = append(importing, s.Status)
		}
	}

	// 250 rows at batch size 100: one snapshot per batch, no more.
	if len(importing) != 3 {
		t.Fatalf("importing snapshots = %d, want 3", len(importing))
	}
	wantProcessed := []int{100, 200, 250}
	for i, st := range importing {
		if st.Processed != wantProcessed[i] {
			t.Errorf("snapshot %d processed = %d, want %d", i, st.Processed, wantProcessed[i])
		}
		if st.Total != 250 {
			t.Errorf("snapshot %d total = %d, want 250", i, st.Total)
		}
		if st.Succeeded+st.Failed != st.Processed {
			t.Errorf("snapshot %d: succeeded %d + failed %d != processed %d",
				i, st.Succeeded, st.Failed, st.Processed)
		}
	}

	// Progress only moves forward.
	for i := 1; i < len(importing); i++ {
		if importing[i].Processed < importing[i-1].Processed {
			t.Errorf("processed went backwards: %d -> %d", importing[i-1].Processed, importing[i].Processed)
		}
	}
}

func TestRunImport_HeaderOnlyFails(t *testing.T) {
	mem := store.NewMemoryStore()
	jb := &Job{ID: "j1", Kind: importer.KindCustomer, Filename: "empty.csv", Payload: []byte("name;city\n")}

	final := terminal(runJob(t, testConfig(), mem, jb))
	if final.State != StateFailed {
		t.Fatalf("state = %s, want failed", final.State)
	}
	if !strings.Contains(final.Error, "header") {
		t.Errorf("error = %q, want mention of the header-only condition", final.Error)
	}
}

func TestRunImport_UnknownKindFails(t *testing.T) {
	mem := store.NewMemoryStore()
	jb := &Job{ID: "j1", Kind: importer.Kind("gadget"), Filename: "g.csv", Payload: []byte("a;b\n1;2\n")}

	final := terminal(runJob(t, testConfig(), mem, jb))
	if final.State != StateFailed {
		t.Fatalf("state = %s, want failed", final.State)
	}
}

func TestRunImport_RetriesTransientBatchError(t *testing.T) {
	mem := store.NewMemoryStore()
	mem.FailNextBatches(1)

	final := terminal(runJob(t, testConfig(), mem, customerJob("j1", 10)))
	if final.State != StateCompleted {
		t.Fatalf("state = %s, want completed after retry", final.State)
	}
	if final.Report.ImportedCount != 10 {
		t.Errorf("imported = %d, want 10", final.Report.ImportedCount)
	}
}

func TestRunImport_DegradesToPerRowWrites(t *testing.T) {
	mem := store.NewMemoryStore()
	// Exhaust batch retries so the worker falls back to per-row writes.
	mem.FailNextBatches(3)

	final := terminal(runJob(t, testConfig(), mem, customerJob("j1", 4)))
	if final.State != StateCompleted {
		t.Fatalf("state = %s, want completed", final.State)
	}
	if final.Report.ImportedCount != 4 {
		t.Errorf("imported = %d, want 4 (per-row fallback should succeed)", final.Report.ImportedCount)
	}
}

func TestRunImport_RowWriteFailureBecomesIssue(t *testing.T) {
	mem := store.NewMemoryStore()
	mem.SetRowError(func(rec importer.Record) string {
		if c, ok := rec.(importer.CustomerRecord); ok && c.Name == "Customer 2" {
			return "constraint violation"
		}
		return ""
	})

	final := terminal(runJob(t, testConfig(), mem, customerJob("j1", 5)))
	if final.State != StateCompleted {
		t.Fatalf("state = %s, want completed (a failed row must not fail the job)", final.State)
	}

	report := final.Report
	if report.ImportedCount != 4 || report.SkippedCount != 1 {
		t.Errorf("report = %+v, want imported 4, skipped 1", report)
	}

	found := false
	for _, issue := range report.Issues {
		if issue.RowNumber == 3 && strings.Contains(issue.Message, "write failed") {
			found = true
		}
	}
	if !found {
		t.Errorf("issues = %v, want a write-failed error on row 3", report.Issues)
	}
}
