package job

import (
	"context"
	"fmt"
	"time"

	"github.com/fieldserve/fieldserve/internal/csvtext"
	"github.com/fieldserve/fieldserve/internal/importer"
	"github.com/fieldserve/fieldserve/internal/logging"
	"github.com/fieldserve/fieldserve/internal/store"
)

// runner executes one job at a time from parse to terminal snapshot.
type runner struct {
	cfg   Config
	store store.Store
	pub   *Publisher
}

func newRunner(cfg Config, st store.Store, pub *Publisher) *runner {
	return &runner{cfg: cfg, store: st, pub: pub}
}

// Run drives jb to a terminal state. A terminal snapshot is always
// published, whatever happens in between.
func (r *runner) Run(ctx context.Context, jb *Job) {
	logger := logging.WithFields(ctx, "job_id", jb.ID, "kind", string(jb.Kind), "file", jb.Filename)
	logger.Info("job started")

	if jb.Kind == importer.KindArchive {
		r.runArchive(ctx, jb)
		return
	}

	report, err := r.runImport(ctx, jb)
	if err != nil {
		logger.Warn("job failed", "error", err)
		return
	}
	logger.Info("job completed",
		"total", report.TotalRows,
		"imported", report.ImportedCount,
		"updated", report.UpdatedCount,
		"skipped", report.SkippedCount,
		"issues", len(report.Issues),
	)
}

// runImport processes a single CSV payload. On success the Completed
// snapshot (with embedded report) has been published and the report is
// returned; on a job-level failure the Failed snapshot has been published
// and the error is returned.
func (r *runner) runImport(ctx context.Context, jb *Job) (importer.Report, error) {
	start := time.Now()

	r.publish(jb.ID, Status{State: StateParsing, Progress: 0})

	table, err := csvtext.Parse(csvtext.Sanitize(string(jb.Payload)))
	if err != nil {
		return importer.Report{}, r.fail(jb.ID, err)
	}

	r.publish(jb.ID, Status{State: StateParsing, Progress: 100})

	def, ok := importer.Get(jb.Kind)
	if !ok {
		return importer.Report{}, r.fail(jb.ID, fmt.Errorf("%w: %s", ErrUnsupportedKind, jb.Kind))
	}

	headers := importer.NewHeaderIndex(table.Headers)
	tally := importer.Tally{TotalRows: len(table.Rows)}

	var processed, succeeded, failed int

	for batchStart := 0; batchStart < len(table.Rows); batchStart += r.cfg.BatchSize {
		batchEnd := batchStart + r.cfg.BatchSize
		if batchEnd > len(table.Rows) {
			batchEnd = len(table.Rows)
		}

		// Map the batch first, then write it. Row numbers are 1-based among
		// data rows, independent of earlier failures.
		var (
			records []importer.Record
			rowNums []int
		)
		for i, row := range table.Rows[batchStart:batchEnd] {
			rowNum := batchStart + i + 1
			rec, issues := def.Map(headers, row, rowNum)
			tally.AddIssues(issues...)
			if rec == nil {
				failed++
				continue
			}
			records = append(records, rec)
			rowNums = append(rowNums, rowNum)
		}

		results := r.applyBatch(ctx, jb.ID, records)
		for j, res := range results {
			switch res.Outcome {
			case store.OutcomeCreated:
				tally.Imported++
				succeeded++
			case store.OutcomeUpdated:
				tally.Updated++
				succeeded++
			case store.OutcomeFailed:
				failed++
				tally.AddIssues(importer.Issue{
					RowNumber: rowNums[j],
					Level:     importer.LevelError,
					Message:   fmt.Sprintf("write failed: %s", res.Err),
				})
			}
		}

		processed += batchEnd - batchStart
		r.publish(jb.ID, Status{
			State:     StateImporting,
			Processed: processed,
			Total:     len(table.Rows),
			Succeeded: succeeded,
			Failed:    failed,
		})
	}

	report := importer.BuildReport(jb.Filename, start, tally)
	r.publish(jb.ID, Status{State: StateCompleted, Report: &report})
	return report, nil
}

// applyBatch writes one batch with bounded retry. A batch-level store error
// is retried with doubling backoff; when retries are exhausted the rows are
// re-attempted individually, and rows that still fail come back as
// OutcomeFailed results for the caller to fold into row-level issues.
func (r *runner) applyBatch(ctx context.Context, jobID string, records []importer.Record) []store.RowResult {
	if len(records) == 0 {
		return nil
	}

	logger := logging.WithFields(ctx, "job_id", jobID)
	backoff := r.cfg.RetryBackoff

	for attempt := 0; attempt <= r.cfg.RetryAttempts; attempt++ {
		results, err := r.store.Apply(ctx, records)
		if err == nil {
			return results
		}

		logger.Warn("batch write failed",
			"attempt", attempt+1,
			"rows", len(records),
			"error", err,
		)

		if attempt < r.cfg.RetryAttempts {
			if !sleepWithContext(ctx, backoff) {
				break
			}
			backoff *= 2
		}
	}

	// Degrade to per-row writes so one poisoned row cannot sink the batch.
	results := make([]store.RowResult, len(records))
	for i, rec := range records {
		rowResults, err := r.store.Apply(ctx, []importer.Record{rec})
		if err != nil {
			results[i] = store.RowResult{Outcome: store.OutcomeFailed, Err: err.Error()}
			continue
		}
		results[i] = rowResults[0]
	}
	return results
}

func (r *runner) publish(jobID string, status Status) {
	r.pub.Publish(Snapshot{
		JobID:     jobID,
		Timestamp: time.Now(),
		Status:    status,
	})
}

// fail publishes the terminal Failed snapshot and returns err for logging.
func (r *runner) fail(jobID string, err error) error {
	r.publish(jobID, Status{State: StateFailed, Error: err.Error()})
	return err
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
