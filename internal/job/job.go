// Package job runs asynchronous import work: a FIFO queue feeding a bounded
// worker pool, a per-job status topic with latest-snapshot retention, and
// the worker that drives parse → map → batched write for a submitted file.
package job

import (
	"errors"
	"time"

	"github.com/fieldserve/fieldserve/internal/importer"
)

// ErrJobNotFound is returned for status or subscription requests against an
// unknown (or already evicted) job id.
var ErrJobNotFound = errors.New("job not found")

// ErrUnsupportedKind is returned at submission when the declared entity
// kind has no registered mapper.
var ErrUnsupportedKind = errors.New("unsupported entity kind")

// ErrQueueClosed is returned when submitting to a queue that is shutting down.
var ErrQueueClosed = errors.New("job queue is closed")

// State names one stage of the job state machine.
type State string

const (
	StateQueued    State = "queued"
	StateParsing   State = "parsing"
	StateImporting State = "importing"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// Status is the state machine payload, discriminated by State.
//
//	queued:    Position
//	parsing:   Progress (coarse percent)
//	importing: Processed/Total/Succeeded/Failed
//	completed: Report
//	failed:    Error
//
// Row-level problems never produce StateFailed; they accumulate as issues
// inside a completed job's report. Error is reserved for conditions that
// abort the whole job.
type Status struct {
	State     State            `json:"state"`
	Position  int              `json:"position"`
	Progress  int              `json:"progress"`
	Processed int              `json:"processed"`
	Total     int              `json:"total"`
	Succeeded int              `json:"succeeded"`
	Failed    int              `json:"failed"`
	Error     string           `json:"error,omitempty"`
	Report    *importer.Report `json:"report,omitempty"`
}

// Terminal reports whether no further transitions can occur.
func (s Status) Terminal() bool {
	return s.State == StateCompleted || s.State == StateFailed
}

// Snapshot is one published status observation for a job. Snapshots are
// idempotent replacements, not deltas; consumers keep the latest.
type Snapshot struct {
	JobID     string    `json:"jobId"`
	Timestamp time.Time `json:"timestamp"`
	Status    Status    `json:"status"`
}

// Job is one unit of import work tied to one submitted file. It is owned
// exclusively by the queue and its worker from creation to terminal state.
type Job struct {
	ID          string
	Kind        importer.Kind
	Filename    string
	Payload     []byte
	SubmittedAt time.Time
}
