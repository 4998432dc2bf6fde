package job

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fieldserve/fieldserve/internal/importer"
	"github.com/fieldserve/fieldserve/internal/store"
)

// Config tunes the job engine.
type Config struct {
	// Workers is the worker pool size: how many jobs run concurrently.
	Workers int
	// BatchSize is the number of rows per entity-store write, the unit of
	// retry and of progress granularity.
	BatchSize int
	// RetryAttempts is how many times a failed batch write is retried
	// before degrading to per-row writes.
	RetryAttempts int
	// RetryBackoff is the initial backoff between batch retries; it doubles
	// per attempt.
	RetryBackoff time.Duration
	// JobTimeout bounds the processing time of a single job.
	JobTimeout time.Duration
	// Retention is how long terminal job status stays queryable.
	Retention time.Duration
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	if c.RetryAttempts < 0 {
		c.RetryAttempts = 0
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 250 * time.Millisecond
	}
	if c.JobTimeout <= 0 {
		c.JobTimeout = 10 * time.Minute
	}
	if c.Retention <= 0 {
		c.Retention = 5 * time.Minute
	}
	return c
}

// Queue is the submission gateway and FIFO scheduler for import jobs.
//
// Submit enqueues durably (in process) and returns the job id immediately;
// a bounded pool of workers pulls jobs in FIFO order. At most one worker
// processes a given job, so row order within a job is preserved.
type Queue struct {
	cfg    Config
	pub    *Publisher
	runner *runner

	mu      sync.Mutex
	pending []*Job
	active  int
	closed  bool

	wake chan struct{}
	wg   sync.WaitGroup
}

// NewQueue creates a queue writing to st and publishing status to pub.
func NewQueue(cfg Config, st store.Store, pub *Publisher) *Queue {
	cfg = cfg.withDefaults()
	q := &Queue{
		cfg:  cfg,
		pub:  pub,
		wake: make(chan struct{}, cfg.Workers),
	}
	q.runner = newRunner(cfg, st, pub)
	return q
}

// Start launches the worker pool. Workers exit when ctx is cancelled.
func (q *Queue) Start(ctx context.Context) {
	for i := 0; i < q.cfg.Workers; i++ {
		q.wg.Add(1)
		go q.workerLoop(ctx)
	}
}

// Submit validates the declared kind, enqueues a job and returns its id.
// It never blocks on processing; the caller observes progress through the
// publisher. Row-level payload problems are not checked here — they belong
// to the worker.
func (q *Queue) Submit(kind importer.Kind, filename string, payload []byte) (string, error) {
	if !importer.Supported(kind) {
		return "", ErrUnsupportedKind
	}

	jb := &Job{
		ID:          uuid.New().String(),
		Kind:        kind,
		Filename:    filename,
		Payload:     payload,
		SubmittedAt: time.Now(),
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return "", ErrQueueClosed
	}
	position := len(q.pending)
	q.pending = append(q.pending, jb)
	q.mu.Unlock()

	q.pub.Publish(Snapshot{
		JobID:     jb.ID,
		Timestamp: time.Now(),
		Status:    Status{State: StateQueued, Position: position},
	})

	select {
	case q.wake <- struct{}{}:
	default:
	}

	return jb.ID, nil
}

// Close stops accepting submissions. Already queued jobs still run.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
}

// PendingCount returns the number of jobs waiting for a worker.
func (q *Queue) PendingCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// ActiveCount returns the number of jobs currently being processed.
func (q *Queue) ActiveCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.active
}

// Drain blocks until the queue is empty and all workers are idle, or ctx
// expires. Used for graceful shutdown so enqueued jobs still reach a
// terminal state and their terminal snapshot is published.
func (q *Queue) Drain(ctx context.Context) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			q.mu.Lock()
			idle := len(q.pending) == 0 && q.active == 0
			q.mu.Unlock()
			if idle {
				return nil
			}
		}
	}
}

func (q *Queue) workerLoop(ctx context.Context) {
	defer q.wg.Done()

	for {
		jb := q.dequeue()
		if jb == nil {
			select {
			case <-ctx.Done():
				return
			case <-q.wake:
				continue
			}
		}

		jobCtx, cancel := context.WithTimeout(ctx, q.cfg.JobTimeout)
		q.runner.Run(jobCtx, jb)
		cancel()

		q.mu.Lock()
		q.active--
		q.mu.Unlock()
	}
}

// dequeue pops the FIFO head and refreshes the queued positions of the jobs
// still waiting, so a submitter polling its Queued status sees it advance.
func (q *Queue) dequeue() *Job {
	q.mu.Lock()
	if len(q.pending) == 0 {
		q.mu.Unlock()
		return nil
	}
	jb := q.pending[0]
	q.pending = q.pending[1:]
	waiting := make([]*Job, len(q.pending))
	copy(waiting, q.pending)
	q.active++
	q.mu.Unlock()

	now := time.Now()
	for i, w := range waiting {
		q.pub.Publish(Snapshot{
			JobID:     w.ID,
			Timestamp: now,
			Status:    Status{State: StateQueued, Position: i},
		})
	}

	return jb
}
