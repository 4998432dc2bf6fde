package job

import (
	"sync"
	"time"
)

// subscriberBuffer is the channel capacity per subscriber. A subscriber that
// falls this far behind misses intermediate snapshots (they are replacements,
// not deltas, so nothing is lost semantically).
const subscriberBuffer = 16

// Publisher fans job status snapshots out to per-job topics.
//
// It retains only the latest snapshot per job — not an event log — so a late
// subscriber or a synchronous query always sees the current state. Topics
// for terminal jobs are evicted after the retention window.
type Publisher struct {
	retention time.Duration

	mu     sync.Mutex
	topics map[string]*topic
}

type topic struct {
	last   Snapshot
	subs   []chan Snapshot
	closed bool
}

// NewPublisher creates a publisher that evicts terminal jobs after the
// given retention window.
func NewPublisher(retention time.Duration) *Publisher {
	return &Publisher{
		retention: retention,
		topics:    make(map[string]*topic),
	}
}

// Publish records snap as the job's latest snapshot and pushes it to all
// subscribers. Delivery per job is in publish order; a full subscriber
// channel drops the snapshot rather than blocking the worker. When the
// snapshot is terminal all subscriber channels are closed and eviction is
// scheduled.
func (p *Publisher) Publish(snap Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()

	t := p.topics[snap.JobID]
	if t == nil {
		t = &topic{}
		p.topics[snap.JobID] = t
	}
	if t.closed {
		return
	}

	t.last = snap
	for _, ch := range t.subs {
		select {
		case ch <- snap:
		default:
			// Slow subscriber; it can query Last after the channel closes.
		}
	}

	if snap.Status.Terminal() {
		for _, ch := range t.subs {
			close(ch)
		}
		t.subs = nil
		t.closed = true

		jobID := snap.JobID
		time.AfterFunc(p.retention, func() { p.evict(jobID) })
	}
}

// Subscribe returns a channel of snapshots for one job. The current
// snapshot is replayed immediately; the channel closes after the terminal
// snapshot is delivered. Returns ErrJobNotFound for unknown jobs.
func (p *Publisher) Subscribe(jobID string) (<-chan Snapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	t := p.topics[jobID]
	if t == nil {
		return nil, ErrJobNotFound
	}

	ch := make(chan Snapshot, subscriberBuffer)
	ch <- t.last
	if t.closed {
		close(ch)
	} else {
		t.subs = append(t.subs, ch)
	}
	return ch, nil
}

// Last answers a synchronous "current status" query with the most recent
// snapshot for the job.
func (p *Publisher) Last(jobID string) (Snapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	t := p.topics[jobID]
	if t == nil {
		return Snapshot{}, ErrJobNotFound
	}
	return t.last, nil
}

func (p *Publisher) evict(jobID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.topics, jobID)
}
