package job

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fieldserve/fieldserve/internal/importer"
	_ "github.com/fieldserve/fieldserve/internal/importer/kinds"
	"github.com/fieldserve/fieldserve/internal/store"
)

func TestQueue_SubmitUnsupportedKind(t *testing.T) {
	q := NewQueue(testConfig(), store.NewMemoryStore(), NewPublisher(time.Minute))

	_, err := q.Submit(importer.Kind("gadget"), "g.csv", []byte("a\n1\n"))
	if !errors.Is(err, ErrUnsupportedKind) {
		t.Errorf("Submit() error = %v, want ErrUnsupportedKind", err)
	}
}

func TestQueue_SubmitAfterClose(t *testing.T) {
	q := NewQueue(testConfig(), store.NewMemoryStore(), NewPublisher(time.Minute))
	q.Close()

	_, err := q.Submit(importer.KindCustomer, "c.csv", []byte("name\nAcme\n"))
	if !errors.Is(err, ErrQueueClosed) {
		t.Errorf("Submit() error = %v, want ErrQueueClosed", err)
	}
}

func TestQueue_QueuedPositions(t *testing.T) {
	pub := NewPublisher(time.Minute)
	q := NewQueue(testConfig(), store.NewMemoryStore(), pub)
	// Workers not started: positions stay as assigned at submission.

	jb := customerJob("", 1)
	var ids []string
	for i := 0; i < 3; i++ {
		id, err := q.Submit(jb.Kind, jb.Filename, jb.Payload)
		if err != nil {
			t.Fatalf("Submit() error = %v", err)
		}
		ids = append(ids, id)
	}

	for i, id := range ids {
		snap, err := pub.Last(id)
		if err != nil {
			t.Fatalf("Last(%s) error = %v", id, err)
		}
		if snap.Status.State != StateQueued {
			t.Errorf("job %d state = %s, want queued", i, snap.Status.State)
		}
		if snap.Status.Position != i {
			t.Errorf("job %d position = %d, want %d", i, snap.Status.Position, i)
		}
	}
	if got := q.PendingCount(); got != 3 {
		t.Errorf("PendingCount() = %d, want 3", got)
	}
}

func TestQueue_ProcessesSubmittedJobs(t *testing.T) {
	mem := store.NewMemoryStore()
	pub := NewPublisher(time.Minute)
	q := NewQueue(testConfig(), mem, pub)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	q.Start(ctx)

	jb := customerJob("", 5)
	var ids []string
	for i := 0; i < 3; i++ {
		id, err := q.Submit(jb.Kind, jb.Filename, jb.Payload)
		if err != nil {
			t.Fatalf("Submit() error = %v", err)
		}
		ids = append(ids, id)
	}

	drainCtx, drainCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer drainCancel()
	if err := q.Drain(drainCtx); err != nil {
		t.Fatalf("Drain() error = %v", err)
	}

	for _, id := range ids {
		snap, err := pub.Last(id)
		if err != nil {
			t.Fatalf("Last(%s) error = %v", id, err)
		}
		if !snap.Status.Terminal() {
			t.Errorf("job %s state = %s, want terminal", id, snap.Status.State)
		}
		if snap.Status.State != StateCompleted {
			t.Errorf("job %s state = %s (error %q), want completed", id, snap.Status.State, snap.Status.Error)
		}
	}

	// Same payload three times: first creates, the rest update.
	if got := mem.Count(importer.KindCustomer); got != 5 {
		t.Errorf("stored customers = %d, want 5", got)
	}
}

func TestQueue_DrainTimesOutWhileBusy(t *testing.T) {
	q := NewQueue(testConfig(), store.NewMemoryStore(), NewPublisher(time.Minute))
	// Workers never started, so the pending job can never finish.
	if _, err := q.Submit(importer.KindCustomer, "c.csv", []byte("name\nAcme\n")); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	if err := q.Drain(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Drain() error = %v, want deadline exceeded", err)
	}
}
