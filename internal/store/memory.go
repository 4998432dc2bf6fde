package store

import (
	"context"
	"sync"

	"github.com/fieldserve/fieldserve/internal/importer"
)

// MemoryStore keeps entities in process memory, keyed by natural key.
// It backs local development runs (STORE_DRIVER=memory) and the test suite.
type MemoryStore struct {
	mu   sync.Mutex
	data map[importer.Kind]map[string]importer.Record

	failBatches int
	rowErr      func(importer.Record) string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[importer.Kind]map[string]importer.Record),
	}
}

// Apply upserts records by natural key.
func (s *MemoryStore) Apply(ctx context.Context, records []importer.Record) ([]RowResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failBatches > 0 {
		s.failBatches--
		return nil, errStoreUnavailable
	}

	results := make([]RowResult, len(records))
	for i, rec := range records {
		if s.rowErr != nil {
			if reason := s.rowErr(rec); reason != "" {
				results[i] = RowResult{Outcome: OutcomeFailed, Err: reason}
				continue
			}
		}

		kind := rec.RecordKind()
		byKey := s.data[kind]
		if byKey == nil {
			byKey = make(map[string]importer.Record)
			s.data[kind] = byKey
		}

		key := rec.NaturalKey()
		if _, exists := byKey[key]; exists {
			results[i] = RowResult{Outcome: OutcomeUpdated}
		} else {
			results[i] = RowResult{Outcome: OutcomeCreated}
		}
		byKey[key] = rec
	}

	return results, nil
}

// Count returns the number of stored entities of a kind.
func (s *MemoryStore) Count(kind importer.Kind) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data[kind])
}

// Get returns the stored record for a natural key.
func (s *MemoryStore) Get(kind importer.Kind, naturalKey string) (importer.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.data[kind][naturalKey]
	return rec, ok
}

// FailNextBatches makes the next n Apply calls fail at the batch level,
// simulating transient store unavailability. Test hook.
func (s *MemoryStore) FailNextBatches(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failBatches = n
}

// SetRowError installs a per-record failure injector. A non-empty return
// value fails that row. Test hook.
func (s *MemoryStore) SetRowError(fn func(importer.Record) string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rowErr = fn
}
