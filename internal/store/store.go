// Package store persists entity records produced by the import pipeline.
//
// The write contract is upsert-by-natural-key: the store decides create vs.
// update and reports which one happened, so the import report can attribute
// the row to importedCount or updatedCount. Rows inside a batch are applied
// with per-row isolation: one row's failure never rolls back its siblings.
package store

import (
	"context"

	"github.com/fieldserve/fieldserve/internal/importer"
)

// Outcome is the result of applying one record.
type Outcome int

const (
	// OutcomeCreated means a new entity was inserted.
	OutcomeCreated Outcome = iota
	// OutcomeUpdated means an existing entity matched by natural key was updated.
	OutcomeUpdated
	// OutcomeFailed means this row failed; Err carries the reason.
	OutcomeFailed
)

// RowResult is the per-row outcome of a batch write.
type RowResult struct {
	Outcome Outcome
	Err     string
}

// Store applies entity records to the backing store.
//
// Apply returns one RowResult per record on success. A non-nil error means
// the batch as a whole could not be attempted (e.g. the store is
// unreachable); the caller may retry the entire batch.
type Store interface {
	Apply(ctx context.Context, records []importer.Record) ([]RowResult, error)
}
