package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fieldserve/fieldserve/internal/importer"
)

// PostgresStore persists entities in PostgreSQL via pgx.
//
// Each record is applied as its own INSERT ... ON CONFLICT ... DO UPDATE
// statement outside any wrapping transaction, which gives the per-row
// isolation the batch contract requires. The RETURNING (xmax = 0) trick
// distinguishes a fresh insert from a conflict update.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a store backed by the given connection pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Apply writes records one by one. SQL-level failures (constraint
// violations, bad data) become per-row results; anything else — broken
// connection, pool exhaustion, cancelled context — aborts the batch so the
// caller can retry it whole.
func (s *PostgresStore) Apply(ctx context.Context, records []importer.Record) ([]RowResult, error) {
	results := make([]RowResult, len(records))

	for i, rec := range records {
		inserted, err := s.applyOne(ctx, rec)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) {
				results[i] = RowResult{Outcome: OutcomeFailed, Err: strings.TrimSpace(pgErr.Message)}
				continue
			}
			return nil, fmt.Errorf("apply %s record: %w", rec.RecordKind(), err)
		}

		if inserted {
			results[i] = RowResult{Outcome: OutcomeCreated}
		} else {
			results[i] = RowResult{Outcome: OutcomeUpdated}
		}
	}

	return results, nil
}

func (s *PostgresStore) applyOne(ctx context.Context, rec importer.Record) (inserted bool, err error) {
	switch r := rec.(type) {
	case importer.CustomerRecord:
		return s.upsertCustomer(ctx, r)
	case importer.DeviceRecord:
		return s.upsertDevice(ctx, r)
	case importer.InspectionRecord:
		return s.upsertInspection(ctx, r)
	case importer.CommunicationRecord:
		return s.upsertCommunication(ctx, r)
	default:
		return false, fmt.Errorf("unsupported record type %T", rec)
	}
}

func (s *PostgresStore) upsertCustomer(ctx context.Context, r importer.CustomerRecord) (bool, error) {
	const q = `
		INSERT INTO customers (name, street, city, postal_code, country, phone, email)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (lower(name), postal_code) DO UPDATE SET
			street  = EXCLUDED.street,
			city    = EXCLUDED.city,
			country = EXCLUDED.country,
			phone   = EXCLUDED.phone,
			email   = EXCLUDED.email,
			updated_at = now()
		RETURNING (xmax = 0)`

	var inserted bool
	err := s.pool.QueryRow(ctx, q,
		r.Name, toPgText(r.Street), toPgText(r.City), r.PostalCode,
		toPgText(r.Country), toPgText(r.Phone), toPgText(r.Email),
	).Scan(&inserted)
	return inserted, err
}

func (s *PostgresStore) upsertDevice(ctx context.Context, r importer.DeviceRecord) (bool, error) {
	const q = `
		INSERT INTO devices (serial_number, model, customer_name, installed_on, location)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (serial_number) DO UPDATE SET
			model         = EXCLUDED.model,
			customer_name = EXCLUDED.customer_name,
			installed_on  = EXCLUDED.installed_on,
			location      = EXCLUDED.location,
			updated_at    = now()
		RETURNING (xmax = 0)`

	var inserted bool
	err := s.pool.QueryRow(ctx, q,
		r.SerialNumber, toPgText(r.Model), toPgText(r.CustomerName),
		toPgDate(r.InstalledOn), toPgText(r.Location),
	).Scan(&inserted)
	return inserted, err
}

func (s *PostgresStore) upsertInspection(ctx context.Context, r importer.InspectionRecord) (bool, error) {
	const q = `
		INSERT INTO inspections (device_serial, inspected_on, result, inspector, notes)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (device_serial, inspected_on) DO UPDATE SET
			result     = EXCLUDED.result,
			inspector  = EXCLUDED.inspector,
			notes      = EXCLUDED.notes,
			updated_at = now()
		RETURNING (xmax = 0)`

	var inserted bool
	err := s.pool.QueryRow(ctx, q,
		r.DeviceSerial, toPgDate(r.InspectedOn), r.Result,
		toPgText(r.Inspector), toPgText(r.Notes),
	).Scan(&inserted)
	return inserted, err
}

func (s *PostgresStore) upsertCommunication(ctx context.Context, r importer.CommunicationRecord) (bool, error) {
	const q = `
		INSERT INTO communications (customer_name, occurred_on, channel, summary)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (customer_name, occurred_on, channel) DO UPDATE SET
			summary    = EXCLUDED.summary,
			updated_at = now()
		RETURNING (xmax = 0)`

	var inserted bool
	err := s.pool.QueryRow(ctx, q,
		r.CustomerName, toPgDate(r.OccurredOn), r.Channel, toPgText(r.Summary),
	).Scan(&inserted)
	return inserted, err
}

// toPgText converts a string to pgtype.Text, NULL when empty.
func toPgText(s string) pgtype.Text {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: s, Valid: true}
}

// toPgDate converts a time to pgtype.Date, NULL when zero.
func toPgDate(t time.Time) pgtype.Date {
	if t.IsZero() {
		return pgtype.Date{Valid: false}
	}
	return pgtype.Date{Time: t, Valid: true}
}
