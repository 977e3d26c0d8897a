package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/soundscape-ai/lexicon/internal/model"
)

const ledgerColumns = `id, term_id, term, category, term_type, trigger_count,
	 bound_film_types, validation_passed, validation_details, expansion_type,
	 expanded_by, expansion_batch_id, historical_data_cleaned, cleaned_count,
	 content_hash, created_at`

// AppendExpansionRecord inserts one audit entry. The ledger is
// append-only: entries are never updated except through
// MarkHistoricalCleaned and MarkManualRejected, and never deleted.
func (db *DB) AppendExpansionRecord(ctx context.Context, rec model.ExpansionRecord) (model.ExpansionRecord, error) {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.CreatedAt.IsZero() {
		// Microsecond precision matches the timestamptz column, so the
		// returned record equals a later read of the same row.
		rec.CreatedAt = time.Now().UTC().Truncate(time.Microsecond)
	}
	if rec.BoundFilmTypes == nil {
		rec.BoundFilmTypes = []string{}
	}

	_, err := db.pool.Exec(ctx,
		`INSERT INTO expansion_records (`+ledgerColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		rec.ID, rec.TermID, rec.Term, rec.Category, rec.TermType, rec.TriggerCount,
		rec.BoundFilmTypes, rec.ValidationPassed, rec.ValidationDetails, rec.ExpansionType,
		rec.ExpandedBy, rec.ExpansionBatchID, rec.HistoricalDataCleaned, rec.CleanedCount,
		rec.ContentHash, rec.CreatedAt,
	)
	if err != nil {
		return model.ExpansionRecord{}, fmt.Errorf("storage: append expansion record: %w", err)
	}
	return rec, nil
}

// MarkHistoricalCleaned attaches the backfill result to a ledger entry:
// the rewrite count, the cleaned flag, and the per-record provenance
// needed for exact rollback.
func (db *DB) MarkHistoricalCleaned(ctx context.Context, id uuid.UUID, cleanedCount int, provenance []model.BackfillProvenance) error {
	tag, err := db.pool.Exec(ctx,
		`UPDATE expansion_records
		 SET historical_data_cleaned = TRUE,
		     cleaned_count = $2,
		     validation_details = validation_details || jsonb_build_object('backfill_provenance', $3::jsonb)
		 WHERE id = $1`,
		id, cleanedCount, provenance,
	)
	if err != nil {
		return fmt.Errorf("storage: mark historical cleaned: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkManualRejected flips the expansion type of a term's ledger entries
// on human rejection. The entries themselves remain.
func (db *DB) MarkManualRejected(ctx context.Context, termID uuid.UUID) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE expansion_records SET expansion_type = $2 WHERE term_id = $1`,
		termID, model.ExpansionTypeManualRejected,
	)
	if err != nil {
		return fmt.Errorf("storage: mark manual rejected: %w", err)
	}
	return nil
}

// LatestExpansionRecordByTerm returns the most recent ledger entry for a
// term id.
func (db *DB) LatestExpansionRecordByTerm(ctx context.Context, termID uuid.UUID) (model.ExpansionRecord, error) {
	var rec model.ExpansionRecord
	err := db.pool.QueryRow(ctx,
		`SELECT `+ledgerColumns+` FROM expansion_records
		 WHERE term_id = $1 ORDER BY created_at DESC LIMIT 1`, termID,
	).Scan(
		&rec.ID, &rec.TermID, &rec.Term, &rec.Category, &rec.TermType, &rec.TriggerCount,
		&rec.BoundFilmTypes, &rec.ValidationPassed, &rec.ValidationDetails, &rec.ExpansionType,
		&rec.ExpandedBy, &rec.ExpansionBatchID, &rec.HistoricalDataCleaned, &rec.CleanedCount,
		&rec.ContentHash, &rec.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.ExpansionRecord{}, ErrNotFound
		}
		return model.ExpansionRecord{}, fmt.Errorf("storage: latest expansion record: %w", err)
	}
	return rec, nil
}

// ListExpansionRecords returns ledger entries, newest first.
func (db *DB) ListExpansionRecords(ctx context.Context, limit, offset int) ([]model.ExpansionRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.pool.Query(ctx,
		`SELECT `+ledgerColumns+` FROM expansion_records
		 ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: list expansion records: %w", err)
	}
	defer rows.Close()
	return scanExpansionRecords(rows)
}

func scanExpansionRecords(rows pgx.Rows) ([]model.ExpansionRecord, error) {
	var recs []model.ExpansionRecord
	for rows.Next() {
		var rec model.ExpansionRecord
		if err := rows.Scan(
			&rec.ID, &rec.TermID, &rec.Term, &rec.Category, &rec.TermType, &rec.TriggerCount,
			&rec.BoundFilmTypes, &rec.ValidationPassed, &rec.ValidationDetails, &rec.ExpansionType,
			&rec.ExpandedBy, &rec.ExpansionBatchID, &rec.HistoricalDataCleaned, &rec.CleanedCount,
			&rec.ContentHash, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("storage: scan expansion record: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}
