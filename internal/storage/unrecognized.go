package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/soundscape-ai/lexicon/internal/model"
)

const unrecognizedColumns = `id, term, category, occurrence_count, first_seen_at,
	 last_seen_at, related_film_types, expansion_status, rejection_reason`

// UpsertUnrecognized records one sighting of a raw string that failed
// standardization. Keyed by (term, category): the first sighting creates
// a row with count 1; repeats increment the count, bump last_seen_at and
// the film-type histogram, and recompute eligibility.
//
// Rows already in a settled state (ineligible, rejected, expanded) keep
// counting but are not resurrected to eligible; disqualification and
// promotion are decisions, not counters.
func (db *DB) UpsertUnrecognized(ctx context.Context, term string, category model.Category, filmType string, minFrequency int) (model.UnrecognizedTerm, error) {
	var out model.UnrecognizedTerm
	err := WithRetry(ctx, 3, 50*time.Millisecond, func() error {
		tx, err := db.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("storage: begin tx: %w", err)
		}
		defer func() { _ = tx.Rollback(ctx) }()

		var u model.UnrecognizedTerm
		err = tx.QueryRow(ctx,
			`SELECT `+unrecognizedColumns+` FROM unrecognized_terms
			 WHERE term = $1 AND category = $2 FOR UPDATE`,
			term, category,
		).Scan(
			&u.ID, &u.Term, &u.Category, &u.OccurrenceCount, &u.FirstSeenAt,
			&u.LastSeenAt, &u.RelatedFilmTypes, &u.ExpansionStatus, &u.RejectionReason,
		)
		now := time.Now().UTC()

		switch {
		case errors.Is(err, pgx.ErrNoRows):
			u = model.UnrecognizedTerm{
				ID:               uuid.New(),
				Term:             term,
				Category:         category,
				OccurrenceCount:  1,
				FirstSeenAt:      now,
				LastSeenAt:       now,
				ExpansionStatus:  model.StatusPending,
				RelatedFilmTypes: []model.FilmTypeCount{},
			}
			if filmType != "" {
				u.RelatedFilmTypes = []model.FilmTypeCount{{FilmType: filmType, Count: 1}}
			}
			recomputeStatus(&u, minFrequency)
			if _, err := tx.Exec(ctx,
				`INSERT INTO unrecognized_terms (`+unrecognizedColumns+`)
				 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
				u.ID, u.Term, u.Category, u.OccurrenceCount, u.FirstSeenAt,
				u.LastSeenAt, u.RelatedFilmTypes, u.ExpansionStatus, u.RejectionReason,
			); err != nil {
				// A concurrent insert of the same (term, category) hits the
				// unique constraint; retry re-reads the now-existing row.
				if isUniqueViolation(err) {
					return &retriableConflict{}
				}
				return fmt.Errorf("storage: insert unrecognized term: %w", err)
			}
		case err != nil:
			return fmt.Errorf("storage: load unrecognized term: %w", err)
		default:
			u.OccurrenceCount++
			u.LastSeenAt = now
			if filmType != "" {
				bumpFilmType(&u, filmType)
			}
			recomputeStatus(&u, minFrequency)
			if _, err := tx.Exec(ctx,
				`UPDATE unrecognized_terms
				 SET occurrence_count = $2, last_seen_at = $3, related_film_types = $4, expansion_status = $5
				 WHERE id = $1`,
				u.ID, u.OccurrenceCount, u.LastSeenAt, u.RelatedFilmTypes, u.ExpansionStatus,
			); err != nil {
				return fmt.Errorf("storage: update unrecognized term: %w", err)
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("storage: commit unrecognized upsert: %w", err)
		}
		out = u
		return nil
	})
	if err != nil {
		return model.UnrecognizedTerm{}, err
	}
	return out, nil
}

// bumpFilmType increments the histogram bucket for filmType, appending a
// new bucket on first sight, and re-sorts descending by count.
func bumpFilmType(u *model.UnrecognizedTerm, filmType string) {
	found := false
	for i := range u.RelatedFilmTypes {
		if u.RelatedFilmTypes[i].FilmType == filmType {
			u.RelatedFilmTypes[i].Count++
			found = true
			break
		}
	}
	if !found {
		u.RelatedFilmTypes = append(u.RelatedFilmTypes, model.FilmTypeCount{FilmType: filmType, Count: 1})
	}
	sort.SliceStable(u.RelatedFilmTypes, func(i, j int) bool {
		return u.RelatedFilmTypes[i].Count > u.RelatedFilmTypes[j].Count
	})
}

// recomputeStatus moves a row between pending and eligible. Settled
// states (ineligible, rejected, expanded) are left alone.
func recomputeStatus(u *model.UnrecognizedTerm, minFrequency int) {
	if u.ExpansionStatus != model.StatusPending && u.ExpansionStatus != model.StatusEligible {
		return
	}
	if u.Eligible(minFrequency) {
		u.ExpansionStatus = model.StatusEligible
	} else {
		u.ExpansionStatus = model.StatusPending
	}
}

// retriableConflict signals UpsertUnrecognized's insert race so
// WithRetry re-runs the closure and the re-read finds the winner's row.
type retriableConflict struct{}

func (*retriableConflict) Error() string { return "storage: concurrent unrecognized insert" }

// GetUnrecognized retrieves a row by id.
func (db *DB) GetUnrecognized(ctx context.Context, id uuid.UUID) (model.UnrecognizedTerm, error) {
	var u model.UnrecognizedTerm
	err := db.pool.QueryRow(ctx,
		`SELECT `+unrecognizedColumns+` FROM unrecognized_terms WHERE id = $1`, id,
	).Scan(
		&u.ID, &u.Term, &u.Category, &u.OccurrenceCount, &u.FirstSeenAt,
		&u.LastSeenAt, &u.RelatedFilmTypes, &u.ExpansionStatus, &u.RejectionReason,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.UnrecognizedTerm{}, ErrNotFound
		}
		return model.UnrecognizedTerm{}, fmt.Errorf("storage: get unrecognized term: %w", err)
	}
	return u, nil
}

// ListEligibleUnrecognized returns rows currently marked eligible.
func (db *DB) ListEligibleUnrecognized(ctx context.Context) ([]model.UnrecognizedTerm, error) {
	return db.listUnrecognizedWhere(ctx, `expansion_status = $1`, model.StatusEligible)
}

// GetUnrecognizedByIDs returns the given rows, preserving no particular order.
func (db *DB) GetUnrecognizedByIDs(ctx context.Context, ids []uuid.UUID) ([]model.UnrecognizedTerm, error) {
	return db.listUnrecognizedWhere(ctx, `id = ANY($1)`, ids)
}

func (db *DB) listUnrecognizedWhere(ctx context.Context, where string, arg any) ([]model.UnrecognizedTerm, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+unrecognizedColumns+` FROM unrecognized_terms
		 WHERE `+where+` ORDER BY occurrence_count DESC`, arg,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: list unrecognized terms: %w", err)
	}
	defer rows.Close()
	return scanUnrecognized(rows)
}

func scanUnrecognized(rows pgx.Rows) ([]model.UnrecognizedTerm, error) {
	var out []model.UnrecognizedTerm
	for rows.Next() {
		var u model.UnrecognizedTerm
		if err := rows.Scan(
			&u.ID, &u.Term, &u.Category, &u.OccurrenceCount, &u.FirstSeenAt,
			&u.LastSeenAt, &u.RelatedFilmTypes, &u.ExpansionStatus, &u.RejectionReason,
		); err != nil {
			return nil, fmt.Errorf("storage: scan unrecognized term: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// SetUnrecognizedStatus records a lifecycle transition with an optional
// reason (disqualification detail or reviewer comment).
func (db *DB) SetUnrecognizedStatus(ctx context.Context, id uuid.UUID, status model.ExpansionStatus, reason string) error {
	tag, err := db.pool.Exec(ctx,
		`UPDATE unrecognized_terms
		 SET expansion_status = $2, rejection_reason = NULLIF($3, '')
		 WHERE id = $1`,
		id, status, reason,
	)
	if err != nil {
		return fmt.Errorf("storage: set unrecognized status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// FindUnrecognized looks a row up by its natural key.
func (db *DB) FindUnrecognized(ctx context.Context, term string, category model.Category) (model.UnrecognizedTerm, error) {
	var u model.UnrecognizedTerm
	err := db.pool.QueryRow(ctx,
		`SELECT `+unrecognizedColumns+` FROM unrecognized_terms
		 WHERE term = $1 AND category = $2`, term, category,
	).Scan(
		&u.ID, &u.Term, &u.Category, &u.OccurrenceCount, &u.FirstSeenAt,
		&u.LastSeenAt, &u.RelatedFilmTypes, &u.ExpansionStatus, &u.RejectionReason,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.UnrecognizedTerm{}, ErrNotFound
		}
		return model.UnrecognizedTerm{}, fmt.Errorf("storage: find unrecognized term: %w", err)
	}
	return u, nil
}
