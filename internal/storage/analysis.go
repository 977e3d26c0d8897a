package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/soundscape-ai/lexicon/internal/model"
)

// BackfillScenarios rewrites scenario tags equal to rawTerm to the new
// standard term across all analysis records. Returns the number of
// records rewritten and the provenance of each rewrite.
func (db *DB) BackfillScenarios(ctx context.Context, rawTerm, standardTerm string) (int, []model.BackfillProvenance, error) {
	rows, err := db.pool.Query(ctx,
		`UPDATE analysis_records
		 SET scenarios = array_replace(scenarios, $1, $2), updated_at = now()
		 WHERE $1 = ANY(scenarios)
		 RETURNING id`,
		rawTerm, standardTerm,
	)
	if err != nil {
		return 0, nil, fmt.Errorf("storage: backfill scenarios: %w", err)
	}
	defer rows.Close()

	var prov []model.BackfillProvenance
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return 0, nil, fmt.Errorf("storage: scan backfilled id: %w", err)
		}
		prov = append(prov, model.BackfillProvenance{RecordID: id, Field: "scenarios", Original: rawTerm})
	}
	if err := rows.Err(); err != nil {
		return 0, nil, fmt.Errorf("storage: backfill scenarios: %w", err)
	}
	return len(prov), prov, nil
}

// BackfillDubbing rewrites unclassified dubbing suggestions whose
// description contains rawTerm: the entry's type becomes the standard
// term and the raw substring inside the description is replaced.
//
// The JSON surgery happens in Go rather than SQL so fields the engine
// does not own are preserved byte-for-byte.
func (db *DB) BackfillDubbing(ctx context.Context, rawTerm, standardTerm string) (int, []model.BackfillProvenance, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT id, analysis FROM analysis_records
		 WHERE jsonb_path_exists(analysis, '$.dubbing[*] ? (@.type == "unclassified")')`,
	)
	if err != nil {
		return 0, nil, fmt.Errorf("storage: find unclassified dubbing: %w", err)
	}
	defer rows.Close()

	type pending struct {
		id  uuid.UUID
		doc model.AnalysisDocument
	}
	var updates []pending
	for rows.Next() {
		var id uuid.UUID
		var doc model.AnalysisDocument
		if err := rows.Scan(&id, &doc); err != nil {
			return 0, nil, fmt.Errorf("storage: scan analysis document: %w", err)
		}
		changed := false
		for i := range doc.Dubbing {
			d := &doc.Dubbing[i]
			if d.Type == model.DubbingTypeUnclassified && strings.Contains(d.Description, rawTerm) {
				d.Type = standardTerm
				d.Description = strings.ReplaceAll(d.Description, rawTerm, standardTerm)
				changed = true
			}
		}
		if changed {
			updates = append(updates, pending{id: id, doc: doc})
		}
	}
	if err := rows.Err(); err != nil {
		return 0, nil, fmt.Errorf("storage: iterate dubbing rows: %w", err)
	}

	var prov []model.BackfillProvenance
	for _, up := range updates {
		if _, err := db.pool.Exec(ctx,
			`UPDATE analysis_records SET analysis = $2, updated_at = now() WHERE id = $1`,
			up.id, up.doc,
		); err != nil {
			// Partial failure: report what was rewritten so far; the caller
			// logs and the integrity sweep reconciles the remainder.
			return len(prov), prov, fmt.Errorf("storage: rewrite dubbing for %s: %w", up.id, err)
		}
		prov = append(prov, model.BackfillProvenance{RecordID: up.id, Field: "dubbing", Original: rawTerm})
	}
	return len(prov), prov, nil
}

// RestoreScenarioExact restores one analysis record's scenario tag from
// the standard term back to the original raw string. Used by rollback
// when backfill provenance is available.
func (db *DB) RestoreScenarioExact(ctx context.Context, recordID uuid.UUID, standardTerm, original string) (bool, error) {
	tag, err := db.pool.Exec(ctx,
		`UPDATE analysis_records
		 SET scenarios = array_replace(scenarios, $2, $3), updated_at = now()
		 WHERE id = $1 AND $2 = ANY(scenarios)`,
		recordID, standardTerm, original,
	)
	if err != nil {
		return false, fmt.Errorf("storage: restore scenario: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// RestoreScenariosAll rewrites the standard term back to the given
// synonym across every analysis record. The first-synonym fallback for
// promotions predating provenance capture.
func (db *DB) RestoreScenariosAll(ctx context.Context, standardTerm, synonym string) (int, error) {
	tag, err := db.pool.Exec(ctx,
		`UPDATE analysis_records
		 SET scenarios = array_replace(scenarios, $1, $2), updated_at = now()
		 WHERE $1 = ANY(scenarios)`,
		standardTerm, synonym,
	)
	if err != nil {
		return 0, fmt.Errorf("storage: restore scenarios: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// RestoreDubbing reverts dubbing suggestions typed with the standard
// term back to unclassified, substituting original for the standard
// term inside descriptions. When recordID is non-nil only that record
// is touched (provenance-exact); otherwise all records are scanned.
func (db *DB) RestoreDubbing(ctx context.Context, recordID *uuid.UUID, standardTerm, original string) (int, error) {
	query := `SELECT id, analysis FROM analysis_records
		 WHERE jsonb_path_exists(analysis, '$.dubbing[*].type')`
	var args []any
	if recordID != nil {
		query = `SELECT id, analysis FROM analysis_records WHERE id = $1`
		args = append(args, *recordID)
	}

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("storage: find dubbing rows: %w", err)
	}
	defer rows.Close()

	type pending struct {
		id  uuid.UUID
		doc model.AnalysisDocument
	}
	var updates []pending
	for rows.Next() {
		var id uuid.UUID
		var doc model.AnalysisDocument
		if err := rows.Scan(&id, &doc); err != nil {
			return 0, fmt.Errorf("storage: scan analysis document: %w", err)
		}
		changed := false
		for i := range doc.Dubbing {
			d := &doc.Dubbing[i]
			if d.Type == standardTerm {
				d.Type = model.DubbingTypeUnclassified
				d.Description = strings.ReplaceAll(d.Description, standardTerm, original)
				changed = true
			}
		}
		if changed {
			updates = append(updates, pending{id: id, doc: doc})
		}
	}
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("storage: iterate dubbing rows: %w", err)
	}

	restored := 0
	for _, up := range updates {
		if _, err := db.pool.Exec(ctx,
			`UPDATE analysis_records SET analysis = $2, updated_at = now() WHERE id = $1`,
			up.id, up.doc,
		); err != nil {
			return restored, fmt.Errorf("storage: restore dubbing for %s: %w", up.id, err)
		}
		restored++
	}
	return restored, nil
}
