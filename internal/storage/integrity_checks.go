package storage

import (
	"context"
	"fmt"

	"github.com/soundscape-ai/lexicon/internal/model"
)

// FindMalformedTerms returns terms with an empty name or a category
// outside the known set.
func (db *DB) FindMalformedTerms(ctx context.Context) ([]model.StandardTerm, error) {
	known := make([]string, 0, len(model.Categories))
	for _, c := range model.Categories {
		known = append(known, string(c))
	}
	rows, err := db.pool.Query(ctx,
		`SELECT `+termColumns+` FROM standard_terms
		 WHERE btrim(term) = '' OR NOT (category = ANY($1))`,
		known,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: find malformed terms: %w", err)
	}
	defer rows.Close()
	return scanTerms(rows)
}

// FindOverlongTerms returns terms longer than the given rune limit.
func (db *DB) FindOverlongTerms(ctx context.Context, maxLen int) ([]model.StandardTerm, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+termColumns+` FROM standard_terms WHERE char_length(term) > $1`,
		maxLen,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: find overlong terms: %w", err)
	}
	defer rows.Close()
	return scanTerms(rows)
}

// FindSynonymCollisions returns pairs of distinct terms whose synonym
// sets overlap, or where one term's name appears in another's synonyms.
func (db *DB) FindSynonymCollisions(ctx context.Context) ([][2]string, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT a.term, b.term FROM standard_terms a
		 JOIN standard_terms b ON a.id < b.id
		 WHERE a.synonyms && b.synonyms
		    OR a.term = ANY(b.synonyms)
		    OR b.term = ANY(a.synonyms)`,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: find synonym collisions: %w", err)
	}
	defer rows.Close()

	var pairs [][2]string
	for rows.Next() {
		var a, b string
		if err := rows.Scan(&a, &b); err != nil {
			return nil, fmt.Errorf("storage: scan collision pair: %w", err)
		}
		pairs = append(pairs, [2]string{a, b})
	}
	return pairs, rows.Err()
}

// FindOrphanedExpansionRecords returns expansion records whose term_id
// no longer resolves to a standard term and whose type is not a
// rejection tombstone.
func (db *DB) FindOrphanedExpansionRecords(ctx context.Context) ([]model.ExpansionRecord, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+ledgerColumns+` FROM expansion_records r
		 WHERE r.expansion_type != $1
		   AND NOT EXISTS (SELECT 1 FROM standard_terms t WHERE t.id = r.term_id)`,
		model.ExpansionTypeManualRejected,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: find orphaned expansion records: %w", err)
	}
	defer rows.Close()
	return scanExpansionRecords(rows)
}

// FindStaleExpandedTrackers returns unrecognized-term rows marked
// expanded whose term is absent from the approved vocabulary.
func (db *DB) FindStaleExpandedTrackers(ctx context.Context) ([]model.UnrecognizedTerm, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+unrecognizedColumns+` FROM unrecognized_terms u
		 WHERE u.expansion_status = $1
		   AND NOT EXISTS (
		     SELECT 1 FROM standard_terms t
		     WHERE t.review_status = 'approved'
		       AND (t.term = u.term OR u.term = ANY(t.synonyms)))`,
		model.StatusExpanded,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: find stale expanded trackers: %w", err)
	}
	defer rows.Close()
	return scanUnrecognized(rows)
}

// CountResidualScenarioTags counts analysis records still carrying a
// scenario tag that is neither a standard term nor a known synonym.
func (db *DB) CountResidualScenarioTags(ctx context.Context) (int, error) {
	var n int
	err := db.pool.QueryRow(ctx,
		`SELECT count(*) FROM analysis_records a
		 WHERE EXISTS (
		   SELECT 1 FROM unnest(a.scenarios) s
		   WHERE NOT EXISTS (
		     SELECT 1 FROM standard_terms t
		     WHERE t.review_status = 'approved'
		       AND (t.term = s OR s = ANY(t.synonyms))))`,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("storage: count residual scenario tags: %w", err)
	}
	return n, nil
}
