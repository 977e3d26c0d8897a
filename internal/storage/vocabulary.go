package storage

import (
	"context"
	"fmt"

	"github.com/soundscape-ai/lexicon/internal/model"
)

// VocabularyProjection returns the approved vocabulary in consumer
// form: a synonym-to-standard-term mapping (each standard term also
// maps to itself) and the flat list of standard terms. Category is
// optional.
func (db *DB) VocabularyProjection(ctx context.Context, category model.Category) (*model.VocabularyResponse, error) {
	query := `SELECT term, synonyms FROM standard_terms WHERE review_status = 'approved'`
	var args []any
	if category != "" {
		query += ` AND category = $1`
		args = append(args, category)
	}
	query += ` ORDER BY term`

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("storage: vocabulary projection: %w", err)
	}
	defer rows.Close()

	resp := &model.VocabularyResponse{
		Mapping:      make(map[string]string),
		StandardList: []string{},
	}
	for rows.Next() {
		var term string
		var synonyms []string
		if err := rows.Scan(&term, &synonyms); err != nil {
			return nil, fmt.Errorf("storage: scan vocabulary row: %w", err)
		}
		resp.StandardList = append(resp.StandardList, term)
		resp.Mapping[term] = term
		for _, s := range synonyms {
			resp.Mapping[s] = term
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: vocabulary projection: %w", err)
	}
	return resp, nil
}
