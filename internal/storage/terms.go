package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"

	"github.com/soundscape-ai/lexicon/internal/model"
)

const termColumns = `id, term, category, term_type, film_types, synonyms,
	 is_auto_expanded, expansion_source, expansion_reason, review_status,
	 reviewed_by, reviewed_at, review_comment, usage_count, created_at, updated_at`

// InsertTerm inserts a standard term and returns its id.
//
// Uniqueness is re-validated here even though the conflict checker and
// similarity oracle already passed: the synonym overlap is checked
// inside the transaction, and the exact-term race between concurrent
// submissions is closed by the unique constraint on standard_terms.term,
// mapped to model.DuplicateTermError.
func (db *DB) InsertTerm(ctx context.Context, t model.StandardTerm) (uuid.UUID, error) {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
	if t.FilmTypes == nil {
		t.FilmTypes = []string{}
	}
	if t.Synonyms == nil {
		t.Synonyms = []string{}
	}

	err := WithRetry(ctx, 3, 50*time.Millisecond, func() error {
		tx, err := db.pool.Begin(ctx)
		if err != nil {
			return fmt.Errorf("storage: begin tx: %w", err)
		}
		defer func() { _ = tx.Rollback(ctx) }()

		// The candidate term must not be a synonym of any existing term,
		// and none of its synonyms may collide with an existing term or
		// synonym. The unique index only covers the term column, so these
		// checks run in the same transaction as the insert.
		var conflicting string
		err = tx.QueryRow(ctx,
			`SELECT term FROM standard_terms
			 WHERE $1 = ANY(synonyms) OR term = ANY($2) OR synonyms && $2
			 LIMIT 1`,
			t.Term, t.Synonyms,
		).Scan(&conflicting)
		if err == nil {
			return &model.DuplicateTermError{Term: t.Term}
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("storage: check synonym overlap: %w", err)
		}

		_, err = tx.Exec(ctx,
			`INSERT INTO standard_terms (`+termColumns+`)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
			t.ID, t.Term, t.Category, t.TermType, t.FilmTypes, t.Synonyms,
			t.IsAutoExpanded, t.ExpansionSource, t.ExpansionReason, t.ReviewStatus,
			t.ReviewedBy, t.ReviewedAt, t.ReviewComment, t.UsageCount, t.CreatedAt, t.UpdatedAt,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return &model.DuplicateTermError{Term: t.Term}
			}
			return fmt.Errorf("storage: insert term: %w", err)
		}
		return tx.Commit(ctx)
	})
	if err != nil {
		return uuid.Nil, err
	}
	return t.ID, nil
}

// MergeTerm unions new synonyms and film types into an existing term.
// Duplicates are dropped; order is not significant.
func (db *DB) MergeTerm(ctx context.Context, id uuid.UUID, newSynonyms, newFilmTypes []string) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("storage: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var synonyms, filmTypes []string
	err = tx.QueryRow(ctx,
		`SELECT synonyms, film_types FROM standard_terms WHERE id = $1 FOR UPDATE`, id,
	).Scan(&synonyms, &filmTypes)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("storage: lock term for merge: %w", err)
	}

	synonyms = unionStrings(synonyms, newSynonyms)
	filmTypes = unionStrings(filmTypes, newFilmTypes)

	if _, err := tx.Exec(ctx,
		`UPDATE standard_terms SET synonyms = $2, film_types = $3, updated_at = now() WHERE id = $1`,
		id, synonyms, filmTypes,
	); err != nil {
		return fmt.Errorf("storage: merge term: %w", err)
	}
	return tx.Commit(ctx)
}

// SetReviewStatus records a human review decision on a term.
func (db *DB) SetReviewStatus(ctx context.Context, id uuid.UUID, status model.ReviewStatus, reviewer, comment string) error {
	tag, err := db.pool.Exec(ctx,
		`UPDATE standard_terms
		 SET review_status = $2, reviewed_by = $3, reviewed_at = now(),
		     review_comment = NULLIF($4, ''), updated_at = now()
		 WHERE id = $1`,
		id, status, reviewer, comment,
	)
	if err != nil {
		return fmt.Errorf("storage: set review status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteTerm removes a term row. Used only by the rejection path; the
// caller runs the compensating analysis-record restore before the row
// (and the synonym list needed for restoration) disappears.
func (db *DB) DeleteTerm(ctx context.Context, id uuid.UUID) error {
	tag, err := db.pool.Exec(ctx, `DELETE FROM standard_terms WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("storage: delete term: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetTerm retrieves a term by id.
func (db *DB) GetTerm(ctx context.Context, id uuid.UUID) (model.StandardTerm, error) {
	var t model.StandardTerm
	err := db.pool.QueryRow(ctx,
		`SELECT `+termColumns+` FROM standard_terms WHERE id = $1`, id,
	).Scan(
		&t.ID, &t.Term, &t.Category, &t.TermType, &t.FilmTypes, &t.Synonyms,
		&t.IsAutoExpanded, &t.ExpansionSource, &t.ExpansionReason, &t.ReviewStatus,
		&t.ReviewedBy, &t.ReviewedAt, &t.ReviewComment, &t.UsageCount, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.StandardTerm{}, ErrNotFound
		}
		return model.StandardTerm{}, fmt.Errorf("storage: get term: %w", err)
	}
	return t, nil
}

// ListTerms returns all terms, optionally filtered by category.
func (db *DB) ListTerms(ctx context.Context, category model.Category) ([]model.StandardTerm, error) {
	query := `SELECT ` + termColumns + ` FROM standard_terms`
	var args []any
	if category != "" {
		query += ` WHERE category = $1`
		args = append(args, category)
	}
	query += ` ORDER BY term`

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("storage: list terms: %w", err)
	}
	defer rows.Close()
	return scanTerms(rows)
}

// ListApprovedTerms returns all approved terms, optionally filtered by
// category. This is the source of the conflict checker's snapshot and
// the vocabulary projection.
func (db *DB) ListApprovedTerms(ctx context.Context, category model.Category) ([]model.StandardTerm, error) {
	query := `SELECT ` + termColumns + ` FROM standard_terms WHERE review_status = $1`
	args := []any{model.ReviewApproved}
	if category != "" {
		query += ` AND category = $2`
		args = append(args, category)
	}
	query += ` ORDER BY term`

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("storage: list approved terms: %w", err)
	}
	defer rows.Close()
	return scanTerms(rows)
}

// ApprovedTermNames returns the term strings of approved entries in a
// category, the existing-term set handed to the similarity oracle.
func (db *DB) ApprovedTermNames(ctx context.Context, category model.Category) ([]string, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT term FROM standard_terms WHERE review_status = $1 AND category = $2 ORDER BY term`,
		model.ReviewApproved, category,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: approved term names: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("storage: scan term name: %w", err)
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

// IncrementUsage adds delta to a term's usage count.
func (db *DB) IncrementUsage(ctx context.Context, id uuid.UUID, delta int) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE standard_terms SET usage_count = usage_count + $2, updated_at = now() WHERE id = $1`,
		id, delta,
	)
	if err != nil {
		return fmt.Errorf("storage: increment usage: %w", err)
	}
	return nil
}

// UpdateTermEmbedding stores the embedding vector for a term.
func (db *DB) UpdateTermEmbedding(ctx context.Context, id uuid.UUID, emb pgvector.Vector) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE standard_terms SET embedding = $2 WHERE id = $1`, id, emb,
	)
	if err != nil {
		return fmt.Errorf("storage: update term embedding: %w", err)
	}
	return nil
}

// TermSimilarity is one scored term from an embedding similarity query.
type TermSimilarity struct {
	Term       string
	Similarity float64
}

// SimilarTermsByEmbedding scores approved terms in a category against a
// candidate embedding using cosine similarity, descending.
func (db *DB) SimilarTermsByEmbedding(ctx context.Context, emb pgvector.Vector, category model.Category, limit int) ([]TermSimilarity, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.pool.Query(ctx,
		`SELECT term, 1 - (embedding <=> $1) AS similarity
		 FROM standard_terms
		 WHERE review_status = $2 AND category = $3 AND embedding IS NOT NULL
		 ORDER BY similarity DESC
		 LIMIT $4`,
		emb, model.ReviewApproved, category, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: similar terms by embedding: %w", err)
	}
	defer rows.Close()

	var out []TermSimilarity
	for rows.Next() {
		var ts TermSimilarity
		if err := rows.Scan(&ts.Term, &ts.Similarity); err != nil {
			return nil, fmt.Errorf("storage: scan similarity: %w", err)
		}
		out = append(out, ts)
	}
	return out, rows.Err()
}

func scanTerms(rows pgx.Rows) ([]model.StandardTerm, error) {
	var terms []model.StandardTerm
	for rows.Next() {
		var t model.StandardTerm
		if err := rows.Scan(
			&t.ID, &t.Term, &t.Category, &t.TermType, &t.FilmTypes, &t.Synonyms,
			&t.IsAutoExpanded, &t.ExpansionSource, &t.ExpansionReason, &t.ReviewStatus,
			&t.ReviewedBy, &t.ReviewedAt, &t.ReviewComment, &t.UsageCount, &t.CreatedAt, &t.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("storage: scan term: %w", err)
		}
		terms = append(terms, t)
	}
	return terms, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func unionStrings(base, extra []string) []string {
	seen := make(map[string]bool, len(base)+len(extra))
	out := make([]string, 0, len(base)+len(extra))
	for _, s := range base {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, s := range extra {
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
