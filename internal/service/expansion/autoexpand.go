package expansion

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/soundscape-ai/lexicon/internal/model"
)

// reasonNoFilmBinding disqualifies a tracker row with no genre
// histogram: a term never bound to a film type cannot be classified
// safely. Kept in Chinese because reviewers and the tagging UI read it.
const reasonNoFilmBinding = "无法明确绑定影视类型"

// AutoExpandEligible promotes frequency-triggered candidates in one
// batch. Empty candidateIDs means every currently eligible row. Each
// candidate is re-validated against the gate before promotion; stale
// eligibility is downgraded, not trusted.
//
// Failures are per-candidate: one disqualified or conflicting term
// never aborts the batch.
func (e *Engine) AutoExpandEligible(ctx context.Context, candidateIDs []uuid.UUID, minFrequency int) (model.AutoExpandResponse, error) {
	var (
		candidates []model.UnrecognizedTerm
		err        error
	)
	if len(candidateIDs) > 0 {
		candidates, err = e.store.GetUnrecognizedByIDs(ctx, candidateIDs)
	} else {
		candidates, err = e.store.ListEligibleUnrecognized(ctx)
	}
	if err != nil {
		return model.AutoExpandResponse{}, fmt.Errorf("expansion: load auto-expand candidates: %w", err)
	}

	resp := model.AutoExpandResponse{
		BatchID:       uuid.New(),
		PromotedTerms: []model.PromotedTerm{},
	}

	for _, u := range candidates {
		if len(u.RelatedFilmTypes) == 0 {
			if err := e.store.SetUnrecognizedStatus(ctx, u.ID, model.StatusIneligible, reasonNoFilmBinding); err != nil {
				e.logger.Error("expansion: mark ineligible", "term", u.Term, "error", err)
			}
			resp.Skipped = append(resp.Skipped, model.SkippedCandidate{Term: u.Term, Reason: reasonNoFilmBinding})
			continue
		}
		if u.OccurrenceCount < minFrequency {
			resp.Skipped = append(resp.Skipped, model.SkippedCandidate{
				Term:   u.Term,
				Reason: fmt.Sprintf("occurrence count %d below threshold %d", u.OccurrenceCount, minFrequency),
			})
			continue
		}

		filmTypes := make([]string, 0, len(u.RelatedFilmTypes))
		for _, ft := range u.RelatedFilmTypes {
			filmTypes = append(filmTypes, ft.FilmType)
		}

		result, err := e.Evaluate(ctx, Request{
			Path:         PathAuto,
			Term:         u.Term,
			Category:     u.Category,
			FilmTypes:    filmTypes,
			Reason:       fmt.Sprintf("seen %d times across %d film types", u.OccurrenceCount, len(u.RelatedFilmTypes)),
			TriggerCount: float64(u.OccurrenceCount),
			BatchID:      resp.BatchID,
		})
		if err != nil {
			var dup *model.DuplicateTermError
			var conflict *model.ConflictError
			if errors.As(err, &dup) || errors.As(err, &conflict) {
				// The vocabulary already covers this term; the counter
				// row will never promote.
				if serr := e.store.SetUnrecognizedStatus(ctx, u.ID, model.StatusIneligible, err.Error()); serr != nil {
					e.logger.Error("expansion: mark ineligible", "term", u.Term, "error", serr)
				}
				resp.Skipped = append(resp.Skipped, model.SkippedCandidate{Term: u.Term, Reason: err.Error()})
				continue
			}
			e.logger.Error("expansion: auto-expand candidate failed", "term", u.Term, "error", err)
			resp.Skipped = append(resp.Skipped, model.SkippedCandidate{Term: u.Term, Reason: err.Error()})
			continue
		}

		if err := e.store.SetUnrecognizedStatus(ctx, u.ID, model.StatusExpanded, ""); err != nil {
			e.logger.Error("expansion: mark expanded", "term", u.Term, "error", err)
		}
		resp.PromotedTerms = append(resp.PromotedTerms, model.PromotedTerm{
			TermID:       result.TermID,
			Term:         result.Term,
			Category:     u.Category,
			CleanedCount: result.CleanedCount,
		})
	}

	e.logger.Info("auto-expand batch complete",
		"batch_id", resp.BatchID,
		"promoted", len(resp.PromotedTerms),
		"skipped", len(resp.Skipped))
	return resp, nil
}
