package expansion

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/soundscape-ai/lexicon/internal/model"
	"github.com/soundscape-ai/lexicon/internal/storage"
)

// Review applies one human decision to a set of pending terms. Results
// are per-term; a failed term never blocks the rest of the batch.
func (e *Engine) Review(ctx context.Context, termIDs []uuid.UUID, action model.ReviewAction, reviewer, comment string) (model.ReviewTermsResponse, error) {
	if action != model.ReviewActionApprove && action != model.ReviewActionReject {
		return model.ReviewTermsResponse{}, fmt.Errorf("expansion: unknown review action %q", action)
	}

	resp := model.ReviewTermsResponse{Results: make([]model.ReviewResult, 0, len(termIDs))}
	for _, id := range termIDs {
		var result model.ReviewResult
		if action == model.ReviewActionApprove {
			result = e.approve(ctx, id, reviewer, comment)
		} else {
			result = e.reject(ctx, id, reviewer, comment)
		}
		resp.Results = append(resp.Results, result)
	}
	return resp, nil
}

// approve activates a pending term and completes its promotion: the
// historical backfill that was deferred while the term awaited review
// runs now.
func (e *Engine) approve(ctx context.Context, id uuid.UUID, reviewer, comment string) model.ReviewResult {
	term, err := e.store.GetTerm(ctx, id)
	if err != nil {
		return reviewError(id, err)
	}
	if term.ReviewStatus != model.ReviewPending {
		return model.ReviewResult{
			TermID: id,
			Term:   term.Term,
			Error:  fmt.Sprintf("term is %s, only pending terms can be approved", term.ReviewStatus),
		}
	}

	if err := e.store.SetReviewStatus(ctx, id, model.ReviewApproved, reviewer, comment); err != nil {
		return reviewError(id, err)
	}
	e.cache.Invalidate()
	e.promotions.Add(ctx, 1)

	var ledgerID uuid.UUID
	if rec, err := e.store.LatestExpansionRecordByTerm(ctx, id); err == nil {
		ledgerID = rec.ID
	}
	cleaned, err := e.backfill(ctx, ledgerID, id, term.Term, term.Synonyms)
	if err != nil {
		e.logger.Warn("review: backfill incomplete", "term", term.Term, "cleaned", cleaned, "error", err)
	}

	// A tracker row for the same surface string is settled by approval.
	if u, err := e.store.FindUnrecognized(ctx, term.Term, term.Category); err == nil {
		if serr := e.store.SetUnrecognizedStatus(ctx, u.ID, model.StatusExpanded, ""); serr != nil {
			e.logger.Error("review: mark tracker expanded", "term", term.Term, "error", serr)
		}
	}

	e.logger.Info("term approved", "term", term.Term, "reviewer", reviewer, "cleaned", cleaned)
	return model.ReviewResult{
		TermID: id,
		Term:   term.Term,
		Status: model.ReviewApproved,
	}
}

// reject rolls a pending term back out of the vocabulary: restore the
// analysis records first (restoration needs the synonyms still on the
// term row), tombstone the ledger entries, then delete the term.
func (e *Engine) reject(ctx context.Context, id uuid.UUID, reviewer, comment string) model.ReviewResult {
	term, err := e.store.GetTerm(ctx, id)
	if err != nil {
		return reviewError(id, err)
	}
	if term.ReviewStatus != model.ReviewPending {
		return model.ReviewResult{
			TermID: id,
			Term:   term.Term,
			Error:  fmt.Sprintf("term is %s, only pending terms can be rejected", term.ReviewStatus),
		}
	}

	restored, err := e.rollbackBackfill(ctx, term)
	if err != nil {
		// Deleting the term now would strand the remaining rewrites
		// with no synonyms to restore from.
		return reviewError(id, err)
	}

	if err := e.store.MarkManualRejected(ctx, id); err != nil {
		e.logger.Error("review: mark ledger rejected", "term", term.Term, "error", err)
	}
	if err := e.store.DeleteTerm(ctx, id); err != nil {
		return reviewError(id, err)
	}
	e.cache.Invalidate()

	if u, err := e.store.FindUnrecognized(ctx, term.Term, term.Category); err == nil {
		reason := comment
		if reason == "" {
			reason = fmt.Sprintf("rejected by %s", reviewer)
		}
		if serr := e.store.SetUnrecognizedStatus(ctx, u.ID, model.StatusIneligible, reason); serr != nil {
			e.logger.Error("review: mark tracker ineligible", "term", term.Term, "error", serr)
		}
	}

	e.logger.Info("term rejected",
		"term", term.Term,
		"reviewer", reviewer,
		"restored", restored)
	return model.ReviewResult{
		TermID:        id,
		Term:          term.Term,
		Status:        model.ReviewRejected,
		RestoredCount: restored,
	}
}

func reviewError(id uuid.UUID, err error) model.ReviewResult {
	msg := err.Error()
	if errors.Is(err, storage.ErrNotFound) {
		msg = "term not found"
	}
	return model.ReviewResult{TermID: id, Error: msg}
}
