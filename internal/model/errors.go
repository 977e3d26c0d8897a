package model

import (
	"errors"
	"fmt"
)

// The rejection-path errors carry a human-readable reason because both
// human reviewers and AI recommendation callers use it to decide whether
// to resubmit with a different term.

// DuplicateTermError reports that a term (or one of its synonyms) is
// already present in the vocabulary. Fatal to the submission; no retry.
type DuplicateTermError struct {
	Term string
}

func (e *DuplicateTermError) Error() string {
	return fmt.Sprintf("term %q already exists in the vocabulary", e.Term)
}

// ConflictError reports a structural near-duplicate found by the
// conflict checker (exact, synonym, or containment match). Fatal.
type ConflictError struct {
	Term            string
	ConflictingTerm string
	Message         string
}

func (e *ConflictError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("term %q conflicts with existing term %q", e.Term, e.ConflictingTerm)
}

// SimilarityRejectionError reports a semantic near-duplicate detected by
// the similarity oracle. Distinguished from ConflictError so the UI can
// message it differently.
type SimilarityRejectionError struct {
	Term        string
	SimilarTerm string
	Similarity  float64
}

func (e *SimilarityRejectionError) Error() string {
	return fmt.Sprintf("term %q is too similar to existing term %q (similarity %.2f)",
		e.Term, e.SimilarTerm, e.Similarity)
}

// IneligibleError reports that the frequency/binding gate was not met.
// Soft: on the auto path it is recorded on the unrecognized-term row
// rather than raised to a caller.
type IneligibleError struct {
	Term   string
	Reason string
}

func (e *IneligibleError) Error() string {
	return fmt.Sprintf("term %q is not eligible for expansion: %s", e.Term, e.Reason)
}

// ErrInvalidCandidate wraps structural validation failures on a
// submitted candidate (malformed term, unknown category, missing
// required fields). Maps to a 400 at the API boundary.
var ErrInvalidCandidate = errors.New("invalid candidate")

// ErrOracleFailure wraps similarity-oracle call failures. Non-fatal:
// the engine scores the affected pairs 0 and logs, per the fail-open
// policy.
var ErrOracleFailure = errors.New("similarity oracle call failed")

// ErrPartialBackfill reports that a promotion succeeded but the
// denormalized-record rewrite partially failed. Non-fatal; the
// inconsistency is reconcilable via the integrity sweep.
var ErrPartialBackfill = errors.New("backfill partially failed")
