package model

import (
	"time"

	"github.com/google/uuid"
)

// ExpandedBy identifies the actor class behind an expansion decision.
type ExpandedBy string

const (
	ExpandedByAuto   ExpandedBy = "auto"
	ExpandedByAI     ExpandedBy = "ai"
	ExpandedByManual ExpandedBy = "manual"
)

// ExpansionTypeManualRejected marks a ledger entry whose term was later
// rejected by a human reviewer. It is the only mutation the append-only
// ledger permits besides attaching backfill results.
const ExpansionTypeManualRejected ExpansionSource = "manual-rejected"

// RecommendedAction is the similarity-band decision for a candidate.
type RecommendedAction string

const (
	ActionAccept RecommendedAction = "accept"
	ActionReview RecommendedAction = "review"
	ActionReject RecommendedAction = "reject"
)

// BackfillProvenance records one historical rewrite so rollback can
// restore the exact original string instead of guessing from synonyms.
type BackfillProvenance struct {
	RecordID uuid.UUID `json:"record_id"`
	Field    string    `json:"field"` // "scenarios" or "dubbing"
	Original string    `json:"original"`
}

// ValidationDetails is the structured validation metadata attached to an
// expansion record.
type ValidationDetails struct {
	NamingNormalized  bool    `json:"naming_normalized"`
	SynonymsChecked   bool    `json:"synonyms_checked"`
	ConflictsResolved bool    `json:"conflicts_resolved"`
	SimilarityChecked bool    `json:"similarity_checked,omitempty"`
	HighestSimilarity float64 `json:"highest_similarity,omitempty"`

	RecommendedAction RecommendedAction `json:"recommended_action,omitempty"`

	// Provenance of the backfill rewrites, keyed by analysis record.
	// Populated when the backfill step runs; empty for legacy entries,
	// in which case rollback falls back to first-synonym restoration.
	BackfillProvenance []BackfillProvenance `json:"backfill_provenance,omitempty"`
}

// ExpansionRecord is one immutable audit entry per expansion decision.
//
// Entries are never physically deleted. TermID is a weak reference: the
// audit entry survives deletion of the term it describes.
type ExpansionRecord struct {
	ID                    uuid.UUID         `json:"id"`
	TermID                *uuid.UUID        `json:"term_id,omitempty"`
	Term                  string            `json:"term"`
	Category              Category          `json:"category"`
	TermType              TermType          `json:"term_type"`
	TriggerCount          float64           `json:"trigger_count"`
	BoundFilmTypes        []string          `json:"bound_film_types"`
	ValidationPassed      bool              `json:"validation_passed"`
	ValidationDetails     ValidationDetails `json:"validation_details"`
	ExpansionType         ExpansionSource   `json:"expansion_type"`
	ExpandedBy            ExpandedBy        `json:"expanded_by"`
	ExpansionBatchID      uuid.UUID         `json:"expansion_batch_id"`
	HistoricalDataCleaned bool              `json:"historical_data_cleaned"`
	CleanedCount          int               `json:"cleaned_count"`

	// Tamper-evident SHA-256 content hash over the canonical fields,
	// computed at append time and re-verified by the integrity sweep.
	ContentHash string `json:"content_hash,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}
