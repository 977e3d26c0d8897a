package model

import (
	"time"

	"github.com/google/uuid"
)

// ExpansionStatus is the lifecycle state of an unrecognized-term row.
type ExpansionStatus string

const (
	StatusPending    ExpansionStatus = "pending"
	StatusEligible   ExpansionStatus = "eligible"
	StatusIneligible ExpansionStatus = "ineligible"
	StatusRejected   ExpansionStatus = "rejected"
	StatusExpanded   ExpansionStatus = "expanded"
)

// FilmTypeCount is one bucket of the related-film-type histogram.
type FilmTypeCount struct {
	FilmType string `json:"film_type"`
	Count    int    `json:"count"`
}

// UnrecognizedTerm counts raw strings that failed standardization.
//
// Unique on (term, category). A row becomes eligible for auto-expansion
// once OccurrenceCount reaches the configured minimum frequency and at
// least one related film type has been observed — a term with no genre
// binding cannot be safely classified and never auto-expands.
type UnrecognizedTerm struct {
	ID               uuid.UUID       `json:"id"`
	Term             string          `json:"term"`
	Category         Category        `json:"category"`
	OccurrenceCount  int             `json:"occurrence_count"`
	FirstSeenAt      time.Time       `json:"first_seen_at"`
	LastSeenAt       time.Time       `json:"last_seen_at"`
	RelatedFilmTypes []FilmTypeCount `json:"related_film_types"` // sorted descending by count
	ExpansionStatus  ExpansionStatus `json:"expansion_status"`
	RejectionReason  *string         `json:"rejection_reason,omitempty"`
}

// Eligible reports whether the row meets the auto-expansion gate.
func (u UnrecognizedTerm) Eligible(minFrequency int) bool {
	return u.OccurrenceCount >= minFrequency && len(u.RelatedFilmTypes) > 0
}
