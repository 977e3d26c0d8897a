// Package model defines the core entities of the vocabulary engine:
// standard terms, expansion audit records, unrecognized-term counters,
// and the request/response shapes shared by the HTTP and MCP surfaces.
package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
)

// Category classifies which facet of a track a term describes.
type Category string

const (
	CategoryEmotion    Category = "emotion"
	CategoryStyle      Category = "style"
	CategoryInstrument Category = "instrument"
	CategoryFilm       Category = "film"
	CategoryScenario   Category = "scenario"
	CategoryDubbing    Category = "dubbing"
)

// Categories lists every valid category, in display order.
var Categories = []Category{
	CategoryEmotion, CategoryStyle, CategoryInstrument,
	CategoryFilm, CategoryScenario, CategoryDubbing,
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategoryEmotion, CategoryStyle, CategoryInstrument,
		CategoryFilm, CategoryScenario, CategoryDubbing:
		return true
	}
	return false
}

// TermType distinguishes the seeded core vocabulary from expanded entries.
type TermType string

const (
	TermTypeCore     TermType = "core"
	TermTypeExtended TermType = "extended"
)

// ReviewStatus is the approval state of a standard term.
type ReviewStatus string

const (
	ReviewPending  ReviewStatus = "pending"
	ReviewApproved ReviewStatus = "approved"
	ReviewRejected ReviewStatus = "rejected"
)

// ExpansionSource records which entry path created a term.
type ExpansionSource string

const (
	SourceManual                ExpansionSource = "manual"
	SourceManualImport          ExpansionSource = "manual-import"
	SourceManualApproveDirectly ExpansionSource = "manual_approve_directly"
	SourceAIRecommend           ExpansionSource = "ai-recommend"
	SourceAIAutoExpand          ExpansionSource = "ai-auto-expand"
	SourceAuto                  ExpansionSource = "auto"
)

// StandardTerm is a canonical vocabulary entry.
//
// Invariant: term is globally unique across the store regardless of
// category, and may never simultaneously appear in another term's
// synonyms list. The storage layer is the authoritative enforcement
// point; the conflict checker only makes violations cheap to reject.
type StandardTerm struct {
	ID              uuid.UUID       `json:"id"`
	Term            string          `json:"term"`
	Category        Category        `json:"category"`
	TermType        TermType        `json:"term_type"`
	FilmTypes       []string        `json:"film_types"`
	Synonyms        []string        `json:"synonyms"`
	IsAutoExpanded  bool            `json:"is_auto_expanded"`
	ExpansionSource ExpansionSource `json:"expansion_source"`
	ExpansionReason string          `json:"expansion_reason"`
	ReviewStatus    ReviewStatus    `json:"review_status"`
	ReviewedBy      *string         `json:"reviewed_by,omitempty"`
	ReviewedAt      *time.Time      `json:"reviewed_at,omitempty"`
	ReviewComment   *string         `json:"review_comment,omitempty"`
	UsageCount      int             `json:"usage_count"`

	// Embedding of the term text, used by the embedding similarity
	// provider. Nil when no embedding provider is configured.
	Embedding *pgvector.Vector `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
