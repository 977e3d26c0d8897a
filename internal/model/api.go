package model

import (
	"time"

	"github.com/google/uuid"
)

// APIResponse is the standard envelope for successful responses.
type APIResponse struct {
	Data any          `json:"data,omitempty"`
	Meta ResponseMeta `json:"meta"`
}

// APIError is the standard error response envelope.
type APIError struct {
	Error ErrorDetail  `json:"error"`
	Meta  ResponseMeta `json:"meta"`
}

// ResponseMeta contains request metadata included in every response.
type ResponseMeta struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorDetail describes an API error. Message is always human-readable;
// rejection paths additionally name the conflicting term in Details.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorCode constants for standard API error codes.
const (
	ErrCodeInvalidInput        = "INVALID_INPUT"
	ErrCodeUnauthorized        = "UNAUTHORIZED"
	ErrCodeNotFound            = "NOT_FOUND"
	ErrCodeDuplicateTerm       = "DUPLICATE_TERM"
	ErrCodeConflict            = "TERM_CONFLICT"
	ErrCodeSimilarityRejection = "SIMILARITY_REJECTION"
	ErrCodeRateLimited         = "RATE_LIMITED"
	ErrCodeInternalError       = "INTERNAL_ERROR"
)

// RecordUnrecognizedRequest is the body for POST /v1/unrecognized.
type RecordUnrecognizedRequest struct {
	Term     string   `json:"term"`
	Category Category `json:"category"`
	FilmType string   `json:"film_type,omitempty"`
}

// RecordUnrecognizedResponse reports the updated counter state.
type RecordUnrecognizedResponse struct {
	OccurrenceCount int  `json:"occurrence_count"`
	IsEligible      bool `json:"is_eligible"`
}

// SubmitCandidateRequest is the body for POST /v1/candidates.
// Source selects the entry path: "manual" or "ai".
type SubmitCandidateRequest struct {
	Term       string   `json:"term"`
	Category   Category `json:"category"`
	Synonyms   []string `json:"synonyms,omitempty"`
	FilmTypes  []string `json:"film_types,omitempty"`
	Reason     string   `json:"reason,omitempty"`
	Source     string   `json:"source"`
	Confidence float64  `json:"confidence,omitempty"` // ai path only
}

// SubmitCandidateResponse reports the stored term and its review state.
type SubmitCandidateResponse struct {
	TermID            uuid.UUID         `json:"term_id"`
	ReviewStatus      ReviewStatus      `json:"review_status"`
	Message           string            `json:"message"`
	HighestSimilarity float64           `json:"highest_similarity,omitempty"`
	RecommendedAction RecommendedAction `json:"recommended_action,omitempty"`
}

// AutoExpandRequest is the body for POST /v1/auto-expand.
// Empty CandidateIDs means every currently eligible row.
type AutoExpandRequest struct {
	CandidateIDs []uuid.UUID `json:"candidate_ids,omitempty"`
	MinFrequency int         `json:"min_frequency,omitempty"`
}

// PromotedTerm is one successful promotion within an auto-expand batch.
type PromotedTerm struct {
	TermID       uuid.UUID `json:"term_id"`
	Term         string    `json:"term"`
	Category     Category  `json:"category"`
	CleanedCount int       `json:"cleaned_count"`
}

// SkippedCandidate is one auto-expand candidate that was disqualified.
type SkippedCandidate struct {
	Term   string `json:"term"`
	Reason string `json:"reason"`
}

// AutoExpandResponse reports the batch outcome.
type AutoExpandResponse struct {
	BatchID       uuid.UUID          `json:"batch_id"`
	PromotedTerms []PromotedTerm     `json:"promoted_terms"`
	Skipped       []SkippedCandidate `json:"skipped,omitempty"`
}

// ReviewAction is a human review decision.
type ReviewAction string

const (
	ReviewActionApprove ReviewAction = "approve"
	ReviewActionReject  ReviewAction = "reject"
)

// ReviewTermsRequest is the body for POST /v1/review.
type ReviewTermsRequest struct {
	TermIDs []uuid.UUID  `json:"term_ids"`
	Action  ReviewAction `json:"action"`
	Comment string       `json:"comment,omitempty"`
}

// ReviewResult is the outcome for one reviewed term.
type ReviewResult struct {
	TermID        uuid.UUID    `json:"term_id"`
	Term          string       `json:"term,omitempty"`
	Status        ReviewStatus `json:"status,omitempty"`
	RestoredCount int          `json:"restored_count,omitempty"`
	Error         string       `json:"error,omitempty"`
}

// ReviewTermsResponse reports per-term review outcomes.
type ReviewTermsResponse struct {
	Results []ReviewResult `json:"results"`
}

// VocabularyResponse is the read-only projection for downstream
// classifiers: every term and synonym mapped to its standard term, plus
// the flat list of standard terms.
type VocabularyResponse struct {
	Mapping      map[string]string `json:"mapping"`
	StandardList []string          `json:"standard_list"`
}

// IntegrityReport is the result of the diagnostic consistency sweep.
type IntegrityReport struct {
	Errors      []string `json:"errors"`
	Warnings    []string `json:"warnings"`
	Suggestions []string `json:"suggestions"`
}

// AuthTokenRequest is the body for POST /auth/token.
type AuthTokenRequest struct {
	Reviewer string `json:"reviewer"`
	APIKey   string `json:"api_key"`
}

// AuthTokenResponse carries the issued bearer token.
type AuthTokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// HealthResponse is the body for GET /health.
type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Postgres string `json:"postgres"`
	Uptime   int64  `json:"uptime_seconds"`
}
