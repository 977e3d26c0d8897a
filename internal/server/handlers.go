package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/soundscape-ai/lexicon/internal/auth"
	"github.com/soundscape-ai/lexicon/internal/model"
	"github.com/soundscape-ai/lexicon/internal/service/expansion"
	"github.com/soundscape-ai/lexicon/internal/storage"
)

// Tracker records unrecognized term sightings.
type Tracker interface {
	Record(ctx context.Context, term string, category model.Category, filmType string) (model.RecordUnrecognizedResponse, error)
	MinFrequency() int
}

// Expander evaluates candidates and drives the review state machine.
// *expansion.Engine satisfies it.
type Expander interface {
	Evaluate(ctx context.Context, req expansion.Request) (expansion.Result, error)
	AutoExpandEligible(ctx context.Context, candidateIDs []uuid.UUID, minFrequency int) (model.AutoExpandResponse, error)
	Review(ctx context.Context, termIDs []uuid.UUID, action model.ReviewAction, reviewer, comment string) (model.ReviewTermsResponse, error)
}

// VocabularyReader serves the read-only vocabulary projection.
type VocabularyReader interface {
	VocabularyProjection(ctx context.Context, category model.Category) (*model.VocabularyResponse, error)
}

// Sweeper runs the integrity consistency sweep.
type Sweeper interface {
	Sweep(ctx context.Context) (model.IntegrityReport, error)
}

// Pinger reports database liveness for the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handlers holds HTTP handler dependencies.
type Handlers struct {
	db                  Pinger
	jwtMgr              *auth.JWTManager
	tracker             Tracker
	expander            Expander
	vocab               VocabularyReader
	sweeper             Sweeper
	logger              *slog.Logger
	startedAt           time.Time
	version             string
	maxRequestBodyBytes int64
	reviewerKeyHash     string
}

// HandlersDeps holds all dependencies for constructing Handlers.
// ReviewerKeyHash is the Argon2id hash of the bootstrap reviewer API
// key; empty disables token issuance.
type HandlersDeps struct {
	DB                  Pinger
	JWTMgr              *auth.JWTManager
	Tracker             Tracker
	Expander            Expander
	Vocab               VocabularyReader
	Sweeper             Sweeper
	Logger              *slog.Logger
	Version             string
	MaxRequestBodyBytes int64
	ReviewerKeyHash     string
}

// NewHandlers creates a new Handlers with all dependencies.
func NewHandlers(d HandlersDeps) *Handlers {
	return &Handlers{
		db:                  d.DB,
		jwtMgr:              d.JWTMgr,
		tracker:             d.Tracker,
		expander:            d.Expander,
		vocab:               d.Vocab,
		sweeper:             d.Sweeper,
		logger:              d.Logger,
		startedAt:           time.Now(),
		version:             d.Version,
		maxRequestBodyBytes: d.MaxRequestBodyBytes,
		reviewerKeyHash:     d.ReviewerKeyHash,
	}
}

// HandleAuthToken handles POST /auth/token.
func (h *Handlers) HandleAuthToken(w http.ResponseWriter, r *http.Request) {
	var req model.AuthTokenRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.Reviewer) == "" || req.APIKey == "" {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "reviewer and api_key are required")
		return
	}

	if h.reviewerKeyHash == "" {
		auth.DummyVerify()
		writeError(w, r, http.StatusUnauthorized, model.ErrCodeUnauthorized, "invalid credentials")
		return
	}

	ok, err := auth.VerifyAPIKey(req.APIKey, h.reviewerKeyHash)
	if err != nil || !ok {
		writeError(w, r, http.StatusUnauthorized, model.ErrCodeUnauthorized, "invalid credentials")
		return
	}

	token, exp, err := h.jwtMgr.IssueToken(req.Reviewer)
	if err != nil {
		h.logger.Error("issue token failed", "reviewer", req.Reviewer, "error", err)
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "token issuance failed")
		return
	}

	writeJSON(w, r, http.StatusOK, model.AuthTokenResponse{Token: token, ExpiresAt: exp})
}

// HandleRecordUnrecognized handles POST /v1/unrecognized.
func (h *Handlers) HandleRecordUnrecognized(w http.ResponseWriter, r *http.Request) {
	var req model.RecordUnrecognizedRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}

	resp, err := h.tracker.Record(r.Context(), req.Term, req.Category, req.FilmType)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}
	writeJSON(w, r, http.StatusOK, resp)
}

// HandleSubmitCandidate handles POST /v1/candidates.
func (h *Handlers) HandleSubmitCandidate(w http.ResponseWriter, r *http.Request) {
	var req model.SubmitCandidateRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}

	var path expansion.Path
	switch req.Source {
	case "ai":
		path = expansion.PathAI
	case "manual", "":
		path = expansion.PathManual
	default:
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput,
			"source must be \"manual\" or \"ai\"")
		return
	}

	result, err := h.expander.Evaluate(r.Context(), expansion.Request{
		Path:       path,
		Term:       req.Term,
		Category:   req.Category,
		Synonyms:   req.Synonyms,
		FilmTypes:  req.FilmTypes,
		Reason:     req.Reason,
		Confidence: req.Confidence,
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusCreated, model.SubmitCandidateResponse{
		TermID:            result.TermID,
		ReviewStatus:      result.ReviewStatus,
		Message:           result.Message,
		HighestSimilarity: result.HighestSimilarity,
		RecommendedAction: result.RecommendedAction,
	})
}

// HandleAutoExpand handles POST /v1/auto-expand.
func (h *Handlers) HandleAutoExpand(w http.ResponseWriter, r *http.Request) {
	var req model.AutoExpandRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}

	minFrequency := req.MinFrequency
	if minFrequency <= 0 {
		minFrequency = h.tracker.MinFrequency()
	}

	resp, err := h.expander.AutoExpandEligible(r.Context(), req.CandidateIDs, minFrequency)
	if err != nil {
		h.logger.Error("auto expand failed", "error", err)
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "auto expansion failed")
		return
	}
	writeJSON(w, r, http.StatusOK, resp)
}

// HandleReview handles POST /v1/review. The reviewer identity comes
// from the validated token, never from the body.
func (h *Handlers) HandleReview(w http.ResponseWriter, r *http.Request) {
	claims := ClaimsFromContext(r.Context())
	if claims == nil {
		writeError(w, r, http.StatusUnauthorized, model.ErrCodeUnauthorized, "no claims in context")
		return
	}

	var req model.ReviewTermsRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	if len(req.TermIDs) == 0 {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "term_ids is required")
		return
	}

	resp, err := h.expander.Review(r.Context(), req.TermIDs, req.Action, claims.Reviewer, req.Comment)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}
	writeJSON(w, r, http.StatusOK, resp)
}

// HandleVocabulary handles GET /v1/vocabulary.
func (h *Handlers) HandleVocabulary(w http.ResponseWriter, r *http.Request) {
	category := model.Category(r.URL.Query().Get("category"))
	if category != "" && !category.Valid() {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "unknown category")
		return
	}

	resp, err := h.vocab.VocabularyProjection(r.Context(), category)
	if err != nil {
		h.logger.Error("vocabulary projection failed", "error", err)
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "vocabulary lookup failed")
		return
	}
	writeJSON(w, r, http.StatusOK, resp)
}

// HandleIntegrity handles GET /v1/integrity.
func (h *Handlers) HandleIntegrity(w http.ResponseWriter, r *http.Request) {
	report, err := h.sweeper.Sweep(r.Context())
	if err != nil {
		h.logger.Error("integrity sweep failed", "error", err)
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "integrity sweep failed")
		return
	}
	writeJSON(w, r, http.StatusOK, report)
}

// HandleHealth handles GET /health.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	pgStatus := "connected"
	status := "healthy"
	httpStatus := http.StatusOK

	if err := h.db.Ping(r.Context()); err != nil {
		pgStatus = "disconnected"
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, r, httpStatus, model.HealthResponse{
		Status:   status,
		Version:  h.version,
		Postgres: pgStatus,
		Uptime:   int64(time.Since(h.startedAt).Seconds()),
	})
}

// writeDomainError maps typed evaluation errors to HTTP statuses.
func (h *Handlers) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		dupErr      *model.DuplicateTermError
		conflictErr *model.ConflictError
		simErr      *model.SimilarityRejectionError
	)
	switch {
	case errors.As(err, &dupErr):
		writeErrorDetails(w, r, http.StatusConflict, model.ErrCodeDuplicateTerm, err.Error(),
			map[string]string{"term": dupErr.Term})
	case errors.As(err, &conflictErr):
		writeErrorDetails(w, r, http.StatusConflict, model.ErrCodeConflict, err.Error(),
			map[string]string{"term": conflictErr.Term, "conflicting_term": conflictErr.ConflictingTerm})
	case errors.As(err, &simErr):
		writeErrorDetails(w, r, http.StatusUnprocessableEntity, model.ErrCodeSimilarityRejection, err.Error(),
			map[string]any{"term": simErr.Term, "similar_term": simErr.SimilarTerm, "similarity": simErr.Similarity})
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "not found")
	case errors.Is(err, model.ErrInvalidCandidate):
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
	default:
		h.logger.Error("candidate evaluation failed", "error", err)
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "evaluation failed")
	}
}
