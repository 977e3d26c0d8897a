// Package expansion orchestrates vocabulary growth: the three entry
// paths (frequency-triggered auto expansion, AI recommendation, manual
// entry) converge on one Evaluate pipeline that runs conflict checks
// before the similarity oracle and both before any write, then drives
// the review state machine over the stored candidates.
package expansion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"go.opentelemetry.io/otel/metric"

	"github.com/soundscape-ai/lexicon/internal/conflicts"
	"github.com/soundscape-ai/lexicon/internal/embedding"
	"github.com/soundscape-ai/lexicon/internal/integrity"
	"github.com/soundscape-ai/lexicon/internal/model"
	"github.com/soundscape-ai/lexicon/internal/naming"
	"github.com/soundscape-ai/lexicon/internal/oracle"
	"github.com/soundscape-ai/lexicon/internal/telemetry"
)

// Store is the storage surface the engine writes through. *storage.DB
// satisfies it.
type Store interface {
	InsertTerm(ctx context.Context, t model.StandardTerm) (uuid.UUID, error)
	MergeTerm(ctx context.Context, id uuid.UUID, newSynonyms, newFilmTypes []string) error
	SetReviewStatus(ctx context.Context, id uuid.UUID, status model.ReviewStatus, reviewer, comment string) error
	DeleteTerm(ctx context.Context, id uuid.UUID) error
	GetTerm(ctx context.Context, id uuid.UUID) (model.StandardTerm, error)
	IncrementUsage(ctx context.Context, id uuid.UUID, delta int) error
	UpdateTermEmbedding(ctx context.Context, id uuid.UUID, emb pgvector.Vector) error

	AppendExpansionRecord(ctx context.Context, rec model.ExpansionRecord) (model.ExpansionRecord, error)
	MarkHistoricalCleaned(ctx context.Context, id uuid.UUID, cleanedCount int, provenance []model.BackfillProvenance) error
	MarkManualRejected(ctx context.Context, termID uuid.UUID) error
	LatestExpansionRecordByTerm(ctx context.Context, termID uuid.UUID) (model.ExpansionRecord, error)

	BackfillScenarios(ctx context.Context, rawTerm, standardTerm string) (int, []model.BackfillProvenance, error)
	BackfillDubbing(ctx context.Context, rawTerm, standardTerm string) (int, []model.BackfillProvenance, error)
	RestoreScenarioExact(ctx context.Context, recordID uuid.UUID, standardTerm, original string) (bool, error)
	RestoreScenariosAll(ctx context.Context, standardTerm, synonym string) (int, error)
	RestoreDubbing(ctx context.Context, recordID *uuid.UUID, standardTerm, original string) (int, error)

	ListEligibleUnrecognized(ctx context.Context) ([]model.UnrecognizedTerm, error)
	GetUnrecognizedByIDs(ctx context.Context, ids []uuid.UUID) ([]model.UnrecognizedTerm, error)
	SetUnrecognizedStatus(ctx context.Context, id uuid.UUID, status model.ExpansionStatus, reason string) error
	FindUnrecognized(ctx context.Context, term string, category model.Category) (model.UnrecognizedTerm, error)
}

// Path selects the entry path for an expansion request.
type Path string

const (
	PathAuto   Path = "auto"
	PathAI     Path = "ai"
	PathManual Path = "manual"
)

// Request is a candidate submission through any of the three entry
// paths. Path is the discriminator; the per-path fields are documented
// inline.
type Request struct {
	Path     Path
	Term     string
	Category model.Category
	Synonyms []string

	// FilmTypes bind the term to the genres it was observed in.
	FilmTypes []string

	// Reason is required on the manual path and carried into the term's
	// expansion metadata on all paths.
	Reason string

	// Confidence is the recommender's self-reported confidence (ai path).
	Confidence float64

	// TriggerCount is the sighting count that triggered promotion (auto
	// path).
	TriggerCount float64

	// BatchID groups auto-path promotions from one AutoExpandEligible
	// run. Zero outside the auto path.
	BatchID uuid.UUID
}

// Result is the outcome of one evaluated candidate.
type Result struct {
	TermID            uuid.UUID
	Term              string
	ReviewStatus      model.ReviewStatus
	Message           string
	HighestSimilarity float64
	RecommendedAction model.RecommendedAction
	CleanedCount      int
}

// Engine runs candidate evaluation and the review state machine.
type Engine struct {
	store    Store
	cache    *conflicts.Cache
	checker  *conflicts.Checker
	oracle   *oracle.Oracle
	embedder embedding.Provider
	logger   *slog.Logger

	promotions    metric.Int64Counter
	oracleLatency metric.Float64Histogram
}

// New creates the engine. embedder may be nil when no embedding backend
// is configured; stored terms then carry no vectors.
func New(store Store, cache *conflicts.Cache, checker *conflicts.Checker, o *oracle.Oracle, embedder embedding.Provider, logger *slog.Logger) *Engine {
	meter := telemetry.Meter("lexicon/expansion")
	promotions, _ := meter.Int64Counter("lexicon.expansion.promotions",
		metric.WithDescription("Candidate terms promoted into the vocabulary"),
	)
	oracleLatency, _ := meter.Float64Histogram("lexicon.oracle.duration",
		metric.WithDescription("Similarity oracle assessment time (ms)"),
		metric.WithUnit("ms"),
	)
	return &Engine{
		store:         store,
		cache:         cache,
		checker:       checker,
		oracle:        o,
		embedder:      embedder,
		logger:        logger,
		promotions:    promotions,
		oracleLatency: oracleLatency,
	}
}

// Evaluate runs one candidate through the pipeline: normalization,
// conflict checks, the similarity oracle (ai path only), then the
// store. The conflict check always precedes the oracle, and both
// precede the insert.
//
// Rejections surface as typed errors: DuplicateTermError and
// ConflictError from the structural stage, SimilarityRejectionError
// from the oracle bands. A rejected candidate is never stored.
func (e *Engine) Evaluate(ctx context.Context, req Request) (Result, error) {
	term := naming.Normalize(req.Term)
	if !naming.Valid(term) {
		return Result{}, fmt.Errorf("%w: invalid term %q", model.ErrInvalidCandidate, req.Term)
	}
	if !req.Category.Valid() {
		return Result{}, fmt.Errorf("%w: unknown category %q", model.ErrInvalidCandidate, req.Category)
	}
	if req.Path == PathManual && strings.TrimSpace(req.Reason) == "" {
		return Result{}, fmt.Errorf("%w: manual submission of %q requires a reason", model.ErrInvalidCandidate, term)
	}
	synonyms := cleanSynonyms(req.Synonyms, term, req.Term)

	details := model.ValidationDetails{
		NamingNormalized:  true,
		SynonymsChecked:   true,
		ConflictsResolved: true,
	}

	// Cheap structural checks first.
	if res, err := e.checker.CheckAll(ctx, term, synonyms); err != nil {
		return Result{}, err
	} else if res.HasConflict {
		if res.Duplicate {
			return Result{}, &model.DuplicateTermError{Term: res.ConflictingTerm}
		}
		return Result{}, &model.ConflictError{
			Term:            term,
			ConflictingTerm: res.ConflictingTerm,
			Message:         res.Message,
		}
	}

	status := model.ReviewPending
	message := "stored pending review"
	switch req.Path {
	case PathAuto:
		// The frequency gate already vouched for the term; conflicts
		// were the only remaining check.
		status = model.ReviewApproved
		message = "auto-expanded into the vocabulary"
	case PathAI:
		assessment, err := e.assess(ctx, term, req.Category)
		if err != nil {
			return Result{}, err
		}
		details.SimilarityChecked = true
		details.HighestSimilarity = assessment.Highest
		details.RecommendedAction = assessment.Action
		switch assessment.Action {
		case model.ActionReject:
			return Result{}, &model.SimilarityRejectionError{
				Term:        term,
				SimilarTerm: assessment.SimilarTerm,
				Similarity:  assessment.Highest,
			}
		case model.ActionAccept:
			status = model.ReviewApproved
			message = assessment.Message
		default:
			message = assessment.Message
		}
	case PathManual:
		// The human is trusted past the oracle but never past review.
	default:
		return Result{}, fmt.Errorf("expansion: unknown path %q", req.Path)
	}

	termID, err := e.store.InsertTerm(ctx, e.buildTerm(req, term, synonyms, status))
	if err != nil {
		return Result{}, err
	}
	e.cache.Invalidate()
	e.storeEmbedding(ctx, termID, term)

	rec, err := e.appendLedger(ctx, req, termID, term, status, details)
	if err != nil {
		// The term is in; a missing audit entry is surfaced, not
		// compensated.
		e.logger.Error("expansion: ledger append failed", "term", term, "error", err)
	}

	result := Result{
		TermID:            termID,
		Term:              term,
		ReviewStatus:      status,
		Message:           message,
		HighestSimilarity: details.HighestSimilarity,
		RecommendedAction: details.RecommendedAction,
	}

	if status == model.ReviewApproved {
		e.promotions.Add(ctx, 1)
		cleaned, backfillErr := e.backfill(ctx, rec.ID, termID, term, synonyms)
		result.CleanedCount = cleaned
		if backfillErr != nil {
			e.logger.Warn("expansion: backfill incomplete",
				"term", term,
				"cleaned", cleaned,
				"error", backfillErr)
			result.Message = message + " (historical backfill incomplete)"
		}
	}

	e.logger.Info("candidate evaluated",
		"path", req.Path,
		"term", term,
		"category", req.Category,
		"status", status,
		"cleaned", result.CleanedCount)
	return result, nil
}

// assess scores the candidate against the approved terms in its
// category. Oracle failures are logged and absorbed per the fail-open
// policy.
func (e *Engine) assess(ctx context.Context, term string, category model.Category) (oracle.Assessment, error) {
	snap, err := e.cache.Snapshot(ctx)
	if err != nil {
		return oracle.Assessment{}, err
	}
	start := time.Now()
	assessment, err := e.oracle.Assess(ctx, term, snap.TermsInCategory(category))
	e.oracleLatency.Record(ctx, float64(time.Since(start).Milliseconds()))
	if err != nil {
		if !errors.Is(err, model.ErrOracleFailure) {
			return oracle.Assessment{}, err
		}
		e.logger.Warn("similarity oracle degraded, failing open", "term", term, "error", err)
	}
	return assessment, nil
}

func (e *Engine) buildTerm(req Request, term string, synonyms []string, status model.ReviewStatus) model.StandardTerm {
	t := model.StandardTerm{
		Term:            term,
		Category:        req.Category,
		TermType:        model.TermTypeExtended,
		FilmTypes:       req.FilmTypes,
		Synonyms:        synonyms,
		ExpansionReason: req.Reason,
		ReviewStatus:    status,
	}
	switch req.Path {
	case PathAuto:
		t.IsAutoExpanded = true
		t.ExpansionSource = model.SourceAuto
	case PathAI:
		t.ExpansionSource = model.SourceAIRecommend
	default:
		t.ExpansionSource = model.SourceManual
	}
	return t
}

func (e *Engine) appendLedger(ctx context.Context, req Request, termID uuid.UUID, term string, status model.ReviewStatus, details model.ValidationDetails) (model.ExpansionRecord, error) {
	rec := model.ExpansionRecord{
		ID:                uuid.New(),
		TermID:            &termID,
		Term:              term,
		Category:          req.Category,
		TermType:          model.TermTypeExtended,
		TriggerCount:      req.TriggerCount,
		BoundFilmTypes:    req.FilmTypes,
		ValidationPassed:  status == model.ReviewApproved,
		ValidationDetails: details,
		ExpansionBatchID:  req.BatchID,
		CreatedAt:         time.Now().UTC().Truncate(time.Microsecond),
	}
	switch req.Path {
	case PathAuto:
		rec.ExpansionType = model.SourceAuto
		rec.ExpandedBy = model.ExpandedByAuto
	case PathAI:
		rec.ExpansionType = model.SourceAIRecommend
		rec.ExpandedBy = model.ExpandedByAI
	default:
		rec.ExpansionType = model.SourceManual
		rec.ExpandedBy = model.ExpandedByManual
	}
	rec.ContentHash = integrity.HashRecord(rec)
	return e.store.AppendExpansionRecord(ctx, rec)
}

// storeEmbedding computes and persists the term vector. Best-effort:
// a missing vector only weakens the embedding similarity provider.
func (e *Engine) storeEmbedding(ctx context.Context, termID uuid.UUID, term string) {
	if e.embedder == nil {
		return
	}
	emb, err := e.embedder.Embed(ctx, term)
	if err != nil {
		e.logger.Warn("expansion: term embedding failed", "term", term, "error", err)
		return
	}
	if err := e.store.UpdateTermEmbedding(ctx, termID, emb); err != nil {
		e.logger.Warn("expansion: store term embedding failed", "term", term, "error", err)
	}
}

// cleanSynonyms trims, deduplicates, and drops the term itself from the
// synonym list. The raw pre-normalization spelling is kept as a synonym
// when suffix stripping changed the term, so lookups by the original
// surface string still resolve.
func cleanSynonyms(synonyms []string, term, rawTerm string) []string {
	seen := map[string]bool{term: true}
	out := make([]string, 0, len(synonyms)+1)
	if raw := strings.TrimSpace(rawTerm); raw != "" && raw != term {
		seen[raw] = true
		out = append(out, raw)
	}
	for _, s := range synonyms {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
