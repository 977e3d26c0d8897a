// Package oracle scores semantic similarity between a candidate term
// and the existing vocabulary, and turns the highest score into a
// recommended action. The scoring backend is pluggable; every backend
// is treated as unreliable: a failed or timed-out score counts as 0
// rather than blocking expansion.
package oracle

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/soundscape-ai/lexicon/internal/model"
)

// Provider scores one candidate/existing pair in [0, 1].
type Provider interface {
	Score(ctx context.Context, candidate, existing string) (float64, error)
	Name() string
}

// Score is one pairwise similarity result.
type Score struct {
	Term       string  `json:"term"`
	Similarity float64 `json:"similarity"`
}

// Assessment is the oracle's verdict on a candidate.
type Assessment struct {
	// Scores holds results above the reporting floor, descending.
	Scores []Score
	// Highest is the raw top similarity before the floor was applied.
	Highest float64
	// SimilarTerm is the existing term with the highest similarity.
	SimilarTerm string
	Action      model.RecommendedAction
	Message     string
}

// reportFloor drops low scores from the reported list. The decision
// bands all sit well above it, so filtering never changes the verdict.
const reportFloor = 0.5

// Oracle chunks pairwise scoring calls and applies the decision bands.
type Oracle struct {
	provider     Provider
	logger       *slog.Logger
	threshold    float64
	chunkSize    int
	chunkTimeout time.Duration
	concurrency  int
}

func New(provider Provider, logger *slog.Logger, threshold float64, chunkSize int, chunkTimeout time.Duration) *Oracle {
	if chunkSize <= 0 {
		chunkSize = 5
	}
	if chunkTimeout <= 0 {
		chunkTimeout = 15 * time.Second
	}
	return &Oracle{
		provider:     provider,
		logger:       logger,
		threshold:    threshold,
		chunkSize:    chunkSize,
		chunkTimeout: chunkTimeout,
		concurrency:  3,
	}
}

// Threshold returns the configured rejection threshold.
func (o *Oracle) Threshold() float64 { return o.threshold }

// Assess scores the candidate against every existing term and maps the
// highest similarity onto an action. Scoring failures are absorbed:
// the failed pair scores 0, the assessment is still produced, and the
// returned error wraps ErrOracleFailure so the caller can log it.
// A failed chunk never discards other chunks' results.
func (o *Oracle) Assess(ctx context.Context, candidate string, existing []string) (Assessment, error) {
	scores := make([]float64, len(existing))
	var failures atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)
	for start := 0; start < len(existing); start += o.chunkSize {
		end := min(start+o.chunkSize, len(existing))
		g.Go(func() error {
			cctx, cancel := context.WithTimeout(gctx, o.chunkTimeout)
			defer cancel()
			for i := start; i < end; i++ {
				s, err := o.provider.Score(cctx, candidate, existing[i])
				if err != nil {
					failures.Add(1)
					o.logger.Warn("similarity scoring failed, treating as 0",
						"provider", o.provider.Name(),
						"candidate", candidate,
						"existing", existing[i],
						"error", err)
					continue
				}
				scores[i] = clamp01(s)
			}
			// Failures are absorbed per pair, so the group never aborts.
			return nil
		})
	}
	_ = g.Wait()

	a := o.decide(existing, scores)
	if n := failures.Load(); n > 0 {
		return a, fmt.Errorf("oracle: %d of %d pairs failed: %w", n, len(existing), model.ErrOracleFailure)
	}
	return a, nil
}

// decide applies the similarity bands to the raw scores.
func (o *Oracle) decide(existing []string, scores []float64) Assessment {
	a := Assessment{}
	for i, s := range scores {
		if s > a.Highest {
			a.Highest = s
			a.SimilarTerm = existing[i]
		}
		if s > reportFloor {
			a.Scores = append(a.Scores, Score{Term: existing[i], Similarity: s})
		}
	}
	sort.SliceStable(a.Scores, func(i, j int) bool {
		return a.Scores[i].Similarity > a.Scores[j].Similarity
	})

	switch {
	case a.Highest == 0:
		a.Action = model.ActionAccept
		a.Message = "no similar terms"
	case a.Highest >= o.threshold:
		a.Action = model.ActionReject
		a.Message = fmt.Sprintf("similarity %.2f to %q is at or above %.2f", a.Highest, a.SimilarTerm, o.threshold)
	// Epsilon keeps 0.70 inside the review band: 0.8-0.1 does not
	// round to 0.7 in float64.
	case a.Highest+1e-9 >= o.threshold-0.1:
		a.Action = model.ActionReview
		a.Message = fmt.Sprintf("similarity %.2f to %q needs human review", a.Highest, a.SimilarTerm)
	default:
		a.Action = model.ActionAccept
		a.Message = fmt.Sprintf("highest similarity %.2f is below the review band", a.Highest)
	}
	return a
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
