package oracle

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundscape-ai/lexicon/internal/model"
)

type stubProvider struct {
	scores map[string]float64
	err    error
}

func (s *stubProvider) Name() string { return "stub" }

func (s *stubProvider) Score(_ context.Context, _, existing string) (float64, error) {
	if s.err != nil {
		return 0, s.err
	}
	return s.scores[existing], nil
}

func testOracle(t *testing.T, p Provider) *Oracle {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return New(p, logger, 0.8, 5, time.Second)
}

func TestAssessBands(t *testing.T) {
	tests := []struct {
		name       string
		highest    float64
		wantAction model.RecommendedAction
	}{
		{name: "at threshold rejects", highest: 0.82, wantAction: model.ActionReject},
		{name: "within review band", highest: 0.72, wantAction: model.ActionReview},
		{name: "review band lower edge", highest: 0.70, wantAction: model.ActionReview},
		{name: "below review band accepts", highest: 0.5, wantAction: model.ActionAccept},
		{name: "exactly threshold rejects", highest: 0.8, wantAction: model.ActionReject},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := testOracle(t, &stubProvider{scores: map[string]float64{"追逐": tt.highest, "枪战": 0.2}})
			a, err := o.Assess(context.Background(), "追击", []string{"追逐", "枪战"})
			require.NoError(t, err)
			assert.Equal(t, tt.wantAction, a.Action)
			assert.InDelta(t, tt.highest, a.Highest, 1e-9)
			assert.Equal(t, "追逐", a.SimilarTerm)
		})
	}
}

func TestAssessNoSimilarTerms(t *testing.T) {
	o := testOracle(t, &stubProvider{})

	a, err := o.Assess(context.Background(), "潜入", nil)
	require.NoError(t, err)
	assert.Equal(t, model.ActionAccept, a.Action)
	assert.Equal(t, "no similar terms", a.Message)
	assert.Zero(t, a.Highest)

	// A populated vocabulary that scores all zeros reads the same way.
	a, err = o.Assess(context.Background(), "潜入", []string{"追逐", "枪战"})
	require.NoError(t, err)
	assert.Equal(t, model.ActionAccept, a.Action)
	assert.Equal(t, "no similar terms", a.Message)
}

func TestAssessScoreListFilteredAndSorted(t *testing.T) {
	o := testOracle(t, &stubProvider{scores: map[string]float64{
		"追逐": 0.9,
		"枪战": 0.6,
		"悬疑": 0.5,
		"爆炸": 0.1,
	}})

	a, err := o.Assess(context.Background(), "追击", []string{"爆炸", "悬疑", "追逐", "枪战"})
	require.NoError(t, err)
	// Scores at or below 0.5 are dropped from the report; the rest
	// come back descending.
	assert.Equal(t, []Score{
		{Term: "追逐", Similarity: 0.9},
		{Term: "枪战", Similarity: 0.6},
	}, a.Scores)
	assert.Equal(t, model.ActionReject, a.Action)
}

func TestAssessFailOpen(t *testing.T) {
	o := testOracle(t, &stubProvider{err: errors.New("upstream down")})

	a, err := o.Assess(context.Background(), "追击", []string{"追逐", "枪战"})
	require.ErrorIs(t, err, model.ErrOracleFailure)
	// Scoring failures read as similarity 0: the candidate is accepted.
	assert.Equal(t, model.ActionAccept, a.Action)
	assert.Zero(t, a.Highest)
	assert.Empty(t, a.Scores)
}

func TestAssessChunking(t *testing.T) {
	// 12 terms across chunk size 5 means three chunks; every score must
	// still land at the right index.
	scores := map[string]float64{}
	existing := make([]string, 12)
	for i := range existing {
		existing[i] = string(rune('a' + i))
		scores[existing[i]] = 0.1
	}
	scores["k"] = 0.95

	o := testOracle(t, &stubProvider{scores: scores})
	a, err := o.Assess(context.Background(), "candidate", existing)
	require.NoError(t, err)
	assert.Equal(t, "k", a.SimilarTerm)
	assert.InDelta(t, 0.95, a.Highest, 1e-9)
	assert.Equal(t, model.ActionReject, a.Action)
}

func TestThresholdMonotonicity(t *testing.T) {
	// Lowering the threshold can only move a fixed score toward
	// rejection, never from reject back to accept.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	rank := map[model.RecommendedAction]int{
		model.ActionAccept: 0,
		model.ActionReview: 1,
		model.ActionReject: 2,
	}
	for _, sim := range []float64{0.05, 0.3, 0.55, 0.65, 0.7, 0.75, 0.8, 0.85, 0.95} {
		prev := -1
		for _, threshold := range []float64{0.95, 0.9, 0.85, 0.8, 0.75, 0.7} {
			o := New(&stubProvider{scores: map[string]float64{"x": sim}}, logger, threshold, 5, time.Second)
			a, err := o.Assess(context.Background(), "y", []string{"x"})
			require.NoError(t, err)
			cur := rank[a.Action]
			assert.GreaterOrEqual(t, cur, prev,
				"similarity %.2f: threshold %.2f moved the decision backwards", sim, threshold)
			prev = cur
		}
	}
}

func TestParseScore(t *testing.T) {
	tests := []struct {
		reply   string
		want    float64
		wantErr bool
	}{
		{reply: "0.82", want: 0.82},
		{reply: " 0.7\n", want: 0.7},
		{reply: "1", want: 1},
		{reply: "The similarity is 0.65.", want: 0.65},
		{reply: "no idea", wantErr: true},
		{reply: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.reply, func(t *testing.T) {
			got, err := parseScore(tt.reply)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestCosine(t *testing.T) {
	sim, err := cosine([]float32{1, 0}, []float32{1, 0})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, sim, 1e-9)

	sim, err = cosine([]float32{1, 0}, []float32{0, 1})
	require.NoError(t, err)
	assert.InDelta(t, 0.0, sim, 1e-9)

	_, err = cosine([]float32{1, 0}, []float32{1, 0, 0})
	require.Error(t, err)

	_, err = cosine([]float32{0, 0}, []float32{1, 0})
	require.Error(t, err)
}
