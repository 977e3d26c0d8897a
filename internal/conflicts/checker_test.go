package conflicts

import (
	"context"
	"log/slog"
	"os"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundscape-ai/lexicon/internal/model"
)

type stubLister struct {
	terms []model.StandardTerm
	calls atomic.Int64
}

func (s *stubLister) ListApprovedTerms(_ context.Context, _ model.Category) ([]model.StandardTerm, error) {
	s.calls.Add(1)
	return s.terms, nil
}

func testVocabulary() []model.StandardTerm {
	return []model.StandardTerm{
		{Term: "追逐", Category: model.CategoryScenario, Synonyms: []string{"追击", "追赶"}},
		{Term: "枪战", Category: model.CategoryScenario, Synonyms: []string{"交火"}},
		{Term: "悬疑", Category: model.CategoryStyle},
	}
}

func newTestChecker(t *testing.T) (*Checker, *stubLister) {
	t.Helper()
	lister := &stubLister{terms: testVocabulary()}
	cache := NewCache(lister, slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})))
	return NewChecker(cache), lister
}

func TestCheckerCheck(t *testing.T) {
	checker, _ := newTestChecker(t)
	ctx := context.Background()

	tests := []struct {
		name          string
		candidate     string
		wantTerm      string
		wantConflict  bool
		wantDuplicate bool
	}{
		{
			name:          "exact standard term",
			candidate:     "追逐",
			wantConflict:  true,
			wantDuplicate: true,
			wantTerm:      "追逐",
		},
		{
			name:          "existing synonym names its owner",
			candidate:     "追击",
			wantConflict:  true,
			wantDuplicate: true,
			wantTerm:      "追逐",
		},
		{
			name:         "candidate contains existing term",
			candidate:    "追逐戏",
			wantConflict: true,
			wantTerm:     "追逐",
		},
		{
			name:         "existing term contains candidate",
			candidate:    "枪",
			wantConflict: true,
			wantTerm:     "枪战",
		},
		{
			name:         "containment crosses categories",
			candidate:    "悬疑感",
			wantConflict: true,
			wantTerm:     "悬疑",
		},
		{
			name:          "synonym match crosses categories",
			candidate:     "交火",
			wantConflict:  true,
			wantDuplicate: true,
			wantTerm:      "枪战",
		},
		{
			name:         "clean candidate",
			candidate:    "潜入",
			wantConflict: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := checker.Check(ctx, tt.candidate)
			require.NoError(t, err)
			assert.Equal(t, tt.wantConflict, res.HasConflict)
			assert.Equal(t, tt.wantDuplicate, res.Duplicate)
			if tt.wantConflict {
				assert.Equal(t, tt.wantTerm, res.ConflictingTerm)
				assert.NotEmpty(t, res.Message)
			}
		})
	}
}

func TestCheckerCheckAll(t *testing.T) {
	checker, _ := newTestChecker(t)
	ctx := context.Background()

	res, err := checker.CheckAll(ctx, "潜入", []string{"渗透", "追赶"})
	require.NoError(t, err)
	assert.True(t, res.HasConflict)
	assert.Equal(t, "追逐", res.ConflictingTerm)

	res, err = checker.CheckAll(ctx, "潜入", []string{"渗透"})
	require.NoError(t, err)
	assert.False(t, res.HasConflict)
}

func TestCacheInvalidate(t *testing.T) {
	checker, lister := newTestChecker(t)
	ctx := context.Background()

	_, err := checker.Check(ctx, "潜入")
	require.NoError(t, err)
	_, err = checker.Check(ctx, "潜入")
	require.NoError(t, err)
	assert.Equal(t, int64(1), lister.calls.Load(), "snapshot should be reused until invalidated")

	checker.cache.Invalidate()
	_, err = checker.Check(ctx, "潜入")
	require.NoError(t, err)
	assert.Equal(t, int64(2), lister.calls.Load())
}

func TestSnapshotEmptyVocabulary(t *testing.T) {
	snap := BuildSnapshot(nil)
	assert.Zero(t, snap.Size())
	assert.Empty(t, snap.TermsInCategory(model.CategoryScenario))
	res := checkAgainst(snap, "追逐")
	assert.False(t, res.HasConflict)
}
