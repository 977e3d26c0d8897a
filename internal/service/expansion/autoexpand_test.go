package expansion

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundscape-ai/lexicon/internal/model"
)

func addTracked(store *fakeStore, term string, category model.Category, count int, status model.ExpansionStatus, filmTypes ...string) uuid.UUID {
	id := uuid.New()
	fts := make([]model.FilmTypeCount, 0, len(filmTypes))
	for _, ft := range filmTypes {
		fts = append(fts, model.FilmTypeCount{FilmType: ft, Count: count})
	}
	store.unrecognized[id] = &model.UnrecognizedTerm{
		ID:               id,
		Term:             term,
		Category:         category,
		OccurrenceCount:  count,
		RelatedFilmTypes: fts,
		ExpansionStatus:  status,
	}
	return id
}

func TestAutoExpandSkipsUnboundFilmTypes(t *testing.T) {
	store := newFakeStore()
	engine := newTestEngine(t, store, nil)
	id := addTracked(store, "秘密潜入", model.CategoryScenario, 15, model.StatusEligible)

	resp, err := engine.AutoExpandEligible(context.Background(), []uuid.UUID{id}, 10)
	require.NoError(t, err)

	assert.Empty(t, resp.PromotedTerms)
	require.Len(t, resp.Skipped, 1)
	assert.Equal(t, "秘密潜入", resp.Skipped[0].Term)
	assert.Equal(t, "无法明确绑定影视类型", resp.Skipped[0].Reason)

	row := store.unrecognized[id]
	assert.Equal(t, model.StatusIneligible, row.ExpansionStatus)
	require.NotNil(t, row.RejectionReason)
	assert.Equal(t, "无法明确绑定影视类型", *row.RejectionReason)

	assert.Empty(t, store.terms, "a disqualified candidate never reaches the vocabulary")
	assert.Empty(t, store.ledger)
}

func TestAutoExpandSkipsStaleFrequency(t *testing.T) {
	// An eligible row whose count dropped below the gate (threshold
	// raised since eligibility was computed) is re-validated, not
	// trusted.
	store := newFakeStore()
	engine := newTestEngine(t, store, nil)
	id := addTracked(store, "突袭", model.CategoryScenario, 4, model.StatusEligible, "动作片")

	resp, err := engine.AutoExpandEligible(context.Background(), nil, 10)
	require.NoError(t, err)

	assert.Empty(t, resp.PromotedTerms)
	require.Len(t, resp.Skipped, 1)
	assert.Contains(t, resp.Skipped[0].Reason, "below threshold")
	assert.Equal(t, model.StatusEligible, store.unrecognized[id].ExpansionStatus,
		"a below-threshold row keeps accumulating, it is not disqualified")
	assert.Empty(t, store.terms)
}

func TestAutoExpandPromotesEligible(t *testing.T) {
	store := newFakeStore()
	engine := newTestEngine(t, store, nil)
	id := addTracked(store, "伏击", model.CategoryScenario, 12, model.StatusEligible, "警匪片", "动作片")

	resp, err := engine.AutoExpandEligible(context.Background(), nil, 10)
	require.NoError(t, err)

	assert.Empty(t, resp.Skipped)
	require.Len(t, resp.PromotedTerms, 1)
	promoted := resp.PromotedTerms[0]
	assert.Equal(t, "伏击", promoted.Term)
	assert.Equal(t, model.CategoryScenario, promoted.Category)

	inserted, ok := store.terms[promoted.TermID]
	require.True(t, ok)
	assert.Equal(t, model.ReviewApproved, inserted.ReviewStatus)
	assert.ElementsMatch(t, []string{"警匪片", "动作片"}, inserted.FilmTypes)

	assert.Equal(t, model.StatusExpanded, store.unrecognized[id].ExpansionStatus)

	require.Len(t, store.ledger, 1)
	rec := store.ledger[0]
	assert.Equal(t, model.SourceAuto, rec.ExpansionType)
	assert.Equal(t, resp.BatchID, rec.ExpansionBatchID)
}

func TestAutoExpandAlreadyCoveredTerm(t *testing.T) {
	// A candidate the vocabulary already covers can never promote; the
	// counter row is retired so it stops surfacing as eligible.
	store := newFakeStore()
	store.addApproved("追逐", model.CategoryScenario)
	engine := newTestEngine(t, store, nil)
	dupID := addTracked(store, "追逐", model.CategoryScenario, 20, model.StatusEligible, "动作片")
	okID := addTracked(store, "伏击", model.CategoryScenario, 12, model.StatusEligible, "警匪片")

	resp, err := engine.AutoExpandEligible(context.Background(), nil, 10)
	require.NoError(t, err)

	require.Len(t, resp.Skipped, 1)
	assert.Equal(t, "追逐", resp.Skipped[0].Term)
	assert.Equal(t, model.StatusIneligible, store.unrecognized[dupID].ExpansionStatus)

	require.Len(t, resp.PromotedTerms, 1, "one bad candidate never aborts the batch")
	assert.Equal(t, "伏击", resp.PromotedTerms[0].Term)
	assert.Equal(t, model.StatusExpanded, store.unrecognized[okID].ExpansionStatus)
}
