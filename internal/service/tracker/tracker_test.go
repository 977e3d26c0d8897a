package tracker

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundscape-ai/lexicon/internal/model"
)

// stubStore counts sightings in memory with the same eligibility rule
// as the real upsert.
type stubStore struct {
	rows map[string]*model.UnrecognizedTerm
}

func newStubStore() *stubStore {
	return &stubStore{rows: make(map[string]*model.UnrecognizedTerm)}
}

func (s *stubStore) UpsertUnrecognized(_ context.Context, term string, category model.Category, filmType string, minFrequency int) (model.UnrecognizedTerm, error) {
	key := term + "|" + string(category)
	u, ok := s.rows[key]
	if !ok {
		u = &model.UnrecognizedTerm{
			ID:              uuid.New(),
			Term:            term,
			Category:        category,
			ExpansionStatus: model.StatusPending,
		}
		s.rows[key] = u
	}
	u.OccurrenceCount++
	if filmType != "" {
		found := false
		for i := range u.RelatedFilmTypes {
			if u.RelatedFilmTypes[i].FilmType == filmType {
				u.RelatedFilmTypes[i].Count++
				found = true
			}
		}
		if !found {
			u.RelatedFilmTypes = append(u.RelatedFilmTypes, model.FilmTypeCount{FilmType: filmType, Count: 1})
		}
	}
	if u.Eligible(minFrequency) {
		u.ExpansionStatus = model.StatusEligible
	}
	return *u, nil
}

func (s *stubStore) ListEligibleUnrecognized(context.Context) ([]model.UnrecognizedTerm, error) {
	var out []model.UnrecognizedTerm
	for _, u := range s.rows {
		if u.ExpansionStatus == model.StatusEligible {
			out = append(out, *u)
		}
	}
	return out, nil
}

func (s *stubStore) GetUnrecognizedByIDs(_ context.Context, ids []uuid.UUID) ([]model.UnrecognizedTerm, error) {
	var out []model.UnrecognizedTerm
	for _, u := range s.rows {
		for _, id := range ids {
			if u.ID == id {
				out = append(out, *u)
			}
		}
	}
	return out, nil
}

func newService(store Store) *Service {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	return New(store, logger, 10)
}

func TestRecordEligibilityAtThreshold(t *testing.T) {
	svc := newService(newStubStore())
	ctx := context.Background()

	var resp model.RecordUnrecognizedResponse
	var err error
	for i := 0; i < 9; i++ {
		resp, err = svc.Record(ctx, "秘密潜入", model.CategoryScenario, "警匪片")
		require.NoError(t, err)
	}
	assert.Equal(t, 9, resp.OccurrenceCount)
	assert.False(t, resp.IsEligible)

	resp, err = svc.Record(ctx, "秘密潜入", model.CategoryScenario, "警匪片")
	require.NoError(t, err)
	assert.Equal(t, 10, resp.OccurrenceCount)
	assert.True(t, resp.IsEligible)
}

func TestRecordWithoutFilmTypeNeverEligible(t *testing.T) {
	svc := newService(newStubStore())
	ctx := context.Background()

	var resp model.RecordUnrecognizedResponse
	var err error
	for i := 0; i < 15; i++ {
		resp, err = svc.Record(ctx, "氛围铺垫", model.CategoryScenario, "")
		require.NoError(t, err)
	}
	assert.Equal(t, 15, resp.OccurrenceCount)
	assert.False(t, resp.IsEligible, "no film-type binding means no auto-expansion")
}

func TestRecordNormalizesTerm(t *testing.T) {
	store := newStubStore()
	svc := newService(store)
	ctx := context.Background()

	_, err := svc.Record(ctx, "追逐戏", model.CategoryScenario, "动作片")
	require.NoError(t, err)
	resp, err := svc.Record(ctx, " 追逐 ", model.CategoryScenario, "动作片")
	require.NoError(t, err)
	assert.Equal(t, 2, resp.OccurrenceCount, "suffix variants share one counter row")
}

func TestRecordRejectsBadInput(t *testing.T) {
	svc := newService(newStubStore())
	ctx := context.Background()

	_, err := svc.Record(ctx, "   ", model.CategoryScenario, "")
	assert.Error(t, err)

	_, err = svc.Record(ctx, "追逐", "genre", "")
	assert.Error(t, err)
}
