package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundscape-ai/lexicon/internal/auth"
	"github.com/soundscape-ai/lexicon/internal/model"
	"github.com/soundscape-ai/lexicon/internal/service/expansion"
)

type stubTracker struct {
	resp model.RecordUnrecognizedResponse
	err  error
}

func (s *stubTracker) Record(context.Context, string, model.Category, string) (model.RecordUnrecognizedResponse, error) {
	return s.resp, s.err
}

func (s *stubTracker) MinFrequency() int { return 10 }

type stubExpander struct {
	result    expansion.Result
	err       error
	batch     model.AutoExpandResponse
	review    model.ReviewTermsResponse
	reviewer  string
	evaluated []expansion.Request
}

func (s *stubExpander) Evaluate(_ context.Context, req expansion.Request) (expansion.Result, error) {
	s.evaluated = append(s.evaluated, req)
	return s.result, s.err
}

func (s *stubExpander) AutoExpandEligible(context.Context, []uuid.UUID, int) (model.AutoExpandResponse, error) {
	return s.batch, nil
}

func (s *stubExpander) Review(_ context.Context, _ []uuid.UUID, _ model.ReviewAction, reviewer, _ string) (model.ReviewTermsResponse, error) {
	s.reviewer = reviewer
	return s.review, nil
}

type stubVocab struct {
	resp *model.VocabularyResponse
}

func (s *stubVocab) VocabularyProjection(context.Context, model.Category) (*model.VocabularyResponse, error) {
	return s.resp, nil
}

type stubSweeper struct {
	report model.IntegrityReport
}

func (s *stubSweeper) Sweep(context.Context) (model.IntegrityReport, error) {
	return s.report, nil
}

type stubPinger struct{ err error }

func (s *stubPinger) Ping(context.Context) error { return s.err }

type testServer struct {
	srv      *Server
	jwtMgr   *auth.JWTManager
	tracker  *stubTracker
	expander *stubExpander
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	jwtMgr, err := auth.NewJWTManager("test-secret", time.Hour)
	require.NoError(t, err)
	keyHash, err := auth.HashAPIKey("sk-test-reviewer")
	require.NoError(t, err)

	tracker := &stubTracker{}
	expander := &stubExpander{}

	srv := New(Config{
		Handlers: HandlersDeps{
			DB:                  &stubPinger{},
			JWTMgr:              jwtMgr,
			Tracker:             tracker,
			Expander:            expander,
			Vocab:               &stubVocab{resp: &model.VocabularyResponse{Mapping: map[string]string{}, StandardList: []string{}}},
			Sweeper:             &stubSweeper{},
			Logger:              logger,
			Version:             "test",
			MaxRequestBodyBytes: 1 << 20,
			ReviewerKeyHash:     keyHash,
		},
		JWTMgr: jwtMgr,
		Logger: logger,
	})
	return &testServer{srv: srv, jwtMgr: jwtMgr, tracker: tracker, expander: expander}
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	var resp struct {
		Data model.HealthResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Data.Status)
	assert.Equal(t, "connected", resp.Data.Postgres)
}

func TestAuthToken(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/auth/token", "", model.AuthTokenRequest{
		Reviewer: "editor", APIKey: "sk-test-reviewer",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data model.AuthTokenResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	claims, err := ts.jwtMgr.ValidateToken(resp.Data.Token)
	require.NoError(t, err)
	assert.Equal(t, "editor", claims.Reviewer)
}

func TestAuthTokenWrongKey(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodPost, "/auth/token", "", model.AuthTokenRequest{
		Reviewer: "editor", APIKey: "sk-wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRecordUnrecognized(t *testing.T) {
	ts := newTestServer(t)
	ts.tracker.resp = model.RecordUnrecognizedResponse{OccurrenceCount: 10, IsEligible: true}

	rec := ts.do(t, http.MethodPost, "/v1/unrecognized", "", model.RecordUnrecognizedRequest{
		Term: "秘密潜入", Category: model.CategoryScenario, FilmType: "警匪片",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data model.RecordUnrecognizedResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 10, resp.Data.OccurrenceCount)
	assert.True(t, resp.Data.IsEligible)
}

func TestSubmitCandidate(t *testing.T) {
	ts := newTestServer(t)
	termID := uuid.New()
	ts.expander.result = expansion.Result{
		TermID:       termID,
		Term:         "伏击",
		ReviewStatus: model.ReviewApproved,
		Message:      "no similar terms found",
	}

	rec := ts.do(t, http.MethodPost, "/v1/candidates", "", model.SubmitCandidateRequest{
		Term: "伏击", Category: model.CategoryScenario, Source: "ai",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, ts.expander.evaluated, 1)
	assert.Equal(t, expansion.PathAI, ts.expander.evaluated[0].Path)

	var resp struct {
		Data model.SubmitCandidateResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, termID, resp.Data.TermID)
	assert.Equal(t, model.ReviewApproved, resp.Data.ReviewStatus)
}

func TestSubmitCandidateErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantErr  string
	}{
		{
			name:     "duplicate term",
			err:      &model.DuplicateTermError{Term: "追逐"},
			wantCode: http.StatusConflict,
			wantErr:  model.ErrCodeDuplicateTerm,
		},
		{
			name:     "containment conflict",
			err:      &model.ConflictError{Term: "追逐戏", ConflictingTerm: "追逐", Message: "overlap"},
			wantCode: http.StatusConflict,
			wantErr:  model.ErrCodeConflict,
		},
		{
			name:     "similarity rejection",
			err:      &model.SimilarityRejectionError{Term: "围捕", SimilarTerm: "追逐", Similarity: 0.85},
			wantCode: http.StatusUnprocessableEntity,
			wantErr:  model.ErrCodeSimilarityRejection,
		},
		{
			name:     "invalid candidate",
			err:      fmt.Errorf("%w: invalid term", model.ErrInvalidCandidate),
			wantCode: http.StatusBadRequest,
			wantErr:  model.ErrCodeInvalidInput,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t)
			ts.expander.err = tt.err

			rec := ts.do(t, http.MethodPost, "/v1/candidates", "", model.SubmitCandidateRequest{
				Term: "x", Category: model.CategoryScenario, Source: "manual", Reason: "r",
			})
			assert.Equal(t, tt.wantCode, rec.Code)

			var resp model.APIError
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantErr, resp.Error.Code)
		})
	}
}

func TestSubmitCandidateUnknownSource(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodPost, "/v1/candidates", "", model.SubmitCandidateRequest{
		Term: "伏击", Category: model.CategoryScenario, Source: "batch",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, ts.expander.evaluated)
}

func TestReviewRequiresToken(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodPost, "/v1/review", "", model.ReviewTermsRequest{
		TermIDs: []uuid.UUID{uuid.New()}, Action: model.ReviewActionApprove,
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestReviewUsesTokenReviewer(t *testing.T) {
	ts := newTestServer(t)
	token, _, err := ts.jwtMgr.IssueToken("editor@lexicon")
	require.NoError(t, err)

	rec := ts.do(t, http.MethodPost, "/v1/review", token, model.ReviewTermsRequest{
		TermIDs: []uuid.UUID{uuid.New()}, Action: model.ReviewActionApprove,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "editor@lexicon", ts.expander.reviewer)
}

func TestAutoExpandRequiresToken(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodPost, "/v1/auto-expand", "", model.AutoExpandRequest{})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token, _, err := ts.jwtMgr.IssueToken("editor")
	require.NoError(t, err)
	rec = ts.do(t, http.MethodPost, "/v1/auto-expand", token, model.AutoExpandRequest{})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestVocabulary(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/v1/vocabulary?category=scenario", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodGet, "/v1/vocabulary?category=bogus", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIntegrityRequiresToken(t *testing.T) {
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodGet, "/v1/integrity", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRejectsUnknownFields(t *testing.T) {
	ts := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/v1/unrecognized",
		bytes.NewBufferString(`{"term":"x","category":"scenario","bogus":true}`))
	rec := httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
