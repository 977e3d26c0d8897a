package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mcplib "github.com/mark3labs/mcp-go/mcp"

	"github.com/soundscape-ai/lexicon/internal/model"
	"github.com/soundscape-ai/lexicon/internal/service/expansion"
)

type stubTracker struct {
	resp model.RecordUnrecognizedResponse
	err  error
	last struct {
		term     string
		category model.Category
		filmType string
	}
}

func (s *stubTracker) Record(_ context.Context, term string, category model.Category, filmType string) (model.RecordUnrecognizedResponse, error) {
	s.last.term, s.last.category, s.last.filmType = term, category, filmType
	return s.resp, s.err
}

type stubExpander struct {
	result expansion.Result
	err    error
	last   expansion.Request
}

func (s *stubExpander) Evaluate(_ context.Context, req expansion.Request) (expansion.Result, error) {
	s.last = req
	return s.result, s.err
}

type stubVocab struct {
	resp *model.VocabularyResponse
}

func (s *stubVocab) VocabularyProjection(context.Context, model.Category) (*model.VocabularyResponse, error) {
	return s.resp, nil
}

func newTestServer() (*Server, *stubTracker, *stubExpander) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	tracker := &stubTracker{}
	expander := &stubExpander{}
	vocab := &stubVocab{resp: &model.VocabularyResponse{
		Mapping:      map[string]string{"追击": "追逐", "追逐": "追逐"},
		StandardList: []string{"追逐"},
	}}
	return New(tracker, expander, vocab, logger), tracker, expander
}

func toolRequest(name string, args map[string]any) mcplib.CallToolRequest {
	return mcplib.CallToolRequest{
		Params: mcplib.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

// parseToolText extracts the first TextContent text from a CallToolResult.
func parseToolText(t *testing.T, result *mcplib.CallToolResult) string {
	t.Helper()
	for _, c := range result.Content {
		if tc, ok := c.(mcplib.TextContent); ok {
			return tc.Text
		}
	}
	t.Fatal("no TextContent found in tool result")
	return ""
}

func TestHandleQueryVocabulary(t *testing.T) {
	srv, _, _ := newTestServer()

	result, err := srv.handleQueryVocabulary(context.Background(),
		toolRequest("lexicon_query_vocabulary", map[string]any{}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	var resp model.VocabularyResponse
	require.NoError(t, json.Unmarshal([]byte(parseToolText(t, result)), &resp))
	assert.Equal(t, "追逐", resp.Mapping["追击"])
	assert.Equal(t, []string{"追逐"}, resp.StandardList)
}

func TestHandleQueryVocabularyBadCategory(t *testing.T) {
	srv, _, _ := newTestServer()

	result, err := srv.handleQueryVocabulary(context.Background(),
		toolRequest("lexicon_query_vocabulary", map[string]any{"category": "bogus"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandleRecordUnrecognized(t *testing.T) {
	srv, tracker, _ := newTestServer()
	tracker.resp = model.RecordUnrecognizedResponse{OccurrenceCount: 3}

	result, err := srv.handleRecordUnrecognized(context.Background(),
		toolRequest("lexicon_record_unrecognized", map[string]any{
			"term":      "秘密潜入",
			"category":  "scenario",
			"film_type": "警匪片",
		}))
	require.NoError(t, err)
	require.False(t, result.IsError)
	assert.Equal(t, "秘密潜入", tracker.last.term)
	assert.Equal(t, model.CategoryScenario, tracker.last.category)
	assert.Equal(t, "警匪片", tracker.last.filmType)

	var resp model.RecordUnrecognizedResponse
	require.NoError(t, json.Unmarshal([]byte(parseToolText(t, result)), &resp))
	assert.Equal(t, 3, resp.OccurrenceCount)
}

func TestHandleRecordUnrecognizedMissingTerm(t *testing.T) {
	srv, _, _ := newTestServer()

	result, err := srv.handleRecordUnrecognized(context.Background(),
		toolRequest("lexicon_record_unrecognized", map[string]any{"category": "scenario"}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestHandleSubmitCandidate(t *testing.T) {
	srv, _, expander := newTestServer()
	termID := uuid.New()
	expander.result = expansion.Result{
		TermID:       termID,
		Term:         "伏击",
		ReviewStatus: model.ReviewApproved,
		Message:      "no similar terms found",
	}

	result, err := srv.handleSubmitCandidate(context.Background(),
		toolRequest("lexicon_submit_candidate", map[string]any{
			"term":       "伏击",
			"category":   "scenario",
			"synonyms":   []any{"埋伏"},
			"film_types": []any{"战争片"},
			"confidence": 0.9,
		}))
	require.NoError(t, err)
	require.False(t, result.IsError)

	assert.Equal(t, expansion.PathAI, expander.last.Path)
	assert.Equal(t, []string{"埋伏"}, expander.last.Synonyms)
	assert.InDelta(t, 0.9, expander.last.Confidence, 1e-9)

	var resp model.SubmitCandidateResponse
	require.NoError(t, json.Unmarshal([]byte(parseToolText(t, result)), &resp))
	assert.Equal(t, termID, resp.TermID)
}

func TestHandleSubmitCandidateRejected(t *testing.T) {
	srv, _, expander := newTestServer()
	expander.err = &model.SimilarityRejectionError{Term: "围捕", SimilarTerm: "追逐", Similarity: 0.85}

	result, err := srv.handleSubmitCandidate(context.Background(),
		toolRequest("lexicon_submit_candidate", map[string]any{
			"term":     "围捕",
			"category": "scenario",
		}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, parseToolText(t, result), "追逐")

	var simErr *model.SimilarityRejectionError
	assert.True(t, errors.As(expander.err, &simErr))
}

func TestVocabularyResource(t *testing.T) {
	srv, _, _ := newTestServer()

	contents, err := srv.handleVocabularyResource(context.Background(), mcplib.ReadResourceRequest{
		Params: mcplib.ReadResourceParams{URI: "lexicon://vocabulary"},
	})
	require.NoError(t, err)
	require.Len(t, contents, 1)

	text, ok := contents[0].(mcplib.TextResourceContents)
	require.True(t, ok)
	assert.Contains(t, text.Text, "追逐")
}
