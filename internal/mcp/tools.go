package mcp

import (
	"context"
	"fmt"

	mcplib "github.com/mark3labs/mcp-go/mcp"

	"github.com/soundscape-ai/lexicon/internal/model"
	"github.com/soundscape-ai/lexicon/internal/service/expansion"
)

func (s *Server) registerTools() {
	// lexicon_query_vocabulary — look up the approved vocabulary.
	s.mcpServer.AddTool(
		mcplib.NewTool("lexicon_query_vocabulary",
			mcplib.WithDescription(`Look up the approved tagging vocabulary before labeling a track.

WHEN TO USE: BEFORE assigning any scenario, emotion, or style tag.
The mapping resolves synonyms and suffix variants to the standard term:
if your tag appears as a key, use the mapped value instead.

WHAT YOU GET BACK:
- mapping: every known surface form mapped to its standard term
- standard_list: the flat list of standard terms

If your tag is NOT in the mapping, call lexicon_record_unrecognized so
frequent misses can eventually be promoted into the vocabulary.`),
			mcplib.WithReadOnlyHintAnnotation(true),
			mcplib.WithIdempotentHintAnnotation(true),
			mcplib.WithOpenWorldHintAnnotation(false),
			mcplib.WithString("category",
				mcplib.Description("Optional: restrict to one category (emotion, style, instrument, film, scenario, dubbing)"),
			),
		),
		s.handleQueryVocabulary,
	)

	// lexicon_record_unrecognized — count a vocabulary miss.
	s.mcpServer.AddTool(
		mcplib.NewTool("lexicon_record_unrecognized",
			mcplib.WithDescription(`Record that a tag was produced which the vocabulary does not know.

WHEN TO USE: Every time lexicon_query_vocabulary has no entry for a tag
you wanted to use. Each call increments a per-(term, category) counter;
terms seen often enough across named film types become eligible for
automatic promotion into the vocabulary.

Always pass film_type when you know the genre of the track's film —
a term never bound to a film type cannot be auto-promoted.`),
			mcplib.WithDestructiveHintAnnotation(false),
			mcplib.WithIdempotentHintAnnotation(false),
			mcplib.WithOpenWorldHintAnnotation(false),
			mcplib.WithString("term",
				mcplib.Description("The unrecognized tag, as produced"),
				mcplib.Required(),
			),
			mcplib.WithString("category",
				mcplib.Description("Category the tag was meant for (emotion, style, instrument, film, scenario, dubbing)"),
				mcplib.Required(),
			),
			mcplib.WithString("film_type",
				mcplib.Description("Genre of the film the track belongs to, e.g. 动作片"),
			),
		),
		s.handleRecordUnrecognized,
	)

	// lexicon_submit_candidate — propose a new standard term.
	s.mcpServer.AddTool(
		mcplib.NewTool("lexicon_submit_candidate",
			mcplib.WithDescription(`Propose a new standard term for the vocabulary.

WHEN TO USE: When you are confident a recurring concept deserves its own
standard term. The candidate runs through conflict checks and a
similarity assessment; near-duplicates of existing terms are rejected,
borderline ones are parked for human review.

WHAT YOU GET BACK:
- term_id and review_status: "approved" went live immediately,
  "review_pending" awaits a human reviewer
- highest_similarity and recommended_action from the assessment

Submissions default to the ai path. Rejections name the conflicting or
similar term so you can map to it instead.`),
			mcplib.WithDestructiveHintAnnotation(false),
			mcplib.WithIdempotentHintAnnotation(false),
			mcplib.WithOpenWorldHintAnnotation(false),
			mcplib.WithString("term",
				mcplib.Description("The proposed standard term"),
				mcplib.Required(),
			),
			mcplib.WithString("category",
				mcplib.Description("Category for the term (emotion, style, instrument, film, scenario, dubbing)"),
				mcplib.Required(),
			),
			mcplib.WithArray("synonyms",
				mcplib.Description("Surface forms that should map to this term"),
				mcplib.WithStringItems(),
			),
			mcplib.WithArray("film_types",
				mcplib.Description("Genres the term was observed in"),
				mcplib.WithStringItems(),
			),
			mcplib.WithString("reason",
				mcplib.Description("Why this term should exist"),
			),
			mcplib.WithNumber("confidence",
				mcplib.Description("Your confidence that this is a distinct concept (0.0-1.0)"),
				mcplib.Min(0),
				mcplib.Max(1),
			),
		),
		s.handleSubmitCandidate,
	)
}

func (s *Server) handleQueryVocabulary(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	category := model.Category(request.GetString("category", ""))
	if category != "" && !category.Valid() {
		return errorResult(fmt.Sprintf("unknown category %q", category)), nil
	}

	resp, err := s.vocab.VocabularyProjection(ctx, category)
	if err != nil {
		return errorResult(fmt.Sprintf("vocabulary lookup failed: %v", err)), nil
	}
	return jsonResult(resp), nil
}

func (s *Server) handleRecordUnrecognized(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	term := request.GetString("term", "")
	if term == "" {
		return errorResult("term is required"), nil
	}
	category := model.Category(request.GetString("category", ""))
	filmType := request.GetString("film_type", "")

	resp, err := s.tracker.Record(ctx, term, category, filmType)
	if err != nil {
		return errorResult(fmt.Sprintf("record failed: %v", err)), nil
	}
	return jsonResult(resp), nil
}

func (s *Server) handleSubmitCandidate(ctx context.Context, request mcplib.CallToolRequest) (*mcplib.CallToolResult, error) {
	term := request.GetString("term", "")
	if term == "" {
		return errorResult("term is required"), nil
	}

	result, err := s.expander.Evaluate(ctx, expansion.Request{
		Path:       expansion.PathAI,
		Term:       term,
		Category:   model.Category(request.GetString("category", "")),
		Synonyms:   request.GetStringSlice("synonyms", nil),
		FilmTypes:  request.GetStringSlice("film_types", nil),
		Reason:     request.GetString("reason", ""),
		Confidence: request.GetFloat("confidence", 0),
	})
	if err != nil {
		// Rejections are informative tool output, not transport errors.
		return errorResult(fmt.Sprintf("candidate rejected: %v", err)), nil
	}

	return jsonResult(model.SubmitCandidateResponse{
		TermID:            result.TermID,
		ReviewStatus:      result.ReviewStatus,
		Message:           result.Message,
		HighestSimilarity: result.HighestSimilarity,
		RecommendedAction: result.RecommendedAction,
	}), nil
}
