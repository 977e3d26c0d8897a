// Package tracker records raw strings that failed standardization and
// decides when their frequency makes them candidates for automatic
// expansion. Both the HTTP API and MCP server delegate here.
package tracker

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"

	"github.com/soundscape-ai/lexicon/internal/model"
	"github.com/soundscape-ai/lexicon/internal/naming"
	"github.com/soundscape-ai/lexicon/internal/telemetry"
)

// Store is the storage surface the tracker uses. *storage.DB satisfies it.
type Store interface {
	UpsertUnrecognized(ctx context.Context, term string, category model.Category, filmType string, minFrequency int) (model.UnrecognizedTerm, error)
	ListEligibleUnrecognized(ctx context.Context) ([]model.UnrecognizedTerm, error)
	GetUnrecognizedByIDs(ctx context.Context, ids []uuid.UUID) ([]model.UnrecognizedTerm, error)
}

// Service is the unrecognized-term tracker.
type Service struct {
	store        Store
	logger       *slog.Logger
	minFrequency int

	recorded metric.Int64Counter
}

func New(store Store, logger *slog.Logger, minFrequency int) *Service {
	meter := telemetry.Meter("lexicon/tracker")
	recorded, _ := meter.Int64Counter("lexicon.unrecognized.recorded",
		metric.WithDescription("Unrecognized term sightings recorded"),
	)
	return &Service{
		store:        store,
		logger:       logger,
		minFrequency: minFrequency,
		recorded:     recorded,
	}
}

// MinFrequency returns the configured eligibility threshold.
func (s *Service) MinFrequency() int { return s.minFrequency }

// Record counts one sighting of a raw term. The term is normalized the
// same way candidates are, so "追逐戏" and "追逐" share a counter row.
func (s *Service) Record(ctx context.Context, term string, category model.Category, filmType string) (model.RecordUnrecognizedResponse, error) {
	normalized := naming.Normalize(term)
	if !naming.Valid(normalized) {
		return model.RecordUnrecognizedResponse{}, fmt.Errorf("tracker: invalid term %q", term)
	}
	if !category.Valid() {
		return model.RecordUnrecognizedResponse{}, fmt.Errorf("tracker: unknown category %q", category)
	}

	u, err := s.store.UpsertUnrecognized(ctx, normalized, category, filmType, s.minFrequency)
	if err != nil {
		return model.RecordUnrecognizedResponse{}, fmt.Errorf("tracker: record %q: %w", normalized, err)
	}
	s.recorded.Add(ctx, 1)
	s.logger.Debug("unrecognized term recorded",
		"term", normalized,
		"category", category,
		"count", u.OccurrenceCount,
		"status", u.ExpansionStatus)

	return model.RecordUnrecognizedResponse{
		OccurrenceCount: u.OccurrenceCount,
		IsEligible:      u.ExpansionStatus == model.StatusEligible,
	}, nil
}

// Eligible returns the rows currently cleared for auto-expansion, or
// the requested subset when ids are given.
func (s *Service) Eligible(ctx context.Context, ids []uuid.UUID) ([]model.UnrecognizedTerm, error) {
	if len(ids) > 0 {
		rows, err := s.store.GetUnrecognizedByIDs(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("tracker: load candidates: %w", err)
		}
		return rows, nil
	}
	rows, err := s.store.ListEligibleUnrecognized(ctx)
	if err != nil {
		return nil, fmt.Errorf("tracker: list eligible: %w", err)
	}
	return rows, nil
}
