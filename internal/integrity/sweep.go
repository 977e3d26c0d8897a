package integrity

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/soundscape-ai/lexicon/internal/model"
	"github.com/soundscape-ai/lexicon/internal/naming"
)

// Store is the slice of the storage layer the sweep reads. *storage.DB
// satisfies it.
type Store interface {
	FindMalformedTerms(ctx context.Context) ([]model.StandardTerm, error)
	FindOverlongTerms(ctx context.Context, maxLen int) ([]model.StandardTerm, error)
	FindSynonymCollisions(ctx context.Context) ([][2]string, error)
	FindOrphanedExpansionRecords(ctx context.Context) ([]model.ExpansionRecord, error)
	FindStaleExpandedTrackers(ctx context.Context) ([]model.UnrecognizedTerm, error)
	CountResidualScenarioTags(ctx context.Context) (int, error)
	ListExpansionRecords(ctx context.Context, limit, offset int) ([]model.ExpansionRecord, error)
}

// Sweeper runs the read-only consistency diagnostic across the four
// tables.
type Sweeper struct {
	store  Store
	logger *slog.Logger
}

func NewSweeper(store Store, logger *slog.Logger) *Sweeper {
	return &Sweeper{store: store, logger: logger}
}

// ledgerScanPage bounds how many ledger entries one sweep verifies.
const ledgerScanPage = 500

// Sweep checks the vocabulary tables against each other and returns a
// report of errors (invariant violations), warnings (drift that needs
// a human look), and suggestions (reconcilable with a re-run).
func (s *Sweeper) Sweep(ctx context.Context) (model.IntegrityReport, error) {
	report := model.IntegrityReport{
		Errors:      []string{},
		Warnings:    []string{},
		Suggestions: []string{},
	}

	malformed, err := s.store.FindMalformedTerms(ctx)
	if err != nil {
		return report, fmt.Errorf("integrity: malformed terms: %w", err)
	}
	for _, t := range malformed {
		report.Errors = append(report.Errors,
			fmt.Sprintf("term %s has empty name or unknown category %q", t.ID, t.Category))
	}

	collisions, err := s.store.FindSynonymCollisions(ctx)
	if err != nil {
		return report, fmt.Errorf("integrity: synonym collisions: %w", err)
	}
	for _, pair := range collisions {
		report.Errors = append(report.Errors,
			fmt.Sprintf("terms %q and %q share a surface string", pair[0], pair[1]))
	}

	orphaned, err := s.store.FindOrphanedExpansionRecords(ctx)
	if err != nil {
		return report, fmt.Errorf("integrity: orphaned ledger entries: %w", err)
	}
	for _, rec := range orphaned {
		report.Errors = append(report.Errors,
			fmt.Sprintf("ledger entry %s references term %q which no longer exists", rec.ID, rec.Term))
	}

	overlong, err := s.store.FindOverlongTerms(ctx, naming.MaxTermLength)
	if err != nil {
		return report, fmt.Errorf("integrity: overlong terms: %w", err)
	}
	for _, t := range overlong {
		report.Errors = append(report.Errors,
			fmt.Sprintf("term %q exceeds %d characters", t.Term, naming.MaxTermLength))
	}

	stale, err := s.store.FindStaleExpandedTrackers(ctx)
	if err != nil {
		return report, fmt.Errorf("integrity: stale trackers: %w", err)
	}
	for _, u := range stale {
		report.Warnings = append(report.Warnings,
			fmt.Sprintf("tracker row %q/%s is marked expanded but the term is not in the approved vocabulary", u.Term, u.Category))
	}

	recs, err := s.store.ListExpansionRecords(ctx, ledgerScanPage, 0)
	if err != nil {
		return report, fmt.Errorf("integrity: list ledger entries: %w", err)
	}
	for _, rec := range recs {
		if rec.ContentHash != "" && !VerifyRecord(rec) {
			report.Warnings = append(report.Warnings,
				fmt.Sprintf("ledger entry %s fails content-hash verification", rec.ID))
		}
	}

	residual, err := s.store.CountResidualScenarioTags(ctx)
	if err != nil {
		return report, fmt.Errorf("integrity: residual tags: %w", err)
	}
	if residual > 0 {
		report.Suggestions = append(report.Suggestions,
			fmt.Sprintf("%d analysis records carry scenario tags outside the approved vocabulary; re-run backfill or record them as unrecognized", residual))
	}

	s.logger.Info("integrity sweep complete",
		"errors", len(report.Errors),
		"warnings", len(report.Warnings),
		"suggestions", len(report.Suggestions))
	return report, nil
}
