package expansion

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/soundscape-ai/lexicon/internal/model"
)

// backfill rewrites denormalized copies of the term's surface variants
// in the analysis records: scenario tags equal to a variant become the
// standard term, and unclassified dubbing suggestions mentioning a
// variant (or the term itself) get typed with it.
//
// Partial failure does not revert the promotion. Whatever was rewritten
// is recorded on the ledger entry with its provenance; the remainder is
// reconciled by a re-run or the integrity sweep.
func (e *Engine) backfill(ctx context.Context, ledgerID, termID uuid.UUID, term string, variants []string) (int, error) {
	var (
		total    int
		prov     []model.BackfillProvenance
		failures []error
	)

	for _, variant := range variants {
		n, p, err := e.store.BackfillScenarios(ctx, variant, term)
		total += n
		prov = append(prov, p...)
		if err != nil {
			failures = append(failures, err)
			continue
		}
		n, p, err = e.store.BackfillDubbing(ctx, variant, term)
		total += n
		prov = append(prov, p...)
		if err != nil {
			failures = append(failures, err)
		}
	}

	// Unclassified dubbing suggestions that already mention the standard
	// term get typed with it too.
	n, p, err := e.store.BackfillDubbing(ctx, term, term)
	total += n
	prov = append(prov, p...)
	if err != nil {
		failures = append(failures, err)
	}

	if ledgerID != uuid.Nil {
		if err := e.store.MarkHistoricalCleaned(ctx, ledgerID, total, prov); err != nil {
			failures = append(failures, fmt.Errorf("record backfill result: %w", err))
		}
	}
	if total > 0 {
		if err := e.store.IncrementUsage(ctx, termID, total); err != nil {
			e.logger.Warn("expansion: usage increment failed", "term", term, "error", err)
		}
	}

	if len(failures) > 0 {
		return total, fmt.Errorf("%w: %w", model.ErrPartialBackfill, errors.Join(failures...))
	}
	return total, nil
}

// rollbackBackfill restores the analysis records touched by a term's
// promotion. With provenance on the ledger entry each rewrite is
// reverted exactly; legacy entries without provenance fall back to
// rewriting the standard term to its first synonym everywhere.
func (e *Engine) rollbackBackfill(ctx context.Context, term model.StandardTerm) (int, error) {
	rec, err := e.store.LatestExpansionRecordByTerm(ctx, term.ID)
	if err == nil && len(rec.ValidationDetails.BackfillProvenance) > 0 {
		restored := 0
		for _, p := range rec.ValidationDetails.BackfillProvenance {
			switch p.Field {
			case "scenarios":
				ok, err := e.store.RestoreScenarioExact(ctx, p.RecordID, term.Term, p.Original)
				if err != nil {
					return restored, fmt.Errorf("expansion: restore scenarios: %w", err)
				}
				if ok {
					restored++
				}
			case "dubbing":
				n, err := e.store.RestoreDubbing(ctx, &p.RecordID, term.Term, p.Original)
				if err != nil {
					return restored, fmt.Errorf("expansion: restore dubbing: %w", err)
				}
				restored += n
			}
		}
		return restored, nil
	}

	// No provenance: restore with the first synonym, the closest
	// surviving surface form of what the records held before.
	if len(term.Synonyms) == 0 {
		return 0, nil
	}
	original := term.Synonyms[0]
	restored, err := e.store.RestoreScenariosAll(ctx, term.Term, original)
	if err != nil {
		return restored, fmt.Errorf("expansion: restore scenarios: %w", err)
	}
	n, err := e.store.RestoreDubbing(ctx, nil, term.Term, original)
	restored += n
	if err != nil {
		return restored, fmt.Errorf("expansion: restore dubbing: %w", err)
	}
	return restored, nil
}
