package conflicts

import (
	"context"
	"fmt"
)

// Result is the outcome of one conflict check. Duplicate marks the
// candidate as already present verbatim (as a standard term or a
// synonym); containment overlaps leave it false.
type Result struct {
	HasConflict     bool
	Duplicate       bool
	ConflictingTerm string
	Message         string
}

// Checker runs the structural checks against the snapshot cache. It
// never calls the oracle and never writes.
type Checker struct {
	cache *Cache
}

func NewChecker(cache *Cache) *Checker {
	return &Checker{cache: cache}
}

// Check tests a candidate against the whole approved vocabulary,
// regardless of category: exact term match, synonym match, and
// substring containment in either direction (suffix variants like
// "追逐" vs "追逐戏"). The uniqueness invariant is global, so no check
// narrows to a category.
func (c *Checker) Check(ctx context.Context, candidate string) (Result, error) {
	snap, err := c.cache.Snapshot(ctx)
	if err != nil {
		return Result{}, err
	}
	return checkAgainst(snap, candidate), nil
}

// CheckAll runs Check over the candidate term and each of its synonyms,
// returning the first conflict found.
func (c *Checker) CheckAll(ctx context.Context, candidate string, synonyms []string) (Result, error) {
	snap, err := c.cache.Snapshot(ctx)
	if err != nil {
		return Result{}, err
	}
	if res := checkAgainst(snap, candidate); res.HasConflict {
		return res, nil
	}
	for _, syn := range synonyms {
		if res := checkAgainst(snap, syn); res.HasConflict {
			return res, nil
		}
	}
	return Result{}, nil
}

func checkAgainst(snap *Snapshot, candidate string) Result {
	if snap.HasStandard(candidate) {
		return Result{
			HasConflict:     true,
			Duplicate:       true,
			ConflictingTerm: candidate,
			Message:         fmt.Sprintf("%q is already a standard term", candidate),
		}
	}
	if owner, ok := snap.SynonymOwner(candidate); ok {
		return Result{
			HasConflict:     true,
			Duplicate:       true,
			ConflictingTerm: owner,
			Message:         fmt.Sprintf("%q is already a synonym of %q", candidate, owner),
		}
	}
	for _, existing := range snap.TermsInCategory("") {
		if existing != candidate && containsEither(candidate, existing) {
			return Result{
				HasConflict:     true,
				ConflictingTerm: existing,
				Message:         fmt.Sprintf("%q overlaps existing term %q", candidate, existing),
			}
		}
	}
	return Result{}
}
