// Package conflicts detects lexical collisions between a candidate term
// and the approved vocabulary. It is the cheap, local filter that runs
// before any similarity-oracle call: exact matches, synonym matches,
// and substring containment are all decided against an in-memory
// snapshot without touching the database or the LLM.
package conflicts

import (
	"strings"

	"github.com/soundscape-ai/lexicon/internal/model"
)

// Snapshot is an immutable index over the approved vocabulary. Build a
// new one on every refresh; readers share it without locking.
type Snapshot struct {
	// standard maps each approved term to itself.
	standard map[string]struct{}
	// synonymOf maps every synonym to its owning standard term.
	synonymOf map[string]string
	// byCategory holds approved term names per category; the oracle
	// compares within a category, containment walks every category.
	byCategory map[model.Category][]string
}

// BuildSnapshot indexes the given approved terms.
func BuildSnapshot(terms []model.StandardTerm) *Snapshot {
	s := &Snapshot{
		standard:   make(map[string]struct{}, len(terms)),
		synonymOf:  make(map[string]string),
		byCategory: make(map[model.Category][]string),
	}
	for _, t := range terms {
		s.standard[t.Term] = struct{}{}
		s.byCategory[t.Category] = append(s.byCategory[t.Category], t.Term)
		for _, syn := range t.Synonyms {
			s.synonymOf[syn] = t.Term
		}
	}
	return s
}

// Size returns the number of standard terms in the snapshot.
func (s *Snapshot) Size() int { return len(s.standard) }

// TermsInCategory returns the approved term names for one category, or
// all terms when category is empty.
func (s *Snapshot) TermsInCategory(category model.Category) []string {
	if category != "" {
		return s.byCategory[category]
	}
	all := make([]string, 0, len(s.standard))
	for _, terms := range s.byCategory {
		all = append(all, terms...)
	}
	return all
}

// HasStandard reports whether the exact string is an approved term.
func (s *Snapshot) HasStandard(term string) bool {
	_, ok := s.standard[term]
	return ok
}

// SynonymOwner returns the standard term owning the given synonym, if any.
func (s *Snapshot) SynonymOwner(syn string) (string, bool) {
	owner, ok := s.synonymOf[syn]
	return owner, ok
}

// containsEither reports substring containment in either direction.
func containsEither(a, b string) bool {
	return strings.Contains(a, b) || strings.Contains(b, a)
}
