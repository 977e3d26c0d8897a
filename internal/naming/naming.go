// Package naming normalizes candidate term names before conflict checks.
// All functions are pure.
package naming

import (
	"strings"
	"unicode/utf8"
)

// MaxTermLength is the ceiling on term length, in runes. Longer strings
// are phrases, not vocabulary terms.
const MaxTermLength = 50

// strippedSuffixes are category-style suffixes removed before the
// uniqueness check, so "追逐戏" and "追逐" collide. Ordered
// longest-first so compound suffixes strip before their tails.
var strippedSuffixes = []string{"场景", "配音", "建议", "片段", "时刻", "戏"}

// Normalize trims surrounding whitespace and strips one known suffix.
// Stripping never empties the term: a term that consists only of a
// suffix is kept as-is.
func Normalize(term string) string {
	t := strings.TrimSpace(term)
	for _, suffix := range strippedSuffixes {
		if trimmed, ok := strings.CutSuffix(t, suffix); ok && trimmed != "" {
			return trimmed
		}
	}
	return t
}

// Valid reports whether a normalized term is storable: non-empty and
// within the length ceiling.
func Valid(term string) bool {
	if term == "" {
		return false
	}
	return utf8.RuneCountInString(term) <= MaxTermLength
}
