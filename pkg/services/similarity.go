package services

import (
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// normalizeInsight lowercases and collapses whitespace so cosmetic differences
// do not count as edits.
func normalizeInsight(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// TextSimilarity returns 1 - distance/maxLen over the normalized texts, in [0,1].
// Two empty strings are identical.
func TextSimilarity(a, b string) float64 {
	a, b = normalizeInsight(a), normalizeInsight(b)
	if a == b {
		return 1
	}
	maxLen := utf8.RuneCountInString(a)
	if n := utf8.RuneCountInString(b); n > maxLen {
		maxLen = n
	}
	if maxLen == 0 {
		return 1
	}
	dist := levenshtein.ComputeDistance(a, b)
	return 1 - float64(dist)/float64(maxLen)
}

// isDuplicateInsight reports whether text is at least threshold-similar to any of existing.
func isDuplicateInsight(text string, existing []string, threshold float64) bool {
	for _, e := range existing {
		if TextSimilarity(text, e) >= threshold {
			return true
		}
	}
	return false
}
