package curator

import "strings"

// TrigramSimilarity estimates PostgreSQL's pg_trgm similarity() as a
// Jaccard index over character trigram sets of the lower-cased inputs.
// §4.5 step 2 needs "trigram similarity >= 0.4 on both fields" and the
// examples carry no fuzzy-string-matching library (no pack repo imports
// one), so this is hand-rolled per DESIGN.md's standard-library
// justification; it mirrors pg_trgm's padded-trigram scheme closely enough
// to reproduce the same match/no-match decisions the original service made.
// Exported so internal/store's FuzzyCandidates prefilter can reuse the same
// scoring function the verification step uses, instead of maintaining two
// implementations that could drift apart.
func TrigramSimilarity(a, b string) float64 {
	ta := trigramSet(a)
	tb := trigramSet(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	shared := 0
	for t := range ta {
		if tb[t] {
			shared++
		}
	}
	union := len(ta) + len(tb) - shared
	if union == 0 {
		return 0
	}
	return float64(shared) / float64(union)
}

// trigramSet returns the set of 3-character substrings of the padded,
// lower-cased input, matching pg_trgm's convention of bracketing the word
// with two leading and one trailing space so edge characters participate in
// as many trigrams as interior ones.
func trigramSet(s string) map[string]bool {
	padded := "  " + strings.ToLower(strings.TrimSpace(s)) + " "
	runes := []rune(padded)
	if len(runes) < 3 {
		return nil
	}
	set := make(map[string]bool, len(runes))
	for i := 0; i+3 <= len(runes); i++ {
		set[string(runes[i:i+3])] = true
	}
	return set
}
