package classify

import (
	"sort"
	"strings"
)

// Fallback confidence levels. They are tuning defaults: a keyword hit is a
// weak but real signal, a blind default is weaker still.
const (
	keywordConfidence = 0.6
	defaultConfidence = 0.3
)

// KeywordTable maps variant names to trigger keywords for the deterministic
// fallback path.
type KeywordTable map[string][]string

// DefaultKeywordTable covers the variant names commonly present in agent
// catalogs. Callers with bespoke variants supply their own table.
func DefaultKeywordTable() KeywordTable {
	return KeywordTable{
		"technical":    {"debug", "error", "bug", "code", "function", "crash", "stack", "compile", "exception"},
		"creative":     {"write", "story", "poem", "imagine", "brainstorm", "invent"},
		"analytical":   {"analyze", "compare", "evaluate", "data", "metrics", "statistics"},
		"professional": {"meeting", "email", "report", "proposal", "client"},
		"casual":       {"hey", "thanks", "chat", "joke"},
	}
}

// fallbackSelect deterministically picks a variant for input from the
// selectable set. Variants are scored by the number of their keywords
// occurring in the input (case-insensitive); ties break alphabetically via
// the pre-sorted selectable slice. No keyword hit selects the default
// variant. This path has no failure mode.
func fallbackSelect(input string, selectable []string, table KeywordTable, cause string) Result {
	lowered := strings.ToLower(input)

	bestVariant := ""
	bestScore := 0
	var bestHits []string
	for _, variant := range selectable {
		hits := keywordHits(lowered, table[variant])
		if len(hits) > bestScore {
			bestScore = len(hits)
			bestVariant = variant
			bestHits = hits
		}
	}

	if bestVariant != "" {
		return Result{
			Success:         true,
			SelectedVariant: bestVariant,
			Confidence:      keywordConfidence,
			Reasoning:       "keyword match: " + strings.Join(bestHits, ", ") + " (" + cause + ")",
			FallbackUsed:    true,
		}
	}
	return Result{
		Success:         true,
		SelectedVariant: DefaultVariant,
		Confidence:      defaultConfidence,
		Reasoning:       cause,
		FallbackUsed:    true,
	}
}

func keywordHits(loweredInput string, keywords []string) []string {
	var hits []string
	for _, kw := range keywords {
		if kw != "" && strings.Contains(loweredInput, kw) {
			hits = append(hits, kw)
		}
	}
	sort.Strings(hits)
	return hits
}
