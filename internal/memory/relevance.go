package memory

import (
	"sort"
	"strings"
	"unicode"
)

// tokenize splits s into lower-cased alphanumeric tokens.
func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

// tokenSet returns the set of tokens in s.
func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range tokenize(s) {
		set[tok] = true
	}
	return set
}

// jaccard computes set similarity: |intersection| / |union|.
func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	intersection := 0
	for tok := range a {
		if b[tok] {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	return float64(intersection) / float64(union)
}

// relevantHistory scores each message outside the recent window against
// the concatenated recent window and keeps the ones above threshold,
// best first, capped at max.
func relevantHistory(older, recent []Message, threshold float64, max int) []RelevantMessage {
	if len(older) == 0 || len(recent) == 0 {
		return nil
	}
	var sb strings.Builder
	for _, m := range recent {
		sb.WriteString(m.Content)
		sb.WriteString(" ")
	}
	return scoreAgainst(older, tokenSet(sb.String()), threshold, max)
}

// scoreAgainst ranks candidates by Jaccard similarity to the query set.
// Ties keep chronological order.
func scoreAgainst(candidates []Message, query map[string]bool, threshold float64, max int) []RelevantMessage {
	if len(query) == 0 {
		return nil
	}
	var out []RelevantMessage
	for _, m := range candidates {
		score := jaccard(tokenSet(m.Content), query)
		if score > threshold {
			out = append(out, RelevantMessage{Message: m, Score: score})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	if max > 0 && len(out) > max {
		out = out[:max]
	}
	return out
}
