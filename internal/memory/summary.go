package memory

import (
	"sort"
	"strings"
)

// Summary is a naive extractive digest of one session.
type Summary struct {
	Keywords            []string `json:"keywords"`
	MainQuestions       []string `json:"main_questions"`
	UnresolvedQuestions []string `json:"unresolved_questions"`
	Sentiment           string   `json:"sentiment"`
	MessageCount        int      `json:"message_count"`
}

const (
	minKeywords = 5
	maxKeywords = 10

	// An assistant reply this short is not treated as an answer.
	minAnswerLength = 50
)

var positiveWords = map[string]bool{
	"thanks": true, "thank": true, "great": true, "good": true,
	"perfect": true, "awesome": true, "excellent": true, "helpful": true,
	"works": true, "worked": true, "solved": true, "nice": true,
}

var negativeWords = map[string]bool{
	"error": true, "wrong": true, "fail": true, "failed": true,
	"broken": true, "issue": true, "problem": true, "confusing": true,
	"stuck": true, "crash": true, "useless": true, "terrible": true,
}

// summarize digests the messages: frequent keywords, the questions the
// user asked, which of those went unanswered, and overall sentiment.
// System messages are ignored.
func summarize(messages []Message) *Summary {
	sum := &Summary{
		Keywords:            []string{},
		MainQuestions:       []string{},
		UnresolvedQuestions: []string{},
		Sentiment:           "neutral",
	}

	conversational := make([]Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == RoleSystem {
			continue
		}
		conversational = append(conversational, m)
	}
	sum.MessageCount = len(conversational)
	if len(conversational) == 0 {
		return sum
	}

	sum.Keywords = extractKeywords(conversational)

	for i, m := range conversational {
		if m.Role != RoleUser {
			continue
		}
		q := firstQuestion(m.Content)
		if q == "" {
			continue
		}
		sum.MainQuestions = append(sum.MainQuestions, q)
		if !answeredWithin(conversational, i, 2) {
			sum.UnresolvedQuestions = append(sum.UnresolvedQuestions, q)
		}
	}

	sum.Sentiment = sentiment(conversational)
	return sum
}

// extractKeywords counts lower-cased, punctuation-stripped tokens longer
// than 3 characters and keeps the most frequent. Up to 10 keywords are
// returned; tokens that appear only once fill at most the first 5 slots.
func extractKeywords(messages []Message) []string {
	freq := make(map[string]int)
	for _, m := range messages {
		for _, tok := range tokenize(m.Content) {
			if len(tok) > 3 {
				freq[tok]++
			}
		}
	}
	if len(freq) == 0 {
		return []string{}
	}

	tokens := make([]string, 0, len(freq))
	for tok := range freq {
		tokens = append(tokens, tok)
	}
	sort.Slice(tokens, func(i, j int) bool {
		if freq[tokens[i]] != freq[tokens[j]] {
			return freq[tokens[i]] > freq[tokens[j]]
		}
		return tokens[i] < tokens[j]
	})

	keywords := make([]string, 0, maxKeywords)
	for i, tok := range tokens {
		if i >= maxKeywords {
			break
		}
		if i >= minKeywords && freq[tok] < 2 {
			break
		}
		keywords = append(keywords, tok)
	}
	return keywords
}

// firstQuestion returns the content truncated at the first question mark,
// or "" when the message contains none.
func firstQuestion(content string) string {
	idx := strings.IndexByte(content, '?')
	if idx < 0 {
		return ""
	}
	return strings.TrimSpace(content[:idx+1])
}

// answeredWithin reports whether an assistant message of substantial
// length follows messages[i] within the next lookahead messages.
func answeredWithin(messages []Message, i, lookahead int) bool {
	for j := i + 1; j <= i+lookahead && j < len(messages); j++ {
		if messages[j].Role == RoleAssistant && len(messages[j].Content) > minAnswerLength {
			return true
		}
	}
	return false
}

// sentiment takes a majority vote between positive and negative keyword
// hits across the conversation.
func sentiment(messages []Message) string {
	pos, neg := 0, 0
	for _, m := range messages {
		for _, tok := range tokenize(m.Content) {
			if positiveWords[tok] {
				pos++
			}
			if negativeWords[tok] {
				neg++
			}
		}
	}
	switch {
	case pos > neg:
		return "positive"
	case neg > pos:
		return "negative"
	default:
		return "neutral"
	}
}
