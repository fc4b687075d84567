package memory

import (
	"reflect"
	"testing"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"Hello, World!", []string{"hello", "world"}},
		{"foo_bar baz-qux", []string{"foo", "bar", "baz", "qux"}},
		{"version 2 of GPT4", []string{"version", "2", "of", "gpt4"}},
		{"", nil},
		{"!!! ???", nil},
	}
	for _, tt := range tests {
		got := tokenize(tt.in)
		if len(got) == 0 && len(tt.want) == 0 {
			continue
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("tokenize(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestJaccard(t *testing.T) {
	set := func(words ...string) map[string]bool {
		m := make(map[string]bool)
		for _, w := range words {
			m[w] = true
		}
		return m
	}

	tests := []struct {
		name string
		a, b map[string]bool
		want float64
	}{
		{"identical", set("a", "b", "c"), set("a", "b", "c"), 1},
		{"disjoint", set("a", "b"), set("c", "d"), 0},
		{"half", set("a", "b", "c"), set("b", "c", "d"), 0.5},
		{"empty left", set(), set("a"), 0},
		{"empty right", set("a"), set(), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := jaccard(tt.a, tt.b); got != tt.want {
				t.Errorf("jaccard = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestScoreAgainstOrderAndCap(t *testing.T) {
	candidates := []Message{
		msg(RoleUser, "redis cache eviction"),
		msg(RoleUser, "redis cache eviction policy tuning"),
		msg(RoleUser, "completely different topic entirely"),
		msg(RoleUser, "redis eviction"),
	}
	query := tokenSet("redis cache eviction policy")

	got := scoreAgainst(candidates, query, 0.1, 2)
	if len(got) != 2 {
		t.Fatalf("got %d results, want cap of 2", len(got))
	}
	if got[0].Message.Content != "redis cache eviction policy tuning" {
		t.Errorf("best match = %q", got[0].Message.Content)
	}
	if got[0].Score < got[1].Score {
		t.Errorf("results not sorted: %v then %v", got[0].Score, got[1].Score)
	}
}

func TestScoreAgainstThreshold(t *testing.T) {
	candidates := []Message{msg(RoleUser, "alpha beta")}
	// One shared token out of many: similarity stays at or below the bar.
	query := tokenSet("alpha one two three four five six seven eight nine")
	if got := scoreAgainst(candidates, query, 0.1, 5); len(got) != 0 {
		t.Errorf("expected no matches above threshold, got %v", got)
	}
	if got := scoreAgainst(candidates, tokenSet(""), 0.1, 5); got != nil {
		t.Errorf("empty query should return nil, got %v", got)
	}
}
