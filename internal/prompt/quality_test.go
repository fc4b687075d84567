package prompt

import (
	"testing"

	"glance/internal/config"
)

func TestQualityLabel(t *testing.T) {
	cfg := config.DefaultConfig().Prompt
	tests := []struct {
		confidence float64
		want       string
	}{
		{1.0, "high"},
		{0.85, "high"},
		{0.84, "medium"},
		{0.65, "medium"},
		{0.64, "low"},
		{0, "low"},
	}
	for _, tt := range tests {
		if got := qualityLabel(tt.confidence, cfg); got != tt.want {
			t.Errorf("qualityLabel(%v) = %q, want %q", tt.confidence, got, tt.want)
		}
	}
}

func TestLooksDamaged(t *testing.T) {
	tests := []struct {
		token string
		want  bool
	}{
		{"hello", false},
		{"he11o", true},
		{"w0rd", true},
		{"GPT4", false},
		{"B2", false},
		{"x86", false},
		{"2x", false},
		{"lll", true},
		{"chapter", false},
		{"don't", false},
		{"(parens)", false},
		{"§¶•", true},
		{"-", false},
		{"42", false},
	}
	for _, tt := range tests {
		if got := looksDamaged(tt.token); got != tt.want {
			t.Errorf("looksDamaged(%q) = %v, want %v", tt.token, got, tt.want)
		}
	}
}

func TestEstimateOCRErrors(t *testing.T) {
	text := "the qu1ck brown f0x jumps over the lazy dog"
	if got := estimateOCRErrors(text); got != 2 {
		t.Errorf("estimateOCRErrors = %d, want 2", got)
	}
	if got := estimateOCRErrors(""); got != 0 {
		t.Errorf("estimateOCRErrors(empty) = %d, want 0", got)
	}
}

func TestReadabilityScore(t *testing.T) {
	if got := readabilityScore("clean simple words here"); got != 1 {
		t.Errorf("clean text readability = %v, want 1", got)
	}
	if got := readabilityScore("g00d w0rd b4d junk"); got >= 0.7 {
		t.Errorf("damaged text readability = %v, want < 0.7", got)
	}
	if got := readabilityScore(""); got != 1 {
		t.Errorf("empty text readability = %v, want 1", got)
	}
}

func TestOptimizationTriggers(t *testing.T) {
	cfg := config.DefaultConfig().Prompt
	clean := QualityMetrics{
		Confidence:         0.9,
		Readability:        1,
		LanguageConfidence: 0.9,
		TextLength:         100,
	}

	if got := optimizationTriggers(clean, cfg); len(got) != 0 {
		t.Fatalf("clean metrics triggered %v", got)
	}

	tests := []struct {
		name   string
		mutate func(m *QualityMetrics)
		want   string
	}{
		{"confidence", func(m *QualityMetrics) { m.Confidence = 0.79 }, TriggerLowConfidence},
		{"errors", func(m *QualityMetrics) { m.EstimatedErrors = 4 }, TriggerManyErrors},
		{"readability", func(m *QualityMetrics) { m.Readability = 0.5 }, TriggerLowReadability},
		{"language", func(m *QualityMetrics) { m.LanguageConfidence = 0.5 }, TriggerUncertainLang},
		{"long", func(m *QualityMetrics) { m.TextLength = 1501 }, TriggerTooLong},
		{"short", func(m *QualityMetrics) { m.TextLength = 29 }, TriggerTooShort},
		{"formulas", func(m *QualityMetrics) { m.HasFormulas = true }, TriggerSpecialContent},
		{"code", func(m *QualityMetrics) { m.HasCode = true }, TriggerSpecialContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := clean
			tt.mutate(&m)
			got := optimizationTriggers(m, cfg)
			if len(got) != 1 || got[0] != tt.want {
				t.Errorf("triggers = %v, want [%s]", got, tt.want)
			}
		})
	}

	empty := QualityMetrics{TextLength: 0}
	if got := optimizationTriggers(empty, cfg); got != nil {
		t.Errorf("empty capture triggered %v", got)
	}

	// Boundary values sit exactly on the thresholds and must not trigger.
	boundary := QualityMetrics{
		Confidence:         0.8,
		EstimatedErrors:    3,
		Readability:        0.7,
		LanguageConfidence: 0.8,
		TextLength:         1500,
	}
	if got := optimizationTriggers(boundary, cfg); len(got) != 0 {
		t.Errorf("boundary metrics triggered %v", got)
	}
}
