package perception

import "context"

// Hints flag domain-specific content the extraction engine noticed in the
// text. They bias template routing and prompt optimization downstream.
type Hints struct {
	HasCode     bool `json:"hasCode,omitempty"`
	HasFormulas bool `json:"hasFormulas,omitempty"`
	HasTable    bool `json:"hasTable,omitempty"`
}

// TextExtraction is the result of running OCR or accessibility extraction
// over the captured screen region. Confidence grades the recognition
// quality, LanguageConfidence the language detection.
type TextExtraction struct {
	Text               string  `json:"text"`
	Confidence         float64 `json:"confidence"`
	Language           string  `json:"language,omitempty"`
	LanguageConfidence float64 `json:"languageConfidence,omitempty"`
	Hints              Hints   `json:"hints,omitempty"`
}

// Empty reports whether the extraction carries no usable text.
func (e *TextExtraction) Empty() bool {
	return e == nil || e.Text == ""
}

// Extractor is the text extraction engine contract. The engine itself is
// external; the core only consumes its output.
type Extractor interface {
	Extract(ctx context.Context, appCtx *ApplicationContext) (*TextExtraction, error)
}

// StaticExtractor serves a fixed extraction, for tests and for CLI flows
// where the text is supplied directly.
type StaticExtractor struct {
	extraction *TextExtraction
}

// NewStaticExtractor wraps a fixed extraction in an Extractor.
func NewStaticExtractor(extraction *TextExtraction) *StaticExtractor {
	return &StaticExtractor{extraction: extraction}
}

// Extract returns the fixed extraction regardless of context. A nil
// extraction yields ErrDetectionFailed.
func (e *StaticExtractor) Extract(context.Context, *ApplicationContext) (*TextExtraction, error) {
	if e.extraction == nil {
		return nil, ErrDetectionFailed
	}
	out := *e.extraction
	return &out, nil
}
