package prompt

import (
	"strings"
	"unicode"

	"glance/internal/config"
)

// QualityMetrics describes how trustworthy the captured text looks.
type QualityMetrics struct {
	Confidence         float64 `json:"confidence"`
	EstimatedErrors    int     `json:"estimated_errors"`
	Readability        float64 `json:"readability"`
	LanguageConfidence float64 `json:"language_confidence"`
	TextLength         int     `json:"text_length"`
	HasFormulas        bool    `json:"has_formulas"`
	HasCode            bool    `json:"has_code"`
}

// Optimization trigger names, in gate evaluation order.
const (
	TriggerLowConfidence  = "low-confidence"
	TriggerManyErrors     = "ocr-errors"
	TriggerLowReadability = "low-readability"
	TriggerUncertainLang  = "uncertain-language"
	TriggerTooLong        = "text-too-long"
	TriggerTooShort       = "text-too-short"
	TriggerSpecialContent = "special-content"
)

func analyzeQuality(cc ComposeContext) QualityMetrics {
	return QualityMetrics{
		Confidence:         cc.OCRConfidence,
		EstimatedErrors:    estimateOCRErrors(cc.OCRText),
		Readability:        readabilityScore(cc.OCRText),
		LanguageConfidence: cc.LanguageConfidence,
		TextLength:         len(cc.OCRText),
		HasFormulas:        cc.Hints.HasFormulas,
		HasCode:            cc.Hints.HasCode,
	}
}

// optimizationTriggers reports every breached threshold. Without captured
// text there is nothing to harden against, so the gate stays closed.
func optimizationTriggers(m QualityMetrics, cfg config.PromptConfig) []string {
	if m.TextLength == 0 {
		return nil
	}
	var triggers []string
	if m.Confidence < cfg.OptimizeConfidence {
		triggers = append(triggers, TriggerLowConfidence)
	}
	if m.EstimatedErrors > cfg.OptimizeMaxErrors {
		triggers = append(triggers, TriggerManyErrors)
	}
	if m.Readability < cfg.OptimizeReadability {
		triggers = append(triggers, TriggerLowReadability)
	}
	if m.LanguageConfidence < cfg.OptimizeLanguageConf {
		triggers = append(triggers, TriggerUncertainLang)
	}
	if m.TextLength > cfg.OptimizeMaxLength {
		triggers = append(triggers, TriggerTooLong)
	} else if m.TextLength < cfg.OptimizeMinLength {
		triggers = append(triggers, TriggerTooShort)
	}
	if m.HasFormulas || m.HasCode {
		triggers = append(triggers, TriggerSpecialContent)
	}
	return triggers
}

// qualityLabel buckets OCR confidence into high, medium, or low.
func qualityLabel(confidence float64, cfg config.PromptConfig) string {
	switch {
	case confidence >= cfg.HighQualityThreshold:
		return "high"
	case confidence >= cfg.MediumQualityThreshold:
		return "medium"
	default:
		return "low"
	}
}

// estimateOCRErrors counts tokens that look like recognition damage.
func estimateOCRErrors(text string) int {
	damaged := 0
	for _, tok := range strings.Fields(text) {
		if looksDamaged(tok) {
			damaged++
		}
	}
	return damaged
}

// readabilityScore is the fraction of tokens that look like clean words.
// Empty text reads as perfectly clean.
func readabilityScore(text string) float64 {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return 1
	}
	clean := 0
	for _, tok := range fields {
		if !looksDamaged(tok) {
			clean++
		}
	}
	return float64(clean) / float64(len(fields))
}

// looksDamaged flags the classic OCR artifact shapes: digits buried inside
// words (0/O and 1/l confusions), the same letter three or more times in a
// row, and runs of bare symbols.
func looksDamaged(token string) bool {
	trimmed := strings.TrimFunc(token, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	if trimmed == "" {
		return len([]rune(token)) >= 2
	}

	runes := []rune(trimmed)
	lastLetter := -1
	for i := len(runes) - 1; i >= 0; i-- {
		if unicode.IsLetter(runes[i]) {
			lastLetter = i
			break
		}
	}
	sawLetter := false
	for i, r := range runes {
		if unicode.IsLetter(r) {
			sawLetter = true
			continue
		}
		if unicode.IsDigit(r) && sawLetter && i < lastLetter {
			return true
		}
	}

	run := 1
	for i := 1; i < len(runes); i++ {
		if runes[i] == runes[i-1] && unicode.IsLetter(runes[i]) {
			run++
			if run >= 3 {
				return true
			}
		} else {
			run = 1
		}
	}
	return false
}
