package routing

import (
	"regexp"
	"strings"

	"glance/internal/perception"
)

// ===== CONTENT DETECTORS =====
// These run over the visible text of a context (window title, selection,
// variant detail). They are deliberately cheap: a template mismatch costs
// one worse prompt, not a wrong answer.

var mathPatterns = []*regexp.Regexp{
	// Arithmetic with an operator between numbers: 12 + 7, 3*4 = 12.
	regexp.MustCompile(`\d+\s*[+\-*/^=]\s*\d+`),
	// Equation in one variable: x = 5, y= -2.3.
	regexp.MustCompile(`\b[a-z]\s*=\s*-?\d`),
	// Named functions applied to something.
	regexp.MustCompile(`\b(sin|cos|tan|log|ln|sqrt|lim|exp)\s*\(`),
	// Mathematical symbols that survive OCR.
	regexp.MustCompile(`[∑∫√π≈≠≤≥±×÷]`),
	// Powers and subscripted indices: x^2, a_1.
	regexp.MustCompile(`[a-zA-Z0-9]\^[0-9(]|[a-z]_[0-9]`),
	// Standalone fractions: 3/4 (but not dates or paths).
	regexp.MustCompile(`(?:^|\s)\d{1,3}/\d{1,3}(?:\s|$)`),
}

var codePatterns = []*regexp.Regexp{
	// Declaration keywords across mainstream languages.
	regexp.MustCompile(`\b(func|function|def|class|struct|interface|impl|fn)\s+\w`),
	// Import/include forms.
	regexp.MustCompile(`\b(import|#include|require|use|from)\s+[\w"'<.]`),
	// Control flow with parenthesized condition.
	regexp.MustCompile(`\b(if|for|while|switch|match)\s*\(`),
	// Assignment/binding keywords.
	regexp.MustCompile(`\b(var|let|const|return)\b`),
	// Arrow functions, scope resolution, markup tags.
	regexp.MustCompile(`=>|::\w|</?[a-zA-Z][^>]*>`),
	// Block or statement terminators at line end.
	regexp.MustCompile(`(?m)[{};]\s*$`),
}

// academicKeywords signal scholarly material. A single hit is noise
// ("analysis" appears everywhere); three distinct hits are a strong signal.
var academicKeywords = []string{
	"abstract", "hypothesis", "theorem", "lemma", "corollary",
	"methodology", "literature", "citation", "references", "bibliography",
	"thesis", "dissertation", "experiment", "empirical", "qualitative",
	"quantitative", "peer-reviewed", "journal", "et al", "appendix",
	"curriculum", "syllabus", "lecture", "seminar", "proof",
}

const academicHitThreshold = 3

// DetectMath reports whether the text reads like mathematical material.
func DetectMath(text string) bool {
	if text == "" {
		return false
	}
	for _, re := range mathPatterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// DetectCode reports whether the text reads like source code.
func DetectCode(text string) bool {
	if text == "" {
		return false
	}
	for _, re := range codePatterns {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}

// DetectAcademic reports whether the text hits at least three distinct
// academic keywords.
func DetectAcademic(text string) bool {
	return academicHits(text) >= academicHitThreshold
}

func academicHits(text string) int {
	if text == "" {
		return 0
	}
	lower := strings.ToLower(text)
	hits := 0
	for _, kw := range academicKeywords {
		if strings.Contains(lower, kw) {
			hits++
		}
	}
	return hits
}

// DetectTable reports whether the text looks tabular: at least two lines
// each carrying at least two column separators.
func DetectTable(text string) bool {
	if text == "" {
		return false
	}
	tabular := 0
	for _, line := range strings.Split(text, "\n") {
		if strings.Count(line, "\t") >= 2 || strings.Count(line, "|") >= 2 {
			tabular++
			if tabular >= 2 {
				return true
			}
		}
	}
	return false
}

// ScanHints runs all detectors over extracted text and packages the result
// for the composer's optimization gate.
func ScanHints(text string) perception.Hints {
	return perception.Hints{
		HasCode:     DetectCode(text),
		HasFormulas: DetectMath(text),
		HasTable:    DetectTable(text),
	}
}

// visibleText collects everything textual a context exposes, for the
// content predicates.
func visibleText(ctx *perception.ApplicationContext) string {
	var sb strings.Builder
	sb.WriteString(ctx.WindowTitle)
	if ctx.SelectedText != "" {
		sb.WriteString("\n")
		sb.WriteString(ctx.SelectedText)
	}

	switch v := ctx.Variant.(type) {
	case *perception.BrowserVariant:
		if v.Title != "" {
			sb.WriteString("\n")
			sb.WriteString(v.Title)
		}
		if v.SelectedText != "" {
			sb.WriteString("\n")
			sb.WriteString(v.SelectedText)
		}
	case *perception.EditorVariant:
		if v.SelectedCode != "" {
			sb.WriteString("\n")
			sb.WriteString(v.SelectedCode)
		}
	case *perception.OfficeVariant:
		if v.SelectedText != "" {
			sb.WriteString("\n")
			sb.WriteString(v.SelectedText)
		}
	case *perception.TerminalVariant:
		if v.LastCommand != "" {
			sb.WriteString("\n")
			sb.WriteString(v.LastCommand)
		}
	}
	return sb.String()
}

// Context predicates for the rule table.

func hasMathContent(ctx *perception.ApplicationContext) bool {
	return DetectMath(visibleText(ctx))
}

func hasCodeContent(ctx *perception.ApplicationContext) bool {
	return DetectCode(visibleText(ctx))
}

func hasAcademicContent(ctx *perception.ApplicationContext) bool {
	return DetectAcademic(visibleText(ctx))
}
