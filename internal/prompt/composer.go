// Package prompt composes the final system and user prompts: template
// placeholder substitution in a fixed order, conversation history from the
// memory store, OCR quality analysis, and the optimization gate that swaps
// in a hardened prompt variant only when the input looks degraded.
package prompt

import (
	"fmt"
	"regexp"
	"strings"

	"glance/internal/config"
	"glance/internal/logging"
	"glance/internal/memory"
	"glance/internal/perception"
	"glance/internal/template"
)

// ComposeContext carries everything a single composition needs. The zero
// value of any field renders as an empty string in the prompt, except
// Language, which falls back to a generic phrase.
type ComposeContext struct {
	Query              string
	OCRText            string
	OCRConfidence      float64
	Language           string // detected natural language of the screen text
	LanguageConfidence float64
	Hints              perception.Hints
	SessionID          string            // enables the history block on multi-turn templates
	Variables          map[string]string // routing-extracted slot values
	PrePrompt          string            // user-configured preamble
}

// Optimization records why the hardened prompt variant was swapped in.
type Optimization struct {
	Triggers []string `json:"triggers"`
}

// ComposedPrompt is the rendered result.
type ComposedPrompt struct {
	System          string
	User            string
	TemplateID      string
	Metrics         QualityMetrics
	Optimization    *Optimization // nil when the gate did not fire
	EstimatedTokens int
}

// Composer renders templates against a compose context. It is stateless
// apart from its configuration and safe for concurrent use.
type Composer struct {
	cfg      config.PromptConfig
	registry *template.Registry
	memory   *memory.Store // optional; nil disables history blocks
}

// NewComposer returns a composer over the given template registry. mem may
// be nil when conversation history is not wanted.
func NewComposer(cfg config.PromptConfig, registry *template.Registry, mem *memory.Store) *Composer {
	return &Composer{cfg: cfg, registry: registry, memory: mem}
}

// residual matches placeholders no substitution step claimed.
var residual = regexp.MustCompile(`\{\{[a-z_]+\}\}`)

// GeneratePrompt renders the template with the fixed substitution order:
// pre-prompt, OCR text, language, query, quality label, history block,
// domain instructions, then routing variables. Missing values become empty
// strings and runs of blank lines collapse afterwards. The result is
// deterministic for identical inputs including the session snapshot.
func (c *Composer) GeneratePrompt(templateID string, cc ComposeContext, enableOptimization bool) (*ComposedPrompt, error) {
	tmpl, err := c.registry.Get(templateID)
	if err != nil {
		return nil, fmt.Errorf("compose %s: %w", templateID, err)
	}

	metrics := analyzeQuality(cc)
	out := &ComposedPrompt{TemplateID: tmpl.ID, Metrics: metrics}

	if enableOptimization {
		if triggers := optimizationTriggers(metrics, c.cfg); len(triggers) > 0 {
			out.Optimization = &Optimization{Triggers: triggers}
		}
	}

	steps := c.substitutionSteps(tmpl, cc)
	out.System = c.render(tmpl.SystemPrompt, steps, cc.Variables)
	out.User = c.render(tmpl.UserPrompt, steps, cc.Variables)

	if out.Optimization != nil {
		out.System = hardenSystemPrompt(out.System, out.Optimization.Triggers)
		logging.Prompt("optimization applied to %s: %s", tmpl.ID, strings.Join(out.Optimization.Triggers, ", "))
	}

	out.EstimatedTokens = estimateTokens(out.System) + estimateTokens(out.User)
	logging.PromptDebug("composed %s: %d system chars, %d user chars, ~%d tokens",
		tmpl.ID, len(out.System), len(out.User), out.EstimatedTokens)
	return out, nil
}

// substitutionStep binds one placeholder class to its value.
type substitutionStep struct {
	placeholder string
	value       string
}

func (c *Composer) substitutionSteps(tmpl *template.Template, cc ComposeContext) []substitutionStep {
	return []substitutionStep{
		{"{{pre_prompt}}", cc.PrePrompt},
		{"{{ocr_text}}", cc.OCRText},
		{"{{detected_language}}", languageOrDefault(cc.Language)},
		{"{{query}}", cc.Query},
		{"{{quality}}", qualityLabel(cc.OCRConfidence, c.cfg)},
		{"{{history}}", c.historyBlock(tmpl, cc.SessionID)},
		{"{{domain_instructions}}", domainInstructions[tmpl.Domain]},
	}
}

// languageOrDefault keeps the trailing language sentence of the built-in
// templates grammatical when detection produced nothing.
func languageOrDefault(lang string) string {
	if lang == "" {
		return "the user's language"
	}
	return lang
}

// render applies the ordered steps, then routing variables, then clears
// anything still unclaimed and collapses the blank lines left behind.
func (c *Composer) render(content string, steps []substitutionStep, variables map[string]string) string {
	if !strings.Contains(content, "{{") {
		return strings.TrimSpace(content)
	}
	for _, step := range steps {
		content = strings.ReplaceAll(content, step.placeholder, step.value)
	}
	for name, value := range variables {
		content = strings.ReplaceAll(content, "{{"+name+"}}", value)
	}
	content = residual.ReplaceAllString(content, "")
	return strings.TrimSpace(collapseBlankLines(content))
}

// historyBlock formats the recent conversation for multi-turn templates.
// Returns "" when history does not apply.
func (c *Composer) historyBlock(tmpl *template.Template, sessionID string) string {
	if !tmpl.MultiTurnSupport || sessionID == "" || c.memory == nil {
		return ""
	}
	mc := c.memory.GetMemoryContext(sessionID, tmpl.MemoryDepth, false)
	if len(mc.RecentMessages) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("Previous conversation:\n")
	for _, m := range mc.RecentMessages {
		label := "Assistant"
		if m.Role == memory.RoleUser {
			label = "User"
		}
		sb.WriteString(fmt.Sprintf("%s: %s\n", label, m.Content))
	}
	return strings.TrimRight(sb.String(), "\n")
}

// domainInstructions maps a template domain to its formatting guidance.
var domainInstructions = map[string]string{
	"general":         "Answer directly and concisely. Use short paragraphs.",
	"programming":     "Format code in fenced blocks with a language tag. Keep explanations outside the blocks and reference line numbers when useful.",
	"academic":        "Use precise terminology, define concepts on first use, and structure longer answers with headings.",
	"mathematics":     "Show the solution step by step. Keep one operation per line and state the final result on its own line.",
	"document":        "Preserve the document's structure in your answer. Quote passages you refer to.",
	"data":            "Reference cells and ranges explicitly (for example B2:D10). Present derived values in a small table when it helps.",
	"presentation":    "Keep suggestions slide-sized: short phrases, parallel structure, one idea per bullet.",
	"communication":   "Match the tone of the conversation. Offer a ready-to-send draft when asked to write.",
	"web":             "Ground the answer in the page content. Note when information likely changed since the page was written.",
	"system":          "Give commands in fenced blocks, one command per line. Warn before anything destructive.",
	"file-management": "Propose file operations as an explicit plan before any commands. Never assume deletion is wanted.",
}

// hardenSystemPrompt prepends corrective guidance for each breached
// threshold. Trigger order is fixed, so output stays deterministic.
func hardenSystemPrompt(system string, triggers []string) string {
	var sb strings.Builder
	sb.WriteString("Input quality notes:\n")
	for _, t := range triggers {
		if note, ok := triggerNotes[t]; ok {
			sb.WriteString("- " + note + "\n")
		}
	}
	sb.WriteString("\n")
	sb.WriteString(system)
	return sb.String()
}

var triggerNotes = map[string]string{
	TriggerLowConfidence:  "The captured text comes from low-confidence screen recognition. Expect misread characters and reconstruct the intended words from context.",
	TriggerManyErrors:     "The captured text contains likely recognition errors. Silently correct obvious artifacts instead of quoting them.",
	TriggerLowReadability: "Parts of the captured text are garbled. Prefer the user's query over the capture when they disagree.",
	TriggerUncertainLang:  "Language detection is uncertain. Answer in the language the user's query is written in.",
	TriggerTooLong:        "The capture is long. Focus on the part relevant to the query instead of summarizing everything.",
	TriggerTooShort:       "The capture is very short and may lack context. Ask for the missing detail if the query cannot be answered from it.",
	TriggerSpecialContent: "The capture contains code or formulas. Preserve their exact symbols and structure when referring to them.",
}

// collapseBlankLines reduces runs of blank lines to a single blank line
// and trims trailing space from each line.
func collapseBlankLines(content string) string {
	for strings.Contains(content, "\n\n\n") {
		content = strings.ReplaceAll(content, "\n\n\n", "\n\n")
	}
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.Join(lines, "\n")
}

// estimateTokens approximates the token count as chars/4.
func estimateTokens(content string) int {
	if content == "" {
		return 0
	}
	return (len(content) + 3) / 4
}
