package template

// Built-in template ids. The router only ever emits ids from this set plus
// registered customs; General is the default and the explicit-intent
// target.
const (
	General      = "general"
	Technical    = "technical"
	Academic     = "academic"
	Math         = "math"
	Document     = "document"
	Spreadsheet  = "spreadsheet"
	Presentation = "presentation"
	Email        = "email"
	Web          = "web"
	Shell        = "shell"
	Files        = "files"
)

// Builtins returns the built-in template set. Fresh copies every call;
// callers may not mutate registry state through them.
func Builtins() []*Template {
	return []*Template{
		{
			ID:   General,
			Name: "General Assistant",
			SystemPrompt: `You are a helpful desktop assistant. Answer directly and concisely.
{{domain_instructions}}`,
			UserPrompt: `{{pre_prompt}}

{{history}}

{{ocr_text}}

{{query}}
Respond in {{detected_language}}.`,
			RequiresContext:        false,
			MultiTurnSupport:       true,
			MemoryDepth:            10,
			MinConfidenceThreshold: 0,
			MaxTokens:              1024,
			Temperature:            0.7,
			Domain:                 "general",
		},
		{
			ID:   Technical,
			Name: "Code Assistant",
			SystemPrompt: `You are a senior software engineer looking at the user's editor.
Explain code precisely, point at concrete lines, and prefer minimal working examples.
Active file: {{file_name}} ({{language}})
{{domain_instructions}}`,
			UserPrompt: `{{pre_prompt}}

{{history}}

Editor screen (capture quality {{quality}}):
{{ocr_text}}

Selected code:
{{selected_text}}

{{query}}
Respond in {{detected_language}}.`,
			RequiresContext:        true,
			MultiTurnSupport:       true,
			MemoryDepth:            5,
			MinConfidenceThreshold: 0.6,
			MaxTokens:              2048,
			Temperature:            0.3,
			Domain:                 "programming",
			VariableSlots:          []string{"file_name", "language", "project_path"},
		},
		{
			ID:   Academic,
			Name: "Study Assistant",
			SystemPrompt: `You are a patient tutor. Explain the material on screen step by step,
define technical terms on first use, and check the reasoning before the answer.
{{domain_instructions}}`,
			UserPrompt: `{{pre_prompt}}

{{history}}

Material on screen (capture quality {{quality}}):
{{ocr_text}}

{{query}}
Respond in {{detected_language}}.`,
			RequiresContext:        true,
			MultiTurnSupport:       true,
			MemoryDepth:            5,
			MinConfidenceThreshold: 0.5,
			MaxTokens:              2048,
			Temperature:            0.5,
			Domain:                 "academic",
		},
		{
			ID:   Math,
			Name: "Math Solver",
			SystemPrompt: `You are a mathematics assistant. Work the problem on screen step by step,
state each transformation, keep notation consistent with the source, and verify the
result before presenting it.
{{domain_instructions}}`,
			UserPrompt: `{{pre_prompt}}

Problem as captured (quality {{quality}}, may contain recognition errors):
{{ocr_text}}

{{query}}
Respond in {{detected_language}}.`,
			RequiresContext:        true,
			MultiTurnSupport:       false,
			MemoryDepth:            0,
			MinConfidenceThreshold: 0.7,
			MaxTokens:              1536,
			Temperature:            0.2,
			Domain:                 "mathematics",
		},
		{
			ID:   Document,
			Name: "Document Assistant",
			SystemPrompt: `You are a writing and reading assistant for the document "{{document_name}}".
Summarize faithfully, quote exactly, and keep the document's register when drafting.
{{domain_instructions}}`,
			UserPrompt: `{{pre_prompt}}

{{history}}

Document excerpt (capture quality {{quality}}):
{{ocr_text}}

{{query}}
Respond in {{detected_language}}.`,
			RequiresContext:        true,
			MultiTurnSupport:       true,
			MemoryDepth:            5,
			MinConfidenceThreshold: 0.5,
			MaxTokens:              1536,
			Temperature:            0.5,
			Domain:                 "document",
			VariableSlots:          []string{"document_name", "document_type"},
		},
		{
			ID:   Spreadsheet,
			Name: "Spreadsheet Assistant",
			SystemPrompt: `You are a spreadsheet assistant working on "{{document_name}}" (active cell {{active_cell}}).
Explain formulas, propose concrete cell formulas in the sheet's own syntax, and show
expected results for small examples.
{{domain_instructions}}`,
			UserPrompt: `{{pre_prompt}}

{{history}}

Visible sheet content (capture quality {{quality}}):
{{ocr_text}}

{{query}}
Respond in {{detected_language}}.`,
			RequiresContext:        true,
			MultiTurnSupport:       true,
			MemoryDepth:            3,
			MinConfidenceThreshold: 0.5,
			MaxTokens:              1536,
			Temperature:            0.3,
			Domain:                 "data",
			VariableSlots:          []string{"document_name", "document_type", "active_cell"},
		},
		{
			ID:   Presentation,
			Name: "Presentation Assistant",
			SystemPrompt: `You are a presentation coach working on "{{document_name}}" (slide {{current_slide}}).
Keep suggestions short enough to fit a slide and preserve the deck's tone.
{{domain_instructions}}`,
			UserPrompt: `{{pre_prompt}}

{{history}}

Slide content (capture quality {{quality}}):
{{ocr_text}}

{{query}}
Respond in {{detected_language}}.`,
			RequiresContext:        true,
			MultiTurnSupport:       true,
			MemoryDepth:            3,
			MinConfidenceThreshold: 0.5,
			MaxTokens:              1536,
			Temperature:            0.6,
			Domain:                 "presentation",
			VariableSlots:          []string{"document_name", "document_type", "current_slide"},
		},
		{
			ID:   Email,
			Name: "Email Assistant",
			SystemPrompt: `You are an email assistant. Draft and rework messages that match the thread's
tone, stay brief, and lead with the point. Never invent facts about the correspondents.
{{domain_instructions}}`,
			UserPrompt: `{{pre_prompt}}

{{history}}

Thread on screen (capture quality {{quality}}):
{{ocr_text}}

{{query}}
Respond in {{detected_language}}.`,
			RequiresContext:        true,
			MultiTurnSupport:       true,
			MemoryDepth:            5,
			MinConfidenceThreshold: 0.5,
			MaxTokens:              1024,
			Temperature:            0.6,
			Domain:                 "communication",
		},
		{
			ID:   Web,
			Name: "Web Page Assistant",
			SystemPrompt: `You are a reading assistant for the page "{{page_title}}" ({{url}}).
Answer from the captured page content first; say so when the answer needs
information beyond it.
{{domain_instructions}}`,
			UserPrompt: `{{pre_prompt}}

{{history}}

Page content (capture quality {{quality}}):
{{ocr_text}}

{{query}}
Respond in {{detected_language}}.`,
			RequiresContext:        true,
			MultiTurnSupport:       true,
			MemoryDepth:            5,
			MinConfidenceThreshold: 0.5,
			MaxTokens:              1536,
			Temperature:            0.6,
			Domain:                 "web",
			VariableSlots:          []string{"url", "domain", "page_title"},
		},
		{
			ID:   Shell,
			Name: "Terminal Assistant",
			SystemPrompt: `You are a command-line assistant ({{shell_type}}, cwd {{current_directory}}).
Explain errors and propose exact commands. Flag destructive commands before
suggesting them.
{{domain_instructions}}`,
			UserPrompt: `{{pre_prompt}}

{{history}}

Terminal output (capture quality {{quality}}):
{{ocr_text}}

Last command: {{last_command}}

{{query}}
Respond in {{detected_language}}.`,
			RequiresContext:        true,
			MultiTurnSupport:       true,
			MemoryDepth:            5,
			MinConfidenceThreshold: 0.5,
			MaxTokens:              1024,
			Temperature:            0.2,
			Domain:                 "system",
			VariableSlots:          []string{"current_directory", "last_command", "shell_type"},
		},
		{
			ID:   Files,
			Name: "File Organizer",
			SystemPrompt: `You are a file management assistant for the folder {{current_path}}.
Suggest concrete names and folder layouts; never assume file contents you have
not been shown.
{{domain_instructions}}`,
			UserPrompt: `{{pre_prompt}}

Selected files:
{{selected_files}}

{{query}}
Respond in {{detected_language}}.`,
			RequiresContext:        true,
			MultiTurnSupport:       false,
			MemoryDepth:            0,
			MinConfidenceThreshold: 0.5,
			MaxTokens:              512,
			Temperature:            0.3,
			Domain:                 "file-management",
			VariableSlots:          []string{"current_path", "selected_files"},
		},
	}
}
