package template

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTemplateYAML(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

const twoTemplatesYAML = `- id: review
  name: Code Review
  system_prompt: "Review the code on screen for defects."
  user_prompt: "{{ocr_text}}\n{{query}}"
  requires_context: true
  multi_turn_support: true
  domain: programming
- id: eli5
  system_prompt: "Explain the screen content like I am five."
  max_tokens: 256
  temperature: 0.9
`

func TestParseYAMLFileArray(t *testing.T) {
	path := writeTemplateYAML(t, t.TempDir(), "custom.yaml", twoTemplatesYAML)

	defs, err := ParseYAMLFile(path)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(defs) != 2 {
		t.Fatalf("len = %d", len(defs))
	}

	review := defs[0]
	if review.ID != "review" || !review.IsCustom {
		t.Errorf("first = %+v", review)
	}
	// Omitted max_tokens and memory_depth pick up defaults.
	if review.MaxTokens != defaultMaxTokens {
		t.Errorf("maxTokens = %d, want default %d", review.MaxTokens, defaultMaxTokens)
	}
	if review.MemoryDepth != defaultMemoryDepth {
		t.Errorf("memoryDepth = %d, want default %d", review.MemoryDepth, defaultMemoryDepth)
	}

	eli5 := defs[1]
	if eli5.MaxTokens != 256 {
		t.Errorf("explicit maxTokens overridden: %d", eli5.MaxTokens)
	}
	if eli5.Name != "eli5" {
		t.Errorf("name default = %q", eli5.Name)
	}
	if eli5.Domain != "general" {
		t.Errorf("domain default = %q", eli5.Domain)
	}
}

func TestParseYAMLFileSingleDoc(t *testing.T) {
	path := writeTemplateYAML(t, t.TempDir(), "one.yaml", `id: single
system_prompt: "Single template document."
domain: general
`)

	defs, err := ParseYAMLFile(path)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(defs) != 1 || defs[0].ID != "single" {
		t.Fatalf("defs = %+v", defs)
	}
}

func TestParseYAMLFileSkipsInvalid(t *testing.T) {
	path := writeTemplateYAML(t, t.TempDir(), "mixed.yaml", `- name: missing id
  system_prompt: "orphan"
- id: good
  system_prompt: "kept"
`)

	defs, err := ParseYAMLFile(path)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(defs) != 1 || defs[0].ID != "good" {
		t.Fatalf("defs = %+v", defs)
	}
}

func TestLoadYAMLFileReplacesRemoved(t *testing.T) {
	dir := t.TempDir()
	path := writeTemplateYAML(t, dir, "custom.yaml", twoTemplatesYAML)

	r := NewRegistry()
	n, err := r.LoadYAMLFile(path)
	if err != nil || n != 2 {
		t.Fatalf("load: n=%d err=%v", n, err)
	}
	if !r.Has("review") || !r.Has("eli5") {
		t.Fatal("templates not registered")
	}

	// Rewrite the file with only one template left.
	writeTemplateYAML(t, dir, "custom.yaml", `- id: review
  system_prompt: "Updated reviewer."
`)
	n, err = r.LoadYAMLFile(path)
	if err != nil || n != 1 {
		t.Fatalf("reload: n=%d err=%v", n, err)
	}
	if r.Has("eli5") {
		t.Error("eli5 should be gone after reload")
	}
	tpl, _ := r.Get("review")
	if tpl.SystemPrompt != "Updated reviewer." {
		t.Errorf("review not updated: %q", tpl.SystemPrompt)
	}
}

func TestUnloadFile(t *testing.T) {
	dir := t.TempDir()
	path := writeTemplateYAML(t, dir, "custom.yaml", twoTemplatesYAML)

	r := NewRegistry()
	if _, err := r.LoadYAMLFile(path); err != nil {
		t.Fatalf("load: %v", err)
	}
	if err := r.UnloadFile(path); err != nil {
		t.Fatalf("unload: %v", err)
	}
	if r.Has("review") || r.Has("eli5") {
		t.Error("file templates should be gone after unload")
	}
	// Built-ins are untouched.
	if !r.Has(General) {
		t.Error("builtin lost")
	}
}
