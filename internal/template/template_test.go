package template

import (
	"encoding/json"
	"errors"
	"testing"

	"glance/internal/store"
)

func TestBuiltinsRegistered(t *testing.T) {
	r := NewRegistry()

	ids := []string{
		General, Technical, Academic, Math, Document, Spreadsheet,
		Presentation, Email, Web, Shell, Files,
	}
	for _, id := range ids {
		tpl, err := r.Get(id)
		if err != nil {
			t.Fatalf("Get(%s): %v", id, err)
		}
		if tpl.IsCustom {
			t.Errorf("%s should not be flagged custom", id)
		}
		if tpl.SystemPrompt == "" {
			t.Errorf("%s has empty system prompt", id)
		}
		if tpl.MultiTurnSupport && tpl.MemoryDepth <= 0 {
			t.Errorf("%s supports multi-turn but has depth %d", id, tpl.MemoryDepth)
		}
	}

	tech, _ := r.Get(Technical)
	if tech.Domain != "programming" {
		t.Errorf("technical domain = %q", tech.Domain)
	}
	gen, _ := r.Get(General)
	if gen.RequiresContext {
		t.Error("general template must not require context")
	}
}

func TestGetUnknown(t *testing.T) {
	r := NewRegistry()
	_, err := r.Get("nope")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestRegisterCustomShadowsBuiltin(t *testing.T) {
	r := NewRegistry()

	custom := &Template{
		ID:           Technical,
		Name:         "My Code Helper",
		SystemPrompt: "You are my custom reviewer.",
		UserPrompt:   "{{query}}",
		Domain:       "programming",
		MaxTokens:    512,
	}
	if err := r.Register(custom); err != nil {
		t.Fatalf("register: %v", err)
	}

	got, err := r.Get(Technical)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.IsCustom || got.Name != "My Code Helper" {
		t.Errorf("custom did not shadow builtin: %+v", got)
	}

	if err := r.Remove(Technical); err != nil {
		t.Fatalf("remove: %v", err)
	}
	got, _ = r.Get(Technical)
	if got.IsCustom {
		t.Error("builtin should be visible again after custom removal")
	}
}

func TestRemoveBuiltinRefused(t *testing.T) {
	r := NewRegistry()
	if err := r.Remove(General); err == nil {
		t.Fatal("removing a builtin should fail")
	}
	if err := r.Remove("nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestRegisterRejectsInvalid(t *testing.T) {
	r := NewRegistry()
	cases := []*Template{
		{Name: "no id", SystemPrompt: "x"},
		{ID: "empty-prompts"},
		{ID: "bad-depth", SystemPrompt: "x", MemoryDepth: -1},
		{ID: "bad-threshold", SystemPrompt: "x", MinConfidenceThreshold: 1.5},
	}
	for _, tpl := range cases {
		if err := r.Register(tpl); err == nil {
			t.Errorf("Register(%q) should fail", tpl.ID)
		}
	}
}

func TestCustomPersistence(t *testing.T) {
	st := store.NewMemoryStore()
	r := NewRegistry()
	if err := r.AttachStore(st); err != nil {
		t.Fatalf("attach: %v", err)
	}

	first := &Template{ID: "review", SystemPrompt: "Review the screen.", Domain: "custom"}
	second := &Template{ID: "quiz", SystemPrompt: "Quiz me on this.", Domain: "custom"}
	if err := r.Register(first); err != nil {
		t.Fatalf("register first: %v", err)
	}
	if err := r.Register(second); err != nil {
		t.Fatalf("register second: %v", err)
	}

	// The stored value is an ordered array of [id, record] pairs.
	raw, ok, err := st.Get(store.KeyCustomTemplate)
	if err != nil || !ok {
		t.Fatalf("stored value missing: ok=%v err=%v", ok, err)
	}
	var pairs [][2]json.RawMessage
	if err := json.Unmarshal(raw, &pairs); err != nil {
		t.Fatalf("stored value is not a pair array: %v", err)
	}
	if len(pairs) != 2 {
		t.Fatalf("pair count = %d", len(pairs))
	}
	var firstID string
	if err := json.Unmarshal(pairs[0][0], &firstID); err != nil || firstID != "review" {
		t.Errorf("first pair id = %q err=%v", firstID, err)
	}

	// A fresh registry over the same store sees both, in order.
	r2 := NewRegistry()
	if err := r2.AttachStore(st); err != nil {
		t.Fatalf("attach second: %v", err)
	}
	customs := r2.Customs()
	if len(customs) != 2 || customs[0].ID != "review" || customs[1].ID != "quiz" {
		t.Fatalf("restored customs = %+v", customs)
	}
	if !customs[0].IsCustom {
		t.Error("restored template lost its custom flag")
	}
}

func TestRegistryReturnsCopies(t *testing.T) {
	r := NewRegistry()
	tpl, _ := r.Get(General)
	tpl.SystemPrompt = "mutated"
	tpl.VariableSlots = append(tpl.VariableSlots, "extra")

	again, _ := r.Get(General)
	if again.SystemPrompt == "mutated" {
		t.Error("registry state leaked through Get")
	}
}

func TestAllSortedAndShadowed(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(&Template{ID: General, SystemPrompt: "shadow", Domain: "general"}); err != nil {
		t.Fatalf("register: %v", err)
	}

	all := r.All()
	if len(all) != len(Builtins()) {
		t.Fatalf("All() = %d templates, want %d", len(all), len(Builtins()))
	}
	for i := 1; i < len(all); i++ {
		if all[i-1].ID >= all[i].ID {
			t.Fatalf("All() not sorted: %s before %s", all[i-1].ID, all[i].ID)
		}
	}
	for _, tpl := range all {
		if tpl.ID == General && !tpl.IsCustom {
			t.Error("custom shadow missing from All()")
		}
	}
}
