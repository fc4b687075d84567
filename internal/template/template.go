// Package template holds the prompt template registry: the built-in
// strategies the router picks between, plus custom templates added at
// runtime from the store or from watched YAML files.
package template

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"

	"glance/internal/logging"
	"glance/internal/store"
)

// ErrNotFound means a template id is not registered. The router's default
// rule should make this unreachable for routed ids, so hitting it signals a
// programming error rather than user input.
var ErrNotFound = errors.New("template not found")

// Template is a named prompt strategy. Immutable once registered; the
// composer reads it, never writes it.
type Template struct {
	ID           string `json:"id" yaml:"id"`
	Name         string `json:"name" yaml:"name"`
	SystemPrompt string `json:"systemPrompt" yaml:"system_prompt"`
	UserPrompt   string `json:"userPrompt" yaml:"user_prompt"`

	// RequiresContext marks templates that only make sense with screen
	// content attached.
	RequiresContext bool `json:"requiresContext" yaml:"requires_context"`

	// MultiTurnSupport enables the conversation history block; MemoryDepth
	// caps how many prior messages it may pull in.
	MultiTurnSupport bool `json:"multiTurnSupport" yaml:"multi_turn_support"`
	MemoryDepth      int  `json:"memoryDepth" yaml:"memory_depth"`

	// MinConfidenceThreshold is the routing confidence below which this
	// template should not be auto-picked.
	MinConfidenceThreshold float64 `json:"minConfidenceThreshold" yaml:"min_confidence_threshold"`

	MaxTokens   int     `json:"maxTokens" yaml:"max_tokens"`
	Temperature float64 `json:"temperature" yaml:"temperature"`
	Domain      string  `json:"domain" yaml:"domain"`

	// VariableSlots lists the routing variables this template's prompts
	// reference beyond the always-present ones.
	VariableSlots []string `json:"variableSlots,omitempty" yaml:"variable_slots,omitempty"`

	IsCustom bool `json:"isCustom" yaml:"-"`
}

// Validate checks the fields a template cannot function without.
func (t *Template) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("template missing id")
	}
	if t.SystemPrompt == "" && t.UserPrompt == "" {
		return fmt.Errorf("template %q has no prompt content", t.ID)
	}
	if t.MemoryDepth < 0 {
		return fmt.Errorf("template %q: negative memory depth", t.ID)
	}
	if t.MinConfidenceThreshold < 0 || t.MinConfidenceThreshold > 1 {
		return fmt.Errorf("template %q: min confidence threshold out of [0,1]", t.ID)
	}
	return nil
}

// clone returns a copy so registry internals never leak mutable state.
func (t *Template) clone() *Template {
	out := *t
	if t.VariableSlots != nil {
		out.VariableSlots = append([]string(nil), t.VariableSlots...)
	}
	return &out
}

// ===== REGISTRY =====

// Registry holds built-in and custom templates. Built-ins are fixed at
// construction; customs can be added, replaced, and removed at runtime and
// survive restarts through the attached store.
type Registry struct {
	mu       sync.RWMutex
	builtins map[string]*Template
	customs  map[string]*Template
	// customOrder preserves registration order for persistence.
	customOrder []string
	// fileIDs tracks which template ids each watched YAML file contributed.
	fileIDs map[string][]string
	st      store.Store
}

// NewRegistry builds a registry seeded with the built-in templates.
func NewRegistry() *Registry {
	r := &Registry{
		builtins: make(map[string]*Template),
		customs:  make(map[string]*Template),
	}
	for _, t := range Builtins() {
		r.builtins[t.ID] = t
	}
	return r
}

// AttachStore wires persistence and loads any previously saved custom
// templates. Call once during startup.
func (r *Registry) AttachStore(st store.Store) error {
	r.mu.Lock()
	r.st = st
	r.mu.Unlock()
	return r.loadCustom()
}

// Get returns the template for id. Customs shadow built-ins with the same
// id.
func (r *Registry) Get(id string) (*Template, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if t, ok := r.customs[id]; ok {
		return t.clone(), nil
	}
	if t, ok := r.builtins[id]; ok {
		return t.clone(), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
}

// Has reports whether id resolves to a registered template.
func (r *Registry) Has(id string) bool {
	_, err := r.Get(id)
	return err == nil
}

// All returns every registered template sorted by id, customs shadowing
// built-ins.
func (r *Registry) All() []*Template {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]bool, len(r.builtins)+len(r.customs))
	out := make([]*Template, 0, len(r.builtins)+len(r.customs))
	for id, t := range r.customs {
		seen[id] = true
		out = append(out, t.clone())
	}
	for id, t := range r.builtins {
		if !seen[id] {
			out = append(out, t.clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Register adds or replaces a custom template and persists the custom set
// before returning.
func (r *Registry) Register(t *Template) error {
	if err := t.Validate(); err != nil {
		return err
	}
	stored := t.clone()
	stored.IsCustom = true

	r.mu.Lock()
	if _, exists := r.customs[stored.ID]; !exists {
		r.customOrder = append(r.customOrder, stored.ID)
	}
	r.customs[stored.ID] = stored
	r.mu.Unlock()

	logging.Prompt("Registered custom template %q (domain %s)", stored.ID, stored.Domain)
	return r.persistCustom()
}

// Remove deletes a custom template. Built-ins cannot be removed.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	if _, ok := r.customs[id]; !ok {
		r.mu.Unlock()
		if _, builtin := r.builtins[id]; builtin {
			return fmt.Errorf("template %q is built-in", id)
		}
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(r.customs, id)
	for i, existing := range r.customOrder {
		if existing == id {
			r.customOrder = append(r.customOrder[:i], r.customOrder[i+1:]...)
			break
		}
	}
	r.mu.Unlock()

	logging.Prompt("Removed custom template %q", id)
	return r.persistCustom()
}

// Customs returns the custom templates in registration order.
func (r *Registry) Customs() []*Template {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Template, 0, len(r.customOrder))
	for _, id := range r.customOrder {
		if t, ok := r.customs[id]; ok {
			out = append(out, t.clone())
		}
	}
	return out
}

// ===== PERSISTENCE =====

// customPair is the stored form of one custom template: an [id, record]
// pair, so the persisted value is an ordered pair array under one key.
type customPair struct {
	ID       string
	Template *Template
}

func (p customPair) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]interface{}{p.ID, p.Template})
}

func (p *customPair) UnmarshalJSON(data []byte) error {
	var raw [2]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if err := json.Unmarshal(raw[0], &p.ID); err != nil {
		return fmt.Errorf("pair id: %w", err)
	}
	p.Template = &Template{}
	if err := json.Unmarshal(raw[1], p.Template); err != nil {
		return fmt.Errorf("pair record: %w", err)
	}
	return nil
}

// persistCustom writes the full custom set under the well-known key. No-op
// without an attached store.
func (r *Registry) persistCustom() error {
	r.mu.RLock()
	st := r.st
	pairs := make([]customPair, 0, len(r.customOrder))
	for _, id := range r.customOrder {
		if t, ok := r.customs[id]; ok {
			pairs = append(pairs, customPair{ID: id, Template: t})
		}
	}
	r.mu.RUnlock()

	if st == nil {
		return nil
	}
	data, err := json.Marshal(pairs)
	if err != nil {
		return fmt.Errorf("marshal custom templates: %w", err)
	}
	if err := st.Set(store.KeyCustomTemplate, data); err != nil {
		return fmt.Errorf("persist custom templates: %w", err)
	}
	return nil
}

// loadCustom restores the custom set from the store.
func (r *Registry) loadCustom() error {
	r.mu.RLock()
	st := r.st
	r.mu.RUnlock()
	if st == nil {
		return nil
	}

	data, ok, err := st.Get(store.KeyCustomTemplate)
	if err != nil {
		return fmt.Errorf("load custom templates: %w", err)
	}
	if !ok {
		return nil
	}

	var pairs []customPair
	if err := json.Unmarshal(data, &pairs); err != nil {
		return fmt.Errorf("decode custom templates: %w", err)
	}

	r.mu.Lock()
	r.customs = make(map[string]*Template, len(pairs))
	r.customOrder = r.customOrder[:0]
	for _, p := range pairs {
		if p.Template == nil {
			continue
		}
		if err := p.Template.Validate(); err != nil {
			logging.Get(logging.CategoryPrompt).Warn("Skipping invalid stored template %q: %v", p.ID, err)
			continue
		}
		p.Template.IsCustom = true
		r.customs[p.ID] = p.Template
		r.customOrder = append(r.customOrder, p.ID)
	}
	count := len(r.customs)
	r.mu.Unlock()

	if count > 0 {
		logging.Prompt("Loaded %d custom templates from store", count)
	}
	return nil
}
