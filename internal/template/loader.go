package template

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"glance/internal/logging"
)

// Defaults applied to YAML-loaded templates with omitted numeric fields.
const (
	defaultMaxTokens   = 1024
	defaultMemoryDepth = 5
)

// ParseYAMLFile reads template definitions from a YAML file. The file may
// hold either an array of templates or a single template document. Invalid
// entries are skipped with a logged error so one bad template does not
// block the rest of the file.
func ParseYAMLFile(path string) ([]*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read template file: %w", err)
	}

	var defs []*Template
	if err := yaml.Unmarshal(data, &defs); err != nil {
		var single Template
		if singleErr := yaml.Unmarshal(data, &single); singleErr != nil {
			return nil, fmt.Errorf("parse template YAML %s: %w", path, err)
		}
		defs = []*Template{&single}
	}

	out := make([]*Template, 0, len(defs))
	for _, def := range defs {
		if def == nil {
			continue
		}
		applyDefaults(def)
		if err := def.Validate(); err != nil {
			logging.Get(logging.CategoryPrompt).Error("Skipping invalid template in %s: %v", path, err)
			continue
		}
		def.IsCustom = true
		out = append(out, def)
	}
	return out, nil
}

// applyDefaults fills omitted fields with workable values. A zero MaxTokens
// means the author left it out; a multi-turn template without a depth gets
// the standard window.
func applyDefaults(t *Template) {
	if t.Name == "" {
		t.Name = t.ID
	}
	if t.MaxTokens <= 0 {
		t.MaxTokens = defaultMaxTokens
	}
	if t.MultiTurnSupport && t.MemoryDepth == 0 {
		t.MemoryDepth = defaultMemoryDepth
	}
	if t.Domain == "" {
		t.Domain = "general"
	}
}

// LoadYAMLFile loads a template file into the registry, replacing whatever
// this file contributed before. Templates that disappeared from the file
// are removed. Returns the number of templates now active from this file.
func (r *Registry) LoadYAMLFile(path string) (int, error) {
	defs, err := ParseYAMLFile(path)
	if err != nil {
		return 0, err
	}

	newIDs := make(map[string]bool, len(defs))
	for _, def := range defs {
		newIDs[def.ID] = true
	}

	r.mu.Lock()
	// Drop templates this file used to provide but no longer does.
	for _, id := range r.fileIDs[path] {
		if !newIDs[id] {
			delete(r.customs, id)
			for i, existing := range r.customOrder {
				if existing == id {
					r.customOrder = append(r.customOrder[:i], r.customOrder[i+1:]...)
					break
				}
			}
		}
	}
	ids := make([]string, 0, len(defs))
	for _, def := range defs {
		if _, exists := r.customs[def.ID]; !exists {
			r.customOrder = append(r.customOrder, def.ID)
		}
		r.customs[def.ID] = def
		ids = append(ids, def.ID)
	}
	if r.fileIDs == nil {
		r.fileIDs = make(map[string][]string)
	}
	r.fileIDs[path] = ids
	r.mu.Unlock()

	logging.Prompt("Loaded %d templates from %s", len(defs), path)
	return len(defs), r.persistCustom()
}

// UnloadFile removes every template a watched file contributed. Called when
// the file is deleted.
func (r *Registry) UnloadFile(path string) error {
	r.mu.Lock()
	ids := r.fileIDs[path]
	for _, id := range ids {
		delete(r.customs, id)
		for i, existing := range r.customOrder {
			if existing == id {
				r.customOrder = append(r.customOrder[:i], r.customOrder[i+1:]...)
				break
			}
		}
	}
	delete(r.fileIDs, path)
	r.mu.Unlock()

	if len(ids) > 0 {
		logging.Prompt("Unloaded %d templates after %s was removed", len(ids), path)
		return r.persistCustom()
	}
	return nil
}
