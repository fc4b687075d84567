package orchestrator

import (
	"fmt"

	"glance/internal/config"
	"glance/internal/logging"
	"glance/internal/store"
)

// Settings accessors. User preferences live in the store and are overlaid
// onto the live config, so a restart and a running process agree on the
// effective selection strategy. With no settings store wired, setters
// mutate the config only and getters read it back.

func providerEnabledKey(name string) string {
	return fmt.Sprintf("provider.%s.enabled", name)
}

func providerPriorityKey(name string) string {
	return fmt.Sprintf("provider.%s.priority", name)
}

// ApplySettings overlays persisted preferences onto the live config. Called
// once at boot, after components are wired and before the first request.
func (o *Orchestrator) ApplySettings() {
	if o.settings == nil {
		return
	}
	o.cfg.Selection.PreferLocal = o.settings.GetBool(store.SettingPreferLocal, o.cfg.Selection.PreferLocal)
	o.cfg.Selection.LocalOnly = o.settings.GetBool(store.SettingLocalOnly, o.cfg.Selection.LocalOnly)
	for _, p := range o.cfg.Providers {
		if enabled := o.settings.GetBool(providerEnabledKey(p.Provider), p.Enabled); enabled != p.Enabled {
			o.cfg.SetProviderEnabled(p.Provider, enabled)
		}
		if priority := o.settings.GetInt(providerPriorityKey(p.Provider), p.Priority); priority != p.Priority {
			o.cfg.SetProviderPriority(p.Provider, priority)
		}
	}
	logging.Orchestrator("[Settings] applied persisted preferences (preferLocal=%v localOnly=%v)",
		o.cfg.Selection.PreferLocal, o.cfg.Selection.LocalOnly)
}

// PreferLocal reports the effective prefer-local ranking flag.
func (o *Orchestrator) PreferLocal() bool {
	return o.cfg.Selection.PreferLocal
}

// SetPreferLocal applies and persists the prefer-local ranking flag.
func (o *Orchestrator) SetPreferLocal(v bool) error {
	o.cfg.Selection.PreferLocal = v
	if o.settings == nil {
		return nil
	}
	return o.settings.SetBool(store.SettingPreferLocal, v)
}

// LocalOnly reports the effective privacy (local-only) mode.
func (o *Orchestrator) LocalOnly() bool {
	return o.cfg.Selection.LocalOnly
}

// SetLocalOnly applies and persists privacy mode.
func (o *Orchestrator) SetLocalOnly(v bool) error {
	o.cfg.Selection.LocalOnly = v
	if o.settings == nil {
		return nil
	}
	return o.settings.SetBool(store.SettingLocalOnly, v)
}

// PreferredLanguage returns the persisted response language, empty when the
// user never set one.
func (o *Orchestrator) PreferredLanguage() string {
	if o.settings == nil {
		return ""
	}
	return o.settings.GetString(store.SettingLanguage, "")
}

// SetPreferredLanguage persists the response language. Empty clears it.
func (o *Orchestrator) SetPreferredLanguage(lang string) error {
	if o.settings == nil {
		return nil
	}
	if lang == "" {
		return o.settings.Delete(store.SettingLanguage)
	}
	return o.settings.SetString(store.SettingLanguage, lang)
}

// PrePrompt returns the persisted prompt preamble.
func (o *Orchestrator) PrePrompt() string {
	if o.settings == nil {
		return ""
	}
	return o.settings.GetString(store.SettingPrePrompt, "")
}

// SetPrePrompt persists the prompt preamble. Empty clears it.
func (o *Orchestrator) SetPrePrompt(text string) error {
	if o.settings == nil {
		return nil
	}
	if text == "" {
		return o.settings.Delete(store.SettingPrePrompt)
	}
	return o.settings.SetString(store.SettingPrePrompt, text)
}

// SetProviderEnabled applies and persists a per-provider enablement
// override.
func (o *Orchestrator) SetProviderEnabled(name string, enabled bool) error {
	if !o.cfg.SetProviderEnabled(name, enabled) {
		return fmt.Errorf("unknown provider %q", name)
	}
	if o.settings == nil {
		return nil
	}
	return o.settings.SetBool(providerEnabledKey(name), enabled)
}

// SetProviderPriority applies and persists a per-provider priority
// override.
func (o *Orchestrator) SetProviderPriority(name string, priority int) error {
	if !o.cfg.SetProviderPriority(name, priority) {
		return fmt.Errorf("unknown provider %q", name)
	}
	if o.settings == nil {
		return nil
	}
	return o.settings.SetInt(providerPriorityKey(name), priority)
}

// ProviderPriorities returns the effective priority table.
func (o *Orchestrator) ProviderPriorities() []config.ProviderPriority {
	out := make([]config.ProviderPriority, len(o.cfg.Providers))
	copy(out, o.cfg.Providers)
	return out
}
