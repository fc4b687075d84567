package config

import "time"

// Provider identifiers. The local runtime is a first-class backend and is
// treated identically to hosted vendors by the selection pipeline.
const (
	ProviderLocal     = "local"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
	ProviderCustom    = "custom"
)

// ValidProviders lists all supported backends.
var ValidProviders = []string{
	ProviderLocal, ProviderOpenAI, ProviderAnthropic, ProviderGemini, ProviderCustom,
}

// IsValidProvider reports whether name is a known backend.
func IsValidProvider(name string) bool {
	for _, p := range ValidProviders {
		if name == p {
			return true
		}
	}
	return false
}

// ProviderConditions gate a priority entry for a given request.
// Zero values mean "no constraint".
type ProviderConditions struct {
	MinConfidence   float64 `yaml:"min_confidence"`    // OCR confidence floor
	MaxTextLength   int     `yaml:"max_text_length"`   // input length ceiling
	RequiresNetwork bool    `yaml:"requires_network"`  // drop when offline
	RequiresLocal   bool    `yaml:"requires_local"`    // drop when the local runtime is not installed
}

// ProviderPriority is one row of the static backend priority table.
// Mutable only via explicit settings updates.
type ProviderPriority struct {
	Provider   string             `yaml:"provider"`
	Priority   int                `yaml:"priority"`
	Enabled    bool               `yaml:"enabled"`
	TimeoutMs  int                `yaml:"timeout_ms"`
	Conditions ProviderConditions `yaml:"conditions"`
}

// Timeout returns the per-dispatch timeout as a duration.
func (p ProviderPriority) Timeout() time.Duration {
	if p.TimeoutMs <= 0 {
		return 30 * time.Second
	}
	return time.Duration(p.TimeoutMs) * time.Millisecond
}

// VendorConfig holds per-vendor credentials and model overrides.
type VendorConfig struct {
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
}

// VendorsConfig groups vendor settings by backend.
type VendorsConfig struct {
	OpenAI    VendorConfig `yaml:"openai"`
	Anthropic VendorConfig `yaml:"anthropic"`
	Gemini    VendorConfig `yaml:"gemini"`
	Custom    VendorConfig `yaml:"custom"`
}

// Vendor returns the vendor settings for a provider name.
func (v *VendorsConfig) Vendor(provider string) VendorConfig {
	switch provider {
	case ProviderOpenAI:
		return v.OpenAI
	case ProviderAnthropic:
		return v.Anthropic
	case ProviderGemini:
		return v.Gemini
	case ProviderCustom:
		return v.Custom
	}
	return VendorConfig{}
}

// DefaultProviderPriorities returns the default backend table.
// Local outranks remote vendors; the custom endpoint is off until configured.
func DefaultProviderPriorities() []ProviderPriority {
	return []ProviderPriority{
		{
			Provider:  ProviderLocal,
			Priority:  100,
			Enabled:   true,
			TimeoutMs: 60000,
			Conditions: ProviderConditions{
				RequiresLocal: true,
			},
		},
		{
			Provider:  ProviderOpenAI,
			Priority:  80,
			Enabled:   true,
			TimeoutMs: 30000,
			Conditions: ProviderConditions{
				RequiresNetwork: true,
			},
		},
		{
			Provider:  ProviderAnthropic,
			Priority:  70,
			Enabled:   true,
			TimeoutMs: 30000,
			Conditions: ProviderConditions{
				RequiresNetwork: true,
			},
		},
		{
			Provider:  ProviderGemini,
			Priority:  60,
			Enabled:   true,
			TimeoutMs: 30000,
			Conditions: ProviderConditions{
				RequiresNetwork: true,
			},
		},
		{
			Provider:  ProviderCustom,
			Priority:  40,
			Enabled:   false,
			TimeoutMs: 45000,
			Conditions: ProviderConditions{
				RequiresNetwork: true,
			},
		},
	}
}

// PriorityFor returns the priority entry for a provider, if present.
func (c *Config) PriorityFor(provider string) (ProviderPriority, bool) {
	for _, p := range c.Providers {
		if p.Provider == provider {
			return p, true
		}
	}
	return ProviderPriority{}, false
}

// SetProviderEnabled flips the enabled flag for a provider in place.
// Returns false if the provider has no priority entry.
func (c *Config) SetProviderEnabled(provider string, enabled bool) bool {
	for i := range c.Providers {
		if c.Providers[i].Provider == provider {
			c.Providers[i].Enabled = enabled
			return true
		}
	}
	return false
}

// SetProviderPriority updates the priority rank for a provider in place.
// Returns false if the provider has no priority entry.
func (c *Config) SetProviderPriority(provider string, priority int) bool {
	for i := range c.Providers {
		if c.Providers[i].Provider == provider {
			c.Providers[i].Priority = priority
			return true
		}
	}
	return false
}
