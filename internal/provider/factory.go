package provider

import (
	"fmt"

	"glance/internal/config"
	"glance/internal/logging"
)

// NewClient constructs the adapter for a named backend from configuration.
func NewClient(name string, cfg *config.Config) (Client, error) {
	switch name {
	case config.ProviderLocal:
		return NewLocalClient(cfg.Runtime.BaseURL, cfg.Runtime.DefaultModel), nil

	case config.ProviderOpenAI:
		return NewOpenAIClient(cfg.Vendors.OpenAI), nil

	case config.ProviderAnthropic:
		return NewAnthropicClient(cfg.Vendors.Anthropic), nil

	case config.ProviderGemini:
		return NewGeminiClient(cfg.Vendors.Gemini)

	case config.ProviderCustom:
		return NewCustomClient(cfg.Vendors.Custom)

	default:
		return nil, fmt.Errorf("unknown provider: %s", name)
	}
}

// BuildRegistry constructs one client per entry in the backend priority
// table. Backends that cannot be constructed (missing Gemini key, custom
// endpoint without a base URL) are skipped with a warning; selection treats
// them as absent.
func BuildRegistry(cfg *config.Config) *Registry {
	reg := NewRegistry()
	for _, p := range cfg.Providers {
		client, err := NewClient(p.Provider, cfg)
		if err != nil {
			logging.ProviderWarn("[Factory] skipping %s: %v", p.Provider, err)
			continue
		}
		reg.Register(client)
	}
	logging.Provider("[Factory] registered backends: %v", reg.Names())
	return reg
}
