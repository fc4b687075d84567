package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all glance configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Backend priority table
	Providers []ProviderPriority `yaml:"providers"`

	// Vendor credentials and model overrides
	Vendors VendorsConfig `yaml:"vendors"`

	// Selection strategy
	Selection SelectionConfig `yaml:"selection"`

	// Health tracking tunables
	Health HealthConfig `yaml:"health"`

	// Conversation memory bounds
	Memory MemoryConfig `yaml:"memory"`

	// Prompt optimization thresholds
	Prompt PromptConfig `yaml:"prompt"`

	// Template loading
	Templates TemplatesConfig `yaml:"templates"`

	// Local model runtime
	Runtime RuntimeConfig `yaml:"runtime"`

	// Context feed (external watcher process)
	Feed FeedConfig `yaml:"feed"`

	// Persistence
	Store StoreConfig `yaml:"store"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// SelectionConfig configures the provider selection strategy.
type SelectionConfig struct {
	PreferLocal         bool   `yaml:"prefer_local"`          // rank local backends before remote on priority ties
	LocalOnly           bool   `yaml:"local_only"`            // restrict selection to the local runtime
	MaxFallbackAttempts int    `yaml:"max_fallback_attempts"` // fallback chain walk limit
	FallbackDelay       string `yaml:"fallback_delay"`        // pause between fallback attempts
	RaceCandidates      int    `yaml:"race_candidates"`       // parallel racing width (optional mode)
}

// StoreConfig configures persistence.
type StoreConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// FeedConfig configures the websocket context feed.
type FeedConfig struct {
	Enabled        bool   `yaml:"enabled"`
	URL            string `yaml:"url"`
	ReconnectDelay string `yaml:"reconnect_delay"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "glance",
		Version: "0.4.0",

		Providers: DefaultProviderPriorities(),

		Selection: SelectionConfig{
			PreferLocal:         true,
			MaxFallbackAttempts: 3,
			FallbackDelay:       "1s",
			RaceCandidates:      2,
		},

		Health: HealthConfig{
			SuccessDecay:       0.9,
			BlacklistThreshold: 0.3,
			RecoveryRate:       0.5,
			OfflineGracePeriod: "5m",
			ProbeInterval:      "30s",
			ProbeTimeout:       "3s",
			ProbeTargets:       []string{"1.1.1.1:443", "8.8.8.8:53"},
		},

		Memory: MemoryConfig{
			MaxMessagesPerSession: 100,
			MaxSessions:           50,
			RecentWindow:          10,
			MaxRelevant:           5,
			RelevanceThreshold:    0.1,
		},

		Prompt: PromptConfig{
			HighQualityThreshold:   0.85,
			MediumQualityThreshold: 0.65,
			OptimizeConfidence:     0.8,
			OptimizeMaxErrors:      3,
			OptimizeReadability:    0.7,
			OptimizeLanguageConf:   0.8,
			OptimizeMaxLength:      1500,
			OptimizeMinLength:      30,
		},

		Templates: TemplatesConfig{
			CustomPath: ".glance/templates/custom.yaml",
			Watch:      true,
		},

		Runtime: RuntimeConfig{
			BaseURL:       "http://127.0.0.1:11434",
			Binary:        "ollama",
			DefaultModel:  "llama3.2",
			StartTimeout:  "10s",
			ModelCacheTTL: "5m",
		},

		Feed: FeedConfig{
			Enabled:        false,
			URL:            "ws://127.0.0.1:8765/context",
			ReconnectDelay: "2s",
		},

		Store: StoreConfig{
			DatabasePath: "data/glance.db",
		},

		Logging: LoggingConfig{
			Level:     "info",
			DebugMode: false,
		},
	}
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// No config file yet: defaults plus whatever the environment provides
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Override with environment variables
	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	// Vendor API keys from environment
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		c.Vendors.OpenAI.APIKey = key
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		c.Vendors.Anthropic.APIKey = key
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.Vendors.Gemini.APIKey = key
	}
	if key := os.Getenv("GLANCE_CUSTOM_API_KEY"); key != "" {
		c.Vendors.Custom.APIKey = key
	}
	if url := os.Getenv("GLANCE_CUSTOM_BASE_URL"); url != "" {
		c.Vendors.Custom.BaseURL = url
	}

	// Local runtime endpoint (standard ollama override)
	if host := os.Getenv("OLLAMA_HOST"); host != "" {
		c.Runtime.BaseURL = host
	}

	// Database path from environment
	if path := os.Getenv("GLANCE_DB"); path != "" {
		c.Store.DatabasePath = path
	}

	// Context feed endpoint
	if url := os.Getenv("GLANCE_FEED_URL"); url != "" {
		c.Feed.URL = url
		c.Feed.Enabled = true
	}
}

// GetFallbackDelay returns the fallback delay as a duration.
func (c *Config) GetFallbackDelay() time.Duration {
	d, err := time.ParseDuration(c.Selection.FallbackDelay)
	if err != nil {
		return 1 * time.Second
	}
	return d
}

// GetReconnectDelay returns the feed reconnect delay as a duration.
func (c *Config) GetReconnectDelay() time.Duration {
	d, err := time.ParseDuration(c.Feed.ReconnectDelay)
	if err != nil {
		return 2 * time.Second
	}
	return d
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if len(c.Providers) == 0 {
		return fmt.Errorf("no providers configured")
	}
	for _, p := range c.Providers {
		if !IsValidProvider(p.Provider) {
			return fmt.Errorf("invalid provider: %s (valid: %v)", p.Provider, ValidProviders)
		}
		if p.TimeoutMs <= 0 {
			return fmt.Errorf("provider %s: timeout_ms must be positive", p.Provider)
		}
	}
	if err := c.ValidateHealth(); err != nil {
		return err
	}
	if err := c.ValidateMemory(); err != nil {
		return err
	}
	return nil
}
