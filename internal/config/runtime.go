package config

import "time"

// RuntimeConfig configures the local model runtime (an ollama-compatible
// daemon on the loopback interface).
type RuntimeConfig struct {
	BaseURL       string `yaml:"base_url"`        // daemon HTTP endpoint
	Binary        string `yaml:"binary"`          // executable name looked up on PATH
	DefaultModel  string `yaml:"default_model"`   // preferred model when installed
	StartTimeout  string `yaml:"start_timeout"`   // wait for the daemon after spawning it
	ModelCacheTTL string `yaml:"model_cache_ttl"` // installed-model list cache lifetime
}

// GetStartTimeout returns the daemon start timeout as a duration.
func (c *Config) GetStartTimeout() time.Duration {
	d, err := time.ParseDuration(c.Runtime.StartTimeout)
	if err != nil {
		return 10 * time.Second
	}
	return d
}

// GetModelCacheTTL returns the model list cache lifetime as a duration.
func (c *Config) GetModelCacheTTL() time.Duration {
	d, err := time.ParseDuration(c.Runtime.ModelCacheTTL)
	if err != nil {
		return 5 * time.Minute
	}
	return d
}
