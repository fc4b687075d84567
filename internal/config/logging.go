package config

// LoggingConfig configures categorized file logging.
// Mirrored by internal/logging, which re-reads the config file directly
// to avoid a circular import.
type LoggingConfig struct {
	Level      string          `yaml:"level"`        // debug, info, warn, error
	DebugMode  bool            `yaml:"debug_mode"`   // master toggle - false = no logging (production)
	Categories map[string]bool `yaml:"categories"`   // per-category toggles
	JSONFormat bool            `yaml:"json_format"`  // structured JSON lines instead of text
	MaxSizeMB  int             `yaml:"max_size_mb"`  // rotation: max size per file
	MaxBackups int             `yaml:"max_backups"`  // rotation: retained files
	MaxAgeDays int             `yaml:"max_age_days"` // rotation: retention window
}

// IsCategoryEnabled returns whether logging is enabled for a category.
// Returns false if debug_mode is false (production mode).
func (c *LoggingConfig) IsCategoryEnabled(category string) bool {
	if !c.DebugMode {
		return false
	}
	if c.Categories == nil {
		return true // All enabled by default in debug mode
	}
	enabled, exists := c.Categories[category]
	if !exists {
		return true // Enable by default if not specified
	}
	return enabled
}
