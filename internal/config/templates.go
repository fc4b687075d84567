package config

// TemplatesConfig configures custom template loading.
type TemplatesConfig struct {
	CustomPath string `yaml:"custom_path"` // YAML file with user-defined templates
	Watch      bool   `yaml:"watch"`       // hot-reload the file on change
}
