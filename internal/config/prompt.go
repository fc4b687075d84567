package config

// PromptConfig tunes prompt composition and the optimization gate.
// Optimized template variants are only swapped in when at least one
// threshold below is breached; clean input keeps the cheaper prompt.
type PromptConfig struct {
	HighQualityThreshold   float64 `yaml:"high_quality_threshold"`   // OCR confidence for the "high" label
	MediumQualityThreshold float64 `yaml:"medium_quality_threshold"` // OCR confidence for the "medium" label

	OptimizeConfidence   float64 `yaml:"optimize_confidence"`    // below this, optimize
	OptimizeMaxErrors    int     `yaml:"optimize_max_errors"`    // above this, optimize
	OptimizeReadability  float64 `yaml:"optimize_readability"`   // below this, optimize
	OptimizeLanguageConf float64 `yaml:"optimize_language_conf"` // below this, optimize
	OptimizeMaxLength    int     `yaml:"optimize_max_length"`    // above this, optimize
	OptimizeMinLength    int     `yaml:"optimize_min_length"`    // below this, optimize
}
