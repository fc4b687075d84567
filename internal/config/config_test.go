package config

import (
	"path/filepath"
	"testing"
	"time"
)

// =============================================================================
// UNIFIED CONFIG TESTS
// =============================================================================

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Name != "glance" {
		t.Errorf("expected Name=glance, got %s", cfg.Name)
	}
	if len(cfg.Providers) != 5 {
		t.Errorf("expected 5 provider priorities, got %d", len(cfg.Providers))
	}
	if cfg.Health.SuccessDecay != 0.9 {
		t.Errorf("expected SuccessDecay=0.9, got %v", cfg.Health.SuccessDecay)
	}
	if cfg.Health.BlacklistThreshold != 0.3 {
		t.Errorf("expected BlacklistThreshold=0.3, got %v", cfg.Health.BlacklistThreshold)
	}
	if cfg.Memory.MaxMessagesPerSession != 100 {
		t.Errorf("expected MaxMessagesPerSession=100, got %d", cfg.Memory.MaxMessagesPerSession)
	}
	if !cfg.Selection.PreferLocal {
		t.Error("expected PreferLocal=true by default")
	}
}

func TestDefaultConfigValidates(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestConfig_SaveLoad(t *testing.T) {
	// Ensure no env vars interfere
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GLANCE_DB", "")
	t.Setenv("OLLAMA_HOST", "")
	t.Setenv("GLANCE_FEED_URL", "")
	t.Setenv("GLANCE_CUSTOM_API_KEY", "")
	t.Setenv("GLANCE_CUSTOM_BASE_URL", "")

	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.yaml")

	cfg := DefaultConfig()
	cfg.Selection.LocalOnly = true
	cfg.Health.BlacklistThreshold = 0.25
	cfg.Vendors.OpenAI.Model = "gpt-4o-mini"

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if !loaded.Selection.LocalOnly {
		t.Error("expected LocalOnly=true after round-trip")
	}
	if loaded.Health.BlacklistThreshold != 0.25 {
		t.Errorf("expected BlacklistThreshold=0.25, got %v", loaded.Health.BlacklistThreshold)
	}
	if loaded.Vendors.OpenAI.Model != "gpt-4o-mini" {
		t.Errorf("expected openai model override, got %s", loaded.Vendors.OpenAI.Model)
	}
}

func TestConfig_LoadMissingFileReturnsDefaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load of missing file should not error: %v", err)
	}
	if cfg.Name != "glance" {
		t.Errorf("expected defaults, got Name=%s", cfg.Name)
	}
}

func TestDurationAccessors(t *testing.T) {
	cfg := DefaultConfig()

	if got := cfg.GetOfflineGracePeriod(); got != 5*time.Minute {
		t.Errorf("GetOfflineGracePeriod = %v, want 5m", got)
	}
	if got := cfg.GetProbeInterval(); got != 30*time.Second {
		t.Errorf("GetProbeInterval = %v, want 30s", got)
	}
	if got := cfg.GetFallbackDelay(); got != time.Second {
		t.Errorf("GetFallbackDelay = %v, want 1s", got)
	}

	// Malformed strings fall back to defaults
	cfg.Health.OfflineGracePeriod = "not-a-duration"
	if got := cfg.GetOfflineGracePeriod(); got != 5*time.Minute {
		t.Errorf("malformed grace period should fall back to 5m, got %v", got)
	}
}

func TestProviderPriorityTimeout(t *testing.T) {
	p := ProviderPriority{TimeoutMs: 2500}
	if got := p.Timeout(); got != 2500*time.Millisecond {
		t.Errorf("Timeout = %v, want 2.5s", got)
	}

	zero := ProviderPriority{}
	if got := zero.Timeout(); got != 30*time.Second {
		t.Errorf("zero Timeout should default to 30s, got %v", got)
	}
}

func TestValidateRejectsBadHealth(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Health.SuccessDecay = 1.5
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for decay out of range")
	}

	cfg = DefaultConfig()
	cfg.Health.RecoveryRate = 0.1 // below blacklist threshold
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for recovery below threshold")
	}
}

func TestValidateRejectsUnknownProvider(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Providers = append(cfg.Providers, ProviderPriority{Provider: "skynet", TimeoutMs: 1000})
	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for unknown provider")
	}
}

func TestSetProviderOverrides(t *testing.T) {
	cfg := DefaultConfig()

	if !cfg.SetProviderEnabled(ProviderGemini, false) {
		t.Fatal("SetProviderEnabled should find gemini")
	}
	p, ok := cfg.PriorityFor(ProviderGemini)
	if !ok || p.Enabled {
		t.Error("gemini should be disabled")
	}

	if !cfg.SetProviderPriority(ProviderAnthropic, 95) {
		t.Fatal("SetProviderPriority should find anthropic")
	}
	p, _ = cfg.PriorityFor(ProviderAnthropic)
	if p.Priority != 95 {
		t.Errorf("anthropic priority = %d, want 95", p.Priority)
	}

	if cfg.SetProviderEnabled("skynet", true) {
		t.Error("unknown provider should not be found")
	}
}
