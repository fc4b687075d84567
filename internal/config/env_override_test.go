package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func clearVendorEnv(t *testing.T) {
	t.Helper()
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GLANCE_CUSTOM_API_KEY", "")
	t.Setenv("GLANCE_CUSTOM_BASE_URL", "")
	t.Setenv("OLLAMA_HOST", "")
	t.Setenv("GLANCE_DB", "")
	t.Setenv("GLANCE_FEED_URL", "")
}

func TestEnvOverrides_VendorKeys(t *testing.T) {
	t.Run("OPENAI_API_KEY sets openai key", func(t *testing.T) {
		clearVendorEnv(t)
		t.Setenv("OPENAI_API_KEY", "oa-key")

		cfg := &Config{}
		cfg.applyEnvOverrides()

		assert.Equal(t, "oa-key", cfg.Vendors.OpenAI.APIKey)
		assert.Empty(t, cfg.Vendors.Anthropic.APIKey)
	})

	t.Run("keys apply independently", func(t *testing.T) {
		clearVendorEnv(t)
		t.Setenv("OPENAI_API_KEY", "oa-key")
		t.Setenv("ANTHROPIC_API_KEY", "ant-key")
		t.Setenv("GEMINI_API_KEY", "gem-key")

		cfg := &Config{}
		cfg.applyEnvOverrides()

		assert.Equal(t, "oa-key", cfg.Vendors.OpenAI.APIKey)
		assert.Equal(t, "ant-key", cfg.Vendors.Anthropic.APIKey)
		assert.Equal(t, "gem-key", cfg.Vendors.Gemini.APIKey)
	})

	t.Run("env does not clobber config file keys when unset", func(t *testing.T) {
		clearVendorEnv(t)

		cfg := &Config{}
		cfg.Vendors.Anthropic.APIKey = "from-file"
		cfg.applyEnvOverrides()

		assert.Equal(t, "from-file", cfg.Vendors.Anthropic.APIKey)
	})
}

func TestEnvOverrides_CustomEndpoint(t *testing.T) {
	clearVendorEnv(t)
	t.Setenv("GLANCE_CUSTOM_API_KEY", "custom-key")
	t.Setenv("GLANCE_CUSTOM_BASE_URL", "http://gpu-box:8000/v1")

	cfg := &Config{}
	cfg.applyEnvOverrides()

	assert.Equal(t, "custom-key", cfg.Vendors.Custom.APIKey)
	assert.Equal(t, "http://gpu-box:8000/v1", cfg.Vendors.Custom.BaseURL)
}

func TestEnvOverrides_RuntimeAndStore(t *testing.T) {
	clearVendorEnv(t)
	t.Setenv("OLLAMA_HOST", "http://127.0.0.1:21434")
	t.Setenv("GLANCE_DB", "/tmp/glance-test.db")

	cfg := DefaultConfig()
	cfg.applyEnvOverrides()

	assert.Equal(t, "http://127.0.0.1:21434", cfg.Runtime.BaseURL)
	assert.Equal(t, "/tmp/glance-test.db", cfg.Store.DatabasePath)
}

func TestEnvOverrides_FeedEnables(t *testing.T) {
	clearVendorEnv(t)
	t.Setenv("GLANCE_FEED_URL", "ws://127.0.0.1:9999/context")

	cfg := DefaultConfig()
	assert.False(t, cfg.Feed.Enabled)

	cfg.applyEnvOverrides()

	assert.True(t, cfg.Feed.Enabled)
	assert.Equal(t, "ws://127.0.0.1:9999/context", cfg.Feed.URL)
}

func TestVendorLookup(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Vendors.Gemini.Model = "gemini-2.5-flash"

	v := cfg.Vendors.Vendor(ProviderGemini)
	assert.Equal(t, "gemini-2.5-flash", v.Model)

	assert.Empty(t, cfg.Vendors.Vendor("skynet").APIKey)
	assert.Empty(t, cfg.Vendors.Vendor(ProviderLocal).APIKey)
}
