package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"glance/internal/config"
)

func TestNewClientConstructsEachBackend(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Vendors.OpenAI.APIKey = "sk-test"
	cfg.Vendors.Anthropic.APIKey = "ant-test"
	cfg.Vendors.Gemini.APIKey = "gm-test"
	cfg.Vendors.Custom.BaseURL = "http://127.0.0.1:8080/v1"

	for _, name := range []string{
		config.ProviderLocal,
		config.ProviderOpenAI,
		config.ProviderAnthropic,
		config.ProviderGemini,
		config.ProviderCustom,
	} {
		client, err := NewClient(name, cfg)
		require.NoError(t, err, name)
		assert.Equal(t, name, client.Name())
		assert.Equal(t, name == config.ProviderLocal, client.IsLocal(), name)
	}
}

func TestNewClientUnknownProvider(t *testing.T) {
	_, err := NewClient("carrier-pigeon", config.DefaultConfig())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown provider")
}

func TestNewClientGeminiRequiresKey(t *testing.T) {
	_, err := NewClient(config.ProviderGemini, config.DefaultConfig())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key")
}

func TestBuildRegistrySkipsUnconstructible(t *testing.T) {
	// Defaults carry no Gemini key and no custom base URL, so those two
	// backends cannot be constructed and must not be registered.
	reg := BuildRegistry(config.DefaultConfig())

	assert.Equal(t, []string{"anthropic", "local", "openai"}, reg.Names())
	assert.True(t, reg.Has(config.ProviderLocal))
	assert.False(t, reg.Has(config.ProviderGemini))
	assert.False(t, reg.Has(config.ProviderCustom))
}

func TestRegistryGet(t *testing.T) {
	reg := NewRegistry()
	reg.Register(NewLocalClient("http://127.0.0.1:11434", "llama3.2"))

	client, ok := reg.Get(config.ProviderLocal)
	require.True(t, ok)
	assert.Equal(t, config.ProviderLocal, client.Name())

	_, ok = reg.Get(config.ProviderOpenAI)
	assert.False(t, ok)
}
