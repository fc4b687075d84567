package provider

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"glance/internal/config"
)

// NewCustomClient creates a client for a user-configured OpenAI-compatible
// endpoint (LM Studio, llama.cpp server, a corporate gateway). The base URL
// is required; the API key is optional since many local-network servers do
// not check one.
func NewCustomClient(v config.VendorConfig) (*OpenAICompatClient, error) {
	if v.BaseURL == "" {
		return nil, fmt.Errorf("custom endpoint requires a base URL")
	}
	return &OpenAICompatClient{
		name:    config.ProviderCustom,
		apiKey:  v.APIKey,
		baseURL: strings.TrimRight(v.BaseURL, "/"),
		model:   v.Model,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}, nil
}
