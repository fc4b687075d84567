package provider

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"glance/internal/config"
	"glance/internal/logging"
)

// GeminiClient implements Client for the Gemini API through the official
// genai SDK.
type GeminiClient struct {
	client *genai.Client
	model  string
}

// NewGeminiClient creates a client for the Gemini API.
func NewGeminiClient(v config.VendorConfig) (*GeminiClient, error) {
	if v.APIKey == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}

	model := v.Model
	if model == "" {
		model = "gemini-2.0-flash"
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: v.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiClient{
		client: client,
		model:  model,
	}, nil
}

// Name returns the backend identifier.
func (c *GeminiClient) Name() string {
	return config.ProviderGemini
}

// IsLocal reports that this backend is remote.
func (c *GeminiClient) IsLocal() bool {
	return false
}

// Send dispatches one chat turn to the Gemini API.
func (c *GeminiClient) Send(ctx context.Context, req Request) (*Response, error) {
	startTime := time.Now()
	model := req.Model
	if model == "" {
		model = c.model
	}
	logging.ProviderDebug("[Gemini] Send: model=%s system_len=%d user_len=%d", model, len(req.SystemPrompt), len(req.Prompt))

	contents := []*genai.Content{
		genai.NewContentFromText(req.Prompt, genai.RoleUser),
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	genCfg := &genai.GenerateContentConfig{
		MaxOutputTokens: int32(maxTokens),
	}
	if req.SystemPrompt != "" {
		genCfg.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, genai.RoleUser)
	}
	if req.Temperature > 0 {
		genCfg.Temperature = genai.Ptr(float32(req.Temperature))
	}

	result, err := c.client.Models.GenerateContent(ctx, model, contents, genCfg)
	if err != nil {
		logging.ProviderWarn("[Gemini] Send: request failed after %v: %v", time.Since(startTime), err)
		return nil, fmt.Errorf("Gemini request failed: %w", err)
	}

	content := strings.TrimSpace(result.Text())
	if content == "" {
		return nil, fmt.Errorf("no completion returned")
	}

	var usage Usage
	if um := result.UsageMetadata; um != nil {
		usage = Usage{
			PromptTokens:     int(um.PromptTokenCount),
			CompletionTokens: int(um.CandidatesTokenCount),
			TotalTokens:      int(um.TotalTokenCount),
			ThinkingTokens:   int(um.ThoughtsTokenCount),
		}
	}

	logging.Provider("[Gemini] Send: completed in %v response_len=%d", time.Since(startTime), len(content))

	return &Response{
		Provider: c.Name(),
		Model:    model,
		Content:  content,
		Usage:    usage,
	}, nil
}
