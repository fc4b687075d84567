package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"glance/internal/config"
	"glance/internal/logging"
)

// OpenAICompatClient implements Client for any chat-completions endpoint:
// the OpenAI API itself and custom OpenAI-compatible servers.
type OpenAICompatClient struct {
	name        string
	apiKey      string
	requiresKey bool
	baseURL     string
	model       string
	httpClient  *http.Client
	mu          sync.Mutex
	lastRequest time.Time
}

// NewOpenAIClient creates a client for the OpenAI API.
func NewOpenAIClient(v config.VendorConfig) *OpenAICompatClient {
	baseURL := v.BaseURL
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	model := v.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAICompatClient{
		name:        config.ProviderOpenAI,
		apiKey:      v.APIKey,
		requiresKey: true,
		baseURL:     strings.TrimRight(baseURL, "/"),
		model:       model,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

// Name returns the backend identifier.
func (c *OpenAICompatClient) Name() string {
	return c.name
}

// IsLocal reports that this backend is remote.
func (c *OpenAICompatClient) IsLocal() bool {
	return false
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature float64         `json:"temperature,omitempty"`
}

type openAIResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error,omitempty"`
}

// Send dispatches one chat turn to the endpoint.
func (c *OpenAICompatClient) Send(ctx context.Context, req Request) (*Response, error) {
	// Auto-apply timeout if context has no deadline (centralized timeout handling)
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.httpClient.Timeout)
		defer cancel()
	}

	startTime := time.Now()
	model := req.Model
	if model == "" {
		model = c.model
	}
	logging.ProviderDebug("[%s] Send: model=%s system_len=%d user_len=%d", c.name, model, len(req.SystemPrompt), len(req.Prompt))

	if c.requiresKey && c.apiKey == "" {
		logging.ProviderError("[%s] Send: API key not configured", c.name)
		return nil, fmt.Errorf("API key not configured")
	}

	// Rate limiting
	c.mu.Lock()
	elapsed := time.Since(c.lastRequest)
	if elapsed < 100*time.Millisecond {
		time.Sleep(100*time.Millisecond - elapsed)
	}
	c.lastRequest = time.Now()
	c.mu.Unlock()

	var messages []openAIMessage
	if req.SystemPrompt != "" {
		messages = append(messages, openAIMessage{Role: "system", Content: req.SystemPrompt})
	}
	messages = append(messages, openAIMessage{Role: "user", Content: req.Prompt})

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	reqBody := openAIRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   maxTokens,
		Temperature: req.Temperature,
	}

	// Retry loop for rate limits and transient errors
	maxRetries := 3
	var lastErr error

	for i := 0; i <= maxRetries; i++ {
		if i > 0 {
			select {
			case <-time.After(time.Duration(1<<uint(i-1)) * time.Second):
			case <-ctx.Done():
				if lastErr == nil {
					lastErr = ctx.Err()
				}
				return nil, fmt.Errorf("request aborted: %w", lastErr)
			}
		}

		jsonData, err := json.Marshal(reqBody)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}

		httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewReader(jsonData))
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("failed to read response: %w", err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limit exceeded (429)")
			continue
		}

		if resp.StatusCode != http.StatusOK {
			logging.ProviderError("[%s] Send: API returned status %d", c.name, resp.StatusCode)
			return nil, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
		}

		var apiResp openAIResponse
		if err := json.Unmarshal(body, &apiResp); err != nil {
			return nil, fmt.Errorf("failed to parse response: %w", err)
		}

		if apiResp.Error != nil {
			return nil, fmt.Errorf("API error: %s", apiResp.Error.Message)
		}

		if len(apiResp.Choices) == 0 {
			logging.ProviderError("[%s] Send: no completion returned", c.name)
			return nil, fmt.Errorf("no completion returned")
		}

		content := strings.TrimSpace(apiResp.Choices[0].Message.Content)
		logging.Provider("[%s] Send: completed in %v response_len=%d", c.name, time.Since(startTime), len(content))

		respModel := apiResp.Model
		if respModel == "" {
			respModel = model
		}
		return &Response{
			Provider: c.name,
			Model:    respModel,
			Content:  content,
			Usage: Usage{
				PromptTokens:     apiResp.Usage.PromptTokens,
				CompletionTokens: apiResp.Usage.CompletionTokens,
				TotalTokens:      apiResp.Usage.TotalTokens,
			},
		}, nil
	}

	logging.ProviderError("[%s] Send: max retries exceeded after %v: %v", c.name, time.Since(startTime), lastErr)
	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}
