package provider

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"glance/internal/config"
	"glance/internal/logging"
)

// LocalClient talks to an ollama-compatible daemon on the loopback interface.
// Requests are non-streaming; the per-dispatch timeout comes from the caller's
// context.
type LocalClient struct {
	baseURL      string
	defaultModel string
	httpClient   *http.Client
}

// NewLocalClient creates a client for the local model runtime.
func NewLocalClient(baseURL, defaultModel string) *LocalClient {
	if baseURL == "" {
		baseURL = "http://127.0.0.1:11434"
	}
	if defaultModel == "" {
		defaultModel = "llama3.2"
	}
	return &LocalClient{
		baseURL:      strings.TrimRight(baseURL, "/"),
		defaultModel: defaultModel,
		httpClient: &http.Client{
			Timeout: 120 * time.Second, // cold start can load a model from disk
		},
	}
}

// Name returns the backend identifier.
func (c *LocalClient) Name() string {
	return config.ProviderLocal
}

// IsLocal reports that this backend runs on this machine.
func (c *LocalClient) IsLocal() bool {
	return true
}

type localChatRequest struct {
	Model    string             `json:"model"`
	Messages []localChatMessage `json:"messages"`
	Stream   bool               `json:"stream"`
	Options  localChatOptions   `json:"options,omitempty"`
}

type localChatMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

type localChatOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type localChatResponse struct {
	Model           string           `json:"model"`
	Message         localChatMessage `json:"message"`
	Done            bool             `json:"done"`
	PromptEvalCount int              `json:"prompt_eval_count"`
	EvalCount       int              `json:"eval_count"`
	Error           string           `json:"error,omitempty"`
}

// Send dispatches one chat turn to the local daemon.
func (c *LocalClient) Send(ctx context.Context, req Request) (*Response, error) {
	// Auto-apply timeout if context has no deadline (centralized timeout handling)
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.httpClient.Timeout)
		defer cancel()
	}

	startTime := time.Now()
	model := req.Model
	if model == "" {
		model = c.defaultModel
	}
	logging.ProviderDebug("[Local] Send: model=%s system_len=%d user_len=%d", model, len(req.SystemPrompt), len(req.Prompt))

	userMsg := localChatMessage{Role: "user", Content: req.Prompt}
	for _, a := range req.Attachments {
		userMsg.Images = append(userMsg.Images, base64.StdEncoding.EncodeToString(a.Data))
	}

	body := localChatRequest{
		Model:  model,
		Stream: false,
	}
	if req.SystemPrompt != "" {
		body.Messages = append(body.Messages, localChatMessage{Role: "system", Content: req.SystemPrompt})
	}
	body.Messages = append(body.Messages, userMsg)
	body.Options.Temperature = req.Temperature
	body.Options.NumPredict = req.MaxTokens
	if body.Options.NumPredict <= 0 {
		body.Options.NumPredict = defaultMaxTokens
	}

	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/chat", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		logging.ProviderWarn("[Local] Send: request failed after %v: %v", time.Since(startTime), err)
		return nil, fmt.Errorf("local runtime unreachable at %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := readLimitedBody(resp.Body, maxErrorBodySize)
		logging.ProviderError("[Local] Send: daemon returned status %d", resp.StatusCode)
		return nil, fmt.Errorf("local runtime error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(errBody)))
	}

	var chatResp localChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if chatResp.Error != "" {
		return nil, fmt.Errorf("local runtime error: %s", chatResp.Error)
	}
	if chatResp.Message.Content == "" {
		return nil, fmt.Errorf("empty response from local runtime")
	}

	answer, thinking := splitThinking(chatResp.Message.Content)
	logging.Provider("[Local] Send: completed in %v model=%s response_len=%d", time.Since(startTime), chatResp.Model, len(answer))

	return &Response{
		Provider: c.Name(),
		Model:    chatResp.Model,
		Content:  answer,
		Usage: Usage{
			PromptTokens:     chatResp.PromptEvalCount,
			CompletionTokens: chatResp.EvalCount,
			TotalTokens:      chatResp.PromptEvalCount + chatResp.EvalCount,
		},
		ThinkingProcess: thinking,
	}, nil
}

var thinkBlock = regexp.MustCompile(`(?is)<think>(.*?)</think>`)

// splitThinking separates reasoning-model <think> blocks from the answer.
// Models without a thinking phase pass through untouched.
func splitThinking(content string) (answer, thinking string) {
	matches := thinkBlock.FindAllStringSubmatch(content, -1)
	if len(matches) == 0 {
		return strings.TrimSpace(content), ""
	}
	var parts []string
	for _, m := range matches {
		if t := strings.TrimSpace(m[1]); t != "" {
			parts = append(parts, t)
		}
	}
	answer = strings.TrimSpace(thinkBlock.ReplaceAllString(content, ""))
	return answer, strings.Join(parts, "\n\n")
}
