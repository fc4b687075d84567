package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"glance/internal/config"
)

func TestAnthropicClientSend(t *testing.T) {
	var captured anthropicRequest
	var apiKey, version string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/messages", r.URL.Path)
		apiKey = r.Header.Get("x-api-key")
		version = r.Header.Get("anthropic-version")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		json.NewEncoder(w).Encode(map[string]any{
			"id":    "msg_1",
			"type":  "message",
			"role":  "assistant",
			"model": "claude-sonnet-4-20250514",
			"content": []map[string]any{
				{"type": "text", "text": "The loop "},
				{"type": "text", "text": "never exits."},
			},
			"stop_reason": "end_turn",
			"usage":       map[string]any{"input_tokens": 40, "output_tokens": 8},
		})
	}))
	defer server.Close()

	client := NewAnthropicClient(config.VendorConfig{APIKey: "anth-key", BaseURL: server.URL})
	resp, err := client.Send(context.Background(), Request{
		Prompt:       "why does this hang?",
		SystemPrompt: "You debug code.",
		MaxTokens:    512,
	})
	require.NoError(t, err)

	assert.Equal(t, "anth-key", apiKey)
	assert.Equal(t, "2023-06-01", version)
	assert.Equal(t, "anthropic", resp.Provider)
	assert.Equal(t, "The loop never exits.", resp.Content)
	assert.Equal(t, 40, resp.Usage.PromptTokens)
	assert.Equal(t, 8, resp.Usage.CompletionTokens)
	assert.Equal(t, 48, resp.Usage.TotalTokens)

	assert.Equal(t, "You debug code.", captured.System)
	assert.Equal(t, 512, captured.MaxTokens)
	require.Len(t, captured.Messages, 1)
	assert.Equal(t, "user", captured.Messages[0].Role)
}

func TestAnthropicClientSendNoKey(t *testing.T) {
	client := NewAnthropicClient(config.VendorConfig{})
	_, err := client.Send(context.Background(), Request{Prompt: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key not configured")
}

func TestAnthropicClientSendAPIErrorPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"type": "overloaded_error", "message": "Overloaded"},
		})
	}))
	defer server.Close()

	client := NewAnthropicClient(config.VendorConfig{APIKey: "anth-key", BaseURL: server.URL})
	_, err := client.Send(context.Background(), Request{Prompt: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Overloaded")
}

func TestAnthropicClientDefaults(t *testing.T) {
	client := NewAnthropicClient(config.VendorConfig{APIKey: "k"})
	assert.Equal(t, "anthropic", client.Name())
	assert.False(t, client.IsLocal())
	assert.Equal(t, "https://api.anthropic.com/v1", client.baseURL)
	assert.Equal(t, "claude-sonnet-4-20250514", client.model)
}
