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

func openAISuccessBody(content string) map[string]any {
	return map[string]any{
		"id":    "chatcmpl-1",
		"model": "gpt-4o-mini",
		"choices": []map[string]any{{
			"index":         0,
			"message":       map[string]any{"role": "assistant", "content": content},
			"finish_reason": "stop",
		}},
		"usage": map[string]any{
			"prompt_tokens":     12,
			"completion_tokens": 5,
			"total_tokens":      17,
		},
	}
}

func TestOpenAIClientSend(t *testing.T) {
	var captured openAIRequest
	var authHeader string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		authHeader = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		json.NewEncoder(w).Encode(openAISuccessBody("  The function runs once.  "))
	}))
	defer server.Close()

	client := NewOpenAIClient(config.VendorConfig{APIKey: "sk-test", BaseURL: server.URL})
	resp, err := client.Send(context.Background(), Request{
		Prompt:       "what does this do?",
		SystemPrompt: "You explain code.",
		MaxTokens:    128,
	})
	require.NoError(t, err)

	assert.Equal(t, "Bearer sk-test", authHeader)
	assert.Equal(t, "openai", resp.Provider)
	assert.Equal(t, "gpt-4o-mini", resp.Model)
	assert.Equal(t, "The function runs once.", resp.Content)
	assert.Equal(t, 17, resp.Usage.TotalTokens)

	require.Len(t, captured.Messages, 2)
	assert.Equal(t, "system", captured.Messages[0].Role)
	assert.Equal(t, "user", captured.Messages[1].Role)
	assert.Equal(t, 128, captured.MaxTokens)
}

func TestOpenAIClientSendNoKey(t *testing.T) {
	client := NewOpenAIClient(config.VendorConfig{})
	_, err := client.Send(context.Background(), Request{Prompt: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key not configured")
}

func TestOpenAIClientSendAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"Incorrect API key provided"}}`))
	}))
	defer server.Close()

	client := NewOpenAIClient(config.VendorConfig{APIKey: "sk-bad", BaseURL: server.URL})
	_, err := client.Send(context.Background(), Request{Prompt: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")
	assert.Contains(t, err.Error(), "Incorrect API key")
}

func TestOpenAIClientSendRetriesRateLimit(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		json.NewEncoder(w).Encode(openAISuccessBody("recovered"))
	}))
	defer server.Close()

	client := NewOpenAIClient(config.VendorConfig{APIKey: "sk-test", BaseURL: server.URL})
	resp, err := client.Send(context.Background(), Request{Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "recovered", resp.Content)
	assert.Equal(t, 2, calls)
}

func TestOpenAIClientSendAbortsRetryOnCancel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	client := NewOpenAIClient(config.VendorConfig{APIKey: "sk-test", BaseURL: server.URL})

	done := make(chan error, 1)
	go func() {
		_, err := client.Send(ctx, Request{Prompt: "hi"})
		done <- err
	}()
	cancel()

	err := <-done
	require.Error(t, err)
}

func TestCustomClientRequiresBaseURL(t *testing.T) {
	_, err := NewCustomClient(config.VendorConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "base URL")
}

func TestCustomClientSendWithoutKey(t *testing.T) {
	var authHeader string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode(openAISuccessBody("from the lan box"))
	}))
	defer server.Close()

	client, err := NewCustomClient(config.VendorConfig{BaseURL: server.URL, Model: "qwen2.5-coder"})
	require.NoError(t, err)
	assert.Equal(t, "custom", client.Name())
	assert.False(t, client.IsLocal())

	resp, err := client.Send(context.Background(), Request{Prompt: "hi"})
	require.NoError(t, err)
	assert.Empty(t, authHeader, "no Authorization header without a key")
	assert.Equal(t, "custom", resp.Provider)
	assert.Equal(t, "from the lan box", resp.Content)
}
