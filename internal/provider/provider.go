// Package provider defines the uniform backend contract and the reference
// adapters behind it. Every backend, local or hosted, is reached through the
// same Send call; the selection pipeline and the orchestrator never see
// vendor wire formats.
package provider

import (
	"context"
	"io"
	"sort"
	"sync"
)

const (
	// defaultMaxTokens is used when a request does not set a completion budget.
	defaultMaxTokens = 4096

	// maxErrorBodySize limits how much of an error response body is read (1MB).
	maxErrorBodySize = 1 * 1024 * 1024
)

// Attachment is an optional binary payload on a request. Adapters that cannot
// carry attachments ignore them.
type Attachment struct {
	Name     string
	MimeType string
	Data     []byte
}

// Request is the uniform dispatch payload.
type Request struct {
	Prompt       string
	SystemPrompt string
	Temperature  float64 // 0 means backend default
	MaxTokens    int     // 0 means defaultMaxTokens
	Model        string  // empty means the adapter's configured model
	Attachments  []Attachment
}

// Usage reports token accounting for one completed request.
type Usage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
	TotalTokens      int `json:"totalTokens"`
	ThinkingTokens   int `json:"thinkingTokens,omitempty"`
}

// Response is the uniform completion result.
type Response struct {
	Provider        string
	Model           string
	Content         string
	Confidence      float64
	Usage           Usage
	Sources         []string
	ThinkingProcess string
}

// Client is the backend contract. Send blocks until the backend answers or
// ctx expires; a Send error carries a human-readable message and feeds the
// caller's health tracking and fallback.
type Client interface {
	Send(ctx context.Context, req Request) (*Response, error)
	Name() string
	IsLocal() bool
}

// Registry holds the constructed clients keyed by backend name.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]Client
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{clients: make(map[string]Client)}
}

// Register adds or replaces the client for its backend name.
func (r *Registry) Register(c Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[c.Name()] = c
}

// Get returns the client for a backend name.
func (r *Registry) Get(name string) (Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[name]
	return c, ok
}

// Has reports whether a client is registered for the backend name.
func (r *Registry) Has(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// Names returns the registered backend names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.clients))
	for name := range r.clients {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// readLimitedBody reads up to maxBytes from r. Used for error responses so a
// misbehaving backend cannot force an unbounded allocation.
func readLimitedBody(r io.Reader, maxBytes int64) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r, maxBytes))
}
