// Package selection ranks the configured backends for one request and
// resolves the model to dispatch to. The selector filters the priority table
// against the task, connectivity, and health state, then orders what is left;
// the head is the pick and the tail is the fallback chain the orchestrator
// walks on failure.
package selection

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"glance/internal/config"
	"glance/internal/health"
	"glance/internal/logging"
)

// ErrNoProvider is returned when the candidate set is empty after filtering.
var ErrNoProvider = errors.New("no provider available")

// TaskContext describes the request being placed.
type TaskContext struct {
	TaskType        string  // routed template id or task label
	OCRConfidence   float64 // capture confidence, 0 when no capture
	TextLength      int     // length of the user-visible input
	RequiresNetwork bool    // the task needs live network access
}

// SelectionResult is the ranked pick for one request.
type SelectionResult struct {
	Provider           string   `json:"provider"`
	Model              string   `json:"model"`
	Reason             string   `json:"reason"`
	FallbackChain      []string `json:"fallbackChain"`
	IsLocal            bool     `json:"isLocal"`
	EstimatedLatencyMs int64    `json:"estimatedLatencyMs"`
}

// NetworkStatus reports current connectivity.
type NetworkStatus interface {
	Online() bool
}

// LocalRuntime exposes what selection needs from the local daemon manager.
type LocalRuntime interface {
	Installed() bool
	ResolveModel(ctx context.Context, preferred string) (string, bool)
}

// Backends reports which backend clients were actually constructed.
type Backends interface {
	Has(name string) bool
}

// Selector filters and ranks the backend priority table.
type Selector struct {
	cfg      *config.Config
	tracker  *health.Tracker
	network  NetworkStatus
	runtime  LocalRuntime
	backends Backends
}

// NewSelector creates a selector over the priority table and its inputs.
func NewSelector(cfg *config.Config, tracker *health.Tracker, network NetworkStatus, runtime LocalRuntime, backends Backends) *Selector {
	return &Selector{
		cfg:      cfg,
		tracker:  tracker,
		network:  network,
		runtime:  runtime,
		backends: backends,
	}
}

// SelectProvider picks the backend for a task. The returned fallback chain
// lists the remaining candidates in rank order.
func (s *Selector) SelectProvider(ctx context.Context, task TaskContext) (*SelectionResult, error) {
	if s.cfg.Selection.LocalOnly {
		return s.selectLocalOnly(ctx)
	}

	candidates := s.filter(task)
	if len(candidates) == 0 {
		logging.SelectionDebug("[Selector] no candidates for task=%q online=%v", task.TaskType, s.network.Online())
		return nil, fmt.Errorf("all backends filtered for this request: %w", ErrNoProvider)
	}

	s.rank(candidates)

	head := candidates[0]
	chain := make([]string, 0, len(candidates)-1)
	for _, p := range candidates[1:] {
		chain = append(chain, p.Provider)
	}

	result := &SelectionResult{
		Provider:           head.Provider,
		Model:              s.ModelFor(ctx, head.Provider),
		Reason:             fmt.Sprintf("priority %d, success rate %.2f, %d candidate(s)", head.Priority, s.tracker.SuccessRate(head.Provider), len(candidates)),
		FallbackChain:      chain,
		IsLocal:            head.Provider == config.ProviderLocal,
		EstimatedLatencyMs: s.lastLatency(head.Provider),
	}
	logging.Selection("[Selector] picked %s (model=%s) chain=%v: %s", result.Provider, result.Model, result.FallbackChain, result.Reason)
	return result, nil
}

// selectLocalOnly bypasses the general pipeline: the local runtime either
// serves the request or nothing does.
func (s *Selector) selectLocalOnly(ctx context.Context) (*SelectionResult, error) {
	if !s.runtime.Installed() {
		return nil, fmt.Errorf("local-only mode with no local runtime installed: %w", ErrNoProvider)
	}

	result := &SelectionResult{
		Provider:           config.ProviderLocal,
		Model:              s.ModelFor(ctx, config.ProviderLocal),
		Reason:             "local-only mode",
		FallbackChain:      []string{},
		IsLocal:            true,
		EstimatedLatencyMs: s.lastLatency(config.ProviderLocal),
	}
	logging.Selection("[Selector] picked %s (model=%s): %s", result.Provider, result.Model, result.Reason)
	return result, nil
}

// filter drops priority entries that cannot serve this request, logging the
// reason for every drop.
func (s *Selector) filter(task TaskContext) []config.ProviderPriority {
	online := s.network.Online()
	installed := s.runtime.Installed()

	var kept []config.ProviderPriority
	for _, p := range s.cfg.Providers {
		switch {
		case !p.Enabled:
			logging.SelectionDebug("[Selector] skip %s: disabled", p.Provider)
		case !s.backends.Has(p.Provider):
			logging.SelectionDebug("[Selector] skip %s: no client constructed", p.Provider)
		case p.Conditions.MinConfidence > 0 && task.OCRConfidence < p.Conditions.MinConfidence:
			logging.SelectionDebug("[Selector] skip %s: confidence %.2f below floor %.2f", p.Provider, task.OCRConfidence, p.Conditions.MinConfidence)
		case p.Conditions.MaxTextLength > 0 && task.TextLength > p.Conditions.MaxTextLength:
			logging.SelectionDebug("[Selector] skip %s: input length %d above ceiling %d", p.Provider, task.TextLength, p.Conditions.MaxTextLength)
		case p.Conditions.RequiresNetwork && !online:
			logging.SelectionDebug("[Selector] skip %s: offline", p.Provider)
		case p.Conditions.RequiresLocal && !installed:
			logging.SelectionDebug("[Selector] skip %s: local runtime not installed", p.Provider)
		case task.RequiresNetwork && p.Provider == config.ProviderLocal:
			// On-device inference has no live network access.
			logging.SelectionDebug("[Selector] skip %s: task requires network access", p.Provider)
		case !s.tracker.IsAvailable(p.Provider):
			logging.SelectionDebug("[Selector] skip %s: blacklisted", p.Provider)
		case s.tracker.RateLimitExhausted(p.Provider):
			logging.SelectionDebug("[Selector] skip %s: rate limit exhausted", p.Provider)
		default:
			kept = append(kept, p)
		}
	}
	return kept
}

// rank orders candidates by priority, then local-before-remote when
// preferLocal is set, then rolling success rate.
func (s *Selector) rank(candidates []config.ProviderPriority) {
	preferLocal := s.cfg.Selection.PreferLocal
	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if preferLocal {
			aLocal := a.Provider == config.ProviderLocal
			bLocal := b.Provider == config.ProviderLocal
			if aLocal != bLocal {
				return aLocal
			}
		}
		return s.tracker.SuccessRate(a.Provider) > s.tracker.SuccessRate(b.Provider)
	})
}

// ModelFor applies the per-backend model policy: the local runtime
// prefers the configured default when installed (else the first installed
// model); remote backends use the configured vendor model, with the adapter
// default filling an empty name.
func (s *Selector) ModelFor(ctx context.Context, provider string) string {
	if provider == config.ProviderLocal {
		if model, ok := s.runtime.ResolveModel(ctx, s.cfg.Runtime.DefaultModel); ok {
			return model
		}
		return s.cfg.Runtime.DefaultModel
	}
	return s.cfg.Vendors.Vendor(provider).Model
}

func (s *Selector) lastLatency(provider string) int64 {
	st, ok := s.tracker.Status(provider)
	if !ok {
		return 0
	}
	return st.ResponseTimeMs
}
