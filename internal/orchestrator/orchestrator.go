// Package orchestrator ties the decision core together. One SendRequest
// call routes the query to a template, composes the prompt against
// conversation memory, selects a backend, dispatches with a per-provider
// timeout, and walks the fallback chain on failure. Outcomes feed the
// health tracker; only exhaustion of the whole chain surfaces as an error.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"glance/internal/config"
	"glance/internal/health"
	"glance/internal/logging"
	"glance/internal/memory"
	"glance/internal/metrics"
	"glance/internal/perception"
	"glance/internal/prompt"
	"glance/internal/provider"
	"glance/internal/routing"
	"glance/internal/selection"
	"glance/internal/store"
	"glance/internal/template"
)

// fallbackConfidenceScale discounts the routing confidence once when the
// answer did not come from the first-choice backend.
const fallbackConfidenceScale = 0.9

// defaultDispatchTimeout bounds a dispatch whose provider has no priority
// entry and therefore no configured timeout.
const defaultDispatchTimeout = 30 * time.Second

// Request is one logical ask from the presentation layer. Only Query is
// required; everything else refines or forces a pipeline stage.
type Request struct {
	Query      string
	Context    *perception.ApplicationContext // nil routes as unknown
	Extraction *perception.TextExtraction     // captured screen text, optional
	SessionID  string                         // pulls history and records the turn

	TemplateID string // skip routing, use this template
	Provider   string // skip selection, use this backend
	Model      string // with Provider: override its model

	Temperature     float64
	MaxTokens       int
	RequiresNetwork bool // the task itself must reach the live network
	NoOptimize      bool // suppress the prompt optimization gate
	Attachments     []provider.Attachment
}

// Response is the normalized result of one orchestrated request.
type Response struct {
	Content         string         `json:"content"`
	Provider        string         `json:"provider"`
	Model           string         `json:"model"`
	TemplateID      string         `json:"templateId"`
	Confidence      float64        `json:"confidence"`
	Reason          string         `json:"reason"`
	Usage           provider.Usage `json:"usage"`
	Sources         []string       `json:"sources,omitempty"`
	ThinkingProcess string         `json:"thinkingProcess,omitempty"`
	SessionID       string         `json:"sessionId,omitempty"`
	DurationMs      int64          `json:"durationMs"`
}

// ExhaustedError is the terminal failure after every candidate backend was
// tried. Tried preserves attempt order; Last is the final dispatch error.
type ExhaustedError struct {
	Tried []string
	Last  error
}

func (e *ExhaustedError) Error() string {
	if len(e.Tried) == 1 {
		return fmt.Sprintf("provider %s failed: %v", e.Tried[0], e.Last)
	}
	return fmt.Sprintf("all %d providers failed (tried %s), last error: %v",
		len(e.Tried), strings.Join(e.Tried, ", "), e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }

// Components are the injected collaborators. All are required except
// Settings, which may be nil when no preference store is wired.
type Components struct {
	Config    *config.Config
	Templates *template.Registry
	Router    *routing.Router
	Composer  *prompt.Composer
	Memory    *memory.Store
	Selector  *selection.Selector
	Registry  *provider.Registry
	Tracker   *health.Tracker
	Settings  *store.Settings
}

// Orchestrator is the single entry point the presentation layer calls. It
// owns none of its collaborators' lifecycles; construction and teardown
// happen in cmd wiring.
type Orchestrator struct {
	cfg       *config.Config
	templates *template.Registry
	router    *routing.Router
	composer  *prompt.Composer
	memory    *memory.Store
	selector  *selection.Selector
	registry  *provider.Registry
	tracker   *health.Tracker
	settings  *store.Settings

	clock func() time.Time
	newID func() string
}

// New assembles an orchestrator from its components.
func New(c Components) *Orchestrator {
	return &Orchestrator{
		cfg:       c.Config,
		templates: c.Templates,
		router:    c.Router,
		composer:  c.Composer,
		memory:    c.Memory,
		selector:  c.Selector,
		registry:  c.Registry,
		tracker:   c.Tracker,
		settings:  c.Settings,
		clock:     time.Now,
		newID:     uuid.NewString,
	}
}

// Route exposes the routing stage alone, for previewing which template a
// context and query would get.
func (o *Orchestrator) Route(appCtx *perception.ApplicationContext, query string) (*routing.Decision, error) {
	return o.router.Route(appCtx, query)
}

// SelectProvider exposes the selection stage alone.
func (o *Orchestrator) SelectProvider(ctx context.Context, task selection.TaskContext) (*selection.SelectionResult, error) {
	return o.selector.SelectProvider(ctx, task)
}

// SendRequest runs the full pipeline and returns a normalized response.
// Per-attempt failures are absorbed into health tracking and the fallback
// walk; the error return is reserved for terminal conditions: a forced
// stage that cannot be satisfied, no candidate at all, cancellation, or an
// exhausted chain.
func (o *Orchestrator) SendRequest(ctx context.Context, req Request) (*Response, error) {
	return o.send(ctx, req, false)
}

func (o *Orchestrator) send(ctx context.Context, req Request, race bool) (*Response, error) {
	start := o.clock()
	requestID := o.newID()
	audit := logging.AuditWithRequest(requestID, req.SessionID)
	audit.RequestStarted(req.Query)

	decision, err := o.resolveTemplate(req)
	if err != nil {
		return nil, err
	}
	audit.Routed(decision.Template.ID, decision.Reason, decision.Confidence)
	logging.Orchestrator("[Orchestrator] %s routed to %s (%.2f): %s",
		requestID, decision.Template.ID, decision.Confidence, decision.Reason)

	composed, err := o.compose(req, decision)
	if err != nil {
		return nil, err
	}

	sel, err := o.resolveProvider(ctx, req, decision, composed)
	if err != nil {
		return nil, err
	}
	audit.Selected(sel.Provider, sel.Model, sel.FallbackChain)

	var resp *Response
	if race && o.cfg.Selection.RaceCandidates > 1 && len(sel.FallbackChain) > 0 {
		resp, err = o.dispatchRacing(ctx, req, decision, composed, sel, audit)
	} else {
		resp, err = o.dispatchSequential(ctx, req, decision, composed, sel, audit)
	}
	if err != nil {
		return nil, err
	}

	resp.SessionID = req.SessionID
	resp.DurationMs = o.clock().Sub(start).Milliseconds()
	o.recordTurn(req, resp)
	metrics.RequestCount.WithLabelValues(resp.Provider, resp.TemplateID, "success").Inc()
	metrics.RequestDuration.WithLabelValues(resp.Provider).Observe(float64(resp.DurationMs) / 1000)
	audit.Completed(resp.Provider, resp.DurationMs)
	logging.Orchestrator("[Orchestrator] %s completed via %s in %dms", requestID, resp.Provider, resp.DurationMs)
	return resp, nil
}

// resolveTemplate routes the request, or looks up the caller-forced
// template directly.
func (o *Orchestrator) resolveTemplate(req Request) (*routing.Decision, error) {
	if req.TemplateID == "" {
		return o.router.Route(req.Context, req.Query)
	}
	tmpl, err := o.templates.Get(req.TemplateID)
	if err != nil {
		return nil, fmt.Errorf("forced template: %w", err)
	}
	return &routing.Decision{
		Template:   tmpl,
		Reason:     "template forced by caller",
		Confidence: 1.0,
		Variables:  map[string]string{},
	}, nil
}

// compose renders the chosen template. Extraction fields flow into the
// quality metrics; a persisted preferred language fills in when nothing was
// detected on screen.
func (o *Orchestrator) compose(req Request, decision *routing.Decision) (*prompt.ComposedPrompt, error) {
	cc := prompt.ComposeContext{
		Query:     req.Query,
		SessionID: req.SessionID,
		Variables: decision.Variables,
	}
	if req.Extraction != nil {
		cc.OCRText = req.Extraction.Text
		cc.OCRConfidence = req.Extraction.Confidence
		cc.Language = req.Extraction.Language
		cc.LanguageConfidence = req.Extraction.LanguageConfidence
		cc.Hints = req.Extraction.Hints
	}
	if o.settings != nil {
		cc.PrePrompt = o.settings.GetString(store.SettingPrePrompt, "")
		if cc.Language == "" {
			if lang := o.settings.GetString(store.SettingLanguage, ""); lang != "" {
				cc.Language = lang
				cc.LanguageConfidence = 1.0
			}
		}
	}
	return o.composer.GeneratePrompt(decision.Template.ID, cc, !req.NoOptimize)
}

// resolveProvider selects a backend, or validates the caller-forced one.
// A forced provider carries no fallback chain: the caller asked for that
// backend, not for best effort.
func (o *Orchestrator) resolveProvider(ctx context.Context, req Request, decision *routing.Decision, composed *prompt.ComposedPrompt) (*selection.SelectionResult, error) {
	if req.Provider != "" {
		if !o.registry.Has(req.Provider) {
			return nil, fmt.Errorf("forced provider %s has no client: %w", req.Provider, selection.ErrNoProvider)
		}
		model := req.Model
		if model == "" {
			model = o.selector.ModelFor(ctx, req.Provider)
		}
		return &selection.SelectionResult{
			Provider:      req.Provider,
			Model:         model,
			Reason:        "provider forced by caller",
			FallbackChain: []string{},
			IsLocal:       req.Provider == config.ProviderLocal,
		}, nil
	}

	task := selection.TaskContext{
		TaskType:        decision.Template.ID,
		OCRConfidence:   1.0, // no capture means no noisy text to distrust
		TextLength:      len(composed.User),
		RequiresNetwork: req.RequiresNetwork,
	}
	if req.Extraction != nil {
		task.OCRConfidence = req.Extraction.Confidence
	}
	return o.selector.SelectProvider(ctx, task)
}

// dispatchSequential walks the pick plus its fallback chain in order,
// pausing fallbackDelay between attempts. maxFallbackAttempts caps the
// chain walk, not the first attempt.
func (o *Orchestrator) dispatchSequential(ctx context.Context, req Request, decision *routing.Decision, composed *prompt.ComposedPrompt, sel *selection.SelectionResult, audit *logging.AuditLogger) (*Response, error) {
	chain := sel.FallbackChain
	if m := o.cfg.Selection.MaxFallbackAttempts; m >= 0 && len(chain) > m {
		chain = chain[:m]
	}
	candidates := append([]string{sel.Provider}, chain...)

	var tried []string
	var lastErr error

	for i, name := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("request cancelled after %d attempt(s): %w", len(tried), err)
		}
		if i > 0 {
			audit.FellBack(candidates[i-1], name)
			metrics.FallbackCount.Inc()
			logging.Orchestrator("[Orchestrator] falling back %s -> %s", candidates[i-1], name)
			if err := o.pause(ctx); err != nil {
				return nil, fmt.Errorf("request cancelled after %d attempt(s): %w", len(tried), err)
			}
		}

		client, ok := o.registry.Get(name)
		if !ok {
			// Selection only emits constructed backends, so this is a
			// wiring bug, not a transient fault.
			lastErr = fmt.Errorf("no client constructed for %s", name)
			tried = append(tried, name)
			continue
		}

		model := sel.Model
		if i > 0 {
			model = o.selector.ModelFor(ctx, name)
		}

		tried = append(tried, name)
		presp, err := o.dispatchOnce(ctx, audit, client, name, model, req, composed)
		if err != nil {
			if errors.Is(err, context.Canceled) && ctx.Err() != nil {
				return nil, fmt.Errorf("request cancelled after %d attempt(s): %w", len(tried), ctx.Err())
			}
			lastErr = err
			continue
		}

		resp := normalize(presp, decision, composed)
		if i > 0 {
			resp.Confidence = decision.Confidence * fallbackConfidenceScale
			resp.Reason = fmt.Sprintf("%s (fallback from %s)", decision.Reason, candidates[0])
		}
		return resp, nil
	}

	audit.Exhausted(len(tried), lastErr)
	metrics.RequestCount.WithLabelValues("none", decision.Template.ID, "exhausted").Inc()
	logging.OrchestratorError("[Orchestrator] exhausted %d provider(s), last error: %v", len(tried), lastErr)
	return nil, &ExhaustedError{Tried: tried, Last: lastErr}
}

// dispatchOnce sends one attempt under the provider's configured timeout
// and records the outcome. A cancellation is the caller's doing and is not
// held against the backend's health; a deadline is a transport failure.
func (o *Orchestrator) dispatchOnce(ctx context.Context, audit *logging.AuditLogger, client provider.Client, name, model string, req Request, composed *prompt.ComposedPrompt) (*provider.Response, error) {
	timeout := defaultDispatchTimeout
	if p, ok := o.cfg.PriorityFor(name); ok {
		timeout = p.Timeout()
	}
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := o.clock()
	presp, err := client.Send(attemptCtx, provider.Request{
		Prompt:       composed.User,
		SystemPrompt: composed.System,
		Temperature:  req.Temperature,
		MaxTokens:    req.MaxTokens,
		Model:        model,
		Attachments:  req.Attachments,
	})
	durMs := o.clock().Sub(start).Milliseconds()
	audit.Attempted(name, model, durMs, err)
	metrics.DispatchLatency.WithLabelValues(name).Observe(float64(durMs) / 1000)

	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		o.tracker.RecordFailure(name, err)
		logging.OrchestratorWarn("[Orchestrator] %s failed after %dms: %v", name, durMs, err)
		return nil, err
	}
	o.tracker.RecordSuccess(name, time.Duration(durMs)*time.Millisecond)
	return presp, nil
}

// pause waits the configured fallback delay or until the request dies.
func (o *Orchestrator) pause(ctx context.Context) error {
	delay := o.cfg.GetFallbackDelay()
	if delay <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
		return nil
	}
}

// normalize folds a backend reply and the routing decision into the public
// response shape. Confidence is the pipeline's confidence in its handling,
// not the backend's self-report.
func normalize(presp *provider.Response, decision *routing.Decision, composed *prompt.ComposedPrompt) *Response {
	return &Response{
		Content:         presp.Content,
		Provider:        presp.Provider,
		Model:           presp.Model,
		TemplateID:      composed.TemplateID,
		Confidence:      decision.Confidence,
		Reason:          decision.Reason,
		Usage:           presp.Usage,
		Sources:         presp.Sources,
		ThinkingProcess: presp.ThinkingProcess,
	}
}

// recordTurn appends the exchange to conversation memory. A memory failure
// never invalidates an answer the backend already produced.
func (o *Orchestrator) recordTurn(req Request, resp *Response) {
	if o.memory == nil || req.SessionID == "" {
		return
	}
	ok, err := o.memory.AddMessage(req.SessionID, memory.RoleUser, req.Query, nil)
	if err != nil || !ok {
		logging.OrchestratorWarn("[Orchestrator] could not record user turn in %s: ok=%v err=%v", req.SessionID, ok, err)
		return
	}
	meta := map[string]string{
		"provider": resp.Provider,
		"model":    resp.Model,
		"template": resp.TemplateID,
	}
	if _, err := o.memory.AddMessage(req.SessionID, memory.RoleAssistant, resp.Content, meta); err != nil {
		logging.OrchestratorWarn("[Orchestrator] could not record assistant turn in %s: %v", req.SessionID, err)
	}
}
