package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"glance/internal/config"
	"glance/internal/health"
	"glance/internal/memory"
	"glance/internal/perception"
	"glance/internal/prompt"
	"glance/internal/provider"
	"glance/internal/routing"
	"glance/internal/selection"
	"glance/internal/store"
	"glance/internal/template"
)

// fakeClient is a scriptable backend. delay simulates latency and honors
// cancellation; err makes every call fail.
type fakeClient struct {
	name    string
	local   bool
	delay   time.Duration
	err     error
	content string

	mu    sync.Mutex
	calls []provider.Request
}

func (f *fakeClient) Send(ctx context.Context, req provider.Request) (*provider.Response, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.mu.Unlock()

	if f.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(f.delay):
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &provider.Response{
		Provider: f.name,
		Model:    req.Model,
		Content:  f.content,
		Usage:    provider.Usage{PromptTokens: 12, CompletionTokens: 34, TotalTokens: 46},
	}, nil
}

func (f *fakeClient) Name() string  { return f.name }
func (f *fakeClient) IsLocal() bool { return f.local }

func (f *fakeClient) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeClient) lastCall() provider.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[len(f.calls)-1]
}

type stubNetwork struct{ online bool }

func (s *stubNetwork) Online() bool { return s.online }

type stubRuntime struct {
	installed bool
	model     string
}

func (s *stubRuntime) Installed() bool { return s.installed }

func (s *stubRuntime) ResolveModel(ctx context.Context, preferred string) (string, bool) {
	if !s.installed {
		return "", false
	}
	if s.model != "" {
		return s.model, true
	}
	return preferred, true
}

type harness struct {
	cfg     *config.Config
	kv      store.Store
	mem     *memory.Store
	tracker *health.Tracker
	reg     *provider.Registry
	network *stubNetwork
	runtime *stubRuntime
	orch    *Orchestrator
}

// newHarness wires a full pipeline over an in-memory store. The local
// runtime starts uninstalled, so default selection lands on openai.
func newHarness(t *testing.T, clients ...*fakeClient) *harness {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Selection.FallbackDelay = "1ms"

	kv := store.NewMemoryStore()
	t.Cleanup(func() { kv.Close() })

	registry := template.NewRegistry()
	mem, err := memory.NewStore(cfg.Memory, kv)
	require.NoError(t, err)

	tracker := health.NewTracker(cfg.Health, time.Minute)
	t.Cleanup(tracker.Close)

	reg := provider.NewRegistry()
	for _, c := range clients {
		reg.Register(c)
		tracker.Register(c.Name(), c.IsLocal())
	}

	h := &harness{
		cfg:     cfg,
		kv:      kv,
		mem:     mem,
		tracker: tracker,
		reg:     reg,
		network: &stubNetwork{online: true},
		runtime: &stubRuntime{installed: false},
	}
	h.orch = New(Components{
		Config:    cfg,
		Templates: registry,
		Router:    routing.NewRouter(registry),
		Composer:  prompt.NewComposer(cfg.Prompt, registry, mem),
		Memory:    mem,
		Selector:  selection.NewSelector(cfg, tracker, h.network, h.runtime, reg),
		Registry:  reg,
		Tracker:   tracker,
		Settings:  store.NewSettings(kv),
	})
	return h
}

func remoteFakes() (openai, anthropic, gemini *fakeClient) {
	openai = &fakeClient{name: config.ProviderOpenAI, content: "from openai"}
	anthropic = &fakeClient{name: config.ProviderAnthropic, content: "from anthropic"}
	gemini = &fakeClient{name: config.ProviderGemini, content: "from gemini"}
	return
}

func TestSendRequestHappyPath(t *testing.T) {
	openai, anthropic, gemini := remoteFakes()
	h := newHarness(t, openai, anthropic, gemini)

	resp, err := h.orch.SendRequest(context.Background(), Request{
		Query: "What time zone is Reykjavik in?",
	})
	require.NoError(t, err)

	assert.Equal(t, config.ProviderOpenAI, resp.Provider)
	assert.Equal(t, "from openai", resp.Content)
	assert.Equal(t, template.General, resp.TemplateID)
	assert.InDelta(t, 0.5, resp.Confidence, 1e-9)
	assert.Equal(t, "no match", resp.Reason)
	assert.Equal(t, 46, resp.Usage.TotalTokens)
	assert.GreaterOrEqual(t, resp.DurationMs, int64(0))

	require.Equal(t, 1, openai.callCount())
	sent := openai.lastCall()
	assert.Contains(t, sent.Prompt, "What time zone is Reykjavik in?")
	assert.NotEmpty(t, sent.SystemPrompt)
	assert.Equal(t, h.cfg.Vendors.OpenAI.Model, sent.Model)
	assert.Zero(t, anthropic.callCount())
	assert.Zero(t, gemini.callCount())

	assert.InDelta(t, 1.0, h.tracker.SuccessRate(config.ProviderOpenAI), 1e-9)
}

func TestSendRequestPrefersInstalledLocalRuntime(t *testing.T) {
	local := &fakeClient{name: config.ProviderLocal, local: true, content: "from local"}
	openai, anthropic, gemini := remoteFakes()
	h := newHarness(t, local, openai, anthropic, gemini)
	h.runtime.installed = true
	h.runtime.model = "llama3.2:latest"

	resp, err := h.orch.SendRequest(context.Background(), Request{Query: "Summarize my day so far."})
	require.NoError(t, err)

	assert.Equal(t, config.ProviderLocal, resp.Provider)
	assert.Equal(t, "llama3.2:latest", resp.Model)
	assert.Zero(t, openai.callCount())
}

func TestSendRequestRoutesByContext(t *testing.T) {
	openai, anthropic, gemini := remoteFakes()
	h := newHarness(t, openai, anthropic, gemini)

	resp, err := h.orch.SendRequest(context.Background(), Request{
		Query: "What does the highlighted part do?",
		Context: &perception.ApplicationContext{
			Type:       perception.AppCodeEditor,
			Name:       "vscode",
			Confidence: 0.9,
		},
	})
	require.NoError(t, err)

	assert.Equal(t, template.Technical, resp.TemplateID)
	assert.InDelta(t, 1.0, resp.Confidence, 1e-9)
	assert.Equal(t, "code editor active", resp.Reason)
}

func TestSendRequestFallsBack(t *testing.T) {
	openai, anthropic, gemini := remoteFakes()
	openai.err = errors.New("status 500: upstream melted")
	h := newHarness(t, openai, anthropic, gemini)

	resp, err := h.orch.SendRequest(context.Background(), Request{Query: "Where did I leave off yesterday?"})
	require.NoError(t, err)

	assert.Equal(t, config.ProviderAnthropic, resp.Provider)
	assert.Equal(t, "from anthropic", resp.Content)
	assert.InDelta(t, 0.5*0.9, resp.Confidence, 1e-9)
	assert.Equal(t, "no match (fallback from openai)", resp.Reason)
	assert.Equal(t, h.cfg.Vendors.Anthropic.Model, anthropic.lastCall().Model)

	assert.Equal(t, 1, openai.callCount())
	assert.Equal(t, 1, anthropic.callCount())
	assert.Zero(t, gemini.callCount())

	assert.InDelta(t, 0.9, h.tracker.SuccessRate(config.ProviderOpenAI), 1e-9)
	assert.InDelta(t, 1.0, h.tracker.SuccessRate(config.ProviderAnthropic), 1e-9)
}

func TestSendRequestExhaustsChain(t *testing.T) {
	openai, anthropic, gemini := remoteFakes()
	openai.err = errors.New("status 500")
	anthropic.err = errors.New("status 529")
	gemini.err = errors.New("quota exceeded")
	h := newHarness(t, openai, anthropic, gemini)

	_, err := h.orch.SendRequest(context.Background(), Request{Query: "Anything at all."})
	require.Error(t, err)

	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, []string{config.ProviderOpenAI, config.ProviderAnthropic, config.ProviderGemini}, exhausted.Tried)
	assert.ErrorContains(t, exhausted.Last, "quota exceeded")
	assert.Contains(t, err.Error(), "all 3 providers failed")
}

func TestSendRequestHonorsMaxFallbackAttempts(t *testing.T) {
	openai, anthropic, gemini := remoteFakes()
	openai.err = errors.New("down")
	anthropic.err = errors.New("down")
	gemini.err = errors.New("down")
	h := newHarness(t, openai, anthropic, gemini)
	h.cfg.Selection.MaxFallbackAttempts = 1

	_, err := h.orch.SendRequest(context.Background(), Request{Query: "Anything at all."})

	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, []string{config.ProviderOpenAI, config.ProviderAnthropic}, exhausted.Tried)
	assert.Zero(t, gemini.callCount())
}

func TestSendRequestForcedProvider(t *testing.T) {
	openai, anthropic, gemini := remoteFakes()
	h := newHarness(t, openai, anthropic, gemini)

	resp, err := h.orch.SendRequest(context.Background(), Request{
		Query:    "Anything at all.",
		Provider: config.ProviderGemini,
		Model:    "gemini-2.5-pro",
	})
	require.NoError(t, err)

	assert.Equal(t, config.ProviderGemini, resp.Provider)
	assert.Equal(t, "gemini-2.5-pro", resp.Model)
	assert.Equal(t, "gemini-2.5-pro", gemini.lastCall().Model)
	assert.Zero(t, openai.callCount())
}

func TestSendRequestForcedProviderWithoutClient(t *testing.T) {
	openai, _, _ := remoteFakes()
	h := newHarness(t, openai)

	_, err := h.orch.SendRequest(context.Background(), Request{
		Query:    "Anything at all.",
		Provider: config.ProviderCustom,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, selection.ErrNoProvider)
	assert.Zero(t, openai.callCount())
}

func TestSendRequestForcedProviderDoesNotFallBack(t *testing.T) {
	openai, anthropic, _ := remoteFakes()
	openai.err = errors.New("status 500")
	h := newHarness(t, openai, anthropic)

	_, err := h.orch.SendRequest(context.Background(), Request{
		Query:    "Anything at all.",
		Provider: config.ProviderOpenAI,
	})

	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, []string{config.ProviderOpenAI}, exhausted.Tried)
	assert.Contains(t, err.Error(), "provider openai failed")
	assert.Zero(t, anthropic.callCount())
}

func TestSendRequestForcedTemplate(t *testing.T) {
	openai, _, _ := remoteFakes()
	h := newHarness(t, openai)

	resp, err := h.orch.SendRequest(context.Background(), Request{
		Query:      "Anything at all.",
		TemplateID: template.Shell,
	})
	require.NoError(t, err)

	assert.Equal(t, template.Shell, resp.TemplateID)
	assert.InDelta(t, 1.0, resp.Confidence, 1e-9)
	assert.Equal(t, "template forced by caller", resp.Reason)
}

func TestSendRequestForcedTemplateUnknown(t *testing.T) {
	openai, _, _ := remoteFakes()
	h := newHarness(t, openai)

	_, err := h.orch.SendRequest(context.Background(), Request{
		Query:      "Anything at all.",
		TemplateID: "does-not-exist",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, template.ErrNotFound)
	assert.Zero(t, openai.callCount())
}

func TestSendRequestRecordsConversation(t *testing.T) {
	openai, _, _ := remoteFakes()
	h := newHarness(t, openai)

	id, err := h.orch.CreateSession("afternoon", nil)
	require.NoError(t, err)

	resp, err := h.orch.SendRequest(context.Background(), Request{
		Query:     "What was on screen a minute ago?",
		SessionID: id,
	})
	require.NoError(t, err)
	assert.Equal(t, id, resp.SessionID)

	sess, ok := h.orch.GetSession(id)
	require.True(t, ok)
	require.Len(t, sess.Messages, 2)
	assert.Equal(t, memory.RoleUser, sess.Messages[0].Role)
	assert.Equal(t, "What was on screen a minute ago?", sess.Messages[0].Content)
	assert.Equal(t, memory.RoleAssistant, sess.Messages[1].Role)
	assert.Equal(t, "from openai", sess.Messages[1].Content)
	assert.Equal(t, config.ProviderOpenAI, sess.Messages[1].Metadata["provider"])
	assert.Equal(t, template.General, sess.Messages[1].Metadata["template"])
}

func TestSendRequestHistoryExcludesCurrentTurn(t *testing.T) {
	openai, _, _ := remoteFakes()
	h := newHarness(t, openai)

	id, err := h.orch.CreateSession("follow-ups", nil)
	require.NoError(t, err)

	_, err = h.orch.SendRequest(context.Background(), Request{Query: "first question", SessionID: id})
	require.NoError(t, err)
	_, err = h.orch.SendRequest(context.Background(), Request{Query: "second question", SessionID: id})
	require.NoError(t, err)

	// The first turn composed against an empty session; the second sees
	// exactly the first exchange, never its own query twice.
	first := openai.calls[0]
	assert.NotContains(t, first.Prompt, "second question")
	second := openai.calls[1]
	assert.Contains(t, second.Prompt, "first question")
	assert.Contains(t, second.Prompt, "from openai")
	assert.Equal(t, 1, strings.Count(second.Prompt, "second question"))
}

func TestSendRequestExhaustionSkipsMemory(t *testing.T) {
	openai, _, _ := remoteFakes()
	openai.err = errors.New("down")
	h := newHarness(t, openai)

	id, err := h.orch.CreateSession("quiet", nil)
	require.NoError(t, err)

	_, err = h.orch.SendRequest(context.Background(), Request{Query: "Anything at all.", SessionID: id})
	require.Error(t, err)

	sess, ok := h.orch.GetSession(id)
	require.True(t, ok)
	assert.Empty(t, sess.Messages)
}

func TestSendRequestCancelledBeforeDispatch(t *testing.T) {
	openai, _, _ := remoteFakes()
	h := newHarness(t, openai)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.orch.SendRequest(ctx, Request{Query: "Anything at all."})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, openai.callCount())
}

func TestSendRequestCancellationDoesNotDingHealth(t *testing.T) {
	openai, _, _ := remoteFakes()
	openai.delay = 5 * time.Second
	h := newHarness(t, openai)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	_, err := h.orch.SendRequest(ctx, Request{Query: "Anything at all."})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.InDelta(t, 1.0, h.tracker.SuccessRate(config.ProviderOpenAI), 1e-9)
}

func TestSendRequestTimeoutFeedsFallback(t *testing.T) {
	openai, anthropic, gemini := remoteFakes()
	openai.delay = time.Second
	h := newHarness(t, openai, anthropic, gemini)
	for i := range h.cfg.Providers {
		if h.cfg.Providers[i].Provider == config.ProviderOpenAI {
			h.cfg.Providers[i].TimeoutMs = 30
		}
	}

	resp, err := h.orch.SendRequest(context.Background(), Request{Query: "Anything at all."})
	require.NoError(t, err)

	assert.Equal(t, config.ProviderAnthropic, resp.Provider)
	assert.InDelta(t, 0.9, h.tracker.SuccessRate(config.ProviderOpenAI), 1e-9)
}

func TestSendRequestTaskRequiringNetworkWhileOffline(t *testing.T) {
	local := &fakeClient{name: config.ProviderLocal, local: true, content: "from local"}
	openai, _, _ := remoteFakes()
	h := newHarness(t, local, openai)
	h.runtime.installed = true
	h.network.online = false

	_, err := h.orch.SendRequest(context.Background(), Request{
		Query:           "Look this up on the web.",
		RequiresNetwork: true,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, selection.ErrNoProvider)
}

func TestRoutePassthrough(t *testing.T) {
	h := newHarness(t)

	decision, err := h.orch.Route(nil, "rename this file to notes.txt")
	require.NoError(t, err)
	assert.Equal(t, template.General, decision.Template.ID)
	assert.InDelta(t, 0.95, decision.Confidence, 1e-9)
}

func TestSelectProviderPassthrough(t *testing.T) {
	openai, anthropic, gemini := remoteFakes()
	h := newHarness(t, openai, anthropic, gemini)

	sel, err := h.orch.SelectProvider(context.Background(), selection.TaskContext{
		TaskType:      template.General,
		OCRConfidence: 1.0,
	})
	require.NoError(t, err)
	assert.Equal(t, config.ProviderOpenAI, sel.Provider)
	assert.Equal(t, []string{config.ProviderAnthropic, config.ProviderGemini}, sel.FallbackChain)
}

func TestSessionPassthroughs(t *testing.T) {
	h := newHarness(t)

	id, err := h.orch.CreateSession("scratch", &memory.SessionContext{Domain: "general"})
	require.NoError(t, err)

	ok, err := h.orch.AddMessage(id, memory.RoleUser, "hello", nil)
	require.NoError(t, err)
	require.True(t, ok)

	require.Len(t, h.orch.ListSessions(), 1)

	mc := h.orch.GetMemoryContext(id, 5, false)
	require.NotNil(t, mc)
	assert.Len(t, mc.RecentMessages, 1)

	exported, err := h.orch.ExportConversation(id, "json")
	require.NoError(t, err)

	newID, err := h.orch.ImportConversation([]byte(exported))
	require.NoError(t, err)
	assert.NotEqual(t, id, newID)

	imported, ok := h.orch.GetSession(newID)
	require.True(t, ok)
	assert.Len(t, imported.Messages, 1)

	require.NoError(t, h.orch.ArchiveSession(id))
	sess, ok := h.orch.GetSession(id)
	require.True(t, ok)
	assert.True(t, sess.Metadata.Archived)

	require.NoError(t, h.orch.DeleteSession(id))
	_, ok = h.orch.GetSession(id)
	assert.False(t, ok)
}

func TestExhaustedErrorMessage(t *testing.T) {
	err := &ExhaustedError{
		Tried: []string{"openai", "anthropic"},
		Last:  fmt.Errorf("status 429"),
	}
	assert.Equal(t, "all 2 providers failed (tried openai, anthropic), last error: status 429", err.Error())
	assert.ErrorContains(t, err.Unwrap(), "429")

	single := &ExhaustedError{Tried: []string{"local"}, Last: fmt.Errorf("daemon not running")}
	assert.Equal(t, "provider local failed: daemon not running", single.Error())
}
