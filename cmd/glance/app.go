package main

import (
	"context"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"glance/internal/config"
	"glance/internal/health"
	"glance/internal/memory"
	"glance/internal/orchestrator"
	"glance/internal/perception"
	"glance/internal/prompt"
	"glance/internal/provider"
	"glance/internal/routing"
	"glance/internal/selection"
	"glance/internal/store"
	"glance/internal/template"
)

// app bundles the constructed components for one CLI invocation. The
// orchestrator owns no lifecycles; everything built here is torn down here.
type app struct {
	cfg       *config.Config
	kv        store.Store
	settings  *store.Settings
	templates *template.Registry
	watcher   *template.Watcher
	mem       *memory.Store
	registry  *provider.Registry
	runtime   *provider.Runtime
	tracker   *health.Tracker
	prober    *health.Prober
	feed      *perception.WSFeed
	orch      *orchestrator.Orchestrator
}

// buildApp constructs the full component graph from the loaded config.
func buildApp(ctx context.Context) (*app, error) {
	a := &app{cfg: cfg}

	// Persistence
	dbPath := resolvePath(cfg.Store.DatabasePath)
	kv, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open store at %s: %w", dbPath, err)
	}
	a.kv = kv
	a.settings = store.NewSettings(kv)

	// Templates: builtins, persisted customs, optional YAML file + watcher
	a.templates = template.NewRegistry()
	if err := a.templates.AttachStore(kv); err != nil {
		logger.Warn("could not load custom templates", zap.Error(err))
	}
	if path := resolvePath(cfg.Templates.CustomPath); path != "" {
		if cfg.Templates.Watch {
			// The watcher loads the directory's files itself, then hot-reloads
			if w, err := template.NewWatcher(filepath.Dir(path), a.templates); err == nil {
				if err := w.Start(ctx); err == nil {
					a.watcher = w
				}
			}
		} else if n, err := a.templates.LoadYAMLFile(path); err == nil {
			logger.Debug("loaded template file", zap.String("path", path), zap.Int("templates", n))
		}
	}

	// Conversation memory
	mem, err := memory.NewStore(cfg.Memory, kv)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to load conversation memory: %w", err)
	}
	a.mem = mem

	// Backends, local runtime, health
	a.registry = provider.BuildRegistry(cfg)
	a.runtime = provider.NewRuntime(cfg.Runtime, cfg.GetModelCacheTTL(), cfg.GetStartTimeout())
	a.tracker = health.NewTracker(cfg.Health, cfg.GetOfflineGracePeriod())
	for _, p := range cfg.Providers {
		a.tracker.Register(p.Provider, p.Provider == config.ProviderLocal)
	}

	prober, err := health.NewProber(cfg.Health, cfg.GetProbeInterval(), cfg.GetProbeTimeout())
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to start network prober: %w", err)
	}
	a.prober = prober
	a.prober.Start()

	// Optional external screen-context feed
	if cfg.Feed.Enabled {
		a.feed = perception.NewWSFeed(cfg.Feed.URL, cfg.GetReconnectDelay())
		if err := a.feed.Start(ctx); err != nil {
			logger.Warn("context feed unavailable", zap.Error(err))
			a.feed = nil
		}
	}

	a.orch = orchestrator.New(orchestrator.Components{
		Config:    cfg,
		Templates: a.templates,
		Router:    routing.NewRouter(a.templates),
		Composer:  prompt.NewComposer(cfg.Prompt, a.templates, a.mem),
		Memory:    a.mem,
		Selector:  selection.NewSelector(cfg, a.tracker, a.prober, a.runtime, a.registry),
		Registry:  a.registry,
		Tracker:   a.tracker,
		Settings:  a.settings,
	})
	a.orch.ApplySettings()

	return a, nil
}

// detectContext returns the freshest screen snapshot from the feed, or nil
// when no feed is running. A nil context routes to the general template.
func (a *app) detectContext(ctx context.Context) *perception.ApplicationContext {
	if a.feed == nil {
		return nil
	}
	snapshot, err := a.feed.DetectContext(ctx, perception.DetectOptions{})
	if err != nil {
		logger.Debug("no screen context", zap.Error(err))
		return nil
	}
	return snapshot
}

// Close tears down background tasks and the store. Safe on a partially
// built app.
func (a *app) Close() {
	if a.watcher != nil {
		a.watcher.Stop()
	}
	if a.feed != nil {
		_ = a.feed.Close()
	}
	if a.prober != nil {
		a.prober.Stop()
	}
	if a.tracker != nil {
		a.tracker.Close()
	}
	if a.kv != nil {
		_ = a.kv.Close()
	}
}
