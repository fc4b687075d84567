package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"glance/internal/config"
	"glance/internal/logging"
	"glance/internal/metrics"
	"glance/internal/orchestrator"
	"glance/internal/perception"
)

var (
	// Global flags
	verbose     bool
	configPath  string
	workspace   string
	timeout     time.Duration
	metricsAddr string

	// Ask flags
	askTemplate   string
	askProvider   string
	askModel      string
	askSession    string
	askApp        string
	askTitle      string
	askRace       bool
	askJSON       bool
	askNoOptimize bool
	askNetwork    bool

	// Logger
	logger *zap.Logger

	// Loaded configuration, available to every subcommand after PreRun
	cfg *config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "glance",
	Short: "glance - screen-aware AI assistant core",
	Long: `glance is the decision core of a screen-aware desktop assistant.

It routes each query to a prompt template based on what is on screen,
composes the prompt with conversation history, picks the best available
backend (local daemon first, hosted vendors as fallback), and dispatches
with health-tracked failover.

Run without arguments to start the interactive chat loop.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// API keys commonly live in a .env next to the binary
		if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "warning: could not load .env: %v\n", err)
		}

		// Resolve workspace
		if workspace == "" {
			workspace, _ = os.Getwd()
		}

		// Load configuration
		var err error
		cfg, err = config.Load(resolvePath(configPath))
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}

		// Category file logging (debug-mode gated) + dispatch audit trail
		if err := logging.Initialize(workspace); err != nil {
			fmt.Fprintf(os.Stderr, "warning: file logging disabled: %v\n", err)
		}
		if err := logging.InitAudit(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: audit trail disabled: %v\n", err)
		}

		// Operator logger
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		// Optional prometheus endpoint
		if metricsAddr != "" {
			go func() {
				if err := metrics.Serve(metricsAddr); err != nil {
					logger.Warn("metrics endpoint stopped", zap.Error(err))
				}
			}()
			logger.Info("metrics endpoint listening", zap.String("addr", metricsAddr))
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
		logging.CloseAudit()
		logging.CloseAll()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		// Default behavior: launch the interactive chat loop
		return runChat(cmd, args)
	},
}

// askCmd sends a single query through the full pipeline
var askCmd = &cobra.Command{
	Use:   "ask [query]",
	Short: "Send one query through the routing and dispatch pipeline",
	Long: `Processes a single query end to end:
  1. Route: pick a prompt template from the query and screen context
  2. Compose: fill the template, inject conversation history
  3. Select: rank backends by priority, health, and connectivity
  4. Dispatch: send with per-backend timeout and fallback on failure

Examples:
  glance ask "what does this error mean"
  glance ask --provider anthropic --model claude-sonnet-4-5 "summarize this"
  glance ask --app code --title "main.go - Visual Studio Code" "explain this file"
  glance ask --session 2f1c... "and in German?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", ".glance/config.yaml", "Config file path (relative to workspace)")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "Workspace directory (default: current)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 2*time.Minute, "Operation timeout")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "Serve prometheus metrics on this address (e.g. :9090)")

	// Ask flags
	askCmd.Flags().StringVar(&askTemplate, "template", "", "Force a template id, skipping routing")
	askCmd.Flags().StringVar(&askProvider, "provider", "", "Force a backend, skipping selection")
	askCmd.Flags().StringVar(&askModel, "model", "", "Model override (with --provider)")
	askCmd.Flags().StringVar(&askSession, "session", "", "Session id for conversation memory")
	askCmd.Flags().StringVar(&askApp, "app", "", "Simulate a foreground application (process name, e.g. code, chrome)")
	askCmd.Flags().StringVar(&askTitle, "title", "", "Window title for the simulated application (with --app)")
	askCmd.Flags().BoolVar(&askRace, "race", false, "Race the top candidates and keep the first answer")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "Print the full response as JSON")
	askCmd.Flags().BoolVar(&askNoOptimize, "no-optimize", false, "Skip the prompt optimization pass")
	askCmd.Flags().BoolVar(&askNetwork, "network", false, "Mark the task as needing live network access")

	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(providersCmd)
	rootCmd.AddCommand(sessionsCmd)
	rootCmd.AddCommand(modelsCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// runAsk sends a single query through the pipeline
func runAsk(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		logger.Info("Received shutdown signal")
		cancel()
	}()

	app, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	query := strings.Join(args, " ")
	logger.Debug("Processing query", zap.String("query", query))

	snapshot := app.detectContext(ctx)
	if askApp != "" {
		det := perception.NewStaticDetector(perception.FromWindow(askApp, askTitle))
		snapshot, _ = det.DetectContext(ctx, perception.DetectOptions{CaptureSelectedText: true})
	}

	req := orchestrator.Request{
		Query:           query,
		Context:         snapshot,
		SessionID:       askSession,
		TemplateID:      askTemplate,
		Provider:        askProvider,
		Model:           askModel,
		RequiresNetwork: askNetwork,
		NoOptimize:      askNoOptimize,
	}

	var resp *orchestrator.Response
	if askRace {
		resp, err = app.orch.SendRequestRacing(ctx, req)
	} else {
		resp, err = app.orch.SendRequest(ctx, req)
	}
	if err != nil {
		return err
	}

	if askJSON {
		out, err := json.MarshalIndent(resp, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode response: %w", err)
		}
		fmt.Println(string(out))
		return nil
	}

	fmt.Print(renderMarkdown(resp.Content))
	fmt.Println(footerStyle.Render(fmt.Sprintf("%s · %s · %s · %dms",
		resp.Provider, resp.Model, resp.TemplateID, resp.DurationMs)))
	return nil
}

// resolvePath resolves a path against the workspace unless already absolute.
func resolvePath(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(workspace, p)
}
