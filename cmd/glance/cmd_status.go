package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// statusCmd shows an at-a-glance system status
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show glance system status",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	app, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	fmt.Println(headerStyle.Render(fmt.Sprintf("glance %s", cfg.Version)))
	fmt.Println()
	fmt.Printf("%s workspace: %s\n", mark(true), workspace)
	fmt.Printf("%s config:    %s\n", mark(true), resolvePath(configPath))
	fmt.Printf("%s store:     %s\n", mark(true), resolvePath(cfg.Store.DatabasePath))
	fmt.Println()

	// Connectivity and local runtime
	online := app.prober.Online()
	if online {
		fmt.Printf("%s network online\n", mark(true))
	} else {
		fmt.Printf("%s network offline (local runtime only)\n", mark(false))
	}

	rt := app.runtime.Status(ctx)
	switch {
	case rt.Running:
		fmt.Printf("%s local runtime running (%s)\n", mark(true), rt.Version)
	case rt.Installed:
		fmt.Printf("%s local runtime installed but not running\n", mark(false))
	default:
		fmt.Printf("%s local runtime not installed\n", mark(false))
	}
	fmt.Println()

	// Vendor credentials
	fmt.Printf("%s openai key %s\n", mark(cfg.Vendors.OpenAI.APIKey != ""), keyState(cfg.Vendors.OpenAI.APIKey))
	fmt.Printf("%s anthropic key %s\n", mark(cfg.Vendors.Anthropic.APIKey != ""), keyState(cfg.Vendors.Anthropic.APIKey))
	fmt.Printf("%s gemini key %s\n", mark(cfg.Vendors.Gemini.APIKey != ""), keyState(cfg.Vendors.Gemini.APIKey))
	if cfg.Vendors.Custom.BaseURL != "" {
		fmt.Printf("%s custom endpoint %s\n", mark(true), cfg.Vendors.Custom.BaseURL)
	}
	fmt.Println()

	// Component counts
	fmt.Printf("%s backends constructed: %s\n", mark(len(app.registry.Names()) > 0),
		strings.Join(app.registry.Names(), ", "))
	fmt.Printf("%s templates: %d (%d custom)\n", mark(true), len(app.templates.All()), len(app.templates.Customs()))
	fmt.Printf("%s sessions stored: %d\n", mark(true), len(app.orch.ListSessions()))
	fmt.Println()

	// Selection mode
	mode := "remote allowed"
	if cfg.Selection.LocalOnly {
		mode = "local only"
	} else if cfg.Selection.PreferLocal {
		mode = "prefer local"
	}
	fmt.Printf("%s selection: %s, max %d fallback(s)\n", mark(true), mode, cfg.Selection.MaxFallbackAttempts)
	return nil
}

func keyState(key string) string {
	if key == "" {
		return "not configured"
	}
	return "configured"
}
