package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"glance/internal/config"
)

// configCmd inspects and edits configuration
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show and edit configuration",
	RunE:  runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the default config file",
	RunE:  runConfigInit,
}

var configSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Set a persisted preference",
	Long: `Sets a preference that persists across runs and overlays the config file.

Keys:
  prefer-local  true|false   rank the local runtime above remote backends
  local-only    true|false   never dispatch to remote backends
  language      <name>       preferred response language (empty to clear)
  pre-prompt    <text>       instruction prepended to every prompt (empty to clear)`,
	Args: cobra.MinimumNArgs(1),
	RunE: runConfigSet,
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configSetCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	app, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	// The live config already carries the persisted settings overlay
	out, err := yaml.Marshal(app.cfg)
	if err != nil {
		return fmt.Errorf("failed to render config: %w", err)
	}

	fmt.Println(headerStyle.Render("Effective configuration"))
	fmt.Println(idStyle.Render("file: " + resolvePath(configPath)))
	fmt.Println()
	fmt.Print(string(out))

	if lang := app.orch.PreferredLanguage(); lang != "" {
		fmt.Printf("\n%s preferred language: %s\n", mark(true), lang)
	}
	if pp := app.orch.PrePrompt(); pp != "" {
		fmt.Printf("%s pre-prompt: %s\n", mark(true), truncate(pp, 60))
	}
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := resolvePath(configPath)
	if _, err := os.Stat(path); err == nil {
		fmt.Printf("%s config already exists at %s\n", mark(false), path)
		return nil
	}

	if err := config.DefaultConfig().Save(path); err != nil {
		return err
	}
	fmt.Printf("%s wrote default config to %s\n", mark(true), path)
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	app, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	key := args[0]
	value := strings.Join(args[1:], " ")

	switch key {
	case "prefer-local":
		v, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("prefer-local wants true or false: %w", err)
		}
		if err := app.orch.SetPreferLocal(v); err != nil {
			return err
		}

	case "local-only":
		v, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("local-only wants true or false: %w", err)
		}
		if err := app.orch.SetLocalOnly(v); err != nil {
			return err
		}

	case "language":
		if err := app.orch.SetPreferredLanguage(value); err != nil {
			return err
		}

	case "pre-prompt":
		if err := app.orch.SetPrePrompt(value); err != nil {
			return err
		}

	default:
		return fmt.Errorf("unknown key %q (prefer-local, local-only, language, pre-prompt)", key)
	}

	if value == "" {
		fmt.Printf("%s cleared %s\n", mark(true), key)
	} else {
		fmt.Printf("%s %s = %s\n", mark(true), key, value)
	}
	return nil
}
