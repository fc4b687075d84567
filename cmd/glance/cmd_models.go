package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// modelsCmd manages the local model runtime
var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Manage the local model runtime",
	Long: `Inspects and manages the local model daemon.

Without a subcommand, lists the installed models. The daemon is detected
on PATH and at the common install locations; start it with
'glance models start' if it is installed but not running.`,
	RunE: runModelsList,
}

var modelsPullCmd = &cobra.Command{
	Use:   "pull [name]",
	Short: "Download a model",
	Args:  cobra.ExactArgs(1),
	RunE:  runModelsPull,
}

var modelsDeleteCmd = &cobra.Command{
	Use:   "delete [name]",
	Short: "Remove an installed model",
	Args:  cobra.ExactArgs(1),
	RunE:  runModelsDelete,
}

var modelsStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the local daemon if it is not running",
	RunE:  runModelsStart,
}

func init() {
	modelsCmd.AddCommand(modelsPullCmd)
	modelsCmd.AddCommand(modelsDeleteCmd)
	modelsCmd.AddCommand(modelsStartCmd)
}

func runModelsList(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	app, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	status := app.runtime.Status(ctx)
	fmt.Printf("%s runtime installed\n", mark(status.Installed))
	if status.Running {
		fmt.Printf("%s daemon running (%s)\n", mark(true), status.Version)
	} else {
		fmt.Printf("%s daemon not running\n", mark(false))
	}
	fmt.Println()

	if !status.Running {
		fmt.Println(idStyle.Render("Start it with `glance models start`"))
		return nil
	}

	models, err := app.runtime.ListModels(ctx)
	if err != nil {
		return fmt.Errorf("failed to list models: %w", err)
	}
	if len(models) == 0 {
		fmt.Println(headerStyle.Render("No models installed"))
		fmt.Println(idStyle.Render("Pull one with `glance models pull " + cfg.Runtime.DefaultModel + "`"))
		return nil
	}

	fmt.Println(headerStyle.Render(fmt.Sprintf("Installed models (%d)", len(models))))
	fmt.Println()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	_, _ = fmt.Fprintln(w, titleStyle.Render("NAME")+"\t"+titleStyle.Render("SIZE")+"\t"+titleStyle.Render("MODIFIED")+"\t")
	_, _ = fmt.Fprintln(w, strings.Repeat("-", 60))
	for _, m := range models {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t\n", m.Name, humanSize(m.Size), dateStyle.Render(m.ModifiedAt))
	}
	_ = w.Flush()
	return nil
}

func runModelsPull(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	app, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	fmt.Printf("Pulling %s (this can take a while)...\n", args[0])
	if err := app.runtime.PullModel(ctx, args[0]); err != nil {
		return err
	}
	fmt.Printf("%s pulled %s\n", mark(true), args[0])
	return nil
}

func runModelsDelete(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	app, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.runtime.DeleteModel(ctx, args[0]); err != nil {
		return err
	}
	fmt.Printf("%s deleted %s\n", mark(true), args[0])
	return nil
}

func runModelsStart(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	app, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	if app.runtime.Running(ctx) {
		fmt.Printf("%s daemon already running\n", mark(true))
		return nil
	}
	if err := app.runtime.StartDaemon(ctx); err != nil {
		return err
	}
	fmt.Printf("%s daemon started\n", mark(true))
	return nil
}

// humanSize renders bytes the way model registries report them.
func humanSize(b int64) string {
	const gb = 1 << 30
	const mb = 1 << 20
	switch {
	case b >= gb:
		return fmt.Sprintf("%.1f GB", float64(b)/gb)
	case b >= mb:
		return fmt.Sprintf("%.0f MB", float64(b)/mb)
	case b > 0:
		return fmt.Sprintf("%d B", b)
	default:
		return "-"
	}
}
