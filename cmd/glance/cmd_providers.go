package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

// providersCmd manages the backend priority table
var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "Show and manage backend providers",
	RunE:  runProvidersList,
}

var providersEnableCmd = &cobra.Command{
	Use:   "enable [name]",
	Short: "Enable a backend (persisted)",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return setProviderEnabled(args[0], true) },
}

var providersDisableCmd = &cobra.Command{
	Use:   "disable [name]",
	Short: "Disable a backend (persisted)",
	Args:  cobra.ExactArgs(1),
	RunE:  func(cmd *cobra.Command, args []string) error { return setProviderEnabled(args[0], false) },
}

var providersPriorityCmd = &cobra.Command{
	Use:   "priority [name] [value]",
	Short: "Set a backend's priority (persisted)",
	Args:  cobra.ExactArgs(2),
	RunE:  runProvidersPriority,
}

func init() {
	providersCmd.AddCommand(providersEnableCmd)
	providersCmd.AddCommand(providersDisableCmd)
	providersCmd.AddCommand(providersPriorityCmd)
}

func runProvidersList(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	app, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	printProviderTable(app)
	return nil
}

// printProviderTable renders the priority table joined with live health.
func printProviderTable(a *app) {
	statuses := make(map[string]healthRow)
	for _, st := range a.tracker.Statuses() {
		statuses[st.Provider] = healthRow{
			available: st.IsAvailable,
			rate:      st.SuccessRate,
			latencyMs: st.ResponseTimeMs,
			lastError: st.LastError,
		}
	}

	fmt.Println(headerStyle.Render(fmt.Sprintf("Backends (%d configured)", len(a.cfg.Providers))))
	fmt.Println()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	_, _ = fmt.Fprintln(w, titleStyle.Render("PROVIDER")+"\t"+titleStyle.Render("PRIORITY")+"\t"+
		titleStyle.Render("ENABLED")+"\t"+titleStyle.Render("CLIENT")+"\t"+
		titleStyle.Render("HEALTH")+"\t"+titleStyle.Render("RATE")+"\t"+
		titleStyle.Render("LATENCY")+"\t"+titleStyle.Render("LAST ERROR")+"\t")
	_, _ = fmt.Fprintln(w, strings.Repeat("-", 96))

	for _, p := range a.orch.ProviderPriorities() {
		enabled := mark(p.Enabled)
		client := mark(a.registry.Has(p.Provider))

		healthCol := dateStyle.Render("-")
		rateCol := dateStyle.Render("-")
		latencyCol := dateStyle.Render("-")
		errCol := ""
		if st, ok := statuses[p.Provider]; ok {
			if st.available {
				healthCol = okStyle.Render("available")
			} else {
				healthCol = badStyle.Render("blacklisted")
			}
			rateCol = fmt.Sprintf("%.2f", st.rate)
			if st.latencyMs > 0 {
				latencyCol = fmt.Sprintf("%dms", st.latencyMs)
			}
			if st.lastError != "" {
				errCol = dateStyle.Render(truncate(st.lastError, 40))
			}
		}

		_, _ = fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\t%s\t%s\t%s\t\n",
			p.Provider, p.Priority, enabled, client, healthCol, rateCol, latencyCol, errCol)
	}
	_ = w.Flush()

	fmt.Println()
	online := a.prober.Online()
	state := "offline"
	if online {
		state = "online"
	}
	fmt.Printf("%s network %s", mark(online), state)
	if !a.prober.LastProbe().IsZero() {
		fmt.Printf(" %s", dateStyle.Render("(probed "+a.prober.LastProbe().Format(time.Kitchen)+")"))
	}
	fmt.Println()
}

type healthRow struct {
	available bool
	rate      float64
	latencyMs int64
	lastError string
}

func setProviderEnabled(name string, enabled bool) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	app, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.orch.SetProviderEnabled(name, enabled); err != nil {
		return err
	}
	state := "disabled"
	if enabled {
		state = "enabled"
	}
	fmt.Printf("%s %s %s\n", mark(enabled), name, state)
	return nil
}

func runProvidersPriority(cmd *cobra.Command, args []string) error {
	priority, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("priority must be an integer: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	app, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.orch.SetProviderPriority(args[0], priority); err != nil {
		return err
	}
	fmt.Printf("%s %s priority set to %d\n", mark(true), args[0], priority)
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
