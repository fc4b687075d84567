package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"glance/internal/orchestrator"
)

var chatSessionID string

// chatCmd runs the interactive loop
var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start the interactive chat loop",
	Long: `Starts a line-oriented chat loop with conversation memory.

Every turn runs the full pipeline: routing, prompt composition with the
session history, backend selection, and dispatch with fallback.

Slash commands inside the loop:
  /new              start a fresh session
  /session          show the current session id
  /summary          summarize the current session
  /providers        show backend health
  /template <id>    force a template for subsequent turns
  /provider <name>  force a backend for subsequent turns
  /race             toggle racing dispatch
  /quit             exit`,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVar(&chatSessionID, "session", "", "Resume an existing session id")
}

// runChat drives the REPL. Also the root command's default behavior.
func runChat(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		fmt.Println("\nbye")
		cancel()
	}()

	app, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	sessionID := chatSessionID
	if sessionID == "" {
		sessionID, err = app.orch.CreateSession("chat "+time.Now().Format("Jan 2 15:04"), nil)
		if err != nil {
			return fmt.Errorf("failed to create session: %w", err)
		}
	} else if _, ok := app.orch.GetSession(sessionID); !ok {
		return fmt.Errorf("unknown session: %s", sessionID)
	}

	fmt.Println(headerStyle.Render("glance chat"))
	fmt.Println(idStyle.Render("session " + sessionID + " · /quit to exit, /help for commands"))
	fmt.Println()

	var (
		forcedTemplate string
		forcedProvider string
		racing         bool
	)

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		fmt.Print(promptStyle.Render("you> "))
		if !scanner.Scan() {
			break
		}
		if ctx.Err() != nil {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			done, err := handleSlash(app, line, &sessionID, &forcedTemplate, &forcedProvider, &racing)
			if err != nil {
				fmt.Println(badStyle.Render(err.Error()))
			}
			if done {
				return nil
			}
			continue
		}

		req := orchestrator.Request{
			Query:      line,
			Context:    app.detectContext(ctx),
			SessionID:  sessionID,
			TemplateID: forcedTemplate,
			Provider:   forcedProvider,
		}

		turnCtx, turnCancel := context.WithTimeout(ctx, timeout)
		var resp *orchestrator.Response
		if racing {
			resp, err = app.orch.SendRequestRacing(turnCtx, req)
		} else {
			resp, err = app.orch.SendRequest(turnCtx, req)
		}
		turnCancel()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			fmt.Println(badStyle.Render("error: " + err.Error()))
			continue
		}

		fmt.Print(renderMarkdown(resp.Content))
		fmt.Println(footerStyle.Render(fmt.Sprintf("%s · %s · %dms", resp.Provider, resp.Model, resp.DurationMs)))
		fmt.Println()
	}
	return scanner.Err()
}

// handleSlash executes one REPL slash command. Returns done=true on /quit.
func handleSlash(a *app, line string, sessionID, forcedTemplate, forcedProvider *string, racing *bool) (bool, error) {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit", "/exit":
		return true, nil

	case "/help":
		fmt.Println("  /new  /session  /summary  /providers  /template <id>  /provider <name>  /race  /quit")

	case "/new":
		id, err := a.orch.CreateSession("chat "+time.Now().Format("Jan 2 15:04"), nil)
		if err != nil {
			return false, err
		}
		*sessionID = id
		fmt.Println(idStyle.Render("session " + id))

	case "/session":
		fmt.Println(idStyle.Render(*sessionID))

	case "/summary":
		summary, ok := a.orch.Summarize(*sessionID)
		if !ok || summary.MessageCount == 0 {
			fmt.Println(idStyle.Render("nothing to summarize yet"))
			break
		}
		fmt.Printf("  %d message(s), %s sentiment\n", summary.MessageCount, summary.Sentiment)
		if len(summary.Keywords) > 0 {
			fmt.Printf("  keywords: %s\n", strings.Join(summary.Keywords, ", "))
		}
		for _, q := range summary.UnresolvedQuestions {
			fmt.Printf("  open: %s\n", q)
		}

	case "/providers":
		printProviderTable(a)

	case "/template":
		if len(fields) < 2 {
			*forcedTemplate = ""
			fmt.Println(idStyle.Render("template routing restored"))
			break
		}
		if !a.templates.Has(fields[1]) {
			return false, fmt.Errorf("unknown template: %s", fields[1])
		}
		*forcedTemplate = fields[1]
		fmt.Println(idStyle.Render("forcing template " + fields[1]))

	case "/provider":
		if len(fields) < 2 {
			*forcedProvider = ""
			fmt.Println(idStyle.Render("backend selection restored"))
			break
		}
		if !a.registry.Has(fields[1]) {
			return false, fmt.Errorf("no client constructed for %s", fields[1])
		}
		*forcedProvider = fields[1]
		fmt.Println(idStyle.Render("forcing backend " + fields[1]))

	case "/race":
		*racing = !*racing
		if *racing {
			fmt.Println(idStyle.Render("racing on"))
		} else {
			fmt.Println(idStyle.Render("racing off"))
		}

	default:
		return false, fmt.Errorf("unknown command: %s", fields[0])
	}
	return false, nil
}
