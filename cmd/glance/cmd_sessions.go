package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"glance/internal/memory"
)

var (
	sessionsExportFormat string
	sessionsExportOut    string
)

// sessionsCmd manages stored conversations
var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List and manage stored conversations",
	RunE:  runSessionsList,
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show a conversation transcript",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsShow,
}

var sessionsExportCmd = &cobra.Command{
	Use:   "export [id]",
	Short: "Export a conversation (json, markdown, or text)",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsExport,
}

var sessionsImportCmd = &cobra.Command{
	Use:   "import [file]",
	Short: "Import a conversation from a JSON export",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsImport,
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete a conversation",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsDelete,
}

var sessionsArchiveCmd = &cobra.Command{
	Use:   "archive [id]",
	Short: "Mark a conversation archived",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsArchive,
}

func init() {
	sessionsExportCmd.Flags().StringVar(&sessionsExportFormat, "format", "json", "Export format: json, markdown, text")
	sessionsExportCmd.Flags().StringVar(&sessionsExportOut, "out", "", "Write to file instead of stdout")

	sessionsCmd.AddCommand(sessionsShowCmd)
	sessionsCmd.AddCommand(sessionsExportCmd)
	sessionsCmd.AddCommand(sessionsImportCmd)
	sessionsCmd.AddCommand(sessionsDeleteCmd)
	sessionsCmd.AddCommand(sessionsArchiveCmd)
}

func runSessionsList(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	app, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	sessions := app.orch.ListSessions()
	if len(sessions) == 0 {
		fmt.Println(headerStyle.Render("No sessions stored"))
		return nil
	}

	fmt.Println(headerStyle.Render(fmt.Sprintf("Found %d session(s)", len(sessions))))
	fmt.Println()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	_, _ = fmt.Fprintln(w, titleStyle.Render("ID")+"\t"+titleStyle.Render("TITLE")+"\t"+
		titleStyle.Render("MESSAGES")+"\t"+titleStyle.Render("UPDATED")+"\t"+titleStyle.Render("STATE")+"\t")
	_, _ = fmt.Fprintln(w, strings.Repeat("-", 90))

	for _, sess := range sessions {
		title := sess.Title
		if title == "" {
			title = "Untitled"
		}
		title = truncate(title, 40)

		state := ""
		if sess.Metadata.Archived {
			state = dateStyle.Render("archived")
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t\n",
			idStyle.Render(shortID(sess.ID)),
			title,
			okStyle.Render(fmt.Sprintf("%d", len(sess.Messages))),
			dateStyle.Render(relativeTime(sess.UpdatedAt)),
			state)
	}
	_ = w.Flush()

	fmt.Println()
	fmt.Println(idStyle.Render("Use the full id with `glance sessions show <id>`; ids are in exports"))
	return nil
}

func runSessionsShow(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	app, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	sess, ok := app.orch.GetSession(args[0])
	if !ok {
		return fmt.Errorf("unknown session: %s", args[0])
	}

	title := sess.Title
	if title == "" {
		title = "Untitled"
	}
	fmt.Println(headerStyle.Render(title))
	fmt.Println(idStyle.Render(sess.ID + " · " + sess.CreatedAt.Format("2006-01-02 15:04")))
	fmt.Println()

	for _, msg := range sess.Messages {
		switch msg.Role {
		case memory.RoleUser:
			fmt.Println(promptStyle.Render("you> ") + msg.Content)
		case memory.RoleAssistant:
			fmt.Print(renderMarkdown(msg.Content))
			if p := msg.Metadata["provider"]; p != "" {
				fmt.Println(footerStyle.Render(p + " · " + msg.Metadata["model"]))
			}
		default:
			fmt.Println(dateStyle.Render("[system] " + msg.Content))
		}
		fmt.Println()
	}
	return nil
}

func runSessionsExport(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	app, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	out, err := app.orch.ExportConversation(args[0], sessionsExportFormat)
	if err != nil {
		return err
	}

	if sessionsExportOut == "" {
		fmt.Println(out)
		return nil
	}
	if err := os.WriteFile(sessionsExportOut, []byte(out), 0644); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}
	fmt.Printf("%s exported %s to %s\n", mark(true), shortID(args[0]), sessionsExportOut)
	return nil
}

func runSessionsImport(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read import file: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	app, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	id, err := app.orch.ImportConversation(data)
	if err != nil {
		return err
	}
	fmt.Printf("%s imported as session %s\n", mark(true), id)
	return nil
}

func runSessionsDelete(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	app, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.orch.DeleteSession(args[0]); err != nil {
		return err
	}
	fmt.Printf("%s deleted %s\n", mark(true), shortID(args[0]))
	return nil
}

func runSessionsArchive(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	app, err := buildApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	if err := app.orch.ArchiveSession(args[0]); err != nil {
		return err
	}
	fmt.Printf("%s archived %s\n", mark(true), shortID(args[0]))
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// relativeTime formats a timestamp the way humans scan lists.
func relativeTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	diff := time.Since(t)
	switch {
	case diff < 24*time.Hour:
		return t.Format("Today 15:04")
	case diff < 7*24*time.Hour:
		return t.Format("Mon 15:04")
	case diff < 365*24*time.Hour:
		return t.Format("Jan 02 15:04")
	default:
		return t.Format("2006-01-02")
	}
}
