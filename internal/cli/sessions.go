// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/jeranaias/colossus/internal/storage"
	"github.com/jeranaias/colossus/internal/util"
)

// =============================================================================
// SESSIONS COMMAND
// =============================================================================

var sessionsSearch string

var sessionsCmd = &cobra.Command{
	Use:     "sessions",
	Aliases: []string{"session", "s"},
	Short:   "List and manage stored sessions",
	Long: `List and manage stored sessions.

A session reference is a full ID, a list number as shown by "sessions list",
or a unique ID prefix.`,
	RunE: runSessionsList,
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sessions, most recent first",
	Args:  cobra.NoArgs,
	RunE:  runSessionsList,
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <ref>",
	Short: "Print a session",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsShow,
}

var sessionsRenameCmd = &cobra.Command{
	Use:   "rename <ref> <name>",
	Short: "Rename a session",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runSessionsRename,
}

var sessionsDeleteCmd = &cobra.Command{
	Use:     "delete <ref>",
	Aliases: []string{"rm"},
	Short:   "Delete a session",
	Args:    cobra.ExactArgs(1),
	RunE:    runSessionsDelete,
}

var (
	exportFormat string
	exportOutput string
)

var sessionsExportCmd = &cobra.Command{
	Use:   "export <ref>",
	Short: "Export a session as markdown or JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsExport,
}

func init() {
	sessionsCmd.PersistentFlags().StringVarP(&sessionsSearch, "search", "s", "", "Filter by name or message text")
	sessionsExportCmd.Flags().StringVarP(&exportFormat, "format", "f", "md", "Export format: md or json")
	sessionsExportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file (default stdout)")

	sessionsCmd.AddCommand(sessionsListCmd, sessionsShowCmd, sessionsRenameCmd, sessionsDeleteCmd, sessionsExportCmd)
	rootCmd.AddCommand(sessionsCmd)
}

func runSessionsList(cmd *cobra.Command, args []string) error {
	app, err := setup()
	if err != nil {
		return err
	}
	defer app.Close()

	list, err := storage.Search(app.Store, sessionsSearch)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), strings.TrimRight(storage.FormatSessionList(list), "\n"))
	return nil
}

func runSessionsShow(cmd *cobra.Command, args []string) error {
	app, err := setup()
	if err != nil {
		return err
	}
	defer app.Close()

	s, err := storage.Resolve(app.Store, args[0])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	snap := s.Snapshot()
	fmt.Fprintln(out, TitleStyle.Render(snap.Name))
	fmt.Fprintf(out, "%s %s  %s %s  %s %s\n",
		RenderLabel("ID:"), snap.ID,
		RenderLabel("Mode:"), snap.Mode,
		RenderLabel("Model:"), snap.Model)
	fmt.Fprintln(out, RenderSeparator(GetTerminalWidth()))

	r := app.Renderer(GetTerminalWidth())
	for _, m := range snap.Messages {
		fmt.Fprintln(out, renderMessage(r, m))
		fmt.Fprintln(out)
	}
	return nil
}

func runSessionsRename(cmd *cobra.Command, args []string) error {
	app, err := setup()
	if err != nil {
		return err
	}
	defer app.Close()

	s, err := storage.Resolve(app.Store, args[0])
	if err != nil {
		return err
	}
	name := strings.TrimSpace(strings.Join(args[1:], " "))
	if name == "" {
		return fmt.Errorf("name is empty")
	}
	s.Rename(name)
	if err := app.Store.Save(s); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s Renamed %s to %q\n", SuccessStyle.Render("[OK]"), short(s.ID), name)
	return nil
}

func runSessionsDelete(cmd *cobra.Command, args []string) error {
	app, err := setup()
	if err != nil {
		return err
	}
	defer app.Close()

	s, err := storage.Resolve(app.Store, args[0])
	if err != nil {
		return err
	}
	if err := app.Store.Delete(s.ID); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s Deleted %s (%s)\n", SuccessStyle.Render("[OK]"), short(s.ID), s.Title())
	return nil
}

func runSessionsExport(cmd *cobra.Command, args []string) error {
	app, err := setup()
	if err != nil {
		return err
	}
	defer app.Close()

	s, err := storage.Resolve(app.Store, args[0])
	if err != nil {
		return err
	}

	var data []byte
	switch strings.ToLower(exportFormat) {
	case "md", "markdown":
		data = []byte(storage.ExportMarkdown(s))
	case "json":
		data, err = json.MarshalIndent(s.Snapshot(), "", "  ")
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown format %q (use md or json)", exportFormat)
	}

	if exportOutput == "" {
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}
	if err := util.AtomicWriteFile(exportOutput, data, 0o600); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Exported to %s\n", exportOutput)
	return nil
}

// short returns the display prefix of an ID.
func short(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
