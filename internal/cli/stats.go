// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
)

var statsJSON bool

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show token usage across all turns",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := setup()
		if err != nil {
			return err
		}
		defer app.Close()

		snap := app.Stats.Snapshot()
		out := cmd.OutOrStdout()
		if statsJSON {
			data, err := json.MarshalIndent(snap, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(out, string(data))
			return nil
		}
		fmt.Fprintf(out, "%s %d\n", RenderLabel("Requests:"), snap.Requests)
		fmt.Fprintf(out, "%s %d\n", RenderLabel("Prompt tokens:"), snap.PromptTokens)
		fmt.Fprintf(out, "%s %d\n", RenderLabel("Output tokens:"), snap.CompletionTokens)
		fmt.Fprintf(out, "%s %d\n", RenderLabel("Total tokens:"), snap.TotalTokens())
		fmt.Fprintf(out, "%s %.1f tok/s\n", RenderLabel("Last speed:"), snap.LastSpeed)
		if !snap.UpdatedAt.IsZero() {
			fmt.Fprintf(out, "%s %s\n", RenderLabel("Updated:"), snap.UpdatedAt.Local().Format("2006-01-02 15:04:05"))
		}
		return nil
	},
}

var statsResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Zero the usage counters",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := setup()
		if err != nil {
			return err
		}
		defer app.Close()

		if err := app.Stats.Reset(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), SuccessStyle.Render("[OK]")+" Usage counters reset")
		return nil
	},
}

func init() {
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "Print as JSON")
	statsCmd.AddCommand(statsResetCmd)
	rootCmd.AddCommand(statsCmd)
}
