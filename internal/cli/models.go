// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeranaias/colossus/internal/chat"
	"github.com/jeranaias/colossus/internal/commands"
)

const modelsTimeout = 10 * time.Second

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the models every reachable backend serves",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := setup()
		if err != nil {
			return err
		}
		defer app.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), modelsTimeout)
		defer cancel()
		printModelGroups(cmd.OutOrStdout(), chat.ListAllModels(ctx, app.Listers))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(modelsCmd)
}

// printModelGroups lists models per backend.
func printModelGroups(out io.Writer, groups []chat.ModelGroup) {
	fmt.Fprintln(out, commands.FormatModelGroups(groups))
}
