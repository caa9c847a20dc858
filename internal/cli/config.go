// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/colossus/internal/config"
)

// =============================================================================
// CONFIG COMMAND
// =============================================================================

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change settings",
	Long: `Show or change settings using dotted keys such as chat.model or
backend.base_url. Secrets are masked when shown.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print one setting",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		v, err := cfg.Redacted().Get(args[0])
		if err != nil {
			return fmt.Errorf("%w (see `colossus config keys`)", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), v)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change one setting and save the config file",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runConfigSet,
}

var configKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List every setting key",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		for _, k := range config.AllKeys() {
			fmt.Fprintln(cmd.OutOrStdout(), k)
		}
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file location",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := configFilePath()
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configShowCmd, configGetCmd, configSetCmd, configKeysCmd, configPathCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), cfg.String())
	return nil
}

// runConfigSet edits the file, not the effective config, so flag and
// environment overrides are not written back.
func runConfigSet(cmd *cobra.Command, args []string) error {
	path, err := configFilePath()
	if err != nil {
		return err
	}
	cfg := config.Default()
	if _, statErr := os.Stat(path); statErr == nil {
		if err := config.LoadTOML(cfg, path); err != nil {
			return err
		}
	}

	key := args[0]
	value := strings.Join(args[1:], " ")
	if err := cfg.Set(key, value); err != nil {
		return fmt.Errorf("%w (see `colossus config keys`)", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	if err := config.SaveTOML(cfg, path); err != nil {
		return err
	}
	shown, _ := cfg.Redacted().Get(key)
	fmt.Fprintf(cmd.OutOrStdout(), "%s %s = %v\n", SuccessStyle.Render("[OK]"), key, shown)
	return nil
}

// configFilePath is --config or the default TOML file.
func configFilePath() (string, error) {
	if flags.configPath != "" {
		return flags.configPath, nil
	}
	return config.ConfigPathTOML()
}
