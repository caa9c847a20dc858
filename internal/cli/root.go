// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/jeranaias/colossus/internal/config"
	"github.com/jeranaias/colossus/internal/logging"
)

// Version information, set by main.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	configPath string
	verbose    bool
	backend    string
	model      string
	localOnly  bool
}

var flags globalFlags

// rootCmd starts the TUI when run without a subcommand.
var rootCmd = &cobra.Command{
	Use:   "colossus",
	Short: "Chat with local LLM servers, alone or as a council",
	Long: `colossus is a terminal client for OpenAI-compatible and Ollama servers.

It streams answers with live reasoning panels, can ask a council of
personas and have a chair model synthesize their answers, and keeps every
conversation on disk.

Quick Start:
  colossus                          # Full-screen chat
  colossus ask "What is a monad?"   # One question
  colossus chat --council           # Council REPL
  colossus serve                    # HTTP API`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTUI(cmd, rootTUIFlags)
	},
}

// Execute runs the command tree and exits non-zero on failure.
func Execute() {
	rootCmd.Version = fmt.Sprintf("%s (commit: %s, built: %s)", Version, GitCommit, BuildDate)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", ErrorStyle.Render("Error:"), err)
		os.Exit(1)
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "Config file (default ~/.colossus/config.toml)")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "Enable debug logging")
	pf.StringVar(&flags.backend, "backend", "", "Backend kind: openai or ollama")
	pf.StringVarP(&flags.model, "model", "m", "", "Model to use")
	pf.BoolVar(&flags.localOnly, "local-only", false, "Allow loopback endpoints only and disable web search")

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
	rootCmd.Flags().AddFlagSet(tuiFlagSet(&rootTUIFlags))
}

// =============================================================================
// SETUP HELPERS
// =============================================================================

// loadConfig reads the config file and applies the global flags.
func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if flags.configPath != "" {
		cfg, err = config.LoadFromPath(flags.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}

	if flags.backend != "" {
		cfg.Backend.Kind = flags.backend
	}
	if flags.model != "" {
		cfg.Chat.Model = flags.model
	}
	if flags.localOnly {
		cfg.Offline.LocalOnly = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// newLogger builds the stderr logger for cfg.
func newLogger(cfg *config.Config) zerolog.Logger {
	return logging.Setup(logging.Options{
		Level:   cfg.Log.Level,
		Verbose: flags.verbose,
		Pretty:  cfg.Log.Pretty,
	})
}

// setup loads config and builds the App. Callers must Close it.
func setup() (*App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return NewApp(cfg, newLogger(cfg))
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// isCancel reports whether err is a context cancellation.
func isCancel(err error) bool {
	return errors.Is(err, context.Canceled)
}
