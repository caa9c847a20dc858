// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/jeranaias/colossus/internal/config"
	"github.com/jeranaias/colossus/internal/logging"
	"github.com/jeranaias/colossus/internal/model"
	"github.com/jeranaias/colossus/internal/ui"
)

// tuiLogFile receives logs while the full-screen UI owns the terminal.
const tuiLogFile = "colossus.log"

// tuiFlags are the turn toggles accepted by the full-screen UI.
type tuiFlags struct {
	turnFlags
}

// rootTUIFlags back the flags of the bare "colossus" invocation.
var (
	rootTUIFlags tuiFlags
	tuiCmdFlags  tuiFlags
)

// tuiFlagSet defines the UI flags on a standalone set so the root command
// and the tui subcommand can share them.
func tuiFlagSet(f *tuiFlags) *pflag.FlagSet {
	fs := pflag.NewFlagSet("tui", pflag.ContinueOnError)
	fs.BoolVarP(&f.council, "council", "c", false, "Start in council mode")
	fs.BoolVarP(&f.thinking, "think", "t", false, "Ask for a <think> reasoning block")
	fs.BoolVarP(&f.research, "research", "r", false, "Search the web before answering")
	fs.StringVarP(&f.persona, "persona", "p", "", "Answer as this persona in single mode")
	fs.StringVarP(&f.session, "session", "s", "", "Resume a stored session (ID, prefix or list number)")
	return fs
}

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Full-screen chat (the default command)",
	Long: `Full-screen chat with live reasoning panels.

Keys:
  Enter     Send the question or slash command
  Esc       Stop a running answer
  Ctrl+T    Expand or collapse the latest reasoning panel
  Ctrl+R    Switch between single and council mode
  Tab       Complete a slash command
  Ctrl+C    Stop a running answer, or quit when idle

Logs are written to ~/.colossus/colossus.log while the screen is active.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTUI(cmd, tuiCmdFlags)
	},
}

func init() {
	tuiCmd.Flags().AddFlagSet(tuiFlagSet(&tuiCmdFlags))
	rootCmd.AddCommand(tuiCmd)
}

func runTUI(cmd *cobra.Command, f tuiFlags) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logOut, err := openTUILog()
	if err != nil {
		return err
	}
	defer logOut.Close()

	log := newLoggerTo(cfg, logOut)
	app, err := NewApp(cfg, log)
	if err != nil {
		return err
	}
	defer app.Close()

	c := app.NewChat("")
	if err := f.apply(cmd, c); err != nil {
		return err
	}

	m := ui.New(ui.Config{
		Chat:         c,
		Renderer:     app.Renderer,
		Env:          app.CommandEnv(c),
		Backend:      app.BackendLabel(),
		Badge:        app.Policy.Badge(),
		TitleTimeout: cfg.Timeout(),
	})

	ctx, cancel := signalContext()
	defer cancel()

	return ui.Run(ctx, m, func(p *tea.Program) {
		go watchPersonas(ctx, app, func(personas []model.Persona) {
			p.Send(ui.PersonasReloadedMsg{Personas: personas})
		})
	})
}

// watchPersonas reloads the persona file on change and hands the new list
// to notify.
func watchPersonas(ctx context.Context, app *App, notify func([]model.Persona)) {
	err := config.Watch(ctx, app.PersonasPath(), app.Log, func() {
		if err := app.ReloadPersonas(); err != nil {
			app.Log.Warn().Err(err).Msg("Persona reload failed, keeping previous list")
			return
		}
		notify(app.Personas())
	})
	if err != nil && ctx.Err() == nil {
		app.Log.Warn().Err(err).Msg("Persona watcher stopped")
	}
}

func openTUILog() (*os.File, error) {
	if err := config.EnsureConfigDir(); err != nil {
		return nil, err
	}
	dir, err := config.ConfigDir()
	if err != nil {
		return nil, err
	}
	f, err := os.OpenFile(filepath.Join(dir, tuiLogFile), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}

// newLoggerTo is newLogger with the output redirected.
func newLoggerTo(cfg *config.Config, out *os.File) zerolog.Logger {
	return logging.Setup(logging.Options{
		Level:   cfg.Log.Level,
		Verbose: flags.verbose,
		Pretty:  cfg.Log.Pretty,
		Out:     out,
	})
}
