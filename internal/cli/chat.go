// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/jeranaias/colossus/internal/chat"
	"github.com/jeranaias/colossus/internal/commands"
	"github.com/jeranaias/colossus/internal/config"
)

// =============================================================================
// INPUT HISTORY
// =============================================================================

// lineReader provides line editing and persistent input history.
type lineReader struct {
	line        *liner.State
	historyFile string
}

func newLineReader(reg *commands.Registry) *lineReader {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)
	line.SetCompleter(func(input string) []string {
		if commands.GetPartialCommand(input) == "" {
			return nil
		}
		return reg.Complete(input)
	})

	dir, err := config.ConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	r := &lineReader{line: line, historyFile: filepath.Join(dir, "chat_history")}
	if f, err := os.Open(r.historyFile); err == nil {
		r.line.ReadHistory(f)
		f.Close()
	}
	return r
}

// ReadInput prompts for one line and records it in the history.
func (r *lineReader) ReadInput(prompt string) (string, error) {
	input, err := r.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		r.line.AppendHistory(input)
	}
	return input, nil
}

// Close saves the history with owner-only permissions.
func (r *lineReader) Close() {
	if err := config.EnsureConfigDir(); err == nil {
		if f, err := os.OpenFile(r.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600); err == nil {
			r.line.WriteHistory(f)
			f.Close()
		}
	}
	r.line.Close()
}

// =============================================================================
// REPL STATE
// =============================================================================

// repl is one interactive chat.
type repl struct {
	app *App
	c   *chat.Context
	out io.Writer
	p   *printer

	commands *commands.Registry
	env      *commands.Env

	mu     sync.Mutex
	cancel context.CancelFunc
}

// setCancel records the cancel function of the running turn.
func (r *repl) setCancel(cancel context.CancelFunc) {
	r.mu.Lock()
	r.cancel = cancel
	r.mu.Unlock()
}

// interrupt stops the running turn. It reports whether one was running.
func (r *repl) interrupt() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cancel == nil {
		return false
	}
	r.cancel()
	r.cancel = nil
	return true
}

// =============================================================================
// CHAT COMMAND
// =============================================================================

var chatFlags turnFlags

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive line-based chat",
	Long: `Interactive chat with line editing and history.

Type a question to ask it. Ctrl+C stops a running answer and keeps what was
generated so far; Ctrl+C at the prompt or Ctrl+D exits. Type /help for the
slash commands.`,
	RunE: runChat,
}

func init() {
	chatFlags.register(chatCmd)
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	app, err := setup()
	if err != nil {
		return err
	}
	defer app.Close()

	c := app.NewChat("")
	if err := chatFlags.apply(cmd, c); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	r := &repl{
		app:      app,
		c:        c,
		out:      out,
		p:        newPrinter(out, true),
		commands: commands.NewRegistry(),
		env:      app.CommandEnv(c),
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		for range sigCh {
			if r.interrupt() {
				fmt.Fprintln(os.Stderr, "\n"+WarningStyle.Render("[Stopping]"))
			}
		}
	}()

	input := newLineReader(r.commands)
	defer input.Close()

	r.printWelcome()
	for {
		line, err := input.ReadInput(r.prompt())
		if err != nil {
			// Ctrl+C at the prompt, Ctrl+D or a closed terminal.
			fmt.Fprintln(out)
			return nil
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			cont, err := r.slash(line)
			if err != nil {
				fmt.Fprintf(os.Stderr, "%s %v\n", ErrorStyle.Render("[Error]"), err)
			}
			if !cont {
				return nil
			}
			continue
		}
		if strings.EqualFold(line, "exit") || strings.EqualFold(line, "quit") {
			return nil
		}
		if err := r.ask(line); err != nil {
			fmt.Fprintf(os.Stderr, "%s %v\n", ErrorStyle.Render("[Error]"), err)
		}
	}
}

// prompt shows the mode and policy badge.
func (r *repl) prompt() string {
	mode := r.c.Session().CurrentMode()
	badge := r.app.Policy.Badge()
	if badge != "" {
		badge += " "
	}
	return fmt.Sprintf("%s%s> ", badge, mode)
}

// ask runs one turn and then names the session if it is new.
func (r *repl) ask(question string) error {
	ctx, cancel := context.WithCancel(context.Background())
	r.setCancel(cancel)
	defer func() {
		r.interrupt()
	}()

	reply, err := r.c.Ask(ctx, question, r.p.handleEvent)
	if err != nil {
		return err
	}
	if reply.Single != nil {
		r.p.finish(*reply.Single)
	}
	if reply.Council != nil && reply.Council.Consensus == nil && reply.Council.Message != "" {
		fmt.Fprintln(r.out, WarningStyle.Render(reply.Council.Message))
	}
	warnSaveErr(reply)
	fmt.Fprintln(r.out)
	if reply.Cancelled() {
		return nil
	}

	titleCtx, titleCancel := context.WithTimeout(ctx, r.app.Config.Timeout())
	defer titleCancel()
	if title, ok := r.c.AutoTitle(titleCtx); ok {
		fmt.Fprintln(r.out, DimStyle.Render("Session: "+title))
	}
	return nil
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

// slash runs a slash command. It returns false to leave the REPL.
func (r *repl) slash(line string) (bool, error) {
	res, err := r.commands.Execute(context.Background(), r.env, line)
	if err != nil {
		return true, err
	}
	if res.Quit {
		return false, nil
	}
	switch {
	case res.Text == "":
	case res.Markdown:
		fmt.Fprintln(r.out, r.app.Renderer(GetTerminalWidth()).Markdown(res.Text))
	case strings.Contains(res.Text, "\n"):
		fmt.Fprintln(r.out, res.Text)
	default:
		fmt.Fprintln(r.out, SuccessStyle.Render("[OK]")+" "+res.Text)
	}
	return true, nil
}

// =============================================================================
// DISPLAY
// =============================================================================

func (r *repl) printWelcome() {
	opts := r.c.Options()
	fmt.Fprintln(r.out, TitleStyle.Render("colossus chat"))
	fmt.Fprintln(r.out, RenderSeparator(30))
	fmt.Fprintf(r.out, "%s %s\n", RenderLabel("Backend:"), r.app.BackendLabel())
	fmt.Fprintf(r.out, "%s %s\n", RenderLabel("Model:"), opts.Model)
	fmt.Fprintf(r.out, "%s %s\n", RenderLabel("Mode:"), r.c.Session().CurrentMode())
	fmt.Fprintf(r.out, "%s %s\n", RenderLabel("Thinking:"), onOff(opts.Thinking))
	fmt.Fprintf(r.out, "%s %s\n", RenderLabel("Research:"), onOff(opts.Research))
	fmt.Fprintln(r.out, DimStyle.Render("Type /help for commands, Ctrl+D to exit."))
	fmt.Fprintln(r.out)
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}
