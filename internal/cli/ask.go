// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/colossus/internal/chat"
	"github.com/jeranaias/colossus/internal/model"
	"github.com/jeranaias/colossus/internal/render"
)

// turnFlags are the per-turn toggles shared by ask and chat.
type turnFlags struct {
	council  bool
	thinking bool
	research bool
	persona  string
	session  string
}

func (f *turnFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVarP(&f.council, "council", "c", false, "Ask every persona and synthesize a consensus")
	cmd.Flags().BoolVarP(&f.thinking, "think", "t", false, "Ask for a <think> reasoning block")
	cmd.Flags().BoolVarP(&f.research, "research", "r", false, "Search the web before answering")
	cmd.Flags().StringVarP(&f.persona, "persona", "p", "", "Answer as this persona in single mode")
	cmd.Flags().StringVarP(&f.session, "session", "s", "", "Continue a stored session (ID, prefix or list number)")
}

// apply configures c from the flags. Flags only ever switch features on;
// the config supplies the defaults.
func (f *turnFlags) apply(cmd *cobra.Command, c *chat.Context) error {
	if f.session != "" {
		if _, err := c.Resume(f.session); err != nil {
			return err
		}
	}
	if f.council {
		if err := c.SetMode(model.ModeCouncil); err != nil {
			return err
		}
	}
	if f.thinking {
		c.SetThinking(true)
	}
	if cmd.Flags().Changed("research") {
		if err := c.SetResearch(f.research); err != nil {
			return err
		}
	}
	if f.persona != "" {
		if err := c.SelectPersona(f.persona); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// ASK COMMAND
// =============================================================================

var askFlags struct {
	turnFlags
	markdown bool
	quiet    bool
}

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask one question and stream the answer",
	Long: `Ask one question and stream the answer to stdout.

The question is read from the arguments, or from stdin when none are given.
The exchange is saved as a session like any other.`,
	Example: `  colossus ask "Why is the sky blue?"
  colossus ask --council "Tabs or spaces?"
  git diff | colossus ask --think`,
	RunE: runAsk,
}

func init() {
	askFlags.register(askCmd)
	askCmd.Flags().BoolVar(&askFlags.markdown, "markdown", false, "Wait for the full answer and render it as markdown")
	askCmd.Flags().BoolVarP(&askFlags.quiet, "quiet", "q", false, "Print only the answer")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	question := strings.TrimSpace(strings.Join(args, " "))
	if question == "" && !IsTTY() {
		data, err := io.ReadAll(bufio.NewReader(os.Stdin))
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		question = strings.TrimSpace(string(data))
	}
	if question == "" {
		return chat.ErrEmptyQuestion
	}

	app, err := setup()
	if err != nil {
		return err
	}
	defer app.Close()

	c := app.NewChat("")
	if err := askFlags.apply(cmd, c); err != nil {
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	out := cmd.OutOrStdout()
	reply, err := askOnce(ctx, app, c, question, out)
	if err != nil {
		return err
	}
	if reply.Cancelled() {
		fmt.Fprintln(cmd.ErrOrStderr(), WarningStyle.Render("[Cancelled]"))
		return nil
	}

	titleCtx, cancel := context.WithTimeout(context.Background(), app.Config.Timeout())
	defer cancel()
	if title, ok := c.AutoTitle(titleCtx); ok && !askFlags.quiet {
		fmt.Fprintln(cmd.ErrOrStderr(), DimStyle.Render("Saved as: "+title))
	}
	return nil
}

// askOnce streams one answer, or renders it at the end with --markdown.
func askOnce(ctx context.Context, app *App, c *chat.Context, question string, out io.Writer) (chat.Reply, error) {
	if askFlags.markdown {
		reply, err := c.Ask(ctx, question, nil)
		if err != nil {
			return reply, err
		}
		r := app.Renderer(GetTerminalWidth())
		fmt.Fprintln(out, renderReply(r, reply))
		warnSaveErr(reply)
		return reply, nil
	}

	p := newPrinter(out, !askFlags.quiet)
	onEvent := p.handleEvent
	if askFlags.quiet {
		onEvent = func(ev chat.Event) {
			if ev.Kind == chat.EventStream || ev.Kind == chat.EventCouncil {
				p.handleEvent(ev)
			}
		}
	}
	reply, err := c.Ask(ctx, question, onEvent)
	if err != nil {
		return reply, err
	}
	if reply.Single != nil {
		p.finish(*reply.Single)
	}
	if reply.Council != nil && reply.Council.Consensus == nil && reply.Council.Message != "" {
		fmt.Fprintln(out, WarningStyle.Render(reply.Council.Message))
	}
	warnSaveErr(reply)
	return reply, nil
}

// warnSaveErr tells the user the answer was not written to disk.
func warnSaveErr(reply chat.Reply) {
	if reply.SaveErr != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", WarningStyle.Render("[Not saved]"), reply.SaveErr)
	}
}

// renderReply renders a finished reply as markdown with its thinking panel.
func renderReply(r *render.Renderer, reply chat.Reply) string {
	if reply.Single != nil {
		res := reply.Single
		return r.Turn(res.Projection, r.NewPanel(), res.Annotation)
	}
	out := reply.Council
	if out == nil {
		return ""
	}
	var sb strings.Builder
	for _, p := range out.Personas {
		if !p.Ran {
			continue
		}
		sb.WriteString(render.PersonaLabel(p.Persona.Name, p.Persona.Color) + "\n")
		sb.WriteString(r.Turn(p.Result.Projection, r.NewPanel(), p.Result.Annotation) + "\n\n")
	}
	if out.Consensus != nil {
		sb.WriteString(render.ConsensusLabel.Render("Consensus") + "\n")
		sb.WriteString(r.Turn(out.Consensus.Projection, r.NewPanel(), out.Consensus.Annotation))
	} else if out.Message != "" {
		sb.WriteString(WarningStyle.Render(out.Message))
	}
	return sb.String()
}

// renderMessage renders a stored message for `sessions show`.
func renderMessage(r *render.Renderer, m model.Message) string {
	return r.Message(m, r.NewPanel())
}
