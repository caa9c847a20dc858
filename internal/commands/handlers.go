// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/jeranaias/colossus/internal/chat"
	"github.com/jeranaias/colossus/internal/model"
	"github.com/jeranaias/colossus/internal/storage"
	"github.com/jeranaias/colossus/internal/telemetry"
	"github.com/jeranaias/colossus/internal/util"
)

// DefaultTimeout bounds commands that call the backend.
const DefaultTimeout = 60 * time.Second

// ErrNoPersonas is returned by /council without personas.
var ErrNoPersonas = errors.New("no personas configured")

// Env is what handlers act on. Store, Stats and Listers may be nil.
type Env struct {
	Chat    *chat.Context
	Store   storage.Store
	Stats   *telemetry.Stats
	Listers map[string]chat.ModelLister
	// Timeout bounds backend calls; DefaultTimeout when zero.
	Timeout time.Duration
}

func (e *Env) timeout() time.Duration {
	if e.Timeout > 0 {
		return e.Timeout
	}
	return DefaultTimeout
}

// =============================================================================
// BUILT-IN COMMANDS
// =============================================================================

func (r *Registry) registerBuiltins() {
	// Mode commands
	r.Register(&Command{
		Name:        "/council",
		Description: "Switch this session to council mode",
		Category:    "Mode",
		Handler:     handleCouncil,
	})
	r.Register(&Command{
		Name:        "/single",
		Description: "Switch this session to single mode",
		Category:    "Mode",
		Handler:     handleSingle,
	})
	r.Register(&Command{
		Name:        "/think",
		Description: "Toggle reasoning blocks",
		Category:    "Mode",
		Handler:     handleThink,
	})
	r.Register(&Command{
		Name:        "/research",
		Description: "Toggle web search before answering",
		Category:    "Mode",
		Handler:     handleResearch,
	})
	r.Register(&Command{
		Name:        "/persona",
		Description: "Answer as a persona (empty clears)",
		Usage:       "/persona [name]",
		Category:    "Mode",
		Handler:     handlePersona,
	})
	r.Register(&Command{
		Name:        "/model",
		Aliases:     []string{"/m"},
		Description: "Show the model or set it for this session",
		Usage:       "/model [id]",
		Category:    "Mode",
		Handler:     handleModel,
	})

	// Session commands
	r.Register(&Command{
		Name:        "/new",
		Aliases:     []string{"/n", "/clear"},
		Description: "Start a new session",
		Category:    "Session",
		Handler:     handleNew,
	})
	r.Register(&Command{
		Name:        "/sessions",
		Aliases:     []string{"/list"},
		Description: "List stored sessions",
		Usage:       "/sessions [search]",
		Category:    "Session",
		Handler:     handleSessions,
	})
	r.Register(&Command{
		Name:        "/resume",
		Aliases:     []string{"/load"},
		Description: "Resume a session by ID, prefix or number",
		Usage:       "/resume <ref>",
		MinArgs:     1,
		Category:    "Session",
		Handler:     handleResume,
	})
	r.Register(&Command{
		Name:        "/rename",
		Description: "Rename this session",
		Usage:       "/rename <name>",
		MinArgs:     1,
		Category:    "Session",
		Handler:     handleRename,
	})
	r.Register(&Command{
		Name:        "/summary",
		Description: "Summarize this session in three points",
		Category:    "Session",
		Handler:     handleSummary,
	})
	r.Register(&Command{
		Name:        "/export",
		Description: "Write this session as markdown",
		Usage:       "/export <file>",
		MinArgs:     1,
		Category:    "Session",
		Handler:     handleExport,
	})

	// Info commands
	r.Register(&Command{
		Name:        "/stats",
		Description: "Show token usage",
		Category:    "Info",
		Handler:     handleStats,
	})
	r.Register(&Command{
		Name:        "/models",
		Description: "List models of every backend",
		Category:    "Info",
		Handler:     handleModels,
	})
	r.Register(&Command{
		Name:        "/personas",
		Description: "List council personas",
		Category:    "Info",
		Handler:     handlePersonas,
	})
	r.Register(&Command{
		Name:        "/help",
		Aliases:     []string{"/h", "/?"},
		Description: "Show available commands",
		Category:    "Info",
		Handler: func(ctx context.Context, env *Env, args []string, raw string) (Result, error) {
			return Result{Text: r.Help()}, nil
		},
	})

	// Navigation commands
	r.Register(&Command{
		Name:        "/quit",
		Aliases:     []string{"/q", "/exit"},
		Description: "Exit colossus",
		Category:    "Navigation",
		Handler: func(ctx context.Context, env *Env, args []string, raw string) (Result, error) {
			return Result{Quit: true}, nil
		},
	})
}

// =============================================================================
// MODE HANDLERS
// =============================================================================

func handleCouncil(ctx context.Context, env *Env, args []string, raw string) (Result, error) {
	if len(env.Chat.Personas()) == 0 {
		return Result{}, ErrNoPersonas
	}
	if err := env.Chat.SetMode(model.ModeCouncil); err != nil {
		return Result{}, err
	}
	return Result{Text: fmt.Sprintf("Council mode (%d personas)", len(env.Chat.Personas()))}, nil
}

func handleSingle(ctx context.Context, env *Env, args []string, raw string) (Result, error) {
	if err := env.Chat.SetMode(model.ModeSingle); err != nil {
		return Result{}, err
	}
	return Result{Text: "Single mode"}, nil
}

func handleThink(ctx context.Context, env *Env, args []string, raw string) (Result, error) {
	on := !env.Chat.Options().Thinking
	env.Chat.SetThinking(on)
	return Result{Text: "Thinking " + onOff(on)}, nil
}

func handleResearch(ctx context.Context, env *Env, args []string, raw string) (Result, error) {
	on := !env.Chat.Options().Research
	if err := env.Chat.SetResearch(on); err != nil {
		return Result{}, err
	}
	return Result{Text: "Research " + onOff(on)}, nil
}

func handlePersona(ctx context.Context, env *Env, args []string, raw string) (Result, error) {
	if err := env.Chat.SelectPersona(raw); err != nil {
		return Result{}, err
	}
	if raw == "" {
		return Result{Text: "Persona cleared"}, nil
	}
	return Result{Text: "Persona: " + raw}, nil
}

func handleModel(ctx context.Context, env *Env, args []string, raw string) (Result, error) {
	if raw == "" {
		current := env.Chat.Session().ModelOverride()
		if current == "" {
			current = env.Chat.Options().Model + " (default)"
		}
		return Result{Text: "Model: " + current}, nil
	}
	if err := env.Chat.SetSessionModel(raw); err != nil {
		return Result{}, err
	}
	return Result{Text: "Model for this session: " + raw}, nil
}

// =============================================================================
// SESSION HANDLERS
// =============================================================================

func handleNew(ctx context.Context, env *Env, args []string, raw string) (Result, error) {
	s := env.Chat.NewSession(env.Chat.Session().CurrentMode())
	return Result{Text: "New " + string(s.CurrentMode()) + " session", SessionChanged: true}, nil
}

func handleSessions(ctx context.Context, env *Env, args []string, raw string) (Result, error) {
	if env.Store == nil {
		return Result{}, errors.New("no session store configured")
	}
	list, err := storage.Search(env.Store, raw)
	if err != nil {
		return Result{}, err
	}
	return Result{Text: strings.TrimRight(storage.FormatSessionList(list), "\n")}, nil
}

func handleResume(ctx context.Context, env *Env, args []string, raw string) (Result, error) {
	s, err := env.Chat.Resume(raw)
	if err != nil {
		return Result{}, err
	}
	return Result{
		Text:           fmt.Sprintf("Resumed %q (%d messages)", s.Title(), s.Len()),
		SessionChanged: true,
	}, nil
}

func handleRename(ctx context.Context, env *Env, args []string, raw string) (Result, error) {
	if err := env.Chat.Rename(raw); err != nil {
		return Result{}, err
	}
	return Result{Text: "Renamed to " + raw}, nil
}

func handleSummary(ctx context.Context, env *Env, args []string, raw string) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, env.timeout())
	defer cancel()
	summary, err := env.Chat.Summarize(ctx)
	if err != nil {
		return Result{}, err
	}
	return Result{Text: summary, Markdown: true}, nil
}

func handleExport(ctx context.Context, env *Env, args []string, raw string) (Result, error) {
	s := env.Chat.Session()
	if s.Len() == 0 {
		return Result{}, chat.ErrEmptySession
	}
	path := filepath.Clean(raw)
	if err := util.AtomicWriteFile(path, []byte(storage.ExportMarkdown(s)), 0o600); err != nil {
		return Result{}, err
	}
	return Result{Text: "Exported to " + path}, nil
}

// =============================================================================
// INFO HANDLERS
// =============================================================================

func handleStats(ctx context.Context, env *Env, args []string, raw string) (Result, error) {
	if env.Stats == nil {
		return Result{}, errors.New("usage tracking is disabled")
	}
	return Result{Text: env.Stats.Snapshot().Format()}, nil
}

func handleModels(ctx context.Context, env *Env, args []string, raw string) (Result, error) {
	listers := env.Listers
	if len(listers) == 0 {
		listers = map[string]chat.ModelLister{"backend": env.Chat}
	}
	ctx, cancel := context.WithTimeout(ctx, env.timeout())
	defer cancel()
	return Result{Text: FormatModelGroups(chat.ListAllModels(ctx, listers))}, nil
}

func handlePersonas(ctx context.Context, env *Env, args []string, raw string) (Result, error) {
	personas := env.Chat.Personas()
	if len(personas) == 0 {
		return Result{Text: "No personas configured."}, nil
	}
	var sb strings.Builder
	for i, p := range personas {
		fmt.Fprintf(&sb, "%d. %s", i+1, p.Name)
		if p.ModelID != "" {
			sb.WriteString(" (" + p.ModelID + ")")
		}
		sb.WriteString("\n   " + util.Snippet(util.OneLine(p.Prompt), 70) + "\n")
	}
	return Result{Text: strings.TrimRight(sb.String(), "\n")}, nil
}

// FormatModelGroups lists models per backend as plain text.
func FormatModelGroups(groups []chat.ModelGroup) string {
	if len(groups) == 0 {
		return "No backends enabled."
	}
	var sb strings.Builder
	for _, g := range groups {
		sb.WriteString(g.Backend + ":\n")
		switch {
		case g.Err != nil:
			sb.WriteString("  unreachable: " + g.Err.Error() + "\n")
		case len(g.Models) == 0:
			sb.WriteString("  no models\n")
		default:
			for _, m := range g.Models {
				sb.WriteString("  " + m + "\n")
			}
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}
