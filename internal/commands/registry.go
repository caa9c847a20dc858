// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package commands

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// =============================================================================
// COMMAND DEFINITION
// =============================================================================

// Handler executes a command. args are the quoted-aware tokens, raw the
// unparsed argument text.
type Handler func(ctx context.Context, env *Env, args []string, raw string) (Result, error)

// Command represents a slash command that can be executed.
type Command struct {
	// Name is the primary command name (e.g., "/help")
	Name string

	// Aliases are alternative names (e.g., "/h", "/?")
	Aliases []string

	// Description is shown in help and completion
	Description string

	// Usage shows argument syntax (e.g., "/model <name>")
	Usage string

	// MinArgs is the number of required arguments.
	MinArgs int

	Handler Handler

	// Hidden commands don't appear in help
	Hidden bool

	// Category for grouping in help display
	Category string
}

// Result tells the front end what a command did.
type Result struct {
	// Text is shown to the user.
	Text string
	// Markdown marks Text for the markdown renderer.
	Markdown bool
	// Quit asks the front end to exit.
	Quit bool
	// SessionChanged means the transcript must be redrawn from the session.
	SessionChanged bool
}

// UsageError is returned when required arguments are missing.
type UsageError struct {
	Command string
	Usage   string
}

func (e *UsageError) Error() string {
	return fmt.Sprintf("usage: %s", e.Usage)
}

// =============================================================================
// COMMAND REGISTRY
// =============================================================================

// Registry holds all registered commands.
type Registry struct {
	commands map[string]*Command
	aliases  map[string]*Command
}

// NewRegistry creates a new command registry with all built-in commands.
func NewRegistry() *Registry {
	r := &Registry{
		commands: make(map[string]*Command),
		aliases:  make(map[string]*Command),
	}
	r.registerBuiltins()
	return r
}

// Register adds a command to the registry.
func (r *Registry) Register(cmd *Command) {
	r.commands[cmd.Name] = cmd
	for _, alias := range cmd.Aliases {
		r.aliases[alias] = cmd
	}
}

// Get retrieves a command by name or alias.
func (r *Registry) Get(name string) *Command {
	if cmd, ok := r.commands[name]; ok {
		return cmd
	}
	if cmd, ok := r.aliases[name]; ok {
		return cmd
	}
	return nil
}

// All returns the visible commands sorted by category, then name.
func (r *Registry) All() []*Command {
	cmds := make([]*Command, 0, len(r.commands))
	for _, cmd := range r.commands {
		if !cmd.Hidden {
			cmds = append(cmds, cmd)
		}
	}
	sort.Slice(cmds, func(i, j int) bool {
		if cmds[i].Category != cmds[j].Category {
			return categoryRank(cmds[i].Category) < categoryRank(cmds[j].Category)
		}
		return cmds[i].Name < cmds[j].Name
	})
	return cmds
}

var categoryOrder = []string{"Mode", "Session", "Info", "Navigation"}

func categoryRank(c string) int {
	for i, name := range categoryOrder {
		if c == name {
			return i
		}
	}
	return len(categoryOrder)
}

// Complete returns the command names (not aliases) starting with prefix.
func (r *Registry) Complete(prefix string) []string {
	prefix = strings.ToLower(prefix)
	var out []string
	for name, cmd := range r.commands {
		if !cmd.Hidden && strings.HasPrefix(name, prefix) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Execute parses and runs input. It returns an error for unknown commands
// and missing arguments.
func (r *Registry) Execute(ctx context.Context, env *Env, input string) (Result, error) {
	p := r.Parse(input)
	if !p.IsCommand {
		return Result{}, fmt.Errorf("not a command: %q", input)
	}
	if p.Command == nil {
		return Result{}, fmt.Errorf("unknown command: %s (type /help for commands)", p.CommandName)
	}
	if len(p.Args) < p.Command.MinArgs {
		return Result{}, &UsageError{Command: p.Command.Name, Usage: p.Command.Usage}
	}
	return p.Command.Handler(ctx, env, p.Args, p.RawArgs)
}

// Help renders the command list as plain aligned text.
func (r *Registry) Help() string {
	var sb strings.Builder
	category := ""
	for _, cmd := range r.All() {
		if cmd.Category != category {
			if category != "" {
				sb.WriteString("\n")
			}
			category = cmd.Category
			sb.WriteString(category + ":\n")
		}
		usage := cmd.Usage
		if usage == "" {
			usage = cmd.Name
		}
		fmt.Fprintf(&sb, "  %-20s %s\n", usage, cmd.Description)
	}
	return strings.TrimRight(sb.String(), "\n")
}
