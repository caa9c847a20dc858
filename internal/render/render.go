// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/muesli/termenv"

	"github.com/jeranaias/colossus/internal/model"
	"github.com/jeranaias/colossus/internal/think"
	"github.com/jeranaias/colossus/internal/util"
)

// DefaultWidth is used when the terminal width is unknown.
const DefaultWidth = 80

// Options configures a Renderer.
type Options struct {
	// Markdown enables glamour rendering of answers.
	Markdown bool
	// Width is the word-wrap width. Zero means DefaultWidth.
	Width int
	// Style is a glamour style name or "auto".
	Style string
	// CollapseThinking collapses the panel when reasoning ends.
	CollapseThinking bool
}

// Renderer renders turns. It is safe for concurrent use.
type Renderer struct {
	opts Options

	mu sync.Mutex
	md *glamour.TermRenderer
}

// New creates a Renderer. If glamour cannot be initialized, markdown is
// rendered as plain text with highlighted code.
func New(opts Options) *Renderer {
	if opts.Width <= 0 {
		opts.Width = DefaultWidth
	}
	r := &Renderer{opts: opts}
	if opts.Markdown {
		r.md = newGlamour(opts)
	}
	return r
}

func newGlamour(opts Options) *glamour.TermRenderer {
	style := strings.ToLower(opts.Style)
	if termenv.EnvNoColor() {
		style = "notty"
	}
	styleOpt := glamour.WithAutoStyle()
	if style != "" && style != "auto" {
		styleOpt = glamour.WithStandardStyle(style)
	}
	md, err := glamour.NewTermRenderer(
		styleOpt,
		glamour.WithWordWrap(opts.Width),
		glamour.WithEmoji(),
	)
	if err != nil {
		return nil
	}
	return md
}

// Width returns the wrap width.
func (r *Renderer) Width() int {
	return r.opts.Width
}

// Markdown renders an answer. It falls back to Plain when markdown is off
// or glamour fails.
func (r *Renderer) Markdown(text string) string {
	if r.md == nil {
		return Plain(text)
	}
	r.mu.Lock()
	out, err := r.md.Render(text)
	r.mu.Unlock()
	if err != nil {
		return Plain(text)
	}
	return strings.Trim(out, "\n")
}

// =============================================================================
// TURNS
// =============================================================================

// Turn renders a projection: the thinking panel, when there is reasoning,
// followed by the answer and the annotation.
func (r *Renderer) Turn(p think.Projection, panel *Panel, annotation string) string {
	var sb strings.Builder
	if p.SawTag {
		collapsed := false
		if panel != nil {
			collapsed = panel.Observe(p)
		}
		sb.WriteString(r.Thinking(p, collapsed))
		sb.WriteString("\n")
	}

	answer := strings.TrimSpace(p.Answer)
	if answer != "" {
		sb.WriteString(r.Markdown(answer))
	}
	if annotation != "" {
		if answer != "" {
			sb.WriteString(" ")
		}
		sb.WriteString(Annotation.Render(annotation))
	}
	return sb.String()
}

// Message renders a stored message under its speaker label. Reasoning is
// split out of the raw content on every call.
func (r *Renderer) Message(m model.Message, panel *Panel) string {
	if m.Role == model.RoleUser {
		return UserLabel.Render("You") + "\n" + m.Content
	}
	label := AssistantLabel.Render("Assistant")
	switch {
	case m.IsConsensus():
		label = ConsensusLabel.Render("Consensus")
	case m.Persona != "":
		label = AssistantLabel.Render(m.Persona)
	}
	if m.Model != "" {
		label += " " + Meta.Render("("+m.Model+")")
	}
	return label + "\n" + r.Turn(think.Split(m.Content), panel, m.Status.Annotation())
}

// Thinking renders the reasoning panel. A collapsed panel shows only its
// header.
func (r *Renderer) Thinking(p think.Projection, collapsed bool) string {
	body := strings.TrimSpace(p.Thinking)
	lines := 0
	if body != "" {
		lines = strings.Count(body, "\n") + 1
	}

	var header string
	switch {
	case p.Phase == think.InsideThinking:
		header = "Thinking..."
	case collapsed:
		header = fmt.Sprintf("> Thought process (%d lines)", lines)
	default:
		header = "v Thought process"
	}
	header = thinkingHeader.Render(header)

	width := r.opts.Width - 4
	if width < 20 {
		width = 20
	}
	if collapsed || body == "" {
		return thinkingBorder.Width(width).Render(header)
	}
	return thinkingBorder.Width(width).Render(header + "\n" + body)
}

// =============================================================================
// PANEL STATE
// =============================================================================

// Panel is the expand/collapse state of one turn's thinking panel. The
// first closing of the reasoning segment collapses it (if enabled) unless
// the user already toggled it; after that only Toggle changes it.
type Panel struct {
	collapsed    bool
	autoCollapse bool
	autoDone     bool
	userToggled  bool
}

// NewPanel creates an expanded panel.
func NewPanel(autoCollapse bool) *Panel {
	return &Panel{autoCollapse: autoCollapse}
}

// Observe applies a projection and returns the collapsed state.
func (p *Panel) Observe(proj think.Projection) bool {
	if proj.AutoCollapse && !p.autoDone {
		p.autoDone = true
		if p.autoCollapse && !p.userToggled {
			p.collapsed = true
		}
	}
	return p.collapsed
}

// NewPanel creates a panel that follows the renderer's collapse setting.
func (r *Renderer) NewPanel() *Panel {
	return NewPanel(r.opts.CollapseThinking)
}

// Toggle flips the panel.
func (p *Panel) Toggle() {
	p.userToggled = true
	p.collapsed = !p.collapsed
}

// Collapsed returns the current state.
func (p *Panel) Collapsed() bool {
	return p.collapsed
}

// =============================================================================
// META LINES
// =============================================================================

// LiveMeta is the counter shown while a turn streams.
func LiveMeta(text string, deltas int) string {
	return Meta.Render(fmt.Sprintf("%d chars | ~%d tokens", len([]rune(text)), deltas))
}

// FinalMeta is the stats line of a finished turn.
func FinalMeta(text string, completionTokens int, elapsed time.Duration) string {
	parts := []string{fmt.Sprintf("%d chars", len([]rune(text)))}
	if completionTokens > 0 {
		parts = append(parts, fmt.Sprintf("%d tokens", completionTokens))
		if secs := elapsed.Seconds(); secs > 0 {
			parts = append(parts, fmt.Sprintf("%.1f t/s", float64(completionTokens)/secs))
		}
	}
	return Meta.Render(strings.Join(parts, " | "))
}

// Heading renders a one-line label truncated to the renderer width.
func (r *Renderer) Heading(label string) string {
	return util.TruncateWidth(label, r.opts.Width)
}
