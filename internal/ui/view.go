// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/colossus/internal/model"
	"github.com/jeranaias/colossus/internal/render"
	"github.com/jeranaias/colossus/internal/stream"
	"github.com/jeranaias/colossus/internal/util"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(render.Cyan)
	badgeStyle  = lipgloss.NewStyle().Bold(true).Foreground(render.Amber)
	statusStyle = lipgloss.NewStyle().Foreground(render.TextMuted)
	noticeStyle = lipgloss.NewStyle().Foreground(render.TextDim)
)

// View renders the screen.
func (m Model) View() string {
	if !m.ready {
		return "Starting..."
	}
	return lipgloss.JoinVertical(lipgloss.Left,
		m.headerView(),
		m.viewport.View(),
		m.input.View(),
		m.statusView(),
		m.helpView(),
	)
}

// transcriptHeight is what remains after the fixed rows.
func (m Model) transcriptHeight() int {
	h := m.height - 3 - lipgloss.Height(m.helpView())
	if h < 3 {
		h = 3
	}
	return h
}

func (m Model) headerView() string {
	title := m.chat.Session().Title()
	if m.chat.Session().IsUntitled() {
		title = model.DefaultSessionName
	}
	line := headerStyle.Render("colossus") + " " + noticeStyle.Render(title)
	if m.cfg.Badge != "" {
		line = badgeStyle.Render(m.cfg.Badge) + " " + line
	}
	return fitWidth(line, m.width)
}

func (m Model) statusView() string {
	opts := m.chat.Options()
	s := m.chat.Session()
	modelID := s.ModelOverride()
	if modelID == "" {
		modelID = opts.Model
	}
	parts := []string{
		string(s.CurrentMode()),
		modelID,
		"think " + onOff(opts.Thinking),
		"research " + onOff(opts.Research),
	}
	if m.cfg.Backend != "" {
		parts = append(parts, m.cfg.Backend)
	}
	switch m.state {
	case StateStreaming:
		live := m.spinner.View() + " " + time.Since(m.turn.started).Truncate(100*time.Millisecond).String()
		if b := m.turn.last(); b != nil && !b.done {
			live += " " + render.LiveMeta(b.proj.Answer, b.deltas)
		}
		parts = append([]string{live}, parts...)
	case StateBusy:
		parts = append([]string{m.spinner.View()}, parts...)
	}
	return fitWidth(statusStyle.Render(strings.Join(parts, " | ")), m.width)
}

func (m Model) helpView() string {
	h := m.help
	h.ShowAll = m.showHelp
	return h.View(m.keyMap)
}

// =============================================================================
// TRANSCRIPT
// =============================================================================

// renderTranscript renders the stored session followed by the live turn.
func (m *Model) renderTranscript() string {
	var parts []string
	history := m.chat.Session().History()
	limit := len(history)
	if m.turn != nil && m.turn.base < limit {
		limit = m.turn.base
	}

	for i, msg := range history[:limit] {
		parts = append(parts, m.renderer.Message(msg, m.panelFor(msg)))
		for _, b := range m.councilBlocks[i] {
			parts = append(parts, m.renderBlock(b))
		}
	}

	if t := m.turn; t != nil {
		parts = append(parts, render.UserLabel.Render("You")+"\n"+t.question)
		if len(t.sources) > 0 {
			parts = append(parts, m.renderSources(t))
		}
		for _, b := range t.blocks {
			parts = append(parts, m.renderBlock(b))
		}
		if t.status != "" {
			parts = append(parts, render.Status.Render(t.status))
		}
	}

	if m.notice != "" {
		parts = append(parts, noticeStyle.Render(m.notice))
	}
	if m.errText != "" {
		parts = append(parts, render.Error.Render("Error: "+m.errText))
	}
	if len(parts) == 0 {
		return noticeStyle.Render(m.welcome())
	}
	return strings.Join(parts, "\n\n")
}

func (m *Model) renderBlock(b *block) string {
	label := render.AssistantLabel.Render(b.label)
	switch {
	case b.consensus:
		label = render.ConsensusLabel.Render(b.label)
	case b.color != "":
		label = render.PersonaLabel(b.label, b.color)
	}

	var body, meta string
	if b.done && b.result != nil {
		res := b.result
		body = m.renderer.Turn(res.Projection, b.panel, res.Annotation)
		if res.Outcome == stream.Failed && res.Text == stream.Offline {
			body = render.Error.Render(stream.Offline)
		}
		if res.Outcome == stream.Completed {
			meta = render.FinalMeta(res.Projection.Answer, res.Usage.CompletionTokens, res.Usage.Elapsed)
		}
	} else {
		body = m.renderer.Turn(b.proj, b.panel, "")
	}

	out := label + "\n" + body
	if meta != "" {
		out += "\n" + meta
	}
	return out
}

func (m *Model) renderSources(t *turn) string {
	var sb strings.Builder
	sb.WriteString(render.Status.Render(fmt.Sprintf("Found %d sources:", len(t.sources))))
	for i, r := range t.sources {
		sb.WriteString("\n" + render.Meta.Render(fmt.Sprintf("[%d] ", i+1)) + util.TruncateWidth(r.Title, m.width-6))
	}
	return sb.String()
}

func (m *Model) welcome() string {
	return "Type a question and press Enter.\n" +
		"Ctrl+R switches to council mode, /help lists the commands."
}

// fitWidth cuts styled text to one terminal row.
func fitWidth(s string, width int) string {
	if width <= 0 {
		return s
	}
	return lipgloss.NewStyle().MaxWidth(width).Render(s)
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}
