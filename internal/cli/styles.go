// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/colossus/internal/render"
)

func init() {
	lipgloss.SetColorProfile(GetColorProfile())
}

// =============================================================================
// SHARED STYLES
// =============================================================================

var (
	// TitleStyle is used for command titles.
	TitleStyle = lipgloss.NewStyle().Bold(true).Foreground(render.Cyan)

	// LabelStyle is used for field labels.
	LabelStyle = lipgloss.NewStyle().Foreground(render.TextMuted).Width(16)

	// ValueStyle is used for plain values.
	ValueStyle = lipgloss.NewStyle()

	// SuccessStyle marks completed operations.
	SuccessStyle = lipgloss.NewStyle().Foreground(render.Emerald).Bold(true)

	// ErrorStyle marks failures.
	ErrorStyle = lipgloss.NewStyle().Foreground(render.Rose).Bold(true)

	// WarningStyle marks warnings and cancellations.
	WarningStyle = lipgloss.NewStyle().Foreground(render.Amber)

	// DimStyle de-emphasizes secondary text.
	DimStyle = lipgloss.NewStyle().Foreground(render.TextMuted)

	// ThinkingStyle is streamed reasoning text.
	ThinkingStyle = lipgloss.NewStyle().Foreground(render.TextDim).Italic(true)
)

// RenderSeparator renders a horizontal rule.
func RenderSeparator(width int) string {
	if width <= 0 {
		width = 40
	}
	return DimStyle.Render(strings.Repeat("─", width))
}

// RenderLabel renders a fixed-width field label.
func RenderLabel(label string) string {
	return LabelStyle.Render(label)
}
