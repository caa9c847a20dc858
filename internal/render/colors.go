// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package render

import "github.com/charmbracelet/lipgloss"

// =============================================================================
// PALETTE
// =============================================================================

// All colors adapt to light and dark terminals.
var (
	Purple    = lipgloss.AdaptiveColor{Light: "#7C3AED", Dark: "#A78BFA"}
	Cyan      = lipgloss.AdaptiveColor{Light: "#0891B2", Dark: "#22D3EE"}
	Emerald   = lipgloss.AdaptiveColor{Light: "#059669", Dark: "#34D399"}
	Rose      = lipgloss.AdaptiveColor{Light: "#E11D48", Dark: "#FB7185"}
	Amber     = lipgloss.AdaptiveColor{Light: "#D97706", Dark: "#FBBF24"}
	Overlay   = lipgloss.AdaptiveColor{Light: "#E5E5E5", Dark: "#313244"}
	TextMuted = lipgloss.AdaptiveColor{Light: "#9CA3AF", Dark: "#6C7086"}
	TextDim   = lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#A6ADC8"}
)

// =============================================================================
// STYLES
// =============================================================================

var (
	// UserLabel marks user messages.
	UserLabel = lipgloss.NewStyle().Foreground(Cyan).Bold(true)
	// AssistantLabel marks single-mode answers.
	AssistantLabel = lipgloss.NewStyle().Foreground(Purple).Bold(true)
	// ConsensusLabel marks the chair's answer.
	ConsensusLabel = lipgloss.NewStyle().Foreground(Emerald).Bold(true)
	// Meta is the stats line under an answer.
	Meta = lipgloss.NewStyle().Foreground(TextMuted)
	// Status is a transient progress line.
	Status = lipgloss.NewStyle().Foreground(TextDim).Italic(true)
	// Annotation styles [STOPPED] and [CONNECTION LOST].
	Annotation = lipgloss.NewStyle().Foreground(Rose).Bold(true)
	// Error styles failure lines.
	Error = lipgloss.NewStyle().Foreground(Rose)
	// Warning styles policy notices.
	Warning = lipgloss.NewStyle().Foreground(Amber)

	thinkingBorder = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(Overlay).
			Foreground(TextDim).
			Padding(0, 1)
	thinkingHeader = lipgloss.NewStyle().Foreground(TextMuted).Bold(true)
)

// PersonaLabel styles a persona name with its configured color. An empty
// or invalid color falls back to purple.
func PersonaLabel(name, color string) string {
	style := lipgloss.NewStyle().Bold(true).Foreground(Purple)
	if color != "" {
		style = style.Foreground(lipgloss.Color(color))
	}
	return style.Render(name)
}
