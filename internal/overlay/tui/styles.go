// ============================================================================
// meinDENKWERK Overlay - Live Interview Assistant
// ============================================================================
//
// Package:     tui
// Description: Styles for the terminal live view
// Author:      Mike Stoffels with Claude
// Created:     2026-09-18
// License:     MIT
// ============================================================================

package tui

import (
	"github.com/charmbracelet/lipgloss"
)

// Color Palette - shared with the other terminal views
var (
	ColorPrimary   = lipgloss.Color("#8B5CF6") // Violet
	ColorSecondary = lipgloss.Color("#06B6D4") // Cyan
	ColorSuccess   = lipgloss.Color("#10B981") // Emerald
	ColorWarning   = lipgloss.Color("#F59E0B") // Amber
	ColorError     = lipgloss.Color("#EF4444") // Red
	ColorMuted     = lipgloss.Color("#6B7280") // Gray

	ColorText      = lipgloss.Color("#F8FAFC") // Slate 50
	ColorTextMuted = lipgloss.Color("#94A3B8") // Slate 400
	ColorTextDim   = lipgloss.Color("#64748B") // Slate 500
	ColorBorder    = lipgloss.Color("#334155") // Slate 700
)

var (
	LogoStyle = lipgloss.NewStyle().
			Foreground(ColorPrimary).
			Bold(true)

	HeaderStyle = lipgloss.NewStyle().
			Foreground(ColorText).
			Bold(true)

	MutedStyle = lipgloss.NewStyle().
			Foreground(ColorTextMuted)

	DimStyle = lipgloss.NewStyle().
			Foreground(ColorTextDim)

	PartialStyle = lipgloss.NewStyle().
			Foreground(ColorTextMuted).
			Italic(true)

	QuestionStyle = lipgloss.NewStyle().
			Foreground(ColorSecondary).
			Bold(true)

	AnswerStyle = lipgloss.NewStyle().
			Foreground(ColorText)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ColorError)

	PanelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder).
			Padding(0, 1)

	HelpStyle = lipgloss.NewStyle().
			Foreground(ColorTextDim)

	MeterFullStyle = lipgloss.NewStyle().
			Foreground(ColorSuccess)

	MeterEmptyStyle = lipgloss.NewStyle().
			Foreground(ColorBorder)
)

// StateStyle returns the badge style for a pipeline state name
func StateStyle(state string) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	switch state {
	case "listening":
		return base.Foreground(ColorSuccess)
	case "starting", "stopping":
		return base.Foreground(ColorWarning)
	case "error":
		return base.Foreground(ColorError)
	default:
		return base.Foreground(ColorMuted)
	}
}

// StatusStyle returns the style for a QnA status
func StatusStyle(status string) lipgloss.Style {
	switch status {
	case "answered":
		return lipgloss.NewStyle().Foreground(ColorSuccess)
	case "failed":
		return lipgloss.NewStyle().Foreground(ColorError)
	default:
		return lipgloss.NewStyle().Foreground(ColorWarning)
	}
}
