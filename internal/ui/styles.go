// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// styles.go - lipgloss styles and the terminal color profile.
package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// =============================================================================
// THEME
// =============================================================================

// Theme holds the styled components for the client.
type Theme struct {
	IsDark       bool
	ColorProfile termenv.Profile

	// Block styles, keyed by role.
	UserBlock     lipgloss.Style
	AssistantText lipgloss.Style
	ThinkingBlock lipgloss.Style
	ToolUseBlock  lipgloss.Style
	ToolResult    lipgloss.Style
	ErrorBlock    lipgloss.Style

	BlockLabel lipgloss.Style

	// Chrome.
	StatusBar    lipgloss.Style
	StatusActive lipgloss.Style
	InputPrompt  lipgloss.Style
	SearchMatch  lipgloss.Style
	Faint        lipgloss.Style
}

// NewTheme builds a theme for the terminal's detected color profile.
func NewTheme(dark bool) *Theme {
	t := &Theme{
		IsDark:       dark,
		ColorProfile: termenv.ColorProfile(),
	}

	label := lipgloss.NewStyle().Bold(true)
	block := lipgloss.NewStyle().PaddingLeft(1).BorderLeft(true).BorderStyle(lipgloss.NormalBorder())

	t.UserBlock = block.BorderForeground(lipgloss.Color("12"))
	t.AssistantText = block.BorderForeground(lipgloss.Color("10"))
	t.ThinkingBlock = block.BorderForeground(lipgloss.Color("8")).Faint(true)
	t.ToolUseBlock = block.BorderForeground(lipgloss.Color("11"))
	t.ToolResult = block.BorderForeground(lipgloss.Color("13"))
	t.ErrorBlock = block.BorderForeground(lipgloss.Color("9"))

	t.BlockLabel = label.Foreground(lipgloss.Color("6"))
	t.StatusBar = lipgloss.NewStyle().Faint(true)
	t.StatusActive = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	t.InputPrompt = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	t.SearchMatch = lipgloss.NewStyle().Reverse(true)
	t.Faint = lipgloss.NewStyle().Faint(true)
	return t
}

// StyleFor returns the block style for a block type name.
func (t *Theme) StyleFor(blockType string) lipgloss.Style {
	switch blockType {
	case "user":
		return t.UserBlock
	case "thinking":
		return t.ThinkingBlock
	case "tool_use":
		return t.ToolUseBlock
	case "tool_result":
		return t.ToolResult
	case "error":
		return t.ErrorBlock
	default:
		return t.AssistantText
	}
}
