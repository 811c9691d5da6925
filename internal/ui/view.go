// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/convo-tui/internal/model"
	"github.com/jeranaias/convo-tui/internal/util"
)

// =============================================================================
// VIEW
// =============================================================================

// View implements tea.Model.
func (m *Model) View() string {
	if m.width == 0 {
		return "starting..."
	}

	var sb strings.Builder
	sb.WriteString(m.renderTranscript())
	sb.WriteString("\n")
	sb.WriteString(m.renderStatusBar())
	sb.WriteString("\n")
	if m.focus == focusSearch {
		sb.WriteString(m.renderSearchRow())
	} else {
		sb.WriteString(m.theme.InputPrompt.Render("> ") + m.input.View())
	}
	return sb.String()
}

// renderTranscript renders only the blocks the window says are visible,
// then trims the joined text to the viewport rows.
func (m *Model) renderTranscript() string {
	blocks := m.mirror.Blocks()
	viewHeight := m.transcriptHeight()

	if len(blocks) == 0 {
		empty := m.theme.Faint.Render("No messages yet.")
		return empty + strings.Repeat("\n", viewHeight-1)
	}

	r := m.window.Visible(m.scroll, viewHeight)

	var parts []string
	for i := r.Start; i < r.End && i < len(blocks); i++ {
		parts = append(parts, m.renderBlock(blocks[i]))
	}
	joined := strings.Join(parts, "\n")

	// The window reports where the first rendered block starts; drop the
	// rows scrolled past it and pad or cut to the viewport height.
	lines := strings.Split(joined, "\n")
	skip := m.scroll - r.Top
	if skip < 0 {
		skip = 0
	}
	if skip > len(lines) {
		skip = len(lines)
	}
	lines = lines[skip:]
	if len(lines) > viewHeight {
		lines = lines[:viewHeight]
	}
	for len(lines) < viewHeight {
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}

// renderBlock renders one block with its role style. Output is padded to
// the block's estimated height so the window's row math stays aligned.
func (m *Model) renderBlock(b *model.Block) string {
	label := b.Type.DisplayName()
	if b.Metadata.ToolName != "" {
		label += " · " + b.Metadata.ToolName
	}
	if b.IsStreaming {
		label += " " + m.spin.View()
	}

	content := b.Text()
	if b.Type == model.BlockText && !b.IsStreaming {
		content = m.renderMarkdown(b)
	} else if b.Type == model.BlockThinking {
		content = m.theme.Faint.Render(content)
	}

	body := m.theme.BlockLabel.Render(label) + "\n" + content
	styled := m.theme.StyleFor(string(b.Type)).Width(m.width - 2).Render(body)

	return padToHeight(styled, model.EstimateHeight(b.Text()))
}

// renderMarkdown renders a finalized text block through glamour, caching
// per block ID.
func (m *Model) renderMarkdown(b *model.Block) string {
	if out, ok := m.rendered[b.ID]; ok {
		return out
	}
	if m.renderer == nil {
		wrap := m.width - 6
		if wrap < 20 {
			wrap = 20
		}
		r, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(wrap),
		)
		if err != nil {
			return b.Text()
		}
		m.renderer = r
	}

	out, err := m.renderer.Render(b.Text())
	if err != nil {
		return b.Text()
	}
	out = strings.Trim(out, "\n")
	m.rendered[b.ID] = out
	return out
}

// renderStatusBar renders the one-line status strip.
func (m *Model) renderStatusBar() string {
	in, out := m.mirror.Usage()
	left := fmt.Sprintf(" %s · %d blocks · %d in / %d out",
		util.TruncateRunes(m.mirror.ConversationID(), 18), m.mirror.BlockCount(), in, out)

	state := m.status
	if m.deltas != nil {
		state = m.spin.View() + " streaming"
	}
	right := m.theme.StatusActive.Render(state) + " "

	if m.errMsg != "" {
		left += " · " + util.TruncateWidth(m.errMsg, m.width/2)
	}

	gap := m.width - util.StringWidth(left) - util.StringWidth(stripANSI(right))
	if gap < 1 {
		gap = 1
	}
	return m.theme.StatusBar.Render(left) + strings.Repeat(" ", gap) + right
}

// renderSearchRow renders the search input plus a compact match summary.
func (m *Model) renderSearchRow() string {
	row := m.theme.InputPrompt.Render("/ ") + m.searchInput.View()
	if m.lastQuery == "" {
		return row
	}
	if len(m.matches) == 0 {
		return row + m.theme.Faint.Render("  no matches")
	}

	summary := fmt.Sprintf("  %d match(es)", len(m.matches))
	shown := m.matches
	if len(shown) > 3 {
		shown = shown[:3]
	}
	var refs []string
	for _, match := range shown {
		text, ok := m.mirror.BlockText(match.BlockID)
		if !ok {
			continue
		}
		refs = append(refs, m.theme.SearchMatch.Render(
			util.TruncateWidth(util.SafeSubstring(text, match.Start, match.End), 24)))
	}
	if len(refs) > 0 {
		summary += ": " + strings.Join(refs, " ")
	}
	return row + m.theme.Faint.Render(summary)
}

// =============================================================================
// HELPERS
// =============================================================================

// padToHeight pads or leaves rendered output so it occupies at least the
// estimated rows the window allotted for it.
func padToHeight(s string, height int) string {
	lines := strings.Count(s, "\n") + 1
	if lines >= height {
		return s
	}
	return s + strings.Repeat("\n", height-lines)
}

// stripANSI is a rough width helper for styled strings in the status bar.
func stripANSI(s string) string {
	var sb strings.Builder
	inEscape := false
	for _, r := range s {
		switch {
		case inEscape:
			if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') {
				inEscape = false
			}
		case r == '\x1b':
			inEscape = true
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}
