// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"strings"

	"github.com/mattn/go-runewidth"
)

// =============================================================================
// HEIGHT HEURISTIC
// =============================================================================

// Layout constants for the height heuristic. The server store and the client
// mirror both call EstimateHeight, so scroll positions computed from block
// heights agree on both sides. The numbers are an approximation of the
// rendered block: a line of wrapped text plus the block chrome.
const (
	// AssumedColumns is the wrap width used when the real terminal width is
	// not known yet.
	AssumedColumns = 80

	// LineHeight is the height of one wrapped line, in rows.
	LineHeight = 1

	// BlockPadding is the fixed chrome around a block (header + margin).
	BlockPadding = 2

	// MinBlockHeight is the floor for any block, even an empty one.
	MinBlockHeight = 3
)

// assumedColumns is the effective wrap width. Overridable once at startup
// via SetAssumedColumns; the heuristic only has to be stable, not exact.
var assumedColumns = AssumedColumns

// SetAssumedColumns overrides the wrap width used by EstimateHeight.
// Widths below 20 are clamped to keep the estimate sane on tiny terminals.
func SetAssumedColumns(cols int) {
	if cols < 20 {
		cols = 20
	}
	assumedColumns = cols
}

// EstimateHeight returns the estimated rendered height of content.
//
//	lines  = max(explicit newline lines, ceil(cells / assumedColumns))
//	height = max(MinBlockHeight, lines*LineHeight + BlockPadding)
//
// The estimate is length-monotonic: appending text never decreases it.
// Cell width is measured with go-runewidth so wide runes count as two
// columns, matching what the renderer will actually wrap.
func EstimateHeight(content string) int {
	if content == "" {
		return MinBlockHeight
	}

	newlineLines := strings.Count(content, "\n") + 1

	cells := runewidth.StringWidth(content)
	wrapLines := (cells + assumedColumns - 1) / assumedColumns
	if wrapLines < 1 {
		wrapLines = 1
	}

	lines := newlineLines
	if wrapLines > lines {
		lines = wrapLines
	}

	height := lines*LineHeight + BlockPadding
	if height < MinBlockHeight {
		height = MinBlockHeight
	}
	return height
}
