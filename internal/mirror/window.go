// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package mirror

import "sort"

// =============================================================================
// VIRTUAL WINDOW CONTROLLER
// =============================================================================

// DefaultOverscan is the number of extra blocks rendered beyond each edge of
// the viewport so estimate error never exposes a blank gap.
const DefaultOverscan = 3

// Range is the contiguous visible block range [Start, End), plus the pixel
// offset of the first block so the renderer can position it.
type Range struct {
	Start int
	End   int

	// Top is the accumulated height of all blocks before Start.
	Top int

	// Total is the full content height, for scrollbar math.
	Total int
}

// Window maps a scroll offset and per-block heights to a bounded visible
// range. It caches prefix sums; streaming appends touch only the tail, so a
// height update invalidates the prefix from that block onward and a scroll
// recomputation costs a binary search plus the overscan margin, not a walk
// over every block.
type Window struct {
	overscan int

	heights []int
	// prefix[i] holds the total height of blocks [0, i); len(prefix) is
	// len(heights)+1. Entries at index > dirty are stale.
	prefix []int
	dirty  int
}

// NewWindow creates a controller with the given overscan margin.
func NewWindow(overscan int) *Window {
	if overscan < 0 {
		overscan = DefaultOverscan
	}
	return &Window{overscan: overscan, prefix: []int{0}}
}

// SetHeights replaces all block heights, e.g. after a snapshot load.
func (w *Window) SetHeights(heights []int) {
	w.heights = append(w.heights[:0], heights...)
	w.invalidateFrom(0)
}

// UpdateHeight changes one block's height (streaming append). Out-of-range
// indices grow the sequence, which covers block-started for a new tail.
func (w *Window) UpdateHeight(i, height int) {
	if i < 0 {
		return
	}
	// Grow (and resize prefix) before the equal-height check: appended
	// zeros can already equal the new height, and the prefix must cover
	// them either way.
	if i >= len(w.heights) {
		from := len(w.heights)
		for len(w.heights) <= i {
			w.heights = append(w.heights, 0)
		}
		w.invalidateFrom(from)
	}
	if w.heights[i] == height {
		return
	}
	w.heights[i] = height
	w.invalidateFrom(i)
}

// BlockCount returns the number of tracked blocks.
func (w *Window) BlockCount() int {
	return len(w.heights)
}

// TotalHeight returns the summed height of every block.
func (w *Window) TotalHeight() int {
	w.ensure(len(w.heights))
	return w.prefix[len(w.heights)]
}

// invalidateFrom marks prefix entries past block i as stale.
func (w *Window) invalidateFrom(i int) {
	if i < w.dirty {
		w.dirty = i
	}
	if need := len(w.heights) + 1; len(w.prefix) < need {
		grown := make([]int, need)
		copy(grown, w.prefix)
		w.prefix = grown
	}
}

// ensure recomputes prefix sums up to block n.
func (w *Window) ensure(n int) {
	if n > len(w.heights) {
		n = len(w.heights)
	}
	for i := w.dirty; i < n; i++ {
		w.prefix[i+1] = w.prefix[i] + w.heights[i]
	}
	if n > w.dirty {
		w.dirty = n
	}
}

// Visible computes the visible range for a scroll offset and viewport
// height. The returned range always fully covers the viewport; estimate
// error only widens it via the overscan margin and self-corrects as real
// heights arrive.
func (w *Window) Visible(scrollOffset, viewportHeight int) Range {
	n := len(w.heights)
	if n == 0 || viewportHeight <= 0 {
		return Range{}
	}
	w.ensure(n)

	total := w.prefix[n]
	if scrollOffset < 0 {
		scrollOffset = 0
	}
	if max := total - viewportHeight; scrollOffset > max && max >= 0 {
		scrollOffset = max
	}

	// First block whose bottom edge is below the top of the viewport.
	start := sort.Search(n, func(i int) bool {
		return w.prefix[i+1] > scrollOffset
	})
	// First block fully below the bottom of the viewport.
	end := sort.Search(n, func(i int) bool {
		return w.prefix[i] >= scrollOffset+viewportHeight
	})

	start -= w.overscan
	if start < 0 {
		start = 0
	}
	end += w.overscan
	if end > n {
		end = n
	}
	if end < start {
		end = start
	}

	return Range{Start: start, End: end, Top: w.prefix[start], Total: total}
}

// VisibleWithAverage is the fallback used before exact heights are known:
// every block is assumed to be avgHeight tall. blockCount bounds the range.
func VisibleWithAverage(blockCount, avgHeight, scrollOffset, viewportHeight, overscan int) Range {
	if blockCount == 0 || avgHeight <= 0 || viewportHeight <= 0 {
		return Range{}
	}
	if scrollOffset < 0 {
		scrollOffset = 0
	}

	start := scrollOffset/avgHeight - overscan
	if start < 0 {
		start = 0
	}
	end := (scrollOffset+viewportHeight+avgHeight-1)/avgHeight + overscan
	if end > blockCount {
		end = blockCount
	}
	if end < start {
		end = start
	}

	return Range{
		Start: start,
		End:   end,
		Top:   start * avgHeight,
		Total: blockCount * avgHeight,
	}
}
