// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package mirror

import "testing"

// =============================================================================
// VIRTUAL WINDOW TESTS
// =============================================================================

func TestWindow_UniformHeightsCoverViewport(t *testing.T) {
	w := NewWindow(1)
	w.SetHeights([]int{100, 100, 100, 100, 100})

	r := w.Visible(0, 250)

	// Viewport shows blocks 0-2; overscan 1 extends coverage through 3.
	if r.Start != 0 {
		t.Errorf("Start = %d, want 0", r.Start)
	}
	if r.End < 4 {
		t.Errorf("End = %d, want >= 4 (indices 0-3 covered)", r.End)
	}
	if r.Total != 500 {
		t.Errorf("Total = %d, want 500", r.Total)
	}
}

func TestWindow_ScrolledRange(t *testing.T) {
	w := NewWindow(0)
	w.SetHeights([]int{100, 100, 100, 100, 100})

	r := w.Visible(150, 100)

	// Offset 150..250 straddles blocks 1 and 2.
	if r.Start != 1 || r.End != 3 {
		t.Errorf("range = [%d, %d), want [1, 3)", r.Start, r.End)
	}
	if r.Top != 100 {
		t.Errorf("Top = %d, want 100", r.Top)
	}
}

func TestWindow_ScrollClampedToContent(t *testing.T) {
	w := NewWindow(0)
	w.SetHeights([]int{50, 50, 50})

	r := w.Visible(10_000, 100)

	// Clamped to the bottom: last two blocks fill the 100-tall viewport.
	if r.End != 3 {
		t.Errorf("End = %d, want 3", r.End)
	}
	if r.Start != 1 {
		t.Errorf("Start = %d, want 1", r.Start)
	}
}

func TestWindow_EmptyAndDegenerate(t *testing.T) {
	w := NewWindow(2)

	if r := w.Visible(0, 100); r != (Range{}) {
		t.Errorf("empty window range = %+v, want zero", r)
	}

	w.SetHeights([]int{10})
	if r := w.Visible(0, 0); r != (Range{}) {
		t.Errorf("zero viewport range = %+v, want zero", r)
	}
}

func TestWindow_UpdateHeightSelfCorrects(t *testing.T) {
	w := NewWindow(0)
	w.SetHeights([]int{100, 100, 100})

	// The tail block grows while streaming.
	w.UpdateHeight(2, 300)

	if got := w.TotalHeight(); got != 500 {
		t.Errorf("TotalHeight = %d, want 500", got)
	}

	r := w.Visible(250, 100)
	if r.Start != 2 || r.End != 3 {
		t.Errorf("range = [%d, %d), want [2, 3)", r.Start, r.End)
	}
}

func TestWindow_UpdateHeightGrowsSequence(t *testing.T) {
	w := NewWindow(0)

	// block-started events append heights one at a time.
	w.UpdateHeight(0, 40)
	w.UpdateHeight(1, 60)

	if w.BlockCount() != 2 {
		t.Fatalf("BlockCount = %d, want 2", w.BlockCount())
	}
	if got := w.TotalHeight(); got != 100 {
		t.Errorf("TotalHeight = %d, want 100", got)
	}
}

func TestWindow_GrowWithZeroHeightKeepsPrefixSized(t *testing.T) {
	w := NewWindow(1)
	w.SetHeights([]int{100, 100})
	w.Visible(0, 100) // warm the prefix cache

	// Growing past the end with the same height as the appended zeros
	// must still resize the prefix sums.
	w.UpdateHeight(5, 0)

	if w.BlockCount() != 6 {
		t.Fatalf("BlockCount = %d, want 6", w.BlockCount())
	}
	r := w.Visible(0, 100)
	if r.Total != 200 {
		t.Errorf("Total = %d, want 200", r.Total)
	}
	if got := w.TotalHeight(); got != 200 {
		t.Errorf("TotalHeight = %d, want 200", got)
	}
}

func TestWindow_OverscanBoundsRange(t *testing.T) {
	heights := make([]int, 1000)
	for i := range heights {
		heights[i] = 20
	}
	w := NewWindow(3)
	w.SetHeights(heights)

	r := w.Visible(10_000, 100)

	// 5 visible blocks + 3 overscan each side, never the whole list.
	if width := r.End - r.Start; width > 12 {
		t.Errorf("range width = %d, want <= 12", width)
	}
	// The range sits around offset 10000/20 = block 500.
	if r.Start != 497 || r.End != 508 {
		t.Errorf("range = [%d, %d), want [497, 508)", r.Start, r.End)
	}
}

// =============================================================================
// AVERAGE-HEIGHT FALLBACK TESTS
// =============================================================================

func TestVisibleWithAverage(t *testing.T) {
	r := VisibleWithAverage(100, 50, 500, 200, 1)

	// Offset 500..700 at 50/block spans blocks 10-13; overscan widens by 1.
	if r.Start != 9 {
		t.Errorf("Start = %d, want 9", r.Start)
	}
	if r.End != 15 {
		t.Errorf("End = %d, want 15", r.End)
	}
	if r.Total != 5000 {
		t.Errorf("Total = %d, want 5000", r.Total)
	}
}

func TestVisibleWithAverage_Degenerate(t *testing.T) {
	if r := VisibleWithAverage(0, 50, 0, 100, 1); r != (Range{}) {
		t.Errorf("zero blocks range = %+v, want zero", r)
	}
	if r := VisibleWithAverage(10, 0, 0, 100, 1); r != (Range{}) {
		t.Errorf("zero avg height range = %+v, want zero", r)
	}
}
