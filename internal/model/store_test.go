// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"strings"
	"testing"
)

// =============================================================================
// BLOCK TESTS
// =============================================================================

func TestBlock_AppendGrowsContent(t *testing.T) {
	b := NewBlock(BlockText, Metadata{})

	b.Append("Hello")
	b.Append(", world")

	if got := b.Text(); got != "Hello, world" {
		t.Errorf("Text() = %q, want %q", got, "Hello, world")
	}
	if !b.IsStreaming {
		t.Error("block should still be streaming before Finalize")
	}
}

func TestBlock_FinalizeIdempotent(t *testing.T) {
	b := NewBlock(BlockText, Metadata{})
	b.Append("done")

	b.Finalize(Metadata{StopReason: "end_turn"})
	first := *b

	b.Finalize(Metadata{StopReason: "end_turn"})

	if b.Content != first.Content {
		t.Errorf("second Finalize changed content: %q -> %q", first.Content, b.Content)
	}
	if b.IsStreaming {
		t.Error("IsStreaming should stay false after double Finalize")
	}
	if b.Metadata.StopReason != "end_turn" {
		t.Errorf("StopReason = %q, want end_turn", b.Metadata.StopReason)
	}
}

func TestBlock_AppendAfterFinalizeIgnored(t *testing.T) {
	b := NewBlock(BlockText, Metadata{})
	b.Append("final")
	b.Finalize(Metadata{})

	b.Append(" extra")

	if got := b.Text(); got != "final" {
		t.Errorf("Text() = %q, want %q", got, "final")
	}
}

func TestBlock_HeightNonDecreasingUnderAppend(t *testing.T) {
	b := NewBlock(BlockText, Metadata{})

	prev := b.EstimatedHeight
	chunks := []string{"a", "bb", strings.Repeat("x", 200), "\n\n", "tail"}
	for _, chunk := range chunks {
		b.Append(chunk)
		if b.EstimatedHeight < prev {
			t.Fatalf("height decreased after append %q: %d -> %d", chunk, prev, b.EstimatedHeight)
		}
		prev = b.EstimatedHeight
	}
}

// =============================================================================
// HEIGHT HEURISTIC TESTS
// =============================================================================

func TestEstimateHeight(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    int
	}{
		{name: "empty", content: "", want: MinBlockHeight},
		{name: "single short line", content: "hi", want: MinBlockHeight},
		{name: "three newline lines", content: "a\nb\nc", want: 3*LineHeight + BlockPadding},
		{name: "wrap beats newlines", content: strings.Repeat("x", 4*AssumedColumns), want: 4*LineHeight + BlockPadding},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := EstimateHeight(tc.content); got != tc.want {
				t.Errorf("EstimateHeight(%q) = %d, want %d", tc.content, got, tc.want)
			}
		})
	}
}

func TestEstimateHeight_WideRunesCountAsTwoCells(t *testing.T) {
	// 50 CJK runes occupy 100 cells -> 2 wrapped lines at 80 columns.
	content := strings.Repeat("世", 50)
	want := 2*LineHeight + BlockPadding
	if got := EstimateHeight(content); got != want {
		t.Errorf("EstimateHeight(wide) = %d, want %d", got, want)
	}
}

// =============================================================================
// STORE TESTS
// =============================================================================

func TestStore_AppendUnknownIDIsNoOp(t *testing.T) {
	store := NewStore()

	// Must not panic and must not create a block.
	store.Append("blk_missing", "text")
	store.Finalize("blk_missing", Metadata{})

	if n := store.Snapshot().BlockCount(); n != 0 {
		t.Errorf("BlockCount = %d, want 0", n)
	}
}

func TestStore_TokenTotalsMonotonic(t *testing.T) {
	store := NewStore()

	store.UpdateTokenUsage(3, 5)
	store.UpdateTokenUsage(2, 1)

	input, output := store.TokenUsage()
	if input != 5 || output != 6 {
		t.Errorf("totals = (%d, %d), want (5, 6)", input, output)
	}

	// Negative deltas never decrease the totals.
	store.UpdateTokenUsage(-10, -10)
	input, output = store.TokenUsage()
	if input != 5 || output != 6 {
		t.Errorf("totals after negative update = (%d, %d), want (5, 6)", input, output)
	}
}

func TestStore_SnapshotIsDetached(t *testing.T) {
	store := NewStore()
	id := store.CreateBlock(BlockText, Metadata{})
	store.Append(id, "before")

	snap := store.Snapshot()
	store.Append(id, " after")

	if got := snap.BlockByID(id).Text(); got != "before" {
		t.Errorf("snapshot mutated by later append: %q", got)
	}
	if got, _ := store.BlockText(id); got != "before after" {
		t.Errorf("live block = %q, want %q", got, "before after")
	}
}

func TestStore_ClearReplacesConversation(t *testing.T) {
	store := NewStore()
	oldID := store.ConversationID()
	blockID := store.CreateBlock(BlockText, Metadata{})
	store.UpdateTokenUsage(10, 20)

	store.Clear()

	if store.ConversationID() == oldID {
		t.Error("Clear should mint a new conversation ID")
	}
	snap := store.Snapshot()
	if !snap.IsEmpty() {
		t.Errorf("context not empty after Clear: %d blocks", snap.BlockCount())
	}
	if snap.InputTokens != 0 || snap.OutputTokens != 0 {
		t.Error("token totals should reset with the new context")
	}

	// Deltas for the old turn arriving afterward are dropped as unknown-id.
	store.Append(blockID, "stale")
	if n := store.Snapshot().BlockCount(); n != 0 {
		t.Errorf("stale append created a block: count = %d", n)
	}
}

func TestStore_AddCompleteBlock(t *testing.T) {
	store := NewStore()

	id := store.AddCompleteBlock(BlockUser, "hello", Metadata{})

	snap := store.Snapshot()
	b := snap.BlockByID(id)
	if b == nil {
		t.Fatal("complete block missing from snapshot")
	}
	if b.IsStreaming {
		t.Error("complete block should not be streaming")
	}
	if b.Content != "hello" {
		t.Errorf("Content = %q, want hello", b.Content)
	}
	if b.EstimatedHeight < MinBlockHeight {
		t.Errorf("EstimatedHeight = %d, want >= %d", b.EstimatedHeight, MinBlockHeight)
	}
}

func TestContext_Heights(t *testing.T) {
	store := NewStore()
	store.AddCompleteBlock(BlockUser, "one line", Metadata{})
	store.AddCompleteBlock(BlockText, "a\nb\nc\nd", Metadata{})

	heights := store.Snapshot().Heights()
	if len(heights) != 2 {
		t.Fatalf("len(heights) = %d, want 2", len(heights))
	}
	if heights[0] != MinBlockHeight {
		t.Errorf("heights[0] = %d, want %d", heights[0], MinBlockHeight)
	}
	if heights[1] != 4*LineHeight+BlockPadding {
		t.Errorf("heights[1] = %d, want %d", heights[1], 4*LineHeight+BlockPadding)
	}
}
