// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// SUBSTRING SEARCH TESTS
// =============================================================================

func TestIndex_OverlappingMatches(t *testing.T) {
	idx := NewIndex()
	idx.IndexBlock("blk_1", "aabaa")

	matches := idx.Search("aa")

	require.Len(t, matches, 2)
	assert.Equal(t, Match{BlockID: "blk_1", Start: 0, End: 2}, matches[0])
	assert.Equal(t, Match{BlockID: "blk_1", Start: 3, End: 5}, matches[1])
}

func TestIndex_AdjacentOverlapsAllReported(t *testing.T) {
	idx := NewIndex()
	idx.IndexBlock("blk_1", "aaaa")

	// Cursor advances one rune per hit: aaaa contains "aa" at 0, 1, 2.
	matches := idx.Search("aa")
	require.Len(t, matches, 3)
	assert.Equal(t, 0, matches[0].Start)
	assert.Equal(t, 1, matches[1].Start)
	assert.Equal(t, 2, matches[2].Start)
}

func TestIndex_SearchCaseInsensitive(t *testing.T) {
	idx := NewIndex()
	idx.IndexBlock("blk_1", "Hello World")

	matches := idx.Search("hello w")

	require.Len(t, matches, 1)
	assert.Equal(t, 0, matches[0].Start)
	assert.Equal(t, 7, matches[0].End)
}

func TestIndex_SearchExactPhraseWithPunctuation(t *testing.T) {
	idx := NewIndex()
	idx.IndexBlock("blk_1", "call foo(); then bar()")

	// Substring semantics must survive punctuation the tokenizer drops.
	matches := idx.Search("foo();")
	require.Len(t, matches, 1)
	assert.Equal(t, 5, matches[0].Start)
}

func TestIndex_SearchEmptyQueryReturnsNothing(t *testing.T) {
	idx := NewIndex()
	idx.IndexBlock("blk_1", "content")

	assert.Empty(t, idx.Search(""))
}

func TestIndex_SearchSpansBlocksInInsertionOrder(t *testing.T) {
	idx := NewIndex()
	idx.IndexBlock("blk_2", "needle here")
	idx.IndexBlock("blk_1", "another needle")

	matches := idx.Search("needle")

	require.Len(t, matches, 2)
	assert.Equal(t, "blk_2", matches[0].BlockID)
	assert.Equal(t, "blk_1", matches[1].BlockID)
}

// =============================================================================
// INCREMENTAL REINDEX TESTS
// =============================================================================

func TestIndex_ReindexReplacesPriorPostings(t *testing.T) {
	idx := NewIndex()
	idx.IndexBlock("blk_1", "alpha beta")
	idx.IndexBlock("blk_1", "alpha beta gamma")

	// Old postings must not linger as duplicates.
	matches := idx.Search("beta")
	require.Len(t, matches, 1)

	assert.Len(t, idx.Lookup("gamma"), 1)
	assert.Equal(t, 1, idx.BlockCount())
}

func TestIndex_RemoveThenReindexMatchesFreshIndex(t *testing.T) {
	const text = "the quick brown fox"

	mutated := NewIndex()
	mutated.IndexBlock("blk_1", "something else entirely")
	mutated.RemoveBlock("blk_1")
	mutated.IndexBlock("blk_1", text)

	fresh := NewIndex()
	fresh.IndexBlock("blk_1", text)

	assert.Equal(t, fresh.Search("quick"), mutated.Search("quick"))
	assert.Equal(t, fresh.Search("o"), mutated.Search("o"))
	assert.Equal(t, fresh.Lookup("fox"), mutated.Lookup("fox"))
}

func TestIndex_RemoveBlockPurgesEverything(t *testing.T) {
	idx := NewIndex()
	idx.IndexBlock("blk_1", "findable text")

	idx.RemoveBlock("blk_1")

	assert.Empty(t, idx.Search("findable"))
	assert.Nil(t, idx.Lookup("findable"))
	assert.Equal(t, 0, idx.BlockCount())

	// Removing twice is harmless.
	idx.RemoveBlock("blk_1")
}

func TestIndex_ClearDropsAllBlocks(t *testing.T) {
	idx := NewIndex()
	idx.IndexBlock("blk_1", "one")
	idx.IndexBlock("blk_2", "two")

	idx.Clear()

	assert.Equal(t, 0, idx.BlockCount())
	assert.Empty(t, idx.Search("one"))
}

// =============================================================================
// TOKENIZER TESTS
// =============================================================================

func TestTokenize_WordBoundaries(t *testing.T) {
	tokens := tokenize("Hello, hello world_2!")

	require.Contains(t, tokens, "hello")
	assert.Equal(t, []int{0, 7}, tokens["hello"])
	assert.Equal(t, []int{13}, tokens["world_2"])
	assert.NotContains(t, tokens, ",")
}

func TestLookup_PositionsAreRuneOffsets(t *testing.T) {
	idx := NewIndex()
	idx.IndexBlock("blk_1", "héllo héllo")

	postings := idx.Lookup("héllo")
	require.Len(t, postings, 1)
	assert.Equal(t, []int{0, 6}, postings[0].Positions)
}
