// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// index.go - the in-memory substring index over block text.
package search

import (
	"unicode"
)

// =============================================================================
// POSTINGS
// =============================================================================

// Posting records the positions of one token inside one block. Positions are
// rune offsets into the block's text.
type Posting struct {
	BlockID   string
	Positions []int
}

// Match is one search hit: the half-open rune offset range [Start, End) of
// the query inside the block's text.
type Match struct {
	BlockID string `json:"blockId"`
	Start   int    `json:"start"`
	End     int    `json:"end"`
}

// =============================================================================
// INDEX
// =============================================================================

// Index is an inverted index over block text. It is not safe for concurrent
// use; the worker serializes all access. Indexing one block costs time
// proportional to that block's length, never to the whole conversation.
type Index struct {
	// postings maps lowercased token -> per-block positions.
	postings map[string]map[string][]int

	// texts retains each block's original text for substring extraction.
	texts map[string]string

	// order preserves block insertion order so results are deterministic.
	order []string
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{
		postings: make(map[string]map[string][]int),
		texts:    make(map[string]string),
	}
}

// IndexBlock tokenizes content and fully replaces the block's prior
// postings. Remove-then-insert makes re-indexing after an append both
// correct and idempotent.
func (idx *Index) IndexBlock(id, content string) {
	_, existed := idx.texts[id]
	idx.removePostings(id)

	idx.texts[id] = content
	if !existed {
		idx.order = append(idx.order, id)
	}

	for token, positions := range tokenize(content) {
		blockMap, ok := idx.postings[token]
		if !ok {
			blockMap = make(map[string][]int)
			idx.postings[token] = blockMap
		}
		blockMap[id] = positions
	}
}

// RemoveBlock purges the block's postings and retained text. Removing an
// unknown block is a no-op.
func (idx *Index) RemoveBlock(id string) {
	if _, ok := idx.texts[id]; !ok {
		return
	}
	idx.removePostings(id)
	delete(idx.texts, id)
	for i, existing := range idx.order {
		if existing == id {
			idx.order = append(idx.order[:i], idx.order[i+1:]...)
			break
		}
	}
}

// Clear drops every block from the index.
func (idx *Index) Clear() {
	idx.postings = make(map[string]map[string][]int)
	idx.texts = make(map[string]string)
	idx.order = nil
}

// BlockCount returns the number of indexed blocks.
func (idx *Index) BlockCount() int {
	return len(idx.order)
}

// Lookup returns the postings for one lowercased token, in block insertion
// order. Used to narrow candidates; exact extraction still goes through
// Search so phrase semantics (spaces, punctuation) hold.
func (idx *Index) Lookup(token string) []Posting {
	blockMap, ok := idx.postings[foldString(token)]
	if !ok {
		return nil
	}
	var out []Posting
	for _, id := range idx.order {
		if positions, ok := blockMap[id]; ok {
			out = append(out, Posting{BlockID: id, Positions: positions})
		}
	}
	return out
}

// Search performs a case-insensitive substring scan over every block's
// retained text. After each hit the cursor advances by exactly one rune, so
// adjacent and overlapping matches are all reported: "aa" in "aabaa" yields
// [0,2) and [3,5).
func (idx *Index) Search(query string) []Match {
	queryRunes := foldRunes(query)
	if len(queryRunes) == 0 {
		return nil
	}

	var matches []Match
	for _, id := range idx.order {
		text := foldRunes(idx.texts[id])
		for i := 0; i+len(queryRunes) <= len(text); i++ {
			if runesEqual(text[i:i+len(queryRunes)], queryRunes) {
				matches = append(matches, Match{
					BlockID: id,
					Start:   i,
					End:     i + len(queryRunes),
				})
			}
		}
	}
	return matches
}

// removePostings deletes every posting referencing id, dropping tokens whose
// posting lists become empty.
func (idx *Index) removePostings(id string) {
	for token, blockMap := range idx.postings {
		if _, ok := blockMap[id]; ok {
			delete(blockMap, id)
			if len(blockMap) == 0 {
				delete(idx.postings, token)
			}
		}
	}
}

// =============================================================================
// TOKENIZATION
// =============================================================================

// tokenize splits content on word boundaries and returns lowercased token ->
// rune positions of each occurrence.
func tokenize(content string) map[string][]int {
	tokens := make(map[string][]int)

	runes := []rune(content)
	start := -1
	for i := 0; i <= len(runes); i++ {
		isWord := i < len(runes) && isWordRune(runes[i])
		switch {
		case isWord && start < 0:
			start = i
		case !isWord && start >= 0:
			token := string(foldRunes(string(runes[start:i])))
			tokens[token] = append(tokens[token], start)
			start = -1
		}
	}
	return tokens
}

// isWordRune reports whether r belongs inside a token.
func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_'
}

// foldRunes lowercases rune by rune. Per-rune folding keeps the rune count
// identical to the input, so match offsets refer to the original text.
func foldRunes(s string) []rune {
	runes := []rune(s)
	for i, r := range runes {
		runes[i] = unicode.ToLower(r)
	}
	return runes
}

// foldString lowercases a token the same way foldRunes does.
func foldString(s string) string {
	return string(foldRunes(s))
}

// runesEqual compares two rune slices of equal length.
func runesEqual(a, b []rune) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
