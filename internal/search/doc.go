// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package search provides sub-100ms full-text search over a growing
// conversation without blocking rendering.
//
// # Architecture
//
//   - Index: an inverted index (token -> block postings) plus the retained
//     original text per block. Queries are answered by a case-insensitive
//     substring scan over the retained text, so exact phrase semantics
//     including spaces and punctuation hold, and overlapping matches are
//     all reported.
//   - Worker: a dedicated goroutine that owns the Index. All access goes
//     through request/response messages carrying correlation IDs and a
//     30-second timeout; a panicked or unresponsive worker is terminated
//     and silently respawned, with pending requests rejected.
//   - Coalescer / Debouncer: batch index traffic under rapid streaming and
//     debounce user query input (~150ms) before it reaches the worker.
//
// Indexing one block costs time proportional to that block's length, never
// to total conversation size, and the index never outlives the blocks the
// mirror holds: RemoveBlock / Clear purge postings and retained text.
package search
