// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package mirror maintains the client-side view of a streaming conversation.
//
// # Key Types
//
//   - Mirror: an independent replica of the conversation context, rebuilt
//     from a snapshot fetch plus delta events. It never holds references
//     into server memory, recomputes block heights with the same heuristic
//     the server uses, and silently drops deltas for unknown block IDs.
//   - Window: the virtual window controller mapping a scroll offset and
//     per-block heights to a bounded visible range via cached prefix sums,
//     with a fixed overscan margin and an average-height fallback for use
//     before exact heights are known.
//
// The renderer reads blocks and heights from the Mirror and asks the Window
// which contiguous slice to actually draw; everything outside the returned
// range stays unrendered regardless of conversation size.
package mirror
