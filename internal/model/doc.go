// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversation contexts and
// content blocks.
//
// This package defines the core domain types used throughout the application
// for representing a streaming conversation: the ordered block sequence, the
// running token totals, and the authoritative store that owns them.
//
// # Key Types
//
//   - Block: One atomic unit of conversation content with a type tag.
//     Content is append-only while streaming and immutable after finalize.
//   - Context: Container for a conversation with ordered blocks, token
//     totals, system prompt and tool definitions.
//   - Store: The single-writer authoritative holder of the current Context,
//     passed by handle to the session adapter, the HTTP server and export.
//   - Metadata: Per-block auxiliary fields (tool name/id, stop reason,
//     token counts), mostly merged in at finalize.
//
// # Usage
//
// Create a store and stream a block into it:
//
//	store := model.NewStore()
//	id := store.CreateBlock(model.BlockText, model.Metadata{})
//	store.Append(id, "Hello")
//	store.Finalize(id, model.Metadata{StopReason: "end_turn"})
//
// The height heuristic in height.go is shared with the client mirror so
// virtual-scroll positions match on both sides of the delta protocol.
package model
