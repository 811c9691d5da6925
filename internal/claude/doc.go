// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package claude talks to the streaming Messages API and drives the
// conversation store from its event stream.
//
// Client opens one SSE request per round and decodes events off the wire.
// Adapter sits above it and owns turn semantics: it maps remote content
// indices to store block IDs, accumulates tool_use input, executes tools
// between rounds, and guarantees exactly one lifecycle stop delta per
// logical turn regardless of how many tool rounds it took or whether the
// turn failed in transit.
package claude
