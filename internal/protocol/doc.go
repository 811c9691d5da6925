// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package protocol defines the one-directional delta stream carrying
// conversation mutations from the server store to client mirrors.
//
// # Wire Shape
//
// Every event is an SSE frame whose JSON payload carries an explicit type
// tag (block-started, block-appended, block-finalized, token-usage-updated,
// message-lifecycle-stop, fault, keep-alive). Ordering is guaranteed by the
// transport: block-started for an ID is always observed before any
// appended/finalized event for that ID. Consumers silently discard events
// referencing unknown IDs; those are expected after a mid-turn clear, not
// faults.
//
// There is no replay cache. A client that loses the stream re-fetches the
// full snapshot before subscribing again and only loses the in-flight
// turn's partial rendering.
package protocol
