// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package ui implements the terminal client: a Bubble Tea program that
// mirrors the server's conversation over the delta stream and renders a
// virtualized transcript.
//
// The model keeps a mirror.Mirror as its source of truth and a
// mirror.Window for scroll math; only the blocks intersecting the
// viewport are rendered each frame. Finalized text blocks pass through
// glamour once and are cached until the terminal is resized.
package ui
