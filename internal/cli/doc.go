// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli parses the convo command line and implements the small
// non-interactive commands (config, export, version). The serve and tui
// commands need the full wiring and live in main.
package cli
