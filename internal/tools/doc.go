// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package tools implements the tool handlers the model can invoke during a
// turn: file reads and writes, exact-match edits, shell commands, glob and
// grep. The Executor runs calls sequentially, validates every path against
// the workspace root, and reports handler failures as error results rather
// than aborting the turn.
package tools
