// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// =============================================================================
// READ
// =============================================================================

// maxReadBytes caps a single file read.
const maxReadBytes = 256 * 1024

var readTool = &Tool{
	Name:        "read_file",
	Description: "Read a file from the workspace. Returns numbered lines. Use offset and limit for large files.",
	InputSchema: json.RawMessage(`{
		"type": "object",
		"properties": {
			"path": {"type": "string", "description": "File path, relative to the workspace root"},
			"offset": {"type": "integer", "description": "1-based first line to return"},
			"limit": {"type": "integer", "description": "Maximum number of lines to return"}
		},
		"required": ["path"]
	}`),
	Handler: runRead,
}

func runRead(ctx context.Context, e *Executor, input json.RawMessage) (string, error) {
	var params struct {
		Path   string `json:"path"`
		Offset int    `json:"offset"`
		Limit  int    `json:"limit"`
	}
	if err := decodeInput(input, &params); err != nil {
		return "", err
	}

	abs, err := validatePath(e.workDir, params.Path)
	if err != nil {
		return "", err
	}

	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", params.Path, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s is a directory", params.Path)
	}
	if info.Size() > maxReadBytes && params.Limit == 0 {
		return "", fmt.Errorf("%s is %d bytes; pass offset/limit to read it in slices", params.Path, info.Size())
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", params.Path, err)
	}

	lines := strings.Split(string(data), "\n")
	start := 0
	if params.Offset > 1 {
		start = params.Offset - 1
	}
	if start >= len(lines) {
		return "", fmt.Errorf("offset %d past end of file (%d lines)", params.Offset, len(lines))
	}
	end := len(lines)
	if params.Limit > 0 && start+params.Limit < end {
		end = start + params.Limit
	}

	var sb strings.Builder
	for i := start; i < end; i++ {
		fmt.Fprintf(&sb, "%6d\t%s\n", i+1, lines[i])
	}
	return sb.String(), nil
}

// =============================================================================
// WRITE
// =============================================================================

var writeTool = &Tool{
	Name:        "write_file",
	Description: "Write content to a file, creating parent directories as needed. Overwrites existing files.",
	InputSchema: json.RawMessage(`{
		"type": "object",
		"properties": {
			"path": {"type": "string", "description": "File path, relative to the workspace root"},
			"content": {"type": "string", "description": "Full file content to write"}
		},
		"required": ["path", "content"]
	}`),
	Handler: runWrite,
}

func runWrite(ctx context.Context, e *Executor, input json.RawMessage) (string, error) {
	var params struct {
		Path    string `json:"path"`
		Content string `json:"content"`
	}
	if err := decodeInput(input, &params); err != nil {
		return "", err
	}

	abs, err := validatePath(e.workDir, params.Path)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return "", fmt.Errorf("write %s: %w", params.Path, err)
	}
	if err := os.WriteFile(abs, []byte(params.Content), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", params.Path, err)
	}
	return fmt.Sprintf("wrote %d bytes to %s", len(params.Content), params.Path), nil
}

// =============================================================================
// EDIT
// =============================================================================

var editTool = &Tool{
	Name:        "edit_file",
	Description: "Replace an exact string in a file. The old string must appear exactly once unless replace_all is set.",
	InputSchema: json.RawMessage(`{
		"type": "object",
		"properties": {
			"path": {"type": "string", "description": "File path, relative to the workspace root"},
			"old_string": {"type": "string", "description": "Exact text to replace"},
			"new_string": {"type": "string", "description": "Replacement text"},
			"replace_all": {"type": "boolean", "description": "Replace every occurrence"}
		},
		"required": ["path", "old_string", "new_string"]
	}`),
	Handler: runEdit,
}

func runEdit(ctx context.Context, e *Executor, input json.RawMessage) (string, error) {
	var params struct {
		Path       string `json:"path"`
		OldString  string `json:"old_string"`
		NewString  string `json:"new_string"`
		ReplaceAll bool   `json:"replace_all"`
	}
	if err := decodeInput(input, &params); err != nil {
		return "", err
	}
	if params.OldString == "" {
		return "", fmt.Errorf("old_string must not be empty")
	}
	if params.OldString == params.NewString {
		return "", fmt.Errorf("old_string and new_string are identical")
	}

	abs, err := validatePath(e.workDir, params.Path)
	if err != nil {
		return "", err
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return "", fmt.Errorf("edit %s: %w", params.Path, err)
	}
	content := string(data)

	count := strings.Count(content, params.OldString)
	switch {
	case count == 0:
		return "", fmt.Errorf("old_string not found in %s", params.Path)
	case count > 1 && !params.ReplaceAll:
		return "", fmt.Errorf("old_string appears %d times in %s; pass replace_all or make it unique", count, params.Path)
	}

	replaced := count
	if params.ReplaceAll {
		content = strings.ReplaceAll(content, params.OldString, params.NewString)
	} else {
		content = strings.Replace(content, params.OldString, params.NewString, 1)
		replaced = 1
	}

	if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("edit %s: %w", params.Path, err)
	}
	return fmt.Sprintf("replaced %d occurrence(s) in %s", replaced, params.Path), nil
}
