// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// =============================================================================
// GLOB
// =============================================================================

// skipDirs are never descended into during glob or grep walks.
var skipDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"vendor":       true,
	".cache":       true,
}

const maxSearchResults = 200

var globTool = &Tool{
	Name:        "glob",
	Description: "Find files matching a glob pattern, e.g. **/*.go. Paths are relative to the workspace root.",
	InputSchema: json.RawMessage(`{
		"type": "object",
		"properties": {
			"pattern": {"type": "string", "description": "Glob pattern; ** matches any number of directories"}
		},
		"required": ["pattern"]
	}`),
	Handler: runGlob,
}

func runGlob(ctx context.Context, e *Executor, input json.RawMessage) (string, error) {
	var params struct {
		Pattern string `json:"pattern"`
	}
	if err := decodeInput(input, &params); err != nil {
		return "", err
	}
	if params.Pattern == "" {
		return "", fmt.Errorf("empty pattern")
	}

	var matches []string
	err := walkWorkspace(ctx, e.workDir, func(rel string, d fs.DirEntry) error {
		if d.IsDir() {
			return nil
		}
		ok, err := matchGlob(params.Pattern, rel)
		if err != nil {
			return err
		}
		if ok {
			matches = append(matches, rel)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	sort.Strings(matches)
	if len(matches) > maxSearchResults {
		matches = matches[:maxSearchResults]
	}
	if len(matches) == 0 {
		return "no files match " + params.Pattern, nil
	}
	return strings.Join(matches, "\n"), nil
}

// matchGlob matches a slash-separated relative path against a pattern where
// ** crosses directory boundaries.
func matchGlob(pattern, rel string) (bool, error) {
	if !strings.Contains(pattern, "**") {
		ok, err := filepath.Match(pattern, rel)
		if err != nil {
			return false, fmt.Errorf("bad pattern %q: %w", pattern, err)
		}
		if ok {
			return true, nil
		}
		// Also match against the basename so "*.go" works at any depth.
		return filepath.Match(pattern, filepath.Base(rel))
	}

	parts := strings.SplitN(pattern, "**", 2)
	prefix := strings.TrimSuffix(parts[0], "/")
	suffix := strings.TrimPrefix(parts[1], "/")

	if prefix != "" && !strings.HasPrefix(rel, prefix+"/") && rel != prefix {
		return false, nil
	}
	if suffix == "" {
		return true, nil
	}
	ok, err := filepath.Match(suffix, filepath.Base(rel))
	if err != nil {
		return false, fmt.Errorf("bad pattern %q: %w", pattern, err)
	}
	return ok, nil
}

// =============================================================================
// GREP
// =============================================================================

var grepTool = &Tool{
	Name:        "grep",
	Description: "Search file contents with a regular expression. Returns path:line:text matches.",
	InputSchema: json.RawMessage(`{
		"type": "object",
		"properties": {
			"pattern": {"type": "string", "description": "Go regular expression"},
			"path": {"type": "string", "description": "Directory to search, relative to the workspace root"},
			"glob": {"type": "string", "description": "Only search files matching this glob"}
		},
		"required": ["pattern"]
	}`),
	Handler: runGrep,
}

func runGrep(ctx context.Context, e *Executor, input json.RawMessage) (string, error) {
	var params struct {
		Pattern string `json:"pattern"`
		Path    string `json:"path"`
		Glob    string `json:"glob"`
	}
	if err := decodeInput(input, &params); err != nil {
		return "", err
	}

	re, err := regexp.Compile(params.Pattern)
	if err != nil {
		return "", fmt.Errorf("bad pattern %q: %w", params.Pattern, err)
	}

	root := e.workDir
	if params.Path != "" {
		root, err = validatePath(e.workDir, params.Path)
		if err != nil {
			return "", err
		}
	}

	var out []string
	err = walkWorkspace(ctx, root, func(rel string, d fs.DirEntry) error {
		if d.IsDir() || len(out) >= maxSearchResults {
			return nil
		}
		if params.Glob != "" {
			ok, gerr := matchGlob(params.Glob, rel)
			if gerr != nil || !ok {
				return gerr
			}
		}

		data, rerr := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
		if rerr != nil {
			return nil // unreadable files are skipped, not fatal
		}
		if isBinary(data) {
			return nil
		}

		for i, line := range strings.Split(string(data), "\n") {
			if re.MatchString(line) {
				out = append(out, fmt.Sprintf("%s:%d:%s", rel, i+1, line))
				if len(out) >= maxSearchResults {
					return nil
				}
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	if len(out) == 0 {
		return "no matches for " + params.Pattern, nil
	}
	return strings.Join(out, "\n"), nil
}

// =============================================================================
// WALK HELPERS
// =============================================================================

// walkWorkspace walks root, skipping noise directories, calling fn with
// slash-separated paths relative to root.
func walkWorkspace(ctx context.Context, root string, fn func(rel string, d fs.DirEntry) error) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // permission errors are skipped
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if d.IsDir() && skipDirs[d.Name()] {
			return filepath.SkipDir
		}
		rel, rerr := filepath.Rel(root, path)
		if rerr != nil || rel == "." {
			return nil
		}
		return fn(filepath.ToSlash(rel), d)
	})
}

// isBinary applies the classic NUL-byte sniff to the first 8KB.
func isBinary(data []byte) bool {
	n := len(data)
	if n > 8192 {
		n = 8192
	}
	for _, b := range data[:n] {
		if b == 0 {
			return true
		}
	}
	return false
}
