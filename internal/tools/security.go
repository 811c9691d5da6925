// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tools

import (
	"fmt"
	"path/filepath"
	"strings"
)

// =============================================================================
// PATH VALIDATION
// =============================================================================

// blockedShellFiles are shell startup files that tools never touch. Writing
// them is a persistence vector.
var blockedShellFiles = []string{
	".bashrc",
	".bash_profile",
	".bash_login",
	".profile",
	".zshrc",
	".zprofile",
	".config/fish/config.fish",
}

// blockedSensitiveDirs hold credentials and keys.
var blockedSensitiveDirs = []string{
	".ssh/",
	".gnupg/",
	".aws/",
	".kube/",
	".docker/",
}

// validatePath resolves a tool-supplied path against the workspace root and
// rejects anything that escapes it or targets a blocked location. Returns
// the cleaned absolute path.
func validatePath(workDir, path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("empty path")
	}

	abs := path
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(workDir, abs)
	}
	abs = filepath.Clean(abs)

	rel, err := filepath.Rel(workDir, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q is outside the workspace", path)
	}

	slashRel := filepath.ToSlash(rel)
	base := filepath.Base(slashRel)
	for _, blocked := range blockedShellFiles {
		if base == filepath.Base(blocked) || slashRel == blocked || strings.HasSuffix(slashRel, "/"+blocked) {
			return "", fmt.Errorf("path %q targets a shell startup file", path)
		}
	}
	for _, dir := range blockedSensitiveDirs {
		if strings.HasPrefix(slashRel, dir) || strings.Contains(slashRel, "/"+dir) {
			return "", fmt.Errorf("path %q targets a sensitive directory", path)
		}
	}
	return abs, nil
}
