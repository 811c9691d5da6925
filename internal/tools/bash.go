// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// =============================================================================
// BASH
// =============================================================================

// maxBashTimeout is the hard cap regardless of what the model asks for.
const maxBashTimeout = 10 * time.Minute

// blockedCommandPatterns are substrings that fail a command outright.
var blockedCommandPatterns = []string{
	"rm -rf /",
	"rm -rf ~",
	"mkfs",
	"dd if=",
	":(){",
	"> /dev/sd",
}

var bashTool = &Tool{
	Name:        "bash",
	Description: "Run a shell command in the workspace root and return its combined output.",
	InputSchema: json.RawMessage(`{
		"type": "object",
		"properties": {
			"command": {"type": "string", "description": "Shell command to run"},
			"timeout_ms": {"type": "integer", "description": "Timeout in milliseconds"}
		},
		"required": ["command"]
	}`),
	Handler: runBash,
}

func runBash(ctx context.Context, e *Executor, input json.RawMessage) (string, error) {
	var params struct {
		Command   string `json:"command"`
		TimeoutMS int    `json:"timeout_ms"`
	}
	if err := decodeInput(input, &params); err != nil {
		return "", err
	}
	if strings.TrimSpace(params.Command) == "" {
		return "", fmt.Errorf("empty command")
	}
	for _, pattern := range blockedCommandPatterns {
		if strings.Contains(params.Command, pattern) {
			return "", fmt.Errorf("command contains blocked pattern %q", pattern)
		}
	}

	if params.TimeoutMS > 0 {
		timeout := time.Duration(params.TimeoutMS) * time.Millisecond
		if timeout > maxBashTimeout {
			timeout = maxBashTimeout
		}
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, "sh", "-c", params.Command)
	cmd.Dir = e.workDir

	output, err := cmd.CombinedOutput()
	if ctx.Err() == context.DeadlineExceeded {
		return "", fmt.Errorf("command timed out: %s", params.Command)
	}
	if err != nil {
		// Non-zero exit is a result for the model, not an executor failure:
		// include whatever the command printed.
		return fmt.Sprintf("%s\n[%v]", strings.TrimRight(string(output), "\n"), err), nil
	}
	return string(output), nil
}
