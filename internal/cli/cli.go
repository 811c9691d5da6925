// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - command routing and usage text for convo.
package cli

import (
	"fmt"
	"os"
	"runtime"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command represents the CLI command to execute.
type Command int

const (
	CmdTUI Command = iota
	CmdServe
	CmdExport
	CmdConfig
	CmdVersion
	CmdHelp
)

// Args holds parsed CLI arguments.
type Args struct {
	// Global flags
	ConfigPath string
	Addr       string
	Verbose    bool

	// Command-specific
	Format     string // export: json|text|markdown|html
	Output     string // export: destination file, stdout when empty
	ConfigKey  string
	ConfigVal  string
	Subcommand string

	// Raw args (remaining after flag parsing)
	Raw []string
}

const usageText = `convo - streaming conversation client for the Anthropic API

Convo runs a local context server that streams model turns over SSE
and a terminal client that mirrors it.

Usage:
  convo                      Start the TUI against a running server
  convo serve                Run the context server
  convo export [flags]       Export the conversation
  convo config [show|set]    Configuration
  convo version              Show version information
  convo help                 Show this help

Export flags:
  --format FMT               json, text, markdown or html (default json)
  --output FILE, -o FILE     Write to FILE instead of stdout

Global flags:
  --config FILE              Config file (default ~/.convo/config.toml)
  --addr HOST:PORT           Server address override
  --verbose                  Verbose logging

Examples:
  convo serve
  convo
  convo export --format html -o conversation.html
  convo config set api.model claude-sonnet-4-20250514
`

// Parse reads os.Args and returns the command plus its parsed arguments.
func Parse() (Command, Args) {
	raw := os.Args[1:]

	cmd := CmdTUI
	if len(raw) > 0 {
		switch raw[0] {
		case "serve", "server":
			cmd, raw = CmdServe, raw[1:]
		case "export":
			cmd, raw = CmdExport, raw[1:]
		case "config":
			cmd, raw = CmdConfig, raw[1:]
		case "version", "-v", "--version":
			cmd, raw = CmdVersion, raw[1:]
		case "help", "-h", "--help":
			cmd, raw = CmdHelp, raw[1:]
		case "tui":
			cmd, raw = CmdTUI, raw[1:]
		}
	}

	parser := NewArgParser(raw)
	args := Args{
		ConfigPath: parser.Flag("config"),
		Addr:       parser.Flag("addr"),
		Verbose:    parser.BoolFlag("verbose"),
		Format:     parser.Flag("format"),
		Output:     parser.FlagOr("output", parser.Flag("o")),
		Subcommand: parser.Subcommand(),
		Raw:        parser.Positional(),
	}
	if cmd == CmdConfig && args.Subcommand == "set" {
		rest := parser.Positional()
		if len(rest) > 1 {
			args.ConfigKey = rest[1]
		}
		if len(rest) > 2 {
			args.ConfigVal = rest[2]
		}
	}
	return cmd, args
}

// PrintUsage writes the top-level usage text.
func PrintUsage() {
	fmt.Print(usageText)
}

// PrintVersion writes version and build information.
func PrintVersion() {
	fmt.Printf("convo %s\n", Version)
	fmt.Printf("  commit:  %s\n", GitCommit)
	fmt.Printf("  built:   %s\n", BuildDate)
	fmt.Printf("  runtime: %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
