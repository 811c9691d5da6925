// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// handlers.go - the non-interactive commands: config and export.
package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/convo-tui/internal/config"
	"github.com/jeranaias/convo-tui/internal/export"
	"github.com/jeranaias/convo-tui/internal/ui"
	"github.com/jeranaias/convo-tui/internal/util"
)

// =============================================================================
// CONFIG COMMAND
// =============================================================================

// HandleConfig implements `convo config [show|set|path]`.
func HandleConfig(args Args) error {
	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}

	switch args.Subcommand {
	case "", "show":
		return printConfig(cfg)

	case "path":
		path := args.ConfigPath
		if path == "" {
			if path, err = config.ConfigPath(); err != nil {
				return err
			}
		}
		fmt.Println(path)
		return nil

	case "set":
		if args.ConfigKey == "" || args.ConfigVal == "" {
			return UsageError("config set needs a key and a value")
		}
		if err := setConfigValue(cfg, args.ConfigKey, args.ConfigVal); err != nil {
			return err
		}
		if args.ConfigPath != "" {
			err = config.SaveToPath(cfg, args.ConfigPath)
		} else {
			err = config.Save(cfg)
		}
		if err != nil {
			return &CommandError{Message: "saving config", Code: ExitConfigError, Cause: err}
		}
		fmt.Printf("%s = %s\n", args.ConfigKey, args.ConfigVal)
		return nil

	default:
		return UsageError("unknown config subcommand %q", args.Subcommand)
	}
}

// printConfig writes the config as TOML with the API key redacted.
func printConfig(cfg *config.Config) error {
	shown := *cfg
	if shown.API.Key != "" {
		shown.API.Key = "<set>"
	}
	if shown.Server.AuthToken != "" {
		shown.Server.AuthToken = "<set>"
	}
	return toml.NewEncoder(os.Stdout).Encode(shown)
}

// setConfigValue assigns one dotted key. Unknown keys are an error so a
// typo never silently writes a dead setting.
func setConfigValue(cfg *config.Config, key, value string) error {
	switch strings.ToLower(key) {
	case "api.key":
		cfg.API.Key = value
	case "api.base_url":
		cfg.API.BaseURL = value
	case "api.model":
		cfg.API.Model = value
	case "api.max_tokens":
		n, err := strconv.Atoi(value)
		if err != nil {
			return UsageError("api.max_tokens must be an integer: %q", value)
		}
		cfg.API.MaxTokens = n
	case "api.system_prompt":
		cfg.API.SystemPrompt = value
	case "server.addr":
		cfg.Server.Addr = value
	case "server.auth_token":
		cfg.Server.AuthToken = value
	case "server.rate_limit":
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return UsageError("server.rate_limit must be a number: %q", value)
		}
		cfg.Server.RateLimit = f
	case "server.rate_burst":
		n, err := strconv.Atoi(value)
		if err != nil {
			return UsageError("server.rate_burst must be an integer: %q", value)
		}
		cfg.Server.RateBurst = n
	case "tools.enabled":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return UsageError("tools.enabled must be true or false: %q", value)
		}
		cfg.Tools.Enabled = b
	case "tools.work_dir":
		cfg.Tools.WorkDir = value
	case "tools.timeout_secs":
		n, err := strconv.Atoi(value)
		if err != nil {
			return UsageError("tools.timeout_secs must be an integer: %q", value)
		}
		cfg.Tools.TimeoutSecs = n
	case "ui.theme":
		if value != "dark" && value != "light" {
			return UsageError("ui.theme must be dark or light: %q", value)
		}
		cfg.UI.Theme = value
	case "ui.overscan":
		n, err := strconv.Atoi(value)
		if err != nil {
			return UsageError("ui.overscan must be an integer: %q", value)
		}
		cfg.UI.Overscan = n
	default:
		return UsageError("unknown config key %q", key)
	}
	return cfg.Validate()
}

// =============================================================================
// EXPORT COMMAND
// =============================================================================

// HandleExport implements `convo export`. It pulls the snapshot from the
// running server and renders it locally, so the server stays the single
// source of truth for conversation state.
func HandleExport(args Args) error {
	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}

	format := args.Format
	if format == "" {
		format = "json"
	}
	exporter, err := export.ForFormat(format, export.DefaultOptions())
	if err != nil {
		return UsageError("%v", err)
	}

	api := ui.NewAPIClient(serverURL(cfg, args), cfg.Server.AuthToken)
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	snapshot, err := api.Snapshot(ctx)
	if err != nil {
		return NetworkError(err)
	}

	data, err := exporter.Export(snapshot)
	if err != nil {
		return err
	}

	if args.Output == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	path := args.Output
	if !strings.Contains(path, ".") {
		path += exporter.FileExtension()
	}
	if err := util.AtomicWriteFile(path, data, 0o644); err != nil {
		return err
	}
	fmt.Printf("Exported %d blocks to %s\n", snapshot.BlockCount(), path)
	return nil
}

// =============================================================================
// SHARED
// =============================================================================

// loadConfig loads the effective configuration for a command, honoring
// --config and --addr overrides plus environment variables.
func loadConfig(args Args) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if args.ConfigPath != "" {
		cfg, err = config.LoadFromPath(args.ConfigPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, &CommandError{Message: "loading config", Code: ExitConfigError, Cause: err}
	}
	if args.Addr != "" {
		cfg.Server.Addr = args.Addr
	}
	return cfg, nil
}

// serverURL builds the base URL for the configured server address.
func serverURL(cfg *config.Config, args Args) string {
	addr := cfg.Server.Addr
	if args.Addr != "" {
		addr = args.Addr
	}
	return "http://" + addr
}
