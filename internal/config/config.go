// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading for convo-tui.
//
// Settings come from ~/.convo/config.toml, overridden by environment
// variables, with built-in defaults underneath. The file can be watched
// for changes so a running server picks up edits without a restart.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/BurntSushi/toml"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config is the complete convo-tui configuration.
type Config struct {
	API    APIConfig    `toml:"api"`
	Server ServerConfig `toml:"server"`
	Tools  ToolsConfig  `toml:"tools"`
	UI     UIConfig     `toml:"ui"`
}

// APIConfig configures the model endpoint.
type APIConfig struct {
	// Key is the API key. Prefer setting it via CONVO_API_KEY or
	// ANTHROPIC_API_KEY rather than the config file.
	Key string `toml:"key"`

	// BaseURL is the API base URL.
	BaseURL string `toml:"base_url"`

	// Model is the model identifier used for new turns.
	Model string `toml:"model"`

	// MaxTokens caps the response length per turn.
	MaxTokens int `toml:"max_tokens"`

	// SystemPrompt is sent with every turn.
	SystemPrompt string `toml:"system_prompt"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	// Addr is the listen address, e.g. "127.0.0.1:8490".
	Addr string `toml:"addr"`

	// AuthToken, when set, requires a matching bearer token on every
	// request.
	AuthToken string `toml:"auth_token"`

	// RateLimit is requests per second per server; 0 disables limiting.
	RateLimit float64 `toml:"rate_limit"`

	// RateBurst is the rate limiter burst size.
	RateBurst int `toml:"rate_burst"`
}

// ToolsConfig configures tool execution.
type ToolsConfig struct {
	// Enabled exposes tools to the model.
	Enabled bool `toml:"enabled"`

	// WorkDir is the workspace root tools operate in. Default: the
	// process working directory.
	WorkDir string `toml:"work_dir"`

	// TimeoutSecs bounds a single tool call.
	TimeoutSecs int `toml:"timeout_secs"`
}

// UIConfig configures the terminal client.
type UIConfig struct {
	// Theme is "dark" or "light".
	Theme string `toml:"theme"`

	// Overscan is how many blocks beyond the viewport get rendered.
	Overscan int `toml:"overscan"`
}

// =============================================================================
// DEFAULTS
// =============================================================================

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:   "https://api.anthropic.com",
			Model:     "claude-sonnet-4-20250514",
			MaxTokens: 8192,
		},
		Server: ServerConfig{
			Addr:      "127.0.0.1:8490",
			RateLimit: 10,
			RateBurst: 20,
		},
		Tools: ToolsConfig{
			Enabled:     true,
			TimeoutSecs: 120,
		},
		UI: UIConfig{
			Theme:    "dark",
			Overscan: 3,
		},
	}
}

// =============================================================================
// PATHS
// =============================================================================

// ConfigDir returns the convo-tui config directory (~/.convo).
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".convo"), nil
}

// ConfigPath returns the path to the TOML config file.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// =============================================================================
// LOADING
// =============================================================================

// Load reads the config file if present, applies environment overrides and
// validates. A missing file is not an error; defaults apply.
func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFromPath(path)
}

// LoadFromPath loads configuration from a specific file path.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	}

	cfg.ApplyEnvOverrides()
	cfg.fillDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnvOverrides applies environment variables over the file values.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("CONVO_API_KEY"); v != "" {
		c.API.Key = v
	} else if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" && c.API.Key == "" {
		c.API.Key = v
	}
	if v := os.Getenv("CONVO_MODEL"); v != "" {
		c.API.Model = v
	}
	if v := os.Getenv("CONVO_BASE_URL"); v != "" {
		c.API.BaseURL = v
	}
	if v := os.Getenv("CONVO_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := os.Getenv("CONVO_AUTH_TOKEN"); v != "" {
		c.Server.AuthToken = v
	}
	if v := os.Getenv("CONVO_MAX_TOKENS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.API.MaxTokens = n
		}
	}
}

// fillDefaults backfills zero values left by a sparse config file.
func (c *Config) fillDefaults() {
	def := Default()
	if c.API.BaseURL == "" {
		c.API.BaseURL = def.API.BaseURL
	}
	if c.API.Model == "" {
		c.API.Model = def.API.Model
	}
	if c.API.MaxTokens == 0 {
		c.API.MaxTokens = def.API.MaxTokens
	}
	if c.Server.Addr == "" {
		c.Server.Addr = def.Server.Addr
	}
	if c.Server.RateBurst == 0 {
		c.Server.RateBurst = def.Server.RateBurst
	}
	if c.Tools.TimeoutSecs == 0 {
		c.Tools.TimeoutSecs = def.Tools.TimeoutSecs
	}
	if c.Tools.WorkDir == "" {
		if wd, err := os.Getwd(); err == nil {
			c.Tools.WorkDir = wd
		}
	}
	if c.UI.Theme == "" {
		c.UI.Theme = def.UI.Theme
	}
	if c.UI.Overscan == 0 {
		c.UI.Overscan = def.UI.Overscan
	}
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError reports one invalid configuration field.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// Validate checks the configuration for structurally invalid values. A
// missing API key is not a validation failure; it fails later, at send
// time, so read-only commands still work.
func (c *Config) Validate() error {
	if c.API.MaxTokens < 1 {
		return ValidationError{Field: "api.max_tokens", Message: "must be positive"}
	}
	if !strings.HasPrefix(c.API.BaseURL, "http://") && !strings.HasPrefix(c.API.BaseURL, "https://") {
		return ValidationError{Field: "api.base_url", Message: "must be an http(s) URL"}
	}
	if c.Server.RateLimit < 0 {
		return ValidationError{Field: "server.rate_limit", Message: "must not be negative"}
	}
	if c.UI.Theme != "dark" && c.UI.Theme != "light" {
		return ValidationError{Field: "ui.theme", Message: `must be "dark" or "light"`}
	}
	if c.UI.Overscan < 0 {
		return ValidationError{Field: "ui.overscan", Message: "must not be negative"}
	}
	return nil
}

// =============================================================================
// SAVING
// =============================================================================

// Save writes the configuration to the default path, creating the config
// directory if needed. The file is written 0600: it may hold the API key.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	return SaveToPath(cfg, path)
}

// SaveToPath writes the configuration as TOML to a specific path.
func SaveToPath(cfg *Config, path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return nil
}

// =============================================================================
// GLOBAL INSTANCE
// =============================================================================

var (
	globalMu     sync.RWMutex
	globalConfig *Config
)

// Global returns the process-wide configuration, loading it on first use.
func Global() *Config {
	globalMu.RLock()
	if globalConfig != nil {
		defer globalMu.RUnlock()
		return globalConfig
	}
	globalMu.RUnlock()

	globalMu.Lock()
	defer globalMu.Unlock()
	if globalConfig == nil {
		cfg, err := Load()
		if err != nil {
			cfg = Default()
		}
		globalConfig = cfg
	}
	return globalConfig
}

// SetGlobal replaces the process-wide configuration.
func SetGlobal(cfg *Config) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalConfig = cfg
}

// ResetGlobalForTesting clears the global instance.
func ResetGlobalForTesting() {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalConfig = nil
}
