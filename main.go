// convo - streaming conversation TUI and server for the Anthropic API.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/jeranaias/convo-tui/internal/claude"
	"github.com/jeranaias/convo-tui/internal/cli"
	"github.com/jeranaias/convo-tui/internal/config"
	"github.com/jeranaias/convo-tui/internal/model"
	"github.com/jeranaias/convo-tui/internal/search"
	"github.com/jeranaias/convo-tui/internal/server"
	"github.com/jeranaias/convo-tui/internal/tools"
	"github.com/jeranaias/convo-tui/internal/ui"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func init() {
	cli.Version = Version
	cli.GitCommit = GitCommit
	cli.BuildDate = BuildDate
}

func main() {
	cmd, args := cli.Parse()

	switch cmd {
	case cli.CmdServe:
		cli.HandleError(runServe(args))
	case cli.CmdTUI:
		cli.HandleError(runTUI(args))
	case cli.CmdExport:
		cli.HandleError(cli.HandleExport(args))
	case cli.CmdConfig:
		cli.HandleError(cli.HandleConfig(args))
	case cli.CmdVersion:
		cli.PrintVersion()
	case cli.CmdHelp:
		cli.PrintUsage()
	default:
		cli.PrintUsage()
		os.Exit(cli.ExitUsageError)
	}
}

// =============================================================================
// SERVE
// =============================================================================

// runServe wires the store, the model session, the tool executor and the
// search worker into the HTTP server and runs it until interrupted.
func runServe(args cli.Args) error {
	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}
	config.SetGlobal(cfg)

	store := model.NewStore()
	if cfg.API.SystemPrompt != "" {
		store.SetSystemPrompt(cfg.API.SystemPrompt)
	}

	var runner claude.ToolRunner
	if cfg.Tools.Enabled {
		workDir := cfg.Tools.WorkDir
		if workDir == "" {
			if workDir, err = os.Getwd(); err != nil {
				return err
			}
		}
		registry := tools.NewRegistry()
		executor := tools.NewExecutor(registry, workDir)
		if cfg.Tools.TimeoutSecs > 0 {
			executor.SetTimeout(time.Duration(cfg.Tools.TimeoutSecs) * time.Second)
		}
		store.SetTools(registry.Definitions())
		runner = executor
		log.Printf("tools enabled in %s", workDir)
	}

	clientCfg := claude.DefaultClientConfig()
	clientCfg.APIKey = cfg.API.Key
	if cfg.API.BaseURL != "" {
		clientCfg.BaseURL = cfg.API.BaseURL
	}
	clientCfg.Model = cfg.API.Model
	clientCfg.MaxTokens = cfg.API.MaxTokens
	session := claude.NewClient(clientCfg)

	adapter := claude.NewAdapter(session, store, runner, cfg.API.Model, cfg.API.MaxTokens)
	worker := search.NewWorker()

	srv := server.NewServer(cfg.Server.Addr, store, adapter, worker)
	if cfg.Server.RateLimit > 0 {
		srv.Use(server.RateLimitMiddleware(cfg.Server.RateLimit, cfg.Server.RateBurst))
	}
	if cfg.Server.AuthToken != "" {
		srv.Use(server.AuthMiddleware(cfg.Server.AuthToken))
	}

	// Hot-reload the config file: the API key swaps onto the live session
	// and the global snapshot updates. The listener and adapter keep their
	// startup settings.
	if watcher := watchConfig(args, session); watcher != nil {
		defer watcher.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()
	log.Printf("convo server %s listening on %s (model %s)", Version, cfg.Server.Addr, cfg.API.Model)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Println("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// watchConfig starts the config file watcher; failures only log because a
// server without hot reload is still a working server.
func watchConfig(args cli.Args, session *claude.Client) *config.Watcher {
	path := args.ConfigPath
	if path == "" {
		var err error
		if path, err = config.ConfigPath(); err != nil {
			return nil
		}
	}
	watcher, err := config.Watch(path,
		func(cfg *config.Config) {
			config.SetGlobal(cfg)
			session.SetAPIKey(cfg.API.Key)
			log.Println("config reloaded")
		},
		func(err error) {
			log.Printf("config reload failed: %v", err)
		})
	if err != nil {
		log.Printf("config watch unavailable: %v", err)
		return nil
	}
	return watcher
}

// =============================================================================
// TUI
// =============================================================================

// runTUI starts the terminal client against a running server.
func runTUI(args cli.Args) error {
	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}

	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		model.SetAssumedColumns(w - 4)
	}

	api := ui.NewAPIClient("http://"+cfg.Server.Addr, cfg.Server.AuthToken)
	theme := ui.NewTheme(cfg.UI.Theme != "light")
	m := ui.NewModel(api, theme, cfg.UI.Overscan)

	program := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("running TUI: %w", err)
	}
	return nil
}

// loadConfig loads the effective config, honoring --config and --addr.
func loadConfig(args cli.Args) (*config.Config, error) {
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
		return nil, err
	}
	if args.Addr != "" {
		cfg.Server.Addr = args.Addr
	}
	return cfg, nil
}
