// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/AleutianAI/documind/cmd/documind/config"
	"github.com/AleutianAI/documind/cmd/documind/internal/api"
	"github.com/AleutianAI/documind/cmd/documind/internal/session"
	"github.com/AleutianAI/documind/cmd/documind/internal/telemetry"
	"github.com/AleutianAI/documind/pkg/conversation"
	"github.com/AleutianAI/documind/pkg/logging"
	"github.com/AleutianAI/documind/pkg/ux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

const serviceName = "documind"

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// appOptions are the persistent flag values plus the output streams.
type appOptions struct {
	ConfigPath  string
	BaseURL     string
	LogLevel    string
	Personality string

	Out    io.Writer
	ErrOut io.Writer
}

func optionsFromCommand(cmd *cobra.Command) appOptions {
	return appOptions{
		ConfigPath:  configPath,
		BaseURL:     baseURL,
		LogLevel:    logLevel,
		Personality: personalityLevel,
		Out:         cmd.OutOrStdout(),
		ErrOut:      cmd.ErrOrStderr(),
	}
}

// App is everything a command needs, wired from the config file.
type App struct {
	Config     config.DocuMindConfig
	ConfigPath string

	Logger   *logging.Logger
	Registry *prometheus.Registry
	Metrics  *telemetry.StreamingMetrics
	Client   *api.Client
	Session  *session.Controller
	UI       ux.ChatUI

	Out    io.Writer
	ErrOut io.Writer

	stopMetrics     context.CancelFunc
	shutdownTracing func(context.Context) error

	// Settings given as flags win over later edits to the file.
	pinnedLevel   bool
	pinnedBaseURL bool
}

// newApp loads the config, installs logging and tracing, and builds the
// API client and session controller.
func newApp(ctx context.Context, opts appOptions) (*App, error) {
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.ErrOut == nil {
		opts.ErrOut = os.Stderr
	}

	path := opts.ConfigPath
	if path == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	cfg, err := config.Load(path, opts.ErrOut)
	if err != nil {
		return nil, err
	}
	if opts.BaseURL != "" {
		cfg.Server.BaseURL = opts.BaseURL
	}
	if opts.LogLevel != "" {
		cfg.Logging.Level = opts.LogLevel
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	level, err := logging.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	logger := logging.New(logging.Config{
		Level:      level,
		LogDir:     cfg.Logging.Dir,
		Service:    serviceName,
		JSON:       cfg.Logging.JSON,
		Output:     opts.ErrOut,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
	})
	logger.Install()

	app := &App{
		Config:     cfg,
		ConfigPath: path,
		Logger:     logger,
		Out:        opts.Out,
		ErrOut:     opts.ErrOut,

		pinnedLevel:   opts.LogLevel != "",
		pinnedBaseURL: opts.BaseURL != "",
	}

	app.shutdownTracing, err = telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: version,
		TraceExporter:  cfg.Telemetry.TraceExporter,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure:   cfg.Telemetry.OTLPInsecure,
	})
	if err != nil {
		_ = logger.Close()
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	app.Registry = prometheus.NewRegistry()
	app.Metrics = telemetry.NewStreamingMetrics(app.Registry)
	if cfg.Telemetry.MetricsAddr != "" {
		metricsCtx, cancel := context.WithCancel(context.Background())
		app.stopMetrics = cancel
		addr, err := telemetry.ServeMetrics(metricsCtx, cfg.Telemetry.MetricsAddr, app.Registry)
		if err != nil {
			_ = app.Close()
			return nil, err
		}
		slog.Info("serving metrics", "addr", addr.String())
	}

	app.Client, err = api.NewClient(api.ClientConfig{
		BaseURL:        cfg.Server.BaseURL,
		RequestTimeout: cfg.RequestTimeout(),
		ModelCacheTTL:  cfg.Models.CacheTTL,
	})
	if err != nil {
		_ = app.Close()
		return nil, err
	}

	app.Session, err = session.NewController(app.Client, conversation.NewStore(), session.Config{
		SessionID:            cfg.Chat.SessionID,
		PreferredModelMarker: cfg.Chat.PreferredModelMarker,
		Model:                cfg.Chat.Model,
		ChunkSize:            cfg.Chat.ChunkSize,
		StreamIdleTimeout:    cfg.Chat.StreamIdleTimeout,
		Metrics:              app.Metrics,
	})
	if err != nil {
		_ = app.Close()
		return nil, err
	}

	ux.InitPersonality(cfg.UX.Personality, cfg.UX.Markdown)
	if opts.Personality != "" {
		ux.SetPersonalityLevel(ux.ParsePersonalityLevel(opts.Personality))
	}
	app.UI = ux.NewChatUIWithWriter(opts.Out, app.Personality())

	slog.Debug("documind ready",
		"config", path,
		"base_url", cfg.Server.BaseURL,
		"session_id", cfg.Chat.SessionID,
		"personality", app.Personality(),
	)
	return app, nil
}

// Personality returns the active output level.
func (a *App) Personality() ux.PersonalityLevel {
	return ux.GetPersonality().Level
}

// attachRenderer streams the conversation to Out and shows a spinner while
// a request is waiting for its first byte. The returned func detaches it.
func (a *App) attachRenderer(opts ...ux.TranscriptOption) (*ux.TranscriptRenderer, func()) {
	renderer := ux.NewTranscriptRenderer(a.Out, a.Personality(), opts...)
	unsubscribe := a.Session.Store().Subscribe(renderer.Observe)
	unwatch := a.Session.Watch(func(s session.State) {
		if s.Phase == session.PhaseRequesting {
			renderer.StartWaiting("Thinking")
			return
		}
		renderer.StopWaiting()
	})
	return renderer, func() {
		unwatch()
		unsubscribe()
		renderer.StopWaiting()
	}
}

// spinner returns a progress spinner on ErrOut so Out stays parseable.
func (a *App) spinner(message string) *ux.Spinner {
	return ux.NewSpinnerWithWriter(a.ErrOut, message, a.Personality())
}

// ensureModel refreshes the model list when no model is selected yet.
func (a *App) ensureModel(ctx context.Context) {
	if a.Session.State().SelectedModel != "" {
		return
	}
	if _, err := a.Session.RefreshModels(ctx); err != nil {
		slog.Warn("could not list models", "error", err)
	}
}

// Close flushes telemetry and closes the log file.
func (a *App) Close() error {
	var errs []error
	if a.stopMetrics != nil {
		a.stopMetrics()
	}
	if a.shutdownTracing != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.shutdownTracing(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown tracing: %w", err))
		}
	}
	if a.Logger != nil {
		if err := a.Logger.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// watchConfig applies edits to the config file while a long-lived command
// runs. The returned function stops watching.
func (a *App) watchConfig(ctx context.Context) (stop func(), err error) {
	current := a.Config
	w, err := config.NewWatcher(a.ConfigPath, func(next config.DocuMindConfig) {
		a.applyConfig(current, next)
		current = next
	}, config.DefaultReloadDebounce)
	if err != nil {
		return nil, err
	}
	if err := w.Start(ctx); err != nil {
		_ = w.Stop()
		return nil, err
	}
	return func() { _ = w.Stop() }, nil
}

// applyConfig applies the settings that can change mid-session: the log
// level and the pinned model. Anything else is logged as needing a restart.
func (a *App) applyConfig(prev, next config.DocuMindConfig) {
	if !a.pinnedLevel && next.Logging.Level != prev.Logging.Level {
		if level, err := logging.ParseLevel(next.Logging.Level); err == nil {
			a.Logger.SetLevel(level)
			slog.Info("log level changed", "level", next.Logging.Level)
		}
	}

	if next.Chat.Model != "" && next.Chat.Model != prev.Chat.Model {
		if err := a.Session.SelectModel(next.Chat.Model); err != nil {
			slog.Warn("configured model not applied", "model", next.Chat.Model, "error", err)
		} else {
			slog.Info("model changed from config", "model", next.Chat.Model)
		}
	}

	if changed := a.restartOnlyChanges(prev, next); len(changed) > 0 {
		slog.Warn("config changes take effect on the next start", "sections", changed, "config", a.ConfigPath)
	}
}

// restartOnlyChanges names the config sections that differ but are baked
// into long-lived objects.
func (a *App) restartOnlyChanges(prev, next config.DocuMindConfig) []string {
	var changed []string
	prevServer, nextServer := prev.Server, next.Server
	if a.pinnedBaseURL {
		nextServer.BaseURL = prevServer.BaseURL
	}
	if prevServer != nextServer {
		changed = append(changed, "server")
	}

	prevChat, nextChat := prev.Chat, next.Chat
	prevChat.Model, nextChat.Model = "", ""
	if prevChat != nextChat {
		changed = append(changed, "chat")
	}

	if prev.Models != next.Models {
		changed = append(changed, "models")
	}

	prevLog, nextLog := prev.Logging, next.Logging
	prevLog.Level, nextLog.Level = "", ""
	if prevLog != nextLog {
		changed = append(changed, "logging")
	}

	if prev.Telemetry != next.Telemetry {
		changed = append(changed, "telemetry")
	}
	if prev.UX != next.UX {
		changed = append(changed, "ux")
	}
	return changed
}

// withApp builds the App for cmd, runs fn and closes the App.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, app *App) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	app, err := newApp(ctx, optionsFromCommand(cmd))
	if err != nil {
		return err
	}
	defer func() {
		if err := app.Close(); err != nil {
			slog.Warn("cleanup failed", "error", err)
		}
	}()
	return fn(ctx, app)
}
