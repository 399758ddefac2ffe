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
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/AleutianAI/documind/cmd/documind/internal/api"
	"github.com/AleutianAI/documind/cmd/documind/internal/session"
	"github.com/AleutianAI/documind/pkg/ux"
	"github.com/spf13/cobra"
)

const inputHistorySize = 50

var replCommands = []ux.CommandHelp{
	{Usage: "/help", Description: "show this list"},
	{Usage: "/models", Description: "refresh and list models"},
	{Usage: "/model [name]", Description: "select a model, or pick from a list"},
	{Usage: "/ingest <file.pdf>", Description: "upload a PDF"},
	{Usage: "/url <url>", Description: "ingest a web page or PDF link"},
	{Usage: "/questions", Description: "show the suggested questions"},
	{Usage: "/q <n>", Description: "ask suggested question n"},
	{Usage: "/audio", Description: "generate an audio summary"},
	{Usage: "/page <n>", Description: "set the current page"},
	{Usage: "/reset", Description: "start a new conversation"},
	{Usage: "/clear", Description: "remove documents on the backend and reset"},
	{Usage: "/cancel", Description: "stop the answer being streamed"},
	{Usage: "/exit", Description: "leave the chat"},
}

// =============================================================================
// Commands
// =============================================================================

func runChatCommand(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, app *App) error {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		runner := newREPLRunner(app, NewInteractiveInputReader(inputHistorySize))
		defer runner.Close()

		if stopWatch, err := app.watchConfig(ctx); err != nil {
			slog.Warn("config reload disabled", "error", err)
		} else {
			defer stopWatch()
		}

		// Ctrl-C stops a streaming answer; at the prompt it ends the session.
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt)
		defer signal.Stop(sigCh)
		go func() {
			for {
				select {
				case <-sigCh:
					if !runner.Interrupt() {
						cancel()
						return
					}
				case <-ctx.Done():
					return
				}
			}
		}()

		err := runner.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
}

func runAskCommand(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, app *App) error {
		ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
		defer stop()
		return ask(ctx, app, strings.Join(args, " "), askMarkdown || app.Config.UX.Markdown)
	})
}

// ask streams one answer to app.Out. A partial answer is printed and
// reported as an error.
func ask(ctx context.Context, app *App, question string, markdown bool) error {
	app.ensureModel(ctx)

	_, detach := app.attachRenderer(ux.WithMarkdown(markdown))
	defer detach()

	result, err := app.Session.Submit(ctx, question)
	if err != nil {
		var streamErr *session.StreamError
		if errors.As(err, &streamErr) {
			app.UI.Interrupted(streamErr.Err)
		}
		return err
	}
	slog.Debug("answer complete",
		"request_id", result.RequestID,
		"records", result.Records,
		"dropped", result.Dropped,
		"duration", result.Duration,
	)
	return nil
}

// =============================================================================
// REPL Runner
// =============================================================================

// replRunner implements ChatRunner over a session controller.
type replRunner struct {
	app     *App
	session *session.Controller
	ui      ux.ChatUI
	input   InputReader
	out     io.Writer

	// pick chooses a model interactively; swapped in tests.
	pick func(models []string, selected string) (string, error)

	detach  func()
	stats   ux.SessionStats
	started time.Time
}

func newREPLRunner(app *App, input InputReader) *replRunner {
	r := &replRunner{
		app:     app,
		session: app.Session,
		ui:      app.UI,
		input:   input,
		out:     app.Out,
		pick:    pickModelInteractively,
	}
	_, r.detach = app.attachRenderer(ux.WithMarkdown(app.Config.UX.Markdown))
	return r
}

// Interrupt cancels a streaming answer. It returns false when nothing was
// streaming, which the caller treats as a request to leave.
func (r *replRunner) Interrupt() bool {
	return r.session.Cancel()
}

func (r *replRunner) Run(ctx context.Context) error {
	r.started = time.Now()
	defer func() {
		r.stats.Duration = time.Since(r.started)
		r.ui.SessionEnd(r.session.SessionID(), &r.stats)
	}()

	if _, err := r.session.RefreshModels(ctx); err != nil {
		r.ui.Error(fmt.Errorf("list models: %w", err))
	}
	st := r.session.State()
	r.ui.Header(ux.HeaderConfig{
		SessionID: r.session.SessionID(),
		Model:     st.SelectedModel,
		BaseURL:   r.app.Client.BaseURL(),
		Document:  st.ActiveDocument,
	})

	for {
		if p, ok := r.input.(PromptingInputReader); ok {
			p.SetPrompt(r.ui.Prompt())
		} else {
			_, _ = fmt.Fprint(r.out, r.ui.Prompt())
		}

		line, err := r.readLine(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		switch {
		case line == "":
			continue
		case isExitCommand(line):
			return nil
		case strings.HasPrefix(line, "/"):
			r.handleCommand(ctx, line)
		default:
			r.ask(ctx, line)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
	}
}

func (r *replRunner) Close() error {
	if r.detach != nil {
		r.detach()
		r.detach = nil
	}
	return nil
}

// readLine reads in a goroutine so cancellation is not stuck behind a
// blocking terminal read.
func (r *replRunner) readLine(ctx context.Context) (string, error) {
	type result struct {
		line string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		line, err := r.input.ReadLine()
		ch <- result{line, err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		return res.line, res.err
	}
}

func (r *replRunner) ask(ctx context.Context, text string) {
	result, err := r.session.Submit(ctx, text)
	var streamErr *session.StreamError
	switch {
	case err == nil:
		r.stats.MessageCount++
		r.stats.SourcesUsed += len(result.Sources)
		if r.stats.FirstResponseLatency == 0 {
			r.stats.FirstResponseLatency = result.TimeToFirstToken
		}
	case errors.As(err, &streamErr):
		r.stats.MessageCount++
		r.stats.Interrupted++
		r.ui.Interrupted(streamErr.Err)
	default:
		r.ui.Error(err)
	}
}

// handleCommand runs one slash command. Errors are shown, never returned.
func (r *replRunner) handleCommand(ctx context.Context, line string) {
	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "/help":
		r.ui.Help(replCommands)

	case "/models":
		models, err := r.session.RefreshModels(ctx)
		if err != nil {
			r.ui.Error(err)
			return
		}
		r.ui.Models(models, r.session.State().SelectedModel)

	case "/model":
		r.selectModel(ctx, arg)

	case "/ingest":
		if arg == "" {
			r.ui.Error(errors.New("usage: /ingest <file.pdf>"))
			return
		}
		var resp *api.IngestResponse
		err := r.withSpinner("Ingesting "+arg, func() (err error) {
			resp, err = r.session.IngestFile(ctx, arg)
			return err
		})
		if err == nil {
			r.ui.Document(arg, resp.SuggestedQuestions)
		}

	case "/url":
		if arg == "" {
			r.ui.Error(errors.New("usage: /url <url>"))
			return
		}
		var resp *api.IngestResponse
		err := r.withSpinner("Ingesting "+arg, func() (err error) {
			resp, err = r.session.IngestURL(ctx, arg)
			return err
		})
		if err == nil {
			r.ui.Document(arg, resp.SuggestedQuestions)
		}

	case "/questions":
		r.ui.Questions(r.session.State().SuggestedQuestions)

	case "/q":
		n, err := strconv.Atoi(arg)
		if err != nil {
			r.ui.Error(errors.New("usage: /q <n>"))
			return
		}
		question, ok := r.session.Question(n)
		if !ok {
			r.ui.Error(fmt.Errorf("no suggested question %d", n))
			return
		}
		r.ask(ctx, question)

	case "/audio":
		var resp *api.AudioResponse
		err := r.withSpinner("Generating audio summary", func() (err error) {
			resp, err = r.session.GenerateAudio(ctx)
			return err
		})
		if err == nil {
			r.ui.Audio(resp.AudioURL, resp.Script)
		}

	case "/page":
		n, err := strconv.Atoi(arg)
		if err != nil {
			r.ui.Error(errors.New("usage: /page <n>"))
			return
		}
		if err := r.session.SetCurrentPage(n); err != nil {
			r.ui.Error(err)
			return
		}
		r.ui.Status("page", strconv.Itoa(n))

	case "/reset":
		if err := r.session.Reset(); err != nil {
			r.ui.Error(err)
			return
		}
		r.ui.Status("conversation", "reset")

	case "/clear":
		if err := r.session.Clear(ctx); err != nil {
			r.ui.Error(err)
			return
		}
		r.ui.Status("backend", "documents cleared")

	case "/cancel":
		if !r.session.Cancel() {
			r.ui.Status("cancel", "nothing is streaming")
		}

	default:
		r.ui.Error(fmt.Errorf("unknown command %s, try /help", name))
	}
}

func (r *replRunner) selectModel(ctx context.Context, name string) {
	if name == "" {
		models, err := r.session.RefreshModels(ctx)
		if err != nil {
			r.ui.Error(err)
			return
		}
		selected := r.session.State().SelectedModel
		if !ux.IsInteractive() {
			r.ui.Models(models, selected)
			return
		}
		name, err = r.pick(models, selected)
		if errors.Is(err, ux.ErrPromptCancelled) {
			return
		}
		if err != nil {
			r.ui.Error(err)
			return
		}
	}
	if err := r.session.SelectModel(name); err != nil {
		r.ui.Error(err)
		return
	}
	r.ui.Status("model", name)
}

// withSpinner runs fn behind a spinner and shows its error, if any.
func (r *replRunner) withSpinner(message string, fn func() error) error {
	spin := r.app.spinner(message)
	spin.Start()
	err := fn()
	spin.Stop()
	if err != nil {
		r.ui.Error(err)
	}
	return err
}

func pickModelInteractively(models []string, selected string) (string, error) {
	if len(models) == 0 {
		return "", errors.New("the backend offers no models")
	}
	return ux.SelectOption("Choose a model", ux.ModelOptions(models, selected))
}
