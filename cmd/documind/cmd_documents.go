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
	"log/slog"
	"os"

	"github.com/AleutianAI/documind/cmd/documind/config"
	"github.com/AleutianAI/documind/pkg/ux"
	"github.com/spf13/cobra"
)

func runModelsCommand(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, app *App) error {
		return listModels(ctx, app, pickModel, pickModelInteractively)
	})
}

// listModels prints the model list. With pick, the chosen model is saved
// as chat.model so later sessions start with it.
func listModels(ctx context.Context, app *App, pick bool, picker func([]string, string) (string, error)) error {
	models, err := app.Session.RefreshModels(ctx)
	if err != nil {
		return err
	}
	selected := app.Session.State().SelectedModel
	if !pick {
		app.UI.Models(models, selected)
		return nil
	}

	choice, err := picker(models, selected)
	if errors.Is(err, ux.ErrPromptCancelled) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := app.Session.SelectModel(choice); err != nil {
		return err
	}

	if err := config.Update(app.ConfigPath, func(c *config.DocuMindConfig) { c.Chat.Model = choice }); err != nil {
		return fmt.Errorf("save model choice: %w", err)
	}
	slog.Info("default model saved", "model", choice, "config", app.ConfigPath)
	app.UI.Status("model", choice)
	return nil
}

func runIngestCommand(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, app *App) error {
		return ingestFile(ctx, app, args[0])
	})
}

func ingestFile(ctx context.Context, app *App, path string) error {
	spin := app.spinner("Ingesting " + path)
	spin.Start()
	resp, err := app.Session.IngestFile(ctx, path)
	spin.Stop()
	if err != nil {
		return err
	}
	app.UI.Document(path, resp.SuggestedQuestions)
	return nil
}

func runIngestURLCommand(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, app *App) error {
		return ingestURL(ctx, app, args[0])
	})
}

func ingestURL(ctx context.Context, app *App, rawURL string) error {
	spin := app.spinner("Ingesting " + rawURL)
	spin.Start()
	resp, err := app.Session.IngestURL(ctx, rawURL)
	spin.Stop()
	if err != nil {
		return err
	}
	name := rawURL
	if resp.Filename != "" {
		name = resp.Filename
	}
	app.UI.Document(name, resp.SuggestedQuestions)
	return nil
}

func runAudioCommand(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, app *App) error {
		return generateAudio(ctx, app, audioOut)
	})
}

// generateAudio requests a summary and, when out is set, downloads it.
func generateAudio(ctx context.Context, app *App, out string) error {
	spin := app.spinner("Generating audio summary")
	spin.Start()
	resp, err := app.Session.GenerateAudio(ctx)
	spin.Stop()
	if err != nil {
		return err
	}

	link, err := app.Client.Resolve(resp.AudioURL)
	if err != nil {
		link = resp.AudioURL
	}
	app.UI.Audio(link, resp.Script)
	if out == "" {
		return nil
	}

	f, err := os.Create(out)
	if err != nil {
		return fmt.Errorf("create %s: %w", out, err)
	}
	n, err := app.Client.Download(ctx, resp.AudioURL, f)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(out)
		return err
	}
	app.UI.Status("saved", fmt.Sprintf("%s (%d bytes)", out, n))
	return nil
}

func runClearCommand(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, app *App) error {
		resp, err := app.Client.Clear(ctx)
		if err != nil {
			return err
		}
		app.UI.Status("cleared", resp.Message)
		return nil
	})
}

func runHealthCommand(cmd *cobra.Command, args []string) error {
	return withApp(cmd, func(ctx context.Context, app *App) error {
		return checkHealth(ctx, app)
	})
}

func checkHealth(ctx context.Context, app *App) error {
	resp, err := app.Client.Health(ctx)
	if err != nil {
		app.UI.Status("status", "unreachable")
		return err
	}
	app.UI.Status("status", resp.Status)
	app.UI.Status("service", resp.Service)
	app.UI.Status("backend", app.Client.BaseURL())
	return nil
}
