// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"github.com/spf13/cobra"
)

var (
	// Persistent flags
	configPath       string
	baseURL          string
	logLevel         string
	personalityLevel string

	// Command flags
	askMarkdown  bool
	pickModel    bool
	audioOut     string
	devAddr      string
	devTokenRate float64

	rootCmd = &cobra.Command{
		Use:   "documind",
		Short: "Chat with your documents from the terminal",
		Long: `documind talks to a DocuMind backend: ingest PDFs or web pages, ask
questions and watch the answers stream in with their sources, and
generate audio summaries.`,
		SilenceUsage: true,
	}

	chatCmd = &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat session",
		Long: `Opens a chat REPL. Type a question to stream an answer, or /help for
commands. Ctrl-C stops an answer that is streaming; Ctrl-C at the prompt
leaves the session.`,
		Args: cobra.NoArgs,
		RunE: runChatCommand, // Defined in cmd_chat.go
	}

	askCmd = &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask one question and print the streamed answer",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runAskCommand, // Defined in cmd_chat.go
	}

	modelsCmd = &cobra.Command{
		Use:   "models",
		Short: "List the chat models the backend offers",
		Long: `Lists the models the backend offers and marks the one chat would use.
With --pick, choose one interactively and save it as chat.model in the
config file.`,
		Args: cobra.NoArgs,
		RunE: runModelsCommand, // Defined in cmd_documents.go
	}

	ingestCmd = &cobra.Command{
		Use:   "ingest <file.pdf>",
		Short: "Upload a PDF to the backend",
		Args:  cobra.ExactArgs(1),
		RunE:  runIngestCommand, // Defined in cmd_documents.go
	}

	ingestURLCmd = &cobra.Command{
		Use:   "ingest-url <url>",
		Short: "Have the backend fetch and ingest a web page or PDF link",
		Args:  cobra.ExactArgs(1),
		RunE:  runIngestURLCommand, // Defined in cmd_documents.go
	}

	audioCmd = &cobra.Command{
		Use:   "audio",
		Short: "Generate an audio summary of the ingested document",
		Args:  cobra.NoArgs,
		RunE:  runAudioCommand, // Defined in cmd_documents.go
	}

	clearCmd = &cobra.Command{
		Use:   "clear",
		Short: "Remove every ingested document from the backend",
		Args:  cobra.NoArgs,
		RunE:  runClearCommand, // Defined in cmd_documents.go
	}

	healthCmd = &cobra.Command{
		Use:   "health",
		Short: "Check that the backend is reachable",
		Args:  cobra.NoArgs,
		RunE:  runHealthCommand, // Defined in cmd_documents.go
	}

	serveDevCmd = &cobra.Command{
		Use:   "serve-dev",
		Short: "Run a local development backend with canned answers",
		Long: `Serves the DocuMind HTTP API with canned answers so the CLI can be
exercised without a model server. By default it listens on the host and
port of server.base_url.`,
		Args: cobra.NoArgs,
		RunE: runServeDevCommand, // Defined in cmd_serve.go
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"Config file (default ~/.documind/documind.yaml)")
	rootCmd.PersistentFlags().StringVar(&baseURL, "base-url", "",
		"Backend URL, overrides server.base_url")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().StringVar(&personalityLevel, "personality", "",
		"Output style: full, standard, minimal, or machine (scripting)")

	rootCmd.AddCommand(chatCmd)

	rootCmd.AddCommand(askCmd)
	askCmd.Flags().BoolVar(&askMarkdown, "markdown", false, "Render the answer as markdown once it is complete")

	rootCmd.AddCommand(modelsCmd)
	modelsCmd.Flags().BoolVar(&pickModel, "pick", false, "Choose a model interactively and save it")

	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(ingestURLCmd)

	rootCmd.AddCommand(audioCmd)
	audioCmd.Flags().StringVarP(&audioOut, "out", "o", "", "Download the generated audio to this file")

	rootCmd.AddCommand(clearCmd)
	rootCmd.AddCommand(healthCmd)

	rootCmd.AddCommand(serveDevCmd)
	serveDevCmd.Flags().StringVar(&devAddr, "addr", "", "Listen address (default: host and port of server.base_url)")
	serveDevCmd.Flags().Float64Var(&devTokenRate, "token-rate", 20, "Streamed tokens per second, 0 for no pacing")
}
