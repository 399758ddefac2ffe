// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ux

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/AleutianAI/documind/pkg/conversation"
)

// HeaderConfig contains what the chat header shows.
//
// # Fields
//
//   - SessionID: sent with every chat request.
//   - Model: the selected model. Empty until the list is fetched.
//   - BaseURL: the backend root.
//   - Document: the active document, if any.
type HeaderConfig struct {
	SessionID string
	Model     string
	BaseURL   string
	Document  string
}

// SessionStats aggregates metrics from a chat session for display.
//
// # Fields
//
//   - MessageCount: Number of answered questions
//   - Interrupted: Number of answers that ended early
//   - SourcesUsed: Number of distinct cited documents
//   - Duration: Total session duration
//   - FirstResponseLatency: Time to first token of the first answer
type SessionStats struct {
	MessageCount         int
	Interrupted          int
	SourcesUsed          int
	Duration             time.Duration
	FirstResponseLatency time.Duration
}

// CommandHelp describes one REPL command for the help listing.
type CommandHelp struct {
	Usage       string
	Description string
}

// ChatUI defines the chat user interface operations. Implementations
// render to different outputs by personality level.
type ChatUI interface {
	// Header displays the session header.
	Header(config HeaderConfig)

	// Prompt returns the styled input prompt string.
	Prompt() string

	// Response displays a complete answer.
	Response(answer string)

	// Sources displays the citations attached to an answer.
	Sources(sources []conversation.Citation)

	// NoSources displays a note for an answer without citations.
	NoSources()

	// Error displays a chat error.
	Error(err error)

	// Interrupted notes that an answer ended early and is partial.
	Interrupted(err error)

	// Models lists available models, marking the selected one.
	Models(models []string, selected string)

	// Questions lists suggested questions, numbered from 1.
	Questions(questions []string)

	// Document reports a successful ingestion.
	Document(name string, questions []string)

	// Audio reports a generated audio summary.
	Audio(url, script string)

	// Help lists REPL commands.
	Help(commands []CommandHelp)

	// Status reports one labelled value, e.g. backend health.
	Status(key, value string)

	// SessionEnd displays the goodbye with session statistics. stats may
	// be nil.
	SessionEnd(sessionID string, stats *SessionStats)
}

// terminalChatUI implements ChatUI for terminal output
type terminalChatUI struct {
	writer      io.Writer
	personality PersonalityLevel
}

// write is a helper that writes formatted output. Terminal write errors
// have no meaningful recovery and are ignored.
func (u *terminalChatUI) write(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(u.writer, format, args...)
}

func (u *terminalChatUI) writeln(args ...interface{}) {
	_, _ = fmt.Fprintln(u.writer, args...)
}

// NewChatUIWithWriter creates a ChatUI with a custom writer. A nil writer
// means stdout.
func NewChatUIWithWriter(w io.Writer, personality PersonalityLevel) ChatUI {
	if w == nil {
		w = os.Stdout
	}
	return &terminalChatUI{
		writer:      w,
		personality: personality,
	}
}

// Header displays the chat session header.
func (u *terminalChatUI) Header(config HeaderConfig) {
	switch u.personality {
	case PersonalityMachine:
		parts := []string{"session=" + config.SessionID}
		if config.Model != "" {
			parts = append(parts, "model="+config.Model)
		}
		if config.BaseURL != "" {
			parts = append(parts, "backend="+config.BaseURL)
		}
		if config.Document != "" {
			parts = append(parts, "document="+config.Document)
		}
		u.write("CHAT_START: %s\n", strings.Join(parts, " "))
		return

	case PersonalityMinimal, PersonalityStandard:
		u.write("DocuMind chat (model: %s)\n", orNone(config.Model))
		if config.Document != "" {
			u.write("Document: %s\n", config.Document)
		}
		u.writeln("Type '/help' for commands, '/exit' to end.")
		return
	}

	var content strings.Builder
	content.WriteString(Styles.Highlight.Render("DocuMind"))
	content.WriteString("\n")
	content.WriteString(fmt.Sprintf("Model: %s", Styles.Success.Render(orNone(config.Model))))
	if config.BaseURL != "" {
		content.WriteString(fmt.Sprintf("\nBackend: %s", Styles.Muted.Render(config.BaseURL)))
	}
	if config.Document != "" {
		content.WriteString(fmt.Sprintf("\nDocument: %s", Styles.Success.Render(config.Document)))
	} else {
		content.WriteString("\n" + Styles.Muted.Render("(no document yet, try /ingest <file.pdf>)"))
	}
	if config.SessionID != "" {
		content.WriteString(fmt.Sprintf("\nSession: %s", Styles.Muted.Render(config.SessionID)))
	}

	u.writeln(Styles.Box.Width(boxWidth).Render(content.String()))
	u.writeln()
	u.writeln(Styles.Muted.Render("Type '/help' for commands, '/exit' to end. Ctrl-C stops an answer."))
	u.writeln()
}

// Prompt returns the styled input prompt string
func (u *terminalChatUI) Prompt() string {
	if u.personality == PersonalityMachine {
		return "> "
	}
	return Styles.Highlight.Render("> ")
}

// Response displays a complete answer
func (u *terminalChatUI) Response(answer string) {
	if u.personality == PersonalityMachine {
		u.write("ANSWER: %s\n", answer)
		return
	}
	u.writeln(answer)
}

// Sources displays the citations attached to an answer
func (u *terminalChatUI) Sources(sources []conversation.Citation) {
	if len(sources) == 0 {
		return
	}

	if u.personality == PersonalityMachine {
		for _, src := range sources {
			u.write("SOURCE: %s page=%d\n", src.Source, src.Page)
		}
		return
	}

	if u.personality != PersonalityFull {
		u.writeln("Sources:")
		for i, src := range sources {
			u.write("  %d. %s (p. %d)\n", i+1, src.Source, src.Page)
		}
		return
	}

	var content strings.Builder
	for i, src := range sources {
		content.WriteString(fmt.Sprintf("%d. %s%s", i+1, src.Source,
			Styles.Muted.Render(fmt.Sprintf(" (p. %d)", src.Page))))
		if i < len(sources)-1 {
			content.WriteString("\n")
		}
	}
	titleLine := Styles.Subtitle.Render("Sources")
	u.writeln(Styles.InfoBox.Width(boxWidth).Render(titleLine + "\n" + content.String()))
}

// NoSources displays a note for an answer without citations
func (u *terminalChatUI) NoSources() {
	if u.personality == PersonalityMachine {
		u.writeln("SOURCES: none")
		return
	}
	if u.personality == PersonalityFull {
		u.writeln(Styles.Muted.Render("(no sources cited)"))
	}
}

// Error displays a chat error message
func (u *terminalChatUI) Error(err error) {
	if u.personality == PersonalityMachine {
		u.write("CHAT_ERROR: %v\n", err)
		return
	}
	u.write("%s %s\n", IconError.Render(), Styles.Error.Render(fmt.Sprintf("Chat error: %v", err)))
}

// Interrupted notes that an answer ended early
func (u *terminalChatUI) Interrupted(err error) {
	if u.personality == PersonalityMachine {
		u.write("INTERRUPTED: %v\n", err)
		return
	}
	u.write("%s %s\n", IconWarning.Render(),
		Styles.Warning.Render(fmt.Sprintf("Answer interrupted, partial response kept: %v", err)))
}

// Models lists available models, marking the selected one
func (u *terminalChatUI) Models(models []string, selected string) {
	if u.personality == PersonalityMachine {
		for _, m := range models {
			mark := ""
			if m == selected {
				mark = " selected"
			}
			u.write("MODEL: %s%s\n", m, mark)
		}
		return
	}
	if len(models) == 0 {
		u.writeln(Styles.Muted.Render("(no models available)"))
		return
	}
	for _, m := range models {
		if m == selected {
			u.write("  %s %s\n", IconArrow.Render(), Styles.Highlight.Render(m))
			continue
		}
		u.write("    %s\n", m)
	}
}

// Questions lists suggested questions, numbered from 1
func (u *terminalChatUI) Questions(questions []string) {
	if u.personality == PersonalityMachine {
		for i, q := range questions {
			u.write("QUESTION %d: %s\n", i+1, q)
		}
		return
	}
	if len(questions) == 0 {
		u.writeln(Styles.Muted.Render("(no suggested questions)"))
		return
	}
	u.writeln(Styles.Subtitle.Render("Suggested questions"))
	for i, q := range questions {
		u.write("  %s %s\n", Styles.Highlight.Render(fmt.Sprintf("%d.", i+1)), q)
	}
	u.writeln(Styles.Muted.Render("Use /q <n> to ask one."))
}

// Document reports a successful ingestion
func (u *terminalChatUI) Document(name string, questions []string) {
	if u.personality == PersonalityMachine {
		u.write("DOCUMENT: %s\n", name)
		u.Questions(questions)
		return
	}
	u.write("%s %s %s\n", IconSuccess.Render(), Styles.Success.Render("Ingested"), name)
	if len(questions) > 0 {
		u.Questions(questions)
	}
}

// Audio reports a generated audio summary
func (u *terminalChatUI) Audio(url, script string) {
	if u.personality == PersonalityMachine {
		u.write("AUDIO_URL: %s\n", url)
		if script != "" {
			u.write("SCRIPT: %s\n", strings.ReplaceAll(script, "\n", " "))
		}
		return
	}
	u.write("%s Audio summary: %s\n", IconAudio.Render(), Styles.Highlight.Render(url))
	if script == "" {
		return
	}
	if u.personality == PersonalityFull {
		u.writeln(Styles.Box.Width(boxWidth).Render(Styles.Subtitle.Render("Script") + "\n" + script))
		return
	}
	u.writeln(script)
}

// Help lists REPL commands
func (u *terminalChatUI) Help(commands []CommandHelp) {
	width := 0
	for _, c := range commands {
		width = max(width, len(c.Usage))
	}
	for _, c := range commands {
		if u.personality == PersonalityMachine {
			u.write("COMMAND: %s\t%s\n", c.Usage, c.Description)
			continue
		}
		u.write("  %s  %s\n", Styles.Highlight.Render(fmt.Sprintf("%-*s", width, c.Usage)), Styles.Muted.Render(c.Description))
	}
}

// Status reports one labelled value. Machine output is "KEY: value".
func (u *terminalChatUI) Status(key, value string) {
	if u.personality == PersonalityMachine {
		u.write("%s: %s\n", machineKey(key), value)
		return
	}
	u.write("%s %s\n", Styles.Muted.Render(key+":"), value)
}

// SessionEnd displays session end information
func (u *terminalChatUI) SessionEnd(sessionID string, stats *SessionStats) {
	if stats == nil {
		stats = &SessionStats{}
	}

	switch u.personality {
	case PersonalityMachine:
		u.write("CHAT_END: session=%s messages=%d interrupted=%d sources=%d duration=%s\n",
			sessionID, stats.MessageCount, stats.Interrupted, stats.SourcesUsed, stats.Duration.Round(time.Millisecond))
		return
	case PersonalityMinimal, PersonalityStandard:
		u.writeln()
		u.write("Messages: %d | Sources: %d | Duration: %s\n",
			stats.MessageCount, stats.SourcesUsed, formatDuration(stats.Duration))
		u.writeln("Goodbye!")
		return
	}

	var content strings.Builder
	content.WriteString(Styles.Subtitle.Render("Session Summary"))
	content.WriteString("\n\n")
	if sessionID != "" {
		content.WriteString(fmt.Sprintf("  %s  %s\n", Styles.Muted.Render("ID:"), Styles.Highlight.Render(sessionID)))
	}
	content.WriteString(fmt.Sprintf("  %s  %d questions answered\n", IconBullet.Render(), stats.MessageCount))
	if stats.Interrupted > 0 {
		content.WriteString(fmt.Sprintf("  %s  %d answers interrupted\n", IconWarning.Render(), stats.Interrupted))
	}
	if stats.SourcesUsed > 0 {
		content.WriteString(fmt.Sprintf("  %s  %d documents cited\n", IconDoc.Render(), stats.SourcesUsed))
	}
	content.WriteString(fmt.Sprintf("  %s  %s session duration", IconBullet.Render(), formatDuration(stats.Duration)))
	if stats.FirstResponseLatency > 0 {
		content.WriteString(fmt.Sprintf("\n  %s  %s to first answer", IconBullet.Render(), formatDuration(stats.FirstResponseLatency)))
	}

	u.writeln()
	u.writeln(Styles.Box.Width(boxWidth).Render(content.String()))
	u.writeln(Styles.Highlight.Render("Goodbye!"))
}

// formatDuration formats a duration for human-readable display.
//
// # Examples
//
//	formatDuration(500*time.Millisecond) // "500ms"
//	formatDuration(5*time.Second)        // "5.0s"
//	formatDuration(90*time.Second)       // "1m 30s"
//	formatDuration(2*time.Hour)          // "2h 0m"
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		mins := int(d.Minutes())
		secs := int(d.Seconds()) % 60
		if secs == 0 {
			return fmt.Sprintf("%dm", mins)
		}
		return fmt.Sprintf("%dm %ds", mins, secs)
	}
	hours := int(d.Hours())
	mins := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh %dm", hours, mins)
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
