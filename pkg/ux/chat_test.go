// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ux

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/AleutianAI/documind/pkg/conversation"
)

// =============================================================================
// terminalChatUI Tests
// =============================================================================

func TestNewChatUIWithWriter(t *testing.T) {
	if ui := NewChatUIWithWriter(&bytes.Buffer{}, PersonalityMachine); ui == nil {
		t.Fatal("NewChatUIWithWriter returned nil")
	}
}

func TestChatUI_Header_MachineMode(t *testing.T) {
	var buf bytes.Buffer
	ui := NewChatUIWithWriter(&buf, PersonalityMachine)

	ui.Header(HeaderConfig{SessionID: "default_session", Model: "llama3:8b", BaseURL: "http://localhost:8000"})

	want := "CHAT_START: session=default_session model=llama3:8b backend=http://localhost:8000\n"
	if got := buf.String(); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestChatUI_Header_MinimalMode(t *testing.T) {
	var buf bytes.Buffer
	ui := NewChatUIWithWriter(&buf, PersonalityMinimal)

	ui.Header(HeaderConfig{SessionID: "s", Document: "report.pdf"})

	out := buf.String()
	for _, want := range []string{"model: none", "Document: report.pdf", "/help"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in %q", want, out)
		}
	}
}

func TestChatUI_Header_FullMode(t *testing.T) {
	var buf bytes.Buffer
	ui := NewChatUIWithWriter(&buf, PersonalityFull)

	ui.Header(HeaderConfig{SessionID: "s", Model: "llama3:8b"})

	out := buf.String()
	if !strings.Contains(out, "llama3:8b") || !strings.Contains(out, "/ingest") {
		t.Errorf("unexpected header %q", out)
	}
}

func TestChatUI_Prompt(t *testing.T) {
	if got := NewChatUIWithWriter(&bytes.Buffer{}, PersonalityMachine).Prompt(); got != "> " {
		t.Errorf("expected '> ', got %q", got)
	}
	if got := NewChatUIWithWriter(&bytes.Buffer{}, PersonalityFull).Prompt(); !strings.Contains(got, ">") {
		t.Errorf("expected styled prompt, got %q", got)
	}
}

func TestChatUI_Response_MachineMode(t *testing.T) {
	var buf bytes.Buffer
	NewChatUIWithWriter(&buf, PersonalityMachine).Response("X is a thing.")
	if got := buf.String(); got != "ANSWER: X is a thing.\n" {
		t.Errorf("unexpected output %q", got)
	}
}

func TestChatUI_Sources(t *testing.T) {
	sources := []conversation.Citation{{Source: "doc.pdf", Page: 2}, {Source: "notes.pdf", Page: 7}}

	t.Run("machine", func(t *testing.T) {
		var buf bytes.Buffer
		NewChatUIWithWriter(&buf, PersonalityMachine).Sources(sources)
		want := "SOURCE: doc.pdf page=2\nSOURCE: notes.pdf page=7\n"
		if got := buf.String(); got != want {
			t.Errorf("expected %q, got %q", want, got)
		}
	})

	t.Run("minimal", func(t *testing.T) {
		var buf bytes.Buffer
		NewChatUIWithWriter(&buf, PersonalityMinimal).Sources(sources)
		if got := buf.String(); !strings.Contains(got, "1. doc.pdf (p. 2)") || !strings.Contains(got, "2. notes.pdf (p. 7)") {
			t.Errorf("unexpected output %q", got)
		}
	})

	t.Run("full", func(t *testing.T) {
		var buf bytes.Buffer
		NewChatUIWithWriter(&buf, PersonalityFull).Sources(sources)
		if got := buf.String(); !strings.Contains(got, "Sources") || !strings.Contains(got, "doc.pdf") {
			t.Errorf("unexpected output %q", got)
		}
	})

	t.Run("empty", func(t *testing.T) {
		var buf bytes.Buffer
		NewChatUIWithWriter(&buf, PersonalityFull).Sources(nil)
		if buf.Len() != 0 {
			t.Errorf("expected no output, got %q", buf.String())
		}
	})
}

func TestChatUI_NoSources(t *testing.T) {
	var buf bytes.Buffer
	NewChatUIWithWriter(&buf, PersonalityMachine).NoSources()
	if got := buf.String(); got != "SOURCES: none\n" {
		t.Errorf("unexpected output %q", got)
	}

	buf.Reset()
	NewChatUIWithWriter(&buf, PersonalityMinimal).NoSources()
	if buf.Len() != 0 {
		t.Errorf("expected no output in minimal mode, got %q", buf.String())
	}
}

func TestChatUI_ErrorAndInterrupted(t *testing.T) {
	var buf bytes.Buffer
	ui := NewChatUIWithWriter(&buf, PersonalityMachine)

	ui.Error(errors.New("connection refused"))
	ui.Interrupted(errors.New("stream idle timeout"))

	want := "CHAT_ERROR: connection refused\nINTERRUPTED: stream idle timeout\n"
	if got := buf.String(); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestChatUI_Models(t *testing.T) {
	var buf bytes.Buffer
	NewChatUIWithWriter(&buf, PersonalityMachine).Models([]string{"qwen3:0.6b", "llama3:8b"}, "llama3:8b")
	want := "MODEL: qwen3:0.6b\nMODEL: llama3:8b selected\n"
	if got := buf.String(); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}

	buf.Reset()
	NewChatUIWithWriter(&buf, PersonalityFull).Models(nil, "")
	if !strings.Contains(buf.String(), "no models") {
		t.Errorf("unexpected output %q", buf.String())
	}
}

func TestChatUI_QuestionsAndDocument(t *testing.T) {
	var buf bytes.Buffer
	ui := NewChatUIWithWriter(&buf, PersonalityMachine)

	ui.Document("report.pdf", []string{"What is X?", "Who wrote it?"})

	want := "DOCUMENT: report.pdf\nQUESTION 1: What is X?\nQUESTION 2: Who wrote it?\n"
	if got := buf.String(); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}

	buf.Reset()
	NewChatUIWithWriter(&buf, PersonalityMinimal).Questions([]string{"What is X?"})
	if !strings.Contains(buf.String(), "/q <n>") {
		t.Errorf("expected usage hint, got %q", buf.String())
	}
}

func TestChatUI_Audio(t *testing.T) {
	var buf bytes.Buffer
	NewChatUIWithWriter(&buf, PersonalityMachine).Audio("/static/summary.mp3", "Line one.\nLine two.")
	want := "AUDIO_URL: /static/summary.mp3\nSCRIPT: Line one. Line two.\n"
	if got := buf.String(); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestChatUI_Help(t *testing.T) {
	var buf bytes.Buffer
	NewChatUIWithWriter(&buf, PersonalityMachine).Help([]CommandHelp{
		{Usage: "/help", Description: "show commands"},
		{Usage: "/q <n>", Description: "ask suggested question n"},
	})
	want := "COMMAND: /help\tshow commands\nCOMMAND: /q <n>\task suggested question n\n"
	if got := buf.String(); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestChatUI_Status(t *testing.T) {
	var buf bytes.Buffer
	NewChatUIWithWriter(&buf, PersonalityMachine).Status("backend status", "healthy")
	if got := buf.String(); got != "BACKEND_STATUS: healthy\n" {
		t.Errorf("unexpected output %q", got)
	}

	buf.Reset()
	NewChatUIWithWriter(&buf, PersonalityMinimal).Status("saved", "summary.wav")
	if !strings.Contains(buf.String(), "saved:") || !strings.Contains(buf.String(), "summary.wav") {
		t.Errorf("unexpected output %q", buf.String())
	}
}

func TestChatUI_SessionEnd(t *testing.T) {
	stats := &SessionStats{MessageCount: 3, Interrupted: 1, SourcesUsed: 2, Duration: 1500 * time.Millisecond}

	var buf bytes.Buffer
	NewChatUIWithWriter(&buf, PersonalityMachine).SessionEnd("default_session", stats)
	want := "CHAT_END: session=default_session messages=3 interrupted=1 sources=2 duration=1.5s\n"
	if got := buf.String(); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}

	buf.Reset()
	NewChatUIWithWriter(&buf, PersonalityFull).SessionEnd("default_session", nil)
	if !strings.Contains(buf.String(), "Goodbye!") {
		t.Errorf("expected goodbye, got %q", buf.String())
	}
}

func TestFormatDuration(t *testing.T) {
	tests := map[time.Duration]string{
		500 * time.Millisecond: "500ms",
		5 * time.Second:        "5.0s",
		90 * time.Second:       "1m 30s",
		2 * time.Minute:        "2m",
		2 * time.Hour:          "2h 0m",
	}
	for in, want := range tests {
		if got := formatDuration(in); got != want {
			t.Errorf("formatDuration(%v) = %q, want %q", in, got, want)
		}
	}
}
