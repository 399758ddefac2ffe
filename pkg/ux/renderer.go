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
	"sync"

	"github.com/AleutianAI/documind/pkg/conversation"
)

// TranscriptRenderer renders a conversation store to a terminal.
//
// # Description
//
// The renderer is a store observer: register Observe with
// conversation.Store.Subscribe and it prints what changed in each
// snapshot. Renderers only render; they never mutate the store.
//
// Behavior by personality:
//
//   - Full/Standard/Minimal: assistant text is printed as it arrives.
//     Citations are printed once the answer is final.
//   - Machine: nothing is printed until the answer is final, then
//     "ANSWER: ..." followed by "SOURCE: ..." lines.
//   - Markdown (non-machine): like machine, the answer is held until
//     final and then rendered through glamour.
//
// Answer text only ever grows, so the renderer tracks how much of each
// message it has printed and writes the remainder.
//
// # Thread Safety
//
// Safe for concurrent use. Store notifications arrive in version order;
// a snapshot older than the last one seen is ignored.
type TranscriptRenderer struct {
	writer      io.Writer
	personality PersonalityLevel
	markdown    bool
	echoUser    bool
	ui          ChatUI

	mu       sync.Mutex
	spinner  *Spinner
	version  uint64
	seen     int
	printed  map[int]int
	finished map[int]bool
	answered int
}

// TranscriptOption configures a TranscriptRenderer.
type TranscriptOption func(*TranscriptRenderer)

// WithMarkdown renders final answers through glamour.
func WithMarkdown(enabled bool) TranscriptOption {
	return func(r *TranscriptRenderer) { r.markdown = enabled }
}

// WithUserEcho prints user messages too. The REPL leaves this off since
// the user just typed the message.
func WithUserEcho(enabled bool) TranscriptOption {
	return func(r *TranscriptRenderer) { r.echoUser = enabled }
}

// NewTranscriptRenderer creates a renderer writing to w.
func NewTranscriptRenderer(w io.Writer, personality PersonalityLevel, opts ...TranscriptOption) *TranscriptRenderer {
	if w == nil {
		w = os.Stdout
	}
	r := &TranscriptRenderer{
		writer:      w,
		personality: personality,
		ui:          NewChatUIWithWriter(w, personality),
		printed:     make(map[int]int),
		finished:    make(map[int]bool),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Observe renders the difference between snap and the last snapshot.
func (r *TranscriptRenderer) Observe(snap conversation.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if snap.Version != 0 && snap.Version <= r.version {
		return
	}
	r.version = snap.Version

	if len(snap.Messages) < r.seen {
		// The conversation was reset.
		r.seen = 0
		r.printed = make(map[int]int)
		r.finished = make(map[int]bool)
	}
	r.seen = len(snap.Messages)

	for i, msg := range snap.Messages {
		if r.finished[i] {
			continue
		}
		switch msg.Role {
		case conversation.RoleUser:
			r.renderUserLocked(msg)
			r.finished[i] = true
		case conversation.RoleAssistant:
			r.renderAssistantLocked(i, msg)
		}
	}
}

// StartWaiting shows a spinner until the first answer text arrives or
// StopWaiting is called. Ignored in machine and markdown modes.
func (r *TranscriptRenderer) StartWaiting(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.personality == PersonalityMachine || r.spinner != nil {
		return
	}
	r.spinner = NewSpinnerWithWriter(r.writer, message, r.personality)
	r.spinner.Start()
}

// StopWaiting stops the spinner, if any.
func (r *TranscriptRenderer) StopWaiting() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopSpinnerLocked()
}

// Answered returns how many assistant messages have been finalized.
func (r *TranscriptRenderer) Answered() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.answered
}

func (r *TranscriptRenderer) streaming() bool {
	return r.personality != PersonalityMachine && !r.markdown
}

func (r *TranscriptRenderer) renderUserLocked(msg conversation.Message) {
	if !r.echoUser {
		return
	}
	if r.personality == PersonalityMachine {
		fmt.Fprintf(r.writer, "QUESTION: %s\n", msg.Content)
		return
	}
	fmt.Fprintf(r.writer, "%s %s\n", Styles.User.Render("You:"), msg.Content)
}

func (r *TranscriptRenderer) renderAssistantLocked(index int, msg conversation.Message) {
	done := r.printed[index]
	if done > len(msg.Content) {
		done = 0
	}

	if pending := msg.Content[done:]; pending != "" && r.streaming() {
		r.stopSpinnerLocked()
		if done == 0 {
			fmt.Fprintf(r.writer, "%s ", Styles.Assistant.Render("DocuMind:"))
		}
		fmt.Fprint(r.writer, pending)
	}
	r.printed[index] = len(msg.Content)

	if !msg.Final {
		return
	}

	r.stopSpinnerLocked()
	r.finished[index] = true
	r.answered++

	switch {
	case r.streaming():
		if msg.Content != "" {
			fmt.Fprintln(r.writer)
		}
	case r.personality == PersonalityMachine:
		fmt.Fprintf(r.writer, "ANSWER: %s\n", strings.ReplaceAll(msg.Content, "\n", "\\n"))
	default:
		fmt.Fprintln(r.writer, RenderMarkdown(msg.Content, DefaultMarkdownWidth))
	}

	if len(msg.Sources) > 0 {
		r.ui.Sources(msg.Sources)
	} else if msg.Sources != nil {
		r.ui.NoSources()
	}
}

func (r *TranscriptRenderer) stopSpinnerLocked() {
	if r.spinner == nil {
		return
	}
	r.spinner.Stop()
	r.spinner = nil
}
