// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ux

import (
	"bytes"
	"strings"
	"testing"

	"github.com/AleutianAI/documind/pkg/conversation"
)

// streamAnswer drives a store through one exchange the way the session
// controller does.
func streamAnswer(t *testing.T, store *conversation.Store, question string, tokens []string, sources []conversation.Citation) {
	t.Helper()
	store.AppendUser(question)
	index, err := store.AppendAssistantPlaceholder()
	if err != nil {
		t.Fatalf("placeholder: %v", err)
	}
	for _, tok := range tokens {
		if err := store.ApplyDelta(index, conversation.ContentDelta{Text: tok}); err != nil {
			t.Fatalf("apply: %v", err)
		}
	}
	if sources != nil {
		if err := store.ApplyDelta(index, conversation.CitationSet{Citations: sources}); err != nil {
			t.Fatalf("apply sources: %v", err)
		}
	}
	if err := store.Finalize(index); err != nil {
		t.Fatalf("finalize: %v", err)
	}
}

func TestTranscriptRenderer_Streaming(t *testing.T) {
	var buf bytes.Buffer
	r := NewTranscriptRenderer(&buf, PersonalityMinimal)
	store := conversation.NewStore()
	store.Subscribe(r.Observe)

	var afterFirst string
	store.Subscribe(func(s conversation.Snapshot) {
		if last, ok := s.Last(); ok && last.Content == "X is " && afterFirst == "" {
			afterFirst = buf.String()
		}
	})

	streamAnswer(t, store, "What is X?", []string{"X is ", "a thing."}, []conversation.Citation{{Source: "doc.pdf", Page: 2}})

	if !strings.HasSuffix(afterFirst, "X is ") {
		t.Errorf("expected the first token to be printed immediately, got %q", afterFirst)
	}
	out := buf.String()
	if strings.Contains(out, "What is X?") {
		t.Errorf("user message should not be echoed by default: %q", out)
	}
	if strings.Count(out, "X is ") != 1 {
		t.Errorf("expected each token once, got %q", out)
	}
	if !strings.Contains(out, "X is a thing.\n") {
		t.Errorf("expected the full answer, got %q", out)
	}
	if !strings.Contains(out, "1. doc.pdf (p. 2)") {
		t.Errorf("expected sources after the answer, got %q", out)
	}
	if r.Answered() != 1 {
		t.Errorf("expected 1 answered, got %d", r.Answered())
	}
}

func TestTranscriptRenderer_MachineMode(t *testing.T) {
	var buf bytes.Buffer
	r := NewTranscriptRenderer(&buf, PersonalityMachine, WithUserEcho(true))
	store := conversation.NewStore()
	store.Subscribe(r.Observe)

	streamAnswer(t, store, "What is X?", []string{"X is ", "a thing.\nReally."}, []conversation.Citation{{Source: "doc.pdf", Page: 2}})

	want := "QUESTION: What is X?\n" +
		"ANSWER: X is a thing.\\nReally.\n" +
		"SOURCE: doc.pdf page=2\n"
	if got := buf.String(); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestTranscriptRenderer_EmptySources(t *testing.T) {
	var buf bytes.Buffer
	r := NewTranscriptRenderer(&buf, PersonalityMachine)
	store := conversation.NewStore()
	store.Subscribe(r.Observe)

	streamAnswer(t, store, "q", []string{"a"}, []conversation.Citation{})

	if got := buf.String(); got != "ANSWER: a\nSOURCES: none\n" {
		t.Errorf("unexpected output %q", got)
	}
}

func TestTranscriptRenderer_Markdown(t *testing.T) {
	var buf bytes.Buffer
	r := NewTranscriptRenderer(&buf, PersonalityFull, WithMarkdown(true))
	store := conversation.NewStore()
	store.Subscribe(r.Observe)

	store.AppendUser("q")
	index, _ := store.AppendAssistantPlaceholder()
	_ = store.ApplyDelta(index, conversation.ContentDelta{Text: "**bold** answer"})
	if buf.Len() != 0 {
		t.Fatalf("expected nothing before the answer is final, got %q", buf.String())
	}
	_ = store.Finalize(index)

	out := buf.String()
	if !strings.Contains(out, "bold") || strings.Contains(out, "**bold**") {
		t.Errorf("expected rendered markdown, got %q", out)
	}
}

func TestTranscriptRenderer_ResetAndStale(t *testing.T) {
	var buf bytes.Buffer
	r := NewTranscriptRenderer(&buf, PersonalityMachine)
	store := conversation.NewStore()
	store.Subscribe(r.Observe)

	streamAnswer(t, store, "one", []string{"first"}, nil)
	stale := store.Snapshot()

	store.Reset()
	streamAnswer(t, store, "two", []string{"second"}, nil)

	// Re-delivering an old snapshot prints nothing.
	r.Observe(stale)

	want := "ANSWER: first\nANSWER: second\n"
	if got := buf.String(); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
	if r.Answered() != 2 {
		t.Errorf("expected 2 answered, got %d", r.Answered())
	}
}

func TestTranscriptRenderer_PartialAnswerIsClosed(t *testing.T) {
	var buf bytes.Buffer
	r := NewTranscriptRenderer(&buf, PersonalityStandard)
	store := conversation.NewStore()
	store.Subscribe(r.Observe)

	store.AppendUser("q")
	index, _ := store.AppendAssistantPlaceholder()
	_ = store.ApplyDelta(index, conversation.ContentDelta{Text: "partial"})
	_ = store.Finalize(index)

	if got := buf.String(); !strings.HasSuffix(got, "partial\n") {
		t.Errorf("expected the partial answer to end the line, got %q", got)
	}
}

func TestTranscriptRenderer_WaitingSpinner(t *testing.T) {
	buf := &syncBuffer{}
	r := NewTranscriptRenderer(buf, PersonalityFull)
	store := conversation.NewStore()
	store.Subscribe(r.Observe)

	r.StartWaiting("Thinking")
	r.StartWaiting("Thinking")
	streamAnswer(t, store, "q", []string{"answer"}, nil)
	r.StopWaiting()

	if r.spinner != nil {
		t.Error("expected the spinner to be stopped by the first token")
	}
	if !strings.Contains(buf.String(), "answer") {
		t.Errorf("expected the answer, got %q", buf.String())
	}
}
