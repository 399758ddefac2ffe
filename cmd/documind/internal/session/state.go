// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package session

import "strings"

// Phase is the lifecycle position of the chat stream.
//
//	Idle ──Submit──▶ Requesting ──response ok──▶ Streaming ──end──▶ Idle
//	                     │                          │
//	                     └──transport error──▶ Failed ◀──read error──┘
//	                                             │
//	                                             └──▶ Idle
//
// Failed is transient: observers see it, then the controller moves to
// Idle. A cancelled stream goes straight back to Idle.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseRequesting
	PhaseStreaming
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseRequesting:
		return "requesting"
	case PhaseStreaming:
		return "streaming"
	case PhaseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// State is the UI-facing session state. Values handed to callers are
// copies.
type State struct {
	Phase Phase

	// IsStreaming is true from request start until the stream ends or
	// fails.
	IsStreaming bool

	// RequestID identifies the in-flight or most recent chat request.
	RequestID string

	SelectedModel string
	Models        []string

	// ActiveDocument is the last ingested file path or URL.
	ActiveDocument     string
	SuggestedQuestions []string

	// AudioURL is the server reference returned by audio generation;
	// resolve it against the API base URL to fetch it.
	AudioURL          string
	AudioScript       string
	IsGeneratingAudio bool

	// CurrentPage is the page the user is looking at, starting at 1.
	CurrentPage int

	// LastError is the message of the most recent failure, cleared when
	// the next request starts.
	LastError string
}

// HasDocument reports whether a document has been ingested.
func (s State) HasDocument() bool {
	return s.ActiveDocument != ""
}

func (s State) clone() State {
	s.Models = cloneStrings(s.Models)
	s.SuggestedQuestions = cloneStrings(s.SuggestedQuestions)
	return s
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append([]string(nil), in...)
}

// chooseModel applies the default selection policy.
//
// A current selection that is still listed stays, and so does an explicit
// one. Otherwise the first model whose name contains marker wins, then the
// first model. An empty list leaves the selection unchanged.
func chooseModel(current string, explicit bool, models []string, marker string) string {
	if len(models) == 0 {
		return current
	}
	if current != "" {
		if explicit {
			return current
		}
		for _, m := range models {
			if m == current {
				return current
			}
		}
	}
	if marker != "" {
		for _, m := range models {
			if strings.Contains(m, marker) {
				return m
			}
		}
	}
	return models[0]
}
