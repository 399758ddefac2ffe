// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ux

import (
	"errors"
	"strings"
	"testing"
)

// =============================================================================
// truncate Tests
// =============================================================================

func TestTruncate(t *testing.T) {
	tests := []struct {
		in     string
		maxLen int
		want   string
	}{
		{"hello", 10, "hello"},
		{"hello", 5, "hello"},
		{"hello world this is a long string", 10, "hello w..."},
		{"hello", 3, "..."},
		{"", 10, ""},
		{"hello", 4, "h..."},
		{"naïve café", 8, "naïve..."},
	}
	for _, tt := range tests {
		if got := truncate(tt.in, tt.maxLen); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.maxLen, got, tt.want)
		}
	}
}

// =============================================================================
// Prompt Tests
// =============================================================================

func TestModelOptions(t *testing.T) {
	opts := ModelOptions([]string{"qwen3:0.6b", "llama3:8b"}, "llama3:8b")

	if len(opts) != 2 {
		t.Fatalf("expected 2 options, got %d", len(opts))
	}
	if opts[0].Recommended || !opts[1].Recommended {
		t.Errorf("expected only the selected model to be recommended: %+v", opts)
	}
	if opts[1].Value != "llama3:8b" || opts[1].Label != "llama3:8b" {
		t.Errorf("unexpected option %+v", opts[1])
	}
}

func TestSelectOption_NotInteractive(t *testing.T) {
	orig := GetPersonality()
	defer SetPersonality(orig)
	SetPersonalityLevel(PersonalityMachine)

	_, err := SelectOption("Choose a model", ModelOptions([]string{"a"}, "a"))
	if !errors.Is(err, ErrNotInteractive) {
		t.Errorf("expected ErrNotInteractive, got %v", err)
	}
}

// =============================================================================
// Markdown Tests
// =============================================================================

func TestRenderMarkdown(t *testing.T) {
	if got := RenderMarkdown("\n\n", 0); got != "" {
		t.Errorf("expected empty output, got %q", got)
	}

	out := RenderMarkdown("# Title\n\nSome *emphasis* here.", 40)
	if !strings.Contains(out, "Title") || !strings.Contains(out, "emphasis") {
		t.Errorf("expected rendered text, got %q", out)
	}
	if strings.Contains(out, "*emphasis*") {
		t.Errorf("expected markdown syntax to be consumed, got %q", out)
	}
}
