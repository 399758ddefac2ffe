// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ux

import (
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
)

// DefaultMarkdownWidth is the wrap width for rendered answers.
const DefaultMarkdownWidth = 80

var (
	markdownMu        sync.Mutex
	markdownRenderers = map[int]*glamour.TermRenderer{}
)

// RenderMarkdown renders an answer for the terminal.
//
// Renderers are cached per width. When the renderer cannot be built or
// rendering fails, the input is returned unchanged so an answer is never
// lost to a styling problem.
func RenderMarkdown(input string, width int) string {
	input = strings.TrimRight(input, "\n")
	if input == "" {
		return ""
	}
	if width <= 0 {
		width = DefaultMarkdownWidth
	}

	markdownMu.Lock()
	defer markdownMu.Unlock()

	r := markdownRendererLocked(width)
	if r == nil {
		return input
	}
	out, err := r.Render(input)
	if err != nil {
		return input
	}
	return strings.Trim(out, "\n")
}

func markdownRendererLocked(width int) *glamour.TermRenderer {
	if r, ok := markdownRenderers[width]; ok {
		return r
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil
	}
	markdownRenderers[width] = r
	return r
}
