// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ux

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/huh"
)

// ErrPromptCancelled is returned when the user aborts a prompt.
var ErrPromptCancelled = errors.New("prompt cancelled")

// ErrNotInteractive is returned when a prompt is requested without a
// terminal to show it on.
var ErrNotInteractive = errors.New("interactive prompt requires a terminal")

// PromptOption is one choice in a selection prompt.
type PromptOption struct {
	Label       string
	Description string
	Value       string
	Recommended bool
}

// optionLabelWidth bounds option labels so long model names do not wrap.
const optionLabelWidth = 48

// SelectOption asks the user to pick one option.
//
// # Description
//
// The recommended option, if any, is preselected. Returns
// ErrNotInteractive in machine mode or without a terminal, and
// ErrPromptCancelled when the user aborts.
func SelectOption(title string, options []PromptOption) (string, error) {
	if !IsInteractive() {
		return "", ErrNotInteractive
	}
	if len(options) == 0 {
		return "", fmt.Errorf("%s: no options", title)
	}

	var choice string
	huhOptions := make([]huh.Option[string], 0, len(options))
	for _, opt := range options {
		label := truncate(opt.Label, optionLabelWidth)
		if opt.Recommended {
			label += " (recommended)"
			choice = opt.Value
		}
		if opt.Description != "" {
			label += "  " + Styles.Muted.Render(opt.Description)
		}
		huhOptions = append(huhOptions, huh.NewOption(label, opt.Value))
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title(title).
				Options(huhOptions...).
				Value(&choice),
		),
	)
	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return "", ErrPromptCancelled
		}
		return "", err
	}
	return choice, nil
}

// ModelOptions builds picker options for models, recommending selected.
func ModelOptions(models []string, selected string) []PromptOption {
	options := make([]PromptOption, 0, len(models))
	for _, m := range models {
		options = append(options, PromptOption{
			Label:       m,
			Value:       m,
			Recommended: m == selected,
		})
	}
	return options
}

// truncate shortens s to maxLen characters, ending in "...".
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return "..."
	}
	return string(runes[:maxLen-3]) + "..."
}
