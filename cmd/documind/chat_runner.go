// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package main is the documind command line client.
//
// The chat REPL is split the same way as the rest of the client:
//
//	cmd_chat.go → ChatRunner → session.Controller → api.Client
//	                 ↓               ↓
//	            InputReader   conversation.Store → ux.TranscriptRenderer
//
// The runner only reads input and dispatches commands. Answers reach the
// terminal through the store observer, never through the runner.
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
)

// =============================================================================
// ChatRunner Interface
// =============================================================================

// ChatRunner runs an interactive chat session.
//
// # Description
//
// Run loops until the user exits, input ends, or ctx is cancelled. Normal
// exit returns nil; cancellation returns the context error. Close releases
// whatever the runner attached and must be called after Run returns.
//
// # Examples
//
//	runner := newREPLRunner(app, NewInteractiveInputReader(50))
//	defer runner.Close()
//	if err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
//	    return err
//	}
type ChatRunner interface {
	Run(ctx context.Context) error
	Close() error
}

// =============================================================================
// InputReader Interface
// =============================================================================

// InputReader abstracts user input for testability.
//
// ReadLine returns the next line with surrounding whitespace trimmed, and
// io.EOF once input is exhausted.
type InputReader interface {
	ReadLine() (string, error)
}

// PromptingInputReader is implemented by readers that draw their own
// prompt. The runner checks for it to avoid printing the prompt twice.
type PromptingInputReader interface {
	InputReader
	SetPrompt(prompt string)
}

// =============================================================================
// StdinReader Implementation
// =============================================================================

// StdinReader reads newline-terminated lines from a stream, os.Stdin by
// default. It has no line editing or history.
//
// # Thread Safety
//
// Not thread-safe. One reader per stream.
type StdinReader struct {
	reader *bufio.Reader
}

// NewStdinReader wraps os.Stdin.
func NewStdinReader() *StdinReader {
	return newLineReader(os.Stdin)
}

func newLineReader(r io.Reader) *StdinReader {
	return &StdinReader{reader: bufio.NewReader(r)}
}

// ReadLine reads until a newline. A final line without a newline is
// returned before io.EOF.
func (r *StdinReader) ReadLine() (string, error) {
	line, err := r.reader.ReadString('\n')
	if err != nil {
		if err == io.EOF && line != "" {
			return strings.TrimSpace(line), nil
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// =============================================================================
// InteractiveInputReader Implementation (with history)
// =============================================================================

// InteractiveInputReader reads a line with a bubbletea text input:
// up/down arrow history, line editing, Ctrl+C to clear the line and
// Ctrl+D to end input.
//
// # Thread Safety
//
// Not thread-safe. Single reader per terminal.
//
// # Limitations
//
//   - History is in-memory only
type InteractiveInputReader struct {
	history    []string
	maxHistory int
	prompt     string
}

// inputModel is the bubbletea model behind ReadLine.
type inputModel struct {
	textInput    textinput.Model
	history      []string
	historyIndex int
	currentInput string // input being typed before history navigation
	done         bool
	cancelled    bool
}

// NewInteractiveInputReader returns an InteractiveInputReader when stdin
// is a terminal, and a StdinReader otherwise (pipes, CI).
func NewInteractiveInputReader(maxHistory int) InputReader {
	if !isatty.IsTerminal(os.Stdin.Fd()) && !isatty.IsCygwinTerminal(os.Stdin.Fd()) {
		return NewStdinReader()
	}
	return &InteractiveInputReader{
		history:    make([]string, 0, maxHistory),
		maxHistory: maxHistory,
		prompt:     "> ",
	}
}

// SetPrompt sets the prompt drawn by the text input.
func (r *InteractiveInputReader) SetPrompt(prompt string) {
	r.prompt = prompt
}

// ReadLine runs the text input until Enter, Ctrl+C or Ctrl+D.
//
// Ctrl+C returns an empty line. Ctrl+D on an empty line returns io.EOF.
// Non-empty submissions are added to history.
func (r *InteractiveInputReader) ReadLine() (string, error) {
	ti := textinput.New()
	ti.Prompt = r.prompt
	ti.Focus()
	ti.CharLimit = 4096
	ti.Width = 80

	m := inputModel{
		textInput:    ti,
		history:      r.history,
		historyIndex: -1,
	}

	p := tea.NewProgram(m, tea.WithOutput(os.Stderr))
	finalModel, err := p.Run()
	if err != nil {
		return "", err
	}

	result, ok := finalModel.(inputModel)
	if !ok {
		return "", fmt.Errorf("unexpected model type from bubbletea: %T", finalModel)
	}
	if result.cancelled && result.textInput.Value() == "" {
		return "", io.EOF
	}

	input := strings.TrimSpace(result.textInput.Value())
	if input != "" {
		r.addToHistory(input)
	}
	return input, nil
}

func (r *InteractiveInputReader) addToHistory(input string) {
	if len(r.history) > 0 && r.history[len(r.history)-1] == input {
		return
	}
	r.history = append(r.history, input)
	if len(r.history) > r.maxHistory {
		r.history = r.history[1:]
	}
}

func (m inputModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m inputModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.Type {
		case tea.KeyEnter:
			m.done = true
			return m, tea.Quit

		case tea.KeyCtrlC:
			m.textInput.SetValue("")
			m.done = true
			return m, tea.Quit

		case tea.KeyCtrlD:
			m.cancelled = true
			m.textInput.SetValue("")
			m.done = true
			return m, tea.Quit

		case tea.KeyUp:
			if len(m.history) == 0 {
				return m, nil
			}
			if m.historyIndex == -1 {
				m.currentInput = m.textInput.Value()
				m.historyIndex = len(m.history) - 1
			} else if m.historyIndex > 0 {
				m.historyIndex--
			}
			m.textInput.SetValue(m.history[m.historyIndex])
			m.textInput.CursorEnd()
			return m, nil

		case tea.KeyDown:
			if m.historyIndex == -1 {
				return m, nil
			}
			if m.historyIndex < len(m.history)-1 {
				m.historyIndex++
				m.textInput.SetValue(m.history[m.historyIndex])
			} else {
				m.historyIndex = -1
				m.textInput.SetValue(m.currentInput)
			}
			m.textInput.CursorEnd()
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.textInput, cmd = m.textInput.Update(msg)
	return m, cmd
}

func (m inputModel) View() string {
	if m.done {
		return ""
	}
	return m.textInput.View()
}

// =============================================================================
// MockInputReader Implementation (for testing)
// =============================================================================

// MockInputReader returns predetermined lines, then io.EOF.
//
// OnRead, when set, is called with the index of each line before it is
// returned. Tests use it to act between inputs.
type MockInputReader struct {
	inputs []string
	index  int
	OnRead func(index int)
}

// NewMockInputReader creates a MockInputReader over inputs.
func NewMockInputReader(inputs []string) *MockInputReader {
	return &MockInputReader{inputs: inputs}
}

func (m *MockInputReader) ReadLine() (string, error) {
	if m.index >= len(m.inputs) {
		return "", io.EOF
	}
	if m.OnRead != nil {
		m.OnRead(m.index)
	}
	line := m.inputs[m.index]
	m.index++
	return line, nil
}

// =============================================================================
// Helper Functions
// =============================================================================

// isExitCommand reports whether input ends the session. Matching is
// case-sensitive.
func isExitCommand(input string) bool {
	switch input {
	case "exit", "quit", "/exit", "/quit":
		return true
	}
	return false
}
