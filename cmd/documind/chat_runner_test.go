// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// InputReader Tests
// =============================================================================

func TestStdinReader_ReadLine(t *testing.T) {
	r := newLineReader(strings.NewReader("hello\n  spaced out  \n\nlast line"))

	for _, want := range []string{"hello", "spaced out", "", "last line"} {
		line, err := r.ReadLine()
		require.NoError(t, err)
		assert.Equal(t, want, line)
	}

	_, err := r.ReadLine()
	assert.ErrorIs(t, err, io.EOF)
}

func TestMockInputReader(t *testing.T) {
	var seen []int
	mock := NewMockInputReader([]string{"hello", "exit"})
	mock.OnRead = func(i int) { seen = append(seen, i) }

	line, err := mock.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "hello", line)

	line, err = mock.ReadLine()
	require.NoError(t, err)
	assert.Equal(t, "exit", line)

	_, err = mock.ReadLine()
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, []int{0, 1}, seen)
}

func TestInteractiveInputReader_History(t *testing.T) {
	r := &InteractiveInputReader{maxHistory: 2}

	r.addToHistory("one")
	r.addToHistory("one")
	assert.Equal(t, []string{"one"}, r.history, "consecutive duplicates are dropped")

	r.addToHistory("two")
	r.addToHistory("three")
	assert.Equal(t, []string{"two", "three"}, r.history, "oldest entry is evicted")

	r.SetPrompt("? ")
	assert.Equal(t, "? ", r.prompt)
}

func TestIsExitCommand(t *testing.T) {
	tests := map[string]bool{
		"exit":  true,
		"quit":  true,
		"/exit": true,
		"/quit": true,
		"EXIT":  false,
		"hello": false,
		"":      false,
	}
	for input, want := range tests {
		t.Run(input, func(t *testing.T) {
			assert.Equal(t, want, isExitCommand(input))
		})
	}
}
