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
	"sync"
	"time"
)

// SpinnerType defines the animation style
type SpinnerType int

const (
	SpinnerDots SpinnerType = iota
	SpinnerWave
	SpinnerCompass
)

var spinnerFrames = map[SpinnerType][]string{
	SpinnerDots:    {"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"},
	SpinnerWave:    {"~", "≈", "≋", "≈"},
	SpinnerCompass: {"◐", "◓", "◑", "◒"},
}

const spinnerInterval = 80 * time.Millisecond

// Spinner provides an animated loading indicator.
//
// Start and Stop may be called from different goroutines. Stop is
// idempotent and clears the spinner line before returning, so the caller
// can write to the same terminal immediately after.
type Spinner struct {
	writer      io.Writer
	personality PersonalityLevel

	mu         sync.Mutex
	message    string
	spinType   SpinnerType
	stop       chan struct{}
	done       chan struct{}
	isRunning  bool
	frameIndex int
}

// NewSpinner creates a spinner on stdout using the current personality.
func NewSpinner(message string) *Spinner {
	return NewSpinnerWithWriter(os.Stdout, message, GetPersonality().Level)
}

// NewSpinnerWithWriter creates a spinner on w.
func NewSpinnerWithWriter(w io.Writer, message string, personality PersonalityLevel) *Spinner {
	if w == nil {
		w = os.Stdout
	}
	return &Spinner{
		writer:      w,
		personality: personality,
		message:     message,
		spinType:    SpinnerDots,
	}
}

// WithType sets the spinner animation type
func (s *Spinner) WithType(t SpinnerType) *Spinner {
	s.spinType = t
	return s
}

// Start begins the spinner animation. In machine mode the message is
// printed once as "PROGRESS: message".
func (s *Spinner) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return
	}
	s.isRunning = true

	if s.personality == PersonalityMachine {
		fmt.Fprintf(s.writer, "PROGRESS: %s\n", s.message)
		return
	}

	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.run(s.stop, s.done)
}

func (s *Spinner) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	frames := spinnerFrames[s.spinType]
	ticker := time.NewTicker(spinnerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			fmt.Fprint(s.writer, "\r\033[K")
			return
		case <-ticker.C:
			s.mu.Lock()
			frame := Styles.Highlight.Render(frames[s.frameIndex])
			fmt.Fprintf(s.writer, "\r%s %s", frame, s.message)
			s.frameIndex = (s.frameIndex + 1) % len(frames)
			s.mu.Unlock()
		}
	}
}

// Stop halts the spinner animation
func (s *Spinner) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	stop, done := s.stop, s.done
	s.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-done
}

// IsRunning reports whether the spinner is animating.
func (s *Spinner) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

// UpdateMessage changes the spinner message while running
func (s *Spinner) UpdateMessage(message string) {
	s.mu.Lock()
	s.message = message
	s.mu.Unlock()
}

// StopWithSuccess stops and prints a success message
func (s *Spinner) StopWithSuccess(message string) {
	s.Stop()
	Success(message)
}

// StopWithError stops and prints an error message
func (s *Spinner) StopWithError(message string) {
	s.Stop()
	Error(message)
}

// WithSpinner runs a function with a spinner, handling success/error automatically
func WithSpinner(message string, fn func() error) error {
	spin := NewSpinner(message)
	spin.Start()

	if err := fn(); err != nil {
		spin.StopWithError(fmt.Sprintf("%s: %v", message, err))
		return err
	}

	spin.StopWithSuccess(message)
	return nil
}
