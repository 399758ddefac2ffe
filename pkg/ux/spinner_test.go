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
	"sync"
	"testing"
	"time"
)

// syncBuffer is a bytes.Buffer safe for the spinner goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestNewSpinnerWithWriter_Defaults(t *testing.T) {
	s := NewSpinnerWithWriter(&bytes.Buffer{}, "Thinking", PersonalityFull)
	if s.message != "Thinking" {
		t.Errorf("expected message 'Thinking', got %q", s.message)
	}
	if s.spinType != SpinnerDots {
		t.Errorf("expected dots, got %v", s.spinType)
	}
	if s.IsRunning() {
		t.Error("expected a new spinner to be stopped")
	}
}

func TestSpinner_WithType(t *testing.T) {
	s := NewSpinnerWithWriter(&bytes.Buffer{}, "x", PersonalityFull).WithType(SpinnerCompass)
	if s.spinType != SpinnerCompass {
		t.Errorf("expected compass, got %v", s.spinType)
	}
}

func TestSpinner_MachineMode(t *testing.T) {
	var buf bytes.Buffer
	s := NewSpinnerWithWriter(&buf, "Ingesting report.pdf", PersonalityMachine)

	s.Start()
	s.Start()
	s.Stop()
	s.Stop()

	if got := buf.String(); got != "PROGRESS: Ingesting report.pdf\n" {
		t.Errorf("expected one PROGRESS line, got %q", got)
	}
}

func TestSpinner_StartStop_FullMode(t *testing.T) {
	buf := &syncBuffer{}
	s := NewSpinnerWithWriter(buf, "Waiting for answer", PersonalityFull)

	s.Start()
	if !s.IsRunning() {
		t.Fatal("expected spinner to be running")
	}
	time.Sleep(3 * spinnerInterval)
	s.UpdateMessage("Still waiting")
	time.Sleep(2 * spinnerInterval)
	s.Stop()

	out := buf.String()
	if !strings.Contains(out, "Waiting for answer") {
		t.Errorf("expected initial message in output, got %q", out)
	}
	if !strings.HasSuffix(out, "\r\033[K") {
		t.Errorf("expected the line to be cleared on stop, got %q", out)
	}
	if s.IsRunning() {
		t.Error("expected spinner to be stopped")
	}

	// Restartable after a stop.
	s.Start()
	s.Stop()
}

func TestSpinner_StopNotRunning(t *testing.T) {
	s := NewSpinnerWithWriter(&bytes.Buffer{}, "x", PersonalityFull)
	s.Stop()
}

func TestWithSpinner_MachineMode(t *testing.T) {
	withLevel(t, PersonalityMachine)

	output := captureStdout(func() {
		if err := WithSpinner("Clearing session", func() error { return nil }); err != nil {
			t.Errorf("unexpected error %v", err)
		}
	})
	if !strings.Contains(output, "PROGRESS: Clearing session") || !strings.Contains(output, "OK: Clearing session") {
		t.Errorf("unexpected output %q", output)
	}
}

func TestWithSpinner_Error(t *testing.T) {
	withLevel(t, PersonalityMachine)
	boom := errors.New("boom")

	var err error
	stderr := captureStderr(func() {
		captureStdout(func() {
			err = WithSpinner("Generating audio", func() error { return boom })
		})
	})
	if !errors.Is(err, boom) {
		t.Errorf("expected boom, got %v", err)
	}
	if !strings.Contains(stderr, "ERROR: Generating audio: boom") {
		t.Errorf("unexpected stderr %q", stderr)
	}
}

func TestSpinnerFrames_Exist(t *testing.T) {
	for _, st := range []SpinnerType{SpinnerDots, SpinnerWave, SpinnerCompass} {
		if len(spinnerFrames[st]) == 0 {
			t.Errorf("no frames for spinner type %v", st)
		}
	}
}
