// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Level Tests
// =============================================================================

func TestLevel_String(t *testing.T) {
	tests := []struct {
		level Level
		want  string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{Level(42), "UNKNOWN"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.level.String())
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"", LevelInfo, false},
		{" warning ", LevelWarn, false},
		{"warn", LevelWarn, false},
		{"Error", LevelError, false},
		{"verbose", LevelInfo, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFromSlogLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, fromSlogLevel(slog.LevelDebug-4))
	assert.Equal(t, LevelInfo, fromSlogLevel(slog.LevelInfo))
	assert.Equal(t, LevelWarn, fromSlogLevel(slog.LevelWarn+1))
	assert.Equal(t, LevelError, fromSlogLevel(slog.LevelError+8))
}

// =============================================================================
// Logger Tests
// =============================================================================

func TestNew_ConsoleOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LevelInfo, Service: "cli", Output: &buf})
	defer logger.Close()

	logger.Debug("hidden")
	logger.Info("chat request started", "request_id", "r-1")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "chat request started")
	assert.Contains(t, out, "request_id=r-1")
	assert.Contains(t, out, "service=cli")
}

func TestNew_JSONConsole(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{JSON: true, Output: &buf})
	logger.Warn("slow stream", "chunks", 3)

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "slow stream", record["msg"])
	assert.Equal(t, "WARN", record["level"])
	assert.EqualValues(t, 3, record["chunks"])
}

func TestNew_QuietWithoutDestinations(t *testing.T) {
	logger := New(Config{Quiet: true})
	defer logger.Close()
	assert.NotPanics(t, func() { logger.Error("nowhere") })
}

func TestNew_FileLogging(t *testing.T) {
	dir := t.TempDir()
	logger := New(Config{Quiet: true, LogDir: dir, Service: "documind-test"})

	logger.Info("ingest finished", "files", 1)
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(filepath.Join(dir, "documind-test.log"))
	require.NoError(t, err)

	var record map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(data), &record))
	assert.Equal(t, "ingest finished", record["msg"])
	assert.Equal(t, "documind-test", record["service"])
}

func TestNew_FileLoggingDefaultName(t *testing.T) {
	dir := t.TempDir()
	logger := New(Config{Quiet: true, LogDir: dir})
	logger.Info("x")
	require.NoError(t, logger.Close())

	_, err := os.Stat(filepath.Join(dir, "documind.log"))
	assert.NoError(t, err)
}

func TestNew_UnwritableLogDirFallsBack(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0600))

	var buf bytes.Buffer
	logger := New(Config{LogDir: filepath.Join(blocker, "logs"), Output: &buf})
	assert.Nil(t, logger.file)

	logger.Info("still logging")
	assert.Contains(t, buf.String(), "still logging")
}

func TestLogger_Exporter(t *testing.T) {
	exporter := NewBufferedExporter()
	logger := New(Config{Level: LevelInfo, Quiet: true, Service: "cli", Exporter: exporter})

	logger.Debug("filtered")
	logger.With("request_id", "abc").Info("stream finished", "tokens", 12)
	logger.Slog().WithGroup("http").Error("failed", "status", 502)

	entries := exporter.Entries()
	require.Len(t, entries, 2)

	assert.Equal(t, "stream finished", entries[0].Message)
	assert.Equal(t, LevelInfo, entries[0].Level)
	assert.Equal(t, "cli", entries[0].Service)
	assert.Equal(t, "abc", entries[0].Attrs["request_id"])
	assert.EqualValues(t, 12, entries[0].Attrs["tokens"])

	assert.Equal(t, LevelError, entries[1].Level)
	assert.EqualValues(t, 502, entries[1].Attrs["http.status"])

	_, ok := exporter.Find("filtered")
	assert.False(t, ok)
}

func TestLogger_SetLevel(t *testing.T) {
	var buf bytes.Buffer
	exporter := NewBufferedExporter()
	logger := New(Config{Level: LevelWarn, Output: &buf, Exporter: exporter})
	child := logger.With("request_id", "abc")

	child.Info("hidden")
	assert.Empty(t, buf.String())
	assert.Equal(t, LevelWarn, logger.Level())

	logger.SetLevel(LevelDebug)
	assert.Equal(t, LevelDebug, logger.Level())
	child.Debug("shown")

	assert.Contains(t, buf.String(), "shown")
	_, ok := exporter.Find("shown")
	assert.True(t, ok, "exporter follows the new level")
	_, ok = exporter.Find("hidden")
	assert.False(t, ok)
}

func TestLogger_Install(t *testing.T) {
	previous := slog.Default()
	defer slog.SetDefault(previous)

	exporter := NewBufferedExporter()
	logger := New(Config{Quiet: true, Exporter: exporter})
	logger.Install()

	slog.Info("via default", "k", "v")
	entry, ok := exporter.Find("via default")
	require.True(t, ok)
	assert.Equal(t, "v", entry.Attrs["k"])
}

type failingExporter struct {
	flushErr error
	closeErr error
}

func (e *failingExporter) Export(context.Context, LogEntry) error { return errors.New("export") }
func (e *failingExporter) Flush(context.Context) error            { return e.flushErr }
func (e *failingExporter) Close() error                           { return e.closeErr }

func TestLogger_Close(t *testing.T) {
	t.Run("no resources", func(t *testing.T) {
		assert.NoError(t, New(Config{Quiet: true}).Close())
	})

	t.Run("export errors are dropped", func(t *testing.T) {
		logger := New(Config{Quiet: true, Exporter: &failingExporter{}})
		assert.NotPanics(t, func() { logger.Info("x") })
		assert.NoError(t, logger.Close())
	})

	t.Run("first error wins", func(t *testing.T) {
		logger := New(Config{Quiet: true, Exporter: &failingExporter{
			flushErr: errors.New("flush failed"),
			closeErr: errors.New("close failed"),
		}})
		err := logger.Close()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "flush failed")
	})

	t.Run("idempotent", func(t *testing.T) {
		logger := New(Config{Quiet: true, LogDir: t.TempDir()})
		assert.NoError(t, logger.Close())
		assert.NoError(t, logger.Close())
	})
}

func TestLogger_ConcurrentUse(t *testing.T) {
	exporter := NewBufferedExporter()
	logger := New(Config{Quiet: true, Exporter: exporter})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				logger.Info("tick", "worker", n)
			}
		}(i)
	}
	wg.Wait()
	assert.Len(t, exporter.Entries(), 200)
}

// =============================================================================
// Helper Tests
// =============================================================================

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, ".documind", "logs"), expandPath("~/.documind/logs"))
	assert.Equal(t, "/var/log", expandPath("/var/log"))
	assert.True(t, strings.HasPrefix(expandPath("relative"), "relative"))
}

func TestMultiHandler_Enabled(t *testing.T) {
	h := &multiHandler{handlers: []slog.Handler{
		slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelError}),
		slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelWarn}),
	}}
	assert.False(t, h.Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, h.Enabled(context.Background(), slog.LevelWarn))
}
