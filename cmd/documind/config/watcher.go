// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultReloadDebounce is how long a Watcher waits after the last write
// before reloading.
const DefaultReloadDebounce = 100 * time.Millisecond

// ChangeHandler receives a config that was reloaded and validated.
type ChangeHandler func(cfg DocuMindConfig)

// Watcher reloads the config file when it changes on disk.
//
// # Description
//
// The parent directory is watched rather than the file, so editors that
// save by writing a temporary file and renaming it over the original are
// seen as well. Bursts of events are collapsed with a debounce window.
// A file that fails to parse or validate is logged and skipped; the
// handler only ever sees valid configs. Removing the file is ignored.
//
// # Thread Safety
//
// The handler is called from a single goroutine. Stop may be called from
// any goroutine, more than once.
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	handler  ChangeHandler
	debounce time.Duration

	done     chan struct{}
	stopOnce sync.Once
}

// NewWatcher prepares a Watcher for the config at path. A debounce of zero
// or less uses DefaultReloadDebounce. Call Start to begin watching.
func NewWatcher(path string, handler ChangeHandler, debounce time.Duration) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}
	if debounce <= 0 {
		debounce = DefaultReloadDebounce
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create config watcher: %w", err)
	}
	return &Watcher{
		path:     abs,
		watcher:  fw,
		handler:  handler,
		debounce: debounce,
		done:     make(chan struct{}),
	}, nil
}

// Start watches until ctx ends or Stop is called.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(w.path), err)
	}
	go w.loop(ctx)
	return nil
}

// Stop ends watching and releases the underlying watcher.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)
		err = w.watcher.Close()
	})
	return err
}

func (w *Watcher) loop(ctx context.Context) {
	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path || ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("config watcher error", "path", w.path, "error", err)

		case <-fire:
			fire = nil
			w.reload()
		}
	}
}

func (w *Watcher) reload() {
	data, err := os.ReadFile(w.path)
	if errors.Is(err, os.ErrNotExist) {
		return
	}
	if err != nil {
		slog.Warn("config reload failed", "path", w.path, "error", err)
		return
	}
	cfg, err := Parse(data)
	if err != nil {
		slog.Warn("config reload rejected, keeping the previous settings", "path", w.path, "error", err)
		return
	}
	slog.Debug("config reloaded", "path", w.path)
	w.handler(cfg)
}
