// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/AleutianAI/sortbench/services/sortbench/metrics"
	"github.com/fsnotify/fsnotify"
)

// DefaultDebounceWindow is how long the watcher waits after the last event
// before reading the file. One editor save usually produces several events.
const DefaultDebounceWindow = 100 * time.Millisecond

// Watcher reloads the config file when it changes on disk.
//
// Thread Safety: Start runs in one goroutine; Updates may be read from any.
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	updates  chan *Config
	logger   *slog.Logger
	debounce time.Duration
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounceWindow sets the quiet period before a reload. Zero or less
// reloads on every event.
func WithDebounceWindow(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.debounce = d
	}
}

// NewWatcher creates a watcher for path.
//
// # Description
//
// The parent directory is watched rather than the file, so editors that
// replace the file by rename are still seen. Events are coalesced: the file
// is read once the debounce window passes with no further event.
//
// # Outputs
//
//   - *Watcher: Ready-to-start watcher.
//   - error: Non-nil if the fsnotify watcher cannot be created.
func NewWatcher(path string, logger *slog.Logger, opts ...WatcherOption) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	watcher := &Watcher{
		path:     filepath.Clean(path),
		watcher:  w,
		updates:  make(chan *Config, 1),
		logger:   logger,
		debounce: DefaultDebounceWindow,
	}
	for _, opt := range opts {
		opt(watcher)
	}
	return watcher, nil
}

// Updates delivers each valid reloaded config. Only the newest pending
// config is kept.
func (w *Watcher) Updates() <-chan *Config {
	return w.updates
}

// Start watches until ctx is cancelled. Run it in a goroutine.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.watcher.Add(filepath.Dir(w.path)); err != nil {
		return err
	}
	w.logger.Debug("watching config", "path", w.path, "debounce", w.debounce)

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !w.relevant(event) {
				continue
			}
			if w.debounce <= 0 {
				w.reload()
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			w.reload()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("config watcher error", "error", err)

		case <-ctx.Done():
			w.logger.Debug("config watcher stopping")
			return nil
		}
	}
}

func (w *Watcher) relevant(event fsnotify.Event) bool {
	if filepath.Clean(event.Name) != w.path {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename)
}

func (w *Watcher) reload() {
	data, err := os.ReadFile(w.path)
	if err != nil {
		// Renamed away mid-save; the following Create delivers the content.
		w.logger.Debug("config not readable", "path", w.path, "error", err)
		return
	}
	if len(bytes.TrimSpace(data)) == 0 {
		// Truncated mid-write.
		return
	}
	cfg, err := Parse(data)
	if err != nil {
		metrics.RecordConfigReload("invalid")
		w.logger.Warn("ignoring invalid config change", "path", w.path, "error", err)
		return
	}

	w.logger.Info("config changed", "path", w.path)
	select {
	case w.updates <- cfg:
	default:
		select {
		case <-w.updates:
		default:
		}
		w.updates <- cfg
	}
}

// Stop releases the fsnotify watcher. Safe to call more than once.
func (w *Watcher) Stop() error {
	return w.watcher.Close()
}
