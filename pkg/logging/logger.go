// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package logging builds the structured loggers used by the sortbench
// commands.
//
// Every component takes a *slog.Logger. This package decides where those
// records go:
//
//   - stderr, text or JSON (default text)
//   - optionally a daily JSON file under a log directory
//   - optionally an in-memory Recorder, used by tests
//
// # Basic Usage
//
//	logger, err := logging.New(logging.Config{
//	    Level:   logging.LevelInfo,
//	    LogDir:  "~/.sortbench/logs",
//	    Service: "sortbench",
//	})
//	if err != nil { ... }
//	defer logger.Close()
//	coord := coordinator.New(..., coordinator.WithLogger(logger.Slog()))
//
// # Thread Safety
//
// Logger is safe for concurrent use. The underlying slog handlers are
// thread-safe and Close is guarded by a mutex.
//
// # Security Considerations
//
// Nothing is redacted. The benchmark logs run parameters, timings and file
// paths only.
package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// DefaultService names the log file and tags every record when Config.Service
// is empty.
const DefaultService = "sortbench"

// ErrUnknownLevel is returned by ParseLevel.
var ErrUnknownLevel = errors.New("unknown log level")

// =============================================================================
// Log Levels
// =============================================================================

// Level is a log severity. Debug < Info < Warn < Error. The zero value is
// Info.
type Level int

const (
	// LevelDebug traces per-frame and per-chunk activity.
	LevelDebug Level = iota - 1

	// LevelInfo covers run start/finish, dataset generation and config
	// reloads.
	LevelInfo

	// LevelWarn covers recoverable problems: an unavailable backend, an
	// ignored config edit.
	LevelWarn

	// LevelError covers failed runs and failed commands.
	LevelError
)

// String returns "DEBUG", "INFO", "WARN", "ERROR" or "UNKNOWN".
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel accepts the config file and --log-level spellings, case
// insensitive. The empty string is Info.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug, nil
	case "", "info":
		return LevelInfo, nil
	case "warn", "warning":
		return LevelWarn, nil
	case "error":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("%w: %q", ErrUnknownLevel, s)
	}
}

func (l Level) slogLevel() slog.Level {
	switch l {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// =============================================================================
// Configuration
// =============================================================================

// Config configures New. The zero value logs Info and above to stderr as
// text.
type Config struct {
	// Level is the minimum level written to every destination.
	Level Level

	// LogDir enables a JSON log file named "{Service}_{YYYY-MM-DD}.log".
	// A leading ~ expands to the home directory. The directory is created
	// with 0750 permissions.
	LogDir string

	// Service is attached to every record as the "service" attribute.
	// Default: DefaultService.
	Service string

	// JSON switches the stderr destination to JSON. File output is always
	// JSON.
	JSON bool

	// Quiet disables the stderr destination. The TUI sets it so log lines
	// do not tear the alternate screen.
	Quiet bool

	// Stderr overrides os.Stderr. Used by tests.
	Stderr io.Writer

	// Recorder, if set, receives a copy of every record that passes Level.
	Recorder *Recorder
}

// =============================================================================
// Logger
// =============================================================================

// Logger is a *slog.Logger that owns its log file.
//
// Always Close a Logger created with a LogDir so the file is synced.
type Logger struct {
	*slog.Logger

	path string

	mu   sync.Mutex
	file *os.File
}

// New creates a Logger.
//
// # Description
//
// Builds one slog handler per enabled destination and fans records out to
// all of them. When no destination is enabled (Quiet with no LogDir or
// Recorder) records are discarded.
//
// # Inputs
//
//   - cfg: Destinations and level.
//
// # Outputs
//
//   - *Logger: Ready to use. Never nil.
//   - error: Non-nil if LogDir was set but the file could not be opened; the
//     returned Logger still writes to the other destinations.
func New(cfg Config) (*Logger, error) {
	opts := &slog.HandlerOptions{Level: cfg.Level.slogLevel()}
	service := cfg.Service
	if service == "" {
		service = DefaultService
	}

	var handlers []slog.Handler
	if !cfg.Quiet {
		w := cfg.Stderr
		if w == nil {
			w = os.Stderr
		}
		if cfg.JSON {
			handlers = append(handlers, slog.NewJSONHandler(w, opts))
		} else {
			handlers = append(handlers, slog.NewTextHandler(w, opts))
		}
	}
	if cfg.Recorder != nil {
		handlers = append(handlers, cfg.Recorder.withLevel(opts.Level.Level()))
	}

	l := &Logger{}
	var openErr error
	if cfg.LogDir != "" {
		file, path, err := openLogFile(expandPath(cfg.LogDir), service, time.Now())
		if err != nil {
			openErr = err
		} else {
			l.file, l.path = file, path
			handlers = append(handlers, slog.NewJSONHandler(file, opts))
		}
	}

	var handler slog.Handler
	switch len(handlers) {
	case 0:
		handler = slog.NewTextHandler(io.Discard, opts)
	case 1:
		handler = handlers[0]
	default:
		handler = &fanout{handlers: handlers}
	}
	handler = handler.WithAttrs([]slog.Attr{slog.String("service", service)})

	l.Logger = slog.New(handler)
	return l, openErr
}

// Default logs Info and above to stderr as text.
func Default() *Logger {
	l, _ := New(Config{Level: LevelInfo})
	return l
}

// Slog returns the underlying *slog.Logger for injection into components.
func (l *Logger) Slog() *slog.Logger {
	return l.Logger
}

// Path returns the log file path, or "" when file logging is off.
func (l *Logger) Path() string {
	return l.path
}

// Close syncs and closes the log file. Safe to call more than once.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	f := l.file
	l.file = nil
	syncErr := f.Sync()
	if err := f.Close(); err != nil {
		return fmt.Errorf("close log file: %w", err)
	}
	if syncErr != nil {
		return fmt.Errorf("sync log file: %w", syncErr)
	}
	return nil
}

func openLogFile(dir, service string, now time.Time) (*os.File, string, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, "", fmt.Errorf("create log dir: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("%s_%s.log", service, now.Format("2006-01-02")))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
	if err != nil {
		return nil, "", fmt.Errorf("open log file: %w", err)
	}
	return f, path, nil
}

// expandPath expands a leading ~ to the user's home directory.
func expandPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}

// =============================================================================
// Fan-out Handler
// =============================================================================

// fanout sends each record to every handler enabled for its level.
type fanout struct {
	handlers []slog.Handler
}

func (h *fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle writes to every destination and reports the first failure.
func (h *fanout) Handle(ctx context.Context, r slog.Record) error {
	var first error
	for _, handler := range h.handlers {
		if !handler.Enabled(ctx, r.Level) {
			continue
		}
		if err := handler.Handle(ctx, r.Clone()); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (h *fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		next[i] = handler.WithAttrs(attrs)
	}
	return &fanout{handlers: next}
}

func (h *fanout) WithGroup(name string) slog.Handler {
	next := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		next[i] = handler.WithGroup(name)
	}
	return &fanout{handlers: next}
}
