// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

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
	"time"
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
			if got := tt.level.String(); got != tt.want {
				t.Errorf("String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", LevelDebug},
		{"INFO", LevelInfo},
		{"", LevelInfo},
		{" warn ", LevelWarn},
		{"warning", LevelWarn},
		{"Error", LevelError},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if err != nil {
				t.Fatalf("ParseLevel(%q) error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}

	if _, err := ParseLevel("loud"); !errors.Is(err, ErrUnknownLevel) {
		t.Errorf("ParseLevel(loud) error = %v, want ErrUnknownLevel", err)
	}
}

func TestLevel_slogLevel(t *testing.T) {
	if LevelDebug.slogLevel() != slog.LevelDebug || LevelError.slogLevel() != slog.LevelError {
		t.Error("level mapping broken")
	}
	if Level(42).slogLevel() != slog.LevelInfo {
		t.Error("unknown level should map to Info")
	}
}

// =============================================================================
// Logger Tests
// =============================================================================

func TestNew_TextToStderr(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Config{Level: LevelInfo, Stderr: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer l.Close()

	l.Info("run finished", "variant", "baseline")
	l.Debug("hidden")

	out := buf.String()
	if !strings.Contains(out, "msg=\"run finished\"") || !strings.Contains(out, "variant=baseline") {
		t.Errorf("unexpected output: %s", out)
	}
	if !strings.Contains(out, "service="+DefaultService) {
		t.Errorf("missing service attribute: %s", out)
	}
	if strings.Contains(out, "hidden") {
		t.Error("debug record written at info level")
	}
}

func TestNew_JSONToStderr(t *testing.T) {
	var buf bytes.Buffer
	l, _ := New(Config{Level: LevelDebug, JSON: true, Stderr: &buf, Service: "bench"})
	l.Debug("frame", "tick", 3)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, buf.String())
	}
	if rec["msg"] != "frame" || rec["service"] != "bench" || rec["tick"] != float64(3) {
		t.Errorf("unexpected record: %v", rec)
	}
}

func TestNew_WithLogDir(t *testing.T) {
	dir := t.TempDir()
	l, err := New(Config{Level: LevelInfo, LogDir: dir, Quiet: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	l.Info("dataset generated", "mode", "random")
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}

	want := filepath.Join(dir, DefaultService+"_"+time.Now().Format("2006-01-02")+".log")
	if l.Path() != want {
		t.Errorf("Path() = %q, want %q", l.Path(), want)
	}
	data, err := os.ReadFile(want)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"dataset generated"`) {
		t.Errorf("file missing record: %s", data)
	}
}

func TestNew_LogDirUnwritable(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	l, err := New(Config{LogDir: filepath.Join(blocker, "logs"), Stderr: &buf})
	if err == nil {
		t.Fatal("expected an error for a log dir under a regular file")
	}
	if l == nil {
		t.Fatal("New must return a usable logger on error")
	}
	l.Info("still works")
	if !strings.Contains(buf.String(), "still works") {
		t.Error("stderr destination lost after file error")
	}
	if l.Path() != "" {
		t.Errorf("Path() = %q, want empty", l.Path())
	}
}

func TestNew_QuietWithoutDestinations(t *testing.T) {
	l, err := New(Config{Quiet: true})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	l.Error("discarded")
}

func TestDefault(t *testing.T) {
	l := Default()
	if l.Slog() == nil {
		t.Fatal("Default().Slog() is nil")
	}
	if l.Slog().Enabled(context.Background(), slog.LevelDebug) {
		t.Error("default logger should not enable debug")
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}
	tests := []struct {
		in, want string
	}{
		{"~/.sortbench/logs", filepath.Join(home, ".sortbench/logs")},
		{"~", home},
		{"/var/log", "/var/log"},
		{"~other/logs", "~other/logs"},
		{"rel/path", "rel/path"},
	}
	for _, tt := range tests {
		if got := expandPath(tt.in); got != tt.want {
			t.Errorf("expandPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

// =============================================================================
// Recorder Tests
// =============================================================================

func TestRecorder_CapturesThroughLogger(t *testing.T) {
	rec := NewRecorder()
	l, _ := New(Config{Level: LevelWarn, Quiet: true, Recorder: rec})

	l.Info("below level")
	l.With("run_id", "r1").Warn("backend unavailable", "path", "/tmp/x.so")

	entries := rec.Entries()
	if len(entries) != 1 {
		t.Fatalf("recorded %d entries, want 1", len(entries))
	}
	e := entries[0]
	if e.Message != "backend unavailable" || e.Level != slog.LevelWarn {
		t.Errorf("unexpected entry: %+v", e)
	}
	for k, want := range map[string]any{"service": DefaultService, "run_id": "r1", "path": "/tmp/x.so"} {
		if e.Attrs[k] != want {
			t.Errorf("Attrs[%q] = %v, want %v", k, e.Attrs[k], want)
		}
	}
}

func TestRecorder_Groups(t *testing.T) {
	rec := NewRecorder()
	logger := slog.New(rec.Handler())

	logger.WithGroup("params").With("variant", "parallel").Info("start",
		slog.Group("data", slog.String("mode", "sawtooth")), slog.Int("k", 4))

	e, ok := rec.Find("start")
	if !ok {
		t.Fatal("entry not found")
	}
	want := map[string]any{
		"params.variant":   "parallel",
		"params.data.mode": "sawtooth",
		"params.k":         int64(4),
	}
	for k, v := range want {
		if e.Attrs[k] != v {
			t.Errorf("Attrs[%q] = %v, want %v", k, e.Attrs[k], v)
		}
	}
}

func TestRecorder_EntriesIsCopyAndReset(t *testing.T) {
	rec := NewRecorder()
	logger := slog.New(rec.Handler())
	logger.Debug("one")
	logger.Debug("two")

	got := rec.Entries()
	got[0].Message = "changed"
	if rec.Messages()[0] != "one" {
		t.Error("Entries() should return a copy")
	}
	if _, ok := rec.Find("missing"); ok {
		t.Error("Find returned a missing message")
	}

	rec.Reset()
	if len(rec.Entries()) != 0 {
		t.Error("Reset did not clear entries")
	}
}

func TestRecorder_ConcurrentUse(t *testing.T) {
	rec := NewRecorder()
	l, _ := New(Config{Level: LevelDebug, Quiet: true, Recorder: rec})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				l.Debug("frame", "worker", id, "tick", j)
			}
		}(i)
	}
	wg.Wait()
	if n := len(rec.Entries()); n != 400 {
		t.Errorf("recorded %d entries, want 400", n)
	}
}

// =============================================================================
// Fan-out Tests
// =============================================================================

func TestFanout_RespectsEachHandlerLevel(t *testing.T) {
	var debugBuf, errorBuf bytes.Buffer
	h := &fanout{handlers: []slog.Handler{
		slog.NewTextHandler(&debugBuf, &slog.HandlerOptions{Level: slog.LevelDebug}),
		slog.NewTextHandler(&errorBuf, &slog.HandlerOptions{Level: slog.LevelError}),
	}}
	if !h.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("fanout should be enabled when any handler is")
	}

	logger := slog.New(h).With("a", 1).WithGroup("g")
	logger.Info("info only")
	logger.Error("both", "b", 2)

	if !strings.Contains(debugBuf.String(), "info only") || !strings.Contains(debugBuf.String(), "g.b=2") {
		t.Errorf("debug handler output: %s", debugBuf.String())
	}
	if strings.Contains(errorBuf.String(), "info only") {
		t.Error("error handler received an info record")
	}
	if !strings.Contains(errorBuf.String(), "a=1") {
		t.Errorf("error handler lost attrs: %s", errorBuf.String())
	}
}
