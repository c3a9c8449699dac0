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
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/AleutianAI/sortbench/pkg/logging"
	"github.com/AleutianAI/sortbench/services/sortbench/dataset"
	"github.com/AleutianAI/sortbench/services/sortbench/gateway"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_CreatesDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", FileName)
	cfg, resolved, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, path, resolved)
	assert.Equal(t, DefaultSize, cfg.Width)
	assert.Equal(t, "random", cfg.Mode)
	assert.Equal(t, dataset.DefaultSeed, cfg.Seed)

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestParse_OverlaysDefaults(t *testing.T) {
	cfg, err := Parse([]byte("mode: sawtooth\nconcurrency: 3\n"))
	require.NoError(t, err)
	assert.Equal(t, "sawtooth", cfg.Mode)
	assert.Equal(t, 3, cfg.Concurrency)
	assert.Equal(t, DefaultSize, cfg.Height)
	assert.Equal(t, "baseline", cfg.Variant)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown mode", "mode: zigzag\n"},
		{"unknown variant", "variant: bogo\n"},
		{"cost too high", "comparator_cost: 26\n"},
		{"negative cost", "comparator_cost: -1\n"},
		{"zero width", "width: 0\n"},
		{"bad log level", "log:\n  level: loud\n"},
		{"bad metrics addr", "metrics_addr: nope\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.True(t, errors.Is(err, ErrInvalidConfig), "got %v", err)
		})
	}

	_, err := Parse([]byte("width: [\n"))
	assert.Error(t, err)
}

func TestParse_NonPositiveConcurrencyIsNotAnError(t *testing.T) {
	cfg, err := Parse([]byte("concurrency: -2\n"))
	require.NoError(t, err)

	s, err := cfg.Settings()
	require.NoError(t, err)
	assert.Equal(t, 1, s.Params.Concurrency)
}

func TestSettings_Conversion(t *testing.T) {
	cfg, err := Parse([]byte("mode: nearlysorted\nvariant: parallel-radix\ncomparator_cost: 2.5\nseed: 9\nconcurrency: 4\n"))
	require.NoError(t, err)
	s, err := cfg.Settings()
	require.NoError(t, err)
	assert.Equal(t, dataset.NearlySorted, s.Mode)
	assert.Equal(t, gateway.ParallelRadixC, s.Params.Variant)
	assert.Equal(t, 2.5, s.Params.ComparatorCost)
	assert.Equal(t, 4, s.Params.Concurrency)
	assert.Equal(t, uint64(9), s.Seed)
}

func TestSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	cfg := DefaultConfig()
	cfg.Mode = "presorted"
	cfg.MetricsAddr = ":9464"
	require.NoError(t, Save(path, &cfg))

	loaded, _, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, *loaded)

	bad := DefaultConfig()
	bad.Variant = "nope"
	assert.True(t, errors.Is(Save(path, &bad), ErrInvalidConfig))
}

func TestWatcher_DeliversValidChanges(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, FileName)
	cfg := DefaultConfig()
	require.NoError(t, Save(path, &cfg))

	w, err := NewWatcher(path, nil)
	require.NoError(t, err)
	defer w.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	started := make(chan error, 1)
	go func() { started <- w.Start(ctx) }()

	// Give Start time to register the directory.
	time.Sleep(100 * time.Millisecond)

	require.NoError(t, os.WriteFile(path, []byte("mode: zigzag\n"), 0644))

	// Unrelated files in the directory are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x: 1\n"), 0644))

	require.NoError(t, os.WriteFile(path, []byte("mode: sawtooth\n"), 0644))
	deadline := time.After(5 * time.Second)
	for done := false; !done; {
		select {
		case got := <-w.Updates():
			require.NotEqual(t, "zigzag", got.Mode)
			done = got.Mode == "sawtooth"
		case <-deadline:
			t.Fatal("no config update delivered")
		}
	}

	cancel()
	select {
	case err := <-started:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not stop")
	}
}

func TestWatcher_CoalescesBurstOfWrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	cfg := DefaultConfig()
	require.NoError(t, Save(path, &cfg))

	rec := logging.NewRecorder()
	logger, err := logging.New(logging.Config{Quiet: true, Recorder: rec})
	require.NoError(t, err)

	w, err := NewWatcher(path, logger.Slog(), WithDebounceWindow(300*time.Millisecond))
	require.NoError(t, err)
	defer w.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Start(ctx) }()
	time.Sleep(100 * time.Millisecond)

	for _, mode := range []string{"random", "presorted", "nearlysorted", "sawtooth"} {
		require.NoError(t, os.WriteFile(path, []byte("mode: "+mode+"\n"), 0644))
	}

	select {
	case got := <-w.Updates():
		assert.Equal(t, "sawtooth", got.Mode)
	case <-time.After(5 * time.Second):
		t.Fatal("no config update delivered")
	}
	select {
	case got := <-w.Updates():
		t.Fatalf("burst produced a second reload (mode %s)", got.Mode)
	case <-time.After(600 * time.Millisecond):
	}

	reloads := 0
	for _, msg := range rec.Messages() {
		if msg == "config changed" {
			reloads++
		}
	}
	assert.Equal(t, 1, reloads)
}
