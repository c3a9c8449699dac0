// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/AleutianAI/sortbench/pkg/ux"
	"github.com/AleutianAI/sortbench/services/sortbench/config"
	"github.com/AleutianAI/sortbench/services/sortbench/gateway"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the CLI in machine mode against a config file in a temp dir.
func execute(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()
	var out, errOut bytes.Buffer
	restore := ux.SetOutput(&out, &errOut)
	prev := ux.Level()
	defer func() {
		ux.SetLevel(prev)
		restore()
	}()

	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(append(args, "--personality", "machine"))
	err = root.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func tempConfig(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), config.FileName)
}

func decodePNG(t *testing.T, path string) image.Image {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	img, err := png.Decode(f)
	require.NoError(t, err)
	return img
}

func grayAt(img image.Image, x, y int) uint32 {
	r, _, _, _ := img.At(x, y).RGBA()
	return r >> 8
}

// =============================================================================
// run
// =============================================================================

func TestRun_AllVariantsSortsAndReports(t *testing.T) {
	cfgPath := tempConfig(t)
	snap := filepath.Join(t.TempDir(), "sorted.png")

	out, _, err := execute(t, "run", "--all",
		"--config", cfgPath,
		"--width", "32", "--height", "24", "-k", "3",
		"--snapshot", snap)
	require.NoError(t, err)

	for _, v := range gateway.Variants {
		assert.Contains(t, out, "OK: "+v.Label()+" sorted in ", "missing success line for %s", v)
	}
	assert.Contains(t, out, "Results: Baseline sort")
	assert.Contains(t, out, "Last run: Parallel radix sort")
	assert.Contains(t, out, "OK: Snapshot written to "+snap)

	img := decodePNG(t, snap)
	require.Equal(t, image.Rect(0, 0, 32, 24), img.Bounds())
	prev := uint32(0)
	for y := 0; y < 24; y++ {
		for x := 0; x < 32; x++ {
			g := grayAt(img, x, y)
			require.GreaterOrEqual(t, g, prev, "pixel (%d,%d) out of order", x, y)
			prev = g
		}
	}

	// The config file was created with defaults; flags did not overwrite it.
	cfg, _, err := config.Load(cfgPath)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultSize, cfg.Width)
}

func TestRun_SnapshotToStdoutIsPNG(t *testing.T) {
	out, stderr, err := execute(t, "run", "--config", tempConfig(t),
		"--width", "8", "--height", "8", "--snapshot", "-")
	require.NoError(t, err)

	img, err := png.Decode(strings.NewReader(out))
	require.NoError(t, err, "stdout must hold only the PNG")
	require.Equal(t, image.Rect(0, 0, 8, 8), img.Bounds())
	prev := uint32(0)
	for y := 0; y < 8; y++ {
		for x := 0; x < 8; x++ {
			g := grayAt(img, x, y)
			require.GreaterOrEqual(t, g, prev, "pixel (%d,%d) out of order", x, y)
			prev = g
		}
	}

	assert.Contains(t, stderr, "Data: Random")
	assert.Contains(t, stderr, "OK: Baseline sort sorted in ")
	assert.Contains(t, stderr, "Results: ")
	assert.NotContains(t, stderr, "Snapshot written")
}

func TestRun_UnknownVariant(t *testing.T) {
	_, _, err := execute(t, "run", "--config", tempConfig(t), "-v", "bogo", "--width", "8", "--height", "8")
	assert.True(t, errors.Is(err, gateway.ErrInvalidArgument), "got %v", err)
}

func TestRun_InvalidFlagValue(t *testing.T) {
	_, _, err := execute(t, "run", "--config", tempConfig(t), "--cost", "30")
	assert.True(t, errors.Is(err, config.ErrInvalidConfig), "got %v", err)
}

func TestRun_MissingBackendWarnsAndFails(t *testing.T) {
	_, stderr, err := execute(t, "run", "--config", tempConfig(t),
		"--backend", filepath.Join(t.TempDir(), "missing.so"))
	assert.True(t, errors.Is(err, gateway.ErrComputationUnavailable), "got %v", err)
	assert.Contains(t, stderr, "WARN Sort backend unavailable:")
}

func TestRunOptions_ResolveDedupesVariants(t *testing.T) {
	cmd := newRunCmd(&globalOptions{})
	require.NoError(t, cmd.Flags().Parse([]string{"-v", "parallel", "-v", "baseline,parallel", "--mode", "sawtooth"}))

	o := &runOptions{}
	o.variants, _ = cmd.Flags().GetStringSlice("variant")
	o.field.mode, _ = cmd.Flags().GetString("mode")

	cfg := config.DefaultConfig()
	settings, variants, err := o.resolve(cmd.Flags(), &cfg)
	require.NoError(t, err)
	assert.Equal(t, []gateway.Variant{gateway.ParallelA, gateway.Baseline}, variants)
	assert.Equal(t, "sawtooth", settings.Mode.String())
}

// =============================================================================
// generate
// =============================================================================

func TestGenerate_SawtoothPNG(t *testing.T) {
	outPath := filepath.Join(t.TempDir(), "teeth.png")
	out, _, err := execute(t, "generate", "--config", tempConfig(t),
		"--mode", "sawtooth", "-k", "3", "--width", "10", "--height", "10", "--out", outPath)
	require.NoError(t, err)
	assert.Contains(t, out, "written to "+outPath)

	img := decodePNG(t, outPath)
	require.Equal(t, image.Rect(0, 0, 10, 10), img.Bounds())
	// Three teeth of 33 pixels; each restarts at a low level.
	assert.Equal(t, grayAt(img, 0, 0), grayAt(img, 3, 3)) // pixels 0 and 33
	assert.Equal(t, grayAt(img, 0, 0), grayAt(img, 6, 6)) // pixels 0 and 66
	assert.Equal(t, grayAt(img, 1, 0), grayAt(img, 4, 3)) // pixels 1 and 34
	assert.Equal(t, uint32(0), grayAt(img, 9, 9))
}

func TestGenerate_UnknownMode(t *testing.T) {
	_, _, err := execute(t, "generate", "--config", tempConfig(t), "--mode", "zigzag")
	assert.True(t, errors.Is(err, config.ErrInvalidConfig), "got %v", err)
}

// =============================================================================
// variants, tui
// =============================================================================

func TestVariants_ListsEverything(t *testing.T) {
	out, _, err := execute(t, "variants", "--config", tempConfig(t))
	require.NoError(t, err)
	for _, want := range []string{
		"baseline\tBaseline sort (0)",
		"parallel-radix\tParallel radix sort (3)",
		"sawtooth\t",
		"source\tin-process:native",
		"status\tavailable",
		"arch\t" + runtime.GOARCH,
		"cpus\t",
		"features\t",
	} {
		assert.Contains(t, out, want)
	}
}

func TestTUI_RequiresTerminal(t *testing.T) {
	_, _, err := execute(t, "tui", "--config", tempConfig(t))
	assert.ErrorIs(t, err, errNotInteractive)
}

func TestConfigure_RequiresTerminal(t *testing.T) {
	_, _, err := execute(t, "configure", "--config", tempConfig(t))
	assert.ErrorIs(t, err, errNotInteractive)
}

// =============================================================================
// Global flags
// =============================================================================

func TestApplyGlobalFlags_OnlyChangedFlags(t *testing.T) {
	cmd := newRootCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--log-level", "debug", "--metrics-addr", ":9464"}))

	g := &globalOptions{logLevel: "debug", metricsAddr: ":9464"}
	cfg := config.DefaultConfig()
	cfg.Log.JSON = true
	require.NoError(t, applyGlobalFlags(cmd, g, &cfg))
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, ":9464", cfg.MetricsAddr)
	assert.True(t, cfg.Log.JSON, "unset flag must not override the file")

	bad := newRootCmd()
	require.NoError(t, bad.ParseFlags([]string{"--log-level", "loud"}))
	cfg = config.DefaultConfig()
	err := applyGlobalFlags(bad, &globalOptions{logLevel: "loud"}, &cfg)
	assert.True(t, errors.Is(err, config.ErrInvalidConfig), "got %v", err)
}

func TestBackendHint(t *testing.T) {
	hint := backendHint(gateway.ErrComputationUnavailable)
	assert.True(t, strings.HasPrefix(hint, gateway.ErrComputationUnavailable.Error()))
	assert.Contains(t, hint, "-buildmode=plugin")
}
