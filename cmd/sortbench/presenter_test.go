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
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/AleutianAI/sortbench/pkg/logging"
	"github.com/AleutianAI/sortbench/services/sortbench/buffer"
	"github.com/AleutianAI/sortbench/services/sortbench/config"
	"github.com/AleutianAI/sortbench/services/sortbench/metrics"
	"github.com/AleutianAI/sortbench/services/sortbench/render"
	"github.com/AleutianAI/sortbench/services/sortbench/results"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sortedFrame(t *testing.T) render.Frame {
	t.Helper()
	buf, err := buffer.New(4, 2)
	require.NoError(t, err)
	for i := 0; i < buf.Len(); i++ {
		buf.Store(i, buffer.Gray(uint8(i*10)))
	}
	return render.Capture(buf, nil, 1)
}

// =============================================================================
// progressPresenter
// =============================================================================

func TestProgressPresenter_Live(t *testing.T) {
	var out bytes.Buffer
	p := newProgressPresenter(&out, true)
	p.begin("Parallel sort")

	require.NoError(t, p.PresentFrame(sortedFrame(t)))
	require.NoError(t, p.PresentFrame(sortedFrame(t)))
	p.end()

	assert.Equal(t, 2, p.frames)
	assert.Equal(t, 1.0, p.sortedness)
	assert.Equal(t, 2, strings.Count(out.String(), "\r"))
	assert.Contains(t, out.String(), "Parallel sort")
	assert.True(t, strings.HasSuffix(out.String(), "\n"))
}

func TestProgressPresenter_PipedIsSilent(t *testing.T) {
	var out bytes.Buffer
	p := newProgressPresenter(&out, false)
	p.begin("Baseline sort")
	require.NoError(t, p.PresentFrame(sortedFrame(t)))
	require.NoError(t, p.PresentStats(results.Report{}))
	p.end()

	assert.Empty(t, out.String())
	assert.Equal(t, 1, p.frames)
}

func TestProgressPresenter_RejectsBadFrame(t *testing.T) {
	p := newProgressPresenter(io.Discard, true)
	f := sortedFrame(t)
	f.Pixels = f.Pixels[:4]
	assert.Error(t, p.PresentFrame(f))
	assert.Equal(t, 0, p.frames)
}

func TestProgressPresenter_KeepsLatestReport(t *testing.T) {
	p := newProgressPresenter(io.Discard, false)
	store := results.NewStore()
	store.Record(0, time.Second, "r1")
	require.NoError(t, p.PresentStats(store.Report()))
	_, ok := p.report.Sample(0)
	assert.True(t, ok)
}

// =============================================================================
// Metrics and tracing
// =============================================================================

func TestMetricsServer_ServesMetrics(t *testing.T) {
	rec := logging.NewRecorder()
	logger, _ := logging.New(logging.Config{Quiet: true, Recorder: rec})

	srv, err := startMetricsServer("127.0.0.1:0", logger.Slog())
	require.NoError(t, err)
	defer srv.Shutdown(context.Background())

	metrics.RecordFrame()
	resp, err := http.Get("http://" + srv.Addr() + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "sortbench_render_frames_total")
	_, found := rec.Find("serving metrics")
	assert.True(t, found)
}

func TestMetricsServer_BusyPort(t *testing.T) {
	first, err := startMetricsServer("127.0.0.1:0", logging.Default().Slog())
	require.NoError(t, err)
	defer first.Shutdown(context.Background())

	_, err = startMetricsServer(first.Addr(), logging.Default().Slog())
	assert.Error(t, err)
}

func TestSetupTracing_WritesSpans(t *testing.T) {
	var out bytes.Buffer
	shutdown, err := setupTracing(&out)
	require.NoError(t, err)

	cfgPath := tempConfig(t)
	_, _, err = execute(t, "generate", "--config", cfgPath, "--mode", "presorted",
		"--width", "4", "--height", "4", "--out", cfgPath+".png")
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))

	assert.Contains(t, out.String(), "dataset.Fill")
	assert.Contains(t, out.String(), "gateway.Invoke")
}

// =============================================================================
// configure form values
// =============================================================================

func TestFormValues_ApplyRoundTrip(t *testing.T) {
	cfg := config.DefaultConfig()
	fv := newFormValues(&cfg)
	fv.Mode = "sawtooth"
	fv.Variant = "parallel-buffered"
	fv.Width = " 640 "
	fv.Concurrency = "0"
	fv.Cost = "2.5"
	fv.MetricsAddr = ":9464"

	require.NoError(t, fv.apply(&cfg))
	assert.Equal(t, "sawtooth", cfg.Mode)
	assert.Equal(t, "parallel-buffered", cfg.Variant)
	assert.Equal(t, 640, cfg.Width)
	assert.Equal(t, 0, cfg.Concurrency)
	assert.Equal(t, 2.5, cfg.ComparatorCost)
	assert.Equal(t, ":9464", cfg.MetricsAddr)
}

func TestFormValues_ApplyLeavesConfigOnError(t *testing.T) {
	cfg := config.DefaultConfig()
	before := cfg

	fv := newFormValues(&cfg)
	fv.Width = "wide"
	assert.Error(t, fv.apply(&cfg))
	assert.Equal(t, before, cfg)

	fv = newFormValues(&cfg)
	fv.Cost = "99"
	assert.ErrorIs(t, fv.apply(&cfg), config.ErrInvalidConfig)
	assert.Equal(t, before, cfg)
}

func TestFormValidators(t *testing.T) {
	assert.NoError(t, intIn(1, 10)("5"))
	assert.Error(t, intIn(1, 10)("11"))
	assert.Error(t, intIn(1, 10)("x"))
	assert.NoError(t, floatIn(0, 25)("0.5"))
	assert.Error(t, floatIn(0, 25)("-1"))
	assert.NoError(t, validUint("100"))
	assert.Error(t, validUint("-1"))
	assert.NotNil(t, newFormValues(&config.Config{}).form())
}
