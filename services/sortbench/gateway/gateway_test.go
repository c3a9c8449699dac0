// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package gateway

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/AleutianAI/sortbench/services/sortbench/buffer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBackend records the last call and optionally fails or panics.
type fakeBackend struct {
	elapsed     time.Duration
	err         error
	panicWith   any
	calls       int
	variant     Variant
	n           int
	concurrency int
	cost        float64
}

func (f *fakeBackend) Name() string { return "fake" }

func (f *fakeBackend) Sort(variant Variant, cells buffer.Cells, n, concurrency int, cost float64) (time.Duration, error) {
	f.calls++
	f.variant, f.n, f.concurrency, f.cost = variant, n, concurrency, cost
	if f.panicWith != nil {
		panic(f.panicWith)
	}
	return f.elapsed, f.err
}

func init() {
	Register(DefaultBackend, &fakeBackend{elapsed: time.Millisecond})
}

func newCells(t *testing.T, n int) *buffer.Working {
	t.Helper()
	w, err := buffer.New(n, 1)
	require.NoError(t, err)
	return w
}

func TestInvoke_ForwardsArguments(t *testing.T) {
	fb := &fakeBackend{elapsed: 1500 * time.Millisecond}
	g := New(fb)
	cells := newCells(t, 8)

	elapsed, err := g.Invoke(context.Background(), ParallelRadixC, cells, 6, 4, 2.5)
	require.NoError(t, err)
	assert.Equal(t, 1500*time.Millisecond, elapsed)
	assert.Equal(t, 1, fb.calls)
	assert.Equal(t, ParallelRadixC, fb.variant)
	assert.Equal(t, 6, fb.n)
	assert.Equal(t, 4, fb.concurrency)
	assert.Equal(t, 2.5, fb.cost)
}

func TestInvoke_ClampsConcurrency(t *testing.T) {
	fb := &fakeBackend{}
	g := New(fb)
	_, err := g.Invoke(context.Background(), Baseline, newCells(t, 4), 4, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, fb.concurrency)

	_, err = g.Invoke(context.Background(), Baseline, newCells(t, 4), 4, -3, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, fb.concurrency)
}

func TestInvoke_InvalidArguments(t *testing.T) {
	fb := &fakeBackend{}
	g := New(fb)
	cells := newCells(t, 4)

	tests := []struct {
		name    string
		variant Variant
		cells   buffer.Cells
		n       int
		cost    float64
	}{
		{"count exceeds buffer", Baseline, cells, 5, 0},
		{"negative count", Baseline, cells, -1, 0},
		{"unknown variant", Variant(9), cells, 4, 0},
		{"nil buffer", Baseline, nil, 0, 0},
		{"negative cost", Baseline, cells, 4, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := g.Invoke(context.Background(), tt.variant, tt.cells, tt.n, 1, tt.cost)
			assert.True(t, errors.Is(err, ErrInvalidArgument), "got %v", err)
		})
	}
	assert.Zero(t, fb.calls)
}

func TestInvoke_Unavailable(t *testing.T) {
	g := New(nil)
	assert.False(t, g.Available())
	_, err := g.Invoke(context.Background(), Baseline, newCells(t, 4), 4, 1, 0)
	assert.True(t, errors.Is(err, ErrComputationUnavailable))
}

func TestInvoke_BackendErrorWrapped(t *testing.T) {
	g := New(&fakeBackend{err: errors.New("boom")})
	elapsed, err := g.Invoke(context.Background(), ParallelA, newCells(t, 4), 4, 2, 0)
	assert.True(t, errors.Is(err, ErrComputationFailed))
	assert.Zero(t, elapsed)
}

func TestInvoke_RecoversPanic(t *testing.T) {
	g := New(&fakeBackend{panicWith: "index out of range"})
	var err error
	assert.NotPanics(t, func() {
		_, err = g.Invoke(context.Background(), ParallelBufferedB, newCells(t, 4), 4, 2, 0)
	})
	assert.True(t, errors.Is(err, ErrComputationFailed))
	assert.Contains(t, err.Error(), "index out of range")
}

func TestInvoke_ZeroElements(t *testing.T) {
	fb := &fakeBackend{}
	g := New(fb)
	_, err := g.Invoke(context.Background(), Baseline, newCells(t, 4), 0, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, fb.n)
}

func TestLocate_DefaultBackend(t *testing.T) {
	g, err := Locate("", nil)
	require.NoError(t, err)
	require.NotNil(t, g)
	assert.True(t, g.Available())
	assert.NoError(t, g.Probe())
	assert.Equal(t, "in-process:fake", g.Source())
}

func TestLocate_MissingPlugin(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.so")
	g, err := Locate(path, nil)
	require.Error(t, err)
	require.NotNil(t, g)
	assert.True(t, errors.Is(err, ErrComputationUnavailable))
	assert.Contains(t, err.Error(), path)
	assert.False(t, g.Available())
	assert.Equal(t, "none", g.Source())

	_, invokeErr := g.Invoke(context.Background(), Baseline, newCells(t, 2), 2, 1, 0)
	assert.True(t, errors.Is(invokeErr, ErrComputationUnavailable))
}

func TestRegister_DuplicatePanics(t *testing.T) {
	assert.Panics(t, func() { Register(DefaultBackend, &fakeBackend{}) })
	assert.Panics(t, func() { Register("nil-backend", nil) })
	assert.Contains(t, Registered(), DefaultBackend)
}

func TestParseVariant(t *testing.T) {
	for _, v := range Variants {
		got, err := ParseVariant(v.String())
		require.NoError(t, err)
		assert.Equal(t, v, got)
	}
	got, err := ParseVariant("3")
	require.NoError(t, err)
	assert.Equal(t, ParallelRadixC, got)

	_, err = ParseVariant("bogus")
	assert.True(t, errors.Is(err, ErrInvalidArgument))
}

func TestVariant_NextWraps(t *testing.T) {
	assert.Equal(t, ParallelA, Baseline.Next())
	assert.Equal(t, Baseline, ParallelRadixC.Next())
	assert.False(t, Variant(4).Valid())
}
