// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package coordinator

import (
	"log/slog"
	"math"
	"runtime"

	"github.com/AleutianAI/sortbench/services/sortbench/dataset"
	"github.com/AleutianAI/sortbench/services/sortbench/gateway"
)

const (
	// MaxComparatorCost is the upper bound of the comparator cost slider.
	MaxComparatorCost = 25.0

	// ComparatorCostStep is the slider increment.
	ComparatorCostStep = 0.5

	// DefaultFrameRate is used by Drive when no positive rate is given.
	DefaultFrameRate = 30.0
)

// RunParameters is the immutable per-run selection. It is copied into the
// run goroutine at dispatch.
type RunParameters struct {
	Variant        gateway.Variant
	Concurrency    int
	ComparatorCost float64
}

// DefaultParameters returns Baseline with one worker per CPU and no cost.
func DefaultParameters() RunParameters {
	return RunParameters{
		Variant:     gateway.Baseline,
		Concurrency: runtime.NumCPU(),
	}
}

// Normalize clamps Concurrency to at least 1 and ComparatorCost into
// [0, MaxComparatorCost]. NaN cost becomes 0.
func (p RunParameters) Normalize() RunParameters {
	if p.Concurrency < 1 {
		p.Concurrency = 1
	}
	switch {
	case math.IsNaN(p.ComparatorCost) || p.ComparatorCost < 0:
		p.ComparatorCost = 0
	case p.ComparatorCost > MaxComparatorCost:
		p.ComparatorCost = MaxComparatorCost
	}
	return p
}

// LogValue implements slog.LogValuer.
func (p RunParameters) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("variant", p.Variant.String()),
		slog.Int("concurrency", p.Concurrency),
		slog.Float64("comparator_cost", p.ComparatorCost),
	)
}

// Settings is the user-editable configuration between runs.
type Settings struct {
	Mode   dataset.Mode
	Params RunParameters
	Seed   uint64
}

// DefaultSettings returns Random data with DefaultParameters and the default seed.
func DefaultSettings() Settings {
	return Settings{
		Mode:   dataset.Random,
		Params: DefaultParameters(),
		Seed:   dataset.DefaultSeed,
	}
}
