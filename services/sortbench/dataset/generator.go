// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package dataset produces the deterministic synthetic inputs sorted by a run.
//
// # Description
//
// Four distributions are supported: Random, PreSorted, NearlySorted and
// Sawtooth. Pre-sorting goes through the same gateway the benchmark uses,
// with the Baseline variant, concurrency 1 and no comparator cost; that
// timing is discarded.
//
// # Sawtooth Remainder Policy
//
// With k = max(1, concurrency) capped at the pixel count, each tooth holds
// floor(n / k) pixels and is replicated k times from the start of the
// buffer. The n - k*tooth trailing pixels are set to opaque black.
//
// # Thread Safety
//
// Generator and Cache are safe for concurrent use. A buffer being filled
// must not be written by anyone else.
package dataset

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"

	"github.com/AleutianAI/sortbench/services/sortbench/buffer"
	"github.com/AleutianAI/sortbench/services/sortbench/gateway"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "sortbench.dataset"

const (
	// DefaultSeed seeds the data stream.
	DefaultSeed uint64 = 100

	// ToothSeedSalt is XORed into the seed for the sawtooth tooth stream.
	// The default seed 100 yields tooth seed 4.
	ToothSeedSalt uint64 = 0x60

	// SwapFraction is the share of buffer bytes that NearlySorted perturbs.
	SwapFraction = 0.01
)

var (
	// ErrGenerationPolicy indicates a request no documented policy can satisfy,
	// such as negative dimensions.
	ErrGenerationPolicy = errors.New("generation policy undefined")

	// ErrUnknownMode indicates an unrecognized mode name or value.
	ErrUnknownMode = errors.New("unknown generation mode")
)

// Generator fills buffers for a mode.
type Generator struct {
	sorter gateway.Invoker
	logger *slog.Logger
}

// NewGenerator creates a Generator that pre-sorts through sorter.
// A nil logger uses slog.Default().
func NewGenerator(sorter gateway.Invoker, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{sorter: sorter, logger: logger}
}

// Generate allocates a width×height buffer and fills it for mode.
//
// # Inputs
//
//   - ctx: Trace context.
//   - mode: Distribution to produce.
//   - width, height: Buffer dimensions in pixels, both ≥ 0.
//   - concurrency: Worker count; only Sawtooth uses it. Values below 1 mean 1.
//   - seed: Data stream seed.
//
// # Outputs
//
//   - *buffer.Working: Filled buffer. Identical inputs give identical bytes.
//   - error: ErrGenerationPolicy for negative dimensions, ErrUnknownMode, or a
//     wrapped gateway error when pre-sorting fails.
func (g *Generator) Generate(ctx context.Context, mode Mode, width, height, concurrency int, seed uint64) (*buffer.Working, error) {
	w, err := buffer.New(width, height)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGenerationPolicy, err)
	}
	if err := g.Fill(ctx, w, mode, concurrency, seed); err != nil {
		return nil, err
	}
	return w, nil
}

// Fill overwrites dst according to mode. See Generate.
func (g *Generator) Fill(ctx context.Context, dst *buffer.Working, mode Mode, concurrency int, seed uint64) (err error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "dataset.Fill",
		trace.WithAttributes(
			attribute.String("dataset.mode", mode.String()),
			attribute.Int("dataset.pixels", dst.Len()),
			attribute.Int("dataset.concurrency", concurrency),
		),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "generation failed")
		}
		span.End()
	}()

	switch mode {
	case Random:
		fillRandom(dst, newStream(seed))
		return nil
	case PreSorted:
		fillRandom(dst, newStream(seed))
		return g.presort(ctx, dst, dst.Len())
	case NearlySorted:
		rnd := newStream(seed)
		fillRandom(dst, rnd)
		if err := g.presort(ctx, dst, dst.Len()); err != nil {
			return err
		}
		perturb(dst, rnd)
		return nil
	case Sawtooth:
		return g.fillSawtooth(ctx, dst, concurrency, seed)
	default:
		return fmt.Errorf("mode %d: %w", int(mode), ErrUnknownMode)
	}
}

func newStream(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed))
}

func fillRandom(dst buffer.Cells, rnd *rand.Rand) {
	for i := 0; i < dst.Len(); i++ {
		dst.Store(i, buffer.Gray(uint8(rnd.IntN(256))))
	}
}

func (g *Generator) presort(ctx context.Context, cells buffer.Cells, n int) error {
	if g.sorter == nil {
		return fmt.Errorf("pre-sorting: %w", gateway.ErrComputationUnavailable)
	}
	if _, err := g.sorter.Invoke(ctx, gateway.Baseline, cells, n, 1, 0); err != nil {
		return fmt.Errorf("pre-sorting: %w", err)
	}
	return nil
}

// SwapCount returns the number of swaps NearlySorted applies to a buffer of
// byteLen bytes.
func SwapCount(byteLen int) int {
	return int(math.Ceil(float64(byteLen) * SwapFraction))
}

// perturb swaps SwapCount random pixel pairs. The first and last pixel stay
// put unless the buffer has fewer than three pixels.
func perturb(w *buffer.Working, rnd *rand.Rand) {
	n := w.Len()
	if n < 2 {
		return
	}
	pick := func() int {
		if n < 3 {
			return rnd.IntN(n)
		}
		return 1 + rnd.IntN(n-2)
	}
	for s := SwapCount(w.ByteLen()); s > 0; s-- {
		i, j := pick(), pick()
		w.Swap(i, j)
	}
}

// ToothLayout returns the number of teeth and the pixels per tooth for a
// buffer of n pixels.
func ToothLayout(n, concurrency int) (teeth, tooth int) {
	if n == 0 {
		return 0, 0
	}
	teeth = min(max(1, concurrency), n)
	return teeth, n / teeth
}

func (g *Generator) fillSawtooth(ctx context.Context, dst *buffer.Working, concurrency int, seed uint64) error {
	n := dst.Len()
	teeth, size := ToothLayout(n, concurrency)
	if n == 0 {
		return nil
	}

	tooth, err := buffer.New(size, 1)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrGenerationPolicy, err)
	}
	fillRandom(tooth, newStream(seed^ToothSeedSalt))
	if err := g.presort(ctx, tooth, size); err != nil {
		return err
	}

	for t := 0; t < teeth; t++ {
		dst.CopyCells(t*size, tooth, size)
	}
	for i := teeth * size; i < n; i++ {
		dst.Store(i, buffer.Gray(0))
	}
	if rem := n - teeth*size; rem > 0 {
		g.logger.Debug("sawtooth remainder filled black", "pixels", rem, "teeth", teeth, "tooth", size)
	}
	return nil
}
