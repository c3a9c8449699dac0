// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package results keeps the most recent timing per sort variant and compares
// each variant against the baseline.
package results

import (
	"math"
	"sync"
	"time"

	"github.com/AleutianAI/sortbench/services/sortbench/gateway"
)

// -----------------------------------------------------------------------------
// Sample
// -----------------------------------------------------------------------------

// Sample is the latest timing of one variant.
type Sample struct {
	// Variant is the variant that was run.
	Variant gateway.Variant

	// Elapsed is the backend-measured duration.
	Elapsed time.Duration

	// RecordedAt is when the sample was stored.
	RecordedAt time.Time

	// RunID identifies the run that produced the sample.
	RunID string
}

// Seconds returns Elapsed in seconds.
func (s Sample) Seconds() float64 {
	return s.Elapsed.Seconds()
}

// -----------------------------------------------------------------------------
// Comparison
// -----------------------------------------------------------------------------

// Direction says whether a variant beat the baseline.
type Direction int

const (
	// NotAvailable means either sample is missing or zero.
	NotAvailable Direction = iota
	// Faster means the variant took less time than the baseline.
	Faster
	// Slower means the variant took more time than the baseline.
	Slower
	// Equal means both took exactly the same time.
	Equal
)

// String returns the string representation of the direction.
func (d Direction) String() string {
	switch d {
	case Faster:
		return "faster"
	case Slower:
		return "slower"
	case Equal:
		return "equal"
	default:
		return "n/a"
	}
}

// Comparison is a variant measured against the baseline.
//
// Description:
//
//	SpeedupRatio is variant/baseline, so values below 1 mean the variant was
//	faster. PercentDelta is |variant - baseline| / min(variant, baseline) * 100,
//	so a variant twice as fast reports 100.
type Comparison struct {
	Variant      gateway.Variant
	Available    bool
	SpeedupRatio float64
	PercentDelta float64
	Direction    Direction
}

// Compare computes the comparison of a variant sample against a baseline
// sample. A non-positive duration on either side is NotAvailable.
func Compare(variant gateway.Variant, variantTime, baselineTime time.Duration) Comparison {
	c := Comparison{Variant: variant}
	if variantTime <= 0 || baselineTime <= 0 {
		return c
	}
	v, b := variantTime.Seconds(), baselineTime.Seconds()
	c.Available = true
	c.SpeedupRatio = v / b
	c.PercentDelta = math.Abs(v-b) / math.Min(v, b) * 100
	switch {
	case variantTime < baselineTime:
		c.Direction = Faster
	case variantTime > baselineTime:
		c.Direction = Slower
	default:
		c.Direction = Equal
	}
	return c
}

// -----------------------------------------------------------------------------
// Store
// -----------------------------------------------------------------------------

// Report is a consistent snapshot of the store.
type Report struct {
	// Samples holds the latest sample per variant.
	Samples map[gateway.Variant]Sample

	// Comparisons holds one entry per non-baseline variant, in id order.
	Comparisons []Comparison

	// Last is the most recently recorded sample of any variant.
	Last *Sample
}

// Sample returns the sample for v, if recorded.
func (r Report) Sample(v gateway.Variant) (Sample, bool) {
	s, ok := r.Samples[v]
	return s, ok
}

// Store holds the live samples.
//
// Thread Safety: Safe for concurrent use. The run goroutine records while
// the render loop reads.
type Store struct {
	mu      sync.RWMutex
	samples map[gateway.Variant]Sample
	last    *Sample
	now     func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		samples: make(map[gateway.Variant]Sample),
		now:     time.Now,
	}
}

// Record overwrites the sample for variant. Negative durations are stored as 0.
func (s *Store) Record(variant gateway.Variant, elapsed time.Duration, runID string) Sample {
	if elapsed < 0 {
		elapsed = 0
	}
	sample := Sample{
		Variant:    variant,
		Elapsed:    elapsed,
		RecordedAt: s.now(),
		RunID:      runID,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples[variant] = sample
	last := sample
	s.last = &last
	return sample
}

// Get returns the sample for variant.
func (s *Store) Get(variant gateway.Variant) (Sample, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sample, ok := s.samples[variant]
	return sample, ok
}

// Last returns the most recently recorded sample.
func (s *Store) Last() (Sample, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return Sample{}, false
	}
	return *s.last, true
}

// Compare compares variant against the Baseline sample.
func (s *Store) Compare(variant gateway.Variant) Comparison {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.compareLocked(variant)
}

func (s *Store) compareLocked(variant gateway.Variant) Comparison {
	base, okB := s.samples[gateway.Baseline]
	v, okV := s.samples[variant]
	if !okB || !okV {
		return Comparison{Variant: variant}
	}
	return Compare(variant, v.Elapsed, base.Elapsed)
}

// Report snapshots samples and comparisons.
func (s *Store) Report() Report {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r := Report{Samples: make(map[gateway.Variant]Sample, len(s.samples))}
	for v, sample := range s.samples {
		r.Samples[v] = sample
	}
	for _, v := range gateway.Variants {
		if v == gateway.Baseline {
			continue
		}
		r.Comparisons = append(r.Comparisons, s.compareLocked(v))
	}
	if s.last != nil {
		last := *s.last
		r.Last = &last
	}
	return r
}

// Reset clears every sample.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.samples)
	s.last = nil
}
