// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package kernels

import (
	"sync"
	"sync/atomic"

	"github.com/AleutianAI/sortbench/services/sortbench/buffer"
	"golang.org/x/sync/errgroup"
)

// sink receives spin results that happen to hit the sentinel so the spin
// loop has an observable effect.
var sink atomic.Uint64

// comparator orders pixels and burns work^3 iterations per comparison.
type comparator struct {
	iterations int
}

func newComparator(cost float64) comparator {
	work := int(cost)
	if work < 0 {
		work = 0
	}
	return comparator{iterations: work * work * work}
}

// touch performs the simulated per-element work.
func (c comparator) touch() {
	if c.iterations == 0 {
		return
	}
	if spin(c.iterations) == 0xFFFFFFFF {
		sink.Add(1)
	}
}

func (c comparator) less(a, b uint32) bool {
	c.touch()
	return a < b
}

func spin(iterations int) uint32 {
	x := uint32(iterations)
	for i := 0; i < iterations; i++ {
		x = x*1664525 + 1013904223
	}
	return x
}

func swap(c buffer.Cells, i, j int) {
	a := c.Load(i)
	c.Store(i, c.Load(j))
	c.Store(j, a)
}

// parallelFor splits [0, n) into at most workers contiguous chunks and runs
// fn on each concurrently. It returns once every chunk is done.
func parallelFor(n, workers int, fn func(start, end int)) {
	if n <= 0 {
		return
	}
	workers = min(workers, n)
	if workers <= 1 {
		fn(0, n)
		return
	}
	chunk := (n + workers - 1) / workers

	var wg sync.WaitGroup
	for start := 0; start < n; start += chunk {
		end := min(start+chunk, n)
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn(start, end)
		}()
	}
	wg.Wait()
}

// boundaries returns the chunk edges parallelFor would use.
func boundaries(n, workers int) []int {
	workers = max(1, min(workers, n))
	chunk := (n + workers - 1) / workers
	if chunk == 0 {
		return []int{0, 0}
	}
	edges := []int{0}
	for start := chunk; start < n; start += chunk {
		edges = append(edges, start)
	}
	return append(edges, n)
}

// newGroup returns an errgroup that admits limit goroutines in addition to
// the caller.
func newGroup(limit int) *errgroup.Group {
	g := new(errgroup.Group)
	g.SetLimit(max(1, limit))
	return g
}
