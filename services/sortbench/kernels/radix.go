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

	"github.com/AleutianAI/sortbench/services/sortbench/buffer"
)

const (
	radixBits    = 8
	radixBuckets = 1 << radixBits
	radixPasses  = 32 / radixBits
)

// parallelRadixSort is an LSD radix sort over the full 32-bit pixel word.
//
// Each pass builds one histogram per worker chunk, turns the histograms into
// per-chunk bucket offsets, and scatters every chunk concurrently. The
// scatter is stable because chunk c writes bucket b after every chunk < c.
// Passes where all keys share one digit are skipped. The sorted pass output
// is written back to cells before the next pass starts.
func parallelRadixSort(c buffer.Cells, n, workers int, cmp comparator) error {
	if n <= 1 {
		return nil
	}
	edges := boundaries(n, workers)
	chunks := len(edges) - 1

	src := make([]uint32, n)
	dst := make([]uint32, n)
	parallelFor(n, chunks, func(start, end int) {
		for i := start; i < end; i++ {
			src[i] = c.Load(i)
		}
	})

	hist := make([][radixBuckets]int, chunks)
	for pass := 0; pass < radixPasses; pass++ {
		shift := uint(pass * radixBits)

		runChunks(edges, func(ch, start, end int) {
			h := &hist[ch]
			*h = [radixBuckets]int{}
			for i := start; i < end; i++ {
				// The key function carries the same simulated cost as a comparison.
				cmp.touch()
				h[(src[i]>>shift)&(radixBuckets-1)]++
			}
		})

		if trivialPass(hist, n) {
			continue
		}

		// Exclusive prefix sum, bucket-major then chunk-major.
		offset := 0
		for b := 0; b < radixBuckets; b++ {
			for ch := 0; ch < chunks; ch++ {
				count := hist[ch][b]
				hist[ch][b] = offset
				offset += count
			}
		}

		runChunks(edges, func(ch, start, end int) {
			h := &hist[ch]
			for i := start; i < end; i++ {
				v := src[i]
				d := (v >> shift) & (radixBuckets - 1)
				dst[h[d]] = v
				h[d]++
			}
		})

		src, dst = dst, src
		parallelFor(n, chunks, func(start, end int) {
			publish(c, start, src[start:end])
		})
	}
	return nil
}

// runChunks calls fn once per chunk concurrently.
func runChunks(edges []int, fn func(ch, start, end int)) {
	chunks := len(edges) - 1
	if chunks == 1 {
		fn(0, edges[0], edges[1])
		return
	}
	var wg sync.WaitGroup
	for ch := 0; ch < chunks; ch++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn(ch, edges[ch], edges[ch+1])
		}()
	}
	wg.Wait()
}

// trivialPass reports whether every key falls into a single bucket.
func trivialPass(hist [][radixBuckets]int, n int) bool {
	for b := 0; b < radixBuckets; b++ {
		total := 0
		for ch := range hist {
			total += hist[ch][b]
		}
		if total == n {
			return true
		}
		if total != 0 {
			return false
		}
	}
	return false
}
