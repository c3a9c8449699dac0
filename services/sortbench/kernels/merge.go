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

import "github.com/AleutianAI/sortbench/services/sortbench/buffer"

// bufferedMergeSort sorts one chunk per worker in place, then merges
// neighbouring runs pairwise through scratch memory. After every merge round
// the merged runs are written back so observers see progress.
func bufferedMergeSort(c buffer.Cells, n, workers int, cmp comparator) error {
	if workers <= 1 || n <= parallelThreshold {
		introsort(c, 0, n, cmp)
		return nil
	}

	edges := boundaries(n, workers)
	runs := len(edges) - 1

	g := newGroup(runs)
	for i := 0; i < runs; i++ {
		lo, hi := edges[i], edges[i+1]
		g.Go(func() error {
			introsort(c, lo, hi, cmp)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	src := make([]uint32, n)
	dst := make([]uint32, n)
	for i := range src {
		src[i] = c.Load(i)
	}

	for len(edges) > 2 {
		next := []int{0}
		g := newGroup(workers)
		for i := 0; i+1 < len(edges); i += 2 {
			lo := edges[i]
			if i+2 >= len(edges) {
				// Odd run out: carried into the next round unchanged.
				hi := edges[i+1]
				copy(dst[lo:hi], src[lo:hi])
				next = append(next, hi)
				continue
			}
			mid, hi := edges[i+1], edges[i+2]
			next = append(next, hi)
			g.Go(func() error {
				merge(dst[lo:hi], src[lo:mid], src[mid:hi], cmp)
				publish(c, lo, dst[lo:hi])
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
		src, dst = dst, src
		edges = next
	}
	return nil
}

// merge is a stable two-way merge of a and b into out.
func merge(out, a, b []uint32, cmp comparator) {
	i, j, k := 0, 0, 0
	for i < len(a) && j < len(b) {
		if cmp.less(b[j], a[i]) {
			out[k] = b[j]
			j++
		} else {
			out[k] = a[i]
			i++
		}
		k++
	}
	k += copy(out[k:], a[i:])
	copy(out[k:], b[j:])
}

// publish stores vals into cells starting at offset.
func publish(c buffer.Cells, offset int, vals []uint32) {
	for i, v := range vals {
		c.Store(offset+i, v)
	}
}
