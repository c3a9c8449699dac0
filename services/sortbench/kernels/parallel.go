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

// parallelQuicksort sorts cells[0:n] in place. The left side of every
// partition is offered to the errgroup; when all workers are busy it is
// sorted inline instead.
func parallelQuicksort(c buffer.Cells, n, workers int, cmp comparator) error {
	if workers <= 1 || n <= parallelThreshold {
		introsort(c, 0, n, cmp)
		return nil
	}

	g := newGroup(workers - 1)

	var sortRange func(lo, hi, depth int)
	sortRange = func(lo, hi, depth int) {
		for hi-lo > parallelThreshold {
			if depth == 0 {
				heapsort(c, lo, hi, cmp)
				return
			}
			depth--
			lt, gt := partition3(c, lo, hi, cmp)

			l, r, d := lo, lt, depth
			if !g.TryGo(func() error {
				sortRange(l, r, d)
				return nil
			}) {
				sortRange(l, r, d)
			}
			lo = gt
		}
		introsortDepth(c, lo, hi, depth, cmp)
	}

	sortRange(0, n, maxDepth(n))
	return g.Wait()
}
