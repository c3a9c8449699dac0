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

const (
	// insertionThreshold: ranges this size or smaller use insertion sort.
	insertionThreshold = 24

	// parallelThreshold: ranges this size or smaller are not split across
	// goroutines.
	parallelThreshold = 4096
)

// maxDepth returns 2 * ceil(log2(n+1)), the introsort recursion budget.
func maxDepth(n int) int {
	depth := 0
	for tmp := n; tmp > 0; tmp >>= 1 {
		depth++
	}
	return depth * 2
}

// introsort sorts cells[lo:hi].
func introsort(c buffer.Cells, lo, hi int, cmp comparator) {
	introsortDepth(c, lo, hi, maxDepth(hi-lo), cmp)
}

func introsortDepth(c buffer.Cells, lo, hi, depth int, cmp comparator) {
	for hi-lo > insertionThreshold {
		if depth == 0 {
			heapsort(c, lo, hi, cmp)
			return
		}
		depth--
		lt, gt := partition3(c, lo, hi, cmp)

		// Recurse into the smaller side, loop on the larger.
		if lt-lo < hi-gt {
			introsortDepth(c, lo, lt, depth, cmp)
			lo = gt
		} else {
			introsortDepth(c, gt, hi, depth, cmp)
			hi = lt
		}
	}
	insertion(c, lo, hi, cmp)
}

// partition3 is a Dutch national flag partition around a median-of-three
// pivot. On return cells[lo:lt] < pivot, cells[lt:gt] == pivot and
// cells[gt:hi] > pivot. The middle band is never empty.
func partition3(c buffer.Cells, lo, hi int, cmp comparator) (lt, gt int) {
	pivot := medianOfThree(c.Load(lo), c.Load(lo+(hi-lo)/2), c.Load(hi-1), cmp)
	lt, i, gt := lo, lo, hi
	for i < gt {
		v := c.Load(i)
		switch {
		case cmp.less(v, pivot):
			swap(c, lt, i)
			lt++
			i++
		case cmp.less(pivot, v):
			gt--
			swap(c, i, gt)
		default:
			i++
		}
	}
	return lt, gt
}

func medianOfThree(a, b, m uint32, cmp comparator) uint32 {
	if cmp.less(b, a) {
		a, b = b, a
	}
	if cmp.less(m, b) {
		b = m
		if cmp.less(b, a) {
			b = a
		}
	}
	return b
}

func insertion(c buffer.Cells, lo, hi int, cmp comparator) {
	for i := lo + 1; i < hi; i++ {
		key := c.Load(i)
		j := i - 1
		for j >= lo && cmp.less(key, c.Load(j)) {
			c.Store(j+1, c.Load(j))
			j--
		}
		c.Store(j+1, key)
	}
}

func heapsort(c buffer.Cells, lo, hi int, cmp comparator) {
	n := hi - lo
	for i := n/2 - 1; i >= 0; i-- {
		siftDown(c, lo, i, n, cmp)
	}
	for i := n - 1; i > 0; i-- {
		swap(c, lo, lo+i)
		siftDown(c, lo, 0, i, cmp)
	}
}

func siftDown(c buffer.Cells, base, root, n int, cmp comparator) {
	for {
		child := 2*root + 1
		if child >= n {
			return
		}
		if child+1 < n && cmp.less(c.Load(base+child), c.Load(base+child+1)) {
			child++
		}
		if !cmp.less(c.Load(base+root), c.Load(base+child)) {
			return
		}
		swap(c, base+root, base+child)
		root = child
	}
}
