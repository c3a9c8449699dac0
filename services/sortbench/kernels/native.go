// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package kernels is the built-in sort backend.
//
// Importing the package registers Native with the gateway under
// gateway.DefaultBackend:
//
//	import _ "github.com/AleutianAI/sortbench/services/sortbench/kernels"
//
// Every kernel sorts the leading n cells ascending by pixel word, which for
// opaque gray pixels is ascending gray level. Each comparison (and each radix
// key extraction) spins floor(cost)^3 iterations to simulate an expensive
// comparator.
package kernels

import (
	"fmt"
	"time"

	"github.com/AleutianAI/sortbench/services/sortbench/buffer"
	"github.com/AleutianAI/sortbench/services/sortbench/gateway"
)

func init() {
	gateway.Register(gateway.DefaultBackend, Native{})
}

// Native runs the kernels in this package.
type Native struct{}

// Name implements gateway.Backend.
func (Native) Name() string { return "native" }

// Sort implements gateway.Backend. The returned duration covers the kernel
// only, not argument handling.
func (Native) Sort(variant gateway.Variant, cells buffer.Cells, n, concurrency int, cost float64) (time.Duration, error) {
	if n > cells.Len() {
		return 0, fmt.Errorf("element count %d exceeds buffer length %d", n, cells.Len())
	}
	workers := max(1, concurrency)
	cmp := newComparator(cost)

	start := time.Now()
	var err error
	switch variant {
	case gateway.Baseline:
		introsort(cells, 0, n, cmp)
	case gateway.ParallelA:
		err = parallelQuicksort(cells, n, workers, cmp)
	case gateway.ParallelBufferedB:
		err = bufferedMergeSort(cells, n, workers, cmp)
	case gateway.ParallelRadixC:
		err = parallelRadixSort(cells, n, workers, cmp)
	default:
		return 0, fmt.Errorf("unsupported variant %s", variant)
	}
	return time.Since(start), err
}

var _ gateway.Backend = Native{}
