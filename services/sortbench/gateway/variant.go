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
	"fmt"
	"strings"
)

// Variant selects the sort strategy. The integer values are the wire ids
// passed across the backend boundary.
type Variant int

const (
	// Baseline is the sequential sort every other variant is compared against.
	Baseline Variant = iota

	// ParallelA is an in-place parallel sort.
	ParallelA

	// ParallelBufferedB is a parallel sort that merges through a scratch buffer.
	ParallelBufferedB

	// ParallelRadixC is a parallel radix sort.
	ParallelRadixC
)

// Variants lists every variant in id order.
var Variants = []Variant{Baseline, ParallelA, ParallelBufferedB, ParallelRadixC}

// String returns the flag/config name of the variant.
func (v Variant) String() string {
	switch v {
	case Baseline:
		return "baseline"
	case ParallelA:
		return "parallel"
	case ParallelBufferedB:
		return "parallel-buffered"
	case ParallelRadixC:
		return "parallel-radix"
	default:
		return fmt.Sprintf("variant(%d)", int(v))
	}
}

// Label returns the display name used in reports.
func (v Variant) Label() string {
	switch v {
	case Baseline:
		return "Baseline sort"
	case ParallelA:
		return "Parallel sort"
	case ParallelBufferedB:
		return "Parallel buffered sort"
	case ParallelRadixC:
		return "Parallel radix sort"
	default:
		return v.String()
	}
}

// Valid reports whether v is a known variant.
func (v Variant) Valid() bool {
	return v >= Baseline && v <= ParallelRadixC
}

// Next returns the following variant, wrapping around.
func (v Variant) Next() Variant {
	return Variant((int(v) + 1) % len(Variants))
}

// ParseVariant converts a name or numeric id to a Variant.
func ParseVariant(s string) (Variant, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "baseline", "std", "sequential", "0":
		return Baseline, nil
	case "parallel", "parallel-a", "1":
		return ParallelA, nil
	case "parallel-buffered", "buffered", "parallel-b", "2":
		return ParallelBufferedB, nil
	case "parallel-radix", "radix", "parallel-c", "3":
		return ParallelRadixC, nil
	default:
		return Baseline, fmt.Errorf("unknown variant %q: %w", s, ErrInvalidArgument)
	}
}
