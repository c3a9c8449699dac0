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
	"runtime"

	"golang.org/x/sys/cpu"
)

// Host describes the machine the native kernels run on.
type Host struct {
	Arch     string
	CPUs     int
	Features []string
}

type feature struct {
	name    string
	present bool
}

// DetectHost reports the architecture, logical CPU count and the vector and
// bit-manipulation extensions relevant to the sort kernels. Features is
// empty, not nil, when none apply.
func DetectHost() Host {
	var candidates []feature
	switch runtime.GOARCH {
	case "amd64", "386":
		candidates = []feature{
			{"sse4.1", cpu.X86.HasSSE41},
			{"sse4.2", cpu.X86.HasSSE42},
			{"popcnt", cpu.X86.HasPOPCNT},
			{"avx", cpu.X86.HasAVX},
			{"avx2", cpu.X86.HasAVX2},
			{"bmi2", cpu.X86.HasBMI2},
			{"avx512f", cpu.X86.HasAVX512F},
		}
	case "arm64":
		candidates = []feature{
			{"asimd", cpu.ARM64.HasASIMD},
			{"atomics", cpu.ARM64.HasATOMICS},
			{"crc32", cpu.ARM64.HasCRC32},
			{"sve", cpu.ARM64.HasSVE},
		}
	}

	h := Host{Arch: runtime.GOARCH, CPUs: runtime.NumCPU(), Features: []string{}}
	for _, f := range candidates {
		if f.present {
			h.Features = append(h.Features, f.name)
		}
	}
	return h
}
