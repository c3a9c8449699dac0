// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command sortbench-plugin packages the native sort kernels as a loadable
// backend:
//
//	go build -buildmode=plugin -o sortbench-native.so ./cmd/sortbench-plugin
//	sortbench run --all --backend ./sortbench-native.so
//
// The plugin must be built with the same toolchain and module versions as
// the sortbench binary that loads it.
package main

import (
	"github.com/AleutianAI/sortbench/services/sortbench/gateway"
	"github.com/AleutianAI/sortbench/services/sortbench/kernels"
)

// Backend is the symbol gateway.Locate looks up.
var Backend gateway.Backend = kernels.Native{}

func main() {}
