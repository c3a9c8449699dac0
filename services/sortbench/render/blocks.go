// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package render

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// upperHalf draws the top pixel in the foreground and the bottom pixel in the
// background, so one terminal cell shows two pixel rows.
const upperHalf = "▀"

// Blocks downsamples the frame to cols × rows terminal cells using
// nearest-neighbour sampling. Each cell covers two sampled pixel rows.
func Blocks(f Frame, cols, rows int) string {
	if cols <= 0 || rows <= 0 || f.Width <= 0 || f.Height <= 0 || f.Validate() != nil {
		return ""
	}

	styles := make(map[[2]uint8]lipgloss.Style)
	cell := func(top, bottom uint8) string {
		key := [2]uint8{top, bottom}
		st, ok := styles[key]
		if !ok {
			st = lipgloss.NewStyle().
				Foreground(grayColor(top)).
				Background(grayColor(bottom))
			styles[key] = st
		}
		return st.Render(upperHalf)
	}

	subRows := rows * 2
	var b strings.Builder
	for r := 0; r < rows; r++ {
		yTop := (2 * r) * f.Height / subRows
		yBottom := (2*r + 1) * f.Height / subRows
		for c := 0; c < cols; c++ {
			x := c * f.Width / cols
			b.WriteString(cell(f.Level(yTop*f.Width+x), f.Level(yBottom*f.Width+x)))
		}
		if r < rows-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func grayColor(level uint8) lipgloss.Color {
	return lipgloss.Color(fmt.Sprintf("#%02x%02x%02x", level, level, level))
}
