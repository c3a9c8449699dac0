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

	"github.com/AleutianAI/sortbench/services/sortbench/gateway"
	"github.com/AleutianAI/sortbench/services/sortbench/results"
	"github.com/charmbracelet/lipgloss"
)

// NotAvailable is shown for a missing time or comparison.
const NotAvailable = "N/A"

var (
	labelStyle  = lipgloss.NewStyle().Width(24)
	timeStyle   = lipgloss.NewStyle().Width(12).Align(lipgloss.Right)
	fasterStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	slowerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// StatLine is one formatted variant row.
type StatLine struct {
	Variant   gateway.Variant
	Label     string
	Time      string
	Delta     string
	Direction results.Direction
}

// Lines formats the report, one line per variant in id order. Times are
// seconds with three decimals; deltas are percentages with three decimals.
func Lines(r results.Report) []StatLine {
	cmp := make(map[gateway.Variant]results.Comparison, len(r.Comparisons))
	for _, c := range r.Comparisons {
		cmp[c.Variant] = c
	}

	lines := make([]StatLine, 0, len(gateway.Variants))
	for _, v := range gateway.Variants {
		line := StatLine{Variant: v, Label: v.Label(), Time: NotAvailable}
		if s, ok := r.Sample(v); ok {
			line.Time = FormatSeconds(s.Seconds())
		}
		if v != gateway.Baseline {
			c := cmp[v]
			line.Direction = c.Direction
			line.Delta = FormatDelta(c)
		}
		lines = append(lines, line)
	}
	return lines
}

// FormatSeconds formats a duration in seconds.
func FormatSeconds(sec float64) string {
	return fmt.Sprintf("%.3f", sec)
}

// FormatDelta formats a comparison as "12.345% faster", or N/A.
func FormatDelta(c results.Comparison) string {
	if !c.Available {
		return NotAvailable
	}
	if c.Direction == results.Equal {
		return fmt.Sprintf("%.3f%%", c.PercentDelta)
	}
	return fmt.Sprintf("%.3f%% %s", c.PercentDelta, c.Direction)
}

// Stats renders the report as plain text.
func Stats(r results.Report) string {
	var b strings.Builder
	for _, l := range Lines(r) {
		fmt.Fprintf(&b, "%-24s %10s s", l.Label, l.Time)
		if l.Delta != "" {
			fmt.Fprintf(&b, "  %s", l.Delta)
		}
		b.WriteByte('\n')
	}
	b.WriteString(lastLine(r))
	return b.String()
}

// StyledStats renders the report with gains in green and losses in red.
func StyledStats(r results.Report) string {
	var b strings.Builder
	for _, l := range Lines(r) {
		b.WriteString(labelStyle.Render(l.Label))
		b.WriteString(timeStyle.Render(l.Time + " s"))
		if l.Delta != "" {
			b.WriteString("  ")
			switch l.Direction {
			case results.Faster:
				b.WriteString(fasterStyle.Render(l.Delta))
			case results.Slower:
				b.WriteString(slowerStyle.Render(l.Delta))
			default:
				b.WriteString(mutedStyle.Render(l.Delta))
			}
		}
		b.WriteByte('\n')
	}
	b.WriteString(mutedStyle.Render(lastLine(r)))
	return b.String()
}

func lastLine(r results.Report) string {
	if r.Last == nil {
		return "Last run: " + NotAvailable
	}
	return fmt.Sprintf("Last run: %s %s s", r.Last.Variant.Label(), FormatSeconds(r.Last.Seconds()))
}
