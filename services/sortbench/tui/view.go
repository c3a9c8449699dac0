// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package tui

import (
	"fmt"
	"strings"

	"github.com/AleutianAI/sortbench/services/sortbench/render"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86"))

	settingsStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	spinnerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	statusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	warningStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	footerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

const (
	defaultWidth  = 80
	defaultHeight = 24

	// chromeLines is everything around the field: title, settings, stats
	// (five lines), status, warning and footer, plus blank separators.
	chromeLines = 13
)

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	width, height := m.width, m.height
	if !m.ready {
		width, height = defaultWidth, defaultHeight
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.renderSettings())
	b.WriteString("\n\n")

	rows := max(2, height-chromeLines)
	b.WriteString(render.Blocks(m.frame, max(8, width), rows))
	b.WriteString("\n\n")

	b.WriteString(render.StyledStats(m.coord.Results().Report()))
	b.WriteString("\n")
	b.WriteString(m.renderStatus())
	b.WriteString("\n")
	if m.cfg.Warning != "" {
		b.WriteString(warningStyle.Render(m.cfg.Warning))
		b.WriteString("\n")
	}
	b.WriteString(m.renderFooter())
	return b.String()
}

func (m Model) renderHeader() string {
	title := titleStyle.Render("Parallel Sort Bench")
	if m.run != nil {
		return title + "  " + m.spinner.View()
	}
	return title
}

func (m Model) renderSettings() string {
	s := m.coord.Settings()
	return settingsStyle.Render(fmt.Sprintf(
		"Variant: %s   Data: %s   Concurrency: %d   Comparator cost: %.1f   Sorted: %.1f%%",
		s.Params.Variant.Label(),
		s.Mode.Label(),
		s.Params.Concurrency,
		s.Params.ComparatorCost,
		render.Sortedness(m.frame)*100,
	))
}

func (m Model) renderStatus() string {
	if m.statusErr {
		return errorStyle.Render(m.status)
	}
	return statusStyle.Render(m.status)
}

func (m Model) renderFooter() string {
	var keys []string
	if m.run != nil {
		keys = []string{"Sorting...", "[Q] Quit"}
	} else {
		keys = []string{
			"[S] Sort", "[V] Variant", "[M] Data", "[+/-] Concurrency",
			"[[/]] Cost", "[R] Reset clocks", "[Q] Quit",
		}
	}
	return footerStyle.Render(strings.Join(keys, "  "))
}
