// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ux styles the non-interactive output of the sortbench CLI.
//
// Every printer honours the current PersonalityLevel: Full is colored with
// icons and boxes, Minimal keeps icons, Machine prints plain prefixed lines
// that scripts can grep.
package ux

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// Palette.
var (
	ColorAccent  = lipgloss.Color("#2CD7C7")
	ColorPrimary = lipgloss.Color("#20B9B4")
	ColorBorder  = lipgloss.Color("#16858E")
	ColorSlate   = lipgloss.Color("#2C4A54")

	ColorSuccess = lipgloss.Color("#2CD7C7")
	ColorWarning = lipgloss.Color("#F4D03F")
	ColorError   = lipgloss.Color("#E74C3C")
)

// Styles holds the pre-configured lipgloss styles.
var Styles = struct {
	Title   lipgloss.Style
	Bold    lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Key     lipgloss.Style

	Box        lipgloss.Style
	WarningBox lipgloss.Style
}{
	Title:   lipgloss.NewStyle().Bold(true).Foreground(ColorAccent),
	Bold:    lipgloss.NewStyle().Bold(true),
	Muted:   lipgloss.NewStyle().Foreground(ColorSlate),
	Success: lipgloss.NewStyle().Foreground(ColorSuccess),
	Warning: lipgloss.NewStyle().Foreground(ColorWarning),
	Error:   lipgloss.NewStyle().Foreground(ColorError),
	Key:     lipgloss.NewStyle().Foreground(ColorPrimary),

	Box: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorBorder).
		Padding(0, 1),
	WarningBox: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorWarning).
		Padding(0, 1),
}

// Icon is a status glyph.
type Icon string

const (
	IconSuccess Icon = "✓"
	IconWarning Icon = "⚠"
	IconError   Icon = "✗"
	IconPending Icon = "○"
	IconArrow   Icon = "→"
)

// Render returns the icon in its status color.
func (i Icon) Render() string {
	switch i {
	case IconSuccess:
		return Styles.Success.Render(string(i))
	case IconWarning:
		return Styles.Warning.Render(string(i))
	case IconError:
		return Styles.Error.Render(string(i))
	case IconPending:
		return Styles.Muted.Render(string(i))
	default:
		return string(i)
	}
}

// =============================================================================
// Destinations
// =============================================================================

var (
	outMu  sync.RWMutex
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

// SetOutput redirects the printers. Nil arguments keep the current writer.
// It returns a func that restores the previous writers.
func SetOutput(out, errOut io.Writer) (restore func()) {
	outMu.Lock()
	defer outMu.Unlock()
	prevOut, prevErr := stdout, stderr
	if out != nil {
		stdout = out
	}
	if errOut != nil {
		stderr = errOut
	}
	return func() {
		outMu.Lock()
		stdout, stderr = prevOut, prevErr
		outMu.Unlock()
	}
}

// Stdout returns the current standard output destination.
func Stdout() io.Writer {
	outMu.RLock()
	defer outMu.RUnlock()
	return stdout
}

// Stderr returns the current diagnostics destination.
func Stderr() io.Writer {
	outMu.RLock()
	defer outMu.RUnlock()
	return stderr
}

// =============================================================================
// Printers
// =============================================================================

// Title prints a heading. Machine mode prints nothing.
func Title(text string) {
	if Level() == PersonalityMachine {
		return
	}
	fmt.Fprintln(Stdout(), Styles.Title.Render(text))
}

// Success prints a completed step.
func Success(text string) {
	switch Level() {
	case PersonalityMachine:
		fmt.Fprintf(Stdout(), "OK: %s\n", text)
	case PersonalityMinimal:
		fmt.Fprintf(Stdout(), "%s %s\n", IconSuccess.Render(), text)
	default:
		fmt.Fprintf(Stdout(), "%s %s\n", IconSuccess.Render(), Styles.Success.Render(text))
	}
}

// Warning prints a recoverable problem to stderr.
func Warning(text string) {
	switch Level() {
	case PersonalityMachine:
		fmt.Fprintf(Stderr(), "WARN: %s\n", text)
	case PersonalityMinimal:
		fmt.Fprintf(Stderr(), "%s %s\n", IconWarning.Render(), text)
	default:
		fmt.Fprintf(Stderr(), "%s %s\n", IconWarning.Render(), Styles.Warning.Render(text))
	}
}

// Error prints a failure to stderr.
func Error(text string) {
	switch Level() {
	case PersonalityMachine:
		fmt.Fprintf(Stderr(), "ERROR: %s\n", text)
	case PersonalityMinimal:
		fmt.Fprintf(Stderr(), "%s %s\n", IconError.Render(), text)
	default:
		fmt.Fprintf(Stderr(), "%s %s\n", IconError.Render(), Styles.Error.Render(text))
	}
}

// Info prints a plain informational line.
func Info(text string) {
	if Level() == PersonalityMachine {
		fmt.Fprintln(Stdout(), text)
		return
	}
	fmt.Fprintf(Stdout(), "%s %s\n", Styles.Muted.Render("│"), text)
}

// Box prints a titled block of text. Other levels flatten it to one line.
func Box(title, content string) {
	if Level() != PersonalityFull {
		fmt.Fprintf(Stdout(), "%s: %s\n", title, flattenLines(content))
		return
	}
	fmt.Fprintln(Stdout(), Styles.Box.Width(64).Render(Styles.Title.Render(title)+"\n"+content))
}

// WarningBox prints a warning block to stderr, e.g. a missing sort backend.
func WarningBox(title, content string) {
	if Level() != PersonalityFull {
		fmt.Fprintf(Stderr(), "WARN %s: %s\n", title, flattenLines(content))
		return
	}
	head := Styles.Warning.Bold(true).Render(title)
	fmt.Fprintln(Stderr(), Styles.WarningBox.Width(64).Render(head+"\n"+content))
}

// KeyValues prints aligned "key  value" rows. Machine mode separates them
// with a tab.
func KeyValues(rows [][2]string) {
	w := Stdout()
	if Level() == PersonalityMachine {
		for _, r := range rows {
			fmt.Fprintf(w, "%s\t%s\n", r[0], r[1])
		}
		return
	}
	width := 0
	for _, r := range rows {
		width = max(width, lipgloss.Width(r[0]))
	}
	for _, r := range rows {
		pad := strings.Repeat(" ", width-lipgloss.Width(r[0]))
		fmt.Fprintf(w, "  %s%s  %s\n", Styles.Key.Render(r[0]), pad, r[1])
	}
}

func flattenLines(s string) string {
	return strings.Join(strings.Fields(strings.ReplaceAll(s, "\n", " ")), " ")
}
