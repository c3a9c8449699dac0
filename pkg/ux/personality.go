// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"os"
	"strings"
	"sync"

	"github.com/mattn/go-isatty"
)

// EnvPersonality overrides the detected output level.
const EnvPersonality = "SORTBENCH_PERSONALITY"

// PersonalityLevel controls how rich CLI output is.
type PersonalityLevel string

const (
	// PersonalityFull enables colors, icons, boxes and progress bars.
	PersonalityFull PersonalityLevel = "full"

	// PersonalityMinimal keeps icons but drops colored text and boxes.
	PersonalityMinimal PersonalityLevel = "minimal"

	// PersonalityMachine prints plain, tab-separated lines for scripts.
	PersonalityMachine PersonalityLevel = "machine"
)

var (
	currentLevel  = PersonalityFull
	personalityMu sync.RWMutex
)

// Level returns the current output level.
func Level() PersonalityLevel {
	personalityMu.RLock()
	defer personalityMu.RUnlock()
	return currentLevel
}

// SetLevel changes the output level and returns the previous one.
func SetLevel(level PersonalityLevel) PersonalityLevel {
	personalityMu.Lock()
	defer personalityMu.Unlock()
	prev := currentLevel
	currentLevel = level
	return prev
}

// ParseLevel maps a user string to a level. Unknown strings are Full.
func ParseLevel(s string) PersonalityLevel {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "minimal", "min", "m":
		return PersonalityMinimal
	case "machine", "plain", "quiet", "q":
		return PersonalityMachine
	default:
		return PersonalityFull
	}
}

// InitPersonality picks the level from EnvPersonality, falling back to
// Machine when stdout is not a terminal.
func InitPersonality() PersonalityLevel {
	level := detect(os.Getenv(EnvPersonality), IsTerminal(os.Stdout))
	SetLevel(level)
	return level
}

func detect(env string, tty bool) PersonalityLevel {
	if env != "" {
		return ParseLevel(env)
	}
	if !tty {
		return PersonalityMachine
	}
	return PersonalityFull
}

// IsTerminal reports whether f is a terminal, including Cygwin/MSYS ptys.
func IsTerminal(f *os.File) bool {
	if f == nil {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// IsInteractive reports whether prompts and the TUI can be shown.
func IsInteractive() bool {
	return Level() != PersonalityMachine && IsTerminal(os.Stdin) && IsTerminal(os.Stdout)
}

// ShouldShowProgress reports whether live progress bars should be drawn.
func ShouldShowProgress() bool {
	return Level() == PersonalityFull
}
