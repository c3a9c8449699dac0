// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package dataset

import (
	"fmt"
	"strings"
)

// Mode selects how a buffer is populated before a run.
type Mode int

const (
	// Random fills every pixel with an independent uniform gray level.
	Random Mode = iota

	// PreSorted is Random followed by a full Baseline sort.
	PreSorted

	// NearlySorted is PreSorted followed by a 1% pixel swap perturbation.
	NearlySorted

	// Sawtooth repeats one sorted tooth once per worker.
	Sawtooth
)

// Modes lists every mode in display order.
var Modes = []Mode{Random, PreSorted, NearlySorted, Sawtooth}

// String returns the flag/config name of the mode.
func (m Mode) String() string {
	switch m {
	case Random:
		return "random"
	case PreSorted:
		return "presorted"
	case NearlySorted:
		return "nearlysorted"
	case Sawtooth:
		return "sawtooth"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// Label returns the display name.
func (m Mode) Label() string {
	switch m {
	case Random:
		return "Random"
	case PreSorted:
		return "Pre-sorted"
	case NearlySorted:
		return "Nearly sorted"
	case Sawtooth:
		return "Sawtooth"
	default:
		return m.String()
	}
}

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m >= Random && m <= Sawtooth
}

// Next returns the following mode, wrapping around.
func (m Mode) Next() Mode {
	return Mode((int(m) + 1) % len(Modes))
}

// ParseMode converts a mode name to a Mode. Hyphens and underscores are ignored.
func ParseMode(s string) (Mode, error) {
	norm := strings.NewReplacer("-", "", "_", "", " ", "").Replace(strings.ToLower(strings.TrimSpace(s)))
	switch norm {
	case "random":
		return Random, nil
	case "presorted", "sorted":
		return PreSorted, nil
	case "nearlysorted", "nearly":
		return NearlySorted, nil
	case "sawtooth":
		return Sawtooth, nil
	default:
		return Random, fmt.Errorf("unknown generation mode %q: %w", s, ErrUnknownMode)
	}
}
