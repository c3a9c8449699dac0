// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"
	"io"

	"github.com/AleutianAI/sortbench/services/sortbench/render"
	"github.com/AleutianAI/sortbench/services/sortbench/results"
	"github.com/charmbracelet/bubbles/progress"
)

// progressPresenter draws headless runs as a sortedness bar on one line.
//
// With live set it redraws the bar in place on every frame. Otherwise it
// only remembers the latest values, for piped output.
type progressPresenter struct {
	w     io.Writer
	bar   progress.Model
	live  bool
	label string

	frames     int
	sortedness float64
	report     results.Report
}

func newProgressPresenter(w io.Writer, live bool) *progressPresenter {
	return &progressPresenter{
		w:    w,
		bar:  progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		live: live,
	}
}

// begin resets per-run state and names the run on the bar.
func (p *progressPresenter) begin(label string) {
	p.label = label
	p.frames = 0
	p.sortedness = 0
}

// PresentFrame implements render.Presenter.
func (p *progressPresenter) PresentFrame(f render.Frame) error {
	if err := f.Validate(); err != nil {
		return err
	}
	p.frames++
	p.sortedness = render.Sortedness(f)
	if !p.live {
		return nil
	}
	_, err := fmt.Fprintf(p.w, "\r%-24s %s", p.label, p.bar.ViewAs(p.sortedness))
	return err
}

// PresentStats implements render.Presenter.
func (p *progressPresenter) PresentStats(r results.Report) error {
	p.report = r
	return nil
}

// end terminates the live line.
func (p *progressPresenter) end() {
	if p.live && p.frames > 0 {
		fmt.Fprintln(p.w)
	}
}
