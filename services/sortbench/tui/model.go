// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package tui is the interactive terminal front end.
//
// The bubbletea event loop is the render/control loop: while a run is in
// progress a chain of tick messages snapshots the working buffer and redraws
// it, and a separate command waits on the run's Done channel.
package tui

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/AleutianAI/sortbench/services/sortbench/config"
	"github.com/AleutianAI/sortbench/services/sortbench/coordinator"
	"github.com/AleutianAI/sortbench/services/sortbench/metrics"
	"github.com/AleutianAI/sortbench/services/sortbench/render"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// =============================================================================
// Configuration
// =============================================================================

// Config configures the model.
type Config struct {
	// FrameRate is the redraw rate while running. Non-positive uses
	// coordinator.DefaultFrameRate.
	FrameRate float64

	// Reloads delivers live config file changes. May be nil.
	Reloads <-chan *config.Config

	// Warning is shown above the footer until the first run, e.g. a missing
	// sort backend.
	Warning string
}

// =============================================================================
// Messages
// =============================================================================

// frameMsg asks for one redraw. seq ties it to the tick chain that sent it.
type frameMsg struct {
	seq uint64
}

// runDoneMsg reports that the run finished.
type runDoneMsg struct {
	outcome coordinator.Outcome
}

// configMsg carries a reloaded config file.
type configMsg struct {
	cfg *config.Config
}

// =============================================================================
// Model
// =============================================================================

// Model is the bubbletea model.
type Model struct {
	ctx   context.Context
	coord *coordinator.Coordinator
	cfg   Config

	spinner spinner.Model

	width  int
	height int
	ready  bool

	run     *coordinator.Run
	seq     uint64
	frame   render.Frame
	scratch []byte

	status    string
	statusErr bool
	pending   *config.Config
	quitting  bool
}

// New creates the model. ctx bounds coordinator calls made from Update.
func New(ctx context.Context, coord *coordinator.Coordinator, cfg Config) Model {
	if cfg.FrameRate <= 0 {
		cfg.FrameRate = coordinator.DefaultFrameRate
	}
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = spinnerStyle

	m := Model{
		ctx:     ctx,
		coord:   coord,
		cfg:     cfg,
		spinner: s,
		status:  "Ready",
	}
	m.capture()
	return m
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.waitReload())
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case frameMsg:
		if msg.seq != m.seq {
			return m, nil
		}
		finished := !m.coord.InProgress()
		m.capture()
		if finished {
			return m, nil
		}
		return m, m.tick()

	case runDoneMsg:
		return m.finishRun(msg.outcome)

	case configMsg:
		return m.handleReload(msg.cfg)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// Running reports whether the model is observing a run.
func (m Model) Running() bool {
	return m.run != nil
}

// Status returns the status line text.
func (m Model) Status() string {
	return m.status
}

// =============================================================================
// Keys
// =============================================================================

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		m.quitting = true
		return m, tea.Quit

	case "s", "enter":
		return m.startRun()

	case "v":
		return m.edit("variant", func(s *coordinator.Settings) { s.Params.Variant = s.Params.Variant.Next() })

	case "m":
		return m.edit("mode", func(s *coordinator.Settings) { s.Mode = s.Mode.Next() })

	case "+", "=":
		return m.edit("concurrency", func(s *coordinator.Settings) { s.Params.Concurrency++ })

	case "-", "_":
		return m.edit("concurrency", func(s *coordinator.Settings) { s.Params.Concurrency-- })

	case "]":
		return m.edit("cost", func(s *coordinator.Settings) { s.Params.ComparatorCost += coordinator.ComparatorCostStep })

	case "[":
		return m.edit("cost", func(s *coordinator.Settings) { s.Params.ComparatorCost -= coordinator.ComparatorCostStep })

	case "r":
		if err := m.coord.ResetClocks(m.ctx); err != nil {
			m.setError(err)
			return m, nil
		}
		m.capture()
		m.setStatus("Clocks reset")
	}
	return m, nil
}

// edit applies a settings change; while running it is refused.
func (m Model) edit(what string, fn func(*coordinator.Settings)) (tea.Model, tea.Cmd) {
	if _, err := m.coord.UpdateSettings(m.ctx, fn); err != nil {
		m.setError(err)
		return m, nil
	}
	m.capture()
	m.setStatus("Changed " + what)
	return m, nil
}

func (m Model) startRun() (tea.Model, tea.Cmd) {
	run, err := m.coord.Start(m.ctx, m.coord.Settings().Params)
	if err != nil {
		m.setError(err)
		return m, nil
	}
	m.run = run
	m.cfg.Warning = ""
	m.seq++
	m.setStatus(fmt.Sprintf("Sorting with %s", run.Params.Variant.Label()))
	m.capture()
	return m, tea.Batch(m.tick(), waitRun(run), m.spinner.Tick)
}

func (m Model) finishRun(out coordinator.Outcome) (tea.Model, tea.Cmd) {
	m.run = nil
	m.seq++
	m.capture()
	if out.Err != nil {
		msg := "Run failed: " + out.Err.Error()
		if out.Restored {
			msg += " (buffer restored)"
		}
		m.status, m.statusErr = msg, true
	} else {
		m.setStatus(fmt.Sprintf("%s finished in %s s", out.Params.Variant.Label(), render.FormatSeconds(out.Elapsed.Seconds())))
	}

	if m.pending != nil {
		cfg := m.pending
		m.pending = nil
		return m.applyReload(cfg)
	}
	return m, nil
}

// =============================================================================
// Config Reloads
// =============================================================================

func (m Model) waitReload() tea.Cmd {
	if m.cfg.Reloads == nil {
		return nil
	}
	ch := m.cfg.Reloads
	return func() tea.Msg {
		cfg, ok := <-ch
		if !ok {
			return nil
		}
		return configMsg{cfg: cfg}
	}
}

func (m Model) handleReload(cfg *config.Config) (tea.Model, tea.Cmd) {
	if m.run != nil {
		m.pending = cfg
		metrics.RecordConfigReload("deferred")
		m.setStatus("Config changed; applying after this run")
		return m, m.waitReload()
	}
	next, cmd := m.applyReload(cfg)
	return next, tea.Batch(cmd, m.waitReload())
}

func (m Model) applyReload(cfg *config.Config) (tea.Model, tea.Cmd) {
	s, err := cfg.Settings()
	if err == nil {
		_, err = m.coord.UpdateSettings(m.ctx, func(cur *coordinator.Settings) { *cur = s })
	}
	if err != nil {
		metrics.RecordConfigReload("invalid")
		m.setError(err)
		return m, nil
	}
	if cfg.FrameRate > 0 {
		m.cfg.FrameRate = cfg.FrameRate
	}
	metrics.RecordConfigReload("applied")
	m.capture()
	m.setStatus("Config reloaded")
	return m, nil
}

// =============================================================================
// Helpers
// =============================================================================

func (m Model) tick() tea.Cmd {
	seq := m.seq
	interval := time.Duration(float64(time.Second) / m.cfg.FrameRate)
	return tea.Tick(interval, func(time.Time) tea.Msg {
		return frameMsg{seq: seq}
	})
}

func waitRun(run *coordinator.Run) tea.Cmd {
	return func() tea.Msg {
		<-run.Done()
		out, _ := run.Outcome()
		return runDoneMsg{outcome: out}
	}
}

func (m *Model) capture() {
	m.frame = m.coord.Frame(m.scratch)
	m.scratch = m.frame.Pixels
}

func (m *Model) setStatus(s string) {
	m.status, m.statusErr = s, false
}

func (m *Model) setError(err error) {
	switch {
	case errors.Is(err, coordinator.ErrConfigurationLocked):
		m.status = "Settings are locked while a sort is running"
	case errors.Is(err, coordinator.ErrRunInProgress):
		m.status = "A sort is already running"
	default:
		m.status = err.Error()
	}
	m.statusErr = true
}
