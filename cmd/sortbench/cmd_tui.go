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
	"context"
	"errors"
	"fmt"

	"github.com/AleutianAI/sortbench/pkg/ux"
	"github.com/AleutianAI/sortbench/services/sortbench/config"
	"github.com/AleutianAI/sortbench/services/sortbench/tui"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

// errNotInteractive is returned by commands that need a terminal.
var errNotInteractive = errors.New("this command needs an interactive terminal; use \"sortbench run\" instead")

func newTUICmd(g *globalOptions) *cobra.Command {
	var noWatch bool
	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Open the interactive benchmark",
		Long: `Open the interactive benchmark. The field redraws while a sort runs.

Keys: s/enter sort, v variant, m dataset, +/- concurrency, [/] comparator cost,
r reset clocks, q quit. Edits to the config file are applied between runs.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !ux.IsInteractive() {
				return errNotInteractive
			}
			return runTUI(cmd, g, !noWatch)
		},
	}
	cmd.Flags().BoolVar(&noWatch, "no-watch", false, "do not reload the config file when it changes")
	return cmd
}

func runTUI(cmd *cobra.Command, g *globalOptions, watch bool) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	a, err := setup(cmd, g, true)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	settings, err := a.cfg.Settings()
	if err != nil {
		return err
	}
	coord, err := a.newBench(settings, a.cfg.Width, a.cfg.Height)
	if err != nil {
		return err
	}

	var warning string
	if a.backendErr != nil {
		warning = "Sort backend unavailable: " + a.backendErr.Error()
	}
	if err := coord.Regenerate(ctx); err != nil {
		a.logger.Warn("initial dataset not generated", "error", err)
		if warning == "" {
			warning = fmt.Sprintf("Could not generate the %s dataset: %v", settings.Mode.Label(), err)
		}
	}

	tcfg := tui.Config{FrameRate: a.cfg.FrameRate, Warning: warning}
	if watch {
		w, err := config.NewWatcher(a.cfgPath, a.logger.Slog())
		if err != nil {
			a.logger.Warn("config reload disabled", "error", err)
		} else {
			defer w.Stop()
			go func() {
				if err := w.Start(ctx); err != nil {
					a.logger.Warn("config watcher stopped", "error", err)
				}
			}()
			tcfg.Reloads = w.Updates()
		}
	}

	model := tui.New(ctx, coord, tcfg)
	if _, err := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx)).Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("tui: %w", err)
	}
	return nil
}
