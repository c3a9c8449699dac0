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
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/AleutianAI/sortbench/pkg/ux"
	"github.com/AleutianAI/sortbench/services/sortbench/config"
	"github.com/AleutianAI/sortbench/services/sortbench/coordinator"
	"github.com/AleutianAI/sortbench/services/sortbench/dataset"
	"github.com/AleutianAI/sortbench/services/sortbench/gateway"
	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
)

func newConfigureCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "configure",
		Short: "Edit the config file in an interactive form",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !ux.IsInteractive() {
				return errNotInteractive
			}
			cfg, path, err := config.Load(g.configPath)
			if err != nil {
				return err
			}

			fv := newFormValues(cfg)
			if err := fv.form().Run(); err != nil {
				if errors.Is(err, huh.ErrUserAborted) {
					ux.Info("No changes saved")
					return nil
				}
				return err
			}
			if err := fv.apply(cfg); err != nil {
				return err
			}
			if err := config.Save(path, cfg); err != nil {
				return err
			}
			ux.Success("Saved " + path)
			return nil
		},
	}
}

// formValues mirrors config.Config as form-editable strings.
type formValues struct {
	Mode    string
	Variant string

	Width       string
	Height      string
	Seed        string
	Concurrency string
	Cost        string
	FrameRate   string

	BackendPath string
	MetricsAddr string
	LogLevel    string
}

func newFormValues(cfg *config.Config) *formValues {
	return &formValues{
		Mode:        cfg.Mode,
		Variant:     cfg.Variant,
		Width:       strconv.Itoa(cfg.Width),
		Height:      strconv.Itoa(cfg.Height),
		Seed:        strconv.FormatUint(cfg.Seed, 10),
		Concurrency: strconv.Itoa(cfg.Concurrency),
		Cost:        strconv.FormatFloat(cfg.ComparatorCost, 'f', -1, 64),
		FrameRate:   strconv.FormatFloat(cfg.FrameRate, 'f', -1, 64),
		BackendPath: cfg.BackendPath,
		MetricsAddr: cfg.MetricsAddr,
		LogLevel:    cfg.Log.Level,
	}
}

func (fv *formValues) form() *huh.Form {
	modes := make([]huh.Option[string], 0, len(dataset.Modes))
	for _, m := range dataset.Modes {
		modes = append(modes, huh.NewOption(m.Label(), m.String()))
	}
	variants := make([]huh.Option[string], 0, len(gateway.Variants))
	for _, v := range gateway.Variants {
		variants = append(variants, huh.NewOption(v.Label(), v.String()))
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().Title("Dataset").Options(modes...).Value(&fv.Mode),
			huh.NewInput().Title("Width").Value(&fv.Width).Validate(intIn(1, 8192)),
			huh.NewInput().Title("Height").Value(&fv.Height).Validate(intIn(1, 8192)),
			huh.NewInput().Title("Seed").Value(&fv.Seed).Validate(validUint),
		),
		huh.NewGroup(
			huh.NewSelect[string]().Title("Variant").Options(variants...).Value(&fv.Variant),
			huh.NewInput().Title("Concurrency").Description("Values below 1 run with 1 worker").
				Value(&fv.Concurrency).Validate(intIn(-1<<31, 1<<31-1)),
			huh.NewInput().Title("Comparator cost").Value(&fv.Cost).
				Validate(floatIn(0, coordinator.MaxComparatorCost)),
			huh.NewInput().Title("Frame rate").Description("0 uses the default").
				Value(&fv.FrameRate).Validate(floatIn(0, 240)),
		),
		huh.NewGroup(
			huh.NewInput().Title("Backend plugin").Description("Empty uses the built-in backend").Value(&fv.BackendPath),
			huh.NewInput().Title("Metrics address").Description("Empty disables /metrics").Value(&fv.MetricsAddr),
			huh.NewSelect[string]().Title("Log level").
				Options(huh.NewOptions("debug", "info", "warn", "error")...).
				Value(&fv.LogLevel),
		),
	)
}

// apply parses the form strings into cfg and validates the result. cfg is
// left untouched on error.
func (fv *formValues) apply(cfg *config.Config) error {
	next := *cfg
	var err error
	parse := func(field string, fn func() error) {
		if err == nil {
			if e := fn(); e != nil {
				err = fmt.Errorf("%s: %w", field, e)
			}
		}
	}

	parse("width", func() (e error) { next.Width, e = strconv.Atoi(strings.TrimSpace(fv.Width)); return })
	parse("height", func() (e error) { next.Height, e = strconv.Atoi(strings.TrimSpace(fv.Height)); return })
	parse("seed", func() (e error) { next.Seed, e = strconv.ParseUint(strings.TrimSpace(fv.Seed), 10, 64); return })
	parse("concurrency", func() (e error) { next.Concurrency, e = strconv.Atoi(strings.TrimSpace(fv.Concurrency)); return })
	parse("comparator cost", func() (e error) {
		next.ComparatorCost, e = strconv.ParseFloat(strings.TrimSpace(fv.Cost), 64)
		return
	})
	parse("frame rate", func() (e error) {
		next.FrameRate, e = strconv.ParseFloat(strings.TrimSpace(fv.FrameRate), 64)
		return
	})
	if err != nil {
		return err
	}

	next.Mode = fv.Mode
	next.Variant = fv.Variant
	next.BackendPath = strings.TrimSpace(fv.BackendPath)
	next.MetricsAddr = strings.TrimSpace(fv.MetricsAddr)
	next.Log.Level = fv.LogLevel
	if err := next.Validate(); err != nil {
		return err
	}
	*cfg = next
	return nil
}

func intIn(lo, hi int) func(string) error {
	return func(s string) error {
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return errors.New("enter a whole number")
		}
		if n < lo || n > hi {
			return fmt.Errorf("must be between %d and %d", lo, hi)
		}
		return nil
	}
}

func floatIn(lo, hi float64) func(string) error {
	return func(s string) error {
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return errors.New("enter a number")
		}
		if f < lo || f > hi {
			return fmt.Errorf("must be between %g and %g", lo, hi)
		}
		return nil
	}
}

func validUint(s string) error {
	if _, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64); err != nil {
		return errors.New("enter a non-negative whole number")
	}
	return nil
}
