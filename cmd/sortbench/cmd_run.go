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
	"io"
	"os"

	"github.com/AleutianAI/sortbench/pkg/ux"
	"github.com/AleutianAI/sortbench/services/sortbench/config"
	"github.com/AleutianAI/sortbench/services/sortbench/coordinator"
	"github.com/AleutianAI/sortbench/services/sortbench/gateway"
	"github.com/AleutianAI/sortbench/services/sortbench/render"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// errAllRunsFailed is returned by run when no variant produced a sample.
var errAllRunsFailed = errors.New("every run failed")

// fieldFlags are the dataset flags shared by run and generate.
type fieldFlags struct {
	mode        string
	width       int
	height      int
	concurrency int
	seed        uint64
}

func (f *fieldFlags) register(fs *pflag.FlagSet) {
	fs.StringVarP(&f.mode, "mode", "m", "", "dataset: random, presorted, nearlysorted, sawtooth")
	fs.IntVar(&f.width, "width", 0, "field width in pixels")
	fs.IntVar(&f.height, "height", 0, "field height in pixels")
	fs.IntVarP(&f.concurrency, "concurrency", "k", 0, "worker count; values below 1 use 1")
	fs.Uint64Var(&f.seed, "seed", 0, "dataset seed")
}

// apply copies the flags that were set into cfg.
func (f *fieldFlags) apply(fs *pflag.FlagSet, cfg *config.Config) {
	if fs.Changed("mode") {
		cfg.Mode = f.mode
	}
	if fs.Changed("width") {
		cfg.Width = f.width
	}
	if fs.Changed("height") {
		cfg.Height = f.height
	}
	if fs.Changed("concurrency") {
		cfg.Concurrency = f.concurrency
	}
	if fs.Changed("seed") {
		cfg.Seed = f.seed
	}
}

type runOptions struct {
	field     fieldFlags
	variants  []string
	all       bool
	cost      float64
	frameRate float64
	snapshot  string
}

func newRunCmd(g *globalOptions) *cobra.Command {
	o := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run sort variants headless and print the comparison",
		Example: `  sortbench run --all
  sortbench run -v parallel -v parallel-radix --mode sawtooth -k 8
  sortbench run --variant baseline --cost 2 --snapshot sorted.png`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBench(cmd, g, o)
		},
	}
	fs := cmd.Flags()
	o.field.register(fs)
	fs.StringSliceVarP(&o.variants, "variant", "v", nil, "variant to run; repeat for several (default from config)")
	fs.BoolVar(&o.all, "all", false, "run every variant, baseline first")
	fs.Float64Var(&o.cost, "cost", 0, "comparator cost, 0 to 25")
	fs.Float64Var(&o.frameRate, "frame-rate", 0, "progress redraws per second")
	fs.StringVar(&o.snapshot, "snapshot", "", `write the final field to this PNG file, "-" for stdout`)
	return cmd
}

// resolve merges the flags into cfg and returns the run settings and the
// variants to run, in order.
func (o *runOptions) resolve(fs *pflag.FlagSet, cfg *config.Config) (coordinator.Settings, []gateway.Variant, error) {
	o.field.apply(fs, cfg)
	if fs.Changed("cost") {
		cfg.ComparatorCost = o.cost
	}
	if fs.Changed("frame-rate") {
		cfg.FrameRate = o.frameRate
	}
	if err := cfg.Validate(); err != nil {
		return coordinator.Settings{}, nil, err
	}
	settings, err := cfg.Settings()
	if err != nil {
		return coordinator.Settings{}, nil, err
	}

	if o.all {
		return settings, append([]gateway.Variant(nil), gateway.Variants...), nil
	}
	if len(o.variants) == 0 {
		return settings, []gateway.Variant{settings.Params.Variant}, nil
	}
	seen := make(map[gateway.Variant]bool, len(o.variants))
	var out []gateway.Variant
	for _, name := range o.variants {
		v, err := gateway.ParseVariant(name)
		if err != nil {
			return coordinator.Settings{}, nil, err
		}
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return settings, out, nil
}

func runBench(cmd *cobra.Command, g *globalOptions, o *runOptions) error {
	ctx := cmd.Context()
	a, err := setup(cmd, g, false)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	if a.backendErr != nil {
		a.warnBackend()
		return fmt.Errorf("cannot run: %w", a.backendErr)
	}

	// stdout carries the PNG; the report moves to stderr.
	pngOut := ux.Stdout()
	if o.snapshot == "-" {
		restore := ux.SetOutput(ux.Stderr(), nil)
		defer restore()
	}

	settings, variants, err := o.resolve(cmd.Flags(), a.cfg)
	if err != nil {
		return err
	}
	coord, err := a.newBench(settings, a.cfg.Width, a.cfg.Height)
	if err != nil {
		return err
	}

	ux.Title("Parallel Sort Bench")
	ux.Info(fmt.Sprintf("Data: %s   Field: %dx%d   Concurrency: %d   Comparator cost: %.1f   Backend: %s",
		settings.Mode.Label(), a.cfg.Width, a.cfg.Height,
		settings.Params.Concurrency, settings.Params.ComparatorCost, a.gateway.Source()))

	p := newProgressPresenter(ux.Stdout(), ux.ShouldShowProgress())
	failed := 0
	for _, v := range variants {
		params := settings.Params
		params.Variant = v

		run, err := coord.Start(ctx, params)
		if err != nil {
			return fmt.Errorf("%s: %w", v, err)
		}
		p.begin(v.Label())
		err = coord.Drive(ctx, run, p, a.cfg.FrameRate)
		p.end()
		if err != nil {
			return fmt.Errorf("%s: %w", v, err)
		}

		out, _ := run.Outcome()
		if out.Err != nil {
			failed++
			ux.Error(fmt.Sprintf("%s failed: %v", v.Label(), out.Err))
			continue
		}
		ux.Success(fmt.Sprintf("%s sorted in %s s", v.Label(), render.FormatSeconds(out.Elapsed.Seconds())))
	}

	ux.Box("Results", render.Stats(coord.Results().Report()))

	if o.snapshot != "" {
		if err := writeSnapshot(o.snapshot, pngOut, coord.Frame(nil)); err != nil {
			return err
		}
		if o.snapshot != "-" {
			ux.Success("Snapshot written to " + o.snapshot)
		}
	}
	if failed == len(variants) {
		return errAllRunsFailed
	}
	return nil
}

// writeSnapshot encodes f as a PNG at path. "-" writes to stdout.
func writeSnapshot(path string, stdout io.Writer, f render.Frame) error {
	if path == "-" {
		return render.WritePNG(stdout, f)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create snapshot: %w", err)
	}
	if err := render.WritePNG(file, f); err != nil {
		file.Close()
		return fmt.Errorf("write snapshot: %w", err)
	}
	return file.Close()
}
