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

	"github.com/AleutianAI/sortbench/pkg/ux"
	"github.com/AleutianAI/sortbench/services/sortbench/dataset"
	"github.com/AleutianAI/sortbench/services/sortbench/gateway"
	"github.com/AleutianAI/sortbench/services/sortbench/render"
	"github.com/spf13/cobra"
)

func newGenerateCmd(g *globalOptions) *cobra.Command {
	var (
		field fieldFlags
		out   string
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Write a dataset to a PNG file",
		Example: `  sortbench generate --mode sawtooth -k 4 --out teeth.png
  sortbench generate --mode nearlysorted --width 256 --height 256 --out - > field.png`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := setup(cmd, g, false)
			if err != nil {
				return err
			}
			defer a.Close(ctx)

			field.apply(cmd.Flags(), a.cfg)
			if err := a.cfg.Validate(); err != nil {
				return err
			}
			settings, err := a.cfg.Settings()
			if err != nil {
				return err
			}

			cache := dataset.NewCache(dataset.NewGenerator(a.gateway, a.logger.Slog()), 1)
			buf, err := cache.Generate(ctx, settings.Mode, a.cfg.Width, a.cfg.Height, settings.Params.Concurrency, settings.Seed)
			if err != nil {
				if errors.Is(err, gateway.ErrComputationUnavailable) {
					a.warnBackend()
				}
				return fmt.Errorf("generate %s: %w", settings.Mode, err)
			}

			if err := writeSnapshot(out, ux.Stdout(), render.Capture(buf, nil, 0)); err != nil {
				return err
			}
			if out != "-" {
				ux.Success(fmt.Sprintf("%s dataset (%dx%d, seed %d) written to %s",
					settings.Mode.Label(), a.cfg.Width, a.cfg.Height, settings.Seed, out))
			}
			return nil
		},
	}
	field.register(cmd.Flags())
	cmd.Flags().StringVarP(&out, "out", "o", "dataset.png", `output PNG file, "-" for stdout`)
	return cmd
}
