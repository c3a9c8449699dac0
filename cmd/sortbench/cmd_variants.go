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
	"strconv"
	"strings"

	"github.com/AleutianAI/sortbench/pkg/ux"
	"github.com/AleutianAI/sortbench/services/sortbench/dataset"
	"github.com/AleutianAI/sortbench/services/sortbench/gateway"
	"github.com/AleutianAI/sortbench/services/sortbench/kernels"
	"github.com/spf13/cobra"
)

func newVariantsCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "variants",
		Aliases: []string{"list"},
		Short:   "List sort variants, datasets, the sort backend and host CPU features",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd, g, false)
			if err != nil {
				return err
			}
			defer a.Close(cmd.Context())

			ux.Title("Variants")
			rows := make([][2]string, 0, len(gateway.Variants))
			for _, v := range gateway.Variants {
				rows = append(rows, [2]string{v.String(), fmt.Sprintf("%s (%d)", v.Label(), int(v))})
			}
			ux.KeyValues(rows)

			ux.Title("Datasets")
			rows = rows[:0]
			for _, m := range dataset.Modes {
				rows = append(rows, [2]string{m.String(), m.Label()})
			}
			ux.KeyValues(rows)

			ux.Title("Backend")
			status := "available"
			if a.backendErr != nil {
				status = "unavailable: " + a.backendErr.Error()
			}
			ux.KeyValues([][2]string{
				{"source", a.gateway.Source()},
				{"status", status},
				{"registered", strings.Join(gateway.Registered(), ", ")},
			})

			ux.Title("Host")
			host := kernels.DetectHost()
			features := strings.Join(host.Features, " ")
			if features == "" {
				features = "none detected"
			}
			ux.KeyValues([][2]string{
				{"arch", host.Arch},
				{"cpus", strconv.Itoa(host.CPUs)},
				{"features", features},
			})
			return nil
		},
	}
}
