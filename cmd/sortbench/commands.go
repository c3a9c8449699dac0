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
	"github.com/AleutianAI/sortbench/pkg/ux"
	"github.com/spf13/cobra"
)

// globalOptions holds the persistent flags. Flags override the config file
// only when set on the command line.
type globalOptions struct {
	configPath  string
	logLevel    string
	logDir      string
	jsonLogs    bool
	metricsAddr string
	trace       bool
	backend     string
	personality string
}

// newRootCmd builds the command tree. A fresh tree per call keeps flag state
// out of package globals.
func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "sortbench",
		Short: "Benchmark parallel sort variants on a grayscale pixel field",
		Long: `sortbench fills a pixel field with gray levels, sorts it in place with one of
four sort variants and reports each variant's time against the baseline.

Run it headless with "sortbench run" or interactively with "sortbench tui".`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if opts.personality != "" {
				ux.SetLevel(ux.ParseLevel(opts.personality))
			} else {
				ux.InitPersonality()
			}
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "config file (default ~/.sortbench/sortbench.yaml)")
	pf.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.StringVar(&opts.logDir, "log-dir", "", "also write JSON logs to this directory")
	pf.BoolVar(&opts.jsonLogs, "json-logs", false, "write stderr logs as JSON")
	pf.StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9464")
	pf.BoolVar(&opts.trace, "trace", false, "print OpenTelemetry spans to stderr")
	pf.StringVar(&opts.backend, "backend", "", "sort backend plugin (.so); empty uses the built-in backend")
	pf.StringVar(&opts.personality, "personality", "", "output style: full, minimal, machine")

	root.AddCommand(
		newRunCmd(opts),
		newTUICmd(opts),
		newGenerateCmd(opts),
		newConfigureCmd(opts),
		newVariantsCmd(opts),
	)
	return root
}
