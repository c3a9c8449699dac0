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
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/AleutianAI/sortbench/pkg/logging"
	"github.com/AleutianAI/sortbench/pkg/ux"
	"github.com/AleutianAI/sortbench/services/sortbench/buffer"
	"github.com/AleutianAI/sortbench/services/sortbench/config"
	"github.com/AleutianAI/sortbench/services/sortbench/coordinator"
	"github.com/AleutianAI/sortbench/services/sortbench/dataset"
	"github.com/AleutianAI/sortbench/services/sortbench/gateway"
	"github.com/AleutianAI/sortbench/services/sortbench/metrics"
	"github.com/AleutianAI/sortbench/services/sortbench/results"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	// Registers the built-in sort backend.
	_ "github.com/AleutianAI/sortbench/services/sortbench/kernels"
)

// traceFileName receives spans when stderr belongs to the TUI.
const traceFileName = "traces.json"

// app is the wiring shared by every command.
type app struct {
	cfg     *config.Config
	cfgPath string
	logger  *logging.Logger
	gateway *gateway.Gateway

	// backendErr is non-nil when no sort backend could be loaded. Commands
	// decide whether that is fatal.
	backendErr error

	closers []func(context.Context) error
}

// setup loads the config and starts logging, tracing, metrics and the sort
// gateway.
//
// # Description
//
// Flags override the file only when set. quiet keeps log records and spans
// off stderr, which the TUI owns. A missing backend is not an error here; it
// is reported through app.backendErr.
//
// # Outputs
//
//   - *app: Call Close when done.
//   - error: Config, validation or listener failure.
func setup(cmd *cobra.Command, opts *globalOptions, quiet bool) (*app, error) {
	cfg, path, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	if err := applyGlobalFlags(cmd, opts, cfg); err != nil {
		return nil, err
	}

	level, _ := logging.ParseLevel(cfg.Log.Level)
	logger, logErr := logging.New(logging.Config{
		Level:   level,
		LogDir:  cfg.Log.Dir,
		JSON:    cfg.Log.JSON,
		Quiet:   quiet,
		Service: logging.DefaultService,
		Stderr:  ux.Stderr(),
	})
	if logErr != nil {
		logger.Warn("file logging disabled", "dir", cfg.Log.Dir, "error", logErr)
	}
	slog.SetDefault(logger.Slog())

	a := &app{cfg: cfg, cfgPath: path, logger: logger}

	if cfg.Trace {
		var w io.Writer = ux.Stderr()
		if quiet {
			f, err := os.OpenFile(filepath.Join(filepath.Dir(path), traceFileName), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
			if err != nil {
				a.Close(cmd.Context())
				return nil, fmt.Errorf("open trace file: %w", err)
			}
			w = f
			a.closers = append(a.closers, func(context.Context) error { return f.Close() })
		}
		shutdown, err := setupTracing(w)
		if err != nil {
			a.Close(cmd.Context())
			return nil, err
		}
		a.closers = append(a.closers, shutdown)
	}

	if cfg.MetricsAddr != "" {
		srv, err := startMetricsServer(cfg.MetricsAddr, logger.Slog())
		if err != nil {
			a.Close(cmd.Context())
			return nil, err
		}
		a.closers = append(a.closers, srv.Shutdown)
	}

	gw, err := gateway.Locate(cfg.BackendPath, logger.Slog())
	a.gateway = gw
	if err != nil {
		a.backendErr = err
		logger.Warn("sort backend unavailable", "path", cfg.BackendPath, "error", err)
	} else {
		logger.Debug("sort backend ready", "source", gw.Source())
	}
	return a, nil
}

// Close stops everything setup started, newest first.
func (a *app) Close(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			a.logger.Warn("shutdown step failed", "error", err)
		}
	}
	a.closers = nil
	_ = a.logger.Close()
}

// warnBackend prints the backend warning box, if there is one.
func (a *app) warnBackend() {
	if a.backendErr == nil {
		return
	}
	ux.WarningBox("Sort backend unavailable", backendHint(a.backendErr))
}

func backendHint(err error) string {
	return fmt.Sprintf("%v\nSorting and pre-sorted datasets are disabled. Random datasets still work.\nBuild a backend with: go build -buildmode=plugin ./cmd/sortbench-plugin", err)
}

// applyGlobalFlags copies explicitly set persistent flags into cfg and
// re-validates.
func applyGlobalFlags(cmd *cobra.Command, opts *globalOptions, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Log.Level = opts.logLevel
	}
	if flags.Changed("log-dir") {
		cfg.Log.Dir = opts.logDir
	}
	if flags.Changed("json-logs") {
		cfg.Log.JSON = opts.jsonLogs
	}
	if flags.Changed("metrics-addr") {
		cfg.MetricsAddr = opts.metricsAddr
	}
	if flags.Changed("trace") {
		cfg.Trace = opts.trace
	}
	if flags.Changed("backend") {
		cfg.BackendPath = opts.backend
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("flags: %w", err)
	}
	return nil
}

// newBench builds the buffer, dataset cache, result store and coordinator
// for the given settings and field size.
func (a *app) newBench(settings coordinator.Settings, width, height int) (*coordinator.Coordinator, error) {
	buf, err := buffer.New(width, height)
	if err != nil {
		return nil, fmt.Errorf("field %dx%d: %w", width, height, err)
	}
	log := a.logger.Slog()
	cache := dataset.NewCache(dataset.NewGenerator(a.gateway, log), dataset.DefaultCacheEntries)
	return coordinator.New(buf, a.gateway, cache, results.NewStore(),
		coordinator.WithLogger(log),
		coordinator.WithSettings(settings),
	), nil
}

// =============================================================================
// Tracing
// =============================================================================

// setupTracing installs a global tracer provider that pretty-prints spans to
// w. The returned func flushes and shuts it down.
func setupTracing(w io.Writer) (func(context.Context) error, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("create trace exporter: %w", err)
	}
	res := resource.NewWithAttributes(
		"",
		attribute.String("service.name", logging.DefaultService),
	)
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

// =============================================================================
// Metrics
// =============================================================================

// metricsServer serves /metrics until Shutdown.
type metricsServer struct {
	srv *http.Server
	ln  net.Listener
}

// startMetricsServer binds addr before returning so a busy port is reported
// immediately.
func startMetricsServer(addr string, logger *slog.Logger) (*metricsServer, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics listener: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	s := &metricsServer{
		srv: &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second},
		ln:  ln,
	}
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", "error", err)
		}
	}()
	logger.Info("serving metrics", "addr", ln.Addr().String())
	return s, nil
}

// Addr returns the bound address.
func (s *metricsServer) Addr() string {
	return s.ln.Addr().String()
}

// Shutdown stops the server.
func (s *metricsServer) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
