// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package gateway is the narrow boundary to the sort capability.
//
// # Description
//
// The orchestration layer never sorts anything itself. It hands a buffer, an
// element count, a variant, a concurrency degree and a per-comparison cost to
// a Backend through a Gateway, and gets back the wall-clock duration the
// backend measured. Backends are either registered in-process (see Register)
// or loaded from a Go plugin on disk (see Locate).
//
// # Thread Safety
//
// A Gateway is safe for concurrent use. The buffer passed to Invoke must have
// a single writer for the duration of the call.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"plugin"
	"sort"
	"sync"
	"time"

	"github.com/AleutianAI/sortbench/services/sortbench/buffer"
	"github.com/AleutianAI/sortbench/services/sortbench/metrics"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "sortbench.gateway"

// DefaultBackend is the registry name used when no plugin path is given.
const DefaultBackend = "native"

// PluginSymbol is the exported symbol a backend plugin must provide. It must
// be a variable of type gateway.Backend.
const PluginSymbol = "Backend"

// -----------------------------------------------------------------------------
// Errors
// -----------------------------------------------------------------------------

var (
	// ErrComputationUnavailable indicates that no sort backend could be located
	// or loaded.
	ErrComputationUnavailable = errors.New("sort computation unavailable")

	// ErrComputationFailed indicates that the backend returned an error or
	// panicked. The buffer contents are unspecified afterwards.
	ErrComputationFailed = errors.New("sort computation failed")

	// ErrInvalidArgument indicates a malformed invocation.
	ErrInvalidArgument = errors.New("invalid sort invocation")
)

// -----------------------------------------------------------------------------
// Backend
// -----------------------------------------------------------------------------

// Backend is the sort capability behind the gateway.
type Backend interface {
	// Name identifies the backend in logs.
	Name() string

	// Sort orders the first n cells ascending in place and returns the
	// wall-clock time it took. concurrency is at least 1. cost is the
	// simulated per-comparison work, non-negative.
	Sort(variant Variant, cells buffer.Cells, n, concurrency int, cost float64) (time.Duration, error)
}

// Invoker is what the dataset generator and the coordinator need from a gateway.
type Invoker interface {
	Invoke(ctx context.Context, variant Variant, cells buffer.Cells, elementCount, concurrency int, comparatorCost float64) (time.Duration, error)
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Backend)
)

// Register makes a backend available by name. It panics if backend is nil or
// the name is already taken, the same contract as database/sql drivers.
func Register(name string, backend Backend) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if backend == nil {
		panic("gateway: Register backend is nil")
	}
	if _, dup := registry[name]; dup {
		panic("gateway: Register called twice for backend " + name)
	}
	registry[name] = backend
}

// Registered returns the sorted names of registered backends.
func Registered() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func lookup(name string) (Backend, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	b, ok := registry[name]
	return b, ok
}

// -----------------------------------------------------------------------------
// Gateway
// -----------------------------------------------------------------------------

// Gateway forwards sort invocations to a backend.
//
// A Gateway with no backend is valid: every Invoke fails with
// ErrComputationUnavailable. This lets the program start with a warning and
// fail only when a sort is actually requested.
type Gateway struct {
	backend Backend
	source  string
	loadErr error
	logger  *slog.Logger
}

// New wraps an already constructed backend.
func New(backend Backend) *Gateway {
	g := &Gateway{backend: backend, logger: slog.Default()}
	if backend != nil {
		g.source = "in-process:" + backend.Name()
	} else {
		g.loadErr = ErrComputationUnavailable
	}
	return g
}

// Locate finds the sort backend.
//
// # Description
//
// An empty path selects the registered DefaultBackend. Otherwise path names a
// Go plugin exporting PluginSymbol. The returned Gateway is never nil; when
// the error is non-nil it wraps ErrComputationUnavailable and the Gateway
// fails every invocation with the same error.
//
// # Inputs
//
//   - path: Plugin file, or "" for the built-in backend.
//   - logger: Logger for load diagnostics. Nil uses slog.Default().
//
// # Outputs
//
//   - *Gateway: Usable gateway. Never nil.
//   - error: Non-nil when no backend could be loaded.
func Locate(path string, logger *slog.Logger) (*Gateway, error) {
	if logger == nil {
		logger = slog.Default()
	}
	g := &Gateway{logger: logger}

	if path == "" {
		backend, ok := lookup(DefaultBackend)
		if !ok {
			g.loadErr = fmt.Errorf("no %q backend registered: %w", DefaultBackend, ErrComputationUnavailable)
			return g, g.loadErr
		}
		g.backend = backend
		g.source = "in-process:" + backend.Name()
		logger.Debug("sort backend located", "source", g.source)
		return g, nil
	}

	backend, err := openPlugin(path)
	if err != nil {
		g.loadErr = err
		return g, err
	}
	g.backend = backend
	g.source = "plugin:" + path
	logger.Debug("sort backend loaded", "source", g.source, "backend", backend.Name())
	return g, nil
}

func openPlugin(path string) (Backend, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("backend %s: %v: %w", path, err, ErrComputationUnavailable)
	}
	p, err := plugin.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening backend %s: %v: %w", path, err, ErrComputationUnavailable)
	}
	sym, err := p.Lookup(PluginSymbol)
	if err != nil {
		return nil, fmt.Errorf("backend %s: %v: %w", path, err, ErrComputationUnavailable)
	}
	switch b := sym.(type) {
	case *Backend:
		if *b == nil {
			return nil, fmt.Errorf("backend %s: symbol %s is nil: %w", path, PluginSymbol, ErrComputationUnavailable)
		}
		return *b, nil
	case Backend:
		return b, nil
	default:
		return nil, fmt.Errorf("backend %s: symbol %s has type %T: %w", path, PluginSymbol, sym, ErrComputationUnavailable)
	}
}

// SetLogger replaces the gateway logger. Nil values are ignored.
func (g *Gateway) SetLogger(logger *slog.Logger) {
	if logger != nil {
		g.logger = logger
	}
}

// Available reports whether a backend is loaded.
func (g *Gateway) Available() bool {
	return g.backend != nil
}

// Probe returns the load error, if any.
func (g *Gateway) Probe() error {
	if g.backend == nil {
		if g.loadErr != nil {
			return g.loadErr
		}
		return ErrComputationUnavailable
	}
	return nil
}

// Source describes where the backend came from.
func (g *Gateway) Source() string {
	if g.source == "" {
		return "none"
	}
	return g.source
}

// Invoke sorts the first elementCount cells with the given variant.
//
// # Description
//
// Validates the call, forwards it to the backend, and returns the duration
// the backend measured. Backend panics are recovered and reported as
// ErrComputationFailed. The call is not cancellable: ctx carries tracing only.
//
// # Inputs
//
//   - ctx: Trace context.
//   - variant: Sort strategy.
//   - cells: Buffer to sort in place.
//   - elementCount: Number of leading cells to sort, 0 ≤ n ≤ cells.Len().
//   - concurrency: Degree of parallelism; values below 1 are treated as 1.
//   - comparatorCost: Simulated per-comparison work, ≥ 0.
//
// # Outputs
//
//   - time.Duration: Backend-measured elapsed time.
//   - error: ErrComputationUnavailable, ErrInvalidArgument or ErrComputationFailed.
func (g *Gateway) Invoke(ctx context.Context, variant Variant, cells buffer.Cells, elementCount, concurrency int, comparatorCost float64) (elapsed time.Duration, err error) {
	tracer := otel.Tracer(tracerName)
	_, span := tracer.Start(ctx, "gateway.Invoke",
		trace.WithAttributes(
			attribute.String("sort.variant", variant.String()),
			attribute.Int("sort.elements", elementCount),
			attribute.Int("sort.concurrency", concurrency),
			attribute.Float64("sort.comparator_cost", comparatorCost),
		),
	)
	defer span.End()

	if g.backend == nil {
		err = g.Probe()
		span.RecordError(err)
		span.SetStatus(codes.Error, "backend unavailable")
		metrics.RecordSort(variant.String(), "unavailable", 0)
		return 0, err
	}

	if err = validate(variant, cells, elementCount, comparatorCost); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "invalid invocation")
		return 0, err
	}
	if concurrency < 1 {
		concurrency = 1
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s panicked: %v: %w", g.backend.Name(), r, ErrComputationFailed)
			elapsed = 0
		}
		status := "success"
		if err != nil {
			status = "error"
			span.RecordError(err)
			span.SetStatus(codes.Error, "sort failed")
			g.logger.Error("sort invocation failed",
				"variant", variant.String(),
				"elements", elementCount,
				"error", err,
			)
		} else {
			span.SetAttributes(attribute.Float64("sort.elapsed_seconds", elapsed.Seconds()))
			span.SetStatus(codes.Ok, "sorted")
		}
		metrics.RecordSort(variant.String(), status, elapsed.Seconds())
	}()

	elapsed, err = g.backend.Sort(variant, cells, elementCount, concurrency, comparatorCost)
	if err != nil {
		return 0, fmt.Errorf("%s: %v: %w", g.backend.Name(), err, ErrComputationFailed)
	}
	if elapsed < 0 {
		elapsed = 0
	}
	return elapsed, nil
}

func validate(variant Variant, cells buffer.Cells, n int, cost float64) error {
	if !variant.Valid() {
		return fmt.Errorf("variant %d: %w", int(variant), ErrInvalidArgument)
	}
	if cells == nil {
		return fmt.Errorf("nil buffer: %w", ErrInvalidArgument)
	}
	if n < 0 || n > cells.Len() {
		return fmt.Errorf("element count %d outside [0, %d]: %w", n, cells.Len(), ErrInvalidArgument)
	}
	if cost < 0 || math.IsNaN(cost) || math.IsInf(cost, 0) {
		return fmt.Errorf("comparator cost %v: %w", cost, ErrInvalidArgument)
	}
	return nil
}

var _ Invoker = (*Gateway)(nil)
