// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package coordinator runs one sort at a time on a background goroutine while
// the caller keeps observing the shared buffer.
//
// # Description
//
// The coordinator is a two-state machine, Idle and Running. Start moves it to
// Running: the dataset for the current mode is regenerated, a restore copy is
// taken, and the gateway call is dispatched with the parameters captured by
// value. When the call returns the sample is recorded (on success) or the
// buffer is restored (on failure), the in-progress flag is cleared and the
// Run's Done channel is closed, in that order.
//
// Observers call Frame at their own pace, or hand a Presenter to Drive which
// paces itself with a rate limiter and returns after one final frame once the
// run completes.
//
// # Thread Safety
//
// All methods are safe for concurrent use. Settings changes are refused with
// ErrConfigurationLocked while Running. Runs cannot be cancelled.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/AleutianAI/sortbench/services/sortbench/buffer"
	"github.com/AleutianAI/sortbench/services/sortbench/dataset"
	"github.com/AleutianAI/sortbench/services/sortbench/gateway"
	"github.com/AleutianAI/sortbench/services/sortbench/metrics"
	"github.com/AleutianAI/sortbench/services/sortbench/render"
	"github.com/AleutianAI/sortbench/services/sortbench/results"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sys/cpu"
	"golang.org/x/time/rate"
)

const tracerName = "sortbench.coordinator"

// =============================================================================
// Errors
// =============================================================================

var (
	// ErrRunInProgress is returned by Start while another run is Running.
	ErrRunInProgress = errors.New("a run is already in progress")

	// ErrConfigurationLocked is returned by settings changes while Running.
	ErrConfigurationLocked = errors.New("configuration is locked while a run is in progress")

	// ErrInvalidConfiguration is returned for settings no clamp can repair,
	// such as an unknown mode or variant.
	ErrInvalidConfiguration = errors.New("invalid configuration")
)

// =============================================================================
// Run
// =============================================================================

// Outcome is the result of one run.
type Outcome struct {
	RunID  string
	Params RunParameters
	Mode   dataset.Mode

	// Elapsed is the backend-measured duration. Zero on failure.
	Elapsed time.Duration

	// Err is the gateway error, if any.
	Err error

	// Restored reports that the buffer was put back to its pre-run contents
	// after a failure.
	Restored bool
}

// Run is the handle of a dispatched run.
type Run struct {
	ID        string
	Params    RunParameters
	Mode      dataset.Mode
	StartedAt time.Time

	done    chan struct{}
	outcome Outcome
}

// Done is closed when the run has finished and the coordinator is Idle again.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Outcome returns the outcome once Done is closed.
func (r *Run) Outcome() (Outcome, bool) {
	select {
	case <-r.done:
		return r.outcome, true
	default:
		return Outcome{}, false
	}
}

// Wait blocks until the run finishes or ctx is done. Cancelling ctx does not
// stop the run.
func (r *Run) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-r.done:
		return r.outcome, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

// =============================================================================
// Coordinator
// =============================================================================

// runState is read by the render loop on every tick. The pad keeps the
// run goroutine's flag writes off the tick counter's cache line.
type runState struct {
	inProgress atomic.Bool
	_          cpu.CacheLinePad
	renderTick atomic.Uint64
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger. Nil values are ignored.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithSettings sets the initial settings. They are normalized.
func WithSettings(s Settings) Option {
	return func(c *Coordinator) {
		s.Params = s.Params.Normalize()
		c.settings = s
	}
}

// WithIDGenerator replaces the run id source.
func WithIDGenerator(fn func() string) Option {
	return func(c *Coordinator) {
		if fn != nil {
			c.newID = fn
		}
	}
}

// Coordinator owns the working buffer, the settings and the result store.
type Coordinator struct {
	buf    *buffer.Working
	sorter gateway.Invoker
	data   *dataset.Cache
	store  *results.Store
	logger *slog.Logger
	newID  func() string

	state runState

	mu       sync.Mutex
	settings Settings
	current  *Run
	last     *Outcome
}

// New creates an Idle coordinator. The buffer is not filled until Regenerate
// or Start is called.
func New(buf *buffer.Working, sorter gateway.Invoker, data *dataset.Cache, store *results.Store, opts ...Option) *Coordinator {
	c := &Coordinator{
		buf:      buf,
		sorter:   sorter,
		data:     data,
		store:    store,
		logger:   slog.Default(),
		newID:    uuid.NewString,
		settings: DefaultSettings(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start dispatches a run with params.
//
// # Description
//
// Rejects with ErrRunInProgress if a run is Running. Otherwise normalizes
// params, stores them as the current selection, regenerates the dataset for
// the current mode, snapshots it for restore, flips to Running and starts the
// sort on a new goroutine. ctx cancellation does not reach the sort.
//
// # Outputs
//
//   - *Run: Handle to wait on. Nil on error.
//   - error: ErrRunInProgress, ErrInvalidConfiguration, or a generation error.
func (c *Coordinator) Start(ctx context.Context, params RunParameters) (*Run, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.inProgress.Load() {
		metrics.RecordRejectedRun()
		c.logger.Warn("run rejected", "reason", "in progress", "current", c.current.ID)
		return nil, ErrRunInProgress
	}
	if !params.Variant.Valid() {
		return nil, fmt.Errorf("variant %d: %w", int(params.Variant), ErrInvalidConfiguration)
	}

	normalized := params.Normalize()
	if normalized != params {
		c.logger.Debug("run parameters clamped", "requested", params, "effective", normalized)
	}
	c.settings.Params = normalized
	settings := c.settings

	if err := c.data.Fill(ctx, c.buf, settings.Mode, normalized.Concurrency, settings.Seed); err != nil {
		return nil, fmt.Errorf("regenerating %s dataset: %w", settings.Mode, err)
	}
	restore := c.buf.Bytes()

	run := &Run{
		ID:        c.newID(),
		Params:    normalized,
		Mode:      settings.Mode,
		StartedAt: time.Now(),
		done:      make(chan struct{}),
	}
	c.current = run
	c.state.inProgress.Store(true)

	c.logger.Info("run started", "run_id", run.ID, "mode", run.Mode.String(), "params", normalized)
	go c.execute(context.WithoutCancel(ctx), run, restore)
	return run, nil
}

func (c *Coordinator) execute(ctx context.Context, run *Run, restore []byte) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "coordinator.Run",
		trace.WithAttributes(
			attribute.String("run.id", run.ID),
			attribute.String("run.mode", run.Mode.String()),
			attribute.String("run.variant", run.Params.Variant.String()),
			attribute.Int("run.concurrency", run.Params.Concurrency),
		),
	)
	defer span.End()

	p := run.Params
	out := Outcome{RunID: run.ID, Params: p, Mode: run.Mode}

	elapsed, err := c.sorter.Invoke(ctx, p.Variant, c.buf, c.buf.Len(), p.Concurrency, p.ComparatorCost)
	if err != nil {
		out.Err = err
		if rerr := c.buf.CopyFrom(restore); rerr != nil {
			c.logger.Error("buffer restore failed", "run_id", run.ID, "error", rerr)
		} else {
			out.Restored = true
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "run failed")
		metrics.RecordRun(p.Variant.String(), "failed")
		c.logger.Error("run failed", "run_id", run.ID, "error", err, "restored", out.Restored)
	} else {
		out.Elapsed = elapsed
		c.store.Record(p.Variant, elapsed, run.ID)
		span.SetStatus(codes.Ok, "recorded")
		metrics.RecordRun(p.Variant.String(), "recorded")
		c.logger.Info("run finished", "run_id", run.ID, "variant", p.Variant.String(), "elapsed", elapsed)
	}
	run.outcome = out

	c.mu.Lock()
	c.last = &out
	c.state.inProgress.Store(false)
	c.mu.Unlock()

	close(run.done)
}

// InProgress reports whether a run is Running.
func (c *Coordinator) InProgress() bool {
	return c.state.inProgress.Load()
}

// RenderTick returns the number of frames captured so far.
func (c *Coordinator) RenderTick() uint64 {
	return c.state.renderTick.Load()
}

// Current returns the most recently started run, or nil.
func (c *Coordinator) Current() *Run {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// LastOutcome returns the outcome of the most recently finished run.
func (c *Coordinator) LastOutcome() (Outcome, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last == nil {
		return Outcome{}, false
	}
	return *c.last, true
}

// Results returns the result store.
func (c *Coordinator) Results() *results.Store {
	return c.store
}

// Buffer returns the read-only view of the working buffer.
func (c *Coordinator) Buffer() buffer.View {
	return c.buf
}

// Frame snapshots the working buffer into dst and advances the render tick.
func (c *Coordinator) Frame(dst []byte) render.Frame {
	tick := c.state.renderTick.Add(1)
	metrics.RecordFrame()
	return render.Capture(c.buf, dst, tick)
}

// =============================================================================
// Settings
// =============================================================================

// Settings returns the current settings.
func (c *Coordinator) Settings() Settings {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.settings
}

// UpdateSettings applies fn to a copy of the settings.
//
// # Description
//
// Refused with ErrConfigurationLocked while Running. The edited parameters
// are normalized. A change of mode or seed clears the recorded times and
// regenerates the buffer; so does a concurrency change in Sawtooth mode,
// since the tooth count follows it.
func (c *Coordinator) UpdateSettings(ctx context.Context, fn func(*Settings)) (Settings, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.inProgress.Load() {
		return c.settings, ErrConfigurationLocked
	}

	next := c.settings
	fn(&next)
	if !next.Mode.Valid() {
		return c.settings, fmt.Errorf("mode %d: %w", int(next.Mode), ErrInvalidConfiguration)
	}
	if !next.Params.Variant.Valid() {
		return c.settings, fmt.Errorf("variant %d: %w", int(next.Params.Variant), ErrInvalidConfiguration)
	}
	next.Params = next.Params.Normalize()

	prev := c.settings
	c.settings = next

	dataChanged := next.Mode != prev.Mode || next.Seed != prev.Seed
	toothChanged := next.Mode == dataset.Sawtooth && next.Params.Concurrency != prev.Params.Concurrency
	if dataChanged {
		c.store.Reset()
		c.logger.Info("clocks reset", "reason", "dataset changed", "mode", next.Mode.String())
	}
	if dataChanged || toothChanged {
		if err := c.regenerateLocked(ctx); err != nil {
			return c.settings, err
		}
	}
	return c.settings, nil
}

// Regenerate refills the buffer for the current settings.
func (c *Coordinator) Regenerate(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.inProgress.Load() {
		return ErrConfigurationLocked
	}
	return c.regenerateLocked(ctx)
}

// ResetClocks clears every recorded time and regenerates the buffer.
func (c *Coordinator) ResetClocks(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.inProgress.Load() {
		return ErrConfigurationLocked
	}
	c.store.Reset()
	c.last = nil
	return c.regenerateLocked(ctx)
}

func (c *Coordinator) regenerateLocked(ctx context.Context) error {
	s := c.settings
	if err := c.data.Fill(ctx, c.buf, s.Mode, s.Params.Concurrency, s.Seed); err != nil {
		return fmt.Errorf("regenerating %s dataset: %w", s.Mode, err)
	}
	return nil
}

// =============================================================================
// Polling Loop
// =============================================================================

// Drive presents frames and stats until run completes.
//
// # Description
//
// Each iteration checks whether the run has finished, presents a frame and
// the current report, and returns if the check said finished. The completion
// check comes before the frame so the last frame always shows the final
// buffer. Between iterations Drive waits for the rate limiter or the run's
// Done channel, whichever is first. Cancelling ctx stops the loop, not the run.
//
// The frame's pixel slice is reused across iterations; presenters must copy
// what they keep.
//
// # Inputs
//
//   - ctx: Stops the loop when done.
//   - run: Run to observe.
//   - p: Receives frames and stats.
//   - frameRate: Frames per second. Non-positive uses DefaultFrameRate.
//
// # Outputs
//
//   - error: ctx.Err() or the first presenter error.
func (c *Coordinator) Drive(ctx context.Context, run *Run, p render.Presenter, frameRate float64) error {
	if frameRate <= 0 {
		frameRate = DefaultFrameRate
	}
	limiter := rate.NewLimiter(rate.Limit(frameRate), 1)

	var scratch []byte
	for {
		_, finished := run.Outcome()

		frame := c.Frame(scratch)
		scratch = frame.Pixels
		if err := p.PresentFrame(frame); err != nil {
			return fmt.Errorf("presenting frame %d: %w", frame.Tick, err)
		}
		if err := p.PresentStats(c.store.Report()); err != nil {
			return fmt.Errorf("presenting stats: %w", err)
		}
		if finished {
			return nil
		}

		timer := time.NewTimer(limiter.Reserve().Delay())
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-run.Done():
			timer.Stop()
		case <-timer.C:
		}
	}
}
