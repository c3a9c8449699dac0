// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package metrics holds the Prometheus instruments for sortbench.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// =============================================================================
// Prometheus Metrics
// =============================================================================

var (
	// sortDuration measures backend sort time as reported by the backend.
	// Labels: variant, status (success, error, unavailable)
	sortDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "sortbench",
		Subsystem: "gateway",
		Name:      "sort_duration_seconds",
		Help:      "Sort duration reported by the backend in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"variant", "status"})

	// sortInvocations counts gateway calls.
	// Labels: variant, status
	sortInvocations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sortbench",
		Subsystem: "gateway",
		Name:      "invocations_total",
		Help:      "Total sort invocations through the gateway",
	}, []string{"variant", "status"})

	// runsTotal counts completed coordinator runs.
	// Labels: variant, outcome (recorded, failed)
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sortbench",
		Subsystem: "coordinator",
		Name:      "runs_total",
		Help:      "Total benchmark runs by outcome",
	}, []string{"variant", "outcome"})

	// runsRejected counts run requests refused because a run was in progress.
	runsRejected = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "sortbench",
		Subsystem: "coordinator",
		Name:      "runs_rejected_total",
		Help:      "Run requests rejected while another run was in progress",
	})

	// framesRendered counts buffer snapshots handed to a presenter.
	framesRendered = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "sortbench",
		Subsystem: "render",
		Name:      "frames_total",
		Help:      "Total frames snapshotted for presentation",
	})

	// datasetGenerations counts dataset fills.
	// Labels: mode, cache (hit, miss)
	datasetGenerations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sortbench",
		Subsystem: "dataset",
		Name:      "generations_total",
		Help:      "Total dataset fills by generation mode and cache result",
	}, []string{"mode", "cache"})

	// configReloads counts live configuration reloads.
	// Labels: status (applied, deferred, invalid)
	configReloads = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sortbench",
		Subsystem: "config",
		Name:      "reloads_total",
		Help:      "Configuration file reloads by status",
	}, []string{"status"})
)

// =============================================================================
// Metrics Recording Functions
// =============================================================================

// RecordSort records one gateway invocation.
//
// Inputs:
//
//	variant - The variant name.
//	status - "success", "error", or "unavailable".
//	durationSec - Backend-reported duration in seconds.
func RecordSort(variant, status string, durationSec float64) {
	sortInvocations.WithLabelValues(variant, status).Inc()
	sortDuration.WithLabelValues(variant, status).Observe(durationSec)
}

// RecordRun records the outcome of a coordinator run.
func RecordRun(variant, outcome string) {
	runsTotal.WithLabelValues(variant, outcome).Inc()
}

// RecordRejectedRun records a run request refused by the single-run guard.
func RecordRejectedRun() {
	runsRejected.Inc()
}

// RecordFrame records one presented frame.
func RecordFrame() {
	framesRendered.Inc()
}

// RecordGeneration records a dataset fill.
func RecordGeneration(mode string, cacheHit bool) {
	cache := "miss"
	if cacheHit {
		cache = "hit"
	}
	datasetGenerations.WithLabelValues(mode, cache).Inc()
}

// RecordConfigReload records a configuration reload attempt.
func RecordConfigReload(status string) {
	configReloads.WithLabelValues(status).Inc()
}

// Handler returns the HTTP handler exposing the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
