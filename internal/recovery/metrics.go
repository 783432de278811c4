// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package recovery

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// =============================================================================
// Metrics Interface
// =============================================================================

// Metrics records run outcomes.
//
// # Description
//
// Two implementations exist: NoOpMetrics for runs without a metrics
// destination, and PrometheusMetrics which registers on a private registry
// so the CLI can write a node-exporter textfile at exit.
type Metrics interface {
	// RecordRun records one backup or restore run.
	RecordRun(operation, outcome string, elapsed time.Duration)

	// RecordCollectionsDeleted adds n deleted collections.
	RecordCollectionsDeleted(n int)

	// RecordPollAttempts records how many status queries a job needed.
	RecordPollAttempts(operation string, attempts int)

	// RecordVerification records a verification verdict.
	RecordVerification(matched bool)
}

// Outcome labels.
const (
	OutcomeSuccess           = "success"
	OutcomeDeclined          = "declined"
	OutcomeUnreachable       = "unreachable"
	OutcomeJobFailed         = "job_failed"
	OutcomeTimedOut          = "timed_out"
	OutcomeUnknownStatus     = "unknown_status"
	OutcomeRejected          = "rejected"
	OutcomeMismatch          = "mismatch"
	OutcomeCleanupIncomplete = "cleanup_incomplete"
	OutcomeError             = "error"
)

// Outcome maps a run error onto a bounded label set.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, ErrOperatorDeclined):
		return OutcomeDeclined
	case errors.Is(err, ErrStoreUnreachable):
		return OutcomeUnreachable
	case errors.Is(err, ErrJobTimedOut):
		return OutcomeTimedOut
	case errors.Is(err, ErrUnknownJobStatus):
		return OutcomeUnknownStatus
	case errors.Is(err, ErrJobFailed):
		return OutcomeJobFailed
	case errors.Is(err, ErrVerificationMismatch):
		return OutcomeMismatch
	case errors.Is(err, ErrCleanupIncomplete):
		return OutcomeCleanupIncomplete
	case isRejection(err):
		return OutcomeRejected
	default:
		return OutcomeError
	}
}

// -----------------------------------------------------------------------------
// NoOp
// -----------------------------------------------------------------------------

// NoOpMetrics discards everything.
type NoOpMetrics struct{}

func (NoOpMetrics) RecordRun(string, string, time.Duration) {}
func (NoOpMetrics) RecordCollectionsDeleted(int)            {}
func (NoOpMetrics) RecordPollAttempts(string, int)          {}
func (NoOpMetrics) RecordVerification(bool)                 {}

// -----------------------------------------------------------------------------
// Prometheus
// -----------------------------------------------------------------------------

const (
	metricsNamespace = "aleutian"
	metricsSubsystem = "dr"
)

// PrometheusMetrics records into a private registry.
type PrometheusMetrics struct {
	registry *prometheus.Registry

	runsTotal          *prometheus.CounterVec
	runDuration        *prometheus.HistogramVec
	lastRunTimestamp   *prometheus.GaugeVec
	lastSuccess        *prometheus.GaugeVec
	collectionsDeleted prometheus.Counter
	pollAttempts       *prometheus.HistogramVec
	verification       *prometheus.CounterVec
}

// NewPrometheusMetrics creates and registers the collectors.
func NewPrometheusMetrics() (*PrometheusMetrics, error) {
	m := &PrometheusMetrics{
		registry: prometheus.NewRegistry(),
		runsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "runs_total",
			Help:      "Backup and restore runs by outcome",
		}, []string{"operation", "outcome"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "run_duration_seconds",
			Help:      "Wall time of backup and restore runs",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"operation"}),
		lastRunTimestamp: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time of the last run",
		}, []string{"operation"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run",
		}, []string{"operation"}),
		collectionsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "collections_deleted_total",
			Help:      "Collections deleted by cleanup",
		}),
		pollAttempts: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "poll_attempts",
			Help:      "Status queries needed per job",
			Buckets:   []float64{1, 2, 3, 5, 10, 20, 30, 60},
		}, []string{"operation"}),
		verification: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "verifications_total",
			Help:      "Post-restore verification verdicts",
		}, []string{"result"}),
	}

	for _, c := range []prometheus.Collector{
		m.runsTotal, m.runDuration, m.lastRunTimestamp, m.lastSuccess,
		m.collectionsDeleted, m.pollAttempts, m.verification,
	} {
		if err := m.registry.Register(c); err != nil {
			return nil, fmt.Errorf("register metric: %w", err)
		}
	}
	return m, nil
}

// Gatherer exposes the private registry.
func (m *PrometheusMetrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

func (m *PrometheusMetrics) RecordRun(operation, outcome string, elapsed time.Duration) {
	m.runsTotal.WithLabelValues(operation, outcome).Inc()
	m.runDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
	now := float64(time.Now().Unix())
	m.lastRunTimestamp.WithLabelValues(operation).Set(now)
	if outcome == OutcomeSuccess {
		m.lastSuccess.WithLabelValues(operation).Set(now)
	}
}

func (m *PrometheusMetrics) RecordCollectionsDeleted(n int) {
	m.collectionsDeleted.Add(float64(n))
}

func (m *PrometheusMetrics) RecordPollAttempts(operation string, attempts int) {
	m.pollAttempts.WithLabelValues(operation).Observe(float64(attempts))
}

func (m *PrometheusMetrics) RecordVerification(matched bool) {
	result := "matched"
	if !matched {
		result = "mismatch"
	}
	m.verification.WithLabelValues(result).Inc()
}
