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
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/AleutianAI/AleutianDR/internal/store"
)

// -----------------------------------------------------------------------------
// Clock
// -----------------------------------------------------------------------------

// Clock abstracts time so poll loops can be tested without sleeping.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// SystemClock returns the wall clock.
func SystemClock() Clock {
	return realClock{}
}

// -----------------------------------------------------------------------------
// Poll Configuration
// -----------------------------------------------------------------------------

// PollConfig bounds a poll loop. The total wait is roughly
// Interval * MaxAttempts plus per-request latency.
type PollConfig struct {
	// Interval is the fixed wait before each status query.
	// Default: 10s
	Interval time.Duration

	// MaxAttempts is the hard ceiling on status queries.
	// Default: 30
	MaxAttempts int
}

// DefaultPollConfig returns 30 attempts at 10 second intervals.
func DefaultPollConfig() PollConfig {
	return PollConfig{
		Interval:    10 * time.Second,
		MaxAttempts: 30,
	}
}

// Validate checks the configuration.
func (c PollConfig) Validate() error {
	if c.Interval < 0 {
		return errors.New("poll interval must not be negative")
	}
	if c.MaxAttempts < 1 {
		return errors.New("poll max attempts must be at least 1")
	}
	return nil
}

// Budget returns the nominal polling window.
func (c PollConfig) Budget() time.Duration {
	return c.Interval * time.Duration(c.MaxAttempts)
}

// -----------------------------------------------------------------------------
// Poll Loop
// -----------------------------------------------------------------------------

// statusFunc queries one job's status.
type statusFunc func(ctx context.Context, id string) (*store.Job, error)

// PollResult is the outcome of a successful poll loop.
type PollResult struct {
	Job      *store.Job
	Attempts int
	Elapsed  time.Duration
}

// poller runs the fixed-interval, bounded-attempt status loop shared by
// backup and restore.
type poller struct {
	config PollConfig
	clock  Clock
	logger *slog.Logger
}

// run waits, queries, and repeats until a terminal status or the ceiling.
//
// # Description
//
// Exactly config.MaxAttempts status queries are issued before the loop
// gives up with ErrJobTimedOut. SUCCESS returns normally. FAILED returns a
// JobError carrying the store's error payload. An unrecognized status is
// fatal immediately. Store unreachability and NotFound abort the loop;
// other query errors consume an attempt and the loop continues.
func (p *poller) run(ctx context.Context, operation, id string, status statusFunc) (*PollResult, error) {
	start := p.clock.Now()
	var last *store.Job
	var lastErr error

	jobErr := func(kind error, attempts int) *JobError {
		e := &JobError{
			Kind:      kind,
			Operation: operation,
			ID:        id,
			Attempts:  attempts,
			Elapsed:   p.clock.Now().Sub(start),
			LastErr:   lastErr,
		}
		if last != nil {
			e.LastStatus = last.Status
			e.RawStatus = last.RawStatus
			e.StoreMessage = last.Error
		}
		return e
	}

	for attempt := 1; attempt <= p.config.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%s %s: polling interrupted after %d attempt(s): %w", operation, id, attempt-1, ctx.Err())
		case <-p.clock.After(p.config.Interval):
		}

		job, err := status(ctx, id)
		if err != nil {
			if errors.Is(err, store.ErrStoreUnreachable) || errors.Is(err, store.ErrNotFound) || ctx.Err() != nil {
				return nil, fmt.Errorf("%s %s: status query %d: %w", operation, id, attempt, err)
			}
			lastErr = err
			p.logger.Warn("status query failed",
				slog.String("operation", operation),
				slog.String("backup_id", id),
				slog.Int("attempt", attempt),
				slog.String("error", err.Error()))
			continue
		}
		last = job
		lastErr = nil

		p.logger.Debug("job status",
			slog.String("operation", operation),
			slog.String("backup_id", id),
			slog.Int("attempt", attempt),
			slog.String("status", job.RawStatus))

		switch job.Status {
		case store.StatusSuccess:
			return &PollResult{Job: job, Attempts: attempt, Elapsed: p.clock.Now().Sub(start)}, nil
		case store.StatusFailed:
			return nil, jobErr(ErrJobFailed, attempt)
		case store.StatusUnknown:
			return nil, jobErr(ErrUnknownJobStatus, attempt)
		}
	}

	return nil, jobErr(ErrJobTimedOut, p.config.MaxAttempts)
}
