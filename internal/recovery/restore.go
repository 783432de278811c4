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
	"fmt"
	"log/slog"
	"time"

	"github.com/AleutianAI/AleutianDR/internal/store"
)

// RestoreOutcome describes a restore that reached SUCCESS.
type RestoreOutcome struct {
	// Submitted is the store's response to the submission.
	Submitted *store.Job

	// Final is the last status observed (SUCCESS).
	Final *store.Job

	Attempts int
	Elapsed  time.Duration
}

// RestoreOrchestrator submits one restore and polls it to a terminal state.
//
// A FAILED restore is never retried here. Retrying without a fresh census
// could hit the same collision; a new attempt is a new invocation.
type RestoreOrchestrator struct {
	jobs   RestoreJobs
	poller *poller
	logger *slog.Logger
}

// NewRestoreOrchestrator creates an orchestrator.
func NewRestoreOrchestrator(jobs RestoreJobs, config PollConfig, clock Clock, logger *slog.Logger) *RestoreOrchestrator {
	if clock == nil {
		clock = SystemClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "restore"))
	return &RestoreOrchestrator{
		jobs:   jobs,
		poller: &poller{config: config, clock: clock, logger: logger},
		logger: logger,
	}
}

// Run submits the restore for id and waits for completion.
//
// # Description
//
// The submission response is never taken as completion; only a polled
// SUCCESS is. A missing backup or a collision surfaces at submission.
//
// # Outputs
//
//   - *RestoreOutcome: Populated on SUCCESS.
//   - error: The submission error (store.ErrNotFound, store.ErrRejected,
//     store.ErrStoreUnreachable) or a *JobError from polling.
func (o *RestoreOrchestrator) Run(ctx context.Context, id string) (*RestoreOutcome, error) {
	submitted, err := o.jobs.SubmitRestore(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("submit restore %s: %w", id, err)
	}
	o.logger.Info("restore submitted",
		slog.String("backup_id", id),
		slog.String("status", submitted.RawStatus),
		slog.Int("collections", len(submitted.Collections)))

	if submitted.Status == store.StatusFailed {
		return &RestoreOutcome{Submitted: submitted}, &JobError{
			Kind: ErrJobFailed, Operation: "restore", ID: id,
			LastStatus: submitted.Status, RawStatus: submitted.RawStatus, StoreMessage: submitted.Error,
		}
	}

	res, err := o.poller.run(ctx, "restore", id, o.jobs.RestoreStatus)
	if err != nil {
		return &RestoreOutcome{Submitted: submitted}, err
	}

	o.logger.Info("restore completed",
		slog.String("backup_id", id),
		slog.Int("attempts", res.Attempts),
		slog.Duration("elapsed", res.Elapsed))
	return &RestoreOutcome{
		Submitted: submitted,
		Final:     res.Job,
		Attempts:  res.Attempts,
		Elapsed:   res.Elapsed,
	}, nil
}
