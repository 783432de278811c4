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

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianDR/internal/journal"
	"github.com/AleutianAI/AleutianDR/internal/recovery"
)

// errUsage marks invalid command-line input.
var errUsage = errors.New("usage")

func runRestore(cmd *cobra.Command, root *rootOptions, opts *restoreOptions, s streams, args []string) error {
	req, err := restoreRequest(cmd, opts, args)
	if err != nil {
		return err
	}

	a, err := newApp(cmd, root, s)
	if err != nil {
		return err
	}
	defer a.close(cmd.Context())

	if opts.latest {
		if a.catalog == nil {
			return fmt.Errorf("%w: --latest needs backup.root to be configured", errUsage)
		}
		req.BackupID = a.catalog.Latest()
		if req.BackupID == "" {
			return fmt.Errorf("%w: no latest backup recorded in %s", errUsage, a.catalog.Root())
		}
		a.printer.Info("Latest backup: " + req.BackupID)
	}

	ctx := cmd.Context()
	ctrl := a.controller(a.restorePoll())

	if opts.dryRun {
		report, err := ctrl.Plan(ctx, req)
		if err != nil {
			return err
		}
		renderPlan(a.printer, report)
		return nil
	}

	var (
		report *recovery.RestoreReport
		runErr error
	)
	if opts.force {
		report, runErr = ctrl.RestoreForced(ctx, req)
	} else {
		prompter := a.prompter()
		if !prompter.IsInteractive() {
			a.logger.Info("stdin is not a terminal; populated collections will not be deleted without --force")
		}
		report, runErr = ctrl.RestoreInteractive(ctx, req, prompter, s.out)
	}

	a.record(ctx, restoreEntry(report, runErr))
	renderRestore(a.printer, report, runErr)

	var jobErr *recovery.JobError
	if errors.As(runErr, &jobErr) && jobErr.StoreMessage != "" {
		a.printer.ErrorBox("Store reported", jobErr.StoreMessage)
	}
	return runErr
}

// restoreRequest validates arguments and builds the request. Expectation
// flags count only when given explicitly.
func restoreRequest(cmd *cobra.Command, opts *restoreOptions, args []string) (recovery.RestoreRequest, error) {
	var req recovery.RestoreRequest
	switch {
	case opts.latest && len(args) > 0:
		return req, fmt.Errorf("%w: give a backup id or --latest, not both", errUsage)
	case !opts.latest && len(args) == 0:
		return req, fmt.Errorf("%w: a backup id is required (or --latest)", errUsage)
	case len(args) == 1:
		req.BackupID = args[0]
	}

	req.Expect.PrimaryCollection = opts.primary
	if cmd.Flags().Changed("expect-documents") {
		if opts.expectDocuments < 0 {
			return req, fmt.Errorf("%w: --expect-documents must be non-negative", errUsage)
		}
		n := opts.expectDocuments
		req.Expect.Documents = &n
	}
	if cmd.Flags().Changed("expect-collections") {
		if opts.expectCollections < 0 {
			return req, fmt.Errorf("%w: --expect-collections must be non-negative", errUsage)
		}
		n := opts.expectCollections
		req.Expect.Collections = &n
	}
	return req, nil
}

func restoreEntry(report *recovery.RestoreReport, err error) journal.Entry {
	e := journal.Entry{
		Operation:  "restore",
		Mode:       string(report.Mode),
		BackupID:   report.BackupID,
		Outcome:    recovery.Outcome(err),
		ExitCode:   exitCode(err),
		Stage:      string(report.Stage),
		StartedAt:  report.StartedAt,
		FinishedAt: report.StartedAt.Add(report.Elapsed),
		Deleted:    report.Deleted,
	}
	if err != nil {
		e.Error = err.Error()
	}
	if report.Verification != nil {
		e.Verification = report.Verification.Summary()
	}
	return e
}
