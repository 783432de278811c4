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
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianDR/internal/journal"
	"github.com/AleutianAI/AleutianDR/internal/recovery"
)

func runBackup(cmd *cobra.Command, root *rootOptions, s streams) error {
	a, err := newApp(cmd, root, s)
	if err != nil {
		return err
	}
	defer a.close(cmd.Context())

	ctx := cmd.Context()
	started := time.Now()
	rec, err := a.controller(a.backupPoll()).Backup(ctx)

	entry := journal.Entry{
		Operation: "backup",
		Outcome:   recovery.Outcome(err),
		ExitCode:  exitCode(err),
		StartedAt: started,
	}
	if rec != nil {
		entry.BackupID = rec.ID
	}
	if err != nil {
		entry.Error = err.Error()
	}
	a.record(ctx, entry)

	if err != nil {
		var jobErr *recovery.JobError
		if errors.As(err, &jobErr) && jobErr.StoreMessage != "" {
			a.printer.ErrorBox("Store reported", jobErr.StoreMessage)
		}
		return err
	}
	renderBackup(a.printer, rec)
	return nil
}
