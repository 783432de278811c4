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

	"github.com/AleutianAI/AleutianDR/internal/recovery"
	"github.com/AleutianAI/AleutianDR/internal/store"
)

// Process exit codes. Scripts driving unattended recovery branch on these.
const (
	ExitOK          = 0 // success, verification matched
	ExitDeclined    = 1 // operator declined, nothing modified
	ExitUnreachable = 2 // store unreachable
	ExitJob         = 3 // job FAILED, TIMED_OUT, unknown status, or rejected at submission
	ExitMismatch    = 4 // restore succeeded but verification did not match
	ExitFailure     = 5 // anything else: cleanup incomplete, config, usage
)

// exitCode maps an error to a process exit code.
func exitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, recovery.ErrOperatorDeclined):
		return ExitDeclined
	case errors.Is(err, recovery.ErrCleanupIncomplete):
		return ExitFailure
	case errors.Is(err, recovery.ErrStoreUnreachable):
		return ExitUnreachable
	case errors.Is(err, recovery.ErrJobFailed),
		errors.Is(err, recovery.ErrJobTimedOut),
		errors.Is(err, recovery.ErrUnknownJobStatus),
		errors.Is(err, store.ErrRejected),
		errors.Is(err, store.ErrNotFound):
		return ExitJob
	case errors.Is(err, recovery.ErrVerificationMismatch):
		return ExitMismatch
	default:
		return ExitFailure
	}
}
