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
	"strings"
	"time"

	"github.com/AleutianAI/AleutianDR/internal/store"
)

// =============================================================================
// Sentinel Errors
// =============================================================================

var (
	// ErrStoreUnreachable aliases store.ErrStoreUnreachable so callers can
	// match the whole taxonomy from this package.
	ErrStoreUnreachable = store.ErrStoreUnreachable

	// ErrSchemaQueryFailed aliases store.ErrSchemaQueryFailed.
	ErrSchemaQueryFailed = store.ErrSchemaQueryFailed

	// ErrOperatorDeclined is returned when the confirmation gate was not
	// passed. Nothing was modified.
	ErrOperatorDeclined = errors.New("operator declined")

	// ErrCleanupIncomplete is returned when collections remain after cleanup.
	ErrCleanupIncomplete = errors.New("cleanup incomplete")

	// ErrJobTimedOut is returned when the poll ceiling is reached.
	ErrJobTimedOut = errors.New("job timed out")

	// ErrJobFailed is returned when the store reports a terminal failure.
	ErrJobFailed = errors.New("job failed")

	// ErrUnknownJobStatus is returned when the store reports a status the
	// controller does not recognize. It is never treated as pending.
	ErrUnknownJobStatus = errors.New("unknown job status")

	// ErrVerificationMismatch is returned when the restore succeeded but the
	// observed counts differ from the expected ones.
	ErrVerificationMismatch = errors.New("verification mismatch")
)

// =============================================================================
// Typed Errors
// =============================================================================

// CleanupIncompleteError lists the collections that survived cleanup.
type CleanupIncompleteError struct {
	// Remaining are the collection names still present after deletion.
	Remaining []string

	// DeleteErrors are the per-collection deletion failures, if any.
	DeleteErrors []error
}

// Error returns a message naming the remaining collections.
func (e *CleanupIncompleteError) Error() string {
	msg := fmt.Sprintf("cleanup incomplete: %d collection(s) remain: %s",
		len(e.Remaining), strings.Join(e.Remaining, ", "))
	if len(e.DeleteErrors) > 0 {
		msg += fmt.Sprintf(" (%v)", errors.Join(e.DeleteErrors...))
	}
	return msg
}

// Is matches ErrCleanupIncomplete.
func (e *CleanupIncompleteError) Is(target error) bool {
	return target == ErrCleanupIncomplete
}

// JobError describes a backup or restore job that did not succeed.
//
// # Description
//
// Carries everything an operator needs to act on a failed or stuck job:
// the last status the store reported, its error payload verbatim, and how
// long and how often the controller polled.
//
// # Example
//
//	var jobErr *JobError
//	if errors.As(err, &jobErr) && errors.Is(err, ErrJobTimedOut) {
//	    fmt.Printf("still %s after %s\n", jobErr.RawStatus, jobErr.Elapsed)
//	}
type JobError struct {
	// Kind is ErrJobFailed, ErrJobTimedOut or ErrUnknownJobStatus.
	Kind error

	// Operation is "backup" or "restore".
	Operation string

	// ID is the backup identifier.
	ID string

	// LastStatus is the last parsed status observed.
	LastStatus store.JobStatus

	// RawStatus is the last status string as the store sent it.
	RawStatus string

	// StoreMessage is the store's error payload, verbatim.
	StoreMessage string

	// Attempts is the number of status queries issued.
	Attempts int

	// Elapsed is the wall time spent polling.
	Elapsed time.Duration

	// LastErr is the last status query error, if any.
	LastErr error
}

// Error returns a single-line description.
func (e *JobError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s: %v", e.Operation, e.ID, e.Kind)
	if e.RawStatus != "" {
		fmt.Fprintf(&b, " (last status %s)", e.RawStatus)
	}
	fmt.Fprintf(&b, " after %d poll(s) in %s", e.Attempts, e.Elapsed.Round(time.Millisecond))
	if e.StoreMessage != "" {
		fmt.Fprintf(&b, ": %s", e.StoreMessage)
	}
	if e.LastErr != nil {
		fmt.Fprintf(&b, "; last query error: %v", e.LastErr)
	}
	return b.String()
}

// Is matches the Kind sentinel.
func (e *JobError) Is(target error) bool {
	return target == e.Kind
}

// Unwrap exposes the last query error.
func (e *JobError) Unwrap() error {
	return e.LastErr
}

// isRejection reports whether the store refused a request outright, for
// example a restore of a backup that does not exist.
func isRejection(err error) bool {
	return errors.Is(err, store.ErrRejected) || errors.Is(err, store.ErrNotFound)
}
