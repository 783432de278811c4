// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package store

import (
	"strconv"
	"strings"
)

// -----------------------------------------------------------------------------
// Job Status
// -----------------------------------------------------------------------------

// JobStatus is the closed set of states a backup or restore job can be in.
//
// Weaviate reports finer-grained phases (STARTED, TRANSFERRING, ...). They are
// folded into Pending. Anything the controller does not recognize becomes
// StatusUnknown and must be treated as fatal, never as Pending.
type JobStatus int

const (
	// StatusUnknown is an unrecognized status string.
	StatusUnknown JobStatus = iota
	// StatusPending means the job is still running.
	StatusPending
	// StatusSuccess is terminal success.
	StatusSuccess
	// StatusFailed is terminal failure (including cancellation).
	StatusFailed
)

// String returns PENDING, SUCCESS, FAILED or UNKNOWN.
func (s JobStatus) String() string {
	switch s {
	case StatusPending:
		return "PENDING"
	case StatusSuccess:
		return "SUCCESS"
	case StatusFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether the status ends a poll loop normally.
func (s JobStatus) Terminal() bool {
	return s == StatusSuccess || s == StatusFailed
}

// ParseJobStatus maps a store status string onto JobStatus.
func ParseJobStatus(raw string) JobStatus {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "PENDING", "STARTED", "TRANSFERRING", "TRANSFERRED", "CANCELLING":
		return StatusPending
	case "SUCCESS":
		return StatusSuccess
	case "FAILED", "CANCELED", "CANCELLED":
		return StatusFailed
	default:
		return StatusUnknown
	}
}

// Job is the store's view of a backup or restore job at one point in time.
type Job struct {
	// ID is the backup identifier (restore jobs share the backup's id).
	ID string
	// Backend is the backup backend, e.g. "filesystem".
	Backend string
	// Status is the parsed status.
	Status JobStatus
	// RawStatus is the status string exactly as the store sent it.
	RawStatus string
	// Error is the store's error payload, verbatim.
	Error string
	// Collections lists the classes in the backup, when the store reports them.
	Collections []string
	// Path is the backup location reported by the store.
	Path string
}

// -----------------------------------------------------------------------------
// Object Count
// -----------------------------------------------------------------------------

// ObjectCount is the number of objects in a collection, or CountUnknown.
//
// Zero and "could not determine" are different values on purpose: a
// collection whose count is unknown must never be mistaken for an empty one.
type ObjectCount int64

// CountUnknown is returned when a count could not be determined.
const CountUnknown ObjectCount = -1

// Known reports whether the count was determined.
func (c ObjectCount) Known() bool {
	return c >= 0
}

// Populated reports whether the collection holds data or might hold data.
func (c ObjectCount) Populated() bool {
	return c != 0
}

// String renders the count, or "unknown".
func (c ObjectCount) String() string {
	if !c.Known() {
		return "unknown"
	}
	return strconv.FormatInt(int64(c), 10)
}
