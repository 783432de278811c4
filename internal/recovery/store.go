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

	"github.com/AleutianAI/AleutianDR/internal/store"
)

// SchemaReader is the read-only part of the store used by the census and
// the verifier.
type SchemaReader interface {
	// ListCollections returns all collection names.
	ListCollections(ctx context.Context) ([]string, error)

	// CountObjects returns the object count or store.CountUnknown.
	CountObjects(ctx context.Context, name string) (store.ObjectCount, error)
}

// SchemaWriter deletes collections.
type SchemaWriter interface {
	// DeleteCollection removes a collection; absent collections succeed.
	DeleteCollection(ctx context.Context, name string) error
}

// BackupJobs submits and polls backup jobs.
type BackupJobs interface {
	CreateBackup(ctx context.Context, id string) (*store.Job, error)
	BackupStatus(ctx context.Context, id string) (*store.Job, error)
}

// RestoreJobs submits and polls restore jobs.
type RestoreJobs interface {
	// SubmitRestore requires that no collection in the backup exists.
	SubmitRestore(ctx context.Context, id string) (*store.Job, error)
	RestoreStatus(ctx context.Context, id string) (*store.Job, error)
}

// Store is everything the controller needs from the store.
// *store.Client implements it.
type Store interface {
	SchemaReader
	SchemaWriter
	BackupJobs
	RestoreJobs
}

var _ Store = (*store.Client)(nil)
