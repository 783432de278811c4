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

	"github.com/AleutianAI/AleutianDR/internal/catalog"
	"github.com/AleutianAI/AleutianDR/internal/store"
)

// DefaultBackupPrefix prefixes generated backup identifiers.
const DefaultBackupPrefix = "verba-backup"

// backupTimeLayout renders sortable, lowercase-safe timestamps.
const backupTimeLayout = "20060102-150405"

// NewBackupID returns "<prefix>-YYYYMMDD-HHMMSS" in UTC.
func NewBackupID(prefix string, t time.Time) string {
	if prefix == "" {
		prefix = DefaultBackupPrefix
	}
	return prefix + "-" + t.UTC().Format(backupTimeLayout)
}

// BackupRecord describes a completed backup.
type BackupRecord struct {
	ID          string
	Status      store.JobStatus
	Collections []string
	Path        string
	StartedAt   time.Time
	CompletedAt time.Time
	Attempts    int

	// Counts are the pre-backup census counts, if the census succeeded.
	Counts map[string]store.ObjectCount

	// ManifestWritten and LatestUpdated report the best-effort bookkeeping.
	ManifestWritten bool
	LatestUpdated   bool
}

// BackupCreator creates one backup and records it.
type BackupCreator struct {
	store       Store
	catalog     *catalog.Catalog
	poller      *poller
	clock       Clock
	prefix      string
	backend     string
	primary     string
	parallelism int
	logger      *slog.Logger
}

// Create generates an id, submits the backup and polls it to completion.
//
// # Description
//
// Before submitting, a read-only census captures per-collection counts for
// the manifest; a census failure other than unreachability is only logged.
// After SUCCESS the manifest and the latest pointer are written when a
// catalog is configured. Both writes are best-effort. A rejection by the
// store (for example a backup with the same id already in flight) is
// returned verbatim and not retried.
func (b *BackupCreator) Create(ctx context.Context) (*BackupRecord, error) {
	started := b.clock.Now()
	id := NewBackupID(b.prefix, started)
	if err := catalog.ValidateID(id); err != nil {
		return nil, err
	}
	logger := b.logger.With(slog.String("backup_id", id))

	rec := &BackupRecord{ID: id, StartedAt: started}

	census, err := TakeCensus(ctx, b.store, b.parallelism, logger, b.clock)
	switch {
	case err == nil:
		rec.Counts = census.Counts()
	case errors.Is(err, store.ErrStoreUnreachable):
		return rec, err
	default:
		logger.Warn("pre-backup census failed, manifest will lack counts", slog.String("error", err.Error()))
	}

	submitted, err := b.store.CreateBackup(ctx, id)
	if err != nil {
		return rec, fmt.Errorf("create backup %s: %w", id, err)
	}
	logger.Info("backup submitted", slog.String("status", submitted.RawStatus), slog.String("path", submitted.Path))
	rec.Collections = submitted.Collections
	rec.Path = submitted.Path

	if submitted.Status == store.StatusFailed {
		rec.Status = store.StatusFailed
		return rec, &JobError{Kind: ErrJobFailed, Operation: "backup", ID: id,
			LastStatus: submitted.Status, RawStatus: submitted.RawStatus, StoreMessage: submitted.Error}
	}

	res, err := b.poller.run(ctx, "backup", id, b.store.BackupStatus)
	if err != nil {
		var jobErr *JobError
		if errors.As(err, &jobErr) {
			rec.Status = jobErr.LastStatus
			rec.Attempts = jobErr.Attempts
		}
		return rec, err
	}

	rec.Status = res.Job.Status
	rec.Attempts = res.Attempts
	rec.CompletedAt = b.clock.Now()
	if len(res.Job.Collections) > 0 {
		rec.Collections = res.Job.Collections
	}
	if res.Job.Path != "" {
		rec.Path = res.Job.Path
	}
	logger.Info("backup completed", slog.Int("attempts", res.Attempts), slog.Duration("elapsed", res.Elapsed))

	b.record(rec, logger)
	return rec, nil
}

func (b *BackupCreator) record(rec *BackupRecord, logger *slog.Logger) {
	if b.catalog == nil {
		return
	}

	counts := make(map[string]int64, len(rec.Collections))
	for _, name := range rec.Collections {
		counts[name] = int64(store.CountUnknown)
		if c, ok := rec.Counts[name]; ok {
			counts[name] = int64(c)
		}
	}
	if len(rec.Collections) == 0 {
		for name, c := range rec.Counts {
			counts[name] = int64(c)
		}
	}

	err := b.catalog.WriteManifest(catalog.Manifest{
		ID:                rec.ID,
		Backend:           b.backend,
		Status:            rec.Status.String(),
		Path:              rec.Path,
		StartedAt:         rec.StartedAt,
		CompletedAt:       rec.CompletedAt,
		PrimaryCollection: b.primary,
		Collections:       counts,
	})
	if err != nil {
		logger.Warn("could not write backup manifest", slog.String("error", err.Error()))
	} else {
		rec.ManifestWritten = true
	}

	if err := b.catalog.SetLatest(rec.ID); err != nil {
		logger.Warn("could not update latest-backup pointer", slog.String("error", err.Error()))
	} else {
		rec.LatestUpdated = true
	}
}
