// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package journal

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, 12, 8, 14, 30, 22, 0, time.UTC)

func openTest(t *testing.T, cfg Config) *Journal {
	t.Helper()
	j, err := Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open(Config{})
	assert.Error(t, err)
}

func TestAppendAndGet(t *testing.T) {
	j := openTest(t, InMemoryConfig())
	ctx := context.Background()

	in := Entry{
		Operation:    "restore",
		Mode:         "forced",
		BackupID:     "verba-backup-20241208-143022",
		Outcome:      "mismatch",
		ExitCode:     4,
		Stage:        "done",
		StartedAt:    epoch,
		FinishedAt:   epoch.Add(42 * time.Second),
		Deleted:      []string{"VERBA_DOCUMENTS"},
		Verification: "MISMATCH: VERBA_DOCUMENTS documents expected=178 observed=150",
	}
	stored, err := j.Append(ctx, in)
	require.NoError(t, err)
	require.NotEmpty(t, stored.RunID)

	got, err := j.Get(ctx, stored.RunID)
	require.NoError(t, err)
	assert.Equal(t, stored.RunID, got.RunID)
	assert.Equal(t, in.Deleted, got.Deleted)
	assert.Equal(t, in.Verification, got.Verification)
	assert.Equal(t, 42*time.Second, got.Duration())
	assert.True(t, got.StartedAt.Equal(epoch))
}

func TestGet_NotFound(t *testing.T) {
	j := openTest(t, InMemoryConfig())
	_, err := j.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRecent_NewestFirst(t *testing.T) {
	j := openTest(t, InMemoryConfig())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := j.Append(ctx, Entry{
			RunID:     fmt.Sprintf("run-%d", i),
			Operation: "backup",
			Outcome:   "success",
			StartedAt: epoch.Add(time.Duration(i) * time.Hour),
		})
		require.NoError(t, err)
	}

	all, err := j.Recent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 5)
	assert.Equal(t, "run-4", all[0].RunID)
	assert.Equal(t, "run-0", all[4].RunID)

	top, err := j.Recent(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"run-4", "run-3"}, []string{top[0].RunID, top[1].RunID})
}

func TestRecent_Empty(t *testing.T) {
	j := openTest(t, InMemoryConfig())
	entries, err := j.Recent(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestAppend_PrunesBeyondMaxEntries(t *testing.T) {
	cfg := InMemoryConfig()
	cfg.MaxEntries = 3
	j := openTest(t, cfg)
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		_, err := j.Append(ctx, Entry{
			RunID:     fmt.Sprintf("run-%d", i),
			Operation: "restore",
			StartedAt: epoch.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	entries, err := j.Recent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "run-5", entries[0].RunID)

	_, err = j.Get(ctx, "run-0")
	assert.ErrorIs(t, err, ErrNotFound, "index entry pruned with its run")
}

func TestPersistentJournal_Reopen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "journal")
	ctx := context.Background()

	j, err := Open(DefaultConfig(dir))
	require.NoError(t, err)
	stored, err := j.Append(ctx, Entry{Operation: "backup", Outcome: "success", StartedAt: epoch})
	require.NoError(t, err)
	require.NoError(t, j.Close())

	j = openTest(t, DefaultConfig(dir))
	got, err := j.Get(ctx, stored.RunID)
	require.NoError(t, err)
	assert.Equal(t, "backup", got.Operation)
}

func TestCancelledContext(t *testing.T) {
	j := openTest(t, InMemoryConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := j.Append(ctx, Entry{Operation: "backup"})
	assert.ErrorIs(t, err, context.Canceled)
}
