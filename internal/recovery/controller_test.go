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
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/AleutianDR/internal/catalog"
	"github.com/AleutianAI/AleutianDR/internal/store"
)

const testBackupID = "verba-backup-20241208-143022"

var testEpoch = time.Date(2024, 12, 8, 14, 30, 22, 0, time.UTC)

func newTestController(t *testing.T, st Store, opts Options) (*Controller, *fakeClock) {
	t.Helper()
	clock := newFakeClock(testEpoch)
	if opts.Clock == nil {
		opts.Clock = clock
	}
	if opts.Poll.MaxAttempts == 0 {
		opts.Poll = PollConfig{Interval: 10 * time.Second, MaxAttempts: 30}
	}
	return NewController(st, opts), clock
}

func failIfPrompted(t *testing.T) *MockPrompter {
	return &MockPrompter{ConfirmFunc: func(ctx context.Context, prompt string) (bool, error) {
		t.Errorf("unexpected prompt: %q", prompt)
		return false, nil
	}}
}

// -----------------------------------------------------------------------------
// End-to-end scenarios
// -----------------------------------------------------------------------------

// Scenario A: one empty collection, forced restore, cleanup deletes it and
// the restore succeeds.
func TestScenarioA_ForcedRestoreOfEmptySchema(t *testing.T) {
	st := newFakeStore(map[string]store.ObjectCount{"VERBA_DOCUMENTS": 0})
	st.restored = map[string]store.ObjectCount{"VERBA_DOCUMENTS": 178}
	st.restoreStatuses = []string{"STARTED", "TRANSFERRING", "SUCCESS"}
	ctrl, _ := newTestController(t, st, Options{})

	report, err := ctrl.RestoreForced(context.Background(), RestoreRequest{BackupID: testBackupID})
	require.NoError(t, err)

	assert.Equal(t, StageDone, report.Stage)
	assert.Equal(t, []string{"VERBA_DOCUMENTS"}, report.Deleted)
	assert.Len(t, st.callsWithPrefix("delete:"), 1)
	require.NotNil(t, report.Restore)
	assert.Equal(t, 3, report.Restore.Attempts)
	require.NotNil(t, report.Verification)
	assert.True(t, report.Verification.Matched)
	assert.Equal(t, store.ObjectCount(178), report.Verification.ObservedDocumentCount)
}

// Scenario B: populated collection, operator answers "n".
func TestScenarioB_InteractiveDecline(t *testing.T) {
	st := newFakeStore(map[string]store.ObjectCount{"VERBA_DOCUMENTS": 42})
	ctrl, _ := newTestController(t, st, Options{})
	out := &bytes.Buffer{}
	prompter := NewInteractivePrompterWithIO(strings.NewReader("n\n"), out)

	report, err := ctrl.RestoreInteractive(context.Background(), RestoreRequest{BackupID: testBackupID}, prompter, out)

	require.ErrorIs(t, err, ErrOperatorDeclined)
	assert.Equal(t, StageGate, report.Stage)
	assert.Empty(t, st.callsWithPrefix("delete:"))
	assert.Empty(t, st.callsWithPrefix("submit_restore"))
	assert.Equal(t, store.ObjectCount(42), st.collections["VERBA_DOCUMENTS"])
	assert.Contains(t, out.String(), "VERBA_DOCUMENTS (42 objects)")
	assert.Contains(t, out.String(), "[y/N]")
}

// Scenario C: store unreachable at census.
func TestScenarioC_UnreachableAtCensus(t *testing.T) {
	st := newFakeStore(nil)
	st.listErr = unreachable("list_collections")
	ctrl, _ := newTestController(t, st, Options{})

	report, err := ctrl.RestoreInteractive(context.Background(), RestoreRequest{BackupID: testBackupID},
		failIfPrompted(t), &bytes.Buffer{})

	require.ErrorIs(t, err, ErrStoreUnreachable)
	assert.Equal(t, StageCensus, report.Stage)
	assert.Equal(t, []string{"list"}, st.calls, "no later stage invoked")
	assert.Equal(t, OutcomeUnreachable, Outcome(err))
}

// -----------------------------------------------------------------------------
// Gate
// -----------------------------------------------------------------------------

func TestRestore_ZeroBlockingNeverPrompts(t *testing.T) {
	st := newFakeStore(nil)
	st.restored = map[string]store.ObjectCount{"VERBA_DOCUMENTS": 10}
	ctrl, _ := newTestController(t, st, Options{})
	prompter := failIfPrompted(t)

	report, err := ctrl.RestoreInteractive(context.Background(), RestoreRequest{BackupID: testBackupID},
		prompter, &bytes.Buffer{})

	require.NoError(t, err)
	assert.Empty(t, prompter.Calls)
	assert.Empty(t, report.Deleted)
	assert.Empty(t, st.callsWithPrefix("delete:"))
	assert.Len(t, st.callsWithPrefix("submit_restore"), 1)
}

func TestRestore_EmptyCollectionsDeletedWithoutPrompt(t *testing.T) {
	st := newFakeStore(map[string]store.ObjectCount{"VERBA_DOCUMENTS": 0, "VERBA_CONFIG": 0})
	st.restored = map[string]store.ObjectCount{"VERBA_DOCUMENTS": 5, "VERBA_CONFIG": 1}
	ctrl, _ := newTestController(t, st, Options{})
	prompter := failIfPrompted(t)

	report, err := ctrl.RestoreInteractive(context.Background(), RestoreRequest{BackupID: testBackupID},
		prompter, &bytes.Buffer{})

	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"VERBA_DOCUMENTS", "VERBA_CONFIG"}, report.Deleted)
	assert.Empty(t, prompter.Calls)
}

func TestRestore_PopulatedRequiresExplicitAffirmative(t *testing.T) {
	inputs := map[string]bool{
		"y\n":      true,
		"YES\n":    true,
		"  yes  \n": true,
		"n\n":      false,
		"\n":       false,
		"no\n":     false,
		"maybe\n":  false,
		"yess\n":   false,
		"":         false,
	}

	for input, proceeds := range inputs {
		t.Run(strings.TrimSpace(input), func(t *testing.T) {
			st := newFakeStore(map[string]store.ObjectCount{"VERBA_DOCUMENTS": 42, "VERBA_CONFIG": 0})
			st.restored = map[string]store.ObjectCount{"VERBA_DOCUMENTS": 42, "VERBA_CONFIG": 1}
			ctrl, _ := newTestController(t, st, Options{})
			out := &bytes.Buffer{}

			_, err := ctrl.RestoreInteractive(context.Background(), RestoreRequest{BackupID: testBackupID},
				NewInteractivePrompterWithIO(strings.NewReader(input), out), out)

			if proceeds {
				require.NoError(t, err)
				assert.Len(t, st.callsWithPrefix("delete:"), 2)
				return
			}
			require.ErrorIs(t, err, ErrOperatorDeclined)
			assert.Empty(t, st.callsWithPrefix("delete:"), "abort leaves the schema unmodified")
			assert.Len(t, st.collections, 2)
		})
	}
}

func TestRestore_UnknownCountIsTreatedAsData(t *testing.T) {
	st := newFakeStore(map[string]store.ObjectCount{"VERBA_DOCUMENTS": 0})
	st.countErr["VERBA_DOCUMENTS"] = errors.New("aggregate: unexpected response shape")
	ctrl, _ := newTestController(t, st, Options{})
	prompter := &MockPrompter{}

	report, err := ctrl.RestoreInteractive(context.Background(), RestoreRequest{BackupID: testBackupID},
		prompter, &bytes.Buffer{})

	require.ErrorIs(t, err, ErrOperatorDeclined)
	assert.True(t, report.Assessment.HasData)
	assert.Len(t, prompter.Calls, 1)
	assert.Empty(t, st.callsWithPrefix("delete:"))
}

func TestRestore_NonInteractivePrompterDeclines(t *testing.T) {
	st := newFakeStore(map[string]store.ObjectCount{"VERBA_DOCUMENTS": 42})
	ctrl, _ := newTestController(t, st, Options{})

	_, err := ctrl.RestoreInteractive(context.Background(), RestoreRequest{BackupID: testBackupID},
		NewNonInteractivePrompter(), &bytes.Buffer{})

	require.ErrorIs(t, err, ErrOperatorDeclined)
	assert.Empty(t, st.callsWithPrefix("delete:"))
}

func TestRestore_ForcedDeletesPopulated(t *testing.T) {
	st := newFakeStore(map[string]store.ObjectCount{"VERBA_DOCUMENTS": 42})
	st.restored = map[string]store.ObjectCount{"VERBA_DOCUMENTS": 178}
	ctrl, _ := newTestController(t, st, Options{})

	report, err := ctrl.RestoreForced(context.Background(), RestoreRequest{BackupID: testBackupID})

	require.NoError(t, err)
	assert.Equal(t, []string{"VERBA_DOCUMENTS"}, report.Deleted)
}

// -----------------------------------------------------------------------------
// Cleanup
// -----------------------------------------------------------------------------

func TestRestore_CleanupIncompleteBlocksRestore(t *testing.T) {
	st := newFakeStore(map[string]store.ObjectCount{"VERBA_DOCUMENTS": 0, "VERBA_CONFIG": 0})
	st.sticky["VERBA_CONFIG"] = true
	ctrl, _ := newTestController(t, st, Options{})

	report, err := ctrl.RestoreForced(context.Background(), RestoreRequest{BackupID: testBackupID})

	require.ErrorIs(t, err, ErrCleanupIncomplete)
	var cleanupErr *CleanupIncompleteError
	require.ErrorAs(t, err, &cleanupErr)
	assert.Equal(t, []string{"VERBA_CONFIG"}, cleanupErr.Remaining)
	assert.Equal(t, StageCleanup, report.Stage)
	assert.Empty(t, st.callsWithPrefix("submit_restore"))
}

func TestRestore_UnreachableDuringCleanupAborts(t *testing.T) {
	st := newFakeStore(map[string]store.ObjectCount{"A": 0, "B": 0})
	st.deleteErr["A"] = unreachable("delete_collection")
	ctrl, _ := newTestController(t, st, Options{})

	_, err := ctrl.RestoreForced(context.Background(), RestoreRequest{BackupID: testBackupID})

	require.ErrorIs(t, err, ErrStoreUnreachable)
	assert.Equal(t, []string{"delete:A"}, st.callsWithPrefix("delete:"))
	assert.Empty(t, st.callsWithPrefix("submit_restore"))
}

// -----------------------------------------------------------------------------
// Restore job
// -----------------------------------------------------------------------------

func TestRestore_TimesOutAfterExactlyMaxAttempts(t *testing.T) {
	st := newFakeStore(nil)
	st.restoreStatuses = []string{"STARTED"}
	ctrl, clock := newTestController(t, st, Options{Poll: PollConfig{Interval: 10 * time.Second, MaxAttempts: 5}})

	report, err := ctrl.RestoreForced(context.Background(), RestoreRequest{BackupID: testBackupID})

	require.ErrorIs(t, err, ErrJobTimedOut)
	assert.Equal(t, 5, st.restoreStatusCalls)
	assert.Equal(t, 5, clock.waits)

	var jobErr *JobError
	require.ErrorAs(t, err, &jobErr)
	assert.Equal(t, 5, jobErr.Attempts)
	assert.Equal(t, "STARTED", jobErr.RawStatus)
	assert.Equal(t, 50*time.Second, jobErr.Elapsed)
	assert.Equal(t, StageRestore, report.Stage)
	assert.Nil(t, report.Verification)
}

func TestRestore_FailedIsSurfacedVerbatimAndNotRetried(t *testing.T) {
	st := newFakeStore(nil)
	st.restoreStatuses = []string{"STARTED", "FAILED"}
	st.restoreError = "restore class VERBA_DOCUMENTS: disk quota exceeded"
	ctrl, _ := newTestController(t, st, Options{})

	_, err := ctrl.RestoreForced(context.Background(), RestoreRequest{BackupID: testBackupID})

	require.ErrorIs(t, err, ErrJobFailed)
	assert.Contains(t, err.Error(), "disk quota exceeded")
	assert.Len(t, st.callsWithPrefix("submit_restore"), 1)
	assert.Equal(t, 2, st.restoreStatusCalls)
}

func TestRestore_UnknownStatusIsFatal(t *testing.T) {
	st := newFakeStore(nil)
	st.restoreStatuses = []string{"REINDEXING"}
	ctrl, _ := newTestController(t, st, Options{})

	_, err := ctrl.RestoreForced(context.Background(), RestoreRequest{BackupID: testBackupID})

	require.ErrorIs(t, err, ErrUnknownJobStatus)
	assert.Equal(t, 1, st.restoreStatusCalls)
	assert.Equal(t, OutcomeUnknownStatus, Outcome(err))
}

func TestRestore_MissingBackupSurfacesAtSubmission(t *testing.T) {
	st := newFakeStore(nil)
	st.submitErr = &store.RequestError{Op: "submit_restore", StatusCode: 404, Kind: store.ErrNotFound,
		Message: "backup verba-backup-20241208-143022 not found"}
	ctrl, _ := newTestController(t, st, Options{})

	_, err := ctrl.RestoreForced(context.Background(), RestoreRequest{BackupID: testBackupID})

	require.ErrorIs(t, err, store.ErrNotFound)
	assert.Zero(t, st.restoreStatusCalls)
	assert.Equal(t, OutcomeRejected, Outcome(err))
}

func TestRestore_InvalidIDRejectedBeforeCensus(t *testing.T) {
	st := newFakeStore(nil)
	ctrl, _ := newTestController(t, st, Options{})

	_, err := ctrl.RestoreForced(context.Background(), RestoreRequest{BackupID: "../Latest"})

	require.ErrorIs(t, err, catalog.ErrInvalidID)
	assert.Empty(t, st.calls)
}

func TestRestore_ContextCancelledWhilePolling(t *testing.T) {
	st := newFakeStore(nil)
	st.restoreStatuses = []string{"STARTED"}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ctrl, _ := newTestController(t, st, Options{})

	_, err := ctrl.RestoreForced(ctx, RestoreRequest{BackupID: testBackupID})
	assert.Error(t, err)
}

// -----------------------------------------------------------------------------
// Verification
// -----------------------------------------------------------------------------

func TestRestore_MismatchAgainstManifest(t *testing.T) {
	cat := catalog.New(t.TempDir(), nil)
	require.NoError(t, cat.WriteManifest(catalog.Manifest{
		ID:                testBackupID,
		Status:            "SUCCESS",
		PrimaryCollection: "VERBA_DOCUMENTS",
		Collections:       map[string]int64{"VERBA_DOCUMENTS": 178},
	}))

	st := newFakeStore(nil)
	st.restored = map[string]store.ObjectCount{"VERBA_DOCUMENTS": 150}
	ctrl, _ := newTestController(t, st, Options{Catalog: cat})

	report, err := ctrl.RestoreForced(context.Background(), RestoreRequest{BackupID: testBackupID})

	require.ErrorIs(t, err, ErrVerificationMismatch)
	assert.Equal(t, StageDone, report.Stage, "restore itself completed")
	require.NotNil(t, report.Verification)
	assert.False(t, report.Verification.Matched)
	assert.Equal(t, "manifest", report.Verification.Source)
	assert.Contains(t, err.Error(), "178")
	assert.Contains(t, err.Error(), "150")
}

func TestRestore_FlagsOverrideManifest(t *testing.T) {
	cat := catalog.New(t.TempDir(), nil)
	require.NoError(t, cat.WriteManifest(catalog.Manifest{
		ID:          testBackupID,
		Collections: map[string]int64{"VERBA_DOCUMENTS": 178},
	}))

	st := newFakeStore(nil)
	st.restored = map[string]store.ObjectCount{"VERBA_DOCUMENTS": 150}
	ctrl, _ := newTestController(t, st, Options{Catalog: cat})

	report, err := ctrl.RestoreForced(context.Background(), RestoreRequest{
		BackupID: testBackupID,
		Expect:   Expectations{Documents: int64p(150)},
	})

	require.NoError(t, err)
	assert.Equal(t, "flags+manifest", report.Verification.Source)
	assert.Equal(t, 1, *report.Verification.ExpectedCollectionCount)
}

// -----------------------------------------------------------------------------
// Plan
// -----------------------------------------------------------------------------

func TestPlan_HasNoSideEffects(t *testing.T) {
	st := newFakeStore(map[string]store.ObjectCount{"VERBA_DOCUMENTS": 42, "VERBA_CONFIG": 0})
	ctrl, _ := newTestController(t, st, Options{})

	report, err := ctrl.Plan(context.Background(), RestoreRequest{BackupID: testBackupID})

	require.NoError(t, err)
	assert.Equal(t, ModeDryRun, report.Mode)
	assert.Equal(t, []string{"VERBA_CONFIG", "VERBA_DOCUMENTS"}, report.Assessment.Blocking)
	assert.Equal(t, []string{"VERBA_DOCUMENTS"}, report.Assessment.Populated)
	assert.Empty(t, st.callsWithPrefix("delete:"))
	assert.Empty(t, st.callsWithPrefix("submit_restore"))
}

// -----------------------------------------------------------------------------
// Backup
// -----------------------------------------------------------------------------

func TestBackup_CreatesRecordsAndPointsLatest(t *testing.T) {
	cat := catalog.New(t.TempDir(), nil)
	st := newFakeStore(map[string]store.ObjectCount{"VERBA_DOCUMENTS": 178, "VERBA_CONFIG": 1})
	st.backupStatuses = []string{"STARTED", "TRANSFERRING", "SUCCESS"}
	ctrl, _ := newTestController(t, st, Options{Catalog: cat})

	rec, err := ctrl.Backup(context.Background())
	require.NoError(t, err)

	assert.Equal(t, testBackupID, rec.ID)
	assert.Equal(t, store.StatusSuccess, rec.Status)
	assert.Equal(t, 3, rec.Attempts)
	assert.True(t, rec.ManifestWritten)
	assert.True(t, rec.LatestUpdated)
	assert.Equal(t, testBackupID, cat.Latest())

	m, err := cat.ReadManifest(testBackupID)
	require.NoError(t, err)
	assert.Equal(t, int64(178), m.Collections["VERBA_DOCUMENTS"])
	assert.Equal(t, "filesystem", m.Backend)
	assert.Equal(t, "VERBA_DOCUMENTS", m.PrimaryCollection)
}

func TestBackup_RejectionSurfacedVerbatim(t *testing.T) {
	cat := catalog.New(t.TempDir(), nil)
	st := newFakeStore(nil)
	st.createErr = &store.RequestError{Op: "create_backup", StatusCode: 422, Kind: store.ErrRejected,
		Message: "backup verba-backup-20241208-143022 already in progress"}
	ctrl, _ := newTestController(t, st, Options{Catalog: cat})

	rec, err := ctrl.Backup(context.Background())

	require.ErrorIs(t, err, store.ErrRejected)
	assert.Contains(t, err.Error(), "already in progress")
	assert.Len(t, st.callsWithPrefix("create_backup"), 1, "no retry")
	assert.Equal(t, testBackupID, rec.ID)
	assert.Empty(t, cat.Latest())
}

func TestBackup_TimesOut(t *testing.T) {
	st := newFakeStore(nil)
	st.backupStatuses = []string{"TRANSFERRING"}
	ctrl, _ := newTestController(t, st, Options{Poll: PollConfig{Interval: time.Second, MaxAttempts: 3}})

	_, err := ctrl.Backup(context.Background())

	require.ErrorIs(t, err, ErrJobTimedOut)
	assert.Equal(t, 3, st.backupStatusCalls)
}

func TestBackup_UnreachableAborts(t *testing.T) {
	st := newFakeStore(nil)
	st.listErr = unreachable("list_collections")
	ctrl, _ := newTestController(t, st, Options{})

	_, err := ctrl.Backup(context.Background())

	require.ErrorIs(t, err, ErrStoreUnreachable)
	assert.Empty(t, st.callsWithPrefix("create_backup"))
}

func TestNewBackupID(t *testing.T) {
	local := time.FixedZone("X", 3600)
	assert.Equal(t, testBackupID, NewBackupID("", testEpoch))
	assert.Equal(t, "nightly-20241208-143022", NewBackupID("nightly", testEpoch.In(local)))
}

// -----------------------------------------------------------------------------
// Metrics
// -----------------------------------------------------------------------------

func TestPrometheusMetrics_RecordsRestore(t *testing.T) {
	metrics, err := NewPrometheusMetrics()
	require.NoError(t, err)

	st := newFakeStore(map[string]store.ObjectCount{"VERBA_DOCUMENTS": 0})
	st.restored = map[string]store.ObjectCount{"VERBA_DOCUMENTS": 3}
	ctrl, _ := newTestController(t, st, Options{Metrics: metrics})

	_, err = ctrl.RestoreForced(context.Background(), RestoreRequest{BackupID: testBackupID})
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.runsTotal.WithLabelValues("restore", OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.collectionsDeleted))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.verification.WithLabelValues("matched")))
}

func TestOutcome(t *testing.T) {
	tests := map[string]struct {
		err  error
		want string
	}{
		"nil":      {nil, OutcomeSuccess},
		"declined": {ErrOperatorDeclined, OutcomeDeclined},
		"timeout":  {&JobError{Kind: ErrJobTimedOut}, OutcomeTimedOut},
		"failed":   {&JobError{Kind: ErrJobFailed}, OutcomeJobFailed},
		"cleanup":  {&CleanupIncompleteError{Remaining: []string{"A"}}, OutcomeCleanupIncomplete},
		"mismatch": {ErrVerificationMismatch, OutcomeMismatch},
		"other":    {errors.New("boom"), OutcomeError},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, Outcome(tt.err))
		})
	}
}
