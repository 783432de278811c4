// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package recovery implements the restore safety controller and the backup
// creator for a Weaviate store.
//
// # Overview
//
// Weaviate refuses to restore a backup when any collection with the same
// name already exists, and the application that owns the store recreates
// its (empty) collections on every cold start. Every disaster-recovery
// attempt therefore starts with a collision. The controller resolves it
// safely:
//
//	Census -> Classify -> Gate -> Cleanup -> Restore -> Verify
//
// Each stage short-circuits the pipeline on failure, and every ambiguous
// state fails closed: an unknown object count is treated as data, an
// unknown job status is fatal, and cleanup is re-verified before restore.
//
// # Components
//
//   - TakeCensus: lists collections and counts objects with bounded parallelism
//   - Classify: reduces a Census to the blocking list and a hasData verdict
//   - Gate: InteractiveGate asks for confirmation only when data is at risk;
//     forced mode is reachable only through Controller.RestoreForced
//   - CleanupExecutor: deletes blocking collections and re-checks the schema
//   - RestoreOrchestrator: submits a restore and polls with a hard ceiling
//   - Verifier: compares observed collection/document counts to expectations
//   - BackupCreator: creates timestamped backups and records a manifest
//
// # Example
//
//	ctrl := recovery.NewController(client, recovery.Options{Catalog: cat})
//	report, err := ctrl.RestoreInteractive(ctx, recovery.RestoreRequest{
//	    BackupID: "verba-backup-20241208-143022",
//	}, recovery.NewInteractivePrompter(os.Stdin, os.Stdout), os.Stdout)
//
// # Thread Safety
//
// A Controller runs one flow at a time. Concurrent invocations against the
// same store are not coordinated; the store's own collision check is the
// only protection.
package recovery
