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
	"strconv"
	"strings"
	"time"

	"github.com/AleutianAI/AleutianDR/internal/catalog"
	"github.com/AleutianAI/AleutianDR/internal/journal"
	"github.com/AleutianAI/AleutianDR/internal/recovery"
	"github.com/AleutianAI/AleutianDR/pkg/ux"
)

const timeLayout = "2006-01-02 15:04:05"

func renderCensus(p *ux.Printer, c recovery.Census) {
	if len(c.Entries) == 0 {
		p.Info("No collections.")
		return
	}
	rows := make([][]string, 0, len(c.Entries))
	for _, e := range c.Entries {
		state := "empty"
		if e.Count.Populated() {
			state = "data"
		}
		if !e.Count.Known() {
			state = "unknown"
		}
		rows = append(rows, []string{e.Name, e.Count.String(), state})
	}
	p.Table([]string{"COLLECTION", "OBJECTS", "STATE"}, rows)
}

func renderBackup(p *ux.Printer, rec *recovery.BackupRecord) {
	p.Success("Backup " + rec.ID + " completed")
	p.Field("Backup ID", rec.ID)
	p.Field("Collections", strconv.Itoa(len(rec.Collections)))
	if rec.Path != "" {
		p.Field("Path", rec.Path)
	}
	p.Field("Polls", strconv.Itoa(rec.Attempts))
	if !rec.CompletedAt.IsZero() {
		p.Field("Duration", rec.CompletedAt.Sub(rec.StartedAt).Round(time.Second).String())
	}
	if rec.ManifestWritten {
		p.Field("Manifest", "recorded")
	}
}

// renderPlan prints what a restore of report.BackupID would do.
func renderPlan(p *ux.Printer, report *recovery.RestoreReport) {
	p.Title("Restore plan for " + report.BackupID)
	renderCensus(p, report.Census)

	a := report.Assessment
	switch {
	case a.Clear():
		p.Success("No collections to remove; the restore can be submitted directly")
	case !a.HasData:
		p.Info(fmt.Sprintf("%d empty collection(s) would be removed without confirmation", len(a.Blocking)))
	default:
		lines := make([]string, 0, len(a.Blocking))
		for _, name := range a.Blocking {
			lines = append(lines, fmt.Sprintf("%s (%s objects)", name, a.Counts[name]))
		}
		p.WarningBox(
			fmt.Sprintf("%d collection(s) would be deleted, %d hold data", len(a.Blocking), len(a.Populated)),
			strings.Join(lines, "\n"))
	}
}

// renderRestore prints the outcome of a restore run, including partial
// progress when err is non-nil.
func renderRestore(p *ux.Printer, report *recovery.RestoreReport, err error) {
	if len(report.Deleted) > 0 {
		p.Info(fmt.Sprintf("Removed %d collection(s): %s", len(report.Deleted), strings.Join(report.Deleted, ", ")))
	}
	if report.Restore != nil && report.Restore.Final != nil {
		p.Field("Restore", fmt.Sprintf("%s after %d poll(s) in %s",
			report.Restore.Final.RawStatus, report.Restore.Attempts, report.Restore.Elapsed.Round(time.Second)))
	}
	if v := report.Verification; v != nil {
		if v.Source != "" {
			p.Field("Expected from", v.Source)
		}
		if v.Matched {
			p.Success(v.Summary())
		} else {
			p.Warning(v.Summary())
		}
	}

	switch {
	case err == nil:
		p.Success(fmt.Sprintf("Backup %s restored in %s", report.BackupID, report.Elapsed.Round(time.Second)))
	case errors.Is(err, recovery.ErrOperatorDeclined):
		p.Warning("Restore cancelled; nothing was modified")
	case errors.Is(err, recovery.ErrVerificationMismatch):
		p.Warning("Restore finished but verification did not match; the restored data was left in place")
	}
}

func renderEntries(p *ux.Printer, entries []catalog.Entry) {
	if len(entries) == 0 {
		p.Info("No backups found.")
		return
	}
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		id := e.ID
		if e.Latest {
			id += " *"
		}
		status := e.Status
		if status == "" {
			status = "-"
		}
		docs := "-"
		if e.Documents >= 0 {
			docs = strconv.FormatInt(e.Documents, 10)
		}
		created := "-"
		if !e.CreatedAt.IsZero() {
			created = e.CreatedAt.Local().Format(timeLayout)
		}
		rows = append(rows, []string{id, status, strconv.Itoa(len(e.Collections)), docs, created})
	}
	p.Table([]string{"BACKUP", "STATUS", "COLLECTIONS", "DOCUMENTS", "CREATED"}, rows)
	for _, e := range entries {
		for _, problem := range e.Problems {
			p.Warning(e.ID + ": " + problem)
		}
	}
}

func renderHistory(p *ux.Printer, entries []journal.Entry) {
	if len(entries) == 0 {
		p.Info("No runs recorded.")
		return
	}
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		op := e.Operation
		if e.Mode != "" {
			op += " (" + e.Mode + ")"
		}
		backupID := e.BackupID
		if backupID == "" {
			backupID = "-"
		}
		rows = append(rows, []string{
			e.StartedAt.Local().Format(timeLayout),
			op,
			backupID,
			e.Outcome,
			strconv.Itoa(e.ExitCode),
			e.Duration().Round(time.Second).String(),
		})
	}
	p.Table([]string{"STARTED", "OPERATION", "BACKUP", "OUTCOME", "EXIT", "DURATION"}, rows)
}
