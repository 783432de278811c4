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
	"fmt"

	"github.com/spf13/cobra"
)

// runStatus probes readiness and prints a census. Read-only.
func runStatus(cmd *cobra.Command, root *rootOptions, s streams) error {
	a, err := newApp(cmd, root, s)
	if err != nil {
		return err
	}
	defer a.close(cmd.Context())

	ctx := cmd.Context()
	if err := a.store.Ready(ctx); err != nil {
		a.printer.Error("Weaviate at " + a.cfg.Store.URL + " is not ready")
		return err
	}
	a.printer.Success("Weaviate at " + a.cfg.Store.URL + " is ready")

	census, err := a.controller(a.restorePoll()).Census(ctx)
	if err != nil {
		return err
	}
	renderCensus(a.printer, census)

	if count, ok := census.Count(a.cfg.Restore.PrimaryCollection); ok {
		a.printer.Field("Primary", fmt.Sprintf("%s (%s objects)", a.cfg.Restore.PrimaryCollection, count))
	} else {
		a.printer.Warning(a.cfg.Restore.PrimaryCollection + " does not exist")
	}
	return nil
}

// runList prints the backup catalog.
func runList(cmd *cobra.Command, root *rootOptions, s streams) error {
	a, err := newApp(cmd, root, s)
	if err != nil {
		return err
	}
	defer a.close(cmd.Context())

	if a.catalog == nil {
		return fmt.Errorf("%w: backup.root is not configured", errUsage)
	}
	entries, err := a.catalog.List()
	if err != nil {
		return err
	}
	renderEntries(a.printer, entries)
	return nil
}

// runHistory prints recent journal entries.
func runHistory(cmd *cobra.Command, root *rootOptions, s streams, limit int) error {
	a, err := newApp(cmd, root, s)
	if err != nil {
		return err
	}
	defer a.close(cmd.Context())

	if a.journal == nil {
		return fmt.Errorf("%w: the run journal is disabled or unavailable", errUsage)
	}
	entries, err := a.journal.Recent(cmd.Context(), limit)
	if err != nil {
		return err
	}
	renderHistory(a.printer, entries)
	return nil
}
