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
	"github.com/spf13/cobra"
)

// rootOptions are the persistent flags shared by every command.
type rootOptions struct {
	configPath string
	output     string
}

// restoreOptions are the flags of the restore command.
type restoreOptions struct {
	force             bool
	dryRun            bool
	latest            bool
	expectDocuments   int64
	expectCollections int
	primary           string
}

// newRootCmd builds the command tree.
func newRootCmd(s streams) *cobra.Command {
	root := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "aleutian-dr",
		Short: "Back up and safely restore the Verba Weaviate store",
		Long: `aleutian-dr creates Weaviate backups and restores them into a store that
may already hold auto-created or populated collections.

A restore inspects the store first, asks before deleting anything that holds
data, removes the colliding collections, polls the restore job to completion
and verifies the restored document counts.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetIn(s.in)
	rootCmd.SetOut(s.out)
	rootCmd.SetErr(s.errOut)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&root.configPath, "config", "", "config file (default ~/.aleutian-dr/config.yaml)")
	pf.String("url", "", "Weaviate endpoint, overrides store.url")
	pf.String("backend", "", "backup backend, overrides store.backend")
	pf.String("backup-root", "", "host path of the backup directory, overrides backup.root")
	pf.String("log-level", "", "debug, info, warn or error")
	pf.StringVar(&root.output, "output", "", "output style: rich or plain (default: rich on a terminal)")

	backupCmd := &cobra.Command{
		Use:   "backup",
		Short: "Create a backup of every collection and wait for it to finish",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBackup(cmd, root, s)
		},
	}

	ro := &restoreOptions{}
	restoreCmd := &cobra.Command{
		Use:   "restore [backup-id]",
		Short: "Restore a backup, clearing colliding collections first",
		Long: `Restore a backup into the store.

Collections that would collide with the restore are listed with their object
counts. If any of them holds data you are asked to confirm before they are
deleted; empty collections are removed without asking. When stdin is not a
terminal the confirmation is refused, so unattended recovery must use --force.

Exit codes: 0 restored and verified, 1 declined, 2 store unreachable,
3 job failed/timed out/rejected, 4 verification mismatch, 5 other failure.`,
		Example: `  aleutian-dr restore verba-backup-20241208-143022
  aleutian-dr restore --latest --dry-run
  aleutian-dr restore --force --expect-documents 178 verba-backup-20241208-143022`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRestore(cmd, root, ro, s, args)
		},
	}
	rf := restoreCmd.Flags()
	rf.BoolVar(&ro.force, "force", false, "skip confirmation and delete populated collections")
	rf.BoolVar(&ro.dryRun, "dry-run", false, "show what would be deleted without changing anything")
	rf.BoolVar(&ro.latest, "latest", false, "restore the backup named by the latest pointer")
	rf.Int64Var(&ro.expectDocuments, "expect-documents", 0, "expected object count of the primary collection")
	rf.IntVar(&ro.expectCollections, "expect-collections", 0, "expected number of collections after restore")
	rf.StringVar(&ro.primary, "primary", "", "collection whose objects are counted (default restore.primary_collection)")
	restoreCmd.MarkFlagsMutuallyExclusive("force", "dry-run")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List backups in the backup directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runList(cmd, root, s)
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Check store readiness and show every collection with its object count",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd, root, s)
		},
	}

	var historyLimit int
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent backup and restore runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runHistory(cmd, root, s, historyLimit)
		},
	}
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of runs to show (0 for all)")

	rootCmd.AddCommand(backupCmd, restoreCmd, listCmd, statusCmd, historyCmd)
	return rootCmd
}
