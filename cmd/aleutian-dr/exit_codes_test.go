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
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/AleutianAI/AleutianDR/internal/catalog"
	"github.com/AleutianAI/AleutianDR/internal/config"
	"github.com/AleutianAI/AleutianDR/internal/recovery"
	"github.com/AleutianAI/AleutianDR/internal/store"
)

func TestExitCode(t *testing.T) {
	rejected := &store.RequestError{Op: "submit_restore", StatusCode: 422, Message: "class exists", Kind: store.ErrRejected}

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"success", nil, ExitOK},
		{"declined", fmt.Errorf("gate: %w", recovery.ErrOperatorDeclined), ExitDeclined},
		{"prompt cancelled", fmt.Errorf("%w: %w", recovery.ErrOperatorDeclined, context.Canceled), ExitDeclined},
		{"unreachable", &store.RequestError{Op: "list_collections", StatusCode: -1, Kind: store.ErrStoreUnreachable}, ExitUnreachable},
		{"job failed", &recovery.JobError{Kind: recovery.ErrJobFailed, Operation: "restore", ID: "x"}, ExitJob},
		{"timed out", &recovery.JobError{Kind: recovery.ErrJobTimedOut, Operation: "restore", ID: "x", Attempts: 30}, ExitJob},
		{"unknown status", &recovery.JobError{Kind: recovery.ErrUnknownJobStatus, Operation: "restore", ID: "x"}, ExitJob},
		{"submission rejected", fmt.Errorf("submit restore x: %w", rejected), ExitJob},
		{"backup missing", fmt.Errorf("submit restore x: %w", store.ErrNotFound), ExitJob},
		{"mismatch", fmt.Errorf("%w: collection count: expected 3, observed 2", recovery.ErrVerificationMismatch), ExitMismatch},
		{"cleanup incomplete", &recovery.CleanupIncompleteError{
			Remaining:    []string{"VERBA_DOCUMENTS"},
			DeleteErrors: []error{rejected},
		}, ExitFailure},
		{"invalid id", fmt.Errorf("%w: %q", catalog.ErrInvalidID, "Bad ID"), ExitFailure},
		{"config", fmt.Errorf("%w: store.backend", config.ErrInvalidConfig), ExitFailure},
		{"usage", fmt.Errorf("%w: a backup id is required", errUsage), ExitFailure},
		{"cancelled", context.Canceled, ExitFailure},
		{"other", errors.New("boom"), ExitFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}
