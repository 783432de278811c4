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

/*
Tests for the Prompter implementations.

These tests verify:
  - InteractivePrompter accepts y/yes in any case and nothing else
  - EOF and empty input count as "no"
  - A cancelled context is reported as context.Canceled
  - NonInteractivePrompter refuses every question
*/

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -----------------------------------------------------------------------------
// InteractivePrompter Tests
// -----------------------------------------------------------------------------

func TestInteractivePrompter_Confirm(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected bool
	}{
		{"lowercase y", "y\n", true},
		{"uppercase Y", "Y\n", true},
		{"yes", "yes\n", true},
		{"YES", "YES\n", true},
		{"padded yes", "  Yes \n", true},
		{"no newline before EOF", "y", true},
		{"n", "n\n", false},
		{"no", "no\n", false},
		{"empty line", "\n", false},
		{"other text", "sure\n", false},
		{"y with suffix", "yep\n", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			writer := &bytes.Buffer{}
			prompter := NewInteractivePrompterWithIO(strings.NewReader(tt.input), writer)

			got, err := prompter.Confirm(context.Background(), "Continue?")
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestInteractivePrompter_Confirm_Prompt(t *testing.T) {
	writer := &bytes.Buffer{}
	prompter := NewInteractivePrompterWithIO(strings.NewReader("y\n"), writer)

	_, _ = prompter.Confirm(context.Background(), "Delete all data?")

	assert.Contains(t, writer.String(), "Delete all data?")
	assert.Contains(t, writer.String(), "[y/N]")
}

func TestInteractivePrompter_Confirm_EOF(t *testing.T) {
	prompter := NewInteractivePrompterWithIO(strings.NewReader(""), &bytes.Buffer{})

	got, err := prompter.Confirm(context.Background(), "Continue?")
	require.NoError(t, err)
	assert.False(t, got)
}

func TestInteractivePrompter_Confirm_ContextCancelled(t *testing.T) {
	prompter := NewInteractivePrompterWithIO(strings.NewReader("y\n"), &bytes.Buffer{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got, err := prompter.Confirm(ctx, "Continue?")
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, got)
}

func TestInteractivePrompter_Confirm_CancelWhileWaiting(t *testing.T) {
	pr, pw := io.Pipe()
	defer pw.Close()
	prompter := NewInteractivePrompterWithIO(pr, &bytes.Buffer{})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	got, err := prompter.Confirm(ctx, "Continue?")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, got)
}

func TestInteractivePrompter_ReadError(t *testing.T) {
	prompter := NewInteractivePrompterWithIO(iotestErrReader{}, &bytes.Buffer{})

	got, err := prompter.Confirm(context.Background(), "Continue?")
	assert.Error(t, err)
	assert.False(t, got)
}

type iotestErrReader struct{}

func (iotestErrReader) Read([]byte) (int, error) { return 0, errors.New("terminal gone") }

// -----------------------------------------------------------------------------
// NonInteractivePrompter Tests
// -----------------------------------------------------------------------------

func TestNonInteractivePrompter_Confirm_Rejects(t *testing.T) {
	prompter := NewNonInteractivePrompter()

	got, err := prompter.Confirm(context.Background(), "Continue?")
	assert.ErrorIs(t, err, ErrNonInteractive)
	assert.False(t, got)
	assert.False(t, prompter.IsInteractive())
}
