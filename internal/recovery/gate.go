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
	"io"
	"log/slog"
	"strings"
)

// Gate decides whether cleanup may proceed.
//
// Authorize returns nil to proceed, an error wrapping ErrOperatorDeclined
// when the operator said no, or another error when the gate itself failed.
type Gate interface {
	Authorize(ctx context.Context, backupID string, a Assessment) error
}

// InteractiveGate asks the operator before destroying data.
//
// # Description
//
// When no blocking collection is populated the gate passes without
// prompting; deleting empty collections loses nothing. Otherwise it lists
// every blocking collection with its count and requires an explicit "yes".
// A prompter that cannot ask (ErrNonInteractive) and a cancelled prompt both
// count as a refusal. Any other prompt error is returned as is.
type InteractiveGate struct {
	prompter Prompter
	out      io.Writer
	logger   *slog.Logger
}

// NewInteractiveGate creates a gate that prints its warning to out.
func NewInteractiveGate(prompter Prompter, out io.Writer, logger *slog.Logger) *InteractiveGate {
	if out == nil {
		out = io.Discard
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &InteractiveGate{
		prompter: prompter,
		out:      out,
		logger:   logger.With(slog.String("component", "gate")),
	}
}

// Authorize implements Gate.
func (g *InteractiveGate) Authorize(ctx context.Context, backupID string, a Assessment) error {
	if !a.HasData {
		g.logger.Info("no populated collections, proceeding without confirmation",
			slog.Int("blocking", len(a.Blocking)))
		return nil
	}

	fmt.Fprintln(g.out, "The following collections will be DELETED:")
	for _, name := range a.Blocking {
		fmt.Fprintf(g.out, "  - %s (%s objects)\n", name, a.Counts[name])
	}

	prompt := fmt.Sprintf("Delete %d collection(s) and restore backup %s?", len(a.Blocking), backupID)
	ok, err := g.prompter.Confirm(ctx, prompt)
	switch {
	case errors.Is(err, ErrNonInteractive):
		g.logger.Warn("confirmation unavailable, refusing", slog.String("error", err.Error()))
		return fmt.Errorf("%w: %v", ErrOperatorDeclined, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		g.logger.Info("confirmation cancelled, nothing deleted", slog.String("error", err.Error()))
		return fmt.Errorf("%w: %w", ErrOperatorDeclined, err)
	case err != nil:
		return fmt.Errorf("confirmation: %w", err)
	case !ok:
		g.logger.Info("operator declined", slog.String("populated", strings.Join(a.Populated, ",")))
		return fmt.Errorf("%w: %d populated collection(s) left untouched", ErrOperatorDeclined, len(a.Populated))
	}

	g.logger.Info("operator confirmed deletion", slog.Int("collections", len(a.Blocking)))
	return nil
}

// forcedGate passes unconditionally. It is only constructed by
// Controller.RestoreForced.
type forcedGate struct {
	logger *slog.Logger
}

func (g forcedGate) Authorize(_ context.Context, backupID string, a Assessment) error {
	if a.HasData {
		g.logger.Warn("forced restore: deleting populated collections without confirmation",
			slog.String("backup_id", backupID),
			slog.String("populated", strings.Join(a.Populated, ",")))
	}
	return nil
}
