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

	"github.com/AleutianAI/AleutianDR/internal/store"
)

// Cleaner is the store surface cleanup needs.
type Cleaner interface {
	SchemaWriter
	ListCollections(ctx context.Context) ([]string, error)
}

// CleanupExecutor deletes blocking collections and confirms they are gone.
type CleanupExecutor struct {
	store  Cleaner
	logger *slog.Logger
}

// NewCleanupExecutor creates a cleanup executor.
func NewCleanupExecutor(st Cleaner, logger *slog.Logger) *CleanupExecutor {
	if logger == nil {
		logger = slog.Default()
	}
	return &CleanupExecutor{store: st, logger: logger.With(slog.String("component", "cleanup"))}
}

// Execute deletes every name in blocking, then re-lists the schema.
//
// # Description
//
// Deletion is idempotent: a collection that is already gone is a success,
// so running Execute twice is safe. Individual deletion failures do not
// stop the loop; the post-condition check decides the outcome. The store
// becoming unreachable aborts immediately.
//
// # Outputs
//
//   - []string: Names that were deleted (or already absent).
//   - error: Wraps ErrStoreUnreachable, or is a *CleanupIncompleteError
//     naming every blocking collection still present.
func (e *CleanupExecutor) Execute(ctx context.Context, blocking []string) ([]string, error) {
	deleted := make([]string, 0, len(blocking))
	var deleteErrs []error

	for _, name := range blocking {
		if err := ctx.Err(); err != nil {
			return deleted, err
		}
		err := e.store.DeleteCollection(ctx, name)
		switch {
		case err == nil:
			e.logger.Info("deleted collection", slog.String("collection", name))
			deleted = append(deleted, name)
		case errors.Is(err, store.ErrStoreUnreachable):
			return deleted, fmt.Errorf("cleanup: delete %s: %w", name, err)
		default:
			e.logger.Error("delete failed", slog.String("collection", name), slog.String("error", err.Error()))
			deleteErrs = append(deleteErrs, fmt.Errorf("%s: %w", name, err))
		}
	}

	remaining, err := e.store.ListCollections(ctx)
	if err != nil {
		return deleted, fmt.Errorf("cleanup: verify: %w", err)
	}

	wanted := make(map[string]struct{}, len(blocking))
	for _, name := range blocking {
		wanted[name] = struct{}{}
	}
	var residue []string
	for _, name := range remaining {
		if _, ok := wanted[name]; ok {
			residue = append(residue, name)
		}
	}
	if len(residue) > 0 {
		return deleted, &CleanupIncompleteError{Remaining: residue, DeleteErrors: deleteErrs}
	}
	if len(remaining) > 0 {
		// Collections created between census and cleanup would still collide.
		e.logger.Warn("schema not empty after cleanup", slog.Any("collections", remaining))
		return deleted, &CleanupIncompleteError{Remaining: remaining, DeleteErrors: deleteErrs}
	}
	return deleted, nil
}
