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
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/AleutianDR/internal/store"
)

// DefaultCensusParallelism bounds concurrent count queries.
const DefaultCensusParallelism = 4

// CensusEntry is one collection and its object count.
type CensusEntry struct {
	Name  string
	Count store.ObjectCount
}

// Census is a snapshot of the store's collections at one point in time.
// Entries are sorted by name.
type Census struct {
	Entries []CensusEntry
	TakenAt time.Time
}

// Names returns the collection names in census order.
func (c Census) Names() []string {
	names := make([]string, len(c.Entries))
	for i, e := range c.Entries {
		names[i] = e.Name
	}
	return names
}

// Counts returns a name-to-count map.
func (c Census) Counts() map[string]store.ObjectCount {
	counts := make(map[string]store.ObjectCount, len(c.Entries))
	for _, e := range c.Entries {
		counts[e.Name] = e.Count
	}
	return counts
}

// Count returns the count for name and whether name is in the census.
func (c Census) Count(name string) (store.ObjectCount, bool) {
	for _, e := range c.Entries {
		if e.Name == name {
			return e.Count, true
		}
	}
	return 0, false
}

// HasData reports whether any collection is populated. Unknown counts are
// populated.
func (c Census) HasData() bool {
	for _, e := range c.Entries {
		if e.Count.Populated() {
			return true
		}
	}
	return false
}

// TakeCensus lists every collection and counts its objects.
//
// # Description
//
// Counts run concurrently, bounded by parallelism. Unreachability of the
// store aborts the census. Any other per-collection count failure is
// recorded as store.CountUnknown and logged; it never aborts and never
// becomes zero.
//
// # Inputs
//
//   - ctx: Cancellation.
//   - reader: Store schema access.
//   - parallelism: Maximum concurrent counts. Values < 1 use the default.
//   - logger: Logger for per-collection warnings.
//   - clock: Source of TakenAt. Nil uses the system clock.
//
// # Outputs
//
//   - Census: Sorted entries. Empty when the store has no collections.
//   - error: Wraps ErrStoreUnreachable when the store cannot be reached.
func TakeCensus(ctx context.Context, reader SchemaReader, parallelism int, logger *slog.Logger, clock Clock) (Census, error) {
	if parallelism < 1 {
		parallelism = DefaultCensusParallelism
	}
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = SystemClock()
	}

	names, err := reader.ListCollections(ctx)
	if err != nil {
		return Census{}, fmt.Errorf("census: %w", err)
	}

	entries := make([]CensusEntry, len(names))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)

	for i, name := range names {
		g.Go(func() error {
			count, err := reader.CountObjects(gctx, name)
			if err != nil {
				if errors.Is(err, store.ErrStoreUnreachable) || gctx.Err() != nil {
					return fmt.Errorf("census: count %s: %w", name, err)
				}
				logger.Warn("object count unavailable, treating collection as populated",
					slog.String("collection", name),
					slog.String("error", err.Error()))
				count = store.CountUnknown
			}
			entries[i] = CensusEntry{Name: name, Count: count}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return Census{}, err
	}

	sort.Slice(entries, func(a, b int) bool { return entries[a].Name < entries[b].Name })
	return Census{Entries: entries, TakenAt: clock.Now()}, nil
}
