// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package journal keeps a local history of backup and restore runs.
//
// The journal is operator bookkeeping only. The controller never reads it
// to make decisions; every run re-queries the store from scratch.
package journal

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// ErrNotFound is returned by Get for an unknown run id.
var ErrNotFound = errors.New("journal entry not found")

const (
	runPrefix   = "run/"
	indexPrefix = "idx/"
)

// Entry is one recorded run.
type Entry struct {
	RunID      string    `json:"run_id"`
	Operation  string    `json:"operation"`
	Mode       string    `json:"mode,omitempty"`
	BackupID   string    `json:"backup_id,omitempty"`
	Outcome    string    `json:"outcome"`
	ExitCode   int       `json:"exit_code"`
	Stage      string    `json:"stage,omitempty"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	// Deleted lists collections removed by cleanup.
	Deleted []string `json:"deleted,omitempty"`

	// Verification is the verifier's one-line summary.
	Verification string `json:"verification,omitempty"`
}

// Duration returns the run's wall time.
func (e Entry) Duration() time.Duration {
	return e.FinishedAt.Sub(e.StartedAt)
}

// Journal is a badger-backed run history.
//
// Thread Safety: Safe for concurrent use. Only one process may open a
// persistent journal at a time; badger holds a directory lock.
type Journal struct {
	db         *badger.DB
	maxEntries int
	logger     *slog.Logger
}

// Open opens or creates the journal.
func Open(cfg Config) (*Journal, error) {
	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Journal{db: db, maxEntries: cfg.MaxEntries, logger: logger.With(slog.String("component", "journal"))}, nil
}

// OpenInMemory opens an in-memory journal.
func OpenInMemory() (*Journal, error) {
	return Open(InMemoryConfig())
}

// Close runs a value-log GC pass and closes the database.
func (j *Journal) Close() error {
	if err := j.db.RunValueLogGC(0.5); err != nil && !errors.Is(err, badger.ErrNoRewrite) && !errors.Is(err, badger.ErrGCInMemoryMode) {
		j.logger.Debug("journal value log GC", slog.String("error", err.Error()))
	}
	return j.db.Close()
}

// runKey orders entries by start time, then run id.
func runKey(e Entry) []byte {
	key := make([]byte, 0, len(runPrefix)+8+1+len(e.RunID))
	key = append(key, runPrefix...)
	key = binary.BigEndian.AppendUint64(key, uint64(e.StartedAt.UnixNano()))
	key = append(key, '/')
	return append(key, e.RunID...)
}

func indexKey(runID string) []byte {
	return []byte(indexPrefix + runID)
}

// Append records e, assigning a RunID when empty, and prunes old entries
// beyond MaxEntries.
func (j *Journal) Append(ctx context.Context, e Entry) (Entry, error) {
	if e.RunID == "" {
		e.RunID = uuid.NewString()
	}
	if e.StartedAt.IsZero() {
		e.StartedAt = time.Now()
	}
	if e.FinishedAt.IsZero() {
		e.FinishedAt = e.StartedAt
	}

	value, err := json.Marshal(e)
	if err != nil {
		return e, fmt.Errorf("encode journal entry: %w", err)
	}
	key := runKey(e)

	err = j.update(ctx, func(txn *badger.Txn) error {
		if err := txn.Set(key, value); err != nil {
			return err
		}
		return txn.Set(indexKey(e.RunID), key)
	})
	if err != nil {
		return e, fmt.Errorf("append journal entry: %w", err)
	}

	if j.maxEntries > 0 {
		if n, err := j.prune(ctx, j.maxEntries); err != nil {
			j.logger.Warn("journal prune failed", slog.String("error", err.Error()))
		} else if n > 0 {
			j.logger.Debug("journal pruned", slog.Int("removed", n))
		}
	}
	return e, nil
}

// Recent returns up to limit entries, newest first. limit <= 0 returns all.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	entries := []Entry{}
	err := j.view(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = []byte(runPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		seek := append([]byte(runPrefix), 0xff)
		for it.Seek(seek); it.Valid(); it.Next() {
			if limit > 0 && len(entries) >= limit {
				break
			}
			var e Entry
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &e)
			})
			if err != nil {
				return fmt.Errorf("decode journal entry %q: %w", it.Item().Key(), err)
			}
			entries = append(entries, e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// Get returns one entry by run id.
func (j *Journal) Get(ctx context.Context, runID string) (Entry, error) {
	var e Entry
	err := j.view(ctx, func(txn *badger.Txn) error {
		idx, err := txn.Get(indexKey(runID))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", ErrNotFound, runID)
		}
		if err != nil {
			return err
		}
		key, err := idx.ValueCopy(nil)
		if err != nil {
			return err
		}
		item, err := txn.Get(key)
		if err != nil {
			return fmt.Errorf("journal index points at missing entry: %w", err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &e)
		})
	})
	return e, err
}

// prune deletes all but the newest keep entries.
func (j *Journal) prune(ctx context.Context, keep int) (int, error) {
	type stale struct {
		key   []byte
		runID string
	}
	var victims []stale

	err := j.view(ctx, func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = []byte(runPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		seen := 0
		for it.Seek(append([]byte(runPrefix), 0xff)); it.Valid(); it.Next() {
			seen++
			if seen <= keep {
				continue
			}
			key := it.Item().KeyCopy(nil)
			victims = append(victims, stale{key: key, runID: string(key[len(runPrefix)+9:])})
		}
		return nil
	})
	if err != nil || len(victims) == 0 {
		return 0, err
	}

	err = j.update(ctx, func(txn *badger.Txn) error {
		for _, v := range victims {
			if err := txn.Delete(v.key); err != nil {
				return err
			}
			if err := txn.Delete(indexKey(v.runID)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(victims), nil
}
