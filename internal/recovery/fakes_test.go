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
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/AleutianAI/AleutianDR/internal/store"
)

// -----------------------------------------------------------------------------
// fakeStore
// -----------------------------------------------------------------------------

// fakeStore is an in-memory store that enforces the restore collision rule.
type fakeStore struct {
	mu sync.Mutex

	collections map[string]store.ObjectCount

	listErr   error
	countErr  map[string]error
	deleteErr map[string]error
	// sticky collections report a successful delete but stay in the schema.
	sticky map[string]bool

	// restored is installed into the schema when a restore reaches SUCCESS.
	restored        map[string]store.ObjectCount
	submitErr       error
	restoreStatuses []string
	restoreError    string

	createErr      error
	backupStatuses []string

	calls              []string
	restoreStatusCalls int
	backupStatusCalls  int
}

func newFakeStore(collections map[string]store.ObjectCount) *fakeStore {
	if collections == nil {
		collections = map[string]store.ObjectCount{}
	}
	return &fakeStore{
		collections:     collections,
		countErr:        map[string]error{},
		deleteErr:       map[string]error{},
		sticky:          map[string]bool{},
		restored:        map[string]store.ObjectCount{},
		restoreStatuses: []string{"SUCCESS"},
		backupStatuses:  []string{"SUCCESS"},
	}
}

func (f *fakeStore) record(call string) {
	f.calls = append(f.calls, call)
}

func (f *fakeStore) callsWithPrefix(prefix string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.calls {
		if strings.HasPrefix(c, prefix) {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeStore) names() []string {
	names := make([]string, 0, len(f.collections))
	for name := range f.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (f *fakeStore) ListCollections(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("list")
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.names(), nil
}

func (f *fakeStore) CountObjects(ctx context.Context, name string) (store.ObjectCount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("count:" + name)
	if err := f.countErr[name]; err != nil {
		return store.CountUnknown, err
	}
	count, ok := f.collections[name]
	if !ok {
		return store.CountUnknown, fmt.Errorf("%w: class %s not found", store.ErrSchemaQueryFailed, name)
	}
	return count, nil
}

func (f *fakeStore) DeleteCollection(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("delete:" + name)
	if err := f.deleteErr[name]; err != nil {
		return err
	}
	if !f.sticky[name] {
		delete(f.collections, name)
	}
	return nil
}

func (f *fakeStore) CreateBackup(ctx context.Context, id string) (*store.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("create_backup:" + id)
	if f.createErr != nil {
		return nil, f.createErr
	}
	return &store.Job{ID: id, Backend: "filesystem", Status: store.StatusPending, RawStatus: "STARTED",
		Collections: f.names(), Path: "/var/lib/weaviate/backups/" + id}, nil
}

func (f *fakeStore) BackupStatus(ctx context.Context, id string) (*store.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("backup_status")
	raw := f.backupStatuses[min(f.backupStatusCalls, len(f.backupStatuses)-1)]
	f.backupStatusCalls++
	return &store.Job{ID: id, Backend: "filesystem", Status: store.ParseJobStatus(raw), RawStatus: raw}, nil
}

func (f *fakeStore) SubmitRestore(ctx context.Context, id string) (*store.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("submit_restore:" + id)
	if f.submitErr != nil {
		return nil, f.submitErr
	}
	for name := range f.restored {
		if _, exists := f.collections[name]; exists {
			return nil, &store.RequestError{Op: "submit_restore", StatusCode: 422, Kind: store.ErrRejected,
				Message: fmt.Sprintf("could not restore class %q: class already exists", name)}
		}
	}
	classes := make([]string, 0, len(f.restored))
	for name := range f.restored {
		classes = append(classes, name)
	}
	sort.Strings(classes)
	return &store.Job{ID: id, Backend: "filesystem", Status: store.StatusPending, RawStatus: "STARTED", Collections: classes}, nil
}

func (f *fakeStore) RestoreStatus(ctx context.Context, id string) (*store.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.record("restore_status")
	raw := f.restoreStatuses[min(f.restoreStatusCalls, len(f.restoreStatuses)-1)]
	f.restoreStatusCalls++
	job := &store.Job{ID: id, Backend: "filesystem", Status: store.ParseJobStatus(raw), RawStatus: raw}
	switch job.Status {
	case store.StatusSuccess:
		for name, count := range f.restored {
			f.collections[name] = count
		}
	case store.StatusFailed:
		job.Error = f.restoreError
	}
	return job, nil
}

var _ Store = (*fakeStore)(nil)

func unreachable(op string) error {
	return &store.RequestError{Op: op, StatusCode: -1, Kind: store.ErrStoreUnreachable,
		Err: errors.New("dial tcp 127.0.0.1:8080: connect: connection refused")}
}

// -----------------------------------------------------------------------------
// fakeClock
// -----------------------------------------------------------------------------

// fakeClock advances by the requested duration instead of sleeping.
type fakeClock struct {
	mu    sync.Mutex
	now   time.Time
	waits int
}

func newFakeClock(t time.Time) *fakeClock {
	return &fakeClock{now: t}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	c.waits++
	ch := make(chan time.Time, 1)
	ch <- c.now
	return ch
}

// -----------------------------------------------------------------------------
// MockPrompter
// -----------------------------------------------------------------------------

// PrompterCall records one prompt.
type PrompterCall struct {
	Method string
	Prompt string
}

// MockPrompter is a configurable Prompter test double.
type MockPrompter struct {
	ConfirmFunc func(ctx context.Context, prompt string) (bool, error)
	Calls       []PrompterCall
}

func (m *MockPrompter) Confirm(ctx context.Context, prompt string) (bool, error) {
	m.Calls = append(m.Calls, PrompterCall{Method: "Confirm", Prompt: prompt})
	if m.ConfirmFunc != nil {
		return m.ConfirmFunc(ctx, prompt)
	}
	return false, nil
}

func (m *MockPrompter) IsInteractive() bool { return true }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func int64p(v int64) *int64 { return &v }
func intp(v int) *int       { return &v }
