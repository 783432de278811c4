// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package catalog reads and writes the on-disk side of filesystem backups.
//
// # Layout
//
//	<root>/
//	├── latest-backup.txt              advisory pointer, one line
//	└── <id>/
//	    ├── backup_config.json         written by Weaviate
//	    └── aleutian-dr.json           manifest written after a successful backup
//
// Nothing in this package is consulted for correctness. A missing or stale
// pointer, a missing manifest, or an unreadable descriptor only reduces
// what can be shown to the operator.
package catalog

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

const (
	// DescriptorFile is the store's per-backup descriptor.
	DescriptorFile = "backup_config.json"

	// ManifestFile is the controller's per-backup manifest.
	ManifestFile = "aleutian-dr.json"

	// LatestFile is the advisory latest-backup pointer.
	LatestFile = "latest-backup.txt"
)

var (
	// ErrNoManifest is returned when a backup has no recorded manifest.
	ErrNoManifest = errors.New("no manifest recorded")

	// ErrInvalidID is returned for identifiers the store would reject or
	// that are unsafe as directory names.
	ErrInvalidID = errors.New("invalid backup id")
)

var idPattern = regexp.MustCompile(`^[a-z0-9_-]+$`)

// ValidateID checks that id is lowercase alphanumeric with - and _.
func ValidateID(id string) error {
	if !idPattern.MatchString(id) {
		return fmt.Errorf("%w: %q (use lowercase letters, digits, '-' and '_')", ErrInvalidID, id)
	}
	return nil
}

// Catalog is a view over a backup root directory.
type Catalog struct {
	root   string
	logger *slog.Logger
}

// New creates a catalog rooted at root. It performs no I/O.
func New(root string, logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.Default()
	}
	return &Catalog{root: root, logger: logger.With(slog.String("component", "catalog"))}
}

// Root returns the backup root directory.
func (c *Catalog) Root() string {
	return c.root
}

// Dir returns the directory for a backup id.
func (c *Catalog) Dir(id string) string {
	return filepath.Join(c.root, id)
}

// -----------------------------------------------------------------------------
// Latest Pointer
// -----------------------------------------------------------------------------

// SetLatest overwrites the advisory pointer. Concurrent writers may race;
// the last one wins.
func (c *Catalog) SetLatest(id string) error {
	if err := ValidateID(id); err != nil {
		return err
	}
	if err := os.MkdirAll(c.root, 0o755); err != nil {
		return fmt.Errorf("create backup root: %w", err)
	}
	return writeFileAtomic(filepath.Join(c.root, LatestFile), []byte(id+"\n"))
}

// Latest returns the advisory pointer, or "" when it is missing or
// malformed.
func (c *Catalog) Latest() string {
	data, err := os.ReadFile(filepath.Join(c.root, LatestFile))
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			c.logger.Debug("latest pointer unreadable", slog.String("error", err.Error()))
		}
		return ""
	}
	id := strings.TrimSpace(string(data))
	if ValidateID(id) != nil {
		c.logger.Debug("latest pointer malformed", slog.String("value", id))
		return ""
	}
	return id
}

// -----------------------------------------------------------------------------
// Listing
// -----------------------------------------------------------------------------

// Entry is one backup directory.
type Entry struct {
	ID string

	// Status comes from the store's descriptor, else the manifest, else "".
	Status string

	// Collections are the class names recorded for the backup.
	Collections []string

	// Documents is the primary collection count from the manifest, -1 if unknown.
	Documents int64

	// CreatedAt is the descriptor start time, else the directory mtime.
	CreatedAt time.Time

	Manifest   *Manifest
	Descriptor *Descriptor

	// Latest marks the entry the advisory pointer names.
	Latest bool

	// Problems lists files that could not be read.
	Problems []string
}

// List enumerates backup directories, newest first.
//
// Directories that are not valid backup ids are skipped. Unreadable
// descriptors or manifests are reported in Entry.Problems rather than
// failing the listing.
func (c *Catalog) List() ([]Entry, error) {
	dirents, err := os.ReadDir(c.root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []Entry{}, nil
		}
		return nil, fmt.Errorf("read backup root %s: %w", c.root, err)
	}

	latest := c.Latest()
	entries := make([]Entry, 0, len(dirents))
	for _, de := range dirents {
		if !de.IsDir() || ValidateID(de.Name()) != nil {
			continue
		}
		entry := c.load(de.Name())
		if entry.CreatedAt.IsZero() {
			if info, err := de.Info(); err == nil {
				entry.CreatedAt = info.ModTime()
			}
		}
		entry.Latest = entry.ID == latest
		entries = append(entries, entry)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].CreatedAt.After(entries[j].CreatedAt)
		}
		return entries[i].ID > entries[j].ID
	})
	return entries, nil
}

// Get loads one backup entry. The directory must exist.
func (c *Catalog) Get(id string) (Entry, error) {
	if err := ValidateID(id); err != nil {
		return Entry{}, err
	}
	info, err := os.Stat(c.Dir(id))
	if err != nil {
		return Entry{}, fmt.Errorf("backup %s: %w", id, err)
	}
	entry := c.load(id)
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = info.ModTime()
	}
	entry.Latest = c.Latest() == id
	return entry, nil
}

func (c *Catalog) load(id string) Entry {
	entry := Entry{ID: id, Documents: -1}

	desc, err := ReadDescriptor(filepath.Join(c.Dir(id), DescriptorFile))
	switch {
	case err == nil:
		entry.Descriptor = desc
		entry.Status = desc.Status
		entry.Collections = desc.ClassNames()
		entry.CreatedAt = desc.StartedAt
	case !errors.Is(err, os.ErrNotExist):
		entry.Problems = append(entry.Problems, fmt.Sprintf("%s: %v", DescriptorFile, err))
	}

	m, err := c.ReadManifest(id)
	switch {
	case err == nil:
		entry.Manifest = m
		if entry.Status == "" {
			entry.Status = m.Status
		}
		if len(entry.Collections) == 0 {
			entry.Collections = m.CollectionNames()
		}
		if n, ok := m.DocumentCount(m.PrimaryCollection); ok {
			entry.Documents = n
		}
		if entry.CreatedAt.IsZero() {
			entry.CreatedAt = m.StartedAt
		}
	case !errors.Is(err, ErrNoManifest):
		entry.Problems = append(entry.Problems, fmt.Sprintf("%s: %v", ManifestFile, err))
	}

	return entry
}

// writeFileAtomic writes via a temp file and rename so readers never see a
// partial file.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("chmod %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename %s: %w", path, err)
	}
	return nil
}

func decodeJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return nil
}
