// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package catalog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// ManifestVersion is the current manifest schema version.
const ManifestVersion = 1

// Manifest is what the controller recorded about a successful backup.
type Manifest struct {
	Version int    `json:"version"`
	ID      string `json:"id"`
	Backend string `json:"backend"`
	Status  string `json:"status"`
	Path    string `json:"path,omitempty"`

	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`

	// PrimaryCollection is the collection the verifier checks by default.
	PrimaryCollection string `json:"primary_collection,omitempty"`

	// Collections maps collection name to object count at backup time.
	// -1 means the count could not be determined.
	Collections map[string]int64 `json:"collections"`
}

// CollectionNames returns the recorded collection names, sorted.
func (m *Manifest) CollectionNames() []string {
	names := make([]string, 0, len(m.Collections))
	for name := range m.Collections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DocumentCount returns the recorded count for name when it is known.
func (m *Manifest) DocumentCount(name string) (int64, bool) {
	n, ok := m.Collections[name]
	if !ok || n < 0 {
		return 0, false
	}
	return n, true
}

// WriteManifest stores m under its backup directory, creating the
// directory when needed.
func (c *Catalog) WriteManifest(m Manifest) error {
	if err := ValidateID(m.ID); err != nil {
		return err
	}
	if m.Version == 0 {
		m.Version = ManifestVersion
	}
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	dir := c.Dir(m.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create backup dir: %w", err)
	}
	return writeFileAtomic(filepath.Join(dir, ManifestFile), append(data, '\n'))
}

// ReadManifest loads the manifest for id. A missing file returns
// ErrNoManifest.
func (c *Catalog) ReadManifest(id string) (*Manifest, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}
	var m Manifest
	if err := decodeJSON(filepath.Join(c.Dir(id), ManifestFile), &m); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w for %s", ErrNoManifest, id)
		}
		return nil, err
	}
	if m.ID != "" && m.ID != id {
		return nil, fmt.Errorf("manifest in %s names backup %q", id, m.ID)
	}
	return &m, nil
}

// -----------------------------------------------------------------------------
// Store Descriptor
// -----------------------------------------------------------------------------

// Descriptor is the subset of the store's backup_config.json the catalog
// reads. Unknown fields are ignored; older and newer layouts both parse.
type Descriptor struct {
	ID          string                    `json:"id"`
	Status      string                    `json:"status"`
	Error       string                    `json:"error"`
	StartedAt   time.Time                 `json:"startedAt"`
	CompletedAt time.Time                 `json:"completedAt"`
	Version     string                    `json:"version"`
	Classes     []classRef                `json:"classes"`
	Nodes       map[string]nodeDescriptor `json:"nodes"`
}

type nodeDescriptor struct {
	Classes []classRef `json:"classes"`
	Status  string     `json:"status"`
}

// classRef accepts either a bare class name or an object with a "name"
// field.
type classRef string

func (r *classRef) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err == nil {
		*r = classRef(name)
		return nil
	}
	var obj struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("class entry: %w", err)
	}
	*r = classRef(obj.Name)
	return nil
}

// ReadDescriptor parses a backup_config.json file.
func ReadDescriptor(path string) (*Descriptor, error) {
	var d Descriptor
	if err := decodeJSON(path, &d); err != nil {
		return nil, err
	}
	d.Status = strings.ToUpper(strings.TrimSpace(d.Status))
	return &d, nil
}

// ClassNames returns the distinct class names across the descriptor and
// its nodes, sorted.
func (d *Descriptor) ClassNames() []string {
	seen := make(map[string]struct{})
	add := func(refs []classRef) {
		for _, r := range refs {
			if r != "" {
				seen[string(r)] = struct{}{}
			}
		}
	}
	add(d.Classes)
	for _, n := range d.Nodes {
		add(n.Classes)
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
