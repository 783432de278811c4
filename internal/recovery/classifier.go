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

import "github.com/AleutianAI/AleutianDR/internal/store"

// Assessment is the classifier's verdict on a Census.
type Assessment struct {
	// Blocking lists every collection that would collide with a restore.
	// Any existing collection blocks, empty or not.
	Blocking []string

	// Populated lists the blocking collections that hold (or might hold) data.
	Populated []string

	// HasData is true when at least one blocking collection is populated.
	HasData bool

	// Counts carries the census counts for display.
	Counts map[string]store.ObjectCount
}

// Clear reports whether nothing blocks a restore.
func (a Assessment) Clear() bool {
	return len(a.Blocking) == 0
}

// Classify reduces a census to the blocking list and the hasData verdict.
// It is pure.
func Classify(c Census) Assessment {
	a := Assessment{
		Blocking:  make([]string, 0, len(c.Entries)),
		Populated: []string{},
		Counts:    c.Counts(),
	}
	for _, e := range c.Entries {
		a.Blocking = append(a.Blocking, e.Name)
		if e.Count.Populated() {
			a.Populated = append(a.Populated, e.Name)
		}
	}
	a.HasData = len(a.Populated) > 0
	return a
}
