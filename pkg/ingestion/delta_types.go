// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package ingestion

import "sort"

// FileDelta is the result of comparing the files on disk against the set
// previously recorded in the graph store. Unlike a VCS-based diff this
// carries no base/head commit: membership is determined purely by content
// hash, so it works identically whether or not the repo is under version
// control.
type FileDelta struct {
	// Added are files present on disk but not yet in the store.
	Added []string

	// Modified are files whose on-disk hash no longer matches the stored hash.
	Modified []string

	// Deleted are files present in the store but no longer on disk.
	Deleted []string

	// Renamed maps old_path -> new_path. The content-hash detector never
	// populates this (it has no rename heuristic); it exists so the delta
	// shape stays uniform if a rename-aware detector is added later.
	Renamed map[string]string

	// All is the sorted, deduplicated union of every changed path.
	All []string
}

// FileChangeType classifies how a path changed relative to the store.
type FileChangeType string

const (
	FileAdded    FileChangeType = "added"
	FileModified FileChangeType = "modified"
	FileDeleted  FileChangeType = "deleted"
	FileRenamed  FileChangeType = "renamed"
)

// ChangeType returns the classification for a path, or "" if the path isn't
// part of this delta.
func (d *FileDelta) ChangeType(path string) FileChangeType {
	for _, p := range d.Added {
		if p == path {
			return FileAdded
		}
	}
	for _, p := range d.Modified {
		if p == path {
			return FileModified
		}
	}
	for _, p := range d.Deleted {
		if p == path {
			return FileDeleted
		}
	}
	for oldPath, newPath := range d.Renamed {
		if newPath == path {
			return FileRenamed
		}
		if oldPath == path {
			return FileDeleted
		}
	}
	return ""
}

// HasChanges reports whether the delta touches any file at all.
func (d *FileDelta) HasChanges() bool {
	return len(d.All) > 0
}

// DeltaStats summarizes a delta for progress reporting and logging.
type DeltaStats struct {
	AddedCount    int
	ModifiedCount int
	DeletedCount  int
	RenamedCount  int
	TotalChanged  int
}

// GetStats computes summary counts for the delta.
func (d *FileDelta) GetStats() DeltaStats {
	return DeltaStats{
		AddedCount:    len(d.Added),
		ModifiedCount: len(d.Modified),
		DeletedCount:  len(d.Deleted),
		RenamedCount:  len(d.Renamed),
		TotalChanged:  len(d.All),
	}
}

// rebuildAllList reconstructs the All list from the Added/Modified/Deleted/
// Renamed buckets, sorted and deduplicated.
func rebuildAllList(d *FileDelta) {
	allSet := make(map[string]bool)
	for _, p := range d.Added {
		allSet[p] = true
	}
	for _, p := range d.Modified {
		allSet[p] = true
	}
	for _, p := range d.Deleted {
		allSet[p] = true
	}
	for oldPath, newPath := range d.Renamed {
		allSet[oldPath] = true
		allSet[newPath] = true
	}
	d.All = make([]string, 0, len(allSet))
	for p := range allSet {
		d.All = append(d.All, p)
	}
	sort.Strings(d.All)
}

// sortDeltaLists sorts every bucket so repeated runs over the same change
// set produce byte-identical deltas.
func sortDeltaLists(d *FileDelta) {
	sort.Strings(d.Added)
	sort.Strings(d.Modified)
	sort.Strings(d.Deleted)
}
