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

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/AutoRail-AI/code-synapse/pkg/storage"
)

// HashDeltaDetector is the incremental updater's change-detection half
// (component G): it compares the content hash recorded for each file the
// last time it was indexed against the hash on disk today. It needs no
// VCS and no separate state file — the graph store itself is the record of
// what was last indexed.
type HashDeltaDetector struct {
	logger   *slog.Logger
	repoPath string
	backend  *storage.EmbeddedBackend
}

// NewHashDeltaDetector creates a hash-based delta detector.
func NewHashDeltaDetector(repoPath string, backend *storage.EmbeddedBackend, logger *slog.Logger) *HashDeltaDetector {
	if logger == nil {
		logger = slog.Default()
	}
	return &HashDeltaDetector{
		logger:   logger,
		repoPath: repoPath,
		backend:  backend,
	}
}

// FileHashState is the hash recorded for one file on a previous run.
type FileHashState struct {
	Path string
	Hash string
}

// DetectChanges compares the files discovered by the scanner against the
// hashes recorded in the store and classifies each path as added, modified,
// or deleted. A file whose hash did not change is omitted entirely: it
// needs no re-extraction, satisfying spec's "unchanged files are skipped
// entirely" requirement.
func (hd *HashDeltaDetector) DetectChanges(ctx context.Context, currentFiles []FileInfo) (*FileDelta, error) {
	delta := &FileDelta{
		Renamed: make(map[string]string),
	}

	storedHashes, err := hd.loadStoredHashes(ctx)
	if err != nil {
		return nil, fmt.Errorf("load stored hashes: %w", err)
	}

	currentMap := make(map[string]FileInfo, len(currentFiles))
	for _, f := range currentFiles {
		currentMap[f.Path] = f
	}

	storedMap := make(map[string]string, len(storedHashes))
	for _, s := range storedHashes {
		storedMap[s.Path] = s.Hash
	}

	hd.logger.Info("hash_delta.compare",
		"stored_files", len(storedMap),
		"current_files", len(currentFiles),
	)

	stateDir := filepath.Join(hd.repoPath, ".synapse")

	for _, current := range currentFiles {
		storedHash, exists := storedMap[current.Path]
		if !exists {
			delta.Added = append(delta.Added, current.Path)
			AppendIndexLog(stateDir, fmt.Sprintf("added %s", current.Path))
			continue
		}
		hash := current.Hash
		if hash == "" {
			var hashErr error
			hash, hashErr = hd.computeFileHash(current.FullPath)
			if hashErr != nil {
				hd.logger.Warn("hash_delta.hash_failed", "path", current.Path, "err", hashErr)
				AppendIndexLog(stateDir, fmt.Sprintf("hash_failed %s: %v", current.Path, hashErr))
				continue
			}
		}
		if hash != storedHash {
			delta.Modified = append(delta.Modified, current.Path)
			AppendIndexLog(stateDir, fmt.Sprintf("modified %s", current.Path))
		}
	}

	for _, stored := range storedHashes {
		if _, exists := currentMap[stored.Path]; !exists {
			delta.Deleted = append(delta.Deleted, stored.Path)
			AppendIndexLog(stateDir, fmt.Sprintf("deleted %s", stored.Path))
		}
	}

	sortDeltaLists(delta)
	rebuildAllList(delta)
	hd.logger.Info("hash_delta.complete",
		"added", len(delta.Added),
		"modified", len(delta.Modified),
		"deleted", len(delta.Deleted),
	)

	return delta, nil
}

// loadStoredHashes retrieves every file's recorded path+hash from the store.
func (hd *HashDeltaDetector) loadStoredHashes(ctx context.Context) ([]FileHashState, error) {
	query := `?[path, hash] := *cie_file { path, hash }`

	result, err := hd.backend.Query(ctx, query)
	if err != nil {
		hd.logger.Warn("hash_delta.load_hashes_error", "err", err)
		return nil, fmt.Errorf("query file hashes: %w", err)
	}

	var states []FileHashState
	for _, row := range result.Rows {
		if len(row) >= 2 {
			path, _ := row[0].(string)
			hash, _ := row[1].(string)
			if path != "" && hash != "" {
				states = append(states, FileHashState{Path: path, Hash: hash})
			}
		}
	}

	return states, nil
}

// computeFileHash hashes a file's content directly. Used as a fallback when
// the caller's FileInfo didn't already carry a hash.
func (hd *HashDeltaDetector) computeFileHash(fullPath string) (string, error) {
	content, err := os.ReadFile(fullPath) //nolint:gosec // G304: path comes from the repo scanner, not user input
	if err != nil {
		return "", err
	}
	hash := sha256.Sum256(content)
	return hex.EncodeToString(hash[:]), nil
}

// IsAvailable reports whether the detector has a usable backend.
func (hd *HashDeltaDetector) IsAvailable() bool {
	return hd.backend != nil
}
