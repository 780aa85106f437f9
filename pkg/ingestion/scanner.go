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
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// FileInfo describes one file discovered by the scanner.
type FileInfo struct {
	ID       string // GenerateFileID(Path)
	Path     string // Repo-relative, slash-separated
	FullPath string // Absolute filesystem path
	Ext      string
	Size     int64
	ModTime  int64 // Unix seconds
	Hash     string // SHA-256 hex, empty if hashing was skipped
	Language string
}

// LoadResult is the output of a full repository scan.
type LoadResult struct {
	RootPath    string
	Files       []FileInfo
	SkipReasons map[string]int // reason -> count, for files that were skipped
}

// RepoLoader discovers files under a project root matching include/exclude
// glob patterns, in the shape spec.md §4.B names "the file scanner".
type RepoLoader struct {
	logger *slog.Logger
}

// NewRepoLoader creates a file scanner.
func NewRepoLoader(logger *slog.Logger) *RepoLoader {
	if logger == nil {
		logger = slog.Default()
	}
	return &RepoLoader{logger: logger}
}

// Close releases scanner resources. The filesystem-backed scanner holds
// none, but the method exists so LocalPipeline/Coordinator can treat every
// component uniformly.
func (r *RepoLoader) Close() error { return nil }

var languageByExt = map[string]string{
	".go":   "go",
	".py":   "python",
	".js":   "javascript",
	".jsx":  "javascript",
	".mjs":  "javascript",
	".cjs":  "javascript",
	".ts":   "typescript",
	".tsx":  "typescript",
}

func detectLanguage(path string) string {
	if lang, ok := languageByExt[strings.ToLower(filepath.Ext(path))]; ok {
		return lang
	}
	return ""
}

func matchesAny(patterns []string, relPath string) bool {
	for _, pat := range patterns {
		if ok, err := doublestar.Match(pat, relPath); err == nil && ok {
			return true
		}
	}
	return false
}

// LoadRepository performs a batch scan: it walks rootPath once and returns
// every file that isn't excluded, with content hashes computed for files
// under maxFileSize. Results are ordered deterministically by relative
// path, as spec.md §4.B requires.
func (r *RepoLoader) LoadRepository(rootPath string, excludeGlobs, includeGlobs []string, maxFileSize int64) (*LoadResult, error) {
	result := &LoadResult{
		RootPath:    rootPath,
		SkipReasons: make(map[string]int),
	}

	err := filepath.WalkDir(rootPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable entry: non-fatal, skip and keep walking.
			result.SkipReasons["unreadable"]++
			r.logger.Warn("scanner.walk.error", "path", path, "err", err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(rootPath, path)
		if err != nil {
			rel = path
		}
		rel = filepath.ToSlash(rel)

		if matchesAny(excludeGlobs, rel) {
			result.SkipReasons["excluded"]++
			return nil
		}
		if len(includeGlobs) > 0 && !matchesAny(includeGlobs, rel) {
			return nil
		}

		lang := detectLanguage(rel)
		if lang == "" {
			result.SkipReasons["unsupported_language"]++
			return nil
		}

		info, err := d.Info()
		if err != nil {
			result.SkipReasons["unreadable"]++
			r.logger.Warn("scanner.stat.error", "path", rel, "err", err)
			return nil
		}
		if maxFileSize > 0 && info.Size() > maxFileSize {
			result.SkipReasons["too_large"]++
			return nil
		}

		hash, err := hashFile(path)
		if err != nil {
			result.SkipReasons["unreadable"]++
			r.logger.Warn("scanner.hash.error", "path", rel, "err", err)
			return nil
		}

		result.Files = append(result.Files, FileInfo{
			ID:       GenerateFileID(rel),
			Path:     rel,
			FullPath: path,
			Ext:      filepath.Ext(rel),
			Size:     info.Size(),
			ModTime:  info.ModTime().Unix(),
			Hash:     hash,
			Language: lang,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", rootPath, err)
	}

	sort.Slice(result.Files, func(i, j int) bool {
		return result.Files[i].Path < result.Files[j].Path
	})

	return result, nil
}

// Stream scans the repository and yields descriptors as they are
// discovered, without materializing the full list. Unlike LoadRepository
// this does not sort: callers that need determinism should drain into a
// slice and sort by Path themselves, or use LoadRepository.
func (r *RepoLoader) Stream(rootPath string, excludeGlobs, includeGlobs []string, maxFileSize int64, yield func(FileInfo) error) error {
	return filepath.WalkDir(rootPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			r.logger.Warn("scanner.walk.error", "path", path, "err", err)
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(rootPath, path)
		if err != nil {
			rel = path
		}
		rel = filepath.ToSlash(rel)

		if matchesAny(excludeGlobs, rel) {
			return nil
		}
		if len(includeGlobs) > 0 && !matchesAny(includeGlobs, rel) {
			return nil
		}
		lang := detectLanguage(rel)
		if lang == "" {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			r.logger.Warn("scanner.stat.error", "path", rel, "err", err)
			return nil
		}
		if maxFileSize > 0 && info.Size() > maxFileSize {
			return nil
		}

		hash, err := hashFile(path)
		if err != nil {
			r.logger.Warn("scanner.hash.error", "path", rel, "err", err)
			return nil
		}

		return yield(FileInfo{
			ID:       GenerateFileID(rel),
			Path:     rel,
			FullPath: path,
			Ext:      filepath.Ext(rel),
			Size:     info.Size(),
			ModTime:  info.ModTime().Unix(),
			Hash:     hash,
			Language: lang,
		})
	})
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
