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
	"path/filepath"
	"strings"
)

// The identifier mint is a pure function of its inputs: no UUIDs, no
// sequence counters, no wall-clock. Every Generate* function below hashes
// its parts joined by "|", hex-encodes, truncates to 16 hex characters,
// and prefixes the result with a short kind tag so IDs stay printable and
// visually distinguishable in logs and query output.

// normalizePath strips a leading "./" so that equivalent relative paths
// mint identical file IDs regardless of how the scanner expressed them.
func normalizePath(path string) string {
	cleaned := filepath.ToSlash(filepath.Clean(path))
	return strings.TrimPrefix(cleaned, "./")
}

func mint(kind string, parts ...string) string {
	h := sha256.New()
	h.Write([]byte(strings.Join(parts, "|")))
	return kind + ":" + hex.EncodeToString(h.Sum(nil))[:16]
}

// GenerateFileID mints a deterministic ID for a file entity from its
// repo-relative path. Equivalent paths ("./a.go" and "a.go") collide on
// purpose: they name the same file.
func GenerateFileID(path string) string {
	return mint("file", normalizePath(path))
}

// GenerateFunctionID mints a deterministic ID for a function/method entity.
// Signature is accepted for call-site symmetry with the extractor but is
// deliberately excluded from the hash: function identity must stay stable
// when the parser's signature-extraction logic improves, so only file
// path, name, and the declaration's line/column range participate.
func GenerateFunctionID(filePath, name, signature string, startLine, endLine, startCol, endCol int) string {
	_ = signature
	return mint("func",
		normalizePath(filePath),
		anonymize(name, startCol, startLine),
		fmt.Sprintf("%d-%d-%d-%d", startLine, endLine, startCol, endCol),
	)
}

// anonymize substitutes a stable placeholder for an empty name, keyed by
// source position, so two unrelated anonymous declarations in the same
// file never collide.
func anonymize(name string, col, line int) string {
	if name != "" {
		return name
	}
	return fmt.Sprintf("<anon-%d:%d>", line, col)
}
