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

// Config holds configuration for the ingestion pipeline.
type Config struct {
	// ProjectID is the target project identifier within the local store.
	ProjectID string

	// RepoPath is the filesystem path to the repository root to scan.
	RepoPath string

	// IngestionConfig controls parsing, embedding, and batching behavior.
	IngestionConfig IngestionConfig
}

// IngestionConfig controls the ingestion pipeline behavior.
type IngestionConfig struct {
	// ParserMode specifies which parser to use: "treesitter", "simplified", or "auto".
	// Auto mode uses Tree-sitter if available, falling back to the simplified
	// regex-based parser.
	ParserMode ParserMode

	// LanguagesSupported is a list of language identifiers for Tree-sitter parsing.
	// Empty list means auto-detect from file extensions.
	LanguagesSupported []string

	// EmbeddingProvider specifies the embedding generation provider.
	// "null" always returns zero vectors and is the default: the embedding
	// producer is an external collaborator, not part of the core.
	EmbeddingProvider string

	// EmbeddingDimensions is the vector size for embeddings.
	EmbeddingDimensions int

	// BatchTargetMutations is the target number of mutations per write batch.
	BatchTargetMutations int

	// MaxFileSizeBytes is the maximum file size to process (default: 1MB).
	// Files exceeding this are skipped with a warning.
	MaxFileSizeBytes int64

	// MaxCodeTextBytes is the maximum size for function code_text (default: 100KB).
	// CodeText exceeding this is truncated with a warning.
	MaxCodeTextBytes int64

	// ExcludeGlobs are doublestar glob patterns for files/directories to
	// exclude. Supports full glob syntax: *, **, ?, [abc], [a-z], [!abc].
	ExcludeGlobs []string

	// IncludeGlobs restricts the scan to files matching at least one
	// pattern. Empty means "all files not excluded".
	IncludeGlobs []string

	// Concurrency controls worker pools.
	Concurrency ConcurrencyConfig

	// StorePath is the directory where the local CozoDB store keeps its
	// data. Defaults to ~/.synapse/data/<project_id>.
	StorePath string

	// StoreEngine is the CozoDB storage engine.
	// Options: "rocksdb" (default), "sqlite", or "mem".
	StoreEngine string

	// ContinueOnError controls whether a per-file write failure aborts the
	// coordinator (false) or is collected and indexing continues (true).
	ContinueOnError bool

	// ForceReindex disables hash-based delta detection and re-parses every
	// file the scanner discovers, even when its content hash matches what
	// is already recorded in the store.
	ForceReindex bool
}

// ConcurrencyConfig controls worker pool sizes.
type ConcurrencyConfig struct {
	ParseWorkers int // Number of parallel file parsers
	EmbedWorkers int // Number of parallel embedding generators
	BatchSize    int // Files per coordinator batch
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() IngestionConfig {
	return IngestionConfig{
		ParserMode:           ParserModeAuto, // Use Tree-sitter if available
		LanguagesSupported:   []string{},     // Auto-detect
		EmbeddingProvider:    "null",         // No embedding producer wired by default
		EmbeddingDimensions:  384,
		BatchTargetMutations: 2000,
		MaxFileSizeBytes:     1048576, // 1MB
		MaxCodeTextBytes:     102400,  // 100KB (balance between coverage and performance)
		ExcludeGlobs: []string{
			// Version control
			"**/.git/**",
			// Dependencies
			"**/node_modules/**", "**/vendor/**",
			// Build outputs
			"**/dist/**", "**/build/**", "**/bin/**", "**/out/**",
			// IDE and editor
			"**/.idea/**", "**/.vscode/**", "**/*.swp", "**/*.swo",
			// Next.js / React
			"**/.next/**", "**/.nuxt/**",
			// This tool's own state
			"**/.synapse/**",
			// Compiled binaries and objects
			"**/*.o", "**/*.so", "**/*.dylib", "**/*.exe", "**/*.dll", "**/*.a",
			// Large generated/cache files
			"**/*.pack", "**/*.pack.gz", "**/*.pack.old",
			// Common cache directories
			"**/.cache/**", "**/coverage/**", "**/tmp/**", "**/.tmp/**",
			// Minified files (usually not useful to index)
			"**/*.min.js", "**/*.min.css",
			// Lock files (not code)
			"**/package-lock.json", "**/yarn.lock", "**/pnpm-lock.yaml", "**/go.sum",
		},
		Concurrency: ConcurrencyConfig{ParseWorkers: 4, EmbedWorkers: 8, BatchSize: 10},
		StoreEngine: "rocksdb",
	}
}
