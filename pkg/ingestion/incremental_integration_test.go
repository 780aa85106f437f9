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

//go:build cgo

package ingestion

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

// TestIncrementalIndexing_HashDelta runs a full index, then edits the repo
// on disk (no VCS involved) and re-runs, verifying that only the added and
// modified files were re-extracted and the deleted file's entities were
// torn down.
func TestIncrementalIndexing_HashDelta(t *testing.T) {
	testDir := t.TempDir()
	repoDir := filepath.Join(testDir, "testrepo")
	dataDir := filepath.Join(testDir, "data")

	writeFile(t, filepath.Join(repoDir, "main.go"), `package main

func main() {
	Hello()
	Greet("world")
}
`)
	writeFile(t, filepath.Join(repoDir, "hello.go"), `package main

import "fmt"

func Hello() {
	fmt.Println("Hello!")
}

func Greet(name string) {
	fmt.Printf("Hello, %s!\n", name)
}
`)
	writeFile(t, filepath.Join(repoDir, "utils.go"), `package main

func Add(a, b int) int {
	return a + b
}

func Multiply(a, b int) int {
	return a * b
}
`)

	cfg := Config{
		ProjectID: "test-incremental",
		RepoPath:  repoDir,
		IngestionConfig: IngestionConfig{
			StorePath:           dataDir,
			StoreEngine:         "mem",
			EmbeddingProvider:   "mock",
			EmbeddingDimensions: 384,
			MaxFileSizeBytes:    1048576,
			Concurrency:         ConcurrencyConfig{ParseWorkers: 2, EmbedWorkers: 2},
		},
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	ctx := context.Background()

	pipeline, err := NewLocalPipeline(cfg, logger)
	if err != nil {
		t.Fatalf("failed to create pipeline: %v", err)
	}
	defer pipeline.Close()

	result1, err := pipeline.Run(ctx)
	if err != nil {
		t.Fatalf("first indexing run failed: %v", err)
	}
	t.Logf("First run: %d files, %d functions", result1.FilesProcessed, result1.FunctionsExtracted)

	if result1.FilesProcessed != 3 {
		t.Errorf("expected 3 files processed in first run, got %d", result1.FilesProcessed)
	}
	if result1.FunctionsExtracted != 5 {
		t.Errorf("expected 5 functions extracted (main, Hello, Greet, Add, Multiply), got %d", result1.FunctionsExtracted)
	}

	allFuncsQuery := `?[name, file_path] := *cie_function{name, file_path}`
	allFuncsResult, err := pipeline.backend.Query(ctx, allFuncsQuery)
	if err != nil {
		t.Fatalf("failed to query all functions: %v", err)
	}
	if len(allFuncsResult.Rows) != 5 {
		t.Errorf("expected 5 functions in database after first run, got %d", len(allFuncsResult.Rows))
	}

	markedAt, err := pipeline.backend.GetLastIndexedAt()
	if err != nil {
		t.Fatalf("failed to get last-indexed marker: %v", err)
	}
	if markedAt == "" {
		t.Fatal("expected a last-indexed timestamp after first run")
	}

	// Add a file, modify a file, delete a file.
	writeFile(t, filepath.Join(repoDir, "new_file.go"), `package main

func NewFunction() string {
	return "I'm new!"
}
`)
	writeFile(t, filepath.Join(repoDir, "hello.go"), `package main

import "fmt"

func Hello() {
	fmt.Println("Hello, World!")
}

func Greet(name string) {
	fmt.Printf("Hello, %s!\n", name)
}

func Goodbye() {
	fmt.Println("Goodbye!")
}
`)
	if err := os.Remove(filepath.Join(repoDir, "utils.go")); err != nil {
		t.Fatalf("failed to remove utils.go: %v", err)
	}

	result2, err := pipeline.Run(ctx)
	if err != nil {
		t.Fatalf("second indexing run failed: %v", err)
	}
	t.Logf("Second run: %d files, %d functions", result2.FilesProcessed, result2.FunctionsExtracted)

	if !result2.Incremental {
		t.Error("expected second run to report Incremental=true")
	}
	if result2.FilesProcessed != 2 {
		t.Errorf("expected 2 files processed in incremental run (new_file.go + hello.go), got %d", result2.FilesProcessed)
	}
	if result2.FilesDeleted != 1 {
		t.Errorf("expected 1 file deleted (utils.go), got %d", result2.FilesDeleted)
	}

	// utils.go's functions should be gone.
	utilsResult, err := pipeline.backend.Query(ctx, `?[name] := *cie_function{name, file_path}, file_path = "utils.go"`)
	if err != nil {
		t.Fatalf("failed to query utils.go functions: %v", err)
	}
	if len(utilsResult.Rows) != 0 {
		t.Errorf("expected 0 functions from deleted utils.go, got %d", len(utilsResult.Rows))
	}

	newFileResult, err := pipeline.backend.Query(ctx, `?[name] := *cie_function{name, file_path}, file_path = "new_file.go"`)
	if err != nil {
		t.Fatalf("failed to query new_file.go functions: %v", err)
	}
	if len(newFileResult.Rows) != 1 {
		t.Errorf("expected 1 function from new_file.go, got %d", len(newFileResult.Rows))
	}

	helloResult, err := pipeline.backend.Query(ctx, `?[name] := *cie_function{name, file_path}, file_path = "hello.go"`)
	if err != nil {
		t.Fatalf("failed to query hello.go functions: %v", err)
	}
	if len(helloResult.Rows) != 3 {
		t.Errorf("expected 3 functions from hello.go (Hello, Greet, Goodbye), got %d", len(helloResult.Rows))
	}

	mainResult, err := pipeline.backend.Query(ctx, `?[name] := *cie_function{name, file_path}, file_path = "main.go"`)
	if err != nil {
		t.Fatalf("failed to query main.go functions: %v", err)
	}
	if len(mainResult.Rows) != 1 {
		t.Errorf("expected 1 function from unchanged main.go, got %d", len(mainResult.Rows))
	}

	allFuncsResult, err = pipeline.backend.Query(ctx, allFuncsQuery)
	if err != nil {
		t.Fatalf("failed to query all functions after incremental run: %v", err)
	}
	if len(allFuncsResult.Rows) != 5 {
		t.Errorf("expected 5 functions after incremental run (main, Hello, Greet, Goodbye, NewFunction), got %d", len(allFuncsResult.Rows))
		for _, row := range allFuncsResult.Rows {
			t.Logf("  function: %v", row)
		}
	}
}

// TestIncrementalIndexing_NoChanges verifies that a re-run with nothing
// changed on disk processes zero files.
func TestIncrementalIndexing_NoChanges(t *testing.T) {
	testDir := t.TempDir()
	repoDir := filepath.Join(testDir, "testrepo")
	dataDir := filepath.Join(testDir, "data")

	writeFile(t, filepath.Join(repoDir, "main.go"), `package main

func main() {
	println("hello")
}
`)

	cfg := Config{
		ProjectID: "test-no-changes",
		RepoPath:  repoDir,
		IngestionConfig: IngestionConfig{
			StorePath:           dataDir,
			StoreEngine:         "mem",
			EmbeddingProvider:   "mock",
			EmbeddingDimensions: 384,
			MaxFileSizeBytes:    1048576,
			Concurrency:         ConcurrencyConfig{ParseWorkers: 2, EmbedWorkers: 2},
		},
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	ctx := context.Background()

	pipeline, err := NewLocalPipeline(cfg, logger)
	if err != nil {
		t.Fatalf("failed to create pipeline: %v", err)
	}
	defer pipeline.Close()

	result1, err := pipeline.Run(ctx)
	if err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	if result1.FilesProcessed != 1 {
		t.Errorf("expected 1 file processed in first run, got %d", result1.FilesProcessed)
	}

	markedAt1, err := pipeline.backend.GetLastIndexedAt()
	if err != nil {
		t.Fatalf("failed to get marker after first run: %v", err)
	}
	if markedAt1 == "" {
		t.Fatal("expected marker to be set after first run")
	}

	result2, err := pipeline.Run(ctx)
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if result2.FilesProcessed != 0 {
		t.Errorf("expected 0 files processed when nothing changed, got %d", result2.FilesProcessed)
	}

	funcResult, err := pipeline.backend.Query(ctx, `?[name] := *cie_function{name}`)
	if err != nil {
		t.Fatalf("failed to query functions: %v", err)
	}
	if len(funcResult.Rows) != 1 {
		t.Errorf("expected 1 function still in the store, got %d", len(funcResult.Rows))
	}
}

// TestIncrementalIndexing_ForceReindex verifies that ForceReindex bypasses
// hash-based delta detection and re-parses every discovered file.
func TestIncrementalIndexing_ForceReindex(t *testing.T) {
	testDir := t.TempDir()
	repoDir := filepath.Join(testDir, "testrepo")
	dataDir := filepath.Join(testDir, "data")

	writeFile(t, filepath.Join(repoDir, "main.go"), `package main

func main() {
	println("hello")
}

func Helper() {
	println("helper")
}
`)

	cfg := Config{
		ProjectID: "test-force-reindex",
		RepoPath:  repoDir,
		IngestionConfig: IngestionConfig{
			StorePath:           dataDir,
			StoreEngine:         "mem",
			EmbeddingProvider:   "mock",
			EmbeddingDimensions: 384,
			MaxFileSizeBytes:    1048576,
			Concurrency:         ConcurrencyConfig{ParseWorkers: 2, EmbedWorkers: 2},
		},
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	ctx := context.Background()

	pipeline, err := NewLocalPipeline(cfg, logger)
	if err != nil {
		t.Fatalf("failed to create pipeline: %v", err)
	}
	defer pipeline.Close()

	result1, err := pipeline.Run(ctx)
	if err != nil {
		t.Fatalf("first run failed: %v", err)
	}

	pipeline.config.IngestionConfig.ForceReindex = true

	result2, err := pipeline.Run(ctx)
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if result2.FilesProcessed != result1.FilesProcessed {
		t.Errorf("expected forced reindex to process %d files, got %d", result1.FilesProcessed, result2.FilesProcessed)
	}
	if result2.Incremental {
		t.Error("expected a forced reindex to report Incremental=false")
	}
}

// writeFile writes content to a file, creating parent directories if needed.
func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create directory for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write file %s: %v", path, err)
	}
}
