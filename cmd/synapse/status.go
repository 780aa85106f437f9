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

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/AutoRail-AI/code-synapse/internal/errors"
	"github.com/AutoRail-AI/code-synapse/internal/ui"
	"github.com/AutoRail-AI/code-synapse/pkg/storage"
)

// StatusResult represents the project status for JSON output.
type StatusResult struct {
	ProjectID  string    `json:"project_id"`
	DataDir    string    `json:"data_dir"`
	Connected  bool      `json:"connected"`
	Files      int       `json:"files"`
	Functions  int       `json:"functions"`
	Types      int       `json:"types"`
	Embeddings int       `json:"embeddings"`
	CallEdges  int       `json:"call_edges"`
	Error      string    `json:"error,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// runStatus executes the 'status' CLI command, displaying project index
// statistics by querying the local CozoDB database for entity counts.
func runStatus(args []string, configPath string, globals GlobalFlags) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		errors.FatalError(err, globals.JSON)
	}

	fs := flag.NewFlagSet("status", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: synapse status [options]

Description:
  Display the current status of the project including indexing
  statistics and database health.

  Queries the local CozoDB database to count indexed entities: files,
  functions, types, embeddings, and call graph edges.

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  synapse status
  synapse status --json
  synapse status --json | jq '.functions'

Output Fields:
  - Files:         Number of source files indexed
  - Functions:     Number of functions/methods extracted
  - Types:         Number of types (structs, interfaces, classes)
  - Embeddings:    Number of semantic embeddings generated
  - Call Edges:    Number of function call relationships

`)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	dataDir, err := projectDataDir(cfg, configPath)
	if err != nil {
		errors.FatalError(err, globals.JSON)
	}

	result := &StatusResult{
		ProjectID: cfg.ProjectID,
		DataDir:   dataDir,
		Timestamp: time.Now(),
	}

	if _, err := os.Stat(dataDir); os.IsNotExist(err) {
		result.Connected = false
		result.Error = "Project not indexed yet. Run 'synapse index' first."
		if globals.JSON {
			outputStatusJSON(result)
		} else {
			ui.Warningf("Project '%s' not indexed yet.", cfg.ProjectID)
			ui.Info("Run 'synapse index' to index the repository.")
		}
		os.Exit(0)
	}

	storeEngine := cfg.Indexing.StoreEngine
	if storeEngine == "" {
		storeEngine = "rocksdb"
	}
	dim := cfg.Embedding.Dimensions
	if dim <= 0 {
		dim = 384
	}

	backend, err := storage.NewEmbeddedBackend(storage.EmbeddedConfig{
		DataDir:             dataDir,
		Engine:              storeEngine,
		ProjectID:           cfg.ProjectID,
		EmbeddingDimensions: dim,
	})
	if err != nil {
		errors.FatalError(errors.NewDatabaseError(
			"Cannot open project database",
			"The database file may be corrupted, locked by another process, or permission denied",
			"Try running 'synapse status' again, or run 'synapse reset' to rebuild the index",
			err,
		), globals.JSON)
	}
	defer func() { _ = backend.Close() }()

	result.Connected = true
	ctx := context.Background()

	result.Files = queryLocalCount(ctx, backend, "cie_file", "id")
	result.Functions = queryLocalCount(ctx, backend, "cie_function", "id")
	result.Types = queryLocalCount(ctx, backend, "cie_type", "id")
	result.Embeddings = queryLocalCount(ctx, backend, "cie_function_embedding", "function_id")
	result.CallEdges = queryLocalCount(ctx, backend, "cie_calls", "id")

	if globals.JSON {
		outputStatusJSON(result)
	} else {
		printLocalStatus(result)
	}
}

// queryLocalCount executes a Datalog count query against the local database,
// returning 0 if the query fails or returns no results.
func queryLocalCount(ctx context.Context, backend *storage.EmbeddedBackend, table, pkField string) int {
	script := fmt.Sprintf("?[count(%s)] := *%s { %s }", pkField, table, pkField)
	result, err := backend.Query(ctx, script)
	if err != nil {
		return 0
	}

	if len(result.Rows) == 0 || len(result.Rows[0]) == 0 {
		return 0
	}

	switch v := result.Rows[0][0].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	default:
		return 0
	}
}

// outputStatusJSON writes the status result as formatted JSON to stdout.
func outputStatusJSON(result *StatusResult) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(result)
}

// printLocalStatus prints the status result as formatted text to stdout.
func printLocalStatus(result *StatusResult) {
	ui.Header("Project Status")
	fmt.Printf("%s    %s\n", ui.Label("Project ID:"), result.ProjectID)
	fmt.Printf("%s      %s\n", ui.Label("Data Dir:"), ui.DimText(result.DataDir))
	fmt.Println()

	ui.SubHeader("Entities:")
	fmt.Printf("  Files:         %s\n", ui.CountText(result.Files))
	fmt.Printf("  Functions:     %s\n", ui.CountText(result.Functions))
	fmt.Printf("  Types:         %s\n", ui.CountText(result.Types))
	fmt.Printf("  Embeddings:    %s\n", ui.CountText(result.Embeddings))
	fmt.Printf("  Call Edges:    %s\n", ui.CountText(result.CallEdges))

	if result.Error != "" {
		fmt.Println()
		ui.Warning(result.Error)
	}
}
