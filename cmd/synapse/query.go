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
	"strings"
	"text/tabwriter"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/AutoRail-AI/code-synapse/internal/errors"
	"github.com/AutoRail-AI/code-synapse/pkg/storage"
)

// runQuery executes the 'query' CLI command, running a CozoScript query
// against the local indexed codebase database.
//
// Command-specific flags:
//   - --timeout: Query timeout duration (default: 30s)
//   - --limit: Add :limit clause to query (default: 0, no limit)
func runQuery(args []string, configPath string, globals GlobalFlags) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		errors.FatalError(err, globals.JSON)
	}

	fs := flag.NewFlagSet("query", flag.ExitOnError)
	timeout := fs.Duration("timeout", 30*time.Second, "Query timeout")
	limit := fs.Int("limit", 0, "Add :limit to query (0 = no limit)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: synapse query [options] <cozoscript>

Description:
  Execute a CozoScript query against the indexed codebase database.

  CozoScript is a Datalog-based query language that allows powerful
  graph queries over your code structure.

  Results can be formatted as tables (default) or JSON for programmatic use.

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  synapse query "?[name, file] := *cie_function{ name, file_path: file }" --limit 10
  synapse query "?[name] := *cie_function{ name }, regex_matches(name, '(?i)embed')"
  synapse query "?[count(id)] := *cie_file{ id }"
  synapse query "?[caller] := *cie_calls{ caller_id, callee_id },
    *cie_function{ id: callee_id, name: 'NewPipeline' },
    *cie_function{ id: caller_id, name: caller }"
  synapse query "?[name] := *cie_function{ name }" --json | jq '.rows[][0]'

Notes:
  Query timeout defaults to 30s. Increase with --timeout flag for complex queries.

`)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	if fs.NArg() == 0 {
		fs.Usage()
		errors.FatalError(errors.NewInputError(
			"Script argument required",
			"No CozoScript query provided",
			"Provide a query: synapse query '?[name] := *cie_function{name}'",
		), globals.JSON)
	}

	script := fs.Arg(0)

	if *limit > 0 {
		script = strings.TrimSpace(script)
		if !strings.Contains(strings.ToLower(script), ":limit") {
			script = fmt.Sprintf("%s :limit %d", script, *limit)
		}
	}

	dataDir, err := projectDataDir(cfg, configPath)
	if err != nil {
		errors.FatalError(err, globals.JSON)
	}

	if _, err := os.Stat(dataDir); os.IsNotExist(err) {
		errors.FatalError(errors.NewDatabaseError(
			fmt.Sprintf("Project '%s' not indexed yet", cfg.ProjectID),
			"The database does not exist for this project",
			"Run 'synapse index' to index the repository first",
			err,
		), globals.JSON)
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
			"The database file may be corrupted or locked by another process",
			"Try running 'synapse status' to check database health, or 'synapse reset' to rebuild",
			err,
		), globals.JSON)
	}
	defer func() { _ = backend.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	result, err := backend.Query(ctx, script)
	if err != nil {
		if strings.Contains(err.Error(), "parse") || strings.Contains(err.Error(), "syntax") {
			errors.FatalError(errors.NewInputError(
				"Invalid CozoScript query syntax",
				fmt.Sprintf("Query parsing failed: %v", err),
				"Check the CozoScript documentation or run 'synapse query --help' for examples",
			), globals.JSON)
		}
		errors.FatalError(errors.NewDatabaseError(
			"Query execution failed",
			fmt.Sprintf("Database returned an error: %v", err),
			"Check your query syntax and ensure the database is not corrupted",
			err,
		), globals.JSON)
	}

	if len(result.Rows) == 0 && !globals.JSON {
		fmt.Fprintf(os.Stderr, "Warning: Query returned no results\n")
		fmt.Fprintf(os.Stderr, "Hint: Try broadening your query or verify the database is indexed with 'synapse status'\n")
	}

	if globals.JSON {
		outputQueryJSON(result)
	} else {
		printQueryResult(result)
	}
}

// outputQueryJSON writes query results as formatted JSON to stdout.
func outputQueryJSON(result *storage.QueryResult) {
	output := map[string]any{
		"headers": result.Headers,
		"rows":    result.Rows,
		"count":   len(result.Rows),
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(output)
}

// printQueryResult prints query results as a tab-aligned table to stdout.
func printQueryResult(result *storage.QueryResult) {
	if len(result.Rows) == 0 {
		fmt.Println("No results")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)

	for i, h := range result.Headers {
		if i > 0 {
			_, _ = fmt.Fprint(w, "\t")
		}
		_, _ = fmt.Fprint(w, strings.ToUpper(h))
	}
	_, _ = fmt.Fprintln(w)

	for i := range result.Headers {
		if i > 0 {
			_, _ = fmt.Fprint(w, "\t")
		}
		_, _ = fmt.Fprint(w, "---")
	}
	_, _ = fmt.Fprintln(w)

	for _, row := range result.Rows {
		for i, cell := range row {
			if i > 0 {
				_, _ = fmt.Fprint(w, "\t")
			}
			_, _ = fmt.Fprint(w, formatCell(cell))
		}
		_, _ = fmt.Fprintln(w)
	}

	_ = w.Flush()

	fmt.Printf("\n(%d rows)\n", len(result.Rows))
}

// formatCell formats a single cell value for display in the query result table.
func formatCell(v any) string {
	switch val := v.(type) {
	case string:
		if len(val) > 60 {
			return val[:57] + "..."
		}
		return val
	case float64:
		if val == float64(int(val)) {
			return fmt.Sprintf("%d", int(val))
		}
		return fmt.Sprintf("%.2f", val)
	case nil:
		return "<null>"
	default:
		s := fmt.Sprintf("%v", val)
		if len(s) > 60 {
			return s[:57] + "..."
		}
		return s
	}
}
