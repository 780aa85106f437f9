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
// Package main implements the synapse CLI for indexing repositories into a
// local code intelligence graph.
//
// Usage:
//
//	synapse init                   Create .synapse/project.yaml configuration
//	synapse index                  Index the current repository
//	synapse status [--json]        Show project status
//	synapse query <script> [--json] Execute CozoScript query
//	synapse reset                  Delete local indexed data
package main

import (
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/AutoRail-AI/code-synapse/internal/ui"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// GlobalFlags holds the global CLI flags that apply to all commands.
type GlobalFlags struct {
	JSON    bool
	NoColor bool
	Verbose int
	Quiet   bool
}

// main is the entry point for the synapse CLI. It parses global flags and
// dispatches to a command handler.
func main() {
	var (
		showVersion = flag.BoolP("version", "V", false, "Show version and exit")
		configPath  = flag.StringP("config", "c", "", "Path to .synapse/project.yaml (default: ./.synapse/project.yaml)")
		jsonOutput  = flag.Bool("json", false, "Output in JSON format (for applicable commands)")
		noColor     = flag.Bool("no-color", false, "Disable color output")
		verbose     = flag.CountP("verbose", "v", "Increase verbosity (-v for info, -vv for debug)")
		quiet       = flag.BoolP("quiet", "q", false, "Suppress non-essential output (progress, info messages)")
	)

	// Stop parsing at the first non-flag argument so subcommand-specific
	// flags ("index --full") pass through instead of being rejected here.
	flag.SetInterspersed(false)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `synapse - code intelligence indexer

synapse parses a repository with Tree-sitter, extracts functions, types,
and call graphs, and stores the result in a local CozoDB graph so it can
be queried with CozoScript.

Usage:
  synapse <command> [options]

Commands:
  init      Create .synapse/project.yaml configuration
  index     Index the current repository
  status    Show project status
  config    Show current configuration
  query     Execute CozoScript query
  reset     Reset local project data (destructive!)

Global Options:
  --json            Output in JSON format (for applicable commands)
  --no-color        Disable color output (respects NO_COLOR env var)
  -v, --verbose     Increase verbosity (-v for info, -vv for debug)
  -q, --quiet       Suppress non-essential output (progress, info messages)
  -c, --config      Path to .synapse/project.yaml
  -V, --version     Show version and exit

Examples:
  synapse init                           Create configuration interactively
  synapse index                          Index current repository
  synapse index --full                   Force full re-index
  synapse status                         Show project status
  synapse status --json                  Output as JSON
  synapse query "?[name] := *cie_function{name}"

Getting Started:
  1. Initialize configuration:  synapse init
  2. Index your repository:     synapse index
  3. Check indexing status:     synapse status

Data Storage:
  Data is stored locally in the configured data directory
  (default: ~/.synapse/data/<project_id>/)

For detailed command help: synapse <command> --help

`)
	}

	flag.Parse()

	if *showVersion {
		fmt.Printf("synapse version %s\n", version)
		fmt.Printf("commit: %s\n", commit)
		fmt.Printf("built: %s\n", date)
		os.Exit(0)
	}

	if os.Getenv("NO_COLOR") != "" {
		*noColor = true
	}

	if *quiet && *verbose > 0 {
		fmt.Fprintf(os.Stderr, "Error: cannot use --quiet and --verbose together\n")
		os.Exit(1)
	}

	// JSON mode auto-enables quiet so progress bars don't corrupt output.
	if *jsonOutput {
		*quiet = true
	}

	globals := GlobalFlags{
		JSON:    *jsonOutput,
		NoColor: *noColor,
		Verbose: *verbose,
		Quiet:   *quiet,
	}

	ui.InitColors(globals.NoColor)

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(1)
	}

	command := args[0]
	cmdArgs := args[1:]

	switch command {
	case "init":
		runInit(cmdArgs, globals)
	case "index":
		runIndex(cmdArgs, *configPath, globals)
	case "status":
		runStatus(cmdArgs, *configPath, globals)
	case "config":
		runConfig(cmdArgs, *configPath, globals)
	case "query":
		runQuery(cmdArgs, *configPath, globals)
	case "reset":
		runReset(cmdArgs, *configPath, globals)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		flag.Usage()
		os.Exit(1)
	}
}
