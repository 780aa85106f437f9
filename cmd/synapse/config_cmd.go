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
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	flag "github.com/spf13/pflag"

	"github.com/AutoRail-AI/code-synapse/internal/errors"
	"github.com/AutoRail-AI/code-synapse/internal/ui"
)

// ConfigOutput mirrors Config with JSON tags appropriate for external consumption.
type ConfigOutput struct {
	ConfigPath string          `json:"config_path"`
	Version    string          `json:"version"`
	ProjectID  string          `json:"project_id"`
	Embedding  EmbeddingOutput `json:"embedding"`
	Indexing   IndexingOutput  `json:"indexing"`
}

// EmbeddingOutput represents embedding provider configuration for JSON output.
type EmbeddingOutput struct {
	Provider   string `json:"provider"`
	Dimensions int    `json:"dimensions"`
}

// IndexingOutput represents indexing settings for JSON output.
type IndexingOutput struct {
	ParserMode  string   `json:"parser_mode"`
	BatchTarget int      `json:"batch_target"`
	MaxFileSize int64    `json:"max_file_size"`
	Exclude     []string `json:"exclude"`
	DataDir     string   `json:"data_dir,omitempty"`
	StoreEngine string   `json:"store_engine,omitempty"`
}

// runConfig executes the 'config' CLI command, displaying the current
// configuration in human-readable format (default) or JSON (with --json).
func runConfig(args []string, configPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("config", flag.ExitOnError)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: synapse config [options]

Description:
  Display the current project configuration including project settings,
  embedding provider, and indexing options.

  This reads the .synapse/project.yaml configuration file and displays
  its contents. Environment variable overrides are applied.

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  synapse config
  synapse config --json
  synapse config --json | jq '.project_id'

Output Fields:
  - config_path:    Path to the configuration file
  - version:        Configuration file version
  - project_id:     Project identifier
  - embedding:      Embedding provider settings (provider, dimensions)
  - indexing:       Indexing settings (parser_mode, batch_target, exclude)

`)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	var cfgPath string
	var err error
	if configPath != "" {
		cfgPath = configPath
	} else {
		cfgPath, err = findConfigFile()
		if err != nil {
			errors.FatalError(err, globals.JSON)
		}
	}

	if !filepath.IsAbs(cfgPath) {
		if abs, absErr := filepath.Abs(cfgPath); absErr == nil {
			cfgPath = abs
		}
	}

	cfg, err := LoadConfig(configPath)
	if err != nil {
		errors.FatalError(err, globals.JSON)
	}

	result := buildConfigOutput(cfgPath, cfg)

	if globals.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result); err != nil {
			errors.FatalError(errors.NewInternalError(
				"Cannot encode configuration as JSON",
				"JSON encoding failed unexpectedly",
				"This is a bug. Please report it",
				err,
			), globals.JSON)
		}
	} else {
		printConfigHuman(result)
	}
}

// buildConfigOutput converts a Config to ConfigOutput for JSON serialization.
func buildConfigOutput(configPath string, cfg *Config) *ConfigOutput {
	return &ConfigOutput{
		ConfigPath: configPath,
		Version:    cfg.Version,
		ProjectID:  cfg.ProjectID,
		Embedding: EmbeddingOutput{
			Provider:   cfg.Embedding.Provider,
			Dimensions: cfg.Embedding.Dimensions,
		},
		Indexing: IndexingOutput{
			ParserMode:  cfg.Indexing.ParserMode,
			BatchTarget: cfg.Indexing.BatchTarget,
			MaxFileSize: cfg.Indexing.MaxFileSize,
			Exclude:     cfg.Indexing.Exclude,
			DataDir:     cfg.Indexing.DataDir,
			StoreEngine: cfg.Indexing.StoreEngine,
		},
	}
}

// printConfigHuman prints the configuration in human-readable format.
func printConfigHuman(cfg *ConfigOutput) {
	ui.Header("Synapse Configuration")
	fmt.Printf("%s  %s\n", ui.Label("Config File:"), ui.DimText(cfg.ConfigPath))
	fmt.Printf("%s     %s\n", ui.Label("Version:"), cfg.Version)
	fmt.Printf("%s  %s\n", ui.Label("Project ID:"), cfg.ProjectID)
	fmt.Println()

	ui.SubHeader("Embedding:")
	fmt.Printf("  Provider:     %s\n", cfg.Embedding.Provider)
	fmt.Printf("  Dimensions:   %d\n", cfg.Embedding.Dimensions)
	fmt.Println()

	ui.SubHeader("Indexing:")
	fmt.Printf("  Parser Mode:  %s\n", cfg.Indexing.ParserMode)
	fmt.Printf("  Batch Target: %d\n", cfg.Indexing.BatchTarget)
	fmt.Printf("  Max File:     %d bytes\n", cfg.Indexing.MaxFileSize)
	if cfg.Indexing.StoreEngine != "" {
		fmt.Printf("  Store Engine: %s\n", cfg.Indexing.StoreEngine)
	}
	if cfg.Indexing.DataDir != "" {
		fmt.Printf("  Data Dir:     %s\n", ui.DimText(cfg.Indexing.DataDir))
	}
	if len(cfg.Indexing.Exclude) > 0 {
		fmt.Printf("  Exclude:      %d patterns\n", len(cfg.Indexing.Exclude))
		for _, pattern := range cfg.Indexing.Exclude {
			fmt.Printf("                - %s\n", ui.DimText(pattern))
		}
	}
}
