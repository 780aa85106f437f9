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
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/AutoRail-AI/code-synapse/internal/errors"
	"github.com/AutoRail-AI/code-synapse/internal/ui"
)

// initFlags holds parsed flags for the init command.
type initFlags struct {
	force, nonInteractive     bool
	projectID, embeddingProvider string
}

// runInit executes the 'init' CLI command, creating a .synapse/project.yaml
// configuration file for the current repository.
//
// Flags:
//   - --force: Overwrite existing configuration
//   - -y: Non-interactive mode, use all defaults
//   - --project-id: Project identifier (default: directory name)
//   - --embedding-provider: Embedding provider (null, mock)
func runInit(args []string, globals GlobalFlags) {
	flags := parseInitFlags(args)

	cwd, err := os.Getwd()
	if err != nil {
		errors.FatalError(errors.NewInternalError(
			"Cannot access working directory",
			"Failed to determine current directory path",
			"This is unexpected. Please report this issue if it persists",
			err,
		), false)
	}

	configPath := ConfigPath(cwd)
	if _, err := os.Stat(configPath); err == nil && !flags.force {
		errors.FatalError(errors.NewInputError(
			"Configuration already exists",
			fmt.Sprintf("%s already exists in this directory", configPath),
			"Use 'synapse init --force' to overwrite the existing configuration",
		), globals.JSON)
	}

	cfg := createInitConfig(cwd, flags)
	reader := bufio.NewReader(os.Stdin)

	if !flags.nonInteractive {
		runInteractiveConfig(reader, cfg)
	}

	saveInitConfig(cwd, configPath, cfg)
	printNextSteps()
}

func parseInitFlags(args []string) initFlags {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	var f initFlags
	fs.BoolVar(&f.force, "force", false, "Overwrite existing configuration")
	fs.BoolVarP(&f.nonInteractive, "yes", "y", false, "Non-interactive mode (use defaults)")
	fs.StringVar(&f.projectID, "project-id", "", "Project identifier")
	fs.StringVar(&f.embeddingProvider, "embedding-provider", "", "Embedding provider (null, mock)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: synapse init [options]

Description:
  Create a .synapse/project.yaml configuration file for the current repository.

  By default, runs in interactive mode with prompts for each setting.
  Use -y for non-interactive mode with sensible defaults.

  The configuration defines:
  - Project identifier and data storage location
  - Embedding provider (null, mock)
  - Indexing behavior (exclusions, batch size, parser mode, etc.)

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  synapse init
  synapse init -y
  synapse init --project-id my-awesome-project
  synapse init --embedding-provider mock

Notes:
  Configuration is stored in .synapse/project.yaml in the repository root.
  You can edit this file manually or re-run init with --force to recreate.

`)
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	return f
}

func createInitConfig(cwd string, f initFlags) *Config {
	pid := f.projectID
	if pid == "" {
		pid = filepath.Base(cwd)
	}
	cfg := DefaultConfig(pid)
	if f.embeddingProvider != "" {
		cfg.Embedding.Provider = f.embeddingProvider
	}
	return cfg
}

func runInteractiveConfig(reader *bufio.Reader, cfg *Config) {
	ui.Header("Synapse Project Configuration")
	fmt.Println()

	cfg.ProjectID = prompt(reader, "Project ID", cfg.ProjectID)

	fmt.Println()
	ui.Info("Embedding providers: null (no vectors), mock (deterministic test vectors)")
	cfg.Embedding.Provider = prompt(reader, "Embedding provider", cfg.Embedding.Provider)
	fmt.Println()
}

func saveInitConfig(cwd, configPath string, cfg *Config) {
	dir := ConfigDir(cwd)
	if err := os.MkdirAll(dir, 0750); err != nil {
		errors.FatalError(errors.NewPermissionError(
			"Cannot create .synapse directory",
			fmt.Sprintf("Permission denied creating directory: %s", dir),
			"Check directory permissions or run with appropriate privileges",
			err,
		), false)
	}
	if err := SaveConfig(cfg, configPath); err != nil {
		errors.FatalError(errors.NewPermissionError(
			"Cannot save configuration file",
			fmt.Sprintf("Failed to write %s", configPath),
			"Check directory permissions and available disk space",
			err,
		), false)
	}
	ui.Successf("Created %s", configPath)
	addToGitignore(cwd)
}

func printNextSteps() {
	fmt.Println()
	ui.SubHeader("Next steps:")
	fmt.Printf("  1. Review and edit %s if needed\n", ui.DimText(".synapse/project.yaml"))
	fmt.Printf("  2. Run '%s' to index your repository\n", ui.Cyan.Sprint("synapse index"))
	fmt.Printf("  3. Run '%s' to verify indexing\n", ui.Cyan.Sprint("synapse status"))
}

// prompt displays an interactive prompt and reads user input from stdin.
// If the user presses Enter without providing input, defaultValue is returned.
func prompt(reader *bufio.Reader, label, defaultValue string) string {
	if defaultValue != "" {
		fmt.Printf("%s [%s]: ", label, defaultValue)
	} else {
		fmt.Printf("%s: ", label)
	}

	input, _ := reader.ReadString('\n')
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultValue
	}
	return input
}

// addToGitignore adds .synapse/ to the project's .gitignore file if not
// already present. Silently returns if .gitignore does not exist.
func addToGitignore(dir string) {
	gitignorePath := filepath.Join(dir, ".gitignore")

	content, err := os.ReadFile(gitignorePath) //nolint:gosec // G304: gitignorePath built from repo dir
	if err != nil {
		return
	}

	lines := strings.Split(string(content), "\n")
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == ".synapse/" || line == ".synapse" || line == "/.synapse/" || line == "/.synapse" {
			return
		}
	}

	f, err := os.OpenFile(gitignorePath, os.O_APPEND|os.O_WRONLY, 0600) //nolint:gosec // G304: gitignorePath built from repo dir
	if err != nil {
		return
	}
	defer func() { _ = f.Close() }()

	if len(content) > 0 && content[len(content)-1] != '\n' {
		_, _ = f.WriteString("\n")
	}

	_, _ = f.WriteString("\n# Synapse configuration\n.synapse/\n")
	fmt.Println("Added .synapse/ to .gitignore")
}
