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
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/AutoRail-AI/code-synapse/internal/errors"
)

const (
	defaultConfigDir  = ".synapse"
	defaultConfigFile = "project.yaml"
	configVersion     = "1"
)

// Config represents the .synapse/project.yaml configuration file.
//
// This is deliberately narrower than a distributed-system config: there is
// no remote hub/edge-cache address, no LLM narrative settings, and no
// custom role-pattern DSL, because this module indexes and queries a local
// graph store only.
type Config struct {
	Version   string          `yaml:"version"`
	ProjectID string          `yaml:"project_id"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Indexing  IndexingConfig  `yaml:"indexing"`
}

// EmbeddingConfig contains embedding provider configuration.
type EmbeddingConfig struct {
	Provider   string `yaml:"provider"` // null, mock/deterministic
	Dimensions int    `yaml:"dimensions,omitempty"`
}

// IndexingConfig contains indexing settings.
type IndexingConfig struct {
	ParserMode  string   `yaml:"parser_mode"`  // auto, treesitter, simplified
	BatchTarget int      `yaml:"batch_target"` // mutations per batch
	MaxFileSize int64    `yaml:"max_file_size"`
	Exclude     []string `yaml:"exclude"`
	DataDir     string   `yaml:"data_dir,omitempty"` // overrides ~/.synapse/data
	StoreEngine string   `yaml:"store_engine,omitempty"`
}

// DefaultConfig returns a config with sensible defaults for local use.
func DefaultConfig(projectID string) *Config {
	return &Config{
		Version:   configVersion,
		ProjectID: projectID,
		Embedding: EmbeddingConfig{
			Provider:   "null",
			Dimensions: 384,
		},
		Indexing: IndexingConfig{
			ParserMode:  "auto",
			BatchTarget: 2000,
			MaxFileSize: 1048576,
			StoreEngine: "rocksdb",
			Exclude: []string{
				".git/**",
				"node_modules/**",
				"vendor/**",
				"dist/**",
				"build/**",
				"*.o",
				"*.so",
				"*.dylib",
				"*.exe",
			},
		},
	}
}

// LoadConfig loads configuration from the specified path or finds it automatically.
func LoadConfig(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = os.Getenv("SYNAPSE_CONFIG_PATH")
	}
	if configPath == "" {
		var err error
		configPath, err = findConfigFile()
		if err != nil {
			return nil, err
		}
	}

	data, err := os.ReadFile(configPath) //nolint:gosec // G304: path comes from user config or discovery
	if err != nil {
		return nil, errors.NewConfigError(
			"Cannot read configuration file",
			fmt.Sprintf("Failed to read %s", configPath),
			"Check file permissions and ensure the file exists",
			err,
		)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.NewConfigError(
			"Invalid configuration format",
			"YAML parsing failed - the config file contains syntax errors",
			fmt.Sprintf("Edit %s to fix syntax errors, or run 'synapse init --force' to recreate", configPath),
			err,
		)
	}

	if cfg.Version != configVersion {
		return nil, errors.NewConfigError(
			"Unsupported configuration version",
			fmt.Sprintf("Config version '%s' is not supported (expected '%s')", cfg.Version, configVersion),
			"Run 'synapse init --force' to regenerate the configuration file",
			nil,
		)
	}

	cfg.applyEnvOverrides()
	return &cfg, nil
}

// SaveConfig writes the configuration to the specified path as YAML.
func SaveConfig(cfg *Config, configPath string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.NewInternalError(
			"Cannot encode configuration",
			"YAML marshaling failed unexpectedly",
			"This is a bug. Please report it with your configuration details",
			err,
		)
	}

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return errors.NewPermissionError(
			"Cannot create configuration directory",
			fmt.Sprintf("Permission denied creating %s", dir),
			"Check directory permissions or run with appropriate privileges",
			err,
		)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return errors.NewPermissionError(
			"Cannot write configuration file",
			fmt.Sprintf("Permission denied writing to %s", configPath),
			"Check file permissions and ensure sufficient disk space",
			err,
		)
	}

	return nil
}

// ConfigPath returns the path to the config file in the given directory.
func ConfigPath(dir string) string {
	return filepath.Join(dir, defaultConfigDir, defaultConfigFile)
}

// ConfigDir returns the path to the .synapse directory in the given directory.
func ConfigDir(dir string) string {
	return filepath.Join(dir, defaultConfigDir)
}

// findConfigFile searches for .synapse/project.yaml in current and parent directories.
func findConfigFile() (string, error) {
	if configPath := os.Getenv("SYNAPSE_CONFIG_PATH"); configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath, nil
		}
		return "", errors.NewConfigError(
			"Configuration file not found",
			fmt.Sprintf("SYNAPSE_CONFIG_PATH is set to '%s' but the file does not exist", configPath),
			"Fix the SYNAPSE_CONFIG_PATH environment variable or run 'synapse init' to create a config",
			nil,
		)
	}

	dir, err := os.Getwd()
	if err != nil {
		return "", errors.NewInternalError(
			"Cannot access working directory",
			"Failed to determine current directory path",
			"Check system permissions and try again",
			err,
		)
	}

	for {
		configPath := ConfigPath(dir)
		if _, err := os.Stat(configPath); err == nil {
			return configPath, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", errors.NewConfigError(
		"Configuration not found",
		"No .synapse/project.yaml file found in current directory or any parent directory",
		"Run 'synapse init' to create a new configuration",
		nil,
	)
}

// applyEnvOverrides applies environment variable overrides to the configuration.
//
// Supported environment variables:
//   - SYNAPSE_PROJECT_ID: Override project identifier
//   - SYNAPSE_EMBEDDING_PROVIDER: Override embedding provider
func (c *Config) applyEnvOverrides() {
	if id := os.Getenv("SYNAPSE_PROJECT_ID"); id != "" {
		c.ProjectID = id
	}
	if provider := os.Getenv("SYNAPSE_EMBEDDING_PROVIDER"); provider != "" {
		c.Embedding.Provider = provider
	}
}
