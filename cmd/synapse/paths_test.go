// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"path/filepath"
	"testing"
)

func TestDataRootFromConfig_Default(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("SYNAPSE_DATA_DIR", "")

	root, err := dataRootFromConfig(&Config{ProjectID: "demo"}, "")
	if err != nil {
		t.Fatalf("dataRootFromConfig() error = %v", err)
	}

	want := filepath.Join(home, ".synapse", "data")
	if root != want {
		t.Fatalf("dataRootFromConfig() = %q, want %q", root, want)
	}
}

func TestDataRootFromConfig_EnvOverride(t *testing.T) {
	t.Setenv("SYNAPSE_DATA_DIR", "/tmp/custom-synapse")

	root, err := dataRootFromConfig(&Config{ProjectID: "demo"}, "")
	if err != nil {
		t.Fatalf("dataRootFromConfig() error = %v", err)
	}
	if root != "/tmp/custom-synapse" {
		t.Fatalf("dataRootFromConfig() = %q, want %q", root, "/tmp/custom-synapse")
	}
}

func TestDataRootFromConfig_RelativeDataDir(t *testing.T) {
	t.Setenv("SYNAPSE_DATA_DIR", "")

	repo := t.TempDir()
	cfg := &Config{
		ProjectID: "demo",
		Indexing: IndexingConfig{
			DataDir: "./.synapse/db",
		},
	}

	cfgPath := filepath.Join(repo, ".synapse", "project.yaml")
	root, err := dataRootFromConfig(cfg, cfgPath)
	if err != nil {
		t.Fatalf("dataRootFromConfig() error = %v", err)
	}

	want := filepath.Join(repo, ".synapse", ".synapse", "db")
	if root != want {
		t.Fatalf("dataRootFromConfig() = %q, want %q", root, want)
	}
}

func TestProjectDataDir_AppendsProjectID(t *testing.T) {
	t.Setenv("SYNAPSE_DATA_DIR", "/tmp/synapse-root")

	dir, err := projectDataDir(&Config{ProjectID: "my-project"}, "")
	if err != nil {
		t.Fatalf("projectDataDir() error = %v", err)
	}
	if dir != "/tmp/synapse-root/my-project" {
		t.Fatalf("projectDataDir() = %q, want %q", dir, "/tmp/synapse-root/my-project")
	}
}
