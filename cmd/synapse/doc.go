// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package main implements the synapse command-line tool: a local code
// intelligence indexer.
//
// synapse parses a repository with Tree-sitter, extracts functions, types,
// and cross-file call graphs, generates embeddings for semantic search, and
// stores the result in an embedded CozoDB graph database. Re-running
// 'synapse index' only reprocesses files whose content hash changed since
// the previous run.
//
// Commands:
//
//	synapse init      Create .synapse/project.yaml configuration
//	synapse index     Index the current repository
//	synapse status    Show project indexing statistics
//	synapse config    Show current configuration
//	synapse query     Execute a CozoScript query against the graph
//	synapse reset     Delete local indexed data
//
// Indexed data is stored locally under ~/.synapse/data/<project_id>/ by
// default, or wherever indexing.data_dir in project.yaml points.
package main
