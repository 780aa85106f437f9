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
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/schollz/progressbar/v3"
	flag "github.com/spf13/pflag"

	"github.com/AutoRail-AI/code-synapse/internal/errors"
	"github.com/AutoRail-AI/code-synapse/internal/ui"
	"github.com/AutoRail-AI/code-synapse/pkg/ingestion"
)

var (
	filesIndexedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "synapse_files_indexed_total",
		Help: "Total number of files processed by the indexing coordinator.",
	})
	parseErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "synapse_parse_errors_total",
		Help: "Total number of files that failed to parse.",
	})
	indexWriteSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "synapse_index_write_seconds",
		Help:    "Duration of the graph-store write phase of an indexing run.",
		Buckets: prometheus.DefBuckets,
	})
)

// runIndex executes the 'index' CLI command: parse the repository, generate
// embeddings, and write the result into the local CozoDB graph.
//
// Flags:
//   - --full: Force full reindex, bypassing hash-based delta detection
//   - --embed-workers: Number of parallel embedding workers (default: 8)
//   - --debug: Enable debug logging
//   - --metrics-addr: HTTP address for Prometheus metrics (empty to disable)
func runIndex(args []string, configPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("index", flag.ExitOnError)
	full := fs.Bool("full", false, "Force full reindex, ignoring content-hash delta detection")
	embedWorkers := fs.Int("embed-workers", 8, "Number of parallel embedding workers")
	debug := fs.Bool("debug", false, "Enable debug logging")
	metricsAddr := fs.String("metrics-addr", "", "HTTP listen address for Prometheus metrics (empty to disable)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: synapse index [options]

Description:
  Index the current repository to build a searchable code intelligence
  database. This parses source files using Tree-sitter, extracts functions,
  types, and call graphs, and generates embeddings for semantic search.

  The indexing process runs incrementally by default, only processing
  files whose content hash has changed since the last run. Use --full
  to bypass delta detection and reparse everything.

  Indexed data is stored locally in ~/.synapse/data/<project_id>/ by
  default, or wherever indexing.data_dir in project.yaml points.

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  synapse index
  synapse index --full
  synapse index --embed-workers 16
  synapse index --debug --metrics-addr :9090

`)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	cfg, err := LoadConfig(configPath)
	if err != nil {
		errors.FatalError(err, globals.JSON)
	}

	logLevel := slog.LevelInfo
	if *debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	if *metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			srv := &http.Server{Addr: *metricsAddr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
			logger.Info("metrics.http.start", "addr", *metricsAddr, "path", "/metrics")
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Warn("metrics.http.error", "err", err)
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("shutdown.signal", "signal", sig.String())
		cancel()
	}()

	cwd, err := os.Getwd()
	if err != nil {
		errors.FatalError(errors.NewInternalError(
			"Cannot access current directory",
			"Failed to determine working directory",
			"This is unexpected. Please report this issue if it persists",
			err,
		), false)
	}

	dataDir, err := projectDataDir(cfg, configPath)
	if err != nil {
		errors.FatalError(err, globals.JSON)
	}

	runLocalIndex(ctx, logger, cfg, cwd, dataDir, *embedWorkers, *full, globals)
}

// runLocalIndex builds an ingestion.Config from the project config and CLI
// flags, drives the pipeline, and prints the result.
func runLocalIndex(ctx context.Context, logger *slog.Logger, cfg *Config, repoPath, dataDir string, embedWorkers int, full bool, globals GlobalFlags) {
	defaults := ingestion.DefaultConfig()
	excludeGlobs := append(append([]string{}, defaults.ExcludeGlobs...), cfg.Indexing.Exclude...)

	embeddingProvider := cfg.Embedding.Provider
	if embeddingProvider == "" {
		embeddingProvider = "null"
	}
	dim := cfg.Embedding.Dimensions
	if dim <= 0 {
		dim = 384
	}
	batchTarget := cfg.Indexing.BatchTarget
	if batchTarget <= 0 {
		batchTarget = defaults.BatchTargetMutations
	}
	maxFileSize := cfg.Indexing.MaxFileSize
	if maxFileSize <= 0 {
		maxFileSize = defaults.MaxFileSizeBytes
	}
	parserMode := ingestion.ParserMode(cfg.Indexing.ParserMode)
	if parserMode == "" {
		parserMode = ingestion.ParserModeAuto
	}
	storeEngine := cfg.Indexing.StoreEngine
	if storeEngine == "" {
		storeEngine = defaults.StoreEngine
	}
	if embedWorkers <= 0 {
		embedWorkers = defaults.Concurrency.EmbedWorkers
	}

	config := ingestion.Config{
		ProjectID: cfg.ProjectID,
		RepoPath:  repoPath,
		IngestionConfig: ingestion.IngestionConfig{
			ParserMode:           parserMode,
			EmbeddingProvider:    embeddingProvider,
			EmbeddingDimensions:  dim,
			BatchTargetMutations: batchTarget,
			MaxFileSizeBytes:     maxFileSize,
			ExcludeGlobs:         excludeGlobs,
			StorePath:            dataDir,
			StoreEngine:          storeEngine,
			ForceReindex:         full,
			Concurrency: ingestion.ConcurrencyConfig{
				ParseWorkers: defaults.Concurrency.ParseWorkers,
				EmbedWorkers: embedWorkers,
				BatchSize:    defaults.Concurrency.BatchSize,
			},
		},
	}

	pipeline, err := ingestion.NewLocalPipeline(config, logger)
	if err != nil {
		errors.FatalError(errors.NewDatabaseError(
			"Cannot initialize indexing pipeline",
			"Failed to open or initialize the database",
			"Try 'synapse reset' to rebuild the database, or close other synapse instances",
			err,
		), false)
	}
	defer func() { _ = pipeline.Close() }()

	progressCfg := NewProgressConfig(globals)
	var currentBar *progressbar.ProgressBar
	var currentPhase string

	pipeline.SetProgressCallback(func(current, total int64, phase string) {
		if phase != currentPhase {
			if currentBar != nil {
				_ = currentBar.Finish()
			}
			currentPhase = phase
			currentBar = NewProgressBar(progressCfg, total, phaseDescription(phase))
		}
		if currentBar != nil {
			_ = currentBar.Set64(current)
		}
	})

	logger.Info("indexing.starting",
		"project_id", cfg.ProjectID,
		"repo_path", repoPath,
		"embedding_provider", embeddingProvider,
	)

	writeStart := time.Now()
	result, err := pipeline.Run(ctx)
	indexWriteSeconds.Observe(time.Since(writeStart).Seconds())

	if currentBar != nil {
		_ = currentBar.Finish()
	}

	if err != nil {
		errors.FatalError(errors.NewDatabaseError(
			"Indexing operation failed",
			"An error occurred during repository indexing",
			"Check the error details above. If this persists, try 'synapse reset'",
			err,
		), false)
	}

	filesIndexedTotal.Add(float64(result.FilesProcessed))
	parseErrorsTotal.Add(float64(result.ParseErrors))

	printResult(result, dataDir)
}

// phaseDescription returns a human-readable description for each pipeline phase.
func phaseDescription(phase string) string {
	switch phase {
	case "parsing":
		return "Parsing files"
	case "embedding_functions":
		return "Generating function embeddings"
	case "embedding_types":
		return "Embedding types"
	case "writing":
		return "Writing to database"
	default:
		return phase
	}
}

// printResult prints the indexing result summary to stdout.
func printResult(result *ingestion.IngestionResult, dataDir string) {
	fmt.Println()

	if result.Incremental && result.FilesProcessed == 0 && result.FilesDeleted == 0 {
		ui.Header("Index Up to Date")
		fmt.Printf("%s %s\n", ui.Label("Project ID:"), result.ProjectID)
		_, _ = ui.Green.Println("Everything is already indexed. No changes detected.")
		fmt.Println()
		fmt.Println("To force a full re-index:")
		fmt.Println("  synapse index --full")
		return
	}

	ui.Header("Indexing Complete")
	fmt.Printf("%s %s\n", ui.Label("Project ID:"), result.ProjectID)

	fmt.Printf("Files Processed: %s ", ui.CountText(result.FilesProcessed))
	if result.ParseErrors > 0 {
		successRate := 100.0 - result.ParseErrorRate
		_, _ = ui.Yellow.Printf("(%.1f%% success rate)\n", successRate)
	} else {
		_, _ = ui.Green.Println("✓")
	}
	if result.FilesDeleted > 0 {
		fmt.Printf("Files Deleted: %s\n", ui.CountText(result.FilesDeleted))
	}

	fmt.Printf("Functions Extracted: %s\n", ui.CountText(result.FunctionsExtracted))
	fmt.Printf("Types Extracted: %s\n", ui.CountText(result.TypesExtracted))
	fmt.Printf("Defines Edges: %s\n", ui.CountText(result.DefinesEdges))
	fmt.Printf("Calls Edges: %s\n", ui.CountText(result.CallsEdges))
	fmt.Printf("Entities Written: %s\n", ui.CountText(result.EntitiesSent))

	if result.ParseErrors > 0 {
		_, _ = ui.Yellow.Printf("Parse Errors: %d (%.2f%%)\n", result.ParseErrors, result.ParseErrorRate)
	}
	if result.EmbeddingErrors > 0 {
		_, _ = ui.Yellow.Printf("Embedding Errors: %d\n", result.EmbeddingErrors)
	}
	if result.CodeTextTruncated > 0 {
		_, _ = ui.Dim.Printf("CodeText Truncated: %d\n", result.CodeTextTruncated)
	}

	if len(result.TopSkipReasons) > 0 {
		fmt.Println()
		ui.SubHeader("Skipped Files:")
		for reason, count := range result.TopSkipReasons {
			fmt.Printf("  %s: %s\n", reason, ui.DimText(fmt.Sprintf("%d", count)))
		}
	}

	fmt.Println()
	ui.SubHeader("Timings:")
	fmt.Printf("  Parse: %s\n", ui.DimText(result.ParseDuration.String()))
	fmt.Printf("  Embed: %s\n", ui.DimText(result.EmbedDuration.String()))
	fmt.Printf("  Write: %s\n", ui.DimText(result.WriteDuration.String()))
	fmt.Printf("  Total: %s\n", ui.DimText(result.TotalDuration.String()))
	fmt.Println()

	fmt.Printf("Data stored in: %s\n", ui.DimText(dataDir))
}
