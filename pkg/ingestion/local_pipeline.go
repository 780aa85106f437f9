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

package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/AutoRail-AI/code-synapse/pkg/storage"
)

// ProgressCallback is called to report progress during pipeline execution.
// Parameters:
//   - current: current item number (1-based)
//   - total: total number of items
//   - phase: current phase name ("parsing", "embedding_functions", "embedding_types")
type ProgressCallback func(current, total int64, phase string)

// LocalPipeline is the indexer coordinator: it wires the scanner, the
// parser, the cross-file call resolver, and the CozoDB backend into one
// indexing run, with no collaborator beyond the local filesystem.
type LocalPipeline struct {
	config       Config
	logger       *slog.Logger
	repoLoader   *RepoLoader
	parser       CodeParser
	embeddingGen *EmbeddingGenerator
	backend      *storage.EmbeddedBackend
	deltaDetect  *HashDeltaDetector
	datalogBuild *DatalogBuilder
	onProgress   ProgressCallback // Optional callback for progress reporting
}

// IngestionResult summarizes the ingestion run.
type IngestionResult struct {
	// ProjectID is the unique identifier for the indexed project.
	ProjectID string

	// RunID is the unique identifier for this ingestion run.
	RunID string

	// Incremental reports whether this run used hash-based delta detection
	// instead of a full scan of every discovered file.
	Incremental bool

	// FilesProcessed is the total number of source files successfully parsed.
	FilesProcessed int

	// FilesDeleted is the number of files removed since the last run whose
	// entities were torn down.
	FilesDeleted int

	// FunctionsExtracted is the total number of functions/methods discovered.
	FunctionsExtracted int

	// TypesExtracted is the total number of types/classes/interfaces discovered.
	TypesExtracted int

	// DefinesEdges is the number of file-to-function relationships created.
	DefinesEdges int

	// CallsEdges is the number of function-to-function call relationships created.
	CallsEdges int

	// EntitiesSent is the total number of entities written to storage.
	EntitiesSent int

	// ParseErrors is the number of files that failed to parse.
	ParseErrors int

	// ParseErrorRate is the percentage of files that failed (0.0-100.0).
	ParseErrorRate float64

	// EmbeddingErrors is the number of functions/types that failed embedding generation.
	EmbeddingErrors int

	// CodeTextTruncated is the number of functions whose code was truncated due to size limits.
	CodeTextTruncated int

	// TopSkipReasons maps skip reasons to counts (e.g., "too_large": 5, "binary": 2).
	TopSkipReasons map[string]int

	// ParseDuration is the time spent parsing source files.
	ParseDuration time.Duration

	// EmbedDuration is the time spent generating embeddings.
	EmbedDuration time.Duration

	// WriteDuration is the time spent writing entities to storage.
	WriteDuration time.Duration

	// TotalDuration is the total time for the entire ingestion run.
	TotalDuration time.Duration
}

// parseFilesResult holds the aggregated results from parallel parsing.
type parseFilesResult struct {
	files           []FileEntity
	functions       []FunctionEntity
	types           []TypeEntity
	defines         []DefinesEdge
	definesTypes    []DefinesTypeEdge
	calls           []CallsEdge
	imports         []ImportEntity
	unresolvedCalls []UnresolvedCall
	packageNames    map[string]string
}

// NewLocalPipeline creates an ingestion pipeline bound to a single local
// CozoDB store.
func NewLocalPipeline(config Config, logger *slog.Logger) (*LocalPipeline, error) {
	if logger == nil {
		logger = slog.Default()
	}

	repoLoader := NewRepoLoader(logger)

	var parser CodeParser
	parserMode := config.IngestionConfig.ParserMode
	if parserMode == "" {
		parserMode = ParserModeAuto
	}

	switch parserMode {
	case ParserModeTreeSitter:
		logger.Info("parser.mode", "mode", "treesitter")
		parser = NewTreeSitterParser(logger)
	case ParserModeSimplified:
		logger.Info("parser.mode", "mode", "simplified")
		parser = NewParser(logger)
	case ParserModeAuto:
		tsParser := NewTreeSitterParser(logger)
		if tsParser != nil {
			logger.Info("parser.mode", "mode", "treesitter", "selected_by", "auto")
			parser = tsParser
		} else {
			logger.Info("parser.mode", "mode", "simplified", "selected_by", "auto", "reason", "treesitter_unavailable")
			parser = NewParser(logger)
		}
	default:
		logger.Warn("parser.mode.unknown", "mode", parserMode, "fallback", "treesitter")
		parser = NewTreeSitterParser(logger)
	}

	if config.IngestionConfig.MaxCodeTextBytes > 0 {
		parser.SetMaxCodeTextSize(config.IngestionConfig.MaxCodeTextBytes)
	}

	embeddingProvider, err := CreateEmbeddingProvider(config.IngestionConfig.EmbeddingProvider, config.IngestionConfig.EmbeddingDimensions, logger)
	if err != nil {
		return nil, fmt.Errorf("create embedding provider: %w", err)
	}
	embeddingGen := NewEmbeddingGenerator(embeddingProvider, config.IngestionConfig.Concurrency.EmbedWorkers, logger)

	backend, err := storage.NewEmbeddedBackend(storage.EmbeddedConfig{
		DataDir:             config.IngestionConfig.StorePath,
		Engine:              config.IngestionConfig.StoreEngine,
		ProjectID:           config.ProjectID,
		EmbeddingDimensions: config.IngestionConfig.EmbeddingDimensions,
	})
	if err != nil {
		return nil, fmt.Errorf("create local backend: %w", err)
	}

	if err := backend.EnsureSchema(); err != nil {
		_ = backend.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	if err := backend.CreateHNSWIndex(config.IngestionConfig.EmbeddingDimensions); err != nil {
		logger.Warn("hnsw.index.create.warning", "err", err)
		// HNSW is an acceleration structure, not required for correctness.
	}

	return &LocalPipeline{
		config:       config,
		logger:       logger,
		repoLoader:   repoLoader,
		parser:       parser,
		embeddingGen: embeddingGen,
		backend:      backend,
		deltaDetect:  NewHashDeltaDetector(config.RepoPath, backend, logger),
		datalogBuild: NewDatalogBuilder(),
	}, nil
}

// Close cleans up resources.
func (p *LocalPipeline) Close() error {
	var lastErr error
	if p.backend != nil {
		if err := p.backend.Close(); err != nil {
			lastErr = err
		}
	}
	if p.repoLoader != nil {
		if err := p.repoLoader.Close(); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

// SetProgressCallback sets an optional callback for progress reporting.
// The callback is called during parsing and embedding phases with
// (current, total, phase) arguments.
func (p *LocalPipeline) SetProgressCallback(cb ProgressCallback) {
	p.onProgress = cb
	if p.embeddingGen != nil {
		p.embeddingGen.SetProgressCallback(cb)
	}
}

// reportProgress safely calls the progress callback if set.
func (p *LocalPipeline) reportProgress(current, total int64, phase string) {
	if p.onProgress != nil {
		p.onProgress(current, total, phase)
	}
}

// Backend returns the underlying storage backend.
func (p *LocalPipeline) Backend() *storage.EmbeddedBackend {
	return p.backend
}

// generateRunID returns an ephemeral identifier for correlating this run's
// log lines and progress events. It is never persisted and never used to
// derive entity IDs, which remain content/position-hash-derived.
func (p *LocalPipeline) generateRunID(_ time.Time) string {
	return uuid.NewString()
}

// Run executes the ingestion pipeline. It scans the repository once, then
// asks the hash-based delta detector (component G) which files actually
// need re-extraction: a file whose content hash matches what is already
// recorded in the store is skipped entirely. ForceReindex bypasses this
// and re-parses every discovered file.
func (p *LocalPipeline) Run(ctx context.Context) (*IngestionResult, error) {
	startTime := time.Now()
	runID := p.generateRunID(startTime)
	p.logger.Info("local.ingestion.start", "project_id", p.config.ProjectID, "run_id", runID)

	loadResult, err := p.repoLoader.LoadRepository(
		p.config.RepoPath,
		p.config.IngestionConfig.ExcludeGlobs,
		p.config.IngestionConfig.IncludeGlobs,
		p.config.IngestionConfig.MaxFileSizeBytes,
	)
	if err != nil {
		return nil, fmt.Errorf("load repository: %w", err)
	}

	sort.Slice(loadResult.Files, func(i, j int) bool {
		return loadResult.Files[i].Path < loadResult.Files[j].Path
	})

	filesToParse := loadResult.Files
	var delta *FileDelta
	incremental := false

	if !p.config.IngestionConfig.ForceReindex && p.deltaDetect.IsAvailable() {
		delta, err = p.deltaDetect.DetectChanges(ctx, loadResult.Files)
		if err != nil {
			p.logger.Warn("local.ingestion.delta.error", "err", err, "msg", "falling back to full indexing")
		} else if !delta.HasChanges() {
			p.logger.Info("local.ingestion.no_changes")
			return &IngestionResult{
				ProjectID:     p.config.ProjectID,
				RunID:         runID,
				Incremental:   true,
				TotalDuration: time.Since(startTime),
			}, nil
		} else {
			incremental = true
			for _, path := range delta.Deleted {
				if err := p.backend.DeleteEntitiesForFile(path); err != nil {
					p.logger.Warn("local.ingestion.delete.error", "path", path, "err", err)
				}
			}
			for oldPath := range delta.Renamed {
				if err := p.backend.DeleteEntitiesForFile(oldPath); err != nil {
					p.logger.Warn("local.ingestion.delete.error", "path", oldPath, "err", err)
				}
			}
			filesToParse = filesByPath(loadResult.Files, delta.All)
			p.logger.Info("local.ingestion.delta",
				"added", len(delta.Added),
				"modified", len(delta.Modified),
				"deleted", len(delta.Deleted),
				"renamed", len(delta.Renamed),
			)
		}
	}

	if incremental && len(filesToParse) == 0 {
		p.finishRun(runID)
		return &IngestionResult{
			ProjectID:      p.config.ProjectID,
			RunID:          runID,
			Incremental:    true,
			FilesDeleted:   len(delta.Deleted),
			TopSkipReasons: loadResult.SkipReasons,
			TotalDuration:  time.Since(startTime),
		}, nil
	}

	parseStart := time.Now()
	parseWorkers := p.config.IngestionConfig.Concurrency.ParseWorkers
	if parseWorkers <= 0 {
		parseWorkers = 4
	}

	parseResult, parseErrors := p.parseFilesParallel(ctx, filesToParse, parseWorkers)
	parseDuration := time.Since(parseStart)
	codeTextTruncated := p.parser.GetTruncatedCount()

	// Cross-file call resolution (pass 2): a per-file parse only knows the
	// local name of a called function; the resolver builds a registry across
	// every file parsed this run and fills in the remaining call edges.
	if len(parseResult.unresolvedCalls) > 0 {
		resolver := NewCallResolver()
		resolver.BuildIndex(parseResult.files, parseResult.functions, parseResult.imports, parseResult.packageNames)
		resolvedCalls := resolver.ResolveCalls(parseResult.unresolvedCalls)
		parseResult.calls = append(parseResult.calls, resolvedCalls...)

		p.logger.Info("local.ingestion.cross_package_calls.resolved",
			"local_calls", len(parseResult.calls)-len(resolvedCalls),
			"cross_package_resolved", len(resolvedCalls),
		)
	}

	parseErrorRate := 0.0
	if len(filesToParse) > 0 {
		parseErrorRate = float64(parseErrors) / float64(len(filesToParse)) * 100.0
	}

	p.logger.Info("local.ingestion.parse.complete",
		"files", len(parseResult.files),
		"functions", len(parseResult.functions),
		"types", len(parseResult.types),
		"defines", len(parseResult.defines),
		"calls", len(parseResult.calls),
		"parse_errors", parseErrors,
		"code_text_truncated", codeTextTruncated,
		"duration_ms", parseDuration.Milliseconds(),
	)

	embedStart := time.Now()
	embedResult, err := p.embeddingGen.EmbedFunctions(ctx, parseResult.functions)
	if err != nil {
		return nil, fmt.Errorf("generate embeddings: %w", err)
	}
	parseResult.functions = embedResult.Functions
	embeddingErrors := embedResult.ErrorCount

	if len(parseResult.types) > 0 {
		typeEmbedResult, err := p.embeddingGen.EmbedTypes(ctx, parseResult.types)
		if err != nil {
			return nil, fmt.Errorf("generate type embeddings: %w", err)
		}
		parseResult.types = typeEmbedResult.Types
		embeddingErrors += typeEmbedResult.ErrorCount
	}
	embedDuration := time.Since(embedStart)

	p.logger.Info("local.ingestion.embeddings.complete",
		"functions", len(parseResult.functions),
		"types", len(parseResult.types),
		"errors", embeddingErrors,
		"duration_ms", embedDuration.Milliseconds(),
	)

	if err := ValidateEntities(parseResult.files, parseResult.functions, parseResult.defines, parseResult.calls); err != nil {
		return nil, fmt.Errorf("entity validation failed: %w", err)
	}

	writeStart := time.Now()
	mutations := p.datalogBuild.BuildMutationsWithTypes(
		parseResult.files,
		parseResult.functions,
		parseResult.types,
		parseResult.defines,
		parseResult.definesTypes,
		parseResult.calls,
		parseResult.imports,
	)

	// A single file's extraction writes atomically, but the coordinator
	// stops at the first batch failure unless ContinueOnError asks it to
	// collect the error and keep going.
	if err := p.backend.Execute(ctx, mutations); err != nil {
		if !p.config.IngestionConfig.ContinueOnError {
			return nil, fmt.Errorf("write to local db: %w", err)
		}
		p.logger.Warn("local.ingestion.write.error", "err", err)
	}
	writeDuration := time.Since(writeStart)

	p.finishRun(runID)

	totalDuration := time.Since(startTime)
	entitiesSent := len(parseResult.files) + len(parseResult.functions) + len(parseResult.types) +
		len(parseResult.defines) + len(parseResult.definesTypes) + len(parseResult.calls) + len(parseResult.imports)

	result := &IngestionResult{
		ProjectID:          p.config.ProjectID,
		RunID:              runID,
		Incremental:        incremental,
		FilesProcessed:     len(parseResult.files),
		FunctionsExtracted: len(parseResult.functions),
		TypesExtracted:     len(parseResult.types),
		DefinesEdges:       len(parseResult.defines),
		CallsEdges:         len(parseResult.calls),
		EntitiesSent:       entitiesSent,
		ParseErrors:        parseErrors,
		ParseErrorRate:     parseErrorRate,
		EmbeddingErrors:    embeddingErrors,
		CodeTextTruncated:  codeTextTruncated,
		TopSkipReasons:     loadResult.SkipReasons,
		ParseDuration:      parseDuration,
		EmbedDuration:      embedDuration,
		WriteDuration:      writeDuration,
		TotalDuration:      totalDuration,
	}
	if incremental {
		result.FilesDeleted = len(delta.Deleted)
	}

	p.logger.Info("local.ingestion.complete",
		"project_id", p.config.ProjectID,
		"run_id", runID,
		"incremental", incremental,
		"files", result.FilesProcessed,
		"functions", result.FunctionsExtracted,
		"types", result.TypesExtracted,
		"entities_written", result.EntitiesSent,
		"parse_errors", result.ParseErrors,
		"embedding_errors", result.EmbeddingErrors,
		"total_duration_ms", result.TotalDuration.Milliseconds(),
	)

	return result, nil
}

// finishRun records the completion marker status reporting reads.
func (p *LocalPipeline) finishRun(_ string) {
	if err := p.backend.SetLastIndexedAt(time.Now().UTC().Format(time.RFC3339)); err != nil {
		p.logger.Warn("local.ingestion.marker.error", "err", err)
	}
}

// filesByPath returns the FileInfo entries from all whose Path is in paths,
// preserving all's order.
func filesByPath(all []FileInfo, paths []string) []FileInfo {
	want := make(map[string]bool, len(paths))
	for _, p := range paths {
		want[p] = true
	}
	var out []FileInfo
	for _, f := range all {
		if want[f.Path] {
			out = append(out, f)
		}
	}
	return out
}

// parseFilesParallel parses files using a bounded pool of goroutines. A
// per-file parse error does not abort the run: it is counted and logged, and
// the remaining files keep going.
func (p *LocalPipeline) parseFilesParallel(ctx context.Context, files []FileInfo, numWorkers int) (*parseFilesResult, int) {
	if len(files) == 0 {
		return &parseFilesResult{packageNames: make(map[string]string)}, 0
	}

	if len(files) < 10 || numWorkers <= 1 {
		return p.parseFilesSequential(ctx, files)
	}

	parseResults := make([]*ParseResult, len(files))
	var errorCount atomic.Int32
	var progressCount atomic.Int64
	totalFiles := int64(len(files))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(numWorkers)

	for i, fileInfo := range files {
		i, fileInfo := i, fileInfo
		g.Go(func() error {
			select {
			case <-gCtx.Done():
				return nil
			default:
			}

			pr, err := p.parser.ParseFile(fileInfo)
			if err != nil {
				errorCount.Add(1)
				p.logger.Warn("local.ingestion.parse_file.error", "path", fileInfo.Path, "err", err)
			} else {
				parseResults[i] = pr
			}
			current := progressCount.Add(1)
			p.reportProgress(current, totalFiles, "parsing")
			return nil
		})
	}
	_ = g.Wait() // per-file errors are swallowed above; Wait never returns a non-nil error

	result := &parseFilesResult{
		packageNames: make(map[string]string),
	}
	for _, pr := range parseResults {
		if pr == nil {
			continue
		}
		if pr.PackageName != "" {
			result.packageNames[pr.File.Path] = pr.PackageName
		}
		result.files = append(result.files, pr.File)
		result.functions = append(result.functions, pr.Functions...)
		result.types = append(result.types, pr.Types...)
		result.defines = append(result.defines, pr.Defines...)
		result.definesTypes = append(result.definesTypes, pr.DefinesTypes...)
		result.calls = append(result.calls, pr.Calls...)
		result.imports = append(result.imports, pr.Imports...)
		result.unresolvedCalls = append(result.unresolvedCalls, pr.UnresolvedCalls...)
	}

	return result, int(errorCount.Load())
}

// parseFilesSequential parses files sequentially. Used for small file sets
// where spinning up a worker pool isn't worth the overhead.
func (p *LocalPipeline) parseFilesSequential(ctx context.Context, files []FileInfo) (*parseFilesResult, int) {
	result := &parseFilesResult{
		packageNames: make(map[string]string),
	}
	errorCount := 0
	totalFiles := int64(len(files))

	for i, fileInfo := range files {
		select {
		case <-ctx.Done():
			return result, errorCount
		default:
		}

		pr, err := p.parser.ParseFile(fileInfo)
		if err != nil {
			errorCount++
			p.logger.Warn("local.ingestion.parse_file.error", "path", fileInfo.Path, "err", err)
			p.reportProgress(int64(i+1), totalFiles, "parsing")
			continue
		}

		result.files = append(result.files, pr.File)
		result.functions = append(result.functions, pr.Functions...)
		result.types = append(result.types, pr.Types...)
		result.defines = append(result.defines, pr.Defines...)
		result.definesTypes = append(result.definesTypes, pr.DefinesTypes...)
		result.calls = append(result.calls, pr.Calls...)
		result.imports = append(result.imports, pr.Imports...)
		result.unresolvedCalls = append(result.unresolvedCalls, pr.UnresolvedCalls...)
		if pr.PackageName != "" {
			result.packageNames[fileInfo.Path] = pr.PackageName
		}
		p.reportProgress(int64(i+1), totalFiles, "parsing")
	}

	return result, errorCount
}
