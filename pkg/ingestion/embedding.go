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
	"crypto/sha256"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

// EmbeddingProvider turns a code snippet into a fixed-size vector. The core
// indexer ships only the null and deterministic providers, neither of them
// semantic: semantic embedding is the work of
// an external collaborator that writes into the same cie_function_embedding
// / cie_type_embedding tables this package defines, not a dependency the
// coordinator calls out to directly.
type EmbeddingProvider interface {
	// Embed returns a vector for text. nil error with a zero-length vector
	// means "no embedding available", not a failure.
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
	Name() string
}

// nullProvider always returns a zero vector sized to dimensions. It is the
// default: a project with no embedding collaborator configured still
// indexes successfully, just without meaningful semantic search.
type nullProvider struct {
	dimensions int
}

func (p *nullProvider) Embed(_ context.Context, _ string) ([]float32, error) {
	return make([]float32, p.dimensions), nil
}
func (p *nullProvider) Dimensions() int { return p.dimensions }
func (p *nullProvider) Name() string    { return "null" }

// deterministicProvider derives a pseudo-embedding from the SHA-256 of the
// input text. It produces non-zero, stable vectors without a network
// dependency, which is what the HNSW index and similarity tests need to
// exercise meaningfully.
type deterministicProvider struct {
	dimensions int
}

func (p *deterministicProvider) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, p.dimensions)
	if p.dimensions == 0 {
		return vec, nil
	}
	sum := sha256.Sum256([]byte(text))
	for i := range vec {
		b := sum[i%len(sum)]
		vec[i] = (float32(b)/255.0)*2 - 1 // map to [-1, 1]
	}
	return vec, nil
}
func (p *deterministicProvider) Dimensions() int { return p.dimensions }
func (p *deterministicProvider) Name() string    { return "deterministic" }

// CreateEmbeddingProvider resolves the IngestionConfig.EmbeddingProvider
// name to a concrete provider sized to dimensions (the same width the
// store's embedding columns are created with). "null" (the default) and
// "deterministic"/"mock" are built in; any other name is an error rather
// than a silent fallback, so a misconfigured external collaborator is
// caught at startup.
func CreateEmbeddingProvider(name string, dimensions int, logger *slog.Logger) (EmbeddingProvider, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if dimensions <= 0 {
		dimensions = 384
	}
	switch name {
	case "", "null":
		return &nullProvider{dimensions: dimensions}, nil
	case "mock", "deterministic":
		return &deterministicProvider{dimensions: dimensions}, nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", name)
	}
}

// EmbedResult is the outcome of embedding a batch of functions.
type EmbedResult struct {
	Functions  []FunctionEntity
	ErrorCount int
}

// TypeEmbedResult is the outcome of embedding a batch of types.
type TypeEmbedResult struct {
	Types      []TypeEntity
	ErrorCount int
}

// EmbeddingGenerator fans embedding requests for a parsed batch out across
// a bounded worker pool, the same shape local_pipeline.go uses for parsing.
type EmbeddingGenerator struct {
	provider   EmbeddingProvider
	workers    int
	logger     *slog.Logger
	onProgress ProgressCallback
}

// NewEmbeddingGenerator creates a generator bound to provider, using
// workers concurrent goroutines (minimum 1).
func NewEmbeddingGenerator(provider EmbeddingProvider, workers int, logger *slog.Logger) *EmbeddingGenerator {
	if logger == nil {
		logger = slog.Default()
	}
	if workers <= 0 {
		workers = 1
	}
	return &EmbeddingGenerator{provider: provider, workers: workers, logger: logger}
}

// SetProgressCallback sets the callback invoked as embeddings complete.
func (g *EmbeddingGenerator) SetProgressCallback(cb ProgressCallback) {
	g.onProgress = cb
}

// EmbedFunctions computes an embedding for every function's code text.
// Providers resolving to a nil/zero vector (the null provider) still
// populate FunctionEntity.Embedding, so downstream writes are uniform
// whether or not a real embedding collaborator is configured.
func (g *EmbeddingGenerator) EmbedFunctions(ctx context.Context, functions []FunctionEntity) (*EmbedResult, error) {
	if len(functions) == 0 {
		return &EmbedResult{}, nil
	}

	out := make([]FunctionEntity, len(functions))
	copy(out, functions)
	var errorCount int32
	total := int64(len(out))

	g.forEachIndex(len(out), func(i int) {
		vec, err := g.provider.Embed(ctx, out[i].CodeText)
		if err != nil {
			atomic.AddInt32(&errorCount, 1)
			g.logger.Warn("embedding.function.error", "function_id", out[i].ID, "err", err)
			return
		}
		out[i].Embedding = vec
	}, total, "embedding_functions")

	return &EmbedResult{Functions: out, ErrorCount: int(errorCount)}, nil
}

// EmbedTypes computes an embedding for every type's code text.
func (g *EmbeddingGenerator) EmbedTypes(ctx context.Context, types []TypeEntity) (*TypeEmbedResult, error) {
	if len(types) == 0 {
		return &TypeEmbedResult{}, nil
	}

	out := make([]TypeEntity, len(types))
	copy(out, types)
	var errorCount int32
	total := int64(len(out))

	g.forEachIndex(len(out), func(i int) {
		vec, err := g.provider.Embed(ctx, out[i].CodeText)
		if err != nil {
			atomic.AddInt32(&errorCount, 1)
			g.logger.Warn("embedding.type.error", "type_id", out[i].ID, "err", err)
			return
		}
		out[i].Embedding = vec
	}, total, "embedding_types")

	return &TypeEmbedResult{Types: out, ErrorCount: int(errorCount)}, nil
}

// forEachIndex runs fn(i) for i in [0,n) across g.workers goroutines,
// reporting progress through onProgress as each index completes.
func (g *EmbeddingGenerator) forEachIndex(n int, fn func(i int), total int64, phase string) {
	if n == 0 {
		return
	}
	workers := g.workers
	if workers > n {
		workers = n
	}

	jobs := make(chan int, n)
	for i := 0; i < n; i++ {
		jobs <- i
	}
	close(jobs)

	var progress int64
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				fn(i)
				if g.onProgress != nil {
					cur := atomic.AddInt64(&progress, 1)
					g.onProgress(cur, total, phase)
				}
			}
		}()
	}
	wg.Wait()
}
