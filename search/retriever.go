// Copyright 2025 Graniteworks
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package search

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/graniteworks/passage/ai"
	"github.com/graniteworks/passage/core"
	"github.com/graniteworks/passage/storage"
)

const (
	// DefaultVectorWeight is the default weight for the vector similarity score.
	DefaultVectorWeight = 0.6

	// DefaultLexicalWeight is the default weight for the lexical rank score.
	DefaultLexicalWeight = 0.4
)

// HybridRetriever fuses vector-similarity and lexical candidate sets into a
// single ranked list of chunks.
type HybridRetriever struct {
	chunkRepository storage.ChunkRepository
	embedder        ai.Embedder
	vectorWeight    float64
	lexicalWeight   float64
	logger          *slog.Logger
}

// RetrieverOption configures a HybridRetriever.
type RetrieverOption func(*HybridRetriever) error

// WithWeights sets the fusion weights for the vector and lexical scores.
// Defaults are DefaultVectorWeight and DefaultLexicalWeight.
func WithWeights(vectorWeight, lexicalWeight float64) RetrieverOption {
	return func(r *HybridRetriever) error {
		if vectorWeight < 0 || lexicalWeight < 0 {
			return ErrInvalidWeights
		}
		r.vectorWeight = vectorWeight
		r.lexicalWeight = lexicalWeight
		return nil
	}
}

// WithRetrieverLogger sets a custom logger.
// Default is slog.Default().
func WithRetrieverLogger(logger *slog.Logger) RetrieverOption {
	return func(r *HybridRetriever) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger.With("component", "retriever")
		return nil
	}
}

// NewHybridRetriever creates a new hybrid retriever.
func NewHybridRetriever(
	chunkRepository storage.ChunkRepository,
	embedder ai.Embedder,
	opts ...RetrieverOption,
) (*HybridRetriever, error) {
	if chunkRepository == nil {
		return nil, ErrChunkRepositoryRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	r := &HybridRetriever{
		chunkRepository: chunkRepository,
		embedder:        embedder,
		vectorWeight:    DefaultVectorWeight,
		lexicalWeight:   DefaultLexicalWeight,
		logger:          slog.Default().With("component", "retriever"),
	}

	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}

	return r, nil
}

// Search retrieves the topK chunks most relevant to the query text.
// Returns candidates ordered by combined score, highest first.
func (r *HybridRetriever) Search(ctx context.Context, query string, topK int, filters map[string]string) ([]*core.RetrievalCandidate, error) {
	return r.SearchWithMonitor(ctx, query, topK, filters, nil)
}

// SearchWithMonitor retrieves the topK chunks most relevant to the query text,
// with callbacks at each stage of the process.
//
// Both candidate sets are capped at 2×topK to give the fusion step headroom:
// a chunk ranked just past topK in one set can still make the final list when
// the other set agrees. Failures from the embedder or storage surface as a
// single retrieval error; no partial results are returned.
func (r *HybridRetriever) SearchWithMonitor(ctx context.Context, query string, topK int, filters map[string]string, monitor SearchMonitor) ([]*core.RetrievalCandidate, error) {
	if topK <= 0 {
		return nil, ErrInvalidTopK
	}
	if monitor == nil {
		monitor = &noopMonitor{}
	}

	monitor.Start(query)

	queryVector, err := r.embedder.EmbedText(ctx, query)
	if err != nil {
		r.logger.Error("error generating embedding for query", "err", err)
		return nil, fmt.Errorf("%w: query embedding: %w", core.ErrRetrieval, err)
	}
	monitor.AfterQueryEmbedding(queryVector)

	candidateLimit := 2 * topK

	vectorMatches, err := r.chunkRepository.VectorSearch(ctx, queryVector, candidateLimit, filters)
	if err != nil {
		r.logger.Error("error querying vector candidates", "err", err)
		return nil, fmt.Errorf("%w: vector search: %w", core.ErrRetrieval, err)
	}
	monitor.AfterVectorSearch(vectorMatches)

	lexicalMatches, err := r.chunkRepository.LexicalSearch(ctx, query, candidateLimit, filters)
	if err != nil {
		r.logger.Error("error querying lexical candidates", "err", err)
		return nil, fmt.Errorf("%w: lexical search: %w", core.ErrRetrieval, err)
	}
	monitor.AfterLexicalSearch(lexicalMatches)

	candidates := Fuse(vectorMatches, lexicalMatches, r.vectorWeight, r.lexicalWeight)
	monitor.AfterFusion(candidates)

	if len(candidates) > topK {
		candidates = candidates[:topK]
	}

	r.logger.Debug("retrieval complete",
		"vectorHits", len(vectorMatches),
		"lexicalHits", len(lexicalMatches),
		"returned", len(candidates))

	monitor.Finish(candidates)

	return candidates, nil
}
