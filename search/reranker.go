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
	"log/slog"
	"sort"

	"github.com/graniteworks/passage/ai"
	"github.com/graniteworks/passage/core"
)

// NeutralScore is substituted when scoring an individual candidate fails.
// A failed judgment says nothing about relevance either way, so the candidate
// keeps a middle-of-the-road rank instead of sinking or aborting the query.
const NeutralScore = 0.5

// Reranker re-scores fused candidates with a secondary relevance signal and
// narrows them to a final set.
type Reranker struct {
	scorer ai.RelevanceScorer
	logger *slog.Logger
}

// RerankerOption configures a Reranker.
type RerankerOption func(*Reranker) error

// WithRerankerLogger sets a custom logger.
// Default is slog.Default().
func WithRerankerLogger(logger *slog.Logger) RerankerOption {
	return func(r *Reranker) error {
		if logger == nil {
			logger = slog.Default()
		}
		r.logger = logger.With("component", "reranker")
		return nil
	}
}

// NewReranker creates a new reranker backed by the given scorer.
func NewReranker(scorer ai.RelevanceScorer, opts ...RerankerOption) (*Reranker, error) {
	if scorer == nil {
		return nil, ErrScorerRequired
	}

	r := &Reranker{
		scorer: scorer,
		logger: slog.Default().With("component", "reranker"),
	}

	for _, opt := range opts {
		if err := opt(r); err != nil {
			return nil, err
		}
	}

	return r, nil
}

// Rerank scores the top 2×topK candidates against the query and returns the
// topK best by the new score. Candidates past the 2×topK cutoff are never
// scored; re-scoring the whole fused list costs more than it improves the
// final set. The rerank score is authoritative for the returned ordering;
// the fused score is kept on each candidate for diagnostics.
func (r *Reranker) Rerank(ctx context.Context, query string, candidates []*core.RetrievalCandidate, topK int) ([]*core.RetrievalCandidate, error) {
	return r.RerankWithMonitor(ctx, query, candidates, topK, nil)
}

// RerankWithMonitor is Rerank with stage callbacks.
// An individual candidate whose scoring fails receives NeutralScore rather
// than aborting the query; the failure is logged and reported to the monitor.
func (r *Reranker) RerankWithMonitor(ctx context.Context, query string, candidates []*core.RetrievalCandidate, topK int, monitor SearchMonitor) ([]*core.RetrievalCandidate, error) {
	if topK <= 0 {
		return nil, ErrInvalidTopK
	}
	if monitor == nil {
		monitor = &noopMonitor{}
	}

	scoreLimit := 2 * topK
	if len(candidates) > scoreLimit {
		candidates = candidates[:scoreLimit]
	}

	reranked := make([]*core.RetrievalCandidate, len(candidates))
	for i, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		score, err := r.scorer.ScoreRelevance(ctx, query, candidate.Chunk.Contents)
		if err != nil {
			r.logger.Warn("failed to score candidate, using neutral score",
				"chunkId", candidate.Chunk.Id, "err", err)
			monitor.RerankFallback(candidate.Chunk.Id, err)
			score = NeutralScore
		}

		candidate.RerankScore = clampScore(score)
		reranked[i] = candidate
	}

	sort.SliceStable(reranked, func(i, j int) bool {
		return reranked[i].RerankScore > reranked[j].RerankScore
	})

	if len(reranked) > topK {
		reranked = reranked[:topK]
	}

	monitor.Finish(reranked)

	return reranked, nil
}

// clampScore forces an out-of-range scorer response into [0, 1].
func clampScore(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
