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


package passage

import (
	"context"
	"log/slog"

	"github.com/graniteworks/passage/ai"
	"github.com/graniteworks/passage/ai/openai"
	"github.com/graniteworks/passage/core"
	"github.com/graniteworks/passage/embedding"
	"github.com/graniteworks/passage/ingestion"
	"github.com/graniteworks/passage/memory"
	"github.com/graniteworks/passage/search"
	"github.com/graniteworks/passage/storage"
	"github.com/graniteworks/passage/storage/badger"
	"github.com/graniteworks/passage/tokenizer"
)

const (
	// citationSnippetLimit bounds the chunk text carried on a citation.
	citationSnippetLimit = 200

	// retrievalFactor over-fetches retrieval relative to the final topK so
	// the reranker has candidates to discard.
	retrievalFactor = 2
)

// Database wires storage, the AI provider and the tokenizer behind a single
// handle. It owns their lifecycles; Close releases everything it opened.
type Database struct {
	backend     *badger.Backend
	chunkRepo   storage.ChunkRepository
	sessionRepo storage.SessionRepository
	provider    ai.AIProvider
	tok         tokenizer.Tokenizer
	window      *memory.MemoryWindow
	logger      *slog.Logger
}

// DatabaseOption configures a Database.
type DatabaseOption func(*databaseOptions)

type databaseOptions struct {
	aiConfig *ai.Config
	tok      tokenizer.Tokenizer
	inMemory bool
}

// WithAIConfig overrides the default AI provider configuration.
func WithAIConfig(config *ai.Config) DatabaseOption {
	return func(o *databaseOptions) {
		o.aiConfig = config
	}
}

// WithTokenizer overrides the tokenizer used for chunk sizing and the
// session window budget.
func WithTokenizer(tok tokenizer.Tokenizer) DatabaseOption {
	return func(o *databaseOptions) {
		o.tok = tok
	}
}

// WithInMemory opens the storage backend in memory, discarding all data on
// Close. The filePath argument is ignored in this mode.
func WithInMemory() DatabaseOption {
	return func(o *databaseOptions) {
		o.inMemory = true
	}
}

func NewDatabase(filePath string, opts ...DatabaseOption) (*Database, error) {
	options := &databaseOptions{
		aiConfig: ai.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(options)
	}

	if options.tok == nil {
		tok, err := tokenizer.NewTikToken(tokenizer.DefaultEncoding)
		if err != nil {
			return nil, err
		}
		options.tok = tok
	}

	backend, err := badger.OpenBackend(filePath, options.inMemory)
	if err != nil {
		return nil, err
	}

	chunkRepo, err := badger.NewChunkRepository(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	sessionRepo, err := badger.NewSessionRepository(backend)
	if err != nil {
		backend.Close()
		return nil, err
	}

	provider, err := openai.NewProvider(options.aiConfig)
	if err != nil {
		backend.Close()
		return nil, err
	}

	window, err := memory.NewMemoryWindow(sessionRepo, options.tok)
	if err != nil {
		provider.Close()
		backend.Close()
		return nil, err
	}

	return &Database{
		backend:     backend,
		chunkRepo:   chunkRepo,
		sessionRepo: sessionRepo,
		provider:    provider,
		tok:         options.tok,
		window:      window,
		logger:      slog.Default().With("component", "database"),
	}, nil
}

func (db *Database) Close() error {
	if err := db.provider.Close(); err != nil {
		db.logger.Error("error closing AI provider", "err", err)
	}

	if err := db.sessionRepo.Close(); err != nil {
		db.logger.Error("error closing session repository", "err", err)
		return err
	}
	if err := db.chunkRepo.Close(); err != nil {
		db.logger.Error("error closing chunk repository", "err", err)
		return err
	}

	if err := db.backend.Close(); err != nil {
		db.logger.Error("error closing backend storage", "err", err)
		return err
	}
	return nil
}

func (db *Database) ChunkRepository() storage.ChunkRepository {
	return db.chunkRepo
}

func (db *Database) SessionRepository() storage.SessionRepository {
	return db.sessionRepo
}

// Memory returns the session window shared by all callers of this Database.
func (db *Database) Memory() *memory.MemoryWindow {
	return db.window
}

// NewIngestionPipeline creates a pipeline that chunks, embeds and persists
// documents into this database. The caller must Release it when done.
func (db *Database) NewIngestionPipeline(opts ...ingestion.Option) (*ingestion.Pipeline, error) {
	chunker, err := ingestion.NewChunker(db.tok)
	if err != nil {
		return nil, err
	}
	embedder, err := embedding.NewBatchEmbedder(db.provider.Embedder())
	if err != nil {
		return nil, err
	}
	return ingestion.NewPipeline(db.chunkRepo, chunker, embedder, opts...)
}

// NewRetriever creates a hybrid retriever over this database's chunks.
func (db *Database) NewRetriever(opts ...search.RetrieverOption) (*search.HybridRetriever, error) {
	return search.NewHybridRetriever(db.chunkRepo, db.provider.Embedder(), opts...)
}

// NewReranker creates a reranker backed by this database's relevance scorer.
func (db *Database) NewReranker(opts ...search.RerankerOption) (*search.Reranker, error) {
	return search.NewReranker(db.provider.RelevanceScorer(), opts...)
}

// ContextBundle is everything the generation step needs for one query:
// the reranked passages and the recent turns of the session, oldest first.
// Generation itself happens outside this module.
type ContextBundle struct {
	Query    string
	Passages []*core.RetrievalCandidate
	History  []*core.ConversationTurn
}

// Citations derives one citation per passage, with a bounded snippet of the
// chunk text. Pass these to Memory().Append when recording the assistant turn
// built from this bundle.
func (b *ContextBundle) Citations() []core.Citation {
	citations := make([]core.Citation, 0, len(b.Passages))
	for _, candidate := range b.Passages {
		snippet := candidate.Chunk.Contents
		if len(snippet) > citationSnippetLimit {
			snippet = snippet[:citationSnippetLimit]
		}
		citations = append(citations, core.Citation{
			ChunkId:    candidate.Chunk.Id,
			DocumentId: candidate.Chunk.DocumentId,
			Snippet:    snippet,
		})
	}
	return citations
}

// BuildContext runs the full query-time flow for one session: hybrid
// retrieval, reranking, and the session window. The user turn is recorded
// together with the history read, so History holds exactly the turns the
// query responds to; callers append the assistant turn later, with
// bundle.Citations(), through Memory().
//
// Retrieval fetches retrievalFactor×topK candidates so the reranker narrows
// the set instead of merely reordering it.
func (db *Database) BuildContext(ctx context.Context, sessionId, query string, topK int, filters map[string]string) (*ContextBundle, error) {
	retriever, err := db.NewRetriever()
	if err != nil {
		return nil, err
	}
	reranker, err := db.NewReranker()
	if err != nil {
		return nil, err
	}

	candidates, err := retriever.Search(ctx, query, retrievalFactor*topK, filters)
	if err != nil {
		return nil, err
	}

	passages, err := reranker.Rerank(ctx, query, candidates, topK)
	if err != nil {
		return nil, err
	}

	_, history, err := db.window.AppendAndWindow(ctx, sessionId, core.RoleUser, query, nil)
	if err != nil {
		return nil, err
	}

	return &ContextBundle{
		Query:    query,
		Passages: passages,
		History:  history,
	}, nil
}
