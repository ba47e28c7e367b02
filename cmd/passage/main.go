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


package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/graniteworks/passage"
	"github.com/graniteworks/passage/ai"
	"github.com/graniteworks/passage/ai/openai"
	"github.com/graniteworks/passage/core"
	"github.com/graniteworks/passage/embedding"
	"github.com/graniteworks/passage/ingestion"
	"github.com/graniteworks/passage/storage/badger"
	"github.com/graniteworks/passage/tokenizer"
)

func main() {
	app := &cli.App{
		Name:  "passage",
		Usage: "Retrieval-augmented document store with hybrid search and session memory",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setup,
		Commands: []*cli.Command{
			{
				Name:      "index",
				Usage:     "Chunk, embed and store documents from a file or directory",
				ArgsUsage: "<path>",
				Action:    indexCommand,
				Flags: append(storeFlags(), aiFlags("PASSAGE_EMBEDDING_HOST",
					&cli.IntFlag{
						Name:  "chunk-size",
						Usage: "Maximum chunk size in tokens",
						Value: ingestion.DefaultChunkSize,
					},
					&cli.IntFlag{
						Name:  "overlap",
						Usage: "Token overlap between consecutive chunks",
						Value: ingestion.DefaultOverlap,
					},
					&cli.IntFlag{
						Name:  "concurrency",
						Usage: "Concurrent embedding requests",
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum embedding attempts per chunk",
						Value: 3,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: 1 * time.Second,
					},
				)...),
			},
			{
				Name:      "search",
				Usage:     "Run a hybrid search over indexed chunks",
				ArgsUsage: "<query>",
				Action:    searchCommand,
				Flags: append(storeFlags(), aiFlags("PASSAGE_SCORER_HOST",
					&cli.IntFlag{
						Name:    "top-k",
						Aliases: []string{"k"},
						Usage:   "Number of results to return",
						Value:   5,
					},
					&cli.BoolFlag{
						Name:  "rerank",
						Usage: "Rescore fused results with the relevance scorer",
					},
					&cli.StringSliceFlag{
						Name:  "filter",
						Usage: "Metadata equality filter (key=value, repeatable)",
					},
				)...),
			},
			{
				Name:      "ask",
				Usage:     "Build the retrieval context for a query within a session",
				ArgsUsage: "<query>",
				Action:    askCommand,
				Flags: append(storeFlags(), aiFlags("PASSAGE_SCORER_HOST",
					&cli.StringFlag{
						Name:    "session",
						Aliases: []string{"s"},
						Usage:   "Session identifier (generated when omitted)",
					},
					&cli.IntFlag{
						Name:    "top-k",
						Aliases: []string{"k"},
						Usage:   "Number of passages to include",
						Value:   5,
					},
				)...),
			},
			{
				Name:      "clear-session",
				Usage:     "Remove all turns of a session",
				ArgsUsage: "<session-id>",
				Action:    clearSessionCommand,
				Flags:     storeFlags(),
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func storeFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "db",
			Aliases:  []string{"d"},
			Usage:    "Path to BadgerDB database directory",
			EnvVars:  []string{"PASSAGE_DB"},
			Required: true,
		},
	}
}

func aiFlags(hostEnv string, extra ...cli.Flag) []cli.Flag {
	flags := []cli.Flag{
		&cli.StringFlag{
			Name:    "host",
			Usage:   "OpenAI-compatible service host URL",
			EnvVars: []string{"PASSAGE_HOST", hostEnv},
			Value:   "http://localhost:11434/v1",
		},
		&cli.StringFlag{
			Name:    "embedding-model",
			Usage:   "Embedding model name",
			EnvVars: []string{"PASSAGE_EMBEDDING_MODEL"},
			Value:   "nomic-embed-text",
		},
		&cli.StringFlag{
			Name:    "scorer-model",
			Usage:   "Relevance scorer model name",
			EnvVars: []string{"PASSAGE_SCORER_MODEL"},
			Value:   "llama3.2:3b",
		},
	}
	return append(flags, extra...)
}

func aiConfigFromFlags(c *cli.Context) (*ai.Config, error) {
	config := ai.NewConfig(
		ai.WithHost(c.String("host")),
		ai.WithEmbeddingModel(c.String("embedding-model")),
		ai.WithScorerModel(c.String("scorer-model")),
	)
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid AI configuration: %w", err)
	}
	return config, nil
}

func indexCommand(c *cli.Context) error {
	ctx := context.Background()

	path := c.Args().First()
	if path == "" {
		return fmt.Errorf("a file or directory path is required")
	}

	aiConfig, err := aiConfigFromFlags(c)
	if err != nil {
		return err
	}

	backend, err := badger.OpenBackend(c.String("db"), false)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer backend.Close()

	chunkRepo, err := badger.NewChunkRepository(backend)
	if err != nil {
		return fmt.Errorf("failed to create chunk repository: %w", err)
	}

	tok, err := tokenizer.NewTikToken(tokenizer.DefaultEncoding)
	if err != nil {
		return fmt.Errorf("failed to create tokenizer: %w", err)
	}

	chunker, err := ingestion.NewChunker(tok,
		ingestion.WithChunkSize(c.Int("chunk-size")),
		ingestion.WithOverlap(c.Int("overlap")),
	)
	if err != nil {
		return fmt.Errorf("invalid chunking configuration: %w", err)
	}

	embedder, err := openai.NewEmbedder(aiConfig)
	if err != nil {
		return fmt.Errorf("failed to create embedder: %w", err)
	}

	batchOpts := []embedding.Option{
		embedding.WithMaxRetries(c.Int("max-retries")),
		embedding.WithRetryBaseDelay(c.Duration("retry-delay")),
		embedding.WithProgress(os.Stderr),
	}
	if c.Int("concurrency") > 0 {
		batchOpts = append(batchOpts, embedding.WithConcurrency(c.Int("concurrency")))
	}

	batch, err := embedding.NewBatchEmbedder(embedder, batchOpts...)
	if err != nil {
		return fmt.Errorf("failed to create batch embedder: %w", err)
	}
	defer batch.Release()

	pipeline, err := ingestion.NewPipeline(chunkRepo, chunker, batch)
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}
	defer pipeline.Release()

	info, err := os.Stat(path)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Database: %s\n", c.String("db"))
	fmt.Fprintf(os.Stderr, "Host: %s\n", c.String("host"))
	fmt.Fprintf(os.Stderr, "Embedding model: %s\n", c.String("embedding-model"))
	fmt.Fprintln(os.Stderr)

	var result *ingestion.IngestResult
	if info.IsDir() {
		result, err = pipeline.IngestDirectory(ctx, path)
	} else {
		result, err = pipeline.IngestFile(ctx, path)
	}
	if err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}

	fmt.Printf("Documents:         %d\n", result.Documents)
	fmt.Printf("Chunks:            %d\n", result.Chunks)
	fmt.Printf("Embedded:          %d\n", result.Embedded)
	fmt.Printf("Failed embeddings: %d\n", result.FailedEmbeddings)
	fmt.Printf("Persisted:         %d\n", result.Persisted)
	return nil
}

func searchCommand(c *cli.Context) error {
	ctx := context.Background()

	query := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if query == "" {
		return fmt.Errorf("a query is required")
	}

	filters, err := parseFilters(c.StringSlice("filter"))
	if err != nil {
		return err
	}

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	retriever, err := db.NewRetriever()
	if err != nil {
		return err
	}

	// With --rerank, retrieval over-fetches so the scorer can discard
	// candidates, not just reorder the ones that would be returned anyway.
	topK := c.Int("top-k")
	fetchK := topK
	if c.Bool("rerank") {
		fetchK = 2 * topK
	}

	candidates, err := retriever.Search(ctx, query, fetchK, filters)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if c.Bool("rerank") {
		reranker, err := db.NewReranker()
		if err != nil {
			return err
		}
		candidates, err = reranker.Rerank(ctx, query, candidates, topK)
		if err != nil {
			return fmt.Errorf("reranking failed: %w", err)
		}
	}

	if len(candidates) == 0 {
		fmt.Println("No results.")
		return nil
	}

	for i, candidate := range candidates {
		printCandidate(i+1, candidate, c.Bool("rerank"))
	}
	return nil
}

func askCommand(c *cli.Context) error {
	ctx := context.Background()

	query := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if query == "" {
		return fmt.Errorf("a query is required")
	}

	sessionId := c.String("session")
	if sessionId == "" {
		sessionId = uuid.NewString()
		fmt.Fprintf(os.Stderr, "Session: %s\n", sessionId)
	}

	db, err := openDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	// BuildContext records the user turn together with the history read.
	bundle, err := db.BuildContext(ctx, sessionId, query, c.Int("top-k"), nil)
	if err != nil {
		return fmt.Errorf("context assembly failed: %w", err)
	}

	if len(bundle.History) > 0 {
		fmt.Println("History:")
		for _, turn := range bundle.History {
			fmt.Printf("  [%d] %s: %s\n", turn.Seq, roleName(turn.Role), turn.Contents)
		}
		fmt.Println()
	}

	if len(bundle.Passages) == 0 {
		fmt.Println("No passages.")
		return nil
	}

	fmt.Println("Passages:")
	for i, candidate := range bundle.Passages {
		printCandidate(i+1, candidate, true)
	}
	return nil
}

func clearSessionCommand(c *cli.Context) error {
	ctx := context.Background()

	sessionId := c.Args().First()
	if sessionId == "" {
		return fmt.Errorf("a session id is required")
	}

	backend, err := badger.OpenBackend(c.String("db"), false)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer backend.Close()

	sessionRepo, err := badger.NewSessionRepository(backend)
	if err != nil {
		return fmt.Errorf("failed to create session repository: %w", err)
	}

	if err := sessionRepo.ClearSession(ctx, sessionId); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}

	fmt.Printf("Cleared session %s\n", sessionId)
	return nil
}

func openDatabase(c *cli.Context) (*passage.Database, error) {
	aiConfig, err := aiConfigFromFlags(c)
	if err != nil {
		return nil, err
	}
	db, err := passage.NewDatabase(c.String("db"), passage.WithAIConfig(aiConfig))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

func printCandidate(rank int, candidate *core.RetrievalCandidate, reranked bool) {
	chunk := candidate.Chunk
	fmt.Printf("%d. [doc %d chunk %d]", rank, chunk.DocumentId, chunk.Index)
	if reranked {
		fmt.Printf(" rerank=%.3f", candidate.RerankScore)
	}
	fmt.Printf(" combined=%.3f (vector=%.3f lexical=%.3f)\n", candidate.Combined, candidate.VectorScore, candidate.LexicalScore)
	contents := chunk.Contents
	if len(contents) > 160 {
		contents = contents[:160] + "..."
	}
	fmt.Printf("   %s\n", contents)
}

func parseFilters(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	filters := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, found := strings.Cut(pair, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("invalid filter %q: expected key=value", pair)
		}
		filters[key] = value
	}
	return filters, nil
}

func roleName(role core.Role) string {
	switch role {
	case core.RoleUser:
		return "user"
	case core.RoleAssistant:
		return "assistant"
	case core.RoleSystem:
		return "system"
	default:
		return "unknown"
	}
}

func setup(c *cli.Context) error {
	// Missing .env files are fine; flags and real env still apply.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to load .env: %w", err)
	}

	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
