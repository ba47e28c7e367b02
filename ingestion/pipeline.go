package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"github.com/graniteworks/passage/core"
	"github.com/graniteworks/passage/embedding"
	"github.com/graniteworks/passage/storage"
	"github.com/panjf2000/ants/v2"
)

// Pipeline orchestrates document ingestion: chunking, embedding, and
// persistence. Documents are processed concurrently using a worker pool.
type Pipeline struct {
	chunkRepository storage.ChunkRepository
	chunker         *Chunker
	embedder        *embedding.BatchEmbedder
	loader          *Loader
	pool            *ants.Pool
	logger          *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the worker pool size for concurrent document processing.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}

		if p.pool != nil {
			p.pool.Release()
		}

		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		p.pool = pool
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger.With("component", "pipeline")
		return nil
	}
}

// NewPipeline creates an ingestion pipeline.
func NewPipeline(
	chunkRepository storage.ChunkRepository,
	chunker *Chunker,
	embedder *embedding.BatchEmbedder,
	opts ...Option,
) (*Pipeline, error) {
	if chunkRepository == nil {
		return nil, ErrChunkRepositoryRequired
	}
	if chunker == nil {
		return nil, ErrChunkerRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}

	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		chunkRepository: chunkRepository,
		chunker:         chunker,
		embedder:        embedder,
		loader:          NewLoader(),
		pool:            pool,
		logger:          slog.Default().With("component", "pipeline"),
	}

	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}

	return p, nil
}

// IngestResult reports the outcome of an ingestion run.
type IngestResult struct {
	// Documents is the number of documents processed.
	Documents int

	// Chunks is the total number of chunks produced.
	Chunks int

	// Embedded is the number of chunks that received an embedding.
	Embedded int

	// FailedEmbeddings is the number of chunks whose embedding failed all attempts.
	FailedEmbeddings int

	// Persisted is the number of chunks written to storage.
	Persisted int
}

func (r *IngestResult) merge(other *IngestResult) {
	r.Documents += other.Documents
	r.Chunks += other.Chunks
	r.Embedded += other.Embedded
	r.FailedEmbeddings += other.FailedEmbeddings
	r.Persisted += other.Persisted
}

// IngestDocument chunks a document, embeds the chunks, and persists those
// that embedded successfully. Chunks whose embedding failed are not written;
// a later re-index of the same document gets a fresh chance at them since
// chunk IDs are stable.
func (p *Pipeline) IngestDocument(ctx context.Context, doc *core.Document) (*IngestResult, error) {
	result := &IngestResult{Documents: 1}

	chunks := p.chunker.ChunkDocument(doc)
	result.Chunks = len(chunks)
	if len(chunks) == 0 {
		return result, nil
	}

	batch, err := p.embedder.EmbedChunks(ctx, chunks)
	if err != nil {
		return nil, fmt.Errorf("failed to embed chunks for %s: %w", doc.Filename, err)
	}
	result.Embedded = batch.Succeeded
	result.FailedEmbeddings = batch.Failed

	embedded := make([]*core.Chunk, 0, batch.Succeeded)
	for _, chunk := range chunks {
		if len(chunk.Vector) > 0 {
			embedded = append(embedded, chunk)
		}
	}
	if len(embedded) == 0 {
		p.logger.Warn("no chunks embedded for document", "filename", doc.Filename)
		return result, nil
	}

	added, err := p.chunkRepository.AddChunks(ctx, embedded...)
	if err != nil {
		return nil, fmt.Errorf("failed to persist chunks for %s: %w", doc.Filename, err)
	}
	result.Persisted = len(added)

	p.logger.Info("ingested document",
		"filename", doc.Filename,
		"chunks", result.Chunks,
		"embedded", result.Embedded,
		"persisted", result.Persisted)

	return result, nil
}

// IngestFile loads and ingests a single file.
func (p *Pipeline) IngestFile(ctx context.Context, path string) (*IngestResult, error) {
	doc, err := p.loader.LoadFile(path)
	if err != nil {
		return nil, err
	}
	return p.IngestDocument(ctx, doc)
}

// IngestDirectory loads all supported documents under a directory and ingests
// them concurrently. A document that fails is logged and skipped; the run
// continues with the remaining documents.
func (p *Pipeline) IngestDirectory(ctx context.Context, dir string) (*IngestResult, error) {
	documents, err := p.loader.LoadDirectory(dir)
	if err != nil {
		return nil, err
	}

	total := &IngestResult{}
	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)

	for _, doc := range documents {
		document := doc

		wg.Add(1)
		err := p.pool.Submit(func() {
			defer wg.Done()

			result, ingestErr := p.IngestDocument(ctx, document)
			if ingestErr != nil {
				p.logger.Error("error ingesting document", "filename", document.Filename, "err", ingestErr)
				return
			}

			mu.Lock()
			total.merge(result)
			mu.Unlock()
		})
		if err != nil {
			wg.Done()
			p.logger.Error("error submitting document", "filename", document.Filename, "err", err)
		}
	}

	wg.Wait()

	return total, ctx.Err()
}

// Release releases the worker pool.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.pool != nil {
		p.pool.Release()
	}
}
