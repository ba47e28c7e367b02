package ingestion

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/graniteworks/passage/ai/mock"
	"github.com/graniteworks/passage/core"
	"github.com/graniteworks/passage/embedding"
	"github.com/graniteworks/passage/storage"
	"github.com/graniteworks/passage/storage/badger"
	"github.com/graniteworks/passage/tokenizer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPipeline(t *testing.T, embedder *mock.MockEmbedder) (*Pipeline, storage.ChunkRepository) {
	t.Helper()

	chunkRepo, sessionRepo, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() { sessionRepo.Close(); chunkRepo.Close(); backend.Close() })

	chunker, err := NewChunker(tokenizer.NewWords(), WithChunkSize(10), WithOverlap(2))
	require.NoError(t, err)

	batchEmbedder, err := embedding.NewBatchEmbedder(embedder,
		embedding.WithRetryBaseDelay(time.Millisecond),
		embedding.WithMaxRetries(2))
	require.NoError(t, err)
	t.Cleanup(batchEmbedder.Release)

	pipeline, err := NewPipeline(chunkRepo, chunker, batchEmbedder)
	require.NoError(t, err)
	t.Cleanup(pipeline.Release)

	return pipeline, chunkRepo
}

func TestPipeline_IngestDocument(t *testing.T) {
	pipeline, chunkRepo := newTestPipeline(t, mock.NewMockEmbedder())

	doc := &core.Document{
		Id:       core.IDFromContent("guide.txt"),
		Filename: "guide.txt",
		Contents: "The lighthouse keeper trims the lamp. Ships pass the harbor at dawn. Fog rolls in from the sea.",
	}

	result, err := pipeline.IngestDocument(context.Background(), doc)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Documents)
	assert.Greater(t, result.Chunks, 0)
	assert.Equal(t, result.Chunks, result.Embedded)
	assert.Equal(t, result.Embedded, result.Persisted)

	stored, err := chunkRepo.GetChunksByDocument(context.Background(), doc.Id)
	require.NoError(t, err)
	assert.Len(t, stored, result.Persisted)
	for _, chunk := range stored {
		assert.NotEmpty(t, chunk.Vector, "persisted chunks must carry embeddings")
	}
}

func TestPipeline_EmptyDocumentIsNotAnError(t *testing.T) {
	pipeline, _ := newTestPipeline(t, mock.NewMockEmbedder())

	doc := &core.Document{Id: core.IDFromContent("empty.txt"), Filename: "empty.txt"}

	result, err := pipeline.IngestDocument(context.Background(), doc)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Chunks)
	assert.Equal(t, 0, result.Persisted)
}

func TestPipeline_FailedEmbeddingsAreNotPersisted(t *testing.T) {
	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return nil, errors.New("embedding service down")
	}

	pipeline, chunkRepo := newTestPipeline(t, embedder)

	doc := &core.Document{
		Id:       core.IDFromContent("down.txt"),
		Filename: "down.txt",
		Contents: "Some contents that will fail to embed.",
	}

	result, err := pipeline.IngestDocument(context.Background(), doc)
	require.NoError(t, err)

	assert.Equal(t, 0, result.Embedded)
	assert.Equal(t, result.Chunks, result.FailedEmbeddings)
	assert.Equal(t, 0, result.Persisted)

	stored, err := chunkRepo.GetChunksByDocument(context.Background(), doc.Id)
	require.NoError(t, err)
	assert.Empty(t, stored)
}

func TestPipeline_IngestDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("The first document. It has sentences."), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.md"), []byte("# Second\n\nThe second document."), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ignored.bin"), []byte{0x00, 0x01}, 0o644))

	pipeline, _ := newTestPipeline(t, mock.NewMockEmbedder())

	result, err := pipeline.IngestDirectory(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Documents)
	assert.Greater(t, result.Persisted, 0)
}

func TestPipeline_RequiredDependencies(t *testing.T) {
	chunker, err := NewChunker(tokenizer.NewWords())
	require.NoError(t, err)

	batchEmbedder, err := embedding.NewBatchEmbedder(mock.NewMockEmbedder())
	require.NoError(t, err)
	defer batchEmbedder.Release()

	_, err = NewPipeline(nil, chunker, batchEmbedder)
	assert.ErrorIs(t, err, ErrChunkRepositoryRequired)

	chunkRepo, sessionRepo, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	defer func() { sessionRepo.Close(); chunkRepo.Close(); backend.Close() }()

	_, err = NewPipeline(chunkRepo, nil, batchEmbedder)
	assert.ErrorIs(t, err, ErrChunkerRequired)

	_, err = NewPipeline(chunkRepo, chunker, nil)
	assert.ErrorIs(t, err, ErrEmbedderRequired)
}
