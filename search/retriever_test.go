package search

import (
	"context"
	"errors"
	"testing"

	"github.com/graniteworks/passage/ai/mock"
	"github.com/graniteworks/passage/core"
	"github.com/graniteworks/passage/storage"
	"github.com/graniteworks/passage/storage/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) storage.ChunkRepository {
	t.Helper()

	chunkRepo, sessionRepo, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() { sessionRepo.Close(); chunkRepo.Close(); backend.Close() })
	return chunkRepo
}

func storeChunk(t *testing.T, repo storage.ChunkRepository, id core.ID, contents string, vector []float32, metadata map[string]string) {
	t.Helper()

	_, err := repo.AddChunks(context.Background(), &core.Chunk{
		Id:       id,
		Contents: contents,
		Vector:   vector,
		Metadata: metadata,
	})
	require.NoError(t, err)
}

func TestHybridRetriever_Search(t *testing.T) {
	repo := newTestStore(t)

	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return []float32{1, 0}, nil
	}

	// Chunk 1: strong vector match, also a lexical match for "lighthouse"
	storeChunk(t, repo, 1, "The lighthouse beam sweeps the bay.", []float32{1, 0}, nil)
	// Chunk 2: weak vector match, no lexical match
	storeChunk(t, repo, 2, "Grain prices rose again this quarter.", []float32{0.1, 0.99}, nil)

	retriever, err := NewHybridRetriever(repo, embedder)
	require.NoError(t, err)

	candidates, err := retriever.Search(context.Background(), "lighthouse", 5, nil)
	require.NoError(t, err)

	require.NotEmpty(t, candidates)
	assert.Equal(t, core.ID(1), candidates[0].Chunk.Id)
	assert.True(t, candidates[0].InVectorSet)
	assert.True(t, candidates[0].InLexicalSet)
	assert.Greater(t, candidates[0].Combined, candidates[len(candidates)-1].Combined)
}

func TestHybridRetriever_TruncatesToTopK(t *testing.T) {
	repo := newTestStore(t)

	for i := 1; i <= 8; i++ {
		storeChunk(t, repo, core.ID(i), "harbor light and fog", []float32{1, 0}, nil)
	}

	retriever, err := NewHybridRetriever(repo, mock.NewMockEmbedder())
	require.NoError(t, err)

	candidates, err := retriever.Search(context.Background(), "harbor", 3, nil)
	require.NoError(t, err)
	assert.Len(t, candidates, 3)
}

func TestHybridRetriever_FiltersNarrowBothSets(t *testing.T) {
	repo := newTestStore(t)

	storeChunk(t, repo, 1, "lighthouse in the north", []float32{1, 0}, map[string]string{"filename": "north.txt"})
	storeChunk(t, repo, 2, "lighthouse in the south", []float32{1, 0}, map[string]string{"filename": "south.txt"})

	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return []float32{1, 0}, nil
	}

	retriever, err := NewHybridRetriever(repo, embedder)
	require.NoError(t, err)

	candidates, err := retriever.Search(context.Background(), "lighthouse", 5, map[string]string{"filename": "north.txt"})
	require.NoError(t, err)

	require.Len(t, candidates, 1)
	assert.Equal(t, core.ID(1), candidates[0].Chunk.Id)
}

func TestHybridRetriever_EmbeddingFailureIsRetrievalError(t *testing.T) {
	repo := newTestStore(t)

	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return nil, errors.New("embedding service down")
	}

	retriever, err := NewHybridRetriever(repo, embedder)
	require.NoError(t, err)

	_, err = retriever.Search(context.Background(), "query", 5, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrRetrieval)
}

func TestHybridRetriever_InvalidTopK(t *testing.T) {
	retriever, err := NewHybridRetriever(newTestStore(t), mock.NewMockEmbedder())
	require.NoError(t, err)

	_, err = retriever.Search(context.Background(), "query", 0, nil)
	assert.ErrorIs(t, err, ErrInvalidTopK)
}

func TestHybridRetriever_CustomWeights(t *testing.T) {
	repo := newTestStore(t)

	// Chunk 1 wins on vector, chunk 2 wins on lexical
	storeChunk(t, repo, 1, "unrelated words entirely", []float32{1, 0}, nil)
	storeChunk(t, repo, 2, "beacon beacon beacon beacon", []float32{0, 1}, nil)

	embedder := mock.NewMockEmbedder()
	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
		return []float32{1, 0}, nil
	}

	// All weight on the lexical side: the lexical winner must come first
	retriever, err := NewHybridRetriever(repo, embedder, WithWeights(0, 1))
	require.NoError(t, err)

	candidates, err := retriever.Search(context.Background(), "beacon", 5, nil)
	require.NoError(t, err)

	require.NotEmpty(t, candidates)
	assert.Equal(t, core.ID(2), candidates[0].Chunk.Id)
}

func TestNewHybridRetriever_Validation(t *testing.T) {
	repo := newTestStore(t)

	_, err := NewHybridRetriever(nil, mock.NewMockEmbedder())
	assert.ErrorIs(t, err, ErrChunkRepositoryRequired)

	_, err = NewHybridRetriever(repo, nil)
	assert.ErrorIs(t, err, ErrEmbedderRequired)

	_, err = NewHybridRetriever(repo, mock.NewMockEmbedder(), WithWeights(-1, 0.4))
	assert.ErrorIs(t, err, ErrInvalidWeights)
}
