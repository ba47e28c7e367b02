package badger

import (
	"context"
	"testing"

	"github.com/graniteworks/passage/core"
)

func TestTokenizeAndFilter(t *testing.T) {
	terms := tokenizeAndFilter("The lighthouse, and THE keeper of the light!")
	expected := []string{"lighthouse", "keeper", "light"}
	if len(terms) != len(expected) {
		t.Fatalf("Expected %v, got %v", expected, terms)
	}
	for i, term := range terms {
		if term != expected[i] {
			t.Fatalf("Expected %v, got %v", expected, terms)
		}
	}
}

func TestLexicalSearchRequiresAllTerms(t *testing.T) {
	chunkRepo, sessionRepo, backend, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repositories: %v", err)
	}
	defer func() { sessionRepo.Close(); chunkRepo.Close(); backend.Close() }()

	ctx := context.Background()
	doc := &core.Document{Id: core.IDFromContent("lex.txt"), Filename: "lex.txt"}

	if _, err := chunkRepo.AddChunks(ctx,
		newTestChunk(doc, 0, "The lighthouse keeper trims the lamp every night.", nil),
		newTestChunk(doc, 1, "The keeper's dog sleeps through the storm.", nil),
		newTestChunk(doc, 2, "Ships pass the harbor in the morning fog.", nil),
	); err != nil {
		t.Fatalf("Failed to add chunks: %v", err)
	}

	matches, err := chunkRepo.LexicalSearch(ctx, "lighthouse keeper", 10, nil)
	if err != nil {
		t.Fatalf("LexicalSearch failed: %v", err)
	}

	// Only the chunk containing both terms should appear
	if len(matches) != 1 {
		t.Fatalf("Expected 1 match, got %d", len(matches))
	}
	if matches[0].Chunk.Index != 0 {
		t.Fatalf("Expected chunk 0, got %d", matches[0].Chunk.Index)
	}
	if matches[0].Score <= 0 {
		t.Fatalf("Expected positive score, got %f", matches[0].Score)
	}
}

func TestLexicalSearchRanksRarerTermsHigher(t *testing.T) {
	chunkRepo, sessionRepo, backend, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repositories: %v", err)
	}
	defer func() { sessionRepo.Close(); chunkRepo.Close(); backend.Close() }()

	ctx := context.Background()
	doc := &core.Document{Id: core.IDFromContent("rank.txt"), Filename: "rank.txt"}

	if _, err := chunkRepo.AddChunks(ctx,
		newTestChunk(doc, 0, "beacon beacon beacon shines over the water", nil),
		newTestChunk(doc, 1, "beacon shines once over the water near the dunes", nil),
		newTestChunk(doc, 2, "water water water everywhere along the coast", nil),
	); err != nil {
		t.Fatalf("Failed to add chunks: %v", err)
	}

	matches, err := chunkRepo.LexicalSearch(ctx, "beacon", 10, nil)
	if err != nil {
		t.Fatalf("LexicalSearch failed: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("Expected 2 matches, got %d", len(matches))
	}
	if matches[0].Chunk.Index != 0 {
		t.Fatalf("Expected the repeated-term chunk first, got %d", matches[0].Chunk.Index)
	}
	if matches[0].Score <= matches[1].Score {
		t.Fatalf("Expected descending scores, got %f then %f", matches[0].Score, matches[1].Score)
	}
}

func TestLexicalSearchStopWordsOnly(t *testing.T) {
	chunkRepo, sessionRepo, backend, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repositories: %v", err)
	}
	defer func() { sessionRepo.Close(); chunkRepo.Close(); backend.Close() }()

	ctx := context.Background()
	doc := &core.Document{Id: core.IDFromContent("stop.txt"), Filename: "stop.txt"}
	if _, err := chunkRepo.AddChunks(ctx, newTestChunk(doc, 0, "the and of it", nil)); err != nil {
		t.Fatalf("Failed to add chunk: %v", err)
	}

	matches, err := chunkRepo.LexicalSearch(ctx, "the and of", 10, nil)
	if err != nil {
		t.Fatalf("LexicalSearch failed: %v", err)
	}
	if len(matches) != 0 {
		t.Fatalf("Expected no matches for stop-word query, got %d", len(matches))
	}
}

func TestLexicalSearchTiesKeepKeyOrder(t *testing.T) {
	chunkRepo, sessionRepo, backend, err := NewMemoryRepositories()
	if err != nil {
		t.Fatalf("Failed to create repositories: %v", err)
	}
	defer func() { sessionRepo.Close(); chunkRepo.Close(); backend.Close() }()

	ctx := context.Background()

	// Identical contents score identically; insert out of ID order so the
	// cut at the limit would be arbitrary under an unstable sort.
	for _, id := range []core.ID{4, 1, 3, 2} {
		chunk := &core.Chunk{
			Id:         id,
			DocumentId: core.IDFromContent("ties.txt"),
			Index:      int(id),
			Contents:   "the beacon turns all night",
		}
		if _, err := chunkRepo.AddChunks(ctx, chunk); err != nil {
			t.Fatalf("Failed to add chunk %d: %v", id, err)
		}
	}

	matches, err := chunkRepo.LexicalSearch(ctx, "beacon", 2, nil)
	if err != nil {
		t.Fatalf("LexicalSearch failed: %v", err)
	}

	if len(matches) != 2 {
		t.Fatalf("Expected 2 matches, got %d", len(matches))
	}
	for i, want := range []core.ID{1, 2} {
		if matches[i].Chunk.Id != want {
			t.Fatalf("Expected chunk %d at position %d, got %d", want, i, matches[i].Chunk.Id)
		}
	}
}
