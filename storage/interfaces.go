package storage

import (
	"context"

	"github.com/graniteworks/passage/core"
)

// Repository provides common storage operations shared across all repositories.
// Implementations must be thread-safe and support concurrent access.
type Repository interface {
	// WithTransaction executes a function within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	// Close closes the storage backend and releases resources.
	Close() error
}

// ChunkRepository provides operations for managing embedded document chunks
// and answering the two retrieval queries the hybrid retriever fuses.
type ChunkRepository interface {
	Repository

	// AddChunks adds one or more chunks to storage.
	// Chunks keep their caller-assigned content-hash IDs; adding a chunk with
	// an existing ID overwrites it, which makes re-indexing idempotent.
	// Sets InsertedAt/UpdatedAt timestamps.
	AddChunks(ctx context.Context, chunks ...*core.Chunk) ([]*core.Chunk, error)

	// UpdateChunks updates existing chunks.
	// Updates the UpdatedAt timestamp automatically.
	// Returns ErrNotFound if any chunk doesn't exist.
	UpdateChunks(ctx context.Context, chunks ...*core.Chunk) ([]*core.Chunk, error)

	// DeleteChunks removes chunks by their IDs.
	// Returns ErrNotFound if any chunk doesn't exist.
	DeleteChunks(ctx context.Context, ids ...core.ID) error

	// GetChunk retrieves a single chunk by ID.
	// Returns ErrNotFound if the chunk doesn't exist.
	GetChunk(ctx context.Context, id core.ID) (*core.Chunk, error)

	// GetChunks retrieves multiple chunks by their IDs.
	// Returns only the chunks that exist (no error for missing chunks).
	GetChunks(ctx context.Context, ids ...core.ID) ([]*core.Chunk, error)

	// GetChunksByDocument retrieves all chunks of a document ordered by index.
	GetChunksByDocument(ctx context.Context, documentID core.ID) ([]*core.Chunk, error)

	// VectorSearch finds chunks nearest to the query vector.
	// Scores are similarities in [0,1], highest first, up to limit results.
	// Chunks without an embedding are never returned. Filters are equality
	// predicates over chunk metadata applied before ranking.
	VectorSearch(ctx context.Context, vector []float32, limit int, filters map[string]string) ([]*core.ChunkMatch, error)

	// LexicalSearch finds chunks whose text matches the query terms and ranks
	// them by a term-frequency relevance score (>= 0, unbounded). Chunks that
	// do not match are absent from the result, not scored zero. Filters are
	// equality predicates over chunk metadata applied before ranking.
	LexicalSearch(ctx context.Context, query string, limit int, filters map[string]string) ([]*core.ChunkMatch, error)
}

// SessionRepository provides append/read access to per-session conversation
// turns. Sessions are created lazily on first append and are never
// garbage-collected here; lifecycle belongs to the caller.
type SessionRepository interface {
	Repository

	// AppendTurns appends turns to a session in order.
	// Assigns Seq, Id and CreatedAt, and returns the populated turns.
	AppendTurns(ctx context.Context, sessionID string, turns ...*core.ConversationTurn) ([]*core.ConversationTurn, error)

	// GetTurns retrieves all turns of a session in insertion order.
	// An unknown session yields an empty slice, not an error.
	GetTurns(ctx context.Context, sessionID string) ([]*core.ConversationTurn, error)

	// ClearSession removes all turns of a session.
	// Clearing an unknown session is a no-op.
	ClearSession(ctx context.Context, sessionID string) error
}
