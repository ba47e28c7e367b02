package core

import (
	"encoding/binary"
	"strconv"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a unique identifier for domain entities.
// It is generated using content-based hashing so that identical content
// always maps to the same identity across indexing runs.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// Role identifies the author of a conversation turn.
type Role int

const (
	// RoleUser represents a human user.
	RoleUser Role = iota + 1
	// RoleAssistant represents an AI assistant.
	RoleAssistant
	// RoleSystem represents system-injected context.
	RoleSystem
)

// Document is a raw source document prior to chunking.
// Documents are treated as immutable once they have been chunked.
type Document struct {
	Id       ID
	Filename string
	Title    string
	Author   string
	DocType  string
	Contents string
	Metadata map[string]string // Arbitrary document metadata (source, section, tags)
}

// ChunkID derives the deterministic ID of the chunk at the given index.
func (d *Document) ChunkID(index int) ID {
	return IDFromContent(strconv.FormatUint(uint64(d.Id), 10) + ":" + strconv.Itoa(index))
}

// Chunk is a bounded, overlapping slice of a document's text. It is the unit
// of embedding and retrieval.
type Chunk struct {
	Id          ID
	DocumentId  ID
	Index       int // Sequence index within the parent document
	TotalChunks int
	Contents    string
	TokenCount  int
	CharCount   int
	Oversize    bool      // Set when a single unsplittable unit exceeded the chunk size
	Vector      []float32 // Embedding vector (populated by the embedding stage)
	Metadata    map[string]string
	InsertedAt  time.Time
	UpdatedAt   time.Time
}

// ChunkMatch is a single-signal match returned by a vector or lexical query.
type ChunkMatch struct {
	Chunk *Chunk
	Score float64
}

// RetrievalCandidate is a fused retrieval result for one chunk.
// VectorScore is a similarity in [0,1]; LexicalScore is an unbounded
// rank score >= 0. Candidates absent from one signal carry 0 for that side.
type RetrievalCandidate struct {
	Chunk        *Chunk
	VectorScore  float64
	LexicalScore float64
	Combined     float64
	RerankScore  float64 // Populated by the reranker; zero until then
	InVectorSet  bool
	InLexicalSet bool
}

// CombineScores computes the weighted fusion score for a candidate.
// The result is deterministic given the two component scores and weights.
func CombineScores(vectorScore, lexicalScore, vectorWeight, lexicalWeight float64) float64 {
	return vectorScore*vectorWeight + lexicalScore*lexicalWeight
}

// Citation references a chunk used to support an assistant turn.
type Citation struct {
	ChunkId    ID
	DocumentId ID
	Snippet    string
}

// ConversationTurn is a single message within a session's history.
type ConversationTurn struct {
	Id         ID
	SessionId  string
	Seq        uint64 // Insertion order within the session
	Role       Role
	Contents   string
	TokenCount int // Counted at append time with the session tokenizer
	Citations  []Citation
	CreatedAt  time.Time
}
