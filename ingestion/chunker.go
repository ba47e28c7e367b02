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


package ingestion

import (
	"log/slog"
	"strings"

	"github.com/graniteworks/passage/core"
	"github.com/graniteworks/passage/tokenizer"
)

const (
	// DefaultChunkSize is the default target chunk size in tokens.
	DefaultChunkSize = 512

	// DefaultOverlap is the default overlap between consecutive chunks in tokens.
	DefaultOverlap = 50
)

// Chunker splits document text into overlapping, token-bounded chunks along
// sentence boundaries. Identical input and configuration always produce an
// identical chunk sequence, which keeps chunk IDs stable across re-indexing.
type Chunker struct {
	tokenizer tokenizer.Tokenizer
	chunkSize int
	overlap   int
	logger    *slog.Logger
}

// ChunkerOption configures a Chunker.
type ChunkerOption func(*Chunker) error

// WithChunkSize sets the target chunk size in tokens.
// Default is DefaultChunkSize.
func WithChunkSize(size int) ChunkerOption {
	return func(c *Chunker) error {
		if size <= 0 {
			return ErrInvalidChunkSize
		}
		c.chunkSize = size
		return nil
	}
}

// WithOverlap sets the token overlap between consecutive chunks.
// Default is DefaultOverlap.
func WithOverlap(overlap int) ChunkerOption {
	return func(c *Chunker) error {
		if overlap < 0 {
			return ErrInvalidOverlap
		}
		c.overlap = overlap
		return nil
	}
}

// WithChunkerLogger sets a custom logger.
// Default is slog.Default().
func WithChunkerLogger(logger *slog.Logger) ChunkerOption {
	return func(c *Chunker) error {
		if logger == nil {
			logger = slog.Default()
		}
		c.logger = logger.With("component", "chunker")
		return nil
	}
}

// NewChunker creates a chunker that sizes chunks with the given tokenizer.
func NewChunker(tok tokenizer.Tokenizer, opts ...ChunkerOption) (*Chunker, error) {
	if tok == nil {
		return nil, ErrTokenizerRequired
	}

	c := &Chunker{
		tokenizer: tok,
		chunkSize: DefaultChunkSize,
		overlap:   DefaultOverlap,
		logger:    slog.Default().With("component", "chunker"),
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	if c.overlap >= c.chunkSize {
		return nil, ErrInvalidOverlap
	}

	return c, nil
}

// ChunkDocument splits a document into chunks. Empty documents produce zero
// chunks and a warning log, not an error. Each chunk carries its index, the
// total chunk count, and metadata merged from the document; metadata keys set
// by the chunker are never overwritten by document keys.
func (c *Chunker) ChunkDocument(doc *core.Document) []*core.Chunk {
	contents := strings.TrimSpace(doc.Contents)
	if contents == "" {
		c.logger.Warn("empty contents for document", "filename", doc.Filename)
		return nil
	}

	c.logger.Debug("chunking document", "filename", doc.Filename)

	pieces := c.packSentences(splitSentences(contents))

	chunks := make([]*core.Chunk, len(pieces))
	for i, piece := range pieces {
		tokenCount := c.tokenizer.Count(piece)
		chunks[i] = &core.Chunk{
			Id:          doc.ChunkID(i),
			DocumentId:  doc.Id,
			Index:       i,
			TotalChunks: len(pieces),
			Contents:    piece,
			TokenCount:  tokenCount,
			CharCount:   len(piece),
			Oversize:    tokenCount > c.chunkSize,
			Metadata:    c.chunkMetadata(doc),
		}
	}

	c.logger.Debug("created chunks for document", "filename", doc.Filename, "chunks", len(chunks))

	return chunks
}

// packSentences greedily packs sentences into token-bounded pieces.
// When a piece closes, the next piece is seeded with a suffix of the previous
// piece's sentences whose cumulative token count fits in the overlap budget.
// Sentences longer than the chunk size fall back to word-level packing with
// no overlap.
func (c *Chunker) packSentences(sentences []string) []string {
	var pieces []string
	var current []string
	currentTokens := 0

	for _, sentence := range sentences {
		sentenceTokens := c.tokenizer.Count(sentence)

		switch {
		case sentenceTokens > c.chunkSize:
			if len(current) > 0 {
				pieces = append(pieces, strings.Join(current, " "))
				current = nil
				currentTokens = 0
			}
			pieces = append(pieces, c.packWords(sentence)...)

		case currentTokens+sentenceTokens > c.chunkSize:
			if len(current) > 0 {
				pieces = append(pieces, strings.Join(current, " "))
			}

			// The seeded piece must still fit the chunk size, so the
			// overlap budget shrinks when the incoming sentence is large.
			budget := c.overlap
			if room := c.chunkSize - sentenceTokens; room < budget {
				budget = room
			}

			if budget > 0 && len(current) > 0 {
				overlapSentences, overlapTokens := c.overlapSuffix(current, budget)
				current = append(overlapSentences, sentence)
				currentTokens = overlapTokens + sentenceTokens
			} else {
				current = []string{sentence}
				currentTokens = sentenceTokens
			}

		default:
			current = append(current, sentence)
			currentTokens += sentenceTokens
		}
	}

	if len(current) > 0 {
		pieces = append(pieces, strings.Join(current, " "))
	}

	return pieces
}

// overlapSuffix walks a closed piece's sentences backward, collecting the
// most recent sentences that fit the given token budget.
func (c *Chunker) overlapSuffix(sentences []string, budget int) ([]string, int) {
	var suffix []string
	tokens := 0

	for i := len(sentences) - 1; i >= 0; i-- {
		sentenceTokens := c.tokenizer.Count(sentences[i])
		if tokens+sentenceTokens > budget {
			break
		}
		suffix = append([]string{sentences[i]}, suffix...)
		tokens += sentenceTokens
	}

	return suffix, tokens
}

// packWords splits an oversize sentence into word-packed pieces.
func (c *Chunker) packWords(sentence string) []string {
	var pieces []string
	var current []string
	currentTokens := 0

	for _, word := range strings.Fields(sentence) {
		wordTokens := c.tokenizer.Count(word)
		if currentTokens+wordTokens > c.chunkSize {
			if len(current) > 0 {
				pieces = append(pieces, strings.Join(current, " "))
			}
			current = []string{word}
			currentTokens = wordTokens
		} else {
			current = append(current, word)
			currentTokens += wordTokens
		}
	}

	if len(current) > 0 {
		pieces = append(pieces, strings.Join(current, " "))
	}

	return pieces
}

// chunkMetadata builds a chunk's metadata from its document. Document custom
// metadata is merged in without overwriting keys the chunker sets.
func (c *Chunker) chunkMetadata(doc *core.Document) map[string]string {
	metadata := make(map[string]string, len(doc.Metadata)+3)
	if doc.Filename != "" {
		metadata["filename"] = doc.Filename
	}
	if doc.Title != "" {
		metadata["title"] = doc.Title
	}
	if doc.Author != "" {
		metadata["author"] = doc.Author
	}

	for key, value := range doc.Metadata {
		if _, exists := metadata[key]; !exists {
			metadata[key] = value
		}
	}

	return metadata
}

// splitSentences splits text on terminal punctuation (., !, ?) followed by
// whitespace. The punctuation stays attached to its sentence. Whitespace is
// trimmed and empty sentences are dropped.
func splitSentences(text string) []string {
	var sentences []string
	start := 0

	for i := 0; i < len(text); i++ {
		if !isTerminal(text[i]) {
			continue
		}

		// Absorb a run of terminal punctuation ("?!", "...")
		end := i
		for end+1 < len(text) && isTerminal(text[end+1]) {
			end++
		}

		if end+1 < len(text) && !isWhitespace(text[end+1]) {
			i = end
			continue
		}

		if sentence := strings.TrimSpace(text[start : end+1]); sentence != "" {
			sentences = append(sentences, sentence)
		}
		start = end + 1
		i = end
	}

	if sentence := strings.TrimSpace(text[start:]); sentence != "" {
		sentences = append(sentences, sentence)
	}

	return sentences
}

func isTerminal(b byte) bool {
	return b == '.' || b == '!' || b == '?'
}

func isWhitespace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}
