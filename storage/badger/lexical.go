package badger

import (
	"context"
	"math"
	"slices"
	"strings"

	"github.com/graniteworks/passage/core"
)

// Stop words to filter out of lexical queries and documents
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "be": true, "is": true, "are": true,
	"was": true, "to": true, "of": true, "and": true, "in": true, "that": true,
	"have": true, "it": true, "for": true, "not": true, "on": true, "with": true,
	"as": true, "you": true, "do": true, "at": true, "this": true, "but": true,
	"by": true, "from": true,
}

// tokenizeAndFilter splits text into words, lowercases, trims punctuation, and removes stop words
func tokenizeAndFilter(text string) []string {
	words := strings.Fields(text)
	filtered := make([]string, 0, len(words))

	for _, word := range words {
		// Lowercase and trim punctuation
		cleaned := strings.ToLower(strings.Trim(word, ".,!?;:'\"-()[]{}"))

		// Skip stop words and empty strings
		if cleaned != "" && !stopWords[cleaned] {
			filtered = append(filtered, cleaned)
		}
	}

	return filtered
}

// termFrequencies counts occurrences of each filtered term in text.
func termFrequencies(text string) map[string]int {
	freqs := make(map[string]int)
	for _, term := range tokenizeAndFilter(text) {
		freqs[term]++
	}
	return freqs
}

// lexicalCandidate holds per-chunk state collected during the corpus scan.
type lexicalCandidate struct {
	chunk    *core.Chunk
	termFreq map[string]int
	length   int // total filtered terms in the chunk
}

// LexicalSearch ranks chunks whose text contains every query term by a
// TF-IDF relevance score. Chunks missing any query term are absent from the
// result rather than scored zero. The score is >= 0 and unbounded.
//
// Like VectorSearch, this is a full scan over chunk records; document
// frequencies are computed over the filtered corpus in the same pass.
func (b *Backend) LexicalSearch(ctx context.Context, query string, limit int, filters map[string]string) ([]*core.ChunkMatch, error) {
	queryTerms := tokenizeAndFilter(query)
	if len(queryTerms) == 0 {
		return []*core.ChunkMatch{}, nil
	}

	// Deduplicate query terms so repeated words don't double-count
	slices.Sort(queryTerms)
	queryTerms = slices.Compact(queryTerms)

	var (
		candidates []lexicalCandidate
		docFreq    = make(map[string]int, len(queryTerms))
		corpusSize int
	)

	err := b.forEachChunk(func(chunk *core.Chunk) error {
		if !matchesFilters(chunk, filters) {
			return nil
		}
		corpusSize++

		freqs := termFrequencies(chunk.Contents)
		matchesAll := true
		for _, term := range queryTerms {
			if freqs[term] > 0 {
				docFreq[term]++
			} else {
				matchesAll = false
			}
		}

		if matchesAll {
			length := 0
			for _, count := range freqs {
				length += count
			}
			candidates = append(candidates, lexicalCandidate{
				chunk:    chunk,
				termFreq: freqs,
				length:   length,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	results := make([]*core.ChunkMatch, 0, len(candidates))
	for _, cand := range candidates {
		score := 0.0
		for _, term := range queryTerms {
			score += float64(cand.termFreq[term]) * inverseDocFrequency(docFreq[term], corpusSize)
		}
		// Dampen long chunks so raw term repetition doesn't dominate
		score /= 1.0 + math.Log(1.0+float64(cand.length))

		results = append(results, &core.ChunkMatch{Chunk: cand.chunk, Score: score})
	}

	// Sort by score descending; stable so equal scores keep key order
	slices.SortStableFunc(results, func(a, b *core.ChunkMatch) int {
		if a.Score > b.Score {
			return -1
		}
		if a.Score < b.Score {
			return 1
		}
		return 0
	})

	if len(results) > limit {
		results = results[:limit]
	}

	return results, nil
}

// inverseDocFrequency computes a smoothed IDF that stays >= 0 even for terms
// present in every chunk.
func inverseDocFrequency(docFreq, corpusSize int) float64 {
	return math.Log(1.0 + (float64(corpusSize)-float64(docFreq)+0.5)/(float64(docFreq)+0.5))
}
