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


package search

import (
	"sort"

	"github.com/graniteworks/passage/core"
)

// Fuse merges a vector-similarity candidate set and a lexical candidate set
// into one ranked list. The merge is a full outer join keyed by chunk ID:
// a chunk present in only one set receives 0 for the missing side. The
// combined score is vectorScore×vectorWeight + lexicalScore×lexicalWeight.
// Results are sorted by combined score descending; ties are broken by vector
// score, then by insertion order (vector set first, stable).
func Fuse(vectorMatches, lexicalMatches []*core.ChunkMatch, vectorWeight, lexicalWeight float64) []*core.RetrievalCandidate {
	byID := make(map[core.ID]*core.RetrievalCandidate, len(vectorMatches)+len(lexicalMatches))
	candidates := make([]*core.RetrievalCandidate, 0, len(vectorMatches)+len(lexicalMatches))

	for _, match := range vectorMatches {
		candidate := &core.RetrievalCandidate{
			Chunk:       match.Chunk,
			VectorScore: match.Score,
			InVectorSet: true,
		}
		byID[match.Chunk.Id] = candidate
		candidates = append(candidates, candidate)
	}

	for _, match := range lexicalMatches {
		if candidate, ok := byID[match.Chunk.Id]; ok {
			candidate.LexicalScore = match.Score
			candidate.InLexicalSet = true
			continue
		}

		candidate := &core.RetrievalCandidate{
			Chunk:        match.Chunk,
			LexicalScore: match.Score,
			InLexicalSet: true,
		}
		byID[match.Chunk.Id] = candidate
		candidates = append(candidates, candidate)
	}

	for _, candidate := range candidates {
		candidate.Combined = core.CombineScores(candidate.VectorScore, candidate.LexicalScore, vectorWeight, lexicalWeight)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Combined != candidates[j].Combined {
			return candidates[i].Combined > candidates[j].Combined
		}
		return candidates[i].VectorScore > candidates[j].VectorScore
	})

	return candidates
}
