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


// Package search provides hybrid retrieval and reranking over stored chunks.
//
// The HybridRetriever fuses two independently ranked candidate sets:
//   - Vector similarity over chunk embeddings
//   - Lexical term-relevance ranking over chunk text
//
// Fusion is a full outer join keyed by chunk identity with weighted combined
// scores. The Reranker then re-scores the top fused candidates against the
// query with a secondary relevance signal and narrows them to the final set.
package search
