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


// Package storage provides the storage abstraction layer for passage.
//
// This package defines repository interfaces that decouple persistence from
// the retrieval logic. ChunkRepository answers the two independently ranked
// queries (vector similarity and lexical relevance) that the hybrid retriever
// fuses; SessionRepository is the append-only conversation log the memory
// window reads from.
//
// # Constructor Return Type Pattern
//
// Public constructors of backend packages return these interfaces rather than
// concrete types:
//
//	repo, err := badger.NewChunkRepository(backend)  // storage.ChunkRepository
//
// This keeps callers decoupled from BadgerDB specifics and lets tests swap in
// alternative implementations without modification.
//
// # Thread Safety
//
// All repository implementations must be thread-safe and support concurrent
// access from multiple goroutines.
//
// # Context Support
//
// All repository methods accept context.Context for cancellation and timeout
// support.
package storage
