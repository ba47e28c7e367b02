// Package ingestion provides document loading, chunking, and pipeline
// orchestration for building the searchable chunk store.
//
// The Chunker splits document text into overlapping, token-bounded chunks
// along sentence boundaries. The Pipeline type manages the full ingestion
// workflow: loading documents, chunking, generating embeddings, and
// persisting embedded chunks.
//
// Documents are processed concurrently using worker pools to maximize
// throughput. A document that fails during a directory ingest is logged and
// skipped rather than failing the run.
package ingestion
