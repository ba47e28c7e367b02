// Package embedding provides batch embedding of chunk text with bounded
// parallelism and per-item failure isolation.
//
// This package supports independent retry with exponential backoff for each
// item, per-call timeouts, coarse progress tracking, and vector normalization
// to ensure compatibility with cosine similarity search.
package embedding
