package embedding

import "errors"

var (
	// ErrInvalidMaxAttempts is returned when maxAttempts is <= 0
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")

	// ErrEmptyText is returned for items whose text is empty or whitespace-only.
	// Empty text can never embed successfully, so it is never retried.
	ErrEmptyText = errors.New("cannot embed empty text")

	// ErrNilEmbedder is returned when a BatchEmbedder is constructed without an embedder.
	ErrNilEmbedder = errors.New("embedder must not be nil")
)
