package memory

import "errors"

var (
	// ErrSessionRepositoryRequired is returned when a session repository is not provided.
	ErrSessionRepositoryRequired = errors.New("session repository required")

	// ErrTokenizerRequired is returned when a tokenizer is not provided.
	ErrTokenizerRequired = errors.New("tokenizer required")

	// ErrInvalidMaxMessages is returned when the message budget is not positive.
	ErrInvalidMaxMessages = errors.New("maxMessages must be greater than 0")

	// ErrInvalidMaxTokens is returned when the token budget is not positive.
	ErrInvalidMaxTokens = errors.New("maxTokens must be greater than 0")

	// ErrEmptySessionId is returned when a session identifier is empty.
	ErrEmptySessionId = errors.New("session id must not be empty")
)
