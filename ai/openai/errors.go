package openai

import "errors"

var (
	// ErrEmptyScorerResponse is returned when the scorer model produces no output.
	ErrEmptyScorerResponse = errors.New("scorer returned an empty response")

	// ErrMalformedScore is returned when the scorer output cannot be parsed as a number.
	ErrMalformedScore = errors.New("scorer returned a non-numeric response")
)
