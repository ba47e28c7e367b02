package mock

import (
	"context"
	"strings"
)

// MockScorer is a test double for ai.RelevanceScorer.
// It allows custom behavior injection via function fields.
type MockScorer struct {
	// ScoreRelevanceFunc is called by ScoreRelevance if set.
	// If nil, uses default word-overlap behavior.
	ScoreRelevanceFunc func(ctx context.Context, query, text string) (float64, error)

	callCount int
}

// NewMockScorer creates a mock scorer with default deterministic behavior.
// Note: Returns concrete type to allow test assertions.
func NewMockScorer() *MockScorer {
	return &MockScorer{}
}

// ScoreRelevance scores by the fraction of query words present in the text.
// The default gives deterministic, explainable scores for tests: a text
// containing every query word scores 1.0, one containing none scores 0.0.
func (m *MockScorer) ScoreRelevance(ctx context.Context, query, text string) (float64, error) {
	m.callCount++

	if m.ScoreRelevanceFunc != nil {
		return m.ScoreRelevanceFunc(ctx, query, text)
	}

	queryWords := strings.Fields(strings.ToLower(query))
	if len(queryWords) == 0 {
		return 0.0, nil
	}

	lowered := strings.ToLower(text)
	matched := 0
	for _, word := range queryWords {
		if strings.Contains(lowered, word) {
			matched++
		}
	}

	return float64(matched) / float64(len(queryWords)), nil
}

// CallCount returns the number of times ScoreRelevance was called.
func (m *MockScorer) CallCount() int {
	return m.callCount
}

// Reset clears the call count and injected behavior.
func (m *MockScorer) Reset() {
	m.callCount = 0
	m.ScoreRelevanceFunc = nil
}
