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


package openai

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/graniteworks/passage/ai"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// scoreTextLimit caps how much of the candidate text is sent to the model.
// Relevance judgment rarely improves past the first few hundred characters
// and long prompts slow scoring down considerably.
const scoreTextLimit = 500

// RelevanceScorer implements ai.RelevanceScorer using OpenAI-compatible chat APIs.
// It asks the model for a single number between 0 and 1 and parses it from
// the first whitespace-delimited token of the response.
type RelevanceScorer struct {
	client llms.Model
	logger *slog.Logger
}

// newRelevanceScorer is an internal constructor that returns the concrete type.
// Used by Provider to manage the instance.
func newRelevanceScorer(config *ai.Config) (*RelevanceScorer, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	// Use "none" as token for local OpenAI-compatible services that don't require authentication
	client, err := openai.New(
		openai.WithBaseURL(config.ScorerHost),
		openai.WithToken("none"),
		openai.WithModel(config.ScorerModel),
	)
	if err != nil {
		return nil, err
	}

	return &RelevanceScorer{
		client: client,
		logger: slog.Default().With("component", "openai-scorer"),
	}, nil
}

// NewRelevanceScorer creates a new relevance scorer using the provided configuration.
//
// Returns ai.RelevanceScorer interface to enforce abstraction.
func NewRelevanceScorer(config *ai.Config) (ai.RelevanceScorer, error) {
	return newRelevanceScorer(config)
}

// ScoreRelevance rates how relevant text is to query on a 0-1 scale.
func (s *RelevanceScorer) ScoreRelevance(ctx context.Context, query, text string) (float64, error) {
	if len(text) > scoreTextLimit {
		text = text[:scoreTextLimit]
	}

	prompt := fmt.Sprintf(`Rate the relevance of the following text to the query on a scale of 0 to 1.
Only respond with a number between 0 and 1.

Query: %s

Text: %s

Relevance score:`, query, text)

	content := []llms.MessageContent{
		{
			Role: llms.ChatMessageTypeHuman,
			Parts: []llms.ContentPart{
				llms.TextPart(prompt),
			},
		},
	}

	response, err := s.client.GenerateContent(ctx, content,
		llms.WithTemperature(0.0),
		llms.WithMaxTokens(10),
	)
	if err != nil {
		s.logger.Error("failed to generate relevance score", "err", err)
		return 0, err
	}

	if len(response.Choices) < 1 {
		s.logger.Warn("no choices returned from scorer model")
		return 0, ErrEmptyScorerResponse
	}

	score, err := parseScore(response.Choices[0].Content)
	if err != nil {
		s.logger.Warn("could not parse scorer response", "response", response.Choices[0].Content, "err", err)
		return 0, err
	}

	return score, nil
}

// parseScore extracts a relevance score from the first token of a model
// response and clamps it to [0, 1].
func parseScore(response string) (float64, error) {
	fields := strings.Fields(response)
	if len(fields) == 0 {
		return 0, ErrEmptyScorerResponse
	}

	score, err := strconv.ParseFloat(strings.TrimSuffix(fields[0], "."), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrMalformedScore, err)
	}

	return max(0.0, min(1.0, score)), nil
}
