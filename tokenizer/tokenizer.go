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


package tokenizer

import (
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

// DefaultEncoding is the vocabulary used for all sizing decisions.
const DefaultEncoding = "cl100k_base"

// Tokenizer counts and encodes text into token units for a fixed vocabulary.
// Implementations must be safe for concurrent use.
type Tokenizer interface {
	// Count returns the number of tokens in text.
	Count(text string) int

	// Encode returns the token ids for text.
	Encode(text string) []int
}

// TikToken implements Tokenizer with a BPE vocabulary via tiktoken.
type TikToken struct {
	encoding *tiktoken.Tiktoken
}

var _ Tokenizer = (*TikToken)(nil)

// NewTikToken creates a tokenizer for the named encoding.
// Use DefaultEncoding unless the deployment's embedding model requires another.
func NewTikToken(encoding string) (*TikToken, error) {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, err
	}
	return &TikToken{encoding: enc}, nil
}

// Count returns the number of BPE tokens in text.
func (t *TikToken) Count(text string) int {
	return len(t.encoding.Encode(text, nil, nil))
}

// Encode returns the BPE token ids for text.
func (t *TikToken) Encode(text string) []int {
	return t.encoding.Encode(text, nil, nil)
}

// Words approximates token counts by treating each whitespace-delimited word
// as one token. It needs no vocabulary files, which makes it useful for tests
// and air-gapped deployments where exactness does not matter.
type Words struct{}

var _ Tokenizer = Words{}

// NewWords creates a word-count tokenizer.
func NewWords() Words {
	return Words{}
}

// Count returns the number of whitespace-delimited words in text.
func (Words) Count(text string) int {
	return len(strings.Fields(text))
}

// Encode returns one synthetic token id per word.
func (Words) Encode(text string) []int {
	words := strings.Fields(text)
	ids := make([]int, len(words))
	for i := range words {
		ids[i] = i
	}
	return ids
}
