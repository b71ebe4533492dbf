// Package utils provides tiktoken-based token counting utilities.
package utils

import (
	"fmt"
	"strings"
	"sync"

	"github.com/tiktoken-go/tokenizer"
)

// TokenCounter provides token counting for history budgeting. Counts are
// exact for OpenAI models and a close approximation for everyone else.
type TokenCounter struct {
	codec tokenizer.Codec
}

//nolint:gochecknoglobals // codecs are expensive to build and safe to share
var (
	codecCache   = map[tokenizer.Encoding]tokenizer.Codec{}
	codecCacheMu sync.Mutex
)

// NewTokenCounter creates a new token counter for the specified model.
func NewTokenCounter(model string) (*TokenCounter, error) {
	// Newer OpenAI models use o200k; everything else is approximated with
	// the GPT-4 encoding.
	encoding := tokenizer.Cl100kBase
	if strings.HasPrefix(model, "gpt-4o") || strings.HasPrefix(model, "gpt-4.1") ||
		strings.HasPrefix(model, "gpt-5") || strings.HasPrefix(model, "o3") || strings.HasPrefix(model, "o4") {
		encoding = tokenizer.O200kBase
	}

	codecCacheMu.Lock()
	defer codecCacheMu.Unlock()
	if codec, ok := codecCache[encoding]; ok {
		return &TokenCounter{codec: codec}, nil
	}

	codec, err := tokenizer.Get(encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to create tokenizer codec for model %s: %w", model, err)
	}
	codecCache[encoding] = codec
	return &TokenCounter{codec: codec}, nil
}

// CountTokens returns the number of tokens in the given text.
func (tc *TokenCounter) CountTokens(text string) int {
	if tc == nil || tc.codec == nil {
		// Fallback to character-based estimation (4 chars ≈ 1 token)
		return len(text) / 4
	}

	count, err := tc.codec.Count(text)
	if err != nil {
		return len(text) / 4
	}
	return count
}
