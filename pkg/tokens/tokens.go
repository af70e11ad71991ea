// Package tokens counts tokens with a tiktoken codec.
//
// All providers are approximated with the GPT-4 (cl100k) encoding. Counts feed
// metrics and the brief condensation threshold, so an estimate is enough.
package tokens

import (
	"fmt"
	"sync"

	"github.com/tiktoken-go/tokenizer"
)

// Counter counts tokens in text.
type Counter struct {
	codec tokenizer.Codec
}

// NewCounter creates a counter using the GPT-4 encoding.
func NewCounter() (*Counter, error) {
	codec, err := tokenizer.ForModel(tokenizer.GPT4)
	if err != nil {
		return nil, fmt.Errorf("failed to create tokenizer codec: %w", err)
	}
	return &Counter{codec: codec}, nil
}

// Count returns the number of tokens in text. It falls back to a
// four-characters-per-token estimate if the codec is unavailable.
func (c *Counter) Count(text string) int {
	if text == "" {
		return 0
	}
	if c == nil || c.codec == nil {
		return estimate(text)
	}
	n, err := c.codec.Count(text)
	if err != nil {
		return estimate(text)
	}
	return n
}

func estimate(text string) int {
	n := len(text) / 4
	if n == 0 {
		n = 1
	}
	return n
}

//nolint:gochecknoglobals // codec construction is expensive; share one
var (
	shared     *Counter
	sharedOnce sync.Once
)

// Count counts tokens with a shared process-wide counter.
func Count(text string) int {
	sharedOnce.Do(func() {
		c, err := NewCounter()
		if err != nil {
			c = &Counter{}
		}
		shared = c
	})
	return shared.Count(text)
}

// Within reports whether text fits in limit tokens by the shared counter.
func Within(text string, limit int) bool {
	return Count(text) <= limit
}
