// Package tokencount estimates LLM token usage for metering.
package tokencount

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// Counter produces token counts for text under a given model's encoding.
// The zero value is ready to use. Counting never fails: if the model's
// tokenizer cannot be loaded or errors, the count falls back to
// ceil(len/4), which is approximate but always a usable positive integer
// for non-empty text.
type Counter struct {
	mu        sync.Mutex
	encodings map[string]*tiktoken.Tiktoken
}

// New creates a Counter with an empty encoding cache.
func New() *Counter {
	return &Counter{encodings: make(map[string]*tiktoken.Tiktoken)}
}

// Count returns the token count for text under the model's encoding, or the
// length-based estimate when no tokenizer is available. Empty text is 0.
func (c *Counter) Count(text, model string) int64 {
	if text == "" {
		return 0
	}

	enc := c.encoding(model)
	if enc == nil {
		return Estimate(text)
	}

	tokens := enc.Encode(text, nil, nil)
	if len(tokens) == 0 {
		// Tokenizers return nothing for some degenerate inputs; fall
		// back rather than report free usage.
		return Estimate(text)
	}
	return int64(len(tokens))
}

// encoding returns the cached tokenizer for a model, loading it on first
// use. Returns nil when the model is unknown to the tokenizer tables.
func (c *Counter) encoding(model string) *tiktoken.Tiktoken {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.encodings == nil {
		c.encodings = make(map[string]*tiktoken.Tiktoken)
	}
	if enc, ok := c.encodings[model]; ok {
		return enc
	}

	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		// Cache the miss so unknown models do not retry the lookup on
		// every call.
		c.encodings[model] = nil
		return nil
	}
	c.encodings[model] = enc
	return enc
}

// Estimate is the tokenizer-free fallback: ceil(len/4) over bytes.
// Returns 0 for empty text and a positive integer otherwise.
func Estimate(text string) int64 {
	if text == "" {
		return 0
	}
	return int64((len(text) + 3) / 4)
}
