package tokenizer

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// Counter measures and bounds text in model tokens.
type Counter interface {
	Count(text string) int
	// Truncate returns the longest prefix of text holding at most max tokens.
	Truncate(text string, max int) string
}

// WordCounter counts word tokens. It needs no vocabulary files.
type WordCounter struct{}

func (WordCounter) Count(text string) int {
	return len(Tokenize(text))
}

func (WordCounter) Truncate(text string, max int) string {
	if max <= 0 {
		return ""
	}
	tokens := Tokenize(text)
	if len(tokens) <= max {
		return text
	}
	return text[:tokens[max-1].End]
}

// BPECounter counts byte-pair-encoded tokens with a tiktoken encoding.
type BPECounter struct {
	enc *tiktoken.Tiktoken
}

// NewBPECounter loads the named tiktoken encoding, e.g. "cl100k_base".
func NewBPECounter(encoding string) (*BPECounter, error) {
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("loading tiktoken encoding %s: %w", encoding, err)
	}
	return &BPECounter{enc: enc}, nil
}

func (c *BPECounter) Count(text string) int {
	return len(c.enc.Encode(text, nil, nil))
}

func (c *BPECounter) Truncate(text string, max int) string {
	if max <= 0 {
		return ""
	}
	ids := c.enc.Encode(text, nil, nil)
	if len(ids) <= max {
		return text
	}
	return c.enc.Decode(ids[:max])
}

// NewCounter returns a BPECounter for encoding, or WordCounter when encoding
// is empty or "words".
func NewCounter(encoding string) (Counter, error) {
	if encoding == "" || encoding == "words" {
		return WordCounter{}, nil
	}
	return NewBPECounter(encoding)
}
