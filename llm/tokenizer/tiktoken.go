package tokenizer

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// Tiktoken wraps tiktoken-go for OpenAI-family models.
type Tiktoken struct {
	encoding string
	enc      *tiktoken.Tiktoken
	once     sync.Once
	initErr  error
}

var modelEncodings = map[string]string{
	"gpt-4o":        "o200k_base",
	"gpt-4o-mini":   "o200k_base",
	"gpt-4-turbo":   "cl100k_base",
	"gpt-4":         "cl100k_base",
	"gpt-3.5-turbo": "cl100k_base",
}

// NewTiktoken creates a tiktoken-backed counter for the given model,
// falling back to cl100k_base for unknown models. Prefix matches are
// honored so "gpt-4o-2024-11-20" resolves like "gpt-4o".
func NewTiktoken(model string) *Tiktoken {
	encoding, ok := modelEncodings[model]
	if !ok {
		for prefix, e := range modelEncodings {
			if len(model) >= len(prefix) && model[:len(prefix)] == prefix {
				encoding = e
				ok = true
				break
			}
		}
	}
	if !ok {
		encoding = "cl100k_base"
	}
	return &Tiktoken{encoding: encoding}
}

// init lazily initializes the encoding (may download data on first use).
func (t *Tiktoken) init() error {
	t.once.Do(func() {
		enc, err := tiktoken.GetEncoding(t.encoding)
		if err != nil {
			t.initErr = fmt.Errorf("init tiktoken encoding %s: %w", t.encoding, err)
			return
		}
		t.enc = enc
	})
	return t.initErr
}

func (t *Tiktoken) CountTokens(text string) (int, error) {
	if err := t.init(); err != nil {
		return 0, err
	}
	return len(t.enc.Encode(text, nil, nil)), nil
}

func (t *Tiktoken) Name() string {
	return fmt.Sprintf("tiktoken[%s]", t.encoding)
}
