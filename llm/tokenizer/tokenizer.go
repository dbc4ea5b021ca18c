// Package tokenizer provides token counting for prompt cost estimation:
// a character-based estimator and an exact tiktoken-backed counter for
// OpenAI-family models. Counts are advisory, never enforced as a limit.
package tokenizer

// Tokenizer is the unified token counting interface.
type Tokenizer interface {
	// CountTokens returns the token count for the given text.
	CountTokens(text string) (int, error)

	// Name returns the tokenizer's identifier.
	Name() string
}
