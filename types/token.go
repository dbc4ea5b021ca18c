package types

// TokenUsage represents token consumption statistics.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens,omitempty"`
	CompletionTokens int `json:"completion_tokens,omitempty"`
	TotalTokens      int `json:"total_tokens,omitempty"`
}

// Add adds another TokenUsage to this one.
func (u *TokenUsage) Add(other TokenUsage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
}

// TokenCounter defines the minimal token counting contract used for the
// advisory cost estimate attached to rendered prompts. The llm/tokenizer
// package provides richer, model-aware implementations.
type TokenCounter interface {
	// CountTokens counts tokens in a text string.
	CountTokens(text string) int
}

// EstimateCounter provides a simple character-based token estimation
// (roughly 4 characters per token, CJK-adjusted).
type EstimateCounter struct {
	charsPerToken float64
}

// NewEstimateCounter creates a new EstimateCounter.
func NewEstimateCounter() *EstimateCounter {
	return &EstimateCounter{charsPerToken: 4.0}
}

// CountTokens counts tokens in text.
func (t *EstimateCounter) CountTokens(text string) int {
	if text == "" {
		return 0
	}
	var cjkCount, otherCount int
	for _, r := range text {
		if r >= 0x4E00 && r <= 0x9FA5 {
			cjkCount++
		} else {
			otherCount++
		}
	}
	tokens := float64(cjkCount)/1.5 + float64(otherCount)/t.charsPerToken
	if tokens < 1 {
		return 1
	}
	return int(tokens)
}
