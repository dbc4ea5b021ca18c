package tokenizer

// Estimator is a character-count-based token estimator. It distinguishes
// CJK and other characters for better accuracy than a naive len/4.
type Estimator struct {
	charsPerToken float64
}

// NewEstimator creates an estimator with the default ~4 chars/token ratio.
func NewEstimator() *Estimator {
	return &Estimator{charsPerToken: 4.0}
}

// WithCharsPerToken overrides the default chars-per-token ratio.
func (e *Estimator) WithCharsPerToken(ratio float64) *Estimator {
	if ratio > 0 {
		e.charsPerToken = ratio
	}
	return e
}

func (e *Estimator) CountTokens(text string) (int, error) {
	if text == "" {
		return 0, nil
	}
	cjkCount := 0
	otherCount := 0
	for _, r := range text {
		if isCJK(r) {
			cjkCount++
		} else {
			otherCount++
		}
	}

	// CJK characters ~1.5 chars/token, the rest at the configured ratio.
	estimated := int(float64(cjkCount)/1.5 + float64(otherCount)/e.charsPerToken)
	if estimated == 0 {
		estimated = 1
	}
	return estimated, nil
}

func (e *Estimator) Name() string { return "estimator" }

func isCJK(r rune) bool {
	return (r >= 0x4E00 && r <= 0x9FFF) ||
		(r >= 0x3400 && r <= 0x4DBF) ||
		(r >= 0x3040 && r <= 0x30FF) ||
		(r >= 0xAC00 && r <= 0xD7AF)
}
