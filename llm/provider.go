package llm

import (
	"context"
	"time"

	"github.com/relabs-ai/agentchain/types"
)

// CompletionRequest is the single-shot text-completion request issued for
// one agent. Temperature is a sampling temperature in [0, 2]; OutputFormat
// is a hint the backend may use to constrain decoding (e.g. JSON mode).
type CompletionRequest struct {
	Prompt       string             `json:"prompt"`
	MaxTokens    int                `json:"max_tokens,omitempty"`
	Temperature  float32            `json:"temperature,omitempty"`
	OutputFormat types.OutputFormat `json:"output_format,omitempty"`
	Metadata     map[string]string  `json:"metadata,omitempty"`
}

// CompletionResponse is the backend's reply.
type CompletionResponse struct {
	Content   string           `json:"content"`
	Model     string           `json:"model,omitempty"`
	Usage     types.TokenUsage `json:"usage,omitempty"`
	CreatedAt time.Time        `json:"created_at,omitempty"`
}

// Provider is the unified completion-backend interface. Implementations
// must fail cleanly (error return) rather than hang; callers additionally
// wrap providers with WithTimeout so a call always resolves.
type Provider interface {
	// Complete issues a synchronous completion request.
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)

	// Name returns the provider's identifier, used in logs and metrics.
	Name() string
}
