package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/relabs-ai/agentchain/types"
)

// HTTPConfig configures HTTPProvider.
type HTTPConfig struct {
	// BaseURL is the API root, e.g. "https://api.openai.com".
	BaseURL string
	// APIKey is sent as a Bearer token.
	APIKey string
	// Model is the model name placed in every request.
	Model string
	// Timeout is the http.Client timeout; the pipeline applies its own
	// tighter deadline via WithTimeout on top of this.
	Timeout time.Duration
}

// HTTPProvider talks to any OpenAI-compatible chat-completions endpoint.
// The single-prompt CompletionRequest is mapped onto a one-message chat.
type HTTPProvider struct {
	cfg    HTTPConfig
	client *http.Client
	logger *zap.Logger
}

// NewHTTPProvider creates an HTTPProvider.
func NewHTTPProvider(cfg HTTPConfig, logger *zap.Logger) *HTTPProvider {
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger.With(zap.String("component", "http_provider")),
	}
}

func (p *HTTPProvider) Name() string { return "openai-compat" }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	Temperature    float32         `json:"temperature,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message      chatMessage `json:"message"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Complete implements Provider.
func (p *HTTPProvider) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	body := chatRequest{
		Model:       p.cfg.Model,
		Messages:    []chatMessage{{Role: "user", Content: req.Prompt}},
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	if req.OutputFormat == types.FormatJSON {
		body.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, types.NewError(types.ErrInternalError, "marshal completion request").WithCause(err)
	}

	endpoint := fmt.Sprintf("%s/v1/chat/completions", strings.TrimRight(p.cfg.BaseURL, "/"))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, types.NewError(types.ErrInternalError, "build completion request").WithCause(err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if p.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	}

	start := time.Now()
	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, types.NewError(types.ErrUpstreamError, "completion request failed").
			WithRetryable(true).
			WithCause(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, types.NewError(types.ErrUpstreamError, "read completion response").
			WithRetryable(true).
			WithCause(err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, p.statusError(resp.StatusCode, raw)
	}

	var parsed chatResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, types.NewError(types.ErrUpstreamError, "decode completion response").WithCause(err)
	}
	if parsed.Error != nil {
		return nil, types.NewError(types.ErrUpstreamError, parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return nil, types.NewError(types.ErrUpstreamError, "empty choices in completion response")
	}

	p.logger.Debug("completion finished",
		zap.String("model", parsed.Model),
		zap.Duration("latency", time.Since(start)),
		zap.Int("total_tokens", parsed.Usage.TotalTokens),
	)

	return &CompletionResponse{
		Content: parsed.Choices[0].Message.Content,
		Model:   parsed.Model,
		Usage: types.TokenUsage{
			PromptTokens:     parsed.Usage.PromptTokens,
			CompletionTokens: parsed.Usage.CompletionTokens,
			TotalTokens:      parsed.Usage.TotalTokens,
		},
		CreatedAt: time.Now(),
	}, nil
}

func (p *HTTPProvider) statusError(status int, raw []byte) error {
	msg := strings.TrimSpace(string(raw))
	if len(msg) > 300 {
		msg = msg[:300]
	}
	switch {
	case status == http.StatusTooManyRequests:
		return types.NewError(types.ErrRateLimited, msg).WithRetryable(true)
	case status >= 500:
		return types.NewError(types.ErrUpstreamError, msg).WithRetryable(true)
	default:
		return types.NewError(types.ErrUpstreamError, fmt.Sprintf("status %d: %s", status, msg))
	}
}
