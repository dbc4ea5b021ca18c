// Package mocks provides test doubles for the completion backend.
//
// MockProvider supports fixed responses, scripted per-call responses,
// error injection, artificial latency, and call recording.
package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/relabs-ai/agentchain/llm"
	"github.com/relabs-ai/agentchain/types"
)

// MockProvider is a mock implementation of llm.Provider.
type MockProvider struct {
	mu sync.Mutex

	response  string
	responses []string
	err       error
	usage     types.TokenUsage

	completeFunc func(ctx context.Context, req *llm.CompletionRequest) (*llm.CompletionResponse, error)

	delay     time.Duration
	failAfter int // fail on call N+1 and later, 0 disables
	callCount int
	calls     []MockProviderCall
}

// MockProviderCall records a single Complete invocation.
type MockProviderCall struct {
	Request  *llm.CompletionRequest
	Response *llm.CompletionResponse
	Error    error
}

// NewMockProvider creates a MockProvider returning a fixed response.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		response: "mock response",
		usage:    types.TokenUsage{PromptTokens: 10, CompletionTokens: 20, TotalTokens: 30},
	}
}

// WithResponse sets the fixed response content.
func (m *MockProvider) WithResponse(content string) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.response = content
	return m
}

// WithResponses scripts one response per call, in order. Calls past the
// end of the script fall back to the fixed response.
func (m *MockProvider) WithResponses(contents ...string) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses = contents
	return m
}

// WithError makes every call fail with err.
func (m *MockProvider) WithError(err error) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// WithUsage sets the token usage attached to responses.
func (m *MockProvider) WithUsage(usage types.TokenUsage) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.usage = usage
	return m
}

// WithDelay makes every call sleep before responding, honoring context
// cancellation.
func (m *MockProvider) WithDelay(d time.Duration) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
	return m
}

// WithFailAfter makes calls fail once n calls have succeeded.
func (m *MockProvider) WithFailAfter(n int, err error) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failAfter = n
	m.err = err
	return m
}

// WithCompleteFunc overrides Complete entirely.
func (m *MockProvider) WithCompleteFunc(fn func(ctx context.Context, req *llm.CompletionRequest) (*llm.CompletionResponse, error)) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completeFunc = fn
	return m
}

// Name implements llm.Provider.
func (m *MockProvider) Name() string { return "mock" }

// Complete implements llm.Provider.
func (m *MockProvider) Complete(ctx context.Context, req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
	m.mu.Lock()
	m.callCount++
	count := m.callCount
	delay := m.delay
	fn := m.completeFunc
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			m.record(req, nil, ctx.Err())
			return nil, ctx.Err()
		}
	}

	if fn != nil {
		resp, err := fn(ctx, req)
		m.record(req, resp, err)
		return resp, err
	}

	m.mu.Lock()
	var err error
	if m.err != nil && (m.failAfter == 0 || count > m.failAfter) {
		err = m.err
	}
	content := m.response
	if n := count - 1; n < len(m.responses) {
		content = m.responses[n]
	}
	usage := m.usage
	m.mu.Unlock()

	if err != nil {
		m.record(req, nil, err)
		return nil, err
	}
	resp := &llm.CompletionResponse{
		Content:   content,
		Model:     "mock-model",
		Usage:     usage,
		CreatedAt: time.Now(),
	}
	m.record(req, resp, nil)
	return resp, nil
}

// CallCount returns how many times Complete was invoked.
func (m *MockProvider) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// Calls returns a copy of the recorded calls.
func (m *MockProvider) Calls() []MockProviderCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockProviderCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// Reset clears recorded calls and the call counter.
func (m *MockProvider) Reset() *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount = 0
	m.calls = nil
	return m
}

func (m *MockProvider) record(req *llm.CompletionRequest, resp *llm.CompletionResponse, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, MockProviderCall{Request: req, Response: resp, Error: err})
}
