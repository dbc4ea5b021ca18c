package llm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-ai/agentchain/types"
)

type fakeProvider struct {
	delay time.Duration
	resp  *CompletionResponse
	err   error
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.resp, f.err
}

func TestWithTimeout_FastCallPassesThrough(t *testing.T) {
	inner := &fakeProvider{resp: &CompletionResponse{Content: "ok"}}
	p := WithTimeout(inner, time.Second, nil)

	resp, err := p.Complete(context.Background(), &CompletionRequest{Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
}

func TestWithTimeout_SlowCallReturnsTimeoutError(t *testing.T) {
	inner := &fakeProvider{delay: 500 * time.Millisecond, resp: &CompletionResponse{Content: "late"}}
	p := WithTimeout(inner, 20*time.Millisecond, nil)

	start := time.Now()
	_, err := p.Complete(context.Background(), &CompletionRequest{Prompt: "hi"})
	require.Error(t, err)
	assert.Equal(t, types.ErrTimeout, types.GetErrorCode(err))
	assert.True(t, types.IsRetryable(err))
	assert.Less(t, time.Since(start), 400*time.Millisecond, "wrapper must resolve before the inner call")
}

func TestWithRateLimit_ZeroRateDisablesWrapper(t *testing.T) {
	inner := &fakeProvider{resp: &CompletionResponse{Content: "ok"}}
	assert.Same(t, Provider(inner), WithRateLimit(inner, 0, 1, nil))
}

func TestWithRateLimit_CancelledWaitResolves(t *testing.T) {
	inner := &fakeProvider{resp: &CompletionResponse{Content: "ok"}}
	// Burst 1: the second immediate call has to wait ~1 minute at 1 rpm,
	// so a cancelled context must surface as RATE_LIMITED.
	p := WithRateLimit(inner, 1, 1, nil)

	_, err := p.Complete(context.Background(), &CompletionRequest{Prompt: "first"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = p.Complete(ctx, &CompletionRequest{Prompt: "second"})
	require.Error(t, err)
	assert.Equal(t, types.ErrRateLimited, types.GetErrorCode(err))
}
