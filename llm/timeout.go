package llm

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/relabs-ai/agentchain/types"
)

// timeoutProvider races every completion call against a fixed deadline so
// the caller always gets a result: success, backend error, or TIMEOUT.
type timeoutProvider struct {
	inner   Provider
	timeout time.Duration
	logger  *zap.Logger
}

// WithTimeout wraps a provider with a per-call timeout. The inner call is
// not forcibly aborted when the deadline fires (its context is cancelled
// and its eventual result discarded); the wrapper returns immediately with
// a retryable TIMEOUT error.
func WithTimeout(inner Provider, timeout time.Duration, logger *zap.Logger) Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &timeoutProvider{
		inner:   inner,
		timeout: timeout,
		logger:  logger.With(zap.String("component", "timeout_provider")),
	}
}

func (p *timeoutProvider) Name() string { return p.inner.Name() }

func (p *timeoutProvider) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	type result struct {
		resp *CompletionResponse
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		resp, err := p.inner.Complete(ctx, req)
		ch <- result{resp: resp, err: err}
	}()

	select {
	case r := <-ch:
		return r.resp, r.err
	case <-ctx.Done():
		p.logger.Warn("completion call timed out",
			zap.String("provider", p.inner.Name()),
			zap.Duration("timeout", p.timeout),
		)
		return nil, types.NewError(types.ErrTimeout, "completion call exceeded timeout").
			WithRetryable(true).
			WithCause(ctx.Err())
	}
}
