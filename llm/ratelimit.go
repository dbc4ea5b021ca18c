package llm

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/relabs-ai/agentchain/types"
)

// rateLimitedProvider applies a client-side token bucket in front of the
// backend so a fast auto-mode pipeline cannot burst past upstream quotas.
type rateLimitedProvider struct {
	inner   Provider
	limiter *rate.Limiter
	logger  *zap.Logger
}

// WithRateLimit wraps a provider with a token-bucket limiter of
// requestsPerMinute sustained rate and the given burst. Wait honors
// context cancellation, so a limited call still resolves.
func WithRateLimit(inner Provider, requestsPerMinute int, burst int, logger *zap.Logger) Provider {
	if requestsPerMinute <= 0 {
		return inner
	}
	if burst <= 0 {
		burst = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &rateLimitedProvider{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(float64(requestsPerMinute)/60.0), burst),
		logger:  logger.With(zap.String("component", "ratelimit_provider")),
	}
}

func (p *rateLimitedProvider) Name() string { return p.inner.Name() }

func (p *rateLimitedProvider) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		p.logger.Warn("rate limiter wait aborted", zap.Error(err))
		return nil, types.NewError(types.ErrRateLimited, "rate limiter wait aborted").
			WithRetryable(true).
			WithCause(err)
	}
	return p.inner.Complete(ctx, req)
}
