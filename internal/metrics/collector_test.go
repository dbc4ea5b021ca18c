package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-ai/agentchain/types"
)

func TestCollector_Records(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector("agentchain", reg)

	c.RunStarted()
	c.RunFinished("completed", 2*time.Second)
	c.StepTransition("prompt_draft")
	c.StepTransition("prompt_draft")
	c.CompletionObserved("success", 500*time.Millisecond)
	c.TokensObserved(types.TokenUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15})
	c.RetryObserved()
	c.StaleDiscarded()

	assert.Equal(t, float64(1), testutil.ToFloat64(c.runsStarted))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.runsFinished.WithLabelValues("completed")))
	assert.Equal(t, float64(2), testutil.ToFloat64(c.stepTransitions.WithLabelValues("prompt_draft")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.completionsTotal.WithLabelValues("success")))
	assert.Equal(t, float64(10), testutil.ToFloat64(c.tokensUsed.WithLabelValues("prompt")))
	assert.Equal(t, float64(5), testutil.ToFloat64(c.tokensUsed.WithLabelValues("completion")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.retriesTotal))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.staleDiscarded))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestCollector_NilSafe(t *testing.T) {
	var c *Collector
	c.RunStarted()
	c.RunFinished("stopped", time.Second)
	c.StepTransition("idle")
	c.CompletionObserved("error", time.Second)
	c.TokensObserved(types.TokenUsage{})
	c.RetryObserved()
	c.StaleDiscarded()
}
