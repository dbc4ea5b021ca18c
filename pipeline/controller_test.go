package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-ai/agentchain/llm"
	"github.com/relabs-ai/agentchain/testutil/mocks"
	"github.com/relabs-ai/agentchain/types"
)

const (
	waitFor = 3 * time.Second
	tick    = 10 * time.Millisecond
)

// chainAgents builds n agents where each agent past the first consumes its
// predecessor's output.
func chainAgents(n int) []types.AgentSpec {
	agents := make([]types.AgentSpec, 0, n)
	for i := 1; i <= n; i++ {
		a := types.AgentSpec{
			ID:   i,
			Name: fmt.Sprintf("agent-%d", i),
			Role: types.RoleMeta{Title: "a test agent", Category: "analysis"},
			ContextSources: []types.ContextSource{
				{Kind: types.SourceUserInput},
			},
			Task: types.TaskSpec{
				Template:     "Handle {USER_INPUT}",
				OutputFormat: types.FormatText,
				MaxTokens:    100,
				Temperature:  0.7,
			},
		}
		if i > 1 {
			a.ContextSources = append(a.ContextSources,
				types.ContextSource{Kind: types.SourceAgentOutput, AgentID: i - 1})
			a.Task.Template = fmt.Sprintf("Handle {USER_INPUT} building on {AGENT_%d_RESPONSE}", i-1)
		}
		agents = append(agents, a)
	}
	return agents
}

type captureSink struct {
	mu      sync.Mutex
	entries []types.HistoryEntry
}

func (s *captureSink) Append(_ context.Context, entry types.HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

func (s *captureSink) list() []types.HistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.HistoryEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

func waitStatus(t *testing.T, c *Controller, status types.RunStatus) {
	t.Helper()
	require.Eventually(t, func() bool {
		return c.Snapshot().Status == status
	}, waitFor, tick, "run never reached status %s", status)
}

func waitPhase(t *testing.T, c *Controller, agentID int, phase types.AgentPhase) {
	t.Helper()
	require.Eventually(t, func() bool {
		return c.Snapshot().Agents[agentID].Phase == phase
	}, waitFor, tick, "agent %d never reached phase %s", agentID, phase)
}

func TestController_AutoRunCompletes(t *testing.T) {
	provider := mocks.NewMockProvider().WithResponses("r1", "r2", "r3")
	sink := &captureSink{}
	c := NewController(provider, Config{Mode: ModeAuto}, WithSink(sink))

	require.NoError(t, c.Start("build a todo app", chainAgents(3)))
	waitStatus(t, c, types.StatusCompleted)

	snap := c.Snapshot()
	assert.False(t, snap.Active)
	require.Len(t, snap.History, 3)
	for i, entry := range snap.History {
		assert.Equal(t, i+1, entry.AgentID)
		assert.Equal(t, types.HistoryCompleted, entry.Status)
		assert.Equal(t, fmt.Sprintf("r%d", i+1), entry.Response)
	}
	for id := 1; id <= 3; id++ {
		assert.Equal(t, types.PhaseComplete, snap.Agents[id].Phase)
	}
	assert.Equal(t, 3, provider.CallCount())

	// Agent 2's prompt consumed agent 1's completed response.
	calls := provider.Calls()
	require.Len(t, calls, 3)
	assert.Contains(t, calls[1].Request.Prompt, "r1")
	assert.NotContains(t, calls[0].Request.Prompt, "r1")

	committed := sink.list()
	require.Len(t, committed, 3)
	for i, entry := range committed {
		assert.Equal(t, i+1, entry.AgentID)
		assert.Equal(t, types.HistoryCompleted, entry.Status)
	}
}

func TestController_StartRejectsBadInput(t *testing.T) {
	c := NewController(mocks.NewMockProvider(), Config{})

	err := c.Start("", chainAgents(1))
	require.Error(t, err)
	assert.Equal(t, types.ErrEmptyInput, types.GetErrorCode(err))

	err = c.Start("hello", nil)
	require.Error(t, err)
	assert.Equal(t, types.ErrNoAgents, types.GetErrorCode(err))

	snap := c.Snapshot()
	assert.False(t, snap.Active)
	assert.Equal(t, types.StatusIdle, snap.Status)
}

func TestController_StartWhileActiveStopsPrevious(t *testing.T) {
	provider := mocks.NewMockProvider().WithDelay(100 * time.Millisecond)
	c := NewController(provider, Config{Mode: ModeAuto})

	require.NoError(t, c.Start("first run", chainAgents(2)))
	first := c.Snapshot().SessionID
	require.NotEmpty(t, first)

	require.NoError(t, c.Start("second run", chainAgents(2)))
	second := c.Snapshot().SessionID
	assert.NotEqual(t, first, second)

	waitStatus(t, c, types.StatusCompleted)
	snap := c.Snapshot()
	assert.Equal(t, second, snap.SessionID)
	assert.Equal(t, "second run", snap.UserInput)
	for _, entry := range snap.History {
		assert.Equal(t, second, entry.SessionID)
	}
}

func TestController_ManualGating(t *testing.T) {
	provider := mocks.NewMockProvider().WithResponses("out-1", "out-2")
	c := NewController(provider, Config{Mode: ModeManual})

	require.NoError(t, c.Start("plan a launch", chainAgents(2)))
	waitPhase(t, c, 1, types.PhasePromptDraft)
	assert.Equal(t, 0, provider.CallCount(), "generation must wait for prompt approval")

	// Premature advance never skips an agent.
	err := c.ProceedToNext()
	require.Error(t, err)
	assert.Equal(t, types.ErrInvalidTransition, types.GetErrorCode(err))
	assert.Equal(t, 1, c.Snapshot().CurrentAgent)

	require.NoError(t, c.ApprovePrompt())
	waitPhase(t, c, 1, types.PhaseResponseDraft)
	assert.Equal(t, 1, provider.CallCount())

	require.NoError(t, c.ApproveResponse())
	waitPhase(t, c, 1, types.PhaseComplete)
	snap := c.Snapshot()
	require.Len(t, snap.History, 1)
	assert.Equal(t, types.HistoryCompleted, snap.History[0].Status)

	require.NoError(t, c.ProceedToNext())
	snap = c.Snapshot()
	assert.Equal(t, 2, snap.CurrentAgent)
	assert.Equal(t, types.PhaseIdle, snap.Agents[2].Phase)
	assert.Equal(t, 1, provider.CallCount(), "next agent stays idle until processed")

	require.NoError(t, c.ProcessCurrent())
	waitPhase(t, c, 2, types.PhasePromptDraft)
	require.NoError(t, c.ApprovePrompt())
	waitPhase(t, c, 2, types.PhaseResponseDraft)
	require.NoError(t, c.ApproveResponse())
	require.NoError(t, c.ProceedToNext())

	waitStatus(t, c, types.StatusCompleted)
	assert.Len(t, c.History(), 2)
}

func TestController_ManualReject(t *testing.T) {
	provider := mocks.NewMockProvider().WithResponses("too vague", "much better")
	c := NewController(provider, Config{Mode: ModeManual})

	require.NoError(t, c.Start("write a summary", chainAgents(1)))
	waitPhase(t, c, 1, types.PhasePromptDraft)
	require.NoError(t, c.ApprovePrompt())
	waitPhase(t, c, 1, types.PhaseResponseDraft)

	require.NoError(t, c.RejectResponse("too vague"))
	snap := c.Snapshot()
	assert.Equal(t, types.PhaseIdle, snap.Agents[1].Phase)
	assert.Empty(t, snap.Agents[1].Response)
	require.Len(t, snap.History, 1)
	assert.Equal(t, types.HistoryFailed, snap.History[0].Status)

	require.NoError(t, c.ProcessCurrent())
	waitPhase(t, c, 1, types.PhasePromptDraft)
	require.NoError(t, c.ApprovePrompt())
	waitPhase(t, c, 1, types.PhaseResponseDraft)
	require.NoError(t, c.ApproveResponse())

	snap = c.Snapshot()
	require.Len(t, snap.History, 2)
	assert.Equal(t, types.HistoryFailed, snap.History[0].Status)
	assert.Equal(t, types.HistoryCompleted, snap.History[1].Status)
	assert.Equal(t, "much better", snap.History[1].Response)
}

func TestController_EditPromptAndResponse(t *testing.T) {
	provider := mocks.NewMockProvider().WithResponse("draft answer")
	sink := &captureSink{}
	c := NewController(provider, Config{Mode: ModeManual}, WithSink(sink))

	require.NoError(t, c.Start("review the doc", chainAgents(1)))
	waitPhase(t, c, 1, types.PhasePromptDraft)

	// Pre-approval edit replaces the draft silently.
	require.NoError(t, c.EditPrompt("custom prompt {USER_INPUT}"))
	snap := c.Snapshot()
	assert.Equal(t, "custom prompt {USER_INPUT}", snap.Agents[1].Prompt)
	assert.Equal(t, types.HistoryPending, snap.History[0].Status)

	require.NoError(t, c.ApprovePrompt())
	waitPhase(t, c, 1, types.PhaseResponseDraft)
	calls := provider.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "custom prompt {USER_INPUT}", calls[0].Request.Prompt)

	require.NoError(t, c.ApproveResponse())
	waitPhase(t, c, 1, types.PhaseComplete)

	// Post-approval edit marks the entry reviewed.
	require.NoError(t, c.EditResponse("corrected answer"))
	snap = c.Snapshot()
	assert.Equal(t, "corrected answer", snap.Agents[1].Response)
	assert.Equal(t, types.HistoryReviewed, snap.History[0].Status)
	assert.Equal(t, "corrected answer", snap.History[0].Response)

	committed := sink.list()
	require.Len(t, committed, 2)
	assert.Equal(t, types.HistoryCompleted, committed[0].Status)
	assert.Equal(t, types.HistoryReviewed, committed[1].Status)
}

func TestController_EditBetweenGatesStillCommits(t *testing.T) {
	provider := mocks.NewMockProvider().WithResponse("final answer")
	sink := &captureSink{}
	c := NewController(provider, Config{Mode: ModeManual}, WithSink(sink))

	require.NoError(t, c.Start("draft a report", chainAgents(1)))
	waitPhase(t, c, 1, types.PhasePromptDraft)
	require.NoError(t, c.ApprovePrompt())
	waitPhase(t, c, 1, types.PhaseResponseDraft)

	// Editing the prompt after its approval marks the entry reviewed while
	// the agent is still mid-step.
	require.NoError(t, c.EditPrompt("revised prompt {USER_INPUT}"))
	snap := c.Snapshot()
	require.Len(t, snap.History, 1)
	assert.Equal(t, types.HistoryReviewed, snap.History[0].Status)

	// Completion must still transition the entry to completed and commit
	// it with the response.
	require.NoError(t, c.ApproveResponse())
	waitPhase(t, c, 1, types.PhaseComplete)

	snap = c.Snapshot()
	require.Len(t, snap.History, 1)
	assert.Equal(t, types.HistoryCompleted, snap.History[0].Status)
	assert.Equal(t, "final answer", snap.History[0].Response)
	assert.Equal(t, "revised prompt {USER_INPUT}", snap.History[0].Prompt)

	committed := sink.list()
	require.Len(t, committed, 2)
	assert.Equal(t, types.HistoryReviewed, committed[0].Status)
	assert.Equal(t, types.HistoryCompleted, committed[1].Status)
	assert.Equal(t, "final answer", committed[1].Response)
}

func TestController_EditBetweenGatesThenReject(t *testing.T) {
	provider := mocks.NewMockProvider().WithResponses("weak draft", "solid draft")
	c := NewController(provider, Config{Mode: ModeManual})

	require.NoError(t, c.Start("draft a report", chainAgents(1)))
	waitPhase(t, c, 1, types.PhasePromptDraft)
	require.NoError(t, c.ApprovePrompt())
	waitPhase(t, c, 1, types.PhaseResponseDraft)

	require.NoError(t, c.EditPrompt("revised prompt {USER_INPUT}"))
	require.NoError(t, c.RejectResponse("not good enough"))

	snap := c.Snapshot()
	assert.Equal(t, types.PhaseIdle, snap.Agents[1].Phase)
	require.Len(t, snap.History, 1)
	assert.Equal(t, types.HistoryFailed, snap.History[0].Status)

	require.NoError(t, c.ProcessCurrent())
	waitPhase(t, c, 1, types.PhasePromptDraft)
	require.NoError(t, c.ApprovePrompt())
	waitPhase(t, c, 1, types.PhaseResponseDraft)
	require.NoError(t, c.ApproveResponse())

	snap = c.Snapshot()
	require.Len(t, snap.History, 2)
	assert.Equal(t, types.HistoryCompleted, snap.History[1].Status)
	assert.Equal(t, "solid draft", snap.History[1].Response)
}

func TestController_RetryAfterFailure(t *testing.T) {
	var calls int32
	provider := mocks.NewMockProvider().WithCompleteFunc(
		func(ctx context.Context, req *llm.CompletionRequest) (*llm.CompletionResponse, error) {
			if atomic.AddInt32(&calls, 1) == 1 {
				return nil, errors.New("backend unavailable")
			}
			return &llm.CompletionResponse{
				Content: "recovered",
				Usage:   types.TokenUsage{PromptTokens: 5, CompletionTokens: 5, TotalTokens: 10},
			}, nil
		})
	c := NewController(provider, Config{Mode: ModeAuto, MaxRetries: 3})

	require.NoError(t, c.Start("summarize", chainAgents(1)))
	waitStatus(t, c, types.StatusError)
	snap := c.Snapshot()
	assert.Equal(t, types.PhaseFailed, snap.Agents[1].Phase)
	assert.Contains(t, snap.Error, "agent-1")
	require.Len(t, snap.History, 1)
	assert.Equal(t, types.HistoryFailed, snap.History[0].Status)

	require.NoError(t, c.Retry())
	waitStatus(t, c, types.StatusCompleted)

	// The failed entry was removed; exactly one entry survives.
	history := c.History()
	require.Len(t, history, 1)
	assert.Equal(t, types.HistoryCompleted, history[0].Status)
	assert.Equal(t, "recovered", history[0].Response)
	assert.Equal(t, 2, provider.CallCount())
}

func TestController_RetryExhaustion(t *testing.T) {
	provider := mocks.NewMockProvider().WithError(errors.New("permanently down"))
	c := NewController(provider, Config{Mode: ModeAuto, MaxRetries: 1})

	require.NoError(t, c.Start("summarize", chainAgents(1)))
	waitStatus(t, c, types.StatusError)

	require.NoError(t, c.Retry())
	waitStatus(t, c, types.StatusError)

	err := c.Retry()
	require.Error(t, err)
	assert.Equal(t, types.ErrRetryExhausted, types.GetErrorCode(err))
	snap := c.Snapshot()
	assert.Equal(t, types.StatusError, snap.Status)
	assert.Contains(t, snap.Error, "retry limit")
}

func TestController_StopDiscardsInFlightResult(t *testing.T) {
	provider := mocks.NewMockProvider().WithDelay(200 * time.Millisecond)
	sink := &captureSink{}
	c := NewController(provider, Config{Mode: ModeAuto}, WithSink(sink))

	require.NoError(t, c.Start("long task", chainAgents(1)))
	waitPhase(t, c, 1, types.PhaseGenerating)
	require.NoError(t, c.Stop())

	require.Eventually(t, func() bool {
		return provider.CallCount() == 1 && len(provider.Calls()) == 1
	}, waitFor, tick)
	time.Sleep(300 * time.Millisecond)

	snap := c.Snapshot()
	assert.Equal(t, types.StatusIdle, snap.Status)
	assert.False(t, snap.Active)
	for _, entry := range snap.History {
		assert.NotEqual(t, types.HistoryCompleted, entry.Status)
	}
	assert.Empty(t, sink.list())

	// History stays readable after stop.
	assert.Len(t, c.History(), len(snap.History))
}

func TestController_PauseResume(t *testing.T) {
	provider := mocks.NewMockProvider().WithDelay(300 * time.Millisecond)
	c := NewController(provider, Config{Mode: ModeAuto})

	assert.Equal(t, types.ErrRunNotActive, types.GetErrorCode(c.Pause()))

	require.NoError(t, c.Start("two step task", chainAgents(2)))
	waitPhase(t, c, 1, types.PhaseGenerating)
	require.NoError(t, c.Pause())
	assert.Equal(t, types.StatusPaused, c.Snapshot().Status)

	// The in-flight result lands as a draft but progression stays frozen.
	waitPhase(t, c, 1, types.PhaseResponseDraft)
	time.Sleep(100 * time.Millisecond)
	snap := c.Snapshot()
	assert.Equal(t, types.StatusPaused, snap.Status)
	require.Len(t, snap.History, 1)
	assert.Equal(t, types.HistoryPending, snap.History[0].Status)

	require.NoError(t, c.Resume())
	waitStatus(t, c, types.StatusCompleted)
	assert.Len(t, c.History(), 2)
}

func TestController_SetModeAutoReleasesGate(t *testing.T) {
	c := NewController(mocks.NewMockProvider(), Config{Mode: ModeManual})

	err := c.SetMode("turbo")
	require.Error(t, err)

	require.NoError(t, c.Start("finish it", chainAgents(2)))
	waitPhase(t, c, 1, types.PhasePromptDraft)

	require.NoError(t, c.SetMode(ModeAuto))
	waitStatus(t, c, types.StatusCompleted)
	assert.Len(t, c.History(), 2)
}

func TestController_ListenerObservesTransitions(t *testing.T) {
	var mu sync.Mutex
	var statuses []types.RunStatus
	var phases []types.AgentPhase
	listener := func(snap Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		statuses = append(statuses, snap.Status)
		phases = append(phases, snap.Agents[1].Phase)
	}
	c := NewController(mocks.NewMockProvider(), Config{Mode: ModeAuto}, WithListener(listener))

	require.NoError(t, c.Start("observe me", chainAgents(1)))
	waitStatus(t, c, types.StatusCompleted)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, statuses)
	assert.Equal(t, types.StatusRunning, statuses[0])
	assert.Equal(t, types.StatusCompleted, statuses[len(statuses)-1])

	// Every phase transition reaches listeners, approval gates included.
	for _, phase := range []types.AgentPhase{
		types.PhasePromptDraft,
		types.PhasePromptOK,
		types.PhaseGenerating,
		types.PhaseResponseDraft,
		types.PhaseResponseOK,
		types.PhaseComplete,
	} {
		assert.Contains(t, phases, phase)
	}
}
