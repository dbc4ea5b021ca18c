package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/relabs-ai/agentchain/internal/metrics"
	"github.com/relabs-ai/agentchain/llm"
	"github.com/relabs-ai/agentchain/llm/tokenizer"
	"github.com/relabs-ai/agentchain/prompt"
	"github.com/relabs-ai/agentchain/types"
)

// Config holds the pipeline knobs.
type Config struct {
	// Mode is the initial approval mode. Defaults to ModeAuto.
	Mode Mode
	// MaxRetries bounds per-agent retries. Defaults to 3.
	MaxRetries int
	// CompletionTimeout bounds every completion call. Defaults to 60s.
	CompletionTimeout time.Duration
	// HistoryTail is how many trailing history entries prompts summarize.
	HistoryTail int
}

func (c Config) withDefaults() Config {
	if !c.Mode.Valid() {
		c.Mode = ModeAuto
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.CompletionTimeout <= 0 {
		c.CompletionTimeout = 60 * time.Second
	}
	return c
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the controller logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Collector) Option {
	return func(c *Controller) { c.metrics = m }
}

// WithSink sets the history sink committed entries are reported to.
func WithSink(sink HistorySink) Option {
	return func(c *Controller) { c.sink = sink }
}

// WithListener registers a snapshot listener.
func WithListener(l Listener) Option {
	return func(c *Controller) {
		if l != nil {
			c.listeners = append(c.listeners, l)
		}
	}
}

// WithTokenizer sets the token counter used for prompt cost estimates.
func WithTokenizer(t tokenizer.Tokenizer) Option {
	return func(c *Controller) { c.counter = t }
}

// Controller owns the single active run and sequences agents through the
// pipeline. All state mutation is centralized here; callers interact only
// through the action surface and observe state through snapshots.
type Controller struct {
	provider  llm.Provider
	inst      *prompt.Instantiator
	counter   tokenizer.Tokenizer
	cfg       Config
	logger    *zap.Logger
	metrics   *metrics.Collector
	sink      HistorySink
	listeners []Listener

	mu        sync.Mutex
	mode      Mode
	run       *run
	startedAt time.Time
}

// NewController creates a Controller around a completion provider. The
// provider is wrapped with the configured timeout so every call resolves.
func NewController(provider llm.Provider, cfg Config, opts ...Option) *Controller {
	c := &Controller{
		cfg:    cfg.withDefaults(),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(zap.String("component", "pipeline_controller"))
	c.mode = c.cfg.Mode
	c.provider = llm.WithTimeout(provider, c.cfg.CompletionTimeout, c.logger)
	c.inst = prompt.NewInstantiator(c.counter, c.logger)
	if c.cfg.HistoryTail > 0 {
		c.inst = c.inst.WithHistoryTail(c.cfg.HistoryTail)
	}
	return c
}

// Start begins a new run. Empty input or an invalid agent list is rejected
// without touching existing state. An active run is implicitly stopped
// first; its in-flight results are discarded by session comparison.
func (c *Controller) Start(userInput string, agents []types.AgentSpec) error {
	if userInput == "" {
		c.logger.Warn("start rejected: empty user input")
		return types.NewError(types.ErrEmptyInput, "user input must not be empty")
	}
	if err := types.ValidateAgents(agents); err != nil {
		c.logger.Warn("start rejected: invalid agent list", zap.Error(err))
		return err
	}

	owned := make([]types.AgentSpec, len(agents))
	copy(owned, agents)

	c.mu.Lock()
	if c.run != nil && c.run.active {
		c.logger.Info("stopping previous run", zap.String("session_id", c.run.sessionID))
		c.run.active = false
		c.run.status = types.StatusIdle
	}
	sessionID := uuid.NewString()
	c.run = newRun(sessionID, userInput, owned)
	c.startedAt = time.Now()
	c.metrics.RunStarted()
	c.logger.Info("run started",
		zap.String("session_id", sessionID),
		zap.Int("agents", len(owned)),
		zap.String("mode", string(c.mode)),
	)
	snap := c.run.snapshot(c.mode)
	c.mu.Unlock()

	c.publish(snap)
	go c.advance(sessionID)
	return nil
}

// Pause freezes sub-step progression. Valid only while running.
func (c *Controller) Pause() error {
	c.mu.Lock()
	r := c.run
	if r == nil || !r.active {
		c.mu.Unlock()
		return types.NewError(types.ErrRunNotActive, "no active run to pause")
	}
	if r.status != types.StatusRunning {
		c.mu.Unlock()
		return types.NewError(types.ErrInvalidTransition,
			fmt.Sprintf("cannot pause while %s", r.status))
	}
	r.status = types.StatusPaused
	c.logger.Info("run paused", zap.String("session_id", r.sessionID))
	snap := r.snapshot(c.mode)
	c.mu.Unlock()

	c.publish(snap)
	return nil
}

// Resume continues a paused run and re-evaluates the current agent's
// pending sub-step.
func (c *Controller) Resume() error {
	c.mu.Lock()
	r := c.run
	if r == nil || !r.active {
		c.mu.Unlock()
		return types.NewError(types.ErrRunNotActive, "no active run to resume")
	}
	if r.status != types.StatusPaused {
		c.mu.Unlock()
		return types.NewError(types.ErrInvalidTransition,
			fmt.Sprintf("cannot resume while %s", r.status))
	}
	r.status = types.StatusRunning
	sessionID := r.sessionID
	c.logger.Info("run resumed", zap.String("session_id", sessionID))
	snap := r.snapshot(c.mode)
	c.mu.Unlock()

	c.publish(snap)
	go c.advance(sessionID)
	return nil
}

// Stop unconditionally returns the run to idle. The accumulated history
// stays readable; an in-flight completion result is discarded.
func (c *Controller) Stop() error {
	c.mu.Lock()
	r := c.run
	if r == nil {
		c.mu.Unlock()
		return nil
	}
	wasActive := r.active
	r.active = false
	r.status = types.StatusIdle
	r.cursor = -1
	r.errMsg = ""
	if wasActive {
		c.metrics.RunFinished("stopped", time.Since(c.startedAt))
		c.logger.Info("run stopped", zap.String("session_id", r.sessionID))
	}
	snap := r.snapshot(c.mode)
	c.mu.Unlock()

	c.publish(snap)
	return nil
}

// ProceedToNext advances the cursor past a completed agent, or finalizes
// the run when the last agent is complete. Calling it before the current
// agent's complete flag is set is rejected and never skips an agent.
func (c *Controller) ProceedToNext() error {
	c.mu.Lock()
	r := c.run
	if r == nil || !r.active {
		c.mu.Unlock()
		return types.NewError(types.ErrRunNotActive, "no active run")
	}
	agent, ok := r.current()
	if !ok {
		c.mu.Unlock()
		return types.NewError(types.ErrUnknownAgent, "no current agent")
	}
	if !r.steps[agent.ID].complete {
		c.mu.Unlock()
		return types.NewError(types.ErrInvalidTransition,
			fmt.Sprintf("agent %d is not complete", agent.ID)).WithAgent(agent.ID)
	}
	var sessionID string
	if r.onLastAgent() {
		c.finishRunLocked(r)
	} else {
		r.cursor++
		if c.mode == ModeAuto && r.status == types.StatusRunning {
			sessionID = r.sessionID
		}
	}
	snap := r.snapshot(c.mode)
	c.mu.Unlock()

	c.publish(snap)
	if sessionID != "" {
		go c.advance(sessionID)
	}
	return nil
}

// ProcessCurrent begins processing the current agent. In manual mode the
// agent after a ProceedToNext stays idle until this is called.
func (c *Controller) ProcessCurrent() error {
	c.mu.Lock()
	r := c.run
	if r == nil || !r.active {
		c.mu.Unlock()
		return types.NewError(types.ErrRunNotActive, "no active run")
	}
	if r.status != types.StatusRunning {
		c.mu.Unlock()
		return types.NewError(types.ErrInvalidTransition,
			fmt.Sprintf("cannot process while %s", r.status))
	}
	sessionID := r.sessionID
	c.mu.Unlock()

	go c.advance(sessionID)
	return nil
}

// Retry resets the current agent and restarts it from the prompt draft.
// It is rejected once the per-agent retry counter reaches the configured
// maximum; retries are never automatic.
func (c *Controller) Retry() error {
	c.mu.Lock()
	r := c.run
	if r == nil || !r.active {
		c.mu.Unlock()
		return types.NewError(types.ErrRunNotActive, "no active run")
	}
	agent, ok := r.current()
	if !ok {
		c.mu.Unlock()
		return types.NewError(types.ErrUnknownAgent, "no current agent")
	}
	if r.retries[agent.ID] >= c.cfg.MaxRetries {
		r.status = types.StatusError
		r.errMsg = fmt.Sprintf("agent %d exceeded retry limit (%d)", agent.ID, c.cfg.MaxRetries)
		c.logger.Warn("retry rejected",
			zap.Int("agent_id", agent.ID),
			zap.Int("max_retries", c.cfg.MaxRetries),
		)
		snap := r.snapshot(c.mode)
		c.mu.Unlock()
		c.publish(snap)
		return types.NewError(types.ErrRetryExhausted, r.errMsg).WithAgent(agent.ID)
	}
	r.retries[agent.ID]++
	c.metrics.RetryObserved()

	rt := r.runtime[agent.ID]
	*rt = types.AgentRuntime{Phase: types.PhaseIdle, UpdatedAt: time.Now()}
	r.steps[agent.ID].reset()
	r.dropHistory(agent.ID)
	r.errMsg = ""
	r.status = types.StatusRunning
	r.processing = false
	sessionID := r.sessionID
	c.logger.Info("agent retry",
		zap.Int("agent_id", agent.ID),
		zap.Int("attempt", r.retries[agent.ID]),
	)
	snap := r.snapshot(c.mode)
	c.mu.Unlock()

	c.publish(snap)
	go c.advance(sessionID)
	return nil
}

// ApprovePrompt completes the prompt approval gate in manual mode and
// continues with generation.
func (c *Controller) ApprovePrompt() error {
	c.mu.Lock()
	r := c.run
	if r == nil || !r.active {
		c.mu.Unlock()
		return types.NewError(types.ErrRunNotActive, "no active run")
	}
	agent, ok := r.current()
	if !ok {
		c.mu.Unlock()
		return types.NewError(types.ErrUnknownAgent, "no current agent")
	}
	st := r.steps[agent.ID]
	if !st.done[subPromptDraft] || st.done[subPromptOK] {
		c.mu.Unlock()
		return types.NewError(types.ErrInvalidTransition,
			"no prompt awaiting approval").WithAgent(agent.ID)
	}
	if err := st.markDone(subPromptOK); err != nil {
		c.mu.Unlock()
		return types.NewError(types.ErrInvalidTransition, err.Error()).WithAgent(agent.ID)
	}
	rt := r.runtime[agent.ID]
	rt.PromptApproved = true
	c.setPhase(rt, types.PhasePromptOK)
	sessionID := r.sessionID
	snap := r.snapshot(c.mode)
	c.mu.Unlock()

	c.publish(snap)
	go c.advance(sessionID)
	return nil
}

// ApproveResponse completes the response approval gate and finalizes the
// agent; its history entry commits as completed.
func (c *Controller) ApproveResponse() error {
	c.mu.Lock()
	r := c.run
	if r == nil || !r.active {
		c.mu.Unlock()
		return types.NewError(types.ErrRunNotActive, "no active run")
	}
	agent, ok := r.current()
	if !ok {
		c.mu.Unlock()
		return types.NewError(types.ErrUnknownAgent, "no current agent")
	}
	st := r.steps[agent.ID]
	if !st.done[subResponseDraft] || st.done[subResponseOK] {
		c.mu.Unlock()
		return types.NewError(types.ErrInvalidTransition,
			"no response awaiting approval").WithAgent(agent.ID)
	}
	if err := st.markDone(subResponseOK); err != nil {
		c.mu.Unlock()
		return types.NewError(types.ErrInvalidTransition, err.Error()).WithAgent(agent.ID)
	}
	rt := r.runtime[agent.ID]
	rt.ResponseApproved = true
	c.setPhase(rt, types.PhaseResponseOK)
	approved := r.snapshot(c.mode)
	commit := c.finalizeAgentLocked(r, agent)
	snap := r.snapshot(c.mode)
	c.mu.Unlock()

	c.publish(approved)
	c.publish(snap, commit)
	return nil
}

// RejectResponse discards the current agent's draft, records the attempt
// as failed, and returns the agent to idle for regeneration.
func (c *Controller) RejectResponse(reason string) error {
	c.mu.Lock()
	r := c.run
	if r == nil || !r.active {
		c.mu.Unlock()
		return types.NewError(types.ErrRunNotActive, "no active run")
	}
	agent, ok := r.current()
	if !ok {
		c.mu.Unlock()
		return types.NewError(types.ErrUnknownAgent, "no current agent")
	}
	st := r.steps[agent.ID]
	if !st.done[subResponseDraft] || st.done[subResponseOK] {
		c.mu.Unlock()
		return types.NewError(types.ErrInvalidTransition,
			"no response draft to reject").WithAgent(agent.ID)
	}
	var commits []types.HistoryEntry
	if idx := r.historyIndex(agent.ID); idx >= 0 {
		switch r.history[idx].Status {
		case types.HistoryPending, types.HistoryReviewed:
			r.history[idx].Response = r.runtime[agent.ID].Response
			r.history[idx].Status = types.HistoryFailed
			r.history[idx].Timestamp = time.Now()
			commits = append(commits, r.history[idx])
		}
	}
	rt := r.runtime[agent.ID]
	*rt = types.AgentRuntime{Phase: types.PhaseIdle, UpdatedAt: time.Now()}
	st.reset()
	c.logger.Info("response rejected",
		zap.Int("agent_id", agent.ID),
		zap.String("reason", reason),
	)
	snap := r.snapshot(c.mode)
	c.mu.Unlock()

	c.publish(snap, commits...)
	return nil
}

// EditPrompt replaces the current agent's prompt draft. Before prompt
// approval the edit is silent; after approval the agent's history entry is
// marked reviewed.
func (c *Controller) EditPrompt(text string) error {
	return c.edit(text, true)
}

// EditResponse replaces the current agent's response draft. Before
// response approval the edit is silent; after approval the agent's history
// entry is marked reviewed.
func (c *Controller) EditResponse(text string) error {
	return c.edit(text, false)
}

func (c *Controller) edit(text string, isPrompt bool) error {
	c.mu.Lock()
	r := c.run
	if r == nil || !r.active {
		c.mu.Unlock()
		return types.NewError(types.ErrRunNotActive, "no active run")
	}
	agent, ok := r.current()
	if !ok {
		c.mu.Unlock()
		return types.NewError(types.ErrUnknownAgent, "no current agent")
	}
	st := r.steps[agent.ID]
	rt := r.runtime[agent.ID]

	var drafted bool
	var approved bool
	if isPrompt {
		drafted, approved = st.done[subPromptDraft], st.done[subPromptOK]
	} else {
		drafted, approved = st.done[subResponseDraft], st.done[subResponseOK]
	}
	if !drafted {
		c.mu.Unlock()
		return types.NewError(types.ErrInvalidTransition, "nothing to edit").WithAgent(agent.ID)
	}

	if isPrompt {
		rt.Prompt = text
	} else {
		rt.Response = text
	}
	rt.UpdatedAt = time.Now()

	var commits []types.HistoryEntry
	if idx := r.historyIndex(agent.ID); idx >= 0 {
		if isPrompt {
			r.history[idx].Prompt = text
		} else {
			r.history[idx].Response = text
		}
		if approved {
			r.history[idx].Status = types.HistoryReviewed
			r.history[idx].Timestamp = time.Now()
			commits = append(commits, r.history[idx])
		}
	}
	snap := r.snapshot(c.mode)
	c.mu.Unlock()

	c.publish(snap, commits...)
	return nil
}

// SetMode switches between auto and manual gating. The switch only affects
// future sub-steps; already finalized sub-steps are untouched. Switching to
// auto re-evaluates the current agent's pending gate.
func (c *Controller) SetMode(m Mode) error {
	if !m.Valid() {
		return types.NewError(types.ErrInvalidTransition, fmt.Sprintf("unknown mode %q", m))
	}
	c.mu.Lock()
	c.mode = m
	var sessionID string
	var snap Snapshot
	var hasRun bool
	if r := c.run; r != nil {
		hasRun = true
		if m == ModeAuto && r.active && r.status == types.StatusRunning {
			sessionID = r.sessionID
		}
		snap = r.snapshot(c.mode)
	}
	c.mu.Unlock()

	if hasRun {
		c.publish(snap)
	}
	if sessionID != "" {
		go c.advance(sessionID)
	}
	return nil
}

// Mode returns the current approval mode.
func (c *Controller) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// Snapshot returns a copy of the current run state. With no run it reports
// an idle, inactive state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.run == nil {
		return Snapshot{Status: types.StatusIdle, Mode: c.mode}
	}
	return c.run.snapshot(c.mode)
}

// History returns the accumulated history log, readable even after Stop.
func (c *Controller) History() []types.HistoryEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.run == nil {
		return nil
	}
	out := make([]types.HistoryEntry, len(c.run.history))
	copy(out, c.run.history)
	return out
}

// advance drives the current agent through its pending sub-steps until it
// suspends at a gate, blocks on generation, fails, or the run finishes.
// Stale sessions and non-running statuses make it return immediately.
func (c *Controller) advance(sessionID string) {
	for {
		c.mu.Lock()
		r := c.run
		if r == nil || r.sessionID != sessionID || !r.active || r.status != types.StatusRunning {
			c.mu.Unlock()
			return
		}
		agent, ok := r.current()
		if !ok {
			c.mu.Unlock()
			return
		}
		st := r.steps[agent.ID]

		if st.complete {
			if c.mode != ModeAuto {
				c.mu.Unlock()
				return
			}
			if r.onLastAgent() {
				c.finishRunLocked(r)
				snap := r.snapshot(c.mode)
				c.mu.Unlock()
				c.publish(snap)
				return
			}
			r.cursor++
			snap := r.snapshot(c.mode)
			c.mu.Unlock()
			c.publish(snap)
			continue
		}

		next, pending := st.nextPending()
		if !pending {
			c.mu.Unlock()
			return
		}

		switch next {
		case subPromptDraft:
			snap, failed := c.draftPromptLocked(r, agent)
			c.mu.Unlock()
			c.publish(snap)
			if failed {
				return
			}

		case subPromptOK:
			if c.mode != ModeAuto {
				c.mu.Unlock()
				return
			}
			st.done[subPromptOK] = true
			st.enabled[subGenerating] = true
			rt := r.runtime[agent.ID]
			rt.PromptApproved = true
			c.setPhase(rt, types.PhasePromptOK)
			snap := r.snapshot(c.mode)
			c.mu.Unlock()
			c.publish(snap)

		case subGenerating:
			if r.processing {
				c.mu.Unlock()
				return
			}
			r.processing = true
			attempt := r.retries[agent.ID]
			rt := r.runtime[agent.ID]
			c.setPhase(rt, types.PhaseGenerating)
			req := &llm.CompletionRequest{
				Prompt:       rt.Prompt,
				MaxTokens:    agent.Task.MaxTokens,
				Temperature:  agent.Task.Temperature,
				OutputFormat: agent.Task.OutputFormat,
			}
			snap := r.snapshot(c.mode)
			c.mu.Unlock()
			c.publish(snap)

			start := time.Now()
			resp, err := c.provider.Complete(context.Background(), req)
			if !c.applyCompletion(sessionID, agent, attempt, resp, err, time.Since(start)) {
				return
			}

		case subResponseOK:
			if c.mode != ModeAuto {
				c.mu.Unlock()
				return
			}
			st.done[subResponseOK] = true
			rt := r.runtime[agent.ID]
			rt.ResponseApproved = true
			c.setPhase(rt, types.PhaseResponseOK)
			approved := r.snapshot(c.mode)
			commit := c.finalizeAgentLocked(r, agent)
			snap := r.snapshot(c.mode)
			c.mu.Unlock()
			c.publish(approved)
			c.publish(snap, commit)

		default:
			c.mu.Unlock()
			return
		}
	}
}

// draftPromptLocked assembles context, renders the prompt, and appends the
// pending history entry. A render failure fails the agent and the run.
func (c *Controller) draftPromptLocked(r *run, agent types.AgentSpec) (Snapshot, bool) {
	pctx := assembleContext(r, agent)
	rendered, err := c.inst.Render(agent, pctx)
	if err != nil {
		c.failAgentLocked(r, agent, err)
		return r.snapshot(c.mode), true
	}
	rt := r.runtime[agent.ID]
	rt.Prompt = rendered.Text
	c.setPhase(rt, types.PhasePromptDraft)
	r.steps[agent.ID].done[subPromptDraft] = true
	r.steps[agent.ID].enabled[subPromptOK] = true
	r.history = append(r.history, types.HistoryEntry{
		ID:        uuid.NewString(),
		SessionID: r.sessionID,
		AgentID:   agent.ID,
		AgentName: agent.Name,
		Prompt:    rendered.Text,
		Timestamp: time.Now(),
		Status:    types.HistoryPending,
	})
	c.logger.Debug("prompt drafted",
		zap.Int("agent_id", agent.ID),
		zap.Int("estimated_tokens", rendered.EstimatedTokens),
	)
	return r.snapshot(c.mode), false
}

// applyCompletion applies a completion result to the run, unless the
// session is stale, the run was stopped, or the agent's step state was
// reset by a retry while the call was in flight. It reports whether the
// advance loop should keep going.
func (c *Controller) applyCompletion(sessionID string, agent types.AgentSpec, attempt int, resp *llm.CompletionResponse, err error, elapsed time.Duration) bool {
	c.mu.Lock()
	r := c.run
	if r == nil || r.sessionID != sessionID {
		c.mu.Unlock()
		c.metrics.StaleDiscarded()
		c.logger.Info("discarding stale completion result",
			zap.String("session_id", sessionID),
			zap.Int("agent_id", agent.ID),
		)
		return false
	}
	st := r.steps[agent.ID]
	if r.retries[agent.ID] != attempt || !st.enabled[subGenerating] || st.done[subGenerating] {
		c.mu.Unlock()
		c.metrics.StaleDiscarded()
		c.logger.Info("discarding completion result for superseded attempt",
			zap.String("session_id", sessionID),
			zap.Int("agent_id", agent.ID),
		)
		return false
	}
	r.processing = false
	if !r.active {
		c.mu.Unlock()
		c.metrics.StaleDiscarded()
		c.logger.Info("discarding completion result for stopped run",
			zap.String("session_id", sessionID),
			zap.Int("agent_id", agent.ID),
		)
		return false
	}

	if err != nil {
		c.metrics.CompletionObserved("error", elapsed)
		c.failAgentLocked(r, agent, err)
		snap := r.snapshot(c.mode)
		c.mu.Unlock()
		c.publish(snap)
		return false
	}

	c.metrics.CompletionObserved("success", elapsed)
	c.metrics.TokensObserved(resp.Usage)

	st.done[subGenerating] = true
	st.enabled[subResponseDraft] = true
	st.done[subResponseDraft] = true
	st.enabled[subResponseOK] = true
	rt := r.runtime[agent.ID]
	rt.Response = resp.Content
	c.setPhase(rt, types.PhaseResponseDraft)
	c.logger.Debug("response drafted",
		zap.Int("agent_id", agent.ID),
		zap.Duration("elapsed", elapsed),
		zap.Int("total_tokens", resp.Usage.TotalTokens),
	)
	snap := r.snapshot(c.mode)
	c.mu.Unlock()
	c.publish(snap)
	return true
}

// failAgentLocked marks the agent failed and surfaces the error on the run
// without touching other agents' state.
func (c *Controller) failAgentLocked(r *run, agent types.AgentSpec, err error) {
	rt := r.runtime[agent.ID]
	c.setPhase(rt, types.PhaseFailed)
	r.status = types.StatusError
	r.errMsg = fmt.Sprintf("agent %s failed: %v", agent.Name, err)
	if idx := r.historyIndex(agent.ID); idx >= 0 {
		switch r.history[idx].Status {
		case types.HistoryPending, types.HistoryReviewed:
			r.history[idx].Status = types.HistoryFailed
			r.history[idx].Timestamp = time.Now()
		}
	}
	c.logger.Error("agent failed",
		zap.Int("agent_id", agent.ID),
		zap.String("agent_name", agent.Name),
		zap.Error(err),
	)
}

// finalizeAgentLocked sets the agent complete and commits its history
// entry as completed.
func (c *Controller) finalizeAgentLocked(r *run, agent types.AgentSpec) types.HistoryEntry {
	st := r.steps[agent.ID]
	if err := st.finish(); err != nil {
		c.logger.Warn("inconsistent step state at completion", zap.Error(err))
		st.complete = true
	}
	rt := r.runtime[agent.ID]
	c.setPhase(rt, types.PhaseComplete)

	// A mid-step edit after approval marks the entry reviewed; it still
	// transitions to completed here and commits with the final response.
	var commit types.HistoryEntry
	if idx := r.historyIndex(agent.ID); idx >= 0 {
		switch r.history[idx].Status {
		case types.HistoryPending, types.HistoryReviewed:
			r.history[idx].Response = rt.Response
			r.history[idx].Status = types.HistoryCompleted
			r.history[idx].Timestamp = time.Now()
			commit = r.history[idx]
		}
	}
	c.logger.Info("agent complete",
		zap.Int("agent_id", agent.ID),
		zap.String("agent_name", agent.Name),
	)
	return commit
}

// finishRunLocked finalizes a run whose last agent is complete.
func (c *Controller) finishRunLocked(r *run) {
	r.status = types.StatusCompleted
	r.active = false
	c.metrics.RunFinished("completed", time.Since(c.startedAt))
	c.logger.Info("run completed",
		zap.String("session_id", r.sessionID),
		zap.Int("agents", len(r.agents)),
	)
}

// setPhase applies a coarse phase transition.
func (c *Controller) setPhase(rt *types.AgentRuntime, phase types.AgentPhase) {
	rt.Phase = phase
	rt.UpdatedAt = time.Now()
	c.metrics.StepTransition(string(phase))
}

// publish delivers committed entries to the sink and the snapshot to every
// listener, outside the controller lock.
func (c *Controller) publish(snap Snapshot, commits ...types.HistoryEntry) {
	for _, entry := range commits {
		if entry.ID == "" || c.sink == nil {
			continue
		}
		if err := c.sink.Append(context.Background(), entry); err != nil {
			c.logger.Warn("history sink append failed",
				zap.String("entry_id", entry.ID),
				zap.Error(err),
			)
		}
	}
	for _, l := range c.listeners {
		l(snap)
	}
}
